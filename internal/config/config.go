package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/cptspacemanspiff/procwatch/internal/collector"
	"github.com/cptspacemanspiff/procwatch/internal/fsutil"
)

// Log topics accepted in log.topics. TopicAll enables every topic.
const (
	TopicAll      = "all"
	TopicSampler  = "sampler"
	TopicShutdown = "shutdown"
	TopicReport   = "report"
)

var (
	validProviders = []string{collector.ProviderProcfs, collector.ProviderGopsutil}
	validTopics    = []string{TopicAll, TopicSampler, TopicShutdown, TopicReport}
)

type Config struct {
	Report     ReportConfig     `toml:"report"`
	Collection CollectionConfig `toml:"collection"`
	Shutdown   ShutdownConfig   `toml:"shutdown"`
	Log        LogConfig        `toml:"log"`
}

type ReportConfig struct {
	// Path is the report destination; "-" writes to stdout.
	Path string `toml:"path"`
}

type CollectionConfig struct {
	Provider string `toml:"provider"`
}

type ShutdownConfig struct {
	WatchLogind bool `toml:"watch_logind"`
}

type LogConfig struct {
	Topics []string `toml:"topics"`
}

func DefaultConfig() *Config {
	return &Config{
		Collection: CollectionConfig{
			Provider: collector.ProviderProcfs,
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return Normalize(cfg)
}

// Normalize cleans values without requiring a report path, so a config file
// may leave the path to the command line.
func Normalize(cfg *Config) (*Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}

	sanitized := *cfg
	sanitized.Report.Path = strings.TrimSpace(sanitized.Report.Path)
	if sanitized.Report.Path != "" && sanitized.Report.Path != "-" {
		sanitized.Report.Path = filepath.Clean(sanitized.Report.Path)
	}

	sanitized.Collection.Provider = strings.ToLower(strings.TrimSpace(sanitized.Collection.Provider))
	if !slices.Contains(validProviders, sanitized.Collection.Provider) {
		return nil, fmt.Errorf("collection.provider must be one of %s, got %q",
			strings.Join(validProviders, ", "), cfg.Collection.Provider)
	}

	topics := make([]string, 0, len(sanitized.Log.Topics))
	for _, t := range sanitized.Log.Topics {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if !slices.Contains(validTopics, t) {
			return nil, fmt.Errorf("log.topics: unknown topic %q", t)
		}
		topics = append(topics, t)
	}
	sanitized.Log.Topics = topics

	return &sanitized, nil
}

func NormalizeAndValidate(cfg *Config) (*Config, error) {
	sanitized, err := Normalize(cfg)
	if err != nil {
		return nil, err
	}
	if sanitized.Report.Path == "" {
		return nil, fmt.Errorf("report.path must not be empty")
	}
	return sanitized, nil
}

func Save(path string, cfg *Config) error {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return fmt.Errorf("config path must not be empty")
	}

	sanitized, err := NormalizeAndValidate(cfg)
	if err != nil {
		return err
	}

	if err := fsutil.ReplaceFile(trimmedPath, ".config-*.toml", 0o644, func(w io.Writer) error {
		return toml.NewEncoder(w).Encode(sanitized)
	}); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}
