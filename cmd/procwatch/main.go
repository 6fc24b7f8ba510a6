package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cptspacemanspiff/procwatch/internal/collector"
	"github.com/cptspacemanspiff/procwatch/internal/config"
	"github.com/cptspacemanspiff/procwatch/internal/monitor"
	"github.com/cptspacemanspiff/procwatch/internal/report"
)

type options struct {
	configPath  string
	output      string
	provider    string
	watchLogind bool
	logTopics   string
	verbose     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "procwatch [flags] <pid>",
		Short: "Sample a process's memory and CPU usage once per second and report on exit",
		Long: `procwatch samples the resident memory and CPU utilization of one process
every second until the process exits or procwatch is interrupted, then writes
a summary report with the maxima and every sample taken.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parsePID(args[0])
			if err != nil {
				return err
			}
			cfg, err := resolveConfig(cmd.Flags(), opts)
			if err != nil {
				return err
			}
			logger := newLogger(os.Stderr, cfg.Log.Topics)
			return run(cmd.Context(), cfg, pid, logger)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "optional TOML config file")
	flags.StringVarP(&opts.output, "output", "o", "", `report destination ("-" for stdout)`)
	flags.StringVar(&opts.provider, "provider", "", "metrics provider: procfs, gopsutil")
	flags.BoolVar(&opts.watchLogind, "watch-logind", false, "also stop when logind announces a shutdown")
	flags.StringVar(&opts.logTopics, "log", "", "comma-separated log topics: sampler,shutdown,report (or 'all')")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable all verbose logging (equivalent to --log=all)")

	cmd.AddCommand(newInitConfigCmd(opts))
	return cmd
}

func newInitConfigCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "init-config <path>",
		Short: "Write the effective configuration to a TOML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd.Flags(), opts)
			if err != nil {
				return err
			}
			if err := config.Save(args[0], cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
			return nil
		},
	}
}

func parsePID(arg string) (int32, error) {
	pid, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 32)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid %q", arg)
	}
	return int32(pid), nil
}

// resolveConfig loads the config file if one was given and applies flags that
// were set explicitly on top of it.
func resolveConfig(flags *pflag.FlagSet, opts *options) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	if flags.Changed("output") {
		cfg.Report.Path = opts.output
	}
	if flags.Changed("provider") {
		cfg.Collection.Provider = opts.provider
	}
	if flags.Changed("watch-logind") {
		cfg.Shutdown.WatchLogind = opts.watchLogind
	}
	if flags.Changed("log") {
		cfg.Log.Topics = strings.Split(opts.logTopics, ",")
	}
	if opts.verbose {
		cfg.Log.Topics = append(cfg.Log.Topics, config.TopicAll)
	}

	return config.NormalizeAndValidate(cfg)
}

func run(ctx context.Context, cfg *config.Config, pid int32, logger *slog.Logger) error {
	samplerLog := logger.With(topicKey, config.TopicSampler)
	shutdownLog := logger.With(topicKey, config.TopicShutdown)
	reportLog := logger.With(topicKey, config.TopicReport)

	provider, err := collector.New(cfg.Collection.Provider)
	if err != nil {
		return err
	}
	if err := collector.Lookup(provider, pid); err != nil {
		logger.Error("resolve target process", "pid", pid, "err", err)
		return err
	}

	status := monitor.NewStatus()
	coord := monitor.NewCoordinator(status, report.New(cfg.Report.Path), shutdownLog)
	sampler := monitor.NewSampler(provider, pid, status, samplerLog)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			coord.Interrupt(sig.String())
		case <-coord.Done():
		}
	}()

	if cfg.Shutdown.WatchLogind {
		mon, err := collector.NewShutdownMonitor(shutdownLog)
		if err != nil {
			logger.Error("start logind shutdown monitor", "err", err)
			return fmt.Errorf("start logind shutdown monitor: %w", err)
		}
		defer mon.Close()
		go func() {
			select {
			case <-mon.Shutdown():
				coord.Interrupt("logind shutdown")
			case <-coord.Done():
			}
		}()
	}

	logger.Info("procwatch started, sampling every 1s",
		"pid", pid,
		"provider", cfg.Collection.Provider,
		"report", cfg.Report.Path)

	if err := coord.Run(ctx, sampler); err != nil {
		logger.Error("monitoring failed", "trigger", coord.Trigger(), "err", err)
		return err
	}
	reportLog.Info("report written", "path", cfg.Report.Path, "trigger", coord.Trigger())
	return nil
}
