package collector

import (
	"errors"
	"fmt"
	"time"
)

// ErrProcessGone is returned by a Provider once the pid no longer resolves to
// a live process. The sampler treats it as the normal end of monitoring.
var ErrProcessGone = errors.New("process gone")

// Provider reads point-in-time metrics for a single process.
//
// Refresh re-reads OS state for pid. Memory and CPUTime return values from the
// most recent successful Refresh of the same pid, so both reads always come from
// one snapshot. Implementations are used from a single goroutine.
type Provider interface {
	Refresh(pid int32) error
	// Memory returns the resident set size in bytes.
	Memory(pid int32) (uint64, error)
	// CPUTime returns cumulative user+system CPU time since process start.
	CPUTime(pid int32) (time.Duration, error)
}

// Provider names accepted by New.
const (
	ProviderProcfs   = "procfs"
	ProviderGopsutil = "gopsutil"
)

// New returns the provider registered under name.
func New(name string) (Provider, error) {
	switch name {
	case ProviderProcfs:
		return NewProcfsProvider(), nil
	case ProviderGopsutil:
		return NewGopsutilProvider(), nil
	default:
		return nil, fmt.Errorf("unknown metrics provider %q", name)
	}
}

// Lookup checks that pid resolves to a live process before sampling starts.
func Lookup(p Provider, pid int32) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid %d", pid)
	}
	if err := p.Refresh(pid); err != nil {
		if errors.Is(err, ErrProcessGone) {
			return fmt.Errorf("process %d not found: %w", pid, err)
		}
		return fmt.Errorf("read process %d: %w", pid, err)
	}
	return nil
}

// snapshot is the state captured by one Refresh.
type snapshot struct {
	pid   int32
	rss   uint64
	cpu   time.Duration
	err   error
	valid bool
}

func (s snapshot) current(pid int32) (snapshot, error) {
	if !s.valid || s.pid != pid {
		return snapshot{}, fmt.Errorf("pid %d: no refreshed snapshot", pid)
	}
	if s.err != nil {
		return snapshot{}, s.err
	}
	return s, nil
}
