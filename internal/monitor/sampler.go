package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/c2h5oh/datasize"

	"github.com/cptspacemanspiff/procwatch/internal/collector"
)

// SampleInterval is the fixed sampling cadence.
const SampleInterval = time.Second

// errSealed stops the loop once the coordinator has taken the final snapshot.
var errSealed = errors.New("status sealed")

// Sampler polls one process and feeds samples into a Status.
type Sampler struct {
	provider collector.Provider
	pid      int32
	status   *Status
	log      *slog.Logger

	// interval is the sleep between the CPU pre-read and the end-of-tick reads.
	// CPU percentages are always relative to SampleInterval.
	interval time.Duration
}

// NewSampler creates a Sampler for pid.
func NewSampler(provider collector.Provider, pid int32, status *Status, logger *slog.Logger) *Sampler {
	return &Sampler{
		provider: provider,
		pid:      pid,
		status:   status,
		log:      logger,
		interval: SampleInterval,
	}
}

// Run samples until the process exits, ctx is cancelled, or the provider fails.
// It returns nil when the process is gone and ctx.Err() on cancellation.
func (s *Sampler) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.tick(ctx)
		switch {
		case err == nil:
		case errors.Is(err, collector.ErrProcessGone):
			s.log.Info("process exited", "pid", s.pid, "samples", s.status.Len())
			return nil
		case errors.Is(err, errSealed):
			return ctx.Err()
		default:
			return err
		}
	}
}

// tick takes one sample. Partial reads are discarded on any error.
func (s *Sampler) tick(ctx context.Context) error {
	if err := s.provider.Refresh(s.pid); err != nil {
		return err
	}
	t0, err := s.provider.CPUTime(s.pid)
	if err != nil {
		return err
	}

	timer := time.NewTimer(s.interval)
	select {
	case <-timer.C:
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	}

	if err := s.provider.Refresh(s.pid); err != nil {
		return err
	}
	mem, err := s.provider.Memory(s.pid)
	if err != nil {
		return err
	}
	t1, err := s.provider.CPUTime(s.pid)
	if err != nil {
		return err
	}

	delta := t1 - t0
	if delta < 0 {
		s.log.Warn("negative cpu time delta, clamping to zero", "pid", s.pid, "delta", delta)
		delta = 0
	}
	cpu := cpuPercent(delta)

	if !s.status.Update(mem, cpu) {
		return errSealed
	}
	s.log.Debug("sample",
		"pid", s.pid,
		"memory", datasize.ByteSize(mem).HumanReadable(),
		"cpu_pct", fmt.Sprintf("%.1f", cpu))
	return nil
}

// cpuPercent converts CPU time consumed over one SampleInterval to a percentage
// of a single core.
func cpuPercent(delta time.Duration) float64 {
	if delta <= 0 {
		return 0
	}
	return float64(delta) * 100 / float64(SampleInterval)
}
