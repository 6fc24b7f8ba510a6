package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/c2h5oh/datasize"
)

// Trigger identifies what ended monitoring.
type Trigger int32

const (
	TriggerNone Trigger = iota
	TriggerProcessExit
	TriggerInterrupt
)

func (t Trigger) String() string {
	switch t {
	case TriggerProcessExit:
		return "process-exit"
	case TriggerInterrupt:
		return "interrupt"
	default:
		return "none"
	}
}

// Reporter persists the final snapshot.
type Reporter interface {
	Write(Snapshot) error
}

// Coordinator races the termination triggers and writes the report exactly once.
type Coordinator struct {
	status   *Status
	reporter Reporter
	log      *slog.Logger

	fired   atomic.Bool
	trigger atomic.Int32
	done    chan struct{}

	// err and cause are written by the winning trigger before done is closed.
	err   error
	cause error
}

// NewCoordinator creates a Coordinator for status.
func NewCoordinator(status *Status, reporter Reporter, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		status:   status,
		reporter: reporter,
		log:      logger,
		done:     make(chan struct{}),
	}
}

// Done is closed once the report has been written or has failed.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Trigger returns the trigger that won, or TriggerNone before any fired.
func (c *Coordinator) Trigger() Trigger {
	return Trigger(c.trigger.Load())
}

// Interrupt ends monitoring on behalf of an asynchronous source such as a
// signal handler. It blocks until the report is written.
func (c *Coordinator) Interrupt(reason string) error {
	c.log.Info("interrupt received", "reason", reason)
	_, err := c.Finish(TriggerInterrupt)
	return err
}

// Finish seals the status and writes the report if no other trigger has done so.
// Only the first caller writes; later callers wait for that write to complete
// and return reported == false along with its result.
func (c *Coordinator) Finish(t Trigger) (reported bool, err error) {
	return c.finish(t, nil)
}

func (c *Coordinator) finish(t Trigger, cause error) (bool, error) {
	if !c.fired.CompareAndSwap(false, true) {
		<-c.done
		c.log.Debug("report already written, ignoring trigger", "trigger", t)
		return false, c.err
	}
	c.trigger.Store(int32(t))
	c.cause = cause

	snap := c.status.Seal()
	c.log.Info("writing report",
		"trigger", t,
		"samples", len(snap.MemoryUsage),
		"memory_max", datasize.ByteSize(snap.MemoryMax).HumanReadable(),
		"cpu_max", fmt.Sprintf("%.1f", snap.CPUMax))

	if werr := c.reporter.Write(snap); werr != nil {
		c.err = fmt.Errorf("write report: %w", werr)
	}
	close(c.done)
	return true, c.err
}

// Run starts sampler on its own goroutine and blocks until a trigger has
// produced the report. The sampler is cancelled before Run returns. The
// returned error is the report failure, or else the sampler failure that
// ended monitoring.
func (c *Coordinator) Run(ctx context.Context, sampler *Sampler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		err := sampler.Run(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		if err != nil {
			c.log.Error("sampling failed", "err", err)
		}
		c.finish(TriggerProcessExit, err)
	}()

	select {
	case <-c.done:
	case <-ctx.Done():
		c.Finish(TriggerInterrupt)
	}

	if c.err != nil {
		return c.err
	}
	return c.cause
}
