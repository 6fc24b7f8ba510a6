package monitor

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cptspacemanspiff/procwatch/internal/collector"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// read is one scripted Refresh result.
type read struct {
	mem    uint64
	cpu    time.Duration
	err    error // returned by Refresh and both reads
	memErr error // returned by Memory only
}

// fakeProvider replays reads in order, one per Refresh. Once the script is
// exhausted the process is reported as gone.
type fakeProvider struct {
	mu        sync.Mutex
	script    []read
	refreshes int
	cur       read
	onRefresh func(n int)
}

func (f *fakeProvider) Refresh(pid int32) error {
	f.mu.Lock()
	n := f.refreshes
	f.refreshes++
	if n < len(f.script) {
		f.cur = f.script[n]
	} else {
		f.cur = read{err: collector.ErrProcessGone}
	}
	hook := f.onRefresh
	err := f.cur.err
	f.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return err
}

func (f *fakeProvider) Memory(pid int32) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cur.err != nil {
		return 0, f.cur.err
	}
	return f.cur.mem, f.cur.memErr
}

func (f *fakeProvider) CPUTime(pid int32) (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cur.cpu, f.cur.err
}

// aliveProvider reports a live process forever.
type aliveProvider struct{}

func (aliveProvider) Refresh(int32) error { return nil }

func (aliveProvider) Memory(int32) (uint64, error) { return 1024, nil }

func (aliveProvider) CPUTime(int32) (time.Duration, error) { return time.Second, nil }

// recordingReporter counts writes and keeps the last snapshot.
type recordingReporter struct {
	mu     sync.Mutex
	writes int
	last   Snapshot
	err    error
	delay  time.Duration
}

func (r *recordingReporter) Write(s Snapshot) error {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	r.last = s
	return r.err
}

func (r *recordingReporter) Writes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

func (r *recordingReporter) Last() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

var errPermission = errors.New("permission denied")

func newTestSampler(p collector.Provider, status *Status) *Sampler {
	s := NewSampler(p, 42, status, discardLogger())
	s.interval = time.Millisecond
	return s
}
