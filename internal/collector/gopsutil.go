package collector

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// GopsutilProvider reads process metrics through gopsutil. It works on every
// platform gopsutil supports, at the cost of a few extra syscalls per read.
type GopsutilProvider struct {
	proc *process.Process
	snap snapshot
}

// NewGopsutilProvider creates a GopsutilProvider.
func NewGopsutilProvider() *GopsutilProvider {
	return &GopsutilProvider{}
}

// Refresh reads CPU times and memory info for pid in one pass. An unreaped
// zombie counts as gone, matching ProcfsProvider.
func (g *GopsutilProvider) Refresh(pid int32) error {
	g.snap = snapshot{pid: pid, valid: true}

	if g.proc == nil || g.proc.Pid != pid {
		proc, err := process.NewProcess(pid)
		if err != nil {
			g.snap.err = g.classify(pid, err)
			return g.snap.err
		}
		g.proc = proc
	}

	status, err := g.proc.Status()
	if err != nil {
		g.snap.err = g.classify(pid, err)
		return g.snap.err
	}
	if slices.Contains(status, process.Zombie) {
		g.snap.err = fmt.Errorf("pid %d is a zombie: %w", pid, ErrProcessGone)
		return g.snap.err
	}

	times, err := g.proc.Times()
	if err != nil {
		g.snap.err = g.classify(pid, err)
		return g.snap.err
	}
	mem, err := g.proc.MemoryInfo()
	if err != nil {
		g.snap.err = g.classify(pid, err)
		return g.snap.err
	}

	g.snap.cpu = time.Duration((times.User + times.System) * float64(time.Second))
	g.snap.rss = mem.RSS
	return nil
}

// Memory returns the resident set size from the last Refresh.
func (g *GopsutilProvider) Memory(pid int32) (uint64, error) {
	s, err := g.snap.current(pid)
	return s.rss, err
}

// CPUTime returns user+system time from the last Refresh.
func (g *GopsutilProvider) CPUTime(pid int32) (time.Duration, error) {
	s, err := g.snap.current(pid)
	return s.cpu, err
}

// classify maps gopsutil failures for a vanished pid to ErrProcessGone.
func (g *GopsutilProvider) classify(pid int32, err error) error {
	if errors.Is(err, process.ErrorProcessNotRunning) || errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("pid %d: %w", pid, ErrProcessGone)
	}
	if exists, perr := process.PidExists(pid); perr == nil && !exists {
		return fmt.Errorf("pid %d: %w", pid, ErrProcessGone)
	}
	return fmt.Errorf("read pid %d: %w", pid, err)
}
