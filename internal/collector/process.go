package collector

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// procfsRoot is the procfs mount point; tests point it at a temp dir.
var procfsRoot = "/proc"

// clockTicksPerSecond is USER_HZ, the unit of utime/stime in /proc/[pid]/stat.
const clockTicksPerSecond = 100

// ProcfsProvider reads process metrics directly from /proc.
type ProcfsProvider struct {
	pageSize uint64
	snap     snapshot
}

// NewProcfsProvider creates a ProcfsProvider.
func NewProcfsProvider() *ProcfsProvider {
	return &ProcfsProvider{pageSize: uint64(os.Getpagesize())}
}

// Refresh reads /proc/[pid]/stat and /proc/[pid]/statm.
func (p *ProcfsProvider) Refresh(pid int32) error {
	p.snap = snapshot{pid: pid, valid: true}

	st, err := readProcStat(pid)
	if err != nil {
		p.snap.err = err
		return err
	}
	// A zombie has released its memory and will never run again.
	if st.state == 'Z' || st.state == 'X' {
		p.snap.err = fmt.Errorf("pid %d in state %c: %w", pid, st.state, ErrProcessGone)
		return p.snap.err
	}
	pages, err := readStatmResident(pid)
	if err != nil {
		p.snap.err = err
		return err
	}

	p.snap.cpu = ticksToDuration(st.ticks)
	p.snap.rss = pages * p.pageSize
	return nil
}

// Memory returns the resident set size from the last Refresh.
func (p *ProcfsProvider) Memory(pid int32) (uint64, error) {
	s, err := p.snap.current(pid)
	return s.rss, err
}

// CPUTime returns utime+stime from the last Refresh.
func (p *ProcfsProvider) CPUTime(pid int32) (time.Duration, error) {
	s, err := p.snap.current(pid)
	return s.cpu, err
}

type procStat struct {
	state byte
	ticks int64 // utime + stime
}

// readProcStat parses /proc/[pid]/stat for state, utime and stime.
func readProcStat(pid int32) (procStat, error) {
	data, err := readProcFile(pid, "stat")
	if err != nil {
		return procStat{}, err
	}

	// comm is in parens and may contain spaces/parens, so find last ')'
	end := bytes.LastIndexByte(data, ')')
	if bytes.IndexByte(data, '(') < 0 || end < 0 || end >= len(data)-1 {
		return procStat{}, fmt.Errorf("malformed stat for pid %d", pid)
	}

	// Fields after ')' start at state; utime and stime are at 11 and 12.
	fields := strings.Fields(string(data[end+2:]))
	if len(fields) < 13 {
		return procStat{}, fmt.Errorf("too few fields for pid %d", pid)
	}
	utime, err := strconv.ParseInt(fields[11], 10, 64)
	if err != nil {
		return procStat{}, fmt.Errorf("parse utime for pid %d: %w", pid, err)
	}
	stime, err := strconv.ParseInt(fields[12], 10, 64)
	if err != nil {
		return procStat{}, fmt.Errorf("parse stime for pid %d: %w", pid, err)
	}

	return procStat{
		state: fields[0][0],
		ticks: utime + stime,
	}, nil
}

// readStatmResident returns the resident page count from /proc/[pid]/statm.
func readStatmResident(pid int32) (uint64, error) {
	data, err := readProcFile(pid, "statm")
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(string(data))
	if len(fields) < 2 {
		return 0, fmt.Errorf("malformed statm for pid %d", pid)
	}
	pages, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse statm resident for pid %d: %w", pid, err)
	}
	return pages, nil
}

func readProcFile(pid int32, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(procfsRoot, strconv.Itoa(int(pid)), name))
	if err != nil {
		// ESRCH shows up when the process exits between open and read.
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ESRCH) {
			return nil, fmt.Errorf("pid %d: %w", pid, ErrProcessGone)
		}
		return nil, fmt.Errorf("read %s for pid %d: %w", name, pid, err)
	}
	return data, nil
}

func ticksToDuration(ticks int64) time.Duration {
	return time.Duration(ticks) * time.Second / clockTicksPerSecond
}
