package monitor

import "sync"

// Snapshot is an immutable copy of a Status.
type Snapshot struct {
	MemoryMax   uint64
	MemoryUsage []uint64
	CPUMax      float64
	CPUUsage    []float64
}

// Status accumulates memory and CPU samples for one process. MemoryUsage and
// CPUUsage always have equal length and the maxima always match their
// sequences. Once sealed, further updates are rejected.
type Status struct {
	mu     sync.Mutex
	snap   Snapshot
	sealed bool
}

// NewStatus creates an empty Status.
func NewStatus() *Status {
	return &Status{}
}

// Update appends one sample. Negative CPU values are clamped to zero. It
// returns false and records nothing if the status has been sealed.
func (s *Status) Update(memory uint64, cpuPercent float64) bool {
	if cpuPercent < 0 {
		cpuPercent = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sealed {
		return false
	}
	s.snap.MemoryUsage = append(s.snap.MemoryUsage, memory)
	s.snap.CPUUsage = append(s.snap.CPUUsage, cpuPercent)
	if memory > s.snap.MemoryMax {
		s.snap.MemoryMax = memory
	}
	if cpuPercent > s.snap.CPUMax {
		s.snap.CPUMax = cpuPercent
	}
	return true
}

// Len returns the number of recorded samples.
func (s *Status) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snap.MemoryUsage)
}

// Snapshot returns a consistent copy of the current state.
func (s *Status) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

// Seal freezes the status and returns its final state.
func (s *Status) Seal() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sealed = true
	return s.copyLocked()
}

func (s *Status) copyLocked() Snapshot {
	return Snapshot{
		MemoryMax:   s.snap.MemoryMax,
		MemoryUsage: append([]uint64(nil), s.snap.MemoryUsage...),
		CPUMax:      s.snap.CPUMax,
		CPUUsage:    append([]float64(nil), s.snap.CPUUsage...),
	}
}
