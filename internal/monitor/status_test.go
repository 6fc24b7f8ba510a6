package monitor

import (
	"math/rand"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_Empty(t *testing.T) {
	snap := NewStatus().Snapshot()

	assert.Equal(t, uint64(0), snap.MemoryMax)
	assert.Equal(t, 0.0, snap.CPUMax)
	assert.Empty(t, snap.MemoryUsage)
	assert.Empty(t, snap.CPUUsage)
}

func TestStatus_UpdateTracksMaxima(t *testing.T) {
	tests := []struct {
		name     string
		memory   []uint64
		cpu      []float64
		wantMem  uint64
		wantCPU  float64
		wantCPUs []float64
	}{
		{
			name:     "increasing",
			memory:   []uint64{100, 150, 200},
			cpu:      []float64{1, 2.5, 3},
			wantMem:  200,
			wantCPU:  3,
			wantCPUs: []float64{1, 2.5, 3},
		},
		{
			name:     "peak in the middle",
			memory:   []uint64{100, 900, 300},
			cpu:      []float64{10, 87.5, 4},
			wantMem:  900,
			wantCPU:  87.5,
			wantCPUs: []float64{10, 87.5, 4},
		},
		{
			name:     "negative cpu clamped",
			memory:   []uint64{5, 5},
			cpu:      []float64{-12, -0.5},
			wantMem:  5,
			wantCPU:  0,
			wantCPUs: []float64{0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStatus()
			for i := range tt.memory {
				require.True(t, s.Update(tt.memory[i], tt.cpu[i]))
			}

			snap := s.Snapshot()
			assert.Equal(t, tt.wantMem, snap.MemoryMax)
			assert.Equal(t, tt.wantCPU, snap.CPUMax)
			assert.Equal(t, tt.memory, snap.MemoryUsage)
			assert.Equal(t, tt.wantCPUs, snap.CPUUsage)
		})
	}
}

func TestStatus_InvariantsHoldForRandomSamples(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	s := NewStatus()

	for i := 0; i < 500; i++ {
		require.True(t, s.Update(uint64(rng.Int63n(1<<32)), rng.Float64()*400-100))

		snap := s.Snapshot()
		require.Len(t, snap.CPUUsage, len(snap.MemoryUsage))
		assert.Equal(t, slices.Max(snap.MemoryUsage), snap.MemoryMax)
		assert.Equal(t, slices.Max(snap.CPUUsage), snap.CPUMax)
		assert.GreaterOrEqual(t, slices.Min(snap.CPUUsage), 0.0)
	}
}

func TestStatus_SealRejectsUpdates(t *testing.T) {
	s := NewStatus()
	require.True(t, s.Update(10, 1))

	sealed := s.Seal()
	assert.False(t, s.Update(20, 2))
	assert.Equal(t, []uint64{10}, sealed.MemoryUsage)
	assert.Equal(t, sealed, s.Snapshot())
}

func TestStatus_SnapshotIsACopy(t *testing.T) {
	s := NewStatus()
	s.Update(10, 1)

	snap := s.Snapshot()
	snap.MemoryUsage[0] = 999
	snap.CPUUsage[0] = 99

	again := s.Snapshot()
	assert.Equal(t, []uint64{10}, again.MemoryUsage)
	assert.Equal(t, []float64{1}, again.CPUUsage)
}

func TestStatus_ConcurrentUpdatesStayAligned(t *testing.T) {
	s := NewStatus()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				s.Update(uint64(w*1000+i), float64(w))
			}
		}(w)
	}

	stop := make(chan struct{})
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			select {
			case <-stop:
				return
			default:
			}
			snap := s.Snapshot()
			if len(snap.MemoryUsage) != len(snap.CPUUsage) {
				t.Errorf("snapshot lengths differ: %d memory, %d cpu", len(snap.MemoryUsage), len(snap.CPUUsage))
				return
			}
		}
	}()

	wg.Wait()
	close(stop)
	<-readerDone

	snap := s.Seal()
	assert.Len(t, snap.MemoryUsage, 1600)
	assert.Len(t, snap.CPUUsage, 1600)
	assert.Equal(t, uint64(7199), snap.MemoryMax)
	assert.Equal(t, 7.0, snap.CPUMax)
}
