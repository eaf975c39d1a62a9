package lcp

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGate_AcquireRelease(t *testing.T) {
	g := NewGate()
	assert.False(t, g.Busy())

	assert.True(t, g.TryAcquire())
	assert.True(t, g.Busy())

	// Second acquire is rejected and leaves the gate busy
	assert.False(t, g.TryAcquire())
	assert.True(t, g.Busy())

	g.Release()
	assert.False(t, g.Busy())
	assert.True(t, g.TryAcquire())
}

func TestGate_ReleaseFreeGate(t *testing.T) {
	var g Gate
	g.Release()
	assert.False(t, g.Busy())
}

func TestGate_SingleWinner(t *testing.T) {
	g := NewGate()

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.TryAcquire() {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}
