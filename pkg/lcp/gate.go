package lcp

import "sync/atomic"

// Gate admits at most one audit at a time. A second caller is turned away
// rather than queued.
//
// The zero value is a free gate.
type Gate struct {
	busy atomic.Bool
}

// NewGate returns a free gate.
func NewGate() *Gate {
	return &Gate{}
}

// TryAcquire moves the gate from free to busy. It returns false, and changes
// nothing, if the gate is already busy.
func (g *Gate) TryAcquire() bool {
	return g.busy.CompareAndSwap(false, true)
}

// Release frees the gate. Releasing a free gate is a no-op.
func (g *Gate) Release() {
	g.busy.Store(false)
}

// Busy reports whether an audit currently holds the gate.
func (g *Gate) Busy() bool {
	return g.busy.Load()
}
