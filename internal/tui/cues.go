package tui

import (
	"io"
	"sync"
)

// bellCues rings the terminal bell. A new card rings twice so it can be
// told apart from a local status change.
type bellCues struct {
	mu      sync.Mutex
	out     io.Writer
	enabled bool
}

func newBellCues(out io.Writer, enabled bool) *bellCues {
	return &bellCues{out: out, enabled: enabled}
}

func (c *bellCues) ring(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled || c.out == nil {
		return
	}
	for i := 0; i < n; i++ {
		io.WriteString(c.out, "\a")
	}
}

// NewCard implements session.Cues.
func (c *bellCues) NewCard(string) { c.ring(2) }

// StatusChanged implements session.Cues.
func (c *bellCues) StatusChanged(string) { c.ring(1) }
