// Package measure is a process-wide, mutex-protected counter map, the
// counting sibling of prof's timing-entry log: where prof.Track records how
// long an operation took, measure.Global.Add records how many times it ran.
package measure

import "sync"

// Counters is a label -> count map safe for concurrent Add calls.
type Counters struct {
	mu     sync.Mutex
	counts map[string]uint64
}

// Global is the process-wide counter set every package in this module adds
// to; cmd/dispute-sweep drains it once after the sweep to print call volume
// alongside the rounds/bond figures.
var Global = &Counters{counts: map[string]uint64{}}

// Add increments label by delta.
func (c *Counters) Add(label string, delta uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]uint64{}
	}
	c.counts[label] += delta
}

// SnapshotAndReset returns a copy of the current counts and clears them.
func (c *Counters) SnapshotAndReset() map[string]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]uint64, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	c.counts = map[string]uint64{}
	return out
}
