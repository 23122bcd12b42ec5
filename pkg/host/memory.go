package host

import (
	"fmt"
	"sync/atomic"

	"github.com/justyntemme/dspplug/pkg/abi"
)

// categories are the memory types tracked separately; anything else is
// accounted under the last slot.
var categories = [...]abi.MemoryType{
	abi.MemoryNormal,
	abi.MemoryDSPBuffer,
	abi.MemoryPlugin,
	abi.MemoryPersistent,
}

const otherCategory = len(categories)

func categoryIndex(kind abi.MemoryType) int {
	for i, c := range categories {
		if c == kind {
			return i
		}
	}
	return otherCategory
}

type counter struct {
	bytes atomic.Int64
	count atomic.Int64
	peak  atomic.Int64
	limit int64 // -1 when unbounded
}

// ledger accounts outstanding allocations per category without locks.
type ledger struct {
	cats [otherCategory + 1]counter
}

func newLedger(budget map[abi.MemoryType]int64) *ledger {
	l := &ledger{}
	for i := range l.cats {
		l.cats[i].limit = -1
	}
	for kind, bytes := range budget {
		l.cats[categoryIndex(kind)].limit = bytes
	}
	return l
}

// reserve accounts n bytes, failing when the category budget would be
// exceeded.
func (l *ledger) reserve(kind abi.MemoryType, n int64) error {
	c := &l.cats[categoryIndex(kind)]
	for {
		cur := c.bytes.Load()
		next := cur + n
		if c.limit >= 0 && next > c.limit {
			return fmt.Errorf("%s budget of %d bytes exhausted (%d in use, %d requested): %w",
				kind, c.limit, cur, n, abi.ErrMemory)
		}
		if c.bytes.CompareAndSwap(cur, next) {
			for {
				p := c.peak.Load()
				if next <= p || c.peak.CompareAndSwap(p, next) {
					break
				}
			}
			c.count.Add(1)
			return nil
		}
	}
}

// resize swaps a block of from bytes for one of to bytes. Only the
// difference is checked against the budget.
func (l *ledger) resize(kind abi.MemoryType, from, to int64) error {
	c := &l.cats[categoryIndex(kind)]
	for {
		cur := c.bytes.Load()
		next := cur - from + to
		if to > from && c.limit >= 0 && next > c.limit {
			return fmt.Errorf("%s budget of %d bytes exhausted (%d in use, resize %d to %d): %w",
				kind, c.limit, cur, from, to, abi.ErrMemory)
		}
		if c.bytes.CompareAndSwap(cur, next) {
			for {
				p := c.peak.Load()
				if next <= p || c.peak.CompareAndSwap(p, next) {
					break
				}
			}
			return nil
		}
	}
}

func (l *ledger) release(kind abi.MemoryType, n int64) {
	c := &l.cats[categoryIndex(kind)]
	c.bytes.Add(-n)
	c.count.Add(-1)
}

// reclaim drops allocations a released instance never freed.
func (l *ledger) reclaim(u MemoryUsage) {
	c := &l.cats[categoryIndex(u.Kind)]
	c.bytes.Add(-u.Bytes)
	c.count.Add(-u.Blocks)
}

// MemoryUsage is the outstanding allocation total of one category.
type MemoryUsage struct {
	Kind   abi.MemoryType
	Bytes  int64
	Blocks int64
	Peak   int64
}

// MemoryStats lists usage per category. The last entry collects memory
// types outside the known categories under kind 0xFFFFFFFF.
type MemoryStats []MemoryUsage

// Total returns the outstanding bytes over all categories.
func (s MemoryStats) Total() int64 {
	var n int64
	for _, u := range s {
		n += u.Bytes
	}
	return n
}

// Outstanding returns the categories with live allocations.
func (s MemoryStats) Outstanding() MemoryStats {
	var out MemoryStats
	for _, u := range s {
		if u.Blocks != 0 || u.Bytes != 0 {
			out = append(out, u)
		}
	}
	return out
}

func (l *ledger) stats() MemoryStats {
	out := make(MemoryStats, 0, len(l.cats))
	for i := range l.cats {
		kind := abi.MemoryType(0xFFFFFFFF)
		if i < otherCategory {
			kind = categories[i]
		}
		c := &l.cats[i]
		out = append(out, MemoryUsage{
			Kind:   kind,
			Bytes:  c.bytes.Load(),
			Blocks: c.count.Load(),
			Peak:   c.peak.Load(),
		})
	}
	return out
}
