package debug

import (
	"fmt"
	"sync"
	"sync/atomic"
)

type entry struct {
	level    LogLevel
	file     string
	line     int
	function string
	msg      string
}

// Async is a non-blocking front for a Logger. Log formats the message,
// enqueues it and returns at once; a single goroutine writes. When the queue is full the
// message is dropped and counted, so real-time callers never wait on I/O.
type Async struct {
	out     *Logger
	queue   chan entry
	dropped atomic.Uint64
	closed  atomic.Bool
	done    chan struct{}
	once    sync.Once
	mu      sync.RWMutex // guards queue against send-after-close
}

// NewAsync starts a drain goroutine writing to out. size bounds the queue.
func NewAsync(out *Logger, size int) *Async {
	if size < 1 {
		size = 1
	}
	a := &Async{
		out:   out,
		queue: make(chan entry, size),
		done:  make(chan struct{}),
	}
	go a.drain()
	return a
}

func (a *Async) drain() {
	defer close(a.done)
	for e := range a.queue {
		a.out.Log(e.level, e.file, e.line, e.function, "%s", e.msg)
	}
}

// Log enqueues a message. It never blocks.
func (a *Async) Log(level LogLevel, file string, line int, function, format string, args ...any) {
	if !a.mu.TryRLock() {
		a.dropped.Add(1)
		return
	}
	defer a.mu.RUnlock()
	if a.closed.Load() {
		a.dropped.Add(1)
		return
	}
	if len(a.queue) == cap(a.queue) {
		a.dropped.Add(1)
		return
	}
	// args may change once Log returns
	e := entry{level, file, line, function, fmt.Sprintf(format, args...)}
	select {
	case a.queue <- e:
	default:
		a.dropped.Add(1)
	}
}

// Dropped returns how many messages were discarded.
func (a *Async) Dropped() uint64 { return a.dropped.Load() }

// Close stops accepting messages and waits until queued ones are written.
func (a *Async) Close() {
	a.once.Do(func() {
		a.mu.Lock()
		a.closed.Store(true)
		close(a.queue)
		a.mu.Unlock()
	})
	<-a.done
}
