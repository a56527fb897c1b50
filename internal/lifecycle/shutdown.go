// Package lifecycle holds the process-wide shutdown request.
package lifecycle

import (
	"sync"
	"sync/atomic"
)

// Shutdown is a monotonic flag: once requested it never reverts. Reads are
// lock-free; Done can be used in a select.
type Shutdown struct {
	set  atomic.Bool
	once sync.Once
	done chan struct{}
}

// NewShutdown returns an unset shutdown flag.
func NewShutdown() *Shutdown {
	return &Shutdown{done: make(chan struct{})}
}

// Default is the shutdown flag shared by the running process.
var Default = NewShutdown()

// Request sets the flag. It reports whether this call was the one that set it.
func (s *Shutdown) Request() bool {
	first := false
	s.once.Do(func() {
		s.set.Store(true)
		close(s.done)
		first = true
	})
	return first
}

// Requested reports whether shutdown has been requested.
func (s *Shutdown) Requested() bool {
	return s.set.Load()
}

// Done is closed when shutdown is requested.
func (s *Shutdown) Done() <-chan struct{} {
	return s.done
}

// Personal.AI order the ending
