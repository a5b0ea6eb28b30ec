// Package eventpump implements the daemon's single-threaded reactor:
// one epoll set multiplexing every fd registered with Add (each
// FunctionFS instance's ep0), dispatching each readiness event to its
// registered handler synchronously, one at a time.
package eventpump

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/gadgetd/gadgetd/internal/gadgeterr"
)

// errPumpClosed is returned by a backend's wait() once close() has
// been called, letting Run exit cleanly instead of reporting an error.
var errPumpClosed = errors.New("eventpump: closed")

// Handler reacts to a readiness event on a registered fd. The
// dispatch id is a fresh correlation id per call, so concurrent
// instance launches remain distinguishable in the daemon log even
// though handlers themselves never run concurrently with one another.
type Handler func(dispatchID string, fd int) error

// Pump is the process-wide reactor. It is not safe to Run from more
// than one goroutine; registration methods may be called from other
// goroutines while Run is active.
type Pump struct {
	backend pumpBackend

	mu       sync.Mutex
	handlers map[int]Handler
}

// New returns a Pump backed by the platform's epoll implementation.
func New() (*Pump, error) {
	backend, err := newPumpBackend()
	if err != nil {
		return nil, err
	}
	return &Pump{backend: backend, handlers: make(map[int]Handler)}, nil
}

// Add registers fd for readability events, dispatching to h.
func (p *Pump) Add(fd int, h Handler) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.handlers[fd]; exists {
		return gadgeterr.New("Add", gadgeterr.Exist, nil)
	}
	if err := p.backend.add(fd); err != nil {
		return err
	}
	p.handlers[fd] = h
	return nil
}

// Remove unregisters fd. It is not an error to remove an fd that was
// never added.
func (p *Pump) Remove(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.handlers[fd]; !exists {
		return nil
	}
	delete(p.handlers, fd)
	return p.backend.remove(fd)
}

// Run blocks dispatching events until ctx is canceled or Close is
// called. Each ready fd's handler runs to completion before the next
// wait call, matching the single-threaded cooperative design: handlers
// never run concurrently with each other.
func (p *Pump) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		ready, err := p.backend.wait(ctx)
		if err != nil {
			if err == errPumpClosed {
				return nil
			}
			return fmt.Errorf("eventpump wait: %w", err)
		}

		for _, fd := range ready {
			p.mu.Lock()
			h, ok := p.handlers[fd]
			p.mu.Unlock()
			if !ok {
				continue
			}
			if err := h(uuid.NewString(), fd); err != nil {
				return fmt.Errorf("eventpump dispatch fd %d: %w", fd, err)
			}
		}
	}
}

// Close releases the pump's backing epoll fd. Run returns nil after a
// concurrent Close unblocks it.
func (p *Pump) Close() error {
	return p.backend.close()
}

// pumpBackend is the platform-specific half of Pump: epoll on Linux, a
// NotSupported stub everywhere else.
type pumpBackend interface {
	add(fd int) error
	remove(fd int) error
	wait(ctx context.Context) ([]int, error)
	close() error
}
