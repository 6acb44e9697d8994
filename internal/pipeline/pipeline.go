// Package pipeline connects parallel record producers to the single goroutine
// that mutates the catalog.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	apperrors "github.com/geocatalog/pkg/errors"
)

// DefaultCapacity is the number of in-flight items before producers block.
const DefaultCapacity = 1000

type message[T any] struct {
	value T
	// end marks the terminal token of the phase; err is the producer group error.
	end bool
	err error
}

// Pipeline is a bounded multiple-producer, single-consumer queue. Items from
// one producer are consumed in the order they were put; there is no order
// between producers. The phase ends with one terminal token pushed by Finish.
type Pipeline[T any] struct {
	ch       chan message[T]
	finished sync.Once

	put      atomic.Int64
	consumed atomic.Int64
}

// New returns a pipeline holding up to capacity items. Non-positive values
// use DefaultCapacity.
func New[T any](capacity int) *Pipeline[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Pipeline[T]{ch: make(chan message[T], capacity)}
}

// Put enqueues v, blocking while the pipeline is full. When ctx is cancelled
// the item is abandoned and an INTERRUPTED error returned.
func (p *Pipeline[T]) Put(ctx context.Context, v T) error {
	select {
	case p.ch <- message[T]{value: v}:
		p.put.Add(1)
		return nil
	case <-ctx.Done():
		return apperrors.Interrupted("interrupted while queueing a record", ctx.Err())
	}
}

// Finish pushes the terminal token carrying the producer group error. Only
// the first call has an effect.
func (p *Pipeline[T]) Finish(ctx context.Context, err error) {
	p.finished.Do(func() {
		select {
		case p.ch <- message[T]{end: true, err: err}:
		case <-ctx.Done():
		}
	})
}

// Drain hands every item to consume until the terminal token arrives, then
// returns the producer group error wrapped as PHASE_FAILURE. Cancelling ctx
// stops the loop with an INTERRUPTED error.
func (p *Pipeline[T]) Drain(ctx context.Context, consume func(T)) error {
	for {
		select {
		case <-ctx.Done():
			return apperrors.Interrupted("interrupted while draining records", ctx.Err())
		case m := <-p.ch:
			if m.end {
				if m.err != nil {
					if apperrors.IsInterrupted(m.err) {
						return m.err
					}
					return apperrors.Wrap(apperrors.CodePhaseFailure, "record producers failed", m.err)
				}
				return nil
			}
			p.consumed.Add(1)
			consume(m.value)
		}
	}
}

// Len returns the number of queued items.
func (p *Pipeline[T]) Len() int { return len(p.ch) }

// Cap returns the capacity.
func (p *Pipeline[T]) Cap() int { return cap(p.ch) }

// Stats returns the number of items accepted and handed to the consumer.
func (p *Pipeline[T]) Stats() (put, consumed int64) {
	return p.put.Load(), p.consumed.Load()
}
