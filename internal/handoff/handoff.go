// Package handoff provides a one-shot rendezvous for passing a single value
// from a producer goroutine to a consumer blocked waiting for it.
//
// A Channel carries exactly one value for its whole life. The first Put
// deposits the value and wakes the consumer; every later Put fails with
// ErrAlreadyDelivered instead of blocking forever. The first Take receives the
// value; later Takes fail with ErrAlreadyTaken.
package handoff

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/actbridge/actbridge/internal/errors"
)

// Errors returned by Channel operations.
var (
	ErrAlreadyDelivered = errors.ErrHandoffDelivered
	ErrAlreadyTaken     = errors.ErrHandoffTaken
	ErrInterrupted      = errors.ErrHandoffInterrupted
)

// Channel is a single-slot, single-use handoff between one producer and one consumer.
// The zero value is not usable; construct with New.
type Channel[T any] struct {
	slot      chan T
	delivered atomic.Bool
	taken     atomic.Bool
}

// New returns an empty Channel.
func New[T any]() *Channel[T] {
	return &Channel[T]{slot: make(chan T, 1)}
}

// Put deposits v. It never blocks: the slot has room for exactly the one
// value a Channel will ever carry.
func (c *Channel[T]) Put(v T) error {
	if !c.delivered.CompareAndSwap(false, true) {
		return ErrAlreadyDelivered
	}
	c.slot <- v
	return nil
}

// Take blocks until a value has been put or ctx is done.
func (c *Channel[T]) Take(ctx context.Context) (T, error) {
	var zero T
	if !c.taken.CompareAndSwap(false, true) {
		return zero, ErrAlreadyTaken
	}

	select {
	case v := <-c.slot:
		return v, nil
	case <-ctx.Done():
		// The value may still arrive later; leave the channel consumable.
		c.taken.Store(false)
		return zero, fmt.Errorf("%w: %w", ErrInterrupted, context.Cause(ctx))
	}
}

// Delivered reports whether a value has been put.
func (c *Channel[T]) Delivered() bool {
	return c.delivered.Load()
}
