package shortcode

import (
	"context"
	"errors"
	"sync/atomic"
)

// MaxAttempts bounds random allocation. With len(Alphabet)^Length possible
// codes a collision streak this long only happens when the store is in a
// pathological state, so the bound exists to fail fast rather than loop.
const MaxAttempts = 10

var (
	// ErrCodeTaken is returned when a caller-chosen code already exists, or
	// when a concurrent allocation won the write race for the same code.
	ErrCodeTaken = errors.New("short code already taken")

	// ErrAllocationExhausted is returned when the random retry bound is
	// reached without finding a free code. Safe to retry the whole request.
	ErrAllocationExhausted = errors.New("could not allocate a unique short code")
)

// ExistsFunc reports whether a code is already taken. Implementations must
// test the full uniqueness domain: base links and variants share one flat
// namespace, so a single predicate spans both.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// Stats holds allocation counters.
type Stats struct {
	Allocations int64
	Collisions  int64
	Exhaustions int64
}

// Allocator produces short codes guaranteed unique against an existence
// check at allocation time. The check and the eventual write are two steps;
// the store's uniqueness constraint is the authoritative arbiter when two
// allocations race, and the loser sees ErrCodeTaken from the write.
type Allocator struct {
	generate    func() (string, error)
	maxAttempts int

	allocations atomic.Int64
	collisions  atomic.Int64
	exhaustions atomic.Int64
}

// NewAllocator creates an Allocator using the package generator.
func NewAllocator() *Allocator {
	return &Allocator{generate: Generate, maxAttempts: MaxAttempts}
}

// newAllocatorWithGenerator is used by tests to control generated codes.
func newAllocatorWithGenerator(gen func() (string, error), maxAttempts int) *Allocator {
	return &Allocator{generate: gen, maxAttempts: maxAttempts}
}

// Allocate returns a code not currently taken according to exists.
//
// If preferred is non-empty it performs exactly one existence check and
// fails with ErrCodeTaken if the code is in use: the caller chose the code
// deliberately, so there is nothing to retry. Otherwise it generates fresh
// random codes until one is free, up to the attempt bound.
func (a *Allocator) Allocate(ctx context.Context, preferred string, exists ExistsFunc) (string, error) {
	a.allocations.Add(1)

	if preferred != "" {
		taken, err := exists(ctx, preferred)
		if err != nil {
			return "", err
		}
		if taken {
			return "", ErrCodeTaken
		}
		return preferred, nil
	}

	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		code, err := a.generate()
		if err != nil {
			return "", err
		}

		taken, err := exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
		a.collisions.Add(1)
	}

	a.exhaustions.Add(1)
	return "", ErrAllocationExhausted
}

// Stats returns a snapshot of allocation counters.
func (a *Allocator) Stats() Stats {
	return Stats{
		Allocations: a.allocations.Load(),
		Collisions:  a.collisions.Load(),
		Exhaustions: a.exhaustions.Load(),
	}
}
