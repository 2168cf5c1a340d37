// Package pool is a typed wrapper around sync.Pool used for render buffers.
package pool

import (
	"sync"
)

type Pool[T any] struct {
	syncPool  *sync.Pool
	beforePut func(p T)
	beforeGet func(p T)
	discard   func(p T) bool
}

type PoolBuilder[T any] interface {
	applyBuilder(pool *Pool[T])
}

// WithPoolBeforePut runs before a value goes back to the pool.
type WithPoolBeforePut[T any] func(p T)

func (t WithPoolBeforePut[T]) applyBuilder(pool *Pool[T]) {
	pool.beforePut = t
}

// WithPoolBeforeGet runs on every value handed out, pooled or new.
type WithPoolBeforeGet[T any] func(p T)

func (t WithPoolBeforeGet[T]) applyBuilder(pool *Pool[T]) {
	pool.beforeGet = t
}

// WithPoolDiscard drops values it reports true for instead of pooling
// them, so one huge page does not pin its buffer forever.
type WithPoolDiscard[T any] func(p T) bool

func (t WithPoolDiscard[T]) applyBuilder(pool *Pool[T]) {
	pool.discard = t
}

func NewPool[T any](newFunc func() T, builders ...PoolBuilder[T]) Pool[T] {
	p := Pool[T]{
		syncPool: &sync.Pool{
			New: func() any {
				return newFunc()
			},
		},
	}

	for _, b := range builders {
		b.applyBuilder(&p)
	}

	return p
}

func (p *Pool[T]) Get() T {
	v := p.syncPool.Get().(T)
	if p.beforeGet != nil {
		p.beforeGet(v)
	}
	return v
}

func (p *Pool[T]) Put(v T) {
	if p.discard != nil && p.discard(v) {
		return
	}
	if p.beforePut != nil {
		p.beforePut(v)
	}
	p.syncPool.Put(v)
}
