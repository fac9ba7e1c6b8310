// Copyright Project Conflux Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package executor provides the worker pools that run port computations
// on behalf of the dataflow engine.
package executor

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrShutdown is returned by Submit and Isolate after Close.
var ErrShutdown = errors.New("executor is shut down")

// An Executor runs computation units handed over by the wave driver.
// It holds two kinds of capacity: a fixed pool of worker goroutines for
// pooled units, and a bounded number of slots for isolated units, each
// of which runs on a goroutine of its own. A capacity of zero means "no
// pool of that kind"; submissions then run inline on the caller.
//
// Pooled submissions are queued, never blocking the caller: the wave
// driver must stay free to service completions while more work is
// outstanding than there are workers.
type Executor struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []func()
	closed   bool
	slots    chan struct{}
	workers  sync.WaitGroup
	isolated sync.WaitGroup
	pooled   int
	isoCap   int
}

// New returns an Executor with the given number of pooled workers and
// isolated slots. Either count may be zero.
func New(pooled, isolated int) *Executor {
	if pooled < 0 {
		pooled = 0
	}
	if isolated < 0 {
		isolated = 0
	}
	e := &Executor{pooled: pooled, isoCap: isolated}
	if pooled > 0 {
		e.cond = sync.NewCond(&e.mu)
		for i := 0; i < pooled; i++ {
			e.workers.Add(1)
			go e.worker()
		}
	}
	if isolated > 0 {
		e.slots = make(chan struct{}, isolated)
	}
	return e
}

func (e *Executor) worker() {
	defer e.workers.Done()
	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.closed {
			e.cond.Wait()
		}
		if len(e.queue) == 0 {
			e.mu.Unlock()
			return
		}
		fn := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()
		fn()
	}
}

// HasPool reports whether pooled submissions run asynchronously.
func (e *Executor) HasPool() bool { return e.pooled > 0 }

// HasIsolated reports whether isolated submissions run asynchronously.
func (e *Executor) HasIsolated() bool { return e.isoCap > 0 }

// Submit queues fn for the worker pool and returns immediately. With no
// pool configured fn runs inline before Submit returns.
func (e *Executor) Submit(fn func()) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrShutdown
	}
	if e.pooled == 0 {
		e.mu.Unlock()
		fn()
		return nil
	}
	e.queue = append(e.queue, fn)
	e.cond.Signal()
	e.mu.Unlock()
	return nil
}

// Isolate runs fn on a dedicated goroutine, bounded by the configured
// number of isolated slots. With no slots configured fn runs inline.
func (e *Executor) Isolate(fn func()) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrShutdown
	}
	if e.slots == nil {
		e.mu.Unlock()
		fn()
		return nil
	}
	e.isolated.Add(1)
	e.mu.Unlock()
	go func() {
		defer e.isolated.Done()
		e.slots <- struct{}{}
		defer func() { <-e.slots }()
		fn()
	}()
	return nil
}

// Close stops accepting submissions, waits for queued and in-flight
// work to finish and releases the pools. Close is idempotent.
func (e *Executor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	if e.cond != nil {
		e.cond.Broadcast()
	}
	e.mu.Unlock()
	e.workers.Wait()
	e.isolated.Wait()
}
