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

package executor

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitRunsOnPool(t *testing.T) {
	e := New(2, 0)
	defer e.Close()
	assert.True(t, e.HasPool())
	assert.False(t, e.HasIsolated())

	var wg sync.WaitGroup
	var count atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		require.NoError(t, e.Submit(func() {
			defer wg.Done()
			count.Add(1)
		}))
	}
	wg.Wait()
	assert.Equal(t, int32(10), count.Load())
}

func TestSubmitInlineWithoutPool(t *testing.T) {
	e := New(0, 0)
	defer e.Close()
	assert.False(t, e.HasPool())

	ran := false
	require.NoError(t, e.Submit(func() { ran = true }))
	assert.True(t, ran)
}

func TestIsolateBoundedConcurrency(t *testing.T) {
	e := New(0, 2)
	defer e.Close()
	assert.True(t, e.HasIsolated())

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		require.NoError(t, e.Isolate(func() {
			defer wg.Done()
			now := running.Add(1)
			for {
				p := peak.Load()
				if now <= p || peak.CompareAndSwap(p, now) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			running.Add(-1)
		}))
	}
	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestCloseDrainsAndRefuses(t *testing.T) {
	e := New(2, 2)
	var count atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		require.NoError(t, e.Submit(func() {
			defer wg.Done()
			time.Sleep(10 * time.Millisecond)
			count.Add(1)
		}))
		require.NoError(t, e.Isolate(func() {
			defer wg.Done()
			time.Sleep(10 * time.Millisecond)
			count.Add(1)
		}))
	}
	e.Close()
	wg.Wait()
	assert.Equal(t, int32(8), count.Load())

	assert.ErrorIs(t, e.Submit(func() {}), ErrShutdown)
	assert.ErrorIs(t, e.Isolate(func() {}), ErrShutdown)

	// Close is idempotent
	e.Close()
}

func TestNegativeCountsClampToInline(t *testing.T) {
	e := New(-1, -1)
	defer e.Close()
	assert.False(t, e.HasPool())
	assert.False(t, e.HasIsolated())
}
