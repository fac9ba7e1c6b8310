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

package flow

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projectconflux/conflux/pkg/executor"
)

// sleepObj sleeps in its getter to make wall-clock parallelism
// observable.
type sleepObj struct {
	name     string
	val      any
	delay    time.Duration
	setValue *Input
	getValue *Output
}

func newSleepObj(net *Network, name string, delay time.Duration, par Parallelization) *sleepObj {
	t := &sleepObj{name: name, delay: delay}
	reg := NewRegistry(net, name)
	t.setValue = reg.Input("set_value", InputSpec{
		Setter:  func(v any) error { t.val = v; return nil },
		Affects: []string{"get_value"},
	})
	t.getValue = reg.Output("get_value", OutputSpec{
		Getter: func() (any, error) {
			time.Sleep(t.delay)
			return t.val, nil
		},
		Parallelization: par,
	})
	return t
}

func TestIndependentBranchesRunConcurrently(t *testing.T) {
	exec := executor.New(4, 0)
	defer exec.Close()
	net := NewNetwork(WithExecutor(exec))
	log := &callLog{}

	src := newMultipleOutputs(net, log, "src")
	s1 := newSleepObj(net, "s1", 200*time.Millisecond, Pooled)
	s2 := newSleepObj(net, "s2", 200*time.Millisecond, Pooled)
	sink := newMultipleInputs(net, log, "sink")
	require.NoError(t, s1.setValue.Connect(src.getValue))
	require.NoError(t, s2.setValue.Connect(src.getBool))
	require.NoError(t, sink.setValue1.Connect(s1.getValue))
	require.NoError(t, sink.setValue2.Connect(s2.getValue))

	require.NoError(t, src.setValue.Set(1.0))
	start := time.Now()
	got, err := sink.getValues.Get()
	require.NoError(t, err)
	elapsed := time.Since(start)

	assert.Equal(t, []any{1.0, true}, got)
	// both branches sleep 200ms; running them in sequence would take
	// at least 400ms
	assert.Less(t, elapsed, 390*time.Millisecond)
	assert.GreaterOrEqual(t, elapsed, 200*time.Millisecond)
}

func TestMultiOutputKeysComputeConcurrently(t *testing.T) {
	exec := executor.New(4, 0)
	defer exec.Close()
	net := NewNetwork(WithExecutor(exec))
	log := &callLog{}

	val := 0
	reg := NewRegistry(net, "slowkeys")
	reg.Input("set_value", InputSpec{
		Setter:  func(v any) error { val = v.(int); return nil },
		Affects: []string{"get_value"},
	})
	getValue := reg.MultiOutput("get_value", MultiOutputSpec{
		Getter: func(key any) (any, error) {
			time.Sleep(200 * time.Millisecond)
			return val * key.(int), nil
		},
		Keys:            func() ([]any, error) { return []any{1, 2, 3}, nil },
		Parallelization: Pooled,
	})
	l := newMultiObj(net, log, "l", true)
	require.NoError(t, getValue.Connect(l.addValue))

	start := time.Now()
	got, err := l.getValues.Get()
	require.NoError(t, err)
	elapsed := time.Since(start)

	assert.Len(t, got, 3)
	// three keys at 200ms each: sequential execution would need 600ms
	assert.Less(t, elapsed, 590*time.Millisecond)
}

func TestFanOutWiderThanPoolCompletes(t *testing.T) {
	// more concurrently-ready pooled units than workers must queue,
	// not wedge the driver
	exec := executor.New(1, 0)
	defer exec.Close()
	net := NewNetwork(WithExecutor(exec))
	log := &callLog{}

	src := newMultipleOutputs(net, log, "src")
	s1 := newSleepObj(net, "s1", 50*time.Millisecond, Pooled)
	s2 := newSleepObj(net, "s2", 50*time.Millisecond, Pooled)
	sink := newMultipleInputs(net, log, "sink")
	require.NoError(t, s1.setValue.Connect(src.getValue))
	require.NoError(t, s2.setValue.Connect(src.getBool))
	require.NoError(t, sink.setValue1.Connect(s1.getValue))
	require.NoError(t, sink.setValue2.Connect(s2.getValue))

	require.NoError(t, src.setValue.Set(1.0))
	got, err := sink.getValues.Get()
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, true}, got)
}

func TestIsolatedClassRunsOffPool(t *testing.T) {
	exec := executor.New(1, 2)
	defer exec.Close()
	net := NewNetwork(WithExecutor(exec))

	s1 := newSleepObj(net, "s1", 200*time.Millisecond, Isolated)
	s2 := newSleepObj(net, "s2", 200*time.Millisecond, Isolated)
	log := &callLog{}
	sink := newMultipleInputs(net, log, "sink")
	require.NoError(t, sink.setValue1.Connect(s1.getValue))
	require.NoError(t, sink.setValue2.Connect(s2.getValue))
	require.NoError(t, s1.setValue.Set(1))
	require.NoError(t, s2.setValue.Set(2))

	start := time.Now()
	got, err := sink.getValues.Get()
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2}, got)
	assert.Less(t, time.Since(start), 390*time.Millisecond)
}

func TestParallelizationMatrixComputesCorrectly(t *testing.T) {
	// correctness must not depend on where computations run
	for _, pooled := range []int{0, 2} {
		for _, par := range []Parallelization{Sequential, Pooled, Isolated} {
			t.Run(fmt.Sprintf("pooled=%d par=%s", pooled, par), func(t *testing.T) {
				exec := executor.New(pooled, pooled)
				defer exec.Close()
				net := NewNetwork(WithExecutor(exec))
				log := &callLog{}
				t1 := newSimple(net, log, "t1")
				m := newMultiObj(net, log, "m", true)
				t3 := newSimple(net, log, "t3")
				require.NoError(t, m.addValue.Connect(t1.getValue))
				require.NoError(t, t3.setValue.Connect(m.getValues))
				t1.getValue.SetParallelization(par)
				m.addValue.SetParallelization(par)
				t3.setValue.SetParallelization(par)

				for i := 0; i < 3; i++ {
					require.NoError(t, t1.setValue.Set(i))
					got, err := t3.getValue.Get()
					require.NoError(t, err)
					assert.Equal(t, []any{i}, got)
				}
			})
		}
	}
}
