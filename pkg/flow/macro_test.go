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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// macroObj hides a small processing network behind macro connectors:
// two simple inputs feeding a combining stage whose outputs are
// re-exported.
type macroObj struct {
	input1    *simpleObj
	input2    *simpleObj
	inner     *multipleInputsObj
	setInput1 *MacroInput
	setBoth   *MacroInput
	getOutput *MacroOutput
}

func newMacroObj(net *Network, log *callLog, name string) *macroObj {
	m := &macroObj{
		input1: newSimple(net, log, name+".in1"),
		input2: newSimple(net, log, name+".in2"),
		inner:  newMultipleInputs(net, log, name+".hidden"),
	}
	if err := m.inner.setValue1.Connect(m.input1.getValue); err != nil {
		panic(err)
	}
	if err := m.inner.setValue2.Connect(m.input2.getValue); err != nil {
		panic(err)
	}
	reg := NewRegistry(net, name)
	m.setInput1 = reg.MacroInput("set_input1", m.input1.setValue)
	m.setBoth = reg.MacroInput("set_both", m.input1.setValue, m.input2.setValue)
	m.getOutput = reg.MacroOutput("get_output", m.inner.getValues)
	return m
}

func TestMacroSetDispatchesToInner(t *testing.T) {
	net := NewNetwork()
	log := &callLog{}
	m := newMacroObj(net, log, "m")

	require.NoError(t, m.setInput1.Set(1))
	got, err := m.getOutput.Get()
	require.NoError(t, err)
	assert.Equal(t, []any{1, nil}, got)

	// a macro spanning two inners dispatches in declaration order
	require.NoError(t, m.setBoth.Set(7))
	got, err = m.getOutput.Get()
	require.NoError(t, err)
	assert.Equal(t, []any{7, 7}, got)
}

func TestMacroInputConnection(t *testing.T) {
	net := NewNetwork()
	log := &callLog{}
	m := newMacroObj(net, log, "m")
	src := newSimple(net, log, "src")

	// connecting to the macro connects to every exported inner input
	require.NoError(t, m.setBoth.Connect(src.getValue))
	require.NoError(t, src.setValue.Set(3))
	got, err := m.getOutput.Get()
	require.NoError(t, err)
	assert.Equal(t, []any{3, 3}, got)

	require.NoError(t, m.setBoth.Disconnect(src.getValue))
	require.NoError(t, src.setValue.Set(4))
	got, err = m.getOutput.Get()
	require.NoError(t, err)
	assert.Equal(t, []any{3, 3}, got)
}

func TestMacroOutputConnection(t *testing.T) {
	net := NewNetwork()
	log := &callLog{}
	m := newMacroObj(net, log, "m")
	dst := newSimple(net, log, "dst")

	require.NoError(t, m.getOutput.Connect(dst.setValue))
	require.NoError(t, m.setBoth.Set(5))
	got, err := dst.getValue.Get()
	require.NoError(t, err)
	assert.Equal(t, []any{5, 5}, got)
}

func TestMacroNesting(t *testing.T) {
	net := NewNetwork()
	log := &callLog{}
	m := newMacroObj(net, log, "m")

	// a macro exporting another macro flattens on use
	reg := NewRegistry(net, "outer")
	outerIn := reg.MacroInput("set_input", m.setBoth)
	outerOut := reg.MacroOutput("get_output", m.getOutput)

	require.NoError(t, outerIn.Set(9))
	got, err := outerOut.Get()
	require.NoError(t, err)
	assert.Equal(t, []any{9, 9}, got)

	src := newSimple(net, log, "src")
	require.NoError(t, outerIn.Connect(src.getValue))
	require.NoError(t, src.setValue.Set(11))
	got, err = outerOut.Get()
	require.NoError(t, err)
	assert.Equal(t, []any{11, 11}, got)
}

func TestMacroConfigurationFanOut(t *testing.T) {
	net := NewNetwork()
	log := &callLog{}
	m := newMacroObj(net, log, "m")

	require.NoError(t, m.setBoth.SetLaziness(OnAnnounce))
	assert.Equal(t, OnAnnounce, m.input1.setValue.p.laziness)
	assert.Equal(t, OnAnnounce, m.input2.setValue.p.laziness)

	require.NoError(t, m.setBoth.SetParallelization(Pooled))
	assert.Equal(t, Pooled, m.input1.setValue.p.par)
	assert.Equal(t, Pooled, m.input2.setValue.p.par)

	// idempotent: applying the same setting twice is harmless
	require.NoError(t, m.setBoth.SetParallelization(Pooled))
	assert.Equal(t, Pooled, m.input2.setValue.p.par)

	require.NoError(t, m.getOutput.SetCaching(false))
	assert.False(t, m.inner.getValues.p.caching)
	require.NoError(t, m.getOutput.SetCaching(true))
	assert.True(t, m.inner.getValues.p.caching)
}

func TestMacroPortLookup(t *testing.T) {
	net := NewNetwork()
	log := &callLog{}
	m := newMacroObj(net, log, "m")

	reg := NewRegistry(net, "holder")
	reg.MacroInput("set_input", m.setInput1)
	p, err := reg.Port("set_input")
	require.NoError(t, err)
	_, ok := p.(*MacroInput)
	assert.True(t, ok)
}
