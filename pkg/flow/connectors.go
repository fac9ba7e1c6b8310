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
	"github.com/pkg/errors"

	"github.com/projectconflux/conflux/pkg/executor"
)

// An InputConnector can terminate edges on the receiving side. It is
// implemented by *Input, *MultiInput and *MacroInput.
type InputConnector interface {
	inEnds() ([]inEnd, error)
}

// An OutputConnector can originate edges. It is implemented by
// *Output, *MultiOutput and *MacroOutput.
type OutputConnector interface {
	outEnd() (outEnd, error)
}

// An Input is the connector of a single-value input port, or the keyed
// virtual single-input view of a multi-input.
type Input struct {
	p      *port
	key    any
	hasKey bool
}

func (in *Input) inEnds() ([]inEnd, error) {
	return []inEnd{{p: in.p, key: in.key, hasKey: in.hasKey}}, nil
}

// Name returns the declared port name.
func (in *Input) Name() string { return in.p.name }

// Set invokes the setter and announces the change, realizing non-lazy
// dependents before it returns.
func (in *Input) Set(value any) error {
	n := in.p.net()
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.setInput(in.p, in.key, in.hasKey, value)
}

// Connect wires src to this input.
func (in *Input) Connect(src OutputConnector) error {
	n := in.p.net()
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.connectEnds(src, in)
}

// Disconnect removes the edge from src, delivering a pending
// announcement exactly once first. Absent edges are a no-op.
func (in *Input) Disconnect(src OutputConnector) error {
	n := in.p.net()
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.disconnectEnds(src, in)
}

// SetLaziness changes when this input pulls pending values. Raising the
// level applies retroactively to announcements already pending.
func (in *Input) SetLaziness(l Laziness) error {
	n := in.p.net()
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.setLaziness(in.p, l)
}

// SetParallelization selects where deliveries to this input run.
func (in *Input) SetParallelization(p Parallelization) {
	n := in.p.net()
	n.mu.Lock()
	defer n.mu.Unlock()
	in.p.par = p
}

// SetExecutor overrides the executor used by waves this input triggers
// or participates in. nil restores the network default.
func (in *Input) SetExecutor(e *executor.Executor) {
	n := in.p.net()
	n.mu.Lock()
	defer n.mu.Unlock()
	in.p.exec = e
}

// An Output is the connector of a single-value output port, or the
// keyed virtual single-output view of a multi-output.
type Output struct {
	p      *port
	key    any
	hasKey bool
}

func (out *Output) outEnd() (outEnd, error) {
	return outEnd{p: out.p, key: out.key, hasKey: out.hasKey}, nil
}

// Name returns the declared port name.
func (out *Output) Name() string { return out.p.name }

// Get returns the port's current value, recomputing only what the
// pending announcements require.
func (out *Output) Get() (any, error) {
	n := out.p.net()
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.fetchOutput(out.p, out.key, out.hasKey)
}

// Connect wires this output to dst.
func (out *Output) Connect(dst InputConnector) error {
	n := out.p.net()
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.connectEnds(out, dst)
}

// Disconnect removes the edge to dst. Absent edges are a no-op.
func (out *Output) Disconnect(dst InputConnector) error {
	n := out.p.net()
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.disconnectEnds(out, dst)
}

// SetCaching toggles memoization of this output's value.
func (out *Output) SetCaching(caching bool) {
	n := out.p.net()
	n.mu.Lock()
	defer n.mu.Unlock()
	out.p.caching = caching
}

// SetParallelization selects where this output's getter runs.
func (out *Output) SetParallelization(p Parallelization) {
	n := out.p.net()
	n.mu.Lock()
	defer n.mu.Unlock()
	out.p.par = p
}

// SetExecutor overrides the executor used by waves this output
// initiates. nil restores the network default.
func (out *Output) SetExecutor(e *executor.Executor) {
	n := out.p.net()
	n.mu.Lock()
	defer n.mu.Unlock()
	out.p.exec = e
}

// A MultiInput is the connector of a multi-input port: an
// insertion-ordered collection fed by any number of upstream outputs.
type MultiInput struct {
	p *port
}

func (mi *MultiInput) inEnds() ([]inEnd, error) {
	return []inEnd{{p: mi.p}}, nil
}

// Name returns the declared port name.
func (mi *MultiInput) Name() string { return mi.p.name }

// Key returns the keyed virtual single-input view: add, replace and
// remove operate on the data id bound to key.
func (mi *MultiInput) Key(key any) *Input {
	return &Input{p: mi.p, key: key, hasKey: true}
}

// Add stores a new element through the user helper and announces it.
func (mi *MultiInput) Add(value any) (DataID, error) {
	n := mi.p.net()
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return "", errors.Wrap(ErrExecutorShutdown, mi.p.String())
	}
	id, err := mi.p.add(value)
	if err != nil {
		return "", &ComputationError{Port: mi.p.String(), Err: err}
	}
	return id, n.announceFrom(mi.p, OnAnnounce)
}

// Replace overwrites the element stored under id. The port must have
// declared a Replace helper.
func (mi *MultiInput) Replace(id DataID, value any) (DataID, error) {
	n := mi.p.net()
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return "", errors.Wrap(ErrExecutorShutdown, mi.p.String())
	}
	if mi.p.replace == nil {
		return "", errors.Wrapf(ErrUnknownPort, "%s declares no replace helper", mi.p)
	}
	nid, err := mi.p.replace(id, value)
	if err != nil {
		return "", &ComputationError{Port: mi.p.String(), Err: err}
	}
	return nid, n.announceFrom(mi.p, OnAnnounce)
}

// Remove drops the element stored under id and announces the removal.
func (mi *MultiInput) Remove(id DataID) error {
	n := mi.p.net()
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return errors.Wrap(ErrExecutorShutdown, mi.p.String())
	}
	if err := mi.p.remove(id); err != nil {
		return &ComputationError{Port: mi.p.String(), Err: err}
	}
	return n.announceFrom(mi.p, OnAnnounce)
}

// Connect wires src to this multi-input. The edge owns one element in
// the collection; a multi-output source expands to one element per key.
func (mi *MultiInput) Connect(src OutputConnector) error {
	n := mi.p.net()
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.connectEnds(src, mi)
}

// Disconnect removes the edge from src along with the elements it
// contributed. Absent edges are a no-op.
func (mi *MultiInput) Disconnect(src OutputConnector) error {
	n := mi.p.net()
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.disconnectEnds(src, mi)
}

// SetLaziness changes when this multi-input pulls pending values.
func (mi *MultiInput) SetLaziness(l Laziness) error {
	n := mi.p.net()
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.setLaziness(mi.p, l)
}

// SetParallelization selects where deliveries to this input run.
func (mi *MultiInput) SetParallelization(p Parallelization) {
	n := mi.p.net()
	n.mu.Lock()
	defer n.mu.Unlock()
	mi.p.par = p
}

// SetExecutor overrides the executor for waves this input triggers.
func (mi *MultiInput) SetExecutor(e *executor.Executor) {
	n := mi.p.net()
	n.mu.Lock()
	defer n.mu.Unlock()
	mi.p.exec = e
}

// A MultiOutput is the connector of a keyed output port.
type MultiOutput struct {
	p *port
}

func (mo *MultiOutput) outEnd() (outEnd, error) {
	return outEnd{p: mo.p}, nil
}

// Name returns the declared port name.
func (mo *MultiOutput) Name() string { return mo.p.name }

// Key returns the keyed virtual single-output view, which behaves
// exactly like a plain output for the given key.
func (mo *MultiOutput) Key(key any) *Output {
	return &Output{p: mo.p, key: key, hasKey: true}
}

// Get returns the value for one key, computing it if necessary.
func (mo *MultiOutput) Get(key any) (any, error) {
	n := mo.p.net()
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.fetchOutput(mo.p, key, true)
}

// Keys returns the current key set. The port must have declared a Keys
// helper.
func (mo *MultiOutput) Keys() ([]any, error) {
	n := mo.p.net()
	n.mu.Lock()
	defer n.mu.Unlock()
	if mo.p.keysFn == nil {
		return nil, errors.Wrapf(ErrUnknownPort, "%s declares no keys helper", mo.p)
	}
	keys, err := mo.p.keysFn()
	if err != nil {
		return nil, &ComputationError{Port: mo.p.String(), Err: err}
	}
	return keys, nil
}

// Connect expands this multi-output into dst, one element per current
// key, refreshed on every wave.
func (mo *MultiOutput) Connect(dst *MultiInput) error {
	n := mo.p.net()
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.connectEnds(mo, dst)
}

// Disconnect removes the expansion into dst along with all elements it
// contributed. Absent edges are a no-op.
func (mo *MultiOutput) Disconnect(dst *MultiInput) error {
	n := mo.p.net()
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.disconnectEnds(mo, dst)
}

// SetCaching toggles per-key memoization.
func (mo *MultiOutput) SetCaching(caching bool) {
	n := mo.p.net()
	n.mu.Lock()
	defer n.mu.Unlock()
	mo.p.caching = caching
}

// SetParallelization selects where this output's getter runs. Distinct
// keys compute concurrently under Pooled and Isolated.
func (mo *MultiOutput) SetParallelization(p Parallelization) {
	n := mo.p.net()
	n.mu.Lock()
	defer n.mu.Unlock()
	mo.p.par = p
}

// SetExecutor overrides the executor for waves this output initiates.
func (mo *MultiOutput) SetExecutor(e *executor.Executor) {
	n := mo.p.net()
	n.mu.Lock()
	defer n.mu.Unlock()
	mo.p.exec = e
}
