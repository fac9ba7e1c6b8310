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

	"github.com/pkg/errors"
)

// A Registry is the per-processing-object table of declared ports.
// Declarations return connector handles which the owning object keeps;
// the registry itself is only consulted for cross-references and
// dynamic lookups. Declaration mistakes (empty or duplicate names,
// missing required callables) panic, as they are programming errors on
// the same level as a malformed struct tag.
type Registry struct {
	net    *Network
	name   string
	ports  []*port
	byName map[string]*port
}

// NewRegistry returns an empty port registry for one processing object.
// The name appears in log fields and error messages.
func NewRegistry(net *Network, name string) *Registry {
	if net == nil {
		panic("flow: NewRegistry requires a Network")
	}
	return &Registry{net: net, name: name, byName: map[string]*port{}}
}

func (r *Registry) newPort(name string, kind portKind) *port {
	if name == "" {
		panic(fmt.Sprintf("flow: %s declaration with empty name on %q", kind, r.name))
	}
	if _, ok := r.byName[name]; ok {
		panic(fmt.Sprintf("flow: duplicate port %q on %q", name, r.name))
	}
	p := &port{reg: r, name: name, kind: kind, seq: r.net.nextPortSeq()}
	r.ports = append(r.ports, p)
	r.byName[name] = p
	return p
}

// InputSpec declares a single-value input port.
type InputSpec struct {
	// Setter receives the delivered value. Required.
	Setter func(value any) error

	// Affects names the outputs of the same registry that depend on
	// this input.
	Affects []string

	Laziness        Laziness
	Parallelization Parallelization

	// AnnounceCondition, when it returns false, suppresses an
	// announcement arriving over an edge before any downstream tagging
	// happens. Direct calls are unaffected.
	AnnounceCondition func() bool

	// NotifyCondition, when it returns false, discards a fetched value
	// instead of handing it to the Setter; the value is retained and
	// re-emitted once a later wave passes the condition.
	NotifyCondition func(value any) bool
}

// Input declares a single-value input port and returns its connector.
func (r *Registry) Input(name string, spec InputSpec) *Input {
	if spec.Setter == nil {
		panic(fmt.Sprintf("flow: input %q on %q requires a Setter", name, r.name))
	}
	p := r.newPort(name, kindInput)
	p.setter = spec.Setter
	p.affectNames = spec.Affects
	p.laziness = spec.Laziness
	p.par = spec.Parallelization
	p.announceWhen = spec.AnnounceCondition
	p.notifyWhen = spec.NotifyCondition
	return &Input{p: p}
}

// OutputSpec declares a single-value output port.
type OutputSpec struct {
	// Getter computes the port's value. Required.
	Getter func() (any, error)

	// NoCache disables memoization; the getter then runs on every
	// fetch, though still at most once per wave.
	NoCache bool

	Parallelization Parallelization
}

// Output declares a single-value output port and returns its connector.
func (r *Registry) Output(name string, spec OutputSpec) *Output {
	if spec.Getter == nil {
		panic(fmt.Sprintf("flow: output %q on %q requires a Getter", name, r.name))
	}
	p := r.newPort(name, kindOutput)
	p.getter = spec.Getter
	p.caching = !spec.NoCache
	p.par = spec.Parallelization
	return &Output{p: p}
}

// MultiInputSpec declares a multi-input port.
type MultiInputSpec struct {
	// Add stores a new element and returns its DataID. Required.
	Add func(value any) (DataID, error)

	// Remove drops the element stored under the DataID. Required.
	Remove func(id DataID) error

	// Replace overwrites an element in place, preserving its position.
	// Optional; without it an upstream re-emission is modelled as
	// Remove followed by Add to the tail.
	Replace func(id DataID, value any) (DataID, error)

	Affects []string

	Laziness        Laziness
	Parallelization Parallelization

	AnnounceCondition func() bool
	NotifyCondition   func(value any) bool
}

// MultiInput declares a multi-input port and returns its connector.
func (r *Registry) MultiInput(name string, spec MultiInputSpec) *MultiInput {
	if spec.Add == nil {
		panic(fmt.Sprintf("flow: multi-input %q on %q requires an Add helper", name, r.name))
	}
	if spec.Remove == nil {
		panic(fmt.Sprintf("flow: multi-input %q on %q requires a Remove helper", name, r.name))
	}
	p := r.newPort(name, kindMultiInput)
	p.add = spec.Add
	p.remove = spec.Remove
	p.replace = spec.Replace
	p.affectNames = spec.Affects
	p.laziness = spec.Laziness
	p.par = spec.Parallelization
	p.announceWhen = spec.AnnounceCondition
	p.notifyWhen = spec.NotifyCondition
	return &MultiInput{p: p}
}

// MultiOutputSpec declares a multi-output port.
type MultiOutputSpec struct {
	// Getter computes the value for one key. Required.
	Getter func(key any) (any, error)

	// Keys yields the current key set. Optional; without it the port
	// has an empty key set, so a connection to a multi-input expands to
	// no elements. Keyed views (MultiOutput.Key) work either way.
	Keys func() ([]any, error)

	NoCache bool

	Parallelization Parallelization
}

// MultiOutput declares a multi-output port and returns its connector.
func (r *Registry) MultiOutput(name string, spec MultiOutputSpec) *MultiOutput {
	if spec.Getter == nil {
		panic(fmt.Sprintf("flow: multi-output %q on %q requires a Getter", name, r.name))
	}
	p := r.newPort(name, kindMultiOutput)
	p.keyedGetter = spec.Getter
	p.keysFn = spec.Keys
	p.caching = !spec.NoCache
	p.par = spec.Parallelization
	return &MultiOutput{p: p}
}

// Port returns the connector declared under name, one of *Input,
// *Output, *MultiInput, *MultiOutput, *MacroInput or *MacroOutput.
func (r *Registry) Port(name string) (any, error) {
	p, ok := r.byName[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownPort, "%s.%s", r.name, name)
	}
	switch p.kind {
	case kindInput:
		return &Input{p: p}, nil
	case kindOutput:
		return &Output{p: p}, nil
	case kindMultiInput:
		return &MultiInput{p: p}, nil
	case kindMultiOutput:
		return &MultiOutput{p: p}, nil
	case kindMacroInput:
		return &MacroInput{p: p}, nil
	case kindMacroOutput:
		return &MacroOutput{p: p}, nil
	}
	return nil, errors.Wrapf(ErrUnknownPort, "%s.%s", r.name, name)
}

// inputsAffecting returns, in declaration order, the input ports whose
// declared affect set contains out.
func (r *Registry) inputsAffecting(out *port) ([]*port, error) {
	var ins []*port
	for _, p := range r.ports {
		if !p.isInputKind() || p.kind == kindMacroInput {
			continue
		}
		affected, err := p.resolveAffects()
		if err != nil {
			return nil, err
		}
		for _, a := range affected {
			if a == out {
				ins = append(ins, p)
				break
			}
		}
	}
	return ins, nil
}

// Close tears the object down: every edge touching one of its ports is
// disconnected. Pending announcements over those edges are cancelled,
// and contributions to other objects' multi-inputs are removed.
func (r *Registry) Close() error {
	n := r.net
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, p := range r.ports {
		for len(p.outEdges) > 0 {
			if err := n.teardownEdge(p.outEdges[0]); err != nil {
				return err
			}
		}
		for len(p.inEdges) > 0 {
			if err := n.teardownEdge(p.inEdges[0]); err != nil {
				return err
			}
		}
	}
	return nil
}
