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

	"github.com/projectconflux/conflux/pkg/executor"
)

// MacroInput declares a port that transparently re-exports the inner
// input connectors of a nested sub-graph. Macros may nest; the
// expansion flattens when edges are made.
func (r *Registry) MacroInput(name string, inner ...InputConnector) *MacroInput {
	if len(inner) == 0 {
		panic(fmt.Sprintf("flow: macro input %q on %q exports no inner ports", name, r.name))
	}
	p := r.newPort(name, kindMacroInput)
	p.macroIn = inner
	return &MacroInput{p: p}
}

// MacroOutput declares a port that re-exports one inner output
// connector of a nested sub-graph.
func (r *Registry) MacroOutput(name string, inner OutputConnector) *MacroOutput {
	if inner == nil {
		panic(fmt.Sprintf("flow: macro output %q on %q exports no inner port", name, r.name))
	}
	p := r.newPort(name, kindMacroOutput)
	p.macroOut = inner
	return &MacroOutput{p: p}
}

// A MacroInput fans invocations, connections and configuration out to
// the inner input ports it exports, in declaration order.
type MacroInput struct {
	p *port
}

func (mi *MacroInput) inEnds() ([]inEnd, error) {
	var ends []inEnd
	for _, inner := range mi.p.macroIn {
		es, err := inner.inEnds()
		if err != nil {
			return nil, err
		}
		ends = append(ends, es...)
	}
	return ends, nil
}

// Name returns the declared port name.
func (mi *MacroInput) Name() string { return mi.p.name }

// Set dispatches the value to every exported inner setter in
// declaration order.
func (mi *MacroInput) Set(value any) error {
	n := mi.p.net()
	n.mu.Lock()
	defer n.mu.Unlock()
	ends, err := mi.inEnds()
	if err != nil {
		return err
	}
	for _, end := range ends {
		if err := n.setInput(end.p, end.key, end.hasKey, value); err != nil {
			return err
		}
	}
	return nil
}

// Connect wires src to every exported inner input.
func (mi *MacroInput) Connect(src OutputConnector) error {
	n := mi.p.net()
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.connectEnds(src, mi)
}

// Disconnect removes the edges from src to the exported inner inputs.
func (mi *MacroInput) Disconnect(src OutputConnector) error {
	n := mi.p.net()
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.disconnectEnds(src, mi)
}

// SetLaziness forwards the level to every exported port.
func (mi *MacroInput) SetLaziness(l Laziness) error {
	n := mi.p.net()
	n.mu.Lock()
	defer n.mu.Unlock()
	ends, err := mi.inEnds()
	if err != nil {
		return err
	}
	for _, end := range ends {
		if err := n.setLaziness(end.p, l); err != nil {
			return err
		}
	}
	return nil
}

// SetParallelization forwards the class to every exported port.
func (mi *MacroInput) SetParallelization(p Parallelization) error {
	n := mi.p.net()
	n.mu.Lock()
	defer n.mu.Unlock()
	ends, err := mi.inEnds()
	if err != nil {
		return err
	}
	for _, end := range ends {
		end.p.par = p
	}
	return nil
}

// SetExecutor forwards the executor to every exported port.
func (mi *MacroInput) SetExecutor(e *executor.Executor) error {
	n := mi.p.net()
	n.mu.Lock()
	defer n.mu.Unlock()
	ends, err := mi.inEnds()
	if err != nil {
		return err
	}
	for _, end := range ends {
		end.p.exec = e
	}
	return nil
}

// A MacroOutput forwards to the single inner output it exports.
type MacroOutput struct {
	p *port
}

func (mo *MacroOutput) outEnd() (outEnd, error) {
	return mo.p.macroOut.outEnd()
}

// Name returns the declared port name.
func (mo *MacroOutput) Name() string { return mo.p.name }

// Get fetches the exported inner output.
func (mo *MacroOutput) Get() (any, error) {
	n := mo.p.net()
	n.mu.Lock()
	defer n.mu.Unlock()
	end, err := mo.outEnd()
	if err != nil {
		return nil, err
	}
	return n.fetchOutput(end.p, end.key, end.hasKey)
}

// Connect wires the exported inner output to dst.
func (mo *MacroOutput) Connect(dst InputConnector) error {
	n := mo.p.net()
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.connectEnds(mo, dst)
}

// Disconnect removes the edge from the exported inner output to dst.
func (mo *MacroOutput) Disconnect(dst InputConnector) error {
	n := mo.p.net()
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.disconnectEnds(mo, dst)
}

// SetCaching forwards to the exported port.
func (mo *MacroOutput) SetCaching(caching bool) error {
	n := mo.p.net()
	n.mu.Lock()
	defer n.mu.Unlock()
	end, err := mo.outEnd()
	if err != nil {
		return err
	}
	end.p.caching = caching
	return nil
}

// SetParallelization forwards to the exported port.
func (mo *MacroOutput) SetParallelization(p Parallelization) error {
	n := mo.p.net()
	n.mu.Lock()
	defer n.mu.Unlock()
	end, err := mo.outEnd()
	if err != nil {
		return err
	}
	end.p.par = p
	return nil
}

// SetExecutor forwards to the exported port.
func (mo *MacroOutput) SetExecutor(e *executor.Executor) error {
	n := mo.p.net()
	n.mu.Lock()
	defer n.mu.Unlock()
	end, err := mo.outEnd()
	if err != nil {
		return err
	}
	end.p.exec = e
	return nil
}
