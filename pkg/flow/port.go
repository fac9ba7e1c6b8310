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

type portKind int

const (
	kindInput portKind = iota
	kindOutput
	kindMultiInput
	kindMultiOutput
	kindMacroInput
	kindMacroOutput
)

func (k portKind) String() string {
	switch k {
	case kindInput:
		return "input"
	case kindOutput:
		return "output"
	case kindMultiInput:
		return "multi-input"
	case kindMultiOutput:
		return "multi-output"
	case kindMacroInput:
		return "macro-input"
	case kindMacroOutput:
		return "macro-output"
	}
	return "unknown"
}

// port is the per-registry record of one connector: a tagged variant
// carrying the boxed user callables plus the descriptor (laziness,
// caching, parallelization, condition predicates) and its adjacency.
type port struct {
	reg  *Registry
	name string
	kind portKind
	seq  int

	// input side
	setter       func(any) error
	add          func(any) (DataID, error)
	replace      func(DataID, any) (DataID, error)
	remove       func(DataID) error
	laziness     Laziness
	announceWhen func() bool
	notifyWhen   func(any) bool
	affectNames  []string
	affects      []*port

	// output side
	getter      func() (any, error)
	keyedGetter func(any) (any, error)
	keysFn      func() ([]any, error)
	caching     bool
	slot        slot

	par  Parallelization
	exec *executor.Executor

	// adjacency; outEdges/inEdges are in connect order
	outEdges []*edge
	inEdges  []*edge

	// per-key data ids of a multi-input's keyed virtual single inputs
	keyData map[any]DataID

	// macro expansion targets
	macroIn  []InputConnector
	macroOut OutputConnector
}

func (p *port) String() string { return p.reg.name + "." + p.name }

func (p *port) net() *Network { return p.reg.net }

func (p *port) isInputKind() bool {
	return p.kind == kindInput || p.kind == kindMultiInput || p.kind == kindMacroInput
}

func (p *port) isOutputKind() bool {
	return p.kind == kindOutput || p.kind == kindMultiOutput || p.kind == kindMacroOutput
}

// resolveAffects resolves the declared affected-output names against
// the registry. Resolution is deferred so declarations may reference
// outputs declared later.
func (p *port) resolveAffects() ([]*port, error) {
	if p.affects != nil || len(p.affectNames) == 0 {
		return p.affects, nil
	}
	resolved := make([]*port, 0, len(p.affectNames))
	for _, name := range p.affectNames {
		t, ok := p.reg.byName[name]
		if !ok {
			return nil, errors.Wrapf(ErrUnknownPort, "%s affects %q", p, name)
		}
		if !t.isOutputKind() || t.kind == kindMacroOutput {
			return nil, errors.Wrapf(ErrKindMismatch, "%s affects %s %q", p, t.kind, name)
		}
		resolved = append(resolved, t)
	}
	p.affects = resolved
	return resolved, nil
}

// keyDataID returns the data id bound to a keyed virtual single input.
func (p *port) keyDataID(key any) (DataID, bool) {
	id, ok := p.keyData[key]
	return id, ok
}

func (p *port) setKeyData(key any, id DataID) {
	if p.keyData == nil {
		p.keyData = map[any]DataID{}
	}
	p.keyData[key] = id
}

// execOr returns the port's own executor or the given fallback.
func (p *port) execOr(fallback *executor.Executor) *executor.Executor {
	if p.exec != nil {
		return p.exec
	}
	return fallback
}
