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

import "github.com/pkg/errors"

// An edge is a directed connection from an output port (optionally
// keyed) to an input port (optionally keyed). Edges into multi-inputs
// own the data ids of the elements they contributed.
type edge struct {
	src       *port
	srcKey    any
	hasSrcKey bool

	dst       *port
	dstKey    any
	hasDstKey bool

	// data id owned by this edge in a multi-input target
	dataID  DataID
	hasData bool

	// per-key data ids of an expanding multi-output → multi-input edge
	expanded map[any]DataID

	// pending marks an announced, not yet delivered change. counted
	// records whether the pendingness is still accounted for in the
	// dependents' announcement causes. A value realized but withheld
	// by a notify condition is retained for later re-emission.
	pending         bool
	counted         bool
	pendingValue    any
	hasPendingValue bool
}

// outEnd / inEnd are resolved connection endpoints.
type outEnd struct {
	p      *port
	key    any
	hasKey bool
}

type inEnd struct {
	p      *port
	key    any
	hasKey bool
}

// validateEdge enforces the port-kind compatibility rules.
func validateEdge(o outEnd, i inEnd) error {
	switch o.p.kind {
	case kindOutput:
		// plain outputs connect to anything on the input side
	case kindMultiOutput:
		if !o.hasKey {
			switch {
			case i.p.kind == kindInput:
				return errors.Wrapf(ErrKindMismatch,
					"%s is a multi-output and needs a key designator to feed single input %s", o.p, i.p)
			case i.p.kind == kindMultiInput && i.hasKey:
				return errors.Wrapf(ErrKindMismatch,
					"%s is a multi-output and needs a key designator to feed keyed input %s", o.p, i.p)
			}
		}
	default:
		return errors.Wrapf(ErrKindMismatch, "%s is not an output", o.p)
	}
	if !i.p.isInputKind() || i.p.kind == kindMacroInput {
		return errors.Wrapf(ErrKindMismatch, "%s is not an input", i.p)
	}
	if i.p.kind == kindInput && i.hasKey {
		return errors.Wrapf(ErrKindMismatch, "%s takes no key designator", i.p)
	}
	return nil
}

func sameEndpoints(e *edge, o outEnd, i inEnd) bool {
	return e.src == o.p && e.hasSrcKey == o.hasKey && (!o.hasKey || e.srcKey == o.key) &&
		e.dst == i.p && e.hasDstKey == i.hasKey && (!i.hasKey || e.dstKey == i.key)
}

func (n *Network) findEdge(o outEnd, i inEnd) *edge {
	for _, e := range o.p.outEdges {
		if sameEndpoints(e, o, i) {
			return e
		}
	}
	return nil
}

// connectEnds wires every input end to the output end, announces
// through the new edges and realizes OnConnect sinks in a single wave.
// Called with the network lock held.
func (n *Network) connectEnds(src OutputConnector, dst InputConnector) error {
	o, err := src.outEnd()
	if err != nil {
		return err
	}
	ins, err := dst.inEnds()
	if err != nil {
		return err
	}
	for _, i := range ins {
		if err := validateEdge(o, i); err != nil {
			return err
		}
		if n.findEdge(o, i) != nil {
			return errors.Wrapf(ErrDuplicateEdge, "%s -> %s", o.p, i.p)
		}
	}
	sinks := &nonLazySinks{threshold: OnConnect}
	for _, i := range ins {
		e := &edge{
			src: o.p, srcKey: o.key, hasSrcKey: o.hasKey,
			dst: i.p, dstKey: i.key, hasDstKey: i.hasKey,
		}
		o.p.outEdges = append(o.p.outEdges, e)
		i.p.inEdges = append(i.p.inEdges, e)
		n.logDebug("edge connected", "src", e.src.String(), "dst", e.dst.String())
		if err := n.announceEdge(e, sinks); err != nil {
			return err
		}
	}
	return n.realizeSinks(sinks, o.p)
}

// disconnectEnds removes the edges between the endpoints. A pending
// announcement is delivered exactly once before the edge goes away;
// multi-input contributions are removed through the user helper.
// Disconnecting an absent edge is a no-op. Called with the lock held.
func (n *Network) disconnectEnds(src OutputConnector, dst InputConnector) error {
	o, err := src.outEnd()
	if err != nil {
		return err
	}
	ins, err := dst.inEnds()
	if err != nil {
		return err
	}
	for _, i := range ins {
		e := n.findEdge(o, i)
		if e == nil {
			continue
		}
		if e.pending && (e.counted || e.hasPendingValue) {
			w := n.newWave(e.dst.execOr(n.exec))
			w.requireEdge(e)
			err := n.runWave(w)
			if err != nil {
				return err
			}
		}
		if err := n.teardownEdge(e); err != nil {
			return err
		}
	}
	return nil
}

// teardownEdge unlinks e without delivering pending values. Data ids
// contributed to a multi-input are removed, announcing the removal to
// the target's dependents.
func (n *Network) teardownEdge(e *edge) error {
	if e.pending && e.counted {
		if err := n.retractEdge(e, false); err != nil {
			return err
		}
	}
	e.pending = false
	e.counted = false
	e.pendingValue = nil
	e.hasPendingValue = false

	unlink(e)
	n.logDebug("edge disconnected", "src", e.src.String(), "dst", e.dst.String())

	if e.dst.kind != kindMultiInput {
		return nil
	}
	var ids []DataID
	if e.hasData {
		ids = append(ids, e.dataID)
		e.hasData = false
	}
	if e.hasDstKey {
		if id, ok := e.dst.keyDataID(e.dstKey); ok {
			ids = append(ids, id)
			delete(e.dst.keyData, e.dstKey)
		}
	}
	for _, id := range e.expanded {
		ids = append(ids, id)
	}
	e.expanded = nil
	if len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		if err := e.dst.remove(id); err != nil {
			return &ComputationError{Port: e.dst.String(), Err: err}
		}
	}
	return n.announceFrom(e.dst, OnAnnounce)
}

func unlink(e *edge) {
	e.src.outEdges = removeEdge(e.src.outEdges, e)
	e.dst.inEdges = removeEdge(e.dst.inEdges, e)
}

func removeEdge(edges []*edge, e *edge) []*edge {
	for i, x := range edges {
		if x == e {
			return append(edges[:i], edges[i+1:]...)
		}
	}
	return edges
}
