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

import "github.com/projectconflux/conflux/pkg/executor"

// nonLazySinks collects the pending edges whose target inputs request
// immediate realization of the wave. The threshold is the situation the
// targets' laziness is compared against: OnAnnounce for setter-driven
// waves, OnConnect for edge creation.
type nonLazySinks struct {
	threshold Laziness
	edges     []*edge
}

func (s *nonLazySinks) add(e *edge, l Laziness) {
	if l >= s.threshold {
		s.edges = append(s.edges, e)
	}
}

// announceFrom announces the outputs affected by a changed input and
// realizes the resulting non-lazy sinks. Called with the lock held.
func (n *Network) announceFrom(in *port, threshold Laziness) error {
	sinks := &nonLazySinks{threshold: threshold}
	affected, err := in.resolveAffects()
	if err != nil {
		return err
	}
	for _, out := range affected {
		if err := n.announceOutput(out, sinks); err != nil {
			return err
		}
	}
	return n.realizeSinks(sinks, in)
}

// announceOutput tags out announced and walks its edge list. A second
// announcement of an already-announced output adds a cause but does not
// walk again.
func (n *Network) announceOutput(out *port, sinks *nonLazySinks) error {
	if out.slot.announce(out.kind == kindMultiOutput) {
		return nil
	}
	n.logDebug("announced", "output", out.String())
	for _, e := range out.outEdges {
		if err := n.announceEdge(e, sinks); err != nil {
			return err
		}
	}
	return nil
}

// announceEdge propagates an announcement over one edge. The target's
// announce condition can stop the branch before any state is recorded.
func (n *Network) announceEdge(e *edge, sinks *nonLazySinks) error {
	t := e.dst
	if t.announceWhen != nil && !t.announceWhen() {
		n.logDebug("announce suppressed", "dst", t.String())
		n.recordSuppressed("announce")
		return nil
	}
	if e.pending {
		// already pending: drop a stale withheld value, keep the walk
		e.pendingValue = nil
		e.hasPendingValue = false
		if e.counted {
			sinks.add(e, t.laziness)
			return nil
		}
		// previously suppressed by a notify condition; count it anew
		e.counted = true
	} else {
		e.pending = true
		e.counted = true
	}
	sinks.add(e, t.laziness)
	affected, err := t.resolveAffects()
	if err != nil {
		return err
	}
	for _, out := range affected {
		if err := n.announceOutput(out, sinks); err != nil {
			return err
		}
	}
	return nil
}

// retractEdge withdraws the announcement that travelled over e. With
// keepValue the edge stays pending, holding the withheld value for
// later re-emission, but no longer counts as an announcement cause.
func (n *Network) retractEdge(e *edge, keepValue bool) error {
	if !e.pending {
		return nil
	}
	counted := e.counted
	e.counted = false
	if !keepValue {
		e.pending = false
		e.pendingValue = nil
		e.hasPendingValue = false
	}
	if !counted {
		return nil
	}
	affected, err := e.dst.resolveAffects()
	if err != nil {
		return err
	}
	for _, out := range affected {
		if err := n.retractOutput(out); err != nil {
			return err
		}
	}
	return nil
}

// retractOutput removes one announcement cause from out; when the last
// cause disappears the slot reverts and the retraction cascades to
// downstream edges that carry no withheld value.
func (n *Network) retractOutput(out *port) error {
	if !out.slot.retract() {
		return nil
	}
	n.logDebug("announcement retracted", "output", out.String())
	for _, e := range out.outEdges {
		if e.pending && !e.hasPendingValue {
			if err := n.retractEdge(e, false); err != nil {
				return err
			}
		}
	}
	return nil
}

// realizeSinks runs a wave delivering the collected non-lazy edges.
// trigger selects the executor: the port whose invocation started the
// wave, falling back to the network default.
func (n *Network) realizeSinks(sinks *nonLazySinks, trigger *port) error {
	if len(sinks.edges) == 0 {
		return nil
	}
	var exec *executor.Executor
	if trigger != nil {
		exec = trigger.execOr(n.exec)
	} else {
		exec = n.exec
	}
	w := n.newWave(exec)
	for _, e := range sinks.edges {
		w.requireEdge(e)
	}
	return n.runWave(w)
}
