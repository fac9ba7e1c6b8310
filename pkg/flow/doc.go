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

// Package flow implements a reactive dataflow engine. Methods on plain
// processing objects are declared as typed input and output ports and
// wired into a directed acyclic network. When a downstream value is
// requested, the engine recomputes only the ports whose inputs actually
// changed, caches results, runs independent computations concurrently
// and pushes changes to non-lazy dependents automatically.
//
// A processing object declares its ports through a Registry and keeps
// the returned connectors:
//
//	type doubler struct {
//		in  *flow.Input
//		out *flow.Output
//		v   float64
//	}
//
//	func newDoubler(net *flow.Network) *doubler {
//		d := &doubler{}
//		reg := flow.NewRegistry(net, "doubler")
//		d.in = reg.Input("set_value", flow.InputSpec{
//			Setter:  func(v any) error { d.v = v.(float64); return nil },
//			Affects: []string{"get_value"},
//		})
//		d.out = reg.Output("get_value", flow.OutputSpec{
//			Getter: func() (any, error) { return 2 * d.v, nil },
//		})
//		return d
//	}
//
// Connecting d.out to another object's input forms an edge; calling
// d.in.Set starts a wave that announces the change, realizes non-lazy
// dependents and leaves everything else to be pulled on demand.
package flow
