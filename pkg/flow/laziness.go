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

// Laziness selects the event that makes an input connector pull a
// pending value without an external request. The levels are ordered
// from the weakest pull trigger to the strongest; each level includes
// the triggers of the levels below it.
type Laziness int

const (
	// OnRequest never pulls; a value materializes only when a
	// downstream output is fetched directly.
	OnRequest Laziness = iota

	// OnNotify pulls as soon as an upstream output becomes valid in
	// the current wave, after someone else's demand computed it.
	OnNotify

	// OnAnnounce pulls as soon as an upstream announcement reaches the
	// input, triggering a fetch of the branch without external request.
	OnAnnounce

	// OnConnect additionally pulls immediately when an edge is
	// created, delivering the upstream's current value.
	OnConnect
)

func (l Laziness) String() string {
	switch l {
	case OnRequest:
		return "on-request"
	case OnNotify:
		return "on-notify"
	case OnAnnounce:
		return "on-announce"
	case OnConnect:
		return "on-connect"
	}
	return "unknown"
}

// Parallelization selects where a port's computation runs.
type Parallelization int

const (
	// Sequential runs the computation inline on the wave driver.
	Sequential Parallelization = iota

	// Pooled submits the computation to the executor's worker pool.
	Pooled

	// Isolated runs the computation on a dedicated goroutine, bounded
	// by the executor's isolated slots. Meant for long-blocking work
	// that must not starve the shared pool.
	Isolated
)

func (p Parallelization) String() string {
	switch p {
	case Sequential:
		return "sequential"
	case Pooled:
		return "pooled"
	case Isolated:
		return "isolated"
	}
	return "unknown"
}
