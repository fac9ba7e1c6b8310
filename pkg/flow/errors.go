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
	"strings"

	"github.com/pkg/errors"

	"github.com/projectconflux/conflux/pkg/executor"
)

var (
	// ErrKindMismatch is returned when two connectors of incompatible
	// kinds are connected, e.g. a multi-output without a key designator
	// to a single input. The graph is left unchanged.
	ErrKindMismatch = errors.New("connection kind mismatch")

	// ErrMissingKey is returned when an operation requires a key
	// designator that was not supplied.
	ErrMissingKey = errors.New("missing key")

	// ErrUnknownPort is returned when a name does not resolve to a
	// declared port, or a declared helper is absent.
	ErrUnknownPort = errors.New("unknown port")

	// ErrDuplicateEdge is returned when the requested connection
	// already exists. Edges are unique per endpoint pair.
	ErrDuplicateEdge = errors.New("duplicate edge")

	// ErrExecutorShutdown is returned when a port whose executor has
	// been shut down is invoked. It aliases the executor package's
	// sentinel so errors.Is works across both.
	ErrExecutorShutdown = executor.ErrShutdown
)

// A ComputationError wraps an error returned by a user-supplied getter
// or setter. It aborts the wave it occurred in; the failing output's
// cache slot is reset so a later fetch retries the computation.
type ComputationError struct {
	Port string
	Err  error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("computing %s: %v", e.Port, e.Err)
}

func (e *ComputationError) Unwrap() error { return e.Err }

// A CycleError is raised by the wave driver when the ready set starves
// with demand outstanding, indicating a cycle or a missing dependency.
type CycleError struct {
	Outputs []string
}

func (e *CycleError) Error() string {
	return "cycle or missing dependency involving " + strings.Join(e.Outputs, ", ")
}
