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
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/projectconflux/conflux/internal/metrics"
	"github.com/projectconflux/conflux/pkg/config"
	"github.com/projectconflux/conflux/pkg/executor"
)

// A Network is one dataflow engine instance. The goroutine that
// triggers a wave acquires the network lock and becomes the cooperative
// driver for that wave; all graph state is touched only under the lock.
// The network keeps no references to registries, so a connected
// sub-graph is reclaimed by the garbage collector once it is no longer
// reachable from outside.
type Network struct {
	mu        sync.Mutex
	log       logrus.FieldLogger
	metrics   *metrics.Metrics
	exec      *executor.Executor
	ownExec   bool
	observers []Observer
	epoch     uint64
	portSeq   int
	closed    bool
}

// Option configures a Network.
type Option func(*Network)

// WithLogger sets the logger. Waves log at Debug level.
func WithLogger(log logrus.FieldLogger) Option {
	return func(n *Network) { n.log = log }
}

// WithExecutor sets the default executor for ports without their own.
// The caller keeps ownership; Network.Close will not shut it down.
func WithExecutor(e *executor.Executor) Option {
	return func(n *Network) {
		n.exec = e
		n.ownExec = false
	}
}

// WithMetrics wires engine instrumentation. nil disables it.
func WithMetrics(m *metrics.Metrics) Option {
	return func(n *Network) { n.metrics = m }
}

// WithObserver registers an observer notified after each settled wave.
// Observers run under the network lock and must not re-enter the
// network.
func WithObserver(o Observer) Option {
	return func(n *Network) { n.observers = append(n.observers, o) }
}

// WithParameters applies parsed configuration: executor sizing and
// debug logging.
func WithParameters(p config.Parameters) Option {
	return func(n *Network) {
		n.exec = executor.New(p.Executor.Pooled, p.Executor.Isolated)
		n.ownExec = true
		if p.Debug {
			log := logrus.New()
			log.SetLevel(logrus.DebugLevel)
			n.log = log
		}
	}
}

// NewNetwork returns a ready engine instance. Without options the
// default executor has no pools (all computations run inline) and
// logging is discarded.
func NewNetwork(opts ...Option) *Network {
	n := &Network{}
	for _, opt := range opts {
		opt(n)
	}
	if n.log == nil {
		log := logrus.New()
		log.SetOutput(io.Discard)
		n.log = log
	}
	if n.exec == nil {
		n.exec = executor.New(0, 0)
		n.ownExec = true
	}
	return n
}

// Close shuts the network down. The default executor is drained if the
// network owns it; subsequent invocations fail with
// ErrExecutorShutdown.
func (n *Network) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	own := n.ownExec
	exec := n.exec
	n.mu.Unlock()
	if own {
		exec.Close()
	}
}

func (n *Network) nextPortSeq() int {
	n.portSeq++
	return n.portSeq
}

// WaveStats summarizes one settled wave for observers and metrics.
type WaveStats struct {
	Epoch      uint64
	Computed   int
	Delivered  int
	Suppressed int
	Duration   time.Duration
}

// An Observer receives notification of settled waves.
type Observer interface {
	OnWave(WaveStats)
}

// ObserverFunc is a function that implements the Observer interface by
// calling itself. It can be nil.
type ObserverFunc func(WaveStats)

func (f ObserverFunc) OnWave(s WaveStats) {
	if f != nil {
		f(s)
	}
}

var _ Observer = ObserverFunc(nil)

// ComposeObservers returns a new Observer that calls each of its
// arguments in turn.
func ComposeObservers(observers ...Observer) Observer {
	return ObserverFunc(func(s WaveStats) {
		for _, o := range observers {
			o.OnWave(s)
		}
	})
}

func (n *Network) afterWave(w *wave, err error) {
	if err != nil {
		n.log.WithField("wave", w.id).WithError(err).Debug("wave failed")
	} else {
		n.log.WithField("wave", w.id).Debug("wave settled")
	}
	if n.metrics != nil {
		n.metrics.RecordWave(w.stats.Duration)
	}
	for _, o := range n.observers {
		o.OnWave(w.stats)
	}
}

func (n *Network) logDebug(msg string, kv ...any) {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			fields[k] = kv[i+1]
		}
	}
	n.log.WithFields(fields).Debug(msg)
}

func (n *Network) recordComputation(kind string) {
	if n.metrics != nil {
		n.metrics.RecordComputation(kind)
	}
}

func (n *Network) recordCacheHit() {
	if n.metrics != nil {
		n.metrics.RecordCacheHit()
	}
}

func (n *Network) recordSuppressed(phase string) {
	if n.metrics != nil {
		n.metrics.RecordSuppressed(phase)
	}
}

func (n *Network) recordDeadlock() {
	if n.metrics != nil {
		n.metrics.RecordDeadlock()
	}
}
