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

// Package fixture provides logging helpers for tests.
package fixture

import (
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
)

type testWriter struct {
	*testing.T
}

func (t *testWriter) Write(buf []byte) (int, error) {
	t.Logf("%s", buf)
	return len(buf), nil
}

// NewTestLogger returns a logrus.Logger that writes messages using
// (*testing.T)Logf at debug level.
func NewTestLogger(t *testing.T) *logrus.Logger {
	log := logrus.New()
	log.Out = &testWriter{t}
	log.SetLevel(logrus.DebugLevel)
	return log
}

type discardWriter struct{}

func (d *discardWriter) Write(buf []byte) (int, error) {
	return len(buf), nil
}

// NewDiscardLogger returns a logrus.Logger that discards log messages.
func NewDiscardLogger() *logrus.Logger {
	log := logrus.New()
	log.Out = &discardWriter{}
	return log
}

// CapturingHook records every entry logged through it, for asserting
// on log output in tests.
type CapturingHook struct {
	mu      sync.Mutex
	entries []logrus.Entry
}

func (h *CapturingHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *CapturingHook) Fire(e *logrus.Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, *e)
	return nil
}

// Messages returns the recorded log messages in order.
func (h *CapturingHook) Messages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.entries))
	for i, e := range h.entries {
		out[i] = e.Message
	}
	return out
}

// NewCapturingLogger returns a debug-level logger that discards its
// output but records every entry in the returned hook.
func NewCapturingLogger() (*logrus.Logger, *CapturingHook) {
	log := NewDiscardLogger()
	log.SetLevel(logrus.DebugLevel)
	hook := &CapturingHook{}
	log.AddHook(hook)
	return log, hook
}
