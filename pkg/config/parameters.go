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

// Package config holds the YAML-loadable engine defaults.
package config

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ExecutorParameters sizes the worker pools of the default executor.
// Zero for either pool means "run inline".
type ExecutorParameters struct {
	// Pooled is the number of shared worker goroutines.
	Pooled int `yaml:"pooled,omitempty"`

	// Isolated is the number of slots for computations that run on a
	// goroutine of their own.
	Isolated int `yaml:"isolated,omitempty"`
}

// Validate the executor parameters.
func (e ExecutorParameters) Validate() error {
	if e.Pooled < 0 {
		return fmt.Errorf("invalid pooled worker count %d", e.Pooled)
	}
	if e.Isolated < 0 {
		return fmt.Errorf("invalid isolated slot count %d", e.Isolated)
	}
	return nil
}

// Parameters holds the configuration of one engine instance.
type Parameters struct {
	Executor ExecutorParameters `yaml:"executor,omitempty"`

	// Debug enables debug logging of wave activity.
	Debug bool `yaml:"debug,omitempty"`
}

// Validate the engine parameters.
func (p Parameters) Validate() error {
	return p.Executor.Validate()
}

// Defaults returns the parameters used in the absence of configuration:
// no worker pools and no debug logging.
func Defaults() Parameters {
	return Parameters{}
}

// Parse reads YAML configuration from in, layered over Defaults.
// Unknown fields are rejected. An empty document yields the defaults.
func Parse(in io.Reader) (*Parameters, error) {
	conf := Defaults()
	decoder := yaml.NewDecoder(in)
	decoder.KnownFields(true)

	if err := decoder.Decode(&conf); err != nil {
		// The YAML decoder returns EOF for an input with no YAML
		// nodes; succeed with the defaults in that case.
		if err != io.EOF {
			return nil, fmt.Errorf("failed to parse configuration: %w", err)
		}
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}
