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
	"sync"
)

// callLog records the execution order of port methods so tests can
// assert exactly which computations a wave ran.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) record(obj, method string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, obj+"."+method)
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.calls) == 0 {
		return nil
	}
	out := make([]string, len(l.calls))
	copy(out, l.calls)
	return out
}

func (l *callLog) clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = nil
}

func (l *callLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.calls)
}

func (l *callLog) countOf(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	c := 0
	for _, call := range l.calls {
		if call == name {
			c++
		}
	}
	return c
}

// simpleObj passes its input value through to its output.
type simpleObj struct {
	name     string
	log      *callLog
	val      any
	setValue *Input
	getValue *Output
	reg      *Registry
}

func newSimple(net *Network, log *callLog, name string) *simpleObj {
	t := &simpleObj{name: name, log: log}
	t.reg = NewRegistry(net, name)
	t.setValue = t.reg.Input("set_value", InputSpec{
		Setter: func(v any) error {
			t.log.record(t.name, "set_value")
			t.val = v
			return nil
		},
		Affects: []string{"get_value"},
	})
	t.getValue = t.reg.Output("get_value", OutputSpec{
		Getter: func() (any, error) {
			t.log.record(t.name, "get_value")
			return t.val, nil
		},
	})
	return t
}

// multipleInputsObj has two inputs feeding one output.
type multipleInputsObj struct {
	name      string
	log       *callLog
	v1, v2    any
	setValue1 *Input
	setValue2 *Input
	getValues *Output
}

func newMultipleInputs(net *Network, log *callLog, name string) *multipleInputsObj {
	t := &multipleInputsObj{name: name, log: log}
	reg := NewRegistry(net, name)
	t.setValue1 = reg.Input("set_value1", InputSpec{
		Setter: func(v any) error {
			t.log.record(t.name, "set_value1")
			t.v1 = v
			return nil
		},
		Affects: []string{"get_values"},
	})
	t.setValue2 = reg.Input("set_value2", InputSpec{
		Setter: func(v any) error {
			t.log.record(t.name, "set_value2")
			t.v2 = v
			return nil
		},
		Affects: []string{"get_values"},
	})
	t.getValues = reg.Output("get_values", OutputSpec{
		Getter: func() (any, error) {
			t.log.record(t.name, "get_values")
			return []any{t.v1, t.v2}, nil
		},
	})
	return t
}

// multipleOutputsObj has one input feeding two outputs.
type multipleOutputsObj struct {
	name     string
	log      *callLog
	val      any
	setValue *Input
	getValue *Output
	getBool  *Output
}

func newMultipleOutputs(net *Network, log *callLog, name string) *multipleOutputsObj {
	t := &multipleOutputsObj{name: name, log: log}
	reg := NewRegistry(net, name)
	t.setValue = reg.Input("set_value", InputSpec{
		Setter: func(v any) error {
			t.log.record(t.name, "set_value")
			t.val = v
			return nil
		},
		Affects: []string{"get_value", "get_bool"},
	})
	t.getValue = reg.Output("get_value", OutputSpec{
		Getter: func() (any, error) {
			t.log.record(t.name, "get_value")
			return t.val, nil
		},
	})
	t.getBool = reg.Output("get_bool", OutputSpec{
		Getter: func() (any, error) {
			t.log.record(t.name, "get_bool")
			return t.val != nil, nil
		},
	})
	return t
}

// multiObj is a multi-input collection; replacing selects whether a
// Replace helper is declared.
type multiObj struct {
	name      string
	log       *callLog
	data      *MultiInputData
	addValue  *MultiInput
	getValues *Output
}

func newMultiObj(net *Network, log *callLog, name string, replacing bool) *multiObj {
	t := &multiObj{name: name, log: log, data: NewMultiInputData()}
	reg := NewRegistry(net, name)
	spec := MultiInputSpec{
		Add: func(v any) (DataID, error) {
			t.log.record(t.name, "add_value")
			return t.data.Add(v), nil
		},
		Remove: func(id DataID) error {
			t.log.record(t.name, "remove_value")
			t.data.Delete(id)
			return nil
		},
		Affects: []string{"get_values"},
	}
	if replacing {
		spec.Replace = func(id DataID, v any) (DataID, error) {
			t.log.record(t.name, "replace_value")
			return t.data.Replace(id, v), nil
		}
	}
	t.addValue = reg.MultiInput("add_value", spec)
	t.getValues = reg.Output("get_values", OutputSpec{
		Getter: func() (any, error) {
			t.log.record(t.name, "get_values")
			return t.data.Values(), nil
		},
	})
	return t
}

// condMultiObj is a replacing multi-input with announce and notify
// condition gates, toggled through the condition field or, for the
// notify gate, through the set_condition input.
type condMultiObj struct {
	name         string
	log          *callLog
	data         *MultiInputData
	condition    bool
	addValue     *MultiInput
	setCondition *Input
	getValues    *Output
}

func newCondMulti(net *Network, log *callLog, name string, announce bool) *condMultiObj {
	t := &condMultiObj{name: name, log: log, data: NewMultiInputData(), condition: true}
	reg := NewRegistry(net, name)
	spec := MultiInputSpec{
		Add: func(v any) (DataID, error) {
			t.log.record(t.name, "add_value")
			return t.data.Add(v), nil
		},
		Remove: func(id DataID) error {
			t.log.record(t.name, "remove_value")
			t.data.Delete(id)
			return nil
		},
		Replace: func(id DataID, v any) (DataID, error) {
			t.log.record(t.name, "replace_value")
			return t.data.Replace(id, v), nil
		},
		Affects: []string{"get_values"},
	}
	if announce {
		spec.AnnounceCondition = func() bool { return t.condition }
	} else {
		spec.NotifyCondition = func(any) bool { return t.condition }
	}
	t.addValue = reg.MultiInput("add_value", spec)
	t.setCondition = reg.Input("set_condition", InputSpec{
		Setter: func(v any) error {
			t.log.record(t.name, "set_condition")
			t.condition = v.(bool)
			return nil
		},
		Affects: []string{"get_values"},
	})
	t.getValues = reg.Output("get_values", OutputSpec{
		Getter: func() (any, error) {
			t.log.record(t.name, "get_values")
			return t.data.Values(), nil
		},
	})
	return t
}

// multiOutObj multiplies its value by the requested key. A nil keys
// slice declares no keys helper.
type multiOutObj struct {
	name     string
	log      *callLog
	val      int
	keys     []any
	setValue *Input
	setKeys  *Input
	getValue *MultiOutput
}

func newMultiOut(net *Network, log *callLog, name string, keys []any) *multiOutObj {
	t := &multiOutObj{name: name, log: log, keys: keys}
	reg := NewRegistry(net, name)
	t.setValue = reg.Input("set_value", InputSpec{
		Setter: func(v any) error {
			t.log.record(t.name, "set_value")
			t.val = v.(int)
			return nil
		},
		Affects: []string{"get_value"},
	})
	t.setKeys = reg.Input("set_keys", InputSpec{
		Setter: func(v any) error {
			t.log.record(t.name, "set_keys")
			t.keys = v.([]any)
			return nil
		},
		Affects: []string{"get_value"},
	})
	spec := MultiOutputSpec{
		Getter: func(key any) (any, error) {
			t.log.record(t.name, fmt.Sprintf("get_value[%v]", key))
			return t.val * key.(int), nil
		},
	}
	if keys != nil {
		spec.Keys = func() ([]any, error) { return t.keys, nil }
	}
	t.getValue = reg.MultiOutput("get_value", spec)
	return t
}
