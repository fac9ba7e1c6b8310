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

import "github.com/google/uuid"

// A DataID identifies one element held by a multi-input connector. IDs
// are opaque; ordering is tracked separately by the container.
type DataID string

func newDataID() DataID { return DataID(uuid.NewString()) }

// MultiInputData is an insertion-ordered container for the elements of
// a multi-input connector. User Add/Replace/Remove helpers are expected
// to keep their state in one of these so that iteration order equals
// the order of successful adds.
type MultiInputData struct {
	order  []DataID
	values map[DataID]any
}

// NewMultiInputData returns an empty container.
func NewMultiInputData() *MultiInputData {
	return &MultiInputData{values: map[DataID]any{}}
}

// Add appends value and returns its fresh DataID.
func (d *MultiInputData) Add(value any) DataID {
	id := newDataID()
	d.order = append(d.order, id)
	d.values[id] = value
	return id
}

// Replace overwrites the element stored under id, keeping its position.
// An unknown id appends to the tail instead.
func (d *MultiInputData) Replace(id DataID, value any) DataID {
	if _, ok := d.values[id]; !ok {
		d.order = append(d.order, id)
	}
	d.values[id] = value
	return id
}

// Delete removes the element stored under id. Unknown ids are ignored.
func (d *MultiInputData) Delete(id DataID) {
	if _, ok := d.values[id]; !ok {
		return
	}
	delete(d.values, id)
	for i, o := range d.order {
		if o == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// Get returns the element stored under id.
func (d *MultiInputData) Get(id DataID) (any, bool) {
	v, ok := d.values[id]
	return v, ok
}

// Values returns the elements in insertion order.
func (d *MultiInputData) Values() []any {
	out := make([]any, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.values[id])
	}
	return out
}

// IDs returns the DataIDs in insertion order.
func (d *MultiInputData) IDs() []DataID {
	out := make([]DataID, len(d.order))
	copy(out, d.order)
	return out
}

// Len returns the number of stored elements.
func (d *MultiInputData) Len() int { return len(d.order) }
