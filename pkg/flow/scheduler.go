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
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/projectconflux/conflux/pkg/executor"
)

type deliveryState int

const (
	// deliveryWaiting: the upstream value is not yet available.
	deliveryWaiting deliveryState = iota
	// deliveryBlocked: ready, but ordered behind earlier deliveries
	// into the same input so insertion order follows connect order.
	deliveryBlocked
	deliveryRunning
	deliveryResolved
)

// delivery tracks the realization of one pending edge within a wave.
type delivery struct {
	e       *edge
	state   deliveryState
	waiters []*node
}

// node tracks the recomputation of one output within a wave. The
// deliveries of its pending input edges run in connect order before the
// getter; distinct keys of a multi-output compute concurrently.
type node struct {
	out         *port
	deliveries  []*delivery
	next        int
	demanded    bool
	reqKeys     []any
	keyLaunched map[any]bool
	keysRunning int
	computing   bool
	advancing   bool
	done        bool
}

type unitKind int

const (
	unitGetter unitKind = iota
	unitSetter
)

// unit is one dispatchable computation: a getter call or a setter
// delivery, prepared by the driver so the closure never touches graph
// state.
type unit struct {
	kind      unitKind
	node      *node
	del       *delivery
	key       any
	hasKey    bool
	expansion bool
	keepIDs   map[any]DataID
	par       Parallelization
	exec      *executor.Executor
	seq       int
	run       func() (any, error)
}

type completion struct {
	u   *unit
	val any
	err error
}

// wave drives one epoch: expansion of the demand into nodes and
// deliveries, dispatch of ready units, and application of completions.
// All fields are owned by the single driver goroutine.
type wave struct {
	net         *Network
	exec        *executor.Executor
	id          uint64
	completions chan completion
	inflight    int
	nodes       map[*port]*node
	deliveries  map[*edge]*delivery
	keySets     map[*port][]any
	queue       []*unit
	open        int
	failed      error
	stats       WaveStats
	uncached    map[*port]bool
	started     time.Time
}

func (n *Network) newWave(exec *executor.Executor) *wave {
	n.epoch++
	return &wave{
		net:         n,
		exec:        exec,
		id:          n.epoch,
		completions: make(chan completion),
		nodes:       map[*port]*node{},
		deliveries:  map[*edge]*delivery{},
		keySets:     map[*port][]any{},
		uncached:    map[*port]bool{},
		started:     time.Now(),
	}
}

// runWave executes w to completion, resets non-cached slots and reports
// the wave to metrics and observers.
func (n *Network) runWave(w *wave) error {
	n.logDebug("wave started", "wave", w.id)
	err := w.run()
	w.settle()
	n.afterWave(w, err)
	return err
}

// requireEdge demands the realization of one pending edge this wave.
func (w *wave) requireEdge(e *edge) *delivery {
	if d, ok := w.deliveries[e]; ok {
		return d
	}
	d := &delivery{e: e}
	w.deliveries[e] = d
	w.open++
	w.tryReadyDelivery(d)
	return d
}

// requireNode demands that out be made fresh this wave, computing the
// given multi-output keys at minimum.
func (w *wave) requireNode(out *port, keys []any, demanded bool) *node {
	nd, ok := w.nodes[out]
	if !ok {
		nd = &node{out: out}
		w.nodes[out] = nd
		w.open++
		// a cycle can lead back to this node while its pipeline is
		// still being built; hold it until its deliveries are known
		nd.advancing = true
		w.buildPipeline(nd)
		nd.advancing = false
	}
	if demanded {
		nd.demanded = true
	}
	w.addKeys(nd, keys)
	w.advance(nd)
	return nd
}

// buildPipeline collects the pending edges feeding out's inputs, in
// declaration then connect order. Branches whose announcement was
// suppressed by an announce condition re-evaluate the condition here,
// so a condition flip re-emits the withheld announcement.
func (w *wave) buildPipeline(nd *node) {
	ins, err := nd.out.reg.inputsAffecting(nd.out)
	if err != nil {
		w.fail(err)
		return
	}
	for _, in := range ins {
		for _, e := range in.inEdges {
			if !e.pending {
				if in.announceWhen == nil || !in.announceWhen() {
					continue
				}
				if !upstreamStale(e) {
					continue
				}
				dead := &nonLazySinks{threshold: OnConnect + 1}
				if err := w.net.announceEdge(e, dead); err != nil {
					w.fail(err)
					return
				}
			}
			d := w.requireEdge(e)
			if d.state != deliveryResolved {
				d.waiters = append(d.waiters, nd)
				nd.deliveries = append(nd.deliveries, d)
			}
		}
	}
}

func upstreamStale(e *edge) bool {
	return e.src.slot.state == slotAnnounced
}

func (w *wave) addKeys(nd *node, keys []any) {
	if nd.out.kind != kindMultiOutput || len(keys) == 0 {
		return
	}
	added := false
	for _, k := range keys {
		if nd.keyLaunched[k] {
			continue
		}
		found := false
		for _, have := range nd.reqKeys {
			if have == k {
				found = true
				break
			}
		}
		if !found {
			nd.reqKeys = append(nd.reqKeys, k)
			added = true
		}
	}
	if added && (nd.computing || nd.done) {
		wasDone := nd.done
		w.launchKeyUnits(nd)
		if wasDone && nd.keysRunning > 0 {
			nd.done = false
			nd.computing = true
			w.open++
		}
	}
}

// advance moves a node's pipeline forward: deliveries in order, then
// the computation, unless the slot turns out to be usable as is.
func (w *wave) advance(nd *node) {
	if nd.done || nd.advancing || w.failed != nil {
		return
	}
	nd.advancing = true
	defer func() { nd.advancing = false }()
	// kick the upstream computations of every unresolved delivery so
	// independent branches run concurrently; the deliveries themselves
	// still apply in connect order below
	for i := nd.next; i < len(nd.deliveries); i++ {
		if d := nd.deliveries[i]; d.state == deliveryWaiting {
			w.upstreamReady(d.e)
		}
	}
	for nd.next < len(nd.deliveries) {
		d := nd.deliveries[nd.next]
		if d.state != deliveryResolved {
			w.tryReadyDelivery(d)
		}
		if d.state == deliveryResolved {
			nd.next++
			continue
		}
		return
	}
	if nd.computing {
		return
	}
	s := &nd.out.slot
	if s.state == slotValid && nd.out.caching && w.keysCovered(nd) {
		w.finishNode(nd, false)
		return
	}
	if s.state == slotEmpty && !nd.demanded && !w.somebodyWaitsOn(nd) {
		// retracted with no prior value and nothing asking for one
		w.finishNode(nd, false)
		return
	}
	w.startCompute(nd)
}

func (w *wave) keysCovered(nd *node) bool {
	for _, k := range nd.reqKeys {
		if _, ok := nd.out.slot.cachedKey(k); !ok {
			return false
		}
	}
	return true
}

func (w *wave) somebodyWaitsOn(nd *node) bool {
	for _, d := range w.deliveries {
		if d.state == deliveryResolved || d.e.hasPendingValue {
			continue
		}
		if d.e.src == nd.out {
			return true
		}
	}
	return false
}

func (w *wave) startCompute(nd *node) {
	nd.computing = true
	out := nd.out
	s := &out.slot
	if out.kind == kindMultiOutput {
		if s.keyedStale || !out.caching {
			s.keyed = nil
			s.keyedStale = false
		}
		if err := w.collectEdgeKeys(nd); err != nil {
			w.fail(err)
			return
		}
		w.launchKeyUnits(nd)
		if nd.keysRunning == 0 {
			s.state = slotValid
			s.causes = 0
			w.finishNode(nd, true)
		}
		return
	}
	s.state = slotComputing
	getter := out.getter
	w.enqueue(&unit{
		kind: unitGetter,
		node: nd,
		par:  out.par,
		exec: out.execOr(w.exec),
		seq:  out.seq,
		run:  func() (any, error) { return getter() },
	})
}

// currentKeys enumerates a multi-output's key set, running the user's
// keys helper at most once per wave. Callers must only ask once the
// port's pending input deliveries have been applied, so the key set is
// determined once per epoch and reused everywhere.
func (w *wave) currentKeys(out *port) ([]any, error) {
	if ks, ok := w.keySets[out]; ok {
		return ks, nil
	}
	var ks []any
	if out.keysFn != nil {
		var err error
		ks, err = out.keysFn()
		if err != nil {
			return nil, &ComputationError{Port: out.String(), Err: err}
		}
	}
	w.keySets[out] = ks
	return ks, nil
}

// collectEdgeKeys extends a multi-output node's key set with the keys
// its deliverable out-edges will need: the designated key of keyed
// edges, and the full current key set for expanding edges.
func (w *wave) collectEdgeKeys(nd *node) error {
	out := nd.out
	var keys []any
	needExpansion := false
	for _, e := range out.outEdges {
		if !e.pending {
			continue
		}
		_, wanted := w.deliveries[e]
		if !wanted && e.dst.laziness < OnNotify {
			continue
		}
		if e.hasSrcKey {
			keys = append(keys, e.srcKey)
		} else if e.dst.kind == kindMultiInput {
			needExpansion = true
		}
	}
	if needExpansion {
		ks, err := w.currentKeys(out)
		if err != nil {
			return err
		}
		keys = append(keys, ks...)
	}
	for _, k := range keys {
		found := false
		for _, have := range nd.reqKeys {
			if have == k {
				found = true
				break
			}
		}
		if !found {
			nd.reqKeys = append(nd.reqKeys, k)
		}
	}
	return nil
}

func (w *wave) launchKeyUnits(nd *node) {
	out := nd.out
	for _, k := range nd.reqKeys {
		if nd.keyLaunched[k] {
			continue
		}
		if _, ok := out.slot.cachedKey(k); ok {
			continue
		}
		if nd.keyLaunched == nil {
			nd.keyLaunched = map[any]bool{}
		}
		nd.keyLaunched[k] = true
		nd.keysRunning++
		out.slot.state = slotComputing
		key := k
		kg := out.keyedGetter
		w.enqueue(&unit{
			kind:   unitGetter,
			node:   nd,
			key:    key,
			hasKey: true,
			par:    out.par,
			exec:   out.execOr(w.exec),
			seq:    out.seq,
			run:    func() (any, error) { return kg(key) },
		})
	}
}

// tryReadyDelivery schedules a delivery whose upstream value is
// available and whose predecessors into the same input have resolved.
func (w *wave) tryReadyDelivery(d *delivery) {
	if d.state != deliveryWaiting && d.state != deliveryBlocked {
		return
	}
	e := d.e
	if !w.upstreamReady(e) {
		// requiring the upstream may already have scheduled or
		// resolved d re-entrantly
		if d.state == deliveryBlocked {
			d.state = deliveryWaiting
		}
		return
	}
	for _, other := range e.dst.inEdges {
		if other == e {
			break
		}
		if od, ok := w.deliveries[other]; ok && od.state != deliveryResolved {
			d.state = deliveryBlocked
			return
		}
	}
	w.scheduleDelivery(d)
}

// upstreamReady reports whether e's source value can be read now,
// requiring the upstream node otherwise.
func (w *wave) upstreamReady(e *edge) bool {
	if e.hasPendingValue {
		return true
	}
	up := e.src
	if up.kind != kindMultiOutput {
		if up.slot.state == slotValid {
			return true
		}
		w.requireNode(up, nil, false)
		return false
	}
	if up.slot.state != slotValid {
		var keys []any
		if e.hasSrcKey {
			keys = []any{e.srcKey}
		}
		w.requireNode(up, keys, false)
		return false
	}
	missing, err := w.missingKeys(e)
	if err != nil {
		w.fail(err)
		return false
	}
	if len(missing) > 0 {
		w.requireNode(e.src, missing, false)
		return false
	}
	return true
}

// missingKeys returns the keys e needs that are not in the upstream
// key cache. Called only with a valid upstream, so a keys helper can be
// consulted safely.
func (w *wave) missingKeys(e *edge) ([]any, error) {
	up := e.src
	var need []any
	if e.hasSrcKey {
		need = []any{e.srcKey}
	} else {
		ks, err := w.currentKeys(up)
		if err != nil {
			return nil, err
		}
		need = ks
	}
	var missing []any
	for _, k := range need {
		if _, ok := up.slot.cachedKey(k); !ok {
			missing = append(missing, k)
		}
	}
	return missing, nil
}

func (w *wave) scheduleDelivery(d *delivery) {
	e := d.e
	t := e.dst
	if t.kind == kindMultiInput && !e.hasDstKey && !e.hasSrcKey && e.src.kind == kindMultiOutput {
		w.scheduleExpansion(d)
		return
	}
	var v any
	switch {
	case e.hasPendingValue:
		v = e.pendingValue
	case e.hasSrcKey:
		v, _ = e.src.slot.cachedKey(e.srcKey)
	default:
		v = e.src.slot.value
	}
	if t.notifyWhen != nil && !t.notifyWhen(v) {
		w.suppressDelivery(d, v)
		return
	}
	d.state = deliveryRunning
	w.enqueue(w.setterUnit(d, v))
}

func (w *wave) suppressDelivery(d *delivery, v any) {
	e := d.e
	e.pendingValue = v
	e.hasPendingValue = true
	w.stats.Suppressed++
	w.net.recordSuppressed("notify")
	w.net.logDebug("notification suppressed", "dst", e.dst.String())
	if err := w.net.retractEdge(e, true); err != nil {
		w.fail(err)
		return
	}
	w.resolveDelivery(d)
	w.resolveRetracted()
}

// resolveRetracted resolves deliveries whose edges were un-pended by a
// retraction cascade.
func (w *wave) resolveRetracted() {
	var stale []*delivery
	for _, d := range w.deliveries {
		if d.state != deliveryResolved && d.state != deliveryRunning && !d.e.pending {
			stale = append(stale, d)
		}
	}
	for _, d := range stale {
		w.resolveDelivery(d)
	}
}

func (w *wave) resolveDelivery(d *delivery) {
	if d.state == deliveryResolved {
		return
	}
	d.state = deliveryResolved
	w.open--
	for _, nd := range d.waiters {
		w.advance(nd)
	}
	for _, other := range d.e.dst.inEdges {
		if od, ok := w.deliveries[other]; ok && od.state == deliveryBlocked {
			od.state = deliveryWaiting
			w.tryReadyDelivery(od)
		}
	}
}

// setterUnit prepares the closure that hands v to the target input.
// Multi-input targets prefer the Replace helper; without one, an
// upstream re-emission is Remove followed by Add to the tail.
func (w *wave) setterUnit(d *delivery, v any) *unit {
	e := d.e
	t := e.dst
	u := &unit{kind: unitSetter, del: d, par: t.par, exec: t.execOr(w.exec), seq: t.seq}
	add, rep, rem := t.add, t.replace, t.remove
	switch {
	case t.kind == kindInput:
		set := t.setter
		u.run = func() (any, error) { return nil, set(v) }
	case e.hasDstKey:
		id, ok := t.keyDataID(e.dstKey)
		u.run = func() (any, error) {
			if ok && rep != nil {
				return rep(id, v)
			}
			if ok {
				if err := rem(id); err != nil {
					return nil, err
				}
			}
			return add(v)
		}
	case e.hasData:
		id := e.dataID
		u.run = func() (any, error) {
			if rep != nil {
				return rep(id, v)
			}
			if err := rem(id); err != nil {
				return nil, err
			}
			return add(v)
		}
	default:
		u.run = func() (any, error) { return add(v) }
	}
	return u
}

// scheduleExpansion realizes a multi-output → multi-input edge: one
// element per current key, re-read this wave. Departed keys are
// removed from the target, surviving keys replaced, new keys added.
func (w *wave) scheduleExpansion(d *delivery) {
	e := d.e
	t := e.dst
	keys, err := w.currentKeys(e.src)
	if err != nil {
		w.fail(err)
		return
	}
	type storeOp struct {
		key     any
		id      DataID
		value   any
		add     bool
		replace bool
		drop    bool
	}
	current := map[any]bool{}
	var ops []storeOp
	suppressed := map[any]any{}
	keep := map[any]DataID{}
	for _, k := range keys {
		current[k] = true
		v, _ := e.src.slot.cachedKey(k)
		if t.notifyWhen != nil && !t.notifyWhen(v) {
			suppressed[k] = v
			if id, ok := e.expanded[k]; ok {
				keep[k] = id
			}
			continue
		}
		if id, ok := e.expanded[k]; ok {
			ops = append(ops, storeOp{key: k, id: id, value: v, replace: true})
		} else {
			ops = append(ops, storeOp{key: k, value: v, add: true})
		}
	}
	for k, id := range e.expanded {
		if !current[k] {
			ops = append(ops, storeOp{key: k, id: id, drop: true})
		}
	}
	if len(ops) == 0 {
		if len(suppressed) > 0 {
			e.pendingValue = suppressed
			e.hasPendingValue = true
			w.stats.Suppressed++
			w.net.recordSuppressed("notify")
			if err := w.net.retractEdge(e, true); err != nil {
				w.fail(err)
				return
			}
		} else if err := w.net.retractEdge(e, false); err != nil {
			w.fail(err)
			return
		}
		w.resolveDelivery(d)
		w.resolveRetracted()
		return
	}
	u := &unit{
		kind:      unitSetter,
		del:       d,
		expansion: true,
		keepIDs:   keep,
		par:       t.par,
		exec:      t.execOr(w.exec),
		seq:       t.seq,
	}
	add, rep, rem := t.add, t.replace, t.remove
	plan := ops
	u.run = func() (any, error) {
		result := map[any]DataID{}
		for _, op := range plan {
			switch {
			case op.drop:
				if err := rem(op.id); err != nil {
					return nil, err
				}
			case op.replace && rep != nil:
				id, err := rep(op.id, op.value)
				if err != nil {
					return nil, err
				}
				result[op.key] = id
			case op.replace:
				if err := rem(op.id); err != nil {
					return nil, err
				}
				id, err := add(op.value)
				if err != nil {
					return nil, err
				}
				result[op.key] = id
			default:
				id, err := add(op.value)
				if err != nil {
					return nil, err
				}
				result[op.key] = id
			}
		}
		return result, nil
	}
	if len(suppressed) > 0 {
		e.pendingValue = suppressed
		e.hasPendingValue = true
	}
	d.state = deliveryRunning
	w.enqueue(u)
}

func (w *wave) enqueue(u *unit) { w.queue = append(w.queue, u) }

// popReady returns the queued unit with the lowest declaration
// sequence, keeping dispatch order stable.
func (w *wave) popReady() *unit {
	best := 0
	for i, u := range w.queue {
		if u.seq < w.queue[best].seq {
			best = i
		}
	}
	u := w.queue[best]
	w.queue = append(w.queue[:best], w.queue[best+1:]...)
	return u
}

// run is the cooperative driver loop: dispatch everything ready, then
// suspend on the next completion. Sequential units run inline.
func (w *wave) run() error {
	for {
		for len(w.queue) > 0 && w.failed == nil {
			u := w.popReady()
			mode := u.par
			if mode == Pooled && !u.exec.HasPool() {
				mode = Sequential
			}
			if mode == Isolated && !u.exec.HasIsolated() {
				mode = Sequential
			}
			if mode == Sequential {
				v, err := u.run()
				w.apply(completion{u: u, val: v, err: err})
				continue
			}
			run := u.run
			task := func() {
				v, err := run()
				w.completions <- completion{u: u, val: v, err: err}
			}
			var err error
			if mode == Pooled {
				err = u.exec.Submit(task)
			} else {
				err = u.exec.Isolate(task)
			}
			if err != nil {
				w.fail(errors.Wrapf(err, "dispatching %s", w.unitName(u)))
				break
			}
			w.inflight++
		}
		if w.failed != nil {
			w.drain()
			return w.failed
		}
		if w.open == 0 && w.inflight == 0 && len(w.queue) == 0 {
			return nil
		}
		if w.inflight == 0 && len(w.queue) == 0 {
			return w.stall()
		}
		c := <-w.completions
		w.inflight--
		w.apply(c)
	}
}

func (w *wave) unitName(u *unit) string {
	if u.node != nil {
		return u.node.out.String()
	}
	return u.del.e.dst.String()
}

func (w *wave) apply(c completion) {
	switch c.u.kind {
	case unitGetter:
		w.applyGetter(c.u, c.val, c.err)
	case unitSetter:
		w.applySetter(c.u, c.val, c.err)
	}
}

func (w *wave) applyGetter(u *unit, val any, err error) {
	nd := u.node
	out := nd.out
	if err != nil {
		out.slot.invalidate()
		w.fail(&ComputationError{Port: out.String(), Err: err})
		return
	}
	w.stats.Computed++
	w.net.recordComputation("getter")
	if !out.caching {
		w.uncached[out] = true
	}
	if u.hasKey {
		out.slot.storeKeyed(u.key, val)
		nd.keysRunning--
		if nd.keysRunning > 0 {
			return
		}
		out.slot.state = slotValid
		out.slot.causes = 0
		w.finishNode(nd, true)
		return
	}
	out.slot.storeValue(val)
	w.finishNode(nd, true)
}

func (w *wave) applySetter(u *unit, val any, err error) {
	d := u.del
	e := d.e
	if err != nil {
		w.fail(&ComputationError{Port: e.dst.String(), Err: err})
		return
	}
	w.stats.Delivered++
	w.net.recordComputation("setter")
	if u.expansion {
		merged := map[any]DataID{}
		for k, id := range u.keepIDs {
			merged[k] = id
		}
		if ids, ok := val.(map[any]DataID); ok {
			for k, id := range ids {
				merged[k] = id
			}
		}
		e.expanded = merged
	} else if e.dst.kind == kindMultiInput {
		if id, ok := val.(DataID); ok {
			if e.hasDstKey {
				e.dst.setKeyData(e.dstKey, id)
			} else {
				e.dataID = id
				e.hasData = true
			}
		}
	}
	e.counted = false
	if e.hasPendingValue && u.expansion {
		// partially suppressed expansion stays pending for re-emission
	} else {
		e.pending = false
		e.pendingValue = nil
		e.hasPendingValue = false
	}
	w.resolveDelivery(d)
	// the wave carries on to non-lazy inputs below the delivered input
	// whose announcement is still pending
	affected, err := e.dst.resolveAffects()
	if err != nil {
		w.fail(err)
		return
	}
	for _, out := range affected {
		for _, oe := range out.outEdges {
			if oe.pending && oe.counted && oe.dst.laziness >= OnAnnounce {
				w.requireEdge(oe)
			}
		}
	}
}

// finishNode marks a node settled. Pending out-edges wanted by this
// wave become deliverable; freshly computed values additionally notify
// OnNotify targets.
func (w *wave) finishNode(nd *node, computed bool) {
	if nd.done {
		return
	}
	nd.done = true
	nd.computing = false
	w.open--
	for _, e := range nd.out.outEdges {
		if !e.pending {
			continue
		}
		if d, ok := w.deliveries[e]; ok {
			if d.state == deliveryWaiting || d.state == deliveryBlocked {
				w.tryReadyDelivery(d)
			}
			continue
		}
		if computed && e.dst.laziness >= OnNotify {
			w.requireEdge(e)
		}
	}
}

func (w *wave) fail(err error) {
	if w.failed == nil {
		w.failed = err
	}
}

// drain awaits in-flight futures after an abort so no worker is
// orphaned; their results are discarded.
func (w *wave) drain() {
	for w.inflight > 0 {
		<-w.completions
		w.inflight--
	}
}

func (w *wave) stall() error {
	seen := map[string]bool{}
	var names []string
	for p, nd := range w.nodes {
		if !nd.done && !seen[p.String()] {
			seen[p.String()] = true
			names = append(names, p.String())
		}
	}
	for _, d := range w.deliveries {
		if d.state != deliveryResolved && !seen[d.e.dst.String()] {
			seen[d.e.dst.String()] = true
			names = append(names, d.e.dst.String())
		}
	}
	sort.Strings(names)
	w.net.recordDeadlock()
	return &CycleError{Outputs: names}
}

// settle clears the slots of non-caching outputs touched this wave so
// the next fetch recomputes, once the wave's fan-out has been served.
func (w *wave) settle() {
	w.stats.Epoch = w.id
	w.stats.Duration = time.Since(w.started)
	for p := range w.uncached {
		if p.kind == kindMultiOutput {
			p.slot.keyed = nil
			if p.slot.state == slotValid {
				p.slot.state = slotEmpty
			}
			continue
		}
		if p.slot.state == slotValid {
			p.slot.invalidate()
		}
	}
}

// fetchOutput serves a direct Get on an output or a keyed view of a
// multi-output. Called with the lock held.
func (n *Network) fetchOutput(p *port, key any, hasKey bool) (any, error) {
	if n.closed {
		return nil, errors.Wrap(ErrExecutorShutdown, p.String())
	}
	if p.kind == kindMultiOutput && !hasKey {
		return nil, errors.Wrapf(ErrMissingKey, "%s requires a key", p)
	}
	s := &p.slot
	if s.state == slotValid && p.caching {
		latent, err := n.hasLatentInput(p)
		if err != nil {
			return nil, err
		}
		if !latent {
			if !hasKey {
				n.recordCacheHit()
				return s.value, nil
			}
			if v, ok := s.cachedKey(key); ok {
				n.recordCacheHit()
				return v, nil
			}
		}
	}
	w := n.newWave(p.execOr(n.exec))
	var keys []any
	if hasKey {
		keys = []any{key}
	}
	w.requireNode(p, keys, true)
	n.logDebug("wave started", "wave", w.id)
	err := w.run()
	var value any
	if err == nil {
		if hasKey {
			value, _ = s.cachedKey(key)
		} else {
			value = s.value
		}
	}
	w.settle()
	n.afterWave(w, err)
	return value, err
}

// hasLatentInput reports whether an input affecting out has an edge
// whose announcement was withheld by an announce condition that now
// passes while the upstream is still stale. Such a branch must go
// through a wave instead of the cache fast path, so a condition flip
// re-emits the suppressed announcement.
func (n *Network) hasLatentInput(out *port) (bool, error) {
	ins, err := out.reg.inputsAffecting(out)
	if err != nil {
		return false, err
	}
	for _, in := range ins {
		if in.announceWhen == nil {
			continue
		}
		for _, e := range in.inEdges {
			if !e.pending && upstreamStale(e) && in.announceWhen() {
				return true, nil
			}
		}
	}
	return false, nil
}

// setInput applies a direct setter invocation and starts the resulting
// wave. Called with the lock held.
func (n *Network) setInput(p *port, key any, hasKey bool, value any) error {
	if n.closed {
		return errors.Wrap(ErrExecutorShutdown, p.String())
	}
	switch p.kind {
	case kindInput:
		if err := p.setter(value); err != nil {
			return &ComputationError{Port: p.String(), Err: err}
		}
	case kindMultiInput:
		if hasKey {
			if err := n.setKeyedElement(p, key, value); err != nil {
				return err
			}
		} else {
			if _, err := p.add(value); err != nil {
				return &ComputationError{Port: p.String(), Err: err}
			}
		}
	default:
		return errors.Wrapf(ErrKindMismatch, "%s is not settable", p)
	}
	return n.announceFrom(p, OnAnnounce)
}

// setKeyedElement routes a keyed virtual single-input call to the
// multi-input helpers, reusing the key's data id.
func (n *Network) setKeyedElement(p *port, key, value any) error {
	id, ok := p.keyDataID(key)
	switch {
	case ok && p.replace != nil:
		nid, err := p.replace(id, value)
		if err != nil {
			return &ComputationError{Port: p.String(), Err: err}
		}
		p.setKeyData(key, nid)
	case ok:
		if err := p.remove(id); err != nil {
			return &ComputationError{Port: p.String(), Err: err}
		}
		nid, err := p.add(value)
		if err != nil {
			return &ComputationError{Port: p.String(), Err: err}
		}
		p.setKeyData(key, nid)
	default:
		nid, err := p.add(value)
		if err != nil {
			return &ComputationError{Port: p.String(), Err: err}
		}
		p.setKeyData(key, nid)
	}
	return nil
}

// setLaziness applies a laziness change; raising it retroactively
// delivers announcements already pending on the input.
func (n *Network) setLaziness(p *port, l Laziness) error {
	old := p.laziness
	p.laziness = l
	if l <= old || l < OnAnnounce {
		return nil
	}
	sinks := &nonLazySinks{threshold: OnAnnounce}
	for _, e := range p.inEdges {
		if e.pending {
			sinks.add(e, l)
		}
	}
	return n.realizeSinks(sinks, p)
}
