package query

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"idlc/internal/project"
	"idlc/internal/trace"
)

// Func computes a derived query. It reads everything it depends on through
// qc; those reads become the entry's read-set.
type Func func(qc *Ctx, arg string) (any, error)

type Options struct {
	// Jobs bounds GetAll parallelism; 0 means GOMAXPROCS.
	Jobs int
	// Capacity bounds the number of cached derived entries; 0 is unbounded.
	// An evicted entry is simply recomputed when next read.
	Capacity int
	// Registerer receives the engine counters; nil keeps them unregistered.
	Registerer prometheus.Registerer
	Logger     *zerolog.Logger
}

type inputSlot struct {
	value any
	fp    project.Digest
}

// Engine memoizes derived queries over caller-set inputs and recomputes only
// what an input change can affect. Inputs must not change while a Get is in
// flight; the driver serialises edits and compilations.
type Engine struct {
	opts Options
	log  zerolog.Logger
	m    *metrics

	mu      sync.Mutex
	funcs   map[Kind]Func
	inputs  map[Key]inputSlot
	kinds   map[Kind]bool // виды входов, которые когда-либо задавались
	entries *store
	rdeps   map[Key]map[Key]struct{} // зависимость -> кто её читал
	sf      singleflight.Group
}

func New(opts Options) *Engine {
	if opts.Jobs <= 0 {
		opts.Jobs = runtime.GOMAXPROCS(0)
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = opts.Logger.With().Str("component", "query").Logger()
	}
	e := &Engine{
		opts:   opts,
		log:    log,
		m:      newMetrics(opts.Registerer),
		funcs:  make(map[Kind]Func),
		inputs: make(map[Key]inputSlot),
		kinds:  make(map[Kind]bool),
		rdeps:  make(map[Key]map[Key]struct{}),
	}
	e.entries = newStore(opts.Capacity, func() { e.m.evictions.Inc() })
	return e
}

// Register installs the function computing kind. Registering a kind twice
// replaces the function and drops its cached entries.
func (e *Engine) Register(kind Kind, fn Func) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.funcs[kind]; dup {
		e.dropKindLocked(kind)
	}
	e.funcs[kind] = fn
}

func (e *Engine) dropKindLocked(kind Kind) {
	var keys []Key
	for k := range e.rdeps {
		if k.Kind == kind {
			keys = append(keys, k)
		}
	}
	for _, k := range keys {
		e.invalidateLocked(k)
	}
	if e.entries.lru != nil {
		for _, k := range e.entries.lru.Keys() {
			if k.Kind == kind {
				e.entries.remove(k)
			}
		}
		return
	}
	for k := range e.entries.m {
		if k.Kind == kind {
			delete(e.entries.m, k)
		}
	}
}

// Reset drops every input, cached entry and statistic. Registered functions
// stay.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	clear(e.inputs)
	clear(e.kinds)
	clear(e.rdeps)
	e.entries.purge()
	e.m.resetStats()
}

// SetInput stores an input value. A zero fp is computed with Fingerprint.
// When the fingerprint differs from the stored one, every transitive reader
// is marked stale.
func (e *Engine) SetInput(k Key, value any, fp project.Digest) error {
	if fp.IsZero() {
		var err error
		if fp, err = Fingerprint(value); err != nil {
			return err
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, derived := e.funcs[k.Kind]; derived {
		return fmt.Errorf("set input %s: kind is derived", k)
	}
	old, had := e.inputs[k]
	e.inputs[k] = inputSlot{value: value, fp: fp}
	e.kinds[k.Kind] = true
	if !had || old.fp != fp {
		e.log.Debug().Str("key", k.String()).Str("fp", fp.Short()).Msg("input changed")
		e.invalidateLocked(k)
	}
	return nil
}

// RemoveInput deletes an input; its readers become stale and will observe
// the input as missing.
func (e *Engine) RemoveInput(k Key) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, had := e.inputs[k]; !had {
		return
	}
	delete(e.inputs, k)
	e.invalidateLocked(k)
}

// Evict removes a cached derived entry and marks its readers stale.
func (e *Engine) Evict(k Key) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries.remove(k)
	e.invalidateLocked(k)
}

// Inputs lists the keys of the given input kind.
func (e *Engine) Inputs(kind Kind) []Key {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []Key
	for k := range e.inputs {
		if k.Kind == kind {
			out = append(out, k)
		}
	}
	return out
}

// invalidateLocked marks every transitive reader of k stale. Evicted
// readers are walked through so their own readers are reached.
func (e *Engine) invalidateLocked(k Key) {
	visited := map[Key]struct{}{k: {}}
	queue := []Key{k}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for r := range e.rdeps[cur] {
			if _, seen := visited[r]; seen {
				continue
			}
			visited[r] = struct{}{}
			if ent := e.entries.peek(r); ent != nil {
				ent.stale = true
			}
			queue = append(queue, r)
		}
	}
}

// Stats returns per-kind counters since New or Reset.
func (e *Engine) Stats() map[Kind]KindStats { return e.m.snapshot() }

// Len returns the number of cached derived entries.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.entries.len()
}

// Get returns the value of k, computing or verifying it as needed.
func (e *Engine) Get(ctx context.Context, k Key) (any, error) {
	r := e.get(ctx, k, nil)
	return r.value, r.err
}

// GetAll evaluates keys in parallel on at most Options.Jobs workers. A
// failing key does not affect the others; results follow keys order.
func (e *Engine) GetAll(ctx context.Context, keys []Key) []Result {
	return e.getAll(ctx, keys, nil, nil)
}

// GetAllUntil is GetAll that stops early: once stop reports true for a
// finished result, keys not yet computed are cancelled and carry
// context.Canceled. Cancelled computations are not cached.
func (e *Engine) GetAllUntil(ctx context.Context, keys []Key, stop func(Result) bool) []Result {
	return e.getAll(ctx, keys, nil, stop)
}

func (e *Engine) getAll(ctx context.Context, keys []Key, parent *Ctx, stop func(Result) bool) []Result {
	outs := make([]outcome, len(keys))
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Jobs)
	for i, k := range keys {
		g.Go(func() error {
			outs[i] = e.get(gctx, k, parent)
			if stop != nil && outs[i].err == nil && stop(Result{Key: k, Value: outs[i].value}) {
				cancel()
			}
			return nil
		})
	}
	_ = g.Wait()
	out := make([]Result, len(keys))
	for i, k := range keys {
		// порядок чтения фиксируется по порядку ключей, не по завершению
		if parent != nil {
			parent.record(k, outs[i])
		}
		out[i] = Result{Key: k, Value: outs[i].value, Err: outs[i].err}
	}
	return out
}

// outcome is what a read observed: the value and the fingerprint a reader
// records.
type outcome struct {
	value any
	err   error
	fp    project.Digest
	input bool
}

func (e *Engine) get(ctx context.Context, k Key, parent *Ctx) outcome {
	if err := ctx.Err(); err != nil {
		return outcome{err: err}
	}
	e.mu.Lock()
	fn, derived := e.funcs[k.Kind]
	if !derived {
		slot, ok := e.inputs[k]
		known := e.kinds[k.Kind]
		e.mu.Unlock()
		if !ok {
			if !known {
				return outcome{err: fmt.Errorf("%s: %w", k, ErrUnknownKind), input: true}
			}
			return outcome{err: fmt.Errorf("%s: %w", k, ErrMissingInput), input: true}
		}
		return outcome{value: slot.value, fp: slot.fp, input: true}
	}
	if ent := e.entries.get(k); ent != nil && !ent.stale {
		e.mu.Unlock()
		e.m.hit(k.Kind)
		return outcome{value: ent.value, err: ent.err, fp: ent.fp}
	}
	e.mu.Unlock()

	if parent.onStack(k) {
		return outcome{err: fmt.Errorf("%w: %s", ErrCycle, parent.path(k))}
	}

	v, _, _ := e.sf.Do(k.String(), func() (any, error) {
		return e.refresh(ctx, k, fn, parent), nil
	})
	return v.(outcome)
}

// refresh brings a missing or stale entry up to date: verify the read-set
// first, recompute only when some dependency really changed.
func (e *Engine) refresh(ctx context.Context, k Key, fn Func, parent *Ctx) outcome {
	e.mu.Lock()
	old := e.entries.get(k)
	if old != nil && !old.stale {
		e.mu.Unlock()
		return outcome{value: old.value, err: old.err, fp: old.fp}
	}
	e.mu.Unlock()

	tr := trace.FromContext(ctx)
	if old != nil {
		span := trace.Begin(tr, trace.ScopeQuery, "verify:"+k.String(), trace.CurrentSpan(ctx).SpanID)
		ok := e.verify(ctx, k, old, parent)
		if ok {
			e.mu.Lock()
			old.stale = false
			e.mu.Unlock()
			e.m.greenVerified(k.Kind)
			span.End("green")
			return outcome{value: old.value, err: old.err, fp: old.fp}
		}
		span.End("changed")
	}
	if err := ctx.Err(); err != nil {
		return outcome{err: err}
	}

	span := trace.Begin(tr, trace.ScopeQuery, k.String(), trace.CurrentSpan(ctx).SpanID)
	qctx := ctx
	if span.ID() != 0 {
		qctx = trace.WithSpanContext(ctx, trace.SpanContext{SpanID: span.ID()})
	}
	qc := &Ctx{Context: qctx, engine: e, key: k, parent: parent}
	value, err := e.call(qc, fn, k)
	e.m.execution(k.Kind)

	if cerr := ctx.Err(); cerr != nil && errors.Is(err, cerr) {
		// отменённое вычисление не кэшируется
		span.End("cancelled")
		return outcome{err: err}
	}

	var fp project.Digest
	if err == nil {
		fp, err = Fingerprint(value)
		if err != nil {
			err = &InternalError{Key: k, Err: err}
		}
	}
	if err != nil {
		ie, internal := AsInternal(err)
		switch {
		case !internal:
			err = &InternalError{Key: k, Err: err}
			fallthrough
		case ie.Key == k:
			e.m.poison(k.Kind)
			e.log.Warn().Str("key", k.String()).Err(err).Msg("query poisoned")
		default:
			err = fmt.Errorf("%s: %w", k, err)
		}
		fp = errorDigest(err)
		value = nil
	}

	ent := &entry{value: value, err: err, fp: fp, deps: qc.deps()}
	e.mu.Lock()
	if old != nil {
		if old.err == nil && err == nil && old.fp == fp {
			// отпечаток не изменился: читатели остаются зелёными
			ent.value = old.value
			e.m.unchanged(k.Kind)
		}
		for _, d := range old.deps {
			delete(e.rdeps[d.key], k)
		}
	}
	for _, d := range ent.deps {
		set := e.rdeps[d.key]
		if set == nil {
			set = make(map[Key]struct{})
			e.rdeps[d.key] = set
		}
		set[k] = struct{}{}
	}
	e.entries.put(k, ent)
	e.mu.Unlock()

	if err != nil {
		span.End("poisoned")
	} else {
		span.WithExtra("fp", fp.Short()).End("")
	}
	return outcome{value: ent.value, err: err, fp: fp}
}

// verify re-reads the dependencies of a stale entry in their original order
// and reports whether every fingerprint still matches.
func (e *Engine) verify(ctx context.Context, k Key, old *entry, parent *Ctx) bool {
	for _, d := range old.deps {
		if ctx.Err() != nil {
			return false
		}
		var cur outcome
		if d.input {
			e.mu.Lock()
			slot, ok := e.inputs[d.key]
			e.mu.Unlock()
			if ok {
				cur.fp = slot.fp
			}
		} else {
			cur = e.get(ctx, d.key, &Ctx{Context: ctx, engine: e, key: k, parent: parent})
		}
		if cur.fp != d.fp {
			return false
		}
	}
	return true
}

func (e *Engine) call(qc *Ctx, fn Func, k Key) (value any, err error) {
	defer func() {
		if p := recover(); p != nil {
			value = nil
			err = &InternalError{Key: k, Panic: p, Stack: debug.Stack()}
		}
	}()
	return fn(qc, k.Arg)
}
