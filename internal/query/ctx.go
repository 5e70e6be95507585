package query

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// Ctx is handed to a running Func. Every read through it is recorded, with
// the fingerprint observed, as a dependency of the query being computed.
type Ctx struct {
	context.Context
	engine *Engine
	key    Key
	parent *Ctx

	mu   sync.Mutex
	read []dep
}

// Key returns the query being computed.
func (qc *Ctx) Key() Key { return qc.key }

// Get reads another query (derived or input).
func (qc *Ctx) Get(k Key) (any, error) {
	o := qc.engine.get(qc, k, qc)
	qc.record(k, o)
	return o.value, o.err
}

// GetAll reads several queries in parallel. Dependencies are recorded in
// keys order.
func (qc *Ctx) GetAll(keys []Key) []Result {
	return qc.engine.getAll(qc, keys, qc, nil)
}

// Input reads an input; ok is false when it is not set. The absence is
// recorded too, so setting the input later invalidates this query.
func (qc *Ctx) Input(k Key) (value any, ok bool) {
	o := qc.engine.get(qc, k, qc)
	qc.record(k, o)
	return o.value, o.err == nil
}

func (qc *Ctx) record(k Key, o outcome) {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	if slices.ContainsFunc(qc.read, func(d dep) bool { return d.key == k }) {
		return
	}
	qc.read = append(qc.read, dep{key: k, fp: o.fp, input: o.input})
}

func (qc *Ctx) deps() []dep {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	return slices.Clone(qc.read)
}

func (qc *Ctx) onStack(k Key) bool {
	for c := qc; c != nil; c = c.parent {
		if c.key == k {
			return true
		}
	}
	return false
}

// path renders the chain of queries from the outermost one to k.
func (qc *Ctx) path(k Key) string {
	var chain []string
	for c := qc; c != nil; c = c.parent {
		chain = append(chain, c.key.String())
	}
	slices.Reverse(chain)
	return strings.Join(append(chain, k.String()), " -> ")
}
