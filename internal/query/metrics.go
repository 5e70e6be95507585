package query

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics holds the engine counters, all labelled by query kind.
type metrics struct {
	executions *prometheus.CounterVec
	hits       *prometheus.CounterVec
	green      *prometheus.CounterVec
	poisoned   *prometheus.CounterVec
	evictions  prometheus.Counter

	mu    sync.Mutex
	stats map[Kind]*KindStats
}

// KindStats counts what happened to queries of one kind.
type KindStats struct {
	Executions int // функция запускалась
	Hits       int // взято из кэша без проверки
	Green      int // проверено и подтверждено без пересчёта
	Unchanged  int // пересчитано, но отпечаток совпал со старым
	Poisoned   int
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	vec := func(name, help string) *prometheus.CounterVec {
		return f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "idlc",
			Subsystem: "query",
			Name:      name,
			Help:      help,
		}, []string{"kind"})
	}
	return &metrics{
		executions: vec("executions_total", "Query function executions"),
		hits:       vec("cache_hits_total", "Results served from a fresh cache entry"),
		green:      vec("green_total", "Stale entries confirmed without recomputation"),
		poisoned:   vec("poisoned_total", "Queries that failed or panicked"),
		evictions: f.NewCounter(prometheus.CounterOpts{
			Namespace: "idlc",
			Subsystem: "query",
			Name:      "evictions_total",
			Help:      "Derived entries dropped by the capacity bound",
		}),
		stats: make(map[Kind]*KindStats),
	}
}

func (m *metrics) bump(kind Kind, c *prometheus.CounterVec, field func(*KindStats) *int) {
	if c != nil {
		c.WithLabelValues(string(kind)).Inc()
	}
	m.mu.Lock()
	s := m.stats[kind]
	if s == nil {
		s = &KindStats{}
		m.stats[kind] = s
	}
	*field(s)++
	m.mu.Unlock()
}

func (m *metrics) execution(k Kind) {
	m.bump(k, m.executions, func(s *KindStats) *int { return &s.Executions })
}
func (m *metrics) hit(k Kind) { m.bump(k, m.hits, func(s *KindStats) *int { return &s.Hits }) }
func (m *metrics) greenVerified(k Kind) {
	m.bump(k, m.green, func(s *KindStats) *int { return &s.Green })
}
func (m *metrics) unchanged(k Kind) { m.bump(k, nil, func(s *KindStats) *int { return &s.Unchanged }) }
func (m *metrics) poison(k Kind) { m.bump(k, m.poisoned, func(s *KindStats) *int { return &s.Poisoned }) }

func (m *metrics) snapshot() map[Kind]KindStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[Kind]KindStats, len(m.stats))
	for k, s := range m.stats {
		out[k] = *s
	}
	return out
}

func (m *metrics) resetStats() {
	m.mu.Lock()
	m.stats = make(map[Kind]*KindStats)
	m.mu.Unlock()
}
