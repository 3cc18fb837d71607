package unifiedllm

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Stats accumulates model usage across every ChatModel that shares it.
// Calls and cost only grow; there is no reset.
type Stats struct {
	mu    sync.Mutex
	calls int64
	cost  float64

	callsDesc *prometheus.Desc
	costDesc  *prometheus.Desc
}

var _ prometheus.Collector = (*Stats)(nil)

// NewStats returns an empty accumulator.
func NewStats() *Stats {
	return &Stats{
		callsDesc: prometheus.NewDesc("trapi_model_calls_total", "Successful model queries", nil, nil),
		costDesc:  prometheus.NewDesc("trapi_model_cost_total", "Accumulated model cost", nil, nil),
	}
}

var (
	defaultStats     *Stats
	defaultStatsOnce sync.Once
)

// DefaultStats returns the process-wide accumulator used by models that were
// not given one explicitly.
func DefaultStats() *Stats {
	defaultStatsOnce.Do(func() {
		defaultStats = NewStats()
	})
	return defaultStats
}

// Add records one successful call costing cost. Both counters move together.
func (s *Stats) Add(cost float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.cost += cost
}

// Snapshot returns the current call count and cost as a consistent pair.
func (s *Stats) Snapshot() (calls int64, cost float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls, s.cost
}

// Calls returns the number of successful calls recorded so far.
func (s *Stats) Calls() int64 {
	calls, _ := s.Snapshot()
	return calls
}

// Cost returns the accumulated cost.
func (s *Stats) Cost() float64 {
	_, cost := s.Snapshot()
	return cost
}

// Describe implements prometheus.Collector.
func (s *Stats) Describe(ch chan<- *prometheus.Desc) {
	ch <- s.callsDesc
	ch <- s.costDesc
}

// Collect implements prometheus.Collector.
func (s *Stats) Collect(ch chan<- prometheus.Metric) {
	calls, cost := s.Snapshot()
	ch <- prometheus.MustNewConstMetric(s.callsDesc, prometheus.CounterValue, float64(calls))
	ch <- prometheus.MustNewConstMetric(s.costDesc, prometheus.CounterValue, cost)
}
