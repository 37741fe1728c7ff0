package schematron

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks validation performance metrics using lock-free atomic
// operations. All methods are safe for concurrent use.
type Metrics struct {
	// Validation counts
	validationsTotal atomic.Uint64
	validationsValid atomic.Uint64

	// Timing (stored as nanoseconds)
	validationTimeTotal atomic.Uint64
	validationTimeMin   atomic.Uint64
	validationTimeMax   atomic.Uint64

	// Cache metrics
	cacheHits   atomic.Uint64
	cacheMisses atomic.Uint64

	// Pool metrics
	poolAcquires atomic.Uint64
	poolReleases atomic.Uint64

	// Engine counters
	nodesVisited    atomic.Uint64
	rulesMatched    atomic.Uint64
	rulesSuppressed atomic.Uint64
	checksEvaluated atomic.Uint64
	assertsFired    atomic.Uint64
	reportsFired    atomic.Uint64
	evalErrors      atomic.Uint64

	// Per-pattern timing
	patternTiming sync.Map // map[string]*patternMetrics
}

// patternMetrics tracks metrics for a single active pattern.
type patternMetrics struct {
	invocations atomic.Uint64
	totalTime   atomic.Uint64 // nanoseconds
	checksFired atomic.Uint64
}

// NewMetrics creates a new Metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	// Initialize min to max uint64 so first value becomes the minimum
	m.validationTimeMin.Store(^uint64(0))
	return m
}

// --- Recording Methods ---

// RecordValidation records a completed validation.
func (m *Metrics) RecordValidation(duration time.Duration, valid bool) {
	m.validationsTotal.Add(1)
	if valid {
		m.validationsValid.Add(1)
	}

	ns := uint64(duration.Nanoseconds()) //nolint:gosec // Safe: nanoseconds are always positive for valid durations
	m.validationTimeTotal.Add(ns)

	// Update min (CAS loop)
	for {
		old := m.validationTimeMin.Load()
		if ns >= old {
			break
		}
		if m.validationTimeMin.CompareAndSwap(old, ns) {
			break
		}
	}

	// Update max (CAS loop)
	for {
		old := m.validationTimeMax.Load()
		if ns <= old {
			break
		}
		if m.validationTimeMax.CompareAndSwap(old, ns) {
			break
		}
	}
}

// RecordCacheHit records a cache hit.
func (m *Metrics) RecordCacheHit() {
	m.cacheHits.Add(1)
}

// RecordCacheMiss records a cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.cacheMisses.Add(1)
}

// RecordPoolAcquire records a pool acquire operation.
func (m *Metrics) RecordPoolAcquire() {
	m.poolAcquires.Add(1)
}

// RecordPoolRelease records a pool release operation.
func (m *Metrics) RecordPoolRelease() {
	m.poolReleases.Add(1)
}

// RecordNodesVisited adds to the count of candidate nodes walked.
func (m *Metrics) RecordNodesVisited(n int) {
	if n > 0 {
		m.nodesVisited.Add(uint64(n)) //nolint:gosec // Safe: n is a small positive integer
	}
}

// RecordRuleMatched records a node binding to a rule.
func (m *Metrics) RecordRuleMatched() {
	m.rulesMatched.Add(1)
}

// RecordRuleSuppressed records a later rule losing the first-match
// tie-break for a node.
func (m *Metrics) RecordRuleSuppressed() {
	m.rulesSuppressed.Add(1)
}

// RecordCheckEvaluated records an assert or report test evaluation.
func (m *Metrics) RecordCheckEvaluated() {
	m.checksEvaluated.Add(1)
}

// RecordCheckFired records a fired check of the given kind.
func (m *Metrics) RecordCheckFired(kind CheckKind) {
	switch kind {
	case KindAssert:
		m.assertsFired.Add(1)
	case KindReport:
		m.reportsFired.Add(1)
	}
}

// RecordEvalError records an expression-evaluation failure.
func (m *Metrics) RecordEvalError() {
	m.evalErrors.Add(1)
}

// RecordPattern records metrics for one active pattern execution.
func (m *Metrics) RecordPattern(patternID string, duration time.Duration, checksFired int) {
	pm := m.getOrCreatePatternMetrics(patternID)
	pm.invocations.Add(1)
	pm.totalTime.Add(uint64(duration.Nanoseconds())) //nolint:gosec // Safe: nanoseconds are always positive
	pm.checksFired.Add(uint64(checksFired))          //nolint:gosec // Safe: checksFired is a small positive integer
}

func (m *Metrics) getOrCreatePatternMetrics(id string) *patternMetrics {
	if v, ok := m.patternTiming.Load(id); ok {
		return v.(*patternMetrics)
	}
	pm := &patternMetrics{}
	actual, _ := m.patternTiming.LoadOrStore(id, pm)
	return actual.(*patternMetrics)
}

// --- Query Methods ---

// ValidationsTotal returns the total number of validations performed.
func (m *Metrics) ValidationsTotal() uint64 {
	return m.validationsTotal.Load()
}

// ValidationsValid returns the number of valid validations.
func (m *Metrics) ValidationsValid() uint64 {
	return m.validationsValid.Load()
}

// ValidationRate returns the percentage of valid validations (0.0 to 1.0).
func (m *Metrics) ValidationRate() float64 {
	total := m.validationsTotal.Load()
	if total == 0 {
		return 0
	}
	return float64(m.validationsValid.Load()) / float64(total)
}

// AverageValidationTime returns the average validation duration.
func (m *Metrics) AverageValidationTime() time.Duration {
	total := m.validationsTotal.Load()
	if total == 0 {
		return 0
	}
	avgNs := m.validationTimeTotal.Load() / total
	return time.Duration(avgNs) //nolint:gosec // Safe: avgNs represents nanoseconds within int64 range
}

// MinValidationTime returns the minimum validation duration.
func (m *Metrics) MinValidationTime() time.Duration {
	minVal := m.validationTimeMin.Load()
	if minVal == ^uint64(0) {
		return 0
	}
	return time.Duration(minVal) //nolint:gosec // Safe: minVal represents nanoseconds within int64 range
}

// MaxValidationTime returns the maximum validation duration.
func (m *Metrics) MaxValidationTime() time.Duration {
	return time.Duration(m.validationTimeMax.Load()) //nolint:gosec // Safe: nanoseconds within int64 range
}

// CacheHits returns the total cache hits.
func (m *Metrics) CacheHits() uint64 {
	return m.cacheHits.Load()
}

// CacheMisses returns the total cache misses.
func (m *Metrics) CacheMisses() uint64 {
	return m.cacheMisses.Load()
}

// CacheHitRate returns the cache hit rate (0.0 to 1.0).
func (m *Metrics) CacheHitRate() float64 {
	hits := m.cacheHits.Load()
	misses := m.cacheMisses.Load()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// PoolAcquires returns the total pool acquire operations.
func (m *Metrics) PoolAcquires() uint64 {
	return m.poolAcquires.Load()
}

// PoolReleases returns the total pool release operations.
func (m *Metrics) PoolReleases() uint64 {
	return m.poolReleases.Load()
}

// PoolLeaks returns potential pool leaks (acquires - releases).
func (m *Metrics) PoolLeaks() int64 {
	return int64(m.poolAcquires.Load()) - int64(m.poolReleases.Load()) //nolint:gosec // Safe: counters won't overflow int64
}

// NodesVisited returns the total candidate nodes walked.
func (m *Metrics) NodesVisited() uint64 {
	return m.nodesVisited.Load()
}

// RulesMatched returns the total node-to-rule bindings made.
func (m *Metrics) RulesMatched() uint64 {
	return m.rulesMatched.Load()
}

// RulesSuppressed returns the total first-match tie-break losses.
func (m *Metrics) RulesSuppressed() uint64 {
	return m.rulesSuppressed.Load()
}

// ChecksEvaluated returns the total check test evaluations.
func (m *Metrics) ChecksEvaluated() uint64 {
	return m.checksEvaluated.Load()
}

// AssertsFired returns the total fired asserts.
func (m *Metrics) AssertsFired() uint64 {
	return m.assertsFired.Load()
}

// ReportsFired returns the total fired reports.
func (m *Metrics) ReportsFired() uint64 {
	return m.reportsFired.Load()
}

// EvalErrors returns the total expression-evaluation failures.
func (m *Metrics) EvalErrors() uint64 {
	return m.evalErrors.Load()
}

// PatternStats holds statistics for a single active pattern.
type PatternStats struct {
	ID          string
	Invocations uint64
	TotalTime   time.Duration
	AvgTime     time.Duration
	ChecksFired uint64
}

// PatternStats returns statistics for a specific pattern.
func (m *Metrics) PatternStats(patternID string) (PatternStats, bool) {
	v, ok := m.patternTiming.Load(patternID)
	if !ok {
		return PatternStats{ID: patternID}, false
	}
	pm := v.(*patternMetrics)
	invocations := pm.invocations.Load()
	totalTime := pm.totalTime.Load()

	var avgTime time.Duration
	if invocations > 0 {
		avgTime = time.Duration(totalTime / invocations) //nolint:gosec // Safe: nanoseconds within int64 range
	}

	return PatternStats{
		ID:          patternID,
		Invocations: invocations,
		TotalTime:   time.Duration(totalTime), //nolint:gosec // Safe: nanoseconds within int64 range
		AvgTime:     avgTime,
		ChecksFired: pm.checksFired.Load(),
	}, true
}

// AllPatternStats returns statistics for all patterns.
func (m *Metrics) AllPatternStats() []PatternStats {
	var stats []PatternStats
	m.patternTiming.Range(func(key, value any) bool {
		pm := value.(*patternMetrics)
		id := key.(string)
		invocations := pm.invocations.Load()
		totalTime := pm.totalTime.Load()

		var avgTime time.Duration
		if invocations > 0 {
			avgTime = time.Duration(totalTime / invocations) //nolint:gosec // Safe: nanoseconds within int64 range
		}

		stats = append(stats, PatternStats{
			ID:          id,
			Invocations: invocations,
			TotalTime:   time.Duration(totalTime), //nolint:gosec // Safe: nanoseconds within int64 range
			AvgTime:     avgTime,
			ChecksFired: pm.checksFired.Load(),
		})
		return true
	})
	return stats
}

// --- Export Methods ---

// Snapshot represents a point-in-time snapshot of all metrics.
type Snapshot struct {
	// Timestamp when the snapshot was taken
	Timestamp time.Time `json:"timestamp"`

	// Validation metrics
	ValidationsTotal uint64  `json:"validations_total"`
	ValidationsValid uint64  `json:"validations_valid"`
	ValidationRate   float64 `json:"validation_rate"`

	// Timing metrics (in nanoseconds for precision)
	AvgValidationTimeNs uint64 `json:"avg_validation_time_ns"`
	MinValidationTimeNs uint64 `json:"min_validation_time_ns"`
	MaxValidationTimeNs uint64 `json:"max_validation_time_ns"`

	// Cache metrics
	CacheHits    uint64  `json:"cache_hits"`
	CacheMisses  uint64  `json:"cache_misses"`
	CacheHitRate float64 `json:"cache_hit_rate"`

	// Pool metrics
	PoolAcquires uint64 `json:"pool_acquires"`
	PoolReleases uint64 `json:"pool_releases"`
	PoolLeaks    int64  `json:"pool_leaks"`

	// Engine metrics
	NodesVisited    uint64 `json:"nodes_visited"`
	RulesMatched    uint64 `json:"rules_matched"`
	RulesSuppressed uint64 `json:"rules_suppressed"`
	ChecksEvaluated uint64 `json:"checks_evaluated"`
	AssertsFired    uint64 `json:"asserts_fired"`
	ReportsFired    uint64 `json:"reports_fired"`
	EvalErrors      uint64 `json:"eval_errors"`

	// Pattern metrics
	Patterns []PatternStats `json:"patterns,omitempty"`
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (m *Metrics) Snapshot() Snapshot {
	total := m.validationsTotal.Load()
	cacheHits := m.cacheHits.Load()
	cacheMisses := m.cacheMisses.Load()

	var avgTime, validationRate, cacheHitRate float64
	if total > 0 {
		avgTime = float64(m.validationTimeTotal.Load()) / float64(total)
		validationRate = float64(m.validationsValid.Load()) / float64(total)
	}
	if cacheTotal := cacheHits + cacheMisses; cacheTotal > 0 {
		cacheHitRate = float64(cacheHits) / float64(cacheTotal)
	}

	minTime := m.validationTimeMin.Load()
	if minTime == ^uint64(0) {
		minTime = 0
	}

	return Snapshot{
		Timestamp:           time.Now(),
		ValidationsTotal:    total,
		ValidationsValid:    m.validationsValid.Load(),
		ValidationRate:      validationRate,
		AvgValidationTimeNs: uint64(avgTime),
		MinValidationTimeNs: minTime,
		MaxValidationTimeNs: m.validationTimeMax.Load(),
		CacheHits:           cacheHits,
		CacheMisses:         cacheMisses,
		CacheHitRate:        cacheHitRate,
		PoolAcquires:        m.poolAcquires.Load(),
		PoolReleases:        m.poolReleases.Load(),
		PoolLeaks:           m.PoolLeaks(),
		NodesVisited:        m.nodesVisited.Load(),
		RulesMatched:        m.rulesMatched.Load(),
		RulesSuppressed:     m.rulesSuppressed.Load(),
		ChecksEvaluated:     m.checksEvaluated.Load(),
		AssertsFired:        m.assertsFired.Load(),
		ReportsFired:        m.reportsFired.Load(),
		EvalErrors:          m.evalErrors.Load(),
		Patterns:            m.AllPatternStats(),
	}
}

// Export returns metrics as a map suitable for external systems.
func (m *Metrics) Export() map[string]interface{} {
	s := m.Snapshot()
	return map[string]interface{}{
		"validations_total":      s.ValidationsTotal,
		"validations_valid":      s.ValidationsValid,
		"validation_rate":        s.ValidationRate,
		"avg_validation_time_ns": s.AvgValidationTimeNs,
		"min_validation_time_ns": s.MinValidationTimeNs,
		"max_validation_time_ns": s.MaxValidationTimeNs,
		"cache_hits":             s.CacheHits,
		"cache_misses":           s.CacheMisses,
		"cache_hit_rate":         s.CacheHitRate,
		"pool_acquires":          s.PoolAcquires,
		"pool_releases":          s.PoolReleases,
		"pool_leaks":             s.PoolLeaks,
		"nodes_visited":          s.NodesVisited,
		"rules_matched":          s.RulesMatched,
		"rules_suppressed":       s.RulesSuppressed,
		"checks_evaluated":       s.ChecksEvaluated,
		"asserts_fired":          s.AssertsFired,
		"reports_fired":          s.ReportsFired,
		"eval_errors":            s.EvalErrors,
	}
}

// Reset clears all metrics.
func (m *Metrics) Reset() {
	m.validationsTotal.Store(0)
	m.validationsValid.Store(0)
	m.validationTimeTotal.Store(0)
	m.validationTimeMin.Store(^uint64(0))
	m.validationTimeMax.Store(0)
	m.cacheHits.Store(0)
	m.cacheMisses.Store(0)
	m.poolAcquires.Store(0)
	m.poolReleases.Store(0)
	m.nodesVisited.Store(0)
	m.rulesMatched.Store(0)
	m.rulesSuppressed.Store(0)
	m.checksEvaluated.Store(0)
	m.assertsFired.Store(0)
	m.reportsFired.Store(0)
	m.evalErrors.Store(0)

	// Clear pattern timing
	m.patternTiming.Range(func(key, _ any) bool {
		m.patternTiming.Delete(key)
		return true
	})
}
