package schematron

import (
	"sync"
	"testing"
	"time"
)

func TestMetrics_Basic(t *testing.T) {
	m := NewMetrics()

	if m.ValidationsTotal() != 0 {
		t.Errorf("ValidationsTotal() = %d; want 0", m.ValidationsTotal())
	}

	m.RecordValidation(100*time.Millisecond, true)

	if m.ValidationsTotal() != 1 {
		t.Errorf("ValidationsTotal() = %d; want 1", m.ValidationsTotal())
	}
	if m.ValidationsValid() != 1 {
		t.Errorf("ValidationsValid() = %d; want 1", m.ValidationsValid())
	}
}

func TestMetrics_ValidationRate(t *testing.T) {
	m := NewMetrics()

	// No validations yet
	if rate := m.ValidationRate(); rate != 0 {
		t.Errorf("ValidationRate() = %f; want 0", rate)
	}

	m.RecordValidation(100*time.Millisecond, true)
	m.RecordValidation(100*time.Millisecond, true)
	m.RecordValidation(100*time.Millisecond, false)

	rate := m.ValidationRate()
	expected := 2.0 / 3.0
	if rate < expected-0.01 || rate > expected+0.01 {
		t.Errorf("ValidationRate() = %f; want ~%f", rate, expected)
	}
}

func TestMetrics_ValidationTime(t *testing.T) {
	m := NewMetrics()

	// No validations yet
	if avg := m.AverageValidationTime(); avg != 0 {
		t.Errorf("AverageValidationTime() = %v; want 0", avg)
	}
	if min := m.MinValidationTime(); min != 0 {
		t.Errorf("MinValidationTime() = %v; want 0", min)
	}
	if max := m.MaxValidationTime(); max != 0 {
		t.Errorf("MaxValidationTime() = %v; want 0", max)
	}

	m.RecordValidation(100*time.Millisecond, true)
	m.RecordValidation(200*time.Millisecond, true)
	m.RecordValidation(300*time.Millisecond, true)

	avg := m.AverageValidationTime()
	expectedAvg := 200 * time.Millisecond
	if avg < expectedAvg-time.Millisecond || avg > expectedAvg+time.Millisecond {
		t.Errorf("AverageValidationTime() = %v; want ~%v", avg, expectedAvg)
	}

	if min := m.MinValidationTime(); min != 100*time.Millisecond {
		t.Errorf("MinValidationTime() = %v; want %v", min, 100*time.Millisecond)
	}

	if max := m.MaxValidationTime(); max != 300*time.Millisecond {
		t.Errorf("MaxValidationTime() = %v; want %v", max, 300*time.Millisecond)
	}
}

func TestMetrics_Cache(t *testing.T) {
	m := NewMetrics()

	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheMiss()

	if m.CacheHits() != 2 {
		t.Errorf("CacheHits() = %d; want 2", m.CacheHits())
	}
	if m.CacheMisses() != 1 {
		t.Errorf("CacheMisses() = %d; want 1", m.CacheMisses())
	}

	rate := m.CacheHitRate()
	expected := 2.0 / 3.0
	if rate < expected-0.01 || rate > expected+0.01 {
		t.Errorf("CacheHitRate() = %f; want ~%f", rate, expected)
	}
}

func TestMetrics_CacheHitRate_NoDivByZero(t *testing.T) {
	m := NewMetrics()

	if rate := m.CacheHitRate(); rate != 0 {
		t.Errorf("CacheHitRate() = %f; want 0", rate)
	}
}

func TestMetrics_Pool(t *testing.T) {
	m := NewMetrics()

	m.RecordPoolAcquire()
	m.RecordPoolAcquire()
	m.RecordPoolRelease()

	if m.PoolAcquires() != 2 {
		t.Errorf("PoolAcquires() = %d; want 2", m.PoolAcquires())
	}
	if m.PoolReleases() != 1 {
		t.Errorf("PoolReleases() = %d; want 1", m.PoolReleases())
	}
	if m.PoolLeaks() != 1 {
		t.Errorf("PoolLeaks() = %d; want 1", m.PoolLeaks())
	}
}

func TestMetrics_EngineCounters(t *testing.T) {
	m := NewMetrics()

	m.RecordNodesVisited(12)
	m.RecordNodesVisited(3)
	m.RecordNodesVisited(-1) // ignored
	m.RecordRuleMatched()
	m.RecordRuleMatched()
	m.RecordRuleSuppressed()
	m.RecordCheckEvaluated()
	m.RecordCheckEvaluated()
	m.RecordCheckEvaluated()
	m.RecordEvalError()

	if m.NodesVisited() != 15 {
		t.Errorf("NodesVisited() = %d; want 15", m.NodesVisited())
	}
	if m.RulesMatched() != 2 {
		t.Errorf("RulesMatched() = %d; want 2", m.RulesMatched())
	}
	if m.RulesSuppressed() != 1 {
		t.Errorf("RulesSuppressed() = %d; want 1", m.RulesSuppressed())
	}
	if m.ChecksEvaluated() != 3 {
		t.Errorf("ChecksEvaluated() = %d; want 3", m.ChecksEvaluated())
	}
	if m.EvalErrors() != 1 {
		t.Errorf("EvalErrors() = %d; want 1", m.EvalErrors())
	}
}

func TestMetrics_RecordCheckFired(t *testing.T) {
	m := NewMetrics()

	m.RecordCheckFired(KindAssert)
	m.RecordCheckFired(KindAssert)
	m.RecordCheckFired(KindReport)

	if m.AssertsFired() != 2 {
		t.Errorf("AssertsFired() = %d; want 2", m.AssertsFired())
	}
	if m.ReportsFired() != 1 {
		t.Errorf("ReportsFired() = %d; want 1", m.ReportsFired())
	}
}

func TestMetrics_Pattern(t *testing.T) {
	m := NewMetrics()

	m.RecordPattern("structure", 100*time.Millisecond, 2)
	m.RecordPattern("structure", 200*time.Millisecond, 3)
	m.RecordPattern("volume", 50*time.Millisecond, 1)

	stats, ok := m.PatternStats("structure")
	if !ok {
		t.Fatal("PatternStats(structure) not found")
	}

	if stats.Invocations != 2 {
		t.Errorf("Invocations = %d; want 2", stats.Invocations)
	}
	if stats.TotalTime != 300*time.Millisecond {
		t.Errorf("TotalTime = %v; want %v", stats.TotalTime, 300*time.Millisecond)
	}
	if stats.AvgTime != 150*time.Millisecond {
		t.Errorf("AvgTime = %v; want %v", stats.AvgTime, 150*time.Millisecond)
	}
	if stats.ChecksFired != 5 {
		t.Errorf("ChecksFired = %d; want 5", stats.ChecksFired)
	}

	// Non-existent pattern
	_, ok = m.PatternStats("nonexistent")
	if ok {
		t.Error("PatternStats should return false for non-existent pattern")
	}
}

func TestMetrics_AllPatternStats(t *testing.T) {
	m := NewMetrics()

	m.RecordPattern("structure", 100*time.Millisecond, 2)
	m.RecordPattern("volume", 50*time.Millisecond, 1)
	m.RecordPattern("pricing", 200*time.Millisecond, 3)

	stats := m.AllPatternStats()
	if len(stats) != 3 {
		t.Errorf("len(AllPatternStats()) = %d; want 3", len(stats))
	}
}

func TestMetrics_Snapshot(t *testing.T) {
	m := NewMetrics()

	m.RecordValidation(100*time.Millisecond, true)
	m.RecordCacheHit()
	m.RecordPoolAcquire()
	m.RecordCheckFired(KindAssert)
	m.RecordPattern("structure", 50*time.Millisecond, 1)

	s := m.Snapshot()

	if s.ValidationsTotal != 1 {
		t.Errorf("Snapshot.ValidationsTotal = %d; want 1", s.ValidationsTotal)
	}
	if s.CacheHits != 1 {
		t.Errorf("Snapshot.CacheHits = %d; want 1", s.CacheHits)
	}
	if s.PoolAcquires != 1 {
		t.Errorf("Snapshot.PoolAcquires = %d; want 1", s.PoolAcquires)
	}
	if s.AssertsFired != 1 {
		t.Errorf("Snapshot.AssertsFired = %d; want 1", s.AssertsFired)
	}
	if len(s.Patterns) != 1 {
		t.Errorf("len(Snapshot.Patterns) = %d; want 1", len(s.Patterns))
	}
	if s.Timestamp.IsZero() {
		t.Error("Snapshot.Timestamp should not be zero")
	}
}

func TestMetrics_Export(t *testing.T) {
	m := NewMetrics()

	m.RecordValidation(100*time.Millisecond, true)
	m.RecordCacheHit()

	export := m.Export()

	if export["validations_total"] != uint64(1) {
		t.Errorf("export[validations_total] = %v; want 1", export["validations_total"])
	}
	if export["cache_hits"] != uint64(1) {
		t.Errorf("export[cache_hits] = %v; want 1", export["cache_hits"])
	}
}

func TestMetrics_Reset(t *testing.T) {
	m := NewMetrics()

	m.RecordValidation(100*time.Millisecond, true)
	m.RecordCacheHit()
	m.RecordPoolAcquire()
	m.RecordCheckFired(KindAssert)
	m.RecordPattern("structure", 50*time.Millisecond, 1)

	m.Reset()

	if m.ValidationsTotal() != 0 {
		t.Errorf("ValidationsTotal() after Reset = %d; want 0", m.ValidationsTotal())
	}
	if m.CacheHits() != 0 {
		t.Errorf("CacheHits() after Reset = %d; want 0", m.CacheHits())
	}
	if m.PoolAcquires() != 0 {
		t.Errorf("PoolAcquires() after Reset = %d; want 0", m.PoolAcquires())
	}
	if m.AssertsFired() != 0 {
		t.Errorf("AssertsFired() after Reset = %d; want 0", m.AssertsFired())
	}

	stats := m.AllPatternStats()
	if len(stats) != 0 {
		t.Errorf("len(AllPatternStats()) after Reset = %d; want 0", len(stats))
	}
}

func TestMetrics_Concurrent(t *testing.T) {
	m := NewMetrics()
	var wg sync.WaitGroup
	n := 100

	// Concurrent validation recording
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.RecordValidation(time.Duration(i)*time.Millisecond, i%2 == 0)
		}(i)
	}

	// Concurrent cache recording
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				m.RecordCacheHit()
			} else {
				m.RecordCacheMiss()
			}
		}(i)
	}

	// Concurrent pattern recording
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.RecordPattern("test", time.Duration(i)*time.Millisecond, 1)
		}(i)
	}

	wg.Wait()

	if m.ValidationsTotal() != uint64(n) {
		t.Errorf("ValidationsTotal() = %d; want %d", m.ValidationsTotal(), n)
	}

	cacheTotal := m.CacheHits() + m.CacheMisses()
	if cacheTotal != uint64(n) {
		t.Errorf("CacheHits + CacheMisses = %d; want %d", cacheTotal, n)
	}

	stats, _ := m.PatternStats("test")
	if stats.Invocations != uint64(n) {
		t.Errorf("Pattern invocations = %d; want %d", stats.Invocations, n)
	}
}

func BenchmarkMetrics_RecordValidation(b *testing.B) {
	m := NewMetrics()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.RecordValidation(100*time.Millisecond, true)
	}
}

func BenchmarkMetrics_RecordPattern(b *testing.B) {
	m := NewMetrics()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.RecordPattern("structure", 100*time.Millisecond, 1)
	}
}

func BenchmarkMetrics_Snapshot(b *testing.B) {
	m := NewMetrics()
	for i := 0; i < 100; i++ {
		m.RecordValidation(100*time.Millisecond, true)
		m.RecordPattern("structure", 50*time.Millisecond, 1)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m.Snapshot()
	}
}

func BenchmarkMetrics_Concurrent(b *testing.B) {
	m := NewMetrics()

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			switch i % 4 {
			case 0:
				m.RecordValidation(100*time.Millisecond, true)
			case 1:
				m.RecordCacheHit()
			case 2:
				m.RecordPoolAcquire()
			case 3:
				m.RecordPattern("structure", 50*time.Millisecond, 1)
			}
			i++
		}
	})
}
