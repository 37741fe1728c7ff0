package schematron

import (
	"log/slog"
	"os"
	"runtime"
	"testing"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	// Validation behavior
	if opts.Phase != "" {
		t.Errorf("Phase = %q; want empty (defer to schema default)", opts.Phase)
	}
	if opts.FailFast != false {
		t.Error("FailFast should be false by default")
	}
	if opts.PartialResolution != false {
		t.Error("PartialResolution should be false by default")
	}
	if opts.TrackOutcomes != true {
		t.Error("TrackOutcomes should be true by default")
	}

	// Performance defaults
	if opts.ParallelPatterns != true {
		t.Error("ParallelPatterns should be true by default")
	}
	if opts.WorkerCount != runtime.NumCPU() {
		t.Errorf("WorkerCount = %d; want %d", opts.WorkerCount, runtime.NumCPU())
	}
	if opts.EnablePooling != true {
		t.Error("EnablePooling should be true by default")
	}
	if opts.PrecompileQueries != false {
		t.Error("PrecompileQueries should be false by default")
	}

	// Cache defaults
	if opts.ExpressionCacheSize != 2000 {
		t.Errorf("ExpressionCacheSize = %d; want 2000", opts.ExpressionCacheSize)
	}
	if opts.SchemaCacheSize != 64 {
		t.Errorf("SchemaCacheSize = %d; want 64", opts.SchemaCacheSize)
	}

	// Observability
	if opts.Logger != nil {
		t.Error("Logger should be nil by default")
	}
	if opts.CollectMetrics != false {
		t.Error("CollectMetrics should be false by default")
	}
}

func TestWithPhase(t *testing.T) {
	opts := DefaultOptions()

	WithPhase("basic")(opts)
	if opts.Phase != "basic" {
		t.Errorf("Phase = %q; want %q", opts.Phase, "basic")
	}

	WithPhase("#ALL")(opts)
	if opts.Phase != "#ALL" {
		t.Errorf("Phase = %q; want %q", opts.Phase, "#ALL")
	}
}

func TestWithFailFast(t *testing.T) {
	opts := DefaultOptions()

	WithFailFast(true)(opts)
	if !opts.FailFast {
		t.Error("WithFailFast(true) should enable fail-fast")
	}

	WithFailFast(false)(opts)
	if opts.FailFast {
		t.Error("WithFailFast(false) should disable fail-fast")
	}
}

func TestWithPartialResolution(t *testing.T) {
	opts := DefaultOptions()

	WithPartialResolution(true)(opts)
	if !opts.PartialResolution {
		t.Error("WithPartialResolution(true) should enable partial resolution")
	}
}

func TestWithTrackOutcomes(t *testing.T) {
	opts := DefaultOptions()

	WithTrackOutcomes(false)(opts)
	if opts.TrackOutcomes {
		t.Error("WithTrackOutcomes(false) should disable outcome tracking")
	}
}

func TestWithParallelPatterns(t *testing.T) {
	opts := DefaultOptions()

	WithParallelPatterns(false)(opts)
	if opts.ParallelPatterns {
		t.Error("WithParallelPatterns(false) should disable parallel patterns")
	}
}

func TestWithWorkerCount(t *testing.T) {
	opts := DefaultOptions()

	WithWorkerCount(4)(opts)
	if opts.WorkerCount != 4 {
		t.Errorf("WorkerCount = %d; want 4", opts.WorkerCount)
	}

	// Zero should not change
	WithWorkerCount(0)(opts)
	if opts.WorkerCount != 4 {
		t.Errorf("WorkerCount = %d; want 4 (unchanged)", opts.WorkerCount)
	}

	// Negative should not change
	WithWorkerCount(-1)(opts)
	if opts.WorkerCount != 4 {
		t.Errorf("WorkerCount = %d; want 4 (unchanged)", opts.WorkerCount)
	}
}

func TestWithPooling(t *testing.T) {
	opts := DefaultOptions()

	WithPooling(false)(opts)
	if opts.EnablePooling {
		t.Error("WithPooling(false) should disable pooling")
	}
}

func TestWithPrecompileQueries(t *testing.T) {
	opts := DefaultOptions()

	WithPrecompileQueries(true)(opts)
	if !opts.PrecompileQueries {
		t.Error("WithPrecompileQueries(true) should enable precompilation")
	}
}

func TestWithExpressionCache(t *testing.T) {
	opts := DefaultOptions()

	WithExpressionCache(10000)(opts)
	if opts.ExpressionCacheSize != 10000 {
		t.Errorf("ExpressionCacheSize = %d; want 10000", opts.ExpressionCacheSize)
	}

	// Zero should not change
	WithExpressionCache(0)(opts)
	if opts.ExpressionCacheSize != 10000 {
		t.Error("Zero should not change ExpressionCacheSize")
	}
}

func TestWithSchemaCache(t *testing.T) {
	opts := DefaultOptions()

	WithSchemaCache(128)(opts)
	if opts.SchemaCacheSize != 128 {
		t.Errorf("SchemaCacheSize = %d; want 128", opts.SchemaCacheSize)
	}
}

func TestWithPatternFilter(t *testing.T) {
	opts := DefaultOptions()

	WithPatternFilter(`id startsWith "invoice"`)(opts)
	if opts.PatternFilter != `id startsWith "invoice"` {
		t.Errorf("PatternFilter = %q; want %q", opts.PatternFilter, `id startsWith "invoice"`)
	}
}

func TestWithLogger(t *testing.T) {
	opts := DefaultOptions()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	WithLogger(logger)(opts)
	if opts.Logger != logger {
		t.Error("WithLogger should set the logger")
	}
}

func TestWithMetrics(t *testing.T) {
	opts := DefaultOptions()

	WithMetrics(true)(opts)
	if !opts.CollectMetrics {
		t.Error("WithMetrics(true) should enable metrics collection")
	}
}

func TestFastOptions(t *testing.T) {
	opts := DefaultOptions()

	for _, opt := range FastOptions() {
		opt(opts)
	}

	if opts.TrackOutcomes {
		t.Error("FastOptions should disable outcome tracking")
	}
	if !opts.ParallelPatterns {
		t.Error("FastOptions should enable parallel patterns")
	}
	if !opts.EnablePooling {
		t.Error("FastOptions should enable pooling")
	}
	if opts.ExpressionCacheSize != 5000 {
		t.Errorf("FastOptions ExpressionCacheSize = %d; want 5000", opts.ExpressionCacheSize)
	}
}

func TestStrictOptions(t *testing.T) {
	opts := DefaultOptions()

	for _, opt := range StrictOptions() {
		opt(opts)
	}

	if !opts.FailFast {
		t.Error("StrictOptions should enable fail-fast")
	}
	if !opts.PrecompileQueries {
		t.Error("StrictOptions should enable query precompilation")
	}
	if opts.PartialResolution {
		t.Error("StrictOptions should disable partial resolution")
	}
	if !opts.TrackOutcomes {
		t.Error("StrictOptions should enable outcome tracking")
	}
}

func TestDebugOptions(t *testing.T) {
	opts := DefaultOptions()

	for _, opt := range DebugOptions() {
		opt(opts)
	}

	if !opts.TrackOutcomes {
		t.Error("DebugOptions should enable outcome tracking")
	}
	if opts.EnablePooling {
		t.Error("DebugOptions should disable pooling")
	}
	if !opts.CollectMetrics {
		t.Error("DebugOptions should enable metrics")
	}
}

func TestOptionsCombination(t *testing.T) {
	opts := DefaultOptions()

	// Apply multiple options
	options := []Option{
		WithPhase("basic"),
		WithFailFast(true),
		WithParallelPatterns(false),
		WithExpressionCache(500),
	}

	for _, opt := range options {
		opt(opts)
	}

	if opts.Phase != "basic" {
		t.Errorf("Phase = %q; want %q", opts.Phase, "basic")
	}
	if !opts.FailFast {
		t.Error("FailFast should be true")
	}
	if opts.ParallelPatterns {
		t.Error("ParallelPatterns should be false")
	}
	if opts.ExpressionCacheSize != 500 {
		t.Errorf("ExpressionCacheSize = %d; want 500", opts.ExpressionCacheSize)
	}
}

func BenchmarkApplyOptions(b *testing.B) {
	options := []Option{
		WithPhase("basic"),
		WithFailFast(true),
		WithPartialResolution(true),
		WithParallelPatterns(true),
		WithWorkerCount(8),
		WithExpressionCache(5000),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		opts := DefaultOptions()
		for _, opt := range options {
			opt(opts)
		}
	}
}
