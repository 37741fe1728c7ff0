package schematron

import (
	"log/slog"
	"runtime"
)

// Option configures the Validator.
type Option func(*Options)

// Options holds all configuration for the Validator.
type Options struct {
	// Validation behavior
	Phase             string
	FailFast          bool
	PartialResolution bool
	TrackOutcomes     bool

	// Performance
	ParallelPatterns  bool
	WorkerCount       int
	EnablePooling     bool
	PrecompileQueries bool

	// Cache sizes
	ExpressionCacheSize int
	SchemaCacheSize     int

	// Pattern filtering
	PatternFilter string

	// Observability
	Logger         *slog.Logger
	CollectMetrics bool
}

// DefaultOptions returns the default configuration.
func DefaultOptions() *Options {
	return &Options{
		// Phase "" defers to the schema's defaultPhase, falling back to
		// all patterns
		Phase: "",

		// Graceful degradation by default: bad expressions mark the
		// report incomplete instead of aborting the run
		FailFast:          false,
		PartialResolution: false,
		TrackOutcomes:     true,

		// Performance defaults
		ParallelPatterns:  true,
		WorkerCount:       runtime.NumCPU(),
		EnablePooling:     true,
		PrecompileQueries: false,

		// Cache defaults
		ExpressionCacheSize: 2000,
		SchemaCacheSize:     64,

		// Observability off unless asked for
		Logger:         nil,
		CollectMetrics: false,
	}
}

// --- Validation Options ---

// WithPhase selects the validation phase. The sentinels #ALL and #DEFAULT
// are accepted; the empty string behaves like #DEFAULT.
func WithPhase(phase string) Option {
	return func(o *Options) {
		o.Phase = phase
	}
}

// WithFailFast aborts the run on the first expression-evaluation failure
// instead of recording a marker and continuing.
func WithFailFast(enable bool) Option {
	return func(o *Options) {
		o.FailFast = enable
	}
}

// WithPartialResolution keeps schema resolution going when an extends
// reference does not resolve: the affected rules are dropped and recorded,
// the rest of the schema stays usable.
func WithPartialResolution(enable bool) Option {
	return func(o *Options) {
		o.PartialResolution = enable
	}
}

// WithTrackOutcomes records fired/suppressed/skipped rule dispositions on
// the report. Disable to shrink reports on large documents.
func WithTrackOutcomes(enable bool) Option {
	return func(o *Options) {
		o.TrackOutcomes = enable
	}
}

// --- Performance Options ---

// WithParallelPatterns enables parallel execution of active patterns.
// Report ordering is identical either way.
func WithParallelPatterns(enable bool) Option {
	return func(o *Options) {
		o.ParallelPatterns = enable
	}
}

// WithWorkerCount sets the number of workers for parallel pattern execution
// and batch validation. Defaults to runtime.NumCPU().
func WithWorkerCount(count int) Option {
	return func(o *Options) {
		if count > 0 {
			o.WorkerCount = count
		}
	}
}

// WithPooling enables or disables object pooling.
// Pooling reduces GC pressure but requires calling Release() on reports.
func WithPooling(enable bool) Option {
	return func(o *Options) {
		o.EnablePooling = enable
	}
}

// WithPrecompileQueries compiles every rule context and check test while
// the validator is constructed, surfacing expression syntax errors before
// the first document instead of as per-rule markers.
func WithPrecompileQueries(enable bool) Option {
	return func(o *Options) {
		o.PrecompileQueries = enable
	}
}

// --- Cache Options ---

// WithExpressionCache sets the compiled-expression cache size.
func WithExpressionCache(size int) Option {
	return func(o *Options) {
		if size > 0 {
			o.ExpressionCacheSize = size
		}
	}
}

// WithSchemaCache sets the parsed-schema cache size used by catalogs.
func WithSchemaCache(size int) Option {
	return func(o *Options) {
		if size > 0 {
			o.SchemaCacheSize = size
		}
	}
}

// --- Filtering Options ---

// WithPatternFilter restricts the active patterns to those matching a
// filter expression evaluated against each pattern's metadata, for example
// `id startsWith "invoice"` or `rules > 0`. The filter runs after phase
// selection and preserves phase order.
func WithPatternFilter(expr string) Option {
	return func(o *Options) {
		o.PatternFilter = expr
	}
}

// --- Observability Options ---

// WithLogger attaches a structured logger. The validator logs resolution,
// phase selection, and per-pattern timing at debug level; it is silent
// without a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithMetrics enables collection of validation metrics.
func WithMetrics(enable bool) Option {
	return func(o *Options) {
		o.CollectMetrics = enable
	}
}

// --- Presets ---

// FastOptions returns options optimized for speed.
// Skips outcome tracking and uses a larger expression cache.
func FastOptions() []Option {
	return []Option{
		WithTrackOutcomes(false),
		WithParallelPatterns(true),
		WithExpressionCache(5000),
		WithPooling(true),
	}
}

// StrictOptions returns options for strict validation.
// Expression problems fail the run instead of degrading it.
func StrictOptions() []Option {
	return []Option{
		WithFailFast(true),
		WithPrecompileQueries(true),
		WithPartialResolution(false),
		WithTrackOutcomes(true),
	}
}

// DebugOptions returns options useful for debugging.
// Disables pooling for easier inspection and collects metrics.
func DebugOptions() []Option {
	return []Option{
		WithTrackOutcomes(true),
		WithPooling(false),
		WithMetrics(true),
	}
}
