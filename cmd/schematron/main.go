// Package main implements the schematron CLI tool. It validates XML
// documents against a Schematron schema, straight from a .sch file or
// through a catalog manifest.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	schematron "github.com/goschematron/validator"
	"github.com/goschematron/validator/engine"
	"github.com/goschematron/validator/parser"
	"github.com/goschematron/validator/registry"
)

const (
	version = "0.1.0"
	usage   = `schematron - Schematron XML validator

Usage:
  schematron [options] <file>...
  schematron [options] -             (read from stdin)
  cat document.xml | schematron -schema rules.sch -

Examples:
  schematron -schema rules.sch document.xml
  schematron -schema rules.sch -phase intake 'docs/**/*.xml'
  schematron -catalog catalog.yaml -name invoice document.xml
  schematron -config validate.yaml
  schematron -schema rules.sch -parallel -metrics batch/*.xml

Exit codes:
  0  every document is valid
  1  at least one document has failed asserts
  2  a document or the schema could not be processed

Options:
`
)

// Exit codes.
const (
	exitValid   = 0
	exitInvalid = 1
	exitError   = 2
)

// Config holds CLI configuration, merged from flags and an optional YAML
// config file. Explicit flags win over file values.
type Config struct {
	Schema    string   `yaml:"schema"`
	Catalog   string   `yaml:"catalog"`
	Name      string   `yaml:"name"`
	Phase     string   `yaml:"phase"`
	Parallel  bool     `yaml:"parallel"`
	FailFast  bool     `yaml:"fail_fast"`
	Quiet     bool     `yaml:"quiet"`
	Verbose   bool     `yaml:"verbose"`
	Metrics   bool     `yaml:"metrics"`
	Documents []string `yaml:"documents"`

	ShowVersion bool `yaml:"-"`
	Help        bool `yaml:"-"`
}

func main() {
	config, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}

	if config.ShowVersion {
		fmt.Printf("schematron v%s\n", version)
		os.Exit(exitValid)
	}

	if config.Help {
		flag.Usage()
		os.Exit(exitValid)
	}

	if len(config.Documents) == 0 {
		flag.Usage()
		os.Exit(exitError)
	}

	os.Exit(run(config))
}

func parseFlags() (*Config, error) {
	config := &Config{}
	var configPath string

	flag.StringVar(&config.Schema, "schema", "", "Schematron schema file (.sch)")
	flag.StringVar(&config.Catalog, "catalog", "", "Schema catalog manifest (catalog.yaml)")
	flag.StringVar(&config.Name, "name", "", "Schema name to pick from the catalog")
	flag.StringVar(&config.Phase, "phase", "", "Validation phase (#ALL, #DEFAULT, or a phase id)")
	flag.StringVar(&configPath, "config", "", "YAML config file; flags override its values")
	flag.BoolVar(&config.Parallel, "parallel", false, "Validate documents in parallel")
	flag.BoolVar(&config.FailFast, "fail-fast", false, "Abort a document on the first expression error")
	flag.BoolVar(&config.Quiet, "quiet", false, "Only print per-document status lines")
	flag.BoolVar(&config.Verbose, "verbose", false, "Log engine activity to stderr")
	flag.BoolVar(&config.Metrics, "metrics", false, "Print engine metrics to stderr after the run")
	flag.BoolVar(&config.ShowVersion, "v", false, "Show version")
	flag.BoolVar(&config.Help, "help", false, "Show help")

	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}

	flag.Parse()
	config.Documents = flag.Args()

	if configPath != "" {
		if err := mergeConfigFile(config, configPath); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// mergeConfigFile layers file values under the flags: a value from the
// file applies only when its flag was not given on the command line.
func mergeConfigFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if !set["schema"] {
		config.Schema = file.Schema
	}
	if !set["catalog"] {
		config.Catalog = file.Catalog
	}
	if !set["name"] {
		config.Name = file.Name
	}
	if !set["phase"] {
		config.Phase = file.Phase
	}
	if !set["parallel"] {
		config.Parallel = file.Parallel
	}
	if !set["fail-fast"] {
		config.FailFast = file.FailFast
	}
	if !set["quiet"] {
		config.Quiet = file.Quiet
	}
	if !set["verbose"] {
		config.Verbose = file.Verbose
	}
	if !set["metrics"] {
		config.Metrics = file.Metrics
	}
	if len(config.Documents) == 0 {
		config.Documents = file.Documents
	}

	return nil
}

func run(config *Config) int {
	ctx := context.Background()

	v, err := buildValidator(ctx, config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}
	defer v.Close()

	documents, hasErrors := collectDocuments(config.Documents)
	if len(documents) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no documents to validate")
		return exitError
	}

	if !config.Quiet {
		fmt.Fprintf(os.Stderr, "Validating %d document(s), phase %s...\n\n", len(documents), v.Phase())
	}

	invalid := 0
	if config.Parallel && len(documents) > 1 {
		data := make([][]byte, len(documents))
		for i, doc := range documents {
			data[i] = doc.data
		}
		for i, report := range v.ValidateBatch(ctx, data) {
			if err := parseFailure(report); err != nil {
				fmt.Fprintf(os.Stderr, "Error validating %s: %v\n", documents[i].name, err)
				hasErrors = true
				continue
			}
			if !printReport(documents[i].name, report, config) {
				invalid++
			}
			report.Release()
		}
	} else {
		for _, doc := range documents {
			report, err := v.Validate(ctx, doc.data)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error validating %s: %v\n", doc.name, err)
				hasErrors = true
				continue
			}
			if !printReport(doc.name, report, config) {
				invalid++
			}
			report.Release()
		}
	}

	if !config.Quiet {
		fmt.Printf("%d of %d document(s) valid\n", len(documents)-invalid, len(documents))
	}

	if config.Metrics {
		if m := v.Metrics(); m != nil {
			printMetrics(m.Snapshot())
		}
	}

	switch {
	case hasErrors:
		return exitError
	case invalid > 0:
		return exitInvalid
	}
	return exitValid
}

func buildValidator(ctx context.Context, config *Config) (*engine.Validator, error) {
	opts := buildOptions(config)

	switch {
	case config.Schema != "" && config.Catalog != "":
		return nil, errors.New("-schema and -catalog are mutually exclusive")

	case config.Schema != "":
		schema, err := parser.ParseSchemaFile(config.Schema)
		if err != nil {
			return nil, err
		}
		return engine.New(ctx, schema, opts...)

	case config.Catalog != "":
		cat, err := registry.Open(config.Catalog)
		if err != nil {
			return nil, err
		}
		if config.Name == "" {
			return nil, fmt.Errorf("-catalog requires -name; available: %s",
				strings.Join(cat.Names(), ", "))
		}
		return cat.Validator(ctx, config.Name, opts...)

	default:
		return nil, errors.New("a schema is required: pass -schema or -catalog with -name")
	}
}

func buildOptions(config *Config) []schematron.Option {
	var opts []schematron.Option
	if config.Phase != "" {
		opts = append(opts, schematron.WithPhase(config.Phase))
	}
	if config.FailFast {
		opts = append(opts, schematron.WithFailFast(true))
	}
	if config.Metrics {
		opts = append(opts, schematron.WithMetrics(true))
	}
	if config.Verbose {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		opts = append(opts, schematron.WithLogger(logger))
	}
	return opts
}

type document struct {
	name string
	data []byte
}

// collectDocuments expands the argument list into document contents. An
// argument of - reads stdin; anything else is a doublestar glob pattern,
// so literal paths work unchanged and 'docs/**/*.xml' fans out.
func collectDocuments(patterns []string) ([]document, bool) {
	var documents []document
	hasErrors := false

	for _, pattern := range patterns {
		if pattern == "-" {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error reading stdin: %v\n", err)
				hasErrors = true
				continue
			}
			documents = append(documents, document{name: "stdin", data: data})
			continue
		}

		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error with pattern %q: %v\n", pattern, err)
			hasErrors = true
			continue
		}
		if len(matches) == 0 {
			fmt.Fprintf(os.Stderr, "No files match pattern: %s\n", pattern)
			hasErrors = true
			continue
		}

		for _, match := range matches {
			data, err := os.ReadFile(match)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", match, err)
				hasErrors = true
				continue
			}
			documents = append(documents, document{name: match, data: data})
		}
	}

	return documents, hasErrors
}

// parseFailure extracts the underlying error when a batch report stands in
// for a document that never reached evaluation.
func parseFailure(report *schematron.Report) error {
	for _, e := range report.Errors {
		if e.Stage == schematron.StageParse {
			return e.Err
		}
	}
	return nil
}

// printReport prints one document's outcome and returns its validity.
func printReport(name string, report *schematron.Report, config *Config) bool {
	status := "VALID"
	if !report.Valid {
		status = "INVALID"
	}

	fmt.Printf("== %s ==\n", name)
	fmt.Printf("Status: %s\n", status)
	fmt.Printf("Failed asserts: %d, Fired reports: %d\n",
		len(report.FailedAsserts()), len(report.FiredReports()))
	if config.Verbose {
		fmt.Printf("Duration: %s\n", report.Duration.Round(time.Microsecond))
	}
	if !report.Complete() {
		fmt.Printf("Incomplete: %d expression error(s)\n", len(report.Errors))
	}

	if len(report.Results) > 0 && !config.Quiet {
		fmt.Println("\nChecks:")
		for _, result := range report.Results {
			kind := "ASSERT"
			if result.IsReport() {
				kind = "REPORT"
			}
			location := ""
			if result.Location != "" {
				location = fmt.Sprintf(" @ %s", result.Location)
			}
			fmt.Printf("  %s %s%s\n", kind, result.Message, location)
		}
	}

	fmt.Println()
	return report.Valid
}

func printMetrics(s schematron.Snapshot) {
	fmt.Fprintln(os.Stderr, "Metrics:")
	fmt.Fprintf(os.Stderr, "  validations: %d total, %d valid\n",
		s.ValidationsTotal, s.ValidationsValid)
	fmt.Fprintf(os.Stderr, "  nodes visited: %d, rules matched: %d, checks evaluated: %d\n",
		s.NodesVisited, s.RulesMatched, s.ChecksEvaluated)
	fmt.Fprintf(os.Stderr, "  asserts fired: %d, reports fired: %d, eval errors: %d\n",
		s.AssertsFired, s.ReportsFired, s.EvalErrors)
	fmt.Fprintf(os.Stderr, "  expression cache: %d hits, %d misses (%.0f%% hit rate)\n",
		s.CacheHits, s.CacheMisses, s.CacheHitRate*100)
	fmt.Fprintf(os.Stderr, "  avg validation time: %s\n",
		time.Duration(s.AvgValidationTimeNs).Round(time.Microsecond))
}
