package engine

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/antchfx/xmlquery"

	schematron "github.com/goschematron/validator"
	"github.com/goschematron/validator/ast"
	"github.com/goschematron/validator/stream"
)

// invoiceSchema declares two patterns: totals checks the invoice total,
// lines checks that every line carries a price.
func invoiceSchema() *ast.Schema {
	return &ast.Schema{
		Title: "Invoice rules",
		Patterns: []ast.Pattern{
			&ast.ConcretePattern{
				ID:    "totals",
				Title: "Totals",
				Rules: []ast.Rule{
					&ast.ConcreteRule{
						ID:      "total-nonneg",
						Context: "invoice",
						RuleBody: ast.RuleBody{Checks: []ast.Check{
							&ast.Assert{CheckBody: ast.CheckBody{
								Test:    "number(@total) >= 0",
								Content: ast.MixedContent{ast.Text("total must not be negative")},
							}},
						}},
					},
				},
			},
			&ast.ConcretePattern{
				ID:    "lines",
				Title: "Lines",
				Rules: []ast.Rule{
					&ast.ConcreteRule{
						ID:      "line-priced",
						Context: "line",
						RuleBody: ast.RuleBody{Checks: []ast.Check{
							&ast.Assert{CheckBody: ast.CheckBody{
								Test:    "@price",
								Content: ast.MixedContent{ast.Text("line needs a price")},
							}},
						}},
					},
				},
			},
		},
	}
}

const validInvoice = `<invoice total="10"><line price="4"/><line price="6"/></invoice>`

const badInvoice = `<invoice total="-1"><line/></invoice>`

func TestNew(t *testing.T) {
	ctx := context.Background()

	v, err := New(ctx, invoiceSchema())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if v.Options() == nil {
		t.Error("Options should not be nil")
	}
	if v.Phase() != "#ALL" {
		t.Errorf("Phase = %q; want #ALL", v.Phase())
	}
	if v.Metrics() != nil {
		t.Error("Metrics should be nil unless collection is enabled")
	}
	if got := v.ActivePatterns(); !reflect.DeepEqual(got, []string{"totals", "lines"}) {
		t.Errorf("ActivePatterns = %v", got)
	}
	if v.Schema() == nil {
		t.Error("Schema should not be nil")
	}
}

func TestNew_NilSchema(t *testing.T) {
	if _, err := New(context.Background(), nil); !errors.Is(err, schematron.ErrNilSchema) {
		t.Errorf("err = %v; want ErrNilSchema", err)
	}
}

func TestNew_QueryBinding(t *testing.T) {
	tests := []struct {
		binding string
		wantErr bool
	}{
		{"", false},
		{"xslt", false},
		{"XSLT2", false},
		{"xpath", false},
		{"xpath2", false},
		{"xpath31", false},
		{"xquery", true},
		{"stx", true},
	}

	for _, tt := range tests {
		schema := invoiceSchema()
		schema.QueryBinding = tt.binding
		_, err := New(context.Background(), schema)
		if (err != nil) != tt.wantErr {
			t.Errorf("binding %q: err = %v; wantErr %v", tt.binding, err, tt.wantErr)
		}
	}
}

func TestNew_WithOptions(t *testing.T) {
	v, err := New(context.Background(), invoiceSchema(),
		schematron.WithFailFast(true),
		schematron.WithParallelPatterns(false),
		schematron.WithWorkerCount(2),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	opts := v.Options()
	if !opts.FailFast {
		t.Error("FailFast should be true")
	}
	if opts.ParallelPatterns {
		t.Error("ParallelPatterns should be false")
	}
	if opts.WorkerCount != 2 {
		t.Errorf("WorkerCount = %d; want 2", opts.WorkerCount)
	}
}

func TestValidate(t *testing.T) {
	ctx := context.Background()
	v, err := New(ctx, invoiceSchema())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	t.Run("valid document", func(t *testing.T) {
		report, err := v.Validate(ctx, []byte(validInvoice))
		if err != nil {
			t.Fatalf("Validate returned error: %v", err)
		}
		defer report.Release()

		if !report.Valid {
			t.Errorf("Valid = false; results: %v", report.Results)
		}
		if !report.Complete() {
			t.Errorf("Complete = false; markers: %v", report.Errors)
		}
		if report.SchemaTitle != "Invoice rules" {
			t.Errorf("SchemaTitle = %q", report.SchemaTitle)
		}
	})

	t.Run("invalid document", func(t *testing.T) {
		report, err := v.Validate(ctx, []byte(badInvoice))
		if err != nil {
			t.Fatalf("Validate returned error: %v", err)
		}
		defer report.Release()

		if report.Valid {
			t.Error("Valid = true; want false")
		}
		if len(report.Results) != 2 {
			t.Fatalf("got %d results, want 2", len(report.Results))
		}
		if report.Results[0].PatternID != "totals" || report.Results[1].PatternID != "lines" {
			t.Errorf("results out of pattern order: %v", report.Results)
		}
	})
}

func TestValidate_MalformedXML(t *testing.T) {
	ctx := context.Background()
	v, err := New(ctx, invoiceSchema())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	report, err := v.Validate(ctx, []byte(`<invoice><line>`))
	if err == nil {
		t.Fatal("expected a parse error")
	}
	if report != nil {
		t.Error("report should be nil on parse failure")
	}
}

func TestValidateReader(t *testing.T) {
	ctx := context.Background()
	v, err := New(ctx, invoiceSchema())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	report, err := v.ValidateReader(ctx, strings.NewReader(validInvoice))
	if err != nil {
		t.Fatalf("ValidateReader returned error: %v", err)
	}
	if !report.Valid {
		t.Error("Valid = false")
	}
}

func TestValidateDocument(t *testing.T) {
	ctx := context.Background()
	v, err := New(ctx, invoiceSchema())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	doc, err := xmlquery.Parse(strings.NewReader(badInvoice))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	report, err := v.ValidateDocument(ctx, doc)
	if err != nil {
		t.Fatalf("ValidateDocument returned error: %v", err)
	}
	if report.Valid {
		t.Error("Valid = true; want false")
	}

	if _, err := v.ValidateDocument(ctx, nil); !errors.Is(err, schematron.ErrNilDocument) {
		t.Errorf("nil document: err = %v; want ErrNilDocument", err)
	}
}

func TestValidateBatch(t *testing.T) {
	ctx := context.Background()
	v, err := New(ctx, invoiceSchema(), schematron.WithWorkerCount(2))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	documents := [][]byte{
		[]byte(validInvoice),
		[]byte(badInvoice),
		[]byte(`<invoice><line>`), // malformed
		[]byte(validInvoice),
	}

	reports := v.ValidateBatch(ctx, documents)
	if len(reports) != len(documents) {
		t.Fatalf("got %d reports, want %d", len(reports), len(documents))
	}
	for i, report := range reports {
		if report == nil {
			t.Fatalf("reports[%d] is nil", i)
		}
	}

	if !reports[0].Valid || !reports[3].Valid {
		t.Error("valid documents should produce valid reports")
	}
	if reports[1].Valid {
		t.Error("reports[1].Valid = true; want false")
	}

	malformed := reports[2]
	if malformed.Complete() {
		t.Error("malformed document should produce an incomplete report")
	}
	if len(malformed.Errors) != 1 || malformed.Errors[0].Stage != schematron.StageParse {
		t.Errorf("malformed markers = %v; want one parse-stage marker", malformed.Errors)
	}
}

func TestValidateStream(t *testing.T) {
	ctx := context.Background()
	v, err := New(ctx, invoiceSchema(), schematron.WithWorkerCount(2))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	documents := []stream.Document{
		{Name: "good.xml", Data: []byte(validInvoice)},
		{Name: "bad.xml", Data: []byte(badInvoice)},
		{Name: "broken.xml", Data: []byte(`<invoice><line>`)}, // malformed
	}

	runs := []struct {
		name    string
		results <-chan *stream.Result
	}{
		{"sequential", v.ValidateStream(ctx, stream.FromSlice(documents))},
		{"parallel", v.ValidateStreamParallel(ctx, stream.FromSlice(documents))},
	}

	for _, run := range runs {
		t.Run(run.name, func(t *testing.T) {
			var results []*stream.Result
			for r := range run.results {
				results = append(results, r)
			}

			if len(results) != len(documents) {
				t.Fatalf("got %d results, want %d", len(results), len(documents))
			}
			for i, r := range results {
				if r.Index != i {
					t.Errorf("results[%d].Index = %d", i, r.Index)
				}
				if r.Name != documents[i].Name {
					t.Errorf("results[%d].Name = %q; want %q", i, r.Name, documents[i].Name)
				}
			}

			if results[0].Err != nil || !results[0].Report.Valid {
				t.Errorf("good.xml: err %v, report %v", results[0].Err, results[0].Report)
			}
			if results[1].Err != nil || results[1].Report.Valid {
				t.Errorf("bad.xml should produce an invalid report: %v", results[1])
			}
			if results[2].Err == nil {
				t.Error("broken.xml should produce a processing error")
			}
		})
	}
}

func TestAggregateStreamResults(t *testing.T) {
	ctx := context.Background()
	v, err := New(ctx, invoiceSchema())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	documents := []stream.Document{
		{Name: "good.xml", Data: []byte(validInvoice)},
		{Name: "bad.xml", Data: []byte(badInvoice)},
		{Name: "broken.xml", Data: []byte(`<invoice><line>`)},
	}

	summary := AggregateStreamResults(v.ValidateStream(ctx, stream.FromSlice(documents)))

	if summary.TotalDocuments != 2 {
		t.Errorf("TotalDocuments = %d; want 2", summary.TotalDocuments)
	}
	if summary.InvalidDocuments != 1 {
		t.Errorf("InvalidDocuments = %d; want 1", summary.InvalidDocuments)
	}
	if len(summary.ProcessingErrors) != 1 {
		t.Errorf("ProcessingErrors = %v; want 1 entry", summary.ProcessingErrors)
	}
	// badInvoice fails the total assert and the line-price assert.
	if summary.FiredAsserts != 2 {
		t.Errorf("FiredAsserts = %d; want 2", summary.FiredAsserts)
	}
	if !summary.HasFailures() {
		t.Error("HasFailures() = false")
	}
	if got := summary.ResultsByIndex[1]; len(got) != 2 {
		t.Errorf("ResultsByIndex[1] = %v; want 2 fired checks", got)
	}
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	v, err := New(ctx, invoiceSchema())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := v.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	if _, err := v.Validate(ctx, []byte(validInvoice)); !errors.Is(err, schematron.ErrValidatorClosed) {
		t.Errorf("Validate after Close: err = %v; want ErrValidatorClosed", err)
	}
	doc, _ := xmlquery.Parse(strings.NewReader(validInvoice))
	if _, err := v.ValidateDocument(ctx, doc); !errors.Is(err, schematron.ErrValidatorClosed) {
		t.Errorf("ValidateDocument after Close: err = %v; want ErrValidatorClosed", err)
	}
}

func TestNew_PhaseSelection(t *testing.T) {
	schema := invoiceSchema()
	schema.Phases = []*ast.Phase{
		{ID: "totals-only", Active: []string{"totals"}},
	}

	v, err := New(context.Background(), schema, schematron.WithPhase("totals-only"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if v.Phase() != "totals-only" {
		t.Errorf("Phase = %q", v.Phase())
	}
	if got := v.ActivePatterns(); !reflect.DeepEqual(got, []string{"totals"}) {
		t.Errorf("ActivePatterns = %v", got)
	}

	report, err := v.Validate(context.Background(), []byte(badInvoice))
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	// The missing line price is out of phase; only the total fires.
	if len(report.Results) != 1 || report.Results[0].PatternID != "totals" {
		t.Errorf("results = %v; want one result from totals", report.Results)
	}
}

func TestNew_UnknownPhase(t *testing.T) {
	_, err := New(context.Background(), invoiceSchema(), schematron.WithPhase("nope"))
	var unknown *schematron.UnknownPatternReferenceError
	if !errors.As(err, &unknown) {
		t.Fatalf("err = %v; want UnknownPatternReferenceError", err)
	}
	if unknown.PatternID != "nope" {
		t.Errorf("PatternID = %q; want nope", unknown.PatternID)
	}
}

func TestNew_PatternFilter(t *testing.T) {
	t.Run("filters by id", func(t *testing.T) {
		v, err := New(context.Background(), invoiceSchema(),
			schematron.WithPatternFilter(`id != "lines"`))
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if got := v.ActivePatterns(); !reflect.DeepEqual(got, []string{"totals"}) {
			t.Errorf("ActivePatterns = %v", got)
		}
	})

	t.Run("filters by rule count", func(t *testing.T) {
		v, err := New(context.Background(), invoiceSchema(),
			schematron.WithPatternFilter(`rules > 0`))
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if got := len(v.ActivePatterns()); got != 2 {
			t.Errorf("kept %d patterns; want 2", got)
		}
	})

	t.Run("bad filter", func(t *testing.T) {
		if _, err := New(context.Background(), invoiceSchema(),
			schematron.WithPatternFilter(`id +`)); err == nil {
			t.Error("expected a compile error")
		}
	})

	t.Run("non-boolean filter", func(t *testing.T) {
		if _, err := New(context.Background(), invoiceSchema(),
			schematron.WithPatternFilter(`title`)); err == nil {
			t.Error("expected a type error")
		}
	})
}

func TestNew_PrecompileQueries(t *testing.T) {
	schema := invoiceSchema()
	schema.Patterns = append(schema.Patterns, &ast.ConcretePattern{
		ID: "broken",
		Rules: []ast.Rule{
			&ast.ConcreteRule{
				ID:      "bad-test",
				Context: "invoice",
				RuleBody: ast.RuleBody{Checks: []ast.Check{
					&ast.Assert{CheckBody: ast.CheckBody{Test: "]["}},
				}},
			},
		},
	})

	if _, err := New(context.Background(), schema, schematron.WithPrecompileQueries(true)); err == nil {
		t.Error("expected a compile error with precompilation on")
	}

	v, err := New(context.Background(), schema)
	if err != nil {
		t.Fatalf("New without precompilation failed: %v", err)
	}
	report, err := v.Validate(context.Background(), []byte(validInvoice))
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if report.Complete() {
		t.Error("bad expression should surface as a marker at validation time")
	}
}

func TestNew_PartialResolution(t *testing.T) {
	schema := invoiceSchema()
	pat := schema.Patterns[0].(*ast.ConcretePattern)
	pat.Rules = append(pat.Rules, &ast.ConcreteRule{
		ID:      "dangling",
		Context: "invoice",
		RuleBody: ast.RuleBody{
			Extends: []ast.Extends{&ast.ExtendsByID{IDPointer: "missing"}},
		},
	})

	t.Run("fatal by default", func(t *testing.T) {
		_, err := New(context.Background(), schema)
		var unresolved *schematron.UnresolvedExtensionReferenceError
		if !errors.As(err, &unresolved) {
			t.Fatalf("err = %v; want UnresolvedExtensionReferenceError", err)
		}
	})

	t.Run("dropped when partial", func(t *testing.T) {
		v, err := New(context.Background(), schema, schematron.WithPartialResolution(true))
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if len(v.Dropped()) != 1 {
			t.Fatalf("Dropped = %v; want one entry", v.Dropped())
		}
		if v.Dropped()[0].RuleID != "dangling" {
			t.Errorf("dropped rule = %q", v.Dropped()[0].RuleID)
		}
	})
}

func TestValidate_FailFast(t *testing.T) {
	schema := invoiceSchema()
	pat := schema.Patterns[0].(*ast.ConcretePattern)
	pat.Rules[0].(*ast.ConcreteRule).Checks = append(
		pat.Rules[0].(*ast.ConcreteRule).Checks,
		&ast.Assert{CheckBody: ast.CheckBody{Test: "]["}},
	)

	v, err := New(context.Background(), schema, schematron.WithFailFast(true))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	report, err := v.Validate(context.Background(), []byte(validInvoice))
	if report != nil {
		t.Error("report should be nil on fail-fast abort")
	}
	var ee *schematron.ExpressionEvaluationError
	if !errors.As(err, &ee) {
		t.Fatalf("err = %v; want ExpressionEvaluationError", err)
	}
}

func TestValidate_Metrics(t *testing.T) {
	ctx := context.Background()
	v, err := New(ctx, invoiceSchema(), schematron.WithMetrics(true))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	m := v.Metrics()
	if m == nil {
		t.Fatal("Metrics should not be nil with collection enabled")
	}

	if _, err := v.Validate(ctx, []byte(validInvoice)); err != nil {
		t.Fatalf("first validate: %v", err)
	}
	if _, err := v.Validate(ctx, []byte(badInvoice)); err != nil {
		t.Fatalf("second validate: %v", err)
	}

	if got := m.ValidationsTotal(); got != 2 {
		t.Errorf("ValidationsTotal = %d; want 2", got)
	}
	if got := m.ValidationsValid(); got != 1 {
		t.Errorf("ValidationsValid = %d; want 1", got)
	}
	if m.NodesVisited() == 0 {
		t.Error("NodesVisited = 0")
	}
	// The second run reuses every compiled expression.
	if m.CacheHits() == 0 {
		t.Error("CacheHits = 0; expected compiled-expression reuse")
	}
}

func TestValidate_Namespaces(t *testing.T) {
	schema := &ast.Schema{
		Namespaces: []ast.Namespace{{Prefix: "inv", URI: "urn:example:invoice"}},
		Patterns: []ast.Pattern{
			&ast.ConcretePattern{
				ID: "ns-lines",
				Rules: []ast.Rule{
					&ast.ConcreteRule{
						ID:      "priced",
						Context: "inv:line",
						RuleBody: ast.RuleBody{Checks: []ast.Check{
							&ast.Assert{CheckBody: ast.CheckBody{
								Test:    "@price",
								Content: ast.MixedContent{ast.Text("line needs a price")},
							}},
						}},
					},
				},
			},
		},
	}

	v, err := New(context.Background(), schema)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	doc := `<i:invoice xmlns:i="urn:example:invoice"><i:line/></i:invoice>`
	report, err := v.Validate(context.Background(), []byte(doc))
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if report.Valid {
		t.Error("Valid = true; the namespaced line has no price")
	}
	if len(report.Results) != 1 {
		t.Fatalf("got %d results, want 1", len(report.Results))
	}
}
