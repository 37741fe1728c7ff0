package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/antchfx/xmlquery"

	schematron "github.com/goschematron/validator"
	"github.com/goschematron/validator/ast"
)

// Sample documents for benchmarking.
var (
	simpleDocument = []byte(`<invoice total="10"><line price="4" qty="1"/><line price="6" qty="2"/></invoice>`)

	complexDocument = buildComplexDocument()
)

// buildComplexDocument generates an invoice with 200 lines, a quarter of
// them missing a price.
func buildComplexDocument() []byte {
	var sb strings.Builder
	sb.WriteString(`<invoice total="1000">`)
	for i := 0; i < 200; i++ {
		if i%4 == 0 {
			fmt.Fprintf(&sb, `<line qty="%d"/>`, i%7)
		} else {
			fmt.Fprintf(&sb, `<line price="%d" qty="%d"/>`, i%13, i%7)
		}
	}
	sb.WriteString(`</invoice>`)
	return []byte(sb.String())
}

// wideSchema generates n patterns, each with an assert and a report over
// the invoice lines.
func wideSchema(n int) *ast.Schema {
	schema := &ast.Schema{Title: "Wide"}
	for i := 0; i < n; i++ {
		schema.Patterns = append(schema.Patterns, &ast.ConcretePattern{
			ID: fmt.Sprintf("pat-%d", i),
			Rules: []ast.Rule{
				&ast.ConcreteRule{
					ID:      fmt.Sprintf("rule-%d", i),
					Context: "line",
					RuleBody: ast.RuleBody{Checks: []ast.Check{
						&ast.Assert{CheckBody: ast.CheckBody{
							Test:    "@price",
							Content: ast.MixedContent{ast.Text("line needs a price")},
						}},
						&ast.Report{CheckBody: ast.CheckBody{
							Test:    "number(@qty) > 5",
							Content: ast.MixedContent{ast.Text("large quantity")},
						}},
					}},
				},
			},
		})
	}
	return schema
}

func BenchmarkValidate_SimpleDocument(b *testing.B) {
	ctx := context.Background()
	v, err := New(ctx, invoiceSchema())
	if err != nil {
		b.Fatalf("New failed: %v", err)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		report, err := v.Validate(ctx, simpleDocument)
		if err != nil {
			b.Fatalf("Validate returned error: %v", err)
		}
		report.Release()
	}
}

func BenchmarkValidate_ComplexDocument(b *testing.B) {
	ctx := context.Background()
	v, err := New(ctx, invoiceSchema())
	if err != nil {
		b.Fatalf("New failed: %v", err)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		report, err := v.Validate(ctx, complexDocument)
		if err != nil {
			b.Fatalf("Validate returned error: %v", err)
		}
		report.Release()
	}
}

// BenchmarkValidateDocument isolates rule evaluation from XML parsing by
// reusing one parsed document.
func BenchmarkValidateDocument(b *testing.B) {
	ctx := context.Background()
	v, err := New(ctx, invoiceSchema())
	if err != nil {
		b.Fatalf("New failed: %v", err)
	}
	doc, err := xmlquery.Parse(strings.NewReader(string(complexDocument)))
	if err != nil {
		b.Fatalf("parse: %v", err)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		report, err := v.ValidateDocument(ctx, doc)
		if err != nil {
			b.Fatalf("ValidateDocument returned error: %v", err)
		}
		report.Release()
	}
}

func BenchmarkValidate_Pooling(b *testing.B) {
	ctx := context.Background()

	b.Run("pooled", func(b *testing.B) {
		v, err := New(ctx, invoiceSchema(), schematron.WithPooling(true))
		if err != nil {
			b.Fatalf("New failed: %v", err)
		}
		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			report, _ := v.Validate(ctx, simpleDocument)
			report.Release()
		}
	})

	b.Run("unpooled", func(b *testing.B) {
		v, err := New(ctx, invoiceSchema(), schematron.WithPooling(false))
		if err != nil {
			b.Fatalf("New failed: %v", err)
		}
		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			report, _ := v.Validate(ctx, simpleDocument)
			report.Release()
		}
	})
}

func BenchmarkParallelPatterns(b *testing.B) {
	ctx := context.Background()
	schema := wideSchema(16)

	b.Run("sequential", func(b *testing.B) {
		v, err := New(ctx, schema, schematron.WithParallelPatterns(false))
		if err != nil {
			b.Fatalf("New failed: %v", err)
		}
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			report, err := v.Validate(ctx, complexDocument)
			if err != nil {
				b.Fatalf("Validate returned error: %v", err)
			}
			report.Release()
		}
	})

	for _, workers := range []int{2, 4, 8} {
		b.Run(fmt.Sprintf("workers_%d", workers), func(b *testing.B) {
			v, err := New(ctx, schema,
				schematron.WithParallelPatterns(true),
				schematron.WithWorkerCount(workers),
			)
			if err != nil {
				b.Fatalf("New failed: %v", err)
			}
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				report, err := v.Validate(ctx, complexDocument)
				if err != nil {
					b.Fatalf("Validate returned error: %v", err)
				}
				report.Release()
			}
		})
	}
}

func BenchmarkValidateBatch(b *testing.B) {
	ctx := context.Background()

	documents := make([][]byte, 64)
	for i := range documents {
		if i%2 == 0 {
			documents[i] = simpleDocument
		} else {
			documents[i] = complexDocument
		}
	}

	for _, workers := range []int{1, 4, 8} {
		b.Run(fmt.Sprintf("workers_%d", workers), func(b *testing.B) {
			v, err := New(ctx, invoiceSchema(), schematron.WithWorkerCount(workers))
			if err != nil {
				b.Fatalf("New failed: %v", err)
			}
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				reports := v.ValidateBatch(ctx, documents)
				for _, report := range reports {
					report.Release()
				}
			}
		})
	}
}

// BenchmarkConcurrentValidation exercises one validator from many
// goroutines, the intended serving pattern.
func BenchmarkConcurrentValidation(b *testing.B) {
	ctx := context.Background()
	v, err := New(ctx, invoiceSchema())
	if err != nil {
		b.Fatalf("New failed: %v", err)
	}

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			report, err := v.Validate(ctx, simpleDocument)
			if err != nil {
				b.Errorf("Validate returned error: %v", err)
				return
			}
			report.Release()
		}
	})
}

func BenchmarkThroughput(b *testing.B) {
	ctx := context.Background()
	v, err := New(ctx, invoiceSchema())
	if err != nil {
		b.Fatalf("New failed: %v", err)
	}

	const batchSize = 1000
	documents := make([][]byte, batchSize)
	for i := range documents {
		documents[i] = simpleDocument
	}

	start := time.Now()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		reports := v.ValidateBatch(ctx, documents)
		for _, report := range reports {
			report.Release()
		}
	}

	b.StopTimer()
	elapsed := time.Since(start)
	throughput := float64(b.N*batchSize) / elapsed.Seconds()
	b.ReportMetric(throughput, "documents/sec")
}
