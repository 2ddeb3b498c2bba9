package eval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/brunobiangulo/gocypher"
	"github.com/brunobiangulo/gocypher/schema"
)

// PassThreshold is the fragment hit rate a generated statement needs to
// pass.
const PassThreshold = 0.5

// Evaluator runs evaluation datasets against a gocypher engine.
type Evaluator struct {
	engine gocypher.Engine
}

// NewEvaluator creates a new evaluator.
func NewEvaluator(engine gocypher.Engine) *Evaluator {
	return &Evaluator{engine: engine}
}

// Run evaluates dataset against engine.
func Run(ctx context.Context, engine gocypher.Engine, dataset Dataset) (*Report, error) {
	return NewEvaluator(engine).Run(ctx, dataset)
}

// Report holds the results of an evaluation run.
type Report struct {
	Dataset         string                      `json:"dataset"`
	Database        string                      `json:"database,omitempty"`
	TotalTests      int                         `json:"total_tests"`
	Passed          int                         `json:"passed"`
	Failed          int                         `json:"failed"`
	Metrics         AggregateMetrics            `json:"metrics"`
	CategoryMetrics map[string]AggregateMetrics `json:"category_metrics,omitempty"`
	Results         []TestResult                `json:"results"`
	RunTime         time.Duration               `json:"run_time"`
}

// AggregateMetrics holds rates in [0,1] across a set of tests.
type AggregateMetrics struct {
	GeneratedRate     float64 `json:"generated_rate"`
	FallbackRate      float64 `json:"fallback_rate"`
	BackendErrorRate  float64 `json:"backend_error_rate"`
	ValidatorPassRate float64 `json:"validator_pass_rate"`
	BoundRate         float64 `json:"bound_rate"`
	FragmentHitRate   float64 `json:"fragment_hit_rate"`
	AvgElapsedMs      float64 `json:"avg_elapsed_ms"`
}

// TestResult holds the result of a single test case.
type TestResult struct {
	Request           string   `json:"request"`
	Category          string   `json:"category,omitempty"`
	ExpectedFragments []string `json:"expected_fragments"`
	MissingFragments  []string `json:"missing_fragments,omitempty"`

	Statement    string              `json:"statement"`
	Provenance   gocypher.Provenance `json:"provenance"`
	Backend      string              `json:"backend"`
	Succeeded    bool                `json:"succeeded"`
	RejectReason string              `json:"reject_reason,omitempty"`

	Validated   bool    `json:"validated"`
	Bound       bool    `json:"bound"`
	FragmentHit float64 `json:"fragment_hit"`
	Passed      bool    `json:"passed"`
	Error       string  `json:"error,omitempty"`
	ElapsedMs   int64   `json:"elapsed_ms"`
}

// counts accumulates the tallies behind AggregateMetrics.
type counts struct {
	n, generated, fallback, backendErr, validated, bound int

	fragments float64
	elapsed   int64
}

func (c *counts) add(r TestResult) {
	c.n++
	if r.Provenance == gocypher.ProvenanceGenerated {
		c.generated++
	} else {
		c.fallback++
	}
	if !r.Succeeded {
		c.backendErr++
	}
	if r.Validated {
		c.validated++
	}
	if r.Bound {
		c.bound++
	}
	c.fragments += r.FragmentHit
	c.elapsed += r.ElapsedMs
}

func (c counts) metrics() AggregateMetrics {
	if c.n == 0 {
		return AggregateMetrics{}
	}
	n := float64(c.n)
	return AggregateMetrics{
		GeneratedRate:     rate(c.generated, c.n),
		FallbackRate:      rate(c.fallback, c.n),
		BackendErrorRate:  rate(c.backendErr, c.n),
		ValidatorPassRate: rate(c.validated, c.n),
		BoundRate:         rate(c.bound, c.n),
		FragmentHitRate:   c.fragments / n,
		AvgElapsedMs:      float64(c.elapsed) / n,
	}
}

// Run executes an evaluation dataset against the engine.
func (e *Evaluator) Run(ctx context.Context, dataset Dataset) (*Report, error) {
	d, ok := dataset.resolveSchema()
	if !ok {
		return nil, fmt.Errorf("%w: %q", gocypher.ErrUnknownDatabase, dataset.Database)
	}

	start := time.Now()
	report := &Report{
		Dataset:         dataset.Name,
		Database:        dataset.Database,
		TotalTests:      len(dataset.Tests),
		CategoryMetrics: make(map[string]AggregateMetrics),
	}

	var total counts
	perCategory := make(map[string]*counts)

	for i, test := range dataset.Tests {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result := e.runTest(ctx, dataset.Database, test, d)
		report.Results = append(report.Results, result)

		status := "PASS"
		if !result.Passed {
			status = "FAIL"
		}
		if result.Error != "" {
			status = "ERROR"
		}
		slog.Info("eval: test complete",
			"progress", fmt.Sprintf("%d/%d", i+1, len(dataset.Tests)),
			"status", status,
			"provenance", result.Provenance,
			"fragments", fmt.Sprintf("%.2f", result.FragmentHit),
			"elapsed_ms", result.ElapsedMs,
			"request", truncate(test.Request, 80))

		if result.Passed {
			report.Passed++
		} else {
			report.Failed++
		}

		// Errors carry no statement; keep them out of the averages.
		if result.Error != "" {
			continue
		}
		total.add(result)
		if test.Category != "" {
			c, ok := perCategory[test.Category]
			if !ok {
				c = &counts{}
				perCategory[test.Category] = c
			}
			c.add(result)
		}
	}

	report.Metrics = total.metrics()
	for cat, c := range perCategory {
		report.CategoryMetrics[cat] = c.metrics()
	}
	report.RunTime = time.Since(start)
	return report, nil
}

func (e *Evaluator) runTest(ctx context.Context, database string, test TestCase, d *schema.Description) TestResult {
	testStart := time.Now()
	result := TestResult{
		Request:           test.Request,
		Category:          test.Category,
		ExpectedFragments: test.ExpectedFragments,
	}

	var opts []gocypher.Option
	if database != "" {
		opts = append(opts, gocypher.WithDatabase(database))
	}
	out, err := e.engine.SynthesizeQuery(ctx, test.Request, d, opts...)
	if err != nil {
		result.Error = err.Error()
		result.ElapsedMs = time.Since(testStart).Milliseconds()
		return result
	}

	result.Statement = out.Statement
	result.Provenance = out.Provenance
	result.Backend = out.Backend
	result.Succeeded = out.Succeeded
	result.RejectReason = out.RejectReason
	result.Validated, result.Bound = checkStatement(out.Statement)
	result.FragmentHit = computeFragmentHit(out.Statement, test.ExpectedFragments)
	result.MissingFragments = missingFragments(out.Statement, test.ExpectedFragments)

	// Fallback statements are safe but do not answer the request.
	result.Passed = out.Provenance == gocypher.ProvenanceGenerated &&
		result.Validated && result.Bound && result.FragmentHit >= PassThreshold

	result.ElapsedMs = time.Since(testStart).Milliseconds()
	return result
}

// FormatReport produces a human-readable report string.
func FormatReport(r *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== Evaluation Report: %s ===\n", r.Dataset)
	if r.Database != "" {
		fmt.Fprintf(&b, "Database: %s\n", r.Database)
	}
	fmt.Fprintf(&b, "Total: %d | Passed: %d (%.1f%%) | Failed: %d\n",
		r.TotalTests, r.Passed, passRate(r.Passed, r.TotalTests), r.Failed)
	fmt.Fprintf(&b, "Run time: %s\n\n", r.RunTime.Round(time.Millisecond))

	fmt.Fprintf(&b, "Aggregate Metrics:\n")
	writeMetrics(&b, "  ", r.Metrics)
	fmt.Fprintln(&b)

	if len(r.CategoryMetrics) > 0 {
		cats := make([]string, 0, len(r.CategoryMetrics))
		for cat := range r.CategoryMetrics {
			cats = append(cats, cat)
		}
		sort.Strings(cats)

		fmt.Fprintf(&b, "Per-Category Metrics:\n")
		for _, cat := range cats {
			m := r.CategoryMetrics[cat]
			fmt.Fprintf(&b, "  [%s]\n", cat)
			fmt.Fprintf(&b, "    Gen=%.2f Valid=%.2f Bound=%.2f Frag=%.2f\n",
				m.GeneratedRate, m.ValidatorPassRate, m.BoundRate, m.FragmentHitRate)
		}
		fmt.Fprintln(&b)
	}

	for i, res := range r.Results {
		status := "PASS"
		if !res.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "[%s] %d. %s\n", status, i+1, res.Request)
		if res.Error != "" {
			fmt.Fprintf(&b, "  Error: %s\n", res.Error)
			continue
		}
		fmt.Fprintf(&b, "  %s (%s, %dms)\n", res.Statement, res.Provenance, res.ElapsedMs)
		if res.RejectReason != "" {
			fmt.Fprintf(&b, "  Rejected: %s\n", res.RejectReason)
		}
		if len(res.MissingFragments) > 0 {
			fmt.Fprintf(&b, "  Missing: %s\n", strings.Join(res.MissingFragments, ", "))
		}
	}

	return b.String()
}

func writeMetrics(b *strings.Builder, indent string, m AggregateMetrics) {
	fmt.Fprintf(b, "%sGenerated:       %.1f%%\n", indent, m.GeneratedRate*100)
	fmt.Fprintf(b, "%sFallback:        %.1f%%\n", indent, m.FallbackRate*100)
	fmt.Fprintf(b, "%sBackend errors:  %.1f%%\n", indent, m.BackendErrorRate*100)
	fmt.Fprintf(b, "%sValidator pass:  %.1f%%\n", indent, m.ValidatorPassRate*100)
	fmt.Fprintf(b, "%sBounded:         %.1f%%\n", indent, m.BoundRate*100)
	fmt.Fprintf(b, "%sFragment hits:   %.1f%%\n", indent, m.FragmentHitRate*100)
	fmt.Fprintf(b, "%sAvg latency:     %.0fms\n", indent, m.AvgElapsedMs)
}

func passRate(passed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(passed) / float64(total) * 100
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
