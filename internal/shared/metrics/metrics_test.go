package metrics

import (
	"bytes"
	"strings"
	"testing"
)

func TestHistogramRenderIsCumulative(t *testing.T) {
	h := newHistogram([]float64{10, 100})
	h.Observe(5)
	h.Observe(50)
	h.Observe(500)

	var buf bytes.Buffer
	writeHistogram(&buf, "test_ms", "test", h.Snapshot())
	out := buf.String()
	for _, want := range []string{
		`test_ms_bucket{le="10"} 1`,
		`test_ms_bucket{le="100"} 2`,
		`test_ms_bucket{le="+Inf"} 3`,
		"test_ms_sum 555",
		"test_ms_count 3",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRenderIncludesLabeledCounters(t *testing.T) {
	IncMethod("agent_pipeline")
	IncStageFailure("actions", "timeout")
	IncLLMInFlight()
	defer DecLLMInFlight()

	out := Render()
	for _, want := range []string{
		`feedback_analysis_method_total{method="agent_pipeline"}`,
		`feedback_stage_failures_total{stage="actions",kind="timeout"}`,
		"# TYPE feedback_llm_inflight gauge",
		"feedback_analysis_duration_ms_count",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestLabeledCounterIgnoresArityMismatch(t *testing.T) {
	c := newLabeledCounter("stage", "kind")
	c.Inc("only-one")
	keys, _ := c.snapshot()
	if len(keys) != 0 {
		t.Fatalf("expected no series, got %v", keys)
	}
}
