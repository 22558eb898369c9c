package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	analysisStartedTotal  atomic.Uint64
	analysisDegradedTotal atomic.Uint64
	hookFailedTotal       atomic.Uint64
	batchItemsTotal       atomic.Uint64
	batchDeadlineTotal    atomic.Uint64
	llmInFlight           atomic.Int64

	methodTotal       = newLabeledCounter("method")
	stageFailureTotal = newLabeledCounter("stage", "kind")
	workerJobsTotal   = newLabeledCounter("status")

	analysisDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
)

// IncAnalysisStarted increments the started counter.
func IncAnalysisStarted() {
	analysisStartedTotal.Add(1)
}

// IncMethod counts a finished analysis by the tier that produced it.
func IncMethod(method string) {
	methodTotal.Inc(method)
}

// IncDegraded counts an outcome delivered with degraded=true.
func IncDegraded() {
	analysisDegradedTotal.Add(1)
}

// IncStageFailure counts a stage failure by stage name and error kind.
func IncStageFailure(stage, kind string) {
	stageFailureTotal.Inc(stage, kind)
}

// IncHookFailed counts completion hook errors.
func IncHookFailed() {
	hookFailedTotal.Add(1)
}

// AddBatchItems counts items submitted through batch analysis.
func AddBatchItems(n int) {
	if n > 0 {
		batchItemsTotal.Add(uint64(n))
	}
}

// IncBatchDeadline counts items that missed the batch deadline before starting.
func IncBatchDeadline() {
	batchDeadlineTotal.Add(1)
}

// IncWorkerJob counts a queue job by final status (succeeded, failed, dropped).
func IncWorkerJob(status string) {
	workerJobsTotal.Inc(status)
}

// IncLLMInFlight marks an LLM call as started.
func IncLLMInFlight() {
	llmInFlight.Add(1)
}

// DecLLMInFlight marks an LLM call as finished.
func DecLLMInFlight() {
	llmInFlight.Add(-1)
}

// ObserveAnalysisDurationMs records an analysis duration in milliseconds.
func ObserveAnalysisDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	analysisDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "feedback_analysis_started_total", "Total analyses started", analysisStartedTotal.Load())
	writeLabeledCounter(&buf, "feedback_analysis_method_total", "Analyses finished per tier", methodTotal)
	writeCounter(&buf, "feedback_analysis_degraded_total", "Analyses delivered degraded", analysisDegradedTotal.Load())
	writeLabeledCounter(&buf, "feedback_stage_failures_total", "Stage failures by stage and kind", stageFailureTotal)
	writeCounter(&buf, "feedback_hook_failures_total", "Completion hook (persistence) errors", hookFailedTotal.Load())
	writeCounter(&buf, "feedback_batch_items_total", "Items submitted through batch analysis", batchItemsTotal.Load())
	writeCounter(&buf, "feedback_batch_deadline_items_total", "Batch items that missed the batch deadline", batchDeadlineTotal.Load())
	writeLabeledCounter(&buf, "feedback_worker_jobs_total", "Queue jobs by final status", workerJobsTotal)
	writeGauge(&buf, "feedback_llm_inflight", "LLM calls currently in flight", llmInFlight.Load())
	writeHistogram(&buf, "feedback_analysis_duration_ms", "Analysis duration in milliseconds", analysisDuration.Snapshot())
	return buf.String()
}

type labeledCounter struct {
	mu     sync.Mutex
	labels []string
	values map[string]uint64
}

func newLabeledCounter(labels ...string) *labeledCounter {
	return &labeledCounter{labels: labels, values: make(map[string]uint64)}
}

func (c *labeledCounter) Inc(values ...string) {
	if len(values) != len(c.labels) {
		return
	}
	pairs := make([]string, len(values))
	for i, v := range values {
		pairs[i] = fmt.Sprintf("%s=%q", c.labels[i], v)
	}
	key := strings.Join(pairs, ",")
	c.mu.Lock()
	c.values[key]++
	c.mu.Unlock()
}

func (c *labeledCounter) snapshot() ([]string, map[string]uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]uint64, len(c.values))
	keys := make([]string, 0, len(c.values))
	for k, v := range c.values {
		out[k] = v
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, out
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe records value in the first bucket whose bound covers it; Render accumulates.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeLabeledCounter(buf *bytes.Buffer, name, help string, c *labeledCounter) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	keys, values := c.snapshot()
	for _, k := range keys {
		fmt.Fprintf(buf, "%s{%s} %d\n", name, k, values[k])
	}
}

func writeGauge(buf *bytes.Buffer, name, help string, value int64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s gauge\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// SinceMillis returns the elapsed time since start in milliseconds.
func SinceMillis(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}
