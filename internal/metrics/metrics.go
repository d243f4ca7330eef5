package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"kontext/apps/processor/internal/message"
)

// unknownContentType is the label for content types outside the known set,
// which keeps label cardinality bounded on untrusted input.
const unknownContentType = "unknown"

var recordsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "processor_records_total",
	Help: "Inbound records handled, labelled by content type and outcome",
}, []string{"content_type", "status"})

var recordFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "processor_record_failures_total",
	Help: "Failed records labelled by error code",
}, []string{"error_code"})

var chunksEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "processor_chunks_emitted_total",
	Help: "Chunks materialized, labelled by content type",
}, []string{"content_type"})

var responseSendFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "processor_response_send_failures_total",
	Help: "Failure messages that could not be sent on the response channel",
})

var recordDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "processor_record_duration_seconds",
	Help:    "Time spent on one record from decode to response",
	Buckets: []float64{.1, .5, 1, 2, 5, 10, 30, 60, 120},
}, []string{"content_type", "status"})

var batchSize = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "processor_batch_size",
	Help:    "Records per processed batch",
	Buckets: []float64{1, 2, 5, 10},
})

func contentTypeLabel(contentType string) string {
	if message.ContentType(contentType).Known() {
		return contentType
	}
	return unknownContentType
}

func CaptureRecord(contentType, status string, elapsed time.Duration) {
	contentType = contentTypeLabel(contentType)
	recordsProcessed.WithLabelValues(contentType, status).Inc()
	recordDuration.WithLabelValues(contentType, status).Observe(elapsed.Seconds())
}

func CaptureFailure(errorCode string) {
	recordFailures.WithLabelValues(errorCode).Inc()
}

func AddChunks(contentType string, n int) {
	chunksEmitted.WithLabelValues(contentTypeLabel(contentType)).Add(float64(n))
}

func IncrementResponseSendFailures() {
	responseSendFailures.Inc()
}

func ObserveBatch(n int) {
	batchSize.Observe(float64(n))
}
