package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the pipeline's application metrics.
type Metrics struct {
	QueryDuration     metric.Float64Histogram
	QueryStageLatency metric.Float64Histogram
	IngestionDuration metric.Float64Histogram
	ChunksIndexed     metric.Int64Counter
	IngestionJobs     metric.Int64Counter
}

// InitMetrics initializes all application metrics.
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("ytvideo-chatbot")

	queryDuration, err := meter.Float64Histogram(
		"query.duration",
		metric.WithDescription("End-to-end query duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	queryStageLatency, err := meter.Float64Histogram(
		"query.stage.duration",
		metric.WithDescription("Per-stage query latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	ingestionDuration, err := meter.Float64Histogram(
		"ingestion.duration",
		metric.WithDescription("Whole ingestion job duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	chunksIndexed, err := meter.Int64Counter(
		"ingestion.chunks.indexed",
		metric.WithDescription("Total chunks written to the vector store"),
	)
	if err != nil {
		return nil, err
	}

	ingestionJobs, err := meter.Int64Counter(
		"ingestion.jobs.total",
		metric.WithDescription("Ingestion jobs by outcome"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		QueryDuration:     queryDuration,
		QueryStageLatency: queryStageLatency,
		IngestionDuration: ingestionDuration,
		ChunksIndexed:     chunksIndexed,
		IngestionJobs:     ingestionJobs,
	}, nil
}

// RecordQuery records the end-to-end duration of one query.
func (m *Metrics) RecordQuery(duration float64, success bool) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.Bool("query.success", success)}
	m.QueryDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordQueryStage records one stage's latency on the query path.
func (m *Metrics) RecordQueryStage(stage string, duration float64) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("query.stage", stage)}
	m.QueryStageLatency.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordIngestion records an ingestion job's duration and outcome.
func (m *Metrics) RecordIngestion(duration float64, status string, chunks int) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("ingestion.status", status)}
	m.IngestionDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
	m.IngestionJobs.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	if chunks > 0 {
		m.ChunksIndexed.Add(context.Background(), int64(chunks))
	}
}
