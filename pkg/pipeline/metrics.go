package pipeline

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	prometheusMetricNamespace = "dwh"
	pushJobName               = "dwh"
)

var (
	stageDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: prometheusMetricNamespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of a pipeline stage.",
			Buckets:   []float64{1, 10, 60, 300, 600, 1800},
		},
		[]string{"stage"},
	)

	stageFailedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: prometheusMetricNamespace,
			Name:      "stage_failed_total",
			Help:      "Number of pipeline stages that returned an error.",
		},
		[]string{"stage"},
	)

	tableRowsGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: prometheusMetricNamespace,
			Name:      "table_rows",
			Help:      "Row count of a warehouse table at validation time.",
		},
		[]string{"table"},
	)

	rowsInsertedGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: prometheusMetricNamespace,
			Name:      "transform_rows_inserted",
			Help:      "Rows inserted into a derived table by the last transform.",
		},
		[]string{"table"},
	)

	duplicateGroupsGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: prometheusMetricNamespace,
			Name:      "duplicate_key_groups",
			Help:      "Number of duplicated key values found in a derived table, capped at the report limit.",
		},
		[]string{"table"},
	)
)

func init() {
	prometheus.MustRegister(stageDurationHistogram)
	prometheus.MustRegister(stageFailedCounter)
	prometheus.MustRegister(tableRowsGauge)
	prometheus.MustRegister(rowsInsertedGauge)
	prometheus.MustRegister(duplicateGroupsGauge)
}

// PushMetrics sends the pipeline metrics to a Prometheus Pushgateway. Batch
// runs exit before they could be scraped.
func PushMetrics(ctx context.Context, url string) error {
	err := push.New(url, pushJobName).
		Collector(stageDurationHistogram).
		Collector(stageFailedCounter).
		Collector(tableRowsGauge).
		Collector(rowsInsertedGauge).
		Collector(duplicateGroupsGauge).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("unable to push metrics to %s: %w", url, err)
	}
	return nil
}
