package client

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cirrus-project/cirrus/pkg/transfer"
)

// Metrics collects transfer counters. A nil *Metrics is valid and records
// nothing, so instrumentation stays optional.
type Metrics struct {
	retries          *prometheus.CounterVec
	uploadedBytes    prometheus.Counter
	downloadedBytes  prometheus.Counter
	uploadsFinalized prometheus.Counter
	uploadsSuspended prometheus.Counter
}

// NewMetrics registers the transfer metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cirrus",
			Subsystem: "transfer",
			Name:      "retries_total",
			Help:      "Retries scheduled after transient failures, by operation.",
		}, []string{"operation"}),
		uploadedBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cirrus",
			Subsystem: "transfer",
			Name:      "uploaded_bytes_total",
			Help:      "Bytes accepted by upload writers.",
		}),
		downloadedBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cirrus",
			Subsystem: "transfer",
			Name:      "downloaded_bytes_total",
			Help:      "Bytes delivered by download readers.",
		}),
		uploadsFinalized: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cirrus",
			Subsystem: "transfer",
			Name:      "uploads_finalized_total",
			Help:      "Uploads finalized successfully.",
		}),
		uploadsSuspended: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "cirrus",
			Subsystem: "transfer",
			Name:      "uploads_suspended_total",
			Help:      "Uploads suspended for later resumption.",
		}),
	}
}

// retryNotify adapts the metrics to the retry hook of the transfer core.
func (m *Metrics) retryNotify() transfer.RetryNotify {
	if m == nil {
		return nil
	}
	return func(op string, err error, delay time.Duration) {
		m.retries.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) addUploaded(n int) {
	if m != nil {
		m.uploadedBytes.Add(float64(n))
	}
}

func (m *Metrics) addDownloaded(n int) {
	if m != nil {
		m.downloadedBytes.Add(float64(n))
	}
}

func (m *Metrics) uploadFinalized() {
	if m != nil {
		m.uploadsFinalized.Inc()
	}
}

func (m *Metrics) uploadSuspended() {
	if m != nil {
		m.uploadsSuspended.Inc()
	}
}
