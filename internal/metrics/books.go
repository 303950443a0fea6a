package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ebookgen"

var (
	booksGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "books",
			Name:      "generated_total",
			Help:      "按类型统计的生成书籍数量。",
		},
		[]string{"category"},
	)

	exportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "artifacts_total",
			Help:      "导出结果数量，按格式与结果区分。",
		},
		[]string{"format", "result"},
	)

	exportSizeBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "artifact_size_bytes",
			Help:      "导出文件大小分布（字节）。",
			Buckets:   prometheus.ExponentialBuckets(4096, 4, 8),
		},
		[]string{"format"},
	)
)

// BookGenerated counts a persisted book.
func BookGenerated(category string) {
	booksGeneratedTotal.WithLabelValues(category).Inc()
}

// ExportSucceeded records a finished export and its size.
func ExportSucceeded(format string, size int) {
	exportsTotal.WithLabelValues(format, "success").Inc()
	exportSizeBytes.WithLabelValues(format).Observe(float64(size))
}

// ExportFailed counts an export attempt that returned an error.
func ExportFailed(format string) {
	exportsTotal.WithLabelValues(format, "failure").Inc()
}
