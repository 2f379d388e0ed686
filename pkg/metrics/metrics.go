package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "portal"

// Metrics 应用 Prometheus 指标
// 由 cmd/server 创建一次并注入中间件与文件存储
type Metrics struct {
	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
	Uploads             *prometheus.CounterVec
	FileCleanupFailures prometheus.Counter
	SweptFiles          prometheus.Counter
}

// New 创建并注册全部指标
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP 请求总数",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP 请求耗时",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "写入存储的上传文件数",
		}, []string{"namespace"}),
		FileCleanupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "file_cleanup_failures_total",
			Help:      "删除已存储文件失败的次数",
		}),
		SweptFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swept_orphan_files_total",
			Help:      "孤儿文件清理任务删除的文件数",
		}),
	}

	reg.MustRegister(m.HTTPRequests, m.HTTPDuration, m.Uploads, m.FileCleanupFailures, m.SweptFiles)
	return m
}
