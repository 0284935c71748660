package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(uploadsTotal, uploadBytesTotal) }

var uploadsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "archiver_uploads_total",
		Help: "Artifact uploads by backend and status.",
	},
	[]string{"backend", "status"}, // status: 'ok', 'error'
)

var uploadBytesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "archiver_upload_bytes_total",
		Help: "Bytes shipped to storage, per backend.",
	},
	[]string{"backend"},
)

func IncUpload(backend, status string) {
	uploadsTotal.WithLabelValues(backend, status).Inc()
}

func AddUploadBytes(backend string, n int64) {
	if n > 0 {
		uploadBytesTotal.WithLabelValues(backend).Add(float64(n))
	}
}
