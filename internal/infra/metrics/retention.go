package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(retentionDeletedTotal) }

var retentionDeletedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "archiver_retention_deleted_total",
		Help: "Entities removed by retention sweeps.",
	},
	[]string{"sweep"}, // 'database', 'storage'
)

func AddRetentionDeleted(sweep string, n int) {
	if n > 0 {
		retentionDeletedTotal.WithLabelValues(sweep).Add(float64(n))
	}
}
