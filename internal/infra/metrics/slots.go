package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(slotsProcessedTotal, slotRecordsArchivedTotal, slotsReclaimedTotal) }

var slotsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "archiver_slots_processed_total",
		Help: "Slot processing attempts by outcome.",
	},
	[]string{"outcome"}, // 'completed', 'failed', 'permanently_failed', 'skipped'
)

var slotRecordsArchivedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "archiver_records_archived_total",
		Help: "Total log records written to archive artifacts.",
	},
)

var slotsReclaimedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "archiver_slots_reclaimed_total",
		Help: "Stale processing slots reclaimed for retry.",
	},
)

func IncSlotOutcome(outcome string) {
	slotsProcessedTotal.WithLabelValues(outcome).Inc()
}

func AddRecordsArchived(n int64) {
	if n > 0 {
		slotRecordsArchivedTotal.Add(float64(n))
	}
}

func AddSlotsReclaimed(n int) {
	if n > 0 {
		slotsReclaimedTotal.Add(float64(n))
	}
}
