package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSlotOutcomeCounter(t *testing.T) {
	before := testutil.ToFloat64(slotsProcessedTotal.WithLabelValues("completed"))
	IncSlotOutcome("completed")
	IncSlotOutcome("completed")
	if got := testutil.ToFloat64(slotsProcessedTotal.WithLabelValues("completed")) - before; got != 2 {
		t.Fatalf("expected delta 2, got %v", got)
	}
}

func TestRecordsArchivedIgnoresNonPositive(t *testing.T) {
	before := testutil.ToFloat64(slotRecordsArchivedTotal)
	AddRecordsArchived(5)
	AddRecordsArchived(0)
	AddRecordsArchived(-3)
	if got := testutil.ToFloat64(slotRecordsArchivedTotal) - before; got != 5 {
		t.Fatalf("expected delta 5, got %v", got)
	}
}

func TestRetentionDeletedBySweep(t *testing.T) {
	dbBefore := testutil.ToFloat64(retentionDeletedTotal.WithLabelValues("database"))
	stBefore := testutil.ToFloat64(retentionDeletedTotal.WithLabelValues("storage"))

	AddRetentionDeleted("database", 2)
	AddRetentionDeleted("storage", 7)
	AddRetentionDeleted("storage", 0) // dry-run style no-op

	if got := testutil.ToFloat64(retentionDeletedTotal.WithLabelValues("database")) - dbBefore; got != 2 {
		t.Fatalf("database: expected delta 2, got %v", got)
	}
	if got := testutil.ToFloat64(retentionDeletedTotal.WithLabelValues("storage")) - stBefore; got != 7 {
		t.Fatalf("storage: expected delta 7, got %v", got)
	}
}

func TestUploadCounters(t *testing.T) {
	okBefore := testutil.ToFloat64(uploadsTotal.WithLabelValues("s3", "ok"))
	bytesBefore := testutil.ToFloat64(uploadBytesTotal.WithLabelValues("s3"))

	IncUpload("s3", "ok")
	AddUploadBytes("s3", 1024)

	if got := testutil.ToFloat64(uploadsTotal.WithLabelValues("s3", "ok")) - okBefore; got != 1 {
		t.Fatalf("uploads: expected delta 1, got %v", got)
	}
	if got := testutil.ToFloat64(uploadBytesTotal.WithLabelValues("s3")) - bytesBefore; got != 1024 {
		t.Fatalf("bytes: expected delta 1024, got %v", got)
	}
}
