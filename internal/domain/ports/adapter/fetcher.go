package adapter

import (
	"context"
	"time"

	"log-archiver/internal/domain/model"
)

// RecordFetcher returns every log record in the half-open window
// [start, end). The same window always yields the same logical record
// set; no ordering is guaranteed.
type RecordFetcher interface {
	Fetch(ctx context.Context, start, end time.Time) ([]model.LogRecord, error)
}
