package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"log-archiver/internal/domain/model"
	"log-archiver/internal/domain/ports/adapter"
)

// Ensure compile-time conformance
var _ adapter.RecordFetcher = (*PostgresFetcher)(nil)

// PostgresFetcher is the shipped RecordFetcher: it reads the log_records
// table for the half-open window [start, end).
type PostgresFetcher struct {
	pool *pgxpool.Pool
}

func NewPostgresFetcher(pool *pgxpool.Pool) *PostgresFetcher {
	return &PostgresFetcher{pool: pool}
}

func (f *PostgresFetcher) Fetch(ctx context.Context, start, end time.Time) ([]model.LogRecord, error) {
	const q = `
SELECT id, source, level, message, attrs, recorded_at
FROM log_records
WHERE recorded_at >= $1 AND recorded_at < $2;`

	rows, err := f.pool.Query(ctx, q, start, end)
	if err != nil {
		return nil, fmt.Errorf("postgres fetch records: %w", err)
	}
	defer rows.Close()

	var out []model.LogRecord
	for rows.Next() {
		var (
			rec   model.LogRecord
			attrs []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Source, &rec.Level, &rec.Message, &attrs, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("postgres scan record: %w", err)
		}
		if len(attrs) > 0 {
			if err := json.Unmarshal(attrs, &rec.Attrs); err != nil {
				return nil, fmt.Errorf("postgres record %s attrs: %w", rec.ID, err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
