package archive

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"log-archiver/internal/domain/model"
	"log-archiver/internal/domain/ports/adapter"
)

// Ensure compile-time conformance
var _ adapter.ArchiveWriter = (*Writer)(nil)

type Format string

const (
	FormatJSONL Format = "jsonl"
	FormatCSV   Format = "csv"
)

// Writer serializes a slot's records to one artifact under the staging
// root, as line-delimited JSON or CSV. The format is fixed at
// construction. A zero-record batch produces a valid empty artifact.
type Writer struct {
	root   string
	format Format
}

func NewWriter(outputDir string, format Format) (*Writer, error) {
	switch format {
	case FormatJSONL, FormatCSV:
	default:
		return nil, fmt.Errorf("archive format %q: want jsonl or csv", format)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging root: %w", err)
	}
	return &Writer{root: outputDir, format: format}, nil
}

func (w *Writer) name(date, hourRange string) string {
	return fmt.Sprintf("%s_%s.%s", date, hourRange, w.format)
}

// Key is the backend destination for a slot's artifact, before the
// backend's own prefix.
func (w *Writer) Key(date, hourRange string) string {
	return date + "/" + w.name(date, hourRange)
}

// Write serializes records and returns the artifact path. A retry for
// the same slot overwrites the previous attempt's file.
func (w *Writer) Write(date, hourRange string, records []model.LogRecord) (string, error) {
	dir := filepath.Join(w.root, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}
	path := filepath.Join(dir, w.name(date, hourRange))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create artifact: %w", err)
	}

	switch w.format {
	case FormatJSONL:
		err = writeJSONL(f, records)
	case FormatCSV:
		err = writeCSV(f, records)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("write artifact %s: %w", path, err)
	}
	return path, nil
}

func writeJSONL(f *os.File, records []model.LogRecord) error {
	enc := json.NewEncoder(f)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			return err
		}
	}
	return nil
}

var csvHeader = []string{"id", "source", "level", "message", "attrs", "recorded_at"}

func writeCSV(f *os.File, records []model.LogRecord) error {
	cw := csv.NewWriter(f)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for i := range records {
		rec := &records[i]
		attrs := ""
		if len(rec.Attrs) > 0 {
			b, err := json.Marshal(rec.Attrs)
			if err != nil {
				return fmt.Errorf("record %s attrs: %w", rec.ID, err)
			}
			attrs = string(b)
		}
		row := []string{
			rec.ID,
			rec.Source,
			rec.Level,
			rec.Message,
			attrs,
			rec.RecordedAt.Format(CSVTimeLayout),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Timestamp layout used when parsing CSV archives back; exported for
// consumers reading artifacts.
const CSVTimeLayout = time.RFC3339Nano
