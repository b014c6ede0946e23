// Package report builds daily change reports from the audit log.
package report

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/geoffreykithuku/books-crawler/internal/books"
)

// Supported output formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// ErrUnsupportedFormat is returned for a format other than json or csv.
var ErrUnsupportedFormat = fmt.Errorf("unsupported report format")

// rawSnapshotKey marks columns dropped from flattened output. Full
// HTML bodies belong in the structured report only.
const rawSnapshotKey = "raw_html_snapshot"

// Aggregator renders the change records of one UTC day.
type Aggregator struct {
	store  books.Store
	logger *zap.Logger
}

// New creates an Aggregator over the given store.
func New(store books.Store, logger *zap.Logger) (*Aggregator, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{store: store, logger: logger}, nil
}

// Structured returns the change records whose ChangedAt falls on the
// UTC day containing the given time, newest first.
func (a *Aggregator) Structured(ctx context.Context, day time.Time) ([]books.ChangeRecord, error) {
	start := day.UTC().Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)
	recs, err := a.store.ChangesBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load change records: %w", err)
	}
	return recs, nil
}

// Generate renders the day's change report in the requested format.
// The format is validated before any records are read.
func (a *Aggregator) Generate(ctx context.Context, day time.Time, format string) (string, error) {
	switch format {
	case FormatJSON, FormatCSV:
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	recs, err := a.Structured(ctx, day)
	if err != nil {
		return "", err
	}
	a.logger.Debug("report generated",
		zap.Time("day", day.UTC().Truncate(24*time.Hour)),
		zap.String("format", format),
		zap.Int("records", len(recs)),
	)

	if format == FormatJSON {
		out, err := json.MarshalIndent(recs, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode report: %w", err)
		}
		return string(out), nil
	}
	return flattenCSV(recs)
}

// flattenCSV renders records as CSV with one row per change. Nested
// old/new snapshots become dotted columns; raw HTML bodies are
// dropped. No records yields an empty string with no header row.
func flattenCSV(recs []books.ChangeRecord) (string, error) {
	if len(recs) == 0 {
		return "", nil
	}

	rows := make([]map[string]string, 0, len(recs))
	columns := make(map[string]struct{})
	for _, rec := range recs {
		row, err := flattenRecord(rec)
		if err != nil {
			return "", err
		}
		for k := range row {
			columns[k] = struct{}{}
		}
		rows = append(rows, row)
	}

	header := make([]string, 0, len(columns))
	for k := range columns {
		header = append(header, k)
	}
	sort.Strings(header)

	var buf strings.Builder
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}
	line := make([]string, len(header))
	for _, row := range rows {
		for i, col := range header {
			line[i] = row[col]
		}
		if err := w.Write(line); err != nil {
			return "", fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}
	return buf.String(), nil
}

// flattenRecord lowers one record to flat column values via its JSON
// form, so column names match the wire field names.
func flattenRecord(rec books.ChangeRecord) (map[string]string, error) {
	encoded, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode change record: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(encoded, &doc); err != nil {
		return nil, fmt.Errorf("decode change record: %w", err)
	}

	row := make(map[string]string)
	for key, val := range doc {
		nested, ok := val.(map[string]any)
		if !ok {
			if key == rawSnapshotKey {
				continue
			}
			row[key] = cellValue(val)
			continue
		}
		for subKey, subVal := range nested {
			if subKey == rawSnapshotKey {
				continue
			}
			row[key+"."+subKey] = cellValue(subVal)
		}
	}
	return row, nil
}

func cellValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		// JSON numbers decode as float64; trim integral values.
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	case bool:
		return fmt.Sprintf("%t", val)
	default:
		encoded, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(encoded)
	}
}
