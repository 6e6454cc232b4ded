package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cexarb/arbot/internal/domain"
)

// archiveBatchLimit bounds how many trade records one archive run exports.
// Anything beyond the limit is picked up by the next run.
const archiveBatchLimit = 10000

// TradeArchiveStore is the narrow store surface the archiver needs: read the
// aged records, then prune them once the upload succeeded.
type TradeArchiveStore interface {
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.TradeRecord, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// TradeArchiver exports trade records older than a cutoff to object storage
// as JSONL and prunes them from the primary store. Pruning happens only
// after the upload succeeded, so a failed run leaves the records in place
// for the next attempt.
type TradeArchiver struct {
	writer *Writer
	trades TradeArchiveStore
}

// NewTradeArchiver creates a TradeArchiver.
func NewTradeArchiver(writer *Writer, trades TradeArchiveStore) *TradeArchiver {
	return &TradeArchiver{writer: writer, trades: trades}
}

// ArchiveTrades exports and prunes trades older than cutoff, returning how
// many records were archived. A run with nothing to archive is a no-op.
func (a *TradeArchiver) ArchiveTrades(ctx context.Context, cutoff time.Time) (int64, error) {
	records, err := a.trades.ListBefore(ctx, cutoff, archiveBatchLimit)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades query: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades marshal: %w", err)
	}

	path := archivePath("trades", cutoff)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive trades upload: %w", err)
	}

	// When the batch limit truncated the export, prune only what was
	// uploaded; the remainder is archived by a later run.
	pruneCutoff := cutoff
	if len(records) == archiveBatchLimit {
		pruneCutoff = records[len(records)-1].Timestamp.Add(time.Nanosecond)
	}
	if _, err := a.trades.DeleteBefore(ctx, pruneCutoff); err != nil {
		return int64(len(records)), fmt.Errorf("s3blob: archive trades prune: %w", err)
	}

	return int64(len(records)), nil
}

// marshalJSONL serializes records as newline-delimited JSON.
func marshalJSONL(records []domain.TradeRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// archivePath builds the object key for one archive run, e.g.
// "archive/trades/2026/08/trades-20260823T120000Z.jsonl".
func archivePath(kind string, cutoff time.Time) string {
	return fmt.Sprintf("archive/%s/%04d/%02d/%s-%s.jsonl",
		kind, cutoff.Year(), cutoff.Month(), kind, cutoff.UTC().Format("20060102T150405Z"))
}
