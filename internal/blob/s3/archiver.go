package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/outcomefi/clob/internal/domain"
)

// multipartThreshold is the payload size above which the archiver switches
// from a single PutObject to a multipart upload.
const multipartThreshold = 8 * 1024 * 1024

// BatchArchiver implements domain.BatchArchiver by serializing terminal
// settlement batches to JSON and uploading them to the archive bucket.
//
// Key layout, partitioned by chain and the batch's creation date:
//
//	batches/{chainID}/{YYYY-MM-DD}/{batchID}.json
//
// Archival is best-effort cold storage: the batch row in Postgres remains the
// source of truth and is never deleted here.
type BatchArchiver struct {
	writer *Writer
}

// NewBatchArchiver creates a BatchArchiver that uploads through the given
// client's bucket.
func NewBatchArchiver(c *Client) *BatchArchiver {
	return &BatchArchiver{writer: NewWriter(c)}
}

// ArchiveBatch uploads the batch's full state, fills included. Re-archiving
// the same batch overwrites the object with identical content, so retries
// are harmless.
func (a *BatchArchiver) ArchiveBatch(ctx context.Context, b domain.SettlementBatch) error {
	payload, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("s3blob: marshal batch %s: %w", b.ID, err)
	}

	path := batchPath(b)
	if len(payload) > multipartThreshold {
		if err := a.writer.PutMultipart(ctx, path, bytes.NewReader(payload), minPartSize); err != nil {
			return fmt.Errorf("s3blob: archive batch %s: %w", b.ID, err)
		}
		return nil
	}

	if err := a.writer.Put(ctx, path, bytes.NewReader(payload), "application/json"); err != nil {
		return fmt.Errorf("s3blob: archive batch %s: %w", b.ID, err)
	}
	return nil
}

// batchPath builds the object key for an archived batch.
func batchPath(b domain.SettlementBatch) string {
	return fmt.Sprintf("batches/%d/%s/%s.json", b.ChainID, b.CreatedAt.Format("2006-01-02"), b.ID)
}
