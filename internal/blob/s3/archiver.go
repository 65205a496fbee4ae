package s3blob

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/polytrack/polytrack/internal/domain"
)

// FillArchiveStore provides the read access the archiver needs. The
// Postgres fill store satisfies it implicitly.
type FillArchiveStore interface {
	ListAll(ctx context.Context) ([]domain.Fill, error)
}

// Archiver snapshots the normalized fill ledger to object storage as CSV.
// The primary store stays authoritative; archives are cold copies for
// offline analysis and disaster recovery and nothing is deleted here.
type Archiver struct {
	writer domain.BlobWriter
	fills  FillArchiveStore
}

// NewArchiver creates a new Archiver.
func NewArchiver(writer domain.BlobWriter, fills FillArchiveStore) *Archiver {
	return &Archiver{writer: writer, fills: fills}
}

// ArchiveFills uploads the full fill history as one CSV object keyed by the
// block range it covers. Returns the number of archived rows.
func (a *Archiver) ArchiveFills(ctx context.Context) (int64, error) {
	fills, err := a.fills.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive fills query: %w", err)
	}
	if len(fills) == 0 {
		return 0, nil
	}

	buf, err := fillsToCSV(fills)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive fills encode: %w", err)
	}

	path := fmt.Sprintf("archive/fills/%d-%d.csv",
		fills[0].Timestamp, fills[len(fills)-1].Timestamp)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "text/csv"); err != nil {
		return 0, fmt.Errorf("s3blob: archive fills upload: %w", err)
	}
	return int64(len(fills)), nil
}

func fillsToCSV(fills []domain.Fill) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"address", "market_id", "outcome_side", "shares_delta",
		"cash_delta_usdc", "price", "block_number", "tx_hash", "log_index", "role",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, f := range fills {
		row := []string{
			f.Address,
			f.MarketID,
			string(f.OutcomeSide),
			strconv.FormatFloat(f.SharesDelta, 'f', -1, 64),
			strconv.FormatFloat(f.CashDeltaUSDC, 'f', -1, 64),
			strconv.FormatFloat(f.Price, 'f', -1, 64),
			strconv.FormatUint(f.Timestamp, 10),
			f.TxHash,
			strconv.FormatUint(uint64(f.LogIndex), 10),
			string(f.Role),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}
