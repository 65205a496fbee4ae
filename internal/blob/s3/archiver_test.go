package s3blob

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polytrack/polytrack/internal/domain"
)

type memWriter struct {
	path        string
	contentType string
	data        []byte
}

func (m *memWriter) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	m.path = path
	m.contentType = contentType
	var err error
	m.data, err = io.ReadAll(data)
	return err
}

type staticFills []domain.Fill

func (s staticFills) ListAll(context.Context) ([]domain.Fill, error) { return s, nil }

func TestArchiveFills(t *testing.T) {
	fills := staticFills{
		{
			Address:       "0xaaa",
			MarketID:      "mkt-1",
			OutcomeSide:   domain.OutcomeYes,
			SharesDelta:   100,
			CashDeltaUSDC: -40,
			Price:         0.4,
			Timestamp:     1000,
			TxHash:        "0xdead",
			LogIndex:      2,
			Role:          domain.RoleTaker,
		},
		{
			Address:     "0xbbb",
			MarketID:    "mkt-1",
			OutcomeSide: domain.OutcomeNo,
			SharesDelta: -50,
			Timestamp:   1500,
		},
	}
	writer := &memWriter{}

	count, err := NewArchiver(writer, fills).ArchiveFills(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, "archive/fills/1000-1500.csv", writer.path)
	assert.Equal(t, "text/csv", writer.contentType)

	rows, err := csv.NewReader(bytes.NewReader(writer.data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus two fills")
	assert.Equal(t, "address", rows[0][0])
	assert.Equal(t, []string{"0xaaa", "mkt-1", "YES", "100", "-40", "0.4", "1000", "0xdead", "2", "taker"}, rows[1])
}

func TestArchiveFillsEmptyLedgerSkipsUpload(t *testing.T) {
	writer := &memWriter{}
	count, err := NewArchiver(writer, staticFills{}).ArchiveFills(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, writer.path)
}
