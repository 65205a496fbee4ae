package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polytrack/polytrack/internal/domain"
)

type fakeTxSource struct {
	mu      sync.Mutex
	senders map[string]string
	calls   int
}

func (f *fakeTxSource) TransactionSender(_ context.Context, txHash string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	sender, ok := f.senders[txHash]
	if !ok {
		return "", errors.New("tx not found")
	}
	return sender, nil
}

func TestEnrichDeduplicatesLookups(t *testing.T) {
	source := &fakeTxSource{senders: map[string]string{
		"0xaaa": "0xOrigin0000000000000000000000000000000001",
	}}
	enricher := NewEnricher(source, 4, testLogger())

	trades := []domain.DecodedTrade{
		{TxHash: "0xaaa", LogIndex: 0},
		{TxHash: "0xaaa", LogIndex: 1},
		{TxHash: "0xAAA", LogIndex: 2},
	}

	out := enricher.Enrich(context.Background(), trades)
	require.Len(t, out, 3)
	assert.Equal(t, 1, source.calls, "same tx hash should be looked up once")
	for _, tr := range out {
		assert.Equal(t, "0xorigin0000000000000000000000000000000001", tr.OriginFrom)
	}
}

func TestEnrichFailureFallsBackToMaker(t *testing.T) {
	source := &fakeTxSource{senders: map[string]string{}}
	enricher := NewEnricher(source, 2, testLogger())

	trades := []domain.DecodedTrade{{
		TxHash: "0xbbb",
		Maker:  "0xMaker000000000000000000000000000000000001",
	}}

	out := enricher.Enrich(context.Background(), trades)
	require.Len(t, out, 1)
	assert.Empty(t, out[0].OriginFrom)
	assert.Equal(t, "0xmaker000000000000000000000000000000000001", out[0].Origin())
}

func TestEnrichEmptyBatch(t *testing.T) {
	source := &fakeTxSource{}
	out := NewEnricher(source, 2, testLogger()).Enrich(context.Background(), nil)
	assert.Empty(t, out)
	assert.Zero(t, source.calls)
}
