package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polytrack/polytrack/internal/domain"
	"github.com/polytrack/polytrack/internal/platform/chain"
)

type fakeLogSource struct {
	head    uint64
	logs    map[uint64][]domain.RawLog
	windows []chain.LogFilter
}

func (f *fakeLogSource) BlockNumber(context.Context) (uint64, error) {
	return f.head, nil
}

func (f *fakeLogSource) GetLogs(_ context.Context, filter chain.LogFilter) ([]domain.RawLog, error) {
	f.windows = append(f.windows, filter)
	var out []domain.RawLog
	for b := filter.FromBlock; b <= filter.ToBlock; b++ {
		out = append(out, f.logs[b]...)
	}
	return out, nil
}

func logAt(block uint64, idx uint) domain.RawLog {
	return domain.RawLog{BlockNumber: block, LogIndex: idx}
}

func TestScanRangeWalksWindows(t *testing.T) {
	source := &fakeLogSource{logs: map[uint64][]domain.RawLog{
		100: {logAt(100, 2), logAt(100, 1)},
		250: {logAt(250, 0)},
	}}
	scanner := NewScanner(source, nil, nil, 100, testLogger())

	logs, err := scanner.ScanRange(context.Background(), 100, 299)
	require.NoError(t, err)

	require.Len(t, source.windows, 2)
	assert.Equal(t, uint64(100), source.windows[0].FromBlock)
	assert.Equal(t, uint64(199), source.windows[0].ToBlock)
	assert.Equal(t, uint64(200), source.windows[1].FromBlock)
	assert.Equal(t, uint64(299), source.windows[1].ToBlock)

	require.Len(t, logs, 3)
	assert.Equal(t, uint(1), logs[0].LogIndex, "logs sorted by (block, index)")
	assert.Equal(t, uint(2), logs[1].LogIndex)
	assert.Equal(t, uint64(250), logs[2].BlockNumber)
}

func TestScanRangePartialFinalWindow(t *testing.T) {
	source := &fakeLogSource{logs: map[uint64][]domain.RawLog{}}
	scanner := NewScanner(source, nil, nil, 100, testLogger())

	_, err := scanner.ScanRange(context.Background(), 1, 150)
	require.NoError(t, err)

	require.Len(t, source.windows, 2)
	assert.Equal(t, uint64(150), source.windows[1].ToBlock)
}

func TestScanRangeEmptyInterval(t *testing.T) {
	source := &fakeLogSource{}
	scanner := NewScanner(source, nil, nil, 100, testLogger())

	logs, err := scanner.ScanRange(context.Background(), 10, 5)
	require.NoError(t, err)
	assert.Empty(t, logs)
	assert.Empty(t, source.windows)
}

func TestScanBackwardStopsAtTarget(t *testing.T) {
	source := &fakeLogSource{logs: map[uint64][]domain.RawLog{
		950: {logAt(950, 0), logAt(950, 1)},
		850: {logAt(850, 0)},
	}}
	scanner := NewScanner(source, nil, nil, 100, testLogger())

	logs, err := scanner.ScanBackward(context.Background(), 1000, 2, 10_000)
	require.NoError(t, err)

	require.Len(t, source.windows, 1, "target reached in the first window")
	assert.Equal(t, uint64(901), source.windows[0].FromBlock)
	assert.Equal(t, uint64(1000), source.windows[0].ToBlock)
	assert.Len(t, logs, 2)
}

func TestScanBackwardRespectsBlockBudget(t *testing.T) {
	source := &fakeLogSource{logs: map[uint64][]domain.RawLog{}}
	scanner := NewScanner(source, nil, nil, 100, testLogger())

	_, err := scanner.ScanBackward(context.Background(), 1000, 50, 250)
	require.NoError(t, err)
	assert.Len(t, source.windows, 3, "100+100+100 blocks covers the 250 budget")
}
