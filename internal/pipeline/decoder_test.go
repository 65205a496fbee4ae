package pipeline

import (
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polytrack/polytrack/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const (
	testMaker = "0x1111111111111111111111111111111111111111"
	testTaker = "0x2222222222222222222222222222222222222222"
)

func paddedTopic(addr string) string {
	return "0x000000000000000000000000" + addr[2:]
}

func orderFilledLog(t *testing.T, makerAssetID, takerAssetID, makerAmount, takerAmount *big.Int) domain.RawLog {
	t.Helper()
	data, err := orderFilledData.Pack(makerAssetID, takerAssetID, makerAmount, takerAmount, big.NewInt(0))
	require.NoError(t, err)
	return domain.RawLog{
		BlockNumber: 50_000_000,
		TxHash:      "0xABCDEF00000000000000000000000000000000000000000000000000000000aa",
		LogIndex:    3,
		Topics: []string{
			OrderFilledTopic,
			"0x0000000000000000000000000000000000000000000000000000000000000001",
			paddedTopic(testMaker),
			paddedTopic(testTaker),
		},
		Data: hexutil.Encode(data),
	}
}

func TestDecodeOrderFilled(t *testing.T) {
	tokenID, ok := new(big.Int).SetString("21742633143463906290569050155826241533067272736897614950488156847949938836455", 10)
	require.True(t, ok)

	raw := orderFilledLog(t, tokenID, big.NewInt(0), big.NewInt(100_000000), big.NewInt(40_000000))

	res := NewDecoder(testLogger()).Decode([]domain.RawLog{raw})
	require.Empty(t, res.Errors)
	require.Len(t, res.Trades, 1)

	trade := res.Trades[0]
	assert.Equal(t, testMaker, trade.Maker)
	assert.Equal(t, testTaker, trade.Taker)
	assert.Equal(t, tokenID.String(), trade.MakerAssetID)
	assert.Equal(t, "0", trade.TakerAssetID)
	assert.Equal(t, int64(100_000000), trade.MakerAmount.Int64())
	assert.Equal(t, int64(40_000000), trade.TakerAmount.Int64())
	assert.Equal(t, uint64(50_000_000), trade.BlockNumber)
	assert.Equal(t, uint(3), trade.LogIndex)
	assert.Equal(t, "0xabcdef00000000000000000000000000000000000000000000000000000000aa", trade.TxHash,
		"tx hash should be lower-cased")
}

func TestDecodeMalformedLogDoesNotAbortBatch(t *testing.T) {
	good := orderFilledLog(t, big.NewInt(7), big.NewInt(0), big.NewInt(1_000000), big.NewInt(500000))

	missingTopics := good
	missingTopics.Topics = good.Topics[:2]

	wrongEvent := good
	wrongEvent.Topics = append([]string(nil), good.Topics...)
	wrongEvent.Topics[0] = "0x" + "11" + good.Topics[0][4:]

	badData := good
	badData.Data = "0xzz"

	res := NewDecoder(testLogger()).Decode([]domain.RawLog{missingTopics, good, wrongEvent, badData})
	assert.Len(t, res.Trades, 1)
	require.Len(t, res.Errors, 3)
	assert.Equal(t, 0, res.Errors[0].Index)
	assert.Equal(t, 2, res.Errors[1].Index)
	assert.Equal(t, 3, res.Errors[2].Index)
}

func TestDecodeTopicCaseInsensitive(t *testing.T) {
	raw := orderFilledLog(t, big.NewInt(7), big.NewInt(0), big.NewInt(1_000000), big.NewInt(500000))
	raw.Topics[0] = "0x" + upper(raw.Topics[0][2:])

	res := NewDecoder(testLogger()).Decode([]domain.RawLog{raw})
	assert.Empty(t, res.Errors)
	assert.Len(t, res.Trades, 1)
}

func upper(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c >= 'a' && c <= 'f' {
			out[i] = c - 32
		}
	}
	return string(out)
}

func TestOriginFallsBackToMaker(t *testing.T) {
	trade := domain.DecodedTrade{Maker: "0xAbC1111111111111111111111111111111111111"}
	assert.Equal(t, "0xabc1111111111111111111111111111111111111", trade.Origin())

	trade.OriginFrom = "0xdddd111111111111111111111111111111111111"
	assert.Equal(t, "0xdddd111111111111111111111111111111111111", trade.Origin())
}
