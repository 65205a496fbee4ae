package pipeline

import (
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/polytrack/polytrack/internal/domain"
)

// OrderFilledTopic is the keccak hash of the CTF exchange's OrderFilled
// event signature. Both the main exchange and the neg-risk adapter emit
// the same event.
var OrderFilledTopic = crypto.Keccak256Hash(
	[]byte("OrderFilled(bytes32,address,address,uint256,uint256,uint256,uint256,uint256)"),
).Hex()

var orderFilledData = abi.Arguments{
	{Name: "makerAssetId", Type: mustType("uint256")},
	{Name: "takerAssetId", Type: mustType("uint256")},
	{Name: "makerAmountFilled", Type: mustType("uint256")},
	{Name: "takerAmountFilled", Type: mustType("uint256")},
	{Name: "fee", Type: mustType("uint256")},
}

func mustType(t string) abi.Type {
	ty, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return ty
}

// Decoder turns raw OrderFilled logs into decoded trades. A malformed log
// is recorded as a per-log error and never aborts the batch.
type Decoder struct {
	logger *slog.Logger
}

func NewDecoder(logger *slog.Logger) *Decoder {
	return &Decoder{logger: logger.With(slog.String("component", "decoder"))}
}

func (d *Decoder) Decode(logs []domain.RawLog) domain.DecodeResult {
	var res domain.DecodeResult
	res.Trades = make([]domain.DecodedTrade, 0, len(logs))

	for i, raw := range logs {
		trade, err := decodeOrderFilled(raw)
		if err != nil {
			res.Errors = append(res.Errors, domain.DecodeError{Index: i, Err: err})
			d.logger.Warn("undecodable log",
				slog.String("tx_hash", raw.TxHash),
				slog.Uint64("block", raw.BlockNumber),
				slog.String("error", err.Error()))
			continue
		}
		res.Trades = append(res.Trades, trade)
	}

	if len(res.Errors) > 0 {
		d.logger.Warn("decode batch completed with errors",
			slog.Int("decoded", len(res.Trades)),
			slog.Int("failed", len(res.Errors)))
	}
	return res
}

func decodeOrderFilled(raw domain.RawLog) (domain.DecodedTrade, error) {
	if len(raw.Topics) != 4 {
		return domain.DecodedTrade{}, fmt.Errorf("pipeline: expected 4 topics, got %d", len(raw.Topics))
	}
	if !strings.EqualFold(raw.Topics[0], OrderFilledTopic) {
		return domain.DecodedTrade{}, fmt.Errorf("pipeline: unexpected event topic %s", raw.Topics[0])
	}

	data, err := hexutil.Decode(raw.Data)
	if err != nil {
		return domain.DecodedTrade{}, fmt.Errorf("pipeline: decode log data: %w", err)
	}

	vals, err := orderFilledData.Unpack(data)
	if err != nil {
		return domain.DecodedTrade{}, fmt.Errorf("pipeline: unpack log data: %w", err)
	}

	makerAssetID, ok := vals[0].(*big.Int)
	if !ok {
		return domain.DecodedTrade{}, fmt.Errorf("pipeline: makerAssetId is not uint256")
	}
	takerAssetID := vals[1].(*big.Int)
	makerAmount := vals[2].(*big.Int)
	takerAmount := vals[3].(*big.Int)
	fee := vals[4].(*big.Int)

	return domain.DecodedTrade{
		Maker:        topicAddress(raw.Topics[2]),
		Taker:        topicAddress(raw.Topics[3]),
		MakerAssetID: makerAssetID.String(),
		TakerAssetID: takerAssetID.String(),
		MakerAmount:  makerAmount,
		TakerAmount:  takerAmount,
		Fee:          fee,
		BlockNumber:  raw.BlockNumber,
		TxHash:       strings.ToLower(raw.TxHash),
		LogIndex:     raw.LogIndex,
	}, nil
}

// topicAddress extracts the 20-byte address from a 32-byte indexed topic.
func topicAddress(topic string) string {
	h := common.HexToHash(topic)
	return strings.ToLower(common.BytesToAddress(h.Bytes()[12:]).Hex())
}
