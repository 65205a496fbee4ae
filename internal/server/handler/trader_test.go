package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polytrack/polytrack/internal/domain"
	"github.com/polytrack/polytrack/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubTraderStore struct {
	traders []domain.ScoredTrader
}

func (s *stubTraderStore) UpsertBatch(context.Context, []domain.ScoredTrader) (int64, error) {
	return 0, nil
}
func (s *stubTraderStore) GetByAddress(_ context.Context, address string) (domain.ScoredTrader, error) {
	for _, t := range s.traders {
		if t.Address == address {
			return t, nil
		}
	}
	return domain.ScoredTrader{}, domain.ErrNotFound
}
func (s *stubTraderStore) ListTop(_ context.Context, limit int, _ string, _ domain.ViewFilter) ([]domain.ScoredTrader, error) {
	out := s.traders
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
func (s *stubTraderStore) SmartAddresses(context.Context) (map[string]struct{}, error) {
	return nil, nil
}

type stubFillStore struct{}

func (stubFillStore) UpsertBatch(context.Context, []domain.Fill) (int64, error) { return 0, nil }
func (stubFillStore) ListAll(context.Context) ([]domain.Fill, error)            { return nil, nil }
func (stubFillStore) ListByAddress(context.Context, string) ([]domain.Fill, error) {
	return nil, nil
}
func (stubFillStore) LatestBlock(context.Context) (uint64, error) { return 0, nil }

type stubSignalStore struct{}

func (stubSignalStore) UpsertBatch(context.Context, []domain.Signal) (int64, error) { return 0, nil }
func (stubSignalStore) ListSince(context.Context, uint64) ([]domain.Signal, error) {
	return nil, nil
}
func (stubSignalStore) ListByAddress(context.Context, string) ([]domain.Signal, error) {
	return nil, nil
}

func traderHandler(traders []domain.ScoredTrader) *TraderHandler {
	svc := service.NewTraderService(&stubTraderStore{traders: traders}, stubFillStore{}, stubSignalStore{}, nil, testLogger())
	return NewTraderHandler(svc, testLogger())
}

func TestListSmartMoney(t *testing.T) {
	h := traderHandler([]domain.ScoredTrader{
		{TraderStats: domain.TraderStats{Address: "0xaaa"}, Score: 0.9},
		{TraderStats: domain.TraderStats{Address: "0xbbb"}, Score: 0.4},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/smart-money?limit=10", nil)
	rec := httptest.NewRecorder()
	h.ListSmartMoney(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var body struct {
		Count   int               `json:"count"`
		Traders []json.RawMessage `json:"traders"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Len(t, body.Traders, 2)
}

func TestListSmartMoneyRejectsBadView(t *testing.T) {
	h := traderHandler(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/smart-money?view=bots", nil)
	rec := httptest.NewRecorder()
	h.ListSmartMoney(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTraderNotFound(t *testing.T) {
	h := traderHandler(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/smart-money/0xdead", nil)
	req.SetPathValue("address", "0xdead")
	rec := httptest.NewRecorder()
	h.GetTrader(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTraderFound(t *testing.T) {
	h := traderHandler([]domain.ScoredTrader{
		{TraderStats: domain.TraderStats{Address: "0xaaa"}, Score: 0.9},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/smart-money/0xAAA", nil)
	req.SetPathValue("address", "0xAAA")
	rec := httptest.NewRecorder()
	h.GetTrader(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var detail service.TraderDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, "0xaaa", detail.Trader.Address)
}

func TestQueryIntFallsBack(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?n=abc", nil)
	assert.Equal(t, 7, queryInt(req, "n", 7))
	assert.Equal(t, 7, queryInt(req, "missing", 7))

	req = httptest.NewRequest(http.MethodGet, "/?n=12", nil)
	assert.Equal(t, 12, queryInt(req, "n", 7))
}
