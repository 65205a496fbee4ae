package gamma

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polytrack/polytrack/internal/domain"
)

func TestAPIMarketDecodesStringEncodedFields(t *testing.T) {
	// The Gamma API double-encodes array fields as JSON strings and sends
	// booleans as strings on some endpoints.
	raw := `{
		"id": "mkt-1",
		"question": "Will it settle?",
		"clobTokenIds": "[\"111\",\"222\"]",
		"outcomePrices": "[\"0.65\",\"0.35\"]",
		"volumeNum": "12345.5",
		"active": "true",
		"closed": false
	}`

	var m APIMarket
	require.NoError(t, json.Unmarshal([]byte(raw), &m))

	assert.Equal(t, flexStrings{"111", "222"}, m.ClobTokenIDs)
	assert.InDelta(t, 12345.5, float64(m.Volume), 1e-9)
	assert.True(t, bool(m.Active))
}

func TestAPIMarketDecodesNativeFields(t *testing.T) {
	raw := `{
		"id": "mkt-2",
		"clobTokenIds": ["111","222"],
		"volumeNum": 99.5,
		"active": true
	}`

	var m APIMarket
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	assert.Equal(t, flexStrings{"111", "222"}, m.ClobTokenIDs)
	assert.InDelta(t, 99.5, float64(m.Volume), 1e-9)
}

func TestToDomainMarket(t *testing.T) {
	m := APIMarket{
		ID:            "mkt-1",
		Question:      "Will it settle?",
		ClobTokenIDs:  flexStrings{"no-token", "yes-token"},
		OutcomePrices: flexStrings{"0.65", "0.35"},
		Active:        true,
	}

	dm, ok := m.ToDomainMarket()
	require.True(t, ok)
	assert.Equal(t, "yes-token", dm.TokenYes)
	assert.Equal(t, "no-token", dm.TokenNo)
	assert.InDelta(t, 0.65, dm.PriceYes, 1e-9)
	assert.InDelta(t, 0.35, dm.PriceNo, 1e-9)
	assert.True(t, dm.Active)
}

func TestToDomainMarketRejectsMissingTokens(t *testing.T) {
	m := APIMarket{ID: "mkt-1", ClobTokenIDs: flexStrings{"only-one"}}
	_, ok := m.ToDomainMarket()
	assert.False(t, ok)
}

func TestBuildTokenMap(t *testing.T) {
	markets, tokens := BuildTokenMap([]APIMarket{
		{ID: "mkt-1", ClobTokenIDs: flexStrings{"no-1", "yes-1"}},
		{ID: "mkt-2", ClobTokenIDs: flexStrings{"bad"}},
	})

	require.Len(t, markets, 1)
	require.Len(t, tokens, 2)
	assert.Equal(t, domain.TokenInfo{MarketID: "mkt-1", Outcome: domain.OutcomeYes}, tokens["yes-1"])
	assert.Equal(t, domain.TokenInfo{MarketID: "mkt-1", Outcome: domain.OutcomeNo}, tokens["no-1"])
}
