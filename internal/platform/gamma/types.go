package gamma

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/polytrack/polytrack/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexStrings unmarshals from a JSON array of strings or a JSON-encoded
// string containing such an array. The Gamma API uses both encodings for
// clobTokenIds, outcomes, and outcomePrices.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		*f = arr
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = nil
		return nil
	}
	if err := json.Unmarshal([]byte(s), &arr); err != nil {
		return err
	}
	*f = arr
	return nil
}

// flexFloat unmarshals from a JSON number or a numeric string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(n)
	return nil
}

// APIMarket represents a market as returned by the Gamma API.
type APIMarket struct {
	ID             string      `json:"id"`
	Question       string      `json:"question"`
	Slug           string      `json:"slug"`
	ConditionID    string      `json:"conditionId"`
	ClobTokenIDs   flexStrings `json:"clobTokenIds"`
	Outcomes       flexStrings `json:"outcomes"`
	OutcomePrices  flexStrings `json:"outcomePrices"`
	Volume         flexFloat   `json:"volumeNum"`
	Liquidity      flexFloat   `json:"liquidityNum"`
	EndDate        string      `json:"endDate"`
	Active         flexBool    `json:"active"`
	Closed         bool        `json:"closed"`
}

// ToDomainMarket converts the API DTO to a domain.Market. It returns
// ok=false when the market has no usable CLOB token IDs, in which case the
// market cannot participate in fill resolution and is skipped.
func (m *APIMarket) ToDomainMarket() (domain.Market, bool) {
	if len(m.ClobTokenIDs) < 2 || m.ClobTokenIDs[0] == "" || m.ClobTokenIDs[1] == "" {
		return domain.Market{}, false
	}

	priceYes, priceNo := 0.5, 0.5
	// outcomePrices arrives as [yesPrice, noPrice].
	if len(m.OutcomePrices) >= 2 {
		if p, err := strconv.ParseFloat(m.OutcomePrices[0], 64); err == nil && p > 0 {
			priceYes = p
		}
		if p, err := strconv.ParseFloat(m.OutcomePrices[1], 64); err == nil && p > 0 {
			priceNo = p
		}
	}

	market := domain.Market{
		ID:          m.ID,
		Question:    m.Question,
		Slug:        m.Slug,
		ConditionID: m.ConditionID,
		TokenNo:     m.ClobTokenIDs[0],
		TokenYes:    m.ClobTokenIDs[1],
		PriceYes:    priceYes,
		PriceNo:     priceNo,
		Volume:      float64(m.Volume),
		Liquidity:   float64(m.Liquidity),
		Active:      bool(m.Active) && !m.Closed,
		UpdatedAt:   time.Now().UTC(),
	}

	if m.EndDate != "" {
		if t, err := time.Parse(time.RFC3339, m.EndDate); err == nil {
			market.EndDate = &t
		}
	}

	return market, true
}
