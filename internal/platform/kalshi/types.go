package kalshi

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/mentionleague/internal/domain"
)

// Market is a market as returned by the Kalshi REST API. Only the fields the
// league reads are decoded.
type Market struct {
	Ticker           string `json:"ticker"`
	EventTicker      string `json:"event_ticker"`
	Title            string `json:"title"`
	YesSubTitle      string `json:"yes_sub_title"`
	Status           string `json:"status"` // "active", "closed", "settled", ...
	Result           string `json:"result"` // "yes", "no", "" (unsettled)
	LastPriceDollars string `json:"last_price_dollars"`
	YesBidDollars    string `json:"yes_bid_dollars"`
	YesAskDollars    string `json:"yes_ask_dollars"`
	LastPrice        int64  `json:"last_price"` // cents
	YesBid           int64  `json:"yes_bid"`
	YesAsk           int64  `json:"yes_ask"`
	Volume           int64  `json:"volume"`
	CloseTime        string `json:"close_time"`
}

// marketsPage is one page of GET /markets.
type marketsPage struct {
	Markets []Market `json:"markets"`
	Cursor  string   `json:"cursor"`
}

// ErrorResponse is the error body Kalshi returns on non-2xx responses.
type ErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e ErrorResponse) code() string {
	if e.Error.Code != "" {
		return e.Error.Code
	}
	return e.Code
}

func (e ErrorResponse) message() string {
	if e.Error.Message != "" {
		return e.Error.Message
	}
	return e.Message
}

// DisplayTitle is the public option label of the market.
func (m Market) DisplayTitle() string {
	return strings.TrimSpace(m.YesSubTitle)
}

// YesPrice returns the last traded YES price in dollars. The string dollar
// field is preferred; the integer cents field is the fallback.
func (m Market) YesPrice() float64 {
	return dollars(m.LastPriceDollars, m.LastPrice)
}

// ToObservation converts the market into a snapshot row.
func (m Market) ToObservation() domain.MarketObservation {
	return domain.MarketObservation{
		InstrumentID: m.Ticker,
		EventGroupID: m.EventTicker,
		DisplayTitle: m.DisplayTitle(),
		YesPrice:     m.YesPrice(),
		YesBid:       dollars(m.YesBidDollars, m.YesBid),
		YesAsk:       dollars(m.YesAskDollars, m.YesAsk),
		Status:       m.Status,
		Result:       strings.ToLower(m.Result),
	}
}

// TitleMap maps each market's display title to its ticker. Markets without a
// title are skipped.
func TitleMap(markets []Market) map[string]string {
	out := make(map[string]string, len(markets))
	for _, m := range markets {
		if title := m.DisplayTitle(); title != "" {
			out[title] = m.Ticker
		}
	}
	return out
}

func dollars(s string, cents int64) float64 {
	if s = strings.TrimSpace(s); s != "" {
		if d, err := decimal.NewFromString(s); err == nil {
			return d.InexactFloat64()
		}
	}
	return decimal.New(cents, -2).InexactFloat64()
}
