package kalshi

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/alanyoungcy/mentionleague/internal/domain"
)

const (
	// DefaultBaseURL is the public Kalshi trade API root.
	DefaultBaseURL = "https://api.elections.kalshi.com/trade-api/v2"

	defaultTimeout   = 15 * time.Second
	defaultPageLimit = 200
	defaultRateLimit = 10.0
	defaultBurst     = 5
	maxPages         = 1000
)

// Client is the read-only REST client for the Kalshi market endpoints.
type Client struct {
	baseURL    string
	apiKeyID   string
	privateKey *rsa.PrivateKey
	httpClient *http.Client
	limiter    *rate.Limiter
	pageLimit  int
	observe    func(op string, elapsed time.Duration, err error)
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRateLimit sets the client-side request rate.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps > 0 && burst > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithPageLimit sets the page size used when listing markets.
func WithPageLimit(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageLimit = n
		}
	}
}

// WithObserver registers a hook called after every request.
func WithObserver(fn func(op string, elapsed time.Duration, err error)) Option {
	return func(c *Client) { c.observe = fn }
}

// NewClient creates a new Kalshi REST client. apiKeyID may be empty: the
// market endpoints are public and requests are only signed once a private key
// is configured.
func NewClient(baseURL, apiKeyID string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKeyID: apiKeyID,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		limiter:   rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
		pageLimit: defaultPageLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetRSAPrivateKey loads an RSA private key from PEM-encoded bytes and
// configures the client for RSA-signed authentication.
func (c *Client) SetRSAPrivateKey(pemBytes []byte) error {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return fmt.Errorf("kalshi: no PEM block found in private key")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		pkcs1Key, pkcs1Err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if pkcs1Err != nil {
			return fmt.Errorf("kalshi: parse private key: %w (pkcs1: %v)", err, pkcs1Err)
		}
		c.privateKey = pkcs1Key
		return nil
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return fmt.Errorf("kalshi: expected RSA private key, got %T", key)
	}
	c.privateKey = rsaKey
	return nil
}

// GetEventMarkets returns every market of one event, following the cursor
// until the venue stops returning one.
func (c *Client) GetEventMarkets(ctx context.Context, eventTicker string) ([]Market, error) {
	var (
		markets []Market
		cursor  string
	)
	for page := 0; page < maxPages; page++ {
		params := url.Values{}
		params.Set("event_ticker", eventTicker)
		params.Set("limit", strconv.Itoa(c.pageLimit))
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		var resp marketsPage
		if err := c.get(ctx, "get event markets", "/markets", params, &resp); err != nil {
			return nil, err
		}
		markets = append(markets, resp.Markets...)

		if resp.Cursor == "" || resp.Cursor == cursor {
			return markets, nil
		}
		cursor = resp.Cursor
	}
	return nil, &APIError{Op: "get event markets", Err: fmt.Errorf("more than %d pages for %s", maxPages, eventTicker)}
}

// GetMarket returns a single market by its ticker.
func (c *Client) GetMarket(ctx context.Context, ticker string) (Market, error) {
	var resp struct {
		Market Market `json:"market"`
	}
	path := "/markets/" + url.PathEscape(ticker)
	if err := c.get(ctx, "get market", path, nil, &resp); err != nil {
		return Market{}, err
	}
	return resp.Market, nil
}

// GetEvents fetches the markets of several events concurrently. The result is
// keyed like events. Any failure cancels the rest and is returned.
func (c *Client) GetEvents(ctx context.Context, events map[string]string) (map[string][]Market, error) {
	var (
		mu  sync.Mutex
		out = make(map[string][]Market, len(events))
	)
	g, gctx := errgroup.WithContext(ctx)
	for key, ticker := range events {
		g.Go(func() error {
			markets, err := c.GetEventMarkets(gctx, ticker)
			if err != nil {
				return err
			}
			mu.Lock()
			out[key] = markets
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// get sends a rate-limited GET, checks the status and decodes the JSON body
// into out. Every failure comes back as an *APIError.
func (c *Client) get(ctx context.Context, op, path string, params url.Values, out any) (err error) {
	start := time.Now()
	defer func() {
		if c.observe != nil {
			c.observe(op, time.Since(start), err)
		}
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return &APIError{Op: op, Err: fmt.Errorf("rate limiter: %w", err)}
	}

	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return &APIError{Op: op, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	if c.privateKey != nil {
		if err := c.signRequest(req, http.MethodGet, req.URL.Path); err != nil {
			return &APIError{Op: op, Err: fmt.Errorf("sign request: %w", err)}
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Op: op, Err: fmt.Errorf("http request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if err := checkStatus(op, resp.StatusCode, body); err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &APIError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// signRequest adds RSA authentication headers to the HTTP request.
// Kalshi uses RSA-PSS-SHA256 signatures over timestamp + method + path.
func (c *Client) signRequest(req *http.Request, method, path string) error {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	message := ts + method + path

	hash := sha256.Sum256([]byte(message))
	signature, err := rsa.SignPSS(rand.Reader, c.privateKey, crypto.SHA256, hash[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		return fmt.Errorf("RSA sign: %w", err)
	}

	req.Header.Set("KALSHI-ACCESS-KEY", c.apiKeyID)
	req.Header.Set("KALSHI-ACCESS-SIGNATURE", base64.StdEncoding.EncodeToString(signature))
	req.Header.Set("KALSHI-ACCESS-TIMESTAMP", ts)
	return nil
}

// checkStatus maps non-2xx HTTP status codes to an *APIError.
func checkStatus(op string, statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr ErrorResponse
	_ = json.Unmarshal(body, &apiErr)

	msg := apiErr.message()
	if msg == "" {
		msg = http.StatusText(statusCode)
	}
	return &APIError{
		Op:         op,
		StatusCode: statusCode,
		Code:       apiErr.code(),
		Message:    msg,
	}
}

// FetchObservations fetches several events and converts every market into a
// snapshot row. The result is keyed like events.
func (c *Client) FetchObservations(ctx context.Context, events map[string]string) (map[string][]domain.MarketObservation, error) {
	byEvent, err := c.GetEvents(ctx, events)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]domain.MarketObservation, len(byEvent))
	for key, markets := range byEvent {
		rows := make([]domain.MarketObservation, 0, len(markets))
		for _, m := range markets {
			rows = append(rows, m.ToObservation())
		}
		out[key] = rows
	}
	return out, nil
}
