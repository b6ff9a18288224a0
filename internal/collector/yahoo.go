package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"PriceKeeper/internal/model"
	"PriceKeeper/internal/period"
)

const (
	DefaultBaseURL       = "https://query1.finance.yahoo.com"
	DefaultTimeout       = 30 * time.Second
	DefaultRateLimit     = 5 // requests per second
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = time.Second
	DefaultUserAgent     = "Mozilla/5.0"
)

// YahooFetcher implements Fetcher using the Yahoo Finance public chart and
// search endpoints.
type YahooFetcher struct {
	BaseURL   string
	Client    *http.Client
	SymbolMap map[string]string // maps internal symbol to Yahoo ticker
	UserAgent string

	limiter       *rate.Limiter
	retryAttempts int
	retryDelay    time.Duration
	sleep         func(ctx context.Context, d time.Duration) error
}

// Option configures a YahooFetcher.
type Option func(*YahooFetcher)

// WithBaseURL points the fetcher at another host, e.g. a test server.
func WithBaseURL(baseURL string) Option {
	return func(f *YahooFetcher) { f.BaseURL = strings.TrimRight(baseURL, "/") }
}

// WithProxy routes requests through proxyURL. Unparseable URLs are ignored.
func WithProxy(proxyURL string) Option {
	return func(f *YahooFetcher) {
		if proxyURL == "" {
			return
		}
		if u, err := url.Parse(proxyURL); err == nil {
			f.Client.Transport = &http.Transport{Proxy: http.ProxyURL(u)}
		}
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(f *YahooFetcher) {
		if timeout > 0 {
			f.Client.Timeout = timeout
		}
	}
}

// WithRateLimit caps outbound requests per second.
func WithRateLimit(requestsPerSecond int) Option {
	return func(f *YahooFetcher) {
		if requestsPerSecond > 0 {
			f.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithRetry sets how many attempts a transport failure or 5xx gets and the
// base delay, which grows linearly with the attempt number.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(f *YahooFetcher) {
		if attempts > 0 {
			f.retryAttempts = attempts
		}
		if delay >= 0 {
			f.retryDelay = delay
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *YahooFetcher) {
		if ua != "" {
			f.UserAgent = ua
		}
	}
}

// NewYahooFetcher creates a new Yahoo Finance fetcher.
func NewYahooFetcher(opts ...Option) *YahooFetcher {
	f := &YahooFetcher{
		BaseURL: DefaultBaseURL,
		Client: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: &http.Transport{},
		},
		SymbolMap: map[string]string{
			"SPX500": "^GSPC",
			"SPX":    "^GSPC",
			"SP500":  "^GSPC",
		},
		UserAgent:     DefaultUserAgent,
		limiter:       rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		retryAttempts: DefaultRetryAttempts,
		retryDelay:    DefaultRetryDelay,
		sleep:         sleepContext,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *YahooFetcher) Name() string { return "yahoo" }

func (f *YahooFetcher) yahooSymbol(symbol string) string {
	symbol = model.NormalizeSymbol(symbol)
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// yahooChart is the response structure from the v8 chart endpoint. Numbers are
// kept as json.Number so prices reach decimal without a float64 round trip.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice *json.Number `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*json.Number `json:"open"`
					High   []*json.Number `json:"high"`
					Low    []*json.Number `json:"low"`
					Close  []*json.Number `json:"close"`
					Volume []*json.Number `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"chart"`
}

type yahooError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type yahooSearch struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		ShortName string `json:"shortname"`
		LongName  string `json:"longname"`
		ExchDisp  string `json:"exchDisp"`
		TypeDisp  string `json:"typeDisp"`
		QuoteType string `json:"quoteType"`
	} `json:"quotes"`
	Finance *struct {
		Error *yahooError `json:"error"`
	} `json:"finance"`
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// get performs a rate-limited GET, retrying transport failures and 5xx
// responses. It returns the final body and status without interpreting them.
func (f *YahooFetcher) get(ctx context.Context, op, symbol, endpoint string) ([]byte, int, error) {
	var lastErr error
	for attempt := 1; attempt <= f.retryAttempts; attempt++ {
		if attempt > 1 {
			if err := f.sleep(ctx, f.retryDelay*time.Duration(attempt-1)); err != nil {
				return nil, 0, model.NetworkFailure(op, symbol, err)
			}
		}
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, 0, model.NetworkFailure(op, symbol, fmt.Errorf("rate limit wait: %w", err))
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, 0, model.NetworkFailure(op, symbol, err)
		}
		req.Header.Set("User-Agent", f.UserAgent)
		req.Header.Set("Accept", "application/json")

		log.Debug().Str("op", op).Str("symbol", symbol).Int("attempt", attempt).Msg("yahoo request")

		resp, err := f.Client.Do(req)
		if err != nil {
			lastErr = model.NetworkFailure(op, symbol, err)
			log.Warn().Err(err).Str("symbol", symbol).Int("attempt", attempt).Msg("yahoo request failed")
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = model.NetworkFailure(op, symbol, fmt.Errorf("read body: %w", err))
			continue
		}
		if resp.StatusCode >= http.StatusInternalServerError && attempt < f.retryAttempts {
			lastErr = model.ProviderError(op, symbol, fmt.Sprintf("HTTP %d", resp.StatusCode))
			log.Warn().Int("status", resp.StatusCode).Str("symbol", symbol).Int("attempt", attempt).Msg("yahoo server error")
			continue
		}
		return body, resp.StatusCode, nil
	}
	return nil, 0, lastErr
}

// looksLikeHTML reports whether body is an HTML page, which Yahoo serves when
// it blocks automated clients.
func looksLikeHTML(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return false
	}
	lower := bytes.ToLower(trimmed[:min(len(trimmed), 16)])
	return bytes.HasPrefix(lower, []byte("<!doctype")) ||
		bytes.HasPrefix(lower, []byte("<html")) ||
		trimmed[0] == '<'
}

// checkBody applies the checks shared by every endpoint before decoding.
func checkBody(op, symbol string, body []byte, status int) error {
	if looksLikeHTML(body) {
		return model.BlockedOrRateLimited(op, symbol, "received HTML instead of JSON")
	}
	if status == http.StatusTooManyRequests {
		return model.BlockedOrRateLimited(op, symbol, "HTTP 429")
	}
	return nil
}

func (f *YahooFetcher) fetchChart(ctx context.Context, op, symbol, interval, rng string) (*yahooChart, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		f.BaseURL, url.PathEscape(f.yahooSymbol(symbol)), url.QueryEscape(interval), url.QueryEscape(rng))

	body, status, err := f.get(ctx, op, symbol, endpoint)
	if err != nil {
		return nil, err
	}
	if err := checkBody(op, symbol, body, status); err != nil {
		return nil, err
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		if status != http.StatusOK {
			return nil, model.ProviderError(op, symbol, fmt.Sprintf("HTTP %d: %s", status, truncate(body)))
		}
		return nil, model.ParseError(op, symbol, err)
	}
	if e := chart.Chart.Error; e != nil {
		return nil, model.ProviderError(op, symbol, fmt.Sprintf("%s: %s", e.Code, e.Description))
	}
	if status != http.StatusOK {
		return nil, model.ProviderError(op, symbol, fmt.Sprintf("HTTP %d", status))
	}
	if len(chart.Chart.Result) == 0 {
		return nil, model.NoData(op, symbol, "no result entries")
	}
	return &chart, nil
}

// FetchCurrentPrice returns the regular market price from an intraday chart.
func (f *YahooFetcher) FetchCurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	const op = "fetch current price"
	chart, err := f.fetchChart(ctx, op, symbol, "1m", "1d")
	if err != nil {
		return decimal.Zero, err
	}
	result := chart.Chart.Result[0]
	if p := result.Meta.RegularMarketPrice; p != nil {
		price, err := decimal.NewFromString(p.String())
		if err != nil {
			return decimal.Zero, model.ParseError(op, symbol, err)
		}
		return price, nil
	}

	// Fall back to the last non-null close.
	if len(result.Indicators.Quote) > 0 {
		closes := result.Indicators.Quote[0].Close
		for i := len(closes) - 1; i >= 0; i-- {
			if closes[i] == nil {
				continue
			}
			price, err := decimal.NewFromString(closes[i].String())
			if err != nil {
				return decimal.Zero, model.ParseError(op, symbol, err)
			}
			return price, nil
		}
	}
	return decimal.Zero, model.NoData(op, symbol, "no current price")
}

// FetchChart returns closes for period zipped positionally with timestamps.
// Indices with a null close are skipped.
func (f *YahooFetcher) FetchChart(ctx context.Context, symbol, p string) ([]model.PricePoint, error) {
	const op = "fetch chart"
	p = period.Normalize(p)
	rng, interval := period.RangeInterval(p)

	chart, err := f.fetchChart(ctx, op, symbol, interval, rng)
	if err != nil {
		return nil, model.WithContext(err, symbol, p)
	}
	result := chart.Chart.Result[0]
	if len(result.Timestamp) == 0 || len(result.Indicators.Quote) == 0 {
		return nil, &model.Error{Kind: model.KindNoData, Op: op, Symbol: symbol, Period: p, Message: "empty series"}
	}
	quote := result.Indicators.Quote[0]

	type stamped struct {
		ts int64
		pt model.PricePoint
	}
	series := make([]stamped, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == nil {
			continue
		}
		price, err := decimal.NewFromString(quote.Close[i].String())
		if err != nil {
			return nil, &model.Error{Kind: model.KindParseError, Op: op, Symbol: symbol, Period: p, Err: err}
		}
		pt := model.PricePoint{
			Date:  model.FormatDate(time.Unix(ts, 0)),
			Price: price,
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			if v, ok := parseVolume(*quote.Volume[i]); ok {
				pt.Volume = &v
			}
		}
		series = append(series, stamped{ts: ts, pt: pt})
	}
	if len(series) == 0 {
		return nil, &model.Error{Kind: model.KindNoData, Op: op, Symbol: symbol, Period: p, Message: "no closes in series"}
	}

	sort.SliceStable(series, func(i, j int) bool { return series[i].ts < series[j].ts })
	points := make([]model.PricePoint, len(series))
	for i, s := range series {
		points[i] = s.pt
	}
	return points, nil
}

func parseVolume(n json.Number) (int64, bool) {
	if v, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		return v, true
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return 0, false
	}
	return d.IntPart(), true
}

// FetchSearch queries the v1 search endpoint. Asset kinds are not filtered here.
func (f *YahooFetcher) FetchSearch(ctx context.Context, query string, limit int) ([]model.SymbolSuggestion, error) {
	const op = "search"
	params := url.Values{}
	params.Set("q", query)
	params.Set("quotesCount", strconv.Itoa(limit))
	params.Set("newsCount", "0")
	endpoint := fmt.Sprintf("%s/v1/finance/search?%s", f.BaseURL, params.Encode())

	body, status, err := f.get(ctx, op, query, endpoint)
	if err != nil {
		return nil, err
	}
	if err := checkBody(op, query, body, status); err != nil {
		return nil, err
	}

	var resp yahooSearch
	if err := json.Unmarshal(body, &resp); err != nil {
		if status != http.StatusOK {
			return nil, model.ProviderError(op, query, fmt.Sprintf("HTTP %d: %s", status, truncate(body)))
		}
		return nil, model.ParseError(op, query, err)
	}
	if resp.Finance != nil && resp.Finance.Error != nil {
		e := resp.Finance.Error
		return nil, model.ProviderError(op, query, fmt.Sprintf("%s: %s", e.Code, e.Description))
	}
	if status != http.StatusOK {
		return nil, model.ProviderError(op, query, fmt.Sprintf("HTTP %d", status))
	}

	out := make([]model.SymbolSuggestion, 0, len(resp.Quotes))
	for _, q := range resp.Quotes {
		name := q.LongName
		if name == "" {
			name = q.ShortName
		}
		assetType := q.TypeDisp
		if assetType == "" {
			assetType = q.QuoteType
		}
		out = append(out, model.SymbolSuggestion{
			Symbol:    q.Symbol,
			Name:      name,
			Exchange:  q.ExchDisp,
			AssetType: assetType,
		})
	}
	return out, nil
}

func truncate(body []byte) string {
	const limit = 200
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
