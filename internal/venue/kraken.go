package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cexarb/arbot/internal/crypto"
	"github.com/cexarb/arbot/internal/domain"
)

const krakenBaseURL = "https://api.kraken.com"

// krakenAssetAliases maps common asset codes to Kraken's legacy names and
// back. Kraken still reports some assets with X/Z prefixes.
var krakenAssetAliases = map[string]string{
	"BTC":  "XBT",
	"DOGE": "XDG",
}

var krakenAssetCanonical = map[string]string{
	"XBT":  "BTC",
	"XXBT": "BTC",
	"XDG":  "DOGE",
	"XXDG": "DOGE",
	"XETH": "ETH",
	"ZUSD": "USD",
	"ZEUR": "EUR",
}

// KrakenClient talks to the Kraken spot REST API.
type KrakenClient struct {
	baseURL    string
	creds      crypto.Credentials
	httpClient *http.Client
	logger     *slog.Logger
}

// NewKrakenClient creates a Kraken spot client. Kraken has no public spot
// testnet, so there is no testnet switch.
func NewKrakenClient(creds crypto.Credentials, logger *slog.Logger) *KrakenClient {
	return &KrakenClient{
		baseURL: krakenBaseURL,
		creds:   creds,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger.With(slog.String("component", "venue.kraken")),
	}
}

// Name implements domain.VenueClient.
func (c *KrakenClient) Name() string { return "kraken" }

// krakenPair maps a pair to Kraken's concatenated form, applying asset
// aliases (BTC/USDT becomes XBTUSDT).
func krakenPair(pair domain.TradingPair) string {
	base := strings.ToUpper(pair.Base)
	if alias, ok := krakenAssetAliases[base]; ok {
		base = alias
	}
	quote := strings.ToUpper(pair.Quote)
	if alias, ok := krakenAssetAliases[quote]; ok {
		quote = alias
	}
	return base + quote
}

// canonicalAsset maps a Kraken asset code back to the common code.
func canonicalAsset(asset string) string {
	asset = strings.ToUpper(asset)
	if canon, ok := krakenAssetCanonical[asset]; ok {
		return canon
	}
	return asset
}

// LastPrice implements domain.VenueClient.
func (c *KrakenClient) LastPrice(ctx context.Context, pair domain.TradingPair) (float64, error) {
	params := url.Values{}
	params.Set("pair", krakenPair(pair))

	// The result key is Kraken's own pair spelling, which does not always
	// match the requested one, so take the single entry.
	var result map[string]struct {
		Last []string `json:"c"`
	}
	if err := c.public(ctx, "/0/public/Ticker", params, &result); err != nil {
		return 0, fmt.Errorf("kraken: ticker %s: %w", pair, err)
	}

	for _, t := range result {
		if len(t.Last) == 0 {
			break
		}
		price, err := strconv.ParseFloat(t.Last[0], 64)
		if err != nil {
			return 0, fmt.Errorf("kraken: ticker %s: parse price %q: %w", pair, t.Last[0], err)
		}
		if price <= 0 {
			return 0, fmt.Errorf("kraken: ticker %s: %w", pair, domain.ErrNoPrice)
		}
		return price, nil
	}
	return 0, fmt.Errorf("kraken: ticker %s: %w", pair, domain.ErrNoPrice)
}

// Balances implements domain.VenueClient. Kraken's Balance endpoint reports
// totals only, so everything is surfaced as free.
func (c *KrakenClient) Balances(ctx context.Context) (map[string]domain.Balance, error) {
	var result map[string]string
	if err := c.private(ctx, "/0/private/Balance", url.Values{}, &result); err != nil {
		return nil, fmt.Errorf("kraken: balance: %w", err)
	}

	out := make(map[string]domain.Balance)
	for asset, amountStr := range result {
		amount, err := strconv.ParseFloat(amountStr, 64)
		if err != nil || amount == 0 {
			continue
		}
		cur := canonicalAsset(asset)
		b := out[cur]
		b.Currency = cur
		b.Free += amount
		out[cur] = b
	}
	return out, nil
}

// PlaceMarketOrder implements domain.VenueClient. Kraken's AddOrder response
// carries only the transaction ID, so the returned order reports no fill
// information until the first Order poll.
func (c *KrakenClient) PlaceMarketOrder(ctx context.Context, side domain.OrderSide, pair domain.TradingPair, quantity float64) (domain.Order, error) {
	params := url.Values{}
	params.Set("pair", krakenPair(pair))
	params.Set("type", string(side))
	params.Set("ordertype", "market")
	params.Set("volume", strconv.FormatFloat(quantity, 'f', -1, 64))

	var result struct {
		TxID []string `json:"txid"`
	}
	if err := c.private(ctx, "/0/private/AddOrder", params, &result); err != nil {
		return domain.Order{}, fmt.Errorf("kraken: place %s %s: %w", side, pair, err)
	}
	if len(result.TxID) == 0 {
		return domain.Order{}, fmt.Errorf("kraken: place %s %s: no txid in response", side, pair)
	}

	c.logger.Info("order placed",
		slog.String("pair", pair.String()),
		slog.String("side", string(side)),
		slog.String("order_id", result.TxID[0]))

	return domain.Order{
		ID:       result.TxID[0],
		Pair:     pair,
		Side:     side,
		Status:   domain.OrderStatusNew,
		Quantity: quantity,
	}, nil
}

// Order implements domain.VenueClient.
func (c *KrakenClient) Order(ctx context.Context, id string, pair domain.TradingPair) (domain.Order, error) {
	params := url.Values{}
	params.Set("txid", id)

	var result map[string]struct {
		Status  string `json:"status"`
		Vol     string `json:"vol"`
		VolExec string `json:"vol_exec"`
		Price   string `json:"price"`
		Fee     string `json:"fee"`
		Cost    string `json:"cost"`
		Descr   struct {
			Type string `json:"type"`
		} `json:"descr"`
	}
	if err := c.private(ctx, "/0/private/QueryOrders", params, &result); err != nil {
		return domain.Order{}, fmt.Errorf("kraken: query order %s: %w", id, err)
	}

	info, ok := result[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("kraken: query order %s: %w", id, domain.ErrNotFound)
	}

	qty, _ := strconv.ParseFloat(info.Vol, 64)
	filled, _ := strconv.ParseFloat(info.VolExec, 64)
	avg, _ := strconv.ParseFloat(info.Price, 64)
	fee, _ := strconv.ParseFloat(info.Fee, 64)
	cost, _ := strconv.ParseFloat(info.Cost, 64)

	side := domain.OrderSideBuy
	if info.Descr.Type == "sell" {
		side = domain.OrderSideSell
	}

	return domain.Order{
		ID:           id,
		Pair:         pair,
		Side:         side,
		Status:       krakenStatus(info.Status, filled),
		Quantity:     qty,
		Filled:       filled,
		AveragePrice: avg,
		Fee:          fee,
		Cost:         cost,
	}, nil
}

// TradingFees implements domain.VenueClient. Kraken's TradeVolume endpoint
// already reports fee rates in percent.
func (c *KrakenClient) TradingFees(ctx context.Context, pair domain.TradingPair) (domain.FeeRates, error) {
	params := url.Values{}
	params.Set("pair", krakenPair(pair))

	var result struct {
		Fees      map[string]struct{ Fee string `json:"fee"` } `json:"fees"`
		FeesMaker map[string]struct{ Fee string `json:"fee"` } `json:"fees_maker"`
	}
	if err := c.private(ctx, "/0/private/TradeVolume", params, &result); err != nil {
		return domain.FeeRates{}, fmt.Errorf("kraken: trade volume %s: %w", pair, err)
	}

	var rates domain.FeeRates
	for _, f := range result.Fees {
		taker, err := strconv.ParseFloat(f.Fee, 64)
		if err != nil {
			return domain.FeeRates{}, fmt.Errorf("kraken: trade volume %s: parse taker %q: %w", pair, f.Fee, err)
		}
		rates.TakerPct = taker
		break
	}
	rates.MakerPct = rates.TakerPct
	for _, f := range result.FeesMaker {
		maker, err := strconv.ParseFloat(f.Fee, 64)
		if err != nil {
			return domain.FeeRates{}, fmt.Errorf("kraken: trade volume %s: parse maker %q: %w", pair, f.Fee, err)
		}
		rates.MakerPct = maker
		break
	}
	if rates.TakerPct == 0 && rates.MakerPct == 0 {
		return domain.FeeRates{}, fmt.Errorf("kraken: trade volume %s: no fee schedule in response", pair)
	}
	return rates, nil
}

// krakenStatus maps Kraken order statuses to the uniform set. An open order
// with partial volume executed is reported as partially filled.
func krakenStatus(s string, filled float64) domain.OrderStatus {
	switch s {
	case "pending", "open":
		if filled > 0 {
			return domain.OrderStatusPartiallyFilled
		}
		return domain.OrderStatusNew
	case "closed":
		return domain.OrderStatusFilled
	case "canceled":
		return domain.OrderStatusCanceled
	case "expired":
		return domain.OrderStatusExpired
	default:
		return domain.OrderStatusNew
	}
}

// public performs an unsigned GET against a /0/public endpoint.
func (c *KrakenClient) public(ctx context.Context, path string, params url.Values, out any) error {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out)
}

// private performs a signed POST against a /0/private endpoint.
func (c *KrakenClient) private(ctx context.Context, path string, params url.Values, out any) error {
	nonce := strconv.FormatInt(time.Now().UnixNano(), 10)
	params.Set("nonce", nonce)
	postdata := params.Encode()

	sig, err := crypto.SignKrakenRequest(c.creds.APISecret, path, nonce, postdata)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(postdata))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("API-Key", c.creds.APIKey)
	req.Header.Set("API-Sign", sig)
	return c.do(req, out)
}

// do executes the request and unwraps Kraken's {error, result} envelope.
func (c *KrakenClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var envelope struct {
		Error  []string        `json:"error"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if len(envelope.Error) > 0 {
		return fmt.Errorf("api error: %s", strings.Join(envelope.Error, "; "))
	}

	if out != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}
