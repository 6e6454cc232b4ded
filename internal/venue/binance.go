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
	"sync"
	"time"

	"github.com/cexarb/arbot/internal/crypto"
	"github.com/cexarb/arbot/internal/domain"
)

const (
	binanceBaseURL    = "https://api.binance.com"
	binanceTestnetURL = "https://testnet.binance.vision"

	// binanceRecvWindow is the tolerance Binance allows between our
	// timestamp and their server clock, in milliseconds.
	binanceRecvWindow = 5000
)

// BinanceClient talks to the Binance spot REST API.
type BinanceClient struct {
	baseURL    string
	creds      crypto.Credentials
	httpClient *http.Client
	logger     *slog.Logger

	// Binance only reports commissions in the fill list of the placement
	// response, not on later order queries, so we remember them per order.
	feeMu     sync.Mutex
	feeByID   map[string]float64
	pairByID  map[string]domain.TradingPair
}

// NewBinanceClient creates a Binance spot client. When testnet is true the
// client targets the public spot testnet instead of production.
func NewBinanceClient(creds crypto.Credentials, testnet bool, logger *slog.Logger) *BinanceClient {
	base := binanceBaseURL
	if testnet {
		base = binanceTestnetURL
	}
	return &BinanceClient{
		baseURL: base,
		creds:   creds,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:   logger.With(slog.String("component", "venue.binance")),
		feeByID:  make(map[string]float64),
		pairByID: make(map[string]domain.TradingPair),
	}
}

// Name implements domain.VenueClient.
func (c *BinanceClient) Name() string { return "binance" }

// binanceSymbol maps a pair to Binance's concatenated upper-case form.
func binanceSymbol(pair domain.TradingPair) string {
	return strings.ToUpper(pair.Base + pair.Quote)
}

// LastPrice implements domain.VenueClient.
func (c *BinanceClient) LastPrice(ctx context.Context, pair domain.TradingPair) (float64, error) {
	params := url.Values{}
	params.Set("symbol", binanceSymbol(pair))

	var resp struct {
		Price string `json:"price"`
	}
	if err := c.public(ctx, "/api/v3/ticker/price", params, &resp); err != nil {
		return 0, fmt.Errorf("binance: ticker %s: %w", pair, err)
	}

	price, err := strconv.ParseFloat(resp.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("binance: ticker %s: parse price %q: %w", pair, resp.Price, err)
	}
	if price <= 0 {
		return 0, fmt.Errorf("binance: ticker %s: %w", pair, domain.ErrNoPrice)
	}
	return price, nil
}

// Balances implements domain.VenueClient. Zero balances are omitted.
func (c *BinanceClient) Balances(ctx context.Context) (map[string]domain.Balance, error) {
	var resp struct {
		Balances []struct {
			Asset  string `json:"asset"`
			Free   string `json:"free"`
			Locked string `json:"locked"`
		} `json:"balances"`
	}
	if err := c.signed(ctx, http.MethodGet, "/api/v3/account", url.Values{}, &resp); err != nil {
		return nil, fmt.Errorf("binance: account: %w", err)
	}

	out := make(map[string]domain.Balance)
	for _, b := range resp.Balances {
		free, err := strconv.ParseFloat(b.Free, 64)
		if err != nil {
			continue
		}
		locked, _ := strconv.ParseFloat(b.Locked, 64)
		if free == 0 && locked == 0 {
			continue
		}
		cur := strings.ToUpper(b.Asset)
		out[cur] = domain.Balance{Currency: cur, Free: free, Locked: locked}
	}
	return out, nil
}

// PlaceMarketOrder implements domain.VenueClient.
func (c *BinanceClient) PlaceMarketOrder(ctx context.Context, side domain.OrderSide, pair domain.TradingPair, quantity float64) (domain.Order, error) {
	params := url.Values{}
	params.Set("symbol", binanceSymbol(pair))
	params.Set("side", strings.ToUpper(string(side)))
	params.Set("type", "MARKET")
	params.Set("quantity", strconv.FormatFloat(quantity, 'f', -1, 64))
	params.Set("newOrderRespType", "FULL")

	var resp binanceOrderResponse
	if err := c.signed(ctx, http.MethodPost, "/api/v3/order", params, &resp); err != nil {
		return domain.Order{}, fmt.Errorf("binance: place %s %s: %w", side, pair, err)
	}

	order := c.toOrder(resp, pair, side)

	// Remember the commission from the placement fills so Order() can
	// report it on later polls.
	c.feeMu.Lock()
	c.feeByID[order.ID] = order.Fee
	c.pairByID[order.ID] = pair
	c.feeMu.Unlock()

	c.logger.Info("order placed",
		slog.String("pair", pair.String()),
		slog.String("side", string(side)),
		slog.String("order_id", order.ID),
		slog.String("status", string(order.Status)))
	return order, nil
}

// Order implements domain.VenueClient.
func (c *BinanceClient) Order(ctx context.Context, id string, pair domain.TradingPair) (domain.Order, error) {
	params := url.Values{}
	params.Set("symbol", binanceSymbol(pair))
	params.Set("orderId", id)

	var resp binanceOrderResponse
	if err := c.signed(ctx, http.MethodGet, "/api/v3/order", params, &resp); err != nil {
		return domain.Order{}, fmt.Errorf("binance: query order %s: %w", id, err)
	}

	side := domain.OrderSideBuy
	if strings.EqualFold(resp.Side, "SELL") {
		side = domain.OrderSideSell
	}
	order := c.toOrder(resp, pair, side)

	// Order queries carry no commission info; splice in the fee captured
	// at placement time.
	c.feeMu.Lock()
	if fee, ok := c.feeByID[order.ID]; ok && order.Fee == 0 {
		order.Fee = fee
	}
	c.feeMu.Unlock()

	return order, nil
}

// TradingFees implements domain.VenueClient. Binance reports commissions as
// fractions (0.001 == 0.1%); they are converted to percent here.
func (c *BinanceClient) TradingFees(ctx context.Context, pair domain.TradingPair) (domain.FeeRates, error) {
	params := url.Values{}
	params.Set("symbol", binanceSymbol(pair))

	var resp []struct {
		Symbol          string `json:"symbol"`
		MakerCommission string `json:"makerCommission"`
		TakerCommission string `json:"takerCommission"`
	}
	if err := c.signed(ctx, http.MethodGet, "/sapi/v1/asset/tradeFee", params, &resp); err != nil {
		return domain.FeeRates{}, fmt.Errorf("binance: trade fee %s: %w", pair, err)
	}
	if len(resp) == 0 {
		return domain.FeeRates{}, fmt.Errorf("binance: trade fee %s: empty response", pair)
	}

	maker, err := strconv.ParseFloat(resp[0].MakerCommission, 64)
	if err != nil {
		return domain.FeeRates{}, fmt.Errorf("binance: trade fee %s: parse maker %q: %w", pair, resp[0].MakerCommission, err)
	}
	taker, err := strconv.ParseFloat(resp[0].TakerCommission, 64)
	if err != nil {
		return domain.FeeRates{}, fmt.Errorf("binance: trade fee %s: parse taker %q: %w", pair, resp[0].TakerCommission, err)
	}
	return domain.FeeRates{MakerPct: maker * 100, TakerPct: taker * 100}, nil
}

// binanceOrderResponse is the shared shape of order placement and query
// responses.
type binanceOrderResponse struct {
	OrderID             int64  `json:"orderId"`
	Status              string `json:"status"`
	Side                string `json:"side"`
	OrigQty             string `json:"origQty"`
	ExecutedQty         string `json:"executedQty"`
	CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
	Fills               []struct {
		Price           string `json:"price"`
		Qty             string `json:"qty"`
		Commission      string `json:"commission"`
		CommissionAsset string `json:"commissionAsset"`
	} `json:"fills"`
}

// toOrder maps a Binance order payload onto the uniform order shape.
func (c *BinanceClient) toOrder(resp binanceOrderResponse, pair domain.TradingPair, side domain.OrderSide) domain.Order {
	qty, _ := strconv.ParseFloat(resp.OrigQty, 64)
	filled, _ := strconv.ParseFloat(resp.ExecutedQty, 64)
	quoteQty, _ := strconv.ParseFloat(resp.CummulativeQuoteQty, 64)

	var avg float64
	if filled > 0 {
		avg = quoteQty / filled
	}

	// Commissions can be charged in base, quote, or BNB; only the first
	// two are convertible without another price lookup.
	var fee float64
	for _, f := range resp.Fills {
		commission, err := strconv.ParseFloat(f.Commission, 64)
		if err != nil || commission == 0 {
			continue
		}
		switch strings.ToUpper(f.CommissionAsset) {
		case strings.ToUpper(pair.Quote):
			fee += commission
		case strings.ToUpper(pair.Base):
			fillPrice, _ := strconv.ParseFloat(f.Price, 64)
			fee += commission * fillPrice
		default:
			c.logger.Warn("commission in untracked asset, excluded from fee total",
				slog.String("asset", f.CommissionAsset))
		}
	}

	return domain.Order{
		ID:           strconv.FormatInt(resp.OrderID, 10),
		Pair:         pair,
		Side:         side,
		Status:       binanceStatus(resp.Status),
		Quantity:     qty,
		Filled:       filled,
		AveragePrice: avg,
		Fee:          fee,
		Cost:         quoteQty,
	}
}

// binanceStatus maps Binance order statuses to the uniform set.
func binanceStatus(s string) domain.OrderStatus {
	switch s {
	case "NEW", "PENDING_NEW":
		return domain.OrderStatusNew
	case "PARTIALLY_FILLED":
		return domain.OrderStatusPartiallyFilled
	case "FILLED":
		return domain.OrderStatusFilled
	case "CANCELED", "PENDING_CANCEL":
		return domain.OrderStatusCanceled
	case "REJECTED":
		return domain.OrderStatusRejected
	case "EXPIRED", "EXPIRED_IN_MATCH":
		return domain.OrderStatusExpired
	default:
		return domain.OrderStatusNew
	}
}

// public performs an unsigned GET and decodes the JSON response.
func (c *BinanceClient) public(ctx context.Context, path string, params url.Values, out any) error {
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

// signed performs a request against a SIGNED endpoint: timestamp and
// recvWindow are appended, the query is HMAC-signed, and the API key header
// is attached.
func (c *BinanceClient) signed(ctx context.Context, method, path string, params url.Values, out any) error {
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("recvWindow", strconv.Itoa(binanceRecvWindow))

	query := params.Encode()
	query += "&signature=" + crypto.SignBinanceQuery(c.creds.APISecret, query)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+query, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-MBX-APIKEY", c.creds.APIKey)
	return c.do(req, out)
}

// do executes the request and decodes either the payload or the Binance
// error envelope.
func (c *BinanceClient) do(req *http.Request, out any) error {
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
		var apiErr struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Msg != "" {
			return fmt.Errorf("api error %d (%d): %s", resp.StatusCode, apiErr.Code, apiErr.Msg)
		}
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
