package binance

import (
	"CopyTradeBot/config"
	"CopyTradeBot/internal/exchange"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/goccy/go-json"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	withdrawTimeLayout = "2006-01-02 15:04:05"
	lotSizeTTL         = time.Hour
)

// Opener builds spot clients that share one rate limiter and lot-size cache.
type Opener struct {
	cfg         config.ExchangeConfig
	rateLimiter *rate.Limiter
	httpClient  *http.Client
	lotSizes    *cache.Cache
	logger      *zap.Logger
}

func NewOpener(cfg config.ExchangeConfig, logger *zap.Logger) *Opener {
	// Create custom HTTP client with timeouts
	httpClient := &http.Client{
		Timeout: time.Second * 10,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	binance.UseTestnet = cfg.Testnet

	return &Opener{
		cfg:         cfg,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		httpClient:  httpClient,
		lotSizes:    cache.New(lotSizeTTL, 2*lotSizeTTL),
		logger:      logger.With(zap.String("component", "binance")),
	}
}

func (o *Opener) Open(_ context.Context, creds exchange.Credentials) (exchange.Client, error) {
	if creds.APIKey == "" || creds.APISecret == "" {
		return nil, exchange.ErrNoCredentials
	}
	spot := binance.NewClient(creds.APIKey, creds.APISecret)
	spot.HTTPClient = o.httpClient
	return &Client{opener: o, client: spot}, nil
}

// Client is one account's authenticated spot handle.
type Client struct {
	opener *Opener
	client *binance.Client
}

func (c *Client) wait(ctx context.Context) error {
	return c.opener.rateLimiter.Wait(ctx)
}

func (c *Client) FetchBalance(ctx context.Context, currency string) (exchange.Balance, error) {
	if err := c.wait(ctx); err != nil {
		return exchange.Balance{}, err
	}
	account, err := c.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return exchange.Balance{}, fmt.Errorf("get account: %w", err)
	}
	for _, b := range account.Balances {
		if !strings.EqualFold(b.Asset, currency) {
			continue
		}
		free := parseDecimal(b.Free)
		locked := parseDecimal(b.Locked)
		return exchange.Balance{Free: free, Used: locked, Total: free.Add(locked)}, nil
	}
	return exchange.Balance{}, nil
}

func (c *Client) FetchOpenOrders(ctx context.Context, limit int) ([]exchange.Order, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	orders, err := c.client.NewListOpenOrdersService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open orders: %w", err)
	}
	out := make([]exchange.Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, convertOrder(o))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// FetchClosedOrders polls each configured symbol, since the order history
// endpoint is per symbol. A failing symbol is logged and skipped.
func (c *Client) FetchClosedOrders(ctx context.Context, since time.Time, limit int) ([]exchange.Order, error) {
	var out []exchange.Order
	var lastErr error
	ok := 0
	for _, symbol := range c.opener.cfg.Symbols {
		if err := c.wait(ctx); err != nil {
			return out, err
		}
		svc := c.client.NewListOrdersService().Symbol(symbol).StartTime(since.UnixMilli())
		if limit > 0 {
			svc = svc.Limit(limit)
		}
		orders, err := svc.Do(ctx)
		if err != nil {
			c.opener.logger.Warn("list orders failed", zap.String("symbol", symbol), zap.Error(err))
			lastErr = err
			continue
		}
		ok++
		for _, o := range orders {
			order := convertOrder(o)
			if order.Status == exchange.OrderStatusOpen {
				continue
			}
			out = append(out, order)
		}
	}
	if ok == 0 && lastErr != nil {
		return nil, fmt.Errorf("list closed orders: %w", lastErr)
	}
	return out, nil
}

func (c *Client) PlaceMarketOrder(ctx context.Context, symbol string, side exchange.Side, quantity decimal.Decimal) (exchange.OrderResult, error) {
	qty, err := c.truncateToLot(ctx, symbol, quantity)
	if err != nil {
		return exchange.OrderResult{}, err
	}
	if !qty.IsPositive() {
		return exchange.OrderResult{}, fmt.Errorf("quantity %s below lot size for %s", quantity, symbol)
	}

	sideType := binance.SideTypeBuy
	if side == exchange.SideSell {
		sideType = binance.SideTypeSell
	}

	if err := c.wait(ctx); err != nil {
		return exchange.OrderResult{}, err
	}
	res, err := c.client.NewCreateOrderService().
		Symbol(symbol).
		Side(sideType).
		Type(binance.OrderTypeMarket).
		Quantity(qty.String()).
		Do(ctx)
	if err != nil {
		return exchange.OrderResult{}, fmt.Errorf("create order: %w", err)
	}

	filled := parseDecimal(res.ExecutedQuantity)
	return exchange.OrderResult{
		ID:      strconv.FormatInt(res.OrderID, 10),
		Filled:  filled,
		Average: averagePrice(parseDecimal(res.CummulativeQuoteQuantity), filled),
		Status:  normalizeStatus(string(res.Status)),
	}, nil
}

// truncateToLot rounds quantity down to the symbol's LOT_SIZE step.
func (c *Client) truncateToLot(ctx context.Context, symbol string, quantity decimal.Decimal) (decimal.Decimal, error) {
	step, err := c.lotStep(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	if !step.IsPositive() {
		return quantity, nil
	}
	return quantity.Div(step).Floor().Mul(step), nil
}

func (c *Client) lotStep(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if cached, ok := c.opener.lotSizes.Get(symbol); ok {
		return cached.(decimal.Decimal), nil
	}
	if err := c.wait(ctx); err != nil {
		return decimal.Zero, err
	}
	info, err := c.client.NewExchangeInfoService().Symbol(symbol).Do(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("exchange info %s: %w", symbol, err)
	}
	step := decimal.Zero
	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}
		if lot := s.LotSizeFilter(); lot != nil {
			step = parseDecimal(lot.StepSize)
		}
	}
	c.opener.lotSizes.Set(symbol, step, cache.DefaultExpiration)
	return step, nil
}

func (c *Client) FetchDeposits(ctx context.Context, since time.Time) ([]exchange.Transfer, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	deposits, err := c.client.NewListDepositsService().StartTime(since.UnixMilli()).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("list deposits: %w", err)
	}
	out := make([]exchange.Transfer, 0, len(deposits))
	for _, d := range deposits {
		if d.TxID == "" {
			continue
		}
		out = append(out, exchange.Transfer{
			TxID:      d.TxID,
			Kind:      exchange.TransferDeposit,
			Currency:  d.Coin,
			Amount:    parseDecimal(d.Amount),
			Status:    strconv.Itoa(int(d.Status)),
			Timestamp: time.UnixMilli(d.InsertTime).UTC(),
		})
	}
	return out, nil
}

func (c *Client) FetchWithdrawals(ctx context.Context, since time.Time) ([]exchange.Transfer, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	withdrawals, err := c.client.NewListWithdrawsService().StartTime(since.UnixMilli()).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("list withdrawals: %w", err)
	}
	out := make([]exchange.Transfer, 0, len(withdrawals))
	for _, w := range withdrawals {
		if w.TxID == "" {
			continue
		}
		at, err := time.Parse(withdrawTimeLayout, w.ApplyTime)
		if err != nil {
			at = time.Now().UTC()
		}
		out = append(out, exchange.Transfer{
			TxID:      w.TxID,
			Kind:      exchange.TransferWithdrawal,
			Currency:  w.Coin,
			Amount:    parseDecimal(w.Amount),
			Status:    strconv.Itoa(int(w.Status)),
			Timestamp: at.UTC(),
		})
	}
	return out, nil
}

// Close is a no-op; REST handles hold no session and streams close themselves.
func (c *Client) Close() error {
	return nil
}

func convertOrder(o *binance.Order) exchange.Order {
	filled := parseDecimal(o.ExecutedQuantity)
	order := exchange.Order{
		ID:        strconv.FormatInt(o.OrderID, 10),
		Symbol:    o.Symbol,
		Side:      exchange.Side(strings.ToLower(string(o.Side))),
		Type:      strings.ToLower(string(o.Type)),
		Amount:    parseDecimal(o.OrigQuantity),
		Average:   averagePrice(parseDecimal(o.CummulativeQuoteQuantity), filled),
		Filled:    filled,
		Status:    normalizeStatus(string(o.Status)),
		Timestamp: time.UnixMilli(o.Time).UTC(),
	}
	if price := parseDecimal(o.Price); price.IsPositive() {
		order.Price = &price
	}
	order.Raw, _ = json.Marshal(o)
	return order
}

// normalizeStatus maps Binance order states onto open, closed and canceled.
func normalizeStatus(status string) exchange.OrderStatus {
	switch status {
	case string(binance.OrderStatusTypeFilled):
		return exchange.OrderStatusClosed
	case string(binance.OrderStatusTypeNew), string(binance.OrderStatusTypePartiallyFilled):
		return exchange.OrderStatusOpen
	default:
		return exchange.OrderStatusCanceled
	}
}

func averagePrice(quote, filled decimal.Decimal) decimal.Decimal {
	if !filled.IsPositive() {
		return decimal.Zero
	}
	return quote.Div(filled)
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
