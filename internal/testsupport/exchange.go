package testsupport

import (
	"CopyTradeBot/internal/exchange"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// FakeExchange hands out clients backed by per-key FakeAccounts.
type FakeExchange struct {
	mu       sync.Mutex
	accounts map[string]*FakeAccount
	OpenErr  error
}

func NewFakeExchange() *FakeExchange {
	return &FakeExchange{accounts: make(map[string]*FakeAccount)}
}

// Account returns the account for an API key, creating it on first use.
func (f *FakeExchange) Account(apiKey string) *FakeAccount {
	f.mu.Lock()
	defer f.mu.Unlock()
	acct, ok := f.accounts[apiKey]
	if !ok {
		acct = &FakeAccount{}
		f.accounts[apiKey] = acct
	}
	return acct
}

func (f *FakeExchange) Open(_ context.Context, creds exchange.Credentials) (exchange.Client, error) {
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	acct := f.Account(creds.APIKey)
	acct.mu.Lock()
	acct.Opens++
	acct.mu.Unlock()
	return &fakeClient{acct: acct}, nil
}

type PlacedOrder struct {
	Symbol   string
	Side     exchange.Side
	Quantity decimal.Decimal
}

// FakeAccount scripts what one account's client returns.
type FakeAccount struct {
	mu sync.Mutex

	Balance    exchange.Balance
	BalanceErr error

	OpenOrders      []exchange.Order
	OpenOrdersErr   error
	ClosedOrders    []exchange.Order
	ClosedOrdersErr error

	// PlaceErrors are returned one per placement before any succeeds.
	PlaceErrors []error
	// FillPrice is reported as the average; zero omits fill details.
	FillPrice decimal.Decimal
	Placed    []PlacedOrder
	Attempts  int

	Deposits    []exchange.Transfer
	Withdrawals []exchange.Transfer

	StreamOpenErrors []error
	Streams          []*FakeStream
	StreamOpens      int

	Opens  int
	Closes int
}

func (a *FakeAccount) PlacedOrders() []PlacedOrder {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]PlacedOrder(nil), a.Placed...)
}

func (a *FakeAccount) StreamOpenCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.StreamOpens
}

func (a *FakeAccount) CloseCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Closes
}

// FakeStream replays Batches, then returns Err. A nil Err blocks until the
// stream is closed or the context ends.
type FakeStream struct {
	Batches [][]exchange.Order
	Err     error

	mu     sync.Mutex
	next   int
	closed chan struct{}
	once   sync.Once
}

func NewFakeStream(err error, batches ...[]exchange.Order) *FakeStream {
	return &FakeStream{Batches: batches, Err: err, closed: make(chan struct{})}
}

func (s *FakeStream) Next(ctx context.Context) ([]exchange.Order, error) {
	s.mu.Lock()
	if s.next < len(s.Batches) {
		batch := s.Batches[s.next]
		s.next++
		s.mu.Unlock()
		return batch, nil
	}
	s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.closed:
		return nil, io.EOF
	}
}

func (s *FakeStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return errors.New("fake close error")
}

func (s *FakeStream) IsClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

type fakeClient struct {
	acct *FakeAccount
}

func (c *fakeClient) FetchBalance(context.Context, string) (exchange.Balance, error) {
	c.acct.mu.Lock()
	defer c.acct.mu.Unlock()
	return c.acct.Balance, c.acct.BalanceErr
}

func (c *fakeClient) FetchOpenOrders(context.Context, int) ([]exchange.Order, error) {
	c.acct.mu.Lock()
	defer c.acct.mu.Unlock()
	return c.acct.OpenOrders, c.acct.OpenOrdersErr
}

func (c *fakeClient) FetchClosedOrders(context.Context, time.Time, int) ([]exchange.Order, error) {
	c.acct.mu.Lock()
	defer c.acct.mu.Unlock()
	return c.acct.ClosedOrders, c.acct.ClosedOrdersErr
}

func (c *fakeClient) PlaceMarketOrder(_ context.Context, symbol string, side exchange.Side, qty decimal.Decimal) (exchange.OrderResult, error) {
	c.acct.mu.Lock()
	defer c.acct.mu.Unlock()
	c.acct.Attempts++
	if len(c.acct.PlaceErrors) > 0 {
		err := c.acct.PlaceErrors[0]
		c.acct.PlaceErrors = c.acct.PlaceErrors[1:]
		return exchange.OrderResult{}, err
	}
	c.acct.Placed = append(c.acct.Placed, PlacedOrder{Symbol: symbol, Side: side, Quantity: qty})
	res := exchange.OrderResult{
		ID:     fmt.Sprintf("fake-%d", len(c.acct.Placed)),
		Status: exchange.OrderStatusClosed,
	}
	if c.acct.FillPrice.IsPositive() {
		res.Filled = qty
		res.Average = c.acct.FillPrice
	}
	return res, nil
}

func (c *fakeClient) StreamOrders(context.Context) (exchange.OrderStream, error) {
	c.acct.mu.Lock()
	defer c.acct.mu.Unlock()
	c.acct.StreamOpens++
	if len(c.acct.StreamOpenErrors) > 0 {
		err := c.acct.StreamOpenErrors[0]
		c.acct.StreamOpenErrors = c.acct.StreamOpenErrors[1:]
		return nil, err
	}
	if len(c.acct.Streams) == 0 {
		return NewFakeStream(nil), nil
	}
	s := c.acct.Streams[0]
	c.acct.Streams = c.acct.Streams[1:]
	return s, nil
}

func (c *fakeClient) FetchDeposits(context.Context, time.Time) ([]exchange.Transfer, error) {
	c.acct.mu.Lock()
	defer c.acct.mu.Unlock()
	return c.acct.Deposits, nil
}

func (c *fakeClient) FetchWithdrawals(context.Context, time.Time) ([]exchange.Transfer, error) {
	c.acct.mu.Lock()
	defer c.acct.mu.Unlock()
	return c.acct.Withdrawals, nil
}

func (c *fakeClient) Close() error {
	c.acct.mu.Lock()
	defer c.acct.mu.Unlock()
	c.acct.Closes++
	return nil
}
