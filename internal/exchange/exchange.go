// Package exchange defines the narrow contract the copy engine uses to talk to
// a crypto exchange. Concrete adapters live under internal/operations.
package exchange

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderStatus is the normalized order lifecycle state.
type OrderStatus string

const (
	OrderStatusOpen     OrderStatus = "open"
	OrderStatusClosed   OrderStatus = "closed"
	OrderStatusCanceled OrderStatus = "canceled"
)

var ErrNoCredentials = errors.New("exchange: no credentials")

// Order is the subset of an exchange order the engine consumes. Raw keeps the
// original payload as an opaque audit blob.
type Order struct {
	ID        string
	Symbol    string
	Side      Side
	Type      string
	Amount    decimal.Decimal
	Price     *decimal.Decimal
	Average   decimal.Decimal
	Filled    decimal.Decimal
	Status    OrderStatus
	Timestamp time.Time
	Raw       []byte
}

type Balance struct {
	Free  decimal.Decimal
	Used  decimal.Decimal
	Total decimal.Decimal
}

// OrderResult is what a market order placement reports back. Filled and
// Average may be zero when the exchange omits them.
type OrderResult struct {
	ID      string
	Filled  decimal.Decimal
	Average decimal.Decimal
	Status  OrderStatus
}

type TransferKind string

const (
	TransferDeposit    TransferKind = "deposit"
	TransferWithdrawal TransferKind = "withdrawal"
)

type Transfer struct {
	TxID      string
	Kind      TransferKind
	Currency  string
	Amount    decimal.Decimal
	Status    string
	Timestamp time.Time
}

type Credentials struct {
	APIKey    string
	APISecret string
}

// OrderStream yields batches of order updates until it fails or is closed.
type OrderStream interface {
	Next(ctx context.Context) ([]Order, error)
	Close() error
}

// Client is an authenticated handle for a single account.
type Client interface {
	FetchBalance(ctx context.Context, currency string) (Balance, error)
	FetchOpenOrders(ctx context.Context, limit int) ([]Order, error)
	FetchClosedOrders(ctx context.Context, since time.Time, limit int) ([]Order, error)
	PlaceMarketOrder(ctx context.Context, symbol string, side Side, quantity decimal.Decimal) (OrderResult, error)
	StreamOrders(ctx context.Context) (OrderStream, error)
	FetchDeposits(ctx context.Context, since time.Time) ([]Transfer, error)
	FetchWithdrawals(ctx context.Context, since time.Time) ([]Transfer, error)
	Close() error
}

// Opener creates a Client for one credential pair.
type Opener interface {
	Open(ctx context.Context, creds Credentials) (Client, error)
}

// WithClient opens a client, runs fn, and always releases the client. Close
// errors are dropped.
func WithClient(ctx context.Context, opener Opener, creds Credentials, fn func(Client) error) error {
	if creds.APIKey == "" || creds.APISecret == "" {
		return ErrNoCredentials
	}
	client, err := opener.Open(ctx, creds)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	return fn(client)
}
