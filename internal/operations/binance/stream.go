package binance

import (
	"CopyTradeBot/internal/exchange"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

const keepaliveInterval = 30 * time.Minute

var errStreamClosed = errors.New("binance: user stream closed")

// StreamOrders opens a user-data stream and yields execution reports as
// single-order batches.
func (c *Client) StreamOrders(ctx context.Context) (exchange.OrderStream, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	listenKey, err := c.client.NewStartUserStreamService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("start user stream: %w", err)
	}

	s := &orderStream{
		client:    c,
		listenKey: listenKey,
		batches:   make(chan []exchange.Order, 64),
		errs:      make(chan error, 1),
		quit:      make(chan struct{}),
	}

	doneC, stopC, err := binance.WsUserDataServe(listenKey, s.handle, s.handleErr)
	if err != nil {
		_ = c.client.NewCloseUserStreamService().ListenKey(listenKey).Do(context.Background())
		return nil, fmt.Errorf("serve user stream: %w", err)
	}
	s.doneC = doneC
	s.stopC = stopC

	go s.keepalive()
	return s, nil
}

type orderStream struct {
	client    *Client
	listenKey string

	batches chan []exchange.Order
	errs    chan error
	doneC   chan struct{}
	stopC   chan struct{}
	quit    chan struct{}

	closeOnce sync.Once
}

func (s *orderStream) handle(event *binance.WsUserDataEvent) {
	if event.Event != binance.UserDataEventTypeExecutionReport {
		return
	}
	order := convertOrderUpdate(event.OrderUpdate)
	select {
	case s.batches <- []exchange.Order{order}:
	case <-s.quit:
	}
}

func (s *orderStream) handleErr(err error) {
	select {
	case s.errs <- err:
	default:
	}
}

func (s *orderStream) keepalive() {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.quit:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := s.client.client.NewKeepaliveUserStreamService().ListenKey(s.listenKey).Do(ctx)
			cancel()
			if err != nil {
				s.client.opener.logger.Warn("user stream keepalive failed", zap.Error(err))
				s.handleErr(fmt.Errorf("keepalive: %w", err))
			}
		}
	}
}

func (s *orderStream) Next(ctx context.Context) ([]exchange.Order, error) {
	select {
	case batch := <-s.batches:
		return batch, nil
	case err := <-s.errs:
		return nil, err
	case <-s.doneC:
		return nil, errStreamClosed
	case <-s.quit:
		return nil, errStreamClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *orderStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.quit)
		close(s.stopC)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = s.client.client.NewCloseUserStreamService().ListenKey(s.listenKey).Do(ctx)
	})
	return err
}

func convertOrderUpdate(u binance.WsOrderUpdate) exchange.Order {
	filled := parseDecimal(u.FilledVolume)
	order := exchange.Order{
		ID:        strconv.FormatInt(u.Id, 10),
		Symbol:    u.Symbol,
		Side:      exchange.Side(strings.ToLower(string(u.Side))),
		Type:      strings.ToLower(string(u.Type)),
		Amount:    parseDecimal(u.Volume),
		Average:   averagePrice(parseDecimal(u.FilledQuoteVolume), filled),
		Filled:    filled,
		Status:    normalizeStatus(string(u.Status)),
		Timestamp: time.UnixMilli(u.TransactionTime).UTC(),
	}
	if price := parseDecimal(u.Price); price.IsPositive() {
		order.Price = &price
	}
	order.Raw, _ = json.Marshal(u)
	return order
}
