package binance

import (
	"CopyTradeBot/internal/exchange"
	"testing"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStatus(t *testing.T) {
	require.Equal(t, exchange.OrderStatusClosed, normalizeStatus("FILLED"))
	require.Equal(t, exchange.OrderStatusOpen, normalizeStatus("NEW"))
	require.Equal(t, exchange.OrderStatusOpen, normalizeStatus("PARTIALLY_FILLED"))
	require.Equal(t, exchange.OrderStatusCanceled, normalizeStatus("CANCELED"))
	require.Equal(t, exchange.OrderStatusCanceled, normalizeStatus("EXPIRED"))
}

func TestConvertOrderDerivesAverage(t *testing.T) {
	o := &binance.Order{
		Symbol:                   "BTCUSDT",
		OrderID:                  42,
		Price:                    "0.00000000",
		OrigQuantity:             "0.02000000",
		ExecutedQuantity:         "0.02000000",
		CummulativeQuoteQuantity: "1000.00000000",
		Status:                   binance.OrderStatusTypeFilled,
		Type:                     binance.OrderTypeMarket,
		Side:                     binance.SideTypeBuy,
		Time:                     1700000000000,
	}

	got := convertOrder(o)
	require.Equal(t, "42", got.ID)
	require.Equal(t, exchange.SideBuy, got.Side)
	require.Equal(t, "market", got.Type)
	require.Nil(t, got.Price)
	require.True(t, got.Average.Equal(decimal.NewFromInt(50000)), "average %s", got.Average)
	require.Equal(t, exchange.OrderStatusClosed, got.Status)
	require.True(t, got.Filled.Equal(decimal.RequireFromString("0.02")), "filled %s", got.Filled)
	require.NotEmpty(t, got.Raw)
}

func TestAveragePriceWithoutFill(t *testing.T) {
	require.True(t, averagePrice(decimal.NewFromInt(10), decimal.Zero).IsZero())
}
