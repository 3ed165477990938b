package exchange

import (
	"context"

	"futures-bot/internal/core"
)

// Gateway is the authenticated connection to an exchange. Implementations
// own signing and transport; callers only see core types and errors.
type Gateway interface {
	Name() string
	SubmitOrder(ctx context.Context, req core.OrderRequest) (core.Order, error)
	Balance(ctx context.Context) (core.BalanceSnapshot, error)
	OpenOrders(ctx context.Context, symbol string) ([]core.Order, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
}

// FuturesOrderType maps an order kind to the USD-M futures "type" value.
// The futures API names its stop-limit order STOP.
func FuturesOrderType(kind core.OrderKind) string {
	if kind == core.StopLossLimit {
		return "STOP"
	}
	return string(kind)
}

// KindFromFuturesType is the inverse of FuturesOrderType. Futures types
// with no matching kind (TAKE_PROFIT, TRAILING_STOP_MARKET, ...) are kept
// verbatim so listings still show them.
func KindFromFuturesType(t string) core.OrderKind {
	if t == "STOP" {
		return core.StopLossLimit
	}
	return core.OrderKind(t)
}
