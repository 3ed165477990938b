package binance

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"futures-bot/internal/core"
	"futures-bot/internal/exchange"
)

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

type APIError struct {
	Code int
	Msg  string
}

func (e APIError) Error() string {
	return "binance api error " + strconv.Itoa(e.Code) + ": " + e.Msg
}

// orderResponse covers POST/GET/DELETE /fapi/v1/order, the openOrders
// listing and the WebSocket order.place result.
type orderResponse struct {
	Symbol        string `json:"symbol"`
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Price         string `json:"price"`
	StopPrice     string `json:"stopPrice"`
	OrigQty       string `json:"origQty"`
	ExecutedQty   string `json:"executedQty"`
	Status        string `json:"status"`
	TimeInForce   string `json:"timeInForce"`
	Type          string `json:"type"`
	Side          string `json:"side"`
	Time          int64  `json:"time"`
	UpdateTime    int64  `json:"updateTime"`
}

func (r orderResponse) toOrder() core.Order {
	order := core.Order{
		ID:          strconv.FormatInt(r.OrderID, 10),
		ClientID:    r.ClientOrderID,
		Symbol:      r.Symbol,
		Side:        core.Side(r.Side),
		Kind:        exchange.KindFromFuturesType(r.Type),
		Price:       parseDecimal(r.Price),
		StopPrice:   parseDecimal(r.StopPrice),
		Qty:         parseDecimal(r.OrigQty),
		ExecutedQty: parseDecimal(r.ExecutedQty),
		Status:      core.OrderStatus(r.Status),
		TimeInForce: core.TimeInForce(r.TimeInForce),
	}
	if r.Time > 0 {
		order.CreatedAt = time.UnixMilli(r.Time)
	}
	if r.UpdateTime > 0 {
		order.UpdatedAt = time.UnixMilli(r.UpdateTime)
	}
	return order
}

type balanceResponse struct {
	AccountAlias     string `json:"accountAlias"`
	Asset            string `json:"asset"`
	Balance          string `json:"balance"`
	CrossUnPnl       string `json:"crossUnPnl"`
	AvailableBalance string `json:"availableBalance"`
	UpdateTime       int64  `json:"updateTime"`
}

type tickerPriceResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

type serverTimeResponse struct {
	ServerTime int64 `json:"serverTime"`
}

type exchangeInfoResponse struct {
	Symbols []symbolInfoResponse `json:"symbols"`
}

type symbolInfoResponse struct {
	Symbol  string `json:"symbol"`
	Status  string `json:"status"`
	Filters []struct {
		FilterType string `json:"filterType"`
		MinQty     string `json:"minQty"`
		StepSize   string `json:"stepSize"`
		Notional   string `json:"notional"`
		TickSize   string `json:"tickSize"`
	} `json:"filters"`
}

type symbolInfo struct {
	rules core.Rules
}

func parseSymbolInfo(src symbolInfoResponse) symbolInfo {
	info := symbolInfo{
		rules: core.Rules{MinQty: decimal.Zero, MinNotional: decimal.Zero, PriceTick: decimal.Zero, QtyStep: decimal.Zero},
	}
	for _, f := range src.Filters {
		switch f.FilterType {
		case "LOT_SIZE":
			if v, err := decimal.NewFromString(f.MinQty); err == nil {
				info.rules.MinQty = v
			}
			if v, err := decimal.NewFromString(f.StepSize); err == nil {
				info.rules.QtyStep = v
			}
		case "PRICE_FILTER":
			if v, err := decimal.NewFromString(f.TickSize); err == nil {
				info.rules.PriceTick = v
			}
		case "MIN_NOTIONAL":
			if v, err := decimal.NewFromString(f.Notional); err == nil {
				info.rules.MinNotional = v
			}
		}
	}
	return info
}

func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return v
}
