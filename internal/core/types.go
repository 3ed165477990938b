package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

type OrderKind string

type TimeInForce string

type OrderStatus string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

const (
	Market        OrderKind = "MARKET"
	Limit         OrderKind = "LIMIT"
	StopMarket    OrderKind = "STOP_MARKET"
	StopLossLimit OrderKind = "STOP_LOSS_LIMIT"
)

const GTC TimeInForce = "GTC"

const (
	OrderNew             OrderStatus = "NEW"
	OrderPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderFilled          OrderStatus = "FILLED"
	OrderCanceled        OrderStatus = "CANCELED"
	OrderRejected        OrderStatus = "REJECTED"
	OrderExpired         OrderStatus = "EXPIRED"
)

// kindSpec lists which prices an order kind carries.
type kindSpec struct {
	needsLimit bool
	needsStop  bool
}

var kindSpecs = map[OrderKind]kindSpec{
	Market:        {},
	Limit:         {needsLimit: true},
	StopMarket:    {needsStop: true},
	StopLossLimit: {needsLimit: true, needsStop: true},
}

// Kinds returns the supported order kinds in menu order.
func Kinds() []OrderKind {
	return []OrderKind{Market, Limit, StopMarket, StopLossLimit}
}

func (k OrderKind) Valid() bool {
	_, ok := kindSpecs[k]
	return ok
}

func (k OrderKind) NeedsLimitPrice() bool { return kindSpecs[k].needsLimit }

func (k OrderKind) NeedsStopPrice() bool { return kindSpecs[k].needsStop }

// NeedsPrice reports whether the user has to supply a price at all.
func (k OrderKind) NeedsPrice() bool {
	spec := kindSpecs[k]
	return spec.needsLimit || spec.needsStop
}

// TimeInForce is GTC for kinds resting at a limit price, empty otherwise.
func (k OrderKind) TimeInForce() TimeInForce {
	if kindSpecs[k].needsLimit {
		return GTC
	}
	return ""
}

// OrderRequest is a validated order ready for a gateway. Zero Price or
// StopPrice means the field is absent for this kind.
type OrderRequest struct {
	Symbol      string
	Side        Side
	Kind        OrderKind
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	StopPrice   decimal.Decimal
	TimeInForce TimeInForce
	ClientID    string
}

func (r OrderRequest) HasPrice() bool { return r.Price.Sign() > 0 }

func (r OrderRequest) HasStopPrice() bool { return r.StopPrice.Sign() > 0 }

// Fields returns the request parameters in exchange naming. The "type"
// entry carries the order kind; gateways translate it to their venue.
func (r OrderRequest) Fields() map[string]string {
	fields := map[string]string{
		"symbol":   r.Symbol,
		"side":     string(r.Side),
		"type":     string(r.Kind),
		"quantity": r.Quantity.String(),
	}
	if r.HasPrice() {
		fields["price"] = r.Price.String()
	}
	if r.HasStopPrice() {
		fields["stopPrice"] = r.StopPrice.String()
	}
	if r.TimeInForce != "" {
		fields["timeInForce"] = string(r.TimeInForce)
	}
	return fields
}

// Order is the exchange's view of an order: a placement confirmation or
// an open order listing entry.
type Order struct {
	ID          string
	ClientID    string
	Symbol      string
	Side        Side
	Kind        OrderKind
	Price       decimal.Decimal
	StopPrice   decimal.Decimal
	Qty         decimal.Decimal
	ExecutedQty decimal.Decimal
	Status      OrderStatus
	TimeInForce TimeInForce
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type AssetBalance struct {
	Asset         string
	Balance       decimal.Decimal
	Available     decimal.Decimal
	UnrealizedPnL decimal.Decimal
}

type BalanceSnapshot struct {
	Assets    []AssetBalance
	FetchedAt time.Time
}

// Asset returns the balance line for asset, if present.
func (b BalanceSnapshot) Asset(asset string) (AssetBalance, bool) {
	for _, a := range b.Assets {
		if a.Asset == asset {
			return a, true
		}
	}
	return AssetBalance{}, false
}

type Rules struct {
	MinQty      decimal.Decimal
	MinNotional decimal.Decimal
	PriceTick   decimal.Decimal
	QtyStep     decimal.Decimal
}
