package core

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

const symbolRule = "required,alphanum,min=2,max=20"

// OrderInput is raw user input for one order. LimitPrice only applies to
// STOP_LOSS_LIMIT; when it is not set the stop price doubles as the limit.
type OrderInput struct {
	Symbol     string
	Side       string
	Kind       string
	Quantity   decimal.Decimal
	Price      decimal.NullDecimal
	LimitPrice decimal.NullDecimal
}

// BuildOrder maps (symbol, side, kind, quantity, price) to a request.
func BuildOrder(symbol, side, kind string, quantity decimal.Decimal, price decimal.NullDecimal) (OrderRequest, error) {
	return Build(OrderInput{
		Symbol:   symbol,
		Side:     side,
		Kind:     kind,
		Quantity: quantity,
		Price:    price,
	})
}

func Build(in OrderInput) (OrderRequest, error) {
	kind := OrderKind(strings.ToUpper(strings.TrimSpace(in.Kind)))
	if !kind.Valid() {
		return OrderRequest{}, invalid("kind", ErrUnsupportedOrderKind)
	}
	if in.Quantity.Sign() <= 0 {
		return OrderRequest{}, invalid("quantity", ErrInvalidQuantity)
	}
	switch {
	case !kind.NeedsPrice() && in.Price.Valid:
		return OrderRequest{}, invalid("price", ErrUnexpectedPrice)
	case kind.NeedsPrice() && !in.Price.Valid:
		return OrderRequest{}, invalid("price", ErrMissingPrice)
	case in.Price.Valid && in.Price.Decimal.Sign() <= 0:
		return OrderRequest{}, invalid("price", ErrInvalidPrice)
	}
	if in.LimitPrice.Valid {
		if kind != StopLossLimit {
			return OrderRequest{}, invalid("limit_price", ErrUnexpectedPrice)
		}
		if in.LimitPrice.Decimal.Sign() <= 0 {
			return OrderRequest{}, invalid("limit_price", ErrInvalidPrice)
		}
	}
	side, err := ParseSide(in.Side)
	if err != nil {
		return OrderRequest{}, err
	}
	symbol := NormalizeSymbol(in.Symbol)
	if err := validate.Var(symbol, symbolRule); err != nil {
		return OrderRequest{}, invalid("symbol", ErrInvalidSymbol)
	}

	req := OrderRequest{
		Symbol:      symbol,
		Side:        side,
		Kind:        kind,
		Quantity:    in.Quantity,
		TimeInForce: kind.TimeInForce(),
	}
	if kind.NeedsStopPrice() {
		req.StopPrice = in.Price.Decimal
	}
	if kind.NeedsLimitPrice() {
		req.Price = in.Price.Decimal
		if in.LimitPrice.Valid {
			req.Price = in.LimitPrice.Decimal
		}
	}
	return req, nil
}

func ParseSide(raw string) (Side, error) {
	switch side := Side(strings.ToUpper(strings.TrimSpace(raw))); side {
	case Buy, Sell:
		return side, nil
	default:
		return "", invalid("side", ErrInvalidSide)
	}
}

func NormalizeSymbol(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
