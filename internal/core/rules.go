package core

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrBelowMinQty      = errors.New("qty below min")
	ErrBelowMinNotional = errors.New("notional below min")
)

// FitToRules rounds a request down to the symbol's price tick and qty step
// and checks the minimums. Market requests without a reference price skip
// the notional check.
func FitToRules(req OrderRequest, rules Rules, refPrice decimal.Decimal) (OrderRequest, error) {
	req.Quantity = RoundDown(req.Quantity, rules.QtyStep)
	if req.Quantity.Sign() <= 0 {
		return req, invalid("quantity", ErrInvalidQuantity)
	}
	if rules.MinQty.Sign() > 0 && req.Quantity.Cmp(rules.MinQty) < 0 {
		return req, ErrBelowMinQty
	}
	if req.HasPrice() {
		req.Price = RoundDown(req.Price, rules.PriceTick)
		if req.Price.Sign() <= 0 {
			return req, invalid("price", ErrInvalidPrice)
		}
		refPrice = req.Price
	}
	if req.HasStopPrice() {
		req.StopPrice = RoundDown(req.StopPrice, rules.PriceTick)
		if req.StopPrice.Sign() <= 0 {
			return req, invalid("price", ErrInvalidPrice)
		}
		if !req.HasPrice() {
			refPrice = req.StopPrice
		}
	}
	if rules.MinNotional.Sign() > 0 && refPrice.Sign() > 0 {
		if refPrice.Mul(req.Quantity).Cmp(rules.MinNotional) < 0 {
			return req, ErrBelowMinNotional
		}
	}
	return req, nil
}

// MinProbeQty is the smallest quantity at price that satisfies rules.
func MinProbeQty(rules Rules, price decimal.Decimal) decimal.Decimal {
	qty := rules.MinQty
	if rules.MinNotional.Sign() > 0 && price.Sign() > 0 {
		if byNotional := rules.MinNotional.Div(price); byNotional.Cmp(qty) > 0 {
			qty = byNotional
		}
	}
	qty = RoundUp(qty, rules.QtyStep)
	if qty.Sign() <= 0 {
		qty = rules.QtyStep
	}
	return qty
}

func RoundDown(value, step decimal.Decimal) decimal.Decimal {
	if step.Cmp(decimal.Zero) <= 0 {
		return value
	}
	return value.Div(step).Floor().Mul(step)
}

func RoundUp(value, step decimal.Decimal) decimal.Decimal {
	if step.Cmp(decimal.Zero) <= 0 {
		return value
	}
	return value.Div(step).Ceil().Mul(step)
}
