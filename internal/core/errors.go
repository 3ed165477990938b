package core

import "errors"

// ErrValidation marks input rejected locally, before any exchange call.
var ErrValidation = errors.New("invalid order input")

var (
	ErrUnsupportedOrderKind = errors.New("unsupported order kind")
	ErrMissingPrice         = errors.New("price is required for this order kind")
	ErrInvalidQuantity      = errors.New("quantity must be > 0")
	ErrInvalidPrice         = errors.New("price must be > 0")
	ErrUnexpectedPrice      = errors.New("price is not accepted for market orders")
	ErrInvalidSide          = errors.New("side must be BUY or SELL")
	ErrInvalidSymbol        = errors.New("symbol must be an uppercase alphanumeric ticker")
	ErrMissingOrderID       = errors.New("order id is required")
	ErrInvalidOrderID       = errors.New("order id must be numeric")
)

var (
	// ErrInsufficientBalance indicates the exchange rejected the action due to insufficient margin.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrDuplicateOrder indicates the client order id has already been accepted before.
	ErrDuplicateOrder = errors.New("duplicate order")
	// ErrOrderNotFound indicates the order does not exist on exchange.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderRejected indicates the order was rejected by exchange.
	ErrOrderRejected = errors.New("order rejected")
	// ErrAuthentication indicates the api key or signature was refused.
	ErrAuthentication = errors.New("authentication failed")
	// ErrTimestamp indicates the request fell outside recvWindow.
	ErrTimestamp = errors.New("request timestamp outside recv window")
	// ErrUnknownSymbol indicates the exchange does not list the symbol.
	ErrUnknownSymbol = errors.New("unknown symbol")
)

// ValidationError reports which input field was rejected. It matches both
// ErrValidation and the specific reason with errors.Is.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrValidation, e.Err}
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// GatewayError wraps any failure raised by the exchange gateway.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *GatewayError) Unwrap() error { return e.Err }
