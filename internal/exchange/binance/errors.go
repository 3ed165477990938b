package binance

import (
	"errors"
	"strings"

	"futures-bot/internal/core"
)

const (
	apiCodeTimestamp           = -1021
	apiCodeBadSignature        = -1022
	apiCodeBadSymbol           = -1121
	apiCodeNewOrderRejected    = -2010
	apiCodeCancelRejected      = -2011
	apiCodeOrderNotFound       = -2013
	apiCodeBadAPIKeyFormat     = -2014
	apiCodeRejectedMBXKey      = -2015
	apiCodeBalanceInsufficient = -2018
	apiCodeMarginInsufficient  = -2019
	apiCodeImmediateTrigger    = -2021
	apiCodeReduceOnlyRejected  = -2022
	apiCodeDuplicateClientID   = -4116
)

var apiErrorMessageKinds = map[string]error{
	"duplicate order sent.":                                  core.ErrDuplicateOrder,
	"clientorderid is duplicated.":                           core.ErrDuplicateOrder,
	"account has insufficient balance for requested action.": core.ErrInsufficientBalance,
	"balance is insufficient.":                               core.ErrInsufficientBalance,
	"margin is insufficient.":                                core.ErrInsufficientBalance,
	"unknown order sent.":                                    core.ErrOrderNotFound,
	"order does not exist.":                                  core.ErrOrderNotFound,
	"invalid symbol.":                                        core.ErrUnknownSymbol,
}

// WrapAPIError builds an APIError and joins the core error kinds it maps to.
func WrapAPIError(code int, msg string) error {
	return classifyAPIError(APIError{Code: code, Msg: msg})
}

func classifyAPIError(apiErr APIError) error {
	kinds := classifyAPIErrorKinds(apiErr)
	if len(kinds) == 0 {
		return apiErr
	}
	errChain := make([]error, 0, 1+len(kinds))
	errChain = append(errChain, apiErr)
	errChain = append(errChain, kinds...)
	return errors.Join(errChain...)
}

func classifyAPIErrorKinds(apiErr APIError) []error {
	kinds := make([]error, 0, 2)
	normalizedMsg := normalizeAPIErrorMsg(apiErr.Msg)

	switch code := apiErr.Code; {
	case code == apiCodeOrderNotFound, code == apiCodeCancelRejected:
		kinds = appendErrorKind(kinds, core.ErrOrderNotFound)
	case code == apiCodeBalanceInsufficient, code == apiCodeMarginInsufficient:
		kinds = appendErrorKind(kinds, core.ErrInsufficientBalance)
	case code == apiCodeBadAPIKeyFormat, code == apiCodeRejectedMBXKey, code == apiCodeBadSignature:
		kinds = appendErrorKind(kinds, core.ErrAuthentication)
	case code == apiCodeTimestamp:
		kinds = appendErrorKind(kinds, core.ErrTimestamp)
	case code == apiCodeBadSymbol:
		kinds = appendErrorKind(kinds, core.ErrUnknownSymbol)
	case code == apiCodeNewOrderRejected:
		if kind, ok := apiErrorMessageKinds[normalizedMsg]; ok {
			kinds = appendErrorKind(kinds, kind)
		} else {
			kinds = appendErrorKind(kinds, core.ErrOrderRejected)
		}
	case code == apiCodeDuplicateClientID:
		kinds = appendErrorKind(kinds, core.ErrDuplicateOrder)
	case code == apiCodeImmediateTrigger, code == apiCodeReduceOnlyRejected:
		kinds = appendErrorKind(kinds, core.ErrOrderRejected)
	case code <= -4000 && code > -5000:
		// -4xxx are order parameter / filter failures
		kinds = appendErrorKind(kinds, core.ErrOrderRejected)
	}

	if kind, ok := apiErrorMessageKinds[normalizedMsg]; ok {
		kinds = appendErrorKind(kinds, kind)
	}

	return kinds
}

func appendErrorKind(kinds []error, kind error) []error {
	if kind == nil {
		return kinds
	}
	for _, existing := range kinds {
		if existing == kind {
			return kinds
		}
	}
	return append(kinds, kind)
}

func normalizeAPIErrorMsg(msg string) string {
	return strings.ToLower(strings.TrimSpace(msg))
}

func AsAPIError(err error) (APIError, bool) {
	if err == nil {
		return APIError{}, false
	}
	var apiErr APIError
	if !errors.As(err, &apiErr) {
		return APIError{}, false
	}
	return apiErr, true
}
