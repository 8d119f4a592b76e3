package apperrors

import "errors"

// Engine lifecycle errors
var (
	ErrInvalidTradingPairs  = errors.New("no valid trading pairs")
	ErrRiskLimitViolation   = errors.New("risk limit violation")
	ErrInvalidStrategy      = errors.New("invalid strategy parameters")
	ErrOrderPlacement       = errors.New("order placement failed")
	ErrInventoryRebalancing = errors.New("inventory rebalancing failed")
	ErrEngineAlreadyRunning = errors.New("engine already running")
	ErrEngineNotRunning     = errors.New("engine not running")
)

// Standardized exchange errors
var (
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrOrderRejected         = errors.New("order rejected")
	ErrRateLimitExceeded     = errors.New("rate limit exceeded")
	ErrNetwork               = errors.New("network error")
	ErrInvalidSymbol         = errors.New("invalid symbol")
	ErrOrderNotFound         = errors.New("order not found")
	ErrInvalidOrderParameter = errors.New("invalid order parameter")
)

// IsTransient reports whether an error is worth retrying
func IsTransient(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrRateLimitExceeded)
}
