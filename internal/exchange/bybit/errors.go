package bybit

import (
	"errors"
	"fmt"
)

// APIError is a non-zero retCode returned by the Bybit API.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bybit API error %d: %s", e.Code, e.Message)
}

// Error codes the executor reacts to.
const (
	errCodeInvalidAPIKey       = 10003
	errCodeInvalidSignature    = 10004
	errCodeInvalidTimestamp    = 10005
	errCodeRateLimitExceeded   = 10006
	errCodeInsufficientBalance = 110007
)

// IsAuthError reports whether the error means the credentials are bad.
// Auth errors are never retried; the bot should stop and alert instead.
func IsAuthError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case errCodeInvalidAPIKey, errCodeInvalidSignature, errCodeInvalidTimestamp:
			return true
		}
	}
	return false
}

// IsInsufficientBalance reports whether the venue rejected the order for
// lack of funds.
func IsInsufficientBalance(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == errCodeInsufficientBalance
}

func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case errCodeRateLimitExceeded, 500, 502, 503, 504:
			return true
		}
		return false
	}
	// Transport-level failures (timeouts, resets) are worth another attempt.
	return err != nil
}

func apiError(retCode int, retMsg string) error {
	if retCode == 0 {
		return nil
	}
	return &APIError{Code: retCode, Message: retMsg}
}
