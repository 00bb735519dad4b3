package exchange

import (
	"context"
	"errors"
	"regexp"

	"github.com/adshao/go-binance/v2/common"
)

// Binance error codes, see the REST API "Error codes" page.
var (
	authCodes = map[int64]bool{
		-1002: true, // unauthorized
		-1022: true, // invalid signature
		-2014: true, // api-key format invalid
		-2015: true, // invalid api-key, ip, or permissions
	}
	retryableCodes = map[int64]bool{
		-1001: true, // disconnected
		-1003: true, // too many requests
		-1007: true, // backend timeout
		-1008: true, // server busy
		-1015: true, // too many new orders
	}
)

// Numbers only count next to a status or code label, so quantities,
// balances and order ids in business errors never match.
var (
	retryableText = regexp.MustCompile(`(?i)\b(?:http|status(?: code)?)[ :=]*429\b|too many requests|rate limit|code=-(?:1001|1003|1007|1008|1015)\b|timeout|timed out|deadline exceeded|connection reset|econnreset|connection refused|broken pipe|temporarily unavailable|unexpected eof`)
	authText      = regexp.MustCompile(`(?i)\b(?:http|status(?: code)?)[ :=]*40[13]\b|\bunauthorized\b|\bforbidden\b|invalid api-key|\bapi-key\b|signature for this request|code=-(?:1002|1022|2014|2015)\b`)
)

// apiCode returns the code of a structured exchange rejection, if err
// carries one.
func apiCode(err error) (int64, bool) {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) && apiErr.Code != 0 {
		return apiErr.Code, true
	}
	return 0, false
}

// IsRetryable reports whether err is rate limiting or a transient network
// condition. Caller cancellation is never retryable.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if code, ok := apiCode(err); ok {
		return retryableCodes[code]
	}
	return retryableText.MatchString(err.Error())
}

// IsAuthError reports whether err indicates broken or under-privileged
// credentials.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNoCredentials) {
		return true
	}
	if code, ok := apiCode(err); ok {
		return authCodes[code]
	}
	return authText.MatchString(err.Error())
}
