package shopee

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrHostsExhausted indicates every configured host failed with a transient error
	ErrHostsExhausted = errors.New("shopee: all hosts exhausted")
	// ErrParamRejected indicates the call was rejected as malformed with every parameter encoding
	ErrParamRejected = errors.New("shopee: request parameters rejected")
	// ErrUpstreamRejected indicates a definitive business error that no retry can fix
	ErrUpstreamRejected = errors.New("shopee: request rejected")
	// ErrRefreshFailed indicates the refresh endpoint did not issue a token pair
	ErrRefreshFailed = errors.New("shopee: token refresh failed")
	// ErrMissingRefreshToken indicates the integration has no refresh token to recover with
	ErrMissingRefreshToken = errors.New("shopee: refresh token not available")
)

// APIError carries the upstream failure details of one attempt
type APIError struct {
	Endpoint   string
	Host       string
	StatusCode int
	Code       string
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: status %d", e.Endpoint, e.StatusCode)
	if e.Code != "" {
		fmt.Fprintf(&b, ", error %s", e.Code)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.RequestID != "" {
		fmt.Fprintf(&b, " (request_id %s)", e.RequestID)
	}
	return b.String()
}

// Class is the retry-relevant category of an upstream response
type Class int

const (
	ClassSuccess Class = iota
	// ClassAuthInvalid triggers one token refresh and a retry on the same host
	ClassAuthInvalid
	// ClassParamInvalid triggers one retry with the alternate list encoding
	ClassParamInvalid
	// ClassTransient moves the call to the next host
	ClassTransient
	// ClassRejected abandons the call
	ClassRejected
)

func (c Class) String() string {
	switch c {
	case ClassSuccess:
		return "success"
	case ClassAuthInvalid:
		return "auth_invalid"
	case ClassParamInvalid:
		return "param_invalid"
	case ClassTransient:
		return "transient"
	default:
		return "rejected"
	}
}

// Error codes that mean the access token was not accepted.
// The misspelled variant is returned by some regional gateways.
var authErrorCodes = map[string]struct{}{
	"invalid_access_token":  {},
	"invalid_acceess_token": {},
	"error_auth":            {},
	"error_token":           {},
	"error_invalid_token":   {},
}

var paramErrorCodes = map[string]struct{}{
	"error_param":        {},
	"error_param_format": {},
	"invalid_param":      {},
	"error_param_type":   {},
}

// Classify maps one attempt's outcome to a Class.
// transportErr is set when no HTTP response was received.
func Classify(statusCode int, code string, transportErr error) Class {
	if transportErr != nil {
		return ClassTransient
	}
	code = strings.ToLower(strings.TrimSpace(code))

	if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
		return ClassAuthInvalid
	}
	if _, ok := authErrorCodes[code]; ok {
		return ClassAuthInvalid
	}
	if _, ok := paramErrorCodes[code]; ok {
		return ClassParamInvalid
	}
	if statusCode < 200 || statusCode > 299 {
		return ClassTransient
	}
	if code != "" {
		return ClassRejected
	}
	return ClassSuccess
}
