package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"
)

var (
	// ErrRateLimited segnala un rifiuto per rate limit (429 o limiter locale)
	ErrRateLimited = errors.New("rate limited")

	// ErrUnavailable segnala un backend temporaneamente non disponibile
	ErrUnavailable = errors.New("provider unavailable")
)

// ErrorCategory rappresenta una categoria di errore
type ErrorCategory int

const (
	ErrorCategoryUnknown ErrorCategory = iota
	ErrorCategoryNetwork
	ErrorCategoryTimeout
	ErrorCategoryCanceled
	ErrorCategoryRateLimit
	ErrorCategoryServerError
	ErrorCategoryClientError
)

// String restituisce la rappresentazione string della categoria
func (c ErrorCategory) String() string {
	switch c {
	case ErrorCategoryNetwork:
		return "network"
	case ErrorCategoryTimeout:
		return "timeout"
	case ErrorCategoryCanceled:
		return "canceled"
	case ErrorCategoryRateLimit:
		return "rate_limit"
	case ErrorCategoryServerError:
		return "server_error"
	case ErrorCategoryClientError:
		return "client_error"
	default:
		return "unknown"
	}
}

// StatusCoder è implementato dagli errori che portano uno status HTTP
type StatusCoder interface {
	StatusCode() int
}

// StatusError è un errore HTTP generico usato dai provider
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return "http status " + http.StatusText(e.Code)
	}
	return e.Message
}

// StatusCode implementa StatusCoder
func (e *StatusError) StatusCode() int {
	return e.Code
}

// CategorizeError categorizza un errore
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ErrorCategoryUnknown
	}

	if errors.Is(err, context.Canceled) {
		return ErrorCategoryCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorCategoryTimeout
	}
	if errors.Is(err, ErrRateLimited) {
		return ErrorCategoryRateLimit
	}
	if errors.Is(err, ErrUnavailable) {
		return ErrorCategoryServerError
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		return categorizeStatus(sc.StatusCode())
	}

	if isNetworkError(err) {
		return ErrorCategoryNetwork
	}

	return ErrorCategoryUnknown
}

// CategorizeStatus categorizza uno status HTTP
func categorizeStatus(code int) ErrorCategory {
	switch {
	case code == http.StatusTooManyRequests:
		return ErrorCategoryRateLimit
	case code == http.StatusRequestTimeout:
		return ErrorCategoryTimeout
	case code >= 500:
		return ErrorCategoryServerError
	case code >= 400:
		return ErrorCategoryClientError
	default:
		return ErrorCategoryUnknown
	}
}

// IsTransient verifica se un errore appartiene alla classe transitoria
// (rete, timeout, rate limit, 5xx) e quindi merita un retry
func IsTransient(err error) bool {
	switch CategorizeError(err) {
	case ErrorCategoryNetwork,
		ErrorCategoryTimeout,
		ErrorCategoryRateLimit,
		ErrorCategoryServerError:
		return true
	default:
		return false
	}
}

// isNetworkError verifica se è un errore di rete
func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var syscallErr syscall.Errno
	if errors.As(err, &syscallErr) {
		return true
	}

	networkErrors := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"network is unreachable",
		"i/o timeout",
	}

	errStr := strings.ToLower(err.Error())
	for _, netErr := range networkErrors {
		if strings.Contains(errStr, netErr) {
			return true
		}
	}

	return false
}
