package httputil

import (
	"net/http"
	"time"
)

const DefaultTimeout = 30 * time.Second

const userAgent = "energybill/1.0"

// NewClient returns an HTTP client with standard timeout configuration.
func NewClient() *http.Client {
	return &http.Client{
		Timeout: DefaultTimeout,
	}
}

// Retryable reports whether a response status is worth retrying.
func Retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// SetUserAgent tags outgoing requests so dataset hosts can identify us.
func SetUserAgent(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
}
