package unifiedllm

import (
	"net"
	"net/http"
	"strconv"
	"time"
)

// newHTTPClient creates an HTTP client with connection-level timeouts. The
// overall deadline of a request is carried by its context.
func newHTTPClient(requestTimeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout: 10 * time.Second, // connect timeout
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: requestTimeout,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
	}
	return &http.Client{Transport: transport}
}

// parseRetryAfter parses a Retry-After header value.
// Supports both seconds (integer) and HTTP-date formats.
func parseRetryAfter(value string) *float64 {
	if value == "" {
		return nil
	}

	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		return &seconds
	}

	if t, err := http.ParseTime(value); err == nil {
		seconds := time.Until(t).Seconds()
		if seconds < 0 {
			seconds = 0
		}
		return &seconds
	}

	return nil
}
