// ABOUTME: HTTP fetcher performing a single conditional GET with a deadline.
// ABOUTME: Classifies failures into Timeout, NotFound, and TransportError.

package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxResponseSize = 10 * 1024 * 1024 // 10MB

// Conditions holds the validators replayed from the most recent
// successful fetch of a feed.
type Conditions struct {
	ETag         string
	LastModified string
}

// Result is the response from a fetch that reached the HTTP layer.
// Status 200 carries a body, 304 carries none, and any other status
// carries a best-effort body for diagnostics.
type Result struct {
	Status int
	Header http.Header
	Body   string
}

// NotModified reports whether the server answered 304 to our validators.
func (r *Result) NotModified() bool {
	return r.Status == http.StatusNotModified
}

// OK reports whether the server answered 200 with a body.
func (r *Result) OK() bool {
	return r.Status == http.StatusOK
}

// TimeoutError means the request deadline elapsed before a response or
// body could be read.
type TimeoutError struct {
	URL string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Timeout: fetch %s: %v", e.URL, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// NotFoundError means the server answered 404.
type NotFoundError struct {
	URL string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("NotFound: fetch %s: 404 Not Found", e.URL)
}

// TransportError covers every other transport-layer failure: refused
// connections, TLS problems, body-read errors, cancellation.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("TransportError: fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

var httpClient = &http.Client{}

// Fetch performs one GET against url with the given deadline, setting
// If-None-Match and If-Modified-Since from cond when provided. It never
// retries.
func Fetch(ctx context.Context, url string, timeout time.Duration, cond *Conditions) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", "feedspool/1.0 (feed aggregator)")
	if cond != nil {
		if cond.ETag != "" {
			req.Header.Set("If-None-Match", cond.ETag)
		}
		if cond.LastModified != "" {
			req.Header.Set("If-Modified-Since", cond.LastModified)
		}
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(url, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound:
		return nil, &NotFoundError{URL: url}
	case http.StatusNotModified:
		return &Result{Status: resp.StatusCode, Header: resp.Header}, nil
	case http.StatusOK:
		body, err := readBody(resp.Body)
		if err != nil {
			return nil, classifyTransport(url, err)
		}
		return &Result{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
	default:
		// Best-effort body for diagnostics; unreadable bodies stay empty.
		body, _ := readBody(resp.Body)
		return &Result{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
	}
}

func readBody(r io.Reader) (string, error) {
	limited := io.LimitReader(r, maxResponseSize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return "", err
	}
	if len(body) > maxResponseSize {
		return "", fmt.Errorf("response exceeds %d bytes", maxResponseSize)
	}
	return string(body), nil
}

func classifyTransport(url string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{URL: url, Err: err}
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{URL: url, Err: err}
	}
	return &TransportError{URL: url, Err: err}
}

// HeaderOrBlank returns the named header value, or "" when absent.
func HeaderOrBlank(h http.Header, name string) string {
	if h == nil {
		return ""
	}
	return h.Get(name)
}
