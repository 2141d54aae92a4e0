// Package source reads the schedule documents from HTTP or from disk
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/navikt/zagenda/internal/utils"
)

// ErrStatus is returned when a document server answers with a non-2xx status
var ErrStatus = errors.New("unexpected response status")

// ErrTooLarge is returned for documents above MaxDocumentSize
var ErrTooLarge = errors.New("document too large")

// MaxDocumentSize bounds how much of a document is read
const MaxDocumentSize = 16 << 20

// Fetcher retrieves raw document bytes from a location
type Fetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// RetryPolicy controls how often a failing fetch is retried
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
}

// HTTPFetcher reads documents over HTTP(S), falling back to the local
// filesystem for file:// URLs and plain paths.
type HTTPFetcher struct {
	httpClient *http.Client
	retry      RetryPolicy
	logger     *zap.Logger
}

// NewHTTPFetcher creates a fetcher with the given request timeout and retry policy
func NewHTTPFetcher(timeout time.Duration, retry RetryPolicy, logger *zap.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retry:  retry,
		logger: logger,
	}
}

// Fetch returns the raw bytes found at location
func (f *HTTPFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Bare paths, including Windows drive letters
		return readFile(location)
	}

	switch u.Scheme {
	case "file":
		return readFile(u.Path)
	case "http", "https":
		return f.fetchWithRetry(ctx, location)
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
}

// fetchWithRetry performs the GET with exponential backoff. 4xx answers are
// not retried.
func (f *HTTPFetcher) fetchWithRetry(ctx context.Context, location string) ([]byte, error) {
	var body []byte
	attempt := 0

	op := func() error {
		attempt++
		data, err := f.get(ctx, location)
		if err != nil {
			var statusErr *StatusError
			if errors.As(err, &statusErr) && statusErr.Code < http.StatusInternalServerError {
				return backoff.Permanent(err)
			}
			if errors.Is(err, ErrTooLarge) {
				return backoff.Permanent(err)
			}
			f.logger.Warn("fetch attempt failed",
				utils.SafeString("location", location),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return err
		}
		body = data
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = f.retry.InitialInterval
	bo.MaxElapsedTime = 0

	var policy backoff.BackOff = bo
	policy = backoff.WithMaxRetries(policy, f.retry.MaxRetries)

	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

func (f *HTTPFetcher) get(ctx context.Context, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(body) > MaxDocumentSize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, MaxDocumentSize)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: snippet(body)}
	}

	return body, nil
}

// StatusError describes a non-2xx answer
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%v: %d", ErrStatus, e.Code)
	}
	return fmt.Sprintf("%v: %d: %s", ErrStatus, e.Code, e.Body)
}

// Unwrap makes errors.Is(err, ErrStatus) hold
func (e *StatusError) Unwrap() error {
	return ErrStatus
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) > MaxDocumentSize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, MaxDocumentSize)
	}
	return data, nil
}

// snippet keeps a short, log-safe excerpt of an error body
func snippet(body []byte) string {
	return utils.SanitizeLogString(strings.TrimSpace(string(body)))
}
