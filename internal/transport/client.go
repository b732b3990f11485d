// Package transport provides the HTTP client used to acquire remote
// inputs: release archives and the national base registry.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ondata/confini/pkg/constants"
	"github.com/ondata/confini/pkg/errors"
	"github.com/ondata/confini/pkg/logging"
)

// DefaultHTTPTimeout is the default timeout for HTTP requests.
var DefaultHTTPTimeout = constants.DefaultHTTPTimeout

// Client performs GET requests with retries on transient failures.
type Client struct {
	http      *http.Client
	retries   uint64
	delay     time.Duration
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the overall timeout of a single request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithInsecureTLS disables certificate verification. Some government
// hosts serve an incomplete certificate chain.
func WithInsecureTLS() Option {
	return func(c *Client) {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in per source
		c.http.Transport = transport
	}
}

// WithRetries sets the number of extra attempts and the initial delay
// between them. The delay doubles on every attempt.
func WithRetries(n uint64, delay time.Duration) Option {
	return func(c *Client) {
		c.retries = n
		c.delay = delay
	}
}

// WithHTTPClient replaces the underlying client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates a new transport client.
func New(opts ...Option) *Client {
	c := &Client{
		http:      &http.Client{Timeout: DefaultHTTPTimeout},
		retries:   constants.DownloadRetries,
		delay:     constants.DownloadRetryBackoff,
		userAgent: constants.UserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatusError is a non-200 response.
type StatusError struct {
	URL        string
	StatusCode int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %s", e.URL, http.StatusText(e.StatusCode))
}

// Fetch requests url and hands the response body to fn. Network errors
// and 5xx responses are retried, every attempt calls fn on a fresh body,
// so fn must discard what a failed attempt produced. Any other failure is
// returned as an AcquisitionError for source; fatal marks it as such.
func (c *Client) Fetch(ctx context.Context, source, url string, fatal bool, fn func(body io.Reader) error) error {
	logger := logging.FromContext(ctx)
	attempt := 0

	operation := func() error {
		attempt++
		err := c.fetchOnce(ctx, url, fn)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !retryable(err) {
			return backoff.Permanent(err)
		}
		logger.Warn().Err(err).Int("attempt", attempt).Str("url", url).Msg("Fetch failed, retrying")
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.delay
	policy.MaxElapsedTime = 0
	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, c.retries), ctx))
	if err == nil {
		return nil
	}

	acq := errors.NewAcquisitionError(source, url, fatal, err)
	var status *StatusError
	if errors.As(err, &status) {
		acq.StatusCode = status.StatusCode
	}
	return acq
}

func (c *Client) fetchOnce(ctx context.Context, url string, fn func(io.Reader) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	return fn(resp.Body)
}

// retryable reports whether err is worth another attempt: server errors,
// rate limiting and transport failures. Errors from the body consumer are
// not retried unless they come from reading the body.
func retryable(err error) bool {
	var status *StatusError
	if errors.As(err, &status) {
		return status.StatusCode >= 500 || status.StatusCode == http.StatusTooManyRequests
	}
	var consumer *errors.ParseError
	if errors.As(err, &consumer) {
		return false
	}
	var schema *errors.SchemaError
	return !errors.As(err, &schema)
}
