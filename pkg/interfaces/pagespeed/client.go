package pagespeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// OutcomeKind classifies the terminal result of one fetch, including all
// the ways a fetch can fail.
type OutcomeKind string

const (
	OutcomeSuccess           OutcomeKind = "success"
	OutcomeHTTPError         OutcomeKind = "http_error"
	OutcomeConnectionError   OutcomeKind = "connection_error"
	OutcomeTimeout           OutcomeKind = "timeout"
	OutcomeOtherRequestError OutcomeKind = "other_request_error"
)

// FetchOutcome is the single terminal result of an attempt sequence for one
// (url, strategy) job. Response is non-nil only on success.
type FetchOutcome struct {
	Kind       OutcomeKind
	Response   *RunPagespeedResponse
	Detail     string
	StatusCode int
}

// Success reports whether the fetch produced a usable payload.
func (o FetchOutcome) Success() bool {
	return o.Kind == OutcomeSuccess
}

// Limiter gates request issuance. Acquire blocks until the caller may
// issue one request.
type Limiter interface {
	Acquire()
}

// retryableStatuses are treated as transient and retried with backoff.
// 400 is included deliberately: the upstream has been observed to
// intermittently reject otherwise-valid requests with it. Remove it here
// if that ever gets fixed server-side.
var retryableStatuses = map[int]bool{
	http.StatusBadRequest:          true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
}

const maxBackoff = 60 * time.Second

// ClientOption allows for customization of the client
type ClientOption func(*Client)

// Client issues PageSpeed Insights API calls with retry and backoff.
type Client struct {
	config *Config
	logger *logrus.Logger
}

// NewClient creates a new PageSpeed API client.
func NewClient(config *Config, opts ...ClientOption) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	client := &Client{
		config: config,
		logger: config.Logger,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Fetch runs one audit for the given page URL and strategy, retrying
// transient failures up to the configured attempt budget. Every attempt,
// retries included, passes through the limiter first. Fetch never panics;
// every failure mode is folded into the returned outcome.
func (c *Client) Fetch(ctx context.Context, pageURL string, strategy Strategy, limiter Limiter) FetchOutcome {
	log := c.logger.WithFields(logrus.Fields{
		"url":      pageURL,
		"strategy": strategy,
	})

	var outcome FetchOutcome
	for attempt := 1; attempt <= c.config.MaxRetries; attempt++ {
		limiter.Acquire()

		var retryable bool
		outcome, retryable = c.attempt(ctx, pageURL, strategy)
		if outcome.Success() {
			return outcome
		}

		log.WithFields(logrus.Fields{
			"attempt":     attempt,
			"kind":        outcome.Kind,
			"status_code": outcome.StatusCode,
			"detail":      outcome.Detail,
		}).Error("PageSpeed request failed")

		if !retryable || attempt == c.config.MaxRetries {
			return outcome
		}

		backoff := c.backoffDelay(attempt)
		log.WithFields(logrus.Fields{
			"attempt": attempt,
			"backoff": backoff.String(),
		}).Info("Retrying PageSpeed request")
		time.Sleep(backoff)
	}

	return outcome
}

// attempt issues one request and classifies the result. The second return
// value reports whether the failure is worth retrying.
func (c *Client) attempt(ctx context.Context, pageURL string, strategy Strategy) (FetchOutcome, bool) {
	req, err := c.buildRequest(ctx, pageURL, strategy)
	if err != nil {
		return FetchOutcome{
			Kind:   OutcomeOtherRequestError,
			Detail: fmt.Sprintf("failed to build request: %v", err),
		}, false
	}

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var payload RunPagespeedResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return FetchOutcome{
				Kind:       OutcomeOtherRequestError,
				StatusCode: resp.StatusCode,
				Detail:     fmt.Sprintf("failed to decode response body: %v", err),
			}, false
		}
		return FetchOutcome{Kind: OutcomeSuccess, Response: &payload, StatusCode: resp.StatusCode}, false
	}

	body, _ := io.ReadAll(resp.Body)
	outcome := FetchOutcome{
		Kind:       OutcomeHTTPError,
		StatusCode: resp.StatusCode,
		Detail:     extractErrorDetail(body, resp.StatusCode),
	}
	return outcome, retryableStatuses[resp.StatusCode]
}

func (c *Client) buildRequest(ctx context.Context, pageURL string, strategy Strategy) (*http.Request, error) {
	params := url.Values{}
	params.Set("url", pageURL)
	params.Set("key", c.config.APIKey)
	params.Set("strategy", string(strategy))
	for _, category := range c.config.Categories {
		params.Add("category", category)
	}

	fullURL := c.config.Endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// backoffDelay determines the retry delay using exponential backoff,
// clamped to a sane upper bound.
func (c *Client) backoffDelay(attempt int) time.Duration {
	backoff := c.config.RetryBaseDelay * time.Duration(1<<(attempt-1))
	if backoff > maxBackoff {
		return maxBackoff
	}
	return backoff
}

// classifyTransportError maps transport-level failures onto outcome kinds.
// Timeouts and connection failures are transient; anything else is treated
// as a malformed request and not retried.
func classifyTransportError(err error) (FetchOutcome, bool) {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return FetchOutcome{
			Kind:   OutcomeTimeout,
			Detail: fmt.Sprintf("request timed out: %v", err),
		}, true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return FetchOutcome{
			Kind:   OutcomeConnectionError,
			Detail: fmt.Sprintf("could not reach the API: %v", err),
		}, true
	}

	return FetchOutcome{
		Kind:   OutcomeOtherRequestError,
		Detail: err.Error(),
	}, false
}

// extractErrorDetail pulls the structured message and reasons out of an
// API error body, falling back to a truncated raw body when the envelope
// does not parse.
func extractErrorDetail(body []byte, statusCode int) string {
	var envelope apiErrorBody
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		reasons := make([]string, 0, len(envelope.Error.Errors))
		for _, e := range envelope.Error.Errors {
			if e.Reason != "" {
				reasons = append(reasons, e.Reason)
			}
		}
		if len(reasons) > 0 {
			return fmt.Sprintf("%s (%s)", envelope.Error.Message, strings.Join(reasons, ", "))
		}
		return envelope.Error.Message
	}

	raw := strings.TrimSpace(string(body))
	if len(raw) > 200 {
		raw = raw[:200]
	}
	if raw == "" {
		return fmt.Sprintf("status %d with empty body", statusCode)
	}
	return raw
}
