package sanitizer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Validation errors returned by Sanitize.
var (
	ErrBlankURL    = errors.New("url is empty or blank")
	ErrBadScheme   = errors.New("url scheme must be http or https")
	ErrMissingHost = errors.New("url has no host")
)

// Known link-shortener domains. A host matching one of these, or any
// subdomain of one, gets its redirect chain resolved before scanning.
var shortenerDomains = []string{
	"bit.ly",
	"tinyurl.com",
	"t.co",
	"goo.gl",
	"ow.ly",
	"buff.ly",
	"is.gd",
	"rb.gy",
	"cutt.ly",
	"rebrand.ly",
}

const resolveTimeout = 10 * time.Second

// SkippedURL records an input URL that failed validation, with the reason
// it was rejected. Validation never silently drops a URL.
type SkippedURL struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// SanitizerOption allows for customization of the sanitizer.
type SanitizerOption func(*Sanitizer)

// WithHTTPClient replaces the redirect-following client used for
// shortlink resolution.
func WithHTTPClient(client *http.Client) SanitizerOption {
	return func(s *Sanitizer) {
		s.client = client
	}
}

// WithShortenerDomains replaces the known shortener set.
func WithShortenerDomains(domains []string) SanitizerOption {
	return func(s *Sanitizer) {
		s.shorteners = domains
	}
}

// Sanitizer validates and normalizes raw URLs and resolves shortlinks to
// their final destination.
type Sanitizer struct {
	client     *http.Client
	limiter    *rate.Limiter
	logger     *logrus.Logger
	shorteners []string
}

// New creates a Sanitizer. Shortlink resolution is throttled to avoid
// hammering shortener services when an input list is full of them.
func New(logger *logrus.Logger, opts ...SanitizerOption) *Sanitizer {
	s := &Sanitizer{
		client:     &http.Client{Timeout: resolveTimeout},
		limiter:    rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
		logger:     logger,
		shorteners: shortenerDomains,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sanitize validates a raw URL string and returns its normalized form.
// Unsafe characters in the path are percent-encoded; scheme, host, and
// query are left as given. Fragments are stripped since the upstream API
// ignores them and keeping one would create spurious cache misses.
func Sanitize(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrBlankURL
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("unparseable url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", ErrBadScheme
	}
	if parsed.Host == "" {
		return "", ErrMissingHost
	}

	parsed.Fragment = ""
	parsed.RawFragment = ""
	// Dropping RawPath forces re-encoding of the decoded path, which
	// percent-encodes anything unsafe (spaces and friends).
	parsed.RawPath = ""

	return parsed.String(), nil
}

// ResolveShortlink returns the final landing URL behind a known shortener
// by issuing a HEAD request and following redirects. Any failure returns
// the input unchanged: a best-guess URL beats a hard failure here.
func (s *Sanitizer) ResolveShortlink(ctx context.Context, pageURL string) string {
	parsed, err := url.Parse(pageURL)
	if err != nil || !s.isShortener(parsed.Hostname()) {
		return pageURL
	}

	log := s.logger.WithField("url", pageURL)

	if err := s.limiter.Wait(ctx); err != nil {
		log.WithError(err).Warn("Shortlink resolution aborted")
		return pageURL
	}

	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, pageURL, nil)
	if err != nil {
		log.WithError(err).Warn("Failed to build shortlink resolution request")
		return pageURL
	}

	resp, err := s.client.Do(req)
	if err != nil {
		log.WithError(err).Warn("Shortlink resolution failed, keeping original URL")
		return pageURL
	}
	defer resp.Body.Close()

	final := resp.Request.URL.String()
	if final != pageURL {
		log.WithField("resolved", final).Info("Resolved shortlink")
	}
	return final
}

// Prepare runs the full validation pipeline over the input list:
// sanitize, resolve shortlinks, re-sanitize the resolved destination.
// It partitions the input into valid URLs and skipped entries, each
// skipped entry carrying a human-readable reason.
func (s *Sanitizer) Prepare(ctx context.Context, urls []string) ([]string, []SkippedURL) {
	valid := make([]string, 0, len(urls))
	var skipped []SkippedURL

	for _, raw := range urls {
		clean, err := Sanitize(raw)
		if err != nil {
			skipped = append(skipped, SkippedURL{URL: raw, Reason: err.Error()})
			continue
		}

		resolved := s.ResolveShortlink(ctx, clean)
		if resolved != clean {
			resolved, err = Sanitize(resolved)
			if err != nil {
				skipped = append(skipped, SkippedURL{
					URL:    raw,
					Reason: fmt.Sprintf("shortlink resolved to invalid url: %v", err),
				})
				continue
			}
		}

		valid = append(valid, resolved)
	}

	s.logger.WithFields(logrus.Fields{
		"valid":   len(valid),
		"skipped": len(skipped),
	}).Info("URL validation completed")

	for _, sk := range skipped {
		s.logger.WithFields(logrus.Fields{
			"url":    sk.URL,
			"reason": sk.Reason,
		}).Warn("Skipping URL")
	}

	return valid, skipped
}

func (s *Sanitizer) isShortener(host string) bool {
	host = strings.ToLower(host)
	for _, domain := range s.shorteners {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
