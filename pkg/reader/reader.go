// Package reader loads scan targets from a single-column CSV file. Rows
// are either full URLs, used as-is, or route paths that get a base domain
// prepended.
package reader

import (
	"encoding/csv"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// ReadURLs reads entries from a single-column CSV file with a header row.
// Full URLs (http/https scheme) land in the first return value; bare route
// paths in the second. Blank rows are skipped. An empty file is an error.
func ReadURLs(path string, logger *logrus.Logger) ([]string, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("could not open url file %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse %q: %w", path, err)
	}
	if len(rows) > 0 {
		// header row
		rows = rows[1:]
	}

	var fullURLs, routes []string
	for i, row := range rows {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		entry := strings.TrimSpace(row[0])

		if isFullURL(entry) {
			fullURLs = append(fullURLs, entry)
			continue
		}

		if !strings.HasPrefix(entry, "/") {
			logger.WithFields(logrus.Fields{
				"row":   i + 2,
				"route": entry,
			}).Warn("Route does not start with '/', prepending automatically")
			entry = "/" + entry
		}
		routes = append(routes, entry)
	}

	if len(fullURLs)+len(routes) == 0 {
		return nil, nil, fmt.Errorf("no valid entries found in %q", path)
	}

	logger.WithFields(logrus.Fields{
		"file":      path,
		"full_urls": len(fullURLs),
		"routes":    len(routes),
	}).Info("Loaded scan targets")

	return fullURLs, routes, nil
}

// BuildFullURLs joins a base domain with route paths.
func BuildFullURLs(baseURL string, routes []string) []string {
	base := strings.TrimRight(baseURL, "/")
	urls := make([]string, len(routes))
	for i, route := range routes {
		urls[i] = base + route
	}
	return urls
}

// Dedupe removes duplicate URLs while preserving first-seen order.
func Dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

func isFullURL(value string) bool {
	parsed, err := url.Parse(value)
	if err != nil {
		return false
	}
	return parsed.Scheme == "http" || parsed.Scheme == "https"
}
