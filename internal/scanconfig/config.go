// Package scanconfig resolves the full run configuration for one scan
// from CLI flags and environment variables, flags winning.
package scanconfig

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// apiKeyPlaceholder is the value shipped in .env.example; treat it as unset.
const apiKeyPlaceholder = "your_api_key_here"

// Config is everything one scan run needs.
type Config struct {
	// APIKey is the Google PageSpeed Insights API credential
	APIKey string
	// BaseURL is prepended to bare route paths from the CSV; optional when
	// the CSV only contains full URLs
	BaseURL string
	// CSVPath is the input file of URLs or routes
	CSVPath string
	// OutputPath is where the results CSV is written
	OutputPath string
	// MaxWorkers is the worker pool size
	MaxWorkers int
	// RequestsPerSecond caps aggregate API request issuance
	RequestsPerSecond float64
	// StatusInterval is how often scan progress is logged
	StatusInterval time.Duration
}

// Load parses args and the environment into a validated Config. The .env
// file is optional; flags override environment values.
func Load(args []string, logger *logrus.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	envWorkers, _ := strconv.Atoi(getEnvOrDefault("MAX_WORKERS", "10"))
	envRate, err := strconv.ParseFloat(getEnvOrDefault("REQUESTS_PER_SECOND", "4"), 64)
	if err != nil {
		envRate = 4
	}

	fs := flag.NewFlagSet("scanner", flag.ContinueOnError)
	baseURL := fs.String("base-url", os.Getenv("BASE_URL"), "base domain to prepend to routes (e.g. https://example.com)")
	csvPath := fs.String("csv", getEnvOrDefault("URLS_CSV", "urls.csv"), "path to the CSV file containing URLs or routes")
	output := fs.String("output", "results.csv", "path for the exported results CSV")
	workers := fs.Int("workers", envWorkers, "number of concurrent workers for parallel API calls")
	rate := fs.Float64("rate", envRate, "maximum API requests per second across all workers")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	config := &Config{
		APIKey:            os.Getenv("API_KEY"),
		BaseURL:           *baseURL,
		CSVPath:           *csvPath,
		OutputPath:        *output,
		MaxWorkers:        *workers,
		RequestsPerSecond: *rate,
		StatusInterval:    10 * time.Second,
	}

	logger.WithFields(logrus.Fields{
		"api_key_exists": config.APIKey != "",
		"base_url":       config.BaseURL,
		"csv":            config.CSVPath,
		"output":         config.OutputPath,
		"workers":        config.MaxWorkers,
		"rate":           config.RequestsPerSecond,
	}).Debug("Scan config resolved")

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if c.APIKey == "" || c.APIKey == apiKeyPlaceholder {
		return fmt.Errorf("no valid API_KEY found: set your PageSpeed Insights API key in the .env file")
	}
	if c.CSVPath == "" {
		return fmt.Errorf("csv path is required")
	}
	if c.OutputPath == "" {
		return fmt.Errorf("output path is required")
	}
	if c.MaxWorkers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("rate must be positive")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
