package pagespeed

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Default values for the PageSpeed Insights v5 API.
const (
	DefaultEndpoint       = "https://www.googleapis.com/pagespeedonline/v5/runPagespeed"
	DefaultRequestTimeout = 120 * time.Second
	DefaultMaxRetries     = 3
	DefaultRetryBaseDelay = 4 * time.Second
)

type Config struct {
	// API Authentication
	APIKey string

	// API Endpoint
	Endpoint string

	// Categories requested on every audit run
	Categories []string

	// Request behaviour
	RequestTimeout time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration

	// HTTPClient is the transport used for API calls. Tests inject a
	// client pointed at a fake upstream here.
	HTTPClient *http.Client

	// General Config
	Logger *logrus.Logger
}

func NewConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	maxRetries, _ := strconv.Atoi(getEnvOrDefault("PAGESPEED_MAX_RETRIES", "3"))
	timeoutSecs, _ := strconv.Atoi(getEnvOrDefault("PAGESPEED_TIMEOUT_SECONDS", "120"))
	baseDelaySecs, _ := strconv.Atoi(getEnvOrDefault("PAGESPEED_RETRY_BASE_SECONDS", "4"))

	config := &Config{
		APIKey:         os.Getenv("API_KEY"),
		Endpoint:       getEnvOrDefault("PAGESPEED_ENDPOINT", DefaultEndpoint),
		Categories:     append([]string{}, Categories...),
		RequestTimeout: time.Duration(timeoutSecs) * time.Second,
		MaxRetries:     maxRetries,
		RetryBaseDelay: time.Duration(baseDelaySecs) * time.Second,

		Logger: func() *logrus.Logger {
			log := logrus.New()
			if level := os.Getenv("LOG_LEVEL"); level != "" {
				if parsedLevel, err := logrus.ParseLevel(level); err == nil {
					log.SetLevel(parsedLevel)
				}
			}
			return log
		}(),
	}

	config.Logger.WithFields(logrus.Fields{
		"api_key_exists": config.APIKey != "",
		"endpoint":       config.Endpoint,
		"max_retries":    config.MaxRetries,
		"timeout":        config.RequestTimeout.String(),
	}).Debug("PageSpeed config initialized")

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}

	c.Logger.Debug("Validating PageSpeed configuration")

	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if len(c.Categories) == 0 {
		c.Categories = append([]string{}, Categories...)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max retries must be at least 1")
	}
	if c.RetryBaseDelay <= 0 {
		return fmt.Errorf("retry base delay must be positive")
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.RequestTimeout}
	}

	c.Logger.Debug("PageSpeed configuration validation completed successfully")
	return nil
}

// Helper function to get environment variable with default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
