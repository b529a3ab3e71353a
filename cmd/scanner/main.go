package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/kerry883/webperformancescanner/internal/scanconfig"
	"github.com/kerry883/webperformancescanner/pkg/interfaces/pagespeed"
	"github.com/kerry883/webperformancescanner/pkg/logging"
	"github.com/kerry883/webperformancescanner/pkg/reader"
	"github.com/kerry883/webperformancescanner/pkg/reporter"
	"github.com/kerry883/webperformancescanner/pkg/sanitizer"
	"github.com/kerry883/webperformancescanner/pkg/scanner"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		// Only log warning since .env is optional
		logrus.WithError(err).Warn("Error loading .env file")
	}

	// Initialize logger
	log := logrus.New()
	log.SetFormatter(logging.NewColoredFormatter())

	// Get log level from environment
	logLevel := os.Getenv("LOG_LEVEL")
	if level, err := logrus.ParseLevel(logLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.SetLevel(logrus.InfoLevel)
		if logLevel != "" {
			log.WithFields(logrus.Fields{
				"attempted_level": logLevel,
				"default_level":   "INFO",
			}).Warn("Invalid log level specified, defaulting to INFO")
		}
	}

	log.Info("Web Performance Scanner — Google PageSpeed Insights batch analyser")

	config, err := scanconfig.Load(os.Args[1:], log)
	if err != nil {
		log.WithError(err).Fatal("Failed to resolve scan configuration")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Info("Received shutdown signal")
		cancel()
	}()

	// Read URLs and routes from the CSV
	fullURLs, routes, err := reader.ReadURLs(config.CSVPath, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to read scan targets")
	}

	if len(routes) > 0 {
		if config.BaseURL == "" || config.BaseURL == "https://example.com" {
			log.Fatal("CSV contains route paths that need a base URL; pass --base-url or set BASE_URL in .env")
		}
		fullURLs = append(fullURLs, reader.BuildFullURLs(config.BaseURL, routes)...)
	}
	fullURLs = reader.Dedupe(fullURLs)

	// Validate, resolve shortlinks, and partition the input
	san := sanitizer.New(log)
	validURLs, skipped := san.Prepare(ctx, fullURLs)
	if len(validURLs) == 0 {
		log.WithField("skipped", len(skipped)).Fatal("No valid URLs to scan")
	}

	log.WithFields(logrus.Fields{
		"urls":    len(validURLs),
		"workers": config.MaxWorkers,
		"rate":    config.RequestsPerSecond,
		"output":  config.OutputPath,
	}).Info("Scan targets prepared")

	// Initialize PageSpeed client
	psConfig, err := pagespeed.NewConfig()
	if err != nil {
		log.WithError(err).Fatal("Failed to create PageSpeed config")
	}
	psConfig.APIKey = config.APIKey
	psConfig.Logger = log

	client, err := pagespeed.NewClient(psConfig)
	if err != nil {
		log.WithError(err).Fatal("Failed to create PageSpeed client")
	}

	// Initialize scanner
	scan, err := scanner.New(scanner.Config{
		Fetcher:           client,
		Logger:            log,
		MaxWorkers:        config.MaxWorkers,
		RequestsPerSecond: config.RequestsPerSecond,
		StatusInterval:    config.StatusInterval,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to create scanner")
	}

	results := scan.Scan(ctx, validURLs)
	if len(results) == 0 {
		log.Fatal("No results were returned; check your API key and network connection")
	}

	// Aggregate, report, export
	averages := reporter.ComputeAverages(results)
	rep := reporter.New(log)
	rep.PrintFullReport(results, averages)

	if err := rep.ExportCSV(results, averages, config.OutputPath); err != nil {
		log.WithError(err).Fatal("Failed to export results")
	}

	log.Info("Done")
}
