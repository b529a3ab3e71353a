package scanner

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kerry883/webperformancescanner/pkg/interfaces/pagespeed"
)

// Fetcher runs one audit for a (url, strategy) pair. Implemented by
// pagespeed.Client; tests substitute a fake.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string, strategy pagespeed.Strategy, limiter pagespeed.Limiter) pagespeed.FetchOutcome
}

// Config wires a Scanner. Everything a scan needs is injected here; there
// is no process-global client or console state.
type Config struct {
	Fetcher           Fetcher
	Logger            *logrus.Logger
	MaxWorkers        int
	RequestsPerSecond float64
	StatusInterval    time.Duration
}

// Scanner dispatches audit jobs onto a bounded worker pool, gating every
// request through a shared token bucket, and collects one Result per job.
type Scanner struct {
	fetcher  Fetcher
	logger   *logrus.Logger
	workers  int
	rate     float64
	interval time.Duration

	status ScanStatus
	mu     sync.RWMutex
}

// New creates a Scanner from the given config.
func New(config Config) (*Scanner, error) {
	if config.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if config.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if config.MaxWorkers < 1 {
		return nil, fmt.Errorf("max workers must be at least 1")
	}
	if config.RequestsPerSecond <= 0 {
		return nil, fmt.Errorf("requests per second must be positive")
	}
	interval := config.StatusInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	return &Scanner{
		fetcher:  config.Fetcher,
		logger:   config.Logger,
		workers:  config.MaxWorkers,
		rate:     config.RequestsPerSecond,
		interval: interval,
	}, nil
}

// Scan audits every URL under every strategy and returns one Result per
// (url, strategy) job, ordered by input URL position with mobile before
// desktop, regardless of completion timing. Failures degrade to records
// with nil metric fields; nothing aborts the scan.
func (s *Scanner) Scan(ctx context.Context, urls []string) []Result {
	jobs := buildJobs(urls)
	scanID := uuid.NewString()[:8]

	log := s.logger.WithField("scan_id", scanID)
	log.WithFields(logrus.Fields{
		"urls":       len(urls),
		"strategies": len(pagespeed.Strategies),
		"total_jobs": len(jobs),
		"workers":    s.workers,
		"rate":       s.rate,
	}).Info("Starting scan")

	s.mu.Lock()
	s.status = ScanStatus{
		TotalJobs: len(jobs),
		StartTime: time.Now(),
	}
	s.mu.Unlock()

	limiter := NewTokenBucket(s.rate)
	jobCh := make(chan Job, len(jobs))
	stopReporter := make(chan struct{})

	results := make([]Result, 0, len(jobs))
	var resultsMu sync.Mutex

	go s.reportStatus(log, stopReporter)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for job := range jobCh {
				record := s.process(ctx, log, id, job, limiter)

				resultsMu.Lock()
				results = append(results, record)
				resultsMu.Unlock()

				s.mu.Lock()
				s.status.CompletedJobs++
				if record.Failed() {
					s.status.FailedJobs++
				}
				s.mu.Unlock()
			}
		}(i)
	}

	for _, job := range jobs {
		jobCh <- job
	}
	close(jobCh)

	wg.Wait()
	close(stopReporter)

	// The pool completes jobs in arbitrary order; restore input order once.
	sort.Slice(results, func(i, j int) bool {
		if results[i].InputIndex != results[j].InputIndex {
			return results[i].InputIndex < results[j].InputIndex
		}
		return strategyRank(results[i].Strategy) < strategyRank(results[j].Strategy)
	})

	scored := 0
	for _, r := range results {
		if r.Scores.Performance != nil {
			scored++
		}
	}
	log.WithFields(logrus.Fields{
		"successful": scored,
		"total_jobs": len(jobs),
		"duration":   time.Since(s.status.StartTime).String(),
	}).Info("Scan completed")

	return results
}

// GetStatus returns a snapshot of the current scan status.
func (s *Scanner) GetStatus() ScanStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// process runs one job to completion: fetch with retries, then extract on
// success or degrade to a null-valued record on failure. A panic inside
// the job is recovered here so one bad job cannot take down the pool.
func (s *Scanner) process(ctx context.Context, log *logrus.Entry, workerID int, job Job, limiter pagespeed.Limiter) (record Result) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(logrus.Fields{
				"worker_id": workerID,
				"url":       job.URL,
				"strategy":  job.Strategy,
				"panic":     fmt.Sprintf("%v", r),
			}).Error("Worker recovered from panic")
			record = failureResult(job, pagespeed.OutcomeOtherRequestError, fmt.Sprintf("unexpected worker error: %v", r))
		}
	}()

	log.WithFields(logrus.Fields{
		"worker_id": workerID,
		"url":       job.URL,
		"strategy":  job.Strategy,
	}).Debug("Processing job")

	outcome := s.fetcher.Fetch(ctx, job.URL, job.Strategy, limiter)
	if !outcome.Success() {
		return failureResult(job, outcome.Kind, outcome.Detail)
	}

	return Result{
		URL:           job.URL,
		Strategy:      job.Strategy,
		InputIndex:    job.InputIndex,
		Scores:        pagespeed.ExtractScores(outcome.Response),
		LabMetrics:    pagespeed.ExtractLabMetrics(outcome.Response),
		FieldData:     pagespeed.ExtractFieldData(outcome.Response),
		Opportunities: pagespeed.ExtractOpportunities(outcome.Response),
		Diagnostics:   pagespeed.ExtractDiagnostics(outcome.Response),
	}
}

// reportStatus periodically logs scan progress until stopped.
func (s *Scanner) reportStatus(log *logrus.Entry, stop <-chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.RLock()
			log.WithFields(logrus.Fields{
				"completed": s.status.CompletedJobs,
				"failed":    s.status.FailedJobs,
				"total":     s.status.TotalJobs,
				"duration":  time.Since(s.status.StartTime).String(),
			}).Info("Scan status update")
			s.mu.RUnlock()
		case <-stop:
			return
		}
	}
}

// buildJobs expands the input URLs into the full job set, every URL under
// every strategy, mobile first.
func buildJobs(urls []string) []Job {
	jobs := make([]Job, 0, len(urls)*len(pagespeed.Strategies))
	for i, u := range urls {
		for _, strategy := range pagespeed.Strategies {
			jobs = append(jobs, Job{URL: u, Strategy: strategy, InputIndex: i})
		}
	}
	return jobs
}

func failureResult(job Job, kind pagespeed.OutcomeKind, detail string) Result {
	return Result{
		URL:           job.URL,
		Strategy:      job.Strategy,
		InputIndex:    job.InputIndex,
		FailureKind:   kind,
		FailureDetail: detail,
	}
}

func strategyRank(s pagespeed.Strategy) int {
	for i, strategy := range pagespeed.Strategies {
		if s == strategy {
			return i
		}
	}
	return len(pagespeed.Strategies)
}
