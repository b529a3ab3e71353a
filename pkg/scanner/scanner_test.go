package scanner_test

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/kerry883/webperformancescanner/pkg/interfaces/pagespeed"
	"github.com/kerry883/webperformancescanner/pkg/scanner"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// slowFakeFetcher completes jobs after a randomized delay so completion
// order differs from dispatch order.
type slowFakeFetcher struct {
	mu    sync.Mutex
	calls int
	fail  map[string]bool
	panic map[string]bool
}

func (f *slowFakeFetcher) Fetch(ctx context.Context, pageURL string, strategy pagespeed.Strategy, limiter pagespeed.Limiter) pagespeed.FetchOutcome {
	limiter.Acquire()

	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	time.Sleep(time.Duration(rand.Intn(20)) * time.Millisecond)

	if f.panic[pageURL] {
		panic("boom")
	}
	if f.fail[pageURL] {
		return pagespeed.FetchOutcome{
			Kind:       pagespeed.OutcomeHTTPError,
			StatusCode: 404,
			Detail:     "not found",
		}
	}

	score := 0.9
	return pagespeed.FetchOutcome{
		Kind: pagespeed.OutcomeSuccess,
		Response: &pagespeed.RunPagespeedResponse{
			LighthouseResult: &pagespeed.LighthouseResult{
				Categories: map[string]pagespeed.LighthouseCategory{
					"performance": {Score: &score},
				},
			},
		},
	}
}

func newScanner(fetcher scanner.Fetcher, workers int) *scanner.Scanner {
	s, err := scanner.New(scanner.Config{
		Fetcher:           fetcher,
		Logger:            quietLogger(),
		MaxWorkers:        workers,
		RequestsPerSecond: 1000,
	})
	Expect(err).NotTo(HaveOccurred())
	return s
}

var _ = Describe("Scanner", func() {
	It("produces exactly one record per (url, strategy) pair", func() {
		urls := []string{
			"https://example.com/",
			"https://example.com/about",
			"https://example.com/contact",
		}
		s := newScanner(&slowFakeFetcher{fail: map[string]bool{}, panic: map[string]bool{}}, 4)
		results := s.Scan(context.Background(), urls)

		Expect(results).To(HaveLen(len(urls) * 2))
		seen := map[string]int{}
		for _, r := range results {
			seen[r.URL+"|"+string(r.Strategy)]++
		}
		for key, count := range seen {
			Expect(count).To(Equal(1), "duplicate record for %s", key)
		}
	})

	It("orders output by input URL position with mobile before desktop, regardless of completion timing", func() {
		var urls []string
		for i := 0; i < 5; i++ {
			urls = append(urls, fmt.Sprintf("https://example.com/page-%d", i))
		}
		s := newScanner(&slowFakeFetcher{fail: map[string]bool{}, panic: map[string]bool{}}, 8)

		for run := 0; run < 2; run++ {
			results := s.Scan(context.Background(), urls)
			Expect(results).To(HaveLen(10))
			for i, u := range urls {
				Expect(results[2*i].URL).To(Equal(u))
				Expect(results[2*i].Strategy).To(Equal(pagespeed.StrategyMobile))
				Expect(results[2*i+1].URL).To(Equal(u))
				Expect(results[2*i+1].Strategy).To(Equal(pagespeed.StrategyDesktop))
			}
		}
	})

	It("degrades terminal failures into null-valued records instead of dropping them", func() {
		urls := []string{"https://good.example.com", "https://bad.example.com"}
		s := newScanner(&slowFakeFetcher{
			fail:  map[string]bool{"https://bad.example.com": true},
			panic: map[string]bool{},
		}, 2)
		results := s.Scan(context.Background(), urls)

		Expect(results).To(HaveLen(4))
		for _, r := range results {
			if r.URL == "https://bad.example.com" {
				Expect(r.Failed()).To(BeTrue())
				Expect(r.Scores.Performance).To(BeNil())
				Expect(r.FailureKind).To(Equal(pagespeed.OutcomeHTTPError))
				Expect(r.FailureDetail).To(Equal("not found"))
			} else {
				Expect(r.Failed()).To(BeFalse())
				Expect(*r.Scores.Performance).To(Equal(90))
			}
		}
	})

	It("converts a worker panic into a failure record without aborting the scan", func() {
		urls := []string{"https://ok.example.com", "https://panics.example.com"}
		s := newScanner(&slowFakeFetcher{
			fail:  map[string]bool{},
			panic: map[string]bool{"https://panics.example.com": true},
		}, 2)
		results := s.Scan(context.Background(), urls)

		Expect(results).To(HaveLen(4))
		for _, r := range results {
			if r.URL == "https://panics.example.com" {
				Expect(r.Failed()).To(BeTrue())
				Expect(r.FailureDetail).To(ContainSubstring("unexpected worker error"))
			}
		}
	})

	Describe("end to end against a fake upstream", func() {
		It("retries transient failures, keeps terminal failures visible, and counts completions", func() {
			var mu sync.Mutex
			flakyAttempts := map[string]int{}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				pageURL := r.URL.Query().Get("url")
				strategy := r.URL.Query().Get("strategy")
				switch pageURL {
				case "https://flaky.example.com":
					mu.Lock()
					flakyAttempts[strategy]++
					n := flakyAttempts[strategy]
					mu.Unlock()
					if n <= 2 {
						w.WriteHeader(http.StatusTooManyRequests)
						return
					}
				case "https://broken.example.com":
					w.WriteHeader(http.StatusNotFound)
					return
				}
				w.Write([]byte(`{"lighthouseResult":{"categories":{"performance":{"score":0.8},"seo":{"score":1.0}}}}`))
			}))
			DeferCleanup(server.Close)

			client, err := pagespeed.NewClient(&pagespeed.Config{
				APIKey:         "test-key",
				Endpoint:       server.URL,
				RequestTimeout: 5 * time.Second,
				MaxRetries:     3,
				RetryBaseDelay: time.Millisecond,
				HTTPClient:     server.Client(),
				Logger:         quietLogger(),
			})
			Expect(err).NotTo(HaveOccurred())

			s := newScanner(client, 3)
			urls := []string{
				"https://flaky.example.com",
				"https://broken.example.com",
				"https://ok.example.com",
			}
			results := s.Scan(context.Background(), urls)

			Expect(results).To(HaveLen(6))

			nullScored := 0
			for _, r := range results {
				if r.Scores.Performance == nil {
					nullScored++
					Expect(r.URL).To(Equal("https://broken.example.com"))
				}
			}
			Expect(nullScored).To(Equal(2))

			// The flaky URL needed two retries per strategy before success.
			mu.Lock()
			defer mu.Unlock()
			Expect(flakyAttempts["mobile"]).To(Equal(3))
			Expect(flakyAttempts["desktop"]).To(Equal(3))
		})
	})
})
