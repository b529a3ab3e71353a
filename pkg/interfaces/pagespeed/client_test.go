package pagespeed_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/kerry883/webperformancescanner/pkg/interfaces/pagespeed"
)

type noopLimiter struct {
	acquires int64
}

func (l *noopLimiter) Acquire() {
	atomic.AddInt64(&l.acquires, 1)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testConfig(server *httptest.Server) *pagespeed.Config {
	return &pagespeed.Config{
		APIKey:         "test-key",
		Endpoint:       server.URL,
		RequestTimeout: 5 * time.Second,
		MaxRetries:     3,
		RetryBaseDelay: 2 * time.Millisecond,
		HTTPClient:     server.Client(),
		Logger:         quietLogger(),
	}
}

var _ = Describe("Client", func() {
	var (
		calls   int64
		handler func(w http.ResponseWriter, r *http.Request)
		server  *httptest.Server
		client  *pagespeed.Client
		limiter *noopLimiter
	)

	BeforeEach(func() {
		atomic.StoreInt64(&calls, 0)
		limiter = &noopLimiter{}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt64(&calls, 1)
			handler(w, r)
		}))
		DeferCleanup(server.Close)

		var err error
		client, err = pagespeed.NewClient(testConfig(server))
		Expect(err).NotTo(HaveOccurred())
	})

	Context("when the API succeeds immediately", func() {
		BeforeEach(func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Query().Get("url")).To(Equal("https://example.com"))
				Expect(r.URL.Query().Get("key")).To(Equal("test-key"))
				Expect(r.URL.Query().Get("strategy")).To(Equal("mobile"))
				Expect(r.URL.Query()["category"]).To(ConsistOf(
					"performance", "accessibility", "best-practices", "seo"))
				w.Write([]byte(`{"lighthouseResult":{"categories":{"performance":{"score":0.9}}}}`))
			}
		})

		It("returns a success outcome after one call", func() {
			outcome := client.Fetch(context.Background(), "https://example.com", pagespeed.StrategyMobile, limiter)
			Expect(outcome.Success()).To(BeTrue())
			Expect(outcome.Response).NotTo(BeNil())
			Expect(atomic.LoadInt64(&calls)).To(Equal(int64(1)))
			Expect(atomic.LoadInt64(&limiter.acquires)).To(Equal(int64(1)))
		})
	})

	Context("when the API returns 429 twice then succeeds", func() {
		var attemptTimes []time.Time
		var timesMu sync.Mutex

		BeforeEach(func() {
			attemptTimes = nil
			handler = func(w http.ResponseWriter, r *http.Request) {
				timesMu.Lock()
				attemptTimes = append(attemptTimes, time.Now())
				timesMu.Unlock()
				if atomic.LoadInt64(&calls) <= 2 {
					w.WriteHeader(http.StatusTooManyRequests)
					w.Write([]byte(`{"error":{"message":"Quota exceeded"}}`))
					return
				}
				w.Write([]byte(`{"lighthouseResult":{"categories":{"performance":{"score":0.5}}}}`))
			}
		})

		It("retries and succeeds on the third attempt", func() {
			outcome := client.Fetch(context.Background(), "https://example.com", pagespeed.StrategyMobile, limiter)
			Expect(outcome.Success()).To(BeTrue())
			Expect(atomic.LoadInt64(&calls)).To(Equal(int64(3)))
		})

		It("waits at least the exponential backoff schedule between attempts", func() {
			client.Fetch(context.Background(), "https://example.com", pagespeed.StrategyMobile, limiter)
			Expect(attemptTimes).To(HaveLen(3))
			Expect(attemptTimes[1].Sub(attemptTimes[0])).To(BeNumerically(">=", 2*time.Millisecond))
			Expect(attemptTimes[2].Sub(attemptTimes[1])).To(BeNumerically(">=", 4*time.Millisecond))
		})

		It("acquires the limiter before every attempt, retries included", func() {
			client.Fetch(context.Background(), "https://example.com", pagespeed.StrategyMobile, limiter)
			Expect(atomic.LoadInt64(&limiter.acquires)).To(Equal(int64(3)))
		})
	})

	Context("when the API always returns a retryable status", func() {
		BeforeEach(func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"error":{"message":"Backend unavailable"}}`))
			}
		})

		It("exhausts the attempt budget and reports the last failure", func() {
			outcome := client.Fetch(context.Background(), "https://example.com", pagespeed.StrategyDesktop, limiter)
			Expect(outcome.Success()).To(BeFalse())
			Expect(outcome.Kind).To(Equal(pagespeed.OutcomeHTTPError))
			Expect(outcome.StatusCode).To(Equal(http.StatusServiceUnavailable))
			Expect(outcome.Detail).To(ContainSubstring("Backend unavailable"))
			Expect(atomic.LoadInt64(&calls)).To(Equal(int64(3)))
		})
	})

	Context("when the API returns a non-retryable status", func() {
		BeforeEach(func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`not found`))
			}
		})

		It("fails terminally after exactly one call", func() {
			outcome := client.Fetch(context.Background(), "https://example.com", pagespeed.StrategyMobile, limiter)
			Expect(outcome.Success()).To(BeFalse())
			Expect(outcome.Kind).To(Equal(pagespeed.OutcomeHTTPError))
			Expect(outcome.StatusCode).To(Equal(http.StatusNotFound))
			Expect(atomic.LoadInt64(&calls)).To(Equal(int64(1)))
		})
	})

	Context("when the error body carries structured reasons", func() {
		BeforeEach(func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(`{"error":{"message":"Daily limit exceeded","errors":[{"reason":"dailyLimitExceeded"}]}}`))
			}
		})

		It("extracts the message and reasons into the failure detail", func() {
			outcome := client.Fetch(context.Background(), "https://example.com", pagespeed.StrategyMobile, limiter)
			Expect(outcome.Detail).To(ContainSubstring("Daily limit exceeded"))
			Expect(outcome.Detail).To(ContainSubstring("dailyLimitExceeded"))
		})
	})
})
