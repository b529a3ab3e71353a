package scanner_test

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kerry883/webperformancescanner/pkg/scanner"
)

var _ = Describe("TokenBucket", func() {
	Context("with an injected clock", func() {
		var (
			current time.Time
			slept   []time.Duration
			bucket  *scanner.TokenBucket
		)

		BeforeEach(func() {
			current = time.Unix(0, 0)
			slept = nil
			bucket = scanner.NewTokenBucket(2,
				scanner.WithClock(
					func() time.Time { return current },
					func(d time.Duration) {
						slept = append(slept, d)
						current = current.Add(d)
					},
				),
			)
		})

		It("allows an initial burst up to capacity without sleeping", func() {
			bucket.Acquire()
			bucket.Acquire()
			Expect(slept).To(BeEmpty())
			Expect(bucket.Tokens()).To(BeNumerically("~", 0, 1e-9))
		})

		It("sleeps in 1/rate intervals once the bucket is drained", func() {
			bucket.Acquire()
			bucket.Acquire()
			bucket.Acquire()
			Expect(slept).NotTo(BeEmpty())
			Expect(slept[0]).To(Equal(500 * time.Millisecond))
		})

		It("never permits more debits than elapsed*rate plus the burst capacity", func() {
			const acquires = 10
			start := current
			for i := 0; i < acquires; i++ {
				bucket.Acquire()
			}
			elapsed := current.Sub(start).Seconds()
			Expect(float64(acquires)).To(BeNumerically("<=", elapsed*2+2))
			// Draining capacity 2 then refilling 8 tokens at 2/s takes 4s.
			Expect(elapsed).To(BeNumerically("~", 4.0, 1e-9))
		})
	})

	Context("with concurrent callers on the real clock", func() {
		It("enforces the long-run average rate across goroutines", func() {
			// The initial burst of 200 is consumed instantly; the remaining
			// 100 debits must wait for refill at 200/s, so roughly half a
			// second in total.
			bucket := scanner.NewTokenBucket(200)
			start := time.Now()

			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < 30; j++ {
						bucket.Acquire()
					}
				}()
			}
			wg.Wait()

			Expect(time.Since(start)).To(BeNumerically(">=", 250*time.Millisecond))
		})
	})
})
