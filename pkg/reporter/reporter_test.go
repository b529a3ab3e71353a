package reporter_test

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/kerry883/webperformancescanner/pkg/interfaces/pagespeed"
	"github.com/kerry883/webperformancescanner/pkg/reporter"
	"github.com/kerry883/webperformancescanner/pkg/scanner"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func iptr(v int) *int { return &v }

func sampleResults() []scanner.Result {
	return []scanner.Result{
		{
			URL:      "https://example.com/",
			Strategy: pagespeed.StrategyMobile,
			Scores: pagespeed.CategoryScores{
				Performance:   iptr(40),
				Accessibility: iptr(90),
				BestPractices: iptr(80),
				SEO:           iptr(100),
			},
			LabMetrics: pagespeed.LabMetrics{
				"LCP": {Display: "4.1 s", Score: iptr(30)},
			},
			Opportunities: []pagespeed.Recommendation{
				{ID: "unused-javascript", Title: "Reduce unused JavaScript", SavingsMs: 900},
			},
		},
		{
			URL:      "https://example.com/",
			Strategy: pagespeed.StrategyDesktop,
			Scores: pagespeed.CategoryScores{
				Performance:   iptr(80),
				Accessibility: iptr(90),
				BestPractices: iptr(80),
				SEO:           iptr(100),
			},
		},
		{
			URL:           "https://broken.example.com/",
			Strategy:      pagespeed.StrategyMobile,
			FailureKind:   pagespeed.OutcomeHTTPError,
			FailureDetail: "not found",
		},
	}
}

var _ = Describe("ComputeAverages", func() {
	It("computes per-strategy means over non-nil scores only", func() {
		averages := reporter.ComputeAverages(sampleResults())

		Expect(averages.Mobile.Performance).NotTo(BeNil())
		Expect(*averages.Mobile.Performance).To(Equal(40.0))
		Expect(*averages.Desktop.Performance).To(Equal(80.0))
		Expect(*averages.All.Performance).To(Equal(60.0))
		Expect(*averages.All.SEO).To(Equal(100.0))
	})

	It("yields nil when no record in the group carries a score", func() {
		averages := reporter.ComputeAverages([]scanner.Result{
			{URL: "https://x.example.com", Strategy: pagespeed.StrategyMobile},
		})
		Expect(averages.Mobile.Performance).To(BeNil())
		Expect(averages.All.SEO).To(BeNil())
	})
})

var _ = Describe("PrintFullReport", func() {
	It("renders every section without panicking on degraded records", func() {
		var buf bytes.Buffer
		rep := reporter.New(quietLogger(), reporter.WithOutput(&buf))

		rep.PrintFullReport(sampleResults(), reporter.ComputeAverages(sampleResults()))

		out := buf.String()
		Expect(out).To(ContainSubstring("Lighthouse Category Scores"))
		Expect(out).To(ContainSubstring("Average Scores by Strategy"))
		Expect(out).To(ContainSubstring("Core Web Vitals"))
		Expect(out).To(ContainSubstring("Reduce unused JavaScript"))
		Expect(out).To(ContainSubstring("WORST PERFORMING ROUTES"))
	})
})

var _ = Describe("ExportCSV", func() {
	It("writes one row per record plus three average rows", func() {
		results := sampleResults()
		averages := reporter.ComputeAverages(results)
		path := filepath.Join(GinkgoT().TempDir(), "results.csv")

		rep := reporter.New(quietLogger(), reporter.WithOutput(io.Discard))
		Expect(rep.ExportCSV(results, averages, path)).To(Succeed())

		f, err := os.Open(path)
		Expect(err).NotTo(HaveOccurred())
		defer f.Close()

		rows, err := csv.NewReader(f).ReadAll()
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(1 + len(results) + 3))

		Expect(rows[0][0]).To(Equal("url"))
		Expect(rows[1][0]).To(Equal("https://example.com/"))
		Expect(rows[len(rows)-1][0]).To(Equal("AVERAGE_OVERALL"))

		// Failed record keeps its row with empty score cells.
		Expect(rows[3][0]).To(Equal("https://broken.example.com/"))
		Expect(rows[3][2]).To(BeEmpty())
	})
})
