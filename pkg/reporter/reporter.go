// Package reporter aggregates scan results and renders the multi-section
// terminal report and CSV export.
package reporter

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"github.com/kerry883/webperformancescanner/pkg/interfaces/pagespeed"
	"github.com/kerry883/webperformancescanner/pkg/scanner"
)

// Score thresholds matching Lighthouse's rating bands.
const (
	goodThreshold = 90
	okThreshold   = 50
)

// ScoreColumns are the category columns, in report order.
var ScoreColumns = []string{"performance", "accessibility", "best-practices", "seo"}

// StrategyAverages holds mean category scores for one strategy grouping.
// A nil field means no record in the group carried that score.
type StrategyAverages struct {
	Performance   *float64
	Accessibility *float64
	BestPractices *float64
	SEO           *float64
}

func (a StrategyAverages) get(column string) *float64 {
	switch column {
	case "performance":
		return a.Performance
	case "accessibility":
		return a.Accessibility
	case "best-practices":
		return a.BestPractices
	case "seo":
		return a.SEO
	}
	return nil
}

// Averages groups mean scores by strategy, plus a combined overall row.
type Averages struct {
	Mobile  StrategyAverages
	Desktop StrategyAverages
	All     StrategyAverages
}

// ComputeAverages computes per-category mean scores for each strategy and
// for the whole result set, rounded to one decimal.
func ComputeAverages(results []scanner.Result) Averages {
	return Averages{
		Mobile:  averagesFor(results, pagespeed.StrategyMobile),
		Desktop: averagesFor(results, pagespeed.StrategyDesktop),
		All:     averagesFor(results, ""),
	}
}

func averagesFor(results []scanner.Result, strategy pagespeed.Strategy) StrategyAverages {
	var avg StrategyAverages
	avg.Performance = meanScore(results, strategy, func(s pagespeed.CategoryScores) *int { return s.Performance })
	avg.Accessibility = meanScore(results, strategy, func(s pagespeed.CategoryScores) *int { return s.Accessibility })
	avg.BestPractices = meanScore(results, strategy, func(s pagespeed.CategoryScores) *int { return s.BestPractices })
	avg.SEO = meanScore(results, strategy, func(s pagespeed.CategoryScores) *int { return s.SEO })
	return avg
}

func meanScore(results []scanner.Result, strategy pagespeed.Strategy, pick func(pagespeed.CategoryScores) *int) *float64 {
	var sum float64
	var n int
	for _, r := range results {
		if strategy != "" && r.Strategy != strategy {
			continue
		}
		if v := pick(r.Scores); v != nil {
			sum += float64(*v)
			n++
		}
	}
	if n == 0 {
		return nil
	}
	mean := math.Round(sum/float64(n)*10) / 10
	return &mean
}

// Reporter renders scan results to a terminal and exports them to CSV.
type Reporter struct {
	out    io.Writer
	logger *logrus.Logger
	now    func() time.Time
}

// ReporterOption allows for customization of the reporter.
type ReporterOption func(*Reporter)

// WithOutput redirects report rendering, used by tests.
func WithOutput(w io.Writer) ReporterOption {
	return func(r *Reporter) {
		r.out = w
	}
}

// New creates a Reporter writing to stdout.
func New(logger *logrus.Logger, opts ...ReporterOption) *Reporter {
	r := &Reporter{
		out:    os.Stdout,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PrintFullReport renders the complete multi-section report: individual
// scores, per-strategy averages, lab metrics, field data, aggregated
// recommendations, and the improvement summary.
func (r *Reporter) PrintFullReport(results []scanner.Result, averages Averages) {
	r.printScoresTable(results)
	r.printAveragesTables(results, averages)
	r.printLabMetricsTable(results)
	r.printFieldDataTable(results)
	r.printRecommendations(results)
	r.printSummary(results, averages)
}

// ── Section 1: individual category scores ─────────────────────────────────

func (r *Reporter) printScoresTable(results []scanner.Result) {
	r.rule("1 · Lighthouse Category Scores")

	w := tabwriter.NewWriter(r.out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tURL\tStrategy\tPerf\tA11y\tBP\tSEO")
	for i, res := range results {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			i+1,
			res.URL,
			capitalize(string(res.Strategy)),
			formatScore(res.Scores.Performance),
			formatScore(res.Scores.Accessibility),
			formatScore(res.Scores.BestPractices),
			formatScore(res.Scores.SEO),
		)
	}
	w.Flush()
}

// ── Section 2: per-strategy averages ──────────────────────────────────────

func (r *Reporter) printAveragesTables(results []scanner.Result, averages Averages) {
	r.rule("2 · Average Scores by Strategy")

	groups := []struct {
		label string
		avg   StrategyAverages
		count int
	}{
		{"MOBILE", averages.Mobile, countByStrategy(results, pagespeed.StrategyMobile)},
		{"DESKTOP", averages.Desktop, countByStrategy(results, pagespeed.StrategyDesktop)},
		{"OVERALL (mobile + desktop)", averages.All, len(results)},
	}

	for _, g := range groups {
		fmt.Fprintf(r.out, "%s  (%d records)\n", color.New(color.Bold).Sprint(g.label), g.count)
		w := tabwriter.NewWriter(r.out, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "Category\tAverage\tRating")
		for _, col := range ScoreColumns {
			val := g.avg.get(col)
			fmt.Fprintf(w, "%s\t%s\t%s\n", columnTitle(col), formatAverage(val), ratingText(val))
		}
		w.Flush()
		fmt.Fprintln(r.out)
	}
}

// ── Section 3: lab metrics ────────────────────────────────────────────────

func (r *Reporter) printLabMetricsTable(results []scanner.Result) {
	r.rule("3 · Core Web Vitals (Lab Data)")

	labels := pagespeed.LabLabels()
	w := tabwriter.NewWriter(r.out, 2, 4, 2, ' ', 0)
	fmt.Fprintf(w, "URL\tStrategy\t%s\n", strings.Join(labels, "\t"))
	for _, res := range results {
		cells := make([]string, len(labels))
		for i, label := range labels {
			metric, ok := res.LabMetrics[label]
			if !ok || metric.Display == "" {
				cells[i] = dim("N/A")
				continue
			}
			cells[i] = scoreColor(metric.Score).Sprint(metric.Display)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", res.URL, capitalize(string(res.Strategy)), strings.Join(cells, "\t"))
	}
	w.Flush()
}

// ── Section 4: field data ─────────────────────────────────────────────────

func (r *Reporter) printFieldDataTable(results []scanner.Result) {
	r.rule("4 · Field Data (Chrome User Experience Report)")

	hasField := false
	for _, res := range results {
		if res.FieldData != nil && res.FieldData.Overall != "" {
			hasField = true
			break
		}
	}
	if !hasField {
		fmt.Fprintln(r.out, dim("No field (CrUX) data available for the scanned URLs. "+
			"Field data requires sufficient real-user traffic recorded by Chrome."))
		return
	}

	labels := pagespeed.FieldLabels()
	w := tabwriter.NewWriter(r.out, 2, 4, 2, ' ', 0)
	fmt.Fprintf(w, "URL\tStrategy\tOverall\t%s\n", strings.Join(labels, "\t"))
	originFallback := false
	for _, res := range results {
		cells := make([]string, len(labels))
		overall := dim("N/A")
		if res.FieldData != nil {
			if res.FieldData.OriginFallback {
				originFallback = true
			}
			if res.FieldData.Overall != "" {
				overall = fieldCategoryColor(res.FieldData.Overall).Sprint(res.FieldData.Overall)
			}
			for i, label := range labels {
				metric, ok := res.FieldData.Metrics[label]
				if !ok || metric.Category == "" {
					cells[i] = dim("N/A")
					continue
				}
				display := formatMs(metric.Percentile)
				if label == "CLS" {
					display = fmt.Sprintf("%g", metric.Percentile)
				}
				cells[i] = fieldCategoryColor(metric.Category).Sprintf("%s (%s)", display, metric.Category)
			}
		} else {
			for i := range labels {
				cells[i] = dim("N/A")
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", res.URL, capitalize(string(res.Strategy)), overall, strings.Join(cells, "\t"))
	}
	w.Flush()
	if originFallback {
		fmt.Fprintln(r.out, dim("* some rows use origin-level data: the exact URL had insufficient traffic."))
	}
}

// ── Section 5: aggregated recommendations ─────────────────────────────────

func (r *Reporter) printRecommendations(results []scanner.Result) {
	r.rule("5 · Top Recommendations from Google PageSpeed")

	type tally struct {
		title   string
		count   int
		savings []float64
	}

	aggregate := func(pick func(scanner.Result) []pagespeed.Recommendation) []*tally {
		byTitle := make(map[string]*tally)
		var order []string
		for _, res := range results {
			for _, rec := range pick(res) {
				t, ok := byTitle[rec.Title]
				if !ok {
					t = &tally{title: rec.Title}
					byTitle[rec.Title] = t
					order = append(order, rec.Title)
				}
				t.count++
				t.savings = append(t.savings, rec.SavingsMs)
			}
		}
		tallies := make([]*tally, len(order))
		for i, title := range order {
			tallies[i] = byTitle[title]
		}
		sort.SliceStable(tallies, func(i, j int) bool { return tallies[i].count > tallies[j].count })
		return tallies
	}

	opportunities := aggregate(func(res scanner.Result) []pagespeed.Recommendation { return res.Opportunities })
	if len(opportunities) == 0 {
		fmt.Fprintln(r.out, color.GreenString("No failing opportunities — great job!"))
	} else {
		if len(opportunities) > 15 {
			opportunities = opportunities[:15]
		}
		fmt.Fprintln(r.out, color.New(color.Bold).Sprint("Opportunities (Performance Improvements)"))
		w := tabwriter.NewWriter(r.out, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "#\tRecommendation\tAffected Records\tAvg Savings")
		for i, t := range opportunities {
			var sum float64
			for _, s := range t.savings {
				sum += s
			}
			avg := sum / float64(len(t.savings))
			savingsStr := "—"
			if avg > 0 {
				savingsStr = color.YellowString(formatMs(avg))
			}
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", i+1, t.title, t.count, savingsStr)
		}
		w.Flush()
	}
	fmt.Fprintln(r.out)

	diagnostics := aggregate(func(res scanner.Result) []pagespeed.Recommendation { return res.Diagnostics })
	if len(diagnostics) > 0 {
		if len(diagnostics) > 10 {
			diagnostics = diagnostics[:10]
		}
		fmt.Fprintln(r.out, color.New(color.Bold).Sprint("Diagnostics (Informational Issues)"))
		w := tabwriter.NewWriter(r.out, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "#\tDiagnostic\tAffected Records")
		for i, t := range diagnostics {
			fmt.Fprintf(w, "%d\t%s\t%d\n", i+1, t.title, t.count)
		}
		w.Flush()
	}
}

// ── helpers ───────────────────────────────────────────────────────────────

func (r *Reporter) rule(title string) {
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, color.CyanString("── %s %s", title, strings.Repeat("─", max(0, 60-len(title)))))
	fmt.Fprintln(r.out)
}

func countByStrategy(results []scanner.Result, strategy pagespeed.Strategy) int {
	n := 0
	for _, r := range results {
		if r.Strategy == strategy {
			n++
		}
	}
	return n
}

func scoreColor(score *int) *color.Color {
	if score == nil {
		return color.New(color.Faint)
	}
	switch {
	case *score >= goodThreshold:
		return color.New(color.FgGreen)
	case *score >= okThreshold:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}

func formatScore(score *int) string {
	if score == nil {
		return dim("N/A")
	}
	return scoreColor(score).Sprintf("%d", *score)
}

func formatAverage(avg *float64) string {
	if avg == nil {
		return dim("N/A")
	}
	rounded := int(math.Round(*avg))
	return scoreColor(&rounded).Sprintf("%.1f", *avg)
}

func ratingText(avg *float64) string {
	if avg == nil {
		return dim("N/A")
	}
	switch {
	case *avg >= goodThreshold:
		return color.New(color.FgGreen, color.Bold).Sprint("Good")
	case *avg >= okThreshold:
		return color.New(color.FgYellow, color.Bold).Sprint("Needs Improvement")
	default:
		return color.New(color.FgRed, color.Bold).Sprint("Poor")
	}
}

func fieldCategoryColor(category string) *color.Color {
	switch strings.ToUpper(category) {
	case "FAST":
		return color.New(color.FgGreen)
	case "AVERAGE":
		return color.New(color.FgYellow)
	case "":
		return color.New(color.Faint)
	default:
		return color.New(color.FgRed)
	}
}

// formatMs renders a millisecond value, switching to seconds at 1000.
func formatMs(value float64) string {
	if value >= 1000 {
		return fmt.Sprintf("%.1f s", value/1000)
	}
	return fmt.Sprintf("%.0f ms", value)
}

func columnTitle(col string) string {
	parts := strings.Split(col, "-")
	for i, p := range parts {
		parts[i] = capitalize(p)
	}
	return strings.Join(parts, " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func dim(s string) string {
	return color.New(color.Faint).Sprint(s)
}
