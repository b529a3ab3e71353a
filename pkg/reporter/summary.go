package reporter

import (
	"fmt"
	"sort"

	"github.com/fatih/color"

	"github.com/kerry883/webperformancescanner/pkg/interfaces/pagespeed"
	"github.com/kerry883/webperformancescanner/pkg/scanner"
)

// printSummary renders the actionable improvement summary: weak
// categories with targeted suggestions, the worst performing records, and
// the mobile-vs-desktop performance gap when it is wide enough to matter.
func (r *Reporter) printSummary(results []scanner.Result, averages Averages) {
	r.rule("6 · Performance Improvement Summary")

	uniqueURLs := make(map[string]struct{})
	for _, res := range results {
		uniqueURLs[res.URL] = struct{}{}
	}
	fmt.Fprintf(r.out, "Scan completed: %s\n", r.now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(r.out, "Routes scanned: %d  |  Total tests: %d\n\n", len(uniqueURLs), len(results))

	for _, g := range []struct {
		label string
		avg   StrategyAverages
	}{
		{"MOBILE", averages.Mobile},
		{"DESKTOP", averages.Desktop},
	} {
		fmt.Fprintln(r.out, color.New(color.Bold, color.Underline).Sprint(g.label))
		for _, col := range ScoreColumns {
			val := g.avg.get(col)
			if val == nil {
				continue
			}
			switch {
			case *val >= goodThreshold:
				fmt.Fprintf(r.out, "  %s %s: %.1f — Good\n", color.GreenString("✓"), columnTitle(col), *val)
			case *val >= okThreshold:
				fmt.Fprintf(r.out, "  %s %s: %.1f — Needs Improvement\n", color.YellowString("▲"), columnTitle(col), *val)
			default:
				fmt.Fprintf(r.out, "  %s %s: %.1f — Poor\n", color.RedString("✗"), columnTitle(col), *val)
			}
		}
		fmt.Fprintln(r.out)
	}

	r.printWeakAreas(results, averages)
	r.printWorstRecords(results)
	r.printStrategyGap(averages)
}

func (r *Reporter) printWeakAreas(results []scanner.Result, averages Averages) {
	type weak struct {
		column string
		value  float64
	}
	var weakAreas []weak
	for _, col := range ScoreColumns {
		if val := averages.All.get(col); val != nil && *val < goodThreshold {
			weakAreas = append(weakAreas, weak{column: col, value: *val})
		}
	}
	sort.Slice(weakAreas, func(i, j int) bool { return weakAreas[i].value < weakAreas[j].value })

	if len(weakAreas) == 0 {
		fmt.Fprintln(r.out, color.New(color.FgGreen, color.Bold).Sprint(
			"All categories score 90+! Your web application is performing well."))
		return
	}

	fmt.Fprintln(r.out, color.New(color.Bold, color.Underline).Sprint("PRIORITY IMPROVEMENT AREAS"))
	fmt.Fprintln(r.out)
	for _, area := range weakAreas {
		fmt.Fprintf(r.out, "  %s (avg %.1f):\n", color.New(color.Bold).Sprint(columnTitle(area.column)), area.value)
		for _, s := range suggestionsFor(area.column, area.value, results) {
			fmt.Fprintf(r.out, "    → %s\n", s)
		}
		fmt.Fprintln(r.out)
	}
}

func (r *Reporter) printWorstRecords(results []scanner.Result) {
	var scored []scanner.Result
	for _, res := range results {
		if res.Scores.Performance != nil {
			scored = append(scored, res)
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return *scored[i].Scores.Performance < *scored[j].Scores.Performance
	})
	if len(scored) > 5 {
		scored = scored[:5]
	}
	if len(scored) == 0 || *scored[0].Scores.Performance >= okThreshold {
		return
	}

	fmt.Fprintln(r.out, color.New(color.Bold, color.Underline).Sprint("WORST PERFORMING ROUTES"))
	fmt.Fprintln(r.out)
	for _, res := range scored {
		fmt.Fprintf(r.out, "  %s %s (%s) — Performance: %d\n",
			color.RedString("•"), res.URL, res.Strategy, *res.Scores.Performance)
	}
	fmt.Fprintln(r.out)
}

func (r *Reporter) printStrategyGap(averages Averages) {
	mobile := averages.Mobile.Performance
	desktop := averages.Desktop.Performance
	if mobile == nil || desktop == nil {
		return
	}
	gap := *desktop - *mobile
	if gap <= 15 {
		return
	}

	fmt.Fprintln(r.out, color.New(color.Bold, color.Underline).Sprint("MOBILE vs DESKTOP GAP"))
	fmt.Fprintln(r.out)
	fmt.Fprintf(r.out, "  Desktop performance (%.1f) is %s than mobile (%.1f).\n",
		*desktop, color.New(color.Bold).Sprintf("%.0f points higher", gap), *mobile)
	fmt.Fprintln(r.out, "  → Prioritise mobile optimisation: reduce JS payload, optimise images"+
		" for smaller screens, and test on throttled connections.")
	fmt.Fprintln(r.out)
}

// suggestionsFor returns targeted remediation advice for a weak category,
// enriched with lab-metric-specific pointers for performance.
func suggestionsFor(category string, avgScore float64, results []scanner.Result) []string {
	var suggestions []string

	switch category {
	case "performance":
		if avgScore < okThreshold {
			suggestions = append(suggestions,
				"Critical: Performance is in the red zone. Focus on reducing JavaScript "+
					"bundle size and eliminating render-blocking resources.")
		}
		suggestions = append(suggestions,
			"Optimise and compress images (use WebP/AVIF formats).",
			"Minify CSS, JavaScript, and HTML.",
			"Enable text compression (Gzip/Brotli) on the server.",
			"Implement lazy loading for below-the-fold images and iframes.",
			"Reduce server response time (TTFB) — consider a CDN.",
			"Defer or async non-critical JavaScript.",
		)
		suggestions = append(suggestions, labSuggestions(results)...)
	case "accessibility":
		suggestions = append(suggestions,
			"Add alt text to all images.",
			"Ensure sufficient colour contrast ratios (WCAG AA).",
			"Use semantic HTML elements (<nav>, <main>, <header>, etc.).",
			"Ensure all interactive elements are keyboard accessible.",
			"Ensure form inputs have associated <label> elements.",
		)
	case "best-practices":
		suggestions = append(suggestions,
			"Serve all assets over HTTPS (no mixed content).",
			"Avoid deprecated APIs and browser features.",
			"Ensure correct image aspect ratios to prevent layout shifts.",
			"Keep JavaScript libraries up to date to patch vulnerabilities.",
		)
	case "seo":
		suggestions = append(suggestions,
			"Ensure every page has a unique <title> and <meta description>.",
			"Use a mobile-friendly responsive design.",
			"Add structured data (Schema.org JSON-LD) where applicable.",
			"Create and submit an XML sitemap.",
		)
	}

	return suggestions
}

// labSuggestions inspects the first record carrying lab metrics for
// specific poor vitals worth calling out.
func labSuggestions(results []scanner.Result) []string {
	var suggestions []string
	for _, res := range results {
		if len(res.LabMetrics) == 0 {
			continue
		}
		if poorLabScore(res.LabMetrics, "LCP") {
			suggestions = append(suggestions,
				"LCP is poor — optimise the largest element (hero image, heading font, or large text block).")
		}
		if poorLabScore(res.LabMetrics, "CLS") {
			suggestions = append(suggestions,
				"CLS is poor — set explicit width/height on images and embeds, avoid injecting content above the fold.")
		}
		if poorLabScore(res.LabMetrics, "TBT") {
			suggestions = append(suggestions,
				"TBT is poor — break up long JavaScript tasks, use code splitting, and defer heavy computations.")
		}
		// One record is enough to spot the trend.
		break
	}
	return suggestions
}

func poorLabScore(metrics pagespeed.LabMetrics, label string) bool {
	m, ok := metrics[label]
	return ok && m.Score != nil && *m.Score < okThreshold
}
