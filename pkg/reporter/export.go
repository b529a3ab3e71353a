package reporter

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/kerry883/webperformancescanner/pkg/interfaces/pagespeed"
	"github.com/kerry883/webperformancescanner/pkg/scanner"
)

// ExportCSV writes the flattened result set to a CSV file: one row per
// record (scores, lab metrics, field data, top opportunity titles), then
// AVERAGE_MOBILE, AVERAGE_DESKTOP, and AVERAGE_OVERALL rows.
func (r *Reporter) ExportCSV(results []scanner.Result, averages Averages, outputPath string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("could not create %q: %w", outputPath, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	labLabels := pagespeed.LabLabels()
	fieldLabels := pagespeed.FieldLabels()

	header := []string{"url", "strategy"}
	header = append(header, ScoreColumns...)
	for _, label := range labLabels {
		header = append(header, "lab_"+label, "lab_"+label+"_score")
	}
	header = append(header, "field_overall")
	for _, label := range fieldLabels {
		header = append(header, "field_"+label+"_category", "field_"+label+"_percentile")
	}
	header = append(header, "top_opportunities")
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, res := range results {
		row := []string{res.URL, string(res.Strategy)}
		row = append(row,
			intCell(res.Scores.Performance),
			intCell(res.Scores.Accessibility),
			intCell(res.Scores.BestPractices),
			intCell(res.Scores.SEO),
		)
		for _, label := range labLabels {
			metric, ok := res.LabMetrics[label]
			if !ok {
				row = append(row, "", "")
				continue
			}
			row = append(row, metric.Display, intCell(metric.Score))
		}
		if res.FieldData != nil {
			row = append(row, res.FieldData.Overall)
			for _, label := range fieldLabels {
				metric, ok := res.FieldData.Metrics[label]
				if !ok {
					row = append(row, "", "")
					continue
				}
				row = append(row, metric.Category, strconv.FormatFloat(metric.Percentile, 'f', -1, 64))
			}
		} else {
			row = append(row, "")
			for range fieldLabels {
				row = append(row, "", "")
			}
		}
		row = append(row, topOpportunityTitles(res.Opportunities))
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	for _, g := range []struct {
		label    string
		strategy string
		avg      StrategyAverages
	}{
		{"AVERAGE_MOBILE", "mobile", averages.Mobile},
		{"AVERAGE_DESKTOP", "desktop", averages.Desktop},
		{"AVERAGE_OVERALL", "all", averages.All},
	} {
		row := make([]string, len(header))
		row[0] = g.label
		row[1] = g.strategy
		row[2] = floatCell(g.avg.Performance)
		row[3] = floatCell(g.avg.Accessibility)
		row[4] = floatCell(g.avg.BestPractices)
		row[5] = floatCell(g.avg.SEO)
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV average row: %w", err)
		}
	}

	r.logger.WithFields(logrus.Fields{
		"output":  outputPath,
		"records": len(results),
	}).Info("Full results exported")

	return nil
}

func topOpportunityTitles(opportunities []pagespeed.Recommendation) string {
	if len(opportunities) > 5 {
		opportunities = opportunities[:5]
	}
	titles := make([]string, len(opportunities))
	for i, o := range opportunities {
		titles[i] = o.Title
	}
	return strings.Join(titles, "; ")
}

func intCell(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func floatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 1, 64)
}
