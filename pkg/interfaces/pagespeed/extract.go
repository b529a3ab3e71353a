package pagespeed

import (
	"math"
	"sort"
)

// Extraction caps for ranked recommendation lists.
const (
	maxOpportunities = 10
	maxDiagnostics   = 5
)

// Audit ids extracted as lab metrics, with their report labels.
var labMetricIDs = []struct {
	ID    string
	Label string
}{
	{"first-contentful-paint", "FCP"},
	{"largest-contentful-paint", "LCP"},
	{"cumulative-layout-shift", "CLS"},
	{"total-blocking-time", "TBT"},
	{"speed-index", "Speed Index"},
	{"interactive", "TTI"},
}

// Real-user metric keys extracted from loadingExperience, with labels.
var fieldMetricKeys = []struct {
	Key   string
	Label string
}{
	{"FIRST_CONTENTFUL_PAINT_MS", "FCP"},
	{"LARGEST_CONTENTFUL_PAINT_MS", "LCP"},
	{"CUMULATIVE_LAYOUT_SHIFT_SCORE", "CLS"},
	{"INTERACTION_TO_NEXT_PAINT", "INP"},
	{"EXPERIMENTAL_TIME_TO_FIRST_BYTE", "TTFB"},
	{"FIRST_INPUT_DELAY_MS", "FID"},
}

// LabLabels lists the lab metric labels in report order.
func LabLabels() []string {
	labels := make([]string, len(labMetricIDs))
	for i, m := range labMetricIDs {
		labels[i] = m.Label
	}
	return labels
}

// FieldLabels lists the field metric labels in report order.
func FieldLabels() []string {
	labels := make([]string, len(fieldMetricKeys))
	for i, m := range fieldMetricKeys {
		labels[i] = m.Label
	}
	return labels
}

// CategoryScores holds the four category scores rescaled to 0-100.
// A nil field means the category was absent or unscored.
type CategoryScores struct {
	Performance   *int `json:"performance"`
	Accessibility *int `json:"accessibility"`
	BestPractices *int `json:"best_practices"`
	SEO           *int `json:"seo"`
}

// LabMetric is one synthetic timing measurement.
type LabMetric struct {
	Display string   `json:"display"`
	Numeric *float64 `json:"numeric"`
	Score   *int     `json:"score"`
}

// LabMetrics maps metric label (FCP, LCP, ...) to its measurement.
type LabMetrics map[string]LabMetric

// FieldMetric is one real-user metric reading.
type FieldMetric struct {
	Category     string    `json:"category"`
	Percentile   float64   `json:"percentile"`
	Distribution []float64 `json:"distribution,omitempty"`
}

// FieldData holds the real-user metrics for one audit run.
type FieldData struct {
	Overall        string                 `json:"overall"`
	OriginFallback bool                   `json:"origin_fallback"`
	Metrics        map[string]FieldMetric `json:"metrics"`
}

// Recommendation is one opportunity or diagnostic audit result.
// SavingsMs is zero for diagnostics.
type Recommendation struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	SavingsMs    float64  `json:"savings_ms"`
	DisplayValue string   `json:"display_value"`
	Score        *float64 `json:"score"`
}

// ExtractScores reads the four category scores, rescaling the API's 0.0-1.0
// fractions to integer 0-100. Missing or unscored categories come back nil.
func ExtractScores(resp *RunPagespeedResponse) CategoryScores {
	var scores CategoryScores
	if resp == nil || resp.LighthouseResult == nil {
		return scores
	}

	scores.Performance = categoryScore(resp.LighthouseResult.Categories, "performance")
	scores.Accessibility = categoryScore(resp.LighthouseResult.Categories, "accessibility")
	scores.BestPractices = categoryScore(resp.LighthouseResult.Categories, "best-practices")
	scores.SEO = categoryScore(resp.LighthouseResult.Categories, "seo")
	return scores
}

func categoryScore(categories map[string]LighthouseCategory, name string) *int {
	cat, ok := categories[name]
	if !ok || cat.Score == nil {
		return nil
	}
	score := int(*cat.Score * 100)
	return &score
}

// ExtractLabMetrics reads the six fixed lab audits. Absent audits are
// simply left out of the returned map.
func ExtractLabMetrics(resp *RunPagespeedResponse) LabMetrics {
	metrics := make(LabMetrics)
	if resp == nil || resp.LighthouseResult == nil {
		return metrics
	}

	for _, m := range labMetricIDs {
		audit, ok := resp.LighthouseResult.Audits[m.ID]
		if !ok {
			continue
		}
		metric := LabMetric{
			Display: audit.DisplayValue,
			Numeric: audit.NumericValue,
		}
		if audit.Score != nil {
			score := int(*audit.Score * 100)
			metric.Score = &score
		}
		metrics[m.Label] = metric
	}
	return metrics
}

// ExtractFieldData reads the real-user (CrUX) section. Returns nil when
// the response carries no loadingExperience at all. Distribution
// percentages are computed only when exactly three buckets are present.
func ExtractFieldData(resp *RunPagespeedResponse) *FieldData {
	if resp == nil || resp.LoadingExperience == nil {
		return nil
	}

	le := resp.LoadingExperience
	data := &FieldData{
		Overall:        le.OverallCategory,
		OriginFallback: le.OriginFallback,
		Metrics:        make(map[string]FieldMetric),
	}

	for _, m := range fieldMetricKeys {
		raw, ok := le.Metrics[m.Key]
		if !ok {
			continue
		}
		metric := FieldMetric{
			Category:   raw.Category,
			Percentile: raw.Percentile,
		}
		if len(raw.Distributions) == 3 {
			metric.Distribution = make([]float64, 3)
			for i, d := range raw.Distributions {
				metric.Distribution[i] = math.Round(d.Proportion*1000) / 10
			}
		}
		data.Metrics[m.Label] = metric
	}
	return data
}

// ExtractOpportunities collects the performance category's audit refs
// tagged as load opportunities that are still actionable (score below a
// perfect 1.0), sorted by estimated savings, largest first.
func ExtractOpportunities(resp *RunPagespeedResponse) []Recommendation {
	recs := collectRecommendations(resp, "load-opportunities", true)
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].SavingsMs > recs[j].SavingsMs
	})
	if len(recs) > maxOpportunities {
		recs = recs[:maxOpportunities]
	}
	return recs
}

// ExtractDiagnostics collects diagnostic audit refs, in category order.
func ExtractDiagnostics(resp *RunPagespeedResponse) []Recommendation {
	recs := collectRecommendations(resp, "diagnostics", false)
	if len(recs) > maxDiagnostics {
		recs = recs[:maxDiagnostics]
	}
	return recs
}

func collectRecommendations(resp *RunPagespeedResponse, group string, withSavings bool) []Recommendation {
	if resp == nil || resp.LighthouseResult == nil {
		return nil
	}
	perf, ok := resp.LighthouseResult.Categories["performance"]
	if !ok {
		return nil
	}

	var recs []Recommendation
	for _, ref := range perf.AuditRefs {
		if ref.Group != group {
			continue
		}
		audit, ok := resp.LighthouseResult.Audits[ref.ID]
		if !ok {
			continue
		}
		// A perfect score means nothing left to act on.
		if audit.Score != nil && *audit.Score >= 1.0 {
			continue
		}

		rec := Recommendation{
			ID:           audit.ID,
			Title:        audit.Title,
			Description:  audit.Description,
			DisplayValue: audit.DisplayValue,
			Score:        audit.Score,
		}
		if withSavings {
			switch {
			case audit.Details != nil && audit.Details.OverallSavingsMs != nil:
				rec.SavingsMs = *audit.Details.OverallSavingsMs
			case audit.NumericValue != nil:
				rec.SavingsMs = *audit.NumericValue
			}
		}
		recs = append(recs, rec)
	}
	return recs
}
