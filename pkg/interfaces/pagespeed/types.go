package pagespeed

// Strategy is the emulated device profile an audit runs under.
type Strategy string

const (
	StrategyMobile  Strategy = "mobile"
	StrategyDesktop Strategy = "desktop"
)

// Strategies lists every strategy in output order. Mobile sorts before
// desktop in the final result set, so the order here is load-bearing.
var Strategies = []Strategy{StrategyMobile, StrategyDesktop}

// Categories are the Lighthouse categories requested on every run.
var Categories = []string{"performance", "accessibility", "best-practices", "seo"}

// RunPagespeedResponse is the top-level API response. Both substructures
// are optional; either can be absent on partial failures.
type RunPagespeedResponse struct {
	LighthouseResult  *LighthouseResult  `json:"lighthouseResult,omitempty"`
	LoadingExperience *LoadingExperience `json:"loadingExperience,omitempty"`
}

// LighthouseResult holds the synthetic (lab) audit output.
type LighthouseResult struct {
	Categories map[string]LighthouseCategory `json:"categories"`
	Audits     map[string]Audit              `json:"audits"`
}

// LighthouseCategory is one scored category plus the audits it references.
type LighthouseCategory struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Score     *float64   `json:"score"` // 0.0-1.0, nil when not scored
	AuditRefs []AuditRef `json:"auditRefs"`
}

// AuditRef links a category to an audit and carries its grouping tag.
type AuditRef struct {
	ID     string  `json:"id"`
	Weight float64 `json:"weight"`
	Group  string  `json:"group"`
}

// Audit is a single Lighthouse audit result.
type Audit struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Score        *float64      `json:"score"`
	DisplayValue string        `json:"displayValue"`
	NumericValue *float64      `json:"numericValue"`
	Details      *AuditDetails `json:"details,omitempty"`
}

// AuditDetails carries the structured savings estimate where present.
type AuditDetails struct {
	Type             string   `json:"type"`
	OverallSavingsMs *float64 `json:"overallSavingsMs"`
}

// LoadingExperience holds real-user (CrUX) metrics. OriginFallback is set
// when the URL itself had insufficient traffic and origin-level data was
// substituted.
type LoadingExperience struct {
	OverallCategory string                   `json:"overall_category"`
	OriginFallback  bool                     `json:"origin_fallback"`
	Metrics         map[string]LoadingMetric `json:"metrics"`
}

// LoadingMetric is one real-user metric with its percentile and
// distribution buckets.
type LoadingMetric struct {
	Percentile    float64        `json:"percentile"`
	Category      string         `json:"category"`
	Distributions []Distribution `json:"distributions"`
}

// Distribution is one bucket of a real-user metric histogram.
type Distribution struct {
	Min        *float64 `json:"min"`
	Max        *float64 `json:"max"`
	Proportion float64  `json:"proportion"`
}

// apiErrorBody is the JSON error envelope on non-2xx responses.
type apiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Message string `json:"message"`
			Reason  string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}
