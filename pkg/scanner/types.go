package scanner

import (
	"time"

	"github.com/kerry883/webperformancescanner/pkg/interfaces/pagespeed"
)

// Job is one (url, strategy) audit to run. The full job set for a scan is
// the Cartesian product of input URLs and strategies.
type Job struct {
	// URL is the fully-qualified page URL to audit
	URL string `json:"url"`
	// Strategy is the device profile for this audit
	Strategy pagespeed.Strategy `json:"strategy"`
	// InputIndex is the URL's position in the input list, used to restore
	// a deterministic output order after the pool drains
	InputIndex int `json:"inputIndex"`
}

// Result is the unit emitted to downstream reporting, one per job. On
// total fetch failure every metric field is nil/empty but the record is
// still emitted; failures are visible, not dropped.
type Result struct {
	// URL is the audited page URL
	URL string `json:"url"`
	// Strategy is the device profile the audit ran under
	Strategy pagespeed.Strategy `json:"strategy"`
	// InputIndex is the URL's position in the input list
	InputIndex int `json:"inputIndex"`
	// Scores holds the four category scores (0-100, nil when missing)
	Scores pagespeed.CategoryScores `json:"scores"`
	// LabMetrics maps lab metric labels to synthetic measurements
	LabMetrics pagespeed.LabMetrics `json:"labMetrics,omitempty"`
	// FieldData holds real-user metrics, nil when the URL has no CrUX data
	FieldData *pagespeed.FieldData `json:"fieldData,omitempty"`
	// Opportunities are actionable improvements ranked by estimated savings
	Opportunities []pagespeed.Recommendation `json:"opportunities,omitempty"`
	// Diagnostics are informational findings with no savings estimate
	Diagnostics []pagespeed.Recommendation `json:"diagnostics,omitempty"`
	// FailureKind classifies a terminal fetch failure, empty on success
	FailureKind pagespeed.OutcomeKind `json:"failureKind,omitempty"`
	// FailureDetail carries the upstream error detail from the last attempt
	FailureDetail string `json:"failureDetail,omitempty"`
}

// Failed reports whether this record represents a terminal fetch failure.
func (r Result) Failed() bool {
	return r.FailureKind != "" && r.FailureKind != pagespeed.OutcomeSuccess
}

// ScanStatus represents the current state of a running scan.
type ScanStatus struct {
	// TotalJobs is the number of (url, strategy) jobs in the scan
	TotalJobs int
	// CompletedJobs is the number of jobs finished so far, failures included
	CompletedJobs int
	// FailedJobs is the number of jobs that ended in a terminal failure
	FailedJobs int
	// StartTime is when the scan was dispatched
	StartTime time.Time
}
