// Package types - run issue report
package types

// Severity grades a reported issue
type Severity string

const (
	// SeverityError blocks the affected record from proceeding
	SeverityError Severity = "ERROR"

	// SeverityWarning lets the record proceed but flags it
	SeverityWarning Severity = "WARNING"

	// SeverityInfo is context only
	SeverityInfo Severity = "INFO"
)

// Stage names the pipeline stage that raised an issue
type Stage string

const (
	StageExtraction Stage = "extraction"
	StageValidation Stage = "validation"
	StageDedup      Stage = "deduplication"
	StageMapping    Stage = "mapping"
	StageMatching   Stage = "matching"
	StageCosting    Stage = "costing"
	StageTransfer   Stage = "transfer"
	StageExport     Stage = "export"
)

// Issue is one structurally-represented defect, warning, or note.
// Operators audit data quality from these, so they are first-class
// outputs rather than log lines.
type Issue struct {
	// Stage is where the issue was raised
	Stage Stage `json:"stage"`

	// Severity grades the issue
	Severity Severity `json:"severity"`

	// Message describes the issue
	Message string `json:"message"`

	// Record identifies the affected record (display name or key)
	Record string `json:"record,omitempty"`

	// Source is the originating file, when known
	Source string `json:"source,omitempty"`
}

// RunReport aggregates every issue from every stage. A run always
// produces a complete report regardless of how many records succeeded.
type RunReport struct {
	Issues []Issue `json:"issues"`
}

// Add appends an issue
func (r *RunReport) Add(issue Issue) {
	r.Issues = append(r.Issues, issue)
}

// AddError records an ERROR-severity issue
func (r *RunReport) AddError(stage Stage, record, message string) {
	r.Add(Issue{Stage: stage, Severity: SeverityError, Record: record, Message: message})
}

// AddWarning records a WARNING-severity issue
func (r *RunReport) AddWarning(stage Stage, record, message string) {
	r.Add(Issue{Stage: stage, Severity: SeverityWarning, Record: record, Message: message})
}

// AddInfo records an INFO-severity issue
func (r *RunReport) AddInfo(stage Stage, record, message string) {
	r.Add(Issue{Stage: stage, Severity: SeverityInfo, Record: record, Message: message})
}

// Merge appends all issues from another report
func (r *RunReport) Merge(other *RunReport) {
	if other == nil {
		return
	}
	r.Issues = append(r.Issues, other.Issues...)
}

// BySeverity returns the issues with the given severity
func (r *RunReport) BySeverity(sev Severity) []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == sev {
			out = append(out, i)
		}
	}
	return out
}

// Count returns the number of issues with the given severity
func (r *RunReport) Count(sev Severity) int {
	n := 0
	for _, i := range r.Issues {
		if i.Severity == sev {
			n++
		}
	}
	return n
}
