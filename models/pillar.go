package models

// PillarStatus is the outcome of one investment-quality check.
// NeedsInput means required data was absent; it is never a failure.
type PillarStatus string

const (
	PillarMet        PillarStatus = "met"
	PillarNotMet     PillarStatus = "notMet"
	PillarBorderline PillarStatus = "borderline"
	PillarNeedsInput PillarStatus = "needsInput"
)

// PillarKind identifies a pillar
type PillarKind string

const (
	PillarCashFlow        PillarKind = "cashFlow"
	PillarMortgagePaydown PillarKind = "mortgagePaydown"
	PillarEquity          PillarKind = "equity"
	PillarTaxIncentives   PillarKind = "taxIncentives"
)

// PillarOrder is the fixed display and evaluation order
var PillarOrder = []PillarKind{PillarCashFlow, PillarMortgagePaydown, PillarEquity, PillarTaxIncentives}

// PillarResult holds one pillar's status plus the numbers that justify it
type PillarResult struct {
	Kind      PillarKind   `json:"kind"`
	Status    PillarStatus `json:"status"`
	Detail    string       `json:"detail"`
	Value     *float64     `json:"value,omitempty"`
	Monthly   *float64     `json:"monthly,omitempty"`
	Annual    *float64     `json:"annual,omitempty"`
	Threshold *float64     `json:"threshold,omitempty"`
}

// PillarEvaluation is the ordered set of exactly four pillar results
type PillarEvaluation struct {
	Results []PillarResult `json:"results"`
}

// Get returns the result for kind. A missing pillar reads as needsInput.
func (e PillarEvaluation) Get(kind PillarKind) PillarResult {
	for _, r := range e.Results {
		if r.Kind == kind {
			return r
		}
	}
	return PillarResult{Kind: kind, Status: PillarNeedsInput}
}

// MetCount counts pillars with status met
func (e PillarEvaluation) MetCount() int {
	n := 0
	for _, r := range e.Results {
		if r.Status == PillarMet {
			n++
		}
	}
	return n
}

// EvaluatedCount counts pillars that had the inputs they need
func (e PillarEvaluation) EvaluatedCount() int {
	n := 0
	for _, r := range e.Results {
		if r.Status != PillarNeedsInput {
			n++
		}
	}
	return n
}

// MetRatio is met / evaluated, 0 when nothing could be evaluated
func (e PillarEvaluation) MetRatio() float64 {
	evaluated := e.EvaluatedCount()
	if evaluated == 0 {
		return 0
	}
	return float64(e.MetCount()) / float64(evaluated)
}
