package models

import "time"

// DealMetrics is the derived underwriting result for a property. It is
// recomputed on demand and never stored.
type DealMetrics struct {
	GrossAnnualRent       float64 `json:"gross_annual_rent"`
	TotalOperatingExpense float64 `json:"total_operating_expense"`
	NetOperatingIncome    float64 `json:"net_operating_income"`
	LoanAmount            float64 `json:"loan_amount"`
	MonthlyDebtService    float64 `json:"monthly_debt_service"`
	AnnualDebtService     float64 `json:"annual_debt_service"`
	AnnualCashFlow        float64 `json:"annual_cash_flow"`
	MonthlyCashFlow       float64 `json:"monthly_cash_flow"`
	DownPayment           float64 `json:"down_payment"`
	ClosingCosts          float64 `json:"closing_costs"`
	TotalCashInvested     float64 `json:"total_cash_invested"`
	CashOnCash            float64 `json:"cash_on_cash"` // fraction
	CapRate               float64 `json:"cap_rate"`     // fraction
	// DCR is nil when there is no debt service (cash purchase): coverage is
	// unbounded rather than zero.
	DCR *float64 `json:"dcr"`
}

// MeetsDCR reports whether coverage reaches floor. A deal without debt
// service satisfies every floor.
func (m *DealMetrics) MeetsDCR(floor float64) bool {
	if m.DCR == nil {
		return true
	}
	return *m.DCR >= floor
}

// PaymentComponents is one period's PITI split
type PaymentComponents struct {
	Principal float64 `json:"principal"`
	Interest  float64 `json:"interest"`
	Taxes     float64 `json:"taxes"`
	Insurance float64 `json:"insurance"`
	Total     float64 `json:"total"`
}

// MortgageBreakdown splits the housing payment into PITI. Monthly holds the
// first payment's split; Annual holds first-year amortized totals.
type MortgageBreakdown struct {
	LoanAmount     float64           `json:"loan_amount"`
	MonthlyPayment float64           `json:"monthly_payment"` // principal + interest
	Monthly        PaymentComponents `json:"monthly"`
	Annual         PaymentComponents `json:"annual"`
}

// Evaluation bundles everything the UI and export layers read for a property
type Evaluation struct {
	PropertyID  string             `json:"property_id,omitempty"`
	ProfileID   string             `json:"profile_id,omitempty"`
	Metrics     *DealMetrics       `json:"metrics"`
	Breakdown   *MortgageBreakdown `json:"mortgage_breakdown"`
	Pillars     PillarEvaluation   `json:"pillars"`
	Grade       Grade              `json:"grade"`
	EvaluatedAt time.Time          `json:"evaluated_at"`
}
