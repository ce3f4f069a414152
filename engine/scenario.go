package engine

import (
	"dealscope/models"
)

// Stress perturbations for the sensitivity helper
const (
	RateStressPoints  = 0.5
	TaxStressFraction = 0.05
)

// MetricsDelta is scenario minus baseline for each headline metric
type MetricsDelta struct {
	NetOperatingIncome float64 `json:"net_operating_income"`
	MonthlyDebtService float64 `json:"monthly_debt_service"`
	AnnualDebtService  float64 `json:"annual_debt_service"`
	AnnualCashFlow     float64 `json:"annual_cash_flow"`
	MonthlyCashFlow    float64 `json:"monthly_cash_flow"`
	TotalCashInvested  float64 `json:"total_cash_invested"`
	CashOnCash         float64 `json:"cash_on_cash"`
	CapRate            float64 `json:"cap_rate"`
	// DCR is nil when either side has no debt service
	DCR *float64 `json:"dcr"`
}

// ScenarioDiff compares a scenario against its baseline
type ScenarioDiff struct {
	// Metrics is nil when either side has no metrics
	Metrics    *MetricsDelta `json:"metrics"`
	GradeDelta int           `json:"grade_delta"`
}

// Diff compares scenario against baseline
func Diff(baseline, scenario models.Evaluation) ScenarioDiff {
	d := ScenarioDiff{GradeDelta: scenario.Grade.Tier() - baseline.Grade.Tier()}
	b, s := baseline.Metrics, scenario.Metrics
	if b == nil || s == nil {
		return d
	}
	md := &MetricsDelta{
		NetOperatingIncome: s.NetOperatingIncome - b.NetOperatingIncome,
		MonthlyDebtService: s.MonthlyDebtService - b.MonthlyDebtService,
		AnnualDebtService:  s.AnnualDebtService - b.AnnualDebtService,
		AnnualCashFlow:     s.AnnualCashFlow - b.AnnualCashFlow,
		MonthlyCashFlow:    s.MonthlyCashFlow - b.MonthlyCashFlow,
		TotalCashInvested:  s.TotalCashInvested - b.TotalCashInvested,
		CashOnCash:         s.CashOnCash - b.CashOnCash,
		CapRate:            s.CapRate - b.CapRate,
	}
	if b.DCR != nil && s.DCR != nil {
		md.DCR = ptr(*s.DCR - *b.DCR)
	}
	d.Metrics = md
	return d
}

// MortgageOverlay holds the what-if mortgage terms
type MortgageOverlay struct {
	DownPaymentPercent float64 `json:"down_payment_percent"`
	InterestRate       float64 `json:"interest_rate"`
	TermYears          int     `json:"term_years"`
	AnnualTaxes        float64 `json:"annual_taxes"`
	AnnualInsurance    float64 `json:"annual_insurance"`
}

// MortgageOverlayFrom seeds an overlay with the property's current terms
func MortgageOverlayFrom(p *models.Property) MortgageOverlay {
	taxes, insurance := p.TaxesAndInsurance()
	return MortgageOverlay{
		DownPaymentPercent: p.Financing.DownPaymentPercent,
		InterestRate:       p.Financing.InterestRate,
		TermYears:          p.Financing.TermYears,
		AnnualTaxes:        taxes,
		AnnualInsurance:    insurance,
	}
}

// Apply returns a copy of p carrying the overlay. In detailed expense mode
// the overlay taxes and insurance replace the itemized lines; in flat mode
// they only feed the mortgage breakdown.
func (o MortgageOverlay) Apply(p models.Property) models.Property {
	out := p.Clone()
	out.Financing.DownPaymentPercent = o.DownPaymentPercent
	out.Financing.InterestRate = o.InterestRate
	out.Financing.TermYears = o.TermYears
	if out.Expenses.Mode == models.ExpenseModeDetailed {
		out.Expenses.AnnualTaxes = o.AnnualTaxes
		out.Expenses.AnnualInsurance = o.AnnualInsurance
	}
	return out
}

// Breakdown computes the overlay's mortgage breakdown for a price
func (o MortgageOverlay) Breakdown(purchasePrice float64) *models.MortgageBreakdown {
	return Mortgage(purchasePrice, o.DownPaymentPercent, o.InterestRate, o.TermYears, o.AnnualTaxes, o.AnnualInsurance)
}

// Sensitivity is the monthly total change under stressed inputs. Nil fields
// mean the stressed or base breakdown is unavailable.
type Sensitivity struct {
	RateStress *float64 `json:"rate_stress"`
	TaxStress  *float64 `json:"tax_stress"`
}

// MortgageSensitivity re-runs Mortgage with +0.5 rate points and +5% taxes
func MortgageSensitivity(purchasePrice float64, o MortgageOverlay) Sensitivity {
	var s Sensitivity
	base := o.Breakdown(purchasePrice)
	if base == nil {
		return s
	}

	rate := o
	rate.InterestRate += RateStressPoints
	if b := rate.Breakdown(purchasePrice); b != nil {
		s.RateStress = ptr(b.Monthly.Total - base.Monthly.Total)
	}

	tax := o
	tax.AnnualTaxes *= 1 + TaxStressFraction
	if b := tax.Breakdown(purchasePrice); b != nil {
		s.TaxStress = ptr(b.Monthly.Total - base.Monthly.Total)
	}
	return s
}

// MortgageScenarioResult is the output of the mortgage lab
type MortgageScenarioResult struct {
	Overlay     MortgageOverlay           `json:"overlay"`
	Breakdown   *models.MortgageBreakdown `json:"mortgage_breakdown"`
	Baseline    models.Evaluation         `json:"baseline"`
	Scenario    models.Evaluation         `json:"scenario"`
	Diff        ScenarioDiff              `json:"diff"`
	Sensitivity Sensitivity               `json:"sensitivity"`
}

// RunMortgageScenario evaluates baseline and overlay side by side. The
// baseline property is never modified.
func RunMortgageScenario(baseline models.Property, profile models.GradeProfile, sig Signals, o MortgageOverlay) MortgageScenarioResult {
	base := Evaluate(&baseline, profile, sig)
	scenarioProp := o.Apply(baseline)
	scenario := Evaluate(&scenarioProp, profile, sig)
	// In flat mode taxes and insurance are not part of the property, so the
	// overlay's own breakdown is authoritative for PITI.
	scenario.Breakdown = o.Breakdown(baseline.PurchasePrice)

	return MortgageScenarioResult{
		Overlay:     o,
		Breakdown:   scenario.Breakdown,
		Baseline:    base,
		Scenario:    scenario,
		Diff:        Diff(base, scenario),
		Sensitivity: MortgageSensitivity(baseline.PurchasePrice, o),
	}
}
