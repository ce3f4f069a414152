package engine

import (
	"fmt"

	"dealscope/models"
	"dealscope/money"
)

// ResidentialDepreciationYears is the straight-line recovery period for
// residential rental buildings.
const ResidentialDepreciationYears = 27.5

// Signals are values supplied by collaborators outside the engine. The engine
// never fetches them.
type Signals struct {
	// Valuation is a comparable-value estimate for the property; nil when
	// no market data is available.
	Valuation *float64 `json:"valuation,omitempty"`
	// PremiumPillars reports whether the owner's entitlement includes the
	// premium-only tax incentives pillar.
	PremiumPillars bool `json:"premium_pillars"`
}

// EvaluatePillars runs the four pillar checks in fixed order
func EvaluatePillars(m *models.DealMetrics, p *models.Property, profile models.GradeProfile, sig Signals) models.PillarEvaluation {
	return models.PillarEvaluation{Results: []models.PillarResult{
		cashFlowPillar(m, profile),
		mortgagePaydownPillar(p),
		equityPillar(p, profile, sig.Valuation),
		taxIncentivesPillar(p, profile, sig.PremiumPillars),
	}}
}

func cashFlowPillar(m *models.DealMetrics, profile models.GradeProfile) models.PillarResult {
	r := models.PillarResult{Kind: models.PillarCashFlow}
	if m == nil {
		r.Status = models.PillarNeedsInput
		r.Detail = "Add a purchase price and at least one rent to evaluate cash flow."
		return r
	}

	monthly := m.MonthlyCashFlow
	floor := profile.CashFlowFloor
	r.Value = ptr(monthly)
	r.Monthly = ptr(monthly)
	r.Annual = ptr(m.AnnualCashFlow)
	r.Threshold = ptr(floor)

	switch {
	case monthly >= floor:
		r.Status = models.PillarMet
		r.Detail = fmt.Sprintf("Cash flow of %s/mo meets the %s/mo floor.", money.FormatCurrency(monthly), money.FormatCurrency(floor))
	case monthly >= floor-profile.CashFlowBuffer:
		r.Status = models.PillarBorderline
		r.Detail = fmt.Sprintf("Cash flow of %s/mo is within %s of the %s/mo floor.",
			money.FormatCurrency(monthly), money.FormatCurrency(profile.CashFlowBuffer), money.FormatCurrency(floor))
	default:
		r.Status = models.PillarNotMet
		r.Detail = fmt.Sprintf("Cash flow of %s/mo is below the %s/mo floor.", money.FormatCurrency(monthly), money.FormatCurrency(floor))
	}
	return r
}

func mortgagePaydownPillar(p *models.Property) models.PillarResult {
	r := models.PillarResult{Kind: models.PillarMortgagePaydown, Status: models.PillarNotMet}
	if p == nil || p.Financing.IsCashPurchase() {
		r.Detail = "All-cash purchase: there is no loan to pay down."
		return r
	}
	b := PropertyMortgage(p)
	if b == nil {
		r.Detail = "Mortgage terms are incomplete, so paydown cannot be amortized."
		return r
	}
	r.Value = ptr(b.Annual.Principal)
	r.Monthly = ptr(b.Monthly.Principal)
	r.Annual = ptr(b.Annual.Principal)
	if b.LoanAmount > 0 && b.Annual.Principal > 0 {
		r.Status = models.PillarMet
		r.Detail = fmt.Sprintf("Tenants pay down %s of principal in the first year.", money.FormatCurrency(b.Annual.Principal))
		return r
	}
	r.Detail = "The loan does not amortize any principal in the first year."
	return r
}

func equityPillar(p *models.Property, profile models.GradeProfile, valuation *float64) models.PillarResult {
	r := models.PillarResult{Kind: models.PillarEquity}
	if valuation == nil {
		r.Status = models.PillarNeedsInput
		r.Detail = "No comparable value is available for this property yet."
		return r
	}
	if p == nil || p.PurchasePrice <= 0 {
		r.Status = models.PillarNeedsInput
		r.Detail = "Add a purchase price to compare against market value."
		return r
	}

	equity := *valuation - p.PurchasePrice
	percent := equity / p.PurchasePrice * 100
	r.Value = ptr(percent)
	r.Annual = ptr(equity)
	r.Threshold = ptr(profile.MinEquityPercent)
	if percent >= profile.MinEquityPercent {
		r.Status = models.PillarMet
		r.Detail = fmt.Sprintf("Buying %s below the %s comparable value builds in %.1f%% equity.",
			money.FormatCurrency(equity), money.FormatCurrency(*valuation), percent)
		return r
	}
	r.Status = models.PillarNotMet
	r.Detail = fmt.Sprintf("Built-in equity of %.1f%% is below the %.1f%% target.", percent, profile.MinEquityPercent)
	return r
}

func taxIncentivesPillar(p *models.Property, profile models.GradeProfile, premium bool) models.PillarResult {
	r := models.PillarResult{Kind: models.PillarTaxIncentives}
	if !premium {
		r.Status = models.PillarNeedsInput
		r.Detail = "Tax incentive analysis is available on the paid plan."
		return r
	}
	if p == nil || p.MarginalTaxRate == nil || p.LandValuePercent == nil {
		r.Status = models.PillarNeedsInput
		r.Detail = "Add your marginal tax rate and the land value percentage to estimate depreciation benefits."
		return r
	}

	basis := nonNegative(p.PurchasePrice) * (1 - clampPercent(*p.LandValuePercent)/100)
	depreciation := basis / ResidentialDepreciationYears
	benefit := depreciation * clampPercent(*p.MarginalTaxRate) / 100
	r.Value = ptr(benefit)
	r.Monthly = ptr(benefit / 12)
	r.Annual = ptr(benefit)
	r.Threshold = ptr(profile.MinAnnualTaxBenefit)
	if benefit >= profile.MinAnnualTaxBenefit {
		r.Status = models.PillarMet
		r.Detail = fmt.Sprintf("Depreciation saves an estimated %s per year in taxes.", money.FormatCurrency(benefit))
		return r
	}
	r.Status = models.PillarNotMet
	r.Detail = fmt.Sprintf("Estimated depreciation benefit of %s/yr is below the %s/yr target.",
		money.FormatCurrency(benefit), money.FormatCurrency(profile.MinAnnualTaxBenefit))
	return r
}

func ptr(v float64) *float64 {
	return &v
}
