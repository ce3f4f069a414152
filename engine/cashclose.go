package engine

import (
	"dealscope/models"
)

// CashToCloseOverlay holds the what-if cash structure
type CashToCloseOverlay struct {
	DownPaymentPercent float64 `json:"down_payment_percent"`
	ClosingCostRate    float64 `json:"closing_cost_rate"`
	RenoReserve        float64 `json:"reno_reserve"`
}

// CashToCloseOverlayFrom seeds an overlay with the property's current terms
func CashToCloseOverlayFrom(p *models.Property) CashToCloseOverlay {
	return CashToCloseOverlay{
		DownPaymentPercent: p.Financing.DownPaymentPercent,
		ClosingCostRate:    p.Financing.ClosingCostRate,
		RenoReserve:        p.Financing.RenoBudget,
	}
}

// Apply returns a copy of p carrying the overlay
func (o CashToCloseOverlay) Apply(p models.Property) models.Property {
	out := p.Clone()
	out.Financing.DownPaymentPercent = o.DownPaymentPercent
	out.Financing.ClosingCostRate = o.ClosingCostRate
	out.Financing.RenoBudget = o.RenoReserve
	return out
}

// CashToClose itemizes the cash a buyer brings to closing
type CashToClose struct {
	DownPayment  float64 `json:"down_payment"`
	ClosingCosts float64 `json:"closing_costs"`
	RenoReserve  float64 `json:"reno_reserve"`
	Total        float64 `json:"total"`
}

// CashNeeded computes price*down% + price*closing% + reno
func (o CashToCloseOverlay) CashNeeded(purchasePrice float64) CashToClose {
	price := nonNegative(purchasePrice)
	c := CashToClose{
		DownPayment:  price * clampPercent(o.DownPaymentPercent) / 100,
		ClosingCosts: price * nonNegative(o.ClosingCostRate) / 100,
		RenoReserve:  nonNegative(o.RenoReserve),
	}
	c.Total = c.DownPayment + c.ClosingCosts + c.RenoReserve
	return c
}

// CashToCloseScenarioResult is the output of the cash-to-close lab
type CashToCloseScenarioResult struct {
	Overlay         CashToCloseOverlay `json:"overlay"`
	BaselineCash    CashToClose        `json:"baseline_cash"`
	ScenarioCash    CashToClose        `json:"scenario_cash"`
	CashNeededDelta float64            `json:"cash_needed_delta"`
	Baseline        models.Evaluation  `json:"baseline"`
	Scenario        models.Evaluation  `json:"scenario"`
	Diff            ScenarioDiff       `json:"diff"`
}

// RunCashToCloseScenario evaluates baseline and overlay side by side. The
// baseline property is never modified.
func RunCashToCloseScenario(baseline models.Property, profile models.GradeProfile, sig Signals, o CashToCloseOverlay) CashToCloseScenarioResult {
	base := Evaluate(&baseline, profile, sig)
	scenarioProp := o.Apply(baseline)
	scenario := Evaluate(&scenarioProp, profile, sig)

	baseCash := CashToCloseOverlayFrom(&baseline).CashNeeded(baseline.PurchasePrice)
	scenarioCash := o.CashNeeded(baseline.PurchasePrice)

	return CashToCloseScenarioResult{
		Overlay:         o,
		BaselineCash:    baseCash,
		ScenarioCash:    scenarioCash,
		CashNeededDelta: scenarioCash.Total - baseCash.Total,
		Baseline:        base,
		Scenario:        scenario,
		Diff:            Diff(base, scenario),
	}
}
