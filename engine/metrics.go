// Package engine computes deal metrics, pillar checks, grades and what-if
// scenarios. Everything here is a pure function of its arguments.
package engine

import (
	"math"

	"dealscope/models"
)

// ComputeMetrics derives underwriting metrics for p. It returns nil, not an
// error, when the price is not positive or the rent roll is empty.
func ComputeMetrics(p *models.Property) *models.DealMetrics {
	if p == nil || p.PurchasePrice <= 0 || len(p.RentRoll) == 0 {
		return nil
	}

	grossAnnualRent := 0.0
	for _, u := range p.RentRoll {
		grossAnnualRent += nonNegative(u.MonthlyRent)
	}
	grossAnnualRent *= 12

	opex := operatingExpense(p, grossAnnualRent)
	noi := grossAnnualRent - opex

	f := p.Financing
	downPayment := p.PurchasePrice * clampPercent(f.DownPaymentPercent) / 100
	loan := math.Max(0, p.PurchasePrice-downPayment)

	monthlyDebt := monthlyPayment(loan, f.InterestRate, f.TermYears)
	annualDebt := monthlyDebt * 12
	annualCashFlow := noi - annualDebt

	closingCosts := p.PurchasePrice * nonNegative(f.ClosingCostRate) / 100
	invested := downPayment + closingCosts + nonNegative(f.RenoBudget)

	m := &models.DealMetrics{
		GrossAnnualRent:       grossAnnualRent,
		TotalOperatingExpense: opex,
		NetOperatingIncome:    noi,
		LoanAmount:            loan,
		MonthlyDebtService:    monthlyDebt,
		AnnualDebtService:     annualDebt,
		AnnualCashFlow:        annualCashFlow,
		MonthlyCashFlow:       annualCashFlow / 12,
		DownPayment:           downPayment,
		ClosingCosts:          closingCosts,
		TotalCashInvested:     invested,
		CapRate:               noi / p.PurchasePrice,
	}
	if invested > 0 {
		m.CashOnCash = annualCashFlow / invested
	}
	if annualDebt > 0 {
		dcr := noi / annualDebt
		m.DCR = &dcr
	}
	return m
}

func operatingExpense(p *models.Property, grossAnnualRent float64) float64 {
	e := p.Expenses
	if e.Mode == models.ExpenseModeDetailed {
		return nonNegative(e.AnnualTaxes) + nonNegative(e.AnnualInsurance) +
			nonNegative(e.ManagementFee) + nonNegative(e.MaintenanceReserve)
	}
	return grossAnnualRent * nonNegative(e.FlatRate) / 100
}

// monthlyPayment is the fixed-rate amortizing payment P*r/(1-(1+r)^-n).
// A zero rate splits principal evenly; a zero term or zero principal pays 0.
func monthlyPayment(principal, annualRatePercent float64, termYears int) float64 {
	n := termYears * 12
	if principal <= 0 || n <= 0 {
		return 0
	}
	r := annualRatePercent / 100 / 12
	if r <= 0 {
		return principal / float64(n)
	}
	return principal * r / (1 - math.Pow(1+r, -float64(n)))
}

func nonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}

func clampPercent(v float64) float64 {
	return math.Min(100, nonNegative(v))
}
