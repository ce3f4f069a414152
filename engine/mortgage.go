package engine

import (
	"math"

	"dealscope/models"
)

// Mortgage computes the PITI breakdown for a purchase, independent of a full
// property. It returns nil when the loan cannot be amortized: a non-positive
// rate or term with down payment below 100%. An all-cash purchase yields
// zero principal and interest with taxes and insurance only.
func Mortgage(purchasePrice, downPaymentPercent, interestRate float64, termYears int, annualTaxes, annualInsurance float64) *models.MortgageBreakdown {
	taxes := nonNegative(annualTaxes)
	insurance := nonNegative(annualInsurance)
	down := clampPercent(downPaymentPercent)

	b := &models.MortgageBreakdown{}
	if down >= 100 {
		b.Monthly = components(0, 0, taxes/12, insurance/12)
		b.Annual = components(0, 0, taxes, insurance)
		return b
	}
	if interestRate <= 0 || termYears <= 0 {
		return nil
	}

	loan := math.Max(0, nonNegative(purchasePrice)*(1-down/100))
	payment := monthlyPayment(loan, interestRate, termYears)
	r := interestRate / 100 / 12

	firstInterest := loan * r
	firstPrincipal := payment - firstInterest

	// First-year totals walk the schedule; a term shorter than a year stops early.
	periods := min(12, termYears*12)
	balance := loan
	var yearPrincipal, yearInterest float64
	for i := 0; i < periods; i++ {
		interest := balance * r
		principal := payment - interest
		yearInterest += interest
		yearPrincipal += principal
		balance -= principal
	}

	b.LoanAmount = loan
	b.MonthlyPayment = payment
	b.Monthly = components(firstPrincipal, firstInterest, taxes/12, insurance/12)
	b.Annual = components(yearPrincipal, yearInterest, taxes, insurance)
	return b
}

// PropertyMortgage runs Mortgage with the property's own terms
func PropertyMortgage(p *models.Property) *models.MortgageBreakdown {
	if p == nil {
		return nil
	}
	taxes, insurance := p.TaxesAndInsurance()
	f := p.Financing
	return Mortgage(p.PurchasePrice, f.DownPaymentPercent, f.InterestRate, f.TermYears, taxes, insurance)
}

func components(principal, interest, taxes, insurance float64) models.PaymentComponents {
	return models.PaymentComponents{
		Principal: principal,
		Interest:  interest,
		Taxes:     taxes,
		Insurance: insurance,
		Total:     principal + interest + taxes + insurance,
	}
}
