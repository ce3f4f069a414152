package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealscope/models"
)

func TestMortgageOverlayFrom_SeedsCurrentTerms(t *testing.T) {
	p := sampleProperty()
	o := MortgageOverlayFrom(&p)
	assert.Equal(t, 25.0, o.DownPaymentPercent)
	assert.Equal(t, 6.5, o.InterestRate)
	assert.Equal(t, 30, o.TermYears)
	assert.Equal(t, 0.0, o.AnnualTaxes)

	p.Expenses = models.ExpenseModel{Mode: models.ExpenseModeDetailed, AnnualTaxes: 2400, AnnualInsurance: 1200}
	o = MortgageOverlayFrom(&p)
	assert.Equal(t, 2400.0, o.AnnualTaxes)
	assert.Equal(t, 1200.0, o.AnnualInsurance)
}

func TestRunMortgageScenario_LeavesBaselineUntouched(t *testing.T) {
	p := sampleProperty()
	p.Expenses = models.ExpenseModel{Mode: models.ExpenseModeDetailed, AnnualTaxes: 2400, AnnualInsurance: 1200}
	before := p.Clone()

	o := MortgageOverlayFrom(&p)
	o.InterestRate = 7.5
	o.AnnualTaxes = 3600
	first := RunMortgageScenario(p, models.FallbackGradeProfile(), Signals{}, o)
	second := RunMortgageScenario(p, models.FallbackGradeProfile(), Signals{}, o)

	assert.Equal(t, before, p)
	assert.Equal(t, first, second)
	assert.Equal(t, 2400.0, first.Baseline.Breakdown.Annual.Taxes)
	assert.Equal(t, 3600.0, first.Scenario.Breakdown.Annual.Taxes)
}

func TestRunMortgageScenario_IdentityOverlayHasNoDelta(t *testing.T) {
	p := sampleProperty()
	res := RunMortgageScenario(p, models.FallbackGradeProfile(), Signals{}, MortgageOverlayFrom(&p))

	require.NotNil(t, res.Diff.Metrics)
	assert.Equal(t, 0.0, res.Diff.Metrics.MonthlyCashFlow)
	require.NotNil(t, res.Diff.Metrics.DCR)
	assert.Equal(t, 0.0, *res.Diff.Metrics.DCR)
	assert.Equal(t, 0, res.Diff.GradeDelta)
}

func TestRunMortgageScenario_HigherRateDropsGrade(t *testing.T) {
	p := sampleProperty()
	o := MortgageOverlayFrom(&p)
	o.InterestRate = 8.5

	res := RunMortgageScenario(p, models.FallbackGradeProfile(), Signals{}, o)
	assert.Equal(t, models.GradeB, res.Baseline.Grade)
	assert.Equal(t, models.GradeDF, res.Scenario.Grade)
	assert.Equal(t, -2, res.Diff.GradeDelta)

	require.NotNil(t, res.Breakdown)
	assert.InDelta(t, 1153.37, res.Breakdown.MonthlyPayment, 0.01)
	require.NotNil(t, res.Diff.Metrics)
	assert.InDelta(t, 1153.37-948.10, res.Diff.Metrics.MonthlyDebtService, 0.02)
	assert.Less(t, res.Diff.Metrics.MonthlyCashFlow, 0.0)
}

func TestRunMortgageScenario_FlatModeTaxesFeedBreakdownOnly(t *testing.T) {
	p := sampleProperty()
	o := MortgageOverlayFrom(&p)
	o.AnnualTaxes = 2400
	o.AnnualInsurance = 1200

	res := RunMortgageScenario(p, models.FallbackGradeProfile(), Signals{}, o)
	require.NotNil(t, res.Breakdown)
	assert.Equal(t, 200.0, res.Breakdown.Monthly.Taxes)
	require.NotNil(t, res.Diff.Metrics)
	assert.Equal(t, 0.0, res.Diff.Metrics.NetOperatingIncome)
}

func TestMortgageSensitivity(t *testing.T) {
	o := MortgageOverlay{DownPaymentPercent: 25, InterestRate: 6.5, TermYears: 30, AnnualTaxes: 2400, AnnualInsurance: 1200}
	s := MortgageSensitivity(200000, o)

	require.NotNil(t, s.RateStress)
	assert.InDelta(t, 49.85, *s.RateStress, 0.01)
	require.NotNil(t, s.TaxStress)
	assert.InDelta(t, 10.0, *s.TaxStress, 1e-9)

	o.InterestRate = 0
	s = MortgageSensitivity(200000, o)
	assert.Nil(t, s.RateStress)
	assert.Nil(t, s.TaxStress)
}

func TestDiff_DCRNilWhenEitherSideHasNoDebt(t *testing.T) {
	p := sampleProperty()
	cash := sampleProperty()
	cash.Financing.DownPaymentPercent = 100

	base := Evaluate(&p, models.FallbackGradeProfile(), Signals{})
	scenario := Evaluate(&cash, models.FallbackGradeProfile(), Signals{})
	d := Diff(base, scenario)
	require.NotNil(t, d.Metrics)
	assert.Nil(t, d.Metrics.DCR)

	empty := sampleProperty()
	empty.RentRoll = nil
	d = Diff(base, Evaluate(&empty, models.FallbackGradeProfile(), Signals{}))
	assert.Nil(t, d.Metrics)
	assert.Equal(t, -2, d.GradeDelta)
}

func TestCashToCloseOverlay_CashNeeded(t *testing.T) {
	o := CashToCloseOverlay{DownPaymentPercent: 25, ClosingCostRate: 3, RenoReserve: 10000}
	c := o.CashNeeded(200000)
	assert.Equal(t, 50000.0, c.DownPayment)
	assert.Equal(t, 6000.0, c.ClosingCosts)
	assert.Equal(t, 10000.0, c.RenoReserve)
	assert.Equal(t, 66000.0, c.Total)
}

func TestRunCashToCloseScenario(t *testing.T) {
	p := sampleProperty()
	p.Financing.ClosingCostRate = 3
	p.Financing.RenoBudget = 10000
	before := p.Clone()

	o := CashToCloseOverlay{DownPaymentPercent: 20, ClosingCostRate: 3, RenoReserve: 5000}
	res := RunCashToCloseScenario(p, models.FallbackGradeProfile(), Signals{}, o)

	assert.Equal(t, before, p)
	assert.Equal(t, 66000.0, res.BaselineCash.Total)
	assert.Equal(t, 51000.0, res.ScenarioCash.Total)
	assert.Equal(t, -15000.0, res.CashNeededDelta)

	require.NotNil(t, res.Scenario.Metrics)
	assert.Equal(t, 160000.0, res.Scenario.Metrics.LoanAmount)
	assert.Equal(t, 51000.0, res.Scenario.Metrics.TotalCashInvested)
	require.NotNil(t, res.Diff.Metrics)
	assert.Equal(t, -15000.0, res.Diff.Metrics.TotalCashInvested)
	assert.Less(t, res.Diff.Metrics.MonthlyCashFlow, 0.0)
}
