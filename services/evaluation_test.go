package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealscope/engine"
	"dealscope/models"
	"dealscope/storage"
)

type fakeValuer struct {
	value *float64
	err   error
	calls int
}

func (f *fakeValuer) Estimate(_ context.Context, _ *models.Property) (*float64, error) {
	f.calls++
	return f.value, f.err
}

type fakeReports struct {
	saved []*models.Evaluation
}

func (f *fakeReports) Put(_ context.Context, ev *models.Evaluation) (string, error) {
	f.saved = append(f.saved, ev)
	return "https://reports.example/" + ev.PropertyID + ".json", nil
}

type fixture struct {
	store      *storage.SQLiteStore
	properties *PropertyService
	profiles   *ProfileService
	evals      *EvaluationService
	valuer     *fakeValuer
	reports    *fakeReports
	clock      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "services.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f := &fixture{
		store:   store,
		valuer:  &fakeValuer{},
		reports: &fakeReports{},
		clock:   time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
	}
	now := func() time.Time { return f.clock }

	f.profiles = NewProfileService(store, nil)
	f.profiles.now = now
	f.properties = NewPropertyService(store, store, nil)
	f.properties.now = now
	f.evals = NewEvaluationService(f.properties, f.profiles, f.valuer, newEntitlements(t), f.reports, nil)
	f.evals.now = now
	return f
}

// duplex underwrites to $221.90/month cash flow and a 1.234 DCR
func duplex() *models.Property {
	return &models.Property{
		Name:          "Duplex",
		Address:       "12 Elm Street",
		PurchasePrice: 200000,
		RentRoll: []models.RentUnit{
			{Label: "A", MonthlyRent: 900},
			{Label: "B", MonthlyRent: 900},
		},
		Expenses:  models.ExpenseModel{Mode: models.ExpenseModeFlat, FlatRate: 35},
		Financing: models.Financing{DownPaymentPercent: 25, InterestRate: 6.5, TermYears: 30},
	}
}

func (f *fixture) createDuplex(t *testing.T, owner string) *models.Property {
	t.Helper()
	p, err := f.properties.Create(context.Background(), owner, duplex())
	require.NoError(t, err)
	return p
}

func TestEvaluationService_Evaluate(t *testing.T) {
	f := newFixture(t)
	p := f.createDuplex(t, "owner-1")

	ev, err := f.evals.Evaluate(context.Background(), "owner-1", p.ID)
	require.NoError(t, err)

	require.NotNil(t, ev.Metrics)
	assert.InDelta(t, 221.90, ev.Metrics.MonthlyCashFlow, 0.01)
	require.NotNil(t, ev.Breakdown)
	assert.InDelta(t, 948.10, ev.Breakdown.MonthlyPayment, 0.01)
	assert.Equal(t, models.GradeB, ev.Grade)
	assert.Equal(t, p.ID.String(), ev.PropertyID)
	assert.Empty(t, ev.ProfileID)
	assert.Equal(t, models.PillarNeedsInput, ev.Pillars.Get(models.PillarEquity).Status)
	assert.Equal(t, models.PillarNeedsInput, ev.Pillars.Get(models.PillarTaxIncentives).Status)
	assert.True(t, ev.EvaluatedAt.Equal(f.clock))
}

func TestEvaluationService_UsesValuation(t *testing.T) {
	f := newFixture(t)
	p := f.createDuplex(t, "owner-1")
	value := 220000.0
	f.valuer.value = &value

	ev, err := f.evals.Evaluate(context.Background(), "owner-1", p.ID)
	require.NoError(t, err)
	equity := ev.Pillars.Get(models.PillarEquity)
	assert.Equal(t, models.PillarMet, equity.Status)
	require.NotNil(t, equity.Value)
	assert.InDelta(t, 10.0, *equity.Value, 0.001)

	f.valuer.err = errors.New("avm offline")
	_, err = f.evals.Evaluate(context.Background(), "owner-1", p.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "avm offline")
}

func TestEvaluationService_Memoizes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createDuplex(t, "owner-1")

	first, err := f.evals.Evaluate(ctx, "owner-1", p.ID)
	require.NoError(t, err)

	f.clock = f.clock.Add(time.Hour)
	second, err := f.evals.Evaluate(ctx, "owner-1", p.ID)
	require.NoError(t, err)
	assert.True(t, second.EvaluatedAt.Equal(first.EvaluatedAt), "unchanged inputs reuse the cached result")

	p.PurchasePrice = 190000
	_, err = f.properties.Update(ctx, "owner-1", p)
	require.NoError(t, err)

	third, err := f.evals.Evaluate(ctx, "owner-1", p.ID)
	require.NoError(t, err)
	assert.True(t, third.EvaluatedAt.Equal(f.clock))
	assert.NotEqual(t, first.Metrics.AnnualDebtService, third.Metrics.AnnualDebtService)
}

func TestEvaluationService_PaidTierEvaluatesTaxPillar(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := duplex()
	marginal, land := 24.0, 20.0
	in.MarginalTaxRate = &marginal
	in.LandValuePercent = &land

	free, err := f.properties.Create(ctx, "owner-1", in)
	require.NoError(t, err)
	ev, err := f.evals.Evaluate(ctx, "owner-1", free.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PillarNeedsInput, ev.Pillars.Get(models.PillarTaxIncentives).Status)

	in = duplex()
	in.MarginalTaxRate = &marginal
	in.LandValuePercent = &land
	paid, err := f.properties.Create(ctx, "paid-user", in)
	require.NoError(t, err)
	ev, err = f.evals.Evaluate(ctx, "paid-user", paid.ID)
	require.NoError(t, err)
	tax := ev.Pillars.Get(models.PillarTaxIncentives)
	assert.Equal(t, models.PillarMet, tax.Status)
	require.NotNil(t, tax.Annual)
	assert.InDelta(t, 1396.36, *tax.Annual, 0.01)
}

func TestEvaluationService_OwnerScoped(t *testing.T) {
	f := newFixture(t)
	p := f.createDuplex(t, "owner-1")

	_, err := f.evals.Evaluate(context.Background(), "owner-2", p.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.evals.Evaluate(context.Background(), "", p.ID)
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = f.evals.Evaluate(context.Background(), "owner-1", uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEvaluationService_MortgageLab(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createDuplex(t, "owner-1")

	overlay := engine.MortgageOverlayFrom(p)
	overlay.InterestRate = 8.5

	result, err := f.evals.MortgageLab(ctx, "owner-1", p.ID, overlay)
	require.NoError(t, err)
	assert.Less(t, result.Diff.GradeDelta, 0)
	require.NotNil(t, result.Breakdown)
	assert.InDelta(t, 1153.37, result.Breakdown.MonthlyPayment, 0.01)

	// the lab never persists
	stored, err := f.properties.Get(ctx, "owner-1", p.ID)
	require.NoError(t, err)
	assert.Equal(t, 6.5, stored.Financing.InterestRate)

	overlay.DownPaymentPercent = 120
	_, err = f.evals.MortgageLab(ctx, "owner-1", p.ID, overlay)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "down_payment_percent", verr.Field)
}

func TestEvaluationService_ApplyMortgageScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createDuplex(t, "owner-1")

	overlay := engine.MortgageOverlayFrom(p)
	overlay.InterestRate = 5.75
	overlay.TermYears = 15

	updated, err := f.evals.ApplyMortgageScenario(ctx, "owner-1", p.ID, overlay)
	require.NoError(t, err)
	assert.Equal(t, 5.75, updated.Financing.InterestRate)

	stored, err := f.properties.Get(ctx, "owner-1", p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5.75, stored.Financing.InterestRate)
	assert.Equal(t, 15, stored.Financing.TermYears)
	assert.Equal(t, p.RentRoll, stored.RentRoll)
}

func TestEvaluationService_CashToClose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createDuplex(t, "owner-1")

	overlay := engine.CashToCloseOverlayFrom(p)
	overlay.DownPaymentPercent = 20

	result, err := f.evals.CashToCloseLab(ctx, "owner-1", p.ID, overlay)
	require.NoError(t, err)
	assert.InDelta(t, 50000, result.BaselineCash.Total, 0.01)
	assert.InDelta(t, 40000, result.ScenarioCash.Total, 0.01)
	assert.InDelta(t, -10000, result.CashNeededDelta, 0.01)

	updated, err := f.evals.ApplyCashToCloseScenario(ctx, "owner-1", p.ID, overlay)
	require.NoError(t, err)
	assert.Equal(t, 20.0, updated.Financing.DownPaymentPercent)

	overlay.RenoReserve = -1
	_, err = f.evals.ApplyCashToCloseScenario(ctx, "owner-1", p.ID, overlay)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestEvaluationService_LabsRequireLoanTerms(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createDuplex(t, "owner-1")

	overlay := engine.MortgageOverlayFrom(p)
	overlay.TermYears = 0
	_, err := f.evals.MortgageLab(ctx, "owner-1", p.ID, overlay)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "term_years", verr.Field)

	_, err = f.evals.ApplyMortgageScenario(ctx, "owner-1", p.ID, overlay)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "term_years", verr.Field)

	// paying all cash needs no loan terms
	overlay.DownPaymentPercent = 100
	overlay.InterestRate = 0
	cash, err := f.evals.ApplyMortgageScenario(ctx, "owner-1", p.ID, overlay)
	require.NoError(t, err)
	assert.True(t, cash.Financing.IsCashPurchase())

	// and an all-cash deal cannot drop back to a loan without terms
	down := engine.CashToCloseOverlayFrom(cash)
	down.DownPaymentPercent = 20
	_, err = f.evals.CashToCloseLab(ctx, "owner-1", p.ID, down)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "financing.interest_rate", verr.Field)

	// financed properties without a term are rejected on save
	noTerm := duplex()
	noTerm.Address = "14 Elm Street"
	noTerm.Financing.TermYears = 0
	_, err = f.properties.Create(ctx, "owner-1", noTerm)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "financing.term_years", verr.Field)
}

func TestEvaluationService_Export(t *testing.T) {
	f := newFixture(t)
	p := f.createDuplex(t, "owner-1")

	url, err := f.evals.Export(context.Background(), "owner-1", p.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://reports.example/"+p.ID.String()+".json", url)
	require.Len(t, f.reports.saved, 1)
	assert.Equal(t, models.GradeB, f.reports.saved[0].Grade)

	noArchive := NewEvaluationService(f.properties, f.profiles, nil, newEntitlements(t), nil, nil)
	_, err = noArchive.Export(context.Background(), "owner-1", p.ID)
	assert.ErrorIs(t, err, ErrExportDisabled)
}
