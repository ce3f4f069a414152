package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dealscope/engine"
	"dealscope/entitlement"
	"dealscope/identity"
	"dealscope/logging"
	"dealscope/models"
	"dealscope/valuation"
)

// memoLimit bounds the evaluation cache; it is reset when full
const memoLimit = 1024

// ReportStore receives exported evaluations
type ReportStore interface {
	Put(ctx context.Context, ev *models.Evaluation) (string, error)
}

// EvaluationService loads a property, resolves its profile, gathers the
// collaborator signals and runs the engine.
type EvaluationService struct {
	properties   *PropertyService
	profiles     *ProfileService
	valuation    valuation.Provider
	entitlements entitlement.Provider
	reports      ReportStore
	logger       *zap.Logger
	now          func() time.Time

	mu   sync.Mutex
	memo map[string]models.Evaluation
}

// NewEvaluationService wires the collaborators. valuer and reports may be
// nil: equity then needs input and Export is unavailable.
func NewEvaluationService(properties *PropertyService, profiles *ProfileService, valuer valuation.Provider,
	entitlements entitlement.Provider, reports ReportStore, logger *zap.Logger) *EvaluationService {
	return &EvaluationService{
		properties:   properties,
		profiles:     profiles,
		valuation:    valuer,
		entitlements: entitlements,
		reports:      reports,
		logger:       logging.Named(logger, "evaluation"),
		now:          time.Now,
		memo:         make(map[string]models.Evaluation),
	}
}

// dealInputs is everything the engine needs for one property
type dealInputs struct {
	property models.Property
	profile  models.GradeProfile
	signals  engine.Signals
}

func (s *EvaluationService) load(ctx context.Context, actor string, propertyID uuid.UUID) (*dealInputs, error) {
	p, err := s.properties.Get(ctx, actor, propertyID)
	if err != nil {
		return nil, err
	}
	profile, err := s.profiles.Resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	sig, err := s.signals(ctx, p)
	if err != nil {
		return nil, err
	}
	return &dealInputs{property: *p, profile: profile, signals: sig}, nil
}

func (s *EvaluationService) signals(ctx context.Context, p *models.Property) (engine.Signals, error) {
	var sig engine.Signals

	ent, err := s.entitlements.Get(ctx, p.OwnerID)
	if err != nil {
		return sig, fmt.Errorf("get entitlement: %w", err)
	}
	sig.PremiumPillars = ent.PremiumPillars

	if s.valuation != nil {
		est, err := s.valuation.Estimate(ctx, p)
		if err != nil {
			return sig, fmt.Errorf("estimate value: %w", err)
		}
		sig.Valuation = est
	}
	return sig, nil
}

// Evaluate returns metrics, breakdown, pillars and grade for a property.
// Results are reused while the property, profile and signals are unchanged.
func (s *EvaluationService) Evaluate(ctx context.Context, actor string, propertyID uuid.UUID) (*models.Evaluation, error) {
	in, err := s.load(ctx, actor, propertyID)
	if err != nil {
		return nil, err
	}

	key := identity.EvaluationKey(&in.property, in.profile, in.signals)
	s.mu.Lock()
	cached, ok := s.memo[key]
	s.mu.Unlock()
	if ok {
		return &cached, nil
	}

	ev := engine.Stamp(engine.Evaluate(&in.property, in.profile, in.signals), s.now().UTC())

	s.mu.Lock()
	if len(s.memo) >= memoLimit {
		s.memo = make(map[string]models.Evaluation)
	}
	s.memo[key] = ev
	s.mu.Unlock()

	s.logger.Debug("evaluated property",
		zap.String("property_id", propertyID.String()),
		zap.String("grade", string(ev.Grade)),
		zap.String("profile", in.profile.Name),
	)
	return &ev, nil
}

// MortgageLab compares the property against a financing overlay without
// persisting anything.
func (s *EvaluationService) MortgageLab(ctx context.Context, actor string, propertyID uuid.UUID, o engine.MortgageOverlay) (*engine.MortgageScenarioResult, error) {
	if field, err := checkMortgageOverlay(o); err != nil {
		return nil, invalid(field, err)
	}
	in, err := s.load(ctx, actor, propertyID)
	if err != nil {
		return nil, err
	}
	result := engine.RunMortgageScenario(in.property, in.profile, in.signals, o)
	return &result, nil
}

// CashToCloseLab compares the property against a cash-to-close overlay
// without persisting anything.
func (s *EvaluationService) CashToCloseLab(ctx context.Context, actor string, propertyID uuid.UUID, o engine.CashToCloseOverlay) (*engine.CashToCloseScenarioResult, error) {
	if field, err := checkCashOverlay(o); err != nil {
		return nil, invalid(field, err)
	}
	in, err := s.load(ctx, actor, propertyID)
	if err != nil {
		return nil, err
	}
	// Lowering the down payment on an all-cash deal needs loan terms first
	scenario := o.Apply(in.property)
	if field, err := scenario.Validate(); err != nil {
		return nil, invalid(field, err)
	}
	result := engine.RunCashToCloseScenario(in.property, in.profile, in.signals, o)
	return &result, nil
}

// ApplyMortgageScenario writes the overlay's financing onto the property
func (s *EvaluationService) ApplyMortgageScenario(ctx context.Context, actor string, propertyID uuid.UUID, o engine.MortgageOverlay) (*models.Property, error) {
	if field, err := checkMortgageOverlay(o); err != nil {
		return nil, invalid(field, err)
	}
	p, err := s.properties.Get(ctx, actor, propertyID)
	if err != nil {
		return nil, err
	}
	updated := o.Apply(*p)
	return s.properties.Update(ctx, actor, &updated)
}

// ApplyCashToCloseScenario writes the overlay's down payment, closing cost
// rate and reserve onto the property.
func (s *EvaluationService) ApplyCashToCloseScenario(ctx context.Context, actor string, propertyID uuid.UUID, o engine.CashToCloseOverlay) (*models.Property, error) {
	if field, err := checkCashOverlay(o); err != nil {
		return nil, invalid(field, err)
	}
	p, err := s.properties.Get(ctx, actor, propertyID)
	if err != nil {
		return nil, err
	}
	updated := o.Apply(*p)
	return s.properties.Update(ctx, actor, &updated)
}

// Export evaluates the property and archives the snapshot, returning the
// archive URL.
func (s *EvaluationService) Export(ctx context.Context, actor string, propertyID uuid.UUID) (string, error) {
	if s.reports == nil {
		return "", ErrExportDisabled
	}
	ev, err := s.Evaluate(ctx, actor, propertyID)
	if err != nil {
		return "", err
	}
	url, err := s.reports.Put(ctx, ev)
	if err != nil {
		return "", fmt.Errorf("archive evaluation: %w", err)
	}
	s.logger.Info("evaluation exported", zap.String("property_id", propertyID.String()), zap.String("url", url))
	return url, nil
}

func checkMortgageOverlay(o engine.MortgageOverlay) (string, error) {
	switch {
	case o.DownPaymentPercent < 0 || o.DownPaymentPercent > 100:
		return "down_payment_percent", fmt.Errorf("down payment must be between 0 and 100 percent")
	case o.InterestRate < 0:
		return "interest_rate", fmt.Errorf("interest rate cannot be negative")
	case o.TermYears < 0:
		return "term_years", fmt.Errorf("loan term cannot be negative")
	case o.DownPaymentPercent < 100 && o.InterestRate == 0:
		return "interest_rate", fmt.Errorf("interest rate is required unless the purchase is all cash")
	case o.DownPaymentPercent < 100 && o.TermYears == 0:
		return "term_years", fmt.Errorf("loan term is required unless the purchase is all cash")
	case o.AnnualTaxes < 0 || o.AnnualInsurance < 0:
		return "annual_taxes", fmt.Errorf("taxes and insurance cannot be negative")
	}
	return "", nil
}

func checkCashOverlay(o engine.CashToCloseOverlay) (string, error) {
	switch {
	case o.DownPaymentPercent < 0 || o.DownPaymentPercent > 100:
		return "down_payment_percent", fmt.Errorf("down payment must be between 0 and 100 percent")
	case o.ClosingCostRate < 0 || o.ClosingCostRate > 100:
		return "closing_cost_rate", fmt.Errorf("closing cost rate must be between 0 and 100 percent")
	case o.RenoReserve < 0:
		return "reno_reserve", fmt.Errorf("renovation reserve cannot be negative")
	}
	return "", nil
}
