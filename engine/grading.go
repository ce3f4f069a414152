package engine

import (
	"time"

	"github.com/google/uuid"

	"dealscope/models"
)

// Pillar thresholds for the A and B tiers, stated against all four pillars.
// When some pillars need input the threshold scales to the evaluated ones.
const (
	gradeAMet = 3
	gradeBMet = 2
)

// GradeDeal assigns the letter grade. Tiers are checked from the top and the
// first match wins. Pillars that need input count neither as met nor as
// evaluated. A deal without debt service satisfies every DCR floor.
//
//	A    DCR >= profile target, 3 of 4 evaluated pillars met, cash flow met
//	B    DCR >= 1.0, 2 of 4 evaluated pillars met, cash flow not notMet
//	C    cash flow met or borderline
//	D/F  anything else, including no metrics
func GradeDeal(m *models.DealMetrics, pillars models.PillarEvaluation, profile models.GradeProfile) models.Grade {
	if m == nil {
		return models.GradeDF
	}

	cashFlow := pillars.Get(models.PillarCashFlow).Status

	switch {
	case m.MeetsDCR(profile.TargetDCR) && metEnough(pillars, gradeAMet) && cashFlow == models.PillarMet:
		return models.GradeA
	case m.MeetsDCR(1.0) && metEnough(pillars, gradeBMet) && cashFlow != models.PillarNotMet:
		return models.GradeB
	case cashFlow == models.PillarMet || cashFlow == models.PillarBorderline:
		return models.GradeC
	default:
		return models.GradeDF
	}
}

// metEnough reports whether the met pillars reach want out of all pillars,
// judged only against the pillars that were evaluated. With every pillar
// evaluated this is met >= want.
func metEnough(pillars models.PillarEvaluation, want int) bool {
	met, evaluated := pillars.MetCount(), pillars.EvaluatedCount()
	if evaluated == 0 {
		return false
	}
	return met >= min(want, evaluated) && met*len(models.PillarOrder) >= want*evaluated
}

// Evaluate runs the whole pipeline for one property
func Evaluate(p *models.Property, profile models.GradeProfile, sig Signals) models.Evaluation {
	m := ComputeMetrics(p)
	pillars := EvaluatePillars(m, p, profile, sig)
	ev := models.Evaluation{
		Metrics:   m,
		Breakdown: PropertyMortgage(p),
		Pillars:   pillars,
		Grade:     GradeDeal(m, pillars, profile),
	}
	if p != nil {
		ev.PropertyID = p.ID.String()
	}
	if profile.ID != uuid.Nil {
		ev.ProfileID = profile.ID.String()
	}
	return ev
}

// Stamp sets the evaluation time; Evaluate itself never reads the clock.
func Stamp(ev models.Evaluation, at time.Time) models.Evaluation {
	ev.EvaluatedAt = at
	return ev
}
