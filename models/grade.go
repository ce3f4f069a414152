package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Grade is the letter tier assigned to a deal. D and F share the lowest tier.
type Grade string

const (
	GradeA  Grade = "A"
	GradeB  Grade = "B"
	GradeC  Grade = "C"
	GradeDF Grade = "D/F"
)

// Tier maps the grade onto A=3, B=2, C=1, D/F=0 for delta calculations
func (g Grade) Tier() int {
	switch g {
	case GradeA:
		return 3
	case GradeB:
		return 2
	case GradeC:
		return 1
	default:
		return 0
	}
}

func (g Grade) IsValid() bool {
	switch g {
	case GradeA, GradeB, GradeC, GradeDF:
		return true
	}
	return false
}

func (g *Grade) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if !Grade(s).IsValid() {
		return fmt.Errorf("invalid grade %q", s)
	}
	*g = Grade(s)
	return nil
}

// GradeProfile is a named set of thresholds for the pillar evaluator and
// grading engine. At most one profile per owner carries IsDefault.
type GradeProfile struct {
	ID                  uuid.UUID `json:"id" db:"id" yaml:"-"`
	OwnerID             string    `json:"owner_id" db:"owner_id" yaml:"owner_id"`
	Name                string    `json:"name" db:"name" yaml:"name"`
	IsDefault           bool      `json:"is_default" db:"is_default" yaml:"default"`
	CashFlowFloor       float64   `json:"cash_flow_floor" db:"cash_flow_floor" yaml:"cash_flow_floor"`    // monthly
	CashFlowBuffer      float64   `json:"cash_flow_buffer" db:"cash_flow_buffer" yaml:"cash_flow_buffer"` // borderline band below floor
	TargetDCR           float64   `json:"target_dcr" db:"target_dcr" yaml:"target_dcr"`
	MinEquityPercent    float64   `json:"min_equity_percent" db:"min_equity_percent" yaml:"min_equity_percent"`
	MinAnnualTaxBenefit float64   `json:"min_annual_tax_benefit" db:"min_annual_tax_benefit" yaml:"min_annual_tax_benefit"`
	CreatedAt           time.Time `json:"created_at" db:"created_at" yaml:"-"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at" yaml:"-"`
}

// FallbackProfileName names the built-in profile used when nothing is configured
const FallbackProfileName = "Built-in"

// FallbackGradeProfile is applied when a property has no override and its
// owner has no default profile.
func FallbackGradeProfile() GradeProfile {
	return GradeProfile{
		ID:                  uuid.Nil,
		Name:                FallbackProfileName,
		CashFlowFloor:       100,
		CashFlowBuffer:      50,
		TargetDCR:           1.25,
		MinEquityPercent:    5,
		MinAnnualTaxBenefit: 1000,
	}
}

// Check validates threshold sanity
func (g *GradeProfile) Check() error {
	if g.Name == "" {
		return fmt.Errorf("profile name is required")
	}
	if g.CashFlowBuffer < 0 {
		return fmt.Errorf("cash flow buffer cannot be negative")
	}
	if g.TargetDCR < 1 {
		return fmt.Errorf("target DCR must be at least 1.0")
	}
	if g.MinEquityPercent < 0 {
		return fmt.Errorf("minimum equity cannot be negative")
	}
	if g.MinAnnualTaxBenefit < 0 {
		return fmt.Errorf("minimum tax benefit cannot be negative")
	}
	return nil
}
