package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ExpenseMode selects how operating expenses are modeled for a property
type ExpenseMode string

const (
	ExpenseModeFlat     ExpenseMode = "flat"
	ExpenseModeDetailed ExpenseMode = "detailed"
)

// Property is the persisted underwriting input for one deal
type Property struct {
	ID               uuid.UUID    `json:"id" db:"id"`
	OwnerID          string       `json:"owner_id" db:"owner_id"`
	Name             string       `json:"name" db:"name"`
	Address          string       `json:"address" db:"address"`
	PurchasePrice    float64      `json:"purchase_price" db:"purchase_price"`
	RentRoll         []RentUnit   `json:"rent_roll" db:"rent_roll"`
	Expenses         ExpenseModel `json:"expenses" db:"expenses"`
	Financing        Financing    `json:"financing" db:"financing"`
	MarginalTaxRate  *float64     `json:"marginal_tax_rate,omitempty" db:"marginal_tax_rate"`   // percent
	LandValuePercent *float64     `json:"land_value_percent,omitempty" db:"land_value_percent"` // percent of price
	GradeProfileID   *uuid.UUID   `json:"grade_profile_id,omitempty" db:"grade_profile_id"`
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at" db:"updated_at"`
}

// RentUnit is one line of the rent roll
type RentUnit struct {
	Label       string   `json:"label"`
	MonthlyRent float64  `json:"monthly_rent"`
	Beds        *int     `json:"beds,omitempty"`
	Baths       *float64 `json:"baths,omitempty"`
	SqFt        *int     `json:"sqft,omitempty"`
}

// ExpenseModel is either a flat percentage of gross rent or an itemized
// annual breakdown, depending on Mode.
type ExpenseModel struct {
	Mode               ExpenseMode `json:"mode"`
	FlatRate           float64     `json:"flat_rate"` // percent of gross rent
	AnnualTaxes        float64     `json:"annual_taxes"`
	AnnualInsurance    float64     `json:"annual_insurance"`
	ManagementFee      float64     `json:"management_fee"`
	MaintenanceReserve float64     `json:"maintenance_reserve"`
}

// Financing holds the purchase terms
type Financing struct {
	DownPaymentPercent float64 `json:"down_payment_percent"`
	InterestRate       float64 `json:"interest_rate"` // percent per annum
	TermYears          int     `json:"term_years"`
	ClosingCostRate    float64 `json:"closing_cost_rate"` // percent of price, 0 when not modeled
	RenoBudget         float64 `json:"reno_budget"`
}

// IsCashPurchase reports whether the deal carries no loan
func (f Financing) IsCashPurchase() bool {
	return f.DownPaymentPercent >= 100
}

// MonthlyRent sums the rent roll
func (p *Property) MonthlyRent() float64 {
	total := 0.0
	for _, u := range p.RentRoll {
		total += u.MonthlyRent
	}
	return total
}

// TaxesAndInsurance returns the itemized annual taxes and insurance, or zeros
// in flat expense mode where they are not broken out.
func (p *Property) TaxesAndInsurance() (taxes, insurance float64) {
	if p.Expenses.Mode != ExpenseModeDetailed {
		return 0, 0
	}
	return p.Expenses.AnnualTaxes, p.Expenses.AnnualInsurance
}

// Clone returns a deep copy so scenario overlays never alias the baseline
func (p Property) Clone() Property {
	out := p
	if p.RentRoll != nil {
		out.RentRoll = make([]RentUnit, len(p.RentRoll))
		copy(out.RentRoll, p.RentRoll)
	}
	if p.MarginalTaxRate != nil {
		v := *p.MarginalTaxRate
		out.MarginalTaxRate = &v
	}
	if p.LandValuePercent != nil {
		v := *p.LandValuePercent
		out.LandValuePercent = &v
	}
	if p.GradeProfileID != nil {
		v := *p.GradeProfileID
		out.GradeProfileID = &v
	}
	return out
}

// Validate checks the boundary invariants the engine relies on. It returns
// the offending field name with the message.
func (p *Property) Validate() (field string, err error) {
	if p.PurchasePrice < 0 {
		return "purchase_price", fmt.Errorf("purchase price cannot be negative")
	}
	for i, u := range p.RentRoll {
		if u.MonthlyRent < 0 {
			return fmt.Sprintf("rent_roll[%d].monthly_rent", i), fmt.Errorf("monthly rent for unit %d cannot be negative", i+1)
		}
	}
	switch p.Expenses.Mode {
	case ExpenseModeFlat:
		if p.Expenses.FlatRate < 0 || p.Expenses.FlatRate > 100 {
			return "expenses.flat_rate", fmt.Errorf("flat expense rate must be between 0 and 100 percent")
		}
	case ExpenseModeDetailed:
		e := p.Expenses
		if e.AnnualTaxes < 0 || e.AnnualInsurance < 0 || e.ManagementFee < 0 || e.MaintenanceReserve < 0 {
			return "expenses", fmt.Errorf("itemized expenses cannot be negative")
		}
	default:
		return "expenses.mode", fmt.Errorf("expense mode must be %q or %q", ExpenseModeFlat, ExpenseModeDetailed)
	}
	f := p.Financing
	if f.DownPaymentPercent < 0 || f.DownPaymentPercent > 100 {
		return "financing.down_payment_percent", fmt.Errorf("down payment must be between 0 and 100 percent")
	}
	if f.InterestRate < 0 {
		return "financing.interest_rate", fmt.Errorf("interest rate cannot be negative")
	}
	if !f.IsCashPurchase() && f.InterestRate == 0 {
		return "financing.interest_rate", fmt.Errorf("interest rate is required unless the purchase is all cash")
	}
	if f.TermYears < 0 {
		return "financing.term_years", fmt.Errorf("loan term cannot be negative")
	}
	if !f.IsCashPurchase() && f.TermYears == 0 {
		return "financing.term_years", fmt.Errorf("loan term is required unless the purchase is all cash")
	}
	if f.ClosingCostRate < 0 || f.ClosingCostRate > 100 {
		return "financing.closing_cost_rate", fmt.Errorf("closing cost rate must be between 0 and 100 percent")
	}
	if f.RenoBudget < 0 {
		return "financing.reno_budget", fmt.Errorf("renovation budget cannot be negative")
	}
	if p.MarginalTaxRate != nil && (*p.MarginalTaxRate < 0 || *p.MarginalTaxRate > 100) {
		return "marginal_tax_rate", fmt.Errorf("marginal tax rate must be between 0 and 100 percent")
	}
	if p.LandValuePercent != nil && (*p.LandValuePercent < 0 || *p.LandValuePercent > 100) {
		return "land_value_percent", fmt.Errorf("land value must be between 0 and 100 percent of price")
	}
	return "", nil
}
