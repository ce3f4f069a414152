package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func financedProperty() Property {
	return Property{
		PurchasePrice: 200000,
		RentRoll:      []RentUnit{{Label: "A", MonthlyRent: 1800}},
		Expenses:      ExpenseModel{Mode: ExpenseModeFlat, FlatRate: 35},
		Financing:     Financing{DownPaymentPercent: 25, InterestRate: 6.5, TermYears: 30},
	}
}

func TestPropertyValidate_Financing(t *testing.T) {
	tests := []struct {
		name      string
		financing Financing
		wantField string
	}{
		{name: "financed", financing: Financing{DownPaymentPercent: 25, InterestRate: 6.5, TermYears: 30}},
		{name: "all cash needs no loan terms", financing: Financing{DownPaymentPercent: 100}},
		{name: "financed without rate", financing: Financing{DownPaymentPercent: 25, TermYears: 30}, wantField: "financing.interest_rate"},
		{name: "financed without term", financing: Financing{DownPaymentPercent: 25, InterestRate: 6.5}, wantField: "financing.term_years"},
		{name: "negative term", financing: Financing{DownPaymentPercent: 25, InterestRate: 6.5, TermYears: -1}, wantField: "financing.term_years"},
		{name: "down payment over 100", financing: Financing{DownPaymentPercent: 120, InterestRate: 6.5, TermYears: 30}, wantField: "financing.down_payment_percent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := financedProperty()
			p.Financing = tt.financing
			field, err := p.Validate()
			if tt.wantField == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantField, field)
		})
	}
}
