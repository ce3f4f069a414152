package models

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStatuses = []OfferStatus{
	OfferStatusDraft,
	OfferStatusReadyToSubmit,
	OfferStatusSubmitted,
	OfferStatusCounterReceived,
	OfferStatusAccepted,
	OfferStatusRejected,
	OfferStatusWithdrawn,
	OfferStatusExpired,
}

func TestOfferStatus_TransitionTable(t *testing.T) {
	allowed := map[OfferStatus][]OfferStatus{
		OfferStatusDraft:           {OfferStatusReadyToSubmit, OfferStatusWithdrawn},
		OfferStatusReadyToSubmit:   {OfferStatusDraft, OfferStatusSubmitted, OfferStatusWithdrawn},
		OfferStatusSubmitted:       {OfferStatusCounterReceived, OfferStatusAccepted, OfferStatusRejected, OfferStatusWithdrawn, OfferStatusExpired},
		OfferStatusCounterReceived: {OfferStatusSubmitted, OfferStatusAccepted, OfferStatusRejected, OfferStatusWithdrawn, OfferStatusExpired},
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransition(to), "%s -> %s", from, to)
		}
	}
}

func TestOfferStatus_TerminalStatesAreSinks(t *testing.T) {
	for _, s := range allStatuses {
		if !s.IsTerminal() {
			continue
		}
		for _, to := range allStatuses {
			assert.False(t, s.CanTransition(to), "%s -> %s", s, to)
		}
	}
	assert.True(t, OfferStatusAccepted.IsTerminal())
	assert.False(t, OfferStatusCounterReceived.IsTerminal())
}

func TestOfferStatus_SelfTransitionRejected(t *testing.T) {
	for _, s := range allStatuses {
		assert.False(t, s.CanTransition(s), string(s))
	}
}

func TestOfferStatus_Validity(t *testing.T) {
	for _, s := range allStatuses {
		assert.True(t, s.IsValid())
		assert.NotEmpty(t, s.Label())
	}
	assert.False(t, OfferStatus("countered").IsValid())
	assert.Equal(t, "Counter received", OfferStatusCounterReceived.Label())
}

func TestOfferClientDecision_IsValid(t *testing.T) {
	assert.True(t, DecisionPending.IsValid())
	assert.True(t, DecisionRecommend.IsValid())
	assert.True(t, DecisionDoNotRecommend.IsValid())
	assert.False(t, OfferClientDecision("maybe").IsValid())
}

func TestPropertyOffer_IsActive(t *testing.T) {
	o := &PropertyOffer{Status: OfferStatusSubmitted}
	assert.True(t, o.IsActive())

	o.Archived = true
	assert.False(t, o.IsActive())

	o = &PropertyOffer{Status: OfferStatusWithdrawn}
	assert.False(t, o.IsActive())
}

func TestRevisionTerms_Validate(t *testing.T) {
	days := func(n int) *int { return &n }

	tests := []struct {
		name  string
		terms RevisionTerms
		field string
	}{
		{"valid", RevisionTerms{PurchasePrice: 190000, EarnestMoney: 2000, DownPaymentPercent: 20, OptionPeriodDays: days(7)}, ""},
		{"zero price", RevisionTerms{}, "purchase_price"},
		{"negative earnest", RevisionTerms{PurchasePrice: 1, EarnestMoney: -1}, "terms"},
		{"down over 100", RevisionTerms{PurchasePrice: 1, DownPaymentPercent: 101}, "down_payment_percent"},
		{"negative inspection", RevisionTerms{PurchasePrice: 1, InspectionPeriodDays: days(-3)}, "inspection_period_days"},
		{"first negative period wins", RevisionTerms{PurchasePrice: 1, OptionPeriodDays: days(-1), InspectionPeriodDays: days(-2), FinancingContingencyDays: days(-3)}, "option_period_days"},
		{"inspection before financing", RevisionTerms{PurchasePrice: 1, InspectionPeriodDays: days(-2), FinancingContingencyDays: days(-3)}, "inspection_period_days"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			field, err := tt.terms.Validate()
			assert.Equal(t, tt.field, field)
			if tt.field == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestOfferRevision_JSONFlattensTerms(t *testing.T) {
	rev := OfferRevision{Number: 2, RevisionTerms: RevisionTerms{PurchasePrice: 185000}}
	data, err := json.Marshal(rev)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, 185000.0, raw["purchase_price"])
	assert.Equal(t, 2.0, raw["number"])
}

func TestGrade_UnmarshalJSON(t *testing.T) {
	var g Grade
	require.NoError(t, json.Unmarshal([]byte(`"D/F"`), &g))
	assert.Equal(t, GradeDF, g)
	assert.Error(t, json.Unmarshal([]byte(`"E"`), &g))
}

func TestGradeProfile_Check(t *testing.T) {
	p := FallbackGradeProfile()
	assert.NoError(t, p.Check())

	p.TargetDCR = 0.9
	assert.Error(t, p.Check())

	p = FallbackGradeProfile()
	p.Name = ""
	assert.Error(t, p.Check())

	p = FallbackGradeProfile()
	p.CashFlowBuffer = -1
	assert.Error(t, p.Check())
}

func TestCurrentRevision(t *testing.T) {
	first := OfferRevision{ID: uuid.New(), Number: 1}
	second := OfferRevision{ID: uuid.New(), Number: 2}
	revisions := []OfferRevision{first, second}

	offer := &PropertyOffer{CurrentRevisionID: &first.ID}
	assert.Equal(t, first.ID, CurrentRevision(offer, revisions).ID)

	offer.CurrentRevisionID = nil
	assert.Equal(t, second.ID, CurrentRevision(offer, revisions).ID)

	assert.Nil(t, CurrentRevision(offer, nil))
}
