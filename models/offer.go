package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OfferStatus is the negotiation lifecycle state of an offer
type OfferStatus string

const (
	OfferStatusDraft           OfferStatus = "draft"
	OfferStatusReadyToSubmit   OfferStatus = "readyToSubmit"
	OfferStatusSubmitted       OfferStatus = "submitted"
	OfferStatusCounterReceived OfferStatus = "counterReceived"
	OfferStatusAccepted        OfferStatus = "accepted"
	OfferStatusRejected        OfferStatus = "rejected"
	OfferStatusWithdrawn       OfferStatus = "withdrawn"
	OfferStatusExpired         OfferStatus = "expired"
)

// offerTransitions lists the statuses reachable from each status
var offerTransitions = map[OfferStatus][]OfferStatus{
	OfferStatusDraft:           {OfferStatusReadyToSubmit, OfferStatusWithdrawn},
	OfferStatusReadyToSubmit:   {OfferStatusDraft, OfferStatusSubmitted, OfferStatusWithdrawn},
	OfferStatusSubmitted:       {OfferStatusCounterReceived, OfferStatusAccepted, OfferStatusRejected, OfferStatusWithdrawn, OfferStatusExpired},
	OfferStatusCounterReceived: {OfferStatusSubmitted, OfferStatusAccepted, OfferStatusRejected, OfferStatusWithdrawn, OfferStatusExpired},
	OfferStatusAccepted:        {},
	OfferStatusRejected:        {},
	OfferStatusWithdrawn:       {},
	OfferStatusExpired:         {},
}

func (s OfferStatus) IsValid() bool {
	_, ok := offerTransitions[s]
	return ok
}

// IsTerminal reports whether no further revisions or transitions are allowed
func (s OfferStatus) IsTerminal() bool {
	switch s {
	case OfferStatusAccepted, OfferStatusRejected, OfferStatusWithdrawn, OfferStatusExpired:
		return true
	}
	return false
}

// Label returns a human-readable label for the status
func (s OfferStatus) Label() string {
	switch s {
	case OfferStatusDraft:
		return "Draft"
	case OfferStatusReadyToSubmit:
		return "Ready to submit"
	case OfferStatusSubmitted:
		return "Submitted"
	case OfferStatusCounterReceived:
		return "Counter received"
	case OfferStatusAccepted:
		return "Accepted"
	case OfferStatusRejected:
		return "Rejected"
	case OfferStatusWithdrawn:
		return "Withdrawn"
	case OfferStatusExpired:
		return "Expired"
	default:
		return string(s)
	}
}

// CanTransition checks the transition table
func (s OfferStatus) CanTransition(target OfferStatus) bool {
	for _, allowed := range offerTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// OfferClientDecision is the client's recommendation, independent of status
type OfferClientDecision string

const (
	DecisionPending        OfferClientDecision = "pending"
	DecisionRecommend      OfferClientDecision = "recommend"
	DecisionDoNotRecommend OfferClientDecision = "doNotRecommend"
)

func (d OfferClientDecision) IsValid() bool {
	switch d {
	case DecisionPending, DecisionRecommend, DecisionDoNotRecommend:
		return true
	}
	return false
}

// PropertyOffer is one negotiation against a property
type PropertyOffer struct {
	ID                uuid.UUID           `json:"id" db:"id"`
	PropertyID        uuid.UUID           `json:"property_id" db:"property_id"`
	OwnerID           string              `json:"owner_id" db:"owner_id"`
	Title             string              `json:"title" db:"title"`
	Status            OfferStatus         `json:"status" db:"status"`
	ClientDecision    OfferClientDecision `json:"client_decision" db:"client_decision"`
	CurrentRevisionID *uuid.UUID          `json:"current_revision_id" db:"current_revision_id"`
	DealRoomID        *string             `json:"deal_room_id,omitempty" db:"deal_room_id"`
	ExpiresAt         *time.Time          `json:"expires_at,omitempty" db:"expires_at"`
	Archived          bool                `json:"archived" db:"archived"`
	CreatedAt         time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at" db:"updated_at"`
}

// IsActive reports whether the offer counts against the entitlement limit
func (o *PropertyOffer) IsActive() bool {
	return !o.Archived && !o.Status.IsTerminal()
}

// RevisionTerms are the negotiable fields of a revision
type RevisionTerms struct {
	PurchasePrice            float64    `json:"purchase_price"`
	EarnestMoney             float64    `json:"earnest_money"`
	DownPaymentPercent       float64    `json:"down_payment_percent"`
	ClosingCostCredit        float64    `json:"closing_cost_credit"`
	OptionPeriodDays         *int       `json:"option_period_days,omitempty"`
	InspectionPeriodDays     *int       `json:"inspection_period_days,omitempty"`
	FinancingContingencyDays *int       `json:"financing_contingency_days,omitempty"`
	AppraisalContingency     bool       `json:"appraisal_contingency"`
	SellerConcessions        float64    `json:"seller_concessions"`
	EstimatedCloseDate       *time.Time `json:"estimated_close_date,omitempty"`
	Notes                    string     `json:"notes"`
}

// Validate rejects terms that cannot describe a real offer
func (t *RevisionTerms) Validate() (field string, err error) {
	if t.PurchasePrice <= 0 {
		return "purchase_price", fmt.Errorf("offer price must be greater than zero")
	}
	if t.EarnestMoney < 0 || t.ClosingCostCredit < 0 || t.SellerConcessions < 0 {
		return "terms", fmt.Errorf("earnest money, credits and concessions cannot be negative")
	}
	if t.DownPaymentPercent < 0 || t.DownPaymentPercent > 100 {
		return "down_payment_percent", fmt.Errorf("down payment must be between 0 and 100 percent")
	}
	periods := []struct {
		field string
		days  *int
	}{
		{"option_period_days", t.OptionPeriodDays},
		{"inspection_period_days", t.InspectionPeriodDays},
		{"financing_contingency_days", t.FinancingContingencyDays},
	}
	for _, p := range periods {
		if p.days != nil && *p.days < 0 {
			return p.field, fmt.Errorf("contingency periods cannot be negative")
		}
	}
	return "", nil
}

// OfferRevision is an immutable snapshot of terms. Number starts at 1 and is
// assigned by the repository.
type OfferRevision struct {
	ID        uuid.UUID `json:"id" db:"id"`
	OfferID   uuid.UUID `json:"offer_id" db:"offer_id"`
	Number    int       `json:"number" db:"number"`
	AuthorID  string    `json:"author_id" db:"author_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	RevisionTerms
}

// CurrentRevision follows the offer's pointer, falling back to the highest
// numbered revision. It returns nil when there are no revisions.
func CurrentRevision(offer *PropertyOffer, revisions []OfferRevision) *OfferRevision {
	var latest *OfferRevision
	for i := range revisions {
		r := &revisions[i]
		if offer.CurrentRevisionID != nil && r.ID == *offer.CurrentRevisionID {
			return r
		}
		if latest == nil || r.Number > latest.Number {
			latest = r
		}
	}
	return latest
}

// OfferComment is a user-authored note on an offer
type OfferComment struct {
	ID        uuid.UUID `json:"id" db:"id"`
	OfferID   uuid.UUID `json:"offer_id" db:"offer_id"`
	AuthorID  string    `json:"author_id" db:"author_id"`
	Body      string    `json:"body" db:"body"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Activity kinds
const (
	ActivityOfferCreated     = "offer_created"
	ActivityRevisionCreated  = "revision_created"
	ActivityStatusChanged    = "status_changed"
	ActivityDecisionChanged  = "decision_changed"
	ActivityCommentAdded     = "comment_added"
	ActivityCommentDeleted   = "comment_deleted"
	ActivityOfferArchived    = "offer_archived"
	ActivityDeadlineReminder = "deadline_reminder"
)

// OfferActivityEvent is a system-generated audit entry
type OfferActivityEvent struct {
	ID         uuid.UUID `json:"id" db:"id"`
	OfferID    uuid.UUID `json:"offer_id" db:"offer_id"`
	ActorID    string    `json:"actor_id" db:"actor_id"`
	Kind       string    `json:"kind" db:"kind"`
	Summary    string    `json:"summary" db:"summary"`
	OccurredAt time.Time `json:"occurred_at" db:"occurred_at"`
}

// OfferChange is delivered to repository listeners
type OfferChange struct {
	OfferID    uuid.UUID `json:"offer_id"`
	PropertyID uuid.UUID `json:"property_id"`
	Kind       string    `json:"kind"`
}
