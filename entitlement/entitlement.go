// Package entitlement answers what an owner's plan allows: how many active
// offers per property and whether premium pillars are evaluated.
package entitlement

import (
	"context"
	"fmt"

	"dealscope/config"
)

// Tier is the owner's plan level
type Tier string

const (
	TierFree Tier = "free"
	TierPaid Tier = "paid"
)

func (t Tier) IsValid() bool {
	switch t {
	case TierFree, TierPaid:
		return true
	}
	return false
}

// Entitlement is the resolved allowance for one owner
type Entitlement struct {
	Tier           Tier `json:"tier"`
	OfferLimit     int  `json:"offer_limit"` // active offers per property; <= 0 is unlimited
	PremiumPillars bool `json:"premium_pillars"`
}

// Unlimited reports whether the offer quota is disabled
func (e Entitlement) Unlimited() bool {
	return e.OfferLimit <= 0
}

// Provider resolves entitlements for owners
type Provider interface {
	Get(ctx context.Context, ownerID string) (Entitlement, error)
}

// Static resolves entitlements from configuration
type Static struct {
	defaultTier Tier
	paid        map[string]bool
	freeLimit   int
	paidLimit   int
}

// NewStatic builds a provider from the entitlement config block
func NewStatic(cfg config.EntitlementConfig) (*Static, error) {
	tier := Tier(cfg.DefaultTier)
	if !tier.IsValid() {
		return nil, fmt.Errorf("unknown entitlement tier %q", cfg.DefaultTier)
	}
	s := &Static{
		defaultTier: tier,
		paid:        make(map[string]bool, len(cfg.PaidOwners)),
		freeLimit:   cfg.FreeLimit,
		paidLimit:   cfg.PaidLimit,
	}
	for _, owner := range cfg.PaidOwners {
		s.paid[owner] = true
	}
	return s, nil
}

func (s *Static) Get(ctx context.Context, ownerID string) (Entitlement, error) {
	if err := ctx.Err(); err != nil {
		return Entitlement{}, err
	}
	tier := s.defaultTier
	if s.paid[ownerID] {
		tier = TierPaid
	}
	if tier == TierPaid {
		return Entitlement{Tier: TierPaid, OfferLimit: s.paidLimit, PremiumPillars: true}, nil
	}
	return Entitlement{Tier: TierFree, OfferLimit: s.freeLimit}, nil
}
