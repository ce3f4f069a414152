package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dealscope/logging"
	"dealscope/models"
	"dealscope/storage"
)

// PropertyStore persists underwriting inputs
type PropertyStore interface {
	GetProperty(ctx context.Context, id uuid.UUID) (*models.Property, error)
	ListProperties(ctx context.Context, ownerID string) ([]models.Property, error)
	CreateProperty(ctx context.Context, p *models.Property) error
	UpdateProperty(ctx context.Context, p *models.Property) error
	DeleteProperty(ctx context.Context, id uuid.UUID) error
}

// PropertyService owns property CRUD and boundary validation. Every call is
// scoped to the acting owner; properties of other owners read as not found.
type PropertyService struct {
	store    PropertyStore
	profiles ProfileStore
	logger   *zap.Logger
	now      func() time.Time
}

func NewPropertyService(store PropertyStore, profiles ProfileStore, logger *zap.Logger) *PropertyService {
	return &PropertyService{
		store:    store,
		profiles: profiles,
		logger:   logging.Named(logger, "properties"),
		now:      time.Now,
	}
}

func (s *PropertyService) List(ctx context.Context, actor string) ([]models.Property, error) {
	if actor == "" {
		return nil, ErrNotAuthenticated
	}
	props, err := s.store.ListProperties(ctx, actor)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	return props, nil
}

func (s *PropertyService) Get(ctx context.Context, actor string, id uuid.UUID) (*models.Property, error) {
	if actor == "" {
		return nil, ErrNotAuthenticated
	}
	p, err := s.store.GetProperty(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get property: %w", err)
	}
	if p == nil || p.OwnerID != actor {
		return nil, ErrNotFound
	}
	return p, nil
}

func (s *PropertyService) Create(ctx context.Context, actor string, p *models.Property) (*models.Property, error) {
	if actor == "" {
		return nil, ErrNotAuthenticated
	}
	now := s.now().UTC()
	p.ID = uuid.New()
	p.OwnerID = actor
	p.CreatedAt = now
	p.UpdatedAt = now
	if err := s.check(ctx, p); err != nil {
		return nil, err
	}

	if err := s.store.CreateProperty(ctx, p); err != nil {
		return nil, s.writeErr("create property", err)
	}
	s.logger.Info("property created", zap.String("property_id", p.ID.String()), zap.String("owner_id", actor))
	return p, nil
}

// Update replaces the property's inputs. Identity and ownership are kept
// from the stored row.
func (s *PropertyService) Update(ctx context.Context, actor string, p *models.Property) (*models.Property, error) {
	existing, err := s.Get(ctx, actor, p.ID)
	if err != nil {
		return nil, err
	}
	p.OwnerID = existing.OwnerID
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.now().UTC()
	if err := s.check(ctx, p); err != nil {
		return nil, err
	}

	if err := s.store.UpdateProperty(ctx, p); err != nil {
		return nil, s.writeErr("update property", err)
	}
	return p, nil
}

func (s *PropertyService) Delete(ctx context.Context, actor string, id uuid.UUID) error {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return err
	}
	if err := s.store.DeleteProperty(ctx, id); err != nil {
		return s.writeErr("delete property", err)
	}
	s.logger.Info("property deleted", zap.String("property_id", id.String()))
	return nil
}

// ImportRentRoll replaces the property's rent roll with the rows of a CSV
// file.
func (s *PropertyService) ImportRentRoll(ctx context.Context, actor string, id uuid.UUID, r io.Reader) (*models.Property, error) {
	p, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	units, err := ParseRentRoll(r)
	if err != nil {
		return nil, err
	}
	p.RentRoll = units
	updated, err := s.Update(ctx, actor, p)
	if err != nil {
		return nil, err
	}
	s.logger.Info("rent roll imported", zap.String("property_id", id.String()), zap.Int("units", len(units)))
	return updated, nil
}

func (s *PropertyService) check(ctx context.Context, p *models.Property) error {
	if field, err := p.Validate(); err != nil {
		return invalid(field, err)
	}
	if p.GradeProfileID == nil {
		return nil
	}
	g, err := s.profiles.GetProfile(ctx, *p.GradeProfileID)
	if err != nil {
		return fmt.Errorf("get profile: %w", err)
	}
	if g == nil || (g.OwnerID != p.OwnerID && g.OwnerID != "") {
		return &ValidationError{Field: "grade_profile_id", Message: "the selected grade profile does not exist"}
	}
	return nil
}

func (s *PropertyService) writeErr(op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, storage.ErrConflict):
		return &ValidationError{Field: "address", Message: "a property with this address already exists"}
	}
	return fmt.Errorf("%s: %w", op, err)
}
