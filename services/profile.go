package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dealscope/logging"
	"dealscope/models"
	"dealscope/storage"
)

// ProfileStore persists grade profiles. Profiles with an empty owner are
// shared templates visible to everyone.
type ProfileStore interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*models.GradeProfile, error)
	GetDefaultProfile(ctx context.Context, ownerID string) (*models.GradeProfile, error)
	ListProfiles(ctx context.Context, ownerID string) ([]models.GradeProfile, error)
	FindProfileByName(ctx context.Context, ownerID, name string) (*models.GradeProfile, error)
	CreateProfile(ctx context.Context, g *models.GradeProfile) error
	UpdateProfile(ctx context.Context, g *models.GradeProfile) error
	DeleteProfile(ctx context.Context, id uuid.UUID) error
	SetDefaultProfile(ctx context.Context, ownerID string, id uuid.UUID) error
}

type ProfileService struct {
	store  ProfileStore
	logger *zap.Logger
	now    func() time.Time
}

func NewProfileService(store ProfileStore, logger *zap.Logger) *ProfileService {
	return &ProfileService{
		store:  store,
		logger: logging.Named(logger, "profiles"),
		now:    time.Now,
	}
}

func (s *ProfileService) List(ctx context.Context, actor string) ([]models.GradeProfile, error) {
	if actor == "" {
		return nil, ErrNotAuthenticated
	}
	profiles, err := s.store.ListProfiles(ctx, actor)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return profiles, nil
}

// Get returns a profile the actor owns or a shared template
func (s *ProfileService) Get(ctx context.Context, actor string, id uuid.UUID) (*models.GradeProfile, error) {
	if actor == "" {
		return nil, ErrNotAuthenticated
	}
	g, err := s.store.GetProfile(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if g == nil || (g.OwnerID != actor && g.OwnerID != "") {
		return nil, ErrNotFound
	}
	return g, nil
}

func (s *ProfileService) Create(ctx context.Context, actor string, g *models.GradeProfile) (*models.GradeProfile, error) {
	if actor == "" {
		return nil, ErrNotAuthenticated
	}
	now := s.now().UTC()
	g.ID = uuid.New()
	g.OwnerID = actor
	g.CreatedAt = now
	g.UpdatedAt = now
	if err := g.Check(); err != nil {
		return nil, invalid("profile", err)
	}
	if err := s.store.CreateProfile(ctx, g); err != nil {
		return nil, profileWriteErr("create profile", err)
	}
	return g, nil
}

// Update replaces thresholds on a profile the actor owns. Shared templates
// are read-only.
func (s *ProfileService) Update(ctx context.Context, actor string, g *models.GradeProfile) (*models.GradeProfile, error) {
	existing, err := s.owned(ctx, actor, g.ID)
	if err != nil {
		return nil, err
	}
	g.OwnerID = existing.OwnerID
	g.CreatedAt = existing.CreatedAt
	g.UpdatedAt = s.now().UTC()
	if err := g.Check(); err != nil {
		return nil, invalid("profile", err)
	}
	if err := s.store.UpdateProfile(ctx, g); err != nil {
		return nil, profileWriteErr("update profile", err)
	}
	return g, nil
}

// Delete removes a profile. Properties that pointed at it resolve through
// their owner's default afterwards.
func (s *ProfileService) Delete(ctx context.Context, actor string, id uuid.UUID) error {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return err
	}
	if err := s.store.DeleteProfile(ctx, id); err != nil {
		return profileWriteErr("delete profile", err)
	}
	return nil
}

// SetDefault makes id the actor's only default profile
func (s *ProfileService) SetDefault(ctx context.Context, actor string, id uuid.UUID) error {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return err
	}
	if err := s.store.SetDefaultProfile(ctx, actor, id); err != nil {
		return profileWriteErr("set default profile", err)
	}
	s.logger.Info("default profile changed", zap.String("owner_id", actor), zap.String("profile_id", id.String()))
	return nil
}

// Resolve picks the thresholds for a property: its own override, then the
// owner's default, then the built-in fallback.
func (s *ProfileService) Resolve(ctx context.Context, p *models.Property) (models.GradeProfile, error) {
	if p.GradeProfileID != nil {
		g, err := s.store.GetProfile(ctx, *p.GradeProfileID)
		if err != nil {
			return models.GradeProfile{}, fmt.Errorf("get profile: %w", err)
		}
		if g != nil && (g.OwnerID == p.OwnerID || g.OwnerID == "") {
			return *g, nil
		}
	}

	g, err := s.store.GetDefaultProfile(ctx, p.OwnerID)
	if err != nil {
		return models.GradeProfile{}, fmt.Errorf("get default profile: %w", err)
	}
	if g != nil {
		return *g, nil
	}
	return models.FallbackGradeProfile(), nil
}

// Seed inserts configured profiles that do not exist yet, matched by owner
// and name. It returns how many were created.
func (s *ProfileService) Seed(ctx context.Context, profiles []models.GradeProfile) (int, error) {
	created := 0
	for _, g := range profiles {
		existing, err := s.store.FindProfileByName(ctx, g.OwnerID, g.Name)
		if err != nil {
			return created, fmt.Errorf("find profile %q: %w", g.Name, err)
		}
		if existing != nil {
			continue
		}

		now := s.now().UTC()
		g.ID = uuid.New()
		g.CreatedAt = now
		g.UpdatedAt = now
		if err := s.store.CreateProfile(ctx, &g); err != nil {
			return created, fmt.Errorf("seed profile %q: %w", g.Name, err)
		}
		created++
	}
	if created > 0 {
		s.logger.Info("seeded grade profiles", zap.Int("count", created))
	}
	return created, nil
}

func (s *ProfileService) owned(ctx context.Context, actor string, id uuid.UUID) (*models.GradeProfile, error) {
	g, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if g.OwnerID != actor {
		return nil, ErrNotFound
	}
	return g, nil
}

func profileWriteErr(op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, storage.ErrConflict):
		return &ValidationError{Field: "name", Message: "a profile with this name already exists"}
	}
	return fmt.Errorf("%s: %w", op, err)
}
