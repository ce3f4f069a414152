package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dealscope/entitlement"
	"dealscope/logging"
	"dealscope/models"
	"dealscope/money"
	"dealscope/storage"
)

// OfferRepository persists offers with their revisions, comments and
// activity. Every write records its activity event in the same call.
type OfferRepository interface {
	ListOffersByProperty(ctx context.Context, propertyID uuid.UUID, includeArchived bool) ([]models.PropertyOffer, error)
	ListActiveOffers(ctx context.Context) ([]models.PropertyOffer, error)
	GetOffer(ctx context.Context, id uuid.UUID) (*models.PropertyOffer, error)
	CountActiveOffers(ctx context.Context, propertyID uuid.UUID, ownerID string) (int, error)
	ListRevisions(ctx context.Context, offerID uuid.UUID) ([]models.OfferRevision, error)
	ListComments(ctx context.Context, offerID uuid.UUID) ([]models.OfferComment, error)
	GetComment(ctx context.Context, id uuid.UUID) (*models.OfferComment, error)
	ListActivity(ctx context.Context, offerID uuid.UUID) ([]models.OfferActivityEvent, error)

	CreateOffer(ctx context.Context, offer *models.PropertyOffer, rev *models.OfferRevision, ev *models.OfferActivityEvent) error
	CreateRevision(ctx context.Context, rev *models.OfferRevision, ev *models.OfferActivityEvent) error
	UpdateOfferStatus(ctx context.Context, offerID uuid.UUID, from, to models.OfferStatus, ev *models.OfferActivityEvent) error
	UpdateClientDecision(ctx context.Context, offerID uuid.UUID, decision models.OfferClientDecision, ev *models.OfferActivityEvent) error
	ArchiveOffer(ctx context.Context, offerID uuid.UUID, ev *models.OfferActivityEvent) error
	AddComment(ctx context.Context, c *models.OfferComment, ev *models.OfferActivityEvent) error
	DeleteComment(ctx context.Context, commentID uuid.UUID, ev *models.OfferActivityEvent) error
	AppendActivity(ctx context.Context, ev *models.OfferActivityEvent) error

	Listen(ctx context.Context, fn func(models.OfferChange)) (func(), error)
}

// PropertyLookup resolves a property for an owner, returning ErrNotFound when
// it is missing or belongs to someone else
type PropertyLookup interface {
	Get(ctx context.Context, actor string, id uuid.UUID) (*models.Property, error)
}

// OfferDetail is everything the negotiation view shows for one offer
type OfferDetail struct {
	Offer           models.PropertyOffer        `json:"offer"`
	Revisions       []models.OfferRevision      `json:"revisions"`
	CurrentRevision *models.OfferRevision       `json:"current_revision"`
	Comments        []models.OfferComment       `json:"comments"`
	Activity        []models.OfferActivityEvent `json:"activity"`
	NextDeadline    *models.Deadline            `json:"next_deadline"`
}

// NewOffer is the input to CreateOffer
type NewOffer struct {
	PropertyID uuid.UUID            `json:"property_id"`
	Title      string               `json:"title"`
	DealRoomID *string              `json:"deal_room_id,omitempty"`
	ExpiresAt  *time.Time           `json:"expires_at,omitempty"`
	Terms      models.RevisionTerms `json:"terms"`
}

// OfferService enforces the negotiation rules on top of the repository.
// Offers are owner-scoped: another owner's offer reads as not found.
type OfferService struct {
	repo         OfferRepository
	properties   PropertyLookup
	entitlements entitlement.Provider
	logger       *zap.Logger
	now          func() time.Time

	offerLocks    keyedMutex
	propertyLocks keyedMutex
}

func NewOfferService(repo OfferRepository, properties PropertyLookup, entitlements entitlement.Provider, logger *zap.Logger) *OfferService {
	return &OfferService{
		repo:         repo,
		properties:   properties,
		entitlements: entitlements,
		logger:       logging.Named(logger, "offers"),
		now:          time.Now,
	}
}

// =============================================================================
// Reads
// =============================================================================

// FetchOffers lists the actor's offers on a property, newest first
func (s *OfferService) FetchOffers(ctx context.Context, actor string, propertyID uuid.UUID, includeArchived bool) ([]models.PropertyOffer, error) {
	if actor == "" {
		return nil, ErrNotAuthenticated
	}
	offers, err := s.repo.ListOffersByProperty(ctx, propertyID, includeArchived)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	out := offers[:0]
	for _, o := range offers {
		if o.OwnerID == actor {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *OfferService) FetchDetail(ctx context.Context, actor string, offerID uuid.UUID) (*OfferDetail, error) {
	offer, err := s.offer(ctx, actor, offerID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, offer)
}

func (s *OfferService) detail(ctx context.Context, offer *models.PropertyOffer) (*OfferDetail, error) {
	revisions, err := s.repo.ListRevisions(ctx, offer.ID)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	comments, err := s.repo.ListComments(ctx, offer.ID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	activity, err := s.repo.ListActivity(ctx, offer.ID)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}

	d := &OfferDetail{
		Offer:     *offer,
		Revisions: revisions,
		Comments:  comments,
		Activity:  activity,
	}
	d.CurrentRevision = models.CurrentRevision(offer, revisions)
	d.NextDeadline = models.NextDeadline(d.CurrentRevision, offer.ExpiresAt, s.now())
	return d, nil
}

func (s *OfferService) offer(ctx context.Context, actor string, offerID uuid.UUID) (*models.PropertyOffer, error) {
	if actor == "" {
		return nil, ErrNotAuthenticated
	}
	o, err := s.repo.GetOffer(ctx, offerID)
	if err != nil {
		return nil, fmt.Errorf("get offer: %w", err)
	}
	if o == nil || o.OwnerID != actor {
		return nil, ErrNotFound
	}
	return o, nil
}

// =============================================================================
// Writes
// =============================================================================

// CreateOffer opens a draft with revision 1 after checking that the actor
// owns the property and is within the active offer quota for it.
func (s *OfferService) CreateOffer(ctx context.Context, actor string, in NewOffer) (*OfferDetail, error) {
	if actor == "" {
		return nil, ErrNotAuthenticated
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, &ValidationError{Field: "title", Message: "an offer needs a title"}
	}
	if field, err := in.Terms.Validate(); err != nil {
		return nil, invalid(field, err)
	}
	if _, err := s.properties.Get(ctx, actor, in.PropertyID); err != nil {
		return nil, err
	}

	unlock := s.propertyLocks.Lock(in.PropertyID)
	defer unlock()

	ent, err := s.entitlements.Get(ctx, actor)
	if err != nil {
		return nil, fmt.Errorf("get entitlement: %w", err)
	}
	if !ent.Unlimited() {
		active, err := s.repo.CountActiveOffers(ctx, in.PropertyID, actor)
		if err != nil {
			return nil, fmt.Errorf("count active offers: %w", err)
		}
		if active >= ent.OfferLimit {
			return nil, &QuotaExceededError{Limit: ent.OfferLimit}
		}
	}

	now := s.now().UTC()
	offer := &models.PropertyOffer{
		ID:             uuid.New(),
		PropertyID:     in.PropertyID,
		OwnerID:        actor,
		Title:          title,
		Status:         models.OfferStatusDraft,
		ClientDecision: models.DecisionPending,
		DealRoomID:     in.DealRoomID,
		ExpiresAt:      in.ExpiresAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	rev := &models.OfferRevision{
		ID:            uuid.New(),
		OfferID:       offer.ID,
		AuthorID:      actor,
		CreatedAt:     now,
		RevisionTerms: in.Terms,
	}
	ev := s.event(offer.ID, actor, models.ActivityOfferCreated, fmt.Sprintf("Offer %q created", title))

	if err := s.repo.CreateOffer(ctx, offer, rev, ev); err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}
	s.logger.Info("offer created",
		zap.String("offer_id", offer.ID.String()),
		zap.String("property_id", offer.PropertyID.String()),
		zap.String("owner_id", actor),
	)
	return s.detail(ctx, offer)
}

// CreateRevision snapshots new terms. The repository assigns the number.
func (s *OfferService) CreateRevision(ctx context.Context, actor string, offerID uuid.UUID, terms models.RevisionTerms) (*models.OfferRevision, error) {
	if actor == "" {
		return nil, ErrNotAuthenticated
	}
	if field, err := terms.Validate(); err != nil {
		return nil, invalid(field, err)
	}

	unlock := s.offerLocks.Lock(offerID)
	defer unlock()

	offer, err := s.offer(ctx, actor, offerID)
	if err != nil {
		return nil, err
	}
	if offer.Status.IsTerminal() {
		return nil, ErrTerminalOffer
	}
	if offer.Archived {
		return nil, ErrOfferArchived
	}

	rev := &models.OfferRevision{
		ID:            uuid.New(),
		OfferID:       offerID,
		AuthorID:      actor,
		CreatedAt:     s.now().UTC(),
		RevisionTerms: terms,
	}
	summary := fmt.Sprintf("Terms revised at %s", money.FormatCurrency(terms.PurchasePrice))
	ev := s.event(offerID, actor, models.ActivityRevisionCreated, summary)
	if err := s.repo.CreateRevision(ctx, rev, ev); err != nil {
		return nil, repoErr("create revision", err)
	}
	return rev, nil
}

// UpdateStatus moves the offer along the transition table
func (s *OfferService) UpdateStatus(ctx context.Context, actor string, offerID uuid.UUID, to models.OfferStatus) (*models.PropertyOffer, error) {
	if actor == "" {
		return nil, ErrNotAuthenticated
	}
	if !to.IsValid() {
		return nil, &ValidationError{Field: "status", Message: fmt.Sprintf("%q is not an offer status", to)}
	}

	unlock := s.offerLocks.Lock(offerID)
	defer unlock()

	offer, err := s.offer(ctx, actor, offerID)
	if err != nil {
		return nil, err
	}
	if offer.Archived {
		return nil, ErrOfferArchived
	}
	if !offer.Status.CanTransition(to) {
		return nil, &TransitionError{From: offer.Status, To: to}
	}

	summary := fmt.Sprintf("Status changed from %s to %s", offer.Status.Label(), to.Label())
	ev := s.event(offerID, actor, models.ActivityStatusChanged, summary)
	if err := s.repo.UpdateOfferStatus(ctx, offerID, offer.Status, to, ev); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, &TransitionError{From: offer.Status, To: to}
		}
		return nil, repoErr("update status", err)
	}

	offer.Status = to
	offer.UpdatedAt = ev.OccurredAt
	s.logger.Info("offer status changed",
		zap.String("offer_id", offerID.String()),
		zap.String("status", string(to)),
	)
	return offer, nil
}

// UpdateClientDecision records the client's recommendation. It is
// independent of status and allowed on closed offers.
func (s *OfferService) UpdateClientDecision(ctx context.Context, actor string, offerID uuid.UUID, decision models.OfferClientDecision) (*models.PropertyOffer, error) {
	if actor == "" {
		return nil, ErrNotAuthenticated
	}
	if !decision.IsValid() {
		return nil, &ValidationError{Field: "client_decision", Message: fmt.Sprintf("%q is not a client decision", decision)}
	}

	unlock := s.offerLocks.Lock(offerID)
	defer unlock()

	offer, err := s.offer(ctx, actor, offerID)
	if err != nil {
		return nil, err
	}
	if offer.ClientDecision == decision {
		return offer, nil
	}

	ev := s.event(offerID, actor, models.ActivityDecisionChanged, fmt.Sprintf("Client decision set to %s", decision))
	if err := s.repo.UpdateClientDecision(ctx, offerID, decision, ev); err != nil {
		return nil, repoErr("update client decision", err)
	}
	offer.ClientDecision = decision
	offer.UpdatedAt = ev.OccurredAt
	return offer, nil
}

// ArchiveOffer hides the offer and frees its quota slot. Archiving twice is
// a no-op.
func (s *OfferService) ArchiveOffer(ctx context.Context, actor string, offerID uuid.UUID) (*models.PropertyOffer, error) {
	if actor == "" {
		return nil, ErrNotAuthenticated
	}

	unlock := s.offerLocks.Lock(offerID)
	defer unlock()

	offer, err := s.offer(ctx, actor, offerID)
	if err != nil {
		return nil, err
	}
	if offer.Archived {
		return offer, nil
	}

	ev := s.event(offerID, actor, models.ActivityOfferArchived, "Offer archived")
	if err := s.repo.ArchiveOffer(ctx, offerID, ev); err != nil {
		return nil, repoErr("archive offer", err)
	}
	offer.Archived = true
	offer.UpdatedAt = ev.OccurredAt
	return offer, nil
}

func (s *OfferService) AddComment(ctx context.Context, actor string, offerID uuid.UUID, body string) (*models.OfferComment, error) {
	if actor == "" {
		return nil, ErrNotAuthenticated
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, &ValidationError{Field: "body", Message: "a comment cannot be empty"}
	}

	unlock := s.offerLocks.Lock(offerID)
	defer unlock()

	if _, err := s.offer(ctx, actor, offerID); err != nil {
		return nil, err
	}

	c := &models.OfferComment{
		ID:        uuid.New(),
		OfferID:   offerID,
		AuthorID:  actor,
		Body:      body,
		CreatedAt: s.now().UTC(),
	}
	ev := s.event(offerID, actor, models.ActivityCommentAdded, "Comment added")
	if err := s.repo.AddComment(ctx, c, ev); err != nil {
		return nil, repoErr("add comment", err)
	}
	return c, nil
}

// DeleteComment removes a comment. Only its author may delete it.
func (s *OfferService) DeleteComment(ctx context.Context, actor string, commentID uuid.UUID) error {
	if actor == "" {
		return ErrNotAuthenticated
	}
	c, err := s.repo.GetComment(ctx, commentID)
	if err != nil {
		return fmt.Errorf("get comment: %w", err)
	}
	if c == nil {
		return ErrNotFound
	}

	unlock := s.offerLocks.Lock(c.OfferID)
	defer unlock()

	if _, err := s.offer(ctx, actor, c.OfferID); err != nil {
		return err
	}
	if c.AuthorID != actor {
		return ErrForbidden
	}

	ev := s.event(c.OfferID, actor, models.ActivityCommentDeleted, "Comment deleted")
	if err := s.repo.DeleteComment(ctx, commentID, ev); err != nil {
		return repoErr("delete comment", err)
	}
	return nil
}

// Subscribe forwards repository changes to fn until the returned function
// is called or ctx ends.
func (s *OfferService) Subscribe(ctx context.Context, fn func(models.OfferChange)) (func(), error) {
	stop, err := s.repo.Listen(ctx, fn)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	return stop, nil
}

func (s *OfferService) event(offerID uuid.UUID, actor, kind, summary string) *models.OfferActivityEvent {
	return &models.OfferActivityEvent{
		ID:         uuid.New(),
		OfferID:    offerID,
		ActorID:    actor,
		Kind:       kind,
		Summary:    summary,
		OccurredAt: s.now().UTC(),
	}
}

func repoErr(op string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

// =============================================================================
// Locking
// =============================================================================

// keyedMutex hands out one mutex per id, dropping it once nobody holds it
type keyedMutex struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(id uuid.UUID) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[uuid.UUID]*refMutex)
	}
	m, ok := k.locks[id]
	if !ok {
		m = &refMutex{}
		k.locks[id] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
