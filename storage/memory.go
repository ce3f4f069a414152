package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"dealscope/models"
)

// MemoryStore is an in-process offer repository. Used by tests and by the
// daemon when no DATABASE_URL is configured.
type MemoryStore struct {
	mu        sync.RWMutex
	offers    map[uuid.UUID]models.PropertyOffer
	revisions map[uuid.UUID][]models.OfferRevision
	comments  map[uuid.UUID][]models.OfferComment
	activity  map[uuid.UUID][]models.OfferActivityEvent

	listenMu  sync.Mutex
	listeners map[int]func(models.OfferChange)
	nextID    int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		offers:    make(map[uuid.UUID]models.PropertyOffer),
		revisions: make(map[uuid.UUID][]models.OfferRevision),
		comments:  make(map[uuid.UUID][]models.OfferComment),
		activity:  make(map[uuid.UUID][]models.OfferActivityEvent),
		listeners: make(map[int]func(models.OfferChange)),
	}
}

// =============================================================================
// Reads
// =============================================================================

func (s *MemoryStore) ListOffersByProperty(_ context.Context, propertyID uuid.UUID, includeArchived bool) ([]models.PropertyOffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.PropertyOffer
	for _, o := range s.offers {
		if o.PropertyID != propertyID || (o.Archived && !includeArchived) {
			continue
		}
		out = append(out, o)
	}
	sortOffers(out)
	return out, nil
}

func (s *MemoryStore) ListActiveOffers(_ context.Context) ([]models.PropertyOffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.PropertyOffer
	for _, o := range s.offers {
		if o.IsActive() {
			out = append(out, o)
		}
	}
	sortOffers(out)
	return out, nil
}

func (s *MemoryStore) GetOffer(_ context.Context, id uuid.UUID) (*models.PropertyOffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.offers[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (s *MemoryStore) CountActiveOffers(_ context.Context, propertyID uuid.UUID, ownerID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, o := range s.offers {
		if o.PropertyID == propertyID && o.OwnerID == ownerID && o.IsActive() {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ListRevisions(_ context.Context, offerID uuid.UUID) ([]models.OfferRevision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.OfferRevision(nil), s.revisions[offerID]...), nil
}

func (s *MemoryStore) ListComments(_ context.Context, offerID uuid.UUID) ([]models.OfferComment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.OfferComment(nil), s.comments[offerID]...), nil
}

func (s *MemoryStore) GetComment(_ context.Context, id uuid.UUID) (*models.OfferComment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, list := range s.comments {
		for _, c := range list {
			if c.ID == id {
				return &c, nil
			}
		}
	}
	return nil, nil
}

func (s *MemoryStore) ListActivity(_ context.Context, offerID uuid.UUID) ([]models.OfferActivityEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.OfferActivityEvent(nil), s.activity[offerID]...), nil
}

// =============================================================================
// Writes
// =============================================================================

func (s *MemoryStore) CreateOffer(_ context.Context, offer *models.PropertyOffer, rev *models.OfferRevision, ev *models.OfferActivityEvent) error {
	s.mu.Lock()
	if _, exists := s.offers[offer.ID]; exists {
		s.mu.Unlock()
		return ErrConflict
	}
	rev.OfferID = offer.ID
	rev.Number = 1
	revID := rev.ID
	offer.CurrentRevisionID = &revID
	s.offers[offer.ID] = *offer
	s.revisions[offer.ID] = []models.OfferRevision{*rev}
	s.appendActivityLocked(ev)
	s.mu.Unlock()

	s.notify(offer, models.ActivityOfferCreated)
	return nil
}

func (s *MemoryStore) CreateRevision(_ context.Context, rev *models.OfferRevision, ev *models.OfferActivityEvent) error {
	s.mu.Lock()
	offer, ok := s.offers[rev.OfferID]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	existing := s.revisions[rev.OfferID]
	last := 0
	for _, r := range existing {
		if r.Number > last {
			last = r.Number
		}
	}
	rev.Number = last + 1
	s.revisions[rev.OfferID] = append(existing, *rev)

	revID := rev.ID
	offer.CurrentRevisionID = &revID
	offer.UpdatedAt = rev.CreatedAt
	s.offers[offer.ID] = offer
	s.appendActivityLocked(ev)
	s.mu.Unlock()

	s.notify(&offer, models.ActivityRevisionCreated)
	return nil
}

func (s *MemoryStore) UpdateOfferStatus(_ context.Context, offerID uuid.UUID, from, to models.OfferStatus, ev *models.OfferActivityEvent) error {
	return s.updateOffer(offerID, models.ActivityStatusChanged, ev, func(o *models.PropertyOffer) error {
		if o.Status != from {
			return ErrConflict
		}
		o.Status = to
		return nil
	})
}

func (s *MemoryStore) UpdateClientDecision(_ context.Context, offerID uuid.UUID, decision models.OfferClientDecision, ev *models.OfferActivityEvent) error {
	return s.updateOffer(offerID, models.ActivityDecisionChanged, ev, func(o *models.PropertyOffer) error {
		o.ClientDecision = decision
		return nil
	})
}

func (s *MemoryStore) ArchiveOffer(_ context.Context, offerID uuid.UUID, ev *models.OfferActivityEvent) error {
	return s.updateOffer(offerID, models.ActivityOfferArchived, ev, func(o *models.PropertyOffer) error {
		o.Archived = true
		return nil
	})
}

func (s *MemoryStore) AddComment(_ context.Context, c *models.OfferComment, ev *models.OfferActivityEvent) error {
	s.mu.Lock()
	offer, ok := s.offers[c.OfferID]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.comments[c.OfferID] = append(s.comments[c.OfferID], *c)
	s.appendActivityLocked(ev)
	s.mu.Unlock()

	s.notify(&offer, models.ActivityCommentAdded)
	return nil
}

func (s *MemoryStore) DeleteComment(_ context.Context, commentID uuid.UUID, ev *models.OfferActivityEvent) error {
	s.mu.Lock()
	for offerID, list := range s.comments {
		for i, c := range list {
			if c.ID != commentID {
				continue
			}
			s.comments[offerID] = append(list[:i:i], list[i+1:]...)
			s.appendActivityLocked(ev)
			offer := s.offers[offerID]
			s.mu.Unlock()

			s.notify(&offer, models.ActivityCommentDeleted)
			return nil
		}
	}
	s.mu.Unlock()
	return ErrNotFound
}

func (s *MemoryStore) AppendActivity(_ context.Context, ev *models.OfferActivityEvent) error {
	s.mu.Lock()
	offer, ok := s.offers[ev.OfferID]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.appendActivityLocked(ev)
	s.mu.Unlock()

	s.notify(&offer, ev.Kind)
	return nil
}

func (s *MemoryStore) updateOffer(offerID uuid.UUID, kind string, ev *models.OfferActivityEvent, mutate func(*models.PropertyOffer) error) error {
	s.mu.Lock()
	offer, ok := s.offers[offerID]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if err := mutate(&offer); err != nil {
		s.mu.Unlock()
		return err
	}
	if ev != nil {
		offer.UpdatedAt = ev.OccurredAt
	}
	s.offers[offerID] = offer
	s.appendActivityLocked(ev)
	s.mu.Unlock()

	s.notify(&offer, kind)
	return nil
}

func (s *MemoryStore) appendActivityLocked(ev *models.OfferActivityEvent) {
	if ev == nil {
		return
	}
	s.activity[ev.OfferID] = append(s.activity[ev.OfferID], *ev)
}

// =============================================================================
// Change feed
// =============================================================================

// Listen registers fn for every change. Callbacks run on their own
// goroutine; the returned function unregisters fn.
func (s *MemoryStore) Listen(ctx context.Context, fn func(models.OfferChange)) (func(), error) {
	s.listenMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenMu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			s.listenMu.Lock()
			delete(s.listeners, id)
			s.listenMu.Unlock()
		})
	}
	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			stop()
		}()
	}
	return stop, nil
}

func (s *MemoryStore) notify(o *models.PropertyOffer, kind string) {
	change := models.OfferChange{OfferID: o.ID, PropertyID: o.PropertyID, Kind: kind}

	s.listenMu.Lock()
	defer s.listenMu.Unlock()
	for _, fn := range s.listeners {
		go fn(change)
	}
}

func sortOffers(offers []models.PropertyOffer) {
	sort.Slice(offers, func(i, j int) bool {
		if !offers[i].CreatedAt.Equal(offers[j].CreatedAt) {
			return offers[i].CreatedAt.After(offers[j].CreatedAt)
		}
		return offers[i].ID.String() < offers[j].ID.String()
	})
}
