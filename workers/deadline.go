package workers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dealscope/logging"
	"dealscope/models"
)

// SystemActor is recorded as the actor on worker-generated activity
const SystemActor = "system"

// OfferStore is the slice of the offer repository the deadline worker needs
type OfferStore interface {
	ListActiveOffers(ctx context.Context) ([]models.PropertyOffer, error)
	ListRevisions(ctx context.Context, offerID uuid.UUID) ([]models.OfferRevision, error)
	ListActivity(ctx context.Context, offerID uuid.UUID) ([]models.OfferActivityEvent, error)
	AppendActivity(ctx context.Context, ev *models.OfferActivityEvent) error
}

// DeadlineWorker appends a reminder to an offer's activity when its next
// deadline falls inside the window or has passed. Each offer/kind/date gets
// at most one reminder.
type DeadlineWorker struct {
	store     OfferStore
	window    time.Duration
	logger    *zap.Logger
	now       func() time.Time
	triggerCh chan struct{}
}

func NewDeadlineWorker(store OfferStore, windowDays int, logger *zap.Logger) *DeadlineWorker {
	return &DeadlineWorker{
		store:     store,
		window:    time.Duration(windowDays) * 24 * time.Hour,
		logger:    logging.Named(logger, "deadlines"),
		now:       time.Now,
		triggerCh: make(chan struct{}, 1),
	}
}

// Trigger causes the worker to sweep immediately
func (w *DeadlineWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// Run sweeps on manual triggers until ctx is done. Periodic sweeps come from
// the scheduler.
func (w *DeadlineWorker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("deadline worker stopping")
			return
		case <-w.triggerCh:
			w.logger.Info("deadline worker triggered manually")
			if _, err := w.Sweep(ctx); err != nil {
				w.logger.Error("deadline sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep checks every active offer once and returns how many reminders were
// recorded. A failure on one offer is logged and does not stop the sweep.
func (w *DeadlineWorker) Sweep(ctx context.Context) (int, error) {
	offers, err := w.store.ListActiveOffers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active offers: %w", err)
	}

	now := w.now().UTC()
	var reminded int
	for i := range offers {
		ok, err := w.check(ctx, &offers[i], now)
		if err != nil {
			w.logger.Warn("deadline check failed", zap.String("offer_id", offers[i].ID.String()), zap.Error(err))
			continue
		}
		if ok {
			reminded++
		}
	}

	if reminded > 0 {
		w.logger.Info("deadline reminders recorded", zap.Int("offers", len(offers)), zap.Int("reminders", reminded))
	}
	return reminded, nil
}

func (w *DeadlineWorker) check(ctx context.Context, offer *models.PropertyOffer, now time.Time) (bool, error) {
	revisions, err := w.store.ListRevisions(ctx, offer.ID)
	if err != nil {
		return false, fmt.Errorf("list revisions: %w", err)
	}

	d := models.NextDeadline(models.CurrentRevision(offer, revisions), offer.ExpiresAt, now)
	if d == nil || (!d.Overdue && d.Date.Sub(now) > w.window) {
		return false, nil
	}

	key := reminderKey(d)
	activity, err := w.store.ListActivity(ctx, offer.ID)
	if err != nil {
		return false, fmt.Errorf("list activity: %w", err)
	}
	for _, ev := range activity {
		if ev.Kind == models.ActivityDeadlineReminder && strings.HasPrefix(ev.Summary, key) {
			return false, nil
		}
	}

	summary := key + " is approaching"
	if d.Overdue {
		summary = key + " has passed"
	}
	ev := &models.OfferActivityEvent{
		ID:         uuid.New(),
		OfferID:    offer.ID,
		ActorID:    SystemActor,
		Kind:       models.ActivityDeadlineReminder,
		Summary:    summary,
		OccurredAt: now,
	}
	if err := w.store.AppendActivity(ctx, ev); err != nil {
		return false, fmt.Errorf("append activity: %w", err)
	}
	return true, nil
}

// reminderKey identifies a deadline within an offer's activity
func reminderKey(d *models.Deadline) string {
	return fmt.Sprintf("%s deadline %s", d.Kind.Label(), d.Date.UTC().Format("2006-01-02"))
}
