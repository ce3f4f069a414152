package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"dealscope/models"
)

// offerChannel is the LISTEN/NOTIFY channel carrying models.OfferChange JSON
const offerChannel = "offer_changes"

// PostgresStore is the offer repository backed by Postgres
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgresStore(ctx context.Context, connString string, logger *zap.Logger) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	store := &PostgresStore{pool: pool, logger: logger}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS offers (
		id UUID PRIMARY KEY,
		property_id UUID NOT NULL,
		owner_id TEXT NOT NULL,
		title TEXT NOT NULL,
		status TEXT NOT NULL,
		client_decision TEXT NOT NULL DEFAULT 'pending',
		current_revision_id UUID,
		deal_room_id TEXT,
		expires_at TIMESTAMPTZ,
		archived BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_offers_property ON offers(property_id, owner_id);

	CREATE TABLE IF NOT EXISTS offer_revisions (
		id UUID PRIMARY KEY,
		offer_id UUID NOT NULL REFERENCES offers(id) ON DELETE CASCADE,
		number INTEGER NOT NULL,
		author_id TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		purchase_price DOUBLE PRECISION NOT NULL,
		earnest_money DOUBLE PRECISION NOT NULL DEFAULT 0,
		down_payment_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
		closing_cost_credit DOUBLE PRECISION NOT NULL DEFAULT 0,
		option_period_days INTEGER,
		inspection_period_days INTEGER,
		financing_contingency_days INTEGER,
		appraisal_contingency BOOLEAN NOT NULL DEFAULT FALSE,
		seller_concessions DOUBLE PRECISION NOT NULL DEFAULT 0,
		estimated_close_date TIMESTAMPTZ,
		notes TEXT NOT NULL DEFAULT '',
		UNIQUE (offer_id, number)
	);

	CREATE TABLE IF NOT EXISTS offer_comments (
		id UUID PRIMARY KEY,
		offer_id UUID NOT NULL REFERENCES offers(id) ON DELETE CASCADE,
		author_id TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS offer_activity (
		id UUID PRIMARY KEY,
		offer_id UUID NOT NULL REFERENCES offers(id) ON DELETE CASCADE,
		actor_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		summary TEXT NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_offer_activity_offer ON offer_activity(offer_id, occurred_at);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// =============================================================================
// Offers
// =============================================================================

const offerColumns = `id, property_id, owner_id, title, status, client_decision,
	current_revision_id, deal_room_id, expires_at, archived, created_at, updated_at`

func scanOffer(row pgx.Row) (*models.PropertyOffer, error) {
	var o models.PropertyOffer
	err := row.Scan(
		&o.ID, &o.PropertyID, &o.OwnerID, &o.Title, &o.Status, &o.ClientDecision,
		&o.CurrentRevisionID, &o.DealRoomID, &o.ExpiresAt, &o.Archived, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *PostgresStore) queryOffers(ctx context.Context, query string, args ...any) ([]models.PropertyOffer, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var offers []models.PropertyOffer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, *o)
	}
	return offers, rows.Err()
}

func (s *PostgresStore) ListOffersByProperty(ctx context.Context, propertyID uuid.UUID, includeArchived bool) ([]models.PropertyOffer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers
		WHERE property_id = $1 AND ($2 OR NOT archived)
		ORDER BY created_at DESC, id`
	return s.queryOffers(ctx, query, propertyID, includeArchived)
}

func (s *PostgresStore) ListActiveOffers(ctx context.Context) ([]models.PropertyOffer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers
		WHERE NOT archived AND status = ANY($1)
		ORDER BY created_at DESC, id`
	return s.queryOffers(ctx, query, activeStatuses())
}

func (s *PostgresStore) GetOffer(ctx context.Context, id uuid.UUID) (*models.PropertyOffer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE id = $1`
	o, err := scanOffer(s.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return o, err
}

func (s *PostgresStore) CountActiveOffers(ctx context.Context, propertyID uuid.UUID, ownerID string) (int, error) {
	query := `SELECT COUNT(*) FROM offers
		WHERE property_id = $1 AND owner_id = $2 AND NOT archived AND status = ANY($3)`
	var n int
	err := s.pool.QueryRow(ctx, query, propertyID, ownerID, activeStatuses()).Scan(&n)
	return n, err
}

func activeStatuses() []string {
	return []string{
		string(models.OfferStatusDraft),
		string(models.OfferStatusReadyToSubmit),
		string(models.OfferStatusSubmitted),
		string(models.OfferStatusCounterReceived),
	}
}

func (s *PostgresStore) CreateOffer(ctx context.Context, offer *models.PropertyOffer, rev *models.OfferRevision, ev *models.OfferActivityEvent) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		rev.OfferID = offer.ID
		rev.Number = 1
		revID := rev.ID
		offer.CurrentRevisionID = &revID

		_, err := tx.Exec(ctx, `
			INSERT INTO offers (`+offerColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, NULL, $7, $8, $9, $10, $11)`,
			offer.ID, offer.PropertyID, offer.OwnerID, offer.Title, offer.Status, offer.ClientDecision,
			offer.DealRoomID, offer.ExpiresAt, offer.Archived, offer.CreatedAt, offer.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert offer: %w", err)
		}
		if err := insertRevision(ctx, tx, rev); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE offers SET current_revision_id = $2 WHERE id = $1`, offer.ID, rev.ID); err != nil {
			return fmt.Errorf("set current revision: %w", err)
		}
		return finishWrite(ctx, tx, offer.ID, models.ActivityOfferCreated, ev)
	})
}

func (s *PostgresStore) UpdateOfferStatus(ctx context.Context, offerID uuid.UUID, from, to models.OfferStatus, ev *models.OfferActivityEvent) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE offers SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`,
			offerID, from, to, occurredAt(ev))
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return missingOrConflict(ctx, tx, offerID)
		}
		return finishWrite(ctx, tx, offerID, models.ActivityStatusChanged, ev)
	})
}

func (s *PostgresStore) UpdateClientDecision(ctx context.Context, offerID uuid.UUID, decision models.OfferClientDecision, ev *models.OfferActivityEvent) error {
	return s.updateOffer(ctx, offerID, models.ActivityDecisionChanged, ev,
		`UPDATE offers SET client_decision = $2, updated_at = $3 WHERE id = $1`, decision)
}

func (s *PostgresStore) ArchiveOffer(ctx context.Context, offerID uuid.UUID, ev *models.OfferActivityEvent) error {
	return s.updateOffer(ctx, offerID, models.ActivityOfferArchived, ev,
		`UPDATE offers SET archived = $2, updated_at = $3 WHERE id = $1`, true)
}

func (s *PostgresStore) updateOffer(ctx context.Context, offerID uuid.UUID, kind string, ev *models.OfferActivityEvent, query string, value any) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, offerID, value, occurredAt(ev))
		if err != nil {
			return fmt.Errorf("update offer: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return finishWrite(ctx, tx, offerID, kind, ev)
	})
}

// =============================================================================
// Revisions
// =============================================================================

const revisionColumns = `id, offer_id, number, author_id, created_at, purchase_price,
	earnest_money, down_payment_percent, closing_cost_credit, option_period_days,
	inspection_period_days, financing_contingency_days, appraisal_contingency,
	seller_concessions, estimated_close_date, notes`

func insertRevision(ctx context.Context, tx pgx.Tx, r *models.OfferRevision) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO offer_revisions (`+revisionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		r.ID, r.OfferID, r.Number, r.AuthorID, r.CreatedAt, r.PurchasePrice,
		r.EarnestMoney, r.DownPaymentPercent, r.ClosingCostCredit, r.OptionPeriodDays,
		r.InspectionPeriodDays, r.FinancingContingencyDays, r.AppraisalContingency,
		r.SellerConcessions, r.EstimatedCloseDate, r.Notes,
	)
	if err != nil {
		return fmt.Errorf("insert revision: %w", err)
	}
	return nil
}

// CreateRevision locks the offer row so concurrent writers observe each
// other's numbers, then assigns max(number)+1.
func (s *PostgresStore) CreateRevision(ctx context.Context, rev *models.OfferRevision, ev *models.OfferActivityEvent) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		var id uuid.UUID
		err := tx.QueryRow(ctx, `SELECT id FROM offers WHERE id = $1 FOR UPDATE`, rev.OfferID).Scan(&id)
		if err == pgx.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock offer: %w", err)
		}

		err = tx.QueryRow(ctx, `SELECT COALESCE(MAX(number), 0) + 1 FROM offer_revisions WHERE offer_id = $1`,
			rev.OfferID).Scan(&rev.Number)
		if err != nil {
			return fmt.Errorf("next revision number: %w", err)
		}
		if err := insertRevision(ctx, tx, rev); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE offers SET current_revision_id = $2, updated_at = $3 WHERE id = $1`,
			rev.OfferID, rev.ID, rev.CreatedAt)
		if err != nil {
			return fmt.Errorf("set current revision: %w", err)
		}
		return finishWrite(ctx, tx, rev.OfferID, models.ActivityRevisionCreated, ev)
	})
}

func (s *PostgresStore) ListRevisions(ctx context.Context, offerID uuid.UUID) ([]models.OfferRevision, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+revisionColumns+` FROM offer_revisions WHERE offer_id = $1 ORDER BY number`, offerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var revisions []models.OfferRevision
	for rows.Next() {
		var r models.OfferRevision
		if err := rows.Scan(
			&r.ID, &r.OfferID, &r.Number, &r.AuthorID, &r.CreatedAt, &r.PurchasePrice,
			&r.EarnestMoney, &r.DownPaymentPercent, &r.ClosingCostCredit, &r.OptionPeriodDays,
			&r.InspectionPeriodDays, &r.FinancingContingencyDays, &r.AppraisalContingency,
			&r.SellerConcessions, &r.EstimatedCloseDate, &r.Notes,
		); err != nil {
			return nil, err
		}
		revisions = append(revisions, r)
	}
	return revisions, rows.Err()
}

// =============================================================================
// Comments
// =============================================================================

func (s *PostgresStore) AddComment(ctx context.Context, c *models.OfferComment, ev *models.OfferActivityEvent) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO offer_comments (id, offer_id, author_id, body, created_at)
			SELECT $1, id, $3, $4, $5 FROM offers WHERE id = $2`,
			c.ID, c.OfferID, c.AuthorID, c.Body, c.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert comment: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return finishWrite(ctx, tx, c.OfferID, models.ActivityCommentAdded, ev)
	})
}

func (s *PostgresStore) GetComment(ctx context.Context, id uuid.UUID) (*models.OfferComment, error) {
	var c models.OfferComment
	err := s.pool.QueryRow(ctx, `SELECT id, offer_id, author_id, body, created_at FROM offer_comments WHERE id = $1`, id).
		Scan(&c.ID, &c.OfferID, &c.AuthorID, &c.Body, &c.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) ListComments(ctx context.Context, offerID uuid.UUID) ([]models.OfferComment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, offer_id, author_id, body, created_at FROM offer_comments
		WHERE offer_id = $1 ORDER BY created_at, id`, offerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []models.OfferComment
	for rows.Next() {
		var c models.OfferComment
		if err := rows.Scan(&c.ID, &c.OfferID, &c.AuthorID, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (s *PostgresStore) DeleteComment(ctx context.Context, commentID uuid.UUID, ev *models.OfferActivityEvent) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		var offerID uuid.UUID
		err := tx.QueryRow(ctx, `DELETE FROM offer_comments WHERE id = $1 RETURNING offer_id`, commentID).Scan(&offerID)
		if err == pgx.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("delete comment: %w", err)
		}
		return finishWrite(ctx, tx, offerID, models.ActivityCommentDeleted, ev)
	})
}

// =============================================================================
// Activity
// =============================================================================

func (s *PostgresStore) AppendActivity(ctx context.Context, ev *models.OfferActivityEvent) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		var id uuid.UUID
		if err := tx.QueryRow(ctx, `SELECT id FROM offers WHERE id = $1`, ev.OfferID).Scan(&id); err != nil {
			if err == pgx.ErrNoRows {
				return ErrNotFound
			}
			return err
		}
		return finishWrite(ctx, tx, ev.OfferID, ev.Kind, ev)
	})
}

func (s *PostgresStore) ListActivity(ctx context.Context, offerID uuid.UUID) ([]models.OfferActivityEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, offer_id, actor_id, kind, summary, occurred_at FROM offer_activity
		WHERE offer_id = $1 ORDER BY occurred_at, id`, offerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.OfferActivityEvent
	for rows.Next() {
		var e models.OfferActivityEvent
		if err := rows.Scan(&e.ID, &e.OfferID, &e.ActorID, &e.Kind, &e.Summary, &e.OccurredAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// finishWrite records the activity event and queues the change
// notification; both commit or roll back with the write itself.
func finishWrite(ctx context.Context, tx pgx.Tx, offerID uuid.UUID, kind string, ev *models.OfferActivityEvent) error {
	if ev != nil {
		_, err := tx.Exec(ctx, `
			INSERT INTO offer_activity (id, offer_id, actor_id, kind, summary, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			ev.ID, offerID, ev.ActorID, ev.Kind, ev.Summary, ev.OccurredAt)
		if err != nil {
			return fmt.Errorf("insert activity: %w", err)
		}
	}
	_, err := tx.Exec(ctx, `
		SELECT pg_notify($3, json_build_object('offer_id', id, 'property_id', property_id, 'kind', $2::text)::text)
		FROM offers WHERE id = $1`, offerID, kind, offerChannel)
	if err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

func missingOrConflict(ctx context.Context, tx pgx.Tx, offerID uuid.UUID) error {
	var id uuid.UUID
	err := tx.QueryRow(ctx, `SELECT id FROM offers WHERE id = $1`, offerID).Scan(&id)
	if err == pgx.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrConflict
}

func occurredAt(ev *models.OfferActivityEvent) time.Time {
	if ev == nil {
		return time.Now().UTC()
	}
	return ev.OccurredAt
}

func (s *PostgresStore) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// =============================================================================
// Change feed
// =============================================================================

// Listen holds one pooled connection on LISTEN offer_changes and invokes fn
// for each notification until the returned stop function is called or ctx
// ends.
func (s *PostgresStore) Listen(ctx context.Context, fn func(models.OfferChange)) (func(), error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listener: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+offerChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen: %w", err)
	}

	listenCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer conn.Release()
		for {
			n, err := conn.Conn().WaitForNotification(listenCtx)
			if err != nil {
				if !errors.Is(err, context.Canceled) && listenCtx.Err() == nil {
					s.logger.Error("offer listener stopped", zap.Error(err))
				}
				return
			}
			var change models.OfferChange
			if err := json.Unmarshal([]byte(n.Payload), &change); err != nil {
				s.logger.Warn("bad offer notification", zap.String("payload", n.Payload), zap.Error(err))
				continue
			}
			fn(change)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}
