package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"dealscope/identity"
	"dealscope/models"
)

// SQLiteStore holds properties and grade profiles
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS grade_profiles (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		is_default BOOLEAN NOT NULL DEFAULT FALSE,
		cash_flow_floor REAL NOT NULL,
		cash_flow_buffer REAL NOT NULL,
		target_dcr REAL NOT NULL,
		min_equity_percent REAL NOT NULL,
		min_annual_tax_benefit REAL NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE(owner_id, name)
	);

	CREATE TABLE IF NOT EXISTS properties (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		address_key TEXT NOT NULL DEFAULT '',
		purchase_price REAL NOT NULL DEFAULT 0,
		rent_roll JSON NOT NULL DEFAULT '[]',
		expenses JSON NOT NULL,
		financing JSON NOT NULL,
		marginal_tax_rate REAL,
		land_value_percent REAL,
		grade_profile_id TEXT REFERENCES grade_profiles(id) ON DELETE SET NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_profiles_default ON grade_profiles(owner_id) WHERE is_default;
	CREATE UNIQUE INDEX IF NOT EXISTS idx_properties_address ON properties(address_key) WHERE address_key != '';
	CREATE INDEX IF NOT EXISTS idx_properties_owner ON properties(owner_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// mapErr turns constraint violations into ErrConflict
func mapErr(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

// =============================================================================
// Properties
// =============================================================================

const propertyColumns = `id, owner_id, name, address, purchase_price, rent_roll, expenses, financing,
	marginal_tax_rate, land_value_percent, grade_profile_id, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanProperty(row scanner) (*models.Property, error) {
	var p models.Property
	var rentRoll, expenses, financing []byte
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Address, &p.PurchasePrice, &rentRoll, &expenses, &financing,
		&p.MarginalTaxRate, &p.LandValuePercent, &p.GradeProfileID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rentRoll, &p.RentRoll); err != nil {
		return nil, fmt.Errorf("decode rent roll: %w", err)
	}
	if err := json.Unmarshal(expenses, &p.Expenses); err != nil {
		return nil, fmt.Errorf("decode expenses: %w", err)
	}
	if err := json.Unmarshal(financing, &p.Financing); err != nil {
		return nil, fmt.Errorf("decode financing: %w", err)
	}
	return &p, nil
}

func encodeProperty(p *models.Property) (rentRoll, expenses, financing []byte, err error) {
	units := p.RentRoll
	if units == nil {
		units = []models.RentUnit{}
	}
	if rentRoll, err = json.Marshal(units); err != nil {
		return nil, nil, nil, err
	}
	if expenses, err = json.Marshal(p.Expenses); err != nil {
		return nil, nil, nil, err
	}
	if financing, err = json.Marshal(p.Financing); err != nil {
		return nil, nil, nil, err
	}
	return rentRoll, expenses, financing, nil
}

func addressKey(p *models.Property) string {
	if p.Address == "" {
		return ""
	}
	return identity.AddressKey(p.OwnerID, p.Address)
}

func (s *SQLiteStore) GetProperty(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id = ?`, id)
	p, err := scanProperty(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *SQLiteStore) ListProperties(ctx context.Context, ownerID string) ([]models.Property, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+propertyColumns+` FROM properties
		WHERE owner_id = ? ORDER BY created_at, id`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var props []models.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		props = append(props, *p)
	}
	return props, rows.Err()
}

func (s *SQLiteStore) CreateProperty(ctx context.Context, p *models.Property) error {
	rentRoll, expenses, financing, err := encodeProperty(p)
	if err != nil {
		return fmt.Errorf("encode property: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO properties (id, owner_id, name, address, address_key, purchase_price, rent_roll, expenses, financing,
			marginal_tax_rate, land_value_percent, grade_profile_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OwnerID, p.Name, p.Address, addressKey(p), p.PurchasePrice, rentRoll, expenses, financing,
		p.MarginalTaxRate, p.LandValuePercent, p.GradeProfileID, p.CreatedAt, p.UpdatedAt)
	return mapErr(err)
}

func (s *SQLiteStore) UpdateProperty(ctx context.Context, p *models.Property) error {
	rentRoll, expenses, financing, err := encodeProperty(p)
	if err != nil {
		return fmt.Errorf("encode property: %w", err)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE properties SET name = ?, address = ?, address_key = ?, purchase_price = ?, rent_roll = ?,
			expenses = ?, financing = ?, marginal_tax_rate = ?, land_value_percent = ?, grade_profile_id = ?,
			updated_at = ?
		WHERE id = ?`,
		p.Name, p.Address, addressKey(p), p.PurchasePrice, rentRoll,
		expenses, financing, p.MarginalTaxRate, p.LandValuePercent, p.GradeProfileID,
		p.UpdatedAt, p.ID)
	if err != nil {
		return mapErr(err)
	}
	return expectRow(result)
}

func (s *SQLiteStore) DeleteProperty(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM properties WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectRow(result)
}

func expectRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// =============================================================================
// Grade profiles
// =============================================================================

const profileColumns = `id, owner_id, name, is_default, cash_flow_floor, cash_flow_buffer, target_dcr,
	min_equity_percent, min_annual_tax_benefit, created_at, updated_at`

func scanProfile(row scanner) (*models.GradeProfile, error) {
	var g models.GradeProfile
	err := row.Scan(&g.ID, &g.OwnerID, &g.Name, &g.IsDefault, &g.CashFlowFloor, &g.CashFlowBuffer, &g.TargetDCR,
		&g.MinEquityPercent, &g.MinAnnualTaxBenefit, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *SQLiteStore) getProfile(ctx context.Context, where string, args ...any) (*models.GradeProfile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM grade_profiles WHERE `+where, args...)
	g, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (s *SQLiteStore) GetProfile(ctx context.Context, id uuid.UUID) (*models.GradeProfile, error) {
	return s.getProfile(ctx, `id = ?`, id)
}

func (s *SQLiteStore) GetDefaultProfile(ctx context.Context, ownerID string) (*models.GradeProfile, error) {
	return s.getProfile(ctx, `owner_id = ? AND is_default`, ownerID)
}

func (s *SQLiteStore) FindProfileByName(ctx context.Context, ownerID, name string) (*models.GradeProfile, error) {
	return s.getProfile(ctx, `owner_id = ? AND name = ?`, ownerID, name)
}

// ListProfiles returns the owner's profiles followed by shared templates
func (s *SQLiteStore) ListProfiles(ctx context.Context, ownerID string) ([]models.GradeProfile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+profileColumns+` FROM grade_profiles
		WHERE owner_id = ? OR owner_id = ''
		ORDER BY owner_id = '', name`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []models.GradeProfile
	for rows.Next() {
		g, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *g)
	}
	return profiles, rows.Err()
}

func (s *SQLiteStore) CreateProfile(ctx context.Context, g *models.GradeProfile) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if g.IsDefault {
			if err := clearDefault(ctx, tx, g.OwnerID); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO grade_profiles (`+profileColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			g.ID, g.OwnerID, g.Name, g.IsDefault, g.CashFlowFloor, g.CashFlowBuffer, g.TargetDCR,
			g.MinEquityPercent, g.MinAnnualTaxBenefit, g.CreatedAt, g.UpdatedAt)
		return mapErr(err)
	})
}

func (s *SQLiteStore) UpdateProfile(ctx context.Context, g *models.GradeProfile) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if g.IsDefault {
			if err := clearDefault(ctx, tx, g.OwnerID); err != nil {
				return err
			}
		}
		result, err := tx.ExecContext(ctx, `
			UPDATE grade_profiles SET name = ?, is_default = ?, cash_flow_floor = ?, cash_flow_buffer = ?,
				target_dcr = ?, min_equity_percent = ?, min_annual_tax_benefit = ?, updated_at = ?
			WHERE id = ? AND owner_id = ?`,
			g.Name, g.IsDefault, g.CashFlowFloor, g.CashFlowBuffer,
			g.TargetDCR, g.MinEquityPercent, g.MinAnnualTaxBenefit, g.UpdatedAt,
			g.ID, g.OwnerID)
		if err != nil {
			return mapErr(err)
		}
		return expectRow(result)
	})
}

// SetDefaultProfile moves the default flag to id within the owner's scope
func (s *SQLiteStore) SetDefaultProfile(ctx context.Context, ownerID string, id uuid.UUID) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := clearDefault(ctx, tx, ownerID); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `
			UPDATE grade_profiles SET is_default = TRUE WHERE id = ? AND owner_id = ?`, id, ownerID)
		if err != nil {
			return mapErr(err)
		}
		return expectRow(result)
	})
}

// DeleteProfile removes the profile; properties overriding it fall back to
// their owner's default.
func (s *SQLiteStore) DeleteProfile(ctx context.Context, id uuid.UUID) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE properties SET grade_profile_id = NULL WHERE grade_profile_id = ?`, id); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM grade_profiles WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return expectRow(result)
	})
}

func clearDefault(ctx context.Context, tx *sql.Tx, ownerID string) error {
	_, err := tx.ExecContext(ctx, `UPDATE grade_profiles SET is_default = FALSE WHERE owner_id = ? AND is_default`, ownerID)
	return err
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
