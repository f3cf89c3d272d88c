package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"susu/internal/circle/models"
	"susu/pkg/domain"
	"susu/pkg/platform/sentinel"
)

// PostgresCircleStore persists each circle as a single JSONB document. The
// aggregate is always read and written whole, which matches the entry-point
// contract: every call re-reads the latest committed record, validates, and
// either commits all its mutations or none.
type PostgresCircleStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed circle store.
func NewPostgres(db *sql.DB) *PostgresCircleStore {
	return &PostgresCircleStore{db: db}
}

// Schema is the DDL for the circle store. The circle_members index table is
// derived from the aggregate on every commit; it exists so the one-circle-
// per-member rule is a single indexed lookup instead of a document scan.
const Schema = `
CREATE TABLE IF NOT EXISTS circles (
	id         BIGSERIAL PRIMARY KEY,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS circle_members (
	account   TEXT NOT NULL,
	circle_id BIGINT NOT NULL REFERENCES circles(id) ON DELETE CASCADE,
	PRIMARY KEY (account, circle_id)
);

CREATE INDEX IF NOT EXISTS circle_members_account_idx ON circle_members (account);
`

// EnsureSchema creates the store's tables if they do not exist.
func (s *PostgresCircleStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure circle schema: %w", err)
	}
	return nil
}

// Create inserts the circle and returns its assigned id.
func (s *PostgresCircleStore) Create(ctx context.Context, c *models.Circle) (domain.CircleID, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin create circle: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id uint64
	if err := tx.QueryRowContext(ctx,
		`INSERT INTO circles (data) VALUES ('{}'::jsonb) RETURNING id`,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert circle: %w", err)
	}

	c.ID = domain.CircleID(id)
	if err := writeCircle(ctx, tx, c); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit create circle: %w", err)
	}
	return c.ID, nil
}

// FindByID loads a circle, or sentinel.ErrNotFound.
func (s *PostgresCircleStore) FindByID(ctx context.Context, id domain.CircleID) (*models.Circle, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM circles WHERE id = $1`, uint64(id),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find circle %d: %w", id, err)
	}
	return decodeCircle(raw)
}

// Execute locks the row with SELECT ... FOR UPDATE, runs validate then
// mutate against the decoded aggregate, and commits the re-encoded document
// only if both succeed.
func (s *PostgresCircleStore) Execute(
	ctx context.Context,
	id domain.CircleID,
	validate func(c *models.Circle) error,
	mutate func(c *models.Circle) error,
) (*models.Circle, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin execute: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var raw []byte
	err = tx.QueryRowContext(ctx,
		`SELECT data FROM circles WHERE id = $1 FOR UPDATE`, uint64(id),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock circle %d: %w", id, err)
	}

	c, err := decodeCircle(raw)
	if err != nil {
		return nil, err
	}
	if err := validate(c); err != nil {
		return nil, err
	}
	if err := mutate(c); err != nil {
		return nil, err
	}

	if err := writeCircle(ctx, tx, c); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit execute: %w", err)
	}
	return c, nil
}

// CircleOfMember returns the circle an account belongs to with non-ejected
// status, via the derived membership index.
func (s *PostgresCircleStore) CircleOfMember(ctx context.Context, acct domain.Account) (domain.CircleID, error) {
	var id uint64
	err := s.db.QueryRowContext(ctx,
		`SELECT circle_id FROM circle_members WHERE account = $1 LIMIT 1`, acct.String(),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, sentinel.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lookup member circle: %w", err)
	}
	return domain.CircleID(id), nil
}

// writeCircle persists the document and rebuilds the membership index rows
// for this circle inside the caller's transaction.
func writeCircle(ctx context.Context, tx *sql.Tx, c *models.Circle) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode circle %d: %w", c.ID, err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE circles SET data = $2, updated_at = now() WHERE id = $1`,
		uint64(c.ID), raw,
	); err != nil {
		return fmt.Errorf("update circle %d: %w", c.ID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM circle_members WHERE circle_id = $1`, uint64(c.ID),
	); err != nil {
		return fmt.Errorf("clear membership index: %w", err)
	}
	for _, m := range c.Members {
		if m.Status == models.MemberEjected {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO circle_members (account, circle_id) VALUES ($1, $2)`,
			m.Account.String(), uint64(c.ID),
		); err != nil {
			return fmt.Errorf("index member %s: %w", m.Account, err)
		}
	}
	return nil
}

func decodeCircle(raw []byte) (*models.Circle, error) {
	var c models.Circle
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode circle: %w", err)
	}
	// JSON omits empty maps; keep the aggregate's internal maps non-nil.
	if c.ContributionStatus == nil {
		c.ContributionStatus = make(map[domain.Account]bool)
	}
	if c.PendingExits == nil {
		c.PendingExits = make(map[domain.Account]*models.PendingExit)
	}
	if c.Ejected == nil {
		c.Ejected = make(map[domain.Account]bool)
	}
	return &c, nil
}
