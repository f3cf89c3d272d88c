package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"susu/internal/protocol/models"
)

// PostgresProtocolStore persists the singleton protocol record as one JSONB
// row. The record is always read and written whole under a row lock, the
// same discipline the circle store applies to its aggregates.
type PostgresProtocolStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed protocol store.
func NewPostgres(db *sql.DB) *PostgresProtocolStore {
	return &PostgresProtocolStore{db: db}
}

// Schema is the DDL for the protocol store. A single fixed-id row holds the
// record; the CHECK pins it to exactly one.
const Schema = `
CREATE TABLE IF NOT EXISTS protocol (
	id         SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// protocolDoc is the serialized record: the embedded struct plus the balance
// map exported as entries.
type protocolDoc struct {
	*models.Protocol
	Balances []models.BalanceEntry `json:"balances"`
}

// EnsureSchema creates the table and seeds the singleton row.
func (s *PostgresProtocolStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure protocol schema: %w", err)
	}
	raw, err := encodeProtocol(models.NewProtocol())
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO protocol (id, data) VALUES (1, $1) ON CONFLICT (id) DO NOTHING`, raw,
	); err != nil {
		return fmt.Errorf("seed protocol row: %w", err)
	}
	return nil
}

// Get returns the protocol record.
func (s *PostgresProtocolStore) Get(ctx context.Context) (*models.Protocol, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM protocol WHERE id = 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NewProtocol(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load protocol: %w", err)
	}
	return decodeProtocol(raw)
}

// Execute locks the singleton row with SELECT ... FOR UPDATE, runs validate
// then mutate, and commits the re-encoded record only if both succeed.
func (s *PostgresProtocolStore) Execute(
	ctx context.Context,
	validate func(p *models.Protocol) error,
	mutate func(p *models.Protocol) error,
) (*models.Protocol, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin execute: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var raw []byte
	if err := tx.QueryRowContext(ctx,
		`SELECT data FROM protocol WHERE id = 1 FOR UPDATE`,
	).Scan(&raw); err != nil {
		return nil, fmt.Errorf("lock protocol: %w", err)
	}

	p, err := decodeProtocol(raw)
	if err != nil {
		return nil, err
	}
	if err := validate(p); err != nil {
		return nil, err
	}
	if err := mutate(p); err != nil {
		return nil, err
	}

	encoded, err := encodeProtocol(p)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE protocol SET data = $1, updated_at = now() WHERE id = 1`, encoded,
	); err != nil {
		return nil, fmt.Errorf("update protocol: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit execute: %w", err)
	}
	return p, nil
}

func encodeProtocol(p *models.Protocol) ([]byte, error) {
	raw, err := json.Marshal(protocolDoc{Protocol: p, Balances: p.BalanceEntries()})
	if err != nil {
		return nil, fmt.Errorf("encode protocol: %w", err)
	}
	return raw, nil
}

func decodeProtocol(raw []byte) (*models.Protocol, error) {
	doc := protocolDoc{Protocol: models.NewProtocol()}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode protocol: %w", err)
	}
	doc.Protocol.SetBalanceEntries(doc.Balances)
	return doc.Protocol, nil
}
