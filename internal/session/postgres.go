package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PostgresStore keeps sessions in the sessions table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Load(ctx context.Context, id string) (Data, error) {
	const query = `SELECT data FROM sessions WHERE id = $1 AND expires_at > $2`

	var raw []byte
	if err := s.db.QueryRowContext(ctx, query, id, time.Now().UTC()).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Data{}, ErrNotFound
		}
		return Data{}, err
	}

	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return Data{}, err
	}
	return data, nil
}

func (s *PostgresStore) Save(ctx context.Context, id string, data Data, ttl time.Duration) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO sessions (id, data, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET data = EXCLUDED.data,
			expires_at = EXCLUDED.expires_at`
	_, err = s.db.ExecContext(ctx, query, id, raw, time.Now().UTC().Add(ttl))
	return err
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM sessions WHERE id = $1`
	_, err := s.db.ExecContext(ctx, query, id)
	return err
}

// DeleteExpired removes sessions past their expiry and reports how many were dropped.
func (s *PostgresStore) DeleteExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM sessions WHERE expires_at <= $1`
	result, err := s.db.ExecContext(ctx, query, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
