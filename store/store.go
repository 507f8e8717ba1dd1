package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"storefront/model"
)

const (
	usersTable = "session_users"
	cartsTable = "session_carts"

	lockStripes = 64
)

// PostgresStore is a Store backed by Postgres. Profile and cart snapshots
// are JSONB payloads with an expiry; search history is one row per query.
type PostgresStore struct {
	DB  *sql.DB
	TTL time.Duration

	// striped by session id so concurrent requests of one visitor in this
	// process do not interleave history rewrites
	locks [lockStripes]sync.Mutex

	now func() time.Time
}

func NewPostgresStore(dsn string, ttl time.Duration) (*PostgresStore, error) {
	DB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := DB.Ping(); err != nil {
		_ = DB.Close()
		return nil, err
	}
	return &PostgresStore{DB: DB, TTL: ttl}, nil
}

func (s *PostgresStore) Close() error { return s.DB.Close() }

// Migrate executes the schema script.
func (s *PostgresStore) Migrate(ctx context.Context, schema string) error {
	if _, err := s.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s *PostgresStore) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultTTL
}

// helper: acquire per-session lock (process-local). Returns unlock func.
// Sessions hashing to the same stripe share a mutex.
func (s *PostgresStore) lockForSession(sessionID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	mtx := &s.locks[h.Sum32()%lockStripes]
	mtx.Lock()
	return mtx.Unlock
}

// --- payload tables ---

func (s *PostgresStore) getPayload(ctx context.Context, table, sessionID string, dst any) error {
	var payload []byte
	err := s.DB.QueryRowContext(ctx,
		`SELECT payload FROM `+table+` WHERE session_id = $1 AND expires_at > $2`,
		sessionID, s.clock(),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, dst)
}

func (s *PostgresStore) putPayload(ctx context.Context, table, sessionID string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO `+table+` (session_id, payload, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (session_id)
		DO UPDATE SET payload = EXCLUDED.payload, expires_at = EXCLUDED.expires_at
	`, sessionID, payload, s.clock().Add(s.ttl()))
	return err
}

func (s *PostgresStore) deletePayload(ctx context.Context, table, sessionID string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM `+table+` WHERE session_id = $1`, sessionID)
	return err
}

func (s *PostgresStore) GetUser(ctx context.Context, sessionID string) (*model.User, error) {
	var u model.User
	if err := s.getPayload(ctx, usersTable, sessionID, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) SaveUser(ctx context.Context, sessionID string, u *model.User) error {
	return s.putPayload(ctx, usersTable, sessionID, u)
}

func (s *PostgresStore) DeleteUser(ctx context.Context, sessionID string) error {
	return s.deletePayload(ctx, usersTable, sessionID)
}

func (s *PostgresStore) GetCart(ctx context.Context, sessionID string) (*model.Cart, error) {
	var c model.Cart
	if err := s.getPayload(ctx, cartsTable, sessionID, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) SaveCart(ctx context.Context, sessionID string, c *model.Cart) error {
	return s.putPayload(ctx, cartsTable, sessionID, c)
}

func (s *PostgresStore) DeleteCart(ctx context.Context, sessionID string) error {
	return s.deletePayload(ctx, cartsTable, sessionID)
}

// --- search history ---

func (s *PostgresStore) GetSearchHistory(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT query FROM search_history WHERE session_id = $1 ORDER BY position`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// SaveSearchHistory replaces the whole history of a session in one
// transaction. Position 0 is the newest query.
func (s *PostgresStore) SaveSearchHistory(ctx context.Context, sessionID string, queries []string) error {
	unlock := s.lockForSession(sessionID)
	defer unlock()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	// ensure rollback on early return
	rolledBack := false
	defer func() {
		if !rolledBack {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM search_history WHERE session_id = $1`, sessionID); err != nil {
		_ = tx.Rollback()
		rolledBack = true
		return err
	}

	for i, q := range queries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO search_history (session_id, position, query) VALUES ($1, $2, $3)`,
			sessionID, i, q,
		); err != nil {
			_ = tx.Rollback()
			rolledBack = true
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		rolledBack = true
		return err
	}
	rolledBack = true
	return nil
}

func (s *PostgresStore) DeleteSearchHistory(ctx context.Context, sessionID string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM search_history WHERE session_id = $1`, sessionID)
	return err
}

// PurgeExpired drops expired profile and cart snapshots, and search
// history not rewritten within the TTL. It returns how many rows were
// removed.
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	var total int64
	now := s.clock()
	for _, table := range []string{usersTable, cartsTable} {
		res, err := s.DB.ExecContext(ctx, `DELETE FROM `+table+` WHERE expires_at <= $1`, now)
		if err != nil {
			return total, err
		}
		ra, _ := res.RowsAffected()
		total += ra
	}
	res, err := s.DB.ExecContext(ctx, `DELETE FROM search_history WHERE created_at <= $1`, now.Add(-s.ttl()))
	if err != nil {
		return total, err
	}
	ra, _ := res.RowsAffected()
	return total + ra, nil
}
