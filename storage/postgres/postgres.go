// Package postgres provides a durable fsm.StorageBackend on top of
// PostgreSQL, storing per-chat state and context in two narrow tables.
package postgres

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	_ "github.com/lib/pq"

	"github.com/hrygo/botfsm/fsm"
)

const schema = `
CREATE TABLE IF NOT EXISTS chat_state (
	chat_id    BIGINT PRIMARY KEY,
	state_code TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS chat_context (
	chat_id    BIGINT PRIMARY KEY,
	context    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Backend is a PostgreSQL-backed fsm.StorageBackend.
type Backend struct {
	db *sql.DB
}

// Open connects to dsn, ensures the schema exists, and returns a ready
// Backend.
func Open(dsn string) (*Backend, error) {
	if dsn == "" {
		return nil, errors.New("dsn required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", dsn)
	}

	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping db")
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, errors.Wrap(err, "failed to apply schema")
	}

	return &Backend{db: db}, nil
}

// Close releases the underlying connection pool.
func (b *Backend) Close() error {
	return b.db.Close()
}

// GetState implements fsm.StorageBackend.
func (b *Backend) GetState(ctx context.Context, chatID fsm.ChatID) (fsm.StateCode, bool, error) {
	var code string
	err := b.db.QueryRowContext(ctx,
		`SELECT state_code FROM chat_state WHERE chat_id = $1`, int64(chatID),
	).Scan(&code)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, newStorageError("get state", err)
	}
	return fsm.StateCode(code), true, nil
}

// SetState implements fsm.StorageBackend.
func (b *Backend) SetState(ctx context.Context, chatID fsm.ChatID, code fsm.StateCode) error {
	_, err := b.db.ExecContext(context.WithoutCancel(ctx), `
		INSERT INTO chat_state (chat_id, state_code, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (chat_id) DO UPDATE SET state_code = EXCLUDED.state_code, updated_at = now()
	`, int64(chatID), string(code))
	if err != nil {
		return newStorageError("set state", err)
	}
	return nil
}

// GetContext implements fsm.StorageBackend.
func (b *Backend) GetContext(ctx context.Context, chatID fsm.ChatID) (*fsm.Context, bool, error) {
	var raw []byte
	err := b.db.QueryRowContext(ctx,
		`SELECT context FROM chat_context WHERE chat_id = $1`, int64(chatID),
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, newStorageError("get context", err)
	}

	vars, err := fsm.LoadContext(raw)
	if err != nil {
		return nil, false, newStorageError("decode context", err)
	}
	return vars, true, nil
}

// SetContext implements fsm.StorageBackend.
func (b *Backend) SetContext(ctx context.Context, chatID fsm.ChatID, vars *fsm.Context) error {
	raw, err := vars.Snapshot()
	if err != nil {
		return newStorageError("snapshot context", err)
	}

	_, err = b.db.ExecContext(context.WithoutCancel(ctx), `
		INSERT INTO chat_context (chat_id, context, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (chat_id) DO UPDATE SET context = EXCLUDED.context, updated_at = now()
	`, int64(chatID), raw)
	if err != nil {
		return newStorageError("set context", err)
	}
	return nil
}

func newStorageError(op string, err error) error {
	return &fsm.StorageError{Op: op, Err: errors.WithStack(err)}
}
