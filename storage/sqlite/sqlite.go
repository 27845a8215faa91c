// Package sqlite provides a durable fsm.StorageBackend on top of SQLite,
// for single-process deployments that want state to survive a restart
// without standing up PostgreSQL.
package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	// Pure-Go SQLite driver, registered as "sqlite". No CGO toolchain
	// requirement at build time, unlike mattn/go-sqlite3.
	_ "modernc.org/sqlite"

	"github.com/hrygo/botfsm/fsm"
)

const schema = `
CREATE TABLE IF NOT EXISTS chat_state (
	chat_id    INTEGER PRIMARY KEY,
	state_code TEXT NOT NULL,
	updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE TABLE IF NOT EXISTS chat_context (
	chat_id    INTEGER PRIMARY KEY,
	context    TEXT NOT NULL,
	updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`

// Backend is a SQLite-backed fsm.StorageBackend.
type Backend struct {
	db *sql.DB
}

// Open opens dsn (a file path, or ":memory:"), ensures the schema exists,
// and returns a ready Backend. WAL mode and a busy timeout are set so a
// single bot process can read and write concurrently without lock errors.
func Open(dsn string) (*Backend, error) {
	if dsn == "" {
		return nil, errors.New("dsn required")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", dsn)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, errors.Wrapf(err, "failed to set pragma: %s", pragma)
		}
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		return nil, errors.Wrap(err, "failed to apply schema")
	}

	return &Backend{db: db}, nil
}

// Close releases the underlying connection.
func (b *Backend) Close() error {
	return b.db.Close()
}

// GetState implements fsm.StorageBackend.
func (b *Backend) GetState(ctx context.Context, chatID fsm.ChatID) (fsm.StateCode, bool, error) {
	var code string
	err := b.db.QueryRowContext(ctx,
		`SELECT state_code FROM chat_state WHERE chat_id = ?`, int64(chatID),
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
		VALUES (?, ?, datetime('now'))
		ON CONFLICT (chat_id) DO UPDATE SET state_code = excluded.state_code, updated_at = datetime('now')
	`, int64(chatID), string(code))
	if err != nil {
		return newStorageError("set state", err)
	}
	return nil
}

// GetContext implements fsm.StorageBackend.
func (b *Backend) GetContext(ctx context.Context, chatID fsm.ChatID) (*fsm.Context, bool, error) {
	var raw string
	err := b.db.QueryRowContext(ctx,
		`SELECT context FROM chat_context WHERE chat_id = ?`, int64(chatID),
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, newStorageError("get context", err)
	}

	vars, err := fsm.LoadContext([]byte(raw))
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
		VALUES (?, ?, datetime('now'))
		ON CONFLICT (chat_id) DO UPDATE SET context = excluded.context, updated_at = datetime('now')
	`, int64(chatID), string(raw))
	if err != nil {
		return newStorageError("set context", err)
	}
	return nil
}

func newStorageError(op string, err error) error {
	return &fsm.StorageError{Op: op, Err: errors.WithStack(err)}
}
