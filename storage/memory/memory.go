// Package memory provides a process-local fsm.StorageBackend backed by a
// mutex-guarded map, for tests and single-process deployments that don't
// need state to survive a restart.
package memory

import (
	"context"
	"sync"

	"github.com/hrygo/botfsm/fsm"
)

type chatRecord struct {
	state   fsm.StateCode
	hasCtx  bool
	ctxJSON []byte
}

// Backend is an in-memory fsm.StorageBackend. The zero value is not usable;
// construct with New.
type Backend struct {
	mu      sync.RWMutex
	records map[fsm.ChatID]*chatRecord
}

// New returns an empty in-memory backend.
func New() *Backend {
	return &Backend{records: make(map[fsm.ChatID]*chatRecord)}
}

// GetState implements fsm.StorageBackend.
func (b *Backend) GetState(_ context.Context, chatID fsm.ChatID) (fsm.StateCode, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.records[chatID]
	if !ok {
		return "", false, nil
	}
	return rec.state, true, nil
}

// SetState implements fsm.StorageBackend.
func (b *Backend) SetState(_ context.Context, chatID fsm.ChatID, code fsm.StateCode) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec := b.records[chatID]
	if rec == nil {
		rec = &chatRecord{}
		b.records[chatID] = rec
	}
	rec.state = code
	return nil
}

// GetContext implements fsm.StorageBackend. The returned Context is decoded
// from a private copy of the stored bytes, so callers may mutate it freely
// without affecting other readers.
func (b *Backend) GetContext(_ context.Context, chatID fsm.ChatID) (*fsm.Context, bool, error) {
	b.mu.RLock()
	rec, ok := b.records[chatID]
	if !ok || !rec.hasCtx {
		b.mu.RUnlock()
		return nil, false, nil
	}
	raw := append([]byte(nil), rec.ctxJSON...)
	b.mu.RUnlock()

	vars, err := fsm.LoadContext(raw)
	if err != nil {
		return nil, false, newStorageError("decode context", err)
	}
	return vars, true, nil
}

// SetContext implements fsm.StorageBackend.
func (b *Backend) SetContext(_ context.Context, chatID fsm.ChatID, vars *fsm.Context) error {
	raw, err := vars.Snapshot()
	if err != nil {
		return newStorageError("snapshot context", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	rec := b.records[chatID]
	if rec == nil {
		rec = &chatRecord{}
		b.records[chatID] = rec
	}
	rec.hasCtx = true
	rec.ctxJSON = raw
	return nil
}

// Len reports the number of chats with any recorded state, for tests.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.records)
}

func newStorageError(op string, err error) error {
	return &fsm.StorageError{Op: op, Err: err}
}
