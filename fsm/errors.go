package fsm

import "github.com/pkg/errors"

// StorageError wraps an I/O or constraint failure from a StorageBackend. It
// is surfaced to the caller of HandleAction; the core never retries it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "storage: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

func newStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: errors.WithStack(err)}
}

// RegistryError means a requested StateCode is not registered. It is fatal
// to the action in progress: the action is dropped and the chat remains in
// its last persisted state.
type RegistryError struct {
	Code StateCode
}

func (e *RegistryError) Error() string {
	return "registry: unresolvable state code " + string(e.Code)
}

// TransitionCycleError means the chained-enter loop exceeded the machine's
// maximum chain depth (DefaultMaxChainDepth unless set with WithMaxChainDepth).
// The action is dropped; the persisted state is whatever the loop last
// committed before hitting the cap.
type TransitionCycleError struct {
	Depth int
}

func (e *TransitionCycleError) Error() string {
	return "transition cycle exceeded max depth"
}

// HandlerError wraps a panic or error raised from an application-supplied
// hook (on_enter, on_exit, message_handler, callback_handler). It is
// contained by the core: logged, context persisted, no transition applied.
type HandlerError struct {
	State StateCode
	Hook  string
	Err   error
}

func (e *HandlerError) Error() string {
	return "handler: " + string(e.State) + "." + e.Hook + ": " + e.Err.Error()
}

func (e *HandlerError) Unwrap() error { return e.Err }

// SerializationError means a Context could not be JSON-encoded. It is
// surfaced to the caller as a StorageError.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string {
	return "serialization: " + e.Err.Error()
}

func (e *SerializationError) Unwrap() error { return e.Err }
