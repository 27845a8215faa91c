package fsm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxChainDepth bounds the chained-enter loop. A state whose
// after_enter_switcher chain exceeds this depth is almost certainly cyclic;
// the machine aborts with TransitionCycleError rather than looping forever.
const DefaultMaxChainDepth = 32

// StateMachine orchestrates dispatch, transition chains, and persistence
// for all chats sharing one Registry and StorageBackend.
type StateMachine struct {
	registry   *Registry
	storage    StorageBackend
	gateway    ChatGateway
	loader     StaticLoader
	serializer *perChatSerializer
	metrics    *Metrics
	logger     *slog.Logger

	maxChainDepth int
}

// Option configures optional StateMachine behavior.
type Option func(*StateMachine)

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(sm *StateMachine) { sm.metrics = m }
}

// WithLogger overrides the default (slog.Default()) logger.
func WithLogger(l *slog.Logger) Option {
	return func(sm *StateMachine) { sm.logger = l }
}

// WithMaxChainDepth overrides DefaultMaxChainDepth.
func WithMaxChainDepth(depth int) Option {
	return func(sm *StateMachine) { sm.maxChainDepth = depth }
}

// NewStateMachine wires a registry, storage backend, gateway, and static
// asset loader into a ready-to-use StateMachine.
func NewStateMachine(registry *Registry, storage StorageBackend, gateway ChatGateway, loader StaticLoader, opts ...Option) *StateMachine {
	sm := &StateMachine{
		registry:      registry,
		storage:       storage,
		gateway:       gateway,
		loader:        loader,
		serializer:    newPerChatSerializer(),
		logger:        slog.Default(),
		maxChainDepth: DefaultMaxChainDepth,
	}
	for _, opt := range opts {
		opt(sm)
	}
	return sm
}

// HandleAction is the single entry point: it serializes per chat, loads
// state and context, dispatches the action to the current state's handler,
// follows any requested transition chain, and persists the context before
// returning. See the package doc and spec.md §4.5 for the full algorithm.
func (sm *StateMachine) HandleAction(ctx context.Context, action Action) (err error) {
	chatID := action.ChatID()
	release := sm.serializer.acquire(chatID)
	defer release()

	start := time.Now()
	correlationID := uuid.NewString()
	defer func() {
		sm.metrics.observeDuration(time.Since(start).Seconds())
	}()

	vars, ok, err := sm.storage.GetContext(ctx, chatID)
	if err != nil {
		return newStorageError("get_context", err)
	}
	if !ok {
		vars = NewContext()
	}

	// Context scope: from here on, every exit path persists vars, even if
	// a hook below panics or returns an error. The load above already
	// succeeded, so this defer always has something sensible to write. A
	// failed write is returned as a StorageError unless an earlier error is
	// already being returned.
	defer func() {
		if perr := sm.storage.SetContext(ctx, chatID, vars); perr != nil {
			sm.logger.Error("fsm: failed to persist context",
				"chat_id", chatID, "correlation_id", correlationID, "error", perr)
			if err == nil {
				err = newStorageError("set_context", perr)
			}
		}
	}()

	hc := &HookContext{ChatID: chatID, Vars: vars, Gateway: sm.gateway, Loader: sm.loader, CorrelationID: correlationID}

	code, known, err := sm.storage.GetState(ctx, chatID)
	if err != nil {
		return newStorageError("get_state", err)
	}

	var cur *State
	if known {
		cur, known = sm.registry.Lookup(code)
	}
	if !known {
		sm.logger.Info("fsm: new or unresolvable chat, entering default state",
			"chat_id", chatID, "correlation_id", correlationID)
		return sm.enterChain(ctx, hc, nil, sm.registry.Default())
	}

	var handlerErr error
	switch a := action.(type) {
	case MessageAction:
		if cur.MessageHandler != nil {
			handlerErr = sm.safeCall(cur.Code, "message_handler", func() error {
				return cur.MessageHandler(ctx, hc, a)
			})
		}
	case CallbackAction:
		if cur.CallbackHandler != nil {
			handlerErr = sm.safeCall(cur.Code, "callback_handler", func() error {
				return cur.CallbackHandler(ctx, hc, a)
			})
		}
	}
	if handlerErr != nil {
		sm.logger.Error("fsm: handler error, action consumed without transition",
			"chat_id", chatID, "state", cur.Code, "correlation_id", correlationID, "error", handlerErr)
		return nil
	}

	// after_action_switcher always runs, even when the action's handler
	// was a no-op for this state (spec.md §9 open question).
	result := cur.callAfterActionSwitcher(ctx, hc, action)
	if !result.Ok {
		return nil
	}

	next, ok := sm.registry.Lookup(result.Code)
	if !ok {
		sm.logger.Error("fsm: after_action_switcher requested unknown state",
			"chat_id", chatID, "from_state", cur.Code, "requested", result.Code, "correlation_id", correlationID)
		return &RegistryError{Code: result.Code}
	}

	return sm.enterChain(ctx, hc, cur, next)
}

// enterChain performs the prev→next transition (prev may be nil for the
// initial transition into the default state), then follows next's
// after_enter_switcher chain until it returns no further code or the depth
// cap is exceeded.
func (sm *StateMachine) enterChain(ctx context.Context, hc *HookContext, prev, next *State) error {
	depth := 0
	for {
		if prev != nil {
			if err := sm.safeCall(prev.Code, "on_exit", func() error { return prev.callOnExit(ctx, hc) }); err != nil {
				sm.logger.Error("fsm: on_exit failed, chain abandoned at last committed state",
					"chat_id", hc.ChatID, "state", prev.Code, "correlation_id", hc.CorrelationID, "error", err)
				return nil
			}
		}

		if err := sm.safeCall(next.Code, "on_enter", func() error { return next.callOnEnter(ctx, hc) }); err != nil {
			sm.logger.Error("fsm: on_enter failed, chain abandoned at last committed state",
				"chat_id", hc.ChatID, "state", next.Code, "correlation_id", hc.CorrelationID, "error", err)
			return nil
		}

		if err := sm.storage.SetState(ctx, hc.ChatID, next.Code); err != nil {
			return newStorageError("set_state", err)
		}

		var from StateCode
		if prev != nil {
			from = prev.Code
		}
		sm.metrics.observeTransition(from, next.Code)
		sm.logger.Info("fsm: transition",
			"chat_id", hc.ChatID, "from_state", from, "to_state", next.Code, "correlation_id", hc.CorrelationID)

		depth++
		if depth > sm.maxChainDepth {
			return &TransitionCycleError{Depth: depth}
		}

		result := next.callAfterEnterSwitcher(ctx, hc)
		if !result.Ok {
			return nil
		}

		nn, ok := sm.registry.Lookup(result.Code)
		if !ok {
			return &RegistryError{Code: result.Code}
		}
		prev, next = next, nn
	}
}

// safeCall invokes a capability hook, converting both panics and returned
// errors into a *HandlerError and recording it on the handler-errors
// counter.
func (sm *StateMachine) safeCall(state StateCode, hook string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HandlerError{State: state, Hook: hook, Err: fmt.Errorf("panic: %v", r)}
		}
		if err != nil {
			sm.metrics.observeHandlerError(state, hook)
		}
	}()
	if e := fn(); e != nil {
		return &HandlerError{State: state, Hook: hook, Err: e}
	}
	return nil
}
