package fsm

import "context"

// HookContext aggregates everything a capability hook needs besides the
// triggering action: the chat it runs for, the mutable variable bag for
// that chat, the gateway to send messages through, the static-asset loader
// for view bodies, and a correlation ID tying the whole handle-action call
// together in logs. Hooks receive this instead of doing ambient lookups.
type HookContext struct {
	ChatID        ChatID
	Vars          *Context
	Gateway       ChatGateway
	Loader        StaticLoader
	CorrelationID string
}

// SwitchResult is the outcome of a switcher hook: either no transition
// requested, or the StateCode of the state to transition to.
type SwitchResult struct {
	Code StateCode
	Ok   bool
}

// NoSwitch reports "no transition requested".
var NoSwitch = SwitchResult{}

// SwitchTo builds a SwitchResult requesting a transition to code.
func SwitchTo(code StateCode) SwitchResult {
	return SwitchResult{Code: code, Ok: true}
}

// State is one node of the registry: an identity code plus an optional
// capability set. Every hook is optional and defaults to a no-op; the
// capability recipes in package statecap populate these fields for common
// behaviors (rendering a view, validating input, switching on a fixed
// choice, clearing scratch keys on exit).
type State struct {
	Code StateCode

	OnEnter func(ctx context.Context, hc *HookContext) error
	OnExit  func(ctx context.Context, hc *HookContext) error

	MessageHandler  func(ctx context.Context, hc *HookContext, msg MessageAction) error
	CallbackHandler func(ctx context.Context, hc *HookContext, cb CallbackAction) error

	AfterActionSwitcher func(ctx context.Context, hc *HookContext, action Action) SwitchResult
	AfterEnterSwitcher  func(ctx context.Context, hc *HookContext) SwitchResult
}

func (s *State) callOnEnter(ctx context.Context, hc *HookContext) error {
	if s.OnEnter == nil {
		return nil
	}
	return s.OnEnter(ctx, hc)
}

func (s *State) callOnExit(ctx context.Context, hc *HookContext) error {
	if s.OnExit == nil {
		return nil
	}
	return s.OnExit(ctx, hc)
}

func (s *State) callAfterActionSwitcher(ctx context.Context, hc *HookContext, action Action) SwitchResult {
	if s.AfterActionSwitcher == nil {
		return NoSwitch
	}
	return s.AfterActionSwitcher(ctx, hc, action)
}

func (s *State) callAfterEnterSwitcher(ctx context.Context, hc *HookContext) SwitchResult {
	if s.AfterEnterSwitcher == nil {
		return NoSwitch
	}
	return s.AfterEnterSwitcher(ctx, hc)
}
