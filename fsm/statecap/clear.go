package statecap

import (
	"context"

	"github.com/hrygo/botfsm/fsm"
)

// ClearContextOnExit builds an OnExit hook that deletes the given keys
// from the chat's Context, e.g. to drop wizard scratch state once the user
// leaves a multi-step flow.
func ClearContextOnExit(keys ...string) func(context.Context, *fsm.HookContext) error {
	return func(_ context.Context, hc *fsm.HookContext) error {
		hc.Vars.DeleteKeys(keys...)
		return nil
	}
}
