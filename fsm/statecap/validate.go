package statecap

import (
	"context"

	"github.com/hrygo/botfsm/fsm"
)

// Validator converts a message to a T, reporting ok=false when the message
// doesn't pass validation.
type Validator[T any] func(msg fsm.MessageAction) (T, bool)

// ValidateOnMessage builds a MessageHandler that validates incoming text
// and dispatches to onCorrect or onIncorrect accordingly. A nil onIncorrect
// falls back to sending a localized "invalid input" message, matching the
// teacher implementation's default.
func ValidateOnMessage[T any](
	validator Validator[T],
	onCorrect func(ctx context.Context, hc *fsm.HookContext, value T) error,
	onIncorrect func(ctx context.Context, hc *fsm.HookContext, msg fsm.MessageAction) error,
) func(context.Context, *fsm.HookContext, fsm.MessageAction) error {
	if onIncorrect == nil {
		onIncorrect = defaultOnIncorrect
	}
	return func(ctx context.Context, hc *fsm.HookContext, msg fsm.MessageAction) error {
		value, ok := validator(msg)
		if ok {
			return onCorrect(ctx, hc, value)
		}
		return onIncorrect(ctx, hc, msg)
	}
}

func defaultOnIncorrect(ctx context.Context, hc *fsm.HookContext, msg fsm.MessageAction) error {
	return hc.Gateway.SendMessage(hc.ChatID, "Invalid input, please try again.", fsm.NoKeyboard, "html")
}

// ChoiceValidator returns a Validator[string] that accepts a message iff
// its text exactly matches one of options(), returning the text verbatim.
func ChoiceValidator(options func() []string) Validator[string] {
	return func(msg fsm.MessageAction) (string, bool) {
		for _, opt := range options() {
			if msg.Text == opt {
				return msg.Text, true
			}
		}
		return "", false
	}
}
