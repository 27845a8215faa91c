package statecap

import (
	"context"
	"sync"

	"github.com/hrygo/botfsm/fsm"
)

// SwitchByMessage switches state based on an incoming message's exact
// text, consulting a table of {text: target state code}. The table is
// computed lazily on first use and memoized for the registered state's
// whole lifetime, mirroring the teacher implementation's cached
// switch-options table.
type SwitchByMessage struct {
	once    sync.Once
	options map[string]fsm.StateCode
	build   func() map[string]fsm.StateCode
}

// NewSwitchByMessage builds a SwitchByMessage whose table is produced by
// build on first use.
func NewSwitchByMessage(build func() map[string]fsm.StateCode) *SwitchByMessage {
	return &SwitchByMessage{build: build}
}

func (s *SwitchByMessage) resolve() map[string]fsm.StateCode {
	s.once.Do(func() { s.options = s.build() })
	return s.options
}

// Options returns the table's keys, e.g. for rendering a matching reply
// keyboard or feeding a ChoiceValidator.
func (s *SwitchByMessage) Options() []string {
	opts := s.resolve()
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	return keys
}

// AfterActionSwitcher is an fsm.State.AfterActionSwitcher hook. It runs for
// every action the state receives (per spec.md §9, even when the state's
// own handler ignored the action), and requests a transition only for
// Message actions whose text is a key in the table.
func (s *SwitchByMessage) AfterActionSwitcher(_ context.Context, _ *fsm.HookContext, action fsm.Action) fsm.SwitchResult {
	msg, ok := action.(fsm.MessageAction)
	if !ok {
		return fsm.NoSwitch
	}
	code, ok := s.resolve()[msg.Text]
	if !ok {
		return fsm.NoSwitch
	}
	return fsm.SwitchTo(code)
}
