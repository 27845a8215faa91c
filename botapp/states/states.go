// Package states defines the demo conversation wired into cmd/botfsmd: a
// two-state greeting flow equivalent to the original bot's /start handler,
// expressed as a botfsm.Registry built entirely from statecap recipes.
package states

import (
	"context"

	"github.com/hrygo/botfsm/fsm"
	"github.com/hrygo/botfsm/fsm/statecap"
)

const (
	// Welcome is the default state: greets the chat and offers a menu
	// choice.
	Welcome fsm.StateCode = "welcome"
	// Menu is entered once the chat picks an option from Welcome.
	Menu fsm.StateCode = "menu"
)

const (
	optHelp  = "Help"
	optAbout = "About"
	optBack  = "back"
)

// NewRegistry builds the demo registry, with Welcome as the default state.
func NewRegistry() *fsm.Registry {
	welcomeKeyboard := fsm.Keyboard{Rows: [][]string{{optHelp, optAbout}}}

	welcome := &fsm.State{
		Code:    Welcome,
		OnEnter: statecap.StaticView("Hello! Pick an option below.", welcomeKeyboard),
		AfterActionSwitcher: statecap.NewSwitchByMessage(func() map[string]fsm.StateCode {
			return map[string]fsm.StateCode{
				optHelp:  Menu,
				optAbout: Menu,
			}
		}).AfterActionSwitcher,
	}

	menu := &fsm.State{
		Code: Menu,
		OnEnter: statecap.RenderedView(
			func(context.Context, *fsm.HookContext) (string, error) {
				return "You're in the menu. Send \"back\" to return to the welcome screen.", nil
			},
			statecap.RemoveKeyboard(),
		),
		OnExit: statecap.ClearContextOnExit("menu_scratch"),
		AfterActionSwitcher: statecap.NewSwitchByMessage(func() map[string]fsm.StateCode {
			return map[string]fsm.StateCode{
				optBack: Welcome,
			}
		}).AfterActionSwitcher,
	}

	return fsm.NewRegistry([]*fsm.State{welcome, menu}, Welcome)
}
