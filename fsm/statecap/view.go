// Package statecap provides reusable capability recipes — small function
// builders that produce the hook closures a fsm.State's capability slots
// hold. They are independent and freely combinable: a concrete state picks
// whichever recipes it needs and assigns their output directly to the
// matching fsm.State field, overriding with a hand-written hook wherever a
// recipe doesn't fit.
package statecap

import (
	"context"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/hrygo/botfsm/fsm"
)

// TextRenderer produces the message body for a view.
type TextRenderer func(ctx context.Context, hc *fsm.HookContext) (string, error)

// KeyboardRenderer produces the keyboard to send alongside a view.
type KeyboardRenderer func(ctx context.Context, hc *fsm.HookContext) (fsm.Keyboard, error)

// RenderedView builds an OnEnter hook that renders text and keyboard, then
// sends them through the gateway with HTML parse mode.
func RenderedView(renderText TextRenderer, renderKeyboard KeyboardRenderer) func(context.Context, *fsm.HookContext) error {
	return func(ctx context.Context, hc *fsm.HookContext) error {
		text, err := renderText(ctx, hc)
		if err != nil {
			return err
		}
		keyboard, err := renderKeyboard(ctx, hc)
		if err != nil {
			return err
		}
		return hc.Gateway.SendMessage(hc.ChatID, text, keyboard, "html")
	}
}

// StaticView is a RenderedView specialization whose body never changes.
func StaticView(text string, keyboard fsm.Keyboard) func(context.Context, *fsm.HookContext) error {
	return RenderedView(
		func(context.Context, *fsm.HookContext) (string, error) { return text, nil },
		func(context.Context, *fsm.HookContext) (fsm.Keyboard, error) { return keyboard, nil },
	)
}

// MarkdownView resolves a named asset through the HookContext's
// StaticLoader, renders it from Markdown to HTML with goldmark, and sends
// it as the view body — matching the ChatGateway's parse_mode="html"
// contract without every state author hand-rolling HTML.
func MarkdownView(assetCode string, keyboard KeyboardRenderer) func(context.Context, *fsm.HookContext) error {
	return RenderedView(
		func(ctx context.Context, hc *fsm.HookContext) (string, error) {
			raw, err := hc.Loader.GetText(assetCode)
			if err != nil {
				return "", err
			}
			var out strings.Builder
			if err := goldmark.Convert([]byte(raw), &out); err != nil {
				return "", err
			}
			return out.String(), nil
		},
		keyboard,
	)
}

// KeyboardRows is a convenience KeyboardRenderer for a fixed set of rows.
func KeyboardRows(rows ...[]string) KeyboardRenderer {
	kb := fsm.Keyboard{Rows: rows}
	return func(context.Context, *fsm.HookContext) (fsm.Keyboard, error) { return kb, nil }
}

// RemoveKeyboard is a convenience KeyboardRenderer that removes any
// previously shown reply keyboard.
func RemoveKeyboard() KeyboardRenderer {
	kb := fsm.Keyboard{Remove: true}
	return func(context.Context, *fsm.HookContext) (fsm.Keyboard, error) { return kb, nil }
}
