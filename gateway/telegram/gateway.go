// Package telegram adapts the Telegram Bot API to the fsm package's
// ChatGateway and Action contracts.
package telegram

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hrygo/botfsm/fsm"
)

// Gateway sends outbound fsm views through a Telegram bot. It implements
// fsm.ChatGateway.
type Gateway struct {
	bot *tgbotapi.BotAPI
}

// NewGateway authenticates against the Telegram Bot API with token and
// returns a ready Gateway.
func NewGateway(token string) (*Gateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return &Gateway{bot: bot}, nil
}

// SendMessage implements fsm.ChatGateway. parseMode is passed through
// verbatim ("html", "Markdown", or "" for plain text).
func (g *Gateway) SendMessage(chatID fsm.ChatID, text string, keyboard fsm.Keyboard, parseMode string) error {
	msg := tgbotapi.NewMessage(int64(chatID), text)
	if parseMode != "" {
		msg.ParseMode = parseMode
	}
	msg.ReplyMarkup = toReplyMarkup(keyboard)

	if _, err := g.bot.Send(msg); err != nil {
		slog.Error("telegram: send failed", "chat_id", chatID, "error", err)
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// SetWebhook registers webhookURL with Telegram, so updates are pushed to
// the process hosting Ingress.HandleWebhook instead of being polled.
func (g *Gateway) SetWebhook(webhookURL string, secretToken string) error {
	cfg, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return fmt.Errorf("build webhook config: %w", err)
	}
	cfg.SecretToken = secretToken
	_, err = g.bot.Request(cfg)
	return err
}

func toReplyMarkup(kb fsm.Keyboard) any {
	if kb.Remove {
		return tgbotapi.NewRemoveKeyboard(true)
	}
	if len(kb.Rows) == 0 {
		return nil
	}

	rows := make([][]tgbotapi.KeyboardButton, 0, len(kb.Rows))
	for _, row := range kb.Rows {
		buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
		}
		rows = append(rows, buttons)
	}

	markup := tgbotapi.NewReplyKeyboard(rows...)
	markup.ResizeKeyboard = true
	return markup
}
