package telegram

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hrygo/botfsm/fsm"
)

// ErrUnsupportedUpdate means a webhook payload carried an update kind
// Ingress does not translate into an fsm.Action (e.g. inline queries).
var ErrUnsupportedUpdate = fmt.Errorf("telegram: unsupported update kind")

// Ingress translates Telegram webhook payloads into fsm.Action values.
type Ingress struct {
	secretToken string
}

// NewIngress builds an Ingress. secretToken, if non-empty, is compared
// against the X-Telegram-Bot-Api-Secret-Token header on every request
// (the token Gateway.SetWebhook registered with Telegram).
func NewIngress(secretToken string) *Ingress {
	return &Ingress{secretToken: secretToken}
}

// VerifyRequest checks the method and, when a secret token is configured,
// the webhook secret header, using a constant-time comparison.
func (in *Ingress) VerifyRequest(r *http.Request) bool {
	if r.Method != http.MethodPost {
		return false
	}
	if in.secretToken == "" {
		return true
	}
	got := r.Header.Get("X-Telegram-Bot-Api-Secret-Token")
	return subtle.ConstantTimeCompare([]byte(got), []byte(in.secretToken)) == 1
}

// HandleWebhook decodes the request body into a tgbotapi.Update and
// translates it into an fsm.Action. It returns ErrUnsupportedUpdate for
// update kinds with no Action mapping (e.g. inline queries, channel
// posts); callers should treat that as a 200-and-drop, not an error
// response, per spec.md §6.3.
func (in *Ingress) HandleWebhook(r *http.Request) (fsm.Action, error) {
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read webhook body: %w", err)
	}

	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		return nil, fmt.Errorf("decode webhook body: %w", err)
	}

	return translate(update)
}

func translate(update tgbotapi.Update) (fsm.Action, error) {
	switch {
	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		// A callback from an inline message (no originating chat) carries
		// InlineMessageID instead of Message; there is no ChatID to route on.
		if cq.Message == nil {
			return nil, ErrUnsupportedUpdate
		}
		chatID := fsm.ChatID(cq.Message.Chat.ID)
		return fsm.CallbackAction{Chat: chatID, Data: cq.Data, Raw: update}, nil

	case update.Message != nil:
		msg := update.Message
		return fsm.MessageAction{Chat: fsm.ChatID(msg.Chat.ID), Text: msg.Text, Raw: update}, nil

	default:
		return nil, ErrUnsupportedUpdate
	}
}
