// Package chat implements the Telegram chat adapter capability: an
// outgoing-message client plus inbound callback/text-reply routing into the
// approval coordinator.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/claudecube/claudecube/internal/approval"
)

const apiBase = "https://api.telegram.org/bot"

// Adapter is the Telegram-backed chat adapter. It satisfies
// approval.ChatSender.
type Adapter struct {
	token  string
	chatID int64
	client *http.Client
}

// New constructs an Adapter. An empty token disables the human channel
// entirely — callers should not construct one in that case (see cliapp
// wiring, which builds neither an Adapter nor an approval coordinator when
// Telegram is disabled).
func New(token string, chatID int64) *Adapter {
	return &Adapter{token: token, chatID: chatID, client: &http.Client{Timeout: 15 * time.Second}}
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

func keyboardFor(kb approval.Keyboard, approvalID string) [][]inlineButton {
	switch kb {
	case approval.KeyboardStop:
		return [][]inlineButton{{
			{Text: "Continue", CallbackData: "continue:" + approvalID},
			{Text: "Let stop", CallbackData: "let-stop:" + approvalID},
		}}
	default:
		return [][]inlineButton{{
			{Text: "Approve", CallbackData: "approve:" + approvalID},
			{Text: "Deny", CallbackData: "deny:" + approvalID},
			{Text: "Details", CallbackData: "details:" + approvalID},
		}}
	}
}

type sendMessageRequest struct {
	ChatID      int64  `json:"chat_id"`
	Text        string `json:"text"`
	ParseMode   string `json:"parse_mode,omitempty"`
	ReplyMarkup *struct {
		InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
	} `json:"reply_markup,omitempty"`
}

type apiResponse struct {
	OK     bool `json:"ok"`
	Result struct {
		MessageID int `json:"message_id"`
	} `json:"result"`
	Description string `json:"description"`
}

// SendMessage sends a message whose inline keyboard's callback data carries
// approvalID as the "<action>:<id>" suffix the coordinator parses back out
// of an inbound button press.
func (a *Adapter) SendMessage(ctx context.Context, approvalID, text string, kb approval.Keyboard) (string, error) {
	buttons := keyboardFor(kb, approvalID)
	req := sendMessageRequest{ChatID: a.chatID, Text: text, ParseMode: "Markdown"}
	req.ReplyMarkup = &struct {
		InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
	}{InlineKeyboard: buttons}

	resp, err := a.call(ctx, "sendMessage", req)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(resp.Result.MessageID), nil
}

// Notify sends a plain text message with no inline keyboard — used for
// lifecycle notifications (session started/ended, denial-threshold alerts)
// that never resolve a pending approval.
func (a *Adapter) Notify(ctx context.Context, text string) error {
	req := sendMessageRequest{ChatID: a.chatID, Text: text, ParseMode: "Markdown"}
	_, err := a.call(ctx, "sendMessage", req)
	return err
}

// EditMessage edits a previously sent message's text.
func (a *Adapter) EditMessage(ctx context.Context, messageID, text string) error {
	id, err := strconv.Atoi(messageID)
	if err != nil {
		return fmt.Errorf("invalid message id %q: %w", messageID, err)
	}
	body := struct {
		ChatID    int64  `json:"chat_id"`
		MessageID int    `json:"message_id"`
		Text      string `json:"text"`
	}{ChatID: a.chatID, MessageID: id, Text: text}
	_, err = a.call(ctx, "editMessageText", body)
	return err
}

// AnswerButton acknowledges a callback query, optionally with a toast text.
func (a *Adapter) AnswerButton(ctx context.Context, callbackID, text string) error {
	body := struct {
		CallbackQueryID string `json:"callback_query_id"`
		Text            string `json:"text,omitempty"`
	}{CallbackQueryID: callbackID, Text: text}
	_, err := a.call(ctx, "answerCallbackQuery", body)
	return err
}

func (a *Adapter) call(ctx context.Context, method string, body interface{}) (*apiResponse, error) {
	raw, err := a.rawCall(ctx, method, body)
	if err != nil {
		return nil, err
	}
	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode telegram response: %w", err)
	}
	if !out.OK {
		return nil, fmt.Errorf("telegram API error: %s", out.Description)
	}
	return &out, nil
}

// rawCall issues the request and returns the undecoded response body, for
// callers (getUpdates) whose "result" shape isn't apiResponse's.
func (a *Adapter) rawCall(ctx context.Context, method string, body interface{}) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal telegram request: %w", err)
	}
	url := apiBase + a.token + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read telegram response: %w", err)
	}
	return raw, nil
}

// IsAllowedChat rejects updates from any chat other than the configured one.
func (a *Adapter) IsAllowedChat(chatID int64) bool {
	return chatID == a.chatID
}
