package chat

import (
	"context"
	"encoding/json"
	"strconv"
	"time"
)

// Update is the subset of a Telegram Update payload this adapter dispatches.
type Update struct {
	CallbackQuery *struct {
		ID      string `json:"id"`
		Data    string `json:"data"`
		Message struct {
			MessageID int `json:"message_id"`
			Chat      struct {
				ID int64 `json:"id"`
			} `json:"chat"`
		} `json:"message"`
	} `json:"callback_query"`
	Message *struct {
		MessageID int    `json:"message_id"`
		Text      string `json:"text"`
		Chat      struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		ReplyToMessage *struct {
			MessageID int `json:"message_id"`
		} `json:"reply_to_message"`
	} `json:"message"`
}

// ButtonHandler and TextHandler mirror the on(buttonPattern, handler) /
// on("text", handler) dispatch capabilities that route incoming updates.
type ButtonHandler func(callbackID, data string)
type TextHandler func(replyToMessageID, text string)

// Dispatch decodes one Telegram update payload and routes it to the
// appropriate handler, enforcing the configured-chat allowlist.
func (a *Adapter) Dispatch(raw []byte, onButton ButtonHandler, onText TextHandler) error {
	var u Update
	if err := json.Unmarshal(raw, &u); err != nil {
		return err
	}

	if u.CallbackQuery != nil {
		if !a.IsAllowedChat(u.CallbackQuery.Message.Chat.ID) {
			return nil
		}
		onButton(u.CallbackQuery.ID, u.CallbackQuery.Data)
		return nil
	}

	if u.Message != nil && u.Message.ReplyToMessage != nil {
		if !a.IsAllowedChat(u.Message.Chat.ID) {
			return nil
		}
		replyID := strconv.Itoa(u.Message.ReplyToMessage.MessageID)
		onText(replyID, u.Message.Text)
	}
	return nil
}

type getUpdatesResponse struct {
	OK     bool              `json:"ok"`
	Result []json.RawMessage `json:"result"`
}

// Poll long-polls getUpdates until ctx is cancelled, dispatching every
// update it receives. A failed getUpdates call backs off and retries rather
// than taking the whole process down over a transient network blip.
func (a *Adapter) Poll(ctx context.Context, onButton ButtonHandler, onText TextHandler) {
	offset := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		updates, nextOffset, err := a.fetchUpdates(ctx, offset)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(3 * time.Second):
			}
			continue
		}
		offset = nextOffset
		for _, raw := range updates {
			_ = a.Dispatch(raw, onButton, onText)
		}
	}
}

func (a *Adapter) fetchUpdates(ctx context.Context, offset int) (updates []json.RawMessage, nextOffset int, err error) {
	raw, err := a.rawCall(ctx, "getUpdates", struct {
		Offset  int `json:"offset,omitempty"`
		Timeout int `json:"timeout"`
	}{Offset: offset, Timeout: 30})
	if err != nil {
		return nil, offset, err
	}

	var decoded getUpdatesResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, offset, err
	}

	next := offset
	for _, u := range decoded.Result {
		var withID struct {
			UpdateID int `json:"update_id"`
		}
		if err := json.Unmarshal(u, &withID); err == nil && withID.UpdateID >= next {
			next = withID.UpdateID + 1
		}
	}
	return decoded.Result, next, nil
}
