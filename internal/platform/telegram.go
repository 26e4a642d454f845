package platform

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/josho007237-max/bn88Yoyo-sub000/internal/model"
)

// TelegramNormalizer converts Telegram Bot API webhook updates.
type TelegramNormalizer struct{}

type telegramUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		MessageID int64 `json:"message_id"`
		From      *struct {
			ID        int64  `json:"id"`
			FirstName string `json:"first_name"`
			LastName  string `json:"last_name"`
			Username  string `json:"username"`
			IsBot     bool   `json:"is_bot"`
		} `json:"from"`
		Text    string `json:"text"`
		Caption string `json:"caption"`
		Photo   []struct {
			FileID string `json:"file_id"`
		} `json:"photo"`
		Document *struct {
			FileID   string `json:"file_id"`
			FileName string `json:"file_name"`
			MimeType string `json:"mime_type"`
		} `json:"document"`
		Sticker *struct {
			FileID string `json:"file_id"`
			Emoji  string `json:"emoji"`
		} `json:"sticker"`
	} `json:"message"`
}

// Platform returns the Telegram platform id.
func (n *TelegramNormalizer) Platform() model.Platform {
	return model.PlatformTelegram
}

// Events returns the single update carried by a Telegram webhook request.
func (n *TelegramNormalizer) Events(body []byte) ([]json.RawMessage, error) {
	if !json.Valid(body) {
		return nil, fmt.Errorf("invalid Telegram webhook body")
	}
	return []json.RawMessage{json.RawMessage(body)}, nil
}

// Normalize converts one Telegram update. Updates without a message (edited
// messages, callback queries, member changes) and messages from other bots
// are skipped.
func (n *TelegramNormalizer) Normalize(raw json.RawMessage) (*NormalizedMessage, error) {
	var up telegramUpdate
	if err := json.Unmarshal(raw, &up); err != nil {
		return nil, fmt.Errorf("invalid Telegram update: %w", err)
	}
	m := up.Message
	if m == nil || m.From == nil || m.From.IsBot {
		return nil, nil
	}

	msg := &NormalizedMessage{
		Platform:          model.PlatformTelegram,
		UserID:            strconv.FormatInt(m.From.ID, 10),
		DisplayName:       telegramDisplayName(m.From.FirstName, m.From.LastName, m.From.Username),
		PlatformMessageID: strconv.FormatInt(up.UpdateID, 10),
		Raw:               rawMap(raw),
	}

	switch {
	case m.Text != "":
		msg.Type = model.MessageText
		msg.Text = m.Text
	case len(m.Photo) > 0:
		// Telegram requires a getFile round trip for a download URL; the
		// file_id reference is the best a pure transformation can do.
		msg.Type = model.MessageImage
		msg.Text = m.Caption
		msg.AttachmentURL = "telegram://file/" + m.Photo[len(m.Photo)-1].FileID
	case m.Document != nil:
		msg.Type = model.MessageFile
		msg.Text = m.Caption
		msg.AttachmentURL = "telegram://file/" + m.Document.FileID
		msg.AttachmentMeta = map[string]any{
			"file_name": m.Document.FileName,
			"mime_type": m.Document.MimeType,
		}
	case m.Sticker != nil:
		msg.Type = model.MessageSticker
		msg.AttachmentMeta = map[string]any{
			"file_id": m.Sticker.FileID,
			"emoji":   m.Sticker.Emoji,
		}
	default:
		return nil, nil
	}

	return msg, nil
}

func telegramDisplayName(first, last, username string) string {
	name := strings.TrimSpace(first + " " + last)
	if name != "" {
		return name
	}
	return username
}
