package platform

import (
	"encoding/json"
	"fmt"

	"github.com/josho007237-max/bn88Yoyo-sub000/internal/model"
)

// FacebookNormalizer converts Facebook Messenger webhook events.
type FacebookNormalizer struct{}

type facebookWebhookBody struct {
	Entry []struct {
		Messaging []json.RawMessage `json:"messaging"`
	} `json:"entry"`
}

type facebookMessaging struct {
	Sender struct {
		ID string `json:"id"`
	} `json:"sender"`
	Message *struct {
		MID         string `json:"mid"`
		Text        string `json:"text"`
		IsEcho      bool   `json:"is_echo"`
		Attachments []struct {
			Type    string `json:"type"`
			Payload struct {
				URL       string `json:"url"`
				StickerID int64  `json:"sticker_id"`
			} `json:"payload"`
		} `json:"attachments"`
	} `json:"message"`
}

// Platform returns the Facebook platform id.
func (n *FacebookNormalizer) Platform() model.Platform {
	return model.PlatformFacebook
}

// Events flattens the entry/messaging nesting of a Messenger webhook body.
func (n *FacebookNormalizer) Events(body []byte) ([]json.RawMessage, error) {
	var wb facebookWebhookBody
	if err := json.Unmarshal(body, &wb); err != nil {
		return nil, fmt.Errorf("invalid Facebook webhook body: %w", err)
	}
	var events []json.RawMessage
	for _, entry := range wb.Entry {
		events = append(events, entry.Messaging...)
	}
	return events, nil
}

// Normalize converts one messaging event. Delivery receipts, read receipts
// and echoes of the page's own messages are skipped.
func (n *FacebookNormalizer) Normalize(raw json.RawMessage) (*NormalizedMessage, error) {
	var ev facebookMessaging
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("invalid Facebook messaging event: %w", err)
	}
	m := ev.Message
	if m == nil || m.IsEcho || ev.Sender.ID == "" {
		return nil, nil
	}

	msg := &NormalizedMessage{
		Platform:          model.PlatformFacebook,
		UserID:            ev.Sender.ID,
		PlatformMessageID: m.MID,
		Raw:               rawMap(raw),
	}

	if m.Text != "" {
		msg.Type = model.MessageText
		msg.Text = m.Text
		return msg, nil
	}

	if len(m.Attachments) == 0 {
		return nil, nil
	}

	att := m.Attachments[0]
	switch att.Type {
	case "image":
		if att.Payload.StickerID != 0 {
			msg.Type = model.MessageSticker
			msg.AttachmentMeta = map[string]any{"sticker_id": att.Payload.StickerID}
		} else {
			msg.Type = model.MessageImage
		}
		msg.AttachmentURL = att.Payload.URL
	case "file", "video", "audio":
		msg.Type = model.MessageFile
		msg.AttachmentURL = att.Payload.URL
	default:
		return nil, nil
	}

	return msg, nil
}
