package platform

import (
	"encoding/json"
	"fmt"

	"github.com/josho007237-max/bn88Yoyo-sub000/internal/model"
)

// lineContentURL is the LINE content-retrieval convention for binary message
// bodies. The id is the platform message id.
const lineContentURL = "https://api-data.line.me/v2/bot/message/%s/content"

// LINENormalizer converts LINE Messaging API webhook events.
type LINENormalizer struct{}

type lineWebhookBody struct {
	Events []json.RawMessage `json:"events"`
}

type lineEvent struct {
	Type    string `json:"type"`
	Source  struct {
		UserID string `json:"userId"`
	} `json:"source"`
	Message struct {
		ID        string `json:"id"`
		Type      string `json:"type"`
		Text      string `json:"text"`
		FileName  string `json:"fileName"`
		FileSize  int64  `json:"fileSize"`
		PackageID string `json:"packageId"`
		StickerID string `json:"stickerId"`
	} `json:"message"`
	Timestamp int64 `json:"timestamp"`
}

// Platform returns the LINE platform id.
func (n *LINENormalizer) Platform() model.Platform {
	return model.PlatformLINE
}

// Events splits a LINE webhook body, which batches events per request.
func (n *LINENormalizer) Events(body []byte) ([]json.RawMessage, error) {
	var wb lineWebhookBody
	if err := json.Unmarshal(body, &wb); err != nil {
		return nil, fmt.Errorf("invalid LINE webhook body: %w", err)
	}
	return wb.Events, nil
}

// Normalize converts one LINE event. Non-message events (follow, unfollow,
// join, postback, ...) are skipped; the webhook handler counts the ones it
// cares about separately.
func (n *LINENormalizer) Normalize(raw json.RawMessage) (*NormalizedMessage, error) {
	var ev lineEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("invalid LINE event: %w", err)
	}
	if ev.Type != "message" || ev.Source.UserID == "" {
		return nil, nil
	}

	msg := &NormalizedMessage{
		Platform:          model.PlatformLINE,
		UserID:            ev.Source.UserID,
		PlatformMessageID: ev.Message.ID,
		Raw:               rawMap(raw),
	}

	switch ev.Message.Type {
	case "text":
		msg.Type = model.MessageText
		msg.Text = ev.Message.Text
	case "image", "video", "audio":
		msg.Type = model.MessageImage
		msg.AttachmentURL = fmt.Sprintf(lineContentURL, ev.Message.ID)
	case "file":
		msg.Type = model.MessageFile
		msg.AttachmentURL = fmt.Sprintf(lineContentURL, ev.Message.ID)
		msg.AttachmentMeta = map[string]any{
			"file_name": ev.Message.FileName,
			"file_size": ev.Message.FileSize,
		}
	case "sticker":
		msg.Type = model.MessageSticker
		msg.AttachmentMeta = map[string]any{
			"package_id": ev.Message.PackageID,
			"sticker_id": ev.Message.StickerID,
		}
	default:
		return nil, nil
	}

	return msg, nil
}

// LINEEventType exposes the raw event type so the webhook handler can count
// follow/unfollow events that normalization skips.
func LINEEventType(raw json.RawMessage) string {
	var ev struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(raw, &ev)
	return ev.Type
}
