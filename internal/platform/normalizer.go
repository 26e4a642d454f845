// Package platform converts raw webhook events from each messaging platform
// into the canonical inbound message the pipeline works with. Normalization is
// pure data transformation: no network calls, so every adapter can be unit
// tested with fixture payloads.
package platform

import (
	"encoding/json"

	"github.com/josho007237-max/bn88Yoyo-sub000/internal/model"
)

// NormalizedMessage is the platform-agnostic representation of one inbound
// event. A nil NormalizedMessage (with nil error) means the event carries no
// content the pipeline handles, e.g. delivery receipts or membership changes;
// the caller acknowledges and skips.
type NormalizedMessage struct {
	Platform model.Platform

	UserID      string
	DisplayName string

	Type          model.MessageType
	Text          string
	AttachmentURL string
	AttachmentMeta map[string]any

	// PlatformMessageID is the platform-assigned id used by the duplicate
	// guard. Empty when the platform does not supply one.
	PlatformMessageID string

	// Raw is the original event payload, preserved on the stored message.
	Raw map[string]any
}

// Normalizer converts one raw platform event into a canonical message.
type Normalizer interface {
	Platform() model.Platform

	// Normalize returns (nil, nil) for event kinds the pipeline skips.
	Normalize(raw json.RawMessage) (*NormalizedMessage, error)

	// Events splits a webhook request body into individual raw events.
	// Platforms that deliver one event per request return a single element.
	Events(body []byte) ([]json.RawMessage, error)
}

// ForPlatform returns the normalizer for a platform.
func ForPlatform(p model.Platform) (Normalizer, bool) {
	switch p {
	case model.PlatformLINE:
		return &LINENormalizer{}, true
	case model.PlatformTelegram:
		return &TelegramNormalizer{}, true
	case model.PlatformFacebook:
		return &FacebookNormalizer{}, true
	default:
		return nil, false
	}
}

// rawMap decodes an event payload into a generic map for storage alongside
// the canonical message. Decode errors yield an empty map rather than
// failing normalization.
func rawMap(raw json.RawMessage) map[string]any {
	m := map[string]any{}
	_ = json.Unmarshal(raw, &m)
	return m
}
