package model

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	apperrors "github.com/wpp-platform/customer-service/pkg/errors"
)

// MaxContentLength is the WhatsApp limit for a text body, in characters.
const MaxContentLength = 4096

// MetadataWhatsAppMessageID is the metadata key holding the platform id of a
// delivered outgoing message.
const MetadataWhatsAppMessageID = "whatsapp_message_id"

// MessageType is the kind of payload a message carries.
type MessageType string

const (
	MessageTypeText        MessageType = "text"
	MessageTypeImage       MessageType = "image"
	MessageTypeAudio       MessageType = "audio"
	MessageTypeDocument    MessageType = "document"
	MessageTypeVideo       MessageType = "video"
	MessageTypeLocation    MessageType = "location"
	MessageTypeContact     MessageType = "contact"
	MessageTypeTemplate    MessageType = "template"
	MessageTypeInteractive MessageType = "interactive"
)

var messageTypeLabels = map[MessageType]string{
	MessageTypeImage:       "Image",
	MessageTypeAudio:       "Audio",
	MessageTypeDocument:    "Document",
	MessageTypeVideo:       "Video",
	MessageTypeLocation:    "Location",
	MessageTypeContact:     "Contact",
	MessageTypeTemplate:    "Template",
	MessageTypeInteractive: "Interactive",
}

// ParseMessageType validates a message type name.
func ParseMessageType(s string) (MessageType, error) {
	t := MessageType(strings.ToLower(strings.TrimSpace(s)))
	if t == MessageTypeText {
		return t, nil
	}
	if _, ok := messageTypeLabels[t]; ok {
		return t, nil
	}
	return "", apperrors.Validation("message_type", "unknown message type %q", s)
}

// IsMedia reports whether the type carries a downloadable media object.
func (t MessageType) IsMedia() bool {
	switch t {
	case MessageTypeImage, MessageTypeAudio, MessageTypeDocument, MessageTypeVideo:
		return true
	}
	return false
}

// Label returns the bracketed placeholder used when a message has no text,
// e.g. "[Image]".
func (t MessageType) Label() string {
	if l, ok := messageTypeLabels[t]; ok {
		return "[" + l + "]"
	}
	return "[" + string(t) + "]"
}

// MessageDirection tells whether a message was received or sent.
type MessageDirection string

const (
	DirectionIncoming MessageDirection = "incoming"
	DirectionOutgoing MessageDirection = "outgoing"
)

// ParseMessageDirection validates a direction name.
func ParseMessageDirection(s string) (MessageDirection, error) {
	switch d := MessageDirection(strings.ToLower(strings.TrimSpace(s))); d {
	case DirectionIncoming, DirectionOutgoing:
		return d, nil
	}
	return "", apperrors.Validation("direction", "must be incoming or outgoing, got %q", s)
}

// MessageContent is the immutable payload of a message.
type MessageContent struct {
	text      string
	msgType   MessageType
	direction MessageDirection
	metadata  map[string]any
}

// NewMessageContent validates and builds a MessageContent. Text messages must
// not be blank; no message may exceed MaxContentLength characters.
func NewMessageContent(text string, msgType MessageType, direction MessageDirection, metadata map[string]any) (MessageContent, error) {
	if msgType == "" {
		msgType = MessageTypeText
	}
	if _, err := ParseMessageType(string(msgType)); err != nil {
		return MessageContent{}, err
	}
	if _, err := ParseMessageDirection(string(direction)); err != nil {
		return MessageContent{}, err
	}
	if msgType == MessageTypeText && strings.TrimSpace(text) == "" {
		return MessageContent{}, apperrors.Validation("content", "text message cannot be empty")
	}
	if n := utf8.RuneCountInString(text); n > MaxContentLength {
		return MessageContent{}, apperrors.Validation("content", "exceeds %d characters (%d)", MaxContentLength, n)
	}

	var md map[string]any
	if len(metadata) > 0 {
		md = make(map[string]any, len(metadata))
		for k, v := range metadata {
			md[k] = v
		}
	}

	return MessageContent{text: text, msgType: msgType, direction: direction, metadata: md}, nil
}

func (c MessageContent) Text() string                { return c.text }
func (c MessageContent) Type() MessageType           { return c.msgType }
func (c MessageContent) Direction() MessageDirection { return c.direction }
func (c MessageContent) IsText() bool                { return c.msgType == MessageTypeText }
func (c MessageContent) IsMedia() bool               { return c.msgType.IsMedia() }

// Metadata returns a copy of the metadata map, or nil.
func (c MessageContent) Metadata() map[string]any {
	if c.metadata == nil {
		return nil
	}
	out := make(map[string]any, len(c.metadata))
	for k, v := range c.metadata {
		out[k] = v
	}
	return out
}

// WithMetadata returns a copy of c with key set to value.
func (c MessageContent) WithMetadata(key string, value any) MessageContent {
	md := c.Metadata()
	if md == nil {
		md = make(map[string]any, 1)
	}
	md[key] = value
	c.metadata = md
	return c
}

// DisplayText returns the raw text of a text message. Other messages render
// as their bracketed type label, followed by the caption when one is present.
func (c MessageContent) DisplayText() string {
	if c.IsText() {
		return c.text
	}
	label := c.msgType.Label()
	if caption, ok := c.metadata["caption"].(string); ok && strings.TrimSpace(caption) != "" {
		return label + " " + strings.TrimSpace(caption)
	}
	return label
}

type messageContentJSON struct {
	Text        string           `json:"text"`
	Type        MessageType      `json:"type"`
	Direction   MessageDirection `json:"direction"`
	Metadata    map[string]any   `json:"metadata,omitempty"`
	DisplayText string           `json:"display_text"`
}

func (c MessageContent) MarshalJSON() ([]byte, error) {
	return json.Marshal(messageContentJSON{
		Text:        c.text,
		Type:        c.msgType,
		Direction:   c.direction,
		Metadata:    c.metadata,
		DisplayText: c.DisplayText(),
	})
}

func (c *MessageContent) UnmarshalJSON(data []byte) error {
	var raw messageContentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := NewMessageContent(raw.Text, raw.Type, raw.Direction, raw.Metadata)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
