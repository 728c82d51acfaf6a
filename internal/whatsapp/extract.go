package whatsapp

import (
	"errors"
	"strings"

	"github.com/wpp-platform/customer-service/internal/model"
)

// ErrUnsupportedType is returned for inbound messages that carry nothing to
// store, such as reactions.
var ErrUnsupportedType = errors.New("unsupported message type")

// InboundMessage is one webhook message flattened with its sender profile.
type InboundMessage struct {
	ExternalID  string
	From        string
	ProfileName string
	Type        string
	Message     Message
}

// Messages flattens every entry[].changes[].value.messages[] item. Status
// callbacks are skipped.
func (p *WebhookPayload) Messages() []InboundMessage {
	var out []InboundMessage
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			if change.Field != "" && change.Field != "messages" {
				continue
			}

			names := make(map[string]string, len(change.Value.Contacts))
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}

			for _, msg := range change.Value.Messages {
				out = append(out, InboundMessage{
					ExternalID:  msg.ID,
					From:        msg.From,
					ProfileName: names[msg.From],
					Type:        msg.Type,
					Message:     msg,
				})
			}
		}
	}
	return out
}

// Content derives the stored content of an inbound message. Non-text
// messages get a bracketed placeholder as text; media ids, mime types and
// captions go to metadata.
func (m Message) Content() (model.MessageContent, error) {
	in := model.DirectionIncoming

	switch m.Type {
	case "text":
		if m.Text == nil {
			return model.MessageContent{}, ErrUnsupportedType
		}
		return model.NewMessageContent(m.Text.Body, model.MessageTypeText, in, nil)

	case "image", "audio", "video", "document":
		media := m.media()
		if media == nil {
			return model.MessageContent{}, ErrUnsupportedType
		}
		msgType := model.MessageType(m.Type)
		return model.NewMessageContent(msgType.Label(), msgType, in, mediaMetadata(media))

	case "sticker":
		if m.Sticker == nil {
			return model.MessageContent{}, ErrUnsupportedType
		}
		md := mediaMetadata(m.Sticker)
		md["kind"] = "sticker"
		return model.NewMessageContent("[Sticker]", model.MessageTypeImage, in, md)

	case "location":
		if m.Location == nil {
			return model.MessageContent{}, ErrUnsupportedType
		}
		md := map[string]any{
			"latitude":  m.Location.Latitude,
			"longitude": m.Location.Longitude,
		}
		caption := strings.TrimSpace(strings.Join(nonEmpty(m.Location.Name, m.Location.Address), " - "))
		if caption != "" {
			md["caption"] = caption
		}
		return model.NewMessageContent(model.MessageTypeLocation.Label(), model.MessageTypeLocation, in, md)

	case "contacts":
		if len(m.Contacts) == 0 {
			return model.MessageContent{}, ErrUnsupportedType
		}
		names := make([]string, 0, len(m.Contacts))
		for _, c := range m.Contacts {
			names = append(names, c.Name.FormattedName)
		}
		md := map[string]any{"caption": strings.Join(nonEmpty(names...), ", ")}
		return model.NewMessageContent(model.MessageTypeContact.Label(), model.MessageTypeContact, in, md)

	case "interactive":
		if m.Interactive == nil {
			return model.MessageContent{}, ErrUnsupportedType
		}
		reply := m.Interactive.ButtonReply
		if reply == nil {
			reply = m.Interactive.ListReply
		}
		if reply == nil {
			return model.MessageContent{}, ErrUnsupportedType
		}
		md := map[string]any{"reply_id": reply.ID, "caption": reply.Title}
		return model.NewMessageContent(reply.Title, model.MessageTypeInteractive, in, md)

	case "button":
		if m.Button == nil {
			return model.MessageContent{}, ErrUnsupportedType
		}
		md := map[string]any{"payload": m.Button.Payload, "caption": m.Button.Text}
		return model.NewMessageContent(m.Button.Text, model.MessageTypeInteractive, in, md)
	}

	return model.MessageContent{}, ErrUnsupportedType
}

func (m Message) media() *MediaContent {
	switch m.Type {
	case "image":
		return m.Image
	case "audio":
		return m.Audio
	case "video":
		return m.Video
	case "document":
		return m.Document
	}
	return nil
}

func mediaMetadata(media *MediaContent) map[string]any {
	md := map[string]any{"media_id": media.ID}
	if media.MimeType != "" {
		md["mime_type"] = media.MimeType
	}
	if media.Caption != "" {
		md["caption"] = media.Caption
	} else if media.Filename != "" {
		md["caption"] = media.Filename
	}
	if media.Filename != "" {
		md["filename"] = media.Filename
	}
	return md
}

func nonEmpty(values ...string) []string {
	out := values[:0:0]
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
