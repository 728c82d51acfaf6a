package whatsapp

// WebhookPayload is the top-level webhook delivery from the Meta platform.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry represents one business account entry.
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change wraps a single change notification.
type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

// ChangeValue holds the message data.
type ChangeValue struct {
	MessagingProduct string    `json:"messaging_product"`
	Metadata         Metadata  `json:"metadata"`
	Contacts         []Contact `json:"contacts,omitempty"`
	Messages         []Message `json:"messages,omitempty"`
	Statuses         []Status  `json:"statuses,omitempty"`
}

// Metadata about the receiving phone number.
type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// Contact is the sender profile attached to a change.
type Contact struct {
	Profile ContactProfile `json:"profile"`
	WaID    string         `json:"wa_id"`
}

type ContactProfile struct {
	Name string `json:"name"`
}

// Message represents an incoming WhatsApp message.
type Message struct {
	From        string              `json:"from"`
	ID          string              `json:"id"`
	Timestamp   string              `json:"timestamp"`
	Type        string              `json:"type"`
	Text        *TextContent        `json:"text,omitempty"`
	Image       *MediaContent       `json:"image,omitempty"`
	Document    *MediaContent       `json:"document,omitempty"`
	Audio       *MediaContent       `json:"audio,omitempty"`
	Video       *MediaContent       `json:"video,omitempty"`
	Sticker     *MediaContent       `json:"sticker,omitempty"`
	Location    *LocationContent    `json:"location,omitempty"`
	Contacts    []SharedContact     `json:"contacts,omitempty"`
	Interactive *InteractiveReply   `json:"interactive,omitempty"`
	Button      *ButtonReply        `json:"button,omitempty"`
	Context     *MessageContextInfo `json:"context,omitempty"`
}

// TextContent holds a text message body.
type TextContent struct {
	Body string `json:"body"`
}

// MediaContent holds image, audio, video, document and sticker data.
type MediaContent struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// LocationContent holds location message data.
type LocationContent struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

// SharedContact is a contact card sent by the user.
type SharedContact struct {
	Name struct {
		FormattedName string `json:"formatted_name"`
	} `json:"name"`
	Phones []struct {
		Phone string `json:"phone"`
		WaID  string `json:"wa_id,omitempty"`
	} `json:"phones,omitempty"`
}

// InteractiveReply is the user's answer to a button or list message.
type InteractiveReply struct {
	Type        string      `json:"type"`
	ButtonReply *ReplyTitle `json:"button_reply,omitempty"`
	ListReply   *ReplyTitle `json:"list_reply,omitempty"`
}

type ReplyTitle struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// ButtonReply is a quick-reply button press on a template message.
type ButtonReply struct {
	Text    string `json:"text"`
	Payload string `json:"payload"`
}

// MessageContextInfo references the message being replied to.
type MessageContextInfo struct {
	From string `json:"from"`
	ID   string `json:"id"`
}

// Status represents a message delivery status update.
type Status struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
}

// MediaResponse is the response when retrieving media metadata from the API.
type MediaResponse struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256"`
	FileSize int64  `json:"file_size"`
	ID       string `json:"id"`
}

// Template names an approved message template.
type Template struct {
	Name       string           `json:"name"`
	Language   TemplateLanguage `json:"language"`
	Components []map[string]any `json:"components,omitempty"`
}

type TemplateLanguage struct {
	Code string `json:"code"`
}

// SendMessageRequest is the payload for POST /{phone-number-id}/messages.
type SendMessageRequest struct {
	MessagingProduct string         `json:"messaging_product"`
	RecipientType    string         `json:"recipient_type,omitempty"`
	To               string         `json:"to,omitempty"`
	Type             string         `json:"type,omitempty"`
	Text             *OutgoingText  `json:"text,omitempty"`
	Template         *Template      `json:"template,omitempty"`
	Interactive      map[string]any `json:"interactive,omitempty"`
	Status           string         `json:"status,omitempty"`
	MessageID        string         `json:"message_id,omitempty"`
}

type OutgoingText struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url,omitempty"`
}

// SendMessageResponse is the response from the send message API.
type SendMessageResponse struct {
	MessagingProduct string `json:"messaging_product"`
	Contacts         []struct {
		Input string `json:"input"`
		WaID  string `json:"wa_id"`
	} `json:"contacts"`
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Success bool `json:"success,omitempty"`
}

// SendResult identifies a delivered message.
type SendResult struct {
	MessageID string `json:"message_id"`
	WaID      string `json:"wa_id,omitempty"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}
