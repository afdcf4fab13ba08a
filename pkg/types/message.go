package types

import "strings"

// Gmail system label ids
const (
	LabelUnread = "UNREAD"
	LabelInbox  = "INBOX"
)

// Label visibility values used when creating the marker label
const (
	LabelListShow   = "labelShow"
	MessageListShow = "show"
)

// Header is a single name/value message header
type Header struct {
	Name  string
	Value string
}

// PartBody is the body of a MessagePart. Data is base64url encoded and is
// empty for parts whose content lives behind AttachmentID.
type PartBody struct {
	Data         string
	AttachmentID string
	Size         int64
}

// MessagePart is a node of a message's MIME tree. Multipart containers carry
// Parts, leaves carry Body.
type MessagePart struct {
	MimeType string
	Filename string
	Headers  []Header
	Body     *PartBody
	Parts    []*MessagePart
}

// Message is a fully fetched mailbox message
type Message struct {
	ID           string
	ThreadID     string
	Snippet      string
	LabelIDs     []string
	InternalDate int64
	Payload      *MessagePart
}

// Header returns the first header value matching name, case-insensitively
func (m *Message) Header(name string) string {
	if m == nil || m.Payload == nil {
		return ""
	}
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// Attachment describes an attachment by name and size only
type Attachment struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// Envelope is the per-message view handed to the notifier
type Envelope struct {
	ID          string       `json:"id"`
	From        string       `json:"from"`
	Subject     string       `json:"subject"`
	Date        string       `json:"date"`
	Body        string       `json:"body"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Label is a mailbox label
type Label struct {
	ID   string
	Name string
}
