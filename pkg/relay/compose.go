package relay

import (
	"fmt"
	"strings"

	"github.com/beam-cloud/gmail2tg/pkg/extract"
	"github.com/beam-cloud/gmail2tg/pkg/types"
)

const (
	DefaultMaxHeaderChars = 200
	DefaultMaxAttachments = 10

	noSubject = "(no subject)"
	noText    = "(no text)"
)

// Composer turns a fetched message into an envelope and the notification text
type Composer struct {
	extractor      *extract.Extractor
	maxHeaderChars int
	maxAttachments int
}

func NewComposer(cfg types.MessageConfig) *Composer {
	c := &Composer{
		extractor:      extract.NewExtractor(cfg.MaxBodyChars),
		maxHeaderChars: cfg.MaxHeaderChars,
		maxAttachments: cfg.MaxAttachments,
	}
	if c.maxHeaderChars <= 0 {
		c.maxHeaderChars = DefaultMaxHeaderChars
	}
	if c.maxAttachments <= 0 {
		c.maxAttachments = DefaultMaxAttachments
	}
	return c
}

// BuildEnvelope extracts headers, body and attachment names from msg. An
// empty body falls back to the snippet, then to a placeholder.
func (c *Composer) BuildEnvelope(msg *types.Message) *types.Envelope {
	env := &types.Envelope{
		ID:      msg.ID,
		From:    extract.Normalize(msg.Header("From"), c.maxHeaderChars),
		Subject: extract.Normalize(msg.Header("Subject"), c.maxHeaderChars),
		Date:    extract.Normalize(msg.Header("Date"), c.maxHeaderChars),
		Body:    c.extractor.Extract(msg.Payload),
	}

	if env.Body == "" {
		env.Body = extract.Normalize(msg.Snippet, c.extractor.MaxChars)
	}
	if env.Body == "" {
		env.Body = noText
	}

	env.Attachments = extract.Attachments(msg.Payload)
	return env
}

// Format renders the notification text for env
func (c *Composer) Format(env *types.Envelope) string {
	subject := env.Subject
	if subject == "" {
		subject = noSubject
	}

	var b strings.Builder
	b.WriteString("📩 New email\n")
	fmt.Fprintf(&b, "From: %s\n", env.From)
	fmt.Fprintf(&b, "Subject: %s\n", subject)
	fmt.Fprintf(&b, "Date: %s\n", env.Date)
	b.WriteString("\n")
	b.WriteString(env.Body)

	if len(env.Attachments) > 0 {
		b.WriteString("\n\nAttachments:")
		for i, a := range env.Attachments {
			if i == c.maxAttachments {
				fmt.Fprintf(&b, "\n…and %d more", len(env.Attachments)-c.maxAttachments)
				break
			}
			fmt.Fprintf(&b, "\n📎 %s (%d bytes)", extract.Normalize(a.Filename, c.maxHeaderChars), a.Size)
		}
	}

	return b.String()
}
