package relay

import (
	"encoding/base64"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/beam-cloud/gmail2tg/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposer_Format(t *testing.T) {
	c := NewComposer(types.MessageConfig{})
	env := c.BuildEnvelope(newMessage("Quarterly report"))

	expected := "📩 New email\n" +
		"From: Alice <alice@example.com>\n" +
		"Subject: Quarterly report\n" +
		"Date: Mon, 2 Jan 2026 15:04:05 +0000\n" +
		"\n" +
		"body of Quarterly report"
	assert.Equal(t, expected, c.Format(env))
}

func TestComposer_Placeholders(t *testing.T) {
	c := NewComposer(types.MessageConfig{})

	env := c.BuildEnvelope(&types.Message{ID: "m1", Payload: &types.MessagePart{MimeType: "text/plain"}})
	text := c.Format(env)

	assert.Contains(t, text, "Subject: (no subject)\n")
	assert.Contains(t, text, "From: \n")
	assert.True(t, strings.HasSuffix(text, "\n\n(no text)"))
}

func TestComposer_SnippetFallback(t *testing.T) {
	c := NewComposer(types.MessageConfig{})

	env := c.BuildEnvelope(&types.Message{
		ID:      "m1",
		Snippet: "  only the snippet \r\n",
		Payload: &types.MessagePart{MimeType: "multipart/mixed"},
	})
	assert.Equal(t, "only the snippet", env.Body)
}

func TestComposer_HeaderCap(t *testing.T) {
	c := NewComposer(types.MessageConfig{MaxHeaderChars: 5})

	msg := newMessage("a very long subject")
	env := c.BuildEnvelope(msg)

	assert.Equal(t, "a ver…", env.Subject)
	assert.Equal(t, 6, utf8.RuneCountInString(env.Subject))
}

func TestComposer_BodyCap(t *testing.T) {
	c := NewComposer(types.MessageConfig{MaxBodyChars: 10})

	msg := &types.Message{ID: "m1", Payload: &types.MessagePart{
		MimeType: "text/plain",
		Body:     &types.PartBody{Data: base64.RawURLEncoding.EncodeToString([]byte(strings.Repeat("x", 50)))},
	}}
	env := c.BuildEnvelope(msg)

	assert.Equal(t, strings.Repeat("x", 10)+"…", env.Body)
}

func attachmentMessage(count int) *types.Message {
	msg := newMessage("files")
	for i := 1; i <= count; i++ {
		msg.Payload.Parts = append(msg.Payload.Parts, &types.MessagePart{
			MimeType: "application/pdf",
			Filename: fmt.Sprintf("file%d.pdf", i),
			Body:     &types.PartBody{AttachmentID: fmt.Sprintf("att%d", i), Size: int64(i * 100)},
		})
	}
	return msg
}

func TestComposer_Attachments(t *testing.T) {
	c := NewComposer(types.MessageConfig{})
	env := c.BuildEnvelope(attachmentMessage(2))

	require.Len(t, env.Attachments, 2)
	assert.True(t, strings.HasSuffix(c.Format(env), "body of files\n\nAttachments:\n📎 file1.pdf (100 bytes)\n📎 file2.pdf (200 bytes)"))
}

func TestComposer_AttachmentCap(t *testing.T) {
	c := NewComposer(types.MessageConfig{})
	env := c.BuildEnvelope(attachmentMessage(12))
	text := c.Format(env)

	assert.Equal(t, DefaultMaxAttachments, strings.Count(text, "📎 "))
	assert.Contains(t, text, "📎 file10.pdf (1000 bytes)")
	assert.NotContains(t, text, "file11.pdf")
	assert.True(t, strings.HasSuffix(text, "\n…and 2 more"))
}

func TestComposer_IgnoresInlinePartsWithoutAttachmentID(t *testing.T) {
	c := NewComposer(types.MessageConfig{})
	msg := newMessage("inline")
	msg.Payload.Parts = append(msg.Payload.Parts, &types.MessagePart{
		MimeType: "image/png",
		Filename: "logo.png",
		Body:     &types.PartBody{Data: "aGk"},
	})

	env := c.BuildEnvelope(msg)
	assert.Empty(t, env.Attachments)
	assert.NotContains(t, c.Format(env), "Attachments:")
}
