// Package extract turns a message's MIME part tree into plain text.
package extract

import (
	"encoding/base64"
	"strings"

	"github.com/beam-cloud/gmail2tg/pkg/types"
)

const (
	MimeTextPlain = "text/plain"
	MimeTextHTML  = "text/html"

	DefaultMaxChars = 3500
)

// Extractor pulls the best available text body out of a part tree and caps
// it at MaxChars runes.
type Extractor struct {
	MaxChars int
}

// NewExtractor creates an extractor with the given cap (DefaultMaxChars if <= 0)
func NewExtractor(maxChars int) *Extractor {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Extractor{MaxChars: maxChars}
}

// Extract returns the normalized body text of root, or "" when the tree has no
// decodable text/plain or text/html part.
func (e *Extractor) Extract(root *types.MessagePart) string {
	return Normalize(Text(root), e.MaxChars)
}

// Text returns the first non-empty text/plain body in document order, falling
// back to the first non-empty text/html body converted to text.
func Text(root *types.MessagePart) string {
	var plain, html string

	Walk(root, func(part *types.MessagePart) bool {
		switch part.MimeType {
		case MimeTextPlain:
			if plain == "" {
				plain = DecodeBody(part.Body)
			}
		case MimeTextHTML:
			if html == "" {
				html = DecodeBody(part.Body)
			}
		}
		return plain == ""
	})

	if plain != "" {
		return plain
	}
	if html != "" {
		return SanitizeHTML(html)
	}
	return ""
}

// Walk visits every part of the tree once, parents before children, siblings
// in order. It uses an explicit stack so deeply nested input cannot exhaust
// the goroutine stack. Returning false from fn stops the walk.
func Walk(root *types.MessagePart, fn func(*types.MessagePart) bool) {
	if root == nil {
		return
	}

	stack := []*types.MessagePart{root}
	for len(stack) > 0 {
		part := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if part == nil {
			continue
		}

		if !fn(part) {
			return
		}

		for i := len(part.Parts) - 1; i >= 0; i-- {
			stack = append(stack, part.Parts[i])
		}
	}
}

// DecodeBody decodes a base64url payload. Payloads that fail to decode are
// treated as empty.
func DecodeBody(body *types.PartBody) string {
	if body == nil || body.Data == "" {
		return ""
	}
	return DecodeBase64URL(body.Data)
}

// DecodeBase64URL decodes URL-safe base64 with or without padding
func DecodeBase64URL(data string) string {
	data = strings.TrimSpace(data)
	if data == "" {
		return ""
	}

	// Gmail uses URL-safe base64, usually without padding
	std := strings.NewReplacer("-", "+", "_", "/").Replace(data)
	std = strings.TrimRight(std, "=")
	if rem := len(std) % 4; rem != 0 {
		std += strings.Repeat("=", 4-rem)
	}

	decoded, err := base64.StdEncoding.DecodeString(std)
	if err != nil {
		return ""
	}
	return strings.ToValidUTF8(string(decoded), "�")
}
