package extract

import "github.com/beam-cloud/gmail2tg/pkg/types"

// Attachments lists every part that has both a filename and an attachment id,
// whatever its media type. Only names and sizes are collected.
func Attachments(root *types.MessagePart) []types.Attachment {
	var files []types.Attachment

	Walk(root, func(part *types.MessagePart) bool {
		if part.Filename != "" && part.Body != nil && part.Body.AttachmentID != "" {
			files = append(files, types.Attachment{
				Filename: part.Filename,
				Size:     part.Body.Size,
			})
		}
		return true
	})

	return files
}
