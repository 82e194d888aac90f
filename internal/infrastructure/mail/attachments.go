package mail

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"
	"github.com/spiritmate/myob-stock-sync/internal/domain/entity"
)

// extractPDFAttachments walks a raw RFC 5322 message and returns its PDF parts
func extractPDFAttachments(r io.Reader) ([]entity.Attachment, error) {
	mr, err := gomail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	defer mr.Close()

	attachments := make([]entity.Attachment, 0)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) {
				continue
			}
			return attachments, fmt.Errorf("failed to read message part: %w", err)
		}

		var filename, contentType string
		switch h := part.Header.(type) {
		case *gomail.AttachmentHeader:
			filename, _ = h.Filename()
			contentType, _, _ = h.ContentType()
		case *gomail.InlineHeader:
			contentType, _, _ = h.ContentType()
			if _, params, err := h.ContentDisposition(); err == nil {
				filename = params["filename"]
			}
			if filename == "" {
				if _, params, err := h.ContentType(); err == nil {
					filename = params["name"]
				}
			}
		default:
			continue
		}

		if !isPDF(contentType, filename) {
			continue
		}

		content, err := io.ReadAll(part.Body)
		if err != nil {
			return attachments, fmt.Errorf("failed to read attachment %s: %w", filename, err)
		}
		if filename == "" {
			filename = fmt.Sprintf("attachment-%d.pdf", len(attachments)+1)
		}

		attachments = append(attachments, entity.Attachment{
			Filename:    filename,
			ContentType: contentType,
			Content:     content,
		})
	}

	return attachments, nil
}

func isPDF(contentType, filename string) bool {
	if strings.Contains(strings.ToLower(contentType), "pdf") {
		return true
	}
	return strings.EqualFold(filepath.Ext(filename), ".pdf")
}
