package email

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/digestmail/digestmail/internal/model"
	"github.com/digestmail/digestmail/internal/render"
)

// ImageSource resolves an image content reference to its bytes.
type ImageSource interface {
	ReadImage(ref string) ([]byte, error)
}

// Assembler builds transmittable messages from rendered documents.
type Assembler struct {
	images ImageSource
	from   string
}

// NewAssembler creates an Assembler sending as senderAddress. A non-empty
// senderName produces a "Name <address>" From header.
func NewAssembler(images ImageSource, senderAddress, senderName string) *Assembler {
	from := senderAddress
	if senderName != "" {
		from = fmt.Sprintf("%s <%s>", senderName, senderAddress)
	}
	return &Assembler{images: images, from: from}
}

// Assemble attaches every image of images, in registry order, with
// Content-ID "image<N>" where N is its 1-based registry position. An image
// that cannot be read fails the whole message.
func (a *Assembler) Assemble(to, subject, html string, images model.ImageRegistry) (Message, error) {
	msg := Message{
		From:     a.from,
		To:       to,
		Subject:  subject,
		HTMLBody: html,
		Inline:   make([]InlineImage, 0, images.Len()),
	}

	for _, entry := range images.Entries() {
		n, _ := images.ContentIndex(entry.ID)
		data, err := a.images.ReadImage(entry.Path)
		if err != nil {
			return Message{}, fmt.Errorf("%w: %s (%s): %w", ErrImageUnreadable, entry.ID, entry.Path, err)
		}
		msg.Inline = append(msg.Inline, InlineImage{
			ContentID:   render.ContentID(n),
			Filename:    filepath.Base(entry.Path),
			ContentType: ContentTypeFor(entry.Path),
			Data:        data,
		})
	}

	return msg, nil
}

// ContentTypeFor returns the media type of an image file by its extension
func ContentTypeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return "application/octet-stream"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "image/" + ext[1:]
}
