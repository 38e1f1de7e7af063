package email

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"strings"
)

const base64LineLength = 76

// Bytes encodes the message as a multipart/mixed RFC 5322 document: the HTML
// part first, then the inline images in order. Addresses are written as
// given, so a CR or LF in From or To is rejected.
func (m Message) Bytes() ([]byte, error) {
	for key, value := range map[string]string{"From": m.From, "To": m.To} {
		if strings.ContainsAny(value, "\r\n") {
			return nil, fmt.Errorf("email: %s: %w", key, ErrHeaderLineBreak)
		}
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	htmlPart, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {`text/html; charset="utf-8"`},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return nil, fmt.Errorf("email: create html part: %w", err)
	}
	qp := quotedprintable.NewWriter(htmlPart)
	if _, err := io.WriteString(qp, m.HTMLBody); err != nil {
		return nil, fmt.Errorf("email: write html part: %w", err)
	}
	if err := qp.Close(); err != nil {
		return nil, fmt.Errorf("email: write html part: %w", err)
	}

	for _, img := range m.Inline {
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {img.ContentType},
			"Content-Transfer-Encoding": {"base64"},
			"Content-ID":                {"<" + img.ContentID + ">"},
			"Content-Disposition":       {mime.FormatMediaType("inline", map[string]string{"filename": img.Filename})},
		})
		if err != nil {
			return nil, fmt.Errorf("email: create image part %s: %w", img.ContentID, err)
		}
		if err := writeBase64Lines(part, img.Data); err != nil {
			return nil, fmt.Errorf("email: write image part %s: %w", img.ContentID, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("email: close multipart: %w", err)
	}

	var out bytes.Buffer
	writeHeader(&out, "From", m.From)
	writeHeader(&out, "To", m.To)
	writeHeader(&out, "Subject", mime.QEncoding.Encode("utf-8", m.Subject))
	writeHeader(&out, "MIME-Version", "1.0")
	writeHeader(&out, "Content-Type", mime.FormatMediaType("multipart/mixed", map[string]string{"boundary": mw.Boundary()}))
	out.WriteString("\r\n")
	out.Write(body.Bytes())

	return out.Bytes(), nil
}

func writeHeader(buf *bytes.Buffer, key, value string) {
	buf.WriteString(key)
	buf.WriteString(": ")
	buf.WriteString(value)
	buf.WriteString("\r\n")
}

func writeBase64Lines(w io.Writer, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 0 {
		n := min(base64LineLength, len(encoded))
		if _, err := io.WriteString(w, encoded[:n]+"\r\n"); err != nil {
			return err
		}
		encoded = encoded[n:]
	}
	return nil
}
