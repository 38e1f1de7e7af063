// Package render turns a draft body into the HTML document sent to one
// recipient.
//
// The markup is line oriented: every non-blank line becomes its own block.
// Lines starting with "# ", "## " or "### " become h1-h3 headings, image
// tokens like "[image_3]" become inline image references and everything else
// becomes a paragraph. Template text is not HTML-escaped.
package render

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/digestmail/digestmail/internal/model"
)

// DefaultMaxImageWidth bounds inline images, in pixels
const DefaultMaxImageWidth = 600

// Name tokens substituted per recipient
const (
	TokenFullName  = "{full name}"
	TokenFirstName = "{first name}"
	TokenLastName  = "{last name}"
)

var imageToken = regexp.MustCompile(`\[image_(\d+)\]`)

// Document is a rendered message body
type Document struct {
	HTML string
	// Used lists registered image identifiers in order of first appearance
	Used []string
}

// Renderer renders draft bodies to HTML
type Renderer struct {
	maxImageWidth int
}

// New creates a Renderer. A non-positive width uses DefaultMaxImageWidth.
func New(maxImageWidth int) *Renderer {
	if maxImageWidth <= 0 {
		maxImageWidth = DefaultMaxImageWidth
	}
	return &Renderer{maxImageWidth: maxImageWidth}
}

// Render substitutes names, binds image tokens against images and converts
// the markup to a complete HTML document. Image references are numbered by
// images.ContentIndex, the same numbering the assembler uses for Content-IDs.
func (r *Renderer) Render(body string, images model.ImageRegistry, names model.Names) Document {
	replacer := strings.NewReplacer(
		TokenFullName, names.Full,
		TokenFirstName, names.First,
		TokenLastName, names.Last,
	)

	var (
		b    strings.Builder
		used []string
		seen = make(map[string]bool)
	)
	b.WriteString("<html><body>")

	for _, raw := range strings.Split(body, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		line = replacer.Replace(line)

		if imageToken.MatchString(line) {
			line = imageToken.ReplaceAllStringFunc(line, func(tok string) string {
				id := model.ImageIDPrefix + imageToken.FindStringSubmatch(tok)[1]
				n, ok := images.ContentIndex(id)
				if !ok {
					return ""
				}
				b.WriteString(r.imageTag(n))
				if !seen[id] {
					seen[id] = true
					used = append(used, id)
				}
				return ""
			})
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
		}

		writeBlock(&b, line)
	}

	b.WriteString("</body></html>")
	return Document{HTML: b.String(), Used: used}
}

func (r *Renderer) imageTag(n int) string {
	return `<img src="cid:` + ContentID(n) + `" style="width:100%;max-width:` +
		strconv.Itoa(r.maxImageWidth) + `px;"><br><br>`
}

func writeBlock(b *strings.Builder, line string) {
	switch {
	case strings.HasPrefix(line, "# "):
		b.WriteString("<h1>" + line[2:] + "</h1>")
	case strings.HasPrefix(line, "## "):
		b.WriteString("<h2>" + line[3:] + "</h2>")
	case strings.HasPrefix(line, "### "):
		b.WriteString("<h3>" + line[4:] + "</h3>")
	default:
		b.WriteString("<p>" + line + "</p><br>")
	}
}

// ContentID returns the content-reference identifier for the n-th image
func ContentID(n int) string {
	return "image" + strconv.Itoa(n)
}

// UsedImages returns the registered images referenced by body, in order of
// first appearance. The result numbers images 1..n in that order.
func UsedImages(body string, images model.ImageRegistry) model.ImageRegistry {
	var used model.ImageRegistry
	for _, m := range imageToken.FindAllStringSubmatch(body, -1) {
		id := model.ImageIDPrefix + m[1]
		path, ok := images.Get(id)
		if !ok || used.Has(id) {
			continue
		}
		// Add cannot fail: id is non-empty and not yet present.
		_ = used.Add(id, path)
	}
	return used
}
