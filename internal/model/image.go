package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ImageIDPrefix prefixes every image identifier, e.g. "image_3"
const ImageIDPrefix = "image_"

// Image registry errors
var (
	ErrDuplicateImage = errors.New("image identifier already registered")
	ErrUnknownImage   = errors.New("image identifier is not registered")
)

// ImageID returns the identifier for the n-th uploaded image
func ImageID(n int) string {
	return ImageIDPrefix + strconv.Itoa(n)
}

// ParseImageID returns the serial number of an identifier like "image_7"
func ParseImageID(id string) (int, bool) {
	digits, ok := strings.CutPrefix(id, ImageIDPrefix)
	if !ok || digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Placeholder returns the body token referencing an image
func Placeholder(id string) string {
	return "[" + id + "]"
}

// ImageEntry maps one image identifier to its content reference
type ImageEntry struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// ImageRegistry is an insertion-ordered identifier -> content reference map.
// The order is the canonical inline image numbering shared by rendering and
// assembly.
type ImageRegistry struct {
	entries []ImageEntry
}

// NewImageRegistry builds a registry from entries in order
func NewImageRegistry(entries ...ImageEntry) (ImageRegistry, error) {
	var r ImageRegistry
	for _, e := range entries {
		if err := r.Add(e.ID, e.Path); err != nil {
			return ImageRegistry{}, err
		}
	}
	return r, nil
}

// Add registers an image at the end of the registry
func (r *ImageRegistry) Add(id, path string) error {
	if id == "" {
		return fmt.Errorf("%w: empty identifier", ErrUnknownImage)
	}
	if r.Has(id) {
		return fmt.Errorf("%w: %s", ErrDuplicateImage, id)
	}
	r.entries = append(r.entries, ImageEntry{ID: id, Path: path})
	return nil
}

// Get returns the content reference for id
func (r ImageRegistry) Get(id string) (string, bool) {
	for _, e := range r.entries {
		if e.ID == id {
			return e.Path, true
		}
	}
	return "", false
}

// Has reports whether id is registered
func (r ImageRegistry) Has(id string) bool {
	_, ok := r.Get(id)
	return ok
}

// ContentIndex returns the 1-based position of id in registry order. This is
// the number used in both "cid:image<N>" references and attachment Content-IDs.
func (r ImageRegistry) ContentIndex(id string) (int, bool) {
	for i, e := range r.entries {
		if e.ID == id {
			return i + 1, true
		}
	}
	return 0, false
}

// Entries returns a copy of the registrations in order
func (r ImageRegistry) Entries() []ImageEntry {
	out := make([]ImageEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of registered images
func (r ImageRegistry) Len() int {
	return len(r.entries)
}

// Clone returns an independent copy
func (r ImageRegistry) Clone() ImageRegistry {
	return ImageRegistry{entries: r.Entries()}
}

// MaxSerial returns the highest numeric suffix among "image_<N>" identifiers
func (r ImageRegistry) MaxSerial() int {
	highest := 0
	for _, e := range r.entries {
		if n, ok := ParseImageID(e.ID); ok && n > highest {
			highest = n
		}
	}
	return highest
}

// MarshalJSON encodes the registry as a JSON object in registry order
func (r ImageRegistry) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range r.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.ID)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.Path)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping the key order of the document
func (r *ImageRegistry) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		r.entries = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("image registry: expected object, got %v", tok)
	}

	var out ImageRegistry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("image registry: expected string key, got %v", keyTok)
		}
		var path string
		if err := dec.Decode(&path); err != nil {
			return fmt.Errorf("image registry: value for %s: %w", key, err)
		}
		if err := out.Add(key, path); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	r.entries = out.entries
	return nil
}

// MarshalYAML encodes the registry as a YAML mapping in registry order
func (r ImageRegistry) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, e := range r.entries {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.ID},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Path},
		)
	}
	return node, nil
}

// UnmarshalYAML decodes a YAML mapping keeping the key order of the document
func (r *ImageRegistry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode && value.Tag == "!!null" {
		r.entries = nil
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("image registry: expected mapping at line %d", value.Line)
	}

	var out ImageRegistry
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i], value.Content[i+1]
		if err := out.Add(key.Value, val.Value); err != nil {
			return err
		}
	}

	r.entries = out.entries
	return nil
}
