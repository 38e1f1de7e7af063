package model

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// ErrEmptyName is returned for a recipient whose name has no tokens
var ErrEmptyName = errors.New("recipient name is empty")

// Recipient is one row of the recipient list
type Recipient struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

// Names holds the name variants substituted into a template
type Names struct {
	Full  string `json:"full"`
	First string `json:"first"`
	// Last is the short form "<first initial>. <last token>"
	Last string `json:"last"`
}

// Names derives the name variants from the full name
func (r Recipient) Names() (Names, error) {
	return DeriveNames(r.FullName)
}

// DeriveNames splits a display name on whitespace. A single-token name yields
// first == full and last == "<initial>. <full>".
func DeriveNames(full string) (Names, error) {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return Names{}, ErrEmptyName
	}

	first := fields[0]
	last := fields[len(fields)-1]
	initial, _ := utf8.DecodeRuneInString(first)

	return Names{
		Full:  full,
		First: first,
		Last:  string(initial) + ". " + last,
	}, nil
}
