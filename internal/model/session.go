package model

import "fmt"

// DefaultSubject is used when neither config nor saved settings provide one
const DefaultSubject = "Hypebeast Weekly Digest"

// Session is the editing session: the live draft and its registered images.
// It is created on session start and cleared by Reset.
type Session struct {
	Subject string        `json:"subject"`
	Body    string        `json:"body"`
	Images  ImageRegistry `json:"images"`
	counter int
}

// NewSession creates an empty session with the given default subject
func NewSession(defaultSubject string) *Session {
	if defaultSubject == "" {
		defaultSubject = DefaultSubject
	}
	return &Session{Subject: defaultSubject}
}

// RegisterImage assigns the next identifier to path, registers it and
// appends its placeholder to the body.
func (s *Session) RegisterImage(path string) (string, error) {
	next := max(s.counter, s.Images.MaxSerial()) + 1
	id := ImageID(next)
	if err := s.Images.Add(id, path); err != nil {
		return "", err
	}
	s.counter = next
	s.appendPlaceholder(id)
	return id, nil
}

// InsertImagePlaceholder appends the placeholder of a registered image
func (s *Session) InsertImagePlaceholder(id string) error {
	if !s.Images.Has(id) {
		return fmt.Errorf("%w: %s", ErrUnknownImage, id)
	}
	s.appendPlaceholder(id)
	return nil
}

func (s *Session) appendPlaceholder(id string) {
	if s.Body != "" {
		s.Body += "\n" + Placeholder(id) + "\n"
	} else {
		s.Body = Placeholder(id) + "\n"
	}
}

// Restore replaces the draft with persisted state. The identifier counter
// never moves backwards so new uploads cannot collide with loaded ones.
func (s *Session) Restore(subject, body string, images ImageRegistry) {
	s.Subject = subject
	s.Body = body
	s.Images = images.Clone()
	s.counter = max(s.counter, s.Images.MaxSerial())
}

// Reset clears the session back to an empty draft
func (s *Session) Reset(defaultSubject string) {
	*s = *NewSession(defaultSubject)
}

// Clone returns an independent copy for use by a merge run
func (s *Session) Clone() *Session {
	return &Session{
		Subject: s.Subject,
		Body:    s.Body,
		Images:  s.Images.Clone(),
		counter: s.counter,
	}
}
