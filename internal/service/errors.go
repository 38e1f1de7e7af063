package service

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures by how they propagate
type ErrorKind int

// Error kinds
const (
	// KindInternal is anything not classified below
	KindInternal ErrorKind = iota
	// KindPersistence is a template/settings read or write failure
	KindPersistence
	// KindAssembly is an unreadable image while building one message
	KindAssembly
	// KindTransport is a rejected or failed delivery attempt
	KindTransport
	// KindRecipient is an unusable recipient row
	KindRecipient
	// KindSetup aborts a whole run before any recipient is processed
	KindSetup
	// KindConflict is a request that clashes with a run in progress
	KindConflict
	// KindInvalid is bad user input
	KindInvalid
)

func (k ErrorKind) String() string {
	switch k {
	case KindPersistence:
		return "persistence"
	case KindAssembly:
		return "assembly"
	case KindTransport:
		return "transport"
	case KindRecipient:
		return "recipient"
	case KindSetup:
		return "setup"
	case KindConflict:
		return "conflict"
	case KindInvalid:
		return "invalid"
	default:
		return "internal"
	}
}

// Compose service errors
var (
	ErrSendInProgress = errors.New("a send is already in progress")
	ErrNoSender       = errors.New("no mail transport configured")
)

// Error is a classified failure
type Error struct {
	Kind ErrorKind
	// Op is the user action or step that failed, e.g. "save" or "send"
	Op string
	// Recipient is the address of the message concerned, if any
	Recipient string
	Err       error
}

func (e *Error) Error() string {
	if e.Recipient != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Recipient, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of err, KindInternal when unclassified
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Describe renders an error as the status text shown to the user
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return fmt.Sprintf("Error: %v", err)
	}

	switch e.Kind {
	case KindPersistence:
		switch e.Op {
		case OpSave:
			return fmt.Sprintf("Failed to save content: %v", e.Err)
		case OpLoad:
			return fmt.Sprintf("Failed to load content: %v", e.Err)
		}
		return fmt.Sprintf("Failed to %s: %v", e.Op, e.Err)
	case KindAssembly, KindTransport, KindRecipient:
		return fmt.Sprintf("Failed to send to %s: %v", e.Recipient, e.Err)
	case KindSetup:
		return fmt.Sprintf("Failed to send emails: %v", e.Err)
	case KindConflict:
		return "A send is already running, wait for it to finish."
	default:
		return fmt.Sprintf("Error: %v", e.Err)
	}
}

// Operation names used in errors
const (
	OpSave    = "save"
	OpLoad    = "load"
	OpSend    = "send"
	OpUpload  = "upload image"
	OpPreview = "preview"
)
