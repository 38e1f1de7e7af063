package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/digestmail/digestmail/internal/email"
	"github.com/digestmail/digestmail/internal/logger"
	"github.com/digestmail/digestmail/internal/model"
	"github.com/digestmail/digestmail/internal/render"
	"github.com/digestmail/digestmail/internal/repository"
)

// SenderFactory obtains an authenticated transport handle
type SenderFactory func(ctx context.Context) (email.Sender, error)

// ComposeDeps groups the collaborators of a ComposeService
type ComposeDeps struct {
	Templates  *repository.TemplateRepository
	Images     *repository.ImageRepository
	Recipients *repository.RecipientRepository
	Merge      *MergeService
	Renderer   *render.Renderer
	NewSender  SenderFactory
	// Provider names the transport in run history
	Provider string
	// Tokens, when set, is forgotten after every send run
	Tokens *email.TokenStore
}

// ComposeService owns the editing session and implements the user actions:
// edit, upload, save, load, preview and send.
type ComposeService struct {
	mu             sync.Mutex
	session        *model.Session
	defaultSubject string
	deps           ComposeDeps
	sending        atomic.Bool
	log            *logger.Logger
	now            func() time.Time
}

// NewComposeService starts a new editing session
func NewComposeService(deps ComposeDeps, defaultSubject string, log *logger.Logger) *ComposeService {
	return &ComposeService{
		session:        model.NewSession(defaultSubject),
		defaultSubject: defaultSubject,
		deps:           deps,
		log:            log.WithComponent("compose"),
		now:            time.Now,
	}
}

// Snapshot returns a copy of the current session
func (s *ComposeService) Snapshot() *model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Clone()
}

// Update replaces the subject and body of the draft
func (s *ComposeService) Update(subject, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session.Subject = subject
	s.session.Body = body
}

// AddImage stores an uploaded image, registers it under the next identifier
// and appends its placeholder to the body.
func (s *ComposeService) AddImage(filename string, content io.Reader) (string, error) {
	path, err := s.deps.Images.Store(filename, content)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidInput) {
			return "", newError(KindInvalid, OpUpload, err)
		}
		return "", newError(KindPersistence, OpUpload, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := s.session.RegisterImage(path)
	if err != nil {
		return "", newError(KindInternal, OpUpload, err)
	}
	s.log.Info().Str("image_id", id).Str("path", path).Msg("image registered")
	return id, nil
}

// InsertImage appends the placeholder of an already registered image
func (s *ComposeService) InsertImage(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.session.InsertImagePlaceholder(id); err != nil {
		return newError(KindInvalid, "insert image", err)
	}
	return nil
}

// ImageContent returns the bytes and file path of a registered image
func (s *ComposeService) ImageContent(id string) ([]byte, string, error) {
	s.mu.Lock()
	path, ok := s.session.Images.Get(id)
	s.mu.Unlock()
	if !ok {
		return nil, "", newError(KindInvalid, "read image", fmt.Errorf("%w: %s", model.ErrUnknownImage, id))
	}
	data, err := s.deps.Images.ReadImage(path)
	if err != nil {
		return nil, "", newError(KindPersistence, "read image", err)
	}
	return data, path, nil
}

// Reset ends the editing session and starts an empty one
func (s *ComposeService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session.Reset(s.defaultSubject)
}

// Save persists the draft body, subject and image registry
func (s *ComposeService) Save() error {
	snap := s.Snapshot()
	err := s.deps.Templates.Save(snap.Body, repository.Settings{
		Images:  snap.Images,
		Subject: snap.Subject,
	})
	if err != nil {
		return newError(KindPersistence, OpSave, err)
	}
	s.log.Info().Int("images", snap.Images.Len()).Msg("content saved")
	return nil
}

// Load replaces the draft with the saved one. On failure the session is
// left unchanged; parts whose files do not exist are kept as they are.
func (s *ComposeService) Load() error {
	draft, err := s.deps.Templates.Load()
	if err != nil {
		return newError(KindPersistence, OpLoad, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	subject, body, images := s.session.Subject, s.session.Body, s.session.Images
	if draft.SettingsFound {
		subject = draft.Settings.Subject
		images = draft.Settings.Images
	}
	if draft.BodyFound {
		body = draft.Body
	}
	s.session.Restore(subject, body, images)
	s.log.Info().Bool("body", draft.BodyFound).Bool("settings", draft.SettingsFound).Msg("content loaded")
	return nil
}

// Preview renders the draft for a sample recipient name
func (s *ComposeService) Preview(fullName string) (render.Document, error) {
	names, err := model.DeriveNames(fullName)
	if err != nil {
		return render.Document{}, newError(KindInvalid, OpPreview, err)
	}
	snap := s.Snapshot()
	return s.deps.Renderer.Render(snap.Body, snap.Images, names), nil
}

const sendingMessage = "Sending emails..."

// SendOptions configures one send
type SendOptions struct {
	RunID    string
	Progress ProgressReporter
}

// Sending reports whether a send is running
func (s *ComposeService) Sending() bool {
	return s.sending.Load()
}

// Send saves the draft, obtains the transport, reads the recipient list and
// runs the merge. Setup failures abort before any recipient is processed
// and return no summary.
func (s *ComposeService) Send(ctx context.Context, opts SendOptions) (*model.Summary, error) {
	if !s.sending.CompareAndSwap(false, true) {
		return nil, newError(KindConflict, OpSend, ErrSendInProgress)
	}
	defer s.sending.Store(false)
	return s.send(ctx, opts)
}

// StartSend begins a send in the background and returns its run ID at once.
// A running progress is reported before it returns, so the run is visible
// to pollers immediately. The outcome is delivered through opts.Progress.
func (s *ComposeService) StartSend(ctx context.Context, opts SendOptions) (string, error) {
	if !s.sending.CompareAndSwap(false, true) {
		return "", newError(KindConflict, OpSend, ErrSendInProgress)
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Progress != nil {
		opts.Progress.Report(ctx, model.Progress{
			RunID:     opts.RunID,
			Status:    model.RunStatusRunning,
			Message:   sendingMessage,
			UpdatedAt: s.now(),
		})
	}

	go func() {
		defer s.sending.Store(false)
		if _, err := s.send(ctx, opts); err != nil && opts.Progress != nil {
			opts.Progress.Report(ctx, model.Progress{
				RunID:     opts.RunID,
				Status:    model.RunStatusFailed,
				Message:   Describe(err),
				UpdatedAt: s.now(),
			})
		}
	}()
	return opts.RunID, nil
}

func (s *ComposeService) send(ctx context.Context, opts SendOptions) (*model.Summary, error) {
	if err := s.Save(); err != nil {
		return nil, newError(KindSetup, OpSend, err)
	}

	if s.deps.NewSender == nil {
		return nil, newError(KindSetup, OpSend, ErrNoSender)
	}
	sender, err := s.deps.NewSender(ctx)
	if err != nil {
		return nil, newError(KindSetup, OpSend, err)
	}

	recipients, err := s.deps.Recipients.List()
	if err != nil {
		return nil, newError(KindSetup, OpSend, err)
	}

	summary, err := s.deps.Merge.Run(ctx, MergeParams{
		RunID:      opts.RunID,
		Recipients: recipients,
		Session:    s.Snapshot(),
		Sender:     sender,
		Provider:   s.deps.Provider,
		Progress:   opts.Progress,
	})
	if err != nil {
		return nil, err
	}

	if path, err := s.deps.Templates.Backup(s.now()); err != nil {
		s.log.Warn().Err(err).Msg("failed to back up body file")
	} else {
		s.log.Info().Str("path", path).Msg("body file backed up")
	}

	if s.deps.Tokens != nil {
		if err := s.deps.Tokens.Forget(); err != nil {
			s.log.Warn().Err(err).Msg("failed to forget oauth token")
		}
	}

	return summary, nil
}
