package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/digestmail/digestmail/internal/email"
	"github.com/digestmail/digestmail/internal/logger"
	"github.com/digestmail/digestmail/internal/model"
	"github.com/digestmail/digestmail/internal/render"
)

// OutcomeRecorder persists runs and their outcomes. Implemented by
// repository.RunRepository.
type OutcomeRecorder interface {
	CreateRun(ctx context.Context, run *model.Run) error
	RecordOutcome(ctx context.Context, runID string, outcome model.Outcome) error
	FinishRun(ctx context.Context, summary *model.Summary, status model.RunStatus) error
}

// MergeConfig tunes message construction and delivery
type MergeConfig struct {
	// AttachUsedOnly attaches only referenced images, renumbered in order of use
	AttachUsedOnly bool
	// SendTimeout bounds one transport call; zero means no bound
	SendTimeout time.Duration
}

// MergeParams describes one merge run
type MergeParams struct {
	// RunID identifies the run; generated when empty
	RunID      string
	Recipients []model.Recipient
	// Session is the draft to send. It must not be mutated during the run.
	Session  *model.Session
	Sender   email.Sender
	Provider string
	Progress ProgressReporter
}

// MergeService drives one personalized send per recipient. Recipients are
// processed sequentially in list order with exactly one attempt each, and a
// failure for one recipient never stops the run.
type MergeService struct {
	renderer  *render.Renderer
	assembler *email.Assembler
	recorder  OutcomeRecorder
	cfg       MergeConfig
	log       *logger.Logger
	now       func() time.Time
}

// NewMergeService creates a new MergeService. recorder may be nil.
func NewMergeService(
	renderer *render.Renderer,
	assembler *email.Assembler,
	recorder OutcomeRecorder,
	cfg MergeConfig,
	log *logger.Logger,
) *MergeService {
	return &MergeService{
		renderer:  renderer,
		assembler: assembler,
		recorder:  recorder,
		cfg:       cfg,
		log:       log.WithComponent("merge"),
		now:       time.Now,
	}
}

// Run sends the session to every recipient and returns the aggregate
// summary. Per-recipient errors are recorded in the summary; the only error
// returned is a missing transport, before anything is sent.
func (s *MergeService) Run(ctx context.Context, p MergeParams) (*model.Summary, error) {
	if p.Sender == nil {
		return nil, newError(KindSetup, OpSend, ErrNoSender)
	}
	if p.RunID == "" {
		p.RunID = uuid.NewString()
	}
	log := s.log.WithRunID(p.RunID)

	total := len(p.Recipients)
	summary := &model.Summary{RunID: p.RunID, StartedAt: s.now()}
	progress := model.Progress{
		RunID:     p.RunID,
		Status:    model.RunStatusRunning,
		Total:     total,
		UpdatedAt: summary.StartedAt,
	}
	s.report(ctx, p.Progress, progress)
	s.createRun(ctx, log, p, summary)

	log.Info().Int("recipients", total).Msg("merge started")

	for i, rcpt := range p.Recipients {
		err := s.sendOne(ctx, p.Sender, p.Session, rcpt)

		outcome := model.Outcome{
			Position:    i + 1,
			Recipient:   rcpt,
			Succeeded:   err == nil,
			Err:         err,
			AttemptedAt: s.now(),
		}
		if err != nil {
			outcome.Error = err.Error()
			progress.Failed++
			progress.Message = Describe(err)
		} else {
			progress.Sent++
			progress.Message = fmt.Sprintf("Sent %d of %d emails", progress.Sent, total)
		}
		summary.Record(outcome)
		log.SendOutcome(rcpt.Email, i+1, total, err)

		progress.UpdatedAt = outcome.AttemptedAt
		s.report(ctx, p.Progress, progress)
		s.recordOutcome(ctx, log, p.RunID, outcome)
	}

	summary.FinishedAt = s.now()
	progress.Status = model.RunStatusCompleted
	progress.Message = fmt.Sprintf("Successfully sent emails to %d recipients!", summary.Succeeded)
	progress.UpdatedAt = summary.FinishedAt
	s.report(ctx, p.Progress, progress)
	s.finishRun(ctx, log, summary)

	log.Info().
		Int("attempted", summary.Attempted).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed()).
		Msg("merge finished")

	return summary, nil
}

// sendOne personalizes, assembles and submits one message. A panic in a
// transport is converted into that recipient's failure.
func (s *MergeService) sendOne(ctx context.Context, sender email.Sender, session *model.Session, rcpt model.Recipient) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithRecipient(rcpt.Email).Error().Interface("panic", r).Msg("transport panicked")
			err = &Error{Kind: KindTransport, Op: OpSend, Recipient: rcpt.Email, Err: fmt.Errorf("transport panic: %v", r)}
		}
	}()

	names, err := rcpt.Names()
	if err != nil {
		return &Error{Kind: KindRecipient, Op: OpSend, Recipient: rcpt.Email, Err: err}
	}

	images := session.Images
	if s.cfg.AttachUsedOnly {
		images = render.UsedImages(session.Body, session.Images)
	}

	doc := s.renderer.Render(session.Body, images, names)

	msg, err := s.assembler.Assemble(rcpt.Email, session.Subject, doc.HTML, images)
	if err != nil {
		return &Error{Kind: KindAssembly, Op: OpSend, Recipient: rcpt.Email, Err: err}
	}

	sendCtx := ctx
	if s.cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, s.cfg.SendTimeout)
		defer cancel()
	}

	if err := sender.Send(sendCtx, msg); err != nil {
		return &Error{Kind: KindTransport, Op: OpSend, Recipient: rcpt.Email, Err: err}
	}
	return nil
}

func (s *MergeService) report(ctx context.Context, r ProgressReporter, p model.Progress) {
	if r != nil {
		r.Report(ctx, p)
	}
}

func (s *MergeService) createRun(ctx context.Context, log *logger.Logger, p MergeParams, summary *model.Summary) {
	if s.recorder == nil {
		return
	}
	run := &model.Run{
		ID:        p.RunID,
		Subject:   p.Session.Subject,
		Provider:  p.Provider,
		Total:     len(p.Recipients),
		Status:    model.RunStatusRunning,
		StartedAt: summary.StartedAt,
	}
	if err := s.recorder.CreateRun(ctx, run); err != nil {
		log.Warn().Err(err).Msg("failed to record merge run")
	}
}

func (s *MergeService) recordOutcome(ctx context.Context, log *logger.Logger, runID string, o model.Outcome) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordOutcome(ctx, runID, o); err != nil {
		log.Warn().Err(err).Str("recipient", o.Recipient.Email).Msg("failed to record send outcome")
	}
}

func (s *MergeService) finishRun(ctx context.Context, log *logger.Logger, summary *model.Summary) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.FinishRun(ctx, summary, model.RunStatusCompleted); err != nil {
		log.Warn().Err(err).Msg("failed to finish merge run")
	}
}
