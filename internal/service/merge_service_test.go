package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/digestmail/digestmail/internal/email"
	"github.com/digestmail/digestmail/internal/logger"
	"github.com/digestmail/digestmail/internal/model"
	"github.com/digestmail/digestmail/internal/render"
	"github.com/digestmail/digestmail/internal/service"
)

type memImages map[string][]byte

func (m memImages) ReadImage(ref string) ([]byte, error) {
	data, ok := m[ref]
	if !ok {
		return nil, fmt.Errorf("open %s: no such file", ref)
	}
	return data, nil
}

// fakeSender records every message and fails for addresses in reject
type fakeSender struct {
	mu     sync.Mutex
	sent   []email.Message
	reject map[string]error
	panics map[string]bool
}

func (f *fakeSender) Send(_ context.Context, msg email.Message) error {
	if f.panics[msg.To] {
		panic("connection reset")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.reject[msg.To]; err != nil {
		return err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) messages() []email.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]email.Message(nil), f.sent...)
}

type recordingReporter struct {
	mu      sync.Mutex
	reports []model.Progress
}

func (r *recordingReporter) Report(_ context.Context, p model.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, p)
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) CreateRun(ctx context.Context, run *model.Run) error {
	return m.Called(ctx, run).Error(0)
}

func (m *mockRecorder) RecordOutcome(ctx context.Context, runID string, outcome model.Outcome) error {
	return m.Called(ctx, runID, outcome).Error(0)
}

func (m *mockRecorder) FinishRun(ctx context.Context, summary *model.Summary, status model.RunStatus) error {
	return m.Called(ctx, summary, status).Error(0)
}

func newMerge(images email.ImageSource, recorder service.OutcomeRecorder, cfg service.MergeConfig) *service.MergeService {
	return service.NewMergeService(
		render.New(0),
		email.NewAssembler(images, "digest@example.com", "Digest"),
		recorder,
		cfg,
		logger.Nop(),
	)
}

func twoImageSession(t *testing.T, body string) *model.Session {
	t.Helper()
	images, err := model.NewImageRegistry(
		model.ImageEntry{ID: "image_1", Path: "a.png"},
		model.ImageEntry{ID: "image_2", Path: "b.png"},
	)
	require.NoError(t, err)
	s := model.NewSession("Weekly")
	s.Restore("Weekly", body, images)
	return s
}

var twoImages = memImages{"a.png": []byte("A"), "b.png": []byte("B")}

func TestMergeRun(t *testing.T) {
	t.Parallel()

	t.Run("continues after a transport failure", func(t *testing.T) {
		t.Parallel()

		sender := &fakeSender{reject: map[string]error{"bob@example.com": errors.New("mailbox unavailable")}}
		reporter := &recordingReporter{}
		recipients := []model.Recipient{
			{FullName: "Jane Doe", Email: "jane@example.com"},
			{FullName: "Bob Smith", Email: "bob@example.com"},
			{FullName: "Ann Lee", Email: "ann@example.com"},
		}

		summary, err := newMerge(twoImages, nil, service.MergeConfig{}).Run(context.Background(), service.MergeParams{
			RunID:      "run-1",
			Recipients: recipients,
			Session:    twoImageSession(t, "Hi {first name}\n[image_1]"),
			Sender:     sender,
			Progress:   reporter,
		})
		require.NoError(t, err)

		require.Equal(t, "run-1", summary.RunID)
		require.Equal(t, 3, summary.Attempted)
		require.Equal(t, 2, summary.Succeeded)
		require.Equal(t, 1, summary.Failed())
		require.Len(t, summary.Failures, 1)
		require.Equal(t, 2, summary.Failures[0].Position)
		require.Equal(t, service.KindTransport, service.KindOf(summary.Failures[0].Err))
		require.Equal(t, "Failed to send to bob@example.com: mailbox unavailable", service.Describe(summary.Failures[0].Err))

		sent := sender.messages()
		require.Len(t, sent, 2)
		require.Equal(t, "jane@example.com", sent[0].To)
		require.Contains(t, sent[0].HTMLBody, "<p>Hi Jane</p>")
		require.Equal(t, "ann@example.com", sent[1].To)
		require.Contains(t, sent[1].HTMLBody, "<p>Hi Ann</p>")

		require.Len(t, reporter.reports, 5)
		require.Equal(t, model.RunStatusRunning, reporter.reports[0].Status)
		require.Equal(t, "Sent 1 of 3 emails", reporter.reports[1].Message)
		require.Equal(t, 1, reporter.reports[2].Failed)
		last := reporter.reports[4]
		require.Equal(t, model.RunStatusCompleted, last.Status)
		require.Equal(t, 2, last.Sent)
		require.Equal(t, 1, last.Failed)
		require.Equal(t, "Successfully sent emails to 2 recipients!", last.Message)
	})

	t.Run("zero recipients is a vacuous success", func(t *testing.T) {
		t.Parallel()

		reporter := &recordingReporter{}
		summary, err := newMerge(twoImages, nil, service.MergeConfig{}).Run(context.Background(), service.MergeParams{
			Session:  twoImageSession(t, "Hi"),
			Sender:   &fakeSender{},
			Progress: reporter,
		})
		require.NoError(t, err)
		require.NotEmpty(t, summary.RunID)
		require.Zero(t, summary.Attempted)
		require.Zero(t, summary.Succeeded)

		last := reporter.reports[len(reporter.reports)-1]
		require.Equal(t, model.RunStatusCompleted, last.Status)
		require.Equal(t, 1.0, last.Percent())
	})

	t.Run("blank name fails only that recipient", func(t *testing.T) {
		t.Parallel()

		sender := &fakeSender{}
		summary, err := newMerge(twoImages, nil, service.MergeConfig{}).Run(context.Background(), service.MergeParams{
			Recipients: []model.Recipient{
				{FullName: "  ", Email: "blank@example.com"},
				{FullName: "Jane Doe", Email: "jane@example.com"},
			},
			Session: twoImageSession(t, "Hi"),
			Sender:  sender,
		})
		require.NoError(t, err)
		require.Equal(t, 1, summary.Succeeded)
		require.Equal(t, service.KindRecipient, service.KindOf(summary.Failures[0].Err))
		require.ErrorIs(t, summary.Failures[0].Err, model.ErrEmptyName)
		require.Len(t, sender.messages(), 1)
	})

	t.Run("unreadable image fails every message without sending", func(t *testing.T) {
		t.Parallel()

		sender := &fakeSender{}
		summary, err := newMerge(memImages{"a.png": []byte("A")}, nil, service.MergeConfig{}).Run(context.Background(), service.MergeParams{
			Recipients: []model.Recipient{
				{FullName: "Jane Doe", Email: "jane@example.com"},
				{FullName: "Ann Lee", Email: "ann@example.com"},
			},
			Session: twoImageSession(t, "[image_1]"),
			Sender:  sender,
		})
		require.NoError(t, err)
		require.Zero(t, summary.Succeeded)
		require.Len(t, summary.Failures, 2)
		for _, f := range summary.Failures {
			require.Equal(t, service.KindAssembly, service.KindOf(f.Err))
			require.ErrorIs(t, f.Err, email.ErrImageUnreadable)
		}
		require.Empty(t, sender.messages())
	})

	t.Run("a panicking transport fails only that recipient", func(t *testing.T) {
		t.Parallel()

		sender := &fakeSender{panics: map[string]bool{"jane@example.com": true}}
		summary, err := newMerge(twoImages, nil, service.MergeConfig{}).Run(context.Background(), service.MergeParams{
			Recipients: []model.Recipient{
				{FullName: "Jane Doe", Email: "jane@example.com"},
				{FullName: "Ann Lee", Email: "ann@example.com"},
			},
			Session: twoImageSession(t, "Hi"),
			Sender:  sender,
		})
		require.NoError(t, err)
		require.Equal(t, 1, summary.Succeeded)
		require.Equal(t, service.KindTransport, service.KindOf(summary.Failures[0].Err))
		require.Contains(t, summary.Failures[0].Error, "connection reset")
	})

	t.Run("missing sender is a setup error", func(t *testing.T) {
		t.Parallel()

		_, err := newMerge(twoImages, nil, service.MergeConfig{}).Run(context.Background(), service.MergeParams{
			Session: twoImageSession(t, "Hi"),
		})
		require.Equal(t, service.KindSetup, service.KindOf(err))
		require.ErrorIs(t, err, service.ErrNoSender)
	})
}

func TestMergeImageAttachment(t *testing.T) {
	t.Parallel()

	recipients := []model.Recipient{{FullName: "Jane Doe", Email: "jane@example.com"}}

	t.Run("attaches every registered image by default", func(t *testing.T) {
		t.Parallel()

		sender := &fakeSender{}
		_, err := newMerge(twoImages, nil, service.MergeConfig{}).Run(context.Background(), service.MergeParams{
			Recipients: recipients,
			Session:    twoImageSession(t, "[image_2]"),
			Sender:     sender,
		})
		require.NoError(t, err)

		msg := sender.messages()[0]
		require.Contains(t, msg.HTMLBody, `src="cid:image2"`)
		require.Len(t, msg.Inline, 2)
		require.Equal(t, "image1", msg.Inline[0].ContentID)
		require.Equal(t, "image2", msg.Inline[1].ContentID)
		require.Equal(t, []byte("B"), msg.Inline[1].Data)
	})

	t.Run("attach used only renumbers referenced images", func(t *testing.T) {
		t.Parallel()

		sender := &fakeSender{}
		_, err := newMerge(twoImages, nil, service.MergeConfig{AttachUsedOnly: true}).Run(context.Background(), service.MergeParams{
			Recipients: recipients,
			Session:    twoImageSession(t, "[image_2]"),
			Sender:     sender,
		})
		require.NoError(t, err)

		msg := sender.messages()[0]
		require.Contains(t, msg.HTMLBody, `src="cid:image1"`)
		require.NotContains(t, msg.HTMLBody, "cid:image2")
		require.Len(t, msg.Inline, 1)
		require.Equal(t, "image1", msg.Inline[0].ContentID)
		require.Equal(t, []byte("B"), msg.Inline[0].Data)
	})

	t.Run("every cid reference has a matching part", func(t *testing.T) {
		t.Parallel()

		sender := &fakeSender{}
		_, err := newMerge(twoImages, nil, service.MergeConfig{}).Run(context.Background(), service.MergeParams{
			Recipients: recipients,
			Session:    twoImageSession(t, "[image_1]\n[image_2]\n[image_1]"),
			Sender:     sender,
		})
		require.NoError(t, err)

		msg := sender.messages()[0]
		ids := make(map[string]bool)
		for _, img := range msg.Inline {
			ids[img.ContentID] = true
		}
		for _, part := range strings.Split(msg.HTMLBody, `src="cid:`)[1:] {
			cid, _, _ := strings.Cut(part, `"`)
			require.True(t, ids[cid], cid)
		}
	})
}

func TestMergeRecordsRun(t *testing.T) {
	t.Parallel()

	rec := &mockRecorder{}
	rec.On("CreateRun", mock.Anything, mock.MatchedBy(func(r *model.Run) bool {
		return r.ID == "run-9" && r.Total == 2 && r.Subject == "Weekly" && r.Provider == "smtp"
	})).Return(nil).Once()
	rec.On("RecordOutcome", mock.Anything, "run-9", mock.MatchedBy(func(o model.Outcome) bool {
		return o.Succeeded
	})).Return(nil).Once()
	rec.On("RecordOutcome", mock.Anything, "run-9", mock.MatchedBy(func(o model.Outcome) bool {
		return !o.Succeeded && o.Error != ""
	})).Return(errors.New("db down")).Once()
	rec.On("FinishRun", mock.Anything, mock.MatchedBy(func(s *model.Summary) bool {
		return s.Attempted == 2 && s.Succeeded == 1
	}), model.RunStatusCompleted).Return(nil).Once()

	sender := &fakeSender{reject: map[string]error{"bob@example.com": errors.New("rejected")}}
	summary, err := newMerge(twoImages, rec, service.MergeConfig{}).Run(context.Background(), service.MergeParams{
		RunID: "run-9",
		Recipients: []model.Recipient{
			{FullName: "Jane Doe", Email: "jane@example.com"},
			{FullName: "Bob Smith", Email: "bob@example.com"},
		},
		Session:  twoImageSession(t, "Hi"),
		Sender:   sender,
		Provider: "smtp",
	})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Succeeded)
	rec.AssertExpectations(t)
}

// encodingSender encodes each message the way raw MIME transports do
type encodingSender struct {
	fakeSender
}

func (e *encodingSender) Send(ctx context.Context, msg email.Message) error {
	if _, err := msg.Bytes(); err != nil {
		return err
	}
	return e.fakeSender.Send(ctx, msg)
}

func TestMergeRunAddressLineBreak(t *testing.T) {
	t.Parallel()

	sender := &encodingSender{}
	recipients := []model.Recipient{
		{FullName: "Jane Doe", Email: "jane@example.com\r\nBcc: evil@example.com"},
		{FullName: "Bob Smith", Email: "bob@example.com"},
	}

	summary, err := newMerge(twoImages, nil, service.MergeConfig{}).Run(context.Background(), service.MergeParams{
		RunID:      "run-crlf",
		Recipients: recipients,
		Session:    twoImageSession(t, "Hi {first name}"),
		Sender:     sender,
	})
	require.NoError(t, err)

	require.Equal(t, 2, summary.Attempted)
	require.Equal(t, 1, summary.Succeeded)
	require.Len(t, summary.Failures, 1)
	require.Equal(t, 1, summary.Failures[0].Position)
	require.Equal(t, service.KindTransport, service.KindOf(summary.Failures[0].Err))
	require.ErrorIs(t, summary.Failures[0].Err, email.ErrHeaderLineBreak)

	sent := sender.messages()
	require.Len(t, sent, 1)
	require.Equal(t, "bob@example.com", sent[0].To)
}
