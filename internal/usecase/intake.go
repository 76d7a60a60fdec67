package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"support-bot/internal/config"
	"support-bot/internal/domain"
	"support-bot/internal/session"
)

const (
	commandStart  = "/start"
	commandReport = "/report"
)

// Messenger is the chat platform surface the intake form needs.
type Messenger interface {
	SendMessage(ctx context.Context, chat domain.ChatRef, text string, controls []domain.Control) (domain.MessageRef, error)
	DeleteMessage(ctx context.Context, ref domain.MessageRef) error
	SendMediaBatch(ctx context.Context, chat domain.ChatRef, items []domain.Attachment) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// IntakeService drives report forms: it routes inbound events through the
// step engine and the attachment coalescer and performs the resulting sends
// and deletions.
type IntakeService struct {
	registry    *session.Registry
	messenger   Messenger
	engine      *Engine
	coalescer   *Coalescer
	messages    config.Messages
	hours       WorkingHours
	batchSize   int
	groupLink   string
	botUsername string
	logger      *slog.Logger
	now         func() time.Time
}

// NewIntakeService wires the orchestrator. botUsername is used to recognise
// commands addressed as /report@botname.
func NewIntakeService(reg *session.Registry, m Messenger, cfg config.IntakeConfig, msgs config.Messages, botUsername string, logger *slog.Logger) (*IntakeService, error) {
	if reg == nil {
		return nil, errors.New("usecase: registry must not be nil")
	}
	if m == nil {
		return nil, errors.New("usecase: messenger must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	batch := cfg.MediaBatchSize
	if batch <= 0 || batch > config.MaxMediaBatchSize {
		batch = config.MaxMediaBatchSize
	}
	s := &IntakeService{
		registry:  reg,
		messenger: m,
		engine: NewEngine(Limits{
			Brief:       cfg.MaxBriefLength,
			Description: cfg.MaxDescriptionLength,
			Location:    cfg.MaxLocationLength,
		}),
		messages:    msgs.WithDefaults(),
		hours:       WorkingHours{Start: cfg.WorkStart, End: cfg.WorkEnd, Location: cfg.Location},
		batchSize:   batch,
		groupLink:   cfg.GroupLink,
		botUsername: strings.TrimPrefix(strings.TrimSpace(botUsername), "@"),
		logger:      logger,
		now:         time.Now,
	}
	s.coalescer = newCoalescer(m, cfg.QuietInterval, s.summaryPrompt, logger)
	return s, nil
}

// Wait blocks until in-flight attachment summaries are done.
func (s *IntakeService) Wait() {
	s.coalescer.Wait()
}

// HandleMessage processes one inbound text or media message.
func (s *IntakeService) HandleMessage(ctx context.Context, m domain.Message) error {
	cmd := s.command(m.Text)

	switch m.ChatType {
	case domain.ChatPrivate:
		if cmd == commandStart || cmd == commandReport {
			_, err := s.messenger.SendMessage(ctx, m.Chat, render(s.messages.PrivateChat, "link", s.groupLink), nil)
			if err != nil {
				return upstreamError("send_private_notice", err)
			}
		}
		return nil
	case domain.ChatGroup, domain.ChatSupergroup:
	default:
		return nil
	}

	switch cmd {
	case "":
	case commandReport:
		return s.start(ctx, m)
	default:
		// Other commands are never form answers.
		return nil
	}

	rec, ok := s.registry.Get(m.From.ID)
	if !ok || rec.Chat() != m.Chat {
		return nil
	}

	d := s.engine.OnMessage(rec.Step(), m)
	var err error
	switch d.Action {
	case ActionIgnore:
		return nil
	case ActionReject:
		err = s.reject(ctx, rec, m, d)
	case ActionAdvance:
		err = s.advance(ctx, rec, m, d)
	case ActionAttach:
		err = s.coalescer.Add(ctx, rec, m.Ref, d.Attachment)
	case ActionReset:
		s.logger.Warn("invalid state is presented, discarding session",
			"user_id", m.From.ID, "reason", d.Err.Reason)
		rec.Reset()
		s.release(ctx, rec)
	}

	s.logger.Debug("conversation state",
		"user_id", m.From.ID, "username", m.From.Username,
		"action", d.Action.String(), "step", string(rec.Step()))
	return err
}

// HandleCallback processes one inline button press.
func (s *IntakeService) HandleCallback(ctx context.Context, cb domain.Callback) error {
	kind, sessionID, ok := parseControlData(cb.Data)
	rec, found := s.registry.Get(cb.From.ID)
	if !ok || !found || rec.SessionID() != sessionID || !rec.IsTracked(cb.Origin) {
		return s.answer(ctx, cb, s.messages.Outdated)
	}

	d := s.engine.OnControl(rec.Step(), kind)
	switch d.Action {
	case ActionCancel:
		if err := s.closeForm(ctx, rec, rec.Cancel); err != nil {
			return s.answer(ctx, cb, s.messages.Outdated)
		}
		answerErr := s.answer(ctx, cb, s.messages.Cancelled)
		var noticeErr error
		if _, err := s.messenger.SendMessage(ctx, rec.Chat(), s.messages.Cancelled, nil); err != nil {
			noticeErr = upstreamError("send_cancel_notice", err)
		}
		s.release(ctx, rec)
		return errors.Join(answerErr, noticeErr)
	case ActionFinish:
		if err := s.closeForm(ctx, rec, rec.Finish); err != nil {
			return s.answer(ctx, cb, s.messages.Outdated)
		}
		answerErr := s.answer(ctx, cb, "")
		return errors.Join(answerErr, s.finalize(ctx, rec))
	default:
		return s.answer(ctx, cb, s.messages.Outdated)
	}
}

// closeForm runs a terminal transition under the record's emit lock,
// so a summary already being sent completes first and none starts after.
func (s *IntakeService) closeForm(ctx context.Context, rec *session.Record, transition func(context.Context) error) error {
	unlock := rec.LockEmit()
	defer unlock()
	return transition(ctx)
}

// start opens a fresh session, superseding any session the user already has.
func (s *IntakeService) start(ctx context.Context, m domain.Message) error {
	if old, ok := s.registry.Get(m.From.ID); ok {
		s.release(ctx, old)
	}
	rec, _ := s.registry.GetOrCreate(m.From, m.Chat)
	rec.Track(m.Ref)
	return s.prompt(ctx, rec, s.messages.PromptBrief, s.cancelControls(rec))
}

func (s *IntakeService) advance(ctx context.Context, rec *session.Record, m domain.Message, d Decision) error {
	rec.Track(m.Ref)
	if _, err := rec.Advance(ctx, d.Field, d.Value); err != nil {
		return fmt.Errorf("usecase: advance: %w", err)
	}
	switch d.Prompt {
	case PromptDescription:
		return s.prompt(ctx, rec, s.messages.PromptDescription, s.cancelControls(rec))
	case PromptLocation:
		return s.prompt(ctx, rec, s.messages.PromptLocation, s.cancelControls(rec))
	case PromptAttachments:
		controls := append([]domain.Control{
			{Label: s.messages.ButtonSkip, Data: controlData(ControlSkip, rec.SessionID())},
		}, s.cancelControls(rec)...)
		return s.prompt(ctx, rec, s.messages.PromptAttachments, controls)
	}
	return nil
}

// reject keeps the step and tracks both the offending input and the warning.
func (s *IntakeService) reject(ctx context.Context, rec *session.Record, m domain.Message, d Decision) error {
	rec.Track(m.Ref)
	var warning string
	switch d.Err.Code {
	case ErrorTooLong:
		warning = render(s.messages.WarnTooLong, "limit", strconv.Itoa(s.engine.Limit(rec.Step())))
	case ErrorTextOnly:
		warning = s.messages.WarnTextOnly
	case ErrorMediaOnly:
		warning = s.messages.WarnMediaOnly
	default:
		return d.Err
	}
	return s.prompt(ctx, rec, warning, nil)
}

// finalize posts the permanent report and releases the session. The report
// messages are never tracked.
func (s *IntakeService) finalize(ctx context.Context, rec *session.Record) error {
	defer s.release(ctx, rec)

	report := rec.Report()
	chat := rec.Chat()
	if _, err := s.messenger.SendMessage(ctx, chat, formatReport(s.messages, report), nil); err != nil {
		return upstreamError("send_report", err)
	}
	for _, batch := range chunkAttachments(report.Attachments, s.batchSize) {
		if err := s.messenger.SendMediaBatch(ctx, chat, batch); err != nil {
			return upstreamError("send_report_attachments", err)
		}
	}
	if !s.hours.Contains(s.now()) {
		if _, err := s.messenger.SendMessage(ctx, chat, s.messages.OutOfHours, nil); err != nil {
			return upstreamError("send_out_of_hours_notice", err)
		}
	}
	return nil
}

// prompt sends a scratch message into the session's chat and tracks it.
func (s *IntakeService) prompt(ctx context.Context, rec *session.Record, text string, controls []domain.Control) error {
	ref, err := s.messenger.SendMessage(ctx, rec.Chat(), text, controls)
	if err != nil {
		return upstreamError("send_prompt", err)
	}
	if !rec.Track(ref) {
		deleteBestEffort(ctx, s.messenger, s.logger, ref)
	}
	return nil
}

// release removes rec from the registry and deletes its scratch messages
// outside any lock.
func (s *IntakeService) release(ctx context.Context, rec *session.Record) {
	for _, ref := range s.registry.ReleaseRecord(rec) {
		deleteBestEffort(ctx, s.messenger, s.logger, ref)
	}
}

func (s *IntakeService) answer(ctx context.Context, cb domain.Callback, text string) error {
	if err := s.messenger.AnswerCallback(ctx, cb.ID, text); err != nil {
		return upstreamError("answer_callback", err)
	}
	return nil
}

func (s *IntakeService) cancelControls(rec *session.Record) []domain.Control {
	return []domain.Control{{Label: s.messages.ButtonCancel, Data: controlData(ControlCancel, rec.SessionID())}}
}

func (s *IntakeService) summaryPrompt(rec *session.Record, photos, videos int) (string, []domain.Control) {
	controls := append([]domain.Control{
		{Label: s.messages.ButtonFinish, Data: controlData(ControlFinish, rec.SessionID())},
	}, s.cancelControls(rec)...)
	return formatSummary(s.messages, photos, videos), controls
}

// command returns the bot command in text, dropping a trailing @botname that
// addresses this bot. Commands addressed to other bots yield "".
func (s *IntakeService) command(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	word, _, _ := strings.Cut(text, " ")
	cmd, target, addressed := strings.Cut(word, "@")
	if addressed && !strings.EqualFold(target, s.botUsername) {
		return ""
	}
	return strings.ToLower(cmd)
}

func deleteBestEffort(ctx context.Context, m Messenger, logger *slog.Logger, ref domain.MessageRef) {
	if err := m.DeleteMessage(ctx, ref); err != nil {
		logger.Warn("delete message failed",
			"chat_id", ref.ChatID, "message_id", ref.MessageID, "err", err)
	}
}
