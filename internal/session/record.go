package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/looplab/fsm"

	"support-bot/internal/domain"
)

const (
	eventAdvance = "advance"
	eventFinish  = "finish"
	eventCancel  = "cancel"
)

// ErrReleased is returned by mutating calls on a record that has already been
// removed from its registry.
var ErrReleased = errors.New("session: record released")

// fieldSteps maps each text step to the field it collects.
var fieldSteps = map[domain.Step]domain.Field{
	domain.StepAwaitingBrief:       domain.FieldBrief,
	domain.StepAwaitingDescription: domain.FieldDescription,
	domain.StepAwaitingLocation:    domain.FieldLocation,
}

// Record is one user's in-progress intake form.
//
// All fields are guarded by mu. emitMu serializes attachment-summary emission
// for this record only and may be held across collaborator calls.
type Record struct {
	user      domain.User
	sessionID string
	chat      domain.ChatRef

	mu               sync.Mutex
	machine          *fsm.FSM
	fields           map[domain.Field]string
	attachments      []domain.Attachment
	tracked          []domain.MessageRef
	trackedSet       map[domain.MessageRef]struct{}
	latestAttachment domain.MessageRef
	lastSummary      domain.MessageRef
	released         bool

	emitMu sync.Mutex
}

func newRecord(user domain.User, chat domain.ChatRef, sessionID string) *Record {
	return &Record{
		user:       user,
		sessionID:  sessionID,
		chat:       chat,
		machine:    newStepMachine(),
		fields:     make(map[domain.Field]string, 3),
		trackedSet: make(map[domain.MessageRef]struct{}, 8),
	}
}

func newStepMachine() *fsm.FSM {
	active := []string{
		string(domain.StepAwaitingBrief),
		string(domain.StepAwaitingDescription),
		string(domain.StepAwaitingLocation),
		string(domain.StepAwaitingAttachments),
	}
	return fsm.NewFSM(
		string(domain.StepAwaitingBrief),
		fsm.Events{
			{Name: eventAdvance, Src: []string{string(domain.StepAwaitingBrief)}, Dst: string(domain.StepAwaitingDescription)},
			{Name: eventAdvance, Src: []string{string(domain.StepAwaitingDescription)}, Dst: string(domain.StepAwaitingLocation)},
			{Name: eventAdvance, Src: []string{string(domain.StepAwaitingLocation)}, Dst: string(domain.StepAwaitingAttachments)},
			{Name: eventFinish, Src: []string{string(domain.StepAwaitingAttachments)}, Dst: string(domain.StepNone)},
			{Name: eventCancel, Src: active, Dst: string(domain.StepNone)},
		},
		fsm.Callbacks{},
	)
}

// User returns the user that owns the record.
func (r *Record) User() domain.User { return r.user }

// SessionID returns the random identifier of this form session.
func (r *Record) SessionID() string { return r.sessionID }

// Chat returns the chat and thread the session was started in.
func (r *Record) Chat() domain.ChatRef { return r.chat }

// Step returns the current form step.
func (r *Record) Step() domain.Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.Step(r.machine.Current())
}

// Field returns a collected text answer.
func (r *Record) Field(f domain.Field) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.fields[f]
	return v, ok
}

// Store writes value into the field collected by the current step without
// advancing. A second Store on the same step overwrites the first.
func (r *Record) Store(field domain.Field, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.storeLocked(field, value)
}

func (r *Record) storeLocked(field domain.Field, value string) error {
	if r.released {
		return ErrReleased
	}
	step := domain.Step(r.machine.Current())
	want, ok := fieldSteps[step]
	if !ok || want != field {
		return fmt.Errorf("session: field %s cannot be written at step %s", field, step)
	}
	r.fields[field] = value
	return nil
}

// Advance stores value into the current step's field and moves to the next
// step. It returns the new step.
func (r *Record) Advance(ctx context.Context, field domain.Field, value string) (domain.Step, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.storeLocked(field, value); err != nil {
		return domain.Step(r.machine.Current()), err
	}
	if err := r.machine.Event(ctx, eventAdvance); err != nil {
		return domain.Step(r.machine.Current()), fmt.Errorf("session: advance: %w", err)
	}
	return domain.Step(r.machine.Current()), nil
}

// Finish moves a record in the attachments step to the terminal step.
func (r *Record) Finish(ctx context.Context) error {
	return r.fire(ctx, eventFinish)
}

// Cancel moves a record in any active step to the terminal step.
func (r *Record) Cancel(ctx context.Context) error {
	return r.fire(ctx, eventCancel)
}

// CanFinish reports whether Finish would succeed.
func (r *Record) CanFinish() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.released && r.machine.Can(eventFinish)
}

func (r *Record) fire(ctx context.Context, event string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrReleased
	}
	if err := r.machine.Event(ctx, event); err != nil {
		return fmt.Errorf("session: %s: %w", event, err)
	}
	return nil
}

// Reset forces the record to the terminal step.
func (r *Record) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.machine.SetState(string(domain.StepNone))
}

// AppendAttachment adds an attachment carried by message ref, tracks ref for
// cleanup and marks it as the newest attachment message. It returns the
// number of attachments collected so far.
func (r *Record) AppendAttachment(a domain.Attachment, ref domain.MessageRef) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return 0, ErrReleased
	}
	if step := domain.Step(r.machine.Current()); step != domain.StepAwaitingAttachments {
		return len(r.attachments), fmt.Errorf("session: attachments cannot be added at step %s", step)
	}
	r.attachments = append(r.attachments, a)
	r.trackLocked(ref)
	r.latestAttachment = ref
	return len(r.attachments), nil
}

// IsLatestAttachment reports whether ref is still the newest attachment
// message of a record that is collecting attachments.
func (r *Record) IsLatestAttachment(ref domain.MessageRef) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.released &&
		domain.Step(r.machine.Current()) == domain.StepAwaitingAttachments &&
		r.latestAttachment == ref
}

// Attachments returns a copy of the collected attachments.
func (r *Record) Attachments() []domain.Attachment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Attachment(nil), r.attachments...)
}

// Track adds message references to the cleanup set. It returns false when the
// record was already released; the caller then owns the deletion.
func (r *Record) Track(refs ...domain.MessageRef) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return false
	}
	for _, ref := range refs {
		r.trackLocked(ref)
	}
	return true
}

func (r *Record) trackLocked(ref domain.MessageRef) {
	if ref.IsZero() {
		return
	}
	if _, ok := r.trackedSet[ref]; ok {
		return
	}
	r.trackedSet[ref] = struct{}{}
	r.tracked = append(r.tracked, ref)
}

func (r *Record) untrackLocked(ref domain.MessageRef) {
	if _, ok := r.trackedSet[ref]; !ok {
		return
	}
	delete(r.trackedSet, ref)
	for i, t := range r.tracked {
		if t == ref {
			r.tracked = append(r.tracked[:i], r.tracked[i+1:]...)
			break
		}
	}
}

// IsTracked reports whether ref belongs to this session's scratch messages.
func (r *Record) IsTracked(ref domain.MessageRef) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.trackedSet[ref]
	return ok
}

// Tracked returns a copy of the cleanup set in insertion order.
func (r *Record) Tracked() []domain.MessageRef {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.MessageRef(nil), r.tracked...)
}

// LastSummary returns the live attachment-summary message, if any.
func (r *Record) LastSummary() (domain.MessageRef, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSummary, !r.lastSummary.IsZero()
}

// TakeSummary detaches the live attachment summary from the record and the
// cleanup set. The caller becomes responsible for deleting it.
func (r *Record) TakeSummary() (domain.MessageRef, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.lastSummary
	if old.IsZero() {
		return old, false
	}
	r.untrackLocked(old)
	r.lastSummary = domain.MessageRef{}
	return old, true
}

// SetSummary records ref as the live attachment summary and tracks it.
// It returns false when the record was already released.
func (r *Record) SetSummary(ref domain.MessageRef) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return false
	}
	if !r.lastSummary.IsZero() {
		r.untrackLocked(r.lastSummary)
	}
	r.lastSummary = ref
	r.trackLocked(ref)
	return true
}

// LockEmit serializes attachment-summary emission for this record.
func (r *Record) LockEmit() func() {
	r.emitMu.Lock()
	return r.emitMu.Unlock
}

// Report returns the collected answers as a report.
func (r *Record) Report() domain.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.Report{
		Author:      r.user,
		Brief:       r.fields[domain.FieldBrief],
		Description: r.fields[domain.FieldDescription],
		Location:    r.fields[domain.FieldLocation],
		Attachments: append([]domain.Attachment(nil), r.attachments...),
	}
}

// Released reports whether the record has been removed from its registry.
func (r *Record) Released() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.released
}

// release marks the record dead and hands back its cleanup set.
func (r *Record) release() []domain.MessageRef {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return nil
	}
	r.released = true
	out := r.tracked
	r.tracked = nil
	r.trackedSet = make(map[domain.MessageRef]struct{})
	r.lastSummary = domain.MessageRef{}
	r.latestAttachment = domain.MessageRef{}
	return out
}
