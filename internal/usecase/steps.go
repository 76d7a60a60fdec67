package usecase

import (
	"strings"
	"unicode/utf8"

	"support-bot/internal/domain"
)

// Action is what the orchestrator must do in response to an event.
type Action int

const (
	ActionIgnore Action = iota
	ActionReject
	ActionAdvance
	ActionAttach
	ActionFinish
	ActionCancel
	ActionReset
)

func (a Action) String() string {
	switch a {
	case ActionIgnore:
		return "ignore"
	case ActionReject:
		return "reject"
	case ActionAdvance:
		return "advance"
	case ActionAttach:
		return "attach"
	case ActionFinish:
		return "finish"
	case ActionCancel:
		return "cancel"
	case ActionReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Prompt names the message sent after a step is accepted.
type Prompt int

const (
	PromptNone Prompt = iota
	PromptDescription
	PromptLocation
	PromptAttachments
)

// ControlKind is the meaning of an inline button.
type ControlKind string

const (
	ControlSkip   ControlKind = "skip"
	ControlFinish ControlKind = "finish"
	ControlCancel ControlKind = "cancel"
)

// Decision is the outcome of evaluating one event against the current step.
type Decision struct {
	Action     Action
	Field      domain.Field
	Value      string
	Next       domain.Step
	Prompt     Prompt
	Attachment domain.Attachment
	Err        *Error
}

// Limits bounds the length of each text answer, in characters.
type Limits struct {
	Brief       int
	Description int
	Location    int
}

type textRule struct {
	field  domain.Field
	limit  int
	next   domain.Step
	prompt Prompt
}

// Engine decides step transitions. It holds no per-user state.
type Engine struct {
	rules map[domain.Step]textRule
}

// NewEngine builds the transition table for the given limits.
func NewEngine(l Limits) *Engine {
	return &Engine{rules: map[domain.Step]textRule{
		domain.StepAwaitingBrief:       {field: domain.FieldBrief, limit: l.Brief, next: domain.StepAwaitingDescription, prompt: PromptDescription},
		domain.StepAwaitingDescription: {field: domain.FieldDescription, limit: l.Description, next: domain.StepAwaitingLocation, prompt: PromptLocation},
		domain.StepAwaitingLocation:    {field: domain.FieldLocation, limit: l.Location, next: domain.StepAwaitingAttachments, prompt: PromptAttachments},
	}}
}

// Limit returns the length limit of the text step, or zero.
func (e *Engine) Limit(step domain.Step) int {
	return e.rules[step].limit
}

// OnMessage evaluates an inbound message at step.
func (e *Engine) OnMessage(step domain.Step, m domain.Message) Decision {
	if rule, ok := e.rules[step]; ok {
		d := rule.evaluate(m)
		if d.Action == ActionReject {
			d.Next = step
		}
		return d
	}
	switch step {
	case domain.StepNone:
		return Decision{Action: ActionIgnore, Next: domain.StepNone}
	case domain.StepAwaitingAttachments:
		if m.Media == nil {
			return Decision{Action: ActionReject, Next: step, Err: newError(ErrorMediaOnly, "not_an_attachment", nil)}
		}
		return Decision{Action: ActionAttach, Next: step, Attachment: *m.Media}
	default:
		return Decision{Action: ActionReset, Next: domain.StepNone, Err: newError(ErrorInvalidState, "unknown_step_"+string(step), nil)}
	}
}

// Length is checked before content type. Media carries no text, so an
// over-long caption is reported through the content-type path.
func (r textRule) evaluate(m domain.Message) Decision {
	text := strings.TrimSpace(m.Text)
	if utf8.RuneCountInString(text) > r.limit {
		return Decision{Action: ActionReject, Field: r.field, Err: newError(ErrorTooLong, string(r.field)+"_too_long", nil)}
	}
	if m.HasMedia() || text == "" {
		return Decision{Action: ActionReject, Field: r.field, Err: newError(ErrorTextOnly, string(r.field)+"_not_text", nil)}
	}
	return Decision{Action: ActionAdvance, Field: r.field, Value: text, Next: r.next, Prompt: r.prompt}
}

// OnControl evaluates a button press at step. Session ownership is checked by
// the caller before this is consulted.
func (e *Engine) OnControl(step domain.Step, kind ControlKind) Decision {
	switch kind {
	case ControlCancel:
		if step.Known() && step != domain.StepNone {
			return Decision{Action: ActionCancel, Next: domain.StepNone}
		}
	case ControlSkip, ControlFinish:
		if step == domain.StepAwaitingAttachments {
			return Decision{Action: ActionFinish, Next: domain.StepNone}
		}
	}
	return Decision{Action: ActionIgnore, Next: step, Err: newError(ErrorStaleControl, "control_"+string(kind)+"_at_"+string(step), nil)}
}

const controlSep = ":"

// controlData encodes a button payload bound to one session.
func controlData(kind ControlKind, sessionID string) string {
	return string(kind) + controlSep + sessionID
}

// parseControlData decodes a payload produced by controlData.
func parseControlData(data string) (ControlKind, string, bool) {
	kind, sessionID, ok := strings.Cut(data, controlSep)
	if !ok || sessionID == "" {
		return "", "", false
	}
	switch k := ControlKind(kind); k {
	case ControlSkip, ControlFinish, ControlCancel:
		return k, sessionID, true
	}
	return "", "", false
}
