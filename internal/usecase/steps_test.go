package usecase

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"support-bot/internal/domain"
)

func testEngine() *Engine {
	return NewEngine(Limits{Brief: 5, Description: 20, Location: 8})
}

func textMsg(s string) domain.Message { return domain.Message{Text: s} }

func TestOnMessage_TextSteps(t *testing.T) {
	e := testEngine()
	photo := &domain.Attachment{Kind: domain.AttachmentPhoto, FileID: "p"}

	cases := []struct {
		name   string
		step   domain.Step
		msg    domain.Message
		action Action
		code   ErrorCode
		next   domain.Step
		prompt Prompt
	}{
		{"brief at limit", domain.StepAwaitingBrief, textMsg("abcde"), ActionAdvance, "", domain.StepAwaitingDescription, PromptDescription},
		{"brief over limit", domain.StepAwaitingBrief, textMsg("abcdef"), ActionReject, ErrorTooLong, domain.StepAwaitingBrief, PromptNone},
		{"brief multibyte at limit", domain.StepAwaitingBrief, textMsg("приве"), ActionAdvance, "", domain.StepAwaitingDescription, PromptDescription},
		{"brief photo", domain.StepAwaitingBrief, domain.Message{Media: photo}, ActionReject, ErrorTextOnly, domain.StepAwaitingBrief, PromptNone},
		{"brief empty", domain.StepAwaitingBrief, textMsg("   "), ActionReject, ErrorTextOnly, domain.StepAwaitingBrief, PromptNone},
		{"brief sticker", domain.StepAwaitingBrief, domain.Message{OtherMedia: true}, ActionReject, ErrorTextOnly, domain.StepAwaitingBrief, PromptNone},
		{"long caption on media", domain.StepAwaitingBrief, domain.Message{Caption: strings.Repeat("x", 50), Media: photo}, ActionReject, ErrorTextOnly, domain.StepAwaitingBrief, PromptNone},
		{"description", domain.StepAwaitingDescription, textMsg("paper jam"), ActionAdvance, "", domain.StepAwaitingLocation, PromptLocation},
		{"description over", domain.StepAwaitingDescription, textMsg(strings.Repeat("d", 21)), ActionReject, ErrorTooLong, domain.StepAwaitingDescription, PromptNone},
		{"location", domain.StepAwaitingLocation, textMsg("204B"), ActionAdvance, "", domain.StepAwaitingAttachments, PromptAttachments},
		{"location video", domain.StepAwaitingLocation, domain.Message{Media: &domain.Attachment{Kind: domain.AttachmentVideo}}, ActionReject, ErrorTextOnly, domain.StepAwaitingLocation, PromptNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := e.OnMessage(tc.step, tc.msg)
			require.Equal(t, tc.action, d.Action)
			require.Equal(t, tc.next, d.Next)
			require.Equal(t, tc.prompt, d.Prompt)
			if tc.code == "" {
				require.Nil(t, d.Err)
			} else {
				require.NotNil(t, d.Err)
				require.Equal(t, tc.code, d.Err.Code)
			}
		})
	}
}

func TestOnMessage_LengthCheckedBeforeContent(t *testing.T) {
	d := testEngine().OnMessage(domain.StepAwaitingBrief, domain.Message{Text: "too long text", OtherMedia: true})
	require.Equal(t, ErrorTooLong, d.Err.Code)
}

func TestOnMessage_TrimsAcceptedValue(t *testing.T) {
	d := testEngine().OnMessage(domain.StepAwaitingBrief, textMsg("  abc \n"))
	require.Equal(t, ActionAdvance, d.Action)
	require.Equal(t, domain.FieldBrief, d.Field)
	require.Equal(t, "abc", d.Value)
}

func TestOnMessage_Attachments(t *testing.T) {
	e := testEngine()
	a := domain.Attachment{Kind: domain.AttachmentVideo, FileID: "v"}
	d := e.OnMessage(domain.StepAwaitingAttachments, domain.Message{Media: &a})
	require.Equal(t, ActionAttach, d.Action)
	require.Equal(t, a, d.Attachment)
	require.Equal(t, domain.StepAwaitingAttachments, d.Next)

	d = e.OnMessage(domain.StepAwaitingAttachments, textMsg("hi"))
	require.Equal(t, ActionReject, d.Action)
	require.Equal(t, ErrorMediaOnly, d.Err.Code)

	d = e.OnMessage(domain.StepAwaitingAttachments, domain.Message{OtherMedia: true})
	require.Equal(t, ActionReject, d.Action)
}

func TestOnMessage_NoneAndUnknown(t *testing.T) {
	e := testEngine()
	require.Equal(t, ActionIgnore, e.OnMessage(domain.StepNone, textMsg("x")).Action)

	d := e.OnMessage(domain.Step("bogus"), textMsg("x"))
	require.Equal(t, ActionReset, d.Action)
	require.Equal(t, domain.StepNone, d.Next)
	require.Equal(t, ErrorInvalidState, d.Err.Code)
}

func TestOnControl(t *testing.T) {
	e := testEngine()
	cases := []struct {
		step   domain.Step
		kind   ControlKind
		action Action
	}{
		{domain.StepAwaitingBrief, ControlCancel, ActionCancel},
		{domain.StepAwaitingAttachments, ControlCancel, ActionCancel},
		{domain.StepAwaitingAttachments, ControlSkip, ActionFinish},
		{domain.StepAwaitingAttachments, ControlFinish, ActionFinish},
		{domain.StepAwaitingLocation, ControlFinish, ActionIgnore},
		{domain.StepNone, ControlCancel, ActionIgnore},
		{domain.Step("bogus"), ControlCancel, ActionIgnore},
	}
	for _, tc := range cases {
		d := e.OnControl(tc.step, tc.kind)
		require.Equal(t, tc.action, d.Action, "step=%s kind=%s", tc.step, tc.kind)
		if tc.action == ActionIgnore {
			require.Equal(t, ErrorStaleControl, d.Err.Code)
		}
	}
}

func TestControlData_RoundTrip(t *testing.T) {
	data := controlData(ControlFinish, "0b8e7c3a-8f43-4a8e-9d1c-1f0e3f1f7a55")
	require.LessOrEqual(t, len(data), 64)
	kind, sid, ok := parseControlData(data)
	require.True(t, ok)
	require.Equal(t, ControlFinish, kind)
	require.Equal(t, "0b8e7c3a-8f43-4a8e-9d1c-1f0e3f1f7a55", sid)

	for _, bad := range []string{"", "finish", "finish:", "explode:abc", "Не прикреплять"} {
		_, _, ok := parseControlData(bad)
		require.False(t, ok, "data=%q", bad)
	}
}

func TestStepMonotonicity(t *testing.T) {
	e := testEngine()
	step := domain.StepAwaitingBrief
	var visited []domain.Step
	for _, answer := range []string{"abc", "paper jam", "204B"} {
		visited = append(visited, step)
		// A rejection in between never moves the step.
		require.Equal(t, step, e.OnMessage(step, textMsg(strings.Repeat("z", 30))).Next)
		d := e.OnMessage(step, textMsg(answer))
		require.Equal(t, ActionAdvance, d.Action)
		step = d.Next
	}
	visited = append(visited, step)
	require.Equal(t, []domain.Step{
		domain.StepAwaitingBrief,
		domain.StepAwaitingDescription,
		domain.StepAwaitingLocation,
		domain.StepAwaitingAttachments,
	}, visited)
}
