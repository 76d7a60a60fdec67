package domain

// Step is a position in the intake form.
type Step string

const (
	StepNone                Step = "none"
	StepAwaitingBrief       Step = "awaiting_brief"
	StepAwaitingDescription Step = "awaiting_description"
	StepAwaitingLocation    Step = "awaiting_location"
	StepAwaitingAttachments Step = "awaiting_attachments"
)

// Known reports whether s is one of the defined steps.
func (s Step) Known() bool {
	switch s {
	case StepNone, StepAwaitingBrief, StepAwaitingDescription, StepAwaitingLocation, StepAwaitingAttachments:
		return true
	}
	return false
}

// Field names a text answer collected by the form.
type Field string

const (
	FieldBrief       Field = "brief"
	FieldDescription Field = "description"
	FieldLocation    Field = "location"
)

// AttachmentKind distinguishes the media types accepted as attachments.
type AttachmentKind string

const (
	AttachmentPhoto AttachmentKind = "photo"
	AttachmentVideo AttachmentKind = "video"
)

// Attachment is a platform file reference that can be re-posted.
type Attachment struct {
	Kind   AttachmentKind
	FileID string
}

// Report is the finished form.
type Report struct {
	Author      User
	Brief       string
	Description string
	Location    string
	Attachments []Attachment
}

// CountAttachments returns the number of photos and videos.
func CountAttachments(items []Attachment) (photos, videos int) {
	for _, a := range items {
		switch a.Kind {
		case AttachmentPhoto:
			photos++
		case AttachmentVideo:
			videos++
		}
	}
	return photos, videos
}
