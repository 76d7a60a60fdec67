package domain

import "strconv"

// User is the originating chat user of an inbound event.
type User struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// DisplayName returns the form used in reports: @username when available,
// otherwise the full name, otherwise the numeric id.
func (u User) DisplayName() string {
	switch {
	case u.Username != "":
		return "@" + u.Username
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	default:
		return "id" + strconv.FormatInt(u.ID, 10)
	}
}

// ChatType mirrors the platform chat kinds the bot distinguishes.
type ChatType string

const (
	ChatPrivate    ChatType = "private"
	ChatGroup      ChatType = "group"
	ChatSupergroup ChatType = "supergroup"
	ChatChannel    ChatType = "channel"
)

// ChatRef addresses a chat and, for forum supergroups, a thread inside it.
// ThreadID zero means the main thread.
type ChatRef struct {
	ID       int64
	ThreadID int
}

// MessageRef identifies a single message the bot can later delete.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// IsZero reports whether the reference is unset.
func (r MessageRef) IsZero() bool {
	return r.ChatID == 0 && r.MessageID == 0
}

// Control is an inline button attached to an outgoing message.
type Control struct {
	Label string
	Data  string
}

// Message is an inbound text or media message.
type Message struct {
	Ref      MessageRef
	Chat     ChatRef
	ChatType ChatType
	From     User
	Text     string
	Caption  string
	// Media holds the attachment carried by the message, if it is one the
	// intake form accepts.
	Media *Attachment
	// OtherMedia is set for media the form never accepts (documents,
	// stickers, voice notes...).
	OtherMedia bool
}

// HasMedia reports whether the message carries any media at all.
func (m Message) HasMedia() bool {
	return m.Media != nil || m.OtherMedia
}

// Callback is an inline button press.
type Callback struct {
	ID     string
	From   User
	Origin MessageRef
	Chat   ChatRef
	Data   string
}
