package telegram

import (
	"encoding/json"

	"support-bot/internal/domain"
)

// Update is the subset of a Bot API update the bot consumes.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"` // private|group|supergroup|channel
}

type PhotoSize struct {
	FileID   string `json:"file_id"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
}

type Video struct {
	FileID   string `json:"file_id"`
	Duration int    `json:"duration,omitempty"`
}

type Message struct {
	MessageID       int         `json:"message_id"`
	MessageThreadID int         `json:"message_thread_id,omitempty"`
	IsTopicMessage  bool        `json:"is_topic_message,omitempty"`
	Date            int64       `json:"date"`
	From            *User       `json:"from,omitempty"`
	Chat            Chat        `json:"chat"`
	Text            string      `json:"text,omitempty"`
	Caption         string      `json:"caption,omitempty"`
	MediaGroupID    string      `json:"media_group_id,omitempty"`
	Photo           []PhotoSize `json:"photo,omitempty"`
	Video           *Video      `json:"video,omitempty"`

	// Media kinds the form never accepts; only presence matters.
	Document  json.RawMessage `json:"document,omitempty"`
	Animation json.RawMessage `json:"animation,omitempty"`
	Audio     json.RawMessage `json:"audio,omitempty"`
	Voice     json.RawMessage `json:"voice,omitempty"`
	VideoNote json.RawMessage `json:"video_note,omitempty"`
	Sticker   json.RawMessage `json:"sticker,omitempty"`
}

type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type inlineKeyboard struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

type sendMessageRequest struct {
	ChatID          int64           `json:"chat_id"`
	MessageThreadID int             `json:"message_thread_id,omitempty"`
	Text            string          `json:"text"`
	ReplyMarkup     *inlineKeyboard `json:"reply_markup,omitempty"`
}

type deleteMessageRequest struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int   `json:"message_id"`
}

type inputMedia struct {
	Type  string `json:"type"`
	Media string `json:"media"`
}

type sendMediaGroupRequest struct {
	ChatID          int64        `json:"chat_id"`
	MessageThreadID int          `json:"message_thread_id,omitempty"`
	Media           []inputMedia `json:"media"`
}

type sendPhotoRequest struct {
	ChatID          int64  `json:"chat_id"`
	MessageThreadID int    `json:"message_thread_id,omitempty"`
	Photo           string `json:"photo"`
}

type sendVideoRequest struct {
	ChatID          int64  `json:"chat_id"`
	MessageThreadID int    `json:"message_thread_id,omitempty"`
	Video           string `json:"video"`
}

type answerCallbackRequest struct {
	CallbackQueryID string `json:"callback_query_id"`
	Text            string `json:"text,omitempty"`
}

// Command is one entry of the bot's command menu.
type Command struct {
	Command     string `json:"command"`
	Description string `json:"description"`
}

type commandScope struct {
	Type string `json:"type"`
}

type setMyCommandsRequest struct {
	Commands []Command    `json:"commands"`
	Scope    commandScope `json:"scope"`
}

type getUpdatesRequest struct {
	Offset         int64    `json:"offset,omitempty"`
	Timeout        int      `json:"timeout"`
	AllowedUpdates []string `json:"allowed_updates"`
}

type deleteWebhookRequest struct {
	DropPendingUpdates bool `json:"drop_pending_updates"`
}

// envelope is the common Bot API response wrapper.
type envelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
}

func (u User) domain() domain.User {
	return domain.User{ID: u.ID, Username: u.Username, FirstName: u.FirstName, LastName: u.LastName}
}

// chatRef returns the chat address of m. Only forum topic messages carry a
// thread the bot can post into.
func (m *Message) chatRef() domain.ChatRef {
	ref := domain.ChatRef{ID: m.Chat.ID}
	if m.IsTopicMessage {
		ref.ThreadID = m.MessageThreadID
	}
	return ref
}

func (m *Message) ref() domain.MessageRef {
	return domain.MessageRef{ChatID: m.Chat.ID, MessageID: m.MessageID}
}

// DomainMessage converts m into the form's inbound message. ok is false for
// messages without a sender.
func (m *Message) DomainMessage() (domain.Message, bool) {
	if m == nil || m.From == nil {
		return domain.Message{}, false
	}
	out := domain.Message{
		Ref:      m.ref(),
		Chat:     m.chatRef(),
		ChatType: domain.ChatType(m.Chat.Type),
		From:     m.From.domain(),
		Text:     m.Text,
		Caption:  m.Caption,
	}
	switch {
	case len(m.Photo) > 0:
		// Sizes are ascending; keep the largest.
		out.Media = &domain.Attachment{Kind: domain.AttachmentPhoto, FileID: m.Photo[len(m.Photo)-1].FileID}
	case m.Video != nil:
		out.Media = &domain.Attachment{Kind: domain.AttachmentVideo, FileID: m.Video.FileID}
	}
	out.OtherMedia = out.Media == nil && (len(m.Document) > 0 || len(m.Animation) > 0 || len(m.Audio) > 0 ||
		len(m.Voice) > 0 || len(m.VideoNote) > 0 || len(m.Sticker) > 0)
	return out, true
}

// DomainCallback converts q into the form's button press.
func (q *CallbackQuery) DomainCallback() domain.Callback {
	cb := domain.Callback{ID: q.ID, From: q.From.domain(), Data: q.Data}
	if q.Message != nil {
		cb.Origin = q.Message.ref()
		cb.Chat = q.Message.chatRef()
	}
	return cb
}
