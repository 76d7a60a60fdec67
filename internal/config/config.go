package config

import "time"

// Config is the root application configuration.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Intake   IntakeConfig   `yaml:"intake"`
	Messages Messages       `yaml:"messages"`
	Log      LogConfig      `yaml:"log"`
}

// TelegramConfig holds Bot API connection settings.
type TelegramConfig struct {
	BaseURL        string        `yaml:"base_url"        env:"TELEGRAM_BASE_URL"        env-default:"https://api.telegram.org"`
	Token          string        `yaml:"token"           env:"TELEGRAM_TOKEN"`
	TokenFile      string        `yaml:"token_file"      env:"TELEGRAM_TOKEN_FILE"      env-default:"./token.txt"`
	TokenParameter string        `yaml:"token_parameter" env:"TELEGRAM_TOKEN_PARAMETER"`
	PollTimeout    time.Duration `yaml:"poll_timeout"    env:"TELEGRAM_POLL_TIMEOUT"    env-default:"30s"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"TELEGRAM_REQUEST_TIMEOUT" env-default:"60s"`
	DropPending    bool          `yaml:"drop_pending"    env:"TELEGRAM_DROP_PENDING"    env-default:"true"`
}

// IntakeConfig holds the report form settings.
type IntakeConfig struct {
	MaxBriefLength       int           `yaml:"max_brief_length"       env:"INTAKE_MAX_BRIEF_LENGTH"       env-default:"128"`
	MaxDescriptionLength int           `yaml:"max_description_length" env:"INTAKE_MAX_DESCRIPTION_LENGTH" env-default:"2048"`
	MaxLocationLength    int           `yaml:"max_location_length"    env:"INTAKE_MAX_LOCATION_LENGTH"    env-default:"128"`
	QuietInterval        time.Duration `yaml:"quiet_interval"         env:"INTAKE_QUIET_INTERVAL"         env-default:"700ms"`
	MediaBatchSize       int           `yaml:"media_batch_size"       env:"INTAKE_MEDIA_BATCH_SIZE"       env-default:"10"`
	WorkStartRaw         string        `yaml:"work_start"             env:"INTAKE_WORK_START"             env-default:"09:00"`
	WorkEndRaw           string        `yaml:"work_end"               env:"INTAKE_WORK_END"               env-default:"18:00"`
	Timezone             string        `yaml:"timezone"               env:"INTAKE_TIMEZONE"               env-default:"Local"`
	GroupLink            string        `yaml:"group_link"             env:"INTAKE_GROUP_LINK"`

	// WorkStart and WorkEnd are offsets from local midnight, parsed during validation.
	WorkStart time.Duration `yaml:"-" env:"-"`
	WorkEnd   time.Duration `yaml:"-" env:"-"`
	// Location is loaded from Timezone during validation.
	Location *time.Location `yaml:"-" env:"-"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
	File   string `yaml:"file"   env:"LOG_FILE"   env-default:"./latest.log"`
	Append bool   `yaml:"append" env:"LOG_APPEND" env-default:"false"`
}

// Messages is the catalog of user-visible strings. Placeholders in braces
// are substituted at render time. Empty entries fall back to the defaults.
type Messages struct {
	PromptBrief       string `yaml:"prompt_brief"`
	PromptDescription string `yaml:"prompt_description"`
	PromptLocation    string `yaml:"prompt_location"`
	PromptAttachments string `yaml:"prompt_attachments"`
	// AttachmentSummary accepts {photos} and {videos}.
	AttachmentSummary string `yaml:"attachment_summary"`
	// WarnTooLong accepts {limit}.
	WarnTooLong   string `yaml:"warn_too_long"`
	WarnTextOnly  string `yaml:"warn_text_only"`
	WarnMediaOnly string `yaml:"warn_media_only"`

	ReportTitle       string `yaml:"report_title"`
	ReportAuthor      string `yaml:"report_author"`
	ReportDescription string `yaml:"report_description"`
	ReportLocation    string `yaml:"report_location"`
	Unspecified       string `yaml:"unspecified"`
	OutOfHours        string `yaml:"out_of_hours"`

	// PrivateChat accepts {link}.
	PrivateChat string `yaml:"private_chat"`
	Cancelled   string `yaml:"cancelled"`
	Outdated    string `yaml:"outdated"`

	ButtonSkip   string `yaml:"button_skip"`
	ButtonFinish string `yaml:"button_finish"`
	ButtonCancel string `yaml:"button_cancel"`

	CommandDescription string `yaml:"command_description"`
}

// DefaultMessages returns the built-in catalog.
func DefaultMessages() Messages {
	return Messages{
		PromptBrief:       "Describe your problem briefly:",
		PromptDescription: "Give a detailed description of the problem:",
		PromptLocation:    "Enter your room number and building letter:",
		PromptAttachments: "You can send photos or videos to attach them to the report.",
		AttachmentSummary: "You attached {photos} photo(s) and {videos} video(s). Send more or finish the report with the button below.",
		WarnTooLong:       "The message is too long. Please keep it within {limit} characters.",
		WarnTextOnly:      "Please answer with a text message only.",
		WarnMediaOnly:     "Send a photo or a video, or finish the report with the button.",

		ReportTitle:       "Report",
		ReportAuthor:      "Created by",
		ReportDescription: "Description",
		ReportLocation:    "Location",
		Unspecified:       "not specified",
		OutOfHours:        "The report was created outside working hours (09:00-18:00). It will be handled on the next working day.",

		PrivateChat: "This bot does not work in private chats. To file a report, join the group: {link}",
		Cancelled:   "Report cancelled.",
		Outdated:    "This button is outdated.",

		ButtonSkip:   "Don't attach",
		ButtonFinish: "Finish report",
		ButtonCancel: "Cancel",

		CommandDescription: "File a problem report.",
	}
}

// WithDefaults returns m with every empty entry taken from DefaultMessages.
func (m Messages) WithDefaults() Messages {
	d := DefaultMessages()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&m.PromptBrief, d.PromptBrief)
	fill(&m.PromptDescription, d.PromptDescription)
	fill(&m.PromptLocation, d.PromptLocation)
	fill(&m.PromptAttachments, d.PromptAttachments)
	fill(&m.AttachmentSummary, d.AttachmentSummary)
	fill(&m.WarnTooLong, d.WarnTooLong)
	fill(&m.WarnTextOnly, d.WarnTextOnly)
	fill(&m.WarnMediaOnly, d.WarnMediaOnly)
	fill(&m.ReportTitle, d.ReportTitle)
	fill(&m.ReportAuthor, d.ReportAuthor)
	fill(&m.ReportDescription, d.ReportDescription)
	fill(&m.ReportLocation, d.ReportLocation)
	fill(&m.Unspecified, d.Unspecified)
	fill(&m.OutOfHours, d.OutOfHours)
	fill(&m.PrivateChat, d.PrivateChat)
	fill(&m.Cancelled, d.Cancelled)
	fill(&m.Outdated, d.Outdated)
	fill(&m.ButtonSkip, d.ButtonSkip)
	fill(&m.ButtonFinish, d.ButtonFinish)
	fill(&m.ButtonCancel, d.ButtonCancel)
	fill(&m.CommandDescription, d.CommandDescription)
	return m
}
