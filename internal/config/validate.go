package config

import (
	"fmt"
	"strings"
	"time"
)

// MaxMediaBatchSize is the platform limit for one grouped media post.
const MaxMediaBatchSize = 10

// Validate performs business-rule validation on the loaded configuration and
// fills the derived fields. Load calls it automatically.
func (c *Config) Validate() error {
	if err := c.Intake.validate(); err != nil {
		return fmt.Errorf("intake: %w", err)
	}
	if c.Telegram.PollTimeout <= 0 {
		return fmt.Errorf("telegram.poll_timeout must be > 0 (got %s)", c.Telegram.PollTimeout)
	}
	if c.Telegram.RequestTimeout <= c.Telegram.PollTimeout {
		return fmt.Errorf("telegram.request_timeout (%s) must exceed poll_timeout (%s)", c.Telegram.RequestTimeout, c.Telegram.PollTimeout)
	}
	c.Messages = c.Messages.WithDefaults()
	return nil
}

func (c *IntakeConfig) validate() error {
	limits := []struct {
		name string
		v    int
	}{
		{"max_brief_length", c.MaxBriefLength},
		{"max_description_length", c.MaxDescriptionLength},
		{"max_location_length", c.MaxLocationLength},
	}
	for _, l := range limits {
		if l.v <= 0 {
			return fmt.Errorf("%s must be > 0 (got %d)", l.name, l.v)
		}
	}
	if c.QuietInterval <= 0 {
		return fmt.Errorf("quiet_interval must be > 0 (got %s)", c.QuietInterval)
	}
	if c.MediaBatchSize < 1 || c.MediaBatchSize > MaxMediaBatchSize {
		return fmt.Errorf("media_batch_size must be within 1..%d (got %d)", MaxMediaBatchSize, c.MediaBatchSize)
	}

	start, err := ParseClock(c.WorkStartRaw)
	if err != nil {
		return fmt.Errorf("work_start: %w", err)
	}
	end, err := ParseClock(c.WorkEndRaw)
	if err != nil {
		return fmt.Errorf("work_end: %w", err)
	}
	if start >= end {
		return fmt.Errorf("work_start (%s) must be before work_end (%s)", c.WorkStartRaw, c.WorkEndRaw)
	}
	c.WorkStart, c.WorkEnd = start, end

	loc, err := time.LoadLocation(strings.TrimSpace(c.Timezone))
	if err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	c.Location = loc
	return nil
}

// ParseClock parses "HH:MM" into an offset from midnight.
func ParseClock(raw string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q, want HH:MM", raw)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
