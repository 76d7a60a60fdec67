package usecase

import (
	"strconv"
	"strings"
	"time"

	"support-bot/internal/config"
	"support-bot/internal/domain"
)

// render substitutes {key} placeholders in tmpl. kv holds key, value pairs.
func render(tmpl string, kv ...string) string {
	if len(kv) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		pairs = append(pairs, "{"+kv[i]+"}", kv[i+1])
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

func formatReport(m config.Messages, r domain.Report) string {
	orUnspecified := func(v string) string {
		if strings.TrimSpace(v) == "" {
			return m.Unspecified
		}
		return v
	}
	return strings.Join([]string{
		m.ReportTitle + ": " + r.Brief,
		m.ReportAuthor + ": " + r.Author.DisplayName(),
		m.ReportDescription + ": " + orUnspecified(r.Description),
		m.ReportLocation + ": " + orUnspecified(r.Location),
	}, "\n")
}

func formatSummary(m config.Messages, photos, videos int) string {
	return render(m.AttachmentSummary,
		"photos", strconv.Itoa(photos),
		"videos", strconv.Itoa(videos),
	)
}

// chunkAttachments splits items into consecutive batches of at most size.
func chunkAttachments(items []domain.Attachment, size int) [][]domain.Attachment {
	if size <= 0 {
		size = config.MaxMediaBatchSize
	}
	var out [][]domain.Attachment
	for len(items) > 0 {
		n := min(size, len(items))
		out = append(out, items[:n:n])
		items = items[n:]
	}
	return out
}

// WorkingHours is a daily [Start, End) window in Location.
type WorkingHours struct {
	Start    time.Duration
	End      time.Duration
	Location *time.Location
}

// Contains reports whether t falls inside the window.
func (w WorkingHours) Contains(t time.Time) bool {
	loc := w.Location
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	sinceMidnight := time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second
	return sinceMidnight >= w.Start && sinceMidnight < w.End
}
