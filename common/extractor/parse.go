package extractor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"eventscout/common/models"
)

type rawEvent struct {
	ID        *string `json:"id"`
	URL       *string `json:"url"`
	Title     *string `json:"title"`
	Year      *int    `json:"year"`
	Month     *int    `json:"month"`
	Day       *int    `json:"day"`
	ExtraInfo *string `json:"extra_info"`
}

func (r rawEvent) missing() []string {
	var out []string
	if r.ID == nil {
		out = append(out, "id")
	}
	if r.URL == nil {
		out = append(out, "url")
	}
	if r.Title == nil {
		out = append(out, "title")
	}
	if r.Year == nil {
		out = append(out, "year")
	}
	if r.Month == nil {
		out = append(out, "month")
	}
	if r.Day == nil {
		out = append(out, "day")
	}
	if r.ExtraInfo == nil {
		out = append(out, "extra_info")
	}
	return out
}

// Parse validates a model reply against the Event schema.
// id, url and title come from doc; a zero year or month is replaced by now's.
func Parse(reply string, doc models.Document, now time.Time) (models.Event, error) {
	body := stripFence(reply)
	dec := json.NewDecoder(strings.NewReader(body))
	dec.DisallowUnknownFields()
	var raw rawEvent
	if err := dec.Decode(&raw); err != nil {
		return models.Event{}, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return models.Event{}, fmt.Errorf("%w: trailing data after event object", ErrSchema)
	}
	if m := raw.missing(); len(m) > 0 {
		return models.Event{}, fmt.Errorf("%w: missing fields %s", ErrSchema, strings.Join(m, ", "))
	}

	ev := models.Event{
		ID:        doc.ID,
		URL:       doc.URL,
		Title:     doc.Title,
		Year:      *raw.Year,
		Month:     *raw.Month,
		Day:       *raw.Day,
		ExtraInfo: strings.TrimSpace(*raw.ExtraInfo),
	}
	if ev.Year < 0 {
		return models.Event{}, fmt.Errorf("%w: year %d out of range", ErrSchema, ev.Year)
	}
	if ev.Month < 0 || ev.Month > 12 {
		return models.Event{}, fmt.Errorf("%w: month %d out of range", ErrSchema, ev.Month)
	}
	if ev.Day < 0 || ev.Day > 31 {
		return models.Event{}, fmt.Errorf("%w: day %d out of range", ErrSchema, ev.Day)
	}
	if ev.Year == 0 {
		ev.Year = now.Year()
	}
	if ev.Month == 0 {
		ev.Month = int(now.Month())
	}
	if ev.HasDay() {
		d := time.Date(ev.Year, time.Month(ev.Month), ev.Day, 0, 0, 0, 0, time.UTC)
		if d.Month() != time.Month(ev.Month) {
			return models.Event{}, fmt.Errorf("%w: no day %d in %04d-%02d", ErrSchema, ev.Day, ev.Year, ev.Month)
		}
	}
	return ev, nil
}

// stripFence removes a surrounding markdown code fence, if any.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
