// Package calendar renders an Event as an iCalendar document.
package calendar

import (
	"errors"
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"eventscout/common/models"
)

const ProductID = "-//eventscout//event-api//EN"

var ErrNoDate = errors.New("event has no usable date")

// Render returns a VCALENDAR with one all-day VEVENT for ev. When the day is
// unknown the event spans the whole month. stamp is written as DTSTAMP.
func Render(ev models.Event, stamp time.Time) (string, error) {
	if ev.Year <= 0 || ev.Month < 1 || ev.Month > 12 {
		return "", fmt.Errorf("%w: %04d-%02d", ErrNoDate, ev.Year, ev.Month)
	}

	var start, end time.Time
	if ev.HasDay() {
		start = time.Date(ev.Year, time.Month(ev.Month), ev.Day, 0, 0, 0, 0, time.UTC)
		if start.Month() != time.Month(ev.Month) {
			return "", fmt.Errorf("%w: %04d-%02d-%02d", ErrNoDate, ev.Year, ev.Month, ev.Day)
		}
		end = start.AddDate(0, 0, 1)
	} else {
		start = time.Date(ev.Year, time.Month(ev.Month), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, 0)
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)

	ve := cal.AddEvent(ev.ID + "@eventscout")
	ve.SetDtStampTime(stamp.UTC())
	ve.SetSummary(ev.Title)
	if ev.URL != "" {
		ve.SetURL(ev.URL)
	}
	if ev.ExtraInfo != "" {
		ve.SetDescription(ev.ExtraInfo)
	}
	ve.SetAllDayStartAt(start)
	ve.SetAllDayEndAt(end)

	return cal.Serialize(), nil
}
