package schedule

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/teambition/rrule-go"

	"github.com/classtrackapp/classtrack/internal/models"
	"github.com/classtrackapp/classtrack/internal/service/calendar"
)

var validate = validator.New()

// NormalizeCalendarEvents maps provider events into canonical schedule items
// in the given zone. Pure: no I/O, no clock reads, identical input yields
// identical output. Items that can't form a valid day/start/end triple are
// reported, never raised.
func NormalizeCalendarEvents(loc *time.Location, events []calendar.Event) ([]models.ScheduleItem, []models.ImportError) {
	var items []models.ScheduleItem
	var errs []models.ImportError

	reject := func(ev calendar.Event, reason string) {
		errs = append(errs, models.ImportError{
			Title:      ev.Title,
			ExternalID: ev.ID,
			Stage:      models.StageNormalize,
			Reason:     reason,
		})
	}

	for _, ev := range events {
		if ev.Status == "cancelled" {
			continue
		}

		title := strings.TrimSpace(ev.Title)
		if title == "" {
			reject(ev, "missing title")
			continue
		}
		if ev.ID == "" {
			reject(ev, "missing event id")
			continue
		}
		if ev.Start.DateTime.IsZero() || ev.End.DateTime.IsZero() {
			// Covers all-day events too, which carry a date only and
			// have no clock times to build a schedule entry from
			reject(ev, "event has no usable start/end times")
			continue
		}

		start := ev.Start.DateTime.In(loc)
		end := ev.End.DateTime.In(loc)
		startClock := models.NewClock(start.Hour(), start.Minute())
		endClock := models.NewClock(end.Hour(), end.Minute())
		if startClock >= endClock {
			reject(ev, fmt.Sprintf("start %s is not before end %s", startClock, endClock))
			continue
		}

		days := recurrenceWeekdays(ev.Recurrence, start.Weekday())

		for _, day := range days {
			externalID := ev.ID
			if len(days) > 1 {
				// One provider event expanded over several weekdays
				// still needs a distinct dedup key per weekday
				externalID = fmt.Sprintf("%s:%d", ev.ID, int(day))
			}

			items = append(items, models.ScheduleItem{
				Title:      title,
				Day:        day,
				Start:      startClock,
				End:        endClock,
				Location:   scrubLocation(ev.Location),
				Source:     models.SourceCalendar,
				ExternalID: externalID,
			})
		}
	}

	return items, errs
}

// recurrenceWeekdays resolves which weekdays an event occupies. A weekly
// RRULE with BYDAY spreads the entry over those days; everything else keeps
// the start weekday.
func recurrenceWeekdays(recurrence []string, fallback time.Weekday) []time.Weekday {
	for _, line := range recurrence {
		rule, ok := strings.CutPrefix(line, "RRULE:")
		if !ok {
			continue
		}

		opt, err := rrule.StrToROption(rule)
		if err != nil || opt.Freq != rrule.WEEKLY || len(opt.Byweekday) == 0 {
			break
		}

		days := make([]time.Weekday, 0, len(opt.Byweekday))
		for _, wd := range opt.Byweekday {
			// rrule counts from Monday=0, time.Weekday from Sunday=0
			days = append(days, time.Weekday((wd.Day()+1)%7))
		}
		sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
		return days
	}

	return []time.Weekday{fallback}
}

// NormalizeExtracted validates and maps the untrusted extraction-service
// output into canonical items. Same purity and reporting rules as the
// calendar path.
func NormalizeExtracted(raw []models.ExtractedScheduleItem) ([]models.ScheduleItem, []models.ImportError) {
	var items []models.ScheduleItem
	var errs []models.ImportError

	reject := func(item models.ExtractedScheduleItem, reason string) {
		errs = append(errs, models.ImportError{
			Title:  item.Title,
			Stage:  models.StageNormalize,
			Reason: reason,
		})
	}

	for _, r := range raw {
		if err := validate.Struct(r); err != nil {
			if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
				reject(r, fmt.Sprintf("missing field %s", strings.ToLower(verrs[0].Field())))
			} else {
				reject(r, err.Error())
			}
			continue
		}

		day, err := models.ParseWeekday(r.Day)
		if err != nil {
			reject(r, err.Error())
			continue
		}
		start, err := models.ParseClock(r.Start)
		if err != nil {
			reject(r, fmt.Sprintf("start time: %v", err))
			continue
		}
		end, err := models.ParseClock(r.End)
		if err != nil {
			reject(r, fmt.Sprintf("end time: %v", err))
			continue
		}
		if start >= end {
			reject(r, fmt.Sprintf("start %s is not before end %s", start, end))
			continue
		}

		items = append(items, models.ScheduleItem{
			Title:    strings.TrimSpace(r.Title),
			Day:      day,
			Start:    start,
			End:      end,
			Location: scrubLocation(r.Location),
			Source:   models.SourceImage,
		})
	}

	return items, errs
}

// A location that still says "room TBD" in any spelling carries no
// information, treat it as unset rather than surfacing the placeholder
func scrubLocation(location string) string {
	location = strings.TrimSpace(location)
	if strings.Contains(strings.ToLower(location), "room tbd") {
		return ""
	}
	return location
}
