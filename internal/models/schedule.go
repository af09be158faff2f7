package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	SourceImage    = "image"
	SourceCalendar = "calendar"
)

var ErrUnparsableClock = errors.New("unparsable clock time")

// ClockTime is a time of day as minutes since midnight. Keeping it as a
// plain offset makes items comparable without dragging a date or zone along.
type ClockTime int

func NewClock(hour int, minute int) ClockTime {
	return ClockTime(hour*60 + minute)
}

// ParseClock accepts the formats the extraction service is known to emit:
// "15:04", "3:04 PM" and "3:04PM".
func ParseClock(s string) (ClockTime, error) {
	s = strings.TrimSpace(s)

	for _, layout := range []string{"15:04", "3:04 PM", "3:04PM", "3:04 pm", "3:04pm"} {
		t, err := time.Parse(layout, s)
		if err == nil {
			return NewClock(t.Hour(), t.Minute()), nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnparsableClock, s)
}

func (c ClockTime) Hour() int   { return int(c) / 60 }
func (c ClockTime) Minute() int { return int(c) % 60 }

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// ParseWeekday accepts full English day names and three-letter abbreviations
// in any case.
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || name == full[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// ScheduleItem is the canonical recurring entry every source is normalized
// into before dedup and commit. Never mutated after creation: a re-import
// produces new items compared against existing ones.
type ScheduleItem struct {
	ID       uuid.UUID
	Title    string
	Day      time.Weekday
	Start    ClockTime
	End      ClockTime
	Location string // empty means unset
	Source   string // SourceImage or SourceCalendar

	// Stable provider event id. Set for calendar-sourced items only and
	// used as the dedup key for them.
	ExternalID string
}

// ExtractedScheduleItem is the untrusted shape produced by the image
// extraction service. Validated field by field before normalization.
type ExtractedScheduleItem struct {
	Title    string `json:"title" validate:"required"`
	Day      string `json:"day" validate:"required"`
	Start    string `json:"startTime" validate:"required"`
	End      string `json:"endTime" validate:"required"`
	Location string `json:"location,omitempty"`
	Type     string `json:"type,omitempty"`
	Color    string `json:"color,omitempty"`
}
