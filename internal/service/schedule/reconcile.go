package schedule

import (
	"strings"
	"time"

	"github.com/classtrackapp/classtrack/internal/models"
)

// ReconcileResult splits incoming items into the ones to persist and the
// ones already imported.
type ReconcileResult struct {
	ToCreate []models.ScheduleItem
	ToSkip   []models.ScheduleItem
}

type structuralKey struct {
	title string
	day   time.Weekday
	start models.ClockTime
	end   models.ClockTime
}

func keyOf(item models.ScheduleItem) structuralKey {
	return structuralKey{
		title: strings.ToLower(item.Title),
		day:   item.Day,
		start: item.Start,
		end:   item.End,
	}
}

// Reconcile decides, per incoming item, whether it is already imported and
// must be skipped, never overwritten. Pure computation: the caller supplies
// a consistent snapshot of existing items.
//
// Calendar-sourced items dedup by exact ExternalID match against existing
// calendar items, so repeated syncs over overlapping windows don't duplicate
// entries. Image-sourced items have no stable identifier and dedup by the
// structural (title case-insensitive, day, start, end) tuple; any field
// difference makes a distinct new item, preferring a duplicate over silent
// loss.
func Reconcile(existing []models.ScheduleItem, incoming []models.ScheduleItem) ReconcileResult {
	byExternalID := make(map[string]struct{})
	byStructure := make(map[structuralKey]struct{})

	for _, item := range existing {
		if item.Source == models.SourceCalendar && item.ExternalID != "" {
			byExternalID[item.ExternalID] = struct{}{}
		}
		byStructure[keyOf(item)] = struct{}{}
	}

	var result ReconcileResult
	for _, item := range incoming {
		var seen bool
		switch {
		case item.Source == models.SourceCalendar && item.ExternalID != "":
			_, seen = byExternalID[item.ExternalID]
		default:
			_, seen = byStructure[keyOf(item)]
		}

		if seen {
			result.ToSkip = append(result.ToSkip, item)
			continue
		}
		result.ToCreate = append(result.ToCreate, item)
	}

	return result
}
