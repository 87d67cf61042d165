// Package cron turns business hours and interval rules into cron expressions.
package cron

import (
	"fmt"
	"strings"

	"callflow/backend/internal/schedule/domain"
)

var dayNumbers = map[string]int{
	"sunday":    0,
	"monday":    1,
	"tuesday":   2,
	"wednesday": 3,
	"thursday":  4,
	"friday":    5,
	"saturday":  6,
}

// CreateCronIntervals returns 5-field cron expressions that fire every frequency minutes
// inside each active slot. Inactive days, unknown day names, unparsable slots and empty
// ranges are skipped. "24:00" is treated as 23:59.
func CreateCronIntervals(hours domain.WeeklySchedule, frequency int) []string {
	if frequency <= 0 {
		frequency = 1
	}
	var out []string
	for _, day := range hours {
		if !day.IsActive {
			continue
		}
		dow, ok := dayNumbers[strings.ToLower(day.Day)]
		if !ok || len(day.Slots) == 0 {
			continue
		}
		for _, slot := range day.Slots {
			out = append(out, slotExpressions(slot, dow, frequency)...)
		}
	}
	return out
}

func slotExpressions(slot domain.Slot, dow, f int) []string {
	fromHour, fromMin, err := domain.ParseClock(slot.From)
	if err != nil {
		return nil
	}
	toHour, toMin, err := domain.ParseClock(slot.To)
	if err != nil {
		return nil
	}
	if toHour == 24 && toMin == 0 {
		toHour, toMin = 23, 59
	}
	if fromHour > toHour || (fromHour == toHour && fromMin >= toMin) {
		return nil
	}

	if fromHour == toHour {
		return []string{fmt.Sprintf("%d-%d/%d %d * * %d", fromMin, toMin-1, f, fromHour, dow)}
	}

	var out []string
	if fromMin > 0 {
		out = append(out, fmt.Sprintf("%d-59/%d %d * * %d", fromMin, f, fromHour, dow))
	} else {
		out = append(out, fmt.Sprintf("*/%d %d * * %d", f, fromHour, dow))
	}
	if start, end := fromHour+1, toHour-1; start <= end {
		out = append(out, fmt.Sprintf("*/%d %d-%d * * %d", f, start, end, dow))
	}
	if toMin > 0 {
		out = append(out, fmt.Sprintf("0-%d/%d %d * * %d", toMin-1, f, toHour, dow))
	}
	return out
}
