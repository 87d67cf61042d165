package scheduletrigger

import (
	"fmt"
	"time"
)

// Payload is the item emitted on each fire, rendered in loc.
func Payload(at time.Time, loc *time.Location) map[string]any {
	t := at.In(loc)
	return map[string]any{
		"timestamp":     t.Format("2006-01-02T15:04:05.000-07:00"),
		"Readable date": fmt.Sprintf("%s %s %d, %s", t.Format("January"), ordinal(t.Day()), t.Year(), t.Format("3:04:05 pm")),
		"Readable time": t.Format("3:04:05 pm"),
		"Day of week":   t.Format("Monday"),
		"Year":          t.Format("2006"),
		"Month":         t.Format("January"),
		"Day of month":  t.Format("02"),
		"Hour":          t.Format("15"),
		"Minute":        t.Format("04"),
		"Second":        t.Format("05"),
		"Timezone":      fmt.Sprintf("%s (UTC%s)", loc.String(), t.Format("-07:00")),
	}
}

func ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}
