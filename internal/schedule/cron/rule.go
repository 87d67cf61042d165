package cron

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	robfig "github.com/robfig/cron/v3"
)

// ErrInvalidExpression is returned when a cron expression cannot be parsed.
var ErrInvalidExpression = errors.New("Invalid cron expression")

// Field is the unit of an interval rule.
type Field string

const (
	FieldSeconds        Field = "seconds"
	FieldMinutes        Field = "minutes"
	FieldHours          Field = "hours"
	FieldDays           Field = "days"
	FieldWeeks          Field = "weeks"
	FieldMonths         Field = "months"
	FieldCronExpression Field = "cronExpression"
)

// Rule is one trigger interval.
type Rule struct {
	Field               Field  `json:"field" yaml:"field"`
	SecondsInterval     int    `json:"secondsInterval,omitempty" yaml:"secondsInterval,omitempty"`
	MinutesInterval     int    `json:"minutesInterval,omitempty" yaml:"minutesInterval,omitempty"`
	HoursInterval       int    `json:"hoursInterval,omitempty" yaml:"hoursInterval,omitempty"`
	DaysInterval        int    `json:"daysInterval,omitempty" yaml:"daysInterval,omitempty"`
	WeeksInterval       int    `json:"weeksInterval,omitempty" yaml:"weeksInterval,omitempty"`
	MonthsInterval      int    `json:"monthsInterval,omitempty" yaml:"monthsInterval,omitempty"`
	TriggerAtHour       *int   `json:"triggerAtHour,omitempty" yaml:"triggerAtHour,omitempty"`
	TriggerAtMinute     *int   `json:"triggerAtMinute,omitempty" yaml:"triggerAtMinute,omitempty"`
	TriggerAtDay        []int  `json:"triggerAtDay,omitempty" yaml:"triggerAtDay,omitempty"`
	TriggerAtDayOfMonth *int   `json:"triggerAtDayOfMonth,omitempty" yaml:"triggerAtDayOfMonth,omitempty"`
	Expression          string `json:"expression,omitempty" yaml:"expression,omitempty"`
}

// ExpressionRules wraps each expression in a cronExpression rule.
func ExpressionRules(exprs []string) []Rule {
	out := make([]Rule, len(exprs))
	for i, e := range exprs {
		out[i] = Rule{Field: FieldCronExpression, Expression: e}
	}
	return out
}

func orOne(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

func orZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// ToCronExpression renders the rule as a cron expression. Interval rules produce 6 fields
// starting with seconds (always 0 except for the seconds rule); cronExpression rules are
// returned unchanged.
func ToCronExpression(r Rule) string {
	minute := orZero(r.TriggerAtMinute)
	hour := orZero(r.TriggerAtHour)
	switch r.Field {
	case FieldSeconds:
		return fmt.Sprintf("*/%d * * * * *", orOne(r.SecondsInterval))
	case FieldMinutes:
		return fmt.Sprintf("0 */%d * * * *", orOne(r.MinutesInterval))
	case FieldHours:
		return fmt.Sprintf("0 %d */%d * * *", minute, orOne(r.HoursInterval))
	case FieldDays:
		return fmt.Sprintf("0 %d %d */%d * *", minute, hour, orOne(r.DaysInterval))
	case FieldWeeks:
		days := "*"
		if len(r.TriggerAtDay) > 0 {
			parts := make([]string, len(r.TriggerAtDay))
			for i, d := range r.TriggerAtDay {
				parts[i] = strconv.Itoa(d)
			}
			days = strings.Join(parts, ",")
		}
		return fmt.Sprintf("0 %d %d * * %s", minute, hour, days)
	case FieldMonths:
		dom := 1
		if r.TriggerAtDayOfMonth != nil {
			dom = *r.TriggerAtDayOfMonth
		}
		return fmt.Sprintf("0 %d %d %d */%d *", minute, hour, dom, orOne(r.MonthsInterval))
	default:
		return r.Expression
	}
}

var parser = robfig.NewParser(robfig.SecondOptional | robfig.Minute | robfig.Hour |
	robfig.Dom | robfig.Month | robfig.Dow | robfig.Descriptor)

// Parse parses a 5- or 6-field expression.
func Parse(expr string) (robfig.Schedule, error) {
	s, err := parser.Parse(strings.TrimSpace(expr))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidExpression, expr, err)
	}
	return s, nil
}

// Validate reports whether expr parses.
func Validate(expr string) error {
	_, err := Parse(expr)
	return err
}

// Next returns the next activation times of expr after from, evaluated in loc.
func Next(expr string, from time.Time, loc *time.Location, n int) ([]time.Time, error) {
	s, err := Parse(expr)
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, 0, n)
	t := from.In(loc)
	for i := 0; i < n; i++ {
		t = s.Next(t)
		if t.IsZero() {
			break
		}
		out = append(out, t)
	}
	return out, nil
}
