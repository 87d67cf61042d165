// Package domain holds agent business hours and the availability rules derived from them.
package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// ErrNoWorkingHours is returned when a playbook has no usable business hours.
var ErrNoWorkingHours = errors.New("No working hours set for this playbook. Please configure them first.")

// Slot is one working window of a day in "HH:MM" local time. To may be "24:00".
type Slot struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// DayHours is the working configuration of one weekday.
type DayHours struct {
	Day      string `json:"day" yaml:"day"`
	IsActive bool   `json:"isActive" yaml:"isActive"`
	Slots    []Slot `json:"slots" yaml:"slots"`
}

// WeeklySchedule lists days in the order they were configured.
type WeeklySchedule []DayHours

// ParseWeeklySchedule decodes scheduling_hours, an object keyed by weekday name, keeping key order.
func ParseWeeklySchedule(raw []byte) (WeeklySchedule, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if !gjson.ValidBytes(raw) {
		return nil, errors.New("scheduling hours: invalid JSON")
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, nil
	}
	var out WeeklySchedule
	root.ForEach(func(key, value gjson.Result) bool {
		day := DayHours{Day: key.String(), IsActive: value.Get("isActive").Bool()}
		value.Get("slots").ForEach(func(_, s gjson.Result) bool {
			day.Slots = append(day.Slots, Slot{From: s.Get("from").String(), To: s.Get("to").String()})
			return true
		})
		out = append(out, day)
		return true
	})
	return out, nil
}

// Encode renders w in the scheduling_hours object form, keeping day order.
func (w WeeklySchedule) Encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, d := range w {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(d.Day)
		if err != nil {
			return nil, err
		}
		slots := d.Slots
		if slots == nil {
			slots = []Slot{}
		}
		val, err := json.Marshal(struct {
			IsActive bool   `json:"isActive"`
			Slots    []Slot `json:"slots"`
		}{d.IsActive, slots})
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Day returns the configuration for the weekday name (case-insensitive).
func (w WeeklySchedule) Day(name string) (DayHours, bool) {
	for _, d := range w {
		if strings.EqualFold(d.Day, name) {
			return d, true
		}
	}
	return DayHours{}, false
}

// ParseClock parses "HH:MM" into hour and minute.
func ParseClock(s string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid time %q", s)
	}
	if hour, err = strconv.Atoi(h); err != nil {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	if minute, err = strconv.Atoi(m); err != nil {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

// ParseUTCOffset turns "+05:30" / "-04:00" / "Z" into a fixed zone.
func ParseUTCOffset(offset string) (*time.Location, error) {
	offset = strings.TrimSpace(offset)
	if offset == "" || offset == "Z" {
		return time.UTC, nil
	}
	sign := 1
	switch offset[0] {
	case '+':
	case '-':
		sign = -1
	default:
		return nil, fmt.Errorf("invalid utc offset %q", offset)
	}
	h, m, err := ParseClock(offset[1:])
	if err != nil {
		return nil, fmt.Errorf("invalid utc offset %q", offset)
	}
	secs := sign * (h*3600 + m*60)
	return time.FixedZone("UTC"+offset, secs), nil
}

// IsAvailable reports whether at, seen in the given UTC offset, falls inside an active slot
// of that weekday. Slot bounds are inclusive.
func IsAvailable(hours WeeklySchedule, at time.Time, utcOffset string) bool {
	loc, err := ParseUTCOffset(utcOffset)
	if err != nil {
		return false
	}
	local := at.In(loc)
	day, ok := hours.Day(local.Weekday().String())
	if !ok || !day.IsActive {
		return false
	}
	y, mo, d := local.Date()
	for _, slot := range day.Slots {
		fh, fm, err := ParseClock(slot.From)
		if err != nil {
			continue
		}
		th, tm, err := ParseClock(slot.To)
		if err != nil {
			continue
		}
		from := time.Date(y, mo, d, fh, fm, 0, 0, loc)
		to := time.Date(y, mo, d, th, tm, 0, 0, loc)
		if !local.Before(from) && !local.After(to) {
			return true
		}
	}
	return false
}

// Details is a playbook's scheduling row joined with its timezone.
type Details struct {
	ID           string
	AgentID      string
	PlaybookID   string
	Hours        WeeklySchedule
	TimezoneID   int
	IANATimezone string
	UTCOffset    string
	StartDate    *time.Time
}

// Location returns the IANA zone, falling back to the fixed offset and then UTC.
func (d *Details) Location() *time.Location {
	if d == nil {
		return time.UTC
	}
	if d.IANATimezone != "" {
		if loc, err := time.LoadLocation(d.IANATimezone); err == nil {
			return loc
		}
	}
	if loc, err := ParseUTCOffset(d.UTCOffset); err == nil {
		return loc
	}
	return time.UTC
}

// StartDatePassed reports whether now is after the start of StartDate's day in loc.
// No start date means no restriction.
func (d *Details) StartDatePassed(now time.Time, loc *time.Location) bool {
	if d == nil {
		return false
	}
	if d.StartDate == nil {
		return true
	}
	y, m, day := d.StartDate.Date()
	start := time.Date(y, m, day, 0, 0, 0, 0, loc)
	return now.In(loc).After(start)
}
