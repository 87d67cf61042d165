package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const weekdayHours = `{
	"monday": {"isActive": true, "slots": [{"from": "09:00", "to": "12:30"}, {"from": "14:00", "to": "18:00"}]},
	"sunday": {"isActive": false, "slots": []},
	"Friday": {"isActive": true, "slots": [{"from": "10:00", "to": "24:00"}]}
}`

func TestParseWeeklySchedule_KeepsOrder(t *testing.T) {
	hours, err := ParseWeeklySchedule([]byte(weekdayHours))
	require.NoError(t, err)
	require.Len(t, hours, 3)
	assert.Equal(t, "monday", hours[0].Day)
	assert.Equal(t, "sunday", hours[1].Day)
	assert.Equal(t, "Friday", hours[2].Day)
	assert.True(t, hours[0].IsActive)
	assert.Equal(t, []Slot{{"09:00", "12:30"}, {"14:00", "18:00"}}, hours[0].Slots)
	assert.Empty(t, hours[1].Slots)
}

func TestParseWeeklySchedule_Invalid(t *testing.T) {
	_, err := ParseWeeklySchedule([]byte(`{"monday":`))
	assert.Error(t, err)

	hours, err := ParseWeeklySchedule(nil)
	assert.NoError(t, err)
	assert.Nil(t, hours)

	hours, err = ParseWeeklySchedule([]byte(`[]`))
	assert.NoError(t, err)
	assert.Nil(t, hours)
}

func TestParseUTCOffset(t *testing.T) {
	cases := map[string]int{"": 0, "Z": 0, "+00:00": 0, "+05:30": 19800, "-04:00": -14400}
	for in, want := range cases {
		loc, err := ParseUTCOffset(in)
		require.NoError(t, err, in)
		_, got := time.Date(2025, 1, 1, 0, 0, 0, 0, loc).Zone()
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"05:30", "+5", "+aa:00"} {
		_, err := ParseUTCOffset(bad)
		assert.Error(t, err, bad)
	}
}

func TestIsAvailable(t *testing.T) {
	hours, err := ParseWeeklySchedule([]byte(weekdayHours))
	require.NoError(t, err)

	// 2025-06-02 is a Monday.
	at := func(h, m int) time.Time { return time.Date(2025, 6, 2, h, m, 0, 0, time.UTC) }

	assert.True(t, IsAvailable(hours, at(9, 0), "+00:00"), "slot start is inclusive")
	assert.True(t, IsAvailable(hours, at(12, 30), "+00:00"), "slot end is inclusive")
	assert.False(t, IsAvailable(hours, at(13, 0), "+00:00"), "between slots")
	assert.True(t, IsAvailable(hours, at(15, 0), "+00:00"))
	assert.False(t, IsAvailable(hours, at(8, 59), "+00:00"))

	// 04:00 UTC is 09:30 in +05:30.
	assert.True(t, IsAvailable(hours, at(4, 0), "+05:30"))
	assert.False(t, IsAvailable(hours, at(4, 0), "+00:00"))

	// Sunday is inactive; 2025-06-01.
	assert.False(t, IsAvailable(hours, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), "+00:00"))
	// Tuesday is not configured.
	assert.False(t, IsAvailable(hours, time.Date(2025, 6, 3, 10, 0, 0, 0, time.UTC), "+00:00"))
	// Day names match case-insensitively; "24:00" closes the day.
	assert.True(t, IsAvailable(hours, time.Date(2025, 6, 6, 23, 59, 0, 0, time.UTC), "+00:00"))

	assert.False(t, IsAvailable(hours, at(10, 0), "bogus"))
}

func TestDetails_StartDatePassed(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	assert.False(t, (*Details)(nil).StartDatePassed(now, time.UTC))
	assert.True(t, (&Details{}).StartDatePassed(now, time.UTC))

	past := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, (&Details{StartDate: &past}).StartDatePassed(now, time.UTC))

	today := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	assert.True(t, (&Details{StartDate: &today}).StartDatePassed(now, time.UTC))

	future := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	assert.False(t, (&Details{StartDate: &future}).StartDatePassed(now, time.UTC))
}

func TestDetails_Location(t *testing.T) {
	assert.Equal(t, time.UTC, (*Details)(nil).Location())
	d := &Details{IANATimezone: "America/New_York"}
	assert.Equal(t, "America/New_York", d.Location().String())
	d = &Details{IANATimezone: "Not/AZone", UTCOffset: "+02:00"}
	_, off := time.Date(2025, 1, 1, 0, 0, 0, 0, d.Location()).Zone()
	assert.Equal(t, 7200, off)
}

func TestWeeklySchedule_EncodeRoundTrip(t *testing.T) {
	hours, err := ParseWeeklySchedule([]byte(weekdayHours))
	require.NoError(t, err)

	raw, err := hours.Encode()
	require.NoError(t, err)
	again, err := ParseWeeklySchedule(raw)
	require.NoError(t, err)
	assert.Equal(t, hours, again)

	raw, err = WeeklySchedule{{Day: "monday"}}.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"monday":{"isActive":false,"slots":[]}}`, string(raw))
}
