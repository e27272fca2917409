package schedule

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2018-10-08 was a Monday.
func monday(hour, minute int) time.Time {
	return time.Date(2018, 10, 8, hour, minute, 0, 0, time.Local)
}

func day(dayOffset, hour, minute int) time.Time {
	return monday(hour, minute).AddDate(0, 0, dayOffset)
}

func at(hour, minute int) DayTime {
	return DayTime{Hour: hour, Minute: minute}
}

func TestWeekday(t *testing.T) {
	assert.Equal(t, 0, Weekday(monday(12, 0)))
	assert.Equal(t, 6, Weekday(day(6, 12, 0)))
}

func TestTargetFollowsDaySchedule(t *testing.T) {
	s := New([]Entry{
		{Day: 0, At: at(6, 30), Zone: 1, Temp: 20},
		{Day: 0, At: at(22, 0), Zone: 1, Temp: 15},
	}, nil)

	target, ok := s.Target(monday(7, 0), 1)
	require.True(t, ok)
	assert.Equal(t, 20.0, target)

	target, ok = s.Target(monday(23, 0), 1)
	require.True(t, ok)
	assert.Equal(t, 15.0, target)
}

func TestTargetCarriesAcrossMidnight(t *testing.T) {
	s := New([]Entry{
		{Day: 0, At: at(6, 30), Zone: 1, Temp: 20},
		{Day: 0, At: at(22, 0), Zone: 1, Temp: 15},
	}, nil)

	// Tuesday 03:00 keeps Monday's final temperature.
	target, ok := s.Target(day(1, 3, 0), 1)
	require.True(t, ok)
	assert.Equal(t, 15.0, target)
}

func TestTargetWrapsAroundWeek(t *testing.T) {
	s := New([]Entry{
		{Day: 2, At: at(10, 0), Zone: 1, Temp: 21},
	}, nil)

	// Before the only entry of the week, the target wraps from the end
	// of the week.
	target, ok := s.Target(monday(0, 0), 1)
	require.True(t, ok)
	assert.Equal(t, 21.0, target)

	target, ok = s.Target(day(2, 12, 0), 1)
	require.True(t, ok)
	assert.Equal(t, 21.0, target)
}

func TestTargetEntryBoundary(t *testing.T) {
	s := New([]Entry{
		{Day: 0, At: at(6, 30), Zone: 1, Temp: 20},
		{Day: 0, At: at(22, 0), Zone: 1, Temp: 15},
	}, nil)

	// An entry applies from exactly its start time.
	target, ok := s.Target(monday(6, 30), 1)
	require.True(t, ok)
	assert.Equal(t, 20.0, target)

	target, ok = s.Target(monday(6, 29), 1)
	require.True(t, ok)
	assert.Equal(t, 15.0, target)
}

func TestOverrideBeatsSchedule(t *testing.T) {
	s := New([]Entry{
		{Day: 0, At: at(0, 0), Zone: 1, Temp: 15},
		{Day: 0, At: at(0, 0), Zone: 2, Temp: 15},
	}, []Override{
		{Zone: 1, Temp: 22, Until: monday(10, 0)},
	})

	target, ok := s.Target(monday(9, 59), 1)
	require.True(t, ok)
	assert.Equal(t, 22.0, target)
	assert.True(t, s.TargetOverridden(monday(9, 59), 1))

	// Expiry is exact: at 10:00 the schedule is back in charge.
	target, ok = s.Target(monday(10, 0), 1)
	require.True(t, ok)
	assert.Equal(t, 15.0, target)
	assert.False(t, s.TargetOverridden(monday(10, 0), 1))

	// The other zone never saw the override.
	target, ok = s.Target(monday(9, 59), 2)
	require.True(t, ok)
	assert.Equal(t, 15.0, target)
	assert.False(t, s.TargetOverridden(monday(9, 59), 2))
}

func TestNoEntriesForZone(t *testing.T) {
	s := New([]Entry{
		{Day: 0, At: at(6, 30), Zone: 1, Temp: 20},
	}, nil)

	_, ok := s.Target(monday(12, 0), 2)
	assert.False(t, ok)
}

func TestDayScheduleSynthesizesMidnightEntry(t *testing.T) {
	s := New([]Entry{
		{Day: 0, At: at(6, 30), Zone: 1, Temp: 20},
		{Day: 0, At: at(22, 0), Zone: 1, Temp: 15},
		{Day: 1, At: at(0, 0), Zone: 1, Temp: 18},
	}, nil)

	mon := s.DaySchedule(0, 1)
	require.Len(t, mon, 3)
	assert.Equal(t, at(0, 0), mon[0].At)
	// No earlier day exists, so the start wraps from the week's last entry.
	assert.Equal(t, 18.0, mon[0].Temp)

	// Tuesday already starts at midnight, so nothing is synthesized.
	tue := s.DaySchedule(1, 1)
	require.Len(t, tue, 1)
	assert.Equal(t, 18.0, tue[0].Temp)
}

func TestParseDayTime(t *testing.T) {
	cases := []struct {
		in      string
		want    DayTime
		wantErr bool
	}{
		{in: "06:30", want: at(6, 30)},
		{in: "6:30", want: at(6, 30)},
		{in: "23:59", want: at(23, 59)},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "12:3x", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseDayTime(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestUnmarshalWireForm(t *testing.T) {
	payload := `{
		"schedule": {
			"0": [{"when": "06:30", "zones": [{"zone": 1, "temp": 20}, {"zone": 2, "temp": 19}]},
			      {"when": "22:00", "zones": [{"zone": 1, "temp": 15}]}],
			"1": [], "2": [], "3": [], "4": [], "5": [], "6": []
		},
		"target_override": [{"zone": 2, "temp": 22, "until": "2018-10-08T10:10"}]
	}`

	var s FullSchedule
	require.NoError(t, json.Unmarshal([]byte(payload), &s))

	require.Len(t, s.Entries(), 3)

	target, ok := s.Target(monday(7, 0), 1)
	require.True(t, ok)
	assert.Equal(t, 20.0, target)

	target, ok = s.Target(monday(10, 0), 2)
	require.True(t, ok)
	assert.Equal(t, 22.0, target)
	assert.True(t, s.TargetOverridden(monday(10, 0), 2))
}

func TestMarshalRoundTrip(t *testing.T) {
	orig := New([]Entry{
		{Day: 0, At: at(6, 30), Zone: 1, Temp: 20},
		{Day: 0, At: at(6, 30), Zone: 2, Temp: 19},
		{Day: 4, At: at(8, 0), Zone: 1, Temp: 21},
	}, []Override{
		{Zone: 1, Temp: 22, Until: monday(10, 0)},
	})

	data, err := json.Marshal(orig)
	require.NoError(t, err)

	// Entries at the same day and time share a slot on the wire.
	var wire jsonSchedule
	require.NoError(t, json.Unmarshal(data, &wire))
	require.Len(t, wire.Schedule["0"], 1)
	assert.Len(t, wire.Schedule["0"][0].Zones, 2)
	assert.Empty(t, wire.Schedule["6"])

	var parsed FullSchedule
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, orig.Entries(), parsed.Entries())
	require.Len(t, parsed.Overrides(), 1)
	assert.True(t, parsed.Overrides()[0].Until.Equal(monday(10, 0)))
}
