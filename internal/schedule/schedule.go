// Package schedule decides each zone's target temperature from a weekly
// schedule and temporary overrides.
package schedule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// OverrideTimeLayout is the wire format for override expiry times,
// interpreted as local wall-clock time.
const OverrideTimeLayout = "2006-01-02T15:04"

// DayTime is a minute-resolution time of day.
type DayTime struct {
	Hour   int
	Minute int
}

func ParseDayTime(s string) (DayTime, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return DayTime{}, fmt.Errorf("time of day %q is not HH:MM", s)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil {
		return DayTime{}, fmt.Errorf("time of day %q: %w", s, err)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil {
		return DayTime{}, fmt.Errorf("time of day %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return DayTime{}, fmt.Errorf("time of day %q out of range", s)
	}
	return DayTime{Hour: hour, Minute: minute}, nil
}

func (d DayTime) String() string {
	return fmt.Sprintf("%02d:%02d", d.Hour, d.Minute)
}

func (d DayTime) Minutes() int {
	return d.Hour*60 + d.Minute
}

func (d DayTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *DayTime) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("time of day %s is not a string", data)
	}
	parsed, err := ParseDayTime(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Weekday maps a time to the schedule's day numbering, Monday = 0.
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// Entry is one schedule boundary: from At on day Day, the zone's target
// becomes Temp.
type Entry struct {
	Day  int
	At   DayTime
	Zone int
	Temp float64
}

// Override pins a zone to Temp until Until passes. At most one override
// exists per zone.
type Override struct {
	Zone  int
	Temp  float64
	Until time.Time
}

// FullSchedule is an immutable snapshot of the weekly schedule plus any
// active overrides.
type FullSchedule struct {
	entries   []Entry
	overrides []Override
}

func New(entries []Entry, overrides []Override) *FullSchedule {
	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		if a.At.Minutes() != b.At.Minutes() {
			return a.At.Minutes() < b.At.Minutes()
		}
		return a.Zone < b.Zone
	})
	return &FullSchedule{
		entries:   sorted,
		overrides: append([]Override(nil), overrides...),
	}
}

func (s *FullSchedule) Entries() []Entry {
	return s.entries
}

func (s *FullSchedule) Overrides() []Override {
	return s.overrides
}

// Target returns the zone's target temperature at now. The second return
// is false when the schedule has no entries at all for the zone.
func (s *FullSchedule) Target(now time.Time, zone int) (float64, bool) {
	if o, ok := s.override(now, zone); ok {
		return o.Temp, true
	}

	day := s.DaySchedule(Weekday(now), zone)
	if len(day) == 0 {
		return 0, false
	}

	nowMinutes := now.Hour()*60 + now.Minute()
	target := day[0].Temp
	for _, e := range day {
		if e.At.Minutes() <= nowMinutes {
			target = e.Temp
		}
	}
	return target, true
}

// TargetOverridden reports whether an override decides the zone's target
// at now.
func (s *FullSchedule) TargetOverridden(now time.Time, zone int) bool {
	_, ok := s.override(now, zone)
	return ok
}

func (s *FullSchedule) override(now time.Time, zone int) (Override, bool) {
	for _, o := range s.overrides {
		if o.Zone == zone && o.Until.After(now) {
			return o, true
		}
	}
	return Override{}, false
}

// DaySchedule returns the zone's entries for one day, covering the full
// 24 hours: when the day doesn't begin at 00:00 a synthetic entry carries
// the temperature forward from the latest earlier day, wrapping to the
// week's last entry if there is none.
func (s *FullSchedule) DaySchedule(day, zone int) []Entry {
	var zoneEntries []Entry
	for _, e := range s.entries {
		if e.Zone == zone {
			zoneEntries = append(zoneEntries, e)
		}
	}
	if len(zoneEntries) == 0 {
		return nil
	}

	var result []Entry
	for _, e := range zoneEntries {
		if e.Day == day {
			result = append(result, e)
		}
	}

	carry := zoneEntries[len(zoneEntries)-1]
	for _, e := range zoneEntries {
		if e.Day < day {
			carry = e
		}
	}

	if len(result) == 0 || result[0].At.Minutes() != 0 {
		first := Entry{Day: day, At: DayTime{}, Zone: zone, Temp: carry.Temp}
		result = append([]Entry{first}, result...)
	}
	return result
}
