package schedule

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Wire form shared with the control plane:
//
//	{"schedule": {"0": [{"when": "06:30", "zones": [{"zone": 1, "temp": 19}]}],
//	              ... "6": []},
//	 "target_override": [{"zone": 1, "temp": 22, "until": "2018-10-10T10:10"}]}

type jsonZoneTemp struct {
	Zone int     `json:"zone"`
	Temp float64 `json:"temp"`
}

type jsonSlot struct {
	When  DayTime        `json:"when"`
	Zones []jsonZoneTemp `json:"zones"`
}

type jsonOverride struct {
	Zone  int     `json:"zone"`
	Temp  float64 `json:"temp"`
	Until string  `json:"until"`
}

type jsonSchedule struct {
	Schedule       map[string][]jsonSlot `json:"schedule"`
	TargetOverride []jsonOverride        `json:"target_override"`
}

func (s *FullSchedule) MarshalJSON() ([]byte, error) {
	days := make(map[string][]jsonSlot, 7)
	for day := 0; day < 7; day++ {
		days[strconv.Itoa(day)] = []jsonSlot{}
	}

	// Entries are sorted by (day, time, zone), so consecutive entries
	// with the same day and time merge into one slot.
	for _, e := range s.entries {
		key := strconv.Itoa(e.Day)
		slots := days[key]
		if n := len(slots); n > 0 && slots[n-1].When == e.At {
			slots[n-1].Zones = append(slots[n-1].Zones, jsonZoneTemp{Zone: e.Zone, Temp: e.Temp})
		} else {
			slots = append(slots, jsonSlot{When: e.At, Zones: []jsonZoneTemp{{Zone: e.Zone, Temp: e.Temp}}})
		}
		days[key] = slots
	}

	overrides := make([]jsonOverride, 0, len(s.overrides))
	for _, o := range s.overrides {
		overrides = append(overrides, jsonOverride{
			Zone:  o.Zone,
			Temp:  o.Temp,
			Until: o.Until.Format(OverrideTimeLayout),
		})
	}

	return json.Marshal(jsonSchedule{Schedule: days, TargetOverride: overrides})
}

func (s *FullSchedule) UnmarshalJSON(data []byte) error {
	var wire jsonSchedule
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	var entries []Entry
	for key, slots := range wire.Schedule {
		day, err := strconv.Atoi(key)
		if err != nil || day < 0 || day > 6 {
			return fmt.Errorf("schedule day %q out of range", key)
		}
		for _, slot := range slots {
			for _, zt := range slot.Zones {
				entries = append(entries, Entry{Day: day, At: slot.When, Zone: zt.Zone, Temp: zt.Temp})
			}
		}
	}

	var overrides []Override
	for _, o := range wire.TargetOverride {
		until, err := time.ParseInLocation(OverrideTimeLayout, o.Until, time.Local)
		if err != nil {
			return fmt.Errorf("override until %q: %w", o.Until, err)
		}
		overrides = append(overrides, Override{Zone: o.Zone, Temp: o.Temp, Until: until})
	}

	*s = *New(entries, overrides)
	return nil
}
