package schedulerweb

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/boilerio/boilerio/db"
	"github.com/boilerio/boilerio/internal/model"
	"github.com/boilerio/boilerio/internal/schedule"
)

type readingPayload struct {
	MetricType string  `json:"metric_type"`
	When       string  `json:"when"`
	Value      float64 `json:"value"`
}

type zoneEntryResponse struct {
	Day  int     `json:"day"`
	Time string  `json:"time"`
	Temp float64 `json:"temp"`
}

type overrideResponse struct {
	Zone  int     `json:"zone"`
	Temp  float64 `json:"temp"`
	Until string  `json:"until"`
}

type slotZone struct {
	Zone int     `json:"zone"`
	Temp float64 `json:"temp"`
}

type scheduleSlot struct {
	When  string     `json:"when"`
	Zones []slotZone `json:"zones"`
}

type summaryZone struct {
	ID             int                `json:"zone_id"`
	Name           string             `json:"name"`
	Target         *float64           `json:"target"`
	ReportedState  *model.DeviceState `json:"reported_state"`
	TargetOverride *overrideResponse  `json:"target_override"`
}

type summaryResponse struct {
	Zones           []summaryZone  `json:"zones"`
	ServerDayOfWeek int            `json:"server_day_of_week"`
	Today           []scheduleSlot `json:"today"`
}

// zoneFromPath resolves the {id} path variable to a zone, writing a 404
// or 500 and returning nil when that fails.
func (s *Server) zoneFromPath(w http.ResponseWriter, r *http.Request) *model.Zone {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, http.StatusNotFound, "Zone not found")
		return nil
	}
	zone, err := db.GetZone(s.db, id)
	if err != nil {
		log.Error().Err(err).Int("zone_id", id).Msg("Failed to get zone")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return nil
	}
	if zone == nil {
		s.writeError(w, http.StatusNotFound, "Zone not found")
		return nil
	}
	return zone
}

func (s *Server) sensorFromPath(w http.ResponseWriter, r *http.Request) *model.Sensor {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, http.StatusNotFound, "Sensor not found")
		return nil
	}
	sensor, err := db.GetSensor(s.db, id)
	if err != nil {
		log.Error().Err(err).Int("sensor_id", id).Msg("Failed to get sensor")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return nil
	}
	if sensor == nil {
		s.writeError(w, http.StatusNotFound, "Sensor not found")
		return nil
	}
	return sensor
}

func (s *Server) getZones(w http.ResponseWriter, r *http.Request) {
	zones, err := db.GetZones(s.db)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get zones")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if zones == nil {
		zones = []model.Zone{}
	}
	s.writeJSON(w, http.StatusOK, zones)
}

func (s *Server) getSensors(w http.ResponseWriter, r *http.Request) {
	sensors, err := db.GetSensors(s.db)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get sensors")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sensors == nil {
		sensors = []model.Sensor{}
	}
	s.writeJSON(w, http.StatusOK, sensors)
}

func (s *Server) getReadings(w http.ResponseWriter, r *http.Request) {
	sensor := s.sensorFromPath(w, r)
	if sensor == nil {
		return
	}
	readings, err := db.GetLastReadings(s.db, sensor.ID)
	if err != nil {
		log.Error().Err(err).Int("sensor_id", sensor.ID).Msg("Failed to get readings")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response := []readingPayload{}
	for _, metric := range model.SensorMetricTypes {
		if mr, ok := readings[metric]; ok {
			response = append(response, readingPayload{
				MetricType: metric,
				When:       mr.When.UTC().Format(model.ReadingTimeLayout),
				Value:      mr.Value,
			})
		}
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) postReading(w http.ResponseWriter, r *http.Request) {
	sensor := s.sensorFromPath(w, r)
	if sensor == nil {
		return
	}
	var req readingPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if !validMetricType(req.MetricType) {
		s.writeError(w, http.StatusBadRequest, "Invalid metric type")
		return
	}
	when, err := time.Parse(model.ReadingTimeLayout, req.When)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid timestamp")
		return
	}
	if err := db.AddReading(s.db, sensor.ID, req.MetricType, when, req.Value); err != nil {
		log.Error().Err(err).Int("sensor_id", sensor.ID).Msg("Failed to store reading")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
}

func validMetricType(metric string) bool {
	for _, m := range model.SensorMetricTypes {
		if m == metric {
			return true
		}
	}
	return false
}

func (s *Server) getSchedule(w http.ResponseWriter, r *http.Request) {
	entries, err := db.GetSchedule(s.db)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get schedule")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	overrides, err := db.GetOverrides(s.db)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get overrides")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, schedule.New(entries, overrides))
}

// parseEntryForm reads the shared fields of the schedule mutation
// endpoints. temp is only validated when requireTemp is set.
func (s *Server) parseEntryForm(w http.ResponseWriter, r *http.Request, requireTemp bool) (schedule.Entry, bool) {
	var e schedule.Entry

	at, err := schedule.ParseDayTime(r.FormValue("time"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid time")
		return e, false
	}
	day, err := strconv.Atoi(r.FormValue("day"))
	if err != nil || day < 0 || day > 6 {
		s.writeError(w, http.StatusBadRequest, "Invalid day")
		return e, false
	}
	zoneID, err := strconv.Atoi(r.FormValue("zone"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid zone")
		return e, false
	}
	zone, err := db.GetZone(s.db, zoneID)
	if err != nil {
		log.Error().Err(err).Int("zone_id", zoneID).Msg("Failed to get zone")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return e, false
	}
	if zone == nil {
		s.writeError(w, http.StatusBadRequest, "Invalid zone")
		return e, false
	}

	e = schedule.Entry{Day: day, At: at, Zone: zoneID}
	if requireTemp {
		temp, err := strconv.ParseFloat(r.FormValue("temp"), 64)
		if err != nil || temp < 0 || temp >= 35 {
			s.writeError(w, http.StatusBadRequest, "Invalid temperature")
			return e, false
		}
		e.Temp = temp
	}
	return e, true
}

func (s *Server) newScheduleEntry(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.parseEntryForm(w, r, true)
	if !ok {
		return
	}
	if err := db.AddScheduleEntry(s.db, entry); err != nil {
		log.Error().Err(err).Msg("Failed to add schedule entry")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Info().
		Int("zone", entry.Zone).
		Int("day", entry.Day).
		Str("time", entry.At.String()).
		Float64("temp", entry.Temp).
		Msg("Schedule entry added")
	s.notifyChanged()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) deleteScheduleEntry(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.parseEntryForm(w, r, false)
	if !ok {
		return
	}
	if err := db.RemoveScheduleEntry(s.db, entry); err != nil {
		log.Error().Err(err).Msg("Failed to delete schedule entry")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Info().
		Int("zone", entry.Zone).
		Int("day", entry.Day).
		Str("time", entry.At.String()).
		Msg("Schedule entry removed")
	s.notifyChanged()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) getZoneSchedule(w http.ResponseWriter, r *http.Request) {
	zone := s.zoneFromPath(w, r)
	if zone == nil {
		return
	}
	entries, err := db.GetZoneSchedule(s.db, zone.ID)
	if err != nil {
		log.Error().Err(err).Int("zone_id", zone.ID).Msg("Failed to get zone schedule")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response := make([]zoneEntryResponse, 0, len(entries))
	for _, e := range entries {
		response = append(response, zoneEntryResponse{Day: e.Day, Time: e.At.String(), Temp: e.Temp})
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) getOverride(w http.ResponseWriter, r *http.Request) {
	zone := s.zoneFromPath(w, r)
	if zone == nil {
		return
	}
	o, err := db.GetOverride(s.db, zone.ID)
	if err != nil {
		log.Error().Err(err).Int("zone_id", zone.ID).Msg("Failed to get override")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if o == nil || !o.Until.After(s.clock()) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeJSON(w, http.StatusOK, overrideResponse{
		Zone:  o.Zone,
		Temp:  o.Temp,
		Until: o.Until.Format(schedule.OverrideTimeLayout),
	})
}

func formInt(r *http.Request, name string) (int, error) {
	v := r.FormValue(name)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func (s *Server) setOverride(w http.ResponseWriter, r *http.Request) {
	zone := s.zoneFromPath(w, r)
	if zone == nil {
		return
	}
	temp, err := strconv.ParseFloat(r.FormValue("temp"), 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid temperature")
		return
	}
	days, errD := formInt(r, "days")
	hours, errH := formInt(r, "hours")
	mins, errM := formInt(r, "mins")
	if errD != nil || errH != nil || errM != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid duration")
		return
	}
	duration := time.Duration(days)*24*time.Hour +
		time.Duration(hours)*time.Hour +
		time.Duration(mins)*time.Minute
	if duration == 0 {
		s.writeError(w, http.StatusBadRequest, "Must specify days, hours, or mins")
		return
	}

	o := schedule.Override{Zone: zone.ID, Temp: temp, Until: s.clock().Add(duration)}
	if err := db.SetOverride(s.db, o); err != nil {
		log.Error().Err(err).Int("zone_id", zone.ID).Msg("Failed to set override")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Info().
		Int("zone", zone.ID).
		Float64("temp", temp).
		Time("until", o.Until).
		Msg("Override set")
	s.notifyChanged()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) clearOverride(w http.ResponseWriter, r *http.Request) {
	zone := s.zoneFromPath(w, r)
	if zone == nil {
		return
	}
	if err := db.ClearOverride(s.db, zone.ID); err != nil {
		log.Error().Err(err).Int("zone_id", zone.ID).Msg("Failed to clear override")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Info().Int("zone", zone.ID).Msg("Override cleared")
	s.notifyChanged()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) postGradient(w http.ResponseWriter, r *http.Request) {
	zone := s.zoneFromPath(w, r)
	if zone == nil {
		return
	}
	var m model.GradientMeasurement
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if err := db.AddGradientMeasurement(s.db, zone.ID, m); err != nil {
		log.Error().Err(err).Int("zone_id", zone.ID).Msg("Failed to store gradient measurement")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) getGradients(w http.ResponseWriter, r *http.Request) {
	zone := s.zoneFromPath(w, r)
	if zone == nil {
		return
	}
	table, err := db.GetGradients(s.db, zone.ID)
	if err != nil {
		log.Error().Err(err).Int("zone_id", zone.ID).Msg("Failed to get gradients")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if table == nil {
		table = []model.GradientRow{}
	}
	s.writeJSON(w, http.StatusOK, table)
}

func (s *Server) postReportedState(w http.ResponseWriter, r *http.Request) {
	zone := s.zoneFromPath(w, r)
	if zone == nil {
		return
	}
	var state model.DeviceState
	if err := json.NewDecoder(r.Body).Decode(&state); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	state.Received = s.clock()
	if err := db.SetReportedState(s.db, zone.ID, state); err != nil {
		log.Error().Err(err).Int("zone_id", zone.ID).Msg("Failed to store reported state")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) getReportedState(w http.ResponseWriter, r *http.Request) {
	zone := s.zoneFromPath(w, r)
	if zone == nil {
		return
	}
	state, err := db.GetReportedState(s.db, zone.ID)
	if err != nil {
		log.Error().Err(err).Int("zone_id", zone.ID).Msg("Failed to get reported state")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if state == nil {
		s.writeError(w, http.StatusNotFound, "No reported state")
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) getSummary(w http.ResponseWriter, r *http.Request) {
	zones, err := db.GetZones(s.db)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get zones")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	entries, err := db.GetSchedule(s.db)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get schedule")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	overrides, err := db.GetOverrides(s.db)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get overrides")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	now := s.clock()
	sched := schedule.New(entries, overrides)
	dow := schedule.Weekday(now)

	summary := summaryResponse{
		Zones:           make([]summaryZone, 0, len(zones)),
		ServerDayOfWeek: dow,
		Today:           []scheduleSlot{},
	}

	byTime := make(map[schedule.DayTime][]slotZone)
	for _, z := range zones {
		sz := summaryZone{ID: z.ID, Name: z.Name}
		if target, ok := sched.Target(now, z.ID); ok {
			t := target
			sz.Target = &t
		}
		state, err := db.GetReportedState(s.db, z.ID)
		if err != nil {
			log.Error().Err(err).Int("zone_id", z.ID).Msg("Failed to get reported state")
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		sz.ReportedState = state
		for _, o := range overrides {
			if o.Zone == z.ID && o.Until.After(now) {
				sz.TargetOverride = &overrideResponse{
					Zone:  o.Zone,
					Temp:  o.Temp,
					Until: o.Until.Format(schedule.OverrideTimeLayout),
				}
			}
		}
		summary.Zones = append(summary.Zones, sz)

		for _, e := range sched.DaySchedule(dow, z.ID) {
			byTime[e.At] = append(byTime[e.At], slotZone{Zone: e.Zone, Temp: e.Temp})
		}
	}

	times := make([]schedule.DayTime, 0, len(byTime))
	for at := range byTime {
		times = append(times, at)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Minutes() < times[j].Minutes() })
	for _, at := range times {
		summary.Today = append(summary.Today, scheduleSlot{When: at.String(), Zones: byTime[at]})
	}

	s.writeJSON(w, http.StatusOK, summary)
}
