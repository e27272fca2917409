package zonecontroller

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/boilerio/boilerio/internal/schedule"
)

const (
	tickInterval            = time.Second
	scheduleRefreshInterval = 60 * time.Second
)

// ScheduleSource provides the current heating programme.
type ScheduleSource interface {
	Schedule() (*schedule.FullSchedule, error)
}

// Subscriber is the part of the message bus the scheduler listens on.
type Subscriber interface {
	Subscribe(topic string, handler func(topic string, payload []byte)) error
}

// Scheduler runs the control loop for a set of zones against a shared
// programme snapshot, refreshing it periodically and on change
// notifications from the bus.
type Scheduler struct {
	source ScheduleSource
	zones  []*ZoneController

	mu       sync.Mutex
	snapshot *schedule.FullSchedule
}

func NewScheduler(source ScheduleSource, zones []*ZoneController) *Scheduler {
	return &Scheduler{source: source, zones: zones}
}

// RefreshSchedule fetches the programme. On failure the previous snapshot
// stays in effect, so zones keep heating to the last known targets.
func (s *Scheduler) RefreshSchedule() {
	snap, err := s.source.Schedule()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to fetch schedule; keeping previous programme")
		return
	}
	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()
	log.Debug().
		Int("entries", len(snap.Entries())).
		Int("overrides", len(snap.Overrides())).
		Msg("Refreshed schedule")
}

// Snapshot returns the programme currently in effect, or nil if none has
// been fetched yet.
func (s *Scheduler) Snapshot() *schedule.FullSchedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Tick runs one control cycle for every zone. Nothing happens until a
// programme has been fetched.
func (s *Scheduler) Tick(now time.Time) {
	snap := s.Snapshot()
	if snap == nil {
		return
	}
	for _, zc := range s.zones {
		zc.Iteration(snap, now)
	}
}

// BindTriggers subscribes to the bus topics that should prompt an early
// schedule refresh: explicit change notifications, and devices coming
// online.
func (s *Scheduler) BindTriggers(sub Subscriber, scheduleChangeTopic, statusTopic string) error {
	err := sub.Subscribe(scheduleChangeTopic, func(string, []byte) {
		log.Info().Msg("Schedule change notification received")
		s.RefreshSchedule()
	})
	if err != nil {
		return err
	}
	return sub.Subscribe(statusTopic, func(_ string, payload []byte) {
		var msg struct {
			ThermostatID int    `json:"thermostat_id"`
			Status       string `json:"status"`
		}
		if err := json.Unmarshal(payload, &msg); err != nil {
			log.Warn().Err(err).Msg("Ignoring malformed status message")
			return
		}
		if msg.Status == "online" {
			log.Info().
				Int("device", msg.ThermostatID).
				Msg("Device came online; refreshing schedule")
			s.RefreshSchedule()
		}
	})
}

// Run drives the control loop until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	log.Info().Int("zones", len(s.zones)).Msg("Starting zone controllers")
	s.RefreshSchedule()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	refresh := time.NewTicker(scheduleRefreshInterval)
	defer refresh.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Stopping zone controllers")
			return
		case <-refresh.C:
			s.RefreshSchedule()
		case now := <-ticker.C:
			s.Tick(now)
		}
	}
}
