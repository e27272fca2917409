package sensor

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/boilerio/boilerio/internal/model"
)

// Callback receives each new temperature reading from a sensor.
type Callback func(model.Reading)

// Subscriber is the part of the message bus a sensor binding needs.
type Subscriber interface {
	Subscribe(topic string, handler func(topic string, payload []byte)) error
}

type report struct {
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
}

// Binding connects a sensor's bus topic to interested callbacks. Readings
// are stamped with the arrival time, not any timestamp in the payload.
type Binding struct {
	id    int
	topic string
	clock func() time.Time

	mu        sync.Mutex
	last      *model.Reading
	callbacks []Callback
}

// Bind subscribes to a sensor's topic and returns a binding that tracks
// its most recent reading.
func Bind(sub Subscriber, id int, topic string) (*Binding, error) {
	b := &Binding{
		id:    id,
		topic: topic,
		clock: time.Now,
	}
	if err := sub.Subscribe(topic, b.handleMessage); err != nil {
		return nil, err
	}
	log.Debug().
		Int("sensor", id).
		Str("topic", topic).
		Msg("Bound sensor")
	return b, nil
}

// AddCallback registers a callback for future readings.
func (b *Binding) AddCallback(cb Callback) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callbacks = append(b.callbacks, cb)
}

// Last returns the most recent reading, or nil if none has arrived yet.
func (b *Binding) Last() *model.Reading {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

func (b *Binding) handleMessage(topic string, payload []byte) {
	var r report
	if err := json.Unmarshal(payload, &r); err != nil {
		log.Warn().
			Err(err).
			Str("topic", topic).
			Msg("Ignoring malformed sensor report")
		return
	}
	if r.Temperature == nil {
		log.Debug().
			Str("topic", topic).
			Msg("Sensor report carried no temperature")
		return
	}

	b.mu.Lock()
	// Repeated identical values carry no information and would reset the
	// staleness clock, so drop them.
	if b.last != nil && b.last.Temp == *r.Temperature {
		b.mu.Unlock()
		return
	}
	reading := model.Reading{When: b.clock(), Temp: *r.Temperature}
	b.last = &reading
	callbacks := make([]Callback, len(b.callbacks))
	copy(callbacks, b.callbacks)
	b.mu.Unlock()

	log.Debug().
		Int("sensor", b.id).
		Float64("temp", reading.Temp).
		Msg("Sensor reading")
	for _, cb := range callbacks {
		dispatch(cb, reading)
	}
}

// dispatch isolates callback panics so one bad consumer cannot take down
// the bus message loop.
func dispatch(cb Callback, r model.Reading) {
	defer func() {
		if v := recover(); v != nil {
			log.Error().
				Interface("panic", v).
				Msg("Sensor callback panicked")
		}
	}()
	cb(r)
}
