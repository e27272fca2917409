// Package boiler issues relay commands to the boiler bridge over the
// message bus, debounced so a noisy thermostat can't spam the hardware.
package boiler

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Commands understood by the bridge.
const (
	CmdOn    = "O"
	CmdOff   = "X"
	CmdLearn = "L"
)

// An identical command is republished only after this long, so intent
// survives a bridge restart without flooding the bus.
const ReissueTimeout = 120 * time.Second

// Publisher abstracts the message bus connection.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

type demand struct {
	Thermostat string `json:"thermostat"`
	Command    string `json:"command"`
}

// Commander issues demand requests for any number of relays, tracking the
// last command sent to each.
type Commander struct {
	pub   Publisher
	topic string

	mu       sync.Mutex
	lastCmd  map[string]string
	lastSent map[string]time.Time
}

func NewCommander(pub Publisher, topic string) *Commander {
	return &Commander{
		pub:      pub,
		topic:    topic,
		lastCmd:  make(map[string]string),
		lastSent: make(map[string]time.Time),
	}
}

// Command publishes cmd for the given relay unless the same command was
// already published within ReissueTimeout.
func (c *Commander) Command(relay, cmd string, now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if last, ok := c.lastCmd[relay]; ok && last == cmd &&
		now.Sub(c.lastSent[relay]) <= ReissueTimeout {
		return nil
	}

	payload, err := json.Marshal(demand{Thermostat: relay, Command: cmd})
	if err != nil {
		return fmt.Errorf("marshal demand: %w", err)
	}
	if err := c.pub.Publish(c.topic, payload); err != nil {
		// Leave the debounce state untouched so the next attempt
		// retries.
		return fmt.Errorf("publish demand: %w", err)
	}

	c.lastCmd[relay] = cmd
	c.lastSent[relay] = now
	log.Debug().Str("relay", relay).Str("command", cmd).Msg("Issued boiler command")
	return nil
}

// Relay binds one relay ID to the commander, satisfying the on/off device
// contract the thermostat and PWM expect.
type Relay struct {
	cmdr  *Commander
	relay string
	clock func() time.Time
}

func (c *Commander) Relay(relay string) *Relay {
	return &Relay{cmdr: c, relay: relay, clock: time.Now}
}

func (r *Relay) ID() string { return r.relay }

func (r *Relay) On() error {
	return r.cmdr.Command(r.relay, CmdOn, r.clock())
}

func (r *Relay) Off() error {
	return r.cmdr.Command(r.relay, CmdOff, r.clock())
}
