package notifications

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/boilerio/boilerio/internal/env"
)

var (
	client      = &http.Client{Timeout: 10 * time.Second}
	topic       string
	initialized bool
)

type message struct {
	Topic   string `json:"topic"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Init enables ntfy.sh notifications when a topic is configured.
func Init() {
	if env.Cfg.NtfyTopic == "" {
		log.Warn().Msg("Ntfy topic not configured - notifications disabled")
		return
	}

	topic = env.Cfg.NtfyTopic
	initialized = true

	log.Info().
		Str("topic", topic).
		Msg("Ntfy notifications initialized")
}

// Send publishes a notification to ntfy.sh.
func Send(title, body string) error {
	if !initialized {
		return fmt.Errorf("notifications not initialized")
	}

	payload, err := json.Marshal(message{Topic: topic, Title: title, Message: body})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	resp, err := client.Post("https://ntfy.sh/"+topic, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy returned non-success status: %d", resp.StatusCode)
	}

	log.Debug().
		Str("title", title).
		Int("status", resp.StatusCode).
		Msg("Notification sent")

	return nil
}
