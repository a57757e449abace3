package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog/log"
)

// NotifySubscriptionChange posts a fire-and-forget note to the team Slack
// channel whenever a provider update lands. Best effort only.
func NotifySubscriptionChange(userID, source, status string) {
	// Safety: recover from any panic to avoid crashing the caller
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("slack notify panic recovered")
		}
	}()

	webhookURL := os.Getenv("SLACK_WEBHOOK_URL")
	if webhookURL == "" {
		return
	}

	payload := map[string]string{
		"text": fmt.Sprintf("💳 Subscription update\n\nUser: %s\nSource: %s\nStatus: %s",
			userID, source, status),
	}

	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("marshal slack payload")
		return
	}

	resp, err := http.Post(webhookURL, "application/json", bytes.NewBuffer(jsonPayload))
	if err != nil {
		log.Error().Err(err).Msg("send slack notification")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		log.Error().Int("status", resp.StatusCode).Msg("slack API error")
	}
}
