package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const fcmSendEndpoint = "https://fcm.googleapis.com/fcm/send"

// FCMDispatcher sends pushes through the FCM HTTP API, throttled so a burst
// of due occurrences cannot flood the endpoint.
type FCMDispatcher struct {
	serverKey string
	endpoint  string
	client    *http.Client
	limiter   *rate.Limiter
}

func NewFCMDispatcher(serverKey string) *FCMDispatcher {
	return &FCMDispatcher{
		serverKey: serverKey,
		endpoint:  fcmSendEndpoint,
		client:    &http.Client{Timeout: 10 * time.Second},
		limiter:   rate.NewLimiter(rate.Limit(20), 20),
	}
}

type fcmMessage struct {
	To           string            `json:"to"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Results []struct {
		Error string `json:"error"`
	} `json:"results"`
}

func (d *FCMDispatcher) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	payload, err := json.Marshal(fcmMessage{
		To:           token,
		Notification: fcmNotification{Title: title, Body: body},
		Data:         data,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal FCM message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create FCM request: %w", err)
	}
	req.Header.Set("Authorization", "key="+d.serverKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("FCM request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("FCM returned status %d", resp.StatusCode)
	}

	var result fcmResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode FCM response: %w", err)
	}
	if result.Failure > 0 {
		reason := "unknown"
		if len(result.Results) > 0 && result.Results[0].Error != "" {
			reason = result.Results[0].Error
		}
		return fmt.Errorf("FCM rejected message: %s", reason)
	}
	return nil
}
