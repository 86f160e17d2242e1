package vapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"telehealth-platform/internal/calls"
)

// maxWebhookBody bounds how much of a webhook body is read.
const maxWebhookBody = 2 << 20

// HeaderWebhookSecret carries the shared secret configured on the vendor side.
const HeaderWebhookSecret = "X-Vapi-Secret"

var ErrInvalidPayload = errors.New("vapi: invalid webhook payload")

// WebhookPayload is the envelope the vendor posts to the server URL.
type WebhookPayload struct {
	Message WebhookMessage `json:"message"`
}

// WebhookMessage carries a call snapshot. Status-update and end-of-call
// messages sometimes put status and analysis on the message itself instead
// of on the call; ToCall folds those in.
type WebhookMessage struct {
	Type        string    `json:"type,omitempty"`
	Status      string    `json:"status,omitempty"`
	EndedReason string    `json:"endedReason,omitempty"`
	Call        *Call     `json:"call,omitempty"`
	Analysis    *Analysis `json:"analysis,omitempty"`
	Transcript  string    `json:"transcript,omitempty"`
}

// ParseWebhook decodes a webhook body.
func ParseWebhook(r io.Reader) (WebhookMessage, error) {
	var p WebhookPayload
	dec := json.NewDecoder(io.LimitReader(r, maxWebhookBody))
	if err := dec.Decode(&p); err != nil {
		return WebhookMessage{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return p.Message, nil
}

// ToCall returns the call snapshot with message-level fields merged in.
// ok is false when the message does not describe a call.
func (m WebhookMessage) ToCall() (Call, bool) {
	if m.Call == nil || strings.TrimSpace(m.Call.ID) == "" {
		return Call{}, false
	}
	c := *m.Call
	c.ID = strings.TrimSpace(c.ID)
	if c.Status == "" && m.Status != "" {
		c.Status = calls.Status(m.Status)
	}
	c.Status = calls.Normalize(string(c.Status))
	if c.EndedReason == "" {
		c.EndedReason = m.EndedReason
	}
	if c.Analysis.IsEmpty() && !m.Analysis.IsEmpty() {
		c.Analysis = m.Analysis
	}
	if c.Transcript == "" {
		c.Transcript = m.Transcript
	}
	return c, true
}
