// Package queue carries feedback analysis jobs between the API and the workers.
package queue

import (
	"encoding/json"
	"time"
)

// MessageVersion is written on every message this build produces.
const MessageVersion = 1

// Message is one queued analysis job.
type Message struct {
	CorrelationID string `json:"correlationId"`
	Text          string `json:"text"`
	Locale        string `json:"locale,omitempty"`
	RequestID     string `json:"requestId,omitempty"`
	EnqueuedAt    string `json:"enqueuedAt"`
	Version       int    `json:"version"`
}

// NewMessage stamps a message with the current version and enqueue time.
func NewMessage(correlationID, text, locale, requestID string, now time.Time) Message {
	return Message{
		CorrelationID: correlationID,
		Text:          text,
		Locale:        locale,
		RequestID:     requestID,
		EnqueuedAt:    now.UTC().Format(time.RFC3339),
		Version:       MessageVersion,
	}
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
