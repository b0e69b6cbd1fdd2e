package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageKind classifies a job log line.
type MessageKind string

const (
	MessageInfo    MessageKind = "info"
	MessageSuccess MessageKind = "success"
	MessageWarning MessageKind = "warning"
	MessageError   MessageKind = "error"
)

// ValidateMessageKind returns an error if k is not a recognized kind.
func ValidateMessageKind(k MessageKind) error {
	switch k {
	case MessageInfo, MessageSuccess, MessageWarning, MessageError:
		return nil
	}
	return fmt.Errorf("invalid message kind %q", k)
}

// Color returns a color name string suitable for terminal rendering.
func (k MessageKind) Color() string {
	switch k {
	case MessageSuccess:
		return "green"
	case MessageWarning:
		return "yellow"
	case MessageError:
		return "red"
	default:
		return "white"
	}
}

// Message is one entry of a job's log.
type Message struct {
	Kind MessageKind
	Text string
	Time time.Time
}

type messageJSON struct {
	Kind string `json:"type"`
	Text string `json:"message"`
	Time string `json:"time"`
}

// MarshalJSON implements custom JSON serialization for Message.
func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(messageJSON{
		Kind: string(m.Kind),
		Text: m.Text,
		Time: m.Time.UTC().Format(time.RFC3339),
	})
}

// UnmarshalJSON implements custom JSON deserialization for Message.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w messageJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	m.Kind = MessageKind(w.Kind)
	if err := ValidateMessageKind(m.Kind); err != nil {
		return err
	}
	m.Text = w.Text
	t, err := time.Parse(time.RFC3339, w.Time)
	if err != nil {
		return fmt.Errorf("parsing time: %w", err)
	}
	m.Time = t
	return nil
}
