package liveserver

import "time"

// Message is one WebSocket frame sent to observers
type Message struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Message type constants
const (
	TypeEngineEvent = "engine_event"
	TypeHello       = "hello"
)
