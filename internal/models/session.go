package models

import "time"

const (
	SessionStatusWaiting  = "waiting"
	SessionStatusActive   = "active"
	SessionStatusFinished = "finished"
)

// SessionRecord is the durable snapshot of a live session mirrored to Redis.
// Participants are stored in seat order; that order breaks winner ties.
type SessionRecord struct {
	ID           string        `json:"id"`
	Status       string        `json:"status"`
	Capacity     int           `json:"capacity"`
	PromptText   string        `json:"promptText"`
	Participants []Participant `json:"participants"`
	StartTime    time.Time     `json:"startTime,omitempty"`
	EndTime      time.Time     `json:"endTime,omitempty"`
	Winner       string        `json:"winner,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// ConnectionRecord maps a live connection to its identity and current
// session for crash recovery.
type ConnectionRecord struct {
	ConnID    string   `json:"connId"`
	Identity  Identity `json:"identity"`
	SessionID string   `json:"sessionId,omitempty"`
}
