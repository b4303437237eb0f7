package models

import "time"

// Identity is the authenticated player bound to a connection. The address is
// normalized to lowercase when the token is verified and never changes for
// the lifetime of the connection.
type Identity struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
	Address  string `json:"address"`
}

// Participant is a player's state inside one session. It is owned by the
// session that contains it and mutated only by the engine.
type Participant struct {
	Identity
	Progress int       `json:"progress"`
	WPM      int       `json:"wpm"`
	HasPaid  bool      `json:"hasPaid"`
	JoinedAt time.Time `json:"joinedAt"`
}
