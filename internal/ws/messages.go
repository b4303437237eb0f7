package ws

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Inbound message types.
const (
	MsgAuthenticate  = "authenticate"
	MsgRequestMatch  = "request_match"
	MsgCreateSession = "create_session"
	MsgJoinSession   = "join_session"
	MsgProgress      = "progress"
	MsgLeaveSession  = "leave_session"
)

// Outbound event types.
const (
	EvtAuthenticated   = "authenticated"
	EvtSessionCreated  = "session_created"
	EvtSessionJoined   = "session_joined"
	EvtSearching       = "searching"
	EvtMatched         = "matched"
	EvtSessionStarted  = "session_started"
	EvtParticipantJoin = "participant_joined"
	EvtParticipantLeft = "participant_left"
	EvtProgressUpdate  = "progress_update"
	EvtSessionFinished = "session_finished"
	EvtError           = "error"
)

// Event is the outbound wire frame.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Envelope is the inbound wire frame. Data stays raw until the handler for
// the type decodes it against its own payload struct.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

var ErrUnknownMessage = errors.New("unknown message type")

func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("malformed frame: %w", err)
	}
	switch env.Type {
	case MsgAuthenticate, MsgRequestMatch, MsgCreateSession,
		MsgJoinSession, MsgProgress, MsgLeaveSession:
		return env, nil
	}
	return env, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
}

type AuthPayload struct {
	Token string `json:"token"`
}

func (p *AuthPayload) Validate() error {
	if p.Token == "" {
		return errors.New("token is required")
	}
	return nil
}

type JoinPayload struct {
	SessionID string `json:"sessionId"`
}

func (p *JoinPayload) Validate() error {
	if p.SessionID == "" {
		return errors.New("sessionId is required")
	}
	return nil
}

type ProgressPayload struct {
	SessionID string `json:"sessionId"`
	Progress  int    `json:"progress"`
	WPM       int    `json:"wpm"`
	Timestamp int64  `json:"timestamp"`
}

func (p *ProgressPayload) Validate() error {
	if p.SessionID == "" {
		return errors.New("sessionId is required")
	}
	return nil
}

// ErrorData is the payload of every error event.
type ErrorData struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
}
