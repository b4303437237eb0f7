package engine

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chair-kursi/blitz-monad-miniapp-template/internal/models"
	"github.com/chair-kursi/blitz-monad-miniapp-template/internal/services"
	"github.com/chair-kursi/blitz-monad-miniapp-template/internal/ws"

	"github.com/cenkalti/backoff/v4"
)

const (
	verifyTimeout = 15 * time.Second
	settleTimeout = 90 * time.Second
	mirrorTimeout = 5 * time.Second
)

// Deps wires the engine to its collaborators.
type Deps struct {
	Auth     *services.AuthService
	Prompts  *services.PromptService
	Queue    *services.Matchmaking
	Registry *ws.Registry
	Hub      *ws.Hub
	Store    SessionStore
	Gate     PaymentGate
	Payouts  PayoutRecorder

	Capacity      int
	Duration      time.Duration
	GraceDelay    time.Duration
	PayoutRetries int
}

// Engine is the sole entry point for inbound events and the only authority
// that mutates session state.
type Engine struct {
	auth     *services.AuthService
	prompts  *services.PromptService
	queue    *services.Matchmaking
	registry *ws.Registry
	hub      *ws.Hub
	store    SessionStore
	gate     PaymentGate
	payouts  PayoutRecorder

	capacity      int
	duration      time.Duration
	graceDelay    time.Duration
	payoutRetries int

	mu       sync.Mutex
	sessions map[string]*session
	nextID   atomic.Uint64
}

func New(deps Deps) *Engine {
	e := &Engine{
		auth:          deps.Auth,
		prompts:       deps.Prompts,
		queue:         deps.Queue,
		registry:      deps.Registry,
		hub:           deps.Hub,
		store:         deps.Store,
		gate:          deps.Gate,
		payouts:       deps.Payouts,
		capacity:      deps.Capacity,
		duration:      deps.Duration,
		graceDelay:    deps.GraceDelay,
		payoutRetries: deps.PayoutRetries,
		sessions:      make(map[string]*session),
	}
	// Seeding from wall clock keeps ids generation-ordered across restarts;
	// the counter makes them unique under concurrent creation.
	e.nextID.Store(uint64(time.Now().UnixMilli()))
	log.Println("engine: tournament engine initialized")
	return e
}

// Wire payload shapes.

type searchingData struct {
	QueueSize int `json:"queueSize"`
}

type matchedData struct {
	SessionID string          `json:"sessionId"`
	Opponent  models.Identity `json:"opponent"`
}

type sessionData struct {
	SessionID    string            `json:"sessionId"`
	PromptText   string            `json:"promptText"`
	EntryFee     string            `json:"entryFee,omitempty"`
	Participants []models.Identity `json:"participants,omitempty"`
}

type startedData struct {
	StartTime int64 `json:"startTime"`
	EndTime   int64 `json:"endTime"`
	Duration  int   `json:"duration"`
}

type progressData struct {
	Address  string `json:"address"`
	Username string `json:"username"`
	Progress int    `json:"progress"`
	WPM      int    `json:"wpm"`
}

type winnerData struct {
	Username string `json:"username"`
	Address  string `json:"address"`
	Progress int    `json:"progress"`
	WPM      int    `json:"wpm"`
}

type finishedData struct {
	Winner            winnerData `json:"winner"`
	SettlementReceipt string     `json:"settlementReceipt"`
}

// Dispatch routes one inbound frame. A panic while handling an event is
// contained to that event so one bad session cannot take the process down.
func (e *Engine) Dispatch(peer ws.Peer, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("engine: panic handling event from %s: %v", peer.ID(), r)
			e.sendError(peer, KindInternal, "Internal error")
		}
	}()

	env, err := ws.DecodeEnvelope(raw)
	if err != nil {
		e.sendError(peer, KindInvalidPayload, "Malformed message")
		return
	}

	switch env.Type {
	case ws.MsgAuthenticate:
		e.handleAuthenticate(peer, env.Data)
	case ws.MsgRequestMatch:
		e.handleRequestMatch(peer)
	case ws.MsgCreateSession:
		e.handleCreateSession(peer)
	case ws.MsgJoinSession:
		e.handleJoinSession(peer, env.Data)
	case ws.MsgProgress:
		e.handleProgress(peer, env.Data)
	case ws.MsgLeaveSession:
		e.handleLeaveSession(peer)
	}
}

// Disconnect tears down everything bound to a closed connection.
func (e *Engine) Disconnect(peer ws.Peer) {
	if ident, ok := e.registry.Identity(peer); ok {
		e.queue.Cancel(ident.Address)
	}
	e.detach(peer)
	e.registry.Unbind(peer)

	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	if err := e.store.DeleteConnection(ctx, peer.ID()); err != nil {
		log.Printf("store: delete connection %s: %v", peer.ID(), err)
	}
	log.Printf("engine: peer %s disconnected", peer.ID())
}

func (e *Engine) handleAuthenticate(peer ws.Peer, data json.RawMessage) {
	var payload ws.AuthPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		e.sendError(peer, KindAuthFailed, "Authentication failed")
		return
	}
	if err := payload.Validate(); err != nil {
		e.sendError(peer, KindAuthFailed, "Authentication failed")
		return
	}

	ident, err := e.auth.Verify(payload.Token)
	if err != nil {
		e.sendError(peer, KindAuthFailed, "Authentication failed")
		return
	}

	e.registry.Bind(peer, ident)
	e.mirrorConnection(peer, ident, "")
	e.send(peer, ws.Event{Type: ws.EvtAuthenticated, Data: ident})
	log.Printf("engine: authenticated %s (%s)", ident.Username, ident.Address)
}

func (e *Engine) handleRequestMatch(peer ws.Peer) {
	ident, ok := e.requireAuth(peer)
	if !ok {
		return
	}
	if _, inSession := e.registry.Session(peer); inSession {
		e.sendError(peer, KindAlreadyStarted, "Already in a session")
		return
	}

	opponent := e.queue.Match(ident, peer)
	if opponent == nil {
		e.send(peer, ws.Event{Type: ws.EvtSearching, Data: searchingData{QueueSize: e.queue.Size()}})
		return
	}

	s := e.createSession(e.capacity)
	s.mu.Lock()
	// The longer-waiting player gets the earlier seat; seat order breaks
	// winner ties later.
	s.seatLocked(opponent.Identity, false)
	s.seatLocked(ident, false)
	identities := s.identitiesLocked()
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	for _, pair := range []struct {
		peer  ws.Peer
		ident models.Identity
		other models.Identity
	}{
		{opponent.Peer, opponent.Identity, ident},
		{peer, ident, opponent.Identity},
	} {
		e.hub.Join(s.id, pair.peer)
		e.registry.SetSession(pair.peer, s.id)
		e.mirrorConnection(pair.peer, pair.ident, s.id)
		e.send(pair.peer, ws.Event{Type: ws.EvtMatched, Data: matchedData{SessionID: s.id, Opponent: pair.other}})
		e.send(pair.peer, ws.Event{Type: ws.EvtSessionJoined, Data: sessionData{
			SessionID:    s.id,
			PromptText:   s.prompt,
			EntryFee:     e.gate.EntryFee(),
			Participants: identities,
		}})
	}

	e.mirrorSession(snapshot)
	e.markActive(s.id)
	log.Printf("engine: matched %s vs %s in session %s", opponent.Identity.Username, ident.Username, s.id)
}

func (e *Engine) handleCreateSession(peer ws.Peer) {
	ident, ok := e.requireAuth(peer)
	if !ok {
		return
	}
	if _, inSession := e.registry.Session(peer); inSession {
		e.sendError(peer, KindAlreadyStarted, "Already in a session")
		return
	}

	e.queue.Cancel(ident.Address)

	s := e.createSession(e.capacity)
	s.mu.Lock()
	s.seatLocked(ident, false)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	e.hub.Join(s.id, peer)
	e.registry.SetSession(peer, s.id)
	e.mirrorConnection(peer, ident, s.id)
	e.mirrorSession(snapshot)
	e.markActive(s.id)

	e.send(peer, ws.Event{Type: ws.EvtSessionCreated, Data: sessionData{
		SessionID:  s.id,
		PromptText: s.prompt,
		EntryFee:   e.gate.EntryFee(),
	}})
	log.Printf("engine: session %s created by %s", s.id, ident.Username)
}

func (e *Engine) handleJoinSession(peer ws.Peer, data json.RawMessage) {
	ident, ok := e.requireAuth(peer)
	if !ok {
		return
	}

	var payload ws.JoinPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		e.sendError(peer, KindInvalidPayload, "Malformed message")
		return
	}
	if err := payload.Validate(); err != nil {
		e.sendError(peer, KindInvalidPayload, err.Error())
		return
	}

	s := e.lookup(payload.SessionID)
	if s == nil {
		e.sendError(peer, KindSessionNotFound, "Session not found")
		return
	}

	s.mu.Lock()
	if s.removed {
		s.mu.Unlock()
		e.sendError(peer, KindSessionNotFound, "Session not found")
		return
	}
	if s.status != models.SessionStatusWaiting {
		s.mu.Unlock()
		e.sendError(peer, KindAlreadyStarted, "Session already started")
		return
	}
	_, seated := s.participants[ident.Address]
	if !seated && len(s.participants) >= s.capacity {
		s.mu.Unlock()
		e.sendError(peer, KindSessionFull, "Session is full")
		return
	}
	s.mu.Unlock()

	// Ledger round-trip happens off the session lock so unrelated events
	// for this session are not stalled behind the network.
	ctx, cancel := context.WithTimeout(context.Background(), verifyTimeout)
	paid, err := e.gate.VerifyPayment(ctx, s.id, ident.Address)
	cancel()
	if err != nil {
		log.Printf("ledger: verify payment for %s in %s: %v", ident.Address, s.id, err)
		e.sendError(peer, KindPaymentUnverified, "Payment verification failed")
		return
	}
	if !paid {
		e.sendError(peer, KindPaymentUnverified, "Payment not verified. Please pay entry fee first.")
		return
	}

	s.mu.Lock()
	// The session may have moved on during the round-trip.
	if s.removed {
		s.mu.Unlock()
		e.sendError(peer, KindSessionNotFound, "Session not found")
		return
	}
	if s.status != models.SessionStatusWaiting {
		s.mu.Unlock()
		e.sendError(peer, KindAlreadyStarted, "Session already started")
		return
	}

	newJoin := false
	if p, ok := s.participants[ident.Address]; ok {
		p.HasPaid = true
	} else {
		if len(s.participants) >= s.capacity {
			s.mu.Unlock()
			e.sendError(peer, KindSessionFull, "Session is full")
			return
		}
		s.seatLocked(ident, true)
		newJoin = true
	}
	ready := s.startConditionLocked()
	identities := s.identitiesLocked()
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if newJoin {
		e.queue.Cancel(ident.Address)
		e.hub.Join(s.id, peer)
		e.registry.SetSession(peer, s.id)
		e.mirrorConnection(peer, ident, s.id)
		e.hub.Broadcast(s.id, ws.Event{Type: ws.EvtParticipantJoin, Data: ident}, peer)
	}
	e.send(peer, ws.Event{Type: ws.EvtSessionJoined, Data: sessionData{
		SessionID:    s.id,
		PromptText:   s.prompt,
		Participants: identities,
	}})
	e.mirrorSession(snapshot)
	log.Printf("engine: %s joined session %s (paid)", ident.Username, s.id)

	if ready {
		e.scheduleStart(s)
	}
}

func (e *Engine) handleProgress(peer ws.Peer, data json.RawMessage) {
	ident, ok := e.registry.Identity(peer)
	if !ok {
		return
	}

	var payload ws.ProgressPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}
	if err := payload.Validate(); err != nil {
		return
	}

	s := e.lookup(payload.SessionID)
	if s == nil {
		return
	}

	progress := payload.Progress
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	wpm := payload.WPM
	if wpm < 0 {
		wpm = 0
	}

	s.mu.Lock()
	if s.removed || s.status != models.SessionStatusActive {
		s.mu.Unlock()
		return
	}
	p, ok := s.participants[ident.Address]
	if !ok {
		s.mu.Unlock()
		return
	}

	// Regressions are stored as-is; only the 0-100 bound is enforced.
	p.Progress = progress
	p.WPM = wpm

	var o *outcome
	if progress >= 100 {
		o = s.resolveLocked(ident.Address)
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	e.hub.Broadcast(s.id, ws.Event{Type: ws.EvtProgressUpdate, Data: progressData{
		Address:  ident.Address,
		Username: ident.Username,
		Progress: progress,
		WPM:      wpm,
	}}, peer)
	e.mirrorSession(snapshot)

	if o != nil {
		go e.settle(o)
	}
}

func (e *Engine) handleLeaveSession(peer ws.Peer) {
	if _, ok := e.requireAuth(peer); !ok {
		return
	}
	e.detach(peer)
}

// scheduleStart arms the grace delay once the start condition holds, or
// starts immediately when no delay is configured.
func (e *Engine) scheduleStart(s *session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.removed || s.resolved || s.status != models.SessionStatusWaiting {
		return
	}
	if e.graceDelay <= 0 {
		e.startLocked(s)
		return
	}
	if s.graceTimer != nil {
		return
	}
	gen := s.gen
	s.graceTimer = time.AfterFunc(e.graceDelay, func() {
		e.startAfterGrace(s.id, gen)
	})
	log.Printf("engine: session %s full, starting in %s", s.id, e.graceDelay)
}

func (e *Engine) startAfterGrace(sessionID string, gen uint64) {
	s := e.lookup(sessionID)
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// The session may have been torn down or restarted its lifecycle since
	// the timer was armed; a stale callback is a silent no-op.
	if s.removed || s.resolved || s.status != models.SessionStatusWaiting || s.gen != gen {
		return
	}
	s.graceTimer = nil
	if !s.startConditionLocked() {
		return
	}
	e.startLocked(s)
}

func (e *Engine) startLocked(s *session) {
	s.status = models.SessionStatusActive
	s.gen++
	s.graceTimer = nil

	now := time.Now()
	s.startTime = now
	s.endTime = now.Add(e.duration)

	gen := s.gen
	s.expiryTimer = time.AfterFunc(e.duration, func() {
		e.expireSession(s.id, gen)
	})

	e.hub.Broadcast(s.id, ws.Event{Type: ws.EvtSessionStarted, Data: startedData{
		StartTime: s.startTime.UnixMilli(),
		EndTime:   s.endTime.UnixMilli(),
		Duration:  int(e.duration.Seconds()),
	}}, nil)
	e.mirrorSession(s.snapshotLocked())
	log.Printf("engine: session %s started", s.id)
}

func (e *Engine) expireSession(sessionID string, gen uint64) {
	s := e.lookup(sessionID)
	if s == nil {
		return
	}

	s.mu.Lock()
	if s.removed || s.resolved || s.status != models.SessionStatusActive || s.gen != gen {
		s.mu.Unlock()
		return
	}
	o := s.resolveLocked("")
	s.mu.Unlock()

	if o != nil {
		log.Printf("engine: session %s expired", sessionID)
		e.settle(o)
	}
}

// settle runs the external side of resolution: the durable pending-payout
// record, the ledger write with bounded backoff, the outcome broadcast, and
// the removal of the session from the live table.
func (e *Engine) settle(o *outcome) {
	if o.fatal {
		log.Printf("engine: session %s resolved with no participants", o.sessionID)
		e.hub.Broadcast(o.sessionID, ws.Event{Type: ws.EvtError, Data: ws.ErrorData{
			Message: "Session failed",
			Kind:    KindInternal,
		}}, nil)
		e.removeSession(o.sessionID)
		return
	}

	if err := e.payouts.RecordPending(o.sessionID, o.winner.Address); err != nil {
		log.Printf("payouts: record pending for %s: %v", o.sessionID, err)
	}

	attempts := 0
	var receipt string
	operation := func() error {
		attempts++
		ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
		defer cancel()
		r, err := e.gate.DeclareWinner(ctx, o.sessionID, o.winner.Address)
		if err != nil {
			log.Printf("ledger: declare winner for %s (attempt %d): %v", o.sessionID, attempts, err)
			return err
		}
		receipt = r
		return nil
	}
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(e.payoutRetries))
	err := backoff.Retry(operation, policy)
	if err != nil {
		if dbErr := e.payouts.MarkFailed(o.sessionID, err.Error(), attempts); dbErr != nil {
			log.Printf("payouts: mark failed for %s: %v", o.sessionID, dbErr)
		}
		e.hub.Broadcast(o.sessionID, ws.Event{Type: ws.EvtError, Data: ws.ErrorData{
			Message: "Failed to settle the match on the ledger",
			Kind:    KindLedgerFailure,
		}}, nil)
		e.removeSession(o.sessionID)
		return
	}

	if dbErr := e.payouts.MarkSettled(o.sessionID, receipt, attempts); dbErr != nil {
		log.Printf("payouts: mark settled for %s: %v", o.sessionID, dbErr)
	}
	if dbErr := e.payouts.RecordResult(&models.MatchResult{
		SessionID:      o.sessionID,
		WinnerAddress:  o.winner.Address,
		WinnerUsername: o.winner.Username,
		WinnerProgress: o.winner.Progress,
		WinnerWPM:      o.winner.WPM,
		ReceiptTx:      receipt,
		StartedAt:      o.startedAt,
		FinishedAt:     o.finishedAt,
	}); dbErr != nil {
		log.Printf("payouts: record result for %s: %v", o.sessionID, dbErr)
	}

	e.hub.Broadcast(o.sessionID, ws.Event{Type: ws.EvtSessionFinished, Data: finishedData{
		Winner: winnerData{
			Username: o.winner.Username,
			Address:  o.winner.Address,
			Progress: o.winner.Progress,
			WPM:      o.winner.WPM,
		},
		SettlementReceipt: receipt,
	}}, nil)
	log.Printf("engine: session %s finished, winner %s", o.sessionID, o.winner.Username)
	e.removeSession(o.sessionID)
}

// detach unbinds the connection from its session. Waiting sessions lose the
// participant and die when empty; active sessions keep the participant record
// and resolve normally at completion or timeout.
func (e *Engine) detach(peer ws.Peer) {
	sessionID, ok := e.registry.Session(peer)
	if !ok {
		return
	}
	ident, hasIdent := e.registry.Identity(peer)

	e.registry.ClearSession(peer)
	e.hub.Leave(sessionID, peer)

	s := e.lookup(sessionID)
	if s == nil || !hasIdent {
		return
	}

	s.mu.Lock()
	if s.removed {
		s.mu.Unlock()
		return
	}

	switch s.status {
	case models.SessionStatusWaiting:
		if _, seated := s.participants[ident.Address]; seated {
			s.unseatLocked(ident.Address)
		}
		empty := len(s.participants) == 0
		snapshot := s.snapshotLocked()
		s.mu.Unlock()

		e.hub.Broadcast(sessionID, ws.Event{Type: ws.EvtParticipantLeft, Data: ident}, peer)
		if empty {
			e.removeSession(sessionID)
		} else {
			e.mirrorSession(snapshot)
		}
	case models.SessionStatusActive:
		// Policy: the match continues without the connection. The frozen
		// participant still counts at timeout resolution.
		s.mu.Unlock()
		e.hub.Broadcast(sessionID, ws.Event{Type: ws.EvtParticipantLeft, Data: ident}, peer)
	default:
		s.mu.Unlock()
	}
}

func (e *Engine) createSession(capacity int) *session {
	id := strconv.FormatUint(e.nextID.Add(1), 10)
	s := newSession(id, e.prompts.Next(), capacity)

	e.mu.Lock()
	e.sessions[id] = s
	e.mu.Unlock()
	return s
}

func (e *Engine) lookup(id string) *session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessions[id]
}

func (e *Engine) removeSession(id string) {
	e.mu.Lock()
	s := e.sessions[id]
	delete(e.sessions, id)
	e.mu.Unlock()
	if s == nil {
		return
	}

	s.mu.Lock()
	s.removed = true
	s.gen++
	s.stopTimersLocked()
	s.mu.Unlock()

	for _, p := range e.hub.Peers(id) {
		e.registry.ClearSession(p)
		if ident, ok := e.registry.Identity(p); ok {
			e.mirrorConnection(p, ident, "")
		}
	}
	e.hub.Drop(id)

	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	if err := e.store.DeleteSession(ctx, id); err != nil {
		log.Printf("store: delete session %s: %v", id, err)
	}
	if err := e.store.RemoveActive(ctx, id); err != nil {
		log.Printf("store: remove active %s: %v", id, err)
	}
	log.Printf("engine: session %s removed", id)
}

// Sessions snapshots the live table for the read-only HTTP listing.
func (e *Engine) Sessions() []models.SessionRecord {
	e.mu.Lock()
	live := make([]*session, 0, len(e.sessions))
	for _, s := range e.sessions {
		live = append(live, s)
	}
	e.mu.Unlock()

	out := make([]models.SessionRecord, 0, len(live))
	for _, s := range live {
		s.mu.Lock()
		if !s.removed {
			out = append(out, *s.snapshotLocked())
		}
		s.mu.Unlock()
	}
	return out
}

func (e *Engine) requireAuth(peer ws.Peer) (models.Identity, bool) {
	ident, ok := e.registry.Identity(peer)
	if !ok {
		e.sendError(peer, KindNotAuthenticated, "Not authenticated")
	}
	return ident, ok
}

func (e *Engine) send(peer ws.Peer, ev ws.Event) {
	if err := peer.Send(ev); err != nil {
		log.Printf("ws: write error to %s: %v", peer.ID(), err)
	}
}

func (e *Engine) sendError(peer ws.Peer, kind, message string) {
	e.send(peer, ws.Event{Type: ws.EvtError, Data: ws.ErrorData{Message: message, Kind: kind}})
}

// Mirror writes run inline on the calling goroutine so the store sees
// mutations in the order the session applied them. A slow store delays only
// the connection (or timer) that caused the write.

func (e *Engine) mirrorSession(rec *models.SessionRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	if err := e.store.SaveSession(ctx, rec); err != nil {
		log.Printf("store: save session %s: %v", rec.ID, err)
	}
}

func (e *Engine) markActive(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	if err := e.store.AddActive(ctx, sessionID); err != nil {
		log.Printf("store: add active %s: %v", sessionID, err)
	}
}

func (e *Engine) mirrorConnection(peer ws.Peer, ident models.Identity, sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	rec := &models.ConnectionRecord{ConnID: peer.ID(), Identity: ident, SessionID: sessionID}
	if err := e.store.SaveConnection(ctx, rec); err != nil {
		log.Printf("store: save connection %s: %v", peer.ID(), err)
	}
}
