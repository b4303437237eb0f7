package engine

import (
	"sync"
	"time"

	"github.com/chair-kursi/blitz-monad-miniapp-template/internal/models"
)

// session is one live match. All fields behind mu; mutation is serialized
// per session, never across sessions.
type session struct {
	mu sync.Mutex

	id           string
	status       string
	capacity     int
	prompt       string
	participants map[string]*models.Participant
	order        []string // seat order by address; breaks winner ties
	startTime    time.Time
	endTime      time.Time
	winner       string
	createdAt    time.Time

	// gen increments on every transition and on teardown. Timer callbacks
	// capture it when armed and no-op on mismatch, so a callback firing
	// after the session moved on is detectable.
	gen      uint64
	resolved bool
	removed  bool

	graceTimer  *time.Timer
	expiryTimer *time.Timer
}

func newSession(id, prompt string, capacity int) *session {
	return &session{
		id:           id,
		status:       models.SessionStatusWaiting,
		capacity:     capacity,
		prompt:       prompt,
		participants: make(map[string]*models.Participant),
		createdAt:    time.Now(),
	}
}

func (s *session) seatLocked(ident models.Identity, hasPaid bool) *models.Participant {
	p := &models.Participant{
		Identity: ident,
		HasPaid:  hasPaid,
		JoinedAt: time.Now(),
	}
	s.participants[ident.Address] = p
	s.order = append(s.order, ident.Address)
	return p
}

func (s *session) unseatLocked(address string) {
	delete(s.participants, address)
	for i, addr := range s.order {
		if addr == address {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *session) allPaidLocked() bool {
	for _, p := range s.participants {
		if !p.HasPaid {
			return false
		}
	}
	return true
}

func (s *session) startConditionLocked() bool {
	return len(s.participants) == s.capacity && s.allPaidLocked()
}

func (s *session) identitiesLocked() []models.Identity {
	out := make([]models.Identity, 0, len(s.order))
	for _, addr := range s.order {
		if p, ok := s.participants[addr]; ok {
			out = append(out, p.Identity)
		}
	}
	return out
}

func (s *session) snapshotLocked() *models.SessionRecord {
	rec := &models.SessionRecord{
		ID:         s.id,
		Status:     s.status,
		Capacity:   s.capacity,
		PromptText: s.prompt,
		StartTime:  s.startTime,
		EndTime:    s.endTime,
		Winner:     s.winner,
		CreatedAt:  s.createdAt,
	}
	for _, addr := range s.order {
		if p, ok := s.participants[addr]; ok {
			rec.Participants = append(rec.Participants, *p)
		}
	}
	return rec
}

func (s *session) stopTimersLocked() {
	if s.graceTimer != nil {
		s.graceTimer.Stop()
		s.graceTimer = nil
	}
	if s.expiryTimer != nil {
		s.expiryTimer.Stop()
		s.expiryTimer = nil
	}
}

// outcome is the immutable result of a resolution, handed to the settlement
// path outside the session lock.
type outcome struct {
	sessionID  string
	winner     *models.Participant
	startedAt  time.Time
	finishedAt time.Time
	fatal      bool
}

// resolveLocked transitions the session to finished exactly once and picks
// the winner. explicitWinner is the address of a participant whose progress
// reached 100; empty means the expiry timer fired and the highest progress
// wins, ties going to the earlier seat.
func (s *session) resolveLocked(explicitWinner string) *outcome {
	if s.resolved {
		return nil
	}
	s.resolved = true
	s.status = models.SessionStatusFinished
	s.gen++
	s.stopTimersLocked()

	var winner *models.Participant
	if explicitWinner != "" {
		winner = s.participants[explicitWinner]
	}
	if winner == nil {
		for _, addr := range s.order {
			p, ok := s.participants[addr]
			if !ok {
				continue
			}
			if winner == nil || p.Progress > winner.Progress {
				winner = p
			}
		}
	}

	o := &outcome{
		sessionID:  s.id,
		startedAt:  s.startTime,
		finishedAt: time.Now(),
	}
	if winner == nil {
		o.fatal = true
		return o
	}

	s.winner = winner.Address
	w := *winner
	o.winner = &w
	return o
}
