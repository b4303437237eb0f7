package engine

import (
	"context"

	"github.com/chair-kursi/blitz-monad-miniapp-template/internal/models"
)

// SessionStore is the durable write-behind mirror of live state. It is never
// consulted on the hot path; failures are logged, not propagated.
type SessionStore interface {
	SaveSession(ctx context.Context, rec *models.SessionRecord) error
	DeleteSession(ctx context.Context, id string) error
	AddActive(ctx context.Context, id string) error
	RemoveActive(ctx context.Context, id string) error
	SaveConnection(ctx context.Context, rec *models.ConnectionRecord) error
	DeleteConnection(ctx context.Context, connID string) error
}

// PaymentGate is the external ledger: entry-fee verification reads and the
// winner-declaration write.
type PaymentGate interface {
	EntryFee() string
	VerifyPayment(ctx context.Context, sessionID, address string) (bool, error)
	DeclareWinner(ctx context.Context, sessionID, winnerAddress string) (string, error)
}

// PayoutRecorder persists resolved outcomes and their settlement state.
type PayoutRecorder interface {
	RecordPending(sessionID, winnerAddress string) error
	MarkSettled(sessionID, receiptTx string, attempts int) error
	MarkFailed(sessionID, lastError string, attempts int) error
	RecordResult(result *models.MatchResult) error
}
