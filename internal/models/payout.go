package models

import "time"

const (
	PayoutStatusPending = "pending"
	PayoutStatusSettled = "settled"
	PayoutStatusFailed  = "failed"
)

// PendingPayout is written the moment a session resolves, before the ledger
// write is attempted, so a crash mid-settlement leaves a durable trace.
type PendingPayout struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	SessionID     string    `gorm:"size:32;not null;uniqueIndex" json:"session_id"`
	WinnerAddress string    `gorm:"size:42;not null" json:"winner_address"`
	Status        string    `gorm:"size:20;not null;default:'pending'" json:"status"`
	Attempts      int       `gorm:"not null;default:0" json:"attempts"`
	ReceiptTx     string    `gorm:"size:66" json:"receipt_tx,omitempty"`
	LastError     string    `gorm:"size:500" json:"last_error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// MatchResult is the durable history of a settled match.
type MatchResult struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	SessionID      string    `gorm:"size:32;not null;uniqueIndex" json:"session_id"`
	WinnerAddress  string    `gorm:"size:42;not null" json:"winner_address"`
	WinnerUsername string    `gorm:"size:100" json:"winner_username"`
	WinnerProgress int       `gorm:"not null;default:0" json:"winner_progress"`
	WinnerWPM      int       `gorm:"not null;default:0" json:"winner_wpm"`
	ReceiptTx      string    `gorm:"size:66" json:"receipt_tx"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}
