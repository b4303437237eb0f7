package services

import (
	"github.com/chair-kursi/blitz-monad-miniapp-template/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PayoutService keeps the durable record of resolved-but-unsettled outcomes
// and of finished matches. Live session state lives in memory and Redis; this
// is the system of record the ledger retry loop works against.
type PayoutService struct {
	db *gorm.DB
}

func NewPayoutService(db *gorm.DB) *PayoutService {
	return &PayoutService{db: db}
}

// RecordPending writes the outcome before the first ledger attempt. Repeated
// calls for the same session update the existing row.
func (s *PayoutService) RecordPending(sessionID, winnerAddress string) error {
	payout := models.PendingPayout{
		SessionID:     sessionID,
		WinnerAddress: winnerAddress,
		Status:        models.PayoutStatusPending,
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"winner_address", "status"}),
	}).Create(&payout).Error
}

func (s *PayoutService) MarkSettled(sessionID, receiptTx string, attempts int) error {
	return s.db.Model(&models.PendingPayout{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]any{
			"status":     models.PayoutStatusSettled,
			"receipt_tx": receiptTx,
			"attempts":   attempts,
		}).Error
}

func (s *PayoutService) MarkFailed(sessionID, lastError string, attempts int) error {
	return s.db.Model(&models.PendingPayout{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]any{
			"status":     models.PayoutStatusFailed,
			"last_error": lastError,
			"attempts":   attempts,
		}).Error
}

func (s *PayoutService) RecordResult(result *models.MatchResult) error {
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoNothing: true,
	}).Create(result).Error
}

// ListPending returns payouts that never settled, for operator inspection.
func (s *PayoutService) ListPending() ([]models.PendingPayout, error) {
	var payouts []models.PendingPayout
	err := s.db.Where("status = ?", models.PayoutStatusPending).
		Order("created_at ASC").
		Find(&payouts).Error
	return payouts, err
}
