package repository

import (
	"time"

	emaildomain "mailboard-backend/internal/email/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LedgerRepository tracks which emails already reached the vector store.
type LedgerRepository interface {
	// EnsureSynced records the email as synced if it wasn't. Returns whether
	// it was already recorded, so callers can skip the embedding call.
	EnsureSynced(userID, emailID string) (bool, error)
	DeleteEntry(userID, emailID string) error
}

type ledgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) EnsureSynced(userID, emailID string) (bool, error) {
	now := time.Now()
	var entry emaildomain.SyncLedger

	// FirstOrCreate keeps check-and-record a single round trip.
	result := r.db.Where("user_id = ? AND email_id = ?", userID, emailID).
		FirstOrCreate(&entry, emaildomain.SyncLedger{
			ID:        uuid.New().String(),
			UserID:    userID,
			EmailID:   emailID,
			SyncedAt:  now,
			CreatedAt: now,
			UpdatedAt: now,
		})
	if result.Error != nil {
		return false, result.Error
	}

	alreadySynced := result.RowsAffected == 0
	return alreadySynced, nil
}

func (r *ledgerRepository) DeleteEntry(userID, emailID string) error {
	return r.db.Where("user_id = ? AND email_id = ?", userID, emailID).
		Delete(&emaildomain.SyncLedger{}).Error
}
