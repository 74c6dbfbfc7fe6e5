package domain

import "time"

// SyncLedger records which emails have already been pushed to the vector
// store, so repeated syncs skip the embedding call.
type SyncLedger struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"index:idx_user_email;not null"`
	EmailID   string    `json:"email_id" gorm:"index:idx_user_email;not null;uniqueIndex:idx_user_email_unique"`
	SyncedAt  time.Time `json:"synced_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SyncLedger) TableName() string {
	return "vector_sync_ledger"
}
