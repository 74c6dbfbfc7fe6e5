package domain

import "time"

// EmailSummary caches one AI-generated summary per (user, email).
type EmailSummary struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"index:idx_user_email;not null"`
	EmailID   string    `json:"email_id" gorm:"index:idx_user_email;uniqueIndex:idx_user_email_unique;not null"`
	Summary   string    `json:"summary" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
}

func (EmailSummary) TableName() string {
	return "email_summaries"
}
