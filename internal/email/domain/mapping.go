package domain

import "time"

// ColumnMapping pins one email to one column. At most one row exists per
// (user, email); moving an email updates the row in place.
type ColumnMapping struct {
	ID       string `json:"id" gorm:"primaryKey"`
	UserID   string `json:"user_id" gorm:"index:idx_user_email_column;not null"`
	EmailID  string `json:"email_id" gorm:"index:idx_user_email_column;not null"`
	ColumnID string `json:"column_id" gorm:"index:idx_user_email_column;not null"`
	// PreviousColumnID remembers where a snoozed email came from so waking
	// can restore it.
	PreviousColumnID string     `json:"previous_column_id"`
	SnoozedUntil     *time.Time `json:"snoozed_until,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
