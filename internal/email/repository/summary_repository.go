package repository

import (
	"errors"
	"time"

	emaildomain "mailboard-backend/internal/email/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SummaryRepository caches AI summaries, one per (user, email).
type SummaryRepository interface {
	GetSummary(userID, emailID string) (*emaildomain.EmailSummary, error)
	GetSummaries(userID string, emailIDs []string) (map[string]string, error)
	SaveSummary(userID, emailID, summary string) error
	DeleteSummary(userID, emailID string) error
}

type summaryRepository struct {
	db *gorm.DB
}

func NewSummaryRepository(db *gorm.DB) SummaryRepository {
	return &summaryRepository{db: db}
}

func (r *summaryRepository) GetSummary(userID, emailID string) (*emaildomain.EmailSummary, error) {
	var summary emaildomain.EmailSummary
	err := r.db.Where("user_id = ? AND email_id = ?", userID, emailID).First(&summary).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &summary, nil
}

func (r *summaryRepository) GetSummaries(userID string, emailIDs []string) (map[string]string, error) {
	result := make(map[string]string, len(emailIDs))
	if len(emailIDs) == 0 {
		return result, nil
	}

	var summaries []emaildomain.EmailSummary
	err := r.db.Where("user_id = ? AND email_id IN ?", userID, emailIDs).Find(&summaries).Error
	if err != nil {
		return nil, err
	}
	for _, s := range summaries {
		result[s.EmailID] = s.Summary
	}
	return result, nil
}

func (r *summaryRepository) SaveSummary(userID, emailID, summary string) error {
	row := &emaildomain.EmailSummary{
		ID:        uuid.New().String(),
		UserID:    userID,
		EmailID:   emailID,
		Summary:   summary,
		CreatedAt: time.Now(),
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "email_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"summary"}),
	}).Create(row).Error
}

func (r *summaryRepository) DeleteSummary(userID, emailID string) error {
	return r.db.Where("user_id = ? AND email_id = ?", userID, emailID).
		Delete(&emaildomain.EmailSummary{}).Error
}
