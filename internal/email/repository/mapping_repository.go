package repository

import (
	"errors"
	"time"

	emaildomain "mailboard-backend/internal/email/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SnoozedMapping is the slice of a mapping the snooze sweeper needs.
type SnoozedMapping struct {
	UserID           string
	EmailID          string
	PreviousColumnID string
	SnoozedUntil     *time.Time
}

// MappingRepository persists email-to-column assignments. The invariant is
// at most one row per (user, email); writes go through an update-or-create
// that collapses any historical duplicates.
type MappingRepository interface {
	SetEmailColumn(userID, emailID, columnSlug string) error
	GetEmailColumn(userID, emailID string) (string, error)
	// GetEmailColumnMap resolves many emails in one query.
	GetEmailColumnMap(userID string, emailIDs []string) (map[string]string, error)
	GetEmailsByColumn(userID, columnSlug string) ([]string, error)
	CountEmailsByColumn(userID, columnSlug string) (int64, error)
	RemoveEmailColumn(userID, emailID string) error
	ReassignColumn(userID, fromSlug, toSlug string) error

	SnoozeEmail(userID, emailID, previousColumnSlug string, snoozedUntil time.Time) error
	GetMapping(userID, emailID string) (*emaildomain.ColumnMapping, error)
	GetAllSnoozed() ([]SnoozedMapping, error)
}

type mappingRepository struct {
	db *gorm.DB
}

func NewMappingRepository(db *gorm.DB) MappingRepository {
	return &mappingRepository{db: db}
}

func (r *mappingRepository) SetEmailColumn(userID, emailID, columnSlug string) error {
	var count int64
	r.db.Model(&emaildomain.ColumnMapping{}).
		Where("user_id = ? AND email_id = ?", userID, emailID).Count(&count)

	if count == 0 {
		mapping := emaildomain.ColumnMapping{
			ID:       uuid.New().String(),
			UserID:   userID,
			EmailID:  emailID,
			ColumnID: columnSlug,
		}
		return r.db.Create(&mapping).Error
	}

	// Clears any lingering snooze state: an explicit move wins.
	return r.db.Model(&emaildomain.ColumnMapping{}).
		Where("user_id = ? AND email_id = ?", userID, emailID).
		Updates(map[string]interface{}{
			"column_id":          columnSlug,
			"previous_column_id": "",
			"snoozed_until":      nil,
			"updated_at":         time.Now(),
		}).Error
}

func (r *mappingRepository) GetEmailColumn(userID, emailID string) (string, error) {
	var mapping emaildomain.ColumnMapping
	err := r.db.Where("user_id = ? AND email_id = ?", userID, emailID).First(&mapping).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return mapping.ColumnID, nil
}

func (r *mappingRepository) GetEmailColumnMap(userID string, emailIDs []string) (map[string]string, error) {
	result := make(map[string]string, len(emailIDs))
	if len(emailIDs) == 0 {
		return result, nil
	}

	var mappings []emaildomain.ColumnMapping
	err := r.db.Where("user_id = ? AND email_id IN ?", userID, emailIDs).Find(&mappings).Error
	if err != nil {
		return nil, err
	}
	for _, m := range mappings {
		result[m.EmailID] = m.ColumnID
	}
	return result, nil
}

func (r *mappingRepository) GetEmailsByColumn(userID, columnSlug string) ([]string, error) {
	var mappings []emaildomain.ColumnMapping
	err := r.db.Where("user_id = ? AND column_id = ?", userID, columnSlug).
		Order("updated_at DESC").Find(&mappings).Error
	if err != nil {
		return nil, err
	}

	emailIDs := make([]string, len(mappings))
	for i, m := range mappings {
		emailIDs[i] = m.EmailID
	}
	return emailIDs, nil
}

func (r *mappingRepository) CountEmailsByColumn(userID, columnSlug string) (int64, error) {
	var count int64
	err := r.db.Model(&emaildomain.ColumnMapping{}).
		Where("user_id = ? AND column_id = ?", userID, columnSlug).Count(&count).Error
	return count, err
}

func (r *mappingRepository) RemoveEmailColumn(userID, emailID string) error {
	return r.db.Where("user_id = ? AND email_id = ?", userID, emailID).
		Delete(&emaildomain.ColumnMapping{}).Error
}

// ReassignColumn moves every mapping from one column to another, used when a
// column is deleted.
func (r *mappingRepository) ReassignColumn(userID, fromSlug, toSlug string) error {
	return r.db.Model(&emaildomain.ColumnMapping{}).
		Where("user_id = ? AND column_id = ?", userID, fromSlug).
		Updates(map[string]interface{}{
			"column_id":  toSlug,
			"updated_at": time.Now(),
		}).Error
}

func (r *mappingRepository) SnoozeEmail(userID, emailID, previousColumnSlug string, snoozedUntil time.Time) error {
	var count int64
	r.db.Model(&emaildomain.ColumnMapping{}).
		Where("user_id = ? AND email_id = ?", userID, emailID).Count(&count)

	if count == 0 {
		mapping := emaildomain.ColumnMapping{
			ID:               uuid.New().String(),
			UserID:           userID,
			EmailID:          emailID,
			ColumnID:         emaildomain.ColumnSnoozed,
			PreviousColumnID: previousColumnSlug,
			SnoozedUntil:     &snoozedUntil,
		}
		return r.db.Create(&mapping).Error
	}

	return r.db.Model(&emaildomain.ColumnMapping{}).
		Where("user_id = ? AND email_id = ?", userID, emailID).
		Updates(map[string]interface{}{
			"column_id":          emaildomain.ColumnSnoozed,
			"previous_column_id": previousColumnSlug,
			"snoozed_until":      snoozedUntil,
			"updated_at":         time.Now(),
		}).Error
}

func (r *mappingRepository) GetMapping(userID, emailID string) (*emaildomain.ColumnMapping, error) {
	var mapping emaildomain.ColumnMapping
	err := r.db.Where("user_id = ? AND email_id = ?", userID, emailID).First(&mapping).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &mapping, nil
}

func (r *mappingRepository) GetAllSnoozed() ([]SnoozedMapping, error) {
	var mappings []emaildomain.ColumnMapping
	err := r.db.Where("column_id = ?", emaildomain.ColumnSnoozed).Find(&mappings).Error
	if err != nil {
		return nil, err
	}

	result := make([]SnoozedMapping, len(mappings))
	for i, m := range mappings {
		prev := m.PreviousColumnID
		if prev == "" {
			prev = emaildomain.ColumnInbox
		}
		result[i] = SnoozedMapping{
			UserID:           m.UserID,
			EmailID:          m.EmailID,
			PreviousColumnID: prev,
			SnoozedUntil:     m.SnoozedUntil,
		}
	}
	return result, nil
}
