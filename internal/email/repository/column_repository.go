package repository

import (
	"errors"
	"time"

	emaildomain "mailboard-backend/internal/email/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ColumnRepository persists board column definitions. Columns are addressed
// by (userID, slug); lookups return (nil, nil) when absent.
type ColumnRepository interface {
	GetColumnsByUserID(userID string) ([]*emaildomain.Column, error)
	GetColumn(userID, slug string) (*emaildomain.Column, error)
	CreateColumn(column *emaildomain.Column) error
	UpdateColumn(column *emaildomain.Column) error
	DeleteColumn(userID, slug string) error
	UpdateColumnOrders(userID string, orders map[string]int) error
}

type columnRepository struct {
	db *gorm.DB
}

func NewColumnRepository(db *gorm.DB) ColumnRepository {
	return &columnRepository{db: db}
}

func (r *columnRepository) GetColumnsByUserID(userID string) ([]*emaildomain.Column, error) {
	var columns []*emaildomain.Column
	err := r.db.Where("user_id = ?", userID).Order("display_order ASC").Find(&columns).Error
	if err != nil {
		return nil, err
	}
	for _, col := range columns {
		if col.RemoveLabelIDs == nil {
			col.RemoveLabelIDs = emaildomain.StringArray{}
		}
	}
	return columns, nil
}

func (r *columnRepository) GetColumn(userID, slug string) (*emaildomain.Column, error) {
	var column emaildomain.Column
	err := r.db.Where("user_id = ? AND slug = ?", userID, slug).First(&column).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if column.RemoveLabelIDs == nil {
		column.RemoveLabelIDs = emaildomain.StringArray{}
	}
	return &column, nil
}

func (r *columnRepository) CreateColumn(column *emaildomain.Column) error {
	if column.ID == "" {
		column.ID = uuid.New().String()
	}
	column.CreatedAt = time.Now()
	column.UpdatedAt = time.Now()
	if column.RemoveLabelIDs == nil {
		column.RemoveLabelIDs = emaildomain.StringArray{}
	}
	return r.db.Create(column).Error
}

func (r *columnRepository) UpdateColumn(column *emaildomain.Column) error {
	column.UpdatedAt = time.Now()
	if column.RemoveLabelIDs == nil {
		column.RemoveLabelIDs = emaildomain.StringArray{}
	}
	return r.db.Save(column).Error
}

func (r *columnRepository) DeleteColumn(userID, slug string) error {
	return r.db.Where("user_id = ? AND slug = ?", userID, slug).Delete(&emaildomain.Column{}).Error
}

func (r *columnRepository) UpdateColumnOrders(userID string, orders map[string]int) error {
	for slug, orderVal := range orders {
		err := r.db.Model(&emaildomain.Column{}).
			Where("user_id = ? AND slug = ?", userID, slug).
			Update("display_order", orderVal).Error
		if err != nil {
			return err
		}
	}
	return nil
}
