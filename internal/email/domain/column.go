package domain

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Default board columns, created lazily the first time a user's board is
// read. Slugs are stable; display names are just the initial values.
const (
	ColumnInbox   = "inbox"
	ColumnTodo    = "todo"
	ColumnDone    = "done"
	ColumnSnoozed = "snoozed"
)

// StringArray stores a JSON array in a text column.
type StringArray []string

func (a StringArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "[]", nil
	}
	return json.Marshal(a)
}

func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = []string{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}
	if len(bytes) == 0 {
		*a = []string{}
		return nil
	}
	return json.Unmarshal(bytes, a)
}

// Column is one board column a user's emails are organized into. A column may
// be backed by a provider label (moving an email here adds that label) or be
// purely mapping-backed.
type Column struct {
	ID     string `json:"id" gorm:"primaryKey"`
	UserID string `json:"user_id" gorm:"index;not null"`
	Name   string `json:"name" gorm:"not null"`
	// Slug is the stable identifier mappings reference ("inbox", "todo",
	// or a generated one for custom columns).
	Slug  string `json:"slug" gorm:"index:idx_user_slug;not null"`
	Order int    `json:"order" gorm:"column:display_order;not null;default:0"`
	// LabelID is the provider label added when an email moves here
	// (e.g. "STARRED"). Empty for mapping-only columns.
	LabelID string `json:"label_id,omitempty" gorm:"default:''"`
	// RemoveLabelIDs are provider labels stripped when an email moves here
	// (e.g. ["INBOX"] for an archive-like column).
	RemoveLabelIDs StringArray `json:"remove_label_ids,omitempty" gorm:"type:text"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// IsDefault reports whether the column is one of the four built-ins, which
// cannot be deleted.
func (c *Column) IsDefault() bool {
	switch c.Slug {
	case ColumnInbox, ColumnTodo, ColumnDone, ColumnSnoozed:
		return true
	}
	return false
}
