package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Notification is a per-user message produced by the fund-event worker.
// Delivery is best-effort; the escrow engine never waits on these.
type Notification struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID    string    `gorm:"size:100;not null;index" json:"user_id"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Kind      string    `gorm:"size:32" json:"kind"`
	ProjectID uint      `gorm:"default:0" json:"project_id"`
	IsRead    bool      `gorm:"not null;default:false" json:"is_read"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (Notification) TableName() string {
	return "notifications"
}

// SystemLog captures operator-facing diagnostics, in particular escrow
// invariant violations found by the audit job.
type SystemLog struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	ProjectID  uint      `gorm:"column:project_id;default:0" json:"project_id"`
	Level      string    `gorm:"column:level;size:10;not null" json:"level"` // DEBUG, INFO, WARN, ERROR, FATAL
	Message    string    `gorm:"column:message;type:text;not null" json:"message"`
	Module     string    `gorm:"column:module;size:100" json:"module"`
	ErrorStack string    `gorm:"column:error_stack;type:text" json:"error_stack"`
	Meta       JSONMap   `gorm:"column:meta;type:jsonb" json:"meta"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (SystemLog) TableName() string {
	return "system_logs"
}

// JSONMap stores arbitrary JSON in a jsonb column.
type JSONMap map[string]interface{}

// Value implements driver.Valuer.
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner.
func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		if s, sok := value.(string); sok {
			bytes = []byte(s)
		} else {
			return errors.New("unsupported type for JSONMap scan")
		}
	}

	return json.Unmarshal(bytes, j)
}
