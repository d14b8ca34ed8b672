package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Operator is a back-office identity allowed to run recovery commands.
type Operator struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string    `gorm:"column:email;uniqueIndex;not null"`
	PasswordHash string    `gorm:"column:password_hash;not null"`
	Active       bool      `gorm:"column:active;not null;default:true"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// AuditLogEntry records one operator action against a settlement object.
type AuditLogEntry struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OperatorID uuid.UUID       `gorm:"column:operator_id;type:uuid;not null;index"`
	Action     string          `gorm:"column:action;not null"`
	TargetType string          `gorm:"column:target_type;not null"`
	TargetID   string          `gorm:"column:target_id;not null"`
	Detail     json.RawMessage `gorm:"column:detail;type:jsonb"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
}
