package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ActorType string

const (
	ActorTypeSystem    ActorType = "system"
	ActorTypeUser      ActorType = "user"
	ActorTypeScheduler ActorType = "scheduler"
)

// AuditLog records a state change on an accounting object.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey"`
	ActorType  string            `gorm:"size:32;not null"`
	ActorID    *string           `gorm:"size:64"`
	Action     string            `gorm:"size:64;not null;index"`
	TargetType string            `gorm:"size:64;not null;index:idx_audit_logs_target"`
	TargetID   *string           `gorm:"size:64;index:idx_audit_logs_target"`
	Metadata   datatypes.JSONMap
	CreatedAt  time.Time         `gorm:"not null"`
}

func (AuditLog) TableName() string { return "audit_logs" }
