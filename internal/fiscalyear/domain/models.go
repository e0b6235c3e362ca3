package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/posledger/pkg/dateutil"
)

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

type FiscalYear struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"size:64;not null" json:"name"`
	StartDate time.Time    `gorm:"not null;index:idx_fiscal_years_range,priority:1" json:"start_date"`
	EndDate   time.Time    `gorm:"not null;index:idx_fiscal_years_range,priority:2" json:"end_date"`
	Status    Status       `gorm:"size:16;not null" json:"status"`
	ClosedAt  *time.Time   `json:"closed_at,omitempty"`
	ClosedBy  *string      `gorm:"size:64" json:"closed_by,omitempty"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

func (FiscalYear) TableName() string { return "fiscal_years" }

// Contains reports whether date falls within [StartDate, EndDate].
func (f FiscalYear) Contains(date time.Time) bool {
	return dateutil.InRange(date, f.StartDate, f.EndDate)
}

func (f FiscalYear) IsClosed() bool {
	return f.Status == StatusClosed
}
