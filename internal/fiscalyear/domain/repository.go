package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, fy *FiscalYear) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*FiscalYear, error)
	FindByDate(ctx context.Context, db *gorm.DB, date time.Time) (*FiscalYear, error)
	FindOverlapping(ctx context.Context, db *gorm.DB, start, end time.Time) ([]FiscalYear, error)
	List(ctx context.Context, db *gorm.DB) ([]FiscalYear, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, fy *FiscalYear) error
	CountDraftEntries(ctx context.Context, db *gorm.DB, start, end time.Time) (int64, error)
}
