package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertTemplate(ctx context.Context, db *gorm.DB, template *RecurringTemplate) error
	InsertLines(ctx context.Context, db *gorm.DB, lines []RecurringTemplateLine) error
	FindTemplateByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*RecurringTemplate, error)
	ListTemplates(ctx context.Context, db *gorm.DB, activeOnly bool) ([]RecurringTemplate, error)
	// FindDue returns active templates with next_run_date on or before day.
	FindDue(ctx context.Context, db *gorm.DB, day time.Time, limit int) ([]RecurringTemplate, error)
	FindLines(ctx context.Context, db *gorm.DB, templateID snowflake.ID) ([]RecurringTemplateLine, error)
	// Advance moves an active template from occurrence to next. It changes
	// nothing and returns false when next_run_date no longer equals occurrence.
	Advance(ctx context.Context, db *gorm.DB, id snowflake.ID, occurrence, next time.Time, active bool, now time.Time) (bool, error)
	SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool, now time.Time) error
	// InsertRun returns false when the occurrence was already recorded.
	InsertRun(ctx context.Context, db *gorm.DB, run *RecurringRun) (bool, error)
	ListRuns(ctx context.Context, db *gorm.DB, templateID snowflake.ID) ([]RecurringRun, error)
}
