// internal/scheduler/testing/helper.go
package testing

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/posledger/internal/clock"
	"github.com/smallbiznis/posledger/pkg/dateutil"
	"gorm.io/gorm"
)

// TimeAccelerator pulls recurring schedules forward so tests do not have to
// wait for a template's next occurrence.
type TimeAccelerator struct {
	db    *gorm.DB
	clock clock.Clock
}

func NewTimeAccelerator(db *gorm.DB, clk clock.Clock) *TimeAccelerator {
	if clk == nil {
		clk = clock.New()
	}
	return &TimeAccelerator{db: db, clock: clk}
}

// FastForwardTemplate makes an active template due today.
func (ta *TimeAccelerator) FastForwardTemplate(ctx context.Context, templateID snowflake.ID) error {
	now := ta.clock.Now().UTC()
	return ta.db.WithContext(ctx).Exec(
		`UPDATE recurring_templates
		 SET next_run_date = ?, updated_at = ?
		 WHERE id = ? AND is_active = ?`,
		dateutil.Day(now),
		now,
		templateID,
		true,
	).Error
}

// FastForwardAllTemplates makes every active template with a future
// occurrence due today.
func (ta *TimeAccelerator) FastForwardAllTemplates(ctx context.Context) (int64, error) {
	now := ta.clock.Now().UTC()
	today := dateutil.Day(now)
	result := ta.db.WithContext(ctx).Exec(
		`UPDATE recurring_templates
		 SET next_run_date = ?, updated_at = ?
		 WHERE is_active = ? AND next_run_date > ?`,
		today,
		now,
		true,
		today,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Rewind moves a template's schedule back so the next RunDue has to catch up.
func (ta *TimeAccelerator) Rewind(ctx context.Context, templateID snowflake.ID, by time.Duration) error {
	return ta.db.WithContext(ctx).Exec(
		`UPDATE recurring_templates
		 SET next_run_date = ?
		 WHERE id = ?`,
		dateutil.Day(ta.clock.Now().UTC().Add(-by)),
		templateID,
	).Error
}
