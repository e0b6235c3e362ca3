package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/posledger/pkg/dateutil"
)

type Cadence string

const (
	CadenceDaily   Cadence = "daily"
	CadenceWeekly  Cadence = "weekly"
	CadenceMonthly Cadence = "monthly"
	CadenceYearly  Cadence = "yearly"
)

func (c Cadence) Valid() bool {
	switch c {
	case CadenceDaily, CadenceWeekly, CadenceMonthly, CadenceYearly:
		return true
	default:
		return false
	}
}

// Next returns the occurrence after prev. Monthly and yearly schedules keep
// returning to the anchor's day of month, clamped to shorter months.
func (c Cadence) Next(prev, anchor time.Time) time.Time {
	prev = dateutil.Day(prev)
	switch c {
	case CadenceDaily:
		return prev.AddDate(0, 0, 1)
	case CadenceWeekly:
		return prev.AddDate(0, 0, 7)
	case CadenceMonthly:
		return dateutil.AddMonthsOnDay(prev, 1, dateutil.Day(anchor).Day())
	case CadenceYearly:
		return dateutil.AddMonthsOnDay(prev, 12, dateutil.Day(anchor).Day())
	default:
		return prev
	}
}

type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
)

// RecurringTemplate books the same lines on a cadence. StartDate anchors the
// day of month for monthly and yearly cadences.
type RecurringTemplate struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Name        string       `gorm:"size:128;not null" json:"name"`
	Description string       `gorm:"size:512" json:"description,omitempty"`
	Cadence     Cadence      `gorm:"size:16;not null" json:"cadence"`
	IsActive    bool         `gorm:"not null;index:idx_recurring_templates_due,priority:1" json:"is_active"`
	StartDate   time.Time    `gorm:"not null" json:"start_date"`
	NextRunDate time.Time    `gorm:"not null;index:idx_recurring_templates_due,priority:2" json:"next_run_date"`
	LastRunDate *time.Time   `json:"last_run_date,omitempty"`
	EndDate     *time.Time   `json:"end_date,omitempty"`
	CreatedBy   string       `gorm:"size:64" json:"created_by,omitempty"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updated_at"`

	Lines []RecurringTemplateLine `gorm:"-" json:"lines,omitempty"`
}

func (RecurringTemplate) TableName() string { return "recurring_templates" }

// Ended reports whether occurrence falls after the template's end date.
func (t RecurringTemplate) Ended(occurrence time.Time) bool {
	return t.EndDate != nil && dateutil.Day(occurrence).After(dateutil.Day(*t.EndDate))
}

type RecurringTemplateLine struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	TemplateID  snowflake.ID    `gorm:"not null;index:idx_recurring_template_lines_template" json:"template_id"`
	AccountID   snowflake.ID    `gorm:"not null;index:idx_recurring_template_lines_account" json:"account_id"`
	Debit       decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"debit"`
	Credit      decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"credit"`
	Description string          `gorm:"size:255" json:"description,omitempty"`
	LineOrder   int             `gorm:"not null" json:"line_order"`
}

func (RecurringTemplateLine) TableName() string { return "recurring_template_lines" }

// RecurringRun records that one occurrence of a template has fired. The
// unique (template_id, occurrence_date) pair is what keeps a second trigger
// for the same day from booking another entry.
type RecurringRun struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	TemplateID     snowflake.ID `gorm:"not null;uniqueIndex:ux_recurring_runs_occurrence,priority:1" json:"template_id"`
	OccurrenceDate time.Time    `gorm:"not null;uniqueIndex:ux_recurring_runs_occurrence,priority:2" json:"occurrence_date"`
	JournalEntryID snowflake.ID `gorm:"not null" json:"journal_entry_id"`
	Trigger        Trigger      `gorm:"size:16;not null" json:"trigger"`
	CreatedAt      time.Time    `gorm:"not null" json:"created_at"`
}

func (RecurringRun) TableName() string { return "recurring_runs" }
