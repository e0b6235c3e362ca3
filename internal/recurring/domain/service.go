package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	journaldomain "github.com/smallbiznis/posledger/internal/journal/domain"
)

type LineTemplate struct {
	AccountID   snowflake.ID
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
}

type CreateTemplateRequest struct {
	Name        string
	Description string
	Cadence     Cadence
	// StartDate is the first occurrence.
	StartDate time.Time
	EndDate   *time.Time
	Actor     string
	Lines     []LineTemplate
}

// RunResult summarizes one RunDue pass.
type RunResult struct {
	Templates   int
	Created     int
	Skipped     int
	Failed      int
	Deactivated int
}

type Service interface {
	Create(ctx context.Context, req CreateTemplateRequest) (RecurringTemplate, error)
	Activate(ctx context.Context, id snowflake.ID) (RecurringTemplate, error)
	Deactivate(ctx context.Context, id snowflake.ID) (RecurringTemplate, error)
	GetByID(ctx context.Context, id snowflake.ID) (RecurringTemplate, error)
	List(ctx context.Context, activeOnly bool) ([]RecurringTemplate, error)
	Runs(ctx context.Context, id snowflake.ID) ([]RecurringRun, error)
	// RunDue fires every occurrence due on or before now's date. Calling it
	// again for the same day creates nothing new.
	RunDue(ctx context.Context, now time.Time) (RunResult, error)
	// RunNow fires the template's pending occurrence ahead of schedule.
	RunNow(ctx context.Context, id snowflake.ID, actor string) (*journaldomain.JournalEntry, error)
}

var (
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidName      = errors.New("invalid_name")
	ErrInvalidCadence   = errors.New("invalid_cadence")
	ErrInvalidStartDate = errors.New("invalid_start_date")
	ErrInvalidEndDate   = errors.New("invalid_end_date")
	ErrNotFound         = errors.New("not_found")
	ErrAccountNotFound  = errors.New("account_not_found")
	ErrInactive         = errors.New("template_inactive")
	ErrEnded            = errors.New("template_ended")
	ErrOccurrenceTaken  = errors.New("occurrence_already_run")
)
