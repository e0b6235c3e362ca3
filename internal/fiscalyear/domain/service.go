package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type CreateFiscalYearRequest struct {
	Name      string
	StartDate time.Time
	EndDate   time.Time
}

type Service interface {
	FindByDate(ctx context.Context, date time.Time) (*FiscalYear, error)
	// ResolveForPosting returns the year an entry dated date belongs to. Nil means the
	// entry is stored without a fiscal year.
	ResolveForPosting(ctx context.Context, date time.Time) (*FiscalYear, error)
	ResolveForPostingTx(ctx context.Context, tx *gorm.DB, date time.Time) (*FiscalYear, error)
	Create(ctx context.Context, req CreateFiscalYearRequest) (FiscalYear, error)
	GetByID(ctx context.Context, id snowflake.ID) (FiscalYear, error)
	List(ctx context.Context) ([]FiscalYear, error)
	Close(ctx context.Context, id snowflake.ID, actor string) (FiscalYear, error)
	Reopen(ctx context.Context, id snowflake.ID, actor string) (FiscalYear, error)
}

var (
	ErrInvalidID             = errors.New("invalid_id")
	ErrInvalidName           = errors.New("invalid_name")
	ErrInvalidDateRange      = errors.New("invalid_date_range")
	ErrOverlappingFiscalYear = errors.New("overlapping_fiscal_year")
	ErrNotFound              = errors.New("not_found")
	ErrFiscalYearClosed      = errors.New("fiscal_year_closed")
	ErrNoFiscalYear          = errors.New("no_fiscal_year")
	ErrAlreadyClosed         = errors.New("already_closed")
	ErrNotClosed             = errors.New("not_closed")
	ErrHasDraftEntries       = errors.New("has_draft_entries")
)
