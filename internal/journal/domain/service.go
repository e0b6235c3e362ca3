package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type LineInput struct {
	AccountID   snowflake.ID
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
}

type CreateEntryRequest struct {
	// EntryDate is read as a calendar date in its own location.
	EntryDate   time.Time
	Reference   string
	Description string
	Source      Source
	SourceRef   SourceRef
	// DedupeKey makes creation idempotent: a second request with the same key
	// returns the entry created by the first.
	DedupeKey    string
	Actor        string
	ReversalOfID *snowflake.ID
	Lines        []LineInput
	// Post creates the entry directly in posted state.
	Post bool
}

type ListEntryFilter struct {
	Status     Status
	Source     Source
	SourceType string
	SourceID   snowflake.ID
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

type Service interface {
	Create(ctx context.Context, req CreateEntryRequest) (*JournalEntry, error)
	CreatePosted(ctx context.Context, req CreateEntryRequest) (*JournalEntry, error)
	// CreateTx runs creation inside the caller's transaction.
	CreateTx(ctx context.Context, tx *gorm.DB, req CreateEntryRequest) (*JournalEntry, error)
	Post(ctx context.Context, id snowflake.ID, actor string) (*JournalEntry, error)
	Void(ctx context.Context, id snowflake.ID, actor, reason string) (*JournalEntry, error)
	Reverse(ctx context.Context, id snowflake.ID, actor string, date time.Time) (*JournalEntry, error)
	GetByID(ctx context.Context, id snowflake.ID) (*JournalEntry, error)
	GetByNumber(ctx context.Context, number string) (*JournalEntry, error)
	List(ctx context.Context, filter ListEntryFilter) ([]JournalEntry, error)
	LedgerFor(ctx context.Context, accountID snowflake.ID, rng DateRange) (*Ledger, error)
	AccountBalance(ctx context.Context, accountID snowflake.ID, asOf time.Time) (*AccountBalance, error)
	TrialBalance(ctx context.Context, asOf time.Time) (*TrialBalance, error)
	RecalculateTotals(ctx context.Context, id snowflake.ID) (*JournalEntry, error)
}

var (
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidEntryDate   = errors.New("invalid_entry_date")
	ErrInvalidSource      = errors.New("invalid_source")
	ErrInvalidSourceRef   = errors.New("invalid_source_ref")
	ErrInvalidLine        = errors.New("invalid_line")
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrInvalidEntryNumber = errors.New("invalid_entry_number")
	ErrInvalidDateRange   = errors.New("invalid_date_range")
	ErrTooFewLines        = errors.New("too_few_lines")
	ErrUnbalancedEntry    = errors.New("unbalanced_entry")
	ErrZeroAmountEntry    = errors.New("zero_amount_entry")
	ErrAccountNotFound    = errors.New("account_not_found")
	ErrNotFound           = errors.New("not_found")
	ErrNotDraft           = errors.New("not_draft")
	ErrNotPosted          = errors.New("not_posted")
	ErrCannotVoidPosted   = errors.New("cannot_void_posted")
	ErrAlreadyVoided      = errors.New("already_voided")
	ErrAlreadyReversed    = errors.New("already_reversed")
	ErrConcurrentUpdate   = errors.New("concurrent_update")
)
