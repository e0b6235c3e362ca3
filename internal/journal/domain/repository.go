package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	// NextSequence reserves the next number of year. It must run inside the
	// transaction that inserts the entry so the counter row stays locked until commit.
	NextSequence(ctx context.Context, db *gorm.DB, year int, now time.Time) (int64, error)
	InsertEntry(ctx context.Context, db *gorm.DB, entry *JournalEntry) error
	InsertLines(ctx context.Context, db *gorm.DB, lines []JournalLine) error
	FindEntryByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*JournalEntry, error)
	FindEntryByNumber(ctx context.Context, db *gorm.DB, number string) (*JournalEntry, error)
	FindEntryByDedupeKey(ctx context.Context, db *gorm.DB, key string) (*JournalEntry, error)
	FindReversalOf(ctx context.Context, db *gorm.DB, id snowflake.ID) (*JournalEntry, error)
	ListEntries(ctx context.Context, db *gorm.DB, filter ListEntryFilter) ([]JournalEntry, error)
	FindLines(ctx context.Context, db *gorm.DB, entryID snowflake.ID) ([]JournalLine, error)
	UpdateTotals(ctx context.Context, db *gorm.DB, id snowflake.ID, debit, credit decimal.Decimal, now time.Time) error
	// MarkPosted and MarkVoid only transition drafts and report whether a row changed.
	MarkPosted(ctx context.Context, db *gorm.DB, entry *JournalEntry) (bool, error)
	MarkVoid(ctx context.Context, db *gorm.DB, entry *JournalEntry) (bool, error)
	// PostedLines returns posted lines of accountID dated in [from, to], in posting order.
	PostedLines(ctx context.Context, db *gorm.DB, accountID snowflake.ID, from, to time.Time) ([]LedgerLine, error)
	// PostedTotalsBefore sums posted lines of accountID dated strictly before before.
	PostedTotalsBefore(ctx context.Context, db *gorm.DB, accountID snowflake.ID, before time.Time) (AccountTotals, error)
	// PostedTotalsByAccount sums posted lines per account dated on or before asOf.
	PostedTotalsByAccount(ctx context.Context, db *gorm.DB, asOf time.Time) ([]AccountTotals, error)
}
