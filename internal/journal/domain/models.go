package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft  Status = "draft"
	StatusPosted Status = "posted"
	StatusVoid   Status = "void"
)

// Source tags the business flow that produced an entry.
type Source string

const (
	SourceSales     Source = "sales"
	SourceExpense   Source = "expense"
	SourcePurchase  Source = "purchase"
	SourceRefund    Source = "refund"
	SourceRecurring Source = "recurring"
	SourceReversal  Source = "reversal"
	SourceManual    Source = "manual"
)

func (s Source) Valid() bool {
	switch s {
	case SourceSales, SourceExpense, SourcePurchase, SourceRefund, SourceRecurring, SourceReversal, SourceManual:
		return true
	default:
		return false
	}
}

type JournalEntry struct {
	ID           snowflake.ID    `gorm:"primaryKey" json:"id"`
	EntryNumber  string          `gorm:"size:32;not null;uniqueIndex:ux_journal_entries_number" json:"entry_number"`
	EntryDate    time.Time       `gorm:"not null;index:idx_journal_entries_date;index:idx_journal_entries_order,priority:1" json:"entry_date"`
	// Sequence is the numeric part of EntryNumber and orders entries of one date.
	Sequence     int64           `gorm:"column:entry_sequence;not null;index:idx_journal_entries_order,priority:2" json:"-"`
	FiscalYearID *snowflake.ID   `gorm:"index" json:"fiscal_year_id,omitempty"`
	Reference    string          `gorm:"size:128" json:"reference,omitempty"`
	Description  string          `gorm:"size:255" json:"description,omitempty"`
	Source       Source          `gorm:"size:16;not null" json:"source"`
	SourceType   string          `gorm:"size:32;index:idx_journal_entries_source,priority:1" json:"source_type,omitempty"`
	SourceID     *snowflake.ID   `gorm:"index:idx_journal_entries_source,priority:2" json:"source_id,omitempty"`
	DedupeKey    *string         `gorm:"size:128;uniqueIndex:ux_journal_entries_dedupe" json:"-"`
	CreatedBy    string          `gorm:"size:64" json:"created_by,omitempty"`
	Status       Status          `gorm:"size:16;not null;index" json:"status"`
	PostedBy     *string         `gorm:"size:64" json:"posted_by,omitempty"`
	PostedAt     *time.Time      `json:"posted_at,omitempty"`
	VoidedBy     *string         `gorm:"size:64" json:"voided_by,omitempty"`
	VoidedAt     *time.Time      `json:"voided_at,omitempty"`
	VoidReason   string          `gorm:"size:255" json:"void_reason,omitempty"`
	ReversalOfID *snowflake.ID   `gorm:"index" json:"reversal_of_id,omitempty"`
	TotalDebit   decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"total_debit"`
	TotalCredit  decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"total_credit"`
	CreatedAt    time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"not null" json:"updated_at"`

	Lines []JournalLine `gorm:"-" json:"lines,omitempty"`
}

func (JournalEntry) TableName() string { return "journal_entries" }

// Ref reconstructs the typed source reference from the persisted columns.
func (e JournalEntry) Ref() (SourceRef, error) {
	if e.SourceType == "" || e.SourceID == nil {
		return nil, nil
	}
	return ParseSourceRef(e.SourceType, *e.SourceID)
}

type JournalLine struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	JournalEntryID snowflake.ID    `gorm:"not null;index" json:"journal_entry_id"`
	AccountID      snowflake.ID    `gorm:"not null;index" json:"account_id"`
	Debit          decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"debit"`
	Credit         decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"credit"`
	Description    string          `gorm:"size:255" json:"description,omitempty"`
	LineOrder      int             `gorm:"not null" json:"line_order"`
	CreatedAt      time.Time       `gorm:"not null" json:"created_at"`
}

func (JournalLine) TableName() string { return "journal_lines" }

// JournalEntrySequence is the per-year counter behind entry numbers.
type JournalEntrySequence struct {
	Year       int       `gorm:"primaryKey;autoIncrement:false"`
	NextNumber int64     `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

func (JournalEntrySequence) TableName() string { return "journal_entry_sequences" }
