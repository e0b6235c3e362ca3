package repository

import (
	"context"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/posledger/internal/journal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) NextSequence(ctx context.Context, db *gorm.DB, year int, now time.Time) (int64, error) {
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "year"}},
			DoNothing: true,
		}).
		Create(&domain.JournalEntrySequence{Year: year, NextNumber: 1, UpdatedAt: now}).Error
	if err != nil {
		return 0, err
	}

	// The increment takes the row lock; concurrent allocators queue behind it until commit.
	res := db.WithContext(ctx).Exec(
		`UPDATE journal_entry_sequences SET next_number = next_number + 1, updated_at = ? WHERE year = ?`,
		now,
		year,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected != 1 {
		return 0, domain.ErrConcurrentUpdate
	}

	var seq domain.JournalEntrySequence
	if err := db.WithContext(ctx).Where("year = ?", year).Take(&seq).Error; err != nil {
		return 0, err
	}
	return seq.NextNumber - 1, nil
}

func (r *repo) InsertEntry(ctx context.Context, db *gorm.DB, entry *domain.JournalEntry) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) InsertLines(ctx context.Context, db *gorm.DB, lines []domain.JournalLine) error {
	if len(lines) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&lines).Error
}

func (r *repo) findEntry(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.JournalEntry, error) {
	var entry domain.JournalEntry
	err := db.WithContext(ctx).
		Where(query, args...).
		Limit(1).
		Find(&entry).Error
	if err != nil {
		return nil, err
	}
	if entry.ID == 0 {
		return nil, nil
	}
	return &entry, nil
}

func (r *repo) FindEntryByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.JournalEntry, error) {
	return r.findEntry(ctx, db, "id = ?", id)
}

func (r *repo) FindEntryByNumber(ctx context.Context, db *gorm.DB, number string) (*domain.JournalEntry, error) {
	return r.findEntry(ctx, db, "entry_number = ?", number)
}

func (r *repo) FindEntryByDedupeKey(ctx context.Context, db *gorm.DB, key string) (*domain.JournalEntry, error) {
	return r.findEntry(ctx, db, "dedupe_key = ?", key)
}

func (r *repo) FindReversalOf(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.JournalEntry, error) {
	return r.findEntry(ctx, db, "reversal_of_id = ?", id)
}

func (r *repo) ListEntries(ctx context.Context, db *gorm.DB, filter domain.ListEntryFilter) ([]domain.JournalEntry, error) {
	var entries []domain.JournalEntry
	stmt := db.WithContext(ctx).Model(&domain.JournalEntry{})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.Source != "" {
		stmt = stmt.Where("source = ?", filter.Source)
	}
	if filter.SourceType != "" {
		stmt = stmt.Where("source_type = ?", filter.SourceType)
	}
	if filter.SourceID != 0 {
		stmt = stmt.Where("source_id = ?", filter.SourceID)
	}
	if !filter.From.IsZero() {
		stmt = stmt.Where("entry_date >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		stmt = stmt.Where("entry_date <= ?", filter.To)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		stmt = stmt.Offset(filter.Offset)
	}
	if err := stmt.Order("entry_date asc, entry_sequence asc").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) FindLines(ctx context.Context, db *gorm.DB, entryID snowflake.ID) ([]domain.JournalLine, error) {
	var lines []domain.JournalLine
	err := db.WithContext(ctx).
		Where("journal_entry_id = ?", entryID).
		Order("line_order asc").
		Find(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *repo) UpdateTotals(ctx context.Context, db *gorm.DB, id snowflake.ID, debit, credit decimal.Decimal, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE journal_entries SET total_debit = ?, total_credit = ?, updated_at = ? WHERE id = ?`,
		debit,
		credit,
		now,
		id,
	).Error
}

func (r *repo) MarkPosted(ctx context.Context, db *gorm.DB, entry *domain.JournalEntry) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE journal_entries
		 SET status = ?, posted_by = ?, posted_at = ?, fiscal_year_id = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusPosted,
		entry.PostedBy,
		entry.PostedAt,
		entry.FiscalYearID,
		entry.UpdatedAt,
		entry.ID,
		domain.StatusDraft,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) MarkVoid(ctx context.Context, db *gorm.DB, entry *domain.JournalEntry) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE journal_entries
		 SET status = ?, voided_by = ?, voided_at = ?, void_reason = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusVoid,
		entry.VoidedBy,
		entry.VoidedAt,
		entry.VoidReason,
		entry.UpdatedAt,
		entry.ID,
		domain.StatusDraft,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) PostedLines(ctx context.Context, db *gorm.DB, accountID snowflake.ID, from, to time.Time) ([]domain.LedgerLine, error) {
	var lines []domain.LedgerLine
	stmt := db.WithContext(ctx).
		Table("journal_lines AS l").
		Select(`l.id AS line_id, l.journal_entry_id AS entry_id, e.entry_number, e.entry_date, e.reference,
			e.description AS entry_description, l.description AS line_description, l.debit, l.credit, l.line_order`).
		Joins("JOIN journal_entries AS e ON e.id = l.journal_entry_id").
		Where("l.account_id = ? AND e.status = ?", accountID, domain.StatusPosted)
	if !from.IsZero() {
		stmt = stmt.Where("e.entry_date >= ?", from)
	}
	if !to.IsZero() {
		stmt = stmt.Where("e.entry_date <= ?", to)
	}
	err := stmt.
		Order("e.entry_date asc, e.entry_sequence asc, l.line_order asc").
		Scan(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

type amountRow struct {
	AccountID snowflake.ID
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// Sums are folded in Go so every dialect adds with decimal precision.
func (r *repo) PostedTotalsBefore(ctx context.Context, db *gorm.DB, accountID snowflake.ID, before time.Time) (domain.AccountTotals, error) {
	totals := domain.AccountTotals{AccountID: accountID, Debit: decimal.Zero, Credit: decimal.Zero}
	if before.IsZero() {
		return totals, nil
	}

	var rows []amountRow
	err := db.WithContext(ctx).
		Table("journal_lines AS l").
		Select("l.account_id, l.debit, l.credit").
		Joins("JOIN journal_entries AS e ON e.id = l.journal_entry_id").
		Where("l.account_id = ? AND e.status = ? AND e.entry_date < ?", accountID, domain.StatusPosted, before).
		Scan(&rows).Error
	if err != nil {
		return totals, err
	}
	for _, row := range rows {
		totals.Debit = totals.Debit.Add(row.Debit)
		totals.Credit = totals.Credit.Add(row.Credit)
	}
	return totals, nil
}

func (r *repo) PostedTotalsByAccount(ctx context.Context, db *gorm.DB, asOf time.Time) ([]domain.AccountTotals, error) {
	var rows []amountRow
	stmt := db.WithContext(ctx).
		Table("journal_lines AS l").
		Select("l.account_id, l.debit, l.credit").
		Joins("JOIN journal_entries AS e ON e.id = l.journal_entry_id").
		Where("e.status = ?", domain.StatusPosted)
	if !asOf.IsZero() {
		stmt = stmt.Where("e.entry_date <= ?", asOf)
	}
	if err := stmt.Scan(&rows).Error; err != nil {
		return nil, err
	}

	byAccount := map[snowflake.ID]*domain.AccountTotals{}
	for _, row := range rows {
		totals, ok := byAccount[row.AccountID]
		if !ok {
			totals = &domain.AccountTotals{AccountID: row.AccountID, Debit: decimal.Zero, Credit: decimal.Zero}
			byAccount[row.AccountID] = totals
		}
		totals.Debit = totals.Debit.Add(row.Debit)
		totals.Credit = totals.Credit.Add(row.Credit)
	}

	result := make([]domain.AccountTotals, 0, len(byAccount))
	for _, totals := range byAccount {
		result = append(result, *totals)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AccountID < result[j].AccountID })
	return result, nil
}
