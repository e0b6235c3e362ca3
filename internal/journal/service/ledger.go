package service

import (
	"context"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	accountdomain "github.com/smallbiznis/posledger/internal/account/domain"
	"github.com/smallbiznis/posledger/internal/journal/domain"
	"github.com/smallbiznis/posledger/pkg/dateutil"
)

// LedgerFor lists posted lines touching accountID within rng. The opening
// balance covers everything posted before rng.From, so the closing balance of
// one range equals the opening balance of the range starting the next day.
func (s *Service) LedgerFor(ctx context.Context, accountID snowflake.ID, rng domain.DateRange) (*domain.Ledger, error) {
	if accountID == 0 {
		return nil, domain.ErrInvalidID
	}
	rng = normalizeRange(rng)
	if !rng.From.IsZero() && !rng.To.IsZero() && rng.To.Before(rng.From) {
		return nil, domain.ErrInvalidDateRange
	}

	account, err := s.accountRepo.FindByID(ctx, s.db, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrAccountNotFound
	}

	prior, err := s.repo.PostedTotalsBefore(ctx, s.db, accountID, rng.From)
	if err != nil {
		return nil, err
	}
	opening := domain.NetEffect(account.Type, prior.Debit, prior.Credit)

	lines, err := s.repo.PostedLines(ctx, s.db, accountID, rng.From, rng.To)
	if err != nil {
		return nil, err
	}

	ledger := domain.BuildLedger(*account, rng, opening, lines)
	return &ledger, nil
}

func (s *Service) AccountBalance(ctx context.Context, accountID snowflake.ID, asOf time.Time) (*domain.AccountBalance, error) {
	if accountID == 0 {
		return nil, domain.ErrInvalidID
	}
	account, err := s.accountRepo.FindByID(ctx, s.db, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrAccountNotFound
	}

	asOf = s.asOfDay(asOf)
	totals, err := s.repo.PostedTotalsBefore(ctx, s.db, accountID, asOf.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	return &domain.AccountBalance{
		Account: *account,
		AsOf:    asOf,
		Debit:   totals.Debit,
		Credit:  totals.Credit,
		Balance: domain.NetEffect(account.Type, totals.Debit, totals.Credit),
	}, nil
}

// TrialBalance reports every account with posted activity up to asOf.
func (s *Service) TrialBalance(ctx context.Context, asOf time.Time) (*domain.TrialBalance, error) {
	asOf = s.asOfDay(asOf)
	totals, err := s.repo.PostedTotalsByAccount(ctx, s.db, asOf)
	if err != nil {
		return nil, err
	}

	ids := make([]snowflake.ID, 0, len(totals))
	for _, t := range totals {
		ids = append(ids, t.AccountID)
	}
	accounts, err := s.accountRepo.FindByIDs(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[snowflake.ID]accountdomain.Account, len(accounts))
	for _, account := range accounts {
		byID[account.ID] = account
	}

	report := &domain.TrialBalance{
		AsOf:        asOf,
		Rows:        make([]domain.AccountBalance, 0, len(totals)),
		TotalDebit:  decimal.Zero,
		TotalCredit: decimal.Zero,
	}
	for _, t := range totals {
		account, ok := byID[t.AccountID]
		if !ok {
			account = accountdomain.Account{ID: t.AccountID}
		}
		report.Rows = append(report.Rows, domain.AccountBalance{
			Account: account,
			AsOf:    asOf,
			Debit:   t.Debit,
			Credit:  t.Credit,
			Balance: domain.NetEffect(account.Type, t.Debit, t.Credit),
		})
		report.TotalDebit = report.TotalDebit.Add(t.Debit)
		report.TotalCredit = report.TotalCredit.Add(t.Credit)
	}
	sort.Slice(report.Rows, func(i, j int) bool {
		return report.Rows[i].Account.Code < report.Rows[j].Account.Code
	})
	report.Balanced = report.TotalDebit.Equal(report.TotalCredit)
	return report, nil
}

func (s *Service) asOfDay(asOf time.Time) time.Time {
	if asOf.IsZero() {
		asOf = s.clock.Now()
	}
	return dateutil.Day(asOf)
}

func normalizeRange(rng domain.DateRange) domain.DateRange {
	if !rng.From.IsZero() {
		rng.From = dateutil.Day(rng.From)
	}
	if !rng.To.IsZero() {
		rng.To = dateutil.Day(rng.To)
	}
	return rng
}
