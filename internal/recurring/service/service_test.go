package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	accountdomain "github.com/smallbiznis/posledger/internal/account/domain"
	accountrepository "github.com/smallbiznis/posledger/internal/account/repository"
	accountservice "github.com/smallbiznis/posledger/internal/account/service"
	"github.com/smallbiznis/posledger/internal/clock"
	"github.com/smallbiznis/posledger/internal/config"
	fiscalyeardomain "github.com/smallbiznis/posledger/internal/fiscalyear/domain"
	fiscalyearrepository "github.com/smallbiznis/posledger/internal/fiscalyear/repository"
	fiscalyearservice "github.com/smallbiznis/posledger/internal/fiscalyear/service"
	journaldomain "github.com/smallbiznis/posledger/internal/journal/domain"
	journalrepository "github.com/smallbiznis/posledger/internal/journal/repository"
	journalservice "github.com/smallbiznis/posledger/internal/journal/service"
	"github.com/smallbiznis/posledger/internal/recurring/domain"
	"github.com/smallbiznis/posledger/internal/recurring/repository"
	"github.com/smallbiznis/posledger/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	svc     domain.Service
	journal journaldomain.Service
	clock   *clock.FakeClock
	rent    accountdomain.Account
	bank    accountdomain.Account
}

func newFixture(t *testing.T, maxCatchUp int, opts ...func(*config.Config)) *fixture {
	t.Helper()
	db := testutil.NewDB(t,
		&accountdomain.Account{},
		&fiscalyeardomain.FiscalYear{},
		&journaldomain.JournalEntry{},
		&journaldomain.JournalLine{},
		&journaldomain.JournalEntrySequence{},
		&domain.RecurringTemplate{},
		&domain.RecurringTemplateLine{},
		&domain.RecurringRun{},
	)

	node := testutil.NewNode(t)
	clk := clock.NewFakeClock(time.Date(2026, 1, 31, 8, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	cfg := config.Config{}
	cfg.Accounting.Enabled = true
	cfg.Accounting.EntryPrefix = "JE"
	for _, opt := range opts {
		opt(&cfg)
	}

	accountRepo := accountrepository.Provide()
	accounts := accountservice.New(accountservice.Params{DB: db, Log: log, GenID: node, Clock: clk, Repo: accountRepo})
	_, err := accounts.SeedDefaultAccounts(context.Background())
	require.NoError(t, err)
	rent, err := accounts.FindBySubtype(context.Background(), accountdomain.SubtypeRentExpense)
	require.NoError(t, err)
	bank, err := accounts.FindBySubtype(context.Background(), accountdomain.SubtypeBank)
	require.NoError(t, err)

	fiscalYears := fiscalyearservice.New(fiscalyearservice.Params{DB: db, Log: log, GenID: node, Clock: clk, Config: cfg, Repo: fiscalyearrepository.Provide()})
	journal := journalservice.New(journalservice.Params{
		DB:            db,
		Log:           log,
		GenID:         node,
		Clock:         clk,
		Config:        cfg,
		Repo:          journalrepository.Provide(),
		AccountRepo:   accountRepo,
		FiscalYearSvc: fiscalYears,
	})

	accounting := config.DefaultAccountingConfig()
	accounting.Recurring.MaxCatchUp = maxCatchUp
	svc := New(Params{
		DB:               db,
		Log:              log,
		GenID:            node,
		Clock:            clk,
		Config:           cfg,
		Repo:             repository.Provide(),
		AccountRepo:      accountRepo,
		JournalSvc:       journal,
		AccountingConfig: config.NewStaticAccountingConfigHolder(accounting),
	})
	return &fixture{db: db, svc: svc, journal: journal, clock: clk, rent: *rent, bank: *bank}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (f *fixture) rentTemplate(t *testing.T, cadence domain.Cadence, start time.Time, end *time.Time) domain.RecurringTemplate {
	t.Helper()
	template, err := f.svc.Create(context.Background(), domain.CreateTemplateRequest{
		Name:      "Store rent",
		Cadence:   cadence,
		StartDate: start,
		EndDate:   end,
		Actor:     "owner",
		Lines: []domain.LineTemplate{
			{AccountID: f.rent.ID, Debit: decimal.RequireFromString("3500000")},
			{AccountID: f.bank.ID, Credit: decimal.RequireFromString("3500000")},
		},
	})
	require.NoError(t, err)
	return template
}

func (f *fixture) entries(t *testing.T) []journaldomain.JournalEntry {
	t.Helper()
	entries, err := f.journal.List(context.Background(), journaldomain.ListEntryFilter{Source: journaldomain.SourceRecurring})
	require.NoError(t, err)
	return entries
}

func TestCreateValidates(t *testing.T) {
	f := newFixture(t, 12)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, domain.CreateTemplateRequest{Name: "x", Cadence: "hourly", StartDate: day(2026, 1, 1)})
	assert.ErrorIs(t, err, domain.ErrInvalidCadence)

	_, err = f.svc.Create(ctx, domain.CreateTemplateRequest{
		Name: "x", Cadence: domain.CadenceMonthly, StartDate: day(2026, 1, 1),
		Lines: []domain.LineTemplate{
			{AccountID: f.rent.ID, Debit: decimal.NewFromInt(10)},
			{AccountID: f.bank.ID, Credit: decimal.NewFromInt(9)},
		},
	})
	assert.ErrorIs(t, err, journaldomain.ErrUnbalancedEntry)

	end := day(2025, 12, 1)
	_, err = f.svc.Create(ctx, domain.CreateTemplateRequest{Name: "x", Cadence: domain.CadenceMonthly, StartDate: day(2026, 1, 1), EndDate: &end})
	assert.ErrorIs(t, err, domain.ErrInvalidEndDate)

	_, err = f.svc.Create(ctx, domain.CreateTemplateRequest{
		Name: "x", Cadence: domain.CadenceMonthly, StartDate: day(2026, 1, 1),
		Lines: []domain.LineTemplate{
			{AccountID: 99, Debit: decimal.NewFromInt(10)},
			{AccountID: f.bank.ID, Credit: decimal.NewFromInt(10)},
		},
	})
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestRunDueTwiceCreatesOneEntry(t *testing.T) {
	f := newFixture(t, 12)
	ctx := context.Background()
	template := f.rentTemplate(t, domain.CadenceMonthly, day(2026, 1, 31), nil)

	first, err := f.svc.RunDue(ctx, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)

	f.clock.Advance(6 * time.Hour)
	second, err := f.svc.RunDue(ctx, f.clock.Now())
	require.NoError(t, err)
	assert.Zero(t, second.Created)

	entries := f.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, journaldomain.StatusPosted, entries[0].Status)
	assert.Equal(t, day(2026, 1, 31), entries[0].EntryDate)
	assert.Equal(t, journaldomain.SourceTypeRecurringTemplate, entries[0].SourceType)

	reloaded, err := f.svc.GetByID(ctx, template.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.LastRunDate)
	assert.Equal(t, day(2026, 1, 31), *reloaded.LastRunDate)
	assert.Equal(t, day(2026, 2, 28), reloaded.NextRunDate)
	assert.Len(t, reloaded.Lines, 2)
}

func TestRunDueConcurrentTriggers(t *testing.T) {
	f := newFixture(t, 12)
	f.rentTemplate(t, domain.CadenceDaily, day(2026, 1, 31), nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.RunDue(context.Background(), f.clock.Now())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, f.entries(t), 1)
}

func TestRunDueCatchesUpInSteps(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	template := f.rentTemplate(t, domain.CadenceMonthly, day(2025, 10, 31), nil)

	result, err := f.svc.RunDue(ctx, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)

	result, err = f.svc.RunDue(ctx, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)

	result, err = f.svc.RunDue(ctx, f.clock.Now())
	require.NoError(t, err)
	assert.Zero(t, result.Templates)

	runs, err := f.svc.Runs(ctx, template.ID)
	require.NoError(t, err)
	require.Len(t, runs, 4)
	want := []time.Time{day(2025, 10, 31), day(2025, 11, 30), day(2025, 12, 31), day(2026, 1, 31)}
	for i, run := range runs {
		assert.Equal(t, want[i], run.OccurrenceDate)
		assert.Equal(t, domain.TriggerSchedule, run.Trigger)
	}
}

func TestRunDueStopsAtEndDate(t *testing.T) {
	f := newFixture(t, 12)
	ctx := context.Background()
	end := day(2026, 2, 2)
	template := f.rentTemplate(t, domain.CadenceDaily, day(2026, 1, 31), &end)

	f.clock.Set(time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC))
	result, err := f.svc.RunDue(ctx, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Created)
	assert.Equal(t, 1, result.Deactivated)

	reloaded, err := f.svc.GetByID(ctx, template.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsActive)

	_, err = f.svc.Activate(ctx, template.ID)
	assert.ErrorIs(t, err, domain.ErrEnded)
	_, err = f.svc.RunNow(ctx, template.ID, "owner")
	assert.ErrorIs(t, err, domain.ErrInactive)
}

func TestInactiveTemplatesAreNotRun(t *testing.T) {
	f := newFixture(t, 12)
	ctx := context.Background()
	template := f.rentTemplate(t, domain.CadenceWeekly, day(2026, 1, 31), nil)

	deactivated, err := f.svc.Deactivate(ctx, template.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.IsActive)

	result, err := f.svc.RunDue(ctx, f.clock.Now())
	require.NoError(t, err)
	assert.Zero(t, result.Templates)

	active, err := f.svc.List(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = f.svc.Activate(ctx, template.ID)
	require.NoError(t, err)
	result, err = f.svc.RunDue(ctx, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
}

func TestDisabledAccountingBooksNothing(t *testing.T) {
	f := newFixture(t, 12, func(cfg *config.Config) {
		cfg.Accounting.Enabled = false
	})
	ctx := context.Background()
	template := f.rentTemplate(t, domain.CadenceDaily, day(2026, 1, 25), nil)

	result, err := f.svc.RunDue(ctx, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, domain.RunResult{}, result)

	entry, err := f.svc.RunNow(ctx, template.ID, "owner")
	require.NoError(t, err)
	assert.Nil(t, entry)

	assert.Empty(t, f.entries(t))
	runs, err := f.svc.Runs(ctx, template.ID)
	require.NoError(t, err)
	assert.Empty(t, runs)
	reloaded, err := f.svc.GetByID(ctx, template.ID)
	require.NoError(t, err)
	assert.Equal(t, day(2026, 1, 25), reloaded.NextRunDate)
}

func TestRunDueUsesBusinessDate(t *testing.T) {
	f := newFixture(t, 12, func(cfg *config.Config) {
		cfg.Accounting.Location = time.FixedZone("WIB", 7*3600)
	})
	ctx := context.Background()
	template := f.rentTemplate(t, domain.CadenceDaily, day(2026, 2, 1), nil)

	f.clock.Set(time.Date(2026, 1, 31, 16, 59, 0, 0, time.UTC))
	result, err := f.svc.RunDue(ctx, f.clock.Now())
	require.NoError(t, err)
	assert.Zero(t, result.Created)

	f.clock.Set(time.Date(2026, 1, 31, 17, 0, 0, 0, time.UTC))
	result, err = f.svc.RunDue(ctx, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)

	runs, err := f.svc.Runs(ctx, template.ID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, day(2026, 2, 1), runs[0].OccurrenceDate)
}

func TestActivateRespectsEndDate(t *testing.T) {
	f := newFixture(t, 12)
	ctx := context.Background()
	end := day(2026, 3, 31)
	template := f.rentTemplate(t, domain.CadenceMonthly, day(2026, 2, 28), &end)

	_, err := f.svc.Deactivate(ctx, template.ID)
	require.NoError(t, err)
	activated, err := f.svc.Activate(ctx, template.ID)
	require.NoError(t, err)
	assert.True(t, activated.IsActive)

	_, err = f.svc.RunNow(ctx, template.ID, "owner")
	require.NoError(t, err)
	_, err = f.svc.RunNow(ctx, template.ID, "owner")
	require.NoError(t, err)

	reloaded, err := f.svc.GetByID(ctx, template.ID)
	require.NoError(t, err)
	assert.Equal(t, day(2026, 4, 28), reloaded.NextRunDate)
	assert.False(t, reloaded.IsActive)

	_, err = f.svc.Activate(ctx, template.ID)
	assert.ErrorIs(t, err, domain.ErrEnded)
	reloaded, err = f.svc.GetByID(ctx, template.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsActive)
}

func TestRunNowAdvancesSchedule(t *testing.T) {
	f := newFixture(t, 12)
	ctx := context.Background()
	template := f.rentTemplate(t, domain.CadenceMonthly, day(2026, 2, 15), nil)

	entry, err := f.svc.RunNow(ctx, template.ID, "manager")
	require.NoError(t, err)
	assert.Equal(t, day(2026, 2, 15), entry.EntryDate)
	require.NotNil(t, entry.PostedBy)
	assert.Equal(t, "manager", *entry.PostedBy)

	reloaded, err := f.svc.GetByID(ctx, template.ID)
	require.NoError(t, err)
	assert.Equal(t, day(2026, 3, 15), reloaded.NextRunDate)

	f.clock.Set(time.Date(2026, 2, 15, 9, 0, 0, 0, time.UTC))
	result, err := f.svc.RunDue(ctx, f.clock.Now())
	require.NoError(t, err)
	assert.Zero(t, result.Created, "the occurrence was already consumed")

	runs, err := f.svc.Runs(ctx, template.ID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, domain.TriggerManual, runs[0].Trigger)
	assert.Len(t, f.entries(t), 1)
}
