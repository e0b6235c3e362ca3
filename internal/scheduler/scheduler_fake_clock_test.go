package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
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
	obsmetrics "github.com/smallbiznis/posledger/internal/observability/metrics"
	recurringdomain "github.com/smallbiznis/posledger/internal/recurring/domain"
	recurringrepository "github.com/smallbiznis/posledger/internal/recurring/repository"
	recurringservice "github.com/smallbiznis/posledger/internal/recurring/service"
	schedtesting "github.com/smallbiznis/posledger/internal/scheduler/testing"
	"github.com/smallbiznis/posledger/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type integration struct {
	db        *gorm.DB
	clock     *clock.FakeClock
	scheduler *Scheduler
	metrics   *obsmetrics.SchedulerMetrics
	recurring recurringdomain.Service
	journal   journaldomain.Service
	accounts  accountdomain.Service
}

func newIntegration(t *testing.T, start time.Time) *integration {
	t.Helper()
	db := testutil.NewDB(t,
		&accountdomain.Account{},
		&fiscalyeardomain.FiscalYear{},
		&journaldomain.JournalEntry{},
		&journaldomain.JournalLine{},
		&journaldomain.JournalEntrySequence{},
		&recurringdomain.RecurringTemplate{},
		&recurringdomain.RecurringTemplateLine{},
		&recurringdomain.RecurringRun{},
	)
	node := testutil.NewNode(t)
	clk := clock.NewFakeClock(start)
	log := zap.NewNop()
	cfg := config.Config{}
	cfg.Accounting.Enabled = true
	cfg.Accounting.EntryPrefix = "JE"

	accountRepo := accountrepository.Provide()
	accounts := accountservice.New(accountservice.Params{DB: db, Log: log, GenID: node, Clock: clk, Repo: accountRepo})
	_, err := accounts.SeedDefaultAccounts(context.Background())
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
	recurring := recurringservice.New(recurringservice.Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		Clock:       clk,
		Config:      cfg,
		Repo:        recurringrepository.Provide(),
		AccountRepo: accountRepo,
		JournalSvc:  journal,
	})

	schedMetrics := obsmetrics.NewSchedulerMetricsForTest(prometheus.NewRegistry())
	s, err := New(Params{
		Log:          log,
		GenID:        node,
		Clock:        clk,
		RecurringSvc: recurring,
		Metrics:      schedMetrics,
	})
	require.NoError(t, err)

	return &integration{
		db:        db,
		clock:     clk,
		scheduler: s,
		metrics:   schedMetrics,
		recurring: recurring,
		journal:   journal,
		accounts:  accounts,
	}
}

func (it *integration) template(t *testing.T, cadence recurringdomain.Cadence, debit, credit, amount string) recurringdomain.RecurringTemplate {
	t.Helper()
	ctx := context.Background()
	dr, err := it.accounts.FindBySubtype(ctx, debit)
	require.NoError(t, err)
	cr, err := it.accounts.FindBySubtype(ctx, credit)
	require.NoError(t, err)

	template, err := it.recurring.Create(ctx, recurringdomain.CreateTemplateRequest{
		Name:      "Daily float",
		Cadence:   cadence,
		StartDate: it.clock.Now(),
		Actor:     "owner",
		Lines: []recurringdomain.LineTemplate{
			{AccountID: dr.ID, Debit: decimal.RequireFromString(amount)},
			{AccountID: cr.ID, Credit: decimal.RequireFromString(amount)},
		},
	})
	require.NoError(t, err)
	return template
}

func (it *integration) recurringEntries(t *testing.T) []journaldomain.JournalEntry {
	t.Helper()
	entries, err := it.journal.List(context.Background(), journaldomain.ListEntryFilter{Source: journaldomain.SourceRecurring})
	require.NoError(t, err)
	return entries
}

func TestSchedulerBooksOneEntryPerDayAcrossTicks(t *testing.T) {
	it := newIntegration(t, time.Date(2026, 5, 1, 0, 1, 0, 0, time.UTC))
	template := it.template(t, recurringdomain.CadenceDaily, accountdomain.SubtypeCash, accountdomain.SubtypeBank, "500000")
	ctx := context.Background()

	const days = 5
	for i := 0; i < days; i++ {
		// Several ticks inside the same day must not book the day twice.
		require.NoError(t, it.scheduler.RunOnce(ctx))
		it.clock.Advance(6 * time.Hour)
		require.NoError(t, it.scheduler.RunOnce(ctx))
		it.clock.Advance(18 * time.Hour)
	}

	entries := it.recurringEntries(t)
	require.Len(t, entries, days)
	seen := map[string]bool{}
	for _, entry := range entries {
		key := entry.EntryDate.Format("2006-01-02")
		assert.False(t, seen[key], "duplicate entry for %s", key)
		seen[key] = true
		assert.Equal(t, journaldomain.StatusPosted, entry.Status)
		assert.True(t, entry.TotalDebit.Equal(entry.TotalCredit))
	}

	runs, err := it.recurring.Runs(ctx, template.ID)
	require.NoError(t, err)
	assert.Len(t, runs, days)
	assert.Equal(t, float64(days), promtestutil.ToFloat64(it.metrics.OccurrenceCount(JobRecurringEntries, obsmetrics.OccurrenceOutcomeCreated)))
}

func TestSchedulerCatchesUpAfterDowntime(t *testing.T) {
	it := newIntegration(t, time.Date(2026, 5, 1, 0, 1, 0, 0, time.UTC))
	template := it.template(t, recurringdomain.CadenceDaily, accountdomain.SubtypeCash, accountdomain.SubtypeBank, "250000")
	ctx := context.Background()

	// Process was down for three days.
	it.clock.Advance(3 * 24 * time.Hour)
	require.NoError(t, it.scheduler.RunOnce(ctx))

	assert.Len(t, it.recurringEntries(t), 4)

	reloaded, err := it.recurring.GetByID(ctx, template.ID)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 5, 0, 0, 0, 0, time.UTC), reloaded.NextRunDate.UTC())
}

func TestSchedulerRunsFastForwardedTemplate(t *testing.T) {
	it := newIntegration(t, time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	template := it.template(t, recurringdomain.CadenceMonthly, accountdomain.SubtypeRentExpense, accountdomain.SubtypeBank, "3500000")
	ctx := context.Background()

	require.NoError(t, it.scheduler.RunOnce(ctx))
	require.Len(t, it.recurringEntries(t), 1)

	// Next occurrence is a month away; nothing happens tomorrow.
	it.clock.Advance(24 * time.Hour)
	require.NoError(t, it.scheduler.RunOnce(ctx))
	require.Len(t, it.recurringEntries(t), 1)

	accelerator := schedtesting.NewTimeAccelerator(it.db, it.clock)
	require.NoError(t, accelerator.FastForwardTemplate(ctx, template.ID))
	require.NoError(t, it.scheduler.RunOnce(ctx))
	assert.Len(t, it.recurringEntries(t), 2)
}
