package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	accountdomain "github.com/smallbiznis/posledger/internal/account/domain"
	accountrepository "github.com/smallbiznis/posledger/internal/account/repository"
	accountservice "github.com/smallbiznis/posledger/internal/account/service"
	"github.com/smallbiznis/posledger/internal/autoentry/domain"
	"github.com/smallbiznis/posledger/internal/clock"
	"github.com/smallbiznis/posledger/internal/config"
	fiscalyeardomain "github.com/smallbiznis/posledger/internal/fiscalyear/domain"
	fiscalyearrepository "github.com/smallbiznis/posledger/internal/fiscalyear/repository"
	fiscalyearservice "github.com/smallbiznis/posledger/internal/fiscalyear/service"
	journaldomain "github.com/smallbiznis/posledger/internal/journal/domain"
	journalrepository "github.com/smallbiznis/posledger/internal/journal/repository"
	journalservice "github.com/smallbiznis/posledger/internal/journal/service"
	"github.com/smallbiznis/posledger/internal/observability/metrics"
	"github.com/smallbiznis/posledger/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	svc      domain.Service
	accounts accountdomain.Service
	journal  journaldomain.Service
	metrics  *metrics.AccountingMetrics
}

func newFixture(t *testing.T, enabled bool, opts ...func(*config.Config)) *fixture {
	t.Helper()
	db := testutil.NewDB(t,
		&accountdomain.Account{},
		&fiscalyeardomain.FiscalYear{},
		&journaldomain.JournalEntry{},
		&journaldomain.JournalLine{},
		&journaldomain.JournalEntrySequence{},
	)
	require.NoError(t, db.Exec(`CREATE TABLE recurring_template_lines (id INTEGER PRIMARY KEY, account_id INTEGER NOT NULL)`).Error)

	node := testutil.NewNode(t)
	clk := clock.NewFakeClock(time.Date(2026, 5, 20, 14, 30, 0, 0, time.UTC))
	log := zap.NewNop()
	cfg := config.Config{}
	cfg.Accounting.Enabled = enabled
	cfg.Accounting.EntryPrefix = "JE"
	for _, opt := range opts {
		opt(&cfg)
	}

	accountRepo := accountrepository.Provide()
	accounts := accountservice.New(accountservice.Params{DB: db, Log: log, GenID: node, Clock: clk, Repo: accountRepo})
	fiscalYears := fiscalyearservice.New(fiscalyearservice.Params{DB: db, Log: log, GenID: node, Clock: clk, Config: cfg, Repo: fiscalyearrepository.Provide()})
	m := metrics.NewAccountingMetricsForTest(prometheus.NewRegistry())
	journal := journalservice.New(journalservice.Params{
		DB:            db,
		Log:           log,
		GenID:         node,
		Clock:         clk,
		Config:        cfg,
		Repo:          journalrepository.Provide(),
		AccountRepo:   accountRepo,
		FiscalYearSvc: fiscalYears,
		Metrics:       m,
	})

	_, err := accounts.SeedDefaultAccounts(context.Background())
	require.NoError(t, err)

	svc := New(Params{
		Log:              log,
		Clock:            clk,
		Config:           cfg,
		AccountingConfig: config.NewStaticAccountingConfigHolder(config.DefaultAccountingConfig()),
		AccountSvc:       accounts,
		JournalSvc:       journal,
		Metrics:          m,
	})
	return &fixture{db: db, svc: svc, accounts: accounts, journal: journal, metrics: m}
}

func (f *fixture) dropSubtype(t *testing.T, subtype string) {
	t.Helper()
	require.NoError(t, f.db.Exec(`DELETE FROM accounts WHERE subtype = ?`, subtype).Error)
}

func (f *fixture) account(t *testing.T, subtype string) accountdomain.Account {
	t.Helper()
	account, err := f.accounts.FindBySubtype(context.Background(), subtype)
	require.NoError(t, err)
	require.NotNil(t, account, subtype)
	return *account
}

func (f *fixture) entryCount(t *testing.T) (entries, lines int64) {
	t.Helper()
	require.NoError(t, f.db.Model(&journaldomain.JournalEntry{}).Count(&entries).Error)
	require.NoError(t, f.db.Model(&journaldomain.JournalLine{}).Count(&lines).Error)
	return entries, lines
}

func amt(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func assertBalanced(t *testing.T, entry *journaldomain.JournalEntry) {
	t.Helper()
	debit, credit := journaldomain.Totals(entry.Lines)
	assert.True(t, debit.Equal(credit), "debit %s credit %s", debit, credit)
	assert.True(t, entry.TotalDebit.Equal(debit))
	assert.True(t, entry.TotalCredit.Equal(credit))
}

func cardSale(orderID int64, total string) domain.SaleEvent {
	return domain.SaleEvent{
		OrderID:     snowflakeID(orderID),
		OrderNumber: "ORD-0001",
		Total:       amt(total),
		CreatedAt:   time.Date(2026, 5, 20, 10, 15, 0, 0, time.UTC),
		Payments:    []domain.SalePayment{{Method: "card", Amount: amt(total)}},
		UserID:      "cashier-7",
	}
}

func TestDisabledIsNoop(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	assert.False(t, f.svc.Enabled())
	entry, err := f.svc.CreateSaleEntry(ctx, cardSale(1, "10000"))
	require.NoError(t, err)
	assert.Nil(t, entry)
	entry, err = f.svc.CreateRefundEntry(ctx, domain.RefundEvent{RefundID: 2, Amount: amt("5")})
	require.NoError(t, err)
	assert.Nil(t, entry)

	entries, lines := f.entryCount(t)
	assert.Zero(t, entries)
	assert.Zero(t, lines)
	assert.Equal(t, float64(1), promtestutil.ToFloat64(f.metrics.SkippedCount("sales", metrics.SkipReasonDisabled)))
}

func TestSaleWithCardPayment(t *testing.T) {
	f := newFixture(t, true)

	entry, err := f.svc.CreateSaleEntry(context.Background(), cardSale(1001, "10000"))
	require.NoError(t, err)
	require.NotNil(t, entry)

	assert.Equal(t, journaldomain.StatusPosted, entry.Status)
	require.NotNil(t, entry.PostedBy)
	assert.Equal(t, "cashier-7", *entry.PostedBy)
	assert.Equal(t, journaldomain.SourceTypeOrder, entry.SourceType)
	require.NotNil(t, entry.SourceID)
	assert.Equal(t, snowflakeID(1001), *entry.SourceID)
	assert.Equal(t, time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC), entry.EntryDate)

	require.Len(t, entry.Lines, 2)
	assert.Equal(t, f.account(t, accountdomain.SubtypeBank).ID, entry.Lines[0].AccountID)
	assert.True(t, entry.Lines[0].Debit.Equal(amt("10000")))
	assert.Equal(t, f.account(t, accountdomain.SubtypeSales).ID, entry.Lines[1].AccountID)
	assert.True(t, entry.Lines[1].Credit.Equal(amt("10000")))
	assertBalanced(t, entry)
}

func TestSaleDateFollowsTimestampOffset(t *testing.T) {
	f := newFixture(t, true)
	wib := time.FixedZone("WIB", 7*3600)

	event := cardSale(1002, "25000")
	event.CreatedAt = time.Date(2026, 6, 1, 2, 0, 0, 0, wib)
	entry, err := f.svc.CreateSaleEntry(context.Background(), event)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), entry.EntryDate)
}

func TestSaleDateUsesBusinessLocation(t *testing.T) {
	wib := time.FixedZone("WIB", 7*3600)
	f := newFixture(t, true, func(cfg *config.Config) {
		cfg.Accounting.Location = wib
	})
	ctx := context.Background()

	event := cardSale(1003, "25000")
	event.CreatedAt = time.Date(2026, 12, 31, 17, 30, 0, 0, time.UTC)
	entry, err := f.svc.CreateSaleEntry(ctx, event)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), entry.EntryDate)
	assert.Contains(t, entry.EntryNumber, "-2027-")

	refund, err := f.svc.CreateRefundEntry(ctx, domain.RefundEvent{RefundID: 77, Amount: amt("5000")})
	require.NoError(t, err)
	require.NotNil(t, refund)
	assert.Equal(t, time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC), refund.EntryDate)
}

func TestSaleWithCostOfGoods(t *testing.T) {
	f := newFixture(t, true)

	event := cardSale(1002, "9000")
	event.Items = []domain.SaleItem{
		{Quantity: amt("2"), Cost: amt("1500.50")},
		{Quantity: amt("1"), Cost: amt("0.333")},
	}
	entry, err := f.svc.CreateSaleEntry(context.Background(), event)
	require.NoError(t, err)
	require.Len(t, entry.Lines, 4)

	cogs, inventory := entry.Lines[2], entry.Lines[3]
	assert.Equal(t, f.account(t, accountdomain.SubtypeCostOfGoodsSold).ID, cogs.AccountID)
	assert.Equal(t, f.account(t, accountdomain.SubtypeInventory).ID, inventory.AccountID)
	assert.True(t, cogs.Debit.Equal(amt("3001.33")))
	assert.True(t, cogs.Debit.Equal(inventory.Credit))
	assert.True(t, entry.TotalDebit.Equal(amt("12001.33")))
	assertBalanced(t, entry)
}

func TestSaleWithoutCostOrCogsAccount(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	event := cardSale(1003, "500")
	event.Items = []domain.SaleItem{{Quantity: amt("3"), Cost: decimal.Zero}}
	entry, err := f.svc.CreateSaleEntry(ctx, event)
	require.NoError(t, err)
	assert.Len(t, entry.Lines, 2)

	f.dropSubtype(t, accountdomain.SubtypeCostOfGoodsSold)
	event = cardSale(1004, "500")
	event.Items = []domain.SaleItem{{Quantity: amt("3"), Cost: amt("100")}}
	entry, err = f.svc.CreateSaleEntry(ctx, event)
	require.NoError(t, err)
	assert.Len(t, entry.Lines, 2)
	assertBalanced(t, entry)
}

func TestSaleWithoutSalesAccountCreatesNothing(t *testing.T) {
	f := newFixture(t, true)
	f.dropSubtype(t, accountdomain.SubtypeSales)

	entry, err := f.svc.CreateSaleEntry(context.Background(), cardSale(1005, "10000"))
	require.NoError(t, err)
	assert.Nil(t, entry)

	entries, lines := f.entryCount(t)
	assert.Zero(t, entries)
	assert.Zero(t, lines)
	assert.Equal(t, float64(1), promtestutil.ToFloat64(f.metrics.SkippedCount("sales", metrics.SkipReasonMissingAccount)))
}

func TestSalePaymentFallsBackToCash(t *testing.T) {
	f := newFixture(t, true)
	f.dropSubtype(t, accountdomain.SubtypeBank)

	entry, err := f.svc.CreateSaleEntry(context.Background(), cardSale(1006, "75"))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, f.account(t, accountdomain.SubtypeCash).ID, entry.Lines[0].AccountID)

	event := cardSale(1007, "20")
	event.Payments = []domain.SalePayment{{Method: "voucher", Amount: amt("20")}}
	entry, err = f.svc.CreateSaleEntry(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, f.account(t, accountdomain.SubtypeCash).ID, entry.Lines[0].AccountID)
}

func TestSaleOnAccountDebitsReceivable(t *testing.T) {
	f := newFixture(t, true)

	event := cardSale(1008, "120")
	event.Payments = []domain.SalePayment{{Method: "credit", Amount: amt("120")}}
	entry, err := f.svc.CreateSaleEntry(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, f.account(t, accountdomain.SubtypeAccountsReceivable).ID, entry.Lines[0].AccountID)
}

func TestSaleAmbiguousSalesAccountSkips(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	require.NoError(t, f.db.Exec(`UPDATE accounts SET is_default = ? WHERE subtype = ?`, false, accountdomain.SubtypeSales).Error)
	_, err := f.accounts.Create(ctx, accountdomain.CreateAccountRequest{
		Code:    "4110",
		Name:    "Online Sales",
		Type:    accountdomain.AccountTypeIncome,
		Subtype: accountdomain.SubtypeSales,
	})
	require.NoError(t, err)

	entry, err := f.svc.CreateSaleEntry(ctx, cardSale(1009, "10"))
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Equal(t, float64(1), promtestutil.ToFloat64(f.metrics.SkippedCount("sales", metrics.SkipReasonAmbiguous)))
}

func TestSaleReplayReturnsSameEntry(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	first, err := f.svc.CreateSaleEntry(ctx, cardSale(1010, "42"))
	require.NoError(t, err)
	second, err := f.svc.CreateSaleEntry(ctx, cardSale(1010, "42"))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	entries, _ := f.entryCount(t)
	assert.Equal(t, int64(1), entries)
	assert.Equal(t, float64(1), promtestutil.ToFloat64(f.metrics.CreatedCount("sales")))
}

func TestSaleAmounts(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	entry, err := f.svc.CreateSaleEntry(ctx, cardSale(1011, "0"))
	require.NoError(t, err)
	assert.Nil(t, entry)

	_, err = f.svc.CreateSaleEntry(ctx, cardSale(1012, "-1"))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.svc.CreateSaleEntry(ctx, cardSale(0, "10"))
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)
}

func TestExpenseEntries(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	cashPaid, err := f.svc.CreateExpenseEntry(ctx, domain.ExpenseEvent{
		ExpenseID: 2001, Amount: amt("150000"), Title: "Office supplies", PaymentMethod: "cash", UserID: "5",
	})
	require.NoError(t, err)
	assert.Equal(t, f.account(t, accountdomain.SubtypeOperatingExpense).ID, cashPaid.Lines[0].AccountID)
	assert.Equal(t, f.account(t, accountdomain.SubtypeCash).ID, cashPaid.Lines[1].AccountID)
	assert.Equal(t, "Expense: Office supplies", cashPaid.Description)
	assertBalanced(t, cashPaid)

	bankPaid, err := f.svc.CreateExpenseEntry(ctx, domain.ExpenseEvent{
		ExpenseID: 2002, Amount: amt("3500000"), Title: "May rent", AccountSubtype: accountdomain.SubtypeRentExpense,
		PaymentMethod: "bank_transfer", UserID: "5",
	})
	require.NoError(t, err)
	assert.Equal(t, f.account(t, accountdomain.SubtypeRentExpense).ID, bankPaid.Lines[0].AccountID)
	assert.Equal(t, f.account(t, accountdomain.SubtypeBank).ID, bankPaid.Lines[1].AccountID)
	assert.Equal(t, journaldomain.SourceTypeExpense, bankPaid.SourceType)

	missing, err := f.svc.CreateExpenseEntry(ctx, domain.ExpenseEvent{
		ExpenseID: 2003, Amount: amt("10"), AccountSubtype: "marketing_expense",
	})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPurchaseEntries(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	entry, err := f.svc.CreatePurchaseEntry(ctx, domain.PurchaseEvent{
		PurchaseOrderID: 3001, OrderNumber: "PO-17", Total: amt("880000"), SupplierName: "PT Sumber Makmur", ActorID: "8",
	})
	require.NoError(t, err)
	assert.Equal(t, f.account(t, accountdomain.SubtypeInventory).ID, entry.Lines[0].AccountID)
	assert.Equal(t, f.account(t, accountdomain.SubtypeAccountsPayable).ID, entry.Lines[1].AccountID)
	assert.Equal(t, "Purchase PO-17 from PT Sumber Makmur", entry.Description)
	assertBalanced(t, entry)

	f.dropSubtype(t, accountdomain.SubtypeAccountsPayable)
	entry, err = f.svc.CreatePurchaseEntry(ctx, domain.PurchaseEvent{PurchaseOrderID: 3002, Total: amt("1000")})
	require.NoError(t, err)
	assert.Equal(t, f.account(t, accountdomain.SubtypeCash).ID, entry.Lines[1].AccountID)

	f.dropSubtype(t, accountdomain.SubtypeInventory)
	entry, err = f.svc.CreatePurchaseEntry(ctx, domain.PurchaseEvent{PurchaseOrderID: 3003, Total: amt("1000")})
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestRefundLeavesSaleUntouched(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	event := cardSale(4001, "10000")
	event.Payments[0].Method = "cash"
	sale, err := f.svc.CreateSaleEntry(ctx, event)
	require.NoError(t, err)

	refund, err := f.svc.CreateRefundEntry(ctx, domain.RefundEvent{
		RefundID: 4002, RefundNumber: "RF-0001", Amount: amt("2500"), ActorID: "cashier-7",
	})
	require.NoError(t, err)
	require.Len(t, refund.Lines, 2)
	assert.Equal(t, f.account(t, accountdomain.SubtypeSales).ID, refund.Lines[0].AccountID)
	assert.True(t, refund.Lines[0].Debit.Equal(amt("2500")))
	assert.Equal(t, f.account(t, accountdomain.SubtypeCash).ID, refund.Lines[1].AccountID)
	assert.True(t, refund.Lines[1].Credit.Equal(amt("2500")))
	assert.Equal(t, journaldomain.SourceTypeRefund, refund.SourceType)

	reloaded, err := f.journal.GetByID(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, journaldomain.StatusPosted, reloaded.Status)
	assert.True(t, reloaded.TotalDebit.Equal(amt("10000")))
	require.Len(t, reloaded.Lines, len(sale.Lines))
	for i := range sale.Lines {
		assert.Equal(t, sale.Lines[i].AccountID, reloaded.Lines[i].AccountID)
		assert.True(t, sale.Lines[i].Debit.Equal(reloaded.Lines[i].Debit))
		assert.True(t, sale.Lines[i].Credit.Equal(reloaded.Lines[i].Credit))
	}

	f.dropSubtype(t, accountdomain.SubtypeCash)
	skipped, err := f.svc.CreateRefundEntry(ctx, domain.RefundEvent{RefundID: 4003, Amount: amt("1")})
	require.NoError(t, err)
	assert.Nil(t, skipped)
}

func snowflakeID(v int64) snowflake.ID { return snowflake.ID(v) }
