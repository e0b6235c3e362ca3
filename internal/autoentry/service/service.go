package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	accountdomain "github.com/smallbiznis/posledger/internal/account/domain"
	"github.com/smallbiznis/posledger/internal/autoentry/domain"
	"github.com/smallbiznis/posledger/internal/clock"
	"github.com/smallbiznis/posledger/internal/config"
	journaldomain "github.com/smallbiznis/posledger/internal/journal/domain"
	"github.com/smallbiznis/posledger/internal/observability/metrics"
	"github.com/smallbiznis/posledger/pkg/dateutil"
	"github.com/smallbiznis/posledger/pkg/log/ctxlogger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log              *zap.Logger
	Clock            clock.Clock
	Config           config.Config
	AccountingConfig *config.AccountingConfigHolder `optional:"true"`
	AccountSvc       accountdomain.Service
	JournalSvc       journaldomain.Service
	Metrics          *metrics.AccountingMetrics `optional:"true"`
}

type Service struct {
	log              *zap.Logger
	clock            clock.Clock
	enabled          bool
	location         *time.Location
	accountingConfig *config.AccountingConfigHolder
	accountSvc       accountdomain.Service
	journalSvc       journaldomain.Service
	metrics          *metrics.AccountingMetrics
}

func New(p Params) domain.Service {
	return &Service{
		log:              p.Log.Named("autoentry.service"),
		clock:            p.Clock,
		enabled:          p.Config.Accounting.Enabled,
		location:         p.Config.Accounting.Location,
		accountingConfig: p.AccountingConfig,
		accountSvc:       p.AccountSvc,
		journalSvc:       p.JournalSvc,
		metrics:          p.Metrics,
	}
}

func (s *Service) Enabled() bool {
	return s.enabled
}

// CreateSaleEntry books Dr payment account / Cr sales for the order total and,
// when the cost of goods is known, Dr COGS / Cr inventory.
func (s *Service) CreateSaleEntry(ctx context.Context, event domain.SaleEvent) (*journaldomain.JournalEntry, error) {
	ctx = ctxlogger.ContextWithEventSubject(ctx, "sale")
	const source = journaldomain.SourceSales
	if !s.gate(source) {
		return nil, nil
	}
	if event.OrderID == 0 {
		return nil, domain.ErrInvalidEvent
	}
	total, ok, err := s.amount(ctx, source, event.Total)
	if !ok {
		return nil, err
	}

	sales, ok, err := s.require(ctx, source, accountdomain.SubtypeSales)
	if !ok {
		return nil, err
	}
	method := event.PaymentMethod()
	payment, ok, err := s.withCashFallback(ctx, source, s.accounting().PaymentSubtype(method))
	if !ok {
		return nil, err
	}

	label := firstNonEmpty(event.OrderNumber, event.OrderID.String())
	lines := []journaldomain.LineInput{
		debit(payment, total, "Payment "+firstNonEmpty(method, "cash")),
		credit(sales, total, "Sales revenue"),
	}

	if cost := event.CostOfGoods(); cost.IsPositive() {
		cogs, inventory, err := s.cogsPair(ctx)
		if err != nil {
			return nil, err
		}
		if cogs != nil && inventory != nil {
			lines = append(lines,
				debit(cogs, cost, "Cost of goods sold"),
				credit(inventory, cost, "Inventory released"),
			)
		}
	}

	ref := journaldomain.OrderRef{ID: event.OrderID}
	return s.post(ctx, journaldomain.CreateEntryRequest{
		EntryDate:   s.dateOr(event.CreatedAt),
		Reference:   label,
		Description: "Sale " + label,
		Source:      source,
		SourceRef:   ref,
		DedupeKey:   journaldomain.DedupeKey(ref),
		Actor:       event.UserID,
		Lines:       lines,
	})
}

func (s *Service) CreateExpenseEntry(ctx context.Context, event domain.ExpenseEvent) (*journaldomain.JournalEntry, error) {
	ctx = ctxlogger.ContextWithEventSubject(ctx, "expense")
	const source = journaldomain.SourceExpense
	if !s.gate(source) {
		return nil, nil
	}
	if event.ExpenseID == 0 {
		return nil, domain.ErrInvalidEvent
	}
	amount, ok, err := s.amount(ctx, source, event.Amount)
	if !ok {
		return nil, err
	}

	subtype := strings.TrimSpace(event.AccountSubtype)
	if subtype == "" {
		subtype = accountdomain.SubtypeOperatingExpense
	}
	expense, ok, err := s.require(ctx, source, subtype)
	if !ok {
		return nil, err
	}

	paidFrom := accountdomain.SubtypeCash
	if s.accounting().IsExpenseBankMethod(event.PaymentMethod) {
		paidFrom = accountdomain.SubtypeBank
	}
	settlement, ok, err := s.withCashFallback(ctx, source, paidFrom)
	if !ok {
		return nil, err
	}

	title := firstNonEmpty(strings.TrimSpace(event.Title), event.ExpenseID.String())
	ref := journaldomain.ExpenseRef{ID: event.ExpenseID}
	return s.post(ctx, journaldomain.CreateEntryRequest{
		EntryDate:   s.dateOr(event.Date),
		Reference:   event.ExpenseID.String(),
		Description: "Expense: " + title,
		Source:      source,
		SourceRef:   ref,
		DedupeKey:   journaldomain.DedupeKey(ref),
		Actor:       event.UserID,
		Lines: []journaldomain.LineInput{
			debit(expense, amount, title),
			credit(settlement, amount, "Paid by "+firstNonEmpty(event.PaymentMethod, "cash")),
		},
	})
}

func (s *Service) CreatePurchaseEntry(ctx context.Context, event domain.PurchaseEvent) (*journaldomain.JournalEntry, error) {
	ctx = ctxlogger.ContextWithEventSubject(ctx, "purchase")
	const source = journaldomain.SourcePurchase
	if !s.gate(source) {
		return nil, nil
	}
	if event.PurchaseOrderID == 0 {
		return nil, domain.ErrInvalidEvent
	}
	total, ok, err := s.amount(ctx, source, event.Total)
	if !ok {
		return nil, err
	}

	inventory, ok, err := s.require(ctx, source, accountdomain.SubtypeInventory)
	if !ok {
		return nil, err
	}
	payable, ok, err := s.withCashFallback(ctx, source, accountdomain.SubtypeAccountsPayable)
	if !ok {
		return nil, err
	}

	label := firstNonEmpty(event.OrderNumber, event.PurchaseOrderID.String())
	description := "Purchase " + label
	if supplier := strings.TrimSpace(event.SupplierName); supplier != "" {
		description += " from " + supplier
	}
	ref := journaldomain.PurchaseOrderRef{ID: event.PurchaseOrderID}
	return s.post(ctx, journaldomain.CreateEntryRequest{
		EntryDate:   s.dateOr(event.OrderDate),
		Reference:   label,
		Description: description,
		Source:      source,
		SourceRef:   ref,
		DedupeKey:   journaldomain.DedupeKey(ref),
		Actor:       event.ActorID,
		Lines: []journaldomain.LineInput{
			debit(inventory, total, "Inventory received"),
			credit(payable, total, strings.TrimSpace(event.SupplierName)),
		},
	})
}

// CreateRefundEntry books Dr sales / Cr cash. The sale entry being refunded
// is left as posted.
func (s *Service) CreateRefundEntry(ctx context.Context, event domain.RefundEvent) (*journaldomain.JournalEntry, error) {
	ctx = ctxlogger.ContextWithEventSubject(ctx, "refund")
	const source = journaldomain.SourceRefund
	if !s.gate(source) {
		return nil, nil
	}
	if event.RefundID == 0 {
		return nil, domain.ErrInvalidEvent
	}
	amount, ok, err := s.amount(ctx, source, event.Amount)
	if !ok {
		return nil, err
	}

	sales, ok, err := s.require(ctx, source, accountdomain.SubtypeSales)
	if !ok {
		return nil, err
	}
	cash, ok, err := s.require(ctx, source, accountdomain.SubtypeCash)
	if !ok {
		return nil, err
	}

	label := firstNonEmpty(event.RefundNumber, event.RefundID.String())
	ref := journaldomain.RefundRef{ID: event.RefundID}
	return s.post(ctx, journaldomain.CreateEntryRequest{
		EntryDate:   s.dateOr(event.RefundedAt),
		Reference:   label,
		Description: "Refund " + label,
		Source:      source,
		SourceRef:   ref,
		DedupeKey:   journaldomain.DedupeKey(ref),
		Actor:       event.ActorID,
		Lines: []journaldomain.LineInput{
			debit(sales, amount, "Sales returned"),
			credit(cash, amount, "Cash refunded"),
		},
	})
}

func (s *Service) post(ctx context.Context, req journaldomain.CreateEntryRequest) (*journaldomain.JournalEntry, error) {
	log := ctxlogger.WithContext(ctx, s.log)
	entry, err := s.journalSvc.CreatePosted(ctx, req)
	if err != nil {
		log.Error("failed to create journal entry",
			zap.String("source", string(req.Source)),
			zap.String("dedupe_key", req.DedupeKey),
			zap.Error(err),
		)
		return nil, err
	}
	log.Debug("journal entry created",
		zap.String("source", string(req.Source)),
		zap.String("entry_number", entry.EntryNumber),
	)
	return entry, nil
}

func (s *Service) gate(source journaldomain.Source) bool {
	if s.enabled {
		return true
	}
	s.metrics.IncSkipped(string(source), metrics.SkipReasonDisabled)
	return false
}

// amount returns ok=false for a zero amount (skip) or a negative one (error).
func (s *Service) amount(ctx context.Context, source journaldomain.Source, value decimal.Decimal) (decimal.Decimal, bool, error) {
	if value.IsNegative() {
		return decimal.Zero, false, domain.ErrInvalidAmount
	}
	if value.Round(journaldomain.AmountScale).IsZero() {
		s.skip(ctx, source, metrics.SkipReasonZeroAmount, "")
		return decimal.Zero, false, nil
	}
	if !value.Equal(value.Round(journaldomain.AmountScale)) {
		return decimal.Zero, false, domain.ErrInvalidAmount
	}
	return value, true, nil
}

// require resolves the canonical account of subtype. A missing or ambiguous
// account is a skip, not an error.
func (s *Service) require(ctx context.Context, source journaldomain.Source, subtype string) (*accountdomain.Account, bool, error) {
	account, reason, err := s.lookup(ctx, subtype)
	if err != nil {
		return nil, false, err
	}
	if account == nil {
		s.skip(ctx, source, reason, subtype)
		return nil, false, nil
	}
	return account, true, nil
}

func (s *Service) withCashFallback(ctx context.Context, source journaldomain.Source, subtype string) (*accountdomain.Account, bool, error) {
	if subtype != "" && subtype != accountdomain.SubtypeCash {
		account, reason, err := s.lookup(ctx, subtype)
		if err != nil {
			return nil, false, err
		}
		if account != nil {
			return account, true, nil
		}
		if reason == metrics.SkipReasonAmbiguous {
			s.skip(ctx, source, reason, subtype)
			return nil, false, nil
		}
		ctxlogger.WithContext(ctx, s.log).Info("account not configured, falling back to cash",
			zap.String("source", string(source)),
			zap.String("subtype", subtype),
		)
	}
	return s.require(ctx, source, accountdomain.SubtypeCash)
}

func (s *Service) lookup(ctx context.Context, subtype string) (*accountdomain.Account, string, error) {
	account, err := s.accountSvc.FindBySubtype(ctx, subtype)
	if errors.Is(err, accountdomain.ErrAmbiguousSubtype) {
		return nil, metrics.SkipReasonAmbiguous, nil
	}
	if err != nil {
		return nil, "", err
	}
	if account == nil {
		return nil, metrics.SkipReasonMissingAccount, nil
	}
	return account, "", nil
}

// cogsPair returns nil accounts when either side is not configured.
func (s *Service) cogsPair(ctx context.Context) (*accountdomain.Account, *accountdomain.Account, error) {
	cogs, _, err := s.lookup(ctx, accountdomain.SubtypeCostOfGoodsSold)
	if err != nil || cogs == nil {
		return nil, nil, err
	}
	inventory, _, err := s.lookup(ctx, accountdomain.SubtypeInventory)
	if err != nil || inventory == nil {
		return nil, nil, err
	}
	return cogs, inventory, nil
}

func (s *Service) skip(ctx context.Context, source journaldomain.Source, reason, subtype string) {
	s.metrics.IncSkipped(string(source), reason)
	ctxlogger.WithContext(ctx, s.log).Warn("accounting entry skipped",
		zap.String("source", string(source)),
		zap.String("reason", reason),
		zap.String("subtype", subtype),
	)
}

func (s *Service) accounting() config.AccountingConfig {
	return s.accountingConfig.Get()
}

// dateOr returns the business date of the event timestamp t, or of now when
// t is unset.
func (s *Service) dateOr(t time.Time) time.Time {
	if t.IsZero() {
		t = s.clock.Now()
	}
	return dateutil.DayIn(t, s.location)
}

func debit(account *accountdomain.Account, amount decimal.Decimal, description string) journaldomain.LineInput {
	return journaldomain.LineInput{AccountID: account.ID, Debit: amount, Credit: decimal.Zero, Description: description}
}

func credit(account *accountdomain.Account, amount decimal.Decimal, description string) journaldomain.LineInput {
	return journaldomain.LineInput{AccountID: account.ID, Debit: decimal.Zero, Credit: amount, Description: description}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
