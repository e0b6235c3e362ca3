package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	accountdomain "github.com/smallbiznis/posledger/internal/account/domain"
	auditdomain "github.com/smallbiznis/posledger/internal/audit/domain"
	"github.com/smallbiznis/posledger/internal/clock"
	"github.com/smallbiznis/posledger/internal/config"
	fiscalyeardomain "github.com/smallbiznis/posledger/internal/fiscalyear/domain"
	"github.com/smallbiznis/posledger/internal/journal/domain"
	"github.com/smallbiznis/posledger/internal/observability/metrics"
	"github.com/smallbiznis/posledger/pkg/dateutil"
	"github.com/smallbiznis/posledger/pkg/db"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("github.com/smallbiznis/posledger/internal/journal")

// maxCreateAttempts bounds retries of a creation transaction that lost a
// number allocation or lock race.
const maxCreateAttempts = 3

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Config        config.Config
	Repo          domain.Repository
	AccountRepo   accountdomain.Repository
	FiscalYearSvc fiscalyeardomain.Service
	AuditSvc      auditdomain.Service        `optional:"true"`
	Metrics       *metrics.AccountingMetrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	repo          domain.Repository
	accountRepo   accountdomain.Repository
	fiscalYearSvc fiscalyeardomain.Service
	auditSvc      auditdomain.Service
	metrics       *metrics.AccountingMetrics
	entryPrefix   string
	location      *time.Location
}

func New(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("journal.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		repo:          p.Repo,
		accountRepo:   p.AccountRepo,
		fiscalYearSvc: p.FiscalYearSvc,
		auditSvc:      p.AuditSvc,
		metrics:       p.Metrics,
		entryPrefix:   p.Config.Accounting.EntryPrefix,
		location:      p.Config.Accounting.Location,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateEntryRequest) (*domain.JournalEntry, error) {
	req.Post = false
	return s.create(ctx, req)
}

func (s *Service) CreatePosted(ctx context.Context, req domain.CreateEntryRequest) (*domain.JournalEntry, error) {
	req.Post = true
	return s.create(ctx, req)
}

func (s *Service) create(ctx context.Context, req domain.CreateEntryRequest) (*domain.JournalEntry, error) {
	var (
		entry   *domain.JournalEntry
		created bool
	)
	key := strings.TrimSpace(req.DedupeKey)
	for attempt := 1; ; attempt++ {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			entry, created, err = s.createTx(ctx, tx, req)
			return err
		})
		if err == nil {
			break
		}
		// A concurrent request with the same dedupe key won the insert.
		if key != "" && db.IsDuplicateKeyErr(err) {
			existing, findErr := s.loadByDedupeKey(ctx, s.db, key)
			if findErr == nil && existing != nil {
				return existing, nil
			}
		}
		if attempt >= maxCreateAttempts || !db.IsRetryable(err) || ctx.Err() != nil {
			return nil, err
		}
		s.log.Debug("retrying journal entry creation",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	if created {
		s.metrics.IncEntryCreated(string(entry.Source))
	}
	return entry, nil
}

func (s *Service) CreateTx(ctx context.Context, tx *gorm.DB, req domain.CreateEntryRequest) (*domain.JournalEntry, error) {
	entry, created, err := s.createTx(ctx, tx, req)
	if err != nil {
		return nil, err
	}
	if created {
		s.metrics.IncEntryCreated(string(entry.Source))
	}
	return entry, nil
}

func (s *Service) createTx(ctx context.Context, tx *gorm.DB, req domain.CreateEntryRequest) (entry *domain.JournalEntry, created bool, err error) {
	ctx, span := tracer.Start(ctx, "journal.create", trace.WithAttributes(
		attribute.String("journal.source", string(req.Source)),
		attribute.Bool("journal.post", req.Post),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(
				attribute.String("journal.entry_number", entry.EntryNumber),
				attribute.Bool("journal.created", created),
			)
		}
		span.End()
	}()
	return s.insertEntryTx(ctx, tx, req)
}

// insertEntryTx allocates the number, writes header and lines, recomputes
// totals from the stored lines and refuses to continue unless they balance.
func (s *Service) insertEntryTx(ctx context.Context, tx *gorm.DB, req domain.CreateEntryRequest) (*domain.JournalEntry, bool, error) {
	if req.EntryDate.IsZero() {
		return nil, false, domain.ErrInvalidEntryDate
	}
	if !req.Source.Valid() {
		return nil, false, domain.ErrInvalidSource
	}
	if err := domain.ValidateLineInputs(req.Lines); err != nil {
		return nil, false, err
	}

	dedupeKey := strings.TrimSpace(req.DedupeKey)
	if dedupeKey != "" {
		existing, err := s.loadByDedupeKey(ctx, tx, dedupeKey)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
	}

	if err := s.ensureAccounts(ctx, tx, req.Lines); err != nil {
		return nil, false, err
	}

	entryDate := dateutil.DayIn(req.EntryDate, nil)
	fy, err := s.fiscalYearSvc.ResolveForPostingTx(ctx, tx, entryDate)
	if err != nil {
		return nil, false, err
	}

	now := s.clock.Now()
	seq, err := s.repo.NextSequence(ctx, tx, entryDate.Year(), now)
	if err != nil {
		return nil, false, err
	}

	actor := strings.TrimSpace(req.Actor)
	entry := domain.JournalEntry{
		ID:           s.genID.Generate(),
		EntryNumber:  domain.FormatEntryNumber(s.entryPrefix, entryDate.Year(), seq),
		Sequence:     seq,
		EntryDate:    entryDate,
		Reference:    strings.TrimSpace(req.Reference),
		Description:  strings.TrimSpace(req.Description),
		Source:       req.Source,
		CreatedBy:    actor,
		Status:       domain.StatusDraft,
		ReversalOfID: req.ReversalOfID,
		TotalDebit:   decimal.Zero,
		TotalCredit:  decimal.Zero,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if fy != nil {
		entry.FiscalYearID = &fy.ID
	}
	if req.SourceRef != nil {
		sourceID := req.SourceRef.SourceID()
		entry.SourceType = req.SourceRef.SourceType()
		entry.SourceID = &sourceID
	}
	if dedupeKey != "" {
		entry.DedupeKey = &dedupeKey
	}
	if req.Post {
		entry.Status = domain.StatusPosted
		entry.PostedBy = optionalString(actor)
		entry.PostedAt = &now
	}

	if err := s.repo.InsertEntry(ctx, tx, &entry); err != nil {
		return nil, false, err
	}

	lines := make([]domain.JournalLine, 0, len(req.Lines))
	for i, input := range req.Lines {
		lines = append(lines, domain.JournalLine{
			ID:             s.genID.Generate(),
			JournalEntryID: entry.ID,
			AccountID:      input.AccountID,
			Debit:          input.Debit,
			Credit:         input.Credit,
			Description:    strings.TrimSpace(input.Description),
			LineOrder:      i + 1,
			CreatedAt:      now,
		})
	}
	if err := s.repo.InsertLines(ctx, tx, lines); err != nil {
		return nil, false, err
	}

	stored, err := s.recalculateTotals(ctx, tx, &entry)
	if err != nil {
		return nil, false, err
	}
	if err := domain.ValidateBalanced(stored); err != nil {
		return nil, false, err
	}
	entry.Lines = stored

	action := "journal_entry.create"
	if req.Post {
		action = "journal_entry.create_posted"
	}
	if err := s.audit(ctx, tx, action, actor, entry.ID, map[string]any{
		"entry_number": entry.EntryNumber,
		"source":       string(entry.Source),
		"total":        entry.TotalDebit.StringFixed(domain.AmountScale),
	}); err != nil {
		return nil, false, err
	}

	return &entry, true, nil
}

func (s *Service) ensureAccounts(ctx context.Context, tx *gorm.DB, lines []domain.LineInput) error {
	ids := make([]snowflake.ID, 0, len(lines))
	seen := map[snowflake.ID]bool{}
	for _, line := range lines {
		if !seen[line.AccountID] {
			seen[line.AccountID] = true
			ids = append(ids, line.AccountID)
		}
	}
	accounts, err := s.accountRepo.FindByIDs(ctx, tx, ids)
	if err != nil {
		return err
	}
	if len(accounts) != len(ids) {
		return domain.ErrAccountNotFound
	}
	return nil
}

// recalculateTotals derives the cached totals from the lines as stored.
func (s *Service) recalculateTotals(ctx context.Context, tx *gorm.DB, entry *domain.JournalEntry) ([]domain.JournalLine, error) {
	lines, err := s.repo.FindLines(ctx, tx, entry.ID)
	if err != nil {
		return nil, err
	}
	debit, credit := domain.Totals(lines)
	now := s.clock.Now()
	if err := s.repo.UpdateTotals(ctx, tx, entry.ID, debit, credit, now); err != nil {
		return nil, err
	}
	entry.TotalDebit = debit
	entry.TotalCredit = credit
	entry.UpdatedAt = now
	return lines, nil
}

func (s *Service) RecalculateTotals(ctx context.Context, id snowflake.ID) (*domain.JournalEntry, error) {
	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	var result *domain.JournalEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry, err := s.repo.FindEntryByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if entry == nil {
			return domain.ErrNotFound
		}
		lines, err := s.recalculateTotals(ctx, tx, entry)
		if err != nil {
			return err
		}
		entry.Lines = lines
		result = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) Post(ctx context.Context, id snowflake.ID, actor string) (*domain.JournalEntry, error) {
	if id == 0 {
		return nil, domain.ErrInvalidID
	}

	var posted *domain.JournalEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry, err := s.repo.FindEntryByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if entry == nil {
			return domain.ErrNotFound
		}
		if entry.Status != domain.StatusDraft {
			return domain.ErrNotDraft
		}

		lines, err := s.recalculateTotals(ctx, tx, entry)
		if err != nil {
			return err
		}
		if err := domain.ValidateBalanced(lines); err != nil {
			return err
		}

		// The year may have been created or closed since the draft was saved.
		fy, err := s.fiscalYearSvc.ResolveForPostingTx(ctx, tx, entry.EntryDate)
		if err != nil {
			return err
		}
		entry.FiscalYearID = nil
		if fy != nil {
			entry.FiscalYearID = &fy.ID
		}

		now := s.clock.Now()
		actor = strings.TrimSpace(actor)
		entry.Status = domain.StatusPosted
		entry.PostedBy = optionalString(actor)
		entry.PostedAt = &now
		entry.UpdatedAt = now
		ok, err := s.repo.MarkPosted(ctx, tx, entry)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrConcurrentUpdate
		}
		entry.Lines = lines
		posted = entry

		return s.audit(ctx, tx, "journal_entry.post", actor, entry.ID, map[string]any{
			"entry_number": entry.EntryNumber,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncPosted()
	return posted, nil
}

// Void cancels a draft. Posted entries are undone with Reverse so their
// history stays in the ledger.
func (s *Service) Void(ctx context.Context, id snowflake.ID, actor, reason string) (*domain.JournalEntry, error) {
	if id == 0 {
		return nil, domain.ErrInvalidID
	}

	var voided *domain.JournalEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry, err := s.repo.FindEntryByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if entry == nil {
			return domain.ErrNotFound
		}
		switch entry.Status {
		case domain.StatusPosted:
			return domain.ErrCannotVoidPosted
		case domain.StatusVoid:
			return domain.ErrAlreadyVoided
		}

		now := s.clock.Now()
		actor = strings.TrimSpace(actor)
		entry.Status = domain.StatusVoid
		entry.VoidedBy = optionalString(actor)
		entry.VoidedAt = &now
		entry.VoidReason = strings.TrimSpace(reason)
		entry.UpdatedAt = now
		ok, err := s.repo.MarkVoid(ctx, tx, entry)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrConcurrentUpdate
		}

		lines, err := s.repo.FindLines(ctx, tx, entry.ID)
		if err != nil {
			return err
		}
		entry.Lines = lines
		voided = entry

		return s.audit(ctx, tx, "journal_entry.void", actor, entry.ID, map[string]any{
			"entry_number": entry.EntryNumber,
			"reason":       entry.VoidReason,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncVoided()
	return voided, nil
}

// Reverse books a new posted entry with every line's sides swapped. The
// original entry and its lines are left untouched.
func (s *Service) Reverse(ctx context.Context, id snowflake.ID, actor string, date time.Time) (*domain.JournalEntry, error) {
	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	if date.IsZero() {
		date = dateutil.DayIn(s.clock.Now(), s.location)
	}

	var reversal *domain.JournalEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		original, err := s.repo.FindEntryByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if original == nil {
			return domain.ErrNotFound
		}
		if original.Status != domain.StatusPosted {
			return domain.ErrNotPosted
		}
		existing, err := s.repo.FindReversalOf(ctx, tx, id)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrAlreadyReversed
		}

		lines, err := s.repo.FindLines(ctx, tx, id)
		if err != nil {
			return err
		}
		inputs := make([]domain.LineInput, 0, len(lines))
		for _, line := range lines {
			inputs = append(inputs, domain.LineInput{
				AccountID:   line.AccountID,
				Debit:       line.Credit,
				Credit:      line.Debit,
				Description: line.Description,
			})
		}

		ref := domain.JournalEntryRef{ID: original.ID}
		entry, created, err := s.createTx(ctx, tx, domain.CreateEntryRequest{
			EntryDate:    date,
			Reference:    original.EntryNumber,
			Description:  "Reversal of " + original.EntryNumber,
			Source:       domain.SourceReversal,
			SourceRef:    ref,
			DedupeKey:    domain.DedupeKey(ref),
			Actor:        actor,
			ReversalOfID: &original.ID,
			Lines:        inputs,
			Post:         true,
		})
		if err != nil {
			return err
		}
		if !created {
			return domain.ErrAlreadyReversed
		}
		reversal = entry
		return nil
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrAlreadyReversed
		}
		return nil, err
	}

	s.metrics.IncEntryCreated(string(domain.SourceReversal))
	s.metrics.IncReversed()
	return reversal, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.JournalEntry, error) {
	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	entry, err := s.repo.FindEntryByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return s.withLines(ctx, s.db, entry)
}

func (s *Service) GetByNumber(ctx context.Context, number string) (*domain.JournalEntry, error) {
	number = strings.TrimSpace(number)
	if _, _, _, err := domain.ParseEntryNumber(number); err != nil {
		return nil, err
	}
	entry, err := s.repo.FindEntryByNumber(ctx, s.db, number)
	if err != nil {
		return nil, err
	}
	return s.withLines(ctx, s.db, entry)
}

func (s *Service) List(ctx context.Context, filter domain.ListEntryFilter) ([]domain.JournalEntry, error) {
	if !filter.From.IsZero() {
		filter.From = dateutil.Day(filter.From)
	}
	if !filter.To.IsZero() {
		filter.To = dateutil.Day(filter.To)
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, domain.ErrInvalidDateRange
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 500
	}
	return s.repo.ListEntries(ctx, s.db, filter)
}

func (s *Service) loadByDedupeKey(ctx context.Context, db *gorm.DB, key string) (*domain.JournalEntry, error) {
	entry, err := s.repo.FindEntryByDedupeKey(ctx, db, key)
	if err != nil || entry == nil {
		return nil, err
	}
	return s.withLines(ctx, db, entry)
}

func (s *Service) withLines(ctx context.Context, db *gorm.DB, entry *domain.JournalEntry) (*domain.JournalEntry, error) {
	if entry == nil {
		return nil, domain.ErrNotFound
	}
	lines, err := s.repo.FindLines(ctx, db, entry.ID)
	if err != nil {
		return nil, err
	}
	entry.Lines = lines
	return entry, nil
}

func (s *Service) audit(ctx context.Context, tx *gorm.DB, action, actor string, id snowflake.ID, metadata map[string]any) error {
	if s.auditSvc == nil {
		return nil
	}
	actorType := auditdomain.ActorTypeSystem
	if actor != "" {
		actorType = auditdomain.ActorTypeUser
	}
	return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
		ActorType:  actorType,
		ActorID:    actor,
		Action:     action,
		TargetType: "journal_entry",
		TargetID:   id.String(),
		Metadata:   metadata,
	})
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
