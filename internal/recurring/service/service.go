package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	accountdomain "github.com/smallbiznis/posledger/internal/account/domain"
	auditdomain "github.com/smallbiznis/posledger/internal/audit/domain"
	"github.com/smallbiznis/posledger/internal/clock"
	"github.com/smallbiznis/posledger/internal/config"
	journaldomain "github.com/smallbiznis/posledger/internal/journal/domain"
	"github.com/smallbiznis/posledger/internal/recurring/domain"
	"github.com/smallbiznis/posledger/pkg/dateutil"
	"github.com/smallbiznis/posledger/pkg/log/ctxlogger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const dueBatchSize = 500

type Params struct {
	fx.In

	DB               *gorm.DB
	Log              *zap.Logger
	GenID            *snowflake.Node
	Clock            clock.Clock
	Config           config.Config
	Repo             domain.Repository
	AccountRepo      accountdomain.Repository
	JournalSvc       journaldomain.Service
	AccountingConfig *config.AccountingConfigHolder `optional:"true"`
	AuditSvc         auditdomain.Service            `optional:"true"`
}

type Service struct {
	db               *gorm.DB
	log              *zap.Logger
	genID            *snowflake.Node
	clock            clock.Clock
	enabled          bool
	location         *time.Location
	repo             domain.Repository
	accountRepo      accountdomain.Repository
	journalSvc       journaldomain.Service
	accountingConfig *config.AccountingConfigHolder
	auditSvc         auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:               p.DB,
		log:              p.Log.Named("recurring.service"),
		genID:            p.GenID,
		clock:            p.Clock,
		enabled:          p.Config.Accounting.Enabled,
		location:         p.Config.Accounting.Location,
		repo:             p.Repo,
		accountRepo:      p.AccountRepo,
		journalSvc:       p.JournalSvc,
		accountingConfig: p.AccountingConfig,
		auditSvc:         p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateTemplateRequest) (domain.RecurringTemplate, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.RecurringTemplate{}, domain.ErrInvalidName
	}
	cadence := domain.Cadence(strings.ToLower(strings.TrimSpace(string(req.Cadence))))
	if !cadence.Valid() {
		return domain.RecurringTemplate{}, domain.ErrInvalidCadence
	}
	if req.StartDate.IsZero() {
		return domain.RecurringTemplate{}, domain.ErrInvalidStartDate
	}
	start := dateutil.Day(req.StartDate)
	var end *time.Time
	if req.EndDate != nil {
		day := dateutil.Day(*req.EndDate)
		if day.Before(start) {
			return domain.RecurringTemplate{}, domain.ErrInvalidEndDate
		}
		end = &day
	}

	inputs := make([]journaldomain.LineInput, 0, len(req.Lines))
	for _, line := range req.Lines {
		inputs = append(inputs, journaldomain.LineInput{AccountID: line.AccountID, Debit: line.Debit, Credit: line.Credit})
	}
	if err := journaldomain.ValidateLineInputs(inputs); err != nil {
		return domain.RecurringTemplate{}, err
	}

	now := s.clock.Now()
	template := domain.RecurringTemplate{
		ID:          s.genID.Generate(),
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Cadence:     cadence,
		IsActive:    true,
		StartDate:   start,
		NextRunDate: start,
		EndDate:     end,
		CreatedBy:   strings.TrimSpace(req.Actor),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	lines := make([]domain.RecurringTemplateLine, 0, len(req.Lines))
	for i, line := range req.Lines {
		lines = append(lines, domain.RecurringTemplateLine{
			ID:          s.genID.Generate(),
			TemplateID:  template.ID,
			AccountID:   line.AccountID,
			Debit:       zeroIfUnset(line.Debit),
			Credit:      zeroIfUnset(line.Credit),
			Description: strings.TrimSpace(line.Description),
			LineOrder:   i + 1,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureAccounts(ctx, tx, lines); err != nil {
			return err
		}
		if err := s.repo.InsertTemplate(ctx, tx, &template); err != nil {
			return err
		}
		if err := s.repo.InsertLines(ctx, tx, lines); err != nil {
			return err
		}
		return s.audit(ctx, tx, "recurring_template.create", template.CreatedBy, template.ID, map[string]any{
			"name":    template.Name,
			"cadence": string(template.Cadence),
		})
	})
	if err != nil {
		return domain.RecurringTemplate{}, err
	}
	template.Lines = lines
	return template, nil
}

func (s *Service) Activate(ctx context.Context, id snowflake.ID) (domain.RecurringTemplate, error) {
	return s.setActive(ctx, id, true)
}

func (s *Service) Deactivate(ctx context.Context, id snowflake.ID) (domain.RecurringTemplate, error) {
	return s.setActive(ctx, id, false)
}

func (s *Service) setActive(ctx context.Context, id snowflake.ID, active bool) (domain.RecurringTemplate, error) {
	if id == 0 {
		return domain.RecurringTemplate{}, domain.ErrInvalidID
	}
	var result domain.RecurringTemplate
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		template, err := s.repo.FindTemplateByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if template == nil {
			return domain.ErrNotFound
		}
		if active && template.Ended(template.NextRunDate) {
			return domain.ErrEnded
		}
		if template.IsActive != active {
			now := s.clock.Now()
			if err := s.repo.SetActive(ctx, tx, id, active, now); err != nil {
				return err
			}
			template.IsActive = active
			template.UpdatedAt = now

			action := "recurring_template.deactivate"
			if active {
				action = "recurring_template.activate"
			}
			if err := s.audit(ctx, tx, action, "", id, nil); err != nil {
				return err
			}
		}
		result = *template
		return nil
	})
	if err != nil {
		return domain.RecurringTemplate{}, err
	}
	return result, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.RecurringTemplate, error) {
	if id == 0 {
		return domain.RecurringTemplate{}, domain.ErrInvalidID
	}
	template, err := s.repo.FindTemplateByID(ctx, s.db, id)
	if err != nil {
		return domain.RecurringTemplate{}, err
	}
	if template == nil {
		return domain.RecurringTemplate{}, domain.ErrNotFound
	}
	lines, err := s.repo.FindLines(ctx, s.db, id)
	if err != nil {
		return domain.RecurringTemplate{}, err
	}
	template.Lines = lines
	return *template, nil
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]domain.RecurringTemplate, error) {
	return s.repo.ListTemplates(ctx, s.db, activeOnly)
}

func (s *Service) Runs(ctx context.Context, id snowflake.ID) ([]domain.RecurringRun, error) {
	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	return s.repo.ListRuns(ctx, s.db, id)
}

// RunDue books every pending occurrence up to the business date of now. With
// accounting disabled it books nothing.
func (s *Service) RunDue(ctx context.Context, now time.Time) (domain.RunResult, error) {
	var result domain.RunResult
	if !s.enabled {
		s.log.Debug("accounting disabled, recurring run skipped")
		return result, nil
	}
	if now.IsZero() {
		now = s.clock.Now()
	}
	today := dateutil.DayIn(now, s.location)

	templates, err := s.repo.FindDue(ctx, s.db, today, dueBatchSize)
	if err != nil {
		return result, err
	}
	result.Templates = len(templates)

	maxCatchUp := s.accountingConfig.Get().Recurring.MaxCatchUp
	log := ctxlogger.WithContext(ctx, s.log)
	var runErr error
	for i := range templates {
		if ctx.Err() != nil {
			return result, errors.Join(runErr, ctx.Err())
		}
		template := templates[i]
		for fired := 0; fired < maxCatchUp && !template.NextRunDate.After(today); fired++ {
			if template.Ended(template.NextRunDate) {
				if err := s.repo.SetActive(ctx, s.db, template.ID, false, s.clock.Now()); err != nil {
					result.Failed++
					runErr = errors.Join(runErr, err)
				} else {
					result.Deactivated++
				}
				break
			}

			occurrence := template.NextRunDate
			entry, next, err := s.fire(ctx, template, domain.TriggerSchedule, template.CreatedBy)
			if errors.Is(err, domain.ErrOccurrenceTaken) {
				result.Skipped++
				break
			}
			if err != nil {
				result.Failed++
				runErr = errors.Join(runErr, fmt.Errorf("template %s occurrence %s: %w", template.ID, occurrence.Format(time.DateOnly), err))
				log.Error("recurring occurrence failed",
					zap.String("template_id", template.ID.String()),
					zap.Time("occurrence", occurrence),
					zap.Error(err),
				)
				break
			}
			result.Created++
			log.Info("recurring entry created",
				zap.String("template_id", template.ID.String()),
				zap.String("entry_number", entry.EntryNumber),
				zap.Time("occurrence", occurrence),
			)

			template.NextRunDate = next
			if template.Ended(next) {
				result.Deactivated++
				break
			}
		}
	}
	return result, runErr
}

func (s *Service) RunNow(ctx context.Context, id snowflake.ID, actor string) (*journaldomain.JournalEntry, error) {
	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	if !s.enabled {
		return nil, nil
	}
	template, err := s.repo.FindTemplateByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if template == nil {
		return nil, domain.ErrNotFound
	}
	if !template.IsActive {
		return nil, domain.ErrInactive
	}
	if template.Ended(template.NextRunDate) {
		return nil, domain.ErrEnded
	}
	entry, _, err := s.fire(ctx, *template, domain.TriggerManual, actor)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// fire books the template's pending occurrence and advances it in one
// transaction. Losing the advance race or finding the occurrence already
// recorded yields ErrOccurrenceTaken with nothing written.
func (s *Service) fire(ctx context.Context, template domain.RecurringTemplate, trigger domain.Trigger, actor string) (*journaldomain.JournalEntry, time.Time, error) {
	occurrence := dateutil.Day(template.NextRunDate)
	next := template.Cadence.Next(occurrence, template.StartDate)
	stillActive := !template.Ended(next)
	actor = strings.TrimSpace(actor)

	var entry *journaldomain.JournalEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		advanced, err := s.repo.Advance(ctx, tx, template.ID, occurrence, next, stillActive, now)
		if err != nil {
			return err
		}
		if !advanced {
			return domain.ErrOccurrenceTaken
		}

		lines, err := s.repo.FindLines(ctx, tx, template.ID)
		if err != nil {
			return err
		}
		inputs := make([]journaldomain.LineInput, 0, len(lines))
		for _, line := range lines {
			inputs = append(inputs, journaldomain.LineInput{
				AccountID:   line.AccountID,
				Debit:       line.Debit,
				Credit:      line.Credit,
				Description: line.Description,
			})
		}

		ref := journaldomain.RecurringTemplateRef{ID: template.ID}
		entry, err = s.journalSvc.CreateTx(ctx, tx, journaldomain.CreateEntryRequest{
			EntryDate:   occurrence,
			Reference:   template.Name,
			Description: firstNonEmpty(template.Description, template.Name),
			Source:      journaldomain.SourceRecurring,
			SourceRef:   ref,
			DedupeKey:   fmt.Sprintf("%s:%s", journaldomain.DedupeKey(ref), occurrence.Format(time.DateOnly)),
			Actor:       actor,
			Lines:       inputs,
			Post:        true,
		})
		if err != nil {
			return err
		}

		inserted, err := s.repo.InsertRun(ctx, tx, &domain.RecurringRun{
			ID:             s.genID.Generate(),
			TemplateID:     template.ID,
			OccurrenceDate: occurrence,
			JournalEntryID: entry.ID,
			Trigger:        trigger,
			CreatedAt:      now,
		})
		if err != nil {
			return err
		}
		if !inserted {
			return domain.ErrOccurrenceTaken
		}

		return s.audit(ctx, tx, "recurring_template.run", actor, template.ID, map[string]any{
			"occurrence":   occurrence.Format(time.DateOnly),
			"trigger":      string(trigger),
			"entry_number": entry.EntryNumber,
		})
	})
	if err != nil {
		return nil, time.Time{}, err
	}
	return entry, next, nil
}

func (s *Service) ensureAccounts(ctx context.Context, tx *gorm.DB, lines []domain.RecurringTemplateLine) error {
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

func (s *Service) audit(ctx context.Context, tx *gorm.DB, action, actor string, id snowflake.ID, metadata map[string]any) error {
	if s.auditSvc == nil {
		return nil
	}
	actorType := auditdomain.ActorTypeScheduler
	if actor != "" {
		actorType = auditdomain.ActorTypeUser
	}
	return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
		ActorType:  actorType,
		ActorID:    actor,
		Action:     action,
		TargetType: "recurring_template",
		TargetID:   id.String(),
		Metadata:   metadata,
	})
}

func zeroIfUnset(value decimal.Decimal) decimal.Decimal {
	if value.IsZero() {
		return decimal.Zero
	}
	return value
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
