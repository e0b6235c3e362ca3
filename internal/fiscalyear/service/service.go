package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/posledger/internal/audit/domain"
	"github.com/smallbiznis/posledger/internal/clock"
	"github.com/smallbiznis/posledger/internal/config"
	"github.com/smallbiznis/posledger/internal/fiscalyear/domain"
	"github.com/smallbiznis/posledger/pkg/dateutil"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Config   config.Config
	Repo     domain.Repository
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db                *gorm.DB
	log               *zap.Logger
	genID             *snowflake.Node
	clock             clock.Clock
	repo              domain.Repository
	auditSvc          auditdomain.Service
	requireFiscalYear bool
}

func New(p Params) domain.Service {
	return &Service{
		db:                p.DB,
		log:               p.Log.Named("fiscalyear.service"),
		genID:             p.GenID,
		clock:             p.Clock,
		repo:              p.Repo,
		auditSvc:          p.AuditSvc,
		requireFiscalYear: p.Config.Accounting.RequireFiscalYear,
	}
}

func (s *Service) FindByDate(ctx context.Context, date time.Time) (*domain.FiscalYear, error) {
	return s.repo.FindByDate(ctx, s.db, dateutil.Day(date))
}

func (s *Service) ResolveForPosting(ctx context.Context, date time.Time) (*domain.FiscalYear, error) {
	return s.ResolveForPostingTx(ctx, s.db, date)
}

func (s *Service) ResolveForPostingTx(ctx context.Context, tx *gorm.DB, date time.Time) (*domain.FiscalYear, error) {
	fy, err := s.repo.FindByDate(ctx, tx, dateutil.Day(date))
	if err != nil {
		return nil, err
	}
	if fy == nil {
		if s.requireFiscalYear {
			return nil, domain.ErrNoFiscalYear
		}
		return nil, nil
	}
	if fy.IsClosed() {
		return nil, domain.ErrFiscalYearClosed
	}
	return fy, nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateFiscalYearRequest) (domain.FiscalYear, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.FiscalYear{}, domain.ErrInvalidName
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		return domain.FiscalYear{}, domain.ErrInvalidDateRange
	}
	start := dateutil.Day(req.StartDate)
	end := dateutil.Day(req.EndDate)
	if end.Before(start) {
		return domain.FiscalYear{}, domain.ErrInvalidDateRange
	}

	now := s.clock.Now()
	fy := domain.FiscalYear{
		ID:        s.genID.Generate(),
		Name:      name,
		StartDate: start,
		EndDate:   end,
		Status:    domain.StatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		overlapping, err := s.repo.FindOverlapping(ctx, tx, start, end)
		if err != nil {
			return err
		}
		if len(overlapping) > 0 {
			return domain.ErrOverlappingFiscalYear
		}
		if err := s.repo.Insert(ctx, tx, &fy); err != nil {
			return err
		}
		return s.audit(ctx, tx, "fiscal_year.create", "", fy.ID, map[string]any{
			"start_date": start.Format(time.DateOnly),
			"end_date":   end.Format(time.DateOnly),
		})
	})
	if err != nil {
		return domain.FiscalYear{}, err
	}
	return fy, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.FiscalYear, error) {
	if id == 0 {
		return domain.FiscalYear{}, domain.ErrInvalidID
	}
	fy, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.FiscalYear{}, err
	}
	if fy == nil {
		return domain.FiscalYear{}, domain.ErrNotFound
	}
	return *fy, nil
}

func (s *Service) List(ctx context.Context) ([]domain.FiscalYear, error) {
	return s.repo.List(ctx, s.db)
}

// Close stops further postings dated inside the year. Drafts must be posted or voided first.
func (s *Service) Close(ctx context.Context, id snowflake.ID, actor string) (domain.FiscalYear, error) {
	if id == 0 {
		return domain.FiscalYear{}, domain.ErrInvalidID
	}

	var closed domain.FiscalYear
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fy, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if fy == nil {
			return domain.ErrNotFound
		}
		if fy.IsClosed() {
			return domain.ErrAlreadyClosed
		}
		drafts, err := s.repo.CountDraftEntries(ctx, tx, fy.StartDate, fy.EndDate)
		if err != nil {
			return err
		}
		if drafts > 0 {
			return domain.ErrHasDraftEntries
		}

		now := s.clock.Now()
		fy.Status = domain.StatusClosed
		fy.ClosedAt = &now
		fy.ClosedBy = optionalString(actor)
		fy.UpdatedAt = now
		if err := s.repo.UpdateStatus(ctx, tx, fy); err != nil {
			return err
		}
		closed = *fy
		return s.audit(ctx, tx, "fiscal_year.close", actor, fy.ID, nil)
	})
	if err != nil {
		return domain.FiscalYear{}, err
	}

	s.log.Info("fiscal year closed", zap.String("fiscal_year_id", closed.ID.String()), zap.String("actor", actor))
	return closed, nil
}

func (s *Service) Reopen(ctx context.Context, id snowflake.ID, actor string) (domain.FiscalYear, error) {
	if id == 0 {
		return domain.FiscalYear{}, domain.ErrInvalidID
	}

	var reopened domain.FiscalYear
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fy, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if fy == nil {
			return domain.ErrNotFound
		}
		if !fy.IsClosed() {
			return domain.ErrNotClosed
		}
		fy.Status = domain.StatusOpen
		fy.ClosedAt = nil
		fy.ClosedBy = nil
		fy.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateStatus(ctx, tx, fy); err != nil {
			return err
		}
		reopened = *fy
		return s.audit(ctx, tx, "fiscal_year.reopen", actor, fy.ID, nil)
	})
	if err != nil {
		return domain.FiscalYear{}, err
	}
	return reopened, nil
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
		TargetType: "fiscal_year",
		TargetID:   id.String(),
		Metadata:   metadata,
	})
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
