package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/posledger/internal/account/domain"
	auditdomain "github.com/smallbiznis/posledger/internal/audit/domain"
	"github.com/smallbiznis/posledger/internal/clock"
	"github.com/smallbiznis/posledger/pkg/db"
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
	Repo     domain.Repository
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("account.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) FindBySubtype(ctx context.Context, subtype string) (*domain.Account, error) {
	accounts, err := s.FindAllBySubtype(ctx, subtype)
	if err != nil {
		return nil, err
	}
	return pickCanonical(accounts)
}

func (s *Service) FindAllBySubtype(ctx context.Context, subtype string) ([]domain.Account, error) {
	subtype = normalizeSubtype(subtype)
	if subtype == "" {
		return nil, domain.ErrInvalidSubtype
	}
	return s.repo.FindBySubtype(ctx, s.db, subtype)
}

func pickCanonical(accounts []domain.Account) (*domain.Account, error) {
	switch len(accounts) {
	case 0:
		return nil, nil
	case 1:
		return &accounts[0], nil
	}
	// Repository orders the default first.
	if accounts[0].IsDefault {
		return &accounts[0], nil
	}
	return nil, domain.ErrAmbiguousSubtype
}

func (s *Service) Create(ctx context.Context, req domain.CreateAccountRequest) (domain.Account, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return domain.Account{}, domain.ErrInvalidCode
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Account{}, domain.ErrInvalidName
	}
	if !req.Type.Valid() {
		return domain.Account{}, domain.ErrInvalidType
	}
	if code[0] != req.Type.CodePrefix() {
		return domain.Account{}, domain.ErrCodeTypeMismatch
	}
	subtype := normalizeSubtype(req.Subtype)
	if subtype == "" {
		return domain.Account{}, domain.ErrInvalidSubtype
	}

	now := s.clock.Now()
	account := domain.Account{
		ID:          s.genID.Generate(),
		Code:        code,
		Name:        name,
		NameLocal:   strings.TrimSpace(req.NameLocal),
		Type:        req.Type,
		Subtype:     subtype,
		IsDefault:   req.IsDefault,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByCode(ctx, tx, code)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrDuplicateCode
		}
		if account.IsDefault {
			if err := s.repo.ClearDefault(ctx, tx, subtype); err != nil {
				return err
			}
		}
		if err := s.repo.Insert(ctx, tx, &account); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicateCode
			}
			return err
		}
		return s.audit(ctx, tx, "account.create", account.ID, map[string]any{
			"code":    account.Code,
			"subtype": account.Subtype,
		})
	})
	if err != nil {
		return domain.Account{}, err
	}
	return account, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Account, error) {
	if id == 0 {
		return domain.Account{}, domain.ErrInvalidID
	}
	account, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Account{}, err
	}
	if account == nil {
		return domain.Account{}, domain.ErrNotFound
	}
	return *account, nil
}

func (s *Service) GetByCode(ctx context.Context, code string) (domain.Account, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Account{}, domain.ErrInvalidCode
	}
	account, err := s.repo.FindByCode(ctx, s.db, code)
	if err != nil {
		return domain.Account{}, err
	}
	if account == nil {
		return domain.Account{}, domain.ErrNotFound
	}
	return *account, nil
}

func (s *Service) List(ctx context.Context, filter domain.ListAccountFilter) ([]domain.Account, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, domain.ErrInvalidType
	}
	filter.Subtype = normalizeSubtype(filter.Subtype)
	return s.repo.List(ctx, s.db, filter)
}

func (s *Service) Update(ctx context.Context, id snowflake.ID, req domain.UpdateAccountRequest) (domain.Account, error) {
	if id == 0 {
		return domain.Account{}, domain.ErrInvalidID
	}

	var updated domain.Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if account == nil {
			return domain.ErrNotFound
		}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return domain.ErrInvalidName
			}
			account.Name = name
		}
		if req.NameLocal != nil {
			account.NameLocal = strings.TrimSpace(*req.NameLocal)
		}
		if req.Description != nil {
			account.Description = strings.TrimSpace(*req.Description)
		}
		if req.Subtype != nil {
			subtype := normalizeSubtype(*req.Subtype)
			if subtype == "" {
				return domain.ErrInvalidSubtype
			}
			if subtype != account.Subtype {
				// The builder resolves system accounts by subtype.
				if account.IsSystem {
					return domain.ErrSystemAccount
				}
				account.Subtype = subtype
				account.IsDefault = false
			}
		}
		account.UpdatedAt = s.clock.Now()

		if err := s.repo.Update(ctx, tx, account); err != nil {
			return err
		}
		updated = *account
		return nil
	})
	if err != nil {
		return domain.Account{}, err
	}
	return updated, nil
}

// SetDefault makes id the canonical account of its subtype, clearing any previous default.
func (s *Service) SetDefault(ctx context.Context, id snowflake.ID) (domain.Account, error) {
	if id == 0 {
		return domain.Account{}, domain.ErrInvalidID
	}

	var updated domain.Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if account == nil {
			return domain.ErrNotFound
		}
		if err := s.repo.ClearDefault(ctx, tx, account.Subtype); err != nil {
			return err
		}
		account.IsDefault = true
		account.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, tx, account); err != nil {
			return err
		}
		updated = *account
		return s.audit(ctx, tx, "account.set_default", account.ID, map[string]any{
			"subtype": account.Subtype,
		})
	})
	if err != nil {
		return domain.Account{}, err
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	if id == 0 {
		return domain.ErrInvalidID
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if account == nil {
			return domain.ErrNotFound
		}
		if account.IsSystem {
			return domain.ErrSystemAccount
		}
		refs, err := s.repo.CountReferences(ctx, tx, id)
		if err != nil {
			return err
		}
		if refs > 0 {
			return domain.ErrAccountInUse
		}
		if err := s.repo.Delete(ctx, tx, id); err != nil {
			return err
		}
		return s.audit(ctx, tx, "account.delete", id, map[string]any{
			"code": account.Code,
		})
	})
}

// SeedDefaultAccounts installs the standard chart. Codes that already exist are left alone,
// so calling it repeatedly never duplicates accounts.
func (s *Service) SeedDefaultAccounts(ctx context.Context) (int, error) {
	inserted := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		for _, def := range domain.DefaultChart {
			existing, err := s.repo.FindBySubtype(ctx, tx, def.Subtype)
			if err != nil {
				return err
			}
			hasDefault := len(existing) > 0 && existing[0].IsDefault

			ok, err := s.repo.InsertIgnoreConflict(ctx, tx, &domain.Account{
				ID:        s.genID.Generate(),
				Code:      def.Code,
				Name:      def.Name,
				NameLocal: def.NameLocal,
				Type:      def.Type,
				Subtype:   def.Subtype,
				IsDefault: !hasDefault,
				IsSystem:  true,
				CreatedAt: now,
				UpdatedAt: now,
			})
			if err != nil {
				return err
			}
			if ok {
				inserted++
			}
		}
		if inserted == 0 {
			return nil
		}
		return s.audit(ctx, tx, "account.seed", 0, map[string]any{
			"inserted": inserted,
		})
	})
	if err != nil {
		return 0, err
	}

	s.log.Info("default chart of accounts seeded", zap.Int("inserted", inserted))
	return inserted, nil
}

func (s *Service) audit(ctx context.Context, tx *gorm.DB, action string, id snowflake.ID, metadata map[string]any) error {
	if s.auditSvc == nil {
		return nil
	}
	targetID := ""
	if id != 0 {
		targetID = id.String()
	}
	return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
		Action:     action,
		TargetType: "account",
		TargetID:   targetID,
		Metadata:   metadata,
	})
}

func normalizeSubtype(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
