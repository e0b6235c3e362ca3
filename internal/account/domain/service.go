package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type CreateAccountRequest struct {
	Code        string
	Name        string
	NameLocal   string
	Type        AccountType
	Subtype     string
	Description string
	IsDefault   bool
}

type UpdateAccountRequest struct {
	Name        *string
	NameLocal   *string
	Subtype     *string
	Description *string
}

type ListAccountFilter struct {
	Type    AccountType
	Subtype string
}

type Service interface {
	// FindBySubtype returns the canonical account for subtype, or nil when none exists.
	// Several matches without a default yield ErrAmbiguousSubtype.
	FindBySubtype(ctx context.Context, subtype string) (*Account, error)
	FindAllBySubtype(ctx context.Context, subtype string) ([]Account, error)
	Create(ctx context.Context, req CreateAccountRequest) (Account, error)
	GetByID(ctx context.Context, id snowflake.ID) (Account, error)
	GetByCode(ctx context.Context, code string) (Account, error)
	List(ctx context.Context, filter ListAccountFilter) ([]Account, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateAccountRequest) (Account, error)
	SetDefault(ctx context.Context, id snowflake.ID) (Account, error)
	Delete(ctx context.Context, id snowflake.ID) error
	SeedDefaultAccounts(ctx context.Context) (int, error)
}

var (
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidCode      = errors.New("invalid_code")
	ErrInvalidName      = errors.New("invalid_name")
	ErrInvalidType      = errors.New("invalid_type")
	ErrInvalidSubtype   = errors.New("invalid_subtype")
	ErrCodeTypeMismatch = errors.New("code_type_mismatch")
	ErrDuplicateCode    = errors.New("duplicate_code")
	ErrNotFound         = errors.New("not_found")
	ErrAmbiguousSubtype = errors.New("ambiguous_subtype")
	ErrSystemAccount    = errors.New("system_account")
	ErrAccountInUse     = errors.New("account_in_use")
)
