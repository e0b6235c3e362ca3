package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, account *Account) error
	// InsertIgnoreConflict inserts unless an account with the same code exists.
	InsertIgnoreConflict(ctx context.Context, db *gorm.DB, account *Account) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Account, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]Account, error)
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Account, error)
	// FindBySubtype returns matches with the default account first.
	FindBySubtype(ctx context.Context, db *gorm.DB, subtype string) ([]Account, error)
	List(ctx context.Context, db *gorm.DB, filter ListAccountFilter) ([]Account, error)
	Update(ctx context.Context, db *gorm.DB, account *Account) error
	ClearDefault(ctx context.Context, db *gorm.DB, subtype string) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	CountReferences(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
}
