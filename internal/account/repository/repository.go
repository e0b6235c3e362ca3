package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/posledger/internal/account/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, account *domain.Account) error {
	return db.WithContext(ctx).Create(account).Error
}

func (r *repo) InsertIgnoreConflict(ctx context.Context, db *gorm.DB, account *domain.Account) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoNothing: true,
		}).
		Create(account)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Account, error) {
	var account domain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT id, code, name, name_local, type, subtype, is_default, is_system, description, created_at, updated_at
		 FROM accounts WHERE id = ?`,
		id,
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]domain.Account, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var accounts []domain.Account
	err := db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Account, error) {
	var account domain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT id, code, name, name_local, type, subtype, is_default, is_system, description, created_at, updated_at
		 FROM accounts WHERE code = ?`,
		code,
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

func (r *repo) FindBySubtype(ctx context.Context, db *gorm.DB, subtype string) ([]domain.Account, error) {
	var accounts []domain.Account
	err := db.WithContext(ctx).
		Where("subtype = ?", subtype).
		Order("is_default desc, code asc").
		Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListAccountFilter) ([]domain.Account, error) {
	var accounts []domain.Account
	stmt := db.WithContext(ctx).Model(&domain.Account{})
	if filter.Type != "" {
		stmt = stmt.Where("type = ?", filter.Type)
	}
	if subtype := strings.TrimSpace(filter.Subtype); subtype != "" {
		stmt = stmt.Where("subtype = ?", subtype)
	}
	if err := stmt.Order("code asc").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, account *domain.Account) error {
	return db.WithContext(ctx).Exec(
		`UPDATE accounts
		 SET name = ?, name_local = ?, subtype = ?, description = ?, is_default = ?, updated_at = ?
		 WHERE id = ?`,
		account.Name,
		account.NameLocal,
		account.Subtype,
		account.Description,
		account.IsDefault,
		account.UpdatedAt,
		account.ID,
	).Error
}

func (r *repo) ClearDefault(ctx context.Context, db *gorm.DB, subtype string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE accounts SET is_default = ? WHERE subtype = ? AND is_default = ?`,
		false,
		subtype,
		true,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM accounts WHERE id = ?`, id).Error
}

func (r *repo) CountReferences(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	var lines, templateLines int64
	if err := db.WithContext(ctx).Table("journal_lines").Where("account_id = ?", id).Count(&lines).Error; err != nil {
		return 0, err
	}
	if err := db.WithContext(ctx).Table("recurring_template_lines").Where("account_id = ?", id).Count(&templateLines).Error; err != nil {
		return 0, err
	}
	return lines + templateLines, nil
}
