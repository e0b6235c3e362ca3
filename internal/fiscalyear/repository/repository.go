package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/posledger/internal/fiscalyear/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, fy *domain.FiscalYear) error {
	return db.WithContext(ctx).Create(fy).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.FiscalYear, error) {
	var fy domain.FiscalYear
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&fy).Error
	if err != nil {
		return nil, err
	}
	if fy.ID == 0 {
		return nil, nil
	}
	return &fy, nil
}

func (r *repo) FindByDate(ctx context.Context, db *gorm.DB, date time.Time) (*domain.FiscalYear, error) {
	var fy domain.FiscalYear
	err := db.WithContext(ctx).
		Where("start_date <= ? AND end_date >= ?", date, date).
		Order("start_date asc").
		Limit(1).
		Find(&fy).Error
	if err != nil {
		return nil, err
	}
	if fy.ID == 0 {
		return nil, nil
	}
	return &fy, nil
}

func (r *repo) FindOverlapping(ctx context.Context, db *gorm.DB, start, end time.Time) ([]domain.FiscalYear, error) {
	var years []domain.FiscalYear
	err := db.WithContext(ctx).
		Where("start_date <= ? AND end_date >= ?", end, start).
		Find(&years).Error
	if err != nil {
		return nil, err
	}
	return years, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.FiscalYear, error) {
	var years []domain.FiscalYear
	if err := db.WithContext(ctx).Order("start_date asc").Find(&years).Error; err != nil {
		return nil, err
	}
	return years, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, fy *domain.FiscalYear) error {
	return db.WithContext(ctx).Exec(
		`UPDATE fiscal_years SET status = ?, closed_at = ?, closed_by = ?, updated_at = ? WHERE id = ?`,
		fy.Status,
		fy.ClosedAt,
		fy.ClosedBy,
		fy.UpdatedAt,
		fy.ID,
	).Error
}

func (r *repo) CountDraftEntries(ctx context.Context, db *gorm.DB, start, end time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Table("journal_entries").
		Where("status = ? AND entry_date >= ? AND entry_date <= ?", "draft", start, end).
		Count(&count).Error
	return count, err
}
