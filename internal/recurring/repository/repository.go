package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/posledger/internal/recurring/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertTemplate(ctx context.Context, db *gorm.DB, template *domain.RecurringTemplate) error {
	return db.WithContext(ctx).Create(template).Error
}

func (r *repo) InsertLines(ctx context.Context, db *gorm.DB, lines []domain.RecurringTemplateLine) error {
	if len(lines) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&lines).Error
}

func (r *repo) FindTemplateByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.RecurringTemplate, error) {
	var template domain.RecurringTemplate
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&template).Error
	if err != nil {
		return nil, err
	}
	if template.ID == 0 {
		return nil, nil
	}
	return &template, nil
}

func (r *repo) ListTemplates(ctx context.Context, db *gorm.DB, activeOnly bool) ([]domain.RecurringTemplate, error) {
	var templates []domain.RecurringTemplate
	stmt := db.WithContext(ctx).Model(&domain.RecurringTemplate{})
	if activeOnly {
		stmt = stmt.Where("is_active = ?", true)
	}
	if err := stmt.Order("next_run_date asc, id asc").Find(&templates).Error; err != nil {
		return nil, err
	}
	return templates, nil
}

func (r *repo) FindDue(ctx context.Context, db *gorm.DB, day time.Time, limit int) ([]domain.RecurringTemplate, error) {
	var templates []domain.RecurringTemplate
	err := db.WithContext(ctx).
		Where("is_active = ? AND next_run_date <= ?", true, day).
		Order("next_run_date asc, id asc").
		Limit(limit).
		Find(&templates).Error
	if err != nil {
		return nil, err
	}
	return templates, nil
}

func (r *repo) FindLines(ctx context.Context, db *gorm.DB, templateID snowflake.ID) ([]domain.RecurringTemplateLine, error) {
	var lines []domain.RecurringTemplateLine
	err := db.WithContext(ctx).
		Where("template_id = ?", templateID).
		Order("line_order asc").
		Find(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *repo) Advance(ctx context.Context, db *gorm.DB, id snowflake.ID, occurrence, next time.Time, active bool, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE recurring_templates
		 SET last_run_date = ?, next_run_date = ?, is_active = ?, updated_at = ?
		 WHERE id = ? AND next_run_date = ? AND is_active = ?`,
		occurrence,
		next,
		active,
		now,
		id,
		occurrence,
		true,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE recurring_templates SET is_active = ?, updated_at = ? WHERE id = ?`,
		active,
		now,
		id,
	).Error
}

func (r *repo) InsertRun(ctx context.Context, db *gorm.DB, run *domain.RecurringRun) (bool, error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "template_id"}, {Name: "occurrence_date"}},
			DoNothing: true,
		}).
		Create(run)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) ListRuns(ctx context.Context, db *gorm.DB, templateID snowflake.ID) ([]domain.RecurringRun, error) {
	var runs []domain.RecurringRun
	err := db.WithContext(ctx).
		Where("template_id = ?", templateID).
		Order("occurrence_date asc").
		Find(&runs).Error
	if err != nil {
		return nil, err
	}
	return runs, nil
}
