package repository

import (
	"context"
	"errors"
	"teacher_connect_backend/internal/model"
	"teacher_connect_backend/internal/util"

	"gorm.io/gorm"
)

type AssessmentRepository struct {
	DB *gorm.DB
}

func NewAssessmentRepository(db *gorm.DB) *AssessmentRepository {
	return &AssessmentRepository{DB: db}
}

type AssessmentFilter struct {
	Subject       string
	Grade         string
	TeacherID     uint
	PublishedOnly bool
}

// CreateAssessment 题目随测试一起写入（gorm 在同一事务内创建关联）
func (r *AssessmentRepository) CreateAssessment(ctx context.Context, a *model.Assessment) error {
	return r.DB.WithContext(ctx).Create(a).Error
}

func (r *AssessmentRepository) FindAssessmentByID(ctx context.Context, id string) (*model.Assessment, error) {
	var a model.Assessment
	err := r.DB.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order asc, created_at asc")
		}).
		First(&a, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrAssessmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// FindAssessmentsByIDs 不加载题目
func (r *AssessmentRepository) FindAssessmentsByIDs(ctx context.Context, ids []string) ([]model.Assessment, error) {
	var as []model.Assessment
	if len(ids) == 0 {
		return as, nil
	}
	err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&as).Error
	return as, err
}

func (r *AssessmentRepository) ListAssessments(ctx context.Context, filter AssessmentFilter, page, limit int) ([]model.Assessment, int64, error) {
	var as []model.Assessment
	var total int64

	query := r.DB.WithContext(ctx).Model(&model.Assessment{})
	if filter.Subject != "" {
		query = query.Where("subject = ?", filter.Subject)
	}
	if filter.Grade != "" {
		query = query.Where("grade = ?", filter.Grade)
	}
	if filter.TeacherID > 0 {
		query = query.Where("teacher_id = ?", filter.TeacherID)
	}
	if filter.PublishedOnly {
		query = query.Where("is_published = ?", true)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&as).Error
	return as, total, err
}

type assessmentStats struct {
	Count   int64
	Average float64
}

// RecomputeStats 重新统计已完成的作答次数和平均得分率
func (r *AssessmentRepository) RecomputeStats(ctx context.Context, assessmentID string) error {
	var stats assessmentStats
	err := r.DB.WithContext(ctx).Model(&model.AssessmentAttempt{}).
		Select("COUNT(*) AS count, COALESCE(AVG(percentage), 0) AS average").
		Where("assessment_id = ? AND status = ?", assessmentID, model.AttemptCompleted).
		Scan(&stats).Error
	if err != nil {
		return err
	}

	return r.DB.WithContext(ctx).Model(&model.Assessment{}).
		Where("id = ?", assessmentID).
		Updates(map[string]interface{}{
			"attempt_count": stats.Count,
			"average_score": stats.Average,
		}).Error
}
