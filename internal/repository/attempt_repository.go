package repository

import (
	"context"
	"errors"
	"teacher_connect_backend/internal/model"
	"teacher_connect_backend/internal/util"
	"time"

	"gorm.io/gorm"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) Create(ctx context.Context, attempt *model.AssessmentAttempt) error {
	return r.DB.WithContext(ctx).Create(attempt).Error
}

func (r *AttemptRepository) FindByID(ctx context.Context, id string) (*model.AssessmentAttempt, error) {
	var a model.AssessmentAttempt
	err := r.DB.WithContext(ctx).
		Preload("Answers", byPosition).
		First(&a, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrAttemptNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// FindInProgress 没有进行中的作答时返回 nil, nil
func (r *AttemptRepository) FindInProgress(ctx context.Context, assessmentID string, studentID uint) (*model.AssessmentAttempt, error) {
	var a model.AssessmentAttempt
	err := r.DB.WithContext(ctx).
		Where("assessment_id = ? AND student_id = ? AND status = ?", assessmentID, studentID, model.AttemptInProgress).
		Order("started_at desc").
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AttemptRepository) ListByStudent(ctx context.Context, studentID uint, page, limit int) ([]model.AssessmentAttempt, int64, error) {
	var as []model.AssessmentAttempt
	var total int64
	query := r.DB.WithContext(ctx).Model(&model.AssessmentAttempt{}).Where("student_id = ?", studentID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := query.Order("started_at desc").Offset(offset).Limit(limit).Find(&as).Error
	return as, total, err
}

func (r *AttemptRepository) ListByAssessment(ctx context.Context, assessmentID string, status model.AttemptStatus, page, limit int) ([]model.AssessmentAttempt, int64, error) {
	var as []model.AssessmentAttempt
	var total int64
	query := r.DB.WithContext(ctx).Model(&model.AssessmentAttempt{}).Where("assessment_id = ?", assessmentID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = query.Order("started_at desc")
	if limit > 0 {
		query = query.Offset((page - 1) * limit).Limit(limit)
	}
	err := query.Find(&as).Error
	return as, total, err
}

// SweepCursor 按 (started_at, id) 递增的分页位置
type SweepCursor struct {
	StartedAt time.Time
	ID        string
}

// ListInProgress 返回限时测试上、在 startedBefore 之前开始且仍在进行中的作答。
// after 不为空时从该位置之后继续
func (r *AttemptRepository) ListInProgress(ctx context.Context, startedBefore time.Time, after *SweepCursor, limit int) ([]model.AssessmentAttempt, error) {
	var as []model.AssessmentAttempt
	query := r.DB.WithContext(ctx).
		Preload("Answers", byPosition).
		Joins("JOIN assessments ON assessments.id = assessment_attempts.assessment_id").
		Where("assessment_attempts.status = ? AND assessment_attempts.started_at < ? AND assessments.duration_minutes > 0",
			model.AttemptInProgress, startedBefore)
	if after != nil {
		query = query.Where("assessment_attempts.started_at > ? OR (assessment_attempts.started_at = ? AND assessment_attempts.id > ?)",
			after.StartedAt, after.StartedAt, after.ID)
	}
	err := query.
		Order("assessment_attempts.started_at asc, assessment_attempts.id asc").
		Limit(limit).
		Find(&as).Error
	return as, err
}

// ReplaceAnswers 保存草稿答案，仅对进行中的作答生效
func (r *AttemptRepository) ReplaceAnswers(ctx context.Context, attemptID string, answers []model.AttemptAnswer) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.AssessmentAttempt{}).
			Where("id = ? AND status = ?", attemptID, model.AttemptInProgress).
			Update("updated_at", time.Now())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return util.ErrAttemptClosed
		}
		return writeAnswers(tx, attemptID, answers)
	})
}

// Complete 在一个事务内写入评分结果、答案、测试统计和积分流水。
// 状态只能从 in_progress 翻转一次，并发的重复提交会得到 ErrAttemptClosed。
func (r *AttemptRepository) Complete(ctx context.Context, attempt *model.AssessmentAttempt, credit *model.CreditTransaction) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.AssessmentAttempt{}).
			Where("id = ? AND status = ?", attempt.ID, model.AttemptInProgress).
			Updates(map[string]interface{}{
				"status":             attempt.Status,
				"ended_at":           attempt.EndedAt,
				"score":              attempt.Score,
				"percentage":         attempt.Percentage,
				"time_spent_seconds": attempt.TimeSpentSeconds,
				"credits_awarded":    attempt.CreditsAwarded,
				"feedback":           attempt.Feedback,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return util.ErrAttemptClosed
		}

		if err := writeAnswers(tx, attempt.ID, attempt.Answers); err != nil {
			return err
		}

		if err := NewAssessmentRepository(tx).RecomputeStats(ctx, attempt.AssessmentID); err != nil {
			return err
		}

		if credit != nil {
			if err := NewCreditRepository(tx).Append(ctx, credit); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *AttemptRepository) Abandon(ctx context.Context, attemptID string, endedAt time.Time) error {
	res := r.DB.WithContext(ctx).Model(&model.AssessmentAttempt{}).
		Where("id = ? AND status = ?", attemptID, model.AttemptInProgress).
		Updates(map[string]interface{}{
			"status":   model.AttemptAbandoned,
			"ended_at": endedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrAttemptClosed
	}
	return nil
}

func writeAnswers(tx *gorm.DB, attemptID string, answers []model.AttemptAnswer) error {
	if err := tx.Unscoped().Where("attempt_id = ?", attemptID).Delete(&model.AttemptAnswer{}).Error; err != nil {
		return err
	}
	if len(answers) == 0 {
		return nil
	}
	for i := range answers {
		answers[i].ID = ""
		answers[i].AttemptID = attemptID
		answers[i].Position = i
	}
	return tx.Create(&answers).Error
}

func byPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position asc")
}
