package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"teacher_connect_backend/internal/config"
	"teacher_connect_backend/internal/model"
	"teacher_connect_backend/internal/repository"
	"teacher_connect_backend/internal/scoring"
	"teacher_connect_backend/internal/util"
	"teacher_connect_backend/pkg/logger"
	"teacher_connect_backend/pkg/monitoring"
	"teacher_connect_backend/pkg/tracing"
	"time"

	"go.uber.org/zap"
)

// AttemptStore 作答记录的持久化
type AttemptStore interface {
	Create(ctx context.Context, attempt *model.AssessmentAttempt) error
	FindByID(ctx context.Context, id string) (*model.AssessmentAttempt, error)
	FindInProgress(ctx context.Context, assessmentID string, studentID uint) (*model.AssessmentAttempt, error)
	ListByStudent(ctx context.Context, studentID uint, page, limit int) ([]model.AssessmentAttempt, int64, error)
	ListByAssessment(ctx context.Context, assessmentID string, status model.AttemptStatus, page, limit int) ([]model.AssessmentAttempt, int64, error)
	ListInProgress(ctx context.Context, startedBefore time.Time, after *repository.SweepCursor, limit int) ([]model.AssessmentAttempt, error)
	ReplaceAnswers(ctx context.Context, attemptID string, answers []model.AttemptAnswer) error
	Complete(ctx context.Context, attempt *model.AssessmentAttempt, credit *model.CreditTransaction) error
	Abandon(ctx context.Context, attemptID string, endedAt time.Time) error
}

// AnswerInput 学生提交的一道题的答案
type AnswerInput struct {
	QuestionID       string            `json:"questionId" binding:"required"`
	Answer           model.AnswerValue `json:"answer"`
	TimeSpentSeconds int               `json:"timeSpent"`
}

// AttemptDetail 作答详情，进行中时附带剩余秒数
type AttemptDetail struct {
	*model.AssessmentAttempt
	RemainingSeconds *int `json:"remainingSeconds,omitempty"`
}

type attemptSettings struct {
	exclusive bool
	grace     time.Duration
	policy    scoring.CreditPolicy
}

const sweepBatchSize = 200

type AttemptService struct {
	Attempts    AttemptStore
	Assessments AssessmentStore
	Credits     *CreditService

	settings atomic.Pointer[attemptSettings]
	now      func() time.Time
}

func NewAttemptService(attempts AttemptStore, assessments AssessmentStore, credits *CreditService, cfg *config.Config) *AttemptService {
	s := &AttemptService{
		Attempts:    attempts,
		Assessments: assessments,
		Credits:     credits,
		now:         time.Now,
	}
	s.ApplyConfig(cfg)
	return s
}

// ApplyConfig 更新积分公式和作答规则，配置热更新时调用
func (s *AttemptService) ApplyConfig(cfg *config.Config) {
	s.settings.Store(&attemptSettings{
		exclusive: cfg.Assessment.ExclusiveAttempts,
		grace:     time.Duration(cfg.Assessment.GraceSeconds) * time.Second,
		policy:    scoring.NewCreditPolicy(cfg.Credits),
	})
}

func (s *AttemptService) CreditPolicy() scoring.CreditPolicy {
	return s.settings.Load().policy
}

// StartAttempt 为学生开始一次作答，只允许已发布的测试
func (s *AttemptService) StartAttempt(ctx context.Context, assessmentID string, studentID uint, studentName string) (attempt *model.AssessmentAttempt, err error) {
	ctx, span := tracing.StartSpan(ctx, "AttemptService.StartAttempt")
	defer func() { tracing.EndSpan(span, err) }()

	a, err := s.Assessments.FindAssessmentByID(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	if !a.IsPublished {
		return nil, util.ErrAssessmentNotFound
	}

	if s.settings.Load().exclusive {
		existing, err := s.Attempts.FindInProgress(ctx, assessmentID, studentID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	attempt = &model.AssessmentAttempt{
		AssessmentID: assessmentID,
		StudentID:    studentID,
		StudentName:  studentName,
		Status:       model.AttemptInProgress,
		StartedAt:    s.now(),
		Answers:      []model.AttemptAnswer{},
	}
	if err := s.Attempts.Create(ctx, attempt); err != nil {
		return nil, err
	}

	monitoring.RecordAttempt("started")
	logger.Log.Info("attempt started",
		zap.String("attemptId", attempt.ID),
		zap.String("assessmentId", assessmentID),
		zap.Uint("studentId", studentID))
	return attempt, nil
}

func toAnswers(inputs []AnswerInput) ([]model.AttemptAnswer, error) {
	seen := make(map[string]struct{}, len(inputs))
	answers := make([]model.AttemptAnswer, 0, len(inputs))
	for _, in := range inputs {
		qid := strings.TrimSpace(in.QuestionID)
		if qid == "" {
			return nil, fmt.Errorf("%w: question id is required", util.ErrInvalidAnswers)
		}
		if _, dup := seen[qid]; dup {
			return nil, fmt.Errorf("%w: question %s answered twice", util.ErrInvalidAnswers, qid)
		}
		seen[qid] = struct{}{}
		answers = append(answers, model.AttemptAnswer{
			QuestionID:       qid,
			Answer:           in.Answer,
			TimeSpentSeconds: in.TimeSpentSeconds,
		})
	}
	return answers, nil
}

func (s *AttemptService) loadOwned(ctx context.Context, attemptID string, studentID uint) (*model.AssessmentAttempt, error) {
	attempt, err := s.Attempts.FindByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.StudentID != studentID {
		return nil, util.ErrPermissionDenied
	}
	if attempt.Status != model.AttemptInProgress {
		return nil, util.ErrAttemptClosed
	}
	return attempt, nil
}

// SaveAnswers 保存草稿，覆盖之前的草稿
func (s *AttemptService) SaveAnswers(ctx context.Context, attemptID string, studentID uint, inputs []AnswerInput) error {
	if _, err := s.loadOwned(ctx, attemptID, studentID); err != nil {
		return err
	}
	answers, err := toAnswers(inputs)
	if err != nil {
		return err
	}
	return s.Attempts.ReplaceAnswers(ctx, attemptID, answers)
}

// SubmitAttempt 评分并结束作答。inputs 为 nil 时使用已保存的草稿
func (s *AttemptService) SubmitAttempt(ctx context.Context, attemptID string, studentID uint, inputs []AnswerInput) (*model.AssessmentAttempt, error) {
	attempt, err := s.loadOwned(ctx, attemptID, studentID)
	if err != nil {
		return nil, err
	}

	answers := attempt.Answers
	if inputs != nil {
		if answers, err = toAnswers(inputs); err != nil {
			return nil, err
		}
	}
	return s.submit(ctx, attempt, answers)
}

func (s *AttemptService) submit(ctx context.Context, attempt *model.AssessmentAttempt, answers []model.AttemptAnswer) (_ *model.AssessmentAttempt, err error) {
	ctx, span := tracing.StartSpan(ctx, "AttemptService.Submit")
	defer func() { tracing.EndSpan(span, err) }()

	a, err := s.Assessments.FindAssessmentByID(ctx, attempt.AssessmentID)
	if err != nil {
		return nil, err
	}

	result := scoring.Grade(a.Questions, a.TotalPoints, answers)
	if result.Ungraded > 0 {
		logger.Log.Warn("answers reference unknown questions",
			zap.String("attemptId", attempt.ID),
			zap.Int("ungraded", result.Ungraded))
	}

	settings := s.settings.Load()
	now := s.now()
	spent := int(now.Sub(attempt.StartedAt).Seconds())
	if spent < 0 {
		spent = 0
	}

	attempt.Status = model.AttemptCompleted
	attempt.EndedAt = &now
	attempt.TimeSpentSeconds = spent
	attempt.Score = result.Score
	attempt.Percentage = result.Percentage
	attempt.CreditsAwarded = settings.policy.Credits(result.Percentage, a.Difficulty)
	attempt.Feedback = scoring.Feedback(result.Percentage)
	attempt.Answers = result.Answers

	var credit *model.CreditTransaction
	if attempt.CreditsAwarded > 0 {
		ref := attempt.ID
		credit = &model.CreditTransaction{
			StudentID:   attempt.StudentID,
			Type:        model.TxAssessment,
			Amount:      attempt.CreditsAwarded,
			Description: fmt.Sprintf("Completed assessment: %s (%.0f%%)", a.Title, result.Percentage),
			ReferenceID: &ref,
		}
	}

	if err := s.Attempts.Complete(ctx, attempt, credit); err != nil {
		return nil, err
	}

	monitoring.RecordAttempt(string(model.AttemptCompleted))
	monitoring.RecordGraded(result.Percentage)
	if credit != nil && s.Credits != nil {
		s.Credits.recorded(ctx, credit)
	}

	logger.Log.Info("attempt submitted",
		zap.String("attemptId", attempt.ID),
		zap.Uint("studentId", attempt.StudentID),
		zap.Int("score", attempt.Score),
		zap.Float64("percentage", attempt.Percentage),
		zap.Int("credits", attempt.CreditsAwarded))
	return attempt, nil
}

// AbandonAttempt 放弃作答，不评分也不发积分
func (s *AttemptService) AbandonAttempt(ctx context.Context, attemptID string, studentID uint) (*model.AssessmentAttempt, error) {
	attempt, err := s.loadOwned(ctx, attemptID, studentID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.Attempts.Abandon(ctx, attemptID, now); err != nil {
		return nil, err
	}
	attempt.Status = model.AttemptAbandoned
	attempt.EndedAt = &now

	monitoring.RecordAttempt(string(model.AttemptAbandoned))
	logger.Log.Info("attempt abandoned", zap.String("attemptId", attemptID), zap.Uint("studentId", studentID))
	return attempt, nil
}

// GetAttempt 学生只能查看自己的作答，教师只能查看自己测试下的作答，管理员不受限
func (s *AttemptService) GetAttempt(ctx context.Context, attemptID string, viewerID uint, role model.UserRole) (*AttemptDetail, error) {
	attempt, err := s.Attempts.FindByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	var a *model.Assessment
	switch {
	case role == model.Admin:
	case role == model.Teacher:
		a, err = s.Assessments.FindAssessmentByID(ctx, attempt.AssessmentID)
		if err != nil {
			return nil, err
		}
		if a.TeacherID != viewerID {
			return nil, util.ErrPermissionDenied
		}
	case attempt.StudentID != viewerID:
		return nil, util.ErrPermissionDenied
	}

	detail := &AttemptDetail{AssessmentAttempt: attempt}
	if attempt.Status != model.AttemptInProgress {
		return detail, nil
	}

	if a == nil {
		if a, err = s.Assessments.FindAssessmentByID(ctx, attempt.AssessmentID); err != nil {
			return nil, err
		}
	}
	if a.DurationMinutes > 0 {
		deadline := attempt.StartedAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
		remaining := int(deadline.Sub(s.now()).Seconds())
		if remaining < 0 {
			remaining = 0
		}
		detail.RemainingSeconds = &remaining
	}
	return detail, nil
}

func (s *AttemptService) ListStudentAttempts(ctx context.Context, studentID uint, page, limit int) ([]model.AssessmentAttempt, int64, error) {
	page, limit = util.Pagination(page, limit)
	return s.Attempts.ListByStudent(ctx, studentID, page, limit)
}

func (s *AttemptService) ListAssessmentAttempts(ctx context.Context, assessmentID string, status model.AttemptStatus, page, limit int) ([]model.AssessmentAttempt, int64, error) {
	if _, err := s.Assessments.FindAssessmentByID(ctx, assessmentID); err != nil {
		return nil, 0, err
	}
	page, limit = util.Pagination(page, limit)
	return s.Attempts.ListByAssessment(ctx, assessmentID, status, page, limit)
}

// SubmitExpired 自动提交已超时（含宽限期）的作答，使用草稿答案评分。
// 只扫描限时测试上的作答，并按游标翻页跳过尚未超时或提交失败的记录
func (s *AttemptService) SubmitExpired(ctx context.Context) (int, error) {
	settings := s.settings.Load()
	now := s.now()
	// 限时最短为 1 分钟，更晚开始的作答不可能超时
	startedBefore := now.Add(-time.Minute - settings.grace)

	durations := make(map[string]time.Duration)
	submitted := 0
	var after *repository.SweepCursor
	for {
		if err := ctx.Err(); err != nil {
			return submitted, err
		}
		candidates, err := s.Attempts.ListInProgress(ctx, startedBefore, after, sweepBatchSize)
		if err != nil {
			return submitted, err
		}
		if len(candidates) == 0 {
			break
		}

		if err := s.loadDurations(ctx, candidates, durations); err != nil {
			return submitted, err
		}

		for i := range candidates {
			attempt := &candidates[i]
			d := durations[attempt.AssessmentID]
			if d <= 0 || !now.After(attempt.StartedAt.Add(d+settings.grace)) {
				continue
			}
			if _, err := s.submit(ctx, attempt, attempt.Answers); err != nil {
				if !errors.Is(err, util.ErrAttemptClosed) {
					logger.Log.Error("auto submit failed", zap.String("attemptId", attempt.ID), zap.Error(err))
				}
				continue
			}
			submitted++
		}

		if len(candidates) < sweepBatchSize {
			break
		}
		last := candidates[len(candidates)-1]
		after = &repository.SweepCursor{StartedAt: last.StartedAt, ID: last.ID}
	}

	if submitted > 0 {
		logger.Log.Info("expired attempts submitted", zap.Int("count", submitted))
	}
	return submitted, nil
}

// loadDurations 补齐 durations 中缺少的测试限时
func (s *AttemptService) loadDurations(ctx context.Context, attempts []model.AssessmentAttempt, durations map[string]time.Duration) error {
	var ids []string
	for _, a := range attempts {
		if _, ok := durations[a.AssessmentID]; !ok {
			ids = append(ids, a.AssessmentID)
			durations[a.AssessmentID] = 0
		}
	}
	if len(ids) == 0 {
		return nil
	}
	assessments, err := s.Assessments.FindAssessmentsByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for _, a := range assessments {
		durations[a.ID] = time.Duration(a.DurationMinutes) * time.Minute
	}
	return nil
}

// RunSweeper 定期执行 SubmitExpired，直到 ctx 取消
func (s *AttemptService) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SubmitExpired(ctx); err != nil {
				logger.Log.Error("expired attempt sweep failed", zap.Error(err))
			}
		}
	}
}
