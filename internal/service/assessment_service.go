package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"teacher_connect_backend/internal/model"
	"teacher_connect_backend/internal/repository"
	"teacher_connect_backend/internal/scoring"
	"teacher_connect_backend/internal/util"
	"teacher_connect_backend/pkg/logger"
	"teacher_connect_backend/pkg/tracing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// AssessmentStore 测试及题目的持久化
type AssessmentStore interface {
	CreateAssessment(ctx context.Context, a *model.Assessment) error
	FindAssessmentByID(ctx context.Context, id string) (*model.Assessment, error)
	FindAssessmentsByIDs(ctx context.Context, ids []string) ([]model.Assessment, error)
	ListAssessments(ctx context.Context, filter repository.AssessmentFilter, page, limit int) ([]model.Assessment, int64, error)
}

type AssessmentService struct {
	Repo     AssessmentStore
	Attempts AttemptStore
	Storage  *StorageService
	validate *validator.Validate
}

func NewAssessmentService(repo AssessmentStore, attempts AttemptStore, storage *StorageService) *AssessmentService {
	return &AssessmentService{
		Repo:     repo,
		Attempts: attempts,
		Storage:  storage,
		validate: validator.New(),
	}
}

type QuestionRequest struct {
	QuestionType  model.QuestionType `json:"questionType" validate:"required,oneof=single_choice true_false short_answer essay"`
	Prompt        string             `json:"prompt" validate:"required"`
	Options       []string           `json:"options"`
	CorrectAnswer model.AnswerValue  `json:"correctAnswer" validate:"required"`
	Points        int                `json:"points" validate:"min=1"`
	Difficulty    model.Difficulty   `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	Tags          []string           `json:"tags"`
}

type AssessmentRequest struct {
	Title           string            `json:"title" validate:"required"`
	Description     string            `json:"description"`
	Subject         string            `json:"subject" validate:"required"`
	Grade           string            `json:"grade" validate:"required"`
	DurationMinutes int               `json:"durationMinutes" validate:"min=0"`
	Difficulty      model.Difficulty  `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	Tags            []string          `json:"tags"`
	Instructions    string            `json:"instructions"`
	IsPublished     bool              `json:"isPublished"`
	Questions       []QuestionRequest `json:"questions" validate:"required,min=1,dive"`
}

func (s *AssessmentService) validateRequest(req AssessmentRequest) error {
	req.Title = strings.TrimSpace(req.Title)
	req.Subject = strings.TrimSpace(req.Subject)
	req.Grade = strings.TrimSpace(req.Grade)
	if err := s.validate.Struct(req); err != nil {
		return errors.Wrap(util.ErrInvalidAssessment, err.Error())
	}

	for i, q := range req.Questions {
		answer := strings.TrimSpace(string(q.CorrectAnswer))
		switch q.QuestionType {
		case model.QuestionSingleChoice:
			if len(q.Options) < 2 {
				return errors.Wrapf(util.ErrInvalidAssessment, "第 %d 题：单选题至少需要两个选项", i+1)
			}
			idx, err := strconv.Atoi(answer)
			if err != nil || idx < 0 || idx >= len(q.Options) {
				return errors.Wrapf(util.ErrInvalidAssessment, "第 %d 题：正确答案必须是选项下标", i+1)
			}
		case model.QuestionTrueFalse:
			if !strings.EqualFold(answer, "true") && !strings.EqualFold(answer, "false") {
				return errors.Wrapf(util.ErrInvalidAssessment, "第 %d 题：正确答案必须是 true 或 false", i+1)
			}
		default:
			if answer == "" {
				return errors.Wrapf(util.ErrInvalidAssessment, "第 %d 题：缺少正确答案", i+1)
			}
		}
	}
	return nil
}

func jsonList(values []string) datatypes.JSON {
	if len(values) == 0 {
		return nil
	}
	data, _ := json.Marshal(values)
	return datatypes.JSON(data)
}

// CreateAssessment 校验并保存测试，总分在创建时由题目分值求和
func (s *AssessmentService) CreateAssessment(ctx context.Context, teacherID uint, req AssessmentRequest) (a *model.Assessment, err error) {
	ctx, span := tracing.StartSpan(ctx, "AssessmentService.CreateAssessment")
	defer func() { tracing.EndSpan(span, err) }()

	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = model.DifficultyEasy
	}

	questions := make([]model.AssessmentQuestion, len(req.Questions))
	for i, q := range req.Questions {
		qDifficulty := q.Difficulty
		if qDifficulty == "" {
			qDifficulty = difficulty
		}
		questions[i] = model.AssessmentQuestion{
			Order:         i,
			QuestionType:  q.QuestionType,
			Prompt:        q.Prompt,
			CorrectAnswer: strings.TrimSpace(string(q.CorrectAnswer)),
			Points:        q.Points,
			Difficulty:    qDifficulty,
			Subject:       req.Subject,
			Grade:         req.Grade,
			Tags:          jsonList(q.Tags),
		}
		if q.QuestionType == model.QuestionSingleChoice {
			questions[i].Options = jsonList(q.Options)
		}
	}

	a = &model.Assessment{
		Title:           strings.TrimSpace(req.Title),
		Description:     req.Description,
		Subject:         strings.TrimSpace(req.Subject),
		Grade:           strings.TrimSpace(req.Grade),
		TeacherID:       teacherID,
		DurationMinutes: req.DurationMinutes,
		TotalPoints:     scoring.TotalPoints(questions),
		IsPublished:     req.IsPublished,
		Difficulty:      difficulty,
		Tags:            jsonList(req.Tags),
		Instructions:    req.Instructions,
		Questions:       questions,
	}

	if err := s.Repo.CreateAssessment(ctx, a); err != nil {
		return nil, err
	}

	logger.Log.Info("assessment created",
		zap.String("assessmentId", a.ID),
		zap.Uint("teacherId", teacherID),
		zap.Int("questions", len(questions)),
		zap.Int("totalPoints", a.TotalPoints))
	return a, nil
}

func (s *AssessmentService) GetAssessment(ctx context.Context, id string) (*model.Assessment, error) {
	return s.Repo.FindAssessmentByID(ctx, id)
}

func (s *AssessmentService) ListAssessments(ctx context.Context, filter repository.AssessmentFilter, page, limit int) ([]model.Assessment, int64, error) {
	page, limit = util.Pagination(page, limit)
	return s.Repo.ListAssessments(ctx, filter, page, limit)
}

type StudentQuestion struct {
	ID           string             `json:"id"`
	QuestionType model.QuestionType `json:"questionType"`
	Prompt       string             `json:"prompt"`
	Options      datatypes.JSON     `json:"options,omitempty"`
	Points       int                `json:"points"`
	Order        int                `json:"order"`
}

// StudentAssessmentView 不含标准答案
type StudentAssessmentView struct {
	ID              string            `json:"id"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	Subject         string            `json:"subject"`
	Grade           string            `json:"grade"`
	DurationMinutes int               `json:"durationMinutes"`
	TotalPoints     int               `json:"totalPoints"`
	Difficulty      model.Difficulty  `json:"difficulty"`
	Instructions    string            `json:"instructions"`
	QuestionCount   int               `json:"questionCount"`
	Questions       []StudentQuestion `json:"questions"`
}

func (s *AssessmentService) GetStudentView(ctx context.Context, id string) (*StudentAssessmentView, error) {
	a, err := s.Repo.FindAssessmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.IsPublished {
		return nil, util.ErrAssessmentNotFound
	}

	qs := make([]StudentQuestion, len(a.Questions))
	for i, q := range a.Questions {
		qs[i] = StudentQuestion{
			ID:           q.ID,
			QuestionType: q.QuestionType,
			Prompt:       q.Prompt,
			Options:      q.Options,
			Points:       q.Points,
			Order:        q.Order,
		}
	}

	return &StudentAssessmentView{
		ID:              a.ID,
		Title:           a.Title,
		Description:     a.Description,
		Subject:         a.Subject,
		Grade:           a.Grade,
		DurationMinutes: a.DurationMinutes,
		TotalPoints:     a.TotalPoints,
		Difficulty:      a.Difficulty,
		Instructions:    a.Instructions,
		QuestionCount:   len(qs),
		Questions:       qs,
	}, nil
}

const exportURLExpiry = 24 * time.Hour

var exportHeader = []string{
	"attempt_id", "student_id", "student_name", "started_at", "ended_at",
	"score", "total_points", "percentage", "time_spent_seconds", "credits_awarded",
}

// csvText 以 = + - @ 开头的文本会被表格软件当作公式执行，前面加单引号
func csvText(v string) string {
	if v != "" && strings.ContainsRune("=+-@\t\r", rune(v[0])) {
		return "'" + v
	}
	return v
}

// ExportResults 导出已完成作答为 CSV 并上传，返回访问地址
func (s *AssessmentService) ExportResults(ctx context.Context, id string) (url string, err error) {
	ctx, span := tracing.StartSpan(ctx, "AssessmentService.ExportResults")
	defer func() { tracing.EndSpan(span, err) }()

	a, err := s.Repo.FindAssessmentByID(ctx, id)
	if err != nil {
		return "", err
	}
	attempts, _, err := s.Attempts.ListByAssessment(ctx, id, model.AttemptCompleted, 0, 0)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return "", err
	}
	for _, at := range attempts {
		ended := ""
		if at.EndedAt != nil {
			ended = at.EndedAt.Format(time.RFC3339)
		}
		row := []string{
			at.ID,
			strconv.FormatUint(uint64(at.StudentID), 10),
			csvText(at.StudentName),
			at.StartedAt.Format(time.RFC3339),
			ended,
			strconv.Itoa(at.Score),
			strconv.Itoa(a.TotalPoints),
			strconv.FormatFloat(at.Percentage, 'f', 2, 64),
			strconv.Itoa(at.TimeSpentSeconds),
			strconv.Itoa(at.CreditsAwarded),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	filename := fmt.Sprintf("exports/assessments/%s/results-%d.csv", a.ID, time.Now().Unix())
	if _, err = s.Storage.Upload(ctx, filename, &buf, int64(buf.Len()), util.MimeCSV); err != nil {
		return "", errors.Wrap(err, "upload export")
	}
	url, err = s.Storage.DownloadURL(ctx, filename, exportURLExpiry)
	if err != nil {
		return "", errors.Wrap(err, "sign export url")
	}

	logger.Log.Info("assessment results exported",
		zap.String("assessmentId", a.ID),
		zap.Int("rows", len(attempts)),
		zap.String("url", url))
	return url, nil
}
