package service

import (
	"context"
	"testing"
	"time"

	"teacher_connect_backend/internal/config"
	"teacher_connect_backend/internal/model"
	"teacher_connect_backend/internal/repository"
	"teacher_connect_backend/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db          *gorm.DB
	cfg         *config.Config
	assessments *AssessmentService
	attempts    *AttemptService
	credits     *CreditService
	teacher     *model.User
	student     *model.User
	clock       time.Time
}

func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()

	db := testutil.OpenDB(t)
	cfg := &config.Config{
		Storage:    config.StorageConfig{Type: "local", LocalPath: t.TempDir()},
		Assessment: config.AssessmentConfig{GraceSeconds: 30},
	}
	if mutate != nil {
		mutate(cfg)
	}

	assessmentRepo := repository.NewAssessmentRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	userRepo := repository.NewUserRepository(db)

	f := &fixture{
		db:      db,
		cfg:     cfg,
		teacher: testutil.CreateUser(t, db, "teacher", model.Teacher),
		student: testutil.CreateUser(t, db, "student", model.Student),
		clock:   time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	f.credits = NewCreditService(repository.NewCreditRepository(db), userRepo, nil)
	f.assessments = NewAssessmentService(assessmentRepo, attemptRepo, NewStorageService(cfg))
	f.attempts = NewAttemptService(attemptRepo, assessmentRepo, f.credits, cfg)
	f.attempts.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

// sampleRequest 四道题各 10 分，中等难度，限时 30 分钟
func sampleRequest() AssessmentRequest {
	return AssessmentRequest{
		Title:           "Unit 3 review",
		Subject:         "science",
		Grade:           "7",
		DurationMinutes: 30,
		Difficulty:      model.DifficultyMedium,
		IsPublished:     true,
		Questions: []QuestionRequest{
			{QuestionType: model.QuestionSingleChoice, Prompt: "Which is a gas?", Options: []string{"iron", "oxygen", "salt"}, CorrectAnswer: "1", Points: 10},
			{QuestionType: model.QuestionTrueFalse, Prompt: "Water boils at 100C at sea level.", CorrectAnswer: "true", Points: 10},
			{QuestionType: model.QuestionShortAnswer, Prompt: "Capital of France?", CorrectAnswer: "Paris", Points: 10},
			{QuestionType: model.QuestionEssay, Prompt: "How do plants make food?", CorrectAnswer: "photosynthesis", Points: 10},
		},
	}
}

func (f *fixture) createAssessment(t *testing.T, req AssessmentRequest) *model.Assessment {
	t.Helper()
	a, err := f.assessments.CreateAssessment(context.Background(), f.teacher.ID, req)
	require.NoError(t, err)
	return a
}

// answersFor 按题目顺序生成答案
func answersFor(a *model.Assessment, values ...string) []AnswerInput {
	inputs := make([]AnswerInput, 0, len(values))
	for i, v := range values {
		inputs = append(inputs, AnswerInput{QuestionID: a.Questions[i].ID, Answer: model.AnswerValue(v)})
	}
	return inputs
}
