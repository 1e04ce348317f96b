package repository

import (
	"context"
	"testing"
	"time"

	"teacher_connect_backend/internal/model"
	"teacher_connect_backend/internal/testutil"
	"teacher_connect_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAttempt(t *testing.T, repo *AttemptRepository, assessments *AssessmentRepository, startedAt time.Time) (*model.Assessment, *model.AssessmentAttempt) {
	t.Helper()
	ctx := context.Background()

	a := &model.Assessment{
		Title: "Quiz", Subject: "math", Grade: "4", TotalPoints: 10, IsPublished: true, DurationMinutes: 20,
		Questions: []model.AssessmentQuestion{
			{QuestionType: model.QuestionTrueFalse, Prompt: "2 > 1", CorrectAnswer: "true", Points: 10},
		},
	}
	require.NoError(t, assessments.CreateAssessment(ctx, a))

	attempt := &model.AssessmentAttempt{
		AssessmentID: a.ID,
		StudentID:    7,
		Status:       model.AttemptInProgress,
		StartedAt:    startedAt,
	}
	require.NoError(t, repo.Create(ctx, attempt))
	return a, attempt
}

func completed(attempt *model.AssessmentAttempt, pct float64) {
	now := attempt.StartedAt.Add(time.Minute)
	correct := pct > 0
	points := 0
	if correct {
		points = 10
	}
	attempt.Status = model.AttemptCompleted
	attempt.EndedAt = &now
	attempt.Score = points
	attempt.Percentage = pct
	attempt.Answers = []model.AttemptAnswer{{QuestionID: "q", Answer: "true", IsCorrect: &correct, PointsEarned: &points}}
}

func TestCompleteRollsBackOnDuplicateCredit(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()
	repo := NewAttemptRepository(db)
	assessments := NewAssessmentRepository(db)
	credits := NewCreditRepository(db)

	a, attempt := seedAttempt(t, repo, assessments, time.Now())

	ref := attempt.ID
	require.NoError(t, credits.Append(ctx, &model.CreditTransaction{StudentID: 7, Type: model.TxAssessment, Amount: 50, ReferenceID: &ref}))

	completed(attempt, 100)
	err := repo.Complete(ctx, attempt, &model.CreditTransaction{StudentID: 7, Type: model.TxAssessment, Amount: 50, ReferenceID: &ref})
	assert.ErrorIs(t, err, util.ErrDuplicateCredit)

	stored, err := repo.FindByID(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptInProgress, stored.Status)
	assert.Empty(t, stored.Answers)

	reloaded, err := assessments.FindAssessmentByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Zero(t, reloaded.AttemptCount)

	balance, err := credits.SumByStudent(ctx, 7)
	require.NoError(t, err)
	assert.EqualValues(t, 50, balance)
}

func TestCompleteOnlyOnce(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()
	repo := NewAttemptRepository(db)
	assessments := NewAssessmentRepository(db)

	a, attempt := seedAttempt(t, repo, assessments, time.Now())

	completed(attempt, 100)
	require.NoError(t, repo.Complete(ctx, attempt, nil))

	completed(attempt, 0)
	assert.ErrorIs(t, repo.Complete(ctx, attempt, nil), util.ErrAttemptClosed)
	assert.ErrorIs(t, repo.Abandon(ctx, attempt.ID, time.Now()), util.ErrAttemptClosed)
	assert.ErrorIs(t, repo.ReplaceAnswers(ctx, attempt.ID, nil), util.ErrAttemptClosed)

	reloaded, err := assessments.FindAssessmentByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.AttemptCount)
	assert.InDelta(t, 100.0, reloaded.AverageScore, 0.001)
}

func TestListInProgress(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()
	repo := NewAttemptRepository(db)
	assessments := NewAssessmentRepository(db)

	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	_, old := seedAttempt(t, repo, assessments, base)
	seedAttempt(t, repo, assessments, base.Add(time.Hour))

	// 不限时的测试永远不会超时
	untimed := &model.Assessment{Title: "Open", Subject: "math", Grade: "4", IsPublished: true}
	require.NoError(t, assessments.CreateAssessment(ctx, untimed))
	require.NoError(t, repo.Create(ctx, &model.AssessmentAttempt{
		AssessmentID: untimed.ID, StudentID: 7, Status: model.AttemptInProgress, StartedAt: base,
	}))

	list, err := repo.ListInProgress(ctx, base.Add(30*time.Minute), nil, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, old.ID, list[0].ID)
}

func TestListInProgressPagesWithCursor(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()
	repo := NewAttemptRepository(db)
	assessments := NewAssessmentRepository(db)

	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	a, _ := seedAttempt(t, repo, assessments, base)
	for i := 0; i < 4; i++ {
		require.NoError(t, repo.Create(ctx, &model.AssessmentAttempt{
			AssessmentID: a.ID, StudentID: 7, Status: model.AttemptInProgress, StartedAt: base,
		}))
	}
	_, last := seedAttempt(t, repo, assessments, base.Add(time.Minute))

	seen := map[string]bool{}
	var after *SweepCursor
	pages := 0
	for {
		page, err := repo.ListInProgress(ctx, base.Add(time.Hour), after, 2)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		pages++
		for _, at := range page {
			assert.False(t, seen[at.ID], "attempt %s returned twice", at.ID)
			seen[at.ID] = true
		}
		tail := page[len(page)-1]
		after = &SweepCursor{StartedAt: tail.StartedAt, ID: tail.ID}
	}

	assert.Len(t, seen, 6)
	assert.Equal(t, 3, pages)
	assert.Equal(t, last.ID, after.ID)
}

func TestAnswersKeepSubmittedOrder(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()
	repo := NewAttemptRepository(db)

	_, attempt := seedAttempt(t, repo, NewAssessmentRepository(db), time.Now())

	ids := []string{"q-e", "q-b", "q-d", "q-a", "q-c"}
	answers := make([]model.AttemptAnswer, len(ids))
	for i, id := range ids {
		answers[i] = model.AttemptAnswer{QuestionID: id, Answer: "x"}
	}
	require.NoError(t, repo.ReplaceAnswers(ctx, attempt.ID, answers))

	stored, err := repo.FindByID(ctx, attempt.ID)
	require.NoError(t, err)
	require.Len(t, stored.Answers, len(ids))
	for i, id := range ids {
		assert.Equal(t, id, stored.Answers[i].QuestionID)
	}
}

func TestAppendRejectsDuplicateReference(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()
	credits := NewCreditRepository(db)

	ref := "attempt-1"
	require.NoError(t, credits.Append(ctx, &model.CreditTransaction{StudentID: 1, Type: model.TxAssessment, Amount: 30, ReferenceID: &ref}))

	// 唯一索引冲突映射为领域错误
	err := credits.Append(ctx, &model.CreditTransaction{StudentID: 1, Type: model.TxAssessment, Amount: 30, ReferenceID: &ref})
	assert.ErrorIs(t, err, util.ErrDuplicateCredit)

	// 没有引用的流水不去重
	require.NoError(t, credits.Append(ctx, &model.CreditTransaction{StudentID: 1, Type: model.TxUpload, Amount: 2}))
	require.NoError(t, credits.Append(ctx, &model.CreditTransaction{StudentID: 1, Type: model.TxUpload, Amount: 2}))

	balance, err := credits.SumByStudent(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 34, balance)
}

func TestTopBalances(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()
	credits := NewCreditRepository(db)

	for _, txn := range []model.CreditTransaction{
		{StudentID: 1, Type: model.TxUpload, Amount: 5},
		{StudentID: 2, Type: model.TxUpload, Amount: 8},
		{StudentID: 1, Type: model.TxApproval, Amount: 6},
		{StudentID: 3, Type: model.TxLikeBonus, Amount: 1},
	} {
		txn := txn
		require.NoError(t, credits.Append(ctx, &txn))
	}

	rows, err := credits.TopBalances(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []BalanceRow{{StudentID: 1, Balance: 11}, {StudentID: 2, Balance: 8}}, rows)

	all, err := credits.TopBalances(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
