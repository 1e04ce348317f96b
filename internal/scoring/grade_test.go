package scoring

import (
	"math"
	"testing"

	"teacher_connect_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func question(id string, qt model.QuestionType, correct string, points int) model.AssessmentQuestion {
	q := model.AssessmentQuestion{QuestionType: qt, CorrectAnswer: correct, Points: points}
	q.ID = id
	return q
}

func answer(questionID, value string) model.AttemptAnswer {
	return model.AttemptAnswer{QuestionID: questionID, Answer: model.AnswerValue(value)}
}

func TestIsCorrect(t *testing.T) {
	tests := []struct {
		name      string
		q         model.AssessmentQuestion
		submitted string
		want      bool
	}{
		{"single choice correct index", question("q", model.QuestionSingleChoice, "1", 10), "1", true},
		{"single choice other index", question("q", model.QuestionSingleChoice, "1", 10), "0", false},
		{"single choice padded index", question("q", model.QuestionSingleChoice, "2", 10), " 2 ", true},
		{"single choice not a number", question("q", model.QuestionSingleChoice, "1", 10), "B", false},
		{"true false case insensitive", question("q", model.QuestionTrueFalse, "true", 5), "True", true},
		{"true false wrong", question("q", model.QuestionTrueFalse, "true", 5), "false", false},
		{"short answer trimmed", question("q", model.QuestionShortAnswer, "paris", 5), " Paris ", true},
		{"short answer no partial match", question("q", model.QuestionShortAnswer, "Paris", 5), "Paris, France", false},
		{"essay exact only", question("q", model.QuestionEssay, "photosynthesis", 5), "It is photosynthesis", false},
		{"essay same text", question("q", model.QuestionEssay, "Photosynthesis", 5), "photosynthesis ", true},
		{"unknown type", question("q", model.QuestionType("matching"), "a", 5), "a", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCorrect(tt.q, tt.submitted))
		})
	}
}

func TestGradeAllCorrect(t *testing.T) {
	qs := []model.AssessmentQuestion{
		question("q1", model.QuestionSingleChoice, "1", 10),
		question("q2", model.QuestionTrueFalse, "true", 5),
	}

	res := Grade(qs, 15, []model.AttemptAnswer{answer("q2", "true"), answer("q1", "1")})

	assert.Equal(t, 15, res.Score)
	assert.Equal(t, 100.0, res.Percentage)
	assert.Zero(t, res.Ungraded)
	for _, a := range res.Answers {
		require.NotNil(t, a.IsCorrect)
		require.NotNil(t, a.PointsEarned)
		assert.True(t, *a.IsCorrect)
	}
}

func TestGradeAllWrong(t *testing.T) {
	qs := []model.AssessmentQuestion{
		question("q1", model.QuestionSingleChoice, "1", 10),
		question("q2", model.QuestionTrueFalse, "true", 5),
	}

	res := Grade(qs, 15, []model.AttemptAnswer{answer("q1", "0"), answer("q2", "false")})

	assert.Equal(t, 0, res.Score)
	assert.Equal(t, 0.0, res.Percentage)
	for _, a := range res.Answers {
		require.NotNil(t, a.PointsEarned)
		assert.Equal(t, 0, *a.PointsEarned)
	}
}

func TestGradeScoreIsSumOfPointsEarned(t *testing.T) {
	qs := []model.AssessmentQuestion{
		question("q1", model.QuestionSingleChoice, "3", 4),
		question("q2", model.QuestionTrueFalse, "false", 3),
		question("q3", model.QuestionShortAnswer, "mitochondria", 7),
	}
	answers := []model.AttemptAnswer{answer("q1", "3"), answer("q2", "true"), answer("q3", "Mitochondria")}

	res := Grade(qs, TotalPoints(qs), answers)

	sum := 0
	for i, a := range res.Answers {
		require.NotNil(t, a.PointsEarned)
		assert.Contains(t, []int{0, qs[i].Points}, *a.PointsEarned)
		sum += *a.PointsEarned
	}
	assert.Equal(t, sum, res.Score)
	assert.InDelta(t, 100*float64(res.Score)/14, res.Percentage, 1e-9)
}

func TestGradeSkipsUnknownQuestion(t *testing.T) {
	qs := []model.AssessmentQuestion{question("q1", model.QuestionSingleChoice, "1", 10)}

	res := Grade(qs, 10, []model.AttemptAnswer{answer("q1", "1"), answer("missing", "1")})

	assert.Equal(t, 10, res.Score)
	assert.Equal(t, 1, res.Ungraded)
	assert.Nil(t, res.Answers[1].IsCorrect)
	assert.Nil(t, res.Answers[1].PointsEarned)
	assert.Equal(t, "missing", res.Answers[1].QuestionID)
}

func TestPercentageZeroTotal(t *testing.T) {
	p := Percentage(0, 0)
	assert.False(t, math.IsNaN(p))
	assert.Equal(t, 0.0, p)
}

func TestTotalPoints(t *testing.T) {
	qs := []model.AssessmentQuestion{
		question("a", model.QuestionEssay, "", 2),
		question("b", model.QuestionEssay, "", 8),
	}
	assert.Equal(t, 10, TotalPoints(qs))
}

func TestFeedbackBands(t *testing.T) {
	assert.NotEqual(t, Feedback(95), Feedback(50))
	assert.Equal(t, Feedback(90), Feedback(100))
}
