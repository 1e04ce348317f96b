// Package scoring grades submitted answers and turns a percentage into credits.
// Everything here is pure: no storage, no clock.
package scoring

import (
	"strconv"
	"strings"

	"teacher_connect_backend/internal/model"
)

// Result is the outcome of grading one attempt.
type Result struct {
	Answers    []model.AttemptAnswer
	Score      int
	Percentage float64
	// Ungraded counts answers whose question id matched nothing.
	Ungraded int
}

// Grade compares each answer with its question. Answers referencing an unknown
// question are passed through with IsCorrect and PointsEarned left nil.
func Grade(questions []model.AssessmentQuestion, totalPoints int, answers []model.AttemptAnswer) Result {
	byID := make(map[string]model.AssessmentQuestion, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	res := Result{Answers: make([]model.AttemptAnswer, len(answers))}
	for i, ans := range answers {
		q, ok := byID[ans.QuestionID]
		if !ok {
			ans.IsCorrect = nil
			ans.PointsEarned = nil
			res.Answers[i] = ans
			res.Ungraded++
			continue
		}

		correct := IsCorrect(q, string(ans.Answer))
		points := 0
		if correct {
			points = q.Points
		}
		ans.IsCorrect = &correct
		ans.PointsEarned = &points
		res.Answers[i] = ans
		res.Score += points
	}

	res.Percentage = Percentage(res.Score, totalPoints)
	return res
}

// IsCorrect applies the comparison policy of the question's type.
func IsCorrect(q model.AssessmentQuestion, submitted string) bool {
	switch q.QuestionType {
	case model.QuestionSingleChoice:
		got, err := strconv.Atoi(strings.TrimSpace(submitted))
		if err != nil {
			return false
		}
		want, err := strconv.Atoi(strings.TrimSpace(q.CorrectAnswer))
		if err != nil {
			return false
		}
		return got == want
	case model.QuestionTrueFalse:
		return strings.EqualFold(submitted, q.CorrectAnswer)
	case model.QuestionShortAnswer, model.QuestionEssay:
		return normalize(submitted) == normalize(q.CorrectAnswer)
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Percentage returns score/total*100, or 0 for an assessment worth no points.
func Percentage(score, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(score) / float64(total) * 100
}

// TotalPoints sums question points.
func TotalPoints(questions []model.AssessmentQuestion) int {
	total := 0
	for _, q := range questions {
		total += q.Points
	}
	return total
}

// Feedback is the short message stored on a completed attempt.
func Feedback(percentage float64) string {
	switch {
	case percentage >= 90:
		return "Excellent work! You have mastered this material."
	case percentage >= 80:
		return "Great job! Just a few details to review."
	case percentage >= 70:
		return "Good effort. Review the questions you missed."
	case percentage >= 60:
		return "You passed. Spend some more time on this topic."
	default:
		return "Keep practicing. Revisit the lesson and try again."
	}
}
