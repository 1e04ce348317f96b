package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptAbandoned  AttemptStatus = "abandoned"
)

// IsTerminal completed 和 abandoned 为终态
func (s AttemptStatus) IsTerminal() bool {
	return s == AttemptCompleted || s == AttemptAbandoned
}

// swagger:model AssessmentAttempt
type AssessmentAttempt struct {
	UUIDBase
	AssessmentID     string          `gorm:"index;type:varchar(36)" json:"assessmentId"`
	StudentID        uint            `gorm:"index" json:"studentId"`
	StudentName      string          `gorm:"size:100" json:"studentName"`
	Status           AttemptStatus   `gorm:"size:20;default:'in_progress';index" json:"status"`
	StartedAt        time.Time       `json:"startedAt"`
	EndedAt          *time.Time      `json:"endedAt,omitempty"`
	Score            int             `gorm:"default:0" json:"score"`
	Percentage       float64         `gorm:"default:0" json:"percentage"`
	TimeSpentSeconds int             `gorm:"default:0" json:"timeSpent"`
	CreditsAwarded   int             `gorm:"default:0" json:"creditsAwarded"`
	Feedback         string          `gorm:"type:text" json:"feedback,omitempty"`
	Answers          []AttemptAnswer `gorm:"foreignKey:AttemptID" json:"answers"`
}

func (AssessmentAttempt) TableName() string {
	return "assessment_attempts"
}

// AttemptAnswer IsCorrect / PointsEarned 只在评分后写入
type AttemptAnswer struct {
	UUIDBase
	AttemptID        string      `gorm:"index;type:varchar(36)" json:"-"`
	QuestionID       string      `gorm:"type:varchar(36)" json:"questionId"`
	Position         int         `gorm:"default:0" json:"-"`
	Answer           AnswerValue `gorm:"type:text" json:"answer"`
	TimeSpentSeconds int         `gorm:"default:0" json:"timeSpent"`
	IsCorrect        *bool       `json:"isCorrect"`
	PointsEarned     *int        `json:"pointsEarned"`
}

func (AttemptAnswer) TableName() string {
	return "attempt_answers"
}

// AnswerValue 提交的答案。选择题可以提交选项下标（JSON 数字），其余题型为字符串
type AnswerValue string

func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = AnswerValue(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*v = AnswerValue(n.String())
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err != nil {
		return err
	}
	*v = AnswerValue(strconv.FormatBool(b))
	return nil
}
