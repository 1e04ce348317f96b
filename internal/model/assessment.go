package model

import (
	"gorm.io/datatypes"
)

type QuestionType string

const (
	QuestionSingleChoice QuestionType = "single_choice"
	QuestionTrueFalse    QuestionType = "true_false"
	QuestionShortAnswer  QuestionType = "short_answer"
	QuestionEssay        QuestionType = "essay"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// swagger:model Assessment
type Assessment struct {
	UUIDBase
	Title           string               `gorm:"size:255;not null" json:"title"`
	Description     string               `gorm:"type:text" json:"description"`
	Subject         string               `gorm:"size:100;index" json:"subject"`
	Grade           string               `gorm:"size:50;index" json:"grade"`
	TeacherID       uint                 `gorm:"index" json:"teacherId"`
	DurationMinutes int                  `gorm:"default:0" json:"durationMinutes"`
	TotalPoints     int                  `gorm:"default:0" json:"totalPoints"`
	IsPublished     bool                 `gorm:"default:false;index" json:"isPublished"`
	AttemptCount    int                  `gorm:"default:0" json:"attempts"`
	AverageScore    float64              `gorm:"default:0" json:"averageScore"`
	Difficulty      Difficulty           `gorm:"size:20;default:'easy'" json:"difficulty"`
	Tags            datatypes.JSON       `json:"tags,omitempty"`
	Instructions    string               `gorm:"type:text" json:"instructions"`
	Questions       []AssessmentQuestion `gorm:"foreignKey:AssessmentID" json:"questions,omitempty"`
}

func (Assessment) TableName() string {
	return "assessments"
}

// swagger:model AssessmentQuestion
type AssessmentQuestion struct {
	UUIDBase
	AssessmentID  string         `gorm:"index;type:varchar(36)" json:"assessmentId"`
	Order         int            `gorm:"column:sort_order;default:0" json:"order"`
	QuestionType  QuestionType   `gorm:"size:30;not null" json:"questionType"`
	Prompt        string         `gorm:"type:text;not null" json:"prompt"`
	Options       datatypes.JSON `json:"options,omitempty"`
	CorrectAnswer string         `gorm:"type:text" json:"correctAnswer"`
	Points        int            `gorm:"default:0" json:"points"`
	Difficulty    Difficulty     `gorm:"size:20" json:"difficulty"`
	Subject       string         `gorm:"size:100" json:"subject"`
	Grade         string         `gorm:"size:50" json:"grade"`
	Tags          datatypes.JSON `json:"tags,omitempty"`
}

func (AssessmentQuestion) TableName() string {
	return "assessment_questions"
}
