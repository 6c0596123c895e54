package model

import (
	"strings"
	"time"
)

type ExamStatus string

const (
	ExamDraft     ExamStatus = "draft"
	ExamPending   ExamStatus = "pending"
	ExamApproved  ExamStatus = "approved"
	ExamRejected  ExamStatus = "rejected"
	ExamActive    ExamStatus = "active"
	ExamCompleted ExamStatus = "completed"
)

type QuestionType string

const (
	QuestionMCQ        QuestionType = "mcq"
	QuestionTrueFalse  QuestionType = "true_false"
	QuestionSubjective QuestionType = "subjective"
)

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionMCQ, QuestionTrueFalse, QuestionSubjective:
		return true
	}
	return false
}

// AutoGraded reports whether answers to this type are scored by key comparison.
func (t QuestionType) AutoGraded() bool {
	return t == QuestionMCQ || t == QuestionTrueFalse
}

// swagger:model Exam
type Exam struct {
	BaseModel
	Title                    string     `gorm:"size:200;not null" json:"title"`
	Description              string     `gorm:"type:text" json:"description"`
	Instructions             string     `gorm:"type:text" json:"instructions"`
	Subject                  string     `gorm:"size:100" json:"subject"`
	TeacherID                uint       `gorm:"index;not null" json:"teacherId"`
	StartTime                time.Time  `json:"startTime"`
	EndTime                  time.Time  `json:"endTime"`
	DurationMinutes          int        `json:"durationMinutes"`
	TotalMarks               int        `json:"totalMarks"`
	PassingMarks             int        `json:"passingMarks"`
	NegativeMarking          bool       `gorm:"default:false" json:"negativeMarking"`
	NegativeMarksPerQuestion float64    `gorm:"default:0" json:"negativeMarksPerQuestion"`
	ShuffleQuestions         bool       `gorm:"default:false" json:"shuffleQuestions"`
	ShuffleOptions           bool       `gorm:"default:false" json:"shuffleOptions"`
	Status                   ExamStatus `gorm:"size:20;index;default:'draft'" json:"status"`
	ReviewedBy               *uint      `json:"reviewedBy,omitempty"`
	ReviewedAt               *time.Time `json:"reviewedAt,omitempty"`
	Questions                []Question `gorm:"foreignKey:ExamID;constraint:OnDelete:CASCADE" json:"questions,omitempty"`
}

func (Exam) TableName() string {
	return "exams"
}

// OpenAt reports whether t falls inside the schedule window. A zero bound is open.
func (e *Exam) OpenAt(t time.Time) bool {
	if !e.StartTime.IsZero() && t.Before(e.StartTime) {
		return false
	}
	if !e.EndTime.IsZero() && t.After(e.EndTime) {
		return false
	}
	return true
}

// swagger:model Question
type Question struct {
	BaseModel
	ExamID        uint         `gorm:"index;not null" json:"examId"`
	QuestionType  QuestionType `gorm:"size:20;not null" json:"questionType"`
	Text          string       `gorm:"type:text;not null" json:"text"`
	OptionA       string       `gorm:"size:255" json:"optionA,omitempty"`
	OptionB       string       `gorm:"size:255" json:"optionB,omitempty"`
	OptionC       string       `gorm:"size:255" json:"optionC,omitempty"`
	OptionD       string       `gorm:"size:255" json:"optionD,omitempty"`
	CorrectAnswer string       `gorm:"size:255" json:"correctAnswer,omitempty"`
	Marks         int          `gorm:"not null;default:1" json:"marks"`
	Order         int          `gorm:"column:order_index;default:0" json:"order"`
}

func (Question) TableName() string {
	return "questions"
}

// Option is one labelled choice of a multiple-choice question.
type Option struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// Options returns the non-empty choices in A..D order.
func (q *Question) Options() []Option {
	var opts []Option
	for _, o := range []Option{
		{Key: "A", Text: q.OptionA},
		{Key: "B", Text: q.OptionB},
		{Key: "C", Text: q.OptionC},
		{Key: "D", Text: q.OptionD},
	} {
		if strings.TrimSpace(o.Text) != "" {
			opts = append(opts, o)
		}
	}
	return opts
}
