package model

import "time"

type AttemptStatus string

const (
	AttemptInProgress    AttemptStatus = "in_progress"
	AttemptSubmitted     AttemptStatus = "submitted"
	AttemptAutoSubmitted AttemptStatus = "auto_submitted"
	AttemptEvaluated     AttemptStatus = "evaluated"
)

// Terminal reports whether the attempt left in_progress.
func (s AttemptStatus) Terminal() bool {
	return s != AttemptInProgress
}

// Attempt is one timed run of a student through an exam.
// EndTime is nil exactly while Status is in_progress.
//
// swagger:model Attempt
type Attempt struct {
	UUIDBase
	AssignmentID   string         `gorm:"index;type:varchar(36);not null" json:"assignmentId"`
	ExamID         uint           `gorm:"index;not null" json:"examId"`
	StudentID      uint           `gorm:"index;not null" json:"studentId"`
	Status         AttemptStatus  `gorm:"size:20;index;default:'in_progress'" json:"status"`
	StartTime      time.Time      `gorm:"not null" json:"startTime"`
	EndTime        *time.Time     `json:"endTime"`
	TotalMarks     int            `gorm:"default:0" json:"totalMarks"`
	ObtainedMarks  float64        `gorm:"default:0" json:"obtainedMarks"`
	Percentage     float64        `gorm:"default:0" json:"percentage"`
	TabSwitchCount int            `gorm:"default:0" json:"tabSwitchCount"`
	CopyPasteCount int            `gorm:"default:0" json:"copyPasteCount"`
	IPAddress      string         `gorm:"size:64" json:"ipAddress"`
	UserAgent      string         `gorm:"size:512" json:"userAgent"`
	Answers        []Answer       `gorm:"foreignKey:AttemptID;constraint:OnDelete:CASCADE" json:"answers,omitempty"`
	Violations     []ViolationLog `gorm:"foreignKey:AttemptID;constraint:OnDelete:CASCADE" json:"violations,omitempty"`
}

func (Attempt) TableName() string {
	return "exam_attempts"
}

// TotalViolations counts the events that weigh towards auto-submission.
func (a *Attempt) TotalViolations() int {
	return a.TabSwitchCount + a.CopyPasteCount
}

// Answer holds the latest text a student saved for one question of an attempt.
// IsCorrect and MarksObtained stay nil until the answer is graded.
//
// swagger:model Answer
type Answer struct {
	UUIDBase
	AttemptID     string     `gorm:"uniqueIndex:idx_answer_attempt_question;type:varchar(36);not null" json:"attemptId"`
	QuestionID    uint       `gorm:"uniqueIndex:idx_answer_attempt_question;not null" json:"questionId"`
	AnswerText    string     `gorm:"type:text" json:"answerText"`
	IsCorrect     *bool      `json:"isCorrect"`
	MarksObtained *float64   `json:"marksObtained"`
	GradedBy      *uint      `json:"gradedBy,omitempty"`
	GradedAt      *time.Time `json:"gradedAt,omitempty"`
	Feedback      string     `gorm:"type:text" json:"feedback,omitempty"`
}

func (Answer) TableName() string {
	return "exam_answers"
}
