package model

import "time"

// Certificate records the rendered result document of an evaluated attempt.
//
// swagger:model Certificate
type Certificate struct {
	UUIDBase
	AttemptID  string    `gorm:"uniqueIndex;type:varchar(36);not null" json:"attemptId"`
	ExamID     uint      `gorm:"index;not null" json:"examId"`
	StudentID  uint      `gorm:"index;not null" json:"studentId"`
	ObjectKey  string    `gorm:"size:255;not null" json:"objectKey"`
	URL        string    `gorm:"size:512" json:"url"`
	Passed     bool      `json:"passed"`
	Percentage float64   `json:"percentage"`
	IssuedAt   time.Time `json:"issuedAt"`
}

func (Certificate) TableName() string {
	return "exam_certificates"
}
