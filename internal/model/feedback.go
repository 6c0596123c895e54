package model

import "time"

// swagger:model Feedback
type Feedback struct {
	BaseModel
	ExamID          uint       `gorm:"index;not null" json:"examId"`
	StudentID       uint       `gorm:"index;not null" json:"studentId"`
	Comment         string     `gorm:"type:text;not null" json:"comment"`
	Rating          int        `gorm:"not null" json:"rating"`
	IsReviewed      bool       `gorm:"default:false" json:"isReviewed"`
	TeacherResponse string     `gorm:"type:text" json:"teacherResponse,omitempty"`
	RespondedAt     *time.Time `json:"respondedAt,omitempty"`
}

func (Feedback) TableName() string {
	return "exam_feedbacks"
}
