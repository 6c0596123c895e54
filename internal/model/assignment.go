package model

import "time"

// Assignment binds one student to one exam. The (exam_id, student_id) pair is unique.
//
// swagger:model Assignment
type Assignment struct {
	UUIDBase
	ExamID      uint      `gorm:"uniqueIndex:idx_assignment_exam_student;not null" json:"examId"`
	StudentID   uint      `gorm:"uniqueIndex:idx_assignment_exam_student;not null" json:"studentId"`
	AssignedBy  *uint     `json:"assignedBy,omitempty"`
	AssignedAt  time.Time `json:"assignedAt"`
	IsCompleted bool      `gorm:"default:false" json:"isCompleted"`
	Exam        *Exam     `gorm:"foreignKey:ExamID;constraint:OnDelete:CASCADE" json:"-"`
	Attempts    []Attempt `gorm:"foreignKey:AssignmentID;constraint:OnDelete:CASCADE" json:"attempts,omitempty"`
}

func (Assignment) TableName() string {
	return "exam_assignments"
}
