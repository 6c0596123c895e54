package model

import "time"

type ViolationType string

const (
	ViolationTabSwitch  ViolationType = "tab_switch"
	ViolationCopyPaste  ViolationType = "copy_paste"
	ViolationMultipleIP ViolationType = "multiple_ip"
)

func (t ViolationType) Valid() bool {
	switch t {
	case ViolationTabSwitch, ViolationCopyPaste, ViolationMultipleIP:
		return true
	}
	return false
}

// ViolationLog is append-only. Rows are written once and never updated.
//
// swagger:model ViolationLog
type ViolationLog struct {
	ID            string        `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AttemptID     string        `gorm:"index;type:varchar(36);not null" json:"attemptId"`
	ViolationType ViolationType `gorm:"size:20;index;not null" json:"violationType"`
	Details       string        `gorm:"type:text" json:"details"`
	IPAddress     string        `gorm:"size:64" json:"ipAddress,omitempty"`
	Timestamp     time.Time     `gorm:"not null" json:"timestamp"`
}

func (ViolationLog) TableName() string {
	return "violation_logs"
}
