package service

import (
	"context"
	"time"

	"online_exam_backend/internal/model"
)

type EventType string

const (
	EventAttemptStarted EventType = "attempt_started"
	EventViolation      EventType = "violation"
	EventAutoSubmitted  EventType = "auto_submitted"
	EventSubmitted      EventType = "submitted"
	EventEvaluated      EventType = "evaluated"
)

// AttemptEvent is what proctors see on the live monitor of an exam.
type AttemptEvent struct {
	Type           EventType           `json:"type"`
	ExamID         uint                `json:"examId"`
	AttemptID      string              `json:"attemptId"`
	StudentID      uint                `json:"studentId"`
	Status         model.AttemptStatus `json:"status"`
	TabSwitchCount int                 `json:"tabSwitchCount"`
	CopyPasteCount int                 `json:"copyPasteCount"`
	ViolationType  model.ViolationType `json:"violationType,omitempty"`
	At             time.Time           `json:"at"`
}

// EventPublisher delivers attempt events. Implementations must not block the
// caller for long and must swallow their own errors.
type EventPublisher interface {
	Publish(ctx context.Context, ev AttemptEvent)
}

func newAttemptEvent(t EventType, a *model.Attempt, at time.Time) AttemptEvent {
	return AttemptEvent{
		Type:           t,
		ExamID:         a.ExamID,
		AttemptID:      a.ID,
		StudentID:      a.StudentID,
		Status:         a.Status,
		TabSwitchCount: a.TabSwitchCount,
		CopyPasteCount: a.CopyPasteCount,
		At:             at,
	}
}

func publish(ctx context.Context, p EventPublisher, ev AttemptEvent) {
	if p == nil {
		return
	}
	p.Publish(ctx, ev)
}

// ClientInfo is the request origin captured on attempt start and compared on
// every answer save.
type ClientInfo struct {
	IP        string
	UserAgent string
}
