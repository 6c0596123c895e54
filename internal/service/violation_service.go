package service

import (
	"context"
	"time"

	"online_exam_backend/internal/authz"
	"online_exam_backend/internal/model"
	"online_exam_backend/internal/repository"
	"online_exam_backend/internal/util"
	"online_exam_backend/pkg/logger"
	"online_exam_backend/pkg/monitoring"
	"online_exam_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ViolationThreshold is the number of counted violations (tab switches plus
// copy/paste) at which an attempt is terminated.
const ViolationThreshold = 3

type ViolationResult struct {
	AutoSubmitted   bool           `json:"autoSubmitted"`
	TotalViolations int            `json:"totalViolations"`
	Attempt         *model.Attempt `json:"attempt"`
}

type ViolationService struct {
	DB            *gorm.DB
	ExamRepo      *repository.ExamRepository
	AttemptRepo   *repository.AttemptRepository
	ViolationRepo *repository.ViolationRepository
	Events        EventPublisher
	now           func() time.Time
}

func NewViolationService(db *gorm.DB, examRepo *repository.ExamRepository, attemptRepo *repository.AttemptRepository, violationRepo *repository.ViolationRepository, events EventPublisher) *ViolationService {
	return &ViolationService{
		DB:            db,
		ExamRepo:      examRepo,
		AttemptRepo:   attemptRepo,
		ViolationRepo: violationRepo,
		Events:        events,
		now:           time.Now,
	}
}

// LogViolation appends one audit row and bumps the matching counter. Reaching
// ViolationThreshold ends the attempt as auto_submitted without grading it.
func (s *ViolationService) LogViolation(ctx context.Context, actor authz.Actor, attemptID string, vt model.ViolationType, details string) (*ViolationResult, error) {
	if !vt.Valid() {
		return nil, util.ErrInvalidViolationType
	}

	ctx, span := tracing.Tracer.Start(ctx, "violation.log")
	defer span.End()
	span.SetAttributes(attribute.String("attempt.id", attemptID), attribute.String("violation.type", string(vt)))

	var res ViolationResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		attempts := s.AttemptRepo.WithTx(tx)

		a, err := attempts.FindByIDForUpdate(ctx, attemptID)
		if err != nil {
			return err
		}
		if !actor.IsOwner(a.StudentID) {
			return util.ErrUnauthorized
		}
		if a.Status != model.AttemptInProgress {
			return util.ErrAttemptNotInProgress
		}

		now := s.now()
		if err := s.ViolationRepo.WithTx(tx).Append(ctx, &model.ViolationLog{
			AttemptID:     a.ID,
			ViolationType: vt,
			Details:       details,
			Timestamp:     now,
		}); err != nil {
			return err
		}

		switch vt {
		case model.ViolationTabSwitch:
			a.TabSwitchCount++
		case model.ViolationCopyPaste:
			a.CopyPasteCount++
		}

		res.TotalViolations = a.TotalViolations()
		if res.TotalViolations >= ViolationThreshold {
			a.Status = model.AttemptAutoSubmitted
			a.EndTime = &now
			a.ObtainedMarks = 0
			a.Percentage = 0
			res.AutoSubmitted = true
		}

		if err := attempts.Update(ctx, a); err != nil {
			return err
		}
		res.Attempt = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.ViolationsLogged.WithLabelValues(string(vt)).Inc()
	ev := newAttemptEvent(EventViolation, res.Attempt, s.now())
	ev.ViolationType = vt
	publish(ctx, s.Events, ev)

	if res.AutoSubmitted {
		monitoring.AttemptsAutoSubmitted.Inc()
		logger.Log.Warn("attempt auto-submitted",
			zap.String("attemptId", res.Attempt.ID),
			zap.Uint("studentId", res.Attempt.StudentID),
			zap.Uint("examId", res.Attempt.ExamID),
			zap.Int("violations", res.TotalViolations),
		)
		publish(ctx, s.Events, newAttemptEvent(EventAutoSubmitted, res.Attempt, s.now()))
	}
	return &res, nil
}

// List returns the audit trail of an attempt to its owner or the exam's staff.
func (s *ViolationService) List(ctx context.Context, actor authz.Actor, attemptID string) ([]model.ViolationLog, error) {
	a, err := s.AttemptRepo.FindByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if !actor.IsOwner(a.StudentID) {
		exam, err := s.ExamRepo.FindByID(ctx, a.ExamID)
		if err != nil {
			return nil, err
		}
		if !authz.CanView(actor, exam, a.StudentID) {
			return nil, util.ErrUnauthorized
		}
	}
	return s.ViolationRepo.ListByAttempt(ctx, attemptID)
}
