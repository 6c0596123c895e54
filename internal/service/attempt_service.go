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

// Submission triggers, used as the metric label.
const (
	TriggerStudent  = "student"
	TriggerDeadline = "deadline"
)

type AttemptService struct {
	DB             *gorm.DB
	ExamRepo       *repository.ExamRepository
	AssignmentRepo *repository.AssignmentRepository
	AttemptRepo    *repository.AttemptRepository
	ViolationRepo  *repository.ViolationRepository
	Grading        *GradingService
	Events         EventPublisher
	now            func() time.Time
}

func NewAttemptService(
	db *gorm.DB,
	examRepo *repository.ExamRepository,
	assignmentRepo *repository.AssignmentRepository,
	attemptRepo *repository.AttemptRepository,
	violationRepo *repository.ViolationRepository,
	grading *GradingService,
	events EventPublisher,
) *AttemptService {
	return &AttemptService{
		DB:             db,
		ExamRepo:       examRepo,
		AssignmentRepo: assignmentRepo,
		AttemptRepo:    attemptRepo,
		ViolationRepo:  violationRepo,
		Grading:        grading,
		Events:         events,
		now:            time.Now,
	}
}

// SaveAnswer stores the latest answer text for a question. Saving from an IP
// other than the one captured at start leaves a multiple_ip audit row, once
// per distinct address; it does not count towards the threshold.
func (s *AttemptService) SaveAnswer(ctx context.Context, actor authz.Actor, attemptID string, questionID uint, text string, client ClientInfo) (*model.Answer, error) {
	var saved *model.Answer
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
		if _, err := s.ExamRepo.WithTx(tx).FindQuestion(ctx, a.ExamID, questionID); err != nil {
			return err
		}

		saved, err = attempts.UpsertAnswer(ctx, a.ID, questionID, text)
		if err != nil {
			return err
		}

		if client.IP != "" && a.IPAddress != "" && client.IP != a.IPAddress {
			return s.recordIPChange(ctx, tx, a, client.IP)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (s *AttemptService) recordIPChange(ctx context.Context, tx *gorm.DB, a *model.Attempt, ip string) error {
	violations := s.ViolationRepo.WithTx(tx)
	seen, err := violations.ExistsForIP(ctx, a.ID, model.ViolationMultipleIP, ip)
	if err != nil || seen {
		return err
	}
	logger.Log.Info("attempt accessed from new address",
		zap.String("attemptId", a.ID),
		zap.String("startIp", a.IPAddress),
		zap.String("ip", ip),
	)
	return violations.Append(ctx, &model.ViolationLog{
		AttemptID:     a.ID,
		ViolationType: model.ViolationMultipleIP,
		Details:       "answer saved from " + ip + ", attempt started from " + a.IPAddress,
		IPAddress:     ip,
		Timestamp:     s.now(),
	})
}

// Submit ends an in-progress attempt and grades it in the same transaction.
// It is the only path that marks the assignment completed.
func (s *AttemptService) Submit(ctx context.Context, actor authz.Actor, attemptID string) (*model.Attempt, error) {
	return s.submit(ctx, actor, attemptID, TriggerStudent)
}

func (s *AttemptService) submit(ctx context.Context, actor authz.Actor, attemptID, trigger string) (*model.Attempt, error) {
	ctx, span := tracing.Tracer.Start(ctx, "attempt.submit")
	defer span.End()
	span.SetAttributes(attribute.String("attempt.id", attemptID), attribute.String("trigger", trigger))

	var attempt *model.Attempt
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
		a.Status = model.AttemptSubmitted
		a.EndTime = &now
		if err := attempts.Update(ctx, a); err != nil {
			return err
		}

		exam, err := s.ExamRepo.WithTx(tx).FindByID(ctx, a.ExamID)
		if err != nil {
			return err
		}
		if err := s.Grading.gradeLocked(ctx, tx, exam, a); err != nil {
			return err
		}

		if err := s.AssignmentRepo.WithTx(tx).MarkCompleted(ctx, a.AssignmentID); err != nil {
			return err
		}
		attempt = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.AttemptsSubmitted.WithLabelValues(trigger).Inc()
	logger.Log.Info("attempt submitted",
		zap.String("attemptId", attempt.ID),
		zap.Uint("studentId", attempt.StudentID),
		zap.String("trigger", trigger),
		zap.String("status", string(attempt.Status)),
	)

	publish(ctx, s.Events, newAttemptEvent(EventSubmitted, attempt, s.now()))
	if attempt.Status == model.AttemptEvaluated {
		publish(ctx, s.Events, newAttemptEvent(EventEvaluated, attempt, s.now()))
	}
	return attempt, nil
}

// Get returns the attempt with its answers to the owner or the exam's staff.
func (s *AttemptService) Get(ctx context.Context, actor authz.Actor, attemptID string) (*model.Attempt, error) {
	a, err := s.AttemptRepo.FindByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if err := s.checkView(ctx, actor, a); err != nil {
		return nil, err
	}

	answers, err := s.AttemptRepo.ListAnswers(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	a.Answers = answers
	return a, nil
}

func (s *AttemptService) checkView(ctx context.Context, actor authz.Actor, a *model.Attempt) error {
	if actor.IsOwner(a.StudentID) {
		return nil
	}
	exam, err := s.ExamRepo.FindByID(ctx, a.ExamID)
	if err != nil {
		return err
	}
	if !authz.CanManage(actor, exam) {
		return util.ErrUnauthorized
	}
	return nil
}

// ListMine is the exam history of the calling student.
func (s *AttemptService) ListMine(ctx context.Context, actor authz.Actor) ([]model.Attempt, error) {
	if actor.Role() != model.Student {
		return nil, util.ErrUnauthorized
	}
	return s.AttemptRepo.ListByStudent(ctx, actor.ID())
}

func (s *AttemptService) ListByExam(ctx context.Context, actor authz.Actor, examID uint) ([]model.Attempt, error) {
	exam, err := s.ExamRepo.FindByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	if !authz.CanManage(actor, exam) {
		return nil, util.ErrUnauthorized
	}
	return s.AttemptRepo.ListByExam(ctx, examID)
}
