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

type AssignmentService struct {
	DB             *gorm.DB
	ExamRepo       *repository.ExamRepository
	AssignmentRepo *repository.AssignmentRepository
	AttemptRepo    *repository.AttemptRepository
	Events         EventPublisher
	now            func() time.Time
}

func NewAssignmentService(db *gorm.DB, examRepo *repository.ExamRepository, assignmentRepo *repository.AssignmentRepository, attemptRepo *repository.AttemptRepository, events EventPublisher) *AssignmentService {
	return &AssignmentService{
		DB:             db,
		ExamRepo:       examRepo,
		AssignmentRepo: assignmentRepo,
		AttemptRepo:    attemptRepo,
		Events:         events,
		now:            time.Now,
	}
}

// StartAttempt resolves the student's assignment for an exam and returns its
// in-progress attempt, creating one when none exists. A student gets one
// attempt per exam; re-entering after an interruption resumes it.
func (s *AssignmentService) StartAttempt(ctx context.Context, actor authz.Actor, examID uint, client ClientInfo) (*model.Attempt, error) {
	if actor.Role() != model.Student {
		return nil, util.ErrUnauthorized
	}

	ctx, span := tracing.Tracer.Start(ctx, "attempt.start")
	defer span.End()
	span.SetAttributes(attribute.Int64("exam.id", int64(examID)), attribute.Int64("student.id", int64(actor.ID())))

	var (
		attempt *model.Attempt
		created bool
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exam, err := s.ExamRepo.WithTx(tx).FindByID(ctx, examID)
		if err != nil {
			return err
		}
		if exam.Status != model.ExamApproved {
			return util.ErrExamNotApproved
		}

		assignments := s.AssignmentRepo.WithTx(tx)
		attempts := s.AttemptRepo.WithTx(tx)
		now := s.now()

		asg, err := assignments.GetOrCreate(ctx, exam.ID, actor.ID(), nil, now)
		if err != nil {
			return err
		}
		asg, err = assignments.FindForUpdate(ctx, asg.ID)
		if err != nil {
			return err
		}

		banned, err := attempts.HasStatus(ctx, asg.ID, model.AttemptAutoSubmitted)
		if err != nil {
			return err
		}
		if banned {
			return util.ErrBanned
		}
		if asg.IsCompleted {
			return util.ErrAlreadyCompleted
		}

		open, err := attempts.FindInProgress(ctx, asg.ID)
		if err != nil {
			return err
		}
		if open != nil {
			attempt = open
			return nil
		}

		attempt = &model.Attempt{
			AssignmentID: asg.ID,
			ExamID:       exam.ID,
			StudentID:    actor.ID(),
			Status:       model.AttemptInProgress,
			StartTime:    now,
			TotalMarks:   exam.TotalMarks,
			IPAddress:    client.IP,
			UserAgent:    client.UserAgent,
		}
		created = true
		return attempts.Create(ctx, attempt)
	})
	if err != nil {
		return nil, err
	}

	if created {
		monitoring.AttemptsStarted.Inc()
		logger.Log.Info("attempt started",
			zap.String("attemptId", attempt.ID),
			zap.Uint("examId", attempt.ExamID),
			zap.Uint("studentId", attempt.StudentID),
			zap.String("ip", attempt.IPAddress),
		)
		publish(ctx, s.Events, newAttemptEvent(EventAttemptStarted, attempt, s.now()))
	}
	return attempt, nil
}

// Assign pre-creates assignments for the given students. Existing ones are
// returned unchanged.
func (s *AssignmentService) Assign(ctx context.Context, actor authz.Actor, examID uint, studentIDs []uint) ([]model.Assignment, error) {
	exam, err := s.ExamRepo.FindByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	if !authz.CanManage(actor, exam) {
		return nil, util.ErrUnauthorized
	}
	if len(studentIDs) == 0 {
		return nil, util.Invalid("studentIds is empty")
	}

	assignedBy := actor.ID()
	result := make([]model.Assignment, 0, len(studentIDs))
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		assignments := s.AssignmentRepo.WithTx(tx)
		seen := make(map[uint]bool, len(studentIDs))
		for _, id := range studentIDs {
			if id == 0 || seen[id] {
				continue
			}
			seen[id] = true
			asg, err := assignments.GetOrCreate(ctx, exam.ID, id, &assignedBy, s.now())
			if err != nil {
				return err
			}
			result = append(result, *asg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *AssignmentService) ListByExam(ctx context.Context, actor authz.Actor, examID uint) ([]model.Assignment, error) {
	exam, err := s.ExamRepo.FindByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	if !authz.CanManage(actor, exam) {
		return nil, util.ErrUnauthorized
	}
	return s.AssignmentRepo.ListByExam(ctx, examID)
}
