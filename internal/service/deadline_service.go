package service

import (
	"context"
	"time"

	"online_exam_backend/internal/authz"
	"online_exam_backend/internal/model"
	"online_exam_backend/internal/repository"
	"online_exam_backend/internal/util"
	"online_exam_backend/pkg/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DeadlineService submits in-progress attempts whose time ran out. It goes
// through the regular submit path with the system actor.
type DeadlineService struct {
	ExamRepo    *repository.ExamRepository
	AttemptRepo *repository.AttemptRepository
	Attempts    *AttemptService
	Grace       time.Duration
	now         func() time.Time
}

func NewDeadlineService(examRepo *repository.ExamRepository, attemptRepo *repository.AttemptRepository, attempts *AttemptService, grace time.Duration) *DeadlineService {
	return &DeadlineService{
		ExamRepo:    examRepo,
		AttemptRepo: attemptRepo,
		Attempts:    attempts,
		Grace:       grace,
		now:         time.Now,
	}
}

// Sweep returns the number of attempts it submitted. Attempts that finished
// concurrently are skipped silently.
func (s *DeadlineService) Sweep(ctx context.Context) (int, error) {
	open, err := s.AttemptRepo.ListInProgress(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	exams := make(map[uint]*model.Exam)
	submitted := 0

	for i := range open {
		a := &open[i]
		exam, ok := exams[a.ExamID]
		if !ok {
			exam, err = s.ExamRepo.FindByID(ctx, a.ExamID)
			if err != nil {
				logger.Log.Error("deadline sweep: load exam", zap.Uint("examId", a.ExamID), zap.Error(err))
				continue
			}
			exams[a.ExamID] = exam
		}

		deadline := Deadline(exam, a)
		if deadline.IsZero() || now.Before(deadline.Add(s.Grace)) {
			continue
		}

		_, err := s.Attempts.submit(ctx, authz.System(), a.ID, TriggerDeadline)
		switch {
		case err == nil:
			submitted++
		case util.KindOf(err) == util.KindInvalidState:
			// submitted or auto-submitted since it was listed
		default:
			logger.Log.Error("deadline sweep: submit", zap.String("attemptId", a.ID), zap.Error(err))
		}
	}

	if submitted > 0 {
		logger.Log.Info("deadline sweep finished", zap.Int("submitted", submitted))
	}
	return submitted, nil
}

// Start schedules Sweep. An empty spec disables the sweep and returns nil.
func (s *DeadlineService) Start(spec string) (*cron.Cron, error) {
	if spec == "" {
		return nil, nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			logger.Log.Error("deadline sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
