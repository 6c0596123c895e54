package service

import (
	"context"
	"strings"
	"time"

	"online_exam_backend/internal/authz"
	"online_exam_backend/internal/model"
	"online_exam_backend/internal/repository"
	"online_exam_backend/internal/util"
)

type FeedbackService struct {
	ExamRepo     *repository.ExamRepository
	AttemptRepo  *repository.AttemptRepository
	FeedbackRepo *repository.FeedbackRepository
	now          func() time.Time
}

func NewFeedbackService(examRepo *repository.ExamRepository, attemptRepo *repository.AttemptRepository, feedbackRepo *repository.FeedbackRepository) *FeedbackService {
	return &FeedbackService{
		ExamRepo:     examRepo,
		AttemptRepo:  attemptRepo,
		FeedbackRepo: feedbackRepo,
		now:          time.Now,
	}
}

// Create stores a student's rating of an exam they have finished.
func (s *FeedbackService) Create(ctx context.Context, actor authz.Actor, examID uint, comment string, rating int) (*model.Feedback, error) {
	if actor.Role() != model.Student {
		return nil, util.ErrUnauthorized
	}
	if rating < 1 || rating > 5 {
		return nil, util.ErrInvalidRating
	}
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return nil, util.Invalid("comment is required")
	}

	if _, err := s.ExamRepo.FindByID(ctx, examID); err != nil {
		return nil, err
	}
	finished, err := s.AttemptRepo.HasFinished(ctx, examID, actor.ID())
	if err != nil {
		return nil, err
	}
	if !finished {
		return nil, util.ErrUnauthorized
	}

	f := &model.Feedback{
		ExamID:    examID,
		StudentID: actor.ID(),
		Comment:   comment,
		Rating:    rating,
	}
	if err := s.FeedbackRepo.Create(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *FeedbackService) Respond(ctx context.Context, actor authz.Actor, feedbackID uint, response string) (*model.Feedback, error) {
	f, err := s.FeedbackRepo.FindByID(ctx, feedbackID)
	if err != nil {
		return nil, err
	}
	exam, err := s.ExamRepo.FindByID(ctx, f.ExamID)
	if err != nil {
		return nil, err
	}
	if !authz.CanManage(actor, exam) {
		return nil, util.ErrUnauthorized
	}

	now := s.now()
	f.TeacherResponse = strings.TrimSpace(response)
	f.IsReviewed = true
	f.RespondedAt = &now
	if err := s.FeedbackRepo.Update(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *FeedbackService) ListByExam(ctx context.Context, actor authz.Actor, examID uint) ([]model.Feedback, error) {
	exam, err := s.ExamRepo.FindByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	if !authz.CanManage(actor, exam) {
		return nil, util.ErrUnauthorized
	}
	return s.FeedbackRepo.ListByExam(ctx, examID)
}
