package service

import (
	"context"
	"strings"
	"time"

	"online_exam_backend/internal/authz"
	"online_exam_backend/internal/model"
	"online_exam_backend/internal/repository"
	"online_exam_backend/internal/util"
	"online_exam_backend/pkg/logger"
	"online_exam_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GradeResult is the outcome of scoring one attempt. Answers holds every
// input answer with its grading fields filled in where they could be.
type GradeResult struct {
	Answers       []model.Answer
	ObtainedMarks float64
	Percentage    float64
	// Pending counts subjective answers still waiting for manual marks.
	Pending int
}

func (r GradeResult) Evaluated() bool {
	return r.Pending == 0
}

// MatchesKey compares an answer to its key ignoring case and surrounding space.
func MatchesKey(given, key string) bool {
	return strings.EqualFold(strings.TrimSpace(given), strings.TrimSpace(key))
}

// GradeAttempt scores answers against questions. It does not touch storage and
// does not mutate its arguments. Totals are recomputed from scratch on every
// call. Answers to questions outside the exam are ignored.
func GradeAttempt(exam *model.Exam, attempt *model.Attempt, answers []model.Answer, questions []model.Question) GradeResult {
	byID := make(map[uint]*model.Question, len(questions))
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
	}

	res := GradeResult{Answers: make([]model.Answer, 0, len(answers))}
	var obtained float64

	for _, ans := range answers {
		q, ok := byID[ans.QuestionID]
		if !ok {
			res.Answers = append(res.Answers, ans)
			continue
		}

		if q.QuestionType.AutoGraded() {
			correct := MatchesKey(ans.AnswerText, q.CorrectAnswer)
			var marks float64
			switch {
			case correct:
				marks = float64(q.Marks)
			case exam.NegativeMarking:
				marks = -exam.NegativeMarksPerQuestion
			}
			ans.IsCorrect = &correct
			ans.MarksObtained = &marks
		}

		if ans.MarksObtained == nil {
			res.Pending++
		} else {
			obtained += *ans.MarksObtained
		}
		res.Answers = append(res.Answers, ans)
	}

	res.ObtainedMarks = util.Round2(obtained)
	if attempt.TotalMarks > 0 {
		res.Percentage = util.Round2(obtained / float64(attempt.TotalMarks) * 100)
	}
	return res
}

type GradingService struct {
	DB          *gorm.DB
	ExamRepo    *repository.ExamRepository
	AttemptRepo *repository.AttemptRepository
	Events      EventPublisher
	now         func() time.Time
}

func NewGradingService(db *gorm.DB, examRepo *repository.ExamRepository, attemptRepo *repository.AttemptRepository, events EventPublisher) *GradingService {
	return &GradingService{
		DB:          db,
		ExamRepo:    examRepo,
		AttemptRepo: attemptRepo,
		Events:      events,
		now:         time.Now,
	}
}

// Grade scores a submitted attempt inside tx.
func (s *GradingService) Grade(ctx context.Context, tx *gorm.DB, attemptID string) (*model.Attempt, error) {
	attempt, err := s.AttemptRepo.WithTx(tx).FindByIDForUpdate(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	exam, err := s.ExamRepo.WithTx(tx).FindByID(ctx, attempt.ExamID)
	if err != nil {
		return nil, err
	}
	if err := s.gradeLocked(ctx, tx, exam, attempt); err != nil {
		return nil, err
	}
	return attempt, nil
}

// gradeLocked expects attempt to be row-locked by the caller's transaction.
func (s *GradingService) gradeLocked(ctx context.Context, tx *gorm.DB, exam *model.Exam, attempt *model.Attempt) error {
	ctx, span := tracing.Tracer.Start(ctx, "grading.grade")
	defer span.End()
	span.SetAttributes(attribute.String("attempt.id", attempt.ID))

	switch attempt.Status {
	case model.AttemptEvaluated:
		return util.ErrAlreadyEvaluated
	case model.AttemptSubmitted:
	default:
		return util.ErrAttemptNotSubmitted
	}

	attempts := s.AttemptRepo.WithTx(tx)
	questions, err := s.ExamRepo.WithTx(tx).ListQuestions(ctx, exam.ID)
	if err != nil {
		return err
	}
	answers, err := attempts.ListAnswers(ctx, attempt.ID)
	if err != nil {
		return err
	}

	res := GradeAttempt(exam, attempt, answers, questions)
	for i := range res.Answers {
		if res.Answers[i].MarksObtained == nil {
			continue
		}
		if err := attempts.SaveGrade(ctx, &res.Answers[i]); err != nil {
			return err
		}
	}

	attempt.ObtainedMarks = res.ObtainedMarks
	attempt.Percentage = res.Percentage
	if res.Evaluated() {
		attempt.Status = model.AttemptEvaluated
	}
	if err := attempts.Update(ctx, attempt); err != nil {
		return err
	}

	logger.Log.Info("attempt graded",
		zap.String("attemptId", attempt.ID),
		zap.Float64("obtained", res.ObtainedMarks),
		zap.Float64("percentage", res.Percentage),
		zap.Int("pending", res.Pending),
		zap.String("status", string(attempt.Status)),
	)
	return nil
}

// GradeSubjective records manual marks for a subjective answer and re-scores
// the attempt. The attempt becomes evaluated once nothing is pending.
func (s *GradingService) GradeSubjective(ctx context.Context, actor authz.Actor, attemptID, answerID string, marks float64, feedback string) (*model.Attempt, error) {
	var attempt *model.Attempt
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		attempts := s.AttemptRepo.WithTx(tx)

		a, err := attempts.FindByIDForUpdate(ctx, attemptID)
		if err != nil {
			return err
		}
		exam, err := s.ExamRepo.WithTx(tx).FindByID(ctx, a.ExamID)
		if err != nil {
			return err
		}
		if !authz.CanManage(actor, exam) {
			return util.ErrUnauthorized
		}
		switch a.Status {
		case model.AttemptEvaluated:
			return util.ErrAlreadyEvaluated
		case model.AttemptSubmitted:
		default:
			return util.ErrAttemptNotSubmitted
		}

		ans, err := attempts.FindAnswer(ctx, a.ID, answerID)
		if err != nil {
			return err
		}
		q, err := s.ExamRepo.WithTx(tx).FindQuestion(ctx, exam.ID, ans.QuestionID)
		if err != nil {
			return err
		}
		if q.QuestionType != model.QuestionSubjective {
			return util.Invalid("question %d is graded automatically", q.ID)
		}
		if marks < 0 || marks > float64(q.Marks) {
			return util.ErrInvalidMarks
		}

		now := s.now()
		graderID := actor.ID()
		ans.MarksObtained = &marks
		ans.GradedBy = &graderID
		ans.GradedAt = &now
		ans.Feedback = feedback
		if err := attempts.SaveGrade(ctx, ans); err != nil {
			return err
		}

		if err := s.gradeLocked(ctx, tx, exam, a); err != nil {
			return err
		}
		attempt = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	if attempt.Status == model.AttemptEvaluated {
		publish(ctx, s.Events, newAttemptEvent(EventEvaluated, attempt, s.now()))
	}
	return attempt, nil
}
