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

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ExamService struct {
	DB       *gorm.DB
	ExamRepo *repository.ExamRepository
	now      func() time.Time
}

func NewExamService(db *gorm.DB, examRepo *repository.ExamRepository) *ExamService {
	return &ExamService{DB: db, ExamRepo: examRepo, now: time.Now}
}

// QuestionInput is one authored question. The external PDF parser produces
// the same shape, so imports and inline creation share validation.
type QuestionInput struct {
	QuestionType  model.QuestionType `json:"questionType" binding:"required"`
	Text          string             `json:"text" binding:"required"`
	OptionA       string             `json:"optionA"`
	OptionB       string             `json:"optionB"`
	OptionC       string             `json:"optionC"`
	OptionD       string             `json:"optionD"`
	CorrectAnswer string             `json:"correctAnswer"`
	Marks         int                `json:"marks" binding:"required"`
	Order         int                `json:"order"`
}

type CreateExamRequest struct {
	Title                    string          `json:"title" binding:"required"`
	Description              string          `json:"description"`
	Instructions             string          `json:"instructions"`
	Subject                  string          `json:"subject"`
	StartTime                time.Time       `json:"startTime"`
	EndTime                  time.Time       `json:"endTime"`
	DurationMinutes          int             `json:"durationMinutes"`
	TotalMarks               int             `json:"totalMarks"`
	PassingMarks             int             `json:"passingMarks"`
	NegativeMarking          bool            `json:"negativeMarking"`
	NegativeMarksPerQuestion float64         `json:"negativeMarksPerQuestion"`
	ShuffleQuestions         bool            `json:"shuffleQuestions"`
	ShuffleOptions           bool            `json:"shuffleOptions"`
	Questions                []QuestionInput `json:"questions"`
}

func (q QuestionInput) toModel(examID uint, index int) (model.Question, error) {
	m := model.Question{
		ExamID:       examID,
		QuestionType: q.QuestionType,
		Text:         strings.TrimSpace(q.Text),
		OptionA:      strings.TrimSpace(q.OptionA),
		OptionB:      strings.TrimSpace(q.OptionB),
		OptionC:      strings.TrimSpace(q.OptionC),
		OptionD:      strings.TrimSpace(q.OptionD),
		Marks:        q.Marks,
		Order:        q.Order,
	}
	if m.Order == 0 {
		m.Order = index + 1
	}

	if !q.QuestionType.Valid() {
		return m, util.Invalid("question %d: unknown type %q", index+1, q.QuestionType)
	}
	if m.Text == "" {
		return m, util.Invalid("question %d: text is required", index+1)
	}
	if m.Marks <= 0 {
		return m, util.Invalid("question %d: marks must be positive", index+1)
	}

	key := strings.TrimSpace(q.CorrectAnswer)
	switch q.QuestionType {
	case model.QuestionMCQ:
		opts := m.Options()
		if len(opts) < 2 {
			return m, util.Invalid("question %d: needs at least two options", index+1)
		}
		key = strings.ToUpper(key)
		found := false
		for _, o := range opts {
			if o.Key == key {
				found = true
				break
			}
		}
		if !found {
			return m, util.Invalid("question %d: correct answer must name a filled option", index+1)
		}
	case model.QuestionTrueFalse:
		key = strings.ToLower(key)
		if key != "true" && key != "false" {
			return m, util.Invalid("question %d: correct answer must be true or false", index+1)
		}
	}
	m.CorrectAnswer = key
	return m, nil
}

func buildQuestions(examID uint, inputs []QuestionInput) ([]model.Question, int, error) {
	questions := make([]model.Question, 0, len(inputs))
	total := 0
	for i, in := range inputs {
		q, err := in.toModel(examID, i)
		if err != nil {
			return nil, 0, err
		}
		total += q.Marks
		questions = append(questions, q)
	}
	return questions, total, nil
}

// CreateExam stores a draft exam with its questions. When questions are given
// the total is their marks sum.
func (s *ExamService) CreateExam(ctx context.Context, actor authz.Actor, req CreateExamRequest) (*model.Exam, error) {
	if actor.Role() != model.Teacher && !actor.IsAdmin() {
		return nil, util.ErrUnauthorized
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, util.Invalid("title is required")
	}
	if req.DurationMinutes < 0 {
		return nil, util.Invalid("durationMinutes must not be negative")
	}
	if !req.StartTime.IsZero() && !req.EndTime.IsZero() && !req.EndTime.After(req.StartTime) {
		return nil, util.Invalid("endTime must be after startTime")
	}
	if req.NegativeMarksPerQuestion < 0 {
		return nil, util.Invalid("negativeMarksPerQuestion must not be negative")
	}

	questions, sum, err := buildQuestions(0, req.Questions)
	if err != nil {
		return nil, err
	}
	total := req.TotalMarks
	if len(questions) > 0 {
		total = sum
	}
	if req.PassingMarks < 0 || req.PassingMarks > total {
		return nil, util.Invalid("passingMarks must be between 0 and %d", total)
	}

	exam := &model.Exam{
		Title:                    strings.TrimSpace(req.Title),
		Description:              req.Description,
		Instructions:             req.Instructions,
		Subject:                  req.Subject,
		TeacherID:                actor.ID(),
		StartTime:                req.StartTime,
		EndTime:                  req.EndTime,
		DurationMinutes:          req.DurationMinutes,
		TotalMarks:               total,
		PassingMarks:             req.PassingMarks,
		NegativeMarking:          req.NegativeMarking,
		NegativeMarksPerQuestion: req.NegativeMarksPerQuestion,
		ShuffleQuestions:         req.ShuffleQuestions,
		ShuffleOptions:           req.ShuffleOptions,
		Status:                   model.ExamDraft,
		Questions:                questions,
	}
	if err := s.ExamRepo.Create(ctx, exam); err != nil {
		return nil, err
	}

	logger.Log.Info("exam created",
		zap.Uint("examId", exam.ID),
		zap.Uint("teacherId", exam.TeacherID),
		zap.Int("questions", len(questions)),
	)
	return exam, nil
}

// ImportQuestions appends parsed questions to an exam nobody has attempted yet.
func (s *ExamService) ImportQuestions(ctx context.Context, actor authz.Actor, examID uint, inputs []QuestionInput) ([]model.Question, error) {
	if len(inputs) == 0 {
		return nil, util.Invalid("no questions to import")
	}

	var questions []model.Question
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exams := s.ExamRepo.WithTx(tx)

		exam, err := exams.FindByID(ctx, examID)
		if err != nil {
			return err
		}
		if !authz.CanManage(actor, exam) {
			return util.ErrUnauthorized
		}
		n, err := exams.CountAttempts(ctx, exam.ID)
		if err != nil {
			return err
		}
		if n > 0 {
			return util.ErrExamLocked
		}

		questions, _, err = buildQuestions(exam.ID, inputs)
		if err != nil {
			return err
		}
		if err := exams.AddQuestions(ctx, questions); err != nil {
			return err
		}
		total, err := exams.SumMarks(ctx, exam.ID)
		if err != nil {
			return err
		}
		return exams.UpdateTotalMarks(ctx, exam.ID, total)
	})
	if err != nil {
		return nil, err
	}
	return questions, nil
}

// SubmitForReview moves a draft or rejected exam to pending.
func (s *ExamService) SubmitForReview(ctx context.Context, actor authz.Actor, examID uint) (*model.Exam, error) {
	exam, err := s.ExamRepo.FindByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	if !authz.CanManage(actor, exam) {
		return nil, util.ErrUnauthorized
	}
	if exam.Status != model.ExamDraft && exam.Status != model.ExamRejected {
		return nil, util.ErrInvalidExamTransition
	}
	questions, err := s.ExamRepo.ListQuestions(ctx, exam.ID)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, util.Invalid("exam has no questions")
	}

	if err := s.ExamRepo.UpdateStatus(ctx, exam.ID, model.ExamPending, nil, nil); err != nil {
		return nil, err
	}
	exam.Status = model.ExamPending
	return exam, nil
}

// SetStatus is the admin review decision on a pending exam.
func (s *ExamService) SetStatus(ctx context.Context, actor authz.Actor, examID uint, status model.ExamStatus) (*model.Exam, error) {
	if !actor.IsAdmin() {
		return nil, util.ErrUnauthorized
	}
	if status != model.ExamApproved && status != model.ExamRejected {
		return nil, util.Invalid("status must be approved or rejected")
	}

	exam, err := s.ExamRepo.FindByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam.Status != model.ExamPending {
		return nil, util.ErrInvalidExamTransition
	}

	now := s.now()
	reviewer := actor.ID()
	if err := s.ExamRepo.UpdateStatus(ctx, exam.ID, status, &reviewer, &now); err != nil {
		return nil, err
	}
	exam.Status = status
	exam.ReviewedBy = &reviewer
	exam.ReviewedAt = &now

	logger.Log.Info("exam reviewed",
		zap.Uint("examId", exam.ID),
		zap.String("status", string(status)),
		zap.Uint("reviewer", reviewer),
	)
	return exam, nil
}

// Get returns the exam with its questions and keys to staff. Students only see
// approved exams, without questions.
func (s *ExamService) Get(ctx context.Context, actor authz.Actor, examID uint) (*model.Exam, error) {
	exam, err := s.ExamRepo.FindByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	if authz.CanManage(actor, exam) {
		return s.ExamRepo.FindWithQuestions(ctx, examID)
	}
	if exam.Status != model.ExamApproved {
		return nil, util.ErrExamNotFound
	}
	return exam, nil
}

// ListAvailable lists a teacher's own exams, or for everyone else the approved
// exams whose window is open now.
func (s *ExamService) ListAvailable(ctx context.Context, actor authz.Actor) ([]model.Exam, error) {
	if actor.Role() == model.Teacher {
		return s.ExamRepo.ListByTeacher(ctx, actor.ID())
	}
	return s.ExamRepo.ListApproved(ctx, s.now())
}
