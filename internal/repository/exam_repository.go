package repository

import (
	"context"
	"time"

	"online_exam_backend/internal/model"
	"online_exam_backend/internal/util"

	"gorm.io/gorm"
)

type ExamRepository struct {
	DB *gorm.DB
}

func NewExamRepository(db *gorm.DB) *ExamRepository {
	return &ExamRepository{DB: db}
}

func (r *ExamRepository) WithTx(tx *gorm.DB) *ExamRepository {
	return &ExamRepository{DB: tx}
}

// Create inserts the exam together with its inline questions.
func (r *ExamRepository) Create(ctx context.Context, exam *model.Exam) error {
	return util.Storage(r.DB.WithContext(ctx).Create(exam).Error)
}

func (r *ExamRepository) FindByID(ctx context.Context, id uint) (*model.Exam, error) {
	var exam model.Exam
	err := r.DB.WithContext(ctx).First(&exam, id).Error
	if err != nil {
		return nil, translate(err, util.ErrExamNotFound)
	}
	return &exam, nil
}

func (r *ExamRepository) FindWithQuestions(ctx context.Context, id uint) (*model.Exam, error) {
	var exam model.Exam
	err := r.DB.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index ASC, id ASC")
		}).
		First(&exam, id).Error
	if err != nil {
		return nil, translate(err, util.ErrExamNotFound)
	}
	return &exam, nil
}

func (r *ExamRepository) ListQuestions(ctx context.Context, examID uint) ([]model.Question, error) {
	var questions []model.Question
	err := r.DB.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("order_index ASC, id ASC").
		Find(&questions).Error
	return questions, util.Storage(err)
}

// FindQuestion only matches a question that belongs to examID.
func (r *ExamRepository) FindQuestion(ctx context.Context, examID, questionID uint) (*model.Question, error) {
	var q model.Question
	err := r.DB.WithContext(ctx).
		Where("id = ? AND exam_id = ?", questionID, examID).
		First(&q).Error
	if err != nil {
		return nil, translate(err, util.ErrQuestionNotFound)
	}
	return &q, nil
}

func (r *ExamRepository) AddQuestions(ctx context.Context, questions []model.Question) error {
	if len(questions) == 0 {
		return nil
	}
	return util.Storage(r.DB.WithContext(ctx).Create(&questions).Error)
}

// SumMarks returns the sum of question marks of an exam.
func (r *ExamRepository) SumMarks(ctx context.Context, examID uint) (int, error) {
	var total int64
	err := r.DB.WithContext(ctx).Model(&model.Question{}).
		Where("exam_id = ?", examID).
		Select("COALESCE(SUM(marks), 0)").
		Scan(&total).Error
	return int(total), util.Storage(err)
}

func (r *ExamRepository) UpdateTotalMarks(ctx context.Context, examID uint, total int) error {
	err := r.DB.WithContext(ctx).Model(&model.Exam{}).
		Where("id = ?", examID).
		Update("total_marks", total).Error
	return util.Storage(err)
}

func (r *ExamRepository) UpdateStatus(ctx context.Context, examID uint, status model.ExamStatus, reviewer *uint, at *time.Time) error {
	updates := map[string]interface{}{"status": status}
	if reviewer != nil {
		updates["reviewed_by"] = *reviewer
		updates["reviewed_at"] = at
	}
	res := r.DB.WithContext(ctx).Model(&model.Exam{}).Where("id = ?", examID).Updates(updates)
	if res.Error != nil {
		return util.Storage(res.Error)
	}
	if res.RowsAffected == 0 {
		return util.ErrExamNotFound
	}
	return nil
}

// ListApproved returns approved exams whose window contains now. Zero bounds
// are treated as open.
func (r *ExamRepository) ListApproved(ctx context.Context, now time.Time) ([]model.Exam, error) {
	var exams []model.Exam
	err := r.DB.WithContext(ctx).
		Where("status = ?", model.ExamApproved).
		Order("start_time ASC, id ASC").
		Find(&exams).Error
	if err != nil {
		return nil, util.Storage(err)
	}
	open := exams[:0]
	for i := range exams {
		if exams[i].OpenAt(now) {
			open = append(open, exams[i])
		}
	}
	return open, nil
}

func (r *ExamRepository) ListByTeacher(ctx context.Context, teacherID uint) ([]model.Exam, error) {
	var exams []model.Exam
	err := r.DB.WithContext(ctx).
		Where("teacher_id = ?", teacherID).
		Order("created_at DESC").
		Find(&exams).Error
	return exams, util.Storage(err)
}

func (r *ExamRepository) CountAttempts(ctx context.Context, examID uint) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.Attempt{}).Where("exam_id = ?", examID).Count(&n).Error
	return n, util.Storage(err)
}
