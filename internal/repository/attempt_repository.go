package repository

import (
	"context"
	"errors"

	"online_exam_backend/internal/model"
	"online_exam_backend/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) WithTx(tx *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: tx}
}

func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	return util.Storage(r.DB.WithContext(ctx).Omit(clause.Associations).Create(a).Error)
}

func (r *AttemptRepository) FindByID(ctx context.Context, id string) (*model.Attempt, error) {
	var a model.Attempt
	if err := r.DB.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, translate(err, util.ErrAttemptNotFound)
	}
	return &a, nil
}

// FindByIDForUpdate takes a row lock on the attempt. Every mutating attempt
// operation goes through it so counters and status never race.
func (r *AttemptRepository) FindByIDForUpdate(ctx context.Context, id string) (*model.Attempt, error) {
	var a model.Attempt
	err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&a, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, util.ErrAttemptNotFound)
	}
	return &a, nil
}

// FindInProgress returns nil without error when the assignment has no open attempt.
func (r *AttemptRepository) FindInProgress(ctx context.Context, assignmentID string) (*model.Attempt, error) {
	var a model.Attempt
	err := r.DB.WithContext(ctx).
		Where("assignment_id = ? AND status = ?", assignmentID, model.AttemptInProgress).
		Order("start_time DESC").
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, util.Storage(err)
	}
	return &a, nil
}

func (r *AttemptRepository) HasStatus(ctx context.Context, assignmentID string, status model.AttemptStatus) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.Attempt{}).
		Where("assignment_id = ? AND status = ?", assignmentID, status).
		Count(&n).Error
	return n > 0, util.Storage(err)
}

// HasFinished reports whether the student left in_progress on any attempt of the exam.
func (r *AttemptRepository) HasFinished(ctx context.Context, examID, studentID uint) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.Attempt{}).
		Where("exam_id = ? AND student_id = ? AND status <> ?", examID, studentID, model.AttemptInProgress).
		Count(&n).Error
	return n > 0, util.Storage(err)
}

// Update writes the attempt columns only; answers and logs have their own paths.
func (r *AttemptRepository) Update(ctx context.Context, a *model.Attempt) error {
	return util.Storage(r.DB.WithContext(ctx).Omit(clause.Associations).Save(a).Error)
}

func (r *AttemptRepository) ListByStudent(ctx context.Context, studentID uint) ([]model.Attempt, error) {
	var list []model.Attempt
	err := r.DB.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("start_time DESC").
		Find(&list).Error
	return list, util.Storage(err)
}

func (r *AttemptRepository) ListByExam(ctx context.Context, examID uint) ([]model.Attempt, error) {
	var list []model.Attempt
	err := r.DB.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("start_time ASC").
		Find(&list).Error
	return list, util.Storage(err)
}

func (r *AttemptRepository) ListInProgress(ctx context.Context) ([]model.Attempt, error) {
	var list []model.Attempt
	err := r.DB.WithContext(ctx).
		Where("status = ?", model.AttemptInProgress).
		Order("start_time ASC").
		Find(&list).Error
	return list, util.Storage(err)
}

// UpsertAnswer keeps exactly one row per (attempt, question); the latest text wins.
func (r *AttemptRepository) UpsertAnswer(ctx context.Context, attemptID string, questionID uint, text string) (*model.Answer, error) {
	db := r.DB.WithContext(ctx)

	ans := model.Answer{
		AttemptID:  attemptID,
		QuestionID: questionID,
		AnswerText: text,
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"answer_text", "updated_at"}),
	}).Create(&ans).Error
	if err != nil {
		return nil, util.Storage(err)
	}

	var stored model.Answer
	err = db.Where("attempt_id = ? AND question_id = ?", attemptID, questionID).First(&stored).Error
	if err != nil {
		return nil, util.Storage(err)
	}
	return &stored, nil
}

func (r *AttemptRepository) ListAnswers(ctx context.Context, attemptID string) ([]model.Answer, error) {
	var list []model.Answer
	err := r.DB.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("question_id ASC").
		Find(&list).Error
	return list, util.Storage(err)
}

func (r *AttemptRepository) FindAnswer(ctx context.Context, attemptID, answerID string) (*model.Answer, error) {
	var a model.Answer
	err := r.DB.WithContext(ctx).
		Where("id = ? AND attempt_id = ?", answerID, attemptID).
		First(&a).Error
	if err != nil {
		return nil, translate(err, util.ErrAnswerNotFound)
	}
	return &a, nil
}

// SaveGrade persists the grading columns of an answer, including nil values.
func (r *AttemptRepository) SaveGrade(ctx context.Context, a *model.Answer) error {
	err := r.DB.WithContext(ctx).Model(&model.Answer{}).
		Where("id = ?", a.ID).
		Updates(map[string]interface{}{
			"is_correct":     a.IsCorrect,
			"marks_obtained": a.MarksObtained,
			"graded_by":      a.GradedBy,
			"graded_at":      a.GradedAt,
			"feedback":       a.Feedback,
		}).Error
	return util.Storage(err)
}
