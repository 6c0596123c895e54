package repository

import (
	"context"
	"time"

	"online_exam_backend/internal/model"
	"online_exam_backend/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AssignmentRepository struct {
	DB *gorm.DB
}

func NewAssignmentRepository(db *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{DB: db}
}

func (r *AssignmentRepository) WithTx(tx *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{DB: tx}
}

// GetOrCreate returns the assignment for (examID, studentID), inserting it when
// missing. Concurrent callers converge on the same row through the unique index.
func (r *AssignmentRepository) GetOrCreate(ctx context.Context, examID, studentID uint, assignedBy *uint, now time.Time) (*model.Assignment, error) {
	db := r.DB.WithContext(ctx)

	a := model.Assignment{
		ExamID:     examID,
		StudentID:  studentID,
		AssignedBy: assignedBy,
		AssignedAt: now,
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&a).Error; err != nil {
		return nil, util.Storage(err)
	}

	return r.Find(ctx, examID, studentID)
}

func (r *AssignmentRepository) Find(ctx context.Context, examID, studentID uint) (*model.Assignment, error) {
	var a model.Assignment
	err := r.DB.WithContext(ctx).
		Where("exam_id = ? AND student_id = ?", examID, studentID).
		First(&a).Error
	if err != nil {
		return nil, translate(err, util.ErrAssignmentNotFound)
	}
	return &a, nil
}

// FindForUpdate locks the assignment row until the surrounding transaction ends.
func (r *AssignmentRepository) FindForUpdate(ctx context.Context, id string) (*model.Assignment, error) {
	var a model.Assignment
	err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&a, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, util.ErrAssignmentNotFound)
	}
	return &a, nil
}

func (r *AssignmentRepository) MarkCompleted(ctx context.Context, id string) error {
	err := r.DB.WithContext(ctx).Model(&model.Assignment{}).
		Where("id = ?", id).
		Update("is_completed", true).Error
	return util.Storage(err)
}

func (r *AssignmentRepository) ListByExam(ctx context.Context, examID uint) ([]model.Assignment, error) {
	var list []model.Assignment
	err := r.DB.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("assigned_at ASC").
		Find(&list).Error
	return list, util.Storage(err)
}
