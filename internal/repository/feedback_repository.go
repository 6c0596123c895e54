package repository

import (
	"context"

	"online_exam_backend/internal/model"
	"online_exam_backend/internal/util"

	"gorm.io/gorm"
)

type FeedbackRepository struct {
	DB *gorm.DB
}

func NewFeedbackRepository(db *gorm.DB) *FeedbackRepository {
	return &FeedbackRepository{DB: db}
}

func (r *FeedbackRepository) Create(ctx context.Context, f *model.Feedback) error {
	return util.Storage(r.DB.WithContext(ctx).Create(f).Error)
}

func (r *FeedbackRepository) FindByID(ctx context.Context, id uint) (*model.Feedback, error) {
	var f model.Feedback
	if err := r.DB.WithContext(ctx).First(&f, id).Error; err != nil {
		return nil, translate(err, util.ErrFeedbackNotFound)
	}
	return &f, nil
}

func (r *FeedbackRepository) Update(ctx context.Context, f *model.Feedback) error {
	return util.Storage(r.DB.WithContext(ctx).Save(f).Error)
}

func (r *FeedbackRepository) ListByExam(ctx context.Context, examID uint) ([]model.Feedback, error) {
	var list []model.Feedback
	err := r.DB.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("created_at DESC").
		Find(&list).Error
	return list, util.Storage(err)
}
