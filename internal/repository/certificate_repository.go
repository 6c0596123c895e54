package repository

import (
	"context"

	"online_exam_backend/internal/model"
	"online_exam_backend/internal/util"

	"gorm.io/gorm"
)

type CertificateRepository struct {
	DB *gorm.DB
}

func NewCertificateRepository(db *gorm.DB) *CertificateRepository {
	return &CertificateRepository{DB: db}
}

func (r *CertificateRepository) Create(ctx context.Context, c *model.Certificate) error {
	return util.Storage(r.DB.WithContext(ctx).Create(c).Error)
}

func (r *CertificateRepository) FindByAttempt(ctx context.Context, attemptID string) (*model.Certificate, error) {
	var c model.Certificate
	err := r.DB.WithContext(ctx).Where("attempt_id = ?", attemptID).First(&c).Error
	if err != nil {
		return nil, translate(err, util.ErrCertificateNotFound)
	}
	return &c, nil
}
