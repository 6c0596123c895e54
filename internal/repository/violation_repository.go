package repository

import (
	"context"

	"online_exam_backend/internal/model"
	"online_exam_backend/internal/util"

	"gorm.io/gorm"
)

// ViolationRepository is append-only: there is no update or delete path.
type ViolationRepository struct {
	DB *gorm.DB
}

func NewViolationRepository(db *gorm.DB) *ViolationRepository {
	return &ViolationRepository{DB: db}
}

func (r *ViolationRepository) WithTx(tx *gorm.DB) *ViolationRepository {
	return &ViolationRepository{DB: tx}
}

func (r *ViolationRepository) Append(ctx context.Context, log *model.ViolationLog) error {
	if log.ID == "" {
		log.ID = model.GenerateUUID()
	}
	return util.Storage(r.DB.WithContext(ctx).Create(log).Error)
}

func (r *ViolationRepository) ListByAttempt(ctx context.Context, attemptID string) ([]model.ViolationLog, error) {
	var logs []model.ViolationLog
	err := r.DB.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("timestamp ASC").
		Find(&logs).Error
	return logs, util.Storage(err)
}

func (r *ViolationRepository) ExistsForIP(ctx context.Context, attemptID string, vt model.ViolationType, ip string) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.ViolationLog{}).
		Where("attempt_id = ? AND violation_type = ? AND ip_address = ?", attemptID, vt, ip).
		Count(&n).Error
	return n > 0, util.Storage(err)
}
