package repository

import (
	"errors"

	"online_exam_backend/internal/util"

	"gorm.io/gorm"
)

// translate maps gorm's not-found to the domain sentinel and tags everything
// else as a storage failure.
func translate(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return util.Storage(err)
}
