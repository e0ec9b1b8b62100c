package service

import (
	"errors"
	"fmt"

	"quiz_master_backend/internal/model"
	"quiz_master_backend/internal/util"

	"gorm.io/gorm"
)

// lookupErr 将记录不存在映射为 notFound，其余错误包装为 ErrDatabase
func lookupErr(err error, notFound error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return dbErr(err)
}

func dbErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", util.ErrDatabase, err)
}

// unavailableErr 将不可用原因映射为对应错误
func unavailableErr(reason model.UnavailableReason) error {
	switch reason {
	case model.ReasonNone:
		return nil
	case model.ReasonInactive:
		return util.ErrQuizInactive
	case model.ReasonLocked:
		return util.ErrQuizLocked
	case model.ReasonNotStarted:
		return util.ErrQuizNotStarted
	case model.ReasonExpired:
		return util.ErrQuizExpired
	default:
		return util.ErrQuizSchedule
	}
}
