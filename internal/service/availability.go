package service

import (
	"time"

	"quiz_master_backend/internal/model"
)

type AvailabilityView struct {
	QuizID    uint                    `json:"quizId"`
	Available bool                    `json:"available"`
	Reason    model.UnavailableReason `json:"reason,omitempty"`
	Message   string                  `json:"message,omitempty"`
	// 秒
	TimeUntilStart *int64 `json:"timeUntilStart,omitempty"`
	TimeUntilEnd   *int64 `json:"timeUntilEnd,omitempty"`
}

func availabilityOf(q *model.Quiz, now time.Time) AvailabilityView {
	reason := q.UnavailableReason(now)
	v := AvailabilityView{
		QuizID:         q.ID,
		Available:      reason == model.ReasonNone,
		Reason:         reason,
		TimeUntilStart: seconds(q.TimeUntilStart(now)),
		TimeUntilEnd:   seconds(q.TimeUntilEnd(now)),
	}
	if err := unavailableErr(reason); err != nil {
		v.Message = err.Error()
	}
	return v
}

func seconds(d *time.Duration) *int64 {
	if d == nil {
		return nil
	}
	s := int64(d.Seconds())
	return &s
}
