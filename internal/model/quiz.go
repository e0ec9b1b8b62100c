package model

import (
	"time"
)

const (
	ScheduleDateLayout  = "2006-01-02"
	ScheduleClockLayout = "15:04"
)

// swagger:model Quiz
type Quiz struct {
	BaseModel
	ChapterID           uint    `gorm:"index;not null" json:"chapterId"`
	Title               string  `gorm:"size:255;not null" json:"title"`
	Description         string  `gorm:"type:text" json:"description"`
	StartDate           string  `gorm:"size:10;not null" json:"startDate"` // 2006-01-02
	StartTime           string  `gorm:"size:5;not null" json:"startTime"`  // 15:04
	EndDate             *string `gorm:"size:10" json:"endDate"`
	EndTime             *string `gorm:"size:5" json:"endTime"`
	TimeDuration        int     `gorm:"not null" json:"timeDuration"` // 分钟，仅供前端计时
	PassingScore        int     `gorm:"not null" json:"passingScore"` // 百分比 0-100
	TotalMarks          int     `gorm:"not null" json:"totalMarks"`
	AutoLockAfterExpiry bool    `gorm:"not null" json:"autoLockAfterExpiry"`
	IsLocked            bool    `gorm:"not null" json:"isLocked"`
	IsActive            bool    `gorm:"not null" json:"isActive"`
	CreatedBy           uint    `gorm:"index" json:"createdBy"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

type UnavailableReason string

const (
	ReasonNone            UnavailableReason = ""
	ReasonInactive        UnavailableReason = "inactive"
	ReasonLocked          UnavailableReason = "locked"
	ReasonNotStarted      UnavailableReason = "not_started"
	ReasonExpired         UnavailableReason = "expired"
	ReasonInvalidSchedule UnavailableReason = "invalid_schedule"
)

func combineSchedule(date, clock string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(ScheduleDateLayout+" "+ScheduleClockLayout, date+" "+clock, loc)
}

// StartAt 合并开始日期与时间
func (q *Quiz) StartAt(loc *time.Location) (time.Time, error) {
	return combineSchedule(q.StartDate, q.StartTime, loc)
}

// HasEnd 结束日期与时间都已设置；未设置的测验没有结束时间
func (q *Quiz) HasEnd() bool {
	return q.EndDate != nil && *q.EndDate != "" && q.EndTime != nil && *q.EndTime != ""
}

// EndAt 合并结束日期与时间，未设置结束时 ok 为 false
func (q *Quiz) EndAt(loc *time.Location) (end time.Time, ok bool, err error) {
	if !q.HasEnd() {
		return time.Time{}, false, nil
	}
	end, err = combineSchedule(*q.EndDate, *q.EndTime, loc)
	if err != nil {
		return time.Time{}, false, err
	}
	return end, true, nil
}

// UnavailableReason 返回测验在 now 时刻不能开始答题的原因，可以开始时返回 ReasonNone。
// 排期字段按 now 所在时区解析。
func (q *Quiz) UnavailableReason(now time.Time) UnavailableReason {
	if !q.IsActive {
		return ReasonInactive
	}
	if q.IsLocked {
		return ReasonLocked
	}
	start, err := q.StartAt(now.Location())
	if err != nil {
		return ReasonInvalidSchedule
	}
	if now.Before(start) {
		return ReasonNotStarted
	}
	end, ok, err := q.EndAt(now.Location())
	if err != nil {
		return ReasonInvalidSchedule
	}
	if ok && now.After(end) {
		return ReasonExpired
	}
	return ReasonNone
}

func (q *Quiz) IsAvailable(now time.Time) bool {
	return q.UnavailableReason(now) == ReasonNone
}

// TimeUntilStart 距开始的时长，已开始时返回 nil
func (q *Quiz) TimeUntilStart(now time.Time) *time.Duration {
	start, err := q.StartAt(now.Location())
	if err != nil || !start.After(now) {
		return nil
	}
	d := start.Sub(now)
	return &d
}

// TimeUntilEnd 距结束的时长，没有结束时间或已结束时返回 nil
func (q *Quiz) TimeUntilEnd(now time.Time) *time.Duration {
	end, ok, err := q.EndAt(now.Location())
	if err != nil || !ok || !end.After(now) {
		return nil
	}
	d := end.Sub(now)
	return &d
}
