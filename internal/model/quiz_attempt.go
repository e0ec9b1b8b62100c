package model

import (
	"fmt"
	"time"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
	// AttemptExpired is set only by the expiry sweep.
	AttemptExpired AttemptStatus = "expired"
)

// swagger:model QuizAttempt
type QuizAttempt struct {
	BaseModel
	UserID uint          `gorm:"index;not null" json:"userId"`
	QuizID uint          `gorm:"index;not null" json:"quizId"`
	Status AttemptStatus `gorm:"size:20;not null;index" json:"status"`

	// InProgressKey is "<user>:<quiz>" while the attempt is in progress and NULL
	// afterwards. The unique index makes a second in-progress attempt for the
	// same pair impossible at the storage layer.
	InProgressKey *string `gorm:"size:64;uniqueIndex" json:"-"`

	// null until the attempt is completed
	Score           *int  `json:"score"`
	ScorePercentage *int  `json:"scorePercentage"`
	IsPassed        *bool `json:"isPassed"`

	TotalMarks int        `gorm:"not null" json:"totalMarks"`
	StartTime  time.Time  `gorm:"not null" json:"startTime"`
	EndTime    *time.Time `json:"endTime,omitempty"`
	TimeTaken  *int       `json:"timeTaken,omitempty"` // 分钟，客户端上报
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

func InProgressKey(userID, quizID uint) string {
	return fmt.Sprintf("%d:%d", userID, quizID)
}

func (a *QuizAttempt) IsInProgress() bool {
	return a.Status == AttemptInProgress
}
