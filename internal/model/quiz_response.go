package model

// swagger:model QuizResponse
type QuizResponse struct {
	BaseModel
	AttemptID      uint  `gorm:"uniqueIndex:idx_response_attempt_question;not null" json:"attemptId"`
	QuestionID     uint  `gorm:"uniqueIndex:idx_response_attempt_question;not null;index" json:"questionId"`
	SelectedOption *int  `json:"selectedOption"`
	IsCorrect      *bool `json:"isCorrect"`
	Score          *int  `json:"score"`
}

func (QuizResponse) TableName() string {
	return "quiz_responses"
}
