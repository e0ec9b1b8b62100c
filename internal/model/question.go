package model

const OptionCount = 4

// swagger:model Question
type Question struct {
	BaseModel
	QuizID        uint   `gorm:"index;not null" json:"quizId"`
	QuestionText  string `gorm:"type:text;not null" json:"questionText"`
	Option1       string `gorm:"size:255;not null" json:"option1"`
	Option2       string `gorm:"size:255;not null" json:"option2"`
	Option3       string `gorm:"size:255;not null" json:"option3"`
	Option4       string `gorm:"size:255;not null" json:"option4"`
	CorrectOption int    `gorm:"not null" json:"correctOption"` // 1-4
	Marks         int    `gorm:"not null" json:"marks"`
	CreatedBy     uint   `gorm:"index" json:"createdBy"`
}

func (Question) TableName() string {
	return "questions"
}

func (q *Question) Options() []string {
	return []string{q.Option1, q.Option2, q.Option3, q.Option4}
}

// ValidOption reports whether o names one of the four option slots.
func ValidOption(o int) bool {
	return o >= 1 && o <= OptionCount
}
