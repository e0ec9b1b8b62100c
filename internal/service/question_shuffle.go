package service

import (
	"math/rand"

	"quiz_master_backend/internal/model"
)

// QuestionView 答题时下发的题目，不含正确答案
type QuestionView struct {
	ID           uint     `json:"id"`
	QuestionText string   `json:"questionText"`
	Options      []string `json:"options"`
	Marks        int      `json:"marks"`
	// SelectedOption 续答时返回此前保存的选项
	SelectedOption *int `json:"selectedOption,omitempty"`
}

// Shuffler 与 rand.Shuffle 签名一致，测试中可替换
type Shuffler func(n int, swap func(i, j int))

// QuestionsForAttempt 每次调用重新打乱题目顺序
func QuestionsForAttempt(questions []model.Question, responses []model.QuizResponse, shuffle Shuffler) []QuestionView {
	if shuffle == nil {
		shuffle = rand.Shuffle
	}

	selected := make(map[uint]*int, len(responses))
	for _, r := range responses {
		if r.SelectedOption != nil && *r.SelectedOption != 0 {
			opt := *r.SelectedOption
			selected[r.QuestionID] = &opt
		}
	}

	views := make([]QuestionView, len(questions))
	for i, q := range questions {
		views[i] = QuestionView{
			ID:             q.ID,
			QuestionText:   q.QuestionText,
			Options:        q.Options(),
			Marks:          q.Marks,
			SelectedOption: selected[q.ID],
		}
	}

	shuffle(len(views), func(i, j int) {
		views[i], views[j] = views[j], views[i]
	})
	return views
}
