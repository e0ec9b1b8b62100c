package service

import (
	"math"
	"sort"

	"quiz_master_backend/internal/model"
)

// SubmittedAnswer 提交的单题作答，SelectedOption 为 0 表示未作答。
// QuestionID 不做必填校验，未知或为 0 的题目在评分时跳过。
type SubmittedAnswer struct {
	QuestionID     uint `json:"questionId"`
	SelectedOption int  `json:"selectedOption" binding:"min=0"`
}

type QuestionResult struct {
	QuestionID     uint     `json:"questionId"`
	QuestionText   string   `json:"questionText"`
	Options        []string `json:"options"`
	SelectedOption int      `json:"selectedOption"`
	CorrectOption  int      `json:"correctOption"`
	IsCorrect      bool     `json:"isCorrect"`
	Score          int      `json:"score"`
	Marks          int      `json:"marks"`
}

type GradeResult struct {
	Score           int              `json:"score"`
	TotalMarks      int              `json:"totalMarks"`
	ScorePercentage int              `json:"scorePercentage"`
	IsPassed        bool             `json:"isPassed"`
	Results         []QuestionResult `json:"results"`
	// Skipped 不属于该测验的题目 ID，按出现顺序
	Skipped []uint `json:"skipped,omitempty"`
}

// Grade 计算一次提交的成绩。
//
// 每道测验题都会得到一条结果；未提交或选项越界的题按未作答处理。
// 同一题多次出现时以最后一次为准。不属于该测验的题目被跳过而不是报错。
// 百分比分母为开始答题时记录的 total_marks。
func Grade(attempt *model.QuizAttempt, quiz *model.Quiz, questions []model.Question, answers []SubmittedAnswer) GradeResult {
	byID := make(map[uint]*model.Question, len(questions))
	for i := range questions {
		if questions[i].QuizID == quiz.ID {
			byID[questions[i].ID] = &questions[i]
		}
	}

	selected := make(map[uint]int, len(answers))
	var skipped []uint
	for _, a := range answers {
		if _, ok := byID[a.QuestionID]; !ok {
			skipped = append(skipped, a.QuestionID)
			continue
		}
		opt := a.SelectedOption
		if !model.ValidOption(opt) {
			opt = 0
		}
		selected[a.QuestionID] = opt
	}

	ids := make([]uint, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	result := GradeResult{
		TotalMarks: attempt.TotalMarks,
		Results:    make([]QuestionResult, 0, len(ids)),
		Skipped:    skipped,
	}
	if result.TotalMarks <= 0 {
		result.TotalMarks = quiz.TotalMarks
	}

	for _, id := range ids {
		q := byID[id]
		opt := selected[id]
		correct := opt != 0 && opt == q.CorrectOption
		score := 0
		if correct {
			score = q.Marks
		}
		result.Score += score
		result.Results = append(result.Results, QuestionResult{
			QuestionID:     q.ID,
			QuestionText:   q.QuestionText,
			Options:        q.Options(),
			SelectedOption: opt,
			CorrectOption:  q.CorrectOption,
			IsCorrect:      correct,
			Score:          score,
			Marks:          q.Marks,
		})
	}

	result.ScorePercentage = Percentage(result.Score, result.TotalMarks)
	result.IsPassed = result.ScorePercentage >= quiz.PassingScore
	return result
}

// Percentage 四舍五入到整数，分母不大于 0 时返回 0
func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(score) / float64(total)))
}
