package service

import (
	"reflect"
	"testing"

	"quiz_master_backend/internal/model"
)

func gradingFixture() (*model.QuizAttempt, *model.Quiz, []model.Question) {
	quiz := &model.Quiz{TotalMarks: 100, PassingScore: 50}
	quiz.ID = 1
	q1 := model.Question{QuizID: 1, QuestionText: "2+2", Option1: "3", Option2: "4", Option3: "5", Option4: "6", CorrectOption: 2, Marks: 50}
	q1.ID = 10
	q2 := model.Question{QuizID: 1, QuestionText: "3*3", Option1: "6", Option2: "8", Option3: "9", Option4: "12", CorrectOption: 3, Marks: 50}
	q2.ID = 11
	attempt := &model.QuizAttempt{QuizID: 1, TotalMarks: 100}
	return attempt, quiz, []model.Question{q1, q2}
}

func TestGradeScenarios(t *testing.T) {
	attempt, quiz, questions := gradingFixture()

	tests := []struct {
		name    string
		answers []SubmittedAnswer
		score   int
		pct     int
		passed  bool
	}{
		{
			name:    "both correct",
			answers: []SubmittedAnswer{{10, 2}, {11, 3}},
			score:   100, pct: 100, passed: true,
		},
		{
			name:    "one correct passes on the boundary",
			answers: []SubmittedAnswer{{10, 2}, {11, 1}},
			score:   50, pct: 50, passed: true,
		},
		{
			name:    "none correct",
			answers: []SubmittedAnswer{{10, 1}, {11, 1}},
			score:   0, pct: 0, passed: false,
		},
		{
			name:    "empty answer set",
			answers: []SubmittedAnswer{},
			score:   0, pct: 0, passed: false,
		},
		{
			name:    "unknown question skipped",
			answers: []SubmittedAnswer{{10, 2}, {999, 1}},
			score:   50, pct: 50, passed: true,
		},
		{
			name:    "last duplicate wins",
			answers: []SubmittedAnswer{{10, 1}, {10, 2}},
			score:   50, pct: 50, passed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Grade(attempt, quiz, questions, tt.answers)
			if got.Score != tt.score || got.ScorePercentage != tt.pct || got.IsPassed != tt.passed {
				t.Fatalf("Grade() = score %d pct %d passed %v, want %d %d %v",
					got.Score, got.ScorePercentage, got.IsPassed, tt.score, tt.pct, tt.passed)
			}
			if got.TotalMarks != 100 {
				t.Errorf("TotalMarks = %d", got.TotalMarks)
			}
			if len(got.Results) != len(questions) {
				t.Errorf("got %d results, want one per question", len(got.Results))
			}
			if got.IsPassed != (got.ScorePercentage >= quiz.PassingScore) {
				t.Error("is_passed disagrees with percentage")
			}
		})
	}
}

func TestGradeSkipsForeignQuestion(t *testing.T) {
	attempt, quiz, questions := gradingFixture()
	foreign := model.Question{QuizID: 2, CorrectOption: 1, Marks: 100}
	foreign.ID = 20

	got := Grade(attempt, quiz, append(questions, foreign), []SubmittedAnswer{{20, 1}, {10, 2}})
	if got.Score != 50 {
		t.Fatalf("Score = %d, want 50", got.Score)
	}
	if !reflect.DeepEqual(got.Skipped, []uint{20}) {
		t.Errorf("Skipped = %v", got.Skipped)
	}
}

func TestGradeNormalizesUnanswered(t *testing.T) {
	attempt, quiz, questions := gradingFixture()

	got := Grade(attempt, quiz, questions, []SubmittedAnswer{{10, 7}})
	for _, r := range got.Results {
		if r.SelectedOption != 0 || r.IsCorrect || r.Score != 0 {
			t.Errorf("question %d: %+v, want unanswered", r.QuestionID, r)
		}
	}
	if got.Results[0].QuestionID != 10 || got.Results[1].QuestionID != 11 {
		t.Errorf("results not ordered by question id")
	}
}

func TestGradeDeterministic(t *testing.T) {
	attempt, quiz, questions := gradingFixture()
	answers := []SubmittedAnswer{{11, 3}, {10, 4}}

	a := Grade(attempt, quiz, questions, answers)
	b := Grade(attempt, quiz, questions, answers)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("grading differs between runs:\n%+v\n%+v", a, b)
	}
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		score, total, want int
	}{
		{0, 0, 0},
		{5, 0, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 8, 13},
		{7, 7, 100},
	}
	for _, tt := range tests {
		if got := Percentage(tt.score, tt.total); got != tt.want {
			t.Errorf("Percentage(%d, %d) = %d, want %d", tt.score, tt.total, got, tt.want)
		}
	}
}
