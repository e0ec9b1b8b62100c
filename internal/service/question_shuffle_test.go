package service

import (
	"encoding/json"
	"sort"
	"strings"
	"testing"

	"quiz_master_backend/internal/model"
)

func questionSet(n int) []model.Question {
	qs := make([]model.Question, n)
	for i := range qs {
		qs[i] = model.Question{QuizID: 1, QuestionText: "q", Option1: "a", Option2: "b", Option3: "c", Option4: "d", CorrectOption: 3, Marks: 1}
		qs[i].ID = uint(i + 1)
	}
	return qs
}

func TestQuestionsForAttemptKeepsIDSet(t *testing.T) {
	qs := questionSet(20)

	for run := 0; run < 5; run++ {
		views := QuestionsForAttempt(qs, nil, nil)
		if len(views) != len(qs) {
			t.Fatalf("got %d views, want %d", len(views), len(qs))
		}
		ids := make([]int, len(views))
		for i, v := range views {
			ids[i] = int(v.ID)
		}
		sort.Ints(ids)
		for i, id := range ids {
			if id != i+1 {
				t.Fatalf("id set changed: %v", ids)
			}
		}
	}
}

func TestQuestionsForAttemptHidesCorrectOption(t *testing.T) {
	b, err := json.Marshal(QuestionsForAttempt(questionSet(3), nil, nil))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(strings.ToLower(string(b)), "correct") {
		t.Fatalf("answer key leaked: %s", b)
	}
}

func TestQuestionsForAttemptUsesShuffler(t *testing.T) {
	reverse := func(n int, swap func(i, j int)) {
		for i := 0; i < n/2; i++ {
			swap(i, n-1-i)
		}
	}
	views := QuestionsForAttempt(questionSet(4), nil, reverse)
	want := []uint{4, 3, 2, 1}
	for i, v := range views {
		if v.ID != want[i] {
			t.Fatalf("order = %v, want %v", views, want)
		}
	}
}

func TestQuestionsForAttemptRestoresSelections(t *testing.T) {
	two := 2
	zero := 0
	responses := []model.QuizResponse{
		{QuestionID: 1, SelectedOption: &two},
		{QuestionID: 2, SelectedOption: &zero},
		{QuestionID: 3},
	}
	views := QuestionsForAttempt(questionSet(3), responses, func(int, func(i, j int)) {})
	if views[0].SelectedOption == nil || *views[0].SelectedOption != 2 {
		t.Errorf("question 1 selection = %v", views[0].SelectedOption)
	}
	if views[1].SelectedOption != nil || views[2].SelectedOption != nil {
		t.Error("unanswered questions should carry no selection")
	}
}
