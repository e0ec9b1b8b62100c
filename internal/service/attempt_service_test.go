package service

import (
	"errors"
	"sync"
	"testing"
	"time"

	"quiz_master_backend/internal/config"
	"quiz_master_backend/internal/model"
	"quiz_master_backend/internal/repository"
	"quiz_master_backend/internal/testutil"
	"quiz_master_backend/internal/util"

	"gorm.io/gorm"
)

var baseTime = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func newAttemptService(t *testing.T, quizStart time.Time) (*AttemptService, *testutil.Fixture, *fakeClock, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	f := testutil.SeedQuiz(t, db, quizStart)

	cfg := &config.Config{
		Attempt: config.AttemptConfig{ExpiryEnabled: true, ExpiryGraceMinutes: 5},
		App:     config.AppConfig{Timezone: "UTC"},
	}
	s := NewAttemptService(
		db,
		repository.NewQuizRepository(db),
		repository.NewQuestionRepository(db),
		repository.NewAttemptRepository(db),
		repository.NewChapterRepository(db),
		repository.NewSubjectRepository(db),
		cfg,
	)
	clock := &fakeClock{t: baseTime}
	s.Clock = clock.Now
	return s, f, clock, db
}

func principalOf(f *testutil.Fixture) util.Principal {
	return util.Principal{SubjectID: f.User.ID, Role: model.RoleUser}
}

func allCorrect(f *testutil.Fixture) []SubmittedAnswer {
	answers := make([]SubmittedAnswer, len(f.Question))
	for i, q := range f.Question {
		answers[i] = SubmittedAnswer{QuestionID: q.ID, SelectedOption: q.CorrectOption}
	}
	return answers
}

func countInProgress(t *testing.T, db *gorm.DB, userID, quizID uint) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&model.QuizAttempt{}).
		Where("user_id = ? AND quiz_id = ? AND status = ?", userID, quizID, model.AttemptInProgress).
		Count(&n).Error; err != nil {
		t.Fatal(err)
	}
	return n
}

func TestStartAttemptUnavailableThenAvailable(t *testing.T) {
	s, f, clock, _ := newAttemptService(t, baseTime.Add(time.Hour))
	p := principalOf(f)

	_, err := s.StartAttempt(p, f.Quiz.ID)
	if !errors.Is(err, util.ErrQuizUnavailable) || !errors.Is(err, util.ErrQuizNotStarted) {
		t.Fatalf("err = %v, want not started", err)
	}

	avail, err := s.CheckAvailability(f.Quiz.ID)
	if err != nil {
		t.Fatal(err)
	}
	if avail.Available || avail.Reason != model.ReasonNotStarted || avail.TimeUntilStart == nil || *avail.TimeUntilStart != 3600 {
		t.Fatalf("availability = %+v", avail)
	}

	clock.Set(baseTime.Add(time.Hour))
	res, err := s.StartAttempt(p, f.Quiz.ID)
	if err != nil {
		t.Fatalf("StartAttempt after opening: %v", err)
	}
	if res.Attempt.Status != model.AttemptInProgress || res.Resumed {
		t.Fatalf("result = %+v", res)
	}
	if res.Attempt.Score != nil || res.Attempt.IsPassed != nil {
		t.Error("score fields must stay empty while in progress")
	}
	if res.Attempt.TotalMarks != 100 || res.TimeLimitSeconds != 30*60 {
		t.Errorf("total marks %d, limit %d", res.Attempt.TotalMarks, res.TimeLimitSeconds)
	}
}

func TestStartAttemptGating(t *testing.T) {
	s, f, _, db := newAttemptService(t, baseTime.Add(-time.Hour))
	p := principalOf(f)

	if _, err := s.StartAttempt(p, 9999); !errors.Is(err, util.ErrQuizNotFound) {
		t.Errorf("missing quiz: err = %v", err)
	}
	if _, err := s.CheckAvailability(9999); !errors.Is(err, util.ErrQuizNotFound) {
		t.Errorf("CheckAvailability missing quiz: err = %v", err)
	}

	db.Model(&model.Quiz{}).Where("id = ?", f.Quiz.ID).Update("is_locked", true)
	if _, err := s.StartAttempt(p, f.Quiz.ID); !errors.Is(err, util.ErrQuizLocked) {
		t.Errorf("locked: err = %v", err)
	}

	db.Model(&model.Quiz{}).Where("id = ?", f.Quiz.ID).Updates(map[string]interface{}{"is_locked": false, "is_active": false})
	if _, err := s.StartAttempt(p, f.Quiz.ID); !errors.Is(err, util.ErrQuizInactive) {
		t.Errorf("inactive: err = %v", err)
	}

	db.Model(&model.Quiz{}).Where("id = ?", f.Quiz.ID).Updates(map[string]interface{}{
		"is_active":  true,
		"end_date":   baseTime.Add(-time.Hour).Format(model.ScheduleDateLayout),
		"end_time":   baseTime.Add(-time.Hour).Format(model.ScheduleClockLayout),
		"start_date": baseTime.Add(-2 * time.Hour).Format(model.ScheduleDateLayout),
		"start_time": baseTime.Add(-2 * time.Hour).Format(model.ScheduleClockLayout),
	})
	if _, err := s.StartAttempt(p, f.Quiz.ID); !errors.Is(err, util.ErrQuizExpired) {
		t.Errorf("ended: err = %v", err)
	}

	db.Model(&model.Quiz{}).Where("id = ?", f.Quiz.ID).Updates(map[string]interface{}{"end_date": nil, "end_time": nil})
	db.Where("quiz_id = ?", f.Quiz.ID).Delete(&model.Question{})
	if _, err := s.StartAttempt(p, f.Quiz.ID); !errors.Is(err, util.ErrNoQuestions) {
		t.Errorf("empty quiz: err = %v", err)
	}
}

func TestStartAttemptIsIdempotent(t *testing.T) {
	s, f, _, db := newAttemptService(t, baseTime.Add(-time.Hour))
	p := principalOf(f)

	first, err := s.StartAttempt(p, f.Quiz.ID)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.StartAttempt(p, f.Quiz.ID)
	if err != nil {
		t.Fatal(err)
	}
	if second.Attempt.ID != first.Attempt.ID || !second.Resumed {
		t.Fatalf("second start = %+v, want resume of %d", second, first.Attempt.ID)
	}
	if n := countInProgress(t, db, f.User.ID, f.Quiz.ID); n != 1 {
		t.Fatalf("%d in-progress attempts", n)
	}

	var responses []model.QuizResponse
	db.Where("attempt_id = ?", first.Attempt.ID).Find(&responses)
	if len(responses) != len(f.Question) {
		t.Fatalf("got %d eager responses, want %d", len(responses), len(f.Question))
	}
	for _, r := range responses {
		if r.SelectedOption != nil || r.Score != nil {
			t.Errorf("fresh response %+v should be empty", r)
		}
	}
}

func TestConcurrentStartCreatesOneAttempt(t *testing.T) {
	s, f, _, db := newAttemptService(t, baseTime.Add(-time.Hour))
	p := principalOf(f)

	const n = 8
	ids := make([]uint, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := s.StartAttempt(p, f.Quiz.ID)
			errs[i] = err
			if err == nil {
				ids[i] = res.Attempt.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("start %d: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("start %d returned attempt %d, want %d", i, ids[i], ids[0])
		}
	}
	if c := countInProgress(t, db, f.User.ID, f.Quiz.ID); c != 1 {
		t.Fatalf("%d in-progress attempts", c)
	}
}

func TestSubmitAttemptScoresOnce(t *testing.T) {
	s, f, _, db := newAttemptService(t, baseTime.Add(-time.Hour))
	p := principalOf(f)

	started, err := s.StartAttempt(p, f.Quiz.ID)
	if err != nil {
		t.Fatal(err)
	}
	taken := 12
	res, err := s.SubmitAttempt(p, started.Attempt.ID, SubmitRequest{Answers: allCorrect(f), TimeTaken: &taken})
	if err != nil {
		t.Fatalf("SubmitAttempt: %v", err)
	}
	if res.Score != 100 || res.ScorePercentage != 100 || !res.IsPassed || res.TotalMarks != 100 {
		t.Fatalf("result = %+v", res)
	}

	wrong := []SubmittedAnswer{{QuestionID: f.Question[0].ID, SelectedOption: 1}}
	if _, err := s.SubmitAttempt(p, started.Attempt.ID, SubmitRequest{Answers: wrong}); !errors.Is(err, util.ErrAlreadySubmitted) {
		t.Fatalf("resubmit err = %v", err)
	}

	var stored model.QuizAttempt
	db.First(&stored, started.Attempt.ID)
	if stored.Status != model.AttemptCompleted || *stored.Score != 100 || !*stored.IsPassed {
		t.Fatalf("stored attempt changed: %+v", stored)
	}
	if stored.InProgressKey != nil || stored.EndTime == nil || *stored.TimeTaken != 12 {
		t.Errorf("finalized fields: key %v end %v taken %v", stored.InProgressKey, stored.EndTime, stored.TimeTaken)
	}

	next, err := s.StartAttempt(p, f.Quiz.ID)
	if err != nil {
		t.Fatal(err)
	}
	if next.Resumed || next.Attempt.ID == started.Attempt.ID {
		t.Error("a completed attempt must not be resumed")
	}
}

func TestConcurrentSubmitExactlyOnce(t *testing.T) {
	s, f, _, _ := newAttemptService(t, baseTime.Add(-time.Hour))
	p := principalOf(f)

	started, err := s.StartAttempt(p, f.Quiz.ID)
	if err != nil {
		t.Fatal(err)
	}

	const n = 6
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.SubmitAttempt(p, started.Attempt.ID, SubmitRequest{Answers: allCorrect(f)})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, util.ErrAlreadySubmitted):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("%d submissions succeeded, want exactly 1", ok)
	}
}

func TestSubmitAttemptValidation(t *testing.T) {
	s, f, _, _ := newAttemptService(t, baseTime.Add(-time.Hour))
	p := principalOf(f)

	started, err := s.StartAttempt(p, f.Quiz.ID)
	if err != nil {
		t.Fatal(err)
	}
	id := started.Attempt.ID

	stranger := util.Principal{SubjectID: f.User.ID + 100, Role: model.RoleUser}
	if _, err := s.SubmitAttempt(stranger, id, SubmitRequest{Answers: allCorrect(f)}); !errors.Is(err, util.ErrPermissionDenied) {
		t.Errorf("stranger: err = %v", err)
	}
	admin := util.Principal{SubjectID: f.User.ID + 101, Role: model.RoleAdmin}
	if _, err := s.GetAttempt(admin, id); !errors.Is(err, util.ErrPermissionDenied) {
		t.Errorf("admin read: err = %v", err)
	}
	if _, err := s.SubmitAttempt(p, id, SubmitRequest{}); !errors.Is(err, util.ErrMissingAnswers) {
		t.Errorf("nil answers: err = %v", err)
	}
	negative := -1
	if _, err := s.SubmitAttempt(p, id, SubmitRequest{Answers: allCorrect(f), TimeTaken: &negative}); !errors.Is(err, util.ErrInvalidInput) {
		t.Errorf("negative time: err = %v", err)
	}
	if _, err := s.SubmitAttempt(p, 9999, SubmitRequest{Answers: allCorrect(f)}); !errors.Is(err, util.ErrAttemptNotFound) {
		t.Errorf("missing attempt: err = %v", err)
	}

	res, err := s.SubmitAttempt(p, id, SubmitRequest{Answers: []SubmittedAnswer{}})
	if err != nil {
		t.Fatalf("empty answer list: %v", err)
	}
	if res.Score != 0 || res.IsPassed {
		t.Errorf("empty submission result = %+v", res)
	}
}

func TestSubmitAttemptSkipsForeignQuestions(t *testing.T) {
	s, f, _, db := newAttemptService(t, baseTime.Add(-time.Hour))
	p := principalOf(f)

	other := testutil.SeedQuiz(t, db, baseTime.Add(-time.Hour))

	started, err := s.StartAttempt(p, f.Quiz.ID)
	if err != nil {
		t.Fatal(err)
	}
	answers := []SubmittedAnswer{
		{QuestionID: f.Question[0].ID, SelectedOption: f.Question[0].CorrectOption},
		{QuestionID: other.Question[0].ID, SelectedOption: other.Question[0].CorrectOption},
		{QuestionID: 424242, SelectedOption: 1},
	}
	res, err := s.SubmitAttempt(p, started.Attempt.ID, SubmitRequest{Answers: answers})
	if err != nil {
		t.Fatal(err)
	}
	if res.Score != 50 || res.ScorePercentage != 50 || !res.IsPassed {
		t.Fatalf("result = %+v", res)
	}

	var foreign int64
	db.Model(&model.QuizResponse{}).
		Where("attempt_id = ? AND question_id = ?", started.Attempt.ID, other.Question[0].ID).
		Count(&foreign)
	if foreign != 0 {
		t.Error("response stored for a question of another quiz")
	}
}

func TestGetAttemptQuestionsAndResults(t *testing.T) {
	s, f, _, _ := newAttemptService(t, baseTime.Add(-time.Hour))
	p := principalOf(f)

	started, err := s.StartAttempt(p, f.Quiz.ID)
	if err != nil {
		t.Fatal(err)
	}
	id := started.Attempt.ID

	if _, err := s.GetAttemptResults(p, id); !errors.Is(err, util.ErrNotCompleted) {
		t.Fatalf("results before submit: err = %v", err)
	}
	stranger := util.Principal{SubjectID: f.User.ID + 1, Role: model.RoleUser}
	if _, err := s.GetAttemptQuestions(stranger, id); !errors.Is(err, util.ErrPermissionDenied) {
		t.Fatalf("stranger questions: err = %v", err)
	}

	qs, err := s.GetAttemptQuestions(p, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(qs.Questions) != len(f.Question) || qs.RemainingSeconds != 30*60 {
		t.Fatalf("questions = %+v", qs)
	}

	answers := []SubmittedAnswer{
		{QuestionID: f.Question[0].ID, SelectedOption: f.Question[0].CorrectOption},
		{QuestionID: f.Question[1].ID, SelectedOption: 0},
	}
	if _, err := s.SubmitAttempt(p, id, SubmitRequest{Answers: answers}); err != nil {
		t.Fatal(err)
	}

	if _, err := s.GetAttemptQuestions(p, id); !errors.Is(err, util.ErrNotInProgress) {
		t.Fatalf("questions after submit: err = %v", err)
	}

	results, err := s.GetAttemptResults(p, id)
	if err != nil {
		t.Fatal(err)
	}
	want := ResultStats{TotalQuestions: 2, Correct: 1, Incorrect: 0, Unattempted: 1}
	if results.Stats != want {
		t.Fatalf("stats = %+v, want %+v", results.Stats, want)
	}
	if results.Questions[0].CorrectOption != f.Question[0].CorrectOption {
		t.Error("results should include the answer key")
	}

	history, err := s.ListMyAttempts(p)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].QuizTitle != f.Quiz.Title || history[0].SubjectName != f.Subject.Name {
		t.Fatalf("history = %+v", history)
	}
}

func TestExpireOverdueAttempts(t *testing.T) {
	s, f, clock, db := newAttemptService(t, baseTime.Add(-time.Hour))
	p := principalOf(f)

	started, err := s.StartAttempt(p, f.Quiz.ID)
	if err != nil {
		t.Fatal(err)
	}

	clock.Set(baseTime.Add(35 * time.Minute))
	if n, err := s.ExpireOverdueAttempts(); err != nil || n != 0 {
		t.Fatalf("within grace: n=%d err=%v", n, err)
	}

	clock.Set(baseTime.Add(35*time.Minute + time.Second))
	n, err := s.ExpireOverdueAttempts()
	if err != nil || n != 1 {
		t.Fatalf("after grace: n=%d err=%v", n, err)
	}

	var stored model.QuizAttempt
	db.First(&stored, started.Attempt.ID)
	if stored.Status != model.AttemptExpired || stored.InProgressKey != nil || stored.Score != nil {
		t.Fatalf("expired attempt = %+v", stored)
	}

	if _, err := s.SubmitAttempt(p, stored.ID, SubmitRequest{Answers: allCorrect(f)}); !errors.Is(err, util.ErrAlreadySubmitted) {
		t.Fatalf("submit expired: err = %v", err)
	}

	next, err := s.StartAttempt(p, f.Quiz.ID)
	if err != nil {
		t.Fatal(err)
	}
	if next.Resumed {
		t.Error("expired attempt must not be resumed")
	}

	s.Settings.ExpiryEnabled = false
	clock.Set(baseTime.Add(24 * time.Hour))
	if n, _ := s.ExpireOverdueAttempts(); n != 0 {
		t.Errorf("disabled sweep expired %d attempts", n)
	}
}

func TestSubmitAttemptRollsBackOnResponseFailure(t *testing.T) {
	s, f, _, db := newAttemptService(t, baseTime.Add(-time.Hour))
	p := principalOf(f)

	started, err := s.StartAttempt(p, f.Quiz.ID)
	if err != nil {
		t.Fatal(err)
	}

	const cb = "test:fail_quiz_responses"
	err = db.Callback().Create().Before("gorm:create").Register(cb, func(tx *gorm.DB) {
		if tx.Statement.Table == "quiz_responses" {
			tx.AddError(errors.New("boom"))
		}
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = s.SubmitAttempt(p, started.Attempt.ID, SubmitRequest{Answers: allCorrect(f)})
	if !errors.Is(err, util.ErrDatabase) {
		t.Fatalf("err = %v, want database error", err)
	}

	var stored model.QuizAttempt
	if err := db.First(&stored, started.Attempt.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.Status != model.AttemptInProgress {
		t.Errorf("status = %s, want in_progress after rollback", stored.Status)
	}
	if stored.Score != nil || stored.IsPassed != nil || stored.EndTime != nil {
		t.Errorf("score fields written despite rollback: %+v", stored)
	}
	wantKey := model.InProgressKey(f.User.ID, f.Quiz.ID)
	if stored.InProgressKey == nil || *stored.InProgressKey != wantKey {
		t.Errorf("in_progress_key = %v, want %s", stored.InProgressKey, wantKey)
	}

	var answered int64
	db.Model(&model.QuizResponse{}).
		Where("attempt_id = ? AND selected_option IS NOT NULL", started.Attempt.ID).
		Count(&answered)
	if answered != 0 {
		t.Errorf("%d responses written despite rollback", answered)
	}

	// 故障消除后同一答题仍可提交
	if err := db.Callback().Create().Remove(cb); err != nil {
		t.Fatal(err)
	}
	res, err := s.SubmitAttempt(p, started.Attempt.ID, SubmitRequest{Answers: allCorrect(f)})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if res.Score != 100 || !res.IsPassed {
		t.Errorf("retry result = %+v", res)
	}
}
