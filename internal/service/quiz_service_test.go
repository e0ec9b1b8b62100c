package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quiz_master_backend/internal/model"
	"quiz_master_backend/internal/repository"
	"quiz_master_backend/internal/testutil"
	"quiz_master_backend/internal/util"
	"quiz_master_backend/pkg/cache"

	"gorm.io/gorm"
)

// memCache 记录删除次数的内存缓存
type memCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	deletes int
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}}
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return v, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	c.deletes++
	return nil
}

func (c *memCache) Ping(context.Context) error { return nil }

type catalogEnv struct {
	db        *gorm.DB
	f         *testutil.Fixture
	cache     *memCache
	quizzes   *QuizService
	questions *QuestionService
	catalog   *CatalogService
	admin     util.Principal
}

func newCatalogEnv(t *testing.T) *catalogEnv {
	t.Helper()
	db := testutil.NewDB(t)
	f := testutil.SeedQuiz(t, db, baseTime.Add(-3*time.Hour))
	c := newMemCache()

	quizRepo := repository.NewQuizRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	chapterRepo := repository.NewChapterRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)

	quizzes := NewQuizService(quizRepo, questionRepo, chapterRepo, subjectRepo, c, time.UTC, time.Minute)
	quizzes.Clock = func() time.Time { return baseTime }

	return &catalogEnv{
		db:        db,
		f:         f,
		cache:     c,
		quizzes:   quizzes,
		questions: NewQuestionService(quizRepo, questionRepo, c),
		catalog:   NewCatalogService(subjectRepo, chapterRepo, quizRepo, c),
		admin:     util.Principal{SubjectID: 1, Role: model.RoleAdmin},
	}
}

func validQuizRequest() QuizRequest {
	return QuizRequest{
		Title:        "Quadratics",
		StartDate:    "2025-03-10",
		StartTime:    "09:00",
		EndDate:      strPtr("2025-03-10"),
		EndTime:      strPtr("18:00"),
		TimeDuration: 20,
		PassingScore: 60,
		TotalMarks:   100,
	}
}

func strPtr(s string) *string { return &s }

func TestCreateQuizValidation(t *testing.T) {
	env := newCatalogEnv(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(r *QuizRequest)
		wantErr error
	}{
		{"valid", func(r *QuizRequest) {}, nil},
		{"open ended", func(r *QuizRequest) { r.EndDate, r.EndTime = nil, nil }, nil},
		{"passing score 0", func(r *QuizRequest) { r.PassingScore = 0 }, nil},
		{"passing score 100", func(r *QuizRequest) { r.PassingScore = 100 }, nil},
		{"passing score above 100", func(r *QuizRequest) { r.PassingScore = 101 }, util.ErrInvalidInput},
		{"negative passing score", func(r *QuizRequest) { r.PassingScore = -1 }, util.ErrInvalidInput},
		{"zero total marks", func(r *QuizRequest) { r.TotalMarks = 0 }, util.ErrInvalidInput},
		{"zero duration", func(r *QuizRequest) { r.TimeDuration = 0 }, util.ErrInvalidInput},
		{"blank title", func(r *QuizRequest) { r.Title = "  " }, util.ErrInvalidInput},
		{"bad start date", func(r *QuizRequest) { r.StartDate = "10/03/2025" }, util.ErrInvalidInput},
		{"bad start time", func(r *QuizRequest) { r.StartTime = "9am" }, util.ErrInvalidInput},
		{"end date without time", func(r *QuizRequest) { r.EndTime = nil }, util.ErrInvalidInput},
		{"end time without date", func(r *QuizRequest) { r.EndDate = nil }, util.ErrInvalidInput},
		{"end before start", func(r *QuizRequest) { r.EndTime = strPtr("08:00") }, util.ErrInvalidInput},
		{"end equals start", func(r *QuizRequest) { r.EndTime = strPtr("09:00") }, util.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validQuizRequest()
			tt.mutate(&req)
			quiz, err := env.quizzes.CreateQuiz(ctx, env.admin, env.f.Chapter.ID, req)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateQuiz: %v", err)
			}
			if !quiz.IsActive || !quiz.AutoLockAfterExpiry || quiz.CreatedBy != env.admin.SubjectID {
				t.Errorf("defaults not applied: %+v", quiz)
			}
		})
	}

	if _, err := env.quizzes.CreateQuiz(ctx, env.admin, 9999, validQuizRequest()); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("missing chapter err = %v", err)
	}
}

func TestUpdateQuizIsPartial(t *testing.T) {
	env := newCatalogEnv(t)
	ctx := context.Background()

	created, err := env.quizzes.CreateQuiz(ctx, env.admin, env.f.Chapter.ID, validQuizRequest())
	if err != nil {
		t.Fatal(err)
	}

	load := func(t *testing.T) *model.Quiz {
		t.Helper()
		var q model.Quiz
		if err := env.db.First(&q, created.ID).Error; err != nil {
			t.Fatal(err)
		}
		return &q
	}

	t.Run("title only keeps the rest", func(t *testing.T) {
		if _, err := env.quizzes.UpdateQuiz(ctx, created.ID, QuizUpdateRequest{Title: strPtr("Renamed")}); err != nil {
			t.Fatal(err)
		}
		q := load(t)
		if q.Title != "Renamed" {
			t.Errorf("title = %q", q.Title)
		}
		if q.PassingScore != 60 || q.TotalMarks != 100 || q.TimeDuration != 20 {
			t.Errorf("scores changed: passing %d total %d duration %d", q.PassingScore, q.TotalMarks, q.TimeDuration)
		}
		if q.EndDate == nil || *q.EndDate != "2025-03-10" || q.EndTime == nil || *q.EndTime != "18:00" {
			t.Errorf("end boundary changed: %v %v", q.EndDate, q.EndTime)
		}
	})

	t.Run("passing score only", func(t *testing.T) {
		if _, err := env.quizzes.UpdateQuiz(ctx, created.ID, QuizUpdateRequest{PassingScore: util.IntPtr(0)}); err != nil {
			t.Fatal(err)
		}
		if q := load(t); q.PassingScore != 0 || q.Title != "Renamed" {
			t.Errorf("passing %d title %q", q.PassingScore, q.Title)
		}
	})

	t.Run("invalid merge is rejected and not saved", func(t *testing.T) {
		tests := []struct {
			name string
			req  QuizUpdateRequest
		}{
			{"passing score above 100", QuizUpdateRequest{PassingScore: util.IntPtr(150)}},
			{"clearing only end date", QuizUpdateRequest{EndDate: strPtr("")}},
			{"end moved before start", QuizUpdateRequest{EndTime: strPtr("08:30")}},
			{"zero total marks", QuizUpdateRequest{TotalMarks: util.IntPtr(0)}},
		}
		for _, tt := range tests {
			if _, err := env.quizzes.UpdateQuiz(ctx, created.ID, tt.req); !errors.Is(err, util.ErrInvalidInput) {
				t.Errorf("%s: err = %v, want invalid input", tt.name, err)
			}
		}
		q := load(t)
		if q.PassingScore != 0 || q.TotalMarks != 100 || q.EndDate == nil || *q.EndTime != "18:00" {
			t.Errorf("rejected update was persisted: %+v", q)
		}
	})

	t.Run("clearing both end fields makes it open ended", func(t *testing.T) {
		if _, err := env.quizzes.UpdateQuiz(ctx, created.ID, QuizUpdateRequest{EndDate: strPtr(""), EndTime: strPtr("")}); err != nil {
			t.Fatal(err)
		}
		if q := load(t); q.HasEnd() {
			t.Errorf("end still set: %v %v", q.EndDate, q.EndTime)
		}
	})

	if _, err := env.quizzes.UpdateQuiz(ctx, 9999, QuizUpdateRequest{}); !errors.Is(err, util.ErrQuizNotFound) {
		t.Errorf("missing quiz err = %v", err)
	}
}

func validQuestionRequest() QuestionRequest {
	return QuestionRequest{
		QuestionText:  "3x=9",
		Option1:       "1",
		Option2:       "2",
		Option3:       "3",
		Option4:       "4",
		CorrectOption: 3,
		Marks:         10,
	}
}

func TestQuestionValidation(t *testing.T) {
	env := newCatalogEnv(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(r *QuestionRequest)
		wantErr error
	}{
		{"valid", func(r *QuestionRequest) {}, nil},
		{"correct option 1", func(r *QuestionRequest) { r.CorrectOption = 1 }, nil},
		{"correct option 4", func(r *QuestionRequest) { r.CorrectOption = 4 }, nil},
		{"correct option 0", func(r *QuestionRequest) { r.CorrectOption = 0 }, util.ErrInvalidInput},
		{"correct option 5", func(r *QuestionRequest) { r.CorrectOption = 5 }, util.ErrInvalidInput},
		{"zero marks", func(r *QuestionRequest) { r.Marks = 0 }, util.ErrInvalidInput},
		{"negative marks", func(r *QuestionRequest) { r.Marks = -5 }, util.ErrInvalidInput},
		{"blank text", func(r *QuestionRequest) { r.QuestionText = " " }, util.ErrInvalidInput},
		{"blank option", func(r *QuestionRequest) { r.Option3 = "" }, util.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validQuestionRequest()
			tt.mutate(&req)
			_, err := env.questions.Create(ctx, env.admin, env.f.Quiz.ID, req)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Create: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := env.questions.Create(ctx, env.admin, 9999, validQuestionRequest()); !errors.Is(err, util.ErrQuizNotFound) {
		t.Errorf("missing quiz err = %v", err)
	}
}

func TestUpdateQuestionIsPartial(t *testing.T) {
	env := newCatalogEnv(t)
	ctx := context.Background()
	id := env.f.Question[0].ID

	updated, err := env.questions.Update(ctx, id, QuestionUpdateRequest{Marks: util.IntPtr(25)})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Marks != 25 || updated.CorrectOption != 2 || updated.QuestionText != "x+1=2" || updated.Option4 != "3" {
		t.Errorf("unexpected question after update: %+v", updated)
	}

	if _, err := env.questions.Update(ctx, id, QuestionUpdateRequest{CorrectOption: util.IntPtr(7)}); !errors.Is(err, util.ErrInvalidInput) {
		t.Errorf("err = %v, want invalid input", err)
	}
	stored, err := env.questions.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if stored.CorrectOption != 2 || stored.Marks != 25 {
		t.Errorf("rejected update was persisted: %+v", stored)
	}
}

func availableIDs(t *testing.T, env *catalogEnv) []uint {
	t.Helper()
	list, err := env.quizzes.ListAvailable(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	ids := make([]uint, len(list))
	for i, q := range list {
		ids[i] = q.ID
	}
	return ids
}

func TestListAvailableFiltersAndInvalidates(t *testing.T) {
	env := newCatalogEnv(t)
	ctx := context.Background()

	ids := availableIDs(t, env)
	if len(ids) != 1 || ids[0] != env.f.Quiz.ID {
		t.Fatalf("available = %v, want [%d]", ids, env.f.Quiz.ID)
	}

	// 直接改库不会失效缓存，仍返回缓存结果
	env.db.Model(&model.Quiz{}).Where("id = ?", env.f.Quiz.ID).Update("is_locked", true)
	if ids := availableIDs(t, env); len(ids) != 1 {
		t.Fatalf("expected cached result, got %v", ids)
	}
	env.db.Model(&model.Quiz{}).Where("id = ?", env.f.Quiz.ID).Update("is_locked", false)

	// 没有题目的测验不出现
	empty, err := env.quizzes.CreateQuiz(ctx, env.admin, env.f.Chapter.ID, validQuizRequest())
	if err != nil {
		t.Fatal(err)
	}
	if ids := availableIDs(t, env); len(ids) != 1 {
		t.Fatalf("quiz without questions listed: %v", ids)
	}

	if _, err := env.questions.Create(ctx, env.admin, empty.ID, validQuestionRequest()); err != nil {
		t.Fatal(err)
	}
	if ids := availableIDs(t, env); len(ids) != 2 {
		t.Fatalf("after adding a question: %v", ids)
	}

	if err := env.quizzes.SetLocked(ctx, env.f.Quiz.ID, true); err != nil {
		t.Fatal(err)
	}
	if ids := availableIDs(t, env); len(ids) != 1 || ids[0] != empty.ID {
		t.Fatalf("after lock: %v", ids)
	}

	if _, err := env.quizzes.UpdateQuiz(ctx, empty.ID, QuizUpdateRequest{StartTime: strPtr("13:00"), EndTime: strPtr("18:00")}); err != nil {
		t.Fatal(err)
	}
	if ids := availableIDs(t, env); len(ids) != 0 {
		t.Fatalf("not started quiz listed: %v", ids)
	}
	if _, err := env.quizzes.UpdateQuiz(ctx, empty.ID, QuizUpdateRequest{StartTime: strPtr("09:00")}); err != nil {
		t.Fatal(err)
	}

	off := false
	if _, err := env.catalog.UpdateChapter(ctx, env.f.Chapter.ID, ChapterRequest{Name: "Algebra", Description: "-", IsActive: &off}); err != nil {
		t.Fatal(err)
	}
	if ids := availableIDs(t, env); len(ids) != 0 {
		t.Fatalf("inactive chapter still listed: %v", ids)
	}

	on := true
	if _, err := env.catalog.UpdateChapter(ctx, env.f.Chapter.ID, ChapterRequest{Name: "Algebra", Description: "-", IsActive: &on}); err != nil {
		t.Fatal(err)
	}
	if err := env.db.Model(&model.Subject{}).Where("id = ?", env.f.Subject.ID).Update("is_active", false).Error; err != nil {
		t.Fatal(err)
	}
	env.cache.Delete(ctx, availableQuizzesKey)
	if ids := availableIDs(t, env); len(ids) != 0 {
		t.Fatalf("inactive subject still listed: %v", ids)
	}

	// 新建、加题、锁定、两次更新、两次章节更新各失效一次，外加手动删除
	if env.cache.deletes != 8 {
		t.Errorf("cache deletes = %d, want 8", env.cache.deletes)
	}
}
