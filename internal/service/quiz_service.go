package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"quiz_master_backend/internal/model"
	"quiz_master_backend/internal/repository"
	"quiz_master_backend/internal/util"
	"quiz_master_backend/pkg/cache"
	"quiz_master_backend/pkg/logger"

	"github.com/jinzhu/copier"
	"go.uber.org/zap"
)

const availableQuizzesKey = "quizzes:available"

type QuizRequest struct {
	Title               string  `json:"title" binding:"required,max=255"`
	Description         string  `json:"description"`
	StartDate           string  `json:"startDate" binding:"required,isodate"`
	StartTime           string  `json:"startTime" binding:"required,hhmm"`
	EndDate             *string `json:"endDate" binding:"omitempty,isodate"`
	EndTime             *string `json:"endTime" binding:"omitempty,hhmm"`
	TimeDuration        int     `json:"timeDuration" binding:"required,min=1"`
	PassingScore        int     `json:"passingScore" binding:"min=0,max=100"`
	TotalMarks          int     `json:"totalMarks" binding:"required,min=1"`
	AutoLockAfterExpiry *bool   `json:"autoLockAfterExpiry"`
	IsActive            *bool   `json:"isActive"`
}

// QuizUpdateRequest 部分更新，只修改请求中出现的字段。
// endDate/endTime 传空字符串表示去掉结束时间。
type QuizUpdateRequest struct {
	Title               *string `json:"title" binding:"omitempty,max=255"`
	Description         *string `json:"description"`
	StartDate           *string `json:"startDate" binding:"omitempty,isodate"`
	StartTime           *string `json:"startTime" binding:"omitempty,hhmm"`
	EndDate             *string `json:"endDate" binding:"omitempty,isodate"`
	EndTime             *string `json:"endTime" binding:"omitempty,hhmm"`
	TimeDuration        *int    `json:"timeDuration" binding:"omitempty,min=1"`
	PassingScore        *int    `json:"passingScore" binding:"omitempty,min=0,max=100"`
	TotalMarks          *int    `json:"totalMarks" binding:"omitempty,min=1"`
	AutoLockAfterExpiry *bool   `json:"autoLockAfterExpiry"`
	IsActive            *bool   `json:"isActive"`
}

type QuizView struct {
	ID                  uint             `json:"id"`
	ChapterID           uint             `json:"chapterId"`
	Title               string           `json:"title"`
	Description         string           `json:"description"`
	StartDate           string           `json:"startDate"`
	StartTime           string           `json:"startTime"`
	EndDate             *string          `json:"endDate"`
	EndTime             *string          `json:"endTime"`
	TimeDuration        int              `json:"timeDuration"`
	PassingScore        int              `json:"passingScore"`
	TotalMarks          int              `json:"totalMarks"`
	AutoLockAfterExpiry bool             `json:"autoLockAfterExpiry"`
	IsLocked            bool             `json:"isLocked"`
	IsActive            bool             `json:"isActive"`
	CreatedAt           time.Time        `json:"createdAt"`
	QuestionCount       int64            `json:"questionCount"`
	Availability        AvailabilityView `json:"availability"`
}

type AvailableQuiz struct {
	ID            uint    `json:"id"`
	Title         string  `json:"title"`
	ChapterID     uint    `json:"chapterId"`
	ChapterName   string  `json:"chapterName"`
	SubjectID     uint    `json:"subjectId"`
	SubjectName   string  `json:"subjectName"`
	StartDate     string  `json:"startDate"`
	StartTime     string  `json:"startTime"`
	EndDate       *string `json:"endDate"`
	EndTime       *string `json:"endTime"`
	TimeDuration  int     `json:"timeDuration"`
	PassingScore  int     `json:"passingScore"`
	TotalMarks    int     `json:"totalMarks"`
	QuestionCount int64   `json:"questionCount"`
}

type QuizService struct {
	QuizRepo     *repository.QuizRepository
	QuestionRepo *repository.QuestionRepository
	ChapterRepo  *repository.ChapterRepository
	SubjectRepo  *repository.SubjectRepository
	Cache        cache.Cache
	Location     *time.Location
	Clock        func() time.Time

	ttl atomic.Int64
}

func NewQuizService(
	quizRepo *repository.QuizRepository,
	questionRepo *repository.QuestionRepository,
	chapterRepo *repository.ChapterRepository,
	subjectRepo *repository.SubjectRepository,
	c cache.Cache,
	loc *time.Location,
	ttl time.Duration,
) *QuizService {
	s := &QuizService{
		QuizRepo:     quizRepo,
		QuestionRepo: questionRepo,
		ChapterRepo:  chapterRepo,
		SubjectRepo:  subjectRepo,
		Cache:        c,
		Location:     loc,
		Clock:        time.Now,
	}
	s.SetCacheTTL(ttl)
	return s
}

// SetCacheTTL 配置热更新时调用
func (s *QuizService) SetCacheTTL(ttl time.Duration) {
	s.ttl.Store(int64(ttl))
}

func (s *QuizService) now() time.Time {
	return s.Clock().In(s.Location)
}

func (s *QuizService) invalidate(ctx context.Context) {
	if err := s.Cache.Delete(ctx, availableQuizzesKey); err != nil {
		logger.Log.Warn("Failed to invalidate quiz cache", zap.Error(err))
	}
}

func emptyToNil(v *string) *string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

// validateQuiz 校验排期和分数设置，失败时返回 ErrInvalidInput
func validateQuiz(q *model.Quiz) error {
	if strings.TrimSpace(q.Title) == "" {
		return fmt.Errorf("%w: title is required", util.ErrInvalidInput)
	}
	if q.TimeDuration <= 0 {
		return fmt.Errorf("%w: time duration must be greater than 0", util.ErrInvalidInput)
	}
	if q.PassingScore < 0 || q.PassingScore > 100 {
		return fmt.Errorf("%w: passing score must be between 0 and 100", util.ErrInvalidInput)
	}
	if q.TotalMarks <= 0 {
		return fmt.Errorf("%w: total marks must be greater than 0", util.ErrInvalidInput)
	}
	if _, err := time.Parse(model.ScheduleDateLayout, q.StartDate); err != nil {
		return fmt.Errorf("%w: invalid start date format", util.ErrInvalidInput)
	}
	if _, err := time.Parse(model.ScheduleClockLayout, q.StartTime); err != nil {
		return fmt.Errorf("%w: invalid start time format", util.ErrInvalidInput)
	}
	if q.EndDate != nil {
		if _, err := time.Parse(model.ScheduleDateLayout, *q.EndDate); err != nil {
			return fmt.Errorf("%w: invalid end date format", util.ErrInvalidInput)
		}
	}
	if q.EndTime != nil {
		if _, err := time.Parse(model.ScheduleClockLayout, *q.EndTime); err != nil {
			return fmt.Errorf("%w: invalid end time format", util.ErrInvalidInput)
		}
	}
	if (q.EndDate == nil) != (q.EndTime == nil) {
		return fmt.Errorf("%w: end date and end time must be set together", util.ErrInvalidInput)
	}
	if q.HasEnd() {
		start, _ := q.StartAt(time.UTC)
		end, _, _ := q.EndAt(time.UTC)
		if !end.After(start) {
			return fmt.Errorf("%w: end must be after start", util.ErrInvalidInput)
		}
	}
	return nil
}

func applyQuizRequest(q *model.Quiz, req QuizRequest) {
	q.Title = strings.TrimSpace(req.Title)
	q.Description = req.Description
	q.StartDate = strings.TrimSpace(req.StartDate)
	q.StartTime = strings.TrimSpace(req.StartTime)
	q.EndDate = emptyToNil(req.EndDate)
	q.EndTime = emptyToNil(req.EndTime)
	q.TimeDuration = req.TimeDuration
	q.PassingScore = req.PassingScore
	q.TotalMarks = req.TotalMarks
	q.AutoLockAfterExpiry = boolOr(req.AutoLockAfterExpiry, q.AutoLockAfterExpiry)
	q.IsActive = boolOr(req.IsActive, q.IsActive)
}

func applyQuizUpdate(q *model.Quiz, req QuizUpdateRequest) {
	if req.Title != nil {
		q.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		q.Description = *req.Description
	}
	if req.StartDate != nil {
		q.StartDate = strings.TrimSpace(*req.StartDate)
	}
	if req.StartTime != nil {
		q.StartTime = strings.TrimSpace(*req.StartTime)
	}
	if req.EndDate != nil {
		q.EndDate = emptyToNil(req.EndDate)
	}
	if req.EndTime != nil {
		q.EndTime = emptyToNil(req.EndTime)
	}
	if req.TimeDuration != nil {
		q.TimeDuration = *req.TimeDuration
	}
	if req.PassingScore != nil {
		q.PassingScore = *req.PassingScore
	}
	if req.TotalMarks != nil {
		q.TotalMarks = *req.TotalMarks
	}
	q.AutoLockAfterExpiry = boolOr(req.AutoLockAfterExpiry, q.AutoLockAfterExpiry)
	q.IsActive = boolOr(req.IsActive, q.IsActive)
}

func (s *QuizService) CreateQuiz(ctx context.Context, p util.Principal, chapterID uint, req QuizRequest) (*model.Quiz, error) {
	if _, err := s.ChapterRepo.FindByID(chapterID); err != nil {
		return nil, lookupErr(err, util.ErrNotFound)
	}

	quiz := &model.Quiz{
		ChapterID:           chapterID,
		CreatedBy:           p.SubjectID,
		AutoLockAfterExpiry: true,
		IsActive:            true,
	}
	applyQuizRequest(quiz, req)
	if err := validateQuiz(quiz); err != nil {
		return nil, err
	}
	if err := s.QuizRepo.Create(quiz); err != nil {
		return nil, dbErr(err)
	}

	logger.Log.Info("Quiz created", zap.Uint("quizID", quiz.ID), zap.Uint("chapterID", chapterID))
	s.invalidate(ctx)
	return quiz, nil
}

// UpdateQuiz 合并请求字段后对整个测验重新校验
func (s *QuizService) UpdateQuiz(ctx context.Context, id uint, req QuizUpdateRequest) (*model.Quiz, error) {
	quiz, err := s.QuizRepo.FindByID(id)
	if err != nil {
		return nil, lookupErr(err, util.ErrQuizNotFound)
	}
	applyQuizUpdate(quiz, req)
	if err := validateQuiz(quiz); err != nil {
		return nil, err
	}
	if err := s.QuizRepo.Update(quiz); err != nil {
		return nil, dbErr(err)
	}
	s.invalidate(ctx)
	return quiz, nil
}

func (s *QuizService) DeleteQuiz(ctx context.Context, id uint) error {
	if _, err := s.QuizRepo.FindByID(id); err != nil {
		return lookupErr(err, util.ErrQuizNotFound)
	}
	if err := s.QuizRepo.Delete(id); err != nil {
		return dbErr(err)
	}
	logger.Log.Info("Quiz deleted", zap.Uint("quizID", id))
	s.invalidate(ctx)
	return nil
}

func (s *QuizService) SetLocked(ctx context.Context, id uint, locked bool) error {
	if err := s.QuizRepo.SetLocked(id, locked); err != nil {
		return lookupErr(err, util.ErrQuizNotFound)
	}
	s.invalidate(ctx)
	return nil
}

func (s *QuizService) toView(q *model.Quiz, questionCount int64, now time.Time) (QuizView, error) {
	var v QuizView
	if err := copier.Copy(&v, q); err != nil {
		return v, fmt.Errorf("copy quiz %d: %w", q.ID, err)
	}
	v.QuestionCount = questionCount
	v.Availability = availabilityOf(q, now)
	return v, nil
}

// GetQuiz 普通用户不能查看已停用的测验
func (s *QuizService) GetQuiz(p util.Principal, id uint) (*QuizView, error) {
	quiz, err := s.QuizRepo.FindByID(id)
	if err != nil {
		return nil, lookupErr(err, util.ErrQuizNotFound)
	}
	if !quiz.IsActive && !p.IsAdmin() {
		return nil, util.ErrQuizNotFound
	}
	count, err := s.QuestionRepo.CountByQuiz(id)
	if err != nil {
		return nil, dbErr(err)
	}
	v, err := s.toView(quiz, count, s.now())
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *QuizService) ListByChapter(p util.Principal, chapterID uint) ([]QuizView, error) {
	chapter, err := s.ChapterRepo.FindByID(chapterID)
	if err != nil {
		return nil, lookupErr(err, util.ErrNotFound)
	}
	if !chapter.IsActive && !p.IsAdmin() {
		return nil, util.ErrNotFound
	}

	quizzes, err := s.QuizRepo.ListByChapter(chapterID, !p.IsAdmin())
	if err != nil {
		return nil, dbErr(err)
	}
	ids := make([]uint, len(quizzes))
	for i, q := range quizzes {
		ids[i] = q.ID
	}
	counts, err := s.QuestionRepo.CountByQuizzes(ids)
	if err != nil {
		return nil, dbErr(err)
	}

	now := s.now()
	views := make([]QuizView, len(quizzes))
	for i := range quizzes {
		if views[i], err = s.toView(&quizzes[i], counts[quizzes[i].ID], now); err != nil {
			return nil, err
		}
	}
	return views, nil
}

// ListAvailable 返回当前可开始答题的测验。结果短时缓存，缓存不可用时直接查询数据库。
func (s *QuizService) ListAvailable(ctx context.Context) ([]AvailableQuiz, error) {
	var cached []AvailableQuiz
	err := cache.GetJSON(ctx, s.Cache, availableQuizzesKey, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		logger.Log.Warn("Quiz cache read failed", zap.Error(err))
	}

	list, err := s.loadAvailable()
	if err != nil {
		return nil, err
	}
	if err := cache.SetJSON(ctx, s.Cache, availableQuizzesKey, list, time.Duration(s.ttl.Load())); err != nil {
		logger.Log.Warn("Quiz cache write failed", zap.Error(err))
	}
	return list, nil
}

func (s *QuizService) loadAvailable() ([]AvailableQuiz, error) {
	candidates, err := s.QuizRepo.ListOpenCandidates()
	if err != nil {
		return nil, dbErr(err)
	}

	now := s.now()
	open := make([]model.Quiz, 0, len(candidates))
	for _, q := range candidates {
		if q.IsAvailable(now) {
			open = append(open, q)
		}
	}

	quizIDs := make([]uint, len(open))
	chapterIDs := make([]uint, len(open))
	for i, q := range open {
		quizIDs[i] = q.ID
		chapterIDs[i] = q.ChapterID
	}
	counts, err := s.QuestionRepo.CountByQuizzes(quizIDs)
	if err != nil {
		return nil, dbErr(err)
	}
	chapters, err := s.ChapterRepo.FindByIDs(chapterIDs)
	if err != nil {
		return nil, dbErr(err)
	}
	subjectIDs := make([]uint, 0, len(chapters))
	for _, c := range chapters {
		subjectIDs = append(subjectIDs, c.SubjectID)
	}
	subjects, err := s.SubjectRepo.FindByIDs(subjectIDs)
	if err != nil {
		return nil, dbErr(err)
	}

	list := make([]AvailableQuiz, 0, len(open))
	for _, q := range open {
		chapter, ok := chapters[q.ChapterID]
		if !ok || !chapter.IsActive {
			continue
		}
		subject, ok := subjects[chapter.SubjectID]
		if !ok || !subject.IsActive {
			continue
		}
		// 没有题目的测验无法开始
		if counts[q.ID] == 0 {
			continue
		}
		item := AvailableQuiz{
			ChapterName:   chapter.Name,
			SubjectID:     subject.ID,
			SubjectName:   subject.Name,
			QuestionCount: counts[q.ID],
		}
		if err := copier.Copy(&item, &q); err != nil {
			return nil, fmt.Errorf("copy quiz %d: %w", q.ID, err)
		}
		list = append(list, item)
	}
	return list, nil
}

// LockExpiredQuizzes 锁定已过结束时间且开启了自动锁定的测验
func (s *QuizService) LockExpiredQuizzes(ctx context.Context) (int, error) {
	candidates, err := s.QuizRepo.ListOpenCandidates()
	if err != nil {
		return 0, dbErr(err)
	}
	now := s.now()
	locked := 0
	for _, q := range candidates {
		if !q.AutoLockAfterExpiry || q.UnavailableReason(now) != model.ReasonExpired {
			continue
		}
		if err := s.QuizRepo.SetLocked(q.ID, true); err != nil {
			return locked, dbErr(err)
		}
		locked++
	}
	if locked > 0 {
		logger.Log.Info("Auto-locked expired quizzes", zap.Int("count", locked))
		s.invalidate(ctx)
	}
	return locked, nil
}
