package service

import (
	"context"
	"math"

	"quiz_master_backend/internal/model"
	"quiz_master_backend/internal/repository"
	"quiz_master_backend/internal/util"
)

const recentAttemptsLimit = 5

type DashboardService struct {
	Attempts     *AttemptService
	Quizzes      *QuizService
	UserRepo     *repository.UserRepository
	SubjectRepo  *repository.SubjectRepository
	ChapterRepo  *repository.ChapterRepository
	QuizRepo     *repository.QuizRepository
	QuestionRepo *repository.QuestionRepository
	AttemptRepo  *repository.AttemptRepository
}

func NewDashboardService(
	attempts *AttemptService,
	quizzes *QuizService,
	userRepo *repository.UserRepository,
	subjectRepo *repository.SubjectRepository,
	chapterRepo *repository.ChapterRepository,
	quizRepo *repository.QuizRepository,
	questionRepo *repository.QuestionRepository,
	attemptRepo *repository.AttemptRepository,
) *DashboardService {
	return &DashboardService{
		Attempts:     attempts,
		Quizzes:      quizzes,
		UserRepo:     userRepo,
		SubjectRepo:  subjectRepo,
		ChapterRepo:  chapterRepo,
		QuizRepo:     quizRepo,
		QuestionRepo: questionRepo,
		AttemptRepo:  attemptRepo,
	}
}

// Performance 一组答题的汇总
type Performance struct {
	TotalAttempts     int     `json:"totalAttempts"`
	CompletedAttempts int     `json:"completedAttempts"`
	PassedAttempts    int     `json:"passedAttempts"`
	AverageScore      float64 `json:"averageScore"` // 已完成答题的平均百分比
	PassRate          float64 `json:"passRate"`
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// summarizePerformance 只统计已完成答题的分数，进行中和过期的答题只计入总数
func summarizePerformance(attempts []model.QuizAttempt) Performance {
	var perf Performance
	var sum int
	perf.TotalAttempts = len(attempts)
	for _, a := range attempts {
		if a.Status != model.AttemptCompleted || a.ScorePercentage == nil {
			continue
		}
		perf.CompletedAttempts++
		sum += *a.ScorePercentage
		if a.IsPassed != nil && *a.IsPassed {
			perf.PassedAttempts++
		}
	}
	if perf.CompletedAttempts > 0 {
		perf.AverageScore = round1(float64(sum) / float64(perf.CompletedAttempts))
		perf.PassRate = round1(ratio(int64(perf.PassedAttempts), int64(perf.CompletedAttempts)))
	}
	return perf
}

type UserDashboard struct {
	Performance
	AvailableQuizzes int              `json:"availableQuizzes"`
	RecentAttempts   []AttemptSummary `json:"recentAttempts"`
}

// GetUserDashboard 用户首页汇总
func (s *DashboardService) GetUserDashboard(ctx context.Context, p util.Principal) (*UserDashboard, error) {
	attempts, err := s.AttemptRepo.ListByUser(p.SubjectID)
	if err != nil {
		return nil, dbErr(err)
	}

	recent := attempts
	if len(recent) > recentAttemptsLimit {
		recent = recent[:recentAttemptsLimit]
	}
	summaries, err := s.Attempts.summarize(recent)
	if err != nil {
		return nil, err
	}

	available, err := s.Quizzes.ListAvailable(ctx)
	if err != nil {
		return nil, err
	}

	return &UserDashboard{
		Performance:      summarizePerformance(attempts),
		AvailableQuizzes: len(available),
		RecentAttempts:   summaries,
	}, nil
}

type AdminDashboard struct {
	TotalUsers        int64 `json:"totalUsers"`
	TotalSubjects     int64 `json:"totalSubjects"`
	TotalChapters     int64 `json:"totalChapters"`
	TotalQuizzes      int64 `json:"totalQuizzes"`
	ActiveQuizzes     int64 `json:"activeQuizzes"`
	TotalQuestions    int64 `json:"totalQuestions"`
	TotalAttempts     int64 `json:"totalAttempts"`
	CompletedAttempts int64 `json:"completedAttempts"`
	InProgress        int64 `json:"inProgressAttempts"`
}

// GetAdminDashboard 管理员首页计数
func (s *DashboardService) GetAdminDashboard() (*AdminDashboard, error) {
	var d AdminDashboard
	counters := []struct {
		dst *int64
		fn  func() (int64, error)
	}{
		{&d.TotalUsers, func() (int64, error) { return s.UserRepo.CountByRole(model.RoleUser) }},
		{&d.TotalSubjects, s.SubjectRepo.Count},
		{&d.TotalChapters, s.ChapterRepo.Count},
		{&d.TotalQuizzes, s.QuizRepo.Count},
		{&d.ActiveQuizzes, s.QuizRepo.CountActive},
		{&d.TotalQuestions, s.QuestionRepo.Count},
		{&d.TotalAttempts, s.AttemptRepo.Count},
		{&d.CompletedAttempts, func() (int64, error) { return s.AttemptRepo.CountByStatus(model.AttemptCompleted) }},
		{&d.InProgress, func() (int64, error) { return s.AttemptRepo.CountByStatus(model.AttemptInProgress) }},
	}
	for _, c := range counters {
		n, err := c.fn()
		if err != nil {
			return nil, dbErr(err)
		}
		*c.dst = n
	}
	return &d, nil
}
