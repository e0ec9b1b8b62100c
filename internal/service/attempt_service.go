package service

import (
	"errors"
	"time"

	"quiz_master_backend/internal/config"
	"quiz_master_backend/internal/model"
	"quiz_master_backend/internal/repository"
	"quiz_master_backend/internal/util"
	"quiz_master_backend/pkg/logger"
	"quiz_master_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type AttemptService struct {
	DB           *gorm.DB
	QuizRepo     *repository.QuizRepository
	QuestionRepo *repository.QuestionRepository
	AttemptRepo  *repository.AttemptRepository
	ChapterRepo  *repository.ChapterRepository
	SubjectRepo  *repository.SubjectRepository
	Settings     config.AttemptConfig
	Location     *time.Location
	Clock        func() time.Time
	Shuffle      Shuffler
}

func NewAttemptService(
	db *gorm.DB,
	quizRepo *repository.QuizRepository,
	questionRepo *repository.QuestionRepository,
	attemptRepo *repository.AttemptRepository,
	chapterRepo *repository.ChapterRepository,
	subjectRepo *repository.SubjectRepository,
	cfg *config.Config,
) *AttemptService {
	return &AttemptService{
		DB:           db,
		QuizRepo:     quizRepo,
		QuestionRepo: questionRepo,
		AttemptRepo:  attemptRepo,
		ChapterRepo:  chapterRepo,
		SubjectRepo:  subjectRepo,
		Settings:     cfg.Attempt,
		Location:     cfg.App.Location(),
		Clock:        time.Now,
	}
}

func (s *AttemptService) now() time.Time {
	return s.Clock().In(s.Location)
}

// CheckAvailability 返回测验当前是否可开始答题及原因
func (s *AttemptService) CheckAvailability(quizID uint) (*AvailabilityView, error) {
	quiz, err := s.QuizRepo.FindByID(quizID)
	if err != nil {
		return nil, lookupErr(err, util.ErrQuizNotFound)
	}
	v := availabilityOf(quiz, s.now())
	return &v, nil
}

type StartResult struct {
	Attempt          *model.QuizAttempt `json:"attempt"`
	Resumed          bool               `json:"resumed"`
	TimeLimitSeconds int                `json:"timeLimitSeconds"`
	QuestionCount    int                `json:"questionCount"`
}

// StartAttempt 开始答题。已有进行中的答题时直接返回该记录，
// 同一用户同一测验最多只有一条 in_progress 记录，由唯一索引保证。
func (s *AttemptService) StartAttempt(p util.Principal, quizID uint) (*StartResult, error) {
	quiz, err := s.QuizRepo.FindByID(quizID)
	if err != nil {
		return nil, lookupErr(err, util.ErrQuizNotFound)
	}
	now := s.now()
	if err := unavailableErr(quiz.UnavailableReason(now)); err != nil {
		return nil, err
	}

	questions, err := s.QuestionRepo.ListByQuiz(quiz.ID)
	if err != nil {
		return nil, dbErr(err)
	}
	if len(questions) == 0 {
		return nil, util.ErrNoQuestions
	}

	result := &StartResult{
		TimeLimitSeconds: quiz.TimeDuration * 60,
		QuestionCount:    len(questions),
	}

	if existing, err := s.AttemptRepo.FindInProgress(p.SubjectID, quiz.ID); err == nil {
		result.Attempt, result.Resumed = existing, true
		monitoring.ObserveAttemptStarted(true)
		return result, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, dbErr(err)
	}

	key := model.InProgressKey(p.SubjectID, quiz.ID)
	attempt := &model.QuizAttempt{
		UserID:        p.SubjectID,
		QuizID:        quiz.ID,
		Status:        model.AttemptInProgress,
		InProgressKey: &key,
		TotalMarks:    quiz.TotalMarks,
		StartTime:     now,
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.AttemptRepo.WithTx(tx)
		if err := repo.Create(attempt); err != nil {
			return err
		}
		responses := make([]model.QuizResponse, len(questions))
		for i, q := range questions {
			responses[i] = model.QuizResponse{AttemptID: attempt.ID, QuestionID: q.ID}
		}
		return repo.CreateResponses(responses)
	})
	if err != nil {
		// 并发开始时唯一索引冲突，返回先创建的那条
		existing, findErr := s.AttemptRepo.FindInProgress(p.SubjectID, quiz.ID)
		if findErr == nil {
			result.Attempt, result.Resumed = existing, true
			monitoring.ObserveAttemptStarted(true)
			return result, nil
		}
		logger.Log.Error("Failed to start attempt",
			zap.Uint("userID", p.SubjectID),
			zap.Uint("quizID", quiz.ID),
			zap.Error(err))
		return nil, dbErr(err)
	}

	logger.Log.Info("Attempt started",
		zap.Uint("attemptID", attempt.ID),
		zap.Uint("userID", p.SubjectID),
		zap.Uint("quizID", quiz.ID))
	monitoring.ObserveAttemptStarted(false)
	result.Attempt = attempt
	return result, nil
}

// GetAttempt 仅返回属于调用者的答题记录
func (s *AttemptService) GetAttempt(p util.Principal, attemptID uint) (*model.QuizAttempt, error) {
	attempt, err := s.AttemptRepo.FindByID(attemptID)
	if err != nil {
		return nil, lookupErr(err, util.ErrAttemptNotFound)
	}
	if attempt.UserID != p.SubjectID {
		return nil, util.ErrPermissionDenied
	}
	return attempt, nil
}

type AttemptQuestions struct {
	AttemptID        uint           `json:"attemptId"`
	QuizID           uint           `json:"quizId"`
	QuizTitle        string         `json:"quizTitle"`
	StartTime        time.Time      `json:"startTime"`
	TimeLimitSeconds int            `json:"timeLimitSeconds"`
	RemainingSeconds int            `json:"remainingSeconds"`
	Questions        []QuestionView `json:"questions"`
}

// GetAttemptQuestions 返回打乱顺序的题目，刷新页面时可重复调用
func (s *AttemptService) GetAttemptQuestions(p util.Principal, attemptID uint) (*AttemptQuestions, error) {
	attempt, err := s.GetAttempt(p, attemptID)
	if err != nil {
		return nil, err
	}
	if !attempt.IsInProgress() {
		return nil, util.ErrNotInProgress
	}

	quiz, err := s.QuizRepo.FindByID(attempt.QuizID)
	if err != nil {
		return nil, lookupErr(err, util.ErrQuizNotFound)
	}
	questions, err := s.QuestionRepo.ListByQuiz(quiz.ID)
	if err != nil {
		return nil, dbErr(err)
	}
	responses, err := s.AttemptRepo.ListResponses(attempt.ID)
	if err != nil {
		return nil, dbErr(err)
	}

	limit := quiz.TimeDuration * 60
	remaining := limit - int(s.now().Sub(attempt.StartTime).Seconds())
	if remaining < 0 {
		remaining = 0
	}

	return &AttemptQuestions{
		AttemptID:        attempt.ID,
		QuizID:           quiz.ID,
		QuizTitle:        quiz.Title,
		StartTime:        attempt.StartTime,
		TimeLimitSeconds: limit,
		RemainingSeconds: remaining,
		Questions:        QuestionsForAttempt(questions, responses, s.Shuffle),
	}, nil
}

type SubmitRequest struct {
	Answers []SubmittedAnswer `json:"answers" binding:"dive"`
	// TimeTaken 客户端上报的用时（分钟），缺省为测验时长
	TimeTaken *int `json:"timeTaken"`
}

type SubmitResult struct {
	AttemptID       uint                `json:"attemptId"`
	Status          model.AttemptStatus `json:"status"`
	Score           int                 `json:"score"`
	TotalMarks      int                 `json:"totalMarks"`
	ScorePercentage int                 `json:"scorePercentage"`
	IsPassed        bool                `json:"isPassed"`
}

// SubmitAttempt 评分并提交。条件更新保证同一答题只会被提交一次，
// 作答写入失败时整体回滚。
func (s *AttemptService) SubmitAttempt(p util.Principal, attemptID uint, req SubmitRequest) (*SubmitResult, error) {
	attempt, err := s.GetAttempt(p, attemptID)
	if err != nil {
		return nil, err
	}
	if !attempt.IsInProgress() {
		return nil, util.ErrAlreadySubmitted
	}
	if req.Answers == nil {
		return nil, util.ErrMissingAnswers
	}
	if req.TimeTaken != nil && *req.TimeTaken < 0 {
		return nil, util.ErrInvalidInput
	}

	quiz, err := s.QuizRepo.FindByID(attempt.QuizID)
	if err != nil {
		return nil, lookupErr(err, util.ErrQuizNotFound)
	}
	questions, err := s.QuestionRepo.ListByQuiz(quiz.ID)
	if err != nil {
		return nil, dbErr(err)
	}

	graded := Grade(attempt, quiz, questions, req.Answers)
	if len(graded.Skipped) > 0 {
		logger.Log.Warn("Skipped answers for unknown questions",
			zap.Uint("attemptID", attempt.ID),
			zap.Any("questionIDs", graded.Skipped))
	}

	now := s.now()
	timeTaken := quiz.TimeDuration
	if req.TimeTaken != nil {
		timeTaken = *req.TimeTaken
	}

	final := *attempt
	final.Status = model.AttemptCompleted
	final.InProgressKey = nil
	final.Score = util.IntPtr(graded.Score)
	final.ScorePercentage = util.IntPtr(graded.ScorePercentage)
	final.IsPassed = util.BoolPtr(graded.IsPassed)
	final.EndTime = &now
	final.TimeTaken = &timeTaken

	responses := make([]model.QuizResponse, len(graded.Results))
	for i, r := range graded.Results {
		responses[i] = model.QuizResponse{
			AttemptID:      attempt.ID,
			QuestionID:     r.QuestionID,
			SelectedOption: util.IntPtr(r.SelectedOption),
			IsCorrect:      util.BoolPtr(r.IsCorrect),
			Score:          util.IntPtr(r.Score),
		}
		responses[i].UpdatedAt = now
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.AttemptRepo.WithTx(tx)
		ok, err := repo.Finalize(&final)
		if err != nil {
			return dbErr(err)
		}
		if !ok {
			return util.ErrAlreadySubmitted
		}
		if err := repo.UpsertResponses(responses); err != nil {
			return dbErr(err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, util.ErrAlreadySubmitted) {
			logger.Log.Error("Failed to submit attempt", zap.Uint("attemptID", attempt.ID), zap.Error(err))
		}
		return nil, err
	}

	logger.Log.Info("Attempt submitted",
		zap.Uint("attemptID", attempt.ID),
		zap.Uint("userID", attempt.UserID),
		zap.Int("score", graded.Score),
		zap.Int("percentage", graded.ScorePercentage),
		zap.Bool("passed", graded.IsPassed))
	monitoring.ObserveAttemptSubmitted(graded.IsPassed)

	return &SubmitResult{
		AttemptID:       attempt.ID,
		Status:          model.AttemptCompleted,
		Score:           graded.Score,
		TotalMarks:      graded.TotalMarks,
		ScorePercentage: graded.ScorePercentage,
		IsPassed:        graded.IsPassed,
	}, nil
}

type ResultStats struct {
	TotalQuestions int `json:"totalQuestions"`
	Correct        int `json:"correct"`
	Incorrect      int `json:"incorrect"`
	Unattempted    int `json:"unattempted"`
}

type AttemptResults struct {
	Attempt      *model.QuizAttempt `json:"attempt"`
	QuizTitle    string             `json:"quizTitle"`
	PassingScore int                `json:"passingScore"`
	Questions    []QuestionResult   `json:"questions"`
	Stats        ResultStats        `json:"stats"`
}

// GetAttemptResults 返回已完成答题的逐题明细，含正确答案
func (s *AttemptService) GetAttemptResults(p util.Principal, attemptID uint) (*AttemptResults, error) {
	attempt, err := s.GetAttempt(p, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status != model.AttemptCompleted {
		return nil, util.ErrNotCompleted
	}

	quiz, err := s.QuizRepo.FindByID(attempt.QuizID)
	if err != nil {
		return nil, lookupErr(err, util.ErrQuizNotFound)
	}
	questions, err := s.QuestionRepo.ListByQuiz(quiz.ID)
	if err != nil {
		return nil, dbErr(err)
	}
	responses, err := s.AttemptRepo.ListResponses(attempt.ID)
	if err != nil {
		return nil, dbErr(err)
	}
	byQuestion := make(map[uint]model.QuizResponse, len(responses))
	for _, r := range responses {
		byQuestion[r.QuestionID] = r
	}

	out := &AttemptResults{
		Attempt:      attempt,
		QuizTitle:    quiz.Title,
		PassingScore: quiz.PassingScore,
		Questions:    make([]QuestionResult, 0, len(questions)),
	}
	for _, q := range questions {
		qr := QuestionResult{
			QuestionID:    q.ID,
			QuestionText:  q.QuestionText,
			Options:       q.Options(),
			CorrectOption: q.CorrectOption,
			Marks:         q.Marks,
		}
		if r, ok := byQuestion[q.ID]; ok {
			if r.SelectedOption != nil {
				qr.SelectedOption = *r.SelectedOption
			}
			if r.IsCorrect != nil {
				qr.IsCorrect = *r.IsCorrect
			}
			if r.Score != nil {
				qr.Score = *r.Score
			}
		}
		switch {
		case qr.SelectedOption == 0:
			out.Stats.Unattempted++
		case qr.IsCorrect:
			out.Stats.Correct++
		default:
			out.Stats.Incorrect++
		}
		out.Questions = append(out.Questions, qr)
	}
	out.Stats.TotalQuestions = len(out.Questions)
	return out, nil
}

type AttemptSummary struct {
	ID              uint                `json:"id"`
	QuizID          uint                `json:"quizId"`
	QuizTitle       string              `json:"quizTitle"`
	ChapterName     string              `json:"chapterName"`
	SubjectName     string              `json:"subjectName"`
	Status          model.AttemptStatus `json:"status"`
	Score           *int                `json:"score"`
	TotalMarks      int                 `json:"totalMarks"`
	ScorePercentage *int                `json:"scorePercentage"`
	IsPassed        *bool               `json:"isPassed"`
	StartTime       time.Time           `json:"startTime"`
	EndTime         *time.Time          `json:"endTime,omitempty"`
	TimeTaken       *int                `json:"timeTaken,omitempty"`
	TimeDuration    int                 `json:"timeDuration"`
	PassingScore    int                 `json:"passingScore"`
	CreatedAt       time.Time           `json:"createdAt"`
}

// ListMyAttempts 返回调用者的答题历史，最新在前
func (s *AttemptService) ListMyAttempts(p util.Principal) ([]AttemptSummary, error) {
	attempts, err := s.AttemptRepo.ListByUser(p.SubjectID)
	if err != nil {
		return nil, dbErr(err)
	}
	return s.summarize(attempts)
}

func (s *AttemptService) summarize(attempts []model.QuizAttempt) ([]AttemptSummary, error) {
	quizIDs := make([]uint, 0, len(attempts))
	for _, a := range attempts {
		quizIDs = append(quizIDs, a.QuizID)
	}
	quizzes, err := s.QuizRepo.FindByIDs(quizIDs)
	if err != nil {
		return nil, dbErr(err)
	}
	chapterIDs := make([]uint, 0, len(quizzes))
	for _, q := range quizzes {
		chapterIDs = append(chapterIDs, q.ChapterID)
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

	out := make([]AttemptSummary, 0, len(attempts))
	for _, a := range attempts {
		quiz := quizzes[a.QuizID]
		chapter := chapters[quiz.ChapterID]
		out = append(out, AttemptSummary{
			ID:              a.ID,
			QuizID:          a.QuizID,
			QuizTitle:       quiz.Title,
			ChapterName:     chapter.Name,
			SubjectName:     subjects[chapter.SubjectID].Name,
			Status:          a.Status,
			Score:           a.Score,
			TotalMarks:      a.TotalMarks,
			ScorePercentage: a.ScorePercentage,
			IsPassed:        a.IsPassed,
			StartTime:       a.StartTime,
			EndTime:         a.EndTime,
			TimeTaken:       a.TimeTaken,
			TimeDuration:    quiz.TimeDuration,
			PassingScore:    quiz.PassingScore,
			CreatedAt:       a.CreatedAt,
		})
	}
	return out, nil
}

// ExpireOverdueAttempts 将超过 开始时间+时长+宽限 仍未提交的答题标记为 expired。
// 未启用时不做任何处理。
func (s *AttemptService) ExpireOverdueAttempts() (int, error) {
	if !s.Settings.ExpiryEnabled {
		return 0, nil
	}

	attempts, err := s.AttemptRepo.ListInProgress()
	if err != nil {
		return 0, dbErr(err)
	}
	if len(attempts) == 0 {
		return 0, nil
	}

	quizIDs := make([]uint, 0, len(attempts))
	for _, a := range attempts {
		quizIDs = append(quizIDs, a.QuizID)
	}
	quizzes, err := s.QuizRepo.FindByIDs(quizIDs)
	if err != nil {
		return 0, dbErr(err)
	}

	now := s.now()
	grace := time.Duration(s.Settings.ExpiryGraceMinutes) * time.Minute
	expired := 0
	for _, a := range attempts {
		quiz, ok := quizzes[a.QuizID]
		if !ok {
			continue
		}
		deadline := a.StartTime.Add(time.Duration(quiz.TimeDuration)*time.Minute + grace)
		if !now.After(deadline) {
			continue
		}
		changed, err := s.AttemptRepo.Expire(a.ID, now)
		if err != nil {
			return expired, dbErr(err)
		}
		if changed {
			expired++
			monitoring.AttemptsExpired.Inc()
		}
	}

	if expired > 0 {
		logger.Log.Info("Expired overdue attempts", zap.Int("count", expired))
	}
	return expired, nil
}
