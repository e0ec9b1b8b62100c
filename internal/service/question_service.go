package service

import (
	"context"
	"fmt"
	"strings"

	"quiz_master_backend/internal/model"
	"quiz_master_backend/internal/repository"
	"quiz_master_backend/internal/util"
	"quiz_master_backend/pkg/cache"
	"quiz_master_backend/pkg/logger"

	"go.uber.org/zap"
)

type QuestionRequest struct {
	QuestionText  string `json:"questionText" binding:"required"`
	Option1       string `json:"option1" binding:"required,max=255"`
	Option2       string `json:"option2" binding:"required,max=255"`
	Option3       string `json:"option3" binding:"required,max=255"`
	Option4       string `json:"option4" binding:"required,max=255"`
	CorrectOption int    `json:"correctOption" binding:"required,min=1,max=4"`
	Marks         int    `json:"marks" binding:"required,min=1"`
}

// QuestionUpdateRequest 部分更新，未出现的字段保持不变
type QuestionUpdateRequest struct {
	QuestionText  *string `json:"questionText"`
	Option1       *string `json:"option1" binding:"omitempty,max=255"`
	Option2       *string `json:"option2" binding:"omitempty,max=255"`
	Option3       *string `json:"option3" binding:"omitempty,max=255"`
	Option4       *string `json:"option4" binding:"omitempty,max=255"`
	CorrectOption *int    `json:"correctOption" binding:"omitempty,min=1,max=4"`
	Marks         *int    `json:"marks" binding:"omitempty,min=1"`
}

// QuestionService 题目管理，仅管理员使用，返回值包含正确答案
type QuestionService struct {
	QuizRepo     *repository.QuizRepository
	QuestionRepo *repository.QuestionRepository
	Cache        cache.Cache
}

func NewQuestionService(quizRepo *repository.QuizRepository, questionRepo *repository.QuestionRepository, c cache.Cache) *QuestionService {
	return &QuestionService{QuizRepo: quizRepo, QuestionRepo: questionRepo, Cache: c}
}

func validateQuestion(q *model.Question) error {
	if strings.TrimSpace(q.QuestionText) == "" {
		return fmt.Errorf("%w: question text is required", util.ErrInvalidInput)
	}
	for i, opt := range q.Options() {
		if strings.TrimSpace(opt) == "" {
			return fmt.Errorf("%w: option %d is required", util.ErrInvalidInput, i+1)
		}
	}
	if !model.ValidOption(q.CorrectOption) {
		return fmt.Errorf("%w: correct option must be between 1 and %d", util.ErrInvalidInput, model.OptionCount)
	}
	if q.Marks <= 0 {
		return fmt.Errorf("%w: marks must be greater than 0", util.ErrInvalidInput)
	}
	return nil
}

func applyQuestionRequest(q *model.Question, req QuestionRequest) {
	q.QuestionText = strings.TrimSpace(req.QuestionText)
	q.Option1 = req.Option1
	q.Option2 = req.Option2
	q.Option3 = req.Option3
	q.Option4 = req.Option4
	q.CorrectOption = req.CorrectOption
	q.Marks = req.Marks
}

func applyQuestionUpdate(q *model.Question, req QuestionUpdateRequest) {
	if req.QuestionText != nil {
		q.QuestionText = strings.TrimSpace(*req.QuestionText)
	}
	for _, f := range []struct {
		src *string
		dst *string
	}{
		{req.Option1, &q.Option1},
		{req.Option2, &q.Option2},
		{req.Option3, &q.Option3},
		{req.Option4, &q.Option4},
	} {
		if f.src != nil {
			*f.dst = *f.src
		}
	}
	if req.CorrectOption != nil {
		q.CorrectOption = *req.CorrectOption
	}
	if req.Marks != nil {
		q.Marks = *req.Marks
	}
}

// 题目数量影响可答测验列表（空测验不会出现）
func (s *QuestionService) invalidate(ctx context.Context) {
	if err := s.Cache.Delete(ctx, availableQuizzesKey); err != nil {
		logger.Log.Warn("Failed to invalidate quiz cache", zap.Error(err))
	}
}

func (s *QuestionService) ListByQuiz(quizID uint) ([]model.Question, error) {
	if _, err := s.QuizRepo.FindByID(quizID); err != nil {
		return nil, lookupErr(err, util.ErrQuizNotFound)
	}
	questions, err := s.QuestionRepo.ListByQuiz(quizID)
	if err != nil {
		return nil, dbErr(err)
	}
	return questions, nil
}

func (s *QuestionService) Get(id uint) (*model.Question, error) {
	q, err := s.QuestionRepo.FindByID(id)
	if err != nil {
		return nil, lookupErr(err, util.ErrNotFound)
	}
	return q, nil
}

func (s *QuestionService) Create(ctx context.Context, p util.Principal, quizID uint, req QuestionRequest) (*model.Question, error) {
	if _, err := s.QuizRepo.FindByID(quizID); err != nil {
		return nil, lookupErr(err, util.ErrQuizNotFound)
	}
	q := &model.Question{QuizID: quizID, CreatedBy: p.SubjectID}
	applyQuestionRequest(q, req)
	if err := validateQuestion(q); err != nil {
		return nil, err
	}
	if err := s.QuestionRepo.Create(q); err != nil {
		return nil, dbErr(err)
	}
	s.invalidate(ctx)
	return q, nil
}

func (s *QuestionService) Update(ctx context.Context, id uint, req QuestionUpdateRequest) (*model.Question, error) {
	q, err := s.QuestionRepo.FindByID(id)
	if err != nil {
		return nil, lookupErr(err, util.ErrNotFound)
	}
	applyQuestionUpdate(q, req)
	if err := validateQuestion(q); err != nil {
		return nil, err
	}
	if err := s.QuestionRepo.Update(q); err != nil {
		return nil, dbErr(err)
	}
	return q, nil
}

func (s *QuestionService) Delete(ctx context.Context, id uint) error {
	if _, err := s.QuestionRepo.FindByID(id); err != nil {
		return lookupErr(err, util.ErrNotFound)
	}
	if err := s.QuestionRepo.Delete(id); err != nil {
		return dbErr(err)
	}
	s.invalidate(ctx)
	return nil
}
