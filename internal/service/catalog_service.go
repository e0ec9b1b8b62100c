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

type SubjectRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description" binding:"required"`
	IsActive    *bool  `json:"isActive"`
}

type ChapterRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description" binding:"required"`
	IsActive    *bool  `json:"isActive"`
}

type SubjectView struct {
	model.Subject
	ChapterCount int64 `json:"chapterCount"`
	QuizCount    int64 `json:"quizCount"`
}

type ChapterView struct {
	model.Chapter
	QuizCount int64 `json:"quizCount"`
}

// CatalogService 管理科目与章节
type CatalogService struct {
	SubjectRepo *repository.SubjectRepository
	ChapterRepo *repository.ChapterRepository
	QuizRepo    *repository.QuizRepository
	Cache       cache.Cache
}

func NewCatalogService(
	subjectRepo *repository.SubjectRepository,
	chapterRepo *repository.ChapterRepository,
	quizRepo *repository.QuizRepository,
	c cache.Cache,
) *CatalogService {
	return &CatalogService{
		SubjectRepo: subjectRepo,
		ChapterRepo: chapterRepo,
		QuizRepo:    quizRepo,
		Cache:       c,
	}
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// invalidate 目录变化会影响可答测验列表中的科目/章节信息
func (s *CatalogService) invalidate(ctx context.Context) {
	if err := s.Cache.Delete(ctx, availableQuizzesKey); err != nil {
		logger.Log.Warn("Failed to invalidate quiz cache", zap.Error(err))
	}
}

func (s *CatalogService) CreateSubject(ctx context.Context, p util.Principal, req SubjectRequest) (*model.Subject, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: subject name is required", util.ErrInvalidInput)
	}
	taken, err := s.SubjectRepo.ExistsByName(name, 0)
	if err != nil {
		return nil, dbErr(err)
	}
	if taken {
		return nil, util.ErrNameTaken
	}

	subject := &model.Subject{
		Name:        name,
		Description: req.Description,
		CreatedBy:   p.SubjectID,
		IsActive:    boolOr(req.IsActive, true),
	}
	if err := s.SubjectRepo.Create(subject); err != nil {
		return nil, dbErr(err)
	}
	s.invalidate(ctx)
	return subject, nil
}

func (s *CatalogService) UpdateSubject(ctx context.Context, id uint, req SubjectRequest) (*model.Subject, error) {
	subject, err := s.SubjectRepo.FindByID(id)
	if err != nil {
		return nil, lookupErr(err, util.ErrNotFound)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: subject name is required", util.ErrInvalidInput)
	}
	if name != subject.Name {
		taken, err := s.SubjectRepo.ExistsByName(name, id)
		if err != nil {
			return nil, dbErr(err)
		}
		if taken {
			return nil, util.ErrNameTaken
		}
	}

	subject.Name = name
	subject.Description = req.Description
	subject.IsActive = boolOr(req.IsActive, subject.IsActive)
	if err := s.SubjectRepo.Update(subject); err != nil {
		return nil, dbErr(err)
	}
	s.invalidate(ctx)
	return subject, nil
}

func (s *CatalogService) DeleteSubject(ctx context.Context, id uint) error {
	if _, err := s.SubjectRepo.FindByID(id); err != nil {
		return lookupErr(err, util.ErrNotFound)
	}
	if err := s.SubjectRepo.Delete(id); err != nil {
		return dbErr(err)
	}
	logger.Log.Info("Subject deleted", zap.Uint("subjectID", id))
	s.invalidate(ctx)
	return nil
}

// GetSubject 普通用户只能看到启用的科目
func (s *CatalogService) GetSubject(p util.Principal, id uint) (*model.Subject, error) {
	subject, err := s.SubjectRepo.FindByID(id)
	if err != nil {
		return nil, lookupErr(err, util.ErrNotFound)
	}
	if !subject.IsActive && !p.IsAdmin() {
		return nil, util.ErrNotFound
	}
	return subject, nil
}

// ListSubjects 返回科目及其章节数、测验数，普通用户仅统计启用的内容
func (s *CatalogService) ListSubjects(p util.Principal) ([]SubjectView, error) {
	activeOnly := !p.IsAdmin()
	subjects, err := s.SubjectRepo.List(activeOnly)
	if err != nil {
		return nil, dbErr(err)
	}
	ids := make([]uint, len(subjects))
	for i, sub := range subjects {
		ids[i] = sub.ID
	}
	chapterCounts, err := s.ChapterRepo.CountBySubjects(ids, activeOnly)
	if err != nil {
		return nil, dbErr(err)
	}
	quizCounts, err := s.QuizRepo.CountBySubjects(ids, activeOnly)
	if err != nil {
		return nil, dbErr(err)
	}

	views := make([]SubjectView, len(subjects))
	for i, sub := range subjects {
		views[i] = SubjectView{
			Subject:      sub,
			ChapterCount: chapterCounts[sub.ID],
			QuizCount:    quizCounts[sub.ID],
		}
	}
	return views, nil
}

func (s *CatalogService) CreateChapter(ctx context.Context, p util.Principal, subjectID uint, req ChapterRequest) (*model.Chapter, error) {
	if _, err := s.SubjectRepo.FindByID(subjectID); err != nil {
		return nil, lookupErr(err, util.ErrNotFound)
	}
	seq, err := s.ChapterRepo.NextSequence(subjectID)
	if err != nil {
		return nil, dbErr(err)
	}

	chapter := &model.Chapter{
		SubjectID:      subjectID,
		Name:           strings.TrimSpace(req.Name),
		Description:    req.Description,
		SequenceNumber: seq,
		CreatedBy:      p.SubjectID,
		IsActive:       boolOr(req.IsActive, true),
	}
	if chapter.Name == "" {
		return nil, fmt.Errorf("%w: chapter name is required", util.ErrInvalidInput)
	}
	if err := s.ChapterRepo.Create(chapter); err != nil {
		return nil, dbErr(err)
	}
	s.invalidate(ctx)
	return chapter, nil
}

func (s *CatalogService) UpdateChapter(ctx context.Context, id uint, req ChapterRequest) (*model.Chapter, error) {
	chapter, err := s.ChapterRepo.FindByID(id)
	if err != nil {
		return nil, lookupErr(err, util.ErrNotFound)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: chapter name is required", util.ErrInvalidInput)
	}
	chapter.Name = name
	chapter.Description = req.Description
	chapter.IsActive = boolOr(req.IsActive, chapter.IsActive)
	if err := s.ChapterRepo.Update(chapter); err != nil {
		return nil, dbErr(err)
	}
	s.invalidate(ctx)
	return chapter, nil
}

func (s *CatalogService) DeleteChapter(ctx context.Context, id uint) error {
	if _, err := s.ChapterRepo.FindByID(id); err != nil {
		return lookupErr(err, util.ErrNotFound)
	}
	if err := s.ChapterRepo.Delete(id); err != nil {
		return dbErr(err)
	}
	logger.Log.Info("Chapter deleted", zap.Uint("chapterID", id))
	s.invalidate(ctx)
	return nil
}

func (s *CatalogService) GetChapter(p util.Principal, id uint) (*model.Chapter, error) {
	chapter, err := s.ChapterRepo.FindByID(id)
	if err != nil {
		return nil, lookupErr(err, util.ErrNotFound)
	}
	if !chapter.IsActive && !p.IsAdmin() {
		return nil, util.ErrNotFound
	}
	return chapter, nil
}

func (s *CatalogService) ListChapters(p util.Principal, subjectID uint) ([]ChapterView, error) {
	if _, err := s.GetSubject(p, subjectID); err != nil {
		return nil, err
	}
	activeOnly := !p.IsAdmin()
	chapters, err := s.ChapterRepo.ListBySubject(subjectID, activeOnly)
	if err != nil {
		return nil, dbErr(err)
	}
	ids := make([]uint, len(chapters))
	for i, c := range chapters {
		ids[i] = c.ID
	}
	counts, err := s.QuizRepo.CountByChapters(ids, activeOnly)
	if err != nil {
		return nil, dbErr(err)
	}
	views := make([]ChapterView, len(chapters))
	for i, c := range chapters {
		views[i] = ChapterView{Chapter: c, QuizCount: counts[c.ID]}
	}
	return views, nil
}
