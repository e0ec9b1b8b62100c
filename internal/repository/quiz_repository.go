package repository

import (
	"time"

	"quiz_master_backend/internal/model"

	"gorm.io/gorm"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

func (r *QuizRepository) WithTx(tx *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: tx}
}

func (r *QuizRepository) Create(quiz *model.Quiz) error {
	return r.DB.Create(quiz).Error
}

func (r *QuizRepository) Update(quiz *model.Quiz) error {
	return r.DB.Save(quiz).Error
}

func (r *QuizRepository) FindByID(id uint) (*model.Quiz, error) {
	var q model.Quiz
	if err := r.DB.First(&q, id).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *QuizRepository) FindByIDs(ids []uint) (map[uint]model.Quiz, error) {
	result := make(map[uint]model.Quiz, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var quizzes []model.Quiz
	if err := r.DB.Where("id IN ?", ids).Find(&quizzes).Error; err != nil {
		return nil, err
	}
	for _, q := range quizzes {
		result[q.ID] = q
	}
	return result, nil
}

func (r *QuizRepository) ListByChapter(chapterID uint, activeOnly bool) ([]model.Quiz, error) {
	var quizzes []model.Quiz
	q := r.DB.Where("chapter_id = ?", chapterID).Order("start_date, start_time, id")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	err := q.Find(&quizzes).Error
	return quizzes, err
}

// ListOpenCandidates 返回已启用且未锁定的测验，具体排期由调用方按当前时间判断
func (r *QuizRepository) ListOpenCandidates() ([]model.Quiz, error) {
	var quizzes []model.Quiz
	err := r.DB.
		Where("is_active = ? AND is_locked = ?", true, false).
		Order("start_date, start_time, id").
		Find(&quizzes).Error
	return quizzes, err
}

func (r *QuizRepository) ListCreatedSince(since time.Time) ([]model.Quiz, error) {
	var quizzes []model.Quiz
	err := r.DB.
		Where("created_at >= ? AND is_active = ?", since, true).
		Order("created_at DESC").
		Find(&quizzes).Error
	return quizzes, err
}

func (r *QuizRepository) ListAll() ([]model.Quiz, error) {
	var quizzes []model.Quiz
	err := r.DB.Order("id").Find(&quizzes).Error
	return quizzes, err
}

// CountByChapters 返回 chapter_id -> 测验数
func (r *QuizRepository) CountByChapters(chapterIDs []uint, activeOnly bool) (map[uint]int64, error) {
	return countGrouped(r.DB.Model(&model.Quiz{}), "chapter_id", chapterIDs, activeOnly)
}

// CountBySubjects 返回 subject_id -> 测验数
func (r *QuizRepository) CountBySubjects(subjectIDs []uint, activeOnly bool) (map[uint]int64, error) {
	result := make(map[uint]int64, len(subjectIDs))
	if len(subjectIDs) == 0 {
		return result, nil
	}
	q := r.DB.Model(&model.Quiz{}).
		Joins("JOIN chapters ON chapters.id = quizzes.chapter_id").
		Where("chapters.subject_id IN ?", subjectIDs)
	if activeOnly {
		q = q.Where("quizzes.is_active = ? AND chapters.is_active = ?", true, true)
	}
	var rows []groupCount
	err := q.Select("chapters.subject_id AS group_key, COUNT(*) AS total").
		Group("chapters.subject_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.GroupKey] = row.Total
	}
	return result, nil
}

func (r *QuizRepository) SetLocked(id uint, locked bool) error {
	res := r.DB.Model(&model.Quiz{}).Where("id = ?", id).Update("is_locked", locked)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *QuizRepository) Count() (int64, error) {
	var count int64
	err := r.DB.Model(&model.Quiz{}).Count(&count).Error
	return count, err
}

func (r *QuizRepository) CountActive() (int64, error) {
	var count int64
	err := r.DB.Model(&model.Quiz{}).Where("is_active = ?", true).Count(&count).Error
	return count, err
}

// Delete 删除测验及其题目、答题记录和作答
func (r *QuizRepository) Delete(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		return deleteQuizzes(tx, []uint{id})
	})
}

type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

func (r *QuestionRepository) WithTx(tx *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: tx}
}

func (r *QuestionRepository) Create(question *model.Question) error {
	return r.DB.Create(question).Error
}

func (r *QuestionRepository) Update(question *model.Question) error {
	return r.DB.Save(question).Error
}

func (r *QuestionRepository) FindByID(id uint) (*model.Question, error) {
	var q model.Question
	if err := r.DB.First(&q, id).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *QuestionRepository) ListByQuiz(quizID uint) ([]model.Question, error) {
	var questions []model.Question
	err := r.DB.Where("quiz_id = ?", quizID).Order("id").Find(&questions).Error
	return questions, err
}

func (r *QuestionRepository) CountByQuiz(quizID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Question{}).Where("quiz_id = ?", quizID).Count(&count).Error
	return count, err
}

// CountByQuizzes 返回 quiz_id -> 题目数
func (r *QuestionRepository) CountByQuizzes(quizIDs []uint) (map[uint]int64, error) {
	return countGrouped(r.DB.Model(&model.Question{}), "quiz_id", quizIDs, false)
}

func (r *QuestionRepository) Count() (int64, error) {
	var count int64
	err := r.DB.Model(&model.Question{}).Count(&count).Error
	return count, err
}

// Delete 删除题目及其作答记录，已完成答题的分数保持不变
func (r *QuestionRepository) Delete(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("question_id = ?", id).Delete(&model.QuizResponse{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Question{}, id).Error
	})
}
