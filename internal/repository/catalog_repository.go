package repository

import (
	"quiz_master_backend/internal/model"

	"gorm.io/gorm"
)

type SubjectRepository struct {
	DB *gorm.DB
}

func NewSubjectRepository(db *gorm.DB) *SubjectRepository {
	return &SubjectRepository{DB: db}
}

func (r *SubjectRepository) Create(subject *model.Subject) error {
	return r.DB.Create(subject).Error
}

func (r *SubjectRepository) Update(subject *model.Subject) error {
	return r.DB.Save(subject).Error
}

func (r *SubjectRepository) FindByID(id uint) (*model.Subject, error) {
	var s model.Subject
	if err := r.DB.First(&s, id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SubjectRepository) ExistsByName(name string, excludeID uint) (bool, error) {
	var count int64
	err := r.DB.Model(&model.Subject{}).Where("name = ? AND id <> ?", name, excludeID).Count(&count).Error
	return count > 0, err
}

func (r *SubjectRepository) List(activeOnly bool) ([]model.Subject, error) {
	var subjects []model.Subject
	q := r.DB.Order("name")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	err := q.Find(&subjects).Error
	return subjects, err
}

func (r *SubjectRepository) FindByIDs(ids []uint) (map[uint]model.Subject, error) {
	result := make(map[uint]model.Subject, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var subjects []model.Subject
	if err := r.DB.Where("id IN ?", ids).Find(&subjects).Error; err != nil {
		return nil, err
	}
	for _, s := range subjects {
		result[s.ID] = s
	}
	return result, nil
}

func (r *SubjectRepository) Count() (int64, error) {
	var count int64
	err := r.DB.Model(&model.Subject{}).Count(&count).Error
	return count, err
}

// Delete 删除科目及其下全部章节、测验、题目与答题记录
func (r *SubjectRepository) Delete(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var chapterIDs []uint
		if err := tx.Model(&model.Chapter{}).Where("subject_id = ?", id).Pluck("id", &chapterIDs).Error; err != nil {
			return err
		}
		if err := deleteChapters(tx, chapterIDs); err != nil {
			return err
		}
		return tx.Delete(&model.Subject{}, id).Error
	})
}

type ChapterRepository struct {
	DB *gorm.DB
}

func NewChapterRepository(db *gorm.DB) *ChapterRepository {
	return &ChapterRepository{DB: db}
}

func (r *ChapterRepository) Create(chapter *model.Chapter) error {
	return r.DB.Create(chapter).Error
}

func (r *ChapterRepository) Update(chapter *model.Chapter) error {
	return r.DB.Save(chapter).Error
}

func (r *ChapterRepository) FindByID(id uint) (*model.Chapter, error) {
	var c model.Chapter
	if err := r.DB.First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ChapterRepository) ListBySubject(subjectID uint, activeOnly bool) ([]model.Chapter, error) {
	var chapters []model.Chapter
	q := r.DB.Where("subject_id = ?", subjectID).Order("sequence_number, id")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	err := q.Find(&chapters).Error
	return chapters, err
}

func (r *ChapterRepository) FindByIDs(ids []uint) (map[uint]model.Chapter, error) {
	result := make(map[uint]model.Chapter, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var chapters []model.Chapter
	if err := r.DB.Where("id IN ?", ids).Find(&chapters).Error; err != nil {
		return nil, err
	}
	for _, c := range chapters {
		result[c.ID] = c
	}
	return result, nil
}

// CountBySubjects 返回 subject_id -> 章节数
func (r *ChapterRepository) CountBySubjects(subjectIDs []uint, activeOnly bool) (map[uint]int64, error) {
	return countGrouped(r.DB.Model(&model.Chapter{}), "subject_id", subjectIDs, activeOnly)
}

// NextSequence 返回科目下一个章节序号
func (r *ChapterRepository) NextSequence(subjectID uint) (int, error) {
	var max int
	err := r.DB.Model(&model.Chapter{}).
		Where("subject_id = ?", subjectID).
		Select("COALESCE(MAX(sequence_number), 0)").
		Scan(&max).Error
	return max + 1, err
}

func (r *ChapterRepository) Count() (int64, error) {
	var count int64
	err := r.DB.Model(&model.Chapter{}).Count(&count).Error
	return count, err
}

func (r *ChapterRepository) Delete(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		return deleteChapters(tx, []uint{id})
	})
}

type groupCount struct {
	GroupKey uint
	Total    int64
}

func countGrouped(q *gorm.DB, column string, keys []uint, activeOnly bool) (map[uint]int64, error) {
	result := make(map[uint]int64, len(keys))
	if len(keys) == 0 {
		return result, nil
	}
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var rows []groupCount
	err := q.Select(column+" AS group_key, COUNT(*) AS total").
		Where(column+" IN ?", keys).
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.GroupKey] = row.Total
	}
	return result, nil
}

func deleteChapters(tx *gorm.DB, chapterIDs []uint) error {
	if len(chapterIDs) == 0 {
		return nil
	}
	var quizIDs []uint
	if err := tx.Model(&model.Quiz{}).Where("chapter_id IN ?", chapterIDs).Pluck("id", &quizIDs).Error; err != nil {
		return err
	}
	if err := deleteQuizzes(tx, quizIDs); err != nil {
		return err
	}
	return tx.Where("id IN ?", chapterIDs).Delete(&model.Chapter{}).Error
}

func deleteQuizzes(tx *gorm.DB, quizIDs []uint) error {
	if len(quizIDs) == 0 {
		return nil
	}
	attempts := tx.Model(&model.QuizAttempt{}).Select("id").Where("quiz_id IN ?", quizIDs)
	if err := tx.Where("attempt_id IN (?)", attempts).Delete(&model.QuizResponse{}).Error; err != nil {
		return err
	}
	if err := tx.Where("quiz_id IN ?", quizIDs).Delete(&model.QuizAttempt{}).Error; err != nil {
		return err
	}
	if err := tx.Where("quiz_id IN ?", quizIDs).Delete(&model.Question{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", quizIDs).Delete(&model.Quiz{}).Error
}
