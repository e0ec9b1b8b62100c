package repository

import (
	"time"

	"quiz_master_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

// WithTx 返回绑定到事务的仓库
func (r *AttemptRepository) WithTx(tx *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: tx}
}

func (r *AttemptRepository) Create(attempt *model.QuizAttempt) error {
	return r.DB.Create(attempt).Error
}

func (r *AttemptRepository) FindByID(id uint) (*model.QuizAttempt, error) {
	var a model.QuizAttempt
	if err := r.DB.First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// FindInProgress 查找用户在该测验上未提交的答题记录
func (r *AttemptRepository) FindInProgress(userID, quizID uint) (*model.QuizAttempt, error) {
	var a model.QuizAttempt
	err := r.DB.
		Where("in_progress_key = ?", model.InProgressKey(userID, quizID)).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AttemptRepository) CreateResponses(responses []model.QuizResponse) error {
	if len(responses) == 0 {
		return nil
	}
	return r.DB.Create(&responses).Error
}

func (r *AttemptRepository) ListResponses(attemptID uint) ([]model.QuizResponse, error) {
	var responses []model.QuizResponse
	err := r.DB.Where("attempt_id = ?", attemptID).Order("question_id").Find(&responses).Error
	return responses, err
}

// Finalize 仅当答题仍处于 in_progress 时写入最终成绩。
// 返回 false 表示已被其他请求提交或已过期，调用方应回滚。
func (r *AttemptRepository) Finalize(a *model.QuizAttempt) (bool, error) {
	res := r.DB.Model(&model.QuizAttempt{}).
		Where("id = ? AND status = ?", a.ID, model.AttemptInProgress).
		Updates(map[string]interface{}{
			"status":           model.AttemptCompleted,
			"in_progress_key":  nil,
			"score":            a.Score,
			"score_percentage": a.ScorePercentage,
			"is_passed":        a.IsPassed,
			"end_time":         a.EndTime,
			"time_taken":       a.TimeTaken,
			"updated_at":       time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// UpsertResponses 按 (attempt_id, question_id) 写入作答，已存在则覆盖
func (r *AttemptRepository) UpsertResponses(responses []model.QuizResponse) error {
	if len(responses) == 0 {
		return nil
	}
	return r.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"selected_option", "is_correct", "score", "updated_at"}),
	}).Create(&responses).Error
}

// Expire 将超时未提交的答题标记为 expired，成绩字段保持为空
func (r *AttemptRepository) Expire(id uint, at time.Time) (bool, error) {
	res := r.DB.Model(&model.QuizAttempt{}).
		Where("id = ? AND status = ?", id, model.AttemptInProgress).
		Updates(map[string]interface{}{
			"status":          model.AttemptExpired,
			"in_progress_key": nil,
			"end_time":        at,
			"updated_at":      at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *AttemptRepository) ListInProgress() ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.Where("status = ?", model.AttemptInProgress).Order("start_time").Find(&attempts).Error
	return attempts, err
}

func (r *AttemptRepository) ListByUser(userID uint) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.Where("user_id = ?", userID).Order("start_time DESC, id DESC").Find(&attempts).Error
	return attempts, err
}

func (r *AttemptRepository) ListRecentByUser(userID uint, limit int) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.Where("user_id = ?", userID).Order("start_time DESC, id DESC").Limit(limit).Find(&attempts).Error
	return attempts, err
}

// ListByUserBetween 返回 [from, to) 内开始的答题
func (r *AttemptRepository) ListByUserBetween(userID uint, from, to time.Time) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.
		Where("user_id = ? AND start_time >= ? AND start_time < ?", userID, from, to).
		Order("start_time").
		Find(&attempts).Error
	return attempts, err
}

// LatestByUser 返回用户最近一次答题，没有时返回 nil
func (r *AttemptRepository) LatestByUser(userID uint) (*model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.Where("user_id = ?", userID).Order("start_time DESC").Limit(1).Find(&attempts).Error
	if err != nil || len(attempts) == 0 {
		return nil, err
	}
	return &attempts[0], nil
}

// AttemptedQuizIDs 返回用户答过的测验 ID 集合
func (r *AttemptRepository) AttemptedQuizIDs(userID uint) (map[uint]bool, error) {
	var ids []uint
	if err := r.DB.Model(&model.QuizAttempt{}).Where("user_id = ?", userID).Distinct().Pluck("quiz_id", &ids).Error; err != nil {
		return nil, err
	}
	result := make(map[uint]bool, len(ids))
	for _, id := range ids {
		result[id] = true
	}
	return result, nil
}

func (r *AttemptRepository) Count() (int64, error) {
	var count int64
	err := r.DB.Model(&model.QuizAttempt{}).Count(&count).Error
	return count, err
}

func (r *AttemptRepository) CountByStatus(status model.AttemptStatus) (int64, error) {
	var count int64
	err := r.DB.Model(&model.QuizAttempt{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

// AttemptStats 按维度聚合的答题统计
type AttemptStats struct {
	GroupKey      uint
	Attempts      int64
	Completed     int64
	Passed        int64
	AvgPercentage float64
	BestScore     int64
}

func (r *AttemptRepository) statsBy(column string) ([]AttemptStats, error) {
	var rows []AttemptStats
	err := r.DB.Model(&model.QuizAttempt{}).
		Select(column+` AS group_key,
			COUNT(*) AS attempts,
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS completed,
			SUM(CASE WHEN is_passed = ? THEN 1 ELSE 0 END) AS passed,
			COALESCE(AVG(score_percentage), 0) AS avg_percentage,
			COALESCE(MAX(score_percentage), 0) AS best_score`, model.AttemptCompleted, true).
		Group(column).
		Order(column).
		Scan(&rows).Error
	return rows, err
}

func (r *AttemptRepository) StatsByQuiz() ([]AttemptStats, error) {
	return r.statsBy("quiz_id")
}

func (r *AttemptRepository) StatsByUser() ([]AttemptStats, error) {
	return r.statsBy("user_id")
}
