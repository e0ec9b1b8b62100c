package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"path"
	"strconv"
	"strings"
	"time"

	"quiz_master_backend/internal/model"
	"quiz_master_backend/internal/repository"
	"quiz_master_backend/internal/util"
	"quiz_master_backend/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const descriptionPreviewLen = 100

// ExportFile 一次导出的结果，Key 为存储中的路径
type ExportFile struct {
	Key        string    `json:"key"`
	FileName   string    `json:"fileName"`
	Size       int       `json:"size"`
	Records    int       `json:"records"`
	ExportedAt time.Time `json:"exportedAt"`
}

type ExportService struct {
	Attempts    *AttemptService
	UserRepo    *repository.UserRepository
	QuizRepo    *repository.QuizRepository
	ChapterRepo *repository.ChapterRepository
	SubjectRepo *repository.SubjectRepository
	AttemptRepo *repository.AttemptRepository
	Storage     *StorageService
	Location    *time.Location
	Clock       func() time.Time
}

func NewExportService(
	attempts *AttemptService,
	userRepo *repository.UserRepository,
	quizRepo *repository.QuizRepository,
	chapterRepo *repository.ChapterRepository,
	subjectRepo *repository.SubjectRepository,
	attemptRepo *repository.AttemptRepository,
	storage *StorageService,
	loc *time.Location,
) *ExportService {
	if loc == nil {
		loc = time.UTC
	}
	return &ExportService{
		Attempts:    attempts,
		UserRepo:    userRepo,
		QuizRepo:    quizRepo,
		ChapterRepo: chapterRepo,
		SubjectRepo: subjectRepo,
		AttemptRepo: attemptRepo,
		Storage:     storage,
		Location:    loc,
		Clock:       time.Now,
	}
}

func (s *ExportService) now() time.Time {
	return s.Clock().In(s.Location)
}

func (s *ExportService) formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "N/A"
	}
	return t.In(s.Location).Format(util.TimeFormat)
}

func formatRate(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', 1, 64) + "%"
}

func ratio(part, whole int64) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func resultLabel(passed *bool) string {
	switch {
	case passed == nil:
		return "INCOMPLETE"
	case *passed:
		return "PASSED"
	default:
		return "FAILED"
	}
}

func preview(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "..."
}

// store 将 CSV 写入存储并返回导出信息
func (s *ExportService) store(ctx context.Context, prefix string, ownerID uint, header []string, rows [][]string) (*ExportFile, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s%d_%s.csv", prefix, ownerID, uuid.NewString()[:8])
	if err := s.Storage.Put(ctx, key, buf.Bytes(), util.MimeCSV); err != nil {
		logger.Log.Error("Failed to store export", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("store export: %w", err)
	}

	return &ExportFile{
		Key:        key,
		FileName:   path.Base(key),
		Size:       buf.Len(),
		Records:    len(rows),
		ExportedAt: s.now(),
	}, nil
}

var userAttemptsHeader = []string{
	"Attempt ID", "Subject", "Chapter", "Quiz Title", "Date Attempted",
	"Start Time", "End Time", "Time Taken (mins)", "Duration Limit (mins)",
	"Score", "Total Marks", "Score Percentage", "Passing Score",
	"Result", "Status",
}

// ExportUserAttempts 导出调用者的全部答题记录
func (s *ExportService) ExportUserAttempts(ctx context.Context, p util.Principal) (*ExportFile, error) {
	attempts, err := s.Attempts.ListMyAttempts(p)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(attempts))
	for _, a := range attempts {
		timeTaken := "N/A"
		if a.TimeTaken != nil {
			timeTaken = strconv.Itoa(*a.TimeTaken)
		}
		rows = append(rows, []string{
			strconv.FormatUint(uint64(a.ID), 10),
			a.SubjectName,
			a.ChapterName,
			a.QuizTitle,
			s.formatTime(&a.CreatedAt),
			s.formatTime(&a.StartTime),
			s.formatTime(a.EndTime),
			timeTaken,
			strconv.Itoa(a.TimeDuration),
			strconv.Itoa(intOr(a.Score, 0)),
			strconv.Itoa(a.TotalMarks),
			strconv.Itoa(intOr(a.ScorePercentage, 0)) + "%",
			strconv.Itoa(a.PassingScore) + "%",
			resultLabel(a.IsPassed),
			strings.ToUpper(string(a.Status)),
		})
	}

	return s.store(ctx, util.ExportPrefixUserAttempts, p.SubjectID, userAttemptsHeader, rows)
}

var usersReportHeader = []string{
	"User ID", "Email", "Full Name", "Qualification", "Date of Birth",
	"Registration Date", "Total Quiz Attempts", "Completed Quizzes",
	"Average Score (%)", "Best Score (%)", "Passed Quizzes", "Pass Rate (%)",
}

// ExportUsersReport 管理员导出用户及其答题统计
func (s *ExportService) ExportUsersReport(ctx context.Context, p util.Principal) (*ExportFile, error) {
	users, err := s.UserRepo.ListByRole(model.RoleUser)
	if err != nil {
		return nil, dbErr(err)
	}
	stats, err := s.AttemptRepo.StatsByUser()
	if err != nil {
		return nil, dbErr(err)
	}
	byUser := make(map[uint]repository.AttemptStats, len(stats))
	for _, st := range stats {
		byUser[st.GroupKey] = st
	}

	rows := make([][]string, 0, len(users))
	for _, u := range users {
		st := byUser[u.ID]
		dob := "N/A"
		if !u.DateOfBirth.IsZero() {
			dob = u.DateOfBirth.Format(util.DateFormat)
		}
		rows = append(rows, []string{
			strconv.FormatUint(uint64(u.ID), 10),
			u.Email,
			u.FullName,
			u.Qualification,
			dob,
			u.CreatedAt.In(s.Location).Format(util.DateFormat),
			strconv.FormatInt(st.Attempts, 10),
			strconv.FormatInt(st.Completed, 10),
			formatRate(st.AvgPercentage),
			strconv.FormatInt(st.BestScore, 10) + "%",
			strconv.FormatInt(st.Passed, 10),
			formatRate(ratio(st.Passed, st.Completed)),
		})
	}

	return s.store(ctx, util.ExportPrefixUsers, p.SubjectID, usersReportHeader, rows)
}

var quizStatisticsHeader = []string{
	"Quiz ID", "Subject", "Chapter", "Quiz Title", "Description",
	"Quiz Date", "Duration (mins)", "Total Marks", "Passing Score (%)",
	"Total Attempts", "Completed Attempts", "Average Score (%)",
	"Passed Attempts", "Pass Rate (%)", "Completion Rate (%)",
}

// ExportQuizStatistics 管理员导出启用中测验的统计
func (s *ExportService) ExportQuizStatistics(ctx context.Context, p util.Principal) (*ExportFile, error) {
	quizzes, err := s.QuizRepo.ListAll()
	if err != nil {
		return nil, dbErr(err)
	}
	stats, err := s.AttemptRepo.StatsByQuiz()
	if err != nil {
		return nil, dbErr(err)
	}
	byQuiz := make(map[uint]repository.AttemptStats, len(stats))
	for _, st := range stats {
		byQuiz[st.GroupKey] = st
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

	rows := make([][]string, 0, len(quizzes))
	for _, q := range quizzes {
		if !q.IsActive {
			continue
		}
		st := byQuiz[q.ID]
		chapter := chapters[q.ChapterID]
		quizDate := q.StartDate
		if quizDate == "" {
			quizDate = "N/A"
		}
		rows = append(rows, []string{
			strconv.FormatUint(uint64(q.ID), 10),
			subjects[chapter.SubjectID].Name,
			chapter.Name,
			q.Title,
			preview(q.Description, descriptionPreviewLen),
			quizDate,
			strconv.Itoa(q.TimeDuration),
			strconv.Itoa(q.TotalMarks),
			strconv.Itoa(q.PassingScore) + "%",
			strconv.FormatInt(st.Attempts, 10),
			strconv.FormatInt(st.Completed, 10),
			formatRate(st.AvgPercentage),
			strconv.FormatInt(st.Passed, 10),
			formatRate(ratio(st.Passed, st.Completed)),
			formatRate(ratio(st.Completed, st.Attempts)),
		})
	}

	return s.store(ctx, util.ExportPrefixQuizStats, p.SubjectID, quizStatisticsHeader, rows)
}

// OpenExport 打开已生成的导出文件。普通用户只能下载自己的答题导出。
func (s *ExportService) OpenExport(ctx context.Context, p util.Principal, fileName string) (io.ReadCloser, error) {
	if fileName == "" || fileName != path.Base(fileName) || !strings.HasSuffix(fileName, ".csv") {
		return nil, fmt.Errorf("%w: invalid file name", util.ErrInvalidInput)
	}
	key := util.ExportDir + fileName

	if !p.IsAdmin() {
		own := fmt.Sprintf("%s%d_", util.ExportPrefixUserAttempts, p.SubjectID)
		if !strings.HasPrefix(key, own) {
			return nil, util.ErrPermissionDenied
		}
	}

	rc, err := s.Storage.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	return rc, nil
}
