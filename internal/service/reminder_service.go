package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"quiz_master_backend/internal/model"
	"quiz_master_backend/internal/repository"
	"quiz_master_backend/pkg/logger"
	"quiz_master_backend/pkg/mailer"
	"quiz_master_backend/pkg/monitoring"

	"go.uber.org/zap"
)

const (
	inactiveAfter         = 7 * 24 * time.Hour
	newQuizWindow         = 24 * time.Hour
	reminderQuizListLimit = 5

	LevelExcellent        = "Excellent"
	LevelGood             = "Good"
	LevelSatisfactory     = "Satisfactory"
	LevelNeedsImprovement = "Needs Improvement"
	LevelNoActivity       = "No Activity"
)

var dailyReminderTmpl = template.Must(template.New("daily").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2937;">
  <h2>Hello {{.UserName}},</h2>
  <p>We noticed that <strong style="color: #4f46e5;">{{.Reason}}</strong>. Here's a quick update:</p>
  {{if .NewQuizzes}}
  <h3>New quizzes</h3>
  <ul>{{range .NewQuizzes}}<li>{{.Title}}</li>{{end}}</ul>
  {{end}}
  {{if .Available}}
  <h3>Available now</h3>
  <ul>{{range .Available}}<li>{{.Title}} ({{.SubjectName}} / {{.ChapterName}}, {{.TimeDuration}} mins)</li>{{end}}</ul>
  {{end}}
  <p><a href="{{.AppURL}}">Open {{.AppName}}</a></p>
</body>
</html>`))

var monthlyReportTmpl = template.Must(template.New("monthly").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2937;">
  <h2>Hello {{.UserName}},</h2>
  <p>Here is your activity report for <strong>{{.Month}}</strong>.</p>
  <table cellpadding="6">
    <tr><td>Total attempts</td><td>{{.TotalAttempts}}</td></tr>
    <tr><td>Completed attempts</td><td>{{.CompletedAttempts}}</td></tr>
    <tr><td>Average score</td><td>{{printf "%.1f" .AverageScore}}%</td></tr>
    <tr><td>Passing rate</td><td>{{printf "%.1f" .PassingRate}}%</td></tr>
  </table>
  <p>Your performance level: <strong style="{{.LevelStyle}}">{{.Level}}</strong></p>
  <p><a href="{{.AppURL}}">Open {{.AppName}}</a></p>
</body>
</html>`))

type dailyReminderData struct {
	UserName   string
	Reason     string
	NewQuizzes []model.Quiz
	Available  []AvailableQuiz
	AppName    string
	AppURL     string
}

// MonthlyReport 单个用户的月度统计
type MonthlyReport struct {
	UserName          string
	Month             string
	TotalAttempts     int
	CompletedAttempts int
	AverageScore      float64
	PassingRate       float64
	Level             string
	LevelStyle        template.CSS
	AppName           string
	AppURL            string
}

// ReminderService 每日提醒与月度报告
type ReminderService struct {
	UserRepo    *repository.UserRepository
	QuizRepo    *repository.QuizRepository
	AttemptRepo *repository.AttemptRepository
	Quizzes     *QuizService
	Mailer      mailer.Sender
	AppName     string
	AppURL      string
	Location    *time.Location
	Clock       func() time.Time
}

func NewReminderService(
	userRepo *repository.UserRepository,
	quizRepo *repository.QuizRepository,
	attemptRepo *repository.AttemptRepository,
	quizzes *QuizService,
	sender mailer.Sender,
	appName, appURL string,
	loc *time.Location,
) *ReminderService {
	if loc == nil {
		loc = time.UTC
	}
	return &ReminderService{
		UserRepo:    userRepo,
		QuizRepo:    quizRepo,
		AttemptRepo: attemptRepo,
		Quizzes:     quizzes,
		Mailer:      sender,
		AppName:     appName,
		AppURL:      appURL,
		Location:    loc,
		Clock:       time.Now,
	}
}

func (s *ReminderService) now() time.Time {
	return s.Clock().In(s.Location)
}

// reminderReason 选择提醒原因，返回空字符串表示无需提醒
func reminderReason(newQuizzes, available int, last *model.QuizAttempt, now time.Time) string {
	switch {
	case newQuizzes > 0:
		return fmt.Sprintf("%d new quizzes available", newQuizzes)
	case available > 0 && (last == nil || last.CreatedAt.Before(now.Add(-inactiveAfter))):
		return "It's been a while since your last quiz"
	case available > 0:
		return "Don't miss out on available quizzes"
	default:
		return ""
	}
}

// SendDailyReminders 向普通用户发送每日提醒。单个用户失败只记录日志，不影响其他用户。
func (s *ReminderService) SendDailyReminders(ctx context.Context) (int, error) {
	users, err := s.UserRepo.ListByRole(model.RoleUser)
	if err != nil {
		return 0, dbErr(err)
	}
	if len(users) == 0 {
		return 0, nil
	}

	now := s.now()
	newQuizzes, err := s.QuizRepo.ListCreatedSince(now.Add(-newQuizWindow))
	if err != nil {
		return 0, dbErr(err)
	}
	available, err := s.Quizzes.ListAvailable(ctx)
	if err != nil {
		return 0, err
	}
	shown := available
	if len(shown) > reminderQuizListLimit {
		shown = shown[:reminderQuizListLimit]
	}

	sent := 0
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		last, err := s.AttemptRepo.LatestByUser(u.ID)
		if err != nil {
			logger.Log.Error("Failed to load last attempt", zap.Uint("userID", u.ID), zap.Error(err))
			continue
		}
		reason := reminderReason(len(newQuizzes), len(available), last, now)
		if reason == "" {
			continue
		}

		var buf bytes.Buffer
		if err := dailyReminderTmpl.Execute(&buf, dailyReminderData{
			UserName:   u.FullName,
			Reason:     reason,
			NewQuizzes: newQuizzes,
			Available:  shown,
			AppName:    s.AppName,
			AppURL:     s.AppURL,
		}); err != nil {
			logger.Log.Error("Failed to render daily reminder", zap.Uint("userID", u.ID), zap.Error(err))
			continue
		}

		err = s.Mailer.Send(ctx, u.Email, s.AppName+" - Daily Reminder", buf.String())
		monitoring.ObserveEmail("daily_reminder", err)
		if err != nil {
			logger.Log.Error("Failed to send daily reminder", zap.String("email", u.Email), zap.Error(err))
			continue
		}
		sent++
	}

	logger.Log.Info("Daily reminders finished", zap.Int("sent", sent), zap.Int("users", len(users)))
	return sent, nil
}

func performanceLevel(avg float64) (string, template.CSS) {
	switch {
	case avg >= 90:
		return LevelExcellent, "color: #047857;"
	case avg >= 75:
		return LevelGood, "color: #0369a1;"
	case avg >= 60:
		return LevelSatisfactory, "color: #b45309;"
	default:
		return LevelNeedsImprovement, "color: #b91c1c;"
	}
}

// previousMonth 返回上个自然月的 [from, to)
func previousMonth(now time.Time) (time.Time, time.Time) {
	to := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return to.AddDate(0, -1, 0), to
}

// BuildMonthlyReport 平均分按得分总和/满分总和计算，只计入已完成的答题
func BuildMonthlyReport(userName, month string, attempts []model.QuizAttempt) MonthlyReport {
	r := MonthlyReport{UserName: userName, Month: month, TotalAttempts: len(attempts)}
	if len(attempts) == 0 {
		r.Level = LevelNoActivity
		return r
	}

	var score, possible, passed int
	for _, a := range attempts {
		if a.Status != model.AttemptCompleted {
			continue
		}
		r.CompletedAttempts++
		if a.Score != nil {
			score += *a.Score
		}
		possible += a.TotalMarks
		if a.IsPassed != nil && *a.IsPassed {
			passed++
		}
	}
	if possible > 0 {
		r.AverageScore = round1(float64(score) / float64(possible) * 100)
	}
	r.PassingRate = round1(ratio(int64(passed), int64(r.CompletedAttempts)))
	r.Level, r.LevelStyle = performanceLevel(r.AverageScore)
	return r
}

// SendMonthlyReports 发送上个月的活动报告，没有答题的用户也会收到 No Activity 报告
func (s *ReminderService) SendMonthlyReports(ctx context.Context) (int, error) {
	users, err := s.UserRepo.ListByRole(model.RoleUser)
	if err != nil {
		return 0, dbErr(err)
	}

	from, to := previousMonth(s.now())
	month := from.Format("January 2006")

	sent := 0
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		attempts, err := s.AttemptRepo.ListByUserBetween(u.ID, from, to)
		if err != nil {
			logger.Log.Error("Failed to load monthly attempts", zap.Uint("userID", u.ID), zap.Error(err))
			continue
		}
		report := BuildMonthlyReport(u.FullName, month, attempts)
		report.AppName, report.AppURL = s.AppName, s.AppURL

		var buf bytes.Buffer
		if err := monthlyReportTmpl.Execute(&buf, report); err != nil {
			logger.Log.Error("Failed to render monthly report", zap.Uint("userID", u.ID), zap.Error(err))
			continue
		}

		subject := fmt.Sprintf("%s - Monthly Activity Report (%s)", s.AppName, month)
		err = s.Mailer.Send(ctx, u.Email, subject, buf.String())
		monitoring.ObserveEmail("monthly_report", err)
		if err != nil {
			logger.Log.Error("Failed to send monthly report", zap.String("email", u.Email), zap.Error(err))
			continue
		}
		sent++
	}

	logger.Log.Info("Monthly reports finished", zap.String("month", month), zap.Int("sent", sent))
	return sent, nil
}
