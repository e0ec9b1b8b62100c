// Package jobs 定时任务：每日提醒、月度报告、超时答题清理与导出文件清理
package jobs

import (
	"context"
	"fmt"
	"time"

	"quiz_master_backend/internal/config"
	"quiz_master_backend/internal/service"
	"quiz_master_backend/pkg/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// 导出文件保留时长
const exportMaxAge = 24 * time.Hour

// cronLogger 将 cron 内部日志接入 zap
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}

type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
	stop context.CancelFunc
}

func NewScheduler(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	l := cronLogger{log: logger.Log.Sugar()}
	ctx, stop := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(l),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
		),
		ctx:  ctx,
		stop: stop,
	}
}

// Register 注册任务，spec 为空时跳过
func (s *Scheduler) Register(name, spec string, fn func(ctx context.Context) error) error {
	if spec == "" {
		logger.Log.Info("Job disabled", zap.String("job", name))
		return nil
	}
	_, err := s.cron.AddFunc(spec, func() {
		start := time.Now()
		if err := fn(s.ctx); err != nil {
			logger.Log.Error("Job failed", zap.String("job", name), zap.Error(err))
			return
		}
		logger.Log.Info("Job finished", zap.String("job", name), zap.Duration("took", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("job %s: invalid spec %q: %w", name, spec, err)
	}
	return nil
}

func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop 停止调度并等待正在运行的任务结束，或直到 ctx 超时
func (s *Scheduler) Stop(ctx context.Context) {
	s.stop()
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		logger.Log.Warn("Timed out waiting for running jobs")
	}
}

// Deps 定时任务依赖的服务
type Deps struct {
	Reminders *service.ReminderService
	Attempts  *service.AttemptService
	Quizzes   *service.QuizService
	Storage   *service.StorageService
}

// RegisterAll 按配置注册全部任务
func RegisterAll(s *Scheduler, cfg config.SchedulerConfig, deps Deps) error {
	jobs := []struct {
		name string
		spec string
		fn   func(ctx context.Context) error
	}{
		{"daily_reminders", cfg.DailyReminderSpec, func(ctx context.Context) error {
			_, err := deps.Reminders.SendDailyReminders(ctx)
			return err
		}},
		{"monthly_reports", cfg.MonthlyReportSpec, func(ctx context.Context) error {
			_, err := deps.Reminders.SendMonthlyReports(ctx)
			return err
		}},
		{"expiry_sweep", cfg.ExpirySweepSpec, func(ctx context.Context) error {
			return sweep(ctx, deps.Attempts, deps.Quizzes)
		}},
		{"export_cleanup", cfg.ExportCleanupSpec, func(ctx context.Context) error {
			_, err := deps.Storage.CleanupExports(ctx, exportMaxAge)
			return err
		}},
	}

	for _, j := range jobs {
		if err := s.Register(j.name, j.spec, j.fn); err != nil {
			return err
		}
	}
	return nil
}

// sweep 关闭超时答题并锁定已过期的测验
func sweep(ctx context.Context, attempts *service.AttemptService, quizzes *service.QuizService) error {
	if _, err := attempts.ExpireOverdueAttempts(); err != nil {
		return err
	}
	_, err := quizzes.LockExpiredQuizzes(ctx)
	return err
}
