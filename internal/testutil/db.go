// Package testutil 提供测试用的内存数据库与固定数据
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"quiz_master_backend/internal/model"
	"quiz_master_backend/internal/util"
	"quiz_master_backend/pkg/database"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq int64

// NewDB 为每个测试创建独立的内存 SQLite。
// 内存库只存在于单个连接上，因此连接池限制为 1，并发请求也随之串行执行。
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type Fixture struct {
	User     model.User
	Subject  model.Subject
	Chapter  model.Chapter
	Quiz     model.Quiz
	Question []model.Question
}

// SeedQuiz 创建一个用户以及 科目/章节/测验，测验含两道各 50 分的题目，及格线 50
func SeedQuiz(t testing.TB, db *gorm.DB, start time.Time) *Fixture {
	t.Helper()

	f := &Fixture{}
	f.User = model.User{
		Email:       fmt.Sprintf("user%d@example.com", atomic.AddInt64(&dbSeq, 1)),
		Password:    "x",
		FullName:    "Test User",
		DateOfBirth: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		Role:        model.RoleUser,
	}
	must(t, db.Create(&f.User).Error)

	f.Subject = model.Subject{Name: fmt.Sprintf("Mathematics %d", f.User.ID), IsActive: true}
	must(t, db.Create(&f.Subject).Error)

	f.Chapter = model.Chapter{SubjectID: f.Subject.ID, Name: "Algebra", SequenceNumber: 1, IsActive: true}
	must(t, db.Create(&f.Chapter).Error)

	f.Quiz = model.Quiz{
		ChapterID:    f.Chapter.ID,
		Title:        "Linear equations",
		StartDate:    start.Format(model.ScheduleDateLayout),
		StartTime:    start.Format(model.ScheduleClockLayout),
		TimeDuration: 30,
		PassingScore: 50,
		TotalMarks:   100,
		IsActive:     true,
	}
	must(t, db.Create(&f.Quiz).Error)

	f.Question = []model.Question{
		{QuizID: f.Quiz.ID, QuestionText: "x+1=2", Option1: "0", Option2: "1", Option3: "2", Option4: "3", CorrectOption: 2, Marks: 50},
		{QuizID: f.Quiz.ID, QuestionText: "2x=6", Option1: "2", Option2: "3", Option3: "4", Option4: "6", CorrectOption: 2, Marks: 50},
	}
	must(t, db.Create(&f.Question).Error)
	return f
}

// PrincipalOf 返回固定数据中普通用户的身份
func PrincipalOf(f *Fixture) util.Principal {
	return util.Principal{SubjectID: f.User.ID, Role: model.RoleUser}
}

func must(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}
