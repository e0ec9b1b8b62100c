package service

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"quiz_master_backend/internal/model"
	"quiz_master_backend/internal/repository"
	"quiz_master_backend/internal/util"
)

func readCSV(t *testing.T, rc io.ReadCloser) [][]string {
	t.Helper()
	defer rc.Close()
	records, err := csv.NewReader(rc).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	return records
}

func TestExports(t *testing.T) {
	attempts, f, _, db := newAttemptService(t, baseTime.Add(-time.Hour))
	p := principalOf(f)

	started, err := attempts.StartAttempt(p, f.Quiz.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := attempts.SubmitAttempt(p, started.Attempt.ID, SubmitRequest{Answers: allCorrect(f), TimeTaken: util.IntPtr(12)}); err != nil {
		t.Fatal(err)
	}

	storage := &StorageService{Provider: &LocalStorageProvider{Root: t.TempDir()}}
	s := NewExportService(
		attempts,
		repository.NewUserRepository(db),
		repository.NewQuizRepository(db),
		repository.NewChapterRepository(db),
		repository.NewSubjectRepository(db),
		repository.NewAttemptRepository(db),
		storage,
		time.UTC,
	)
	ctx := context.Background()
	admin := util.Principal{SubjectID: 999, Role: model.RoleAdmin}

	t.Run("user attempts", func(t *testing.T) {
		file, err := s.ExportUserAttempts(ctx, p)
		if err != nil {
			t.Fatal(err)
		}
		if file.Records != 1 || !strings.HasPrefix(file.Key, util.ExportPrefixUserAttempts) {
			t.Fatalf("file = %+v", file)
		}

		rc, err := s.OpenExport(ctx, p, file.FileName)
		if err != nil {
			t.Fatal(err)
		}
		records := readCSV(t, rc)
		if len(records) != 2 || records[0][0] != "Attempt ID" {
			t.Fatalf("records = %v", records)
		}
		row := records[1]
		want := map[int]string{
			1:  f.Subject.Name,
			3:  f.Quiz.Title,
			7:  "12",
			8:  "30",
			9:  "100",
			11: "100%",
			12: "50%",
			13: "PASSED",
			14: "COMPLETED",
		}
		for col, v := range want {
			if row[col] != v {
				t.Errorf("column %s = %q, want %q", records[0][col], row[col], v)
			}
		}

		stranger := util.Principal{SubjectID: f.User.ID + 100, Role: model.RoleUser}
		if _, err := s.OpenExport(ctx, stranger, file.FileName); !errors.Is(err, util.ErrPermissionDenied) {
			t.Errorf("stranger download err = %v", err)
		}
		if rc, err := s.OpenExport(ctx, admin, file.FileName); err != nil {
			t.Errorf("admin download err = %v", err)
		} else {
			rc.Close()
		}
	})

	t.Run("users report", func(t *testing.T) {
		file, err := s.ExportUsersReport(ctx, admin)
		if err != nil {
			t.Fatal(err)
		}
		rc, err := s.OpenExport(ctx, admin, file.FileName)
		if err != nil {
			t.Fatal(err)
		}
		records := readCSV(t, rc)
		if len(records) != 2 {
			t.Fatalf("records = %v", records)
		}
		row := records[1]
		if row[1] != f.User.Email || row[6] != "1" || row[7] != "1" || row[8] != "100.0%" || row[10] != "1" || row[11] != "100.0%" {
			t.Errorf("row = %v", row)
		}
	})

	t.Run("quiz statistics", func(t *testing.T) {
		file, err := s.ExportQuizStatistics(ctx, admin)
		if err != nil {
			t.Fatal(err)
		}
		rc, err := s.OpenExport(ctx, admin, file.FileName)
		if err != nil {
			t.Fatal(err)
		}
		records := readCSV(t, rc)
		if len(records) != 2 {
			t.Fatalf("records = %v", records)
		}
		row := records[1]
		if row[2] != f.Chapter.Name || row[9] != "1" || row[13] != "100.0%" || row[14] != "100.0%" {
			t.Errorf("row = %v", row)
		}
	})

	t.Run("bad names", func(t *testing.T) {
		for _, name := range []string{"", "../config.yaml", "a/b.csv", "x.txt"} {
			if _, err := s.OpenExport(ctx, admin, name); !errors.Is(err, util.ErrInvalidInput) {
				t.Errorf("OpenExport(%q) err = %v", name, err)
			}
		}
		if _, err := s.OpenExport(ctx, admin, "missing.csv"); !errors.Is(err, util.ErrNotFound) {
			t.Errorf("missing err = %v", err)
		}
	})
}

func TestExportHelpers(t *testing.T) {
	passed, failed := true, false
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"result passed", resultLabel(&passed), "PASSED"},
		{"result failed", resultLabel(&failed), "FAILED"},
		{"result incomplete", resultLabel(nil), "INCOMPLETE"},
		{"rate rounds", formatRate(ratio(2, 3)), "66.7%"},
		{"rate zero", formatRate(ratio(0, 0)), "0.0%"},
		{"preview short", preview("abc", 5), "abc"},
		{"preview long", preview("abcdef", 3), "abc..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
