package util

import (
	"testing"
	"time"

	"quiz_master_backend/internal/model"
)

func TestJWTRoundTrip(t *testing.T) {
	user := &model.User{Role: model.RoleAdmin}
	user.ID = 42

	token, err := GenerateJWT(user, "secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	claims, err := ParseJWT(token, "secret")
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	p := claims.Principal()
	if p.SubjectID != 42 || !p.IsAdmin() {
		t.Errorf("principal = %+v", p)
	}
}

func TestParseJWTRejects(t *testing.T) {
	user := &model.User{Role: model.RoleUser}
	user.ID = 7

	expired, _ := GenerateJWT(user, "secret", -time.Minute)
	if _, err := ParseJWT(expired, "secret"); err == nil {
		t.Error("expired token accepted")
	}

	valid, _ := GenerateJWT(user, "secret", time.Hour)
	if _, err := ParseJWT(valid, "other"); err == nil {
		t.Error("token with wrong secret accepted")
	}
}
