package service

import (
	"errors"
	"testing"
	"time"

	"quiz_master_backend/internal/config"
	"quiz_master_backend/internal/model"
	"quiz_master_backend/internal/repository"
	"quiz_master_backend/internal/testutil"
	"quiz_master_backend/internal/util"
)

func newAuthService(t *testing.T) *AuthService {
	t.Helper()
	db := testutil.NewDB(t)
	cfg := &config.Config{
		JWT: config.JWTConfig{Secret: "test-secret", ExpireTime: time.Hour},
		App: config.AppConfig{AdminUsername: "admin", AdminEmail: "admin@example.com", AdminPassword: "admin123"},
	}
	return NewAuthService(repository.NewUserRepository(db), cfg)
}

func TestRegisterAndLogin(t *testing.T) {
	s := newAuthService(t)

	req := RegisterRequest{
		Email:         "Alice@Example.com",
		Password:      "secret1",
		FullName:      "Alice",
		Qualification: "BSc",
		DateOfBirth:   "2001-05-04",
	}
	user, err := s.Register(req)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Email != "alice@example.com" || user.Role != model.RoleUser || user.Password == "secret1" {
		t.Fatalf("user = %+v", user)
	}

	if _, err := s.Register(req); !errors.Is(err, util.ErrEmailRegistered) {
		t.Fatalf("duplicate register: err = %v", err)
	}

	if _, err := s.Login(LoginRequest{Email: "alice@example.com", Password: "wrong"}); !errors.Is(err, util.ErrInvalidCredential) {
		t.Fatalf("bad password: err = %v", err)
	}

	res, err := s.Login(LoginRequest{Email: "alice@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := util.ParseJWT(res.AccessToken, "test-secret")
	if err != nil {
		t.Fatal(err)
	}
	if p := claims.Principal(); p.SubjectID != user.ID || p.IsAdmin() {
		t.Fatalf("principal = %+v", p)
	}
}

func TestEnsureAdminAndAdminLogin(t *testing.T) {
	s := newAuthService(t)

	if err := s.EnsureAdmin(); err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	if err := s.EnsureAdmin(); err != nil {
		t.Fatalf("EnsureAdmin second run: %v", err)
	}

	res, err := s.AdminLogin(AdminLoginRequest{Username: "admin", Password: "admin123"})
	if err != nil {
		t.Fatalf("AdminLogin: %v", err)
	}
	if res.Role != model.RoleAdmin {
		t.Fatalf("role = %s", res.Role)
	}

	// 管理员不能走普通用户登录
	if _, err := s.Login(LoginRequest{Email: "admin@example.com", Password: "admin123"}); !errors.Is(err, util.ErrInvalidCredential) {
		t.Fatalf("admin via user login: err = %v", err)
	}
}
