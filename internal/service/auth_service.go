package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"quiz_master_backend/internal/config"
	"quiz_master_backend/internal/model"
	"quiz_master_backend/internal/repository"
	"quiz_master_backend/internal/util"
	"quiz_master_backend/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type RegisterRequest struct {
	Email         string `json:"email" binding:"required,email"`
	Password      string `json:"password" binding:"required,min=6"`
	FullName      string `json:"fullName" binding:"required,max=100"`
	Qualification string `json:"qualification" binding:"required,max=100"`
	DateOfBirth   string `json:"dateOfBirth" binding:"required,isodate"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AdminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResult struct {
	AccessToken string         `json:"accessToken"`
	Role        model.UserRole `json:"role"`
	User        *model.User    `json:"user"`
}

type AuthService struct {
	UserRepo *repository.UserRepository
	Cfg      *config.Config
}

func NewAuthService(userRepo *repository.UserRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		UserRepo: userRepo,
		Cfg:      cfg,
	}
}

func (s *AuthService) Register(req RegisterRequest) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	exists, err := s.UserRepo.ExistsByEmail(email)
	if err != nil {
		return nil, dbErr(err)
	}
	if exists {
		return nil, util.ErrEmailRegistered
	}

	dob, err := time.Parse(util.DateFormat, req.DateOfBirth)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date of birth", util.ErrInvalidInput)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:         email,
		Password:      string(hashedPassword),
		FullName:      strings.TrimSpace(req.FullName),
		Qualification: strings.TrimSpace(req.Qualification),
		DateOfBirth:   dob,
		Role:          model.RoleUser,
	}
	if err := s.UserRepo.Create(user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, util.ErrEmailRegistered
		}
		return nil, dbErr(err)
	}
	logger.Log.Info("User registered", zap.Uint("userID", user.ID))
	return user, nil
}

// Login 普通用户使用邮箱登录
func (s *AuthService) Login(req LoginRequest) (*LoginResult, error) {
	user, err := s.UserRepo.FindByEmail(strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil || user.Role != model.RoleUser {
		return nil, util.ErrInvalidCredential
	}
	return s.issue(user, req.Password)
}

// AdminLogin 管理员使用用户名登录
func (s *AuthService) AdminLogin(req AdminLoginRequest) (*LoginResult, error) {
	user, err := s.UserRepo.FindByUsername(strings.TrimSpace(req.Username))
	if err != nil || !user.IsAdmin() {
		return nil, util.ErrInvalidCredential
	}
	return s.issue(user, req.Password)
}

func (s *AuthService) issue(user *model.User, password string) (*LoginResult, error) {
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, util.ErrInvalidCredential
	}

	token, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return nil, err
	}

	if err := s.UserRepo.UpdateLastLogin(user.ID, time.Now()); err != nil {
		logger.Log.Warn("Failed to record last login", zap.Uint("userID", user.ID), zap.Error(err))
	}
	return &LoginResult{AccessToken: token, Role: user.Role, User: user}, nil
}

func (s *AuthService) GetUser(p util.Principal) (*model.User, error) {
	user, err := s.UserRepo.FindByID(p.SubjectID)
	if err != nil {
		return nil, lookupErr(err, util.ErrUserNotFound)
	}
	return user, nil
}

// GetUserByID 用户只能查看自己，管理员可以查看任何人
func (s *AuthService) GetUserByID(p util.Principal, id uint) (*model.User, error) {
	if p.SubjectID != id && !p.IsAdmin() {
		return nil, util.ErrPermissionDenied
	}
	user, err := s.UserRepo.FindByID(id)
	if err != nil {
		return nil, lookupErr(err, util.ErrUserNotFound)
	}
	return user, nil
}

func (s *AuthService) ListUsers(page, limit int) ([]model.User, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	users, total, err := s.UserRepo.List(page, limit)
	if err != nil {
		return nil, 0, dbErr(err)
	}
	return users, total, nil
}

// EnsureAdmin 首次迁移后创建默认管理员账号，已存在时不做修改
func (s *AuthService) EnsureAdmin() error {
	username := s.Cfg.App.AdminUsername
	if _, err := s.UserRepo.FindByUsername(username); err == nil {
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	password := s.Cfg.App.AdminPassword
	if password == "" {
		return errors.New("admin password is not configured")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := &model.User{
		Email:       s.Cfg.App.AdminEmail,
		Username:    &username,
		Password:    string(hashed),
		FullName:    "Quiz Master",
		DateOfBirth: time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
		Role:        model.RoleAdmin,
	}
	if err := s.UserRepo.Create(admin); err != nil {
		return err
	}
	logger.Log.Info("Default admin created", zap.String("username", username))
	return nil
}
