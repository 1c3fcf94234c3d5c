package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"topup_service/internal/model"
	"topup_service/internal/order"
)

const (
	passwordCost      = 10
	minPasswordLength = 6
	RoleUser          = "USER"
)

// 路由层按这些错误返回对应的提示文案。
var (
	ErrMissingFields      = errors.New("all fields are required")
	ErrPasswordMismatch   = errors.New("new passwords do not match")
	ErrPasswordTooShort   = errors.New("password too short")
	ErrWrongPassword      = errors.New("current password is incorrect")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrAccountNotFound    = errors.New("account not found")
	ErrStorage            = errors.New("storage error")
)

// Service 账号注册、登录与改密。
type Service struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewService(db *gorm.DB, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{db: db, log: log}
}

// CallerOf 把账号转换成签发 token 所需的请求方。
func CallerOf(a *model.Account) order.Caller {
	return order.Caller{UserID: int64(a.ID), Username: a.Username, Role: a.Role}
}

// RegisterInput 注册请求体
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register 创建普通会员账号。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.Account, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" || in.Password == "" {
		return nil, ErrMissingFields
	}
	if len(in.Password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}
	return s.create(ctx, in.Username, strings.TrimSpace(in.Email), in.Password, RoleUser)
}

// Login 校验用户名密码。用户不存在与密码错误返回同一个错误。
func (s *Service) Login(ctx context.Context, username, password string) (*model.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrMissingFields
	}
	a, err := s.byUsername(ctx, username)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) != nil {
		s.log.Warn("login rejected", "username", username)
		return nil, ErrInvalidCredentials
	}
	return a, nil
}

// Me 返回当前登录账号。
func (s *Service) Me(ctx context.Context, caller *order.Caller) (*model.Account, error) {
	if caller == nil {
		return nil, order.ErrUnauthenticated
	}
	return s.byID(ctx, caller.UserID)
}

// ChangePasswordInput 改密请求体
type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// ChangePassword 校验旧密码后写入新摘要。
func (s *Service) ChangePassword(ctx context.Context, caller *order.Caller, in ChangePasswordInput) error {
	if caller == nil {
		return order.ErrUnauthenticated
	}
	if in.CurrentPassword == "" || in.NewPassword == "" || in.ConfirmPassword == "" {
		return ErrMissingFields
	}
	if in.NewPassword != in.ConfirmPassword {
		return ErrPasswordMismatch
	}
	if len(in.NewPassword) < minPasswordLength {
		return ErrPasswordTooShort
	}

	a, err := s.byID(ctx, caller.UserID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(in.CurrentPassword)) != nil {
		return ErrWrongPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), passwordCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(a).Update("password_hash", string(hash)).Error; err != nil {
		return fmt.Errorf("%w: update password: %v", ErrStorage, err)
	}
	s.log.Info("password changed", "account_id", a.ID)
	return nil
}

// EnsureAdmin 启动时确保管理员账号存在；已存在时不改动密码。
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil
	}
	a, err := s.byUsername(ctx, username)
	switch {
	case err == nil:
		if a.Role != order.RoleAdmin {
			if err := s.db.WithContext(ctx).Model(a).Update("role", order.RoleAdmin).Error; err != nil {
				return fmt.Errorf("%w: promote admin: %v", ErrStorage, err)
			}
			s.log.Info("account promoted to admin", "username", username)
		}
		return nil
	case !errors.Is(err, ErrAccountNotFound):
		return err
	}
	if _, err := s.create(ctx, username, "", password, order.RoleAdmin); err != nil {
		return err
	}
	s.log.Info("admin account created", "username", username)
	return nil
}

func (s *Service) create(ctx context.Context, username, email, password, role string) (*model.Account, error) {
	if _, err := s.byUsername(ctx, username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, ErrAccountNotFound) {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	a := &model.Account{Username: username, Email: email, PasswordHash: string(hash), Role: role}
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("%w: create account: %v", ErrStorage, err)
	}
	return a, nil
}

func (s *Service) byUsername(ctx context.Context, username string) (*model.Account, error) {
	var a model.Account
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("%w: load account: %v", ErrStorage, err)
	}
	return &a, nil
}

func (s *Service) byID(ctx context.Context, id int64) (*model.Account, error) {
	if id <= 0 {
		return nil, ErrAccountNotFound
	}
	var a model.Account
	if err := s.db.WithContext(ctx).First(&a, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("%w: load account %d: %v", ErrStorage, id, err)
	}
	return &a, nil
}
