package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"regexp"
	"strings"
	"sync"

	"gorm.io/gorm"

	"lingua-go/internal/apperr"
	"lingua-go/internal/auth"
	"lingua-go/internal/config"
	"lingua-go/internal/metrics"
	"lingua-go/internal/models"
	"lingua-go/internal/storage"
)

const minPasswordLength = 6

var (
	ErrDuplicateEmail     = apperr.New(apperr.KindDuplicateEmail, "email already exists, please use a different one")
	ErrInvalidCredentials = apperr.New(apperr.KindInvalidCredentials, "invalid email or password")
	ErrTooManyAttempts    = apperr.New(apperr.KindTooManyAttempts, "too many failed login attempts, please try again later")
	ErrUserNotFound       = apperr.New(apperr.KindNotFound, "user not found")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// AuthService 定义了用户认证服务的接口。
type AuthService interface {
	Signup(ctx context.Context, fullName, email, password string) (token string, user *models.User, err error)
	Login(ctx context.Context, email, password string) (token string, user *models.User, err error)
}

// authService 是 AuthService 的实现。
type authService struct {
	userRepo storage.UserRepository
	sessions *auth.SessionManager
	limiter  auth.LoginLimiter
	chat     ChatService
	avatar   config.AvatarConfig
	log      *slog.Logger
}

// NewAuthService 创建一个新的 AuthService 实例。
func NewAuthService(
	userRepo storage.UserRepository,
	sessions *auth.SessionManager,
	limiter auth.LoginLimiter,
	chat ChatService,
	avatar config.AvatarConfig,
	log *slog.Logger,
) AuthService {
	return &authService{
		userRepo: userRepo,
		sessions: sessions,
		limiter:  limiter,
		chat:     chat,
		avatar:   avatar,
		log:      log,
	}
}

// Signup 处理用户注册逻辑。
// 密码在创建记录前完成哈希，新账户处于未引导状态，并直接为调用方签发会话。
func (s *authService) Signup(ctx context.Context, fullName, email, password string) (string, *models.User, error) {
	if strings.TrimSpace(fullName) == "" || strings.TrimSpace(email) == "" || password == "" {
		return "", nil, apperr.Validation("all fields are required")
	}
	if len(password) < minPasswordLength {
		return "", nil, apperr.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if !emailPattern.MatchString(email) {
		return "", nil, apperr.Validation("invalid email format")
	}

	// 检查邮箱是否存在
	_, err := s.userRepo.GetByEmail(ctx, email)
	if err == nil {
		return "", nil, ErrDuplicateEmail
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, fmt.Errorf("检查邮箱时出错: %w", err)
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", nil, fmt.Errorf("密码哈希失败: %w", err)
	}

	newUser := &models.User{
		FullName:     fullName,
		Email:        email,
		PasswordHash: hashedPassword,
		ProfilePic:   s.randomAvatar(),
		IsOnboarded:  false,
	}
	if err := s.userRepo.Create(ctx, newUser); err != nil {
		// lost a race with a concurrent signup for the same email
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return "", nil, ErrDuplicateEmail
		}
		return "", nil, fmt.Errorf("创建用户失败: %w", err)
	}
	metrics.SignupsTotal.Inc()
	s.log.Info("user signed up", "user_id", newUser.ID)

	// The account is committed at this point. Onboarding mirrors again and
	// surfaces failures, so a failure here only gets logged.
	if err := s.chat.MirrorUser(ctx, newUser); err != nil {
		s.log.Warn("chat mirror after signup failed", "user_id", newUser.ID, "error", err)
	}

	token, _, err := s.sessions.Issue(newUser.ID)
	if err != nil {
		return "", nil, fmt.Errorf("生成令牌失败: %w", err)
	}
	return token, newUser, nil
}

// Login 处理用户登录逻辑。
// 邮箱不存在与密码错误返回同一个错误。
func (s *authService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return "", nil, apperr.Validation("all fields are required")
	}

	allowed, err := s.limiter.Allowed(ctx, email)
	if err != nil {
		// fail open
		s.log.Warn("login limiter unavailable", "error", err)
		allowed = true
	}
	if !allowed {
		metrics.LoginsTotal.WithLabelValues(metrics.ResultThrottled).Inc()
		return "", nil, ErrTooManyAttempts
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, fmt.Errorf("通过邮箱查找用户失败: %w", err)
	}

	var valid bool
	if user != nil {
		valid = auth.CheckPasswordHash(password, user.PasswordHash)
	} else {
		// keep the timing of unknown emails close to wrong passwords
		auth.CheckPasswordHash(password, dummyPasswordHash())
	}
	if !valid {
		metrics.LoginsTotal.WithLabelValues(metrics.ResultInvalid).Inc()
		if err := s.limiter.RecordFailure(ctx, email); err != nil {
			s.log.Warn("recording failed login", "error", err)
		}
		return "", nil, ErrInvalidCredentials
	}

	if err := s.limiter.Reset(ctx, email); err != nil {
		s.log.Warn("resetting login failures", "user_id", user.ID, "error", err)
	}

	token, _, err := s.sessions.Issue(user.ID)
	if err != nil {
		return "", nil, fmt.Errorf("生成令牌失败: %w", err)
	}
	metrics.LoginsTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	return token, user, nil
}

func (s *authService) randomAvatar() string {
	if s.avatar.BaseURL == "" || s.avatar.Count <= 0 {
		return ""
	}
	return fmt.Sprintf("%s/%d.png", strings.TrimRight(s.avatar.BaseURL, "/"), rand.IntN(s.avatar.Count)+1)
}

var dummyPasswordHash = sync.OnceValue(func() string {
	hash, _ := auth.HashPassword("lingua-dummy-password")
	return hash
})
