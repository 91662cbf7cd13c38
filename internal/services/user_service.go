package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/gorm"

	"lingua-go/internal/apperr"
	"lingua-go/internal/models"
	"lingua-go/internal/storage"
)

// ErrOnboardingRequired is returned to users who have not completed their profile.
var ErrOnboardingRequired = apperr.New(apperr.KindOnboardingRequired, "please complete onboarding first")

// UserService 定义了用户相关服务的接口。
type UserService interface {
	GetUserProfile(ctx context.Context, userID string) (*models.User, error)
	CompleteOnboarding(ctx context.Context, userID string, fields models.ProfileFields) (*models.User, error)
	RequireOnboarded(ctx context.Context, userID string) (*models.User, error)
}

// userService 是 UserService 的实现。
type userService struct {
	db       *gorm.DB
	userRepo storage.UserRepository
	chat     ChatService
	log      *slog.Logger
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(db *gorm.DB, userRepo storage.UserRepository, chat ChatService, log *slog.Logger) UserService {
	return &userService{db: db, userRepo: userRepo, chat: chat, log: log}
}

// GetUserProfile 获取用户的个人资料。
func (s *userService) GetUserProfile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("获取用户 %s 失败: %w", userID, err)
	}
	return user, nil
}

// CheckOnboarded fails with ErrOnboardingRequired unless the user finished onboarding.
func CheckOnboarded(user *models.User) error {
	if user == nil || !user.IsOnboarded {
		return ErrOnboardingRequired
	}
	return nil
}

// RequireOnboarded loads the user and applies CheckOnboarded.
func (s *userService) RequireOnboarded(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.GetUserProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := CheckOnboarded(user); err != nil {
		return nil, err
	}
	return user, nil
}

// CompleteOnboarding merges the profile fields, marks the user onboarded and
// mirrors the profile into the chat registry. The write is rolled back when
// the mirror fails, so onboarded users always exist in the chat registry.
func (s *userService) CompleteOnboarding(ctx context.Context, userID string, fields models.ProfileFields) (*models.User, error) {
	if missing := missingOnboardingFields(fields); len(missing) > 0 {
		return nil, apperr.Validation("missing fields: " + strings.Join(missing, ", "))
	}

	var updated *models.User
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txUserRepo := storage.NewGormUserRepository(tx)

		user, err := txUserRepo.GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("检索用户失败: %w", err)
		}

		fields.Apply(user)
		user.IsOnboarded = true
		if err := txUserRepo.Update(ctx, user); err != nil {
			return fmt.Errorf("更新用户资料失败: %w", err)
		}

		// the row lock is held on purpose until the mirror returns, a failure rolls back
		if err := s.chat.MirrorUser(ctx, user); err != nil {
			return err
		}
		updated = user
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	s.log.Info("user onboarded", "user_id", userID)
	return updated, nil
}

func missingOnboardingFields(fields models.ProfileFields) []string {
	var missing []string
	if strings.TrimSpace(fields.NativeLanguage) == "" {
		missing = append(missing, "nativeLanguage")
	}
	if strings.TrimSpace(fields.LearningLanguage) == "" {
		missing = append(missing, "learningLanguage")
	}
	return missing
}
