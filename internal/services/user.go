package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/microblog/microblog/internal/models"
	"github.com/microblog/microblog/internal/repository"
	"github.com/microblog/microblog/pkg/logger"
	"github.com/microblog/microblog/pkg/queue"
	"gorm.io/gorm"
)

type UserService struct {
	userRepo   *repository.UserRepository
	followRepo *repository.FollowRepository
	producer   EventPublisher
	cache      Cache
	logger     *logger.Logger
}

func NewUserService(userRepo *repository.UserRepository, followRepo *repository.FollowRepository, producer EventPublisher, cache Cache, logger *logger.Logger) *UserService {
	return &UserService{
		userRepo:   userRepo,
		followRepo: followRepo,
		producer:   producer,
		cache:      cache,
		logger:     logger,
	}
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UpdateProfileRequest struct {
	Username *string `json:"username"`
	AboutMe  *string `json:"about_me"`
}

func (r *RegisterRequest) validate() error {
	if r.Username == "" || utf8.RuneCountInString(r.Username) > 64 {
		return fmt.Errorf("%w: username must be 1-64 characters", ErrInvalidInput)
	}
	if !strings.Contains(r.Email, "@") || len(r.Email) > 120 {
		return fmt.Errorf("%w: email address is not valid", ErrInvalidInput)
	}
	if r.Password == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	return nil
}

func (s *UserService) Register(ctx context.Context, req *RegisterRequest) (*models.User, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	existingUser, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if existingUser != nil {
		return nil, ErrUsernameTaken
	}

	existingUser, err = s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existingUser != nil {
		return nil, ErrEmailTaken
	}

	user := &models.User{
		Username: req.Username,
		Email:    req.Email,
		LastSeen: time.Now().UTC(),
	}
	if err := user.SetPassword(req.Password); err != nil {
		return nil, err
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, s.registrationConflict(ctx, req)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	publishEvent(ctx, s.producer, s.logger, user.ID.String(), queue.NewEvent(queue.EventUserCreated, queue.UserEventData{
		UserID:   user.ID.String(),
		Username: user.Username,
	}))

	s.logger.WithField("user_id", user.ID).Info("User registered")
	return user, nil
}

// registrationConflict names the column that lost a race with a concurrent
// registration.
func (s *UserService) registrationConflict(ctx context.Context, req *RegisterRequest) error {
	existingUser, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		return fmt.Errorf("failed to check username: %w", err)
	}
	if existingUser != nil {
		return ErrUsernameTaken
	}
	return ErrEmailTaken
}

// Authenticate checks a username/password pair. Unknown users and wrong
// passwords are indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil || !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, req *UpdateProfileRequest) (*models.User, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Username != nil && *req.Username != user.Username {
		if *req.Username == "" || utf8.RuneCountInString(*req.Username) > 64 {
			return nil, fmt.Errorf("%w: username must be 1-64 characters", ErrInvalidInput)
		}
		other, err := s.userRepo.GetByUsername(ctx, *req.Username)
		if err != nil {
			return nil, fmt.Errorf("failed to check username: %w", err)
		}
		if other != nil {
			return nil, ErrUsernameTaken
		}
		user.Username = *req.Username
	}
	if req.AboutMe != nil {
		if utf8.RuneCountInString(*req.AboutMe) > 140 {
			return nil, fmt.Errorf("%w: about me must be at most 140 characters", ErrInvalidInput)
		}
		user.AboutMe = *req.AboutMe
	}

	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	s.logger.WithField("user_id", user.ID).Info("Profile updated")
	return user, nil
}

// Touch records that the user was just active.
func (s *UserService) Touch(ctx context.Context, userID uuid.UUID) error {
	return s.userRepo.UpdateLastSeen(ctx, userID, time.Now().UTC())
}

// Follow makes followerID follow followedID. Following twice or following
// yourself is a no-op.
func (s *UserService) Follow(ctx context.Context, followerID, followedID uuid.UUID) error {
	if followerID == followedID {
		return nil
	}
	if err := s.requireUsers(ctx, followerID, followedID); err != nil {
		return err
	}

	created, err := s.followRepo.Create(ctx, followerID, followedID)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}

	invalidateFeed(ctx, s.cache, s.logger, followerID)
	publishEvent(ctx, s.producer, s.logger, followerID.String(), queue.NewEvent(queue.EventFollowCreated, queue.FollowEventData{
		FollowerID: followerID.String(),
		FollowedID: followedID.String(),
	}))

	s.logger.WithFields(map[string]interface{}{
		"follower_id": followerID,
		"followed_id": followedID,
	}).Info("User followed")
	return nil
}

// Unfollow removes the edge if present; otherwise it is a no-op.
func (s *UserService) Unfollow(ctx context.Context, followerID, followedID uuid.UUID) error {
	deleted, err := s.followRepo.Delete(ctx, followerID, followedID)
	if err != nil {
		return err
	}
	if !deleted {
		return nil
	}

	invalidateFeed(ctx, s.cache, s.logger, followerID)
	publishEvent(ctx, s.producer, s.logger, followerID.String(), queue.NewEvent(queue.EventFollowDeleted, queue.FollowEventData{
		FollowerID: followerID.String(),
		FollowedID: followedID.String(),
	}))

	s.logger.WithFields(map[string]interface{}{
		"follower_id": followerID,
		"followed_id": followedID,
	}).Info("User unfollowed")
	return nil
}

func (s *UserService) IsFollowing(ctx context.Context, followerID, followedID uuid.UUID) (bool, error) {
	return s.followRepo.IsFollowing(ctx, followerID, followedID)
}

func (s *UserService) GetFollowers(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*models.User, error) {
	followers, err := s.followRepo.GetFollowers(ctx, userID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get followers: %w", err)
	}
	return followers, nil
}

func (s *UserService) GetFollowed(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*models.User, error) {
	followed, err := s.followRepo.GetFollowed(ctx, userID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get followed users: %w", err)
	}
	return followed, nil
}

// Delete removes the user and everything they own.
func (s *UserService) Delete(ctx context.Context, userID uuid.UUID) error {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	// Followers are unreachable once the edges are gone, so collect them first.
	var followerIDs []uuid.UUID
	if s.cache != nil {
		for offset := 0; ; offset += 500 {
			ids, err := s.followRepo.GetFollowerIDs(ctx, userID, offset, 500)
			if err != nil {
				return err
			}
			followerIDs = append(followerIDs, ids...)
			if len(ids) < 500 {
				break
			}
		}
	}

	if err := s.userRepo.Delete(ctx, userID); err != nil {
		return err
	}

	invalidateFeed(ctx, s.cache, s.logger, userID)
	for _, id := range followerIDs {
		invalidateFeed(ctx, s.cache, s.logger, id)
	}
	publishEvent(ctx, s.producer, s.logger, userID.String(), queue.NewEvent(queue.EventUserDeleted, queue.UserEventData{
		UserID:   userID.String(),
		Username: user.Username,
	}))

	s.logger.WithField("user_id", userID).Info("User deleted")
	return nil
}

func (s *UserService) requireUsers(ctx context.Context, ids ...uuid.UUID) error {
	for _, id := range ids {
		user, err := s.userRepo.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get user: %w", err)
		}
		if user == nil {
			return fmt.Errorf("%w: %s", ErrUserNotFound, id)
		}
	}
	return nil
}
