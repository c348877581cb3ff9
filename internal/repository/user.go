package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/microblog/microblog/internal/models"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

// UpdateProfile writes the user-editable columns only. Counters and activity
// timestamps are maintained by their own statements and must not be
// overwritten from a stale copy.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Model(user).
		Select("username", "about_me", "updated_at").
		Updates(user).Error; err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (r *UserRepository) UpdateLastSeen(ctx context.Context, userID uuid.UUID, at time.Time) error {
	if err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("last_seen", at).Error; err != nil {
		return fmt.Errorf("failed to update last seen: %w", err)
	}
	return nil
}

func (r *UserRepository) UpdateLastMessageReadTime(ctx context.Context, userID uuid.UUID, at time.Time) error {
	if err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("last_message_read_time", at).Error; err != nil {
		return fmt.Errorf("failed to update last message read time: %w", err)
	}
	return nil
}

func (r *UserRepository) List(ctx context.Context, offset, limit int) ([]*models.User, error) {
	var users []*models.User
	if err := r.db.WithContext(ctx).
		Order("username ASC").
		Offset(offset).
		Limit(limit).
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Delete removes the user together with everything they own: follow edges in
// both directions, posts, messages, notifications, tasks, profiles, billing
// plans and the subscriptions of either side. Counters of the
// users on the other end of the removed edges are adjusted.
func (r *UserRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		followedIDs := tx.Model(&models.Follow{}).Select("followed_id").Where("follower_id = ?", userID)
		if err := tx.Model(&models.User{}).
			Where("id IN (?)", followedIDs).
			UpdateColumn("followers", gorm.Expr("followers - 1")).Error; err != nil {
			return fmt.Errorf("failed to update followers count: %w", err)
		}
		followerIDs := tx.Model(&models.Follow{}).Select("follower_id").Where("followed_id = ?", userID)
		if err := tx.Model(&models.User{}).
			Where("id IN (?)", followerIDs).
			UpdateColumn("following", gorm.Expr("following - 1")).Error; err != nil {
			return fmt.Errorf("failed to update following count: %w", err)
		}

		planIDs := tx.Model(&models.BillingPlan{}).Select("id").Where("trainer_id = ?", userID)

		steps := []struct {
			what  string
			model interface{}
			query string
			args  []interface{}
		}{
			{"follows", &models.Follow{}, "follower_id = ? OR followed_id = ?", []interface{}{userID, userID}},
			{"posts", &models.Post{}, "user_id = ?", []interface{}{userID}},
			{"messages", &models.Message{}, "sender_id = ? OR recipient_id = ?", []interface{}{userID, userID}},
			{"notifications", &models.Notification{}, "user_id = ?", []interface{}{userID}},
			{"tasks", &models.Task{}, "user_id = ?", []interface{}{userID}},
			{"profiles", &models.Profile{}, "user_id = ?", []interface{}{userID}},
			{"subscriptions", &models.Subscription{}, "customer_id = ? OR plan_id IN (?)", []interface{}{userID, planIDs}},
			{"billing plans", &models.BillingPlan{}, "trainer_id = ?", []interface{}{userID}},
			{"user", &models.User{}, "id = ?", []interface{}{userID}},
		}
		for _, s := range steps {
			if err := tx.Unscoped().Where(s.query, s.args...).Delete(s.model).Error; err != nil {
				return fmt.Errorf("failed to delete %s: %w", s.what, err)
			}
		}
		return nil
	})
}
