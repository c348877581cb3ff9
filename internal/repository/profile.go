package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/microblog/microblog/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Upsert creates the user's profile of p.Kind or overwrites its details.
func (r *ProfileRepository) Upsert(ctx context.Context, p *models.Profile) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "kind"}},
		DoUpdates: clause.AssignmentColumns([]string{"first_name", "last_name", "phone_number", "branding_image", "updated_at"}),
	}).Create(p).Error
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

func (r *ProfileRepository) Get(ctx context.Context, userID uuid.UUID, kind models.ProfileKind) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).
		Preload("User").
		Where("user_id = ? AND kind = ?", userID, kind).
		First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &profile, nil
}

func (r *ProfileRepository) ListByKind(ctx context.Context, kind models.ProfileKind, offset, limit int) ([]*models.Profile, error) {
	var profiles []*models.Profile
	if err := r.db.WithContext(ctx).
		Preload("User").
		Where("kind = ?", kind).
		Order("last_name ASC").
		Order("first_name ASC").
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	return profiles, nil
}

type BillingRepository struct {
	db *gorm.DB
}

func NewBillingRepository(db *gorm.DB) *BillingRepository {
	return &BillingRepository{db: db}
}

func (r *BillingRepository) CreatePlan(ctx context.Context, plan *models.BillingPlan) error {
	if err := r.db.WithContext(ctx).Create(plan).Error; err != nil {
		return fmt.Errorf("failed to create billing plan: %w", err)
	}
	return nil
}

func (r *BillingRepository) GetPlan(ctx context.Context, id uuid.UUID) (*models.BillingPlan, error) {
	var plan models.BillingPlan
	if err := r.db.WithContext(ctx).First(&plan, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get billing plan: %w", err)
	}
	return &plan, nil
}

func (r *BillingRepository) GetPlansByTrainer(ctx context.Context, trainerID uuid.UUID) ([]*models.BillingPlan, error) {
	var plans []*models.BillingPlan
	if err := r.db.WithContext(ctx).
		Where("trainer_id = ?", trainerID).
		Order("price_cents ASC").
		Order("id ASC").
		Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("failed to get billing plans: %w", err)
	}
	return plans, nil
}

func (r *BillingRepository) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	if err := r.db.WithContext(ctx).Create(sub).Error; err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

func (r *BillingRepository) GetSubscription(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).Preload("Plan").First(&sub, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return &sub, nil
}

func (r *BillingRepository) GetActiveSubscription(ctx context.Context, customerID, planID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).
		Where("customer_id = ? AND plan_id = ? AND status = ?", customerID, planID, models.SubscriptionActive).
		First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return &sub, nil
}

// GetSubscriptionsByCustomer lists every subscription of the customer, newest
// first, with its plan.
func (r *BillingRepository) GetSubscriptionsByCustomer(ctx context.Context, customerID uuid.UUID) ([]*models.Subscription, error) {
	var subs []*models.Subscription
	if err := r.db.WithContext(ctx).
		Preload("Plan").
		Where("customer_id = ?", customerID).
		Order("started_at DESC").
		Order("id DESC").
		Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to get subscriptions: %w", err)
	}
	return subs, nil
}

func (r *BillingRepository) CancelSubscription(ctx context.Context, id uuid.UUID, at time.Time) error {
	if err := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("id = ? AND status = ?", id, models.SubscriptionActive).
		Updates(map[string]interface{}{"status": models.SubscriptionCanceled, "canceled_at": at}).Error; err != nil {
		return fmt.Errorf("failed to cancel subscription: %w", err)
	}
	return nil
}
