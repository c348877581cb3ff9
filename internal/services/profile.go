package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/microblog/microblog/internal/models"
	"github.com/microblog/microblog/internal/repository"
	"github.com/microblog/microblog/pkg/logger"
)

type ProfileService struct {
	profileRepo *repository.ProfileRepository
	userRepo    *repository.UserRepository
	logger      *logger.Logger
}

func NewProfileService(profileRepo *repository.ProfileRepository, userRepo *repository.UserRepository, logger *logger.Logger) *ProfileService {
	return &ProfileService{
		profileRepo: profileRepo,
		userRepo:    userRepo,
		logger:      logger,
	}
}

type ProfileRequest struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	PhoneNumber   string `json:"phone_number"`
	BrandingImage string `json:"branding_image"`
}

func (r *ProfileRequest) validate() error {
	if utf8.RuneCountInString(r.FirstName) > 64 || utf8.RuneCountInString(r.LastName) > 64 {
		return fmt.Errorf("%w: names must be at most 64 characters", ErrInvalidInput)
	}
	if len(r.BrandingImage) > 256 {
		return fmt.Errorf("%w: branding image path must be at most 256 characters", ErrInvalidInput)
	}
	if len(r.PhoneNumber) > 32 {
		return fmt.Errorf("%w: phone number must be at most 32 characters", ErrInvalidInput)
	}
	for i, c := range r.PhoneNumber {
		if unicode.IsDigit(c) || c == ' ' || c == '-' || c == '(' || c == ')' || (c == '+' && i == 0) {
			continue
		}
		return fmt.Errorf("%w: phone number contains %q", ErrInvalidInput, c)
	}
	return nil
}

// SaveProfile creates or replaces the user's profile of the given kind.
func (s *ProfileService) SaveProfile(ctx context.Context, userID uuid.UUID, kind models.ProfileKind, req *ProfileRequest) (*models.Profile, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown profile kind %q", ErrInvalidInput, kind)
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	profile := &models.Profile{
		UserID:        userID,
		Kind:          kind,
		FirstName:     strings.TrimSpace(req.FirstName),
		LastName:      strings.TrimSpace(req.LastName),
		PhoneNumber:   strings.TrimSpace(req.PhoneNumber),
		BrandingImage: req.BrandingImage,
	}
	if err := s.profileRepo.Upsert(ctx, profile); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id": userID,
		"kind":    kind,
	}).Info("Profile saved")

	// The stored row keeps its original ID on update.
	return s.GetProfile(ctx, userID, kind)
}

func (s *ProfileService) GetProfile(ctx context.Context, userID uuid.UUID, kind models.ProfileKind) (*models.Profile, error) {
	profile, err := s.profileRepo.Get(ctx, userID, kind)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}
	return profile, nil
}

// Trainers lists trainer profiles by name.
func (s *ProfileService) Trainers(ctx context.Context, offset, limit int) ([]*models.Profile, error) {
	return s.profileRepo.ListByKind(ctx, models.ProfileTrainer, offset, limit)
}

type BillingService struct {
	billingRepo *repository.BillingRepository
	profileRepo *repository.ProfileRepository
	logger      *logger.Logger
}

func NewBillingService(billingRepo *repository.BillingRepository, profileRepo *repository.ProfileRepository, logger *logger.Logger) *BillingService {
	return &BillingService{
		billingRepo: billingRepo,
		profileRepo: profileRepo,
		logger:      logger,
	}
}

type CreatePlanRequest struct {
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Interval   string `json:"interval"`
}

// CreatePlan publishes a plan. Only users with a trainer profile may do so.
func (s *BillingService) CreatePlan(ctx context.Context, trainerID uuid.UUID, req *CreatePlanRequest) (*models.BillingPlan, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || utf8.RuneCountInString(name) > 64 {
		return nil, fmt.Errorf("%w: plan name must be 1-64 characters", ErrInvalidInput)
	}
	if req.PriceCents < 0 {
		return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	if req.Interval != "month" && req.Interval != "year" {
		return nil, fmt.Errorf("%w: interval must be month or year", ErrInvalidInput)
	}

	if err := s.requireProfile(ctx, trainerID, models.ProfileTrainer); err != nil {
		return nil, err
	}

	plan := &models.BillingPlan{
		TrainerID:  trainerID,
		Name:       name,
		PriceCents: req.PriceCents,
		Interval:   req.Interval,
	}
	if err := s.billingRepo.CreatePlan(ctx, plan); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"plan_id":    plan.ID,
		"trainer_id": trainerID,
	}).Info("Billing plan created")
	return plan, nil
}

func (s *BillingService) Plans(ctx context.Context, trainerID uuid.UUID) ([]*models.BillingPlan, error) {
	return s.billingRepo.GetPlansByTrainer(ctx, trainerID)
}

// Subscribe starts the customer's subscription to a plan. A customer can hold
// one active subscription per plan.
func (s *BillingService) Subscribe(ctx context.Context, customerID, planID uuid.UUID) (*models.Subscription, error) {
	plan, err := s.billingRepo.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, ErrPlanNotFound
	}
	if plan.TrainerID == customerID {
		return nil, fmt.Errorf("%w: trainers cannot subscribe to their own plans", ErrInvalidInput)
	}
	if err := s.requireProfile(ctx, customerID, models.ProfileCustomer); err != nil {
		return nil, err
	}

	active, err := s.billingRepo.GetActiveSubscription(ctx, customerID, planID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, ErrAlreadySubscribed
	}

	sub := &models.Subscription{
		CustomerID: customerID,
		PlanID:     planID,
		Status:     models.SubscriptionActive,
		StartedAt:  time.Now().UTC(),
	}
	if err := s.billingRepo.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}
	sub.Plan = *plan

	s.logger.WithFields(map[string]interface{}{
		"subscription_id": sub.ID,
		"customer_id":     customerID,
		"plan_id":         planID,
	}).Info("Subscription started")
	return sub, nil
}

// Cancel ends one of the customer's subscriptions. Cancelling twice is a
// no-op.
func (s *BillingService) Cancel(ctx context.Context, customerID, subscriptionID uuid.UUID) error {
	sub, err := s.billingRepo.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}
	if sub == nil {
		return ErrSubscriptionNotFound
	}
	if sub.CustomerID != customerID {
		return ErrPermissionDenied
	}
	if sub.Status != models.SubscriptionActive {
		return nil
	}

	if err := s.billingRepo.CancelSubscription(ctx, subscriptionID, time.Now().UTC()); err != nil {
		return err
	}
	s.logger.WithField("subscription_id", subscriptionID).Info("Subscription canceled")
	return nil
}

func (s *BillingService) Subscriptions(ctx context.Context, customerID uuid.UUID) ([]*models.Subscription, error) {
	return s.billingRepo.GetSubscriptionsByCustomer(ctx, customerID)
}

func (s *BillingService) requireProfile(ctx context.Context, userID uuid.UUID, kind models.ProfileKind) error {
	profile, err := s.profileRepo.Get(ctx, userID, kind)
	if err != nil {
		return err
	}
	if profile == nil {
		return fmt.Errorf("%w: %s profile required", ErrProfileNotFound, kind)
	}
	return nil
}
