package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProfileKind string

const (
	ProfileTrainer  ProfileKind = "trainer"
	ProfileCustomer ProfileKind = "customer"
)

func (k ProfileKind) Valid() bool {
	return k == ProfileTrainer || k == ProfileCustomer
}

// Profile holds a user's contact details in one role. A user has at most one
// profile per kind.
type Profile struct {
	ID            uuid.UUID   `json:"id" gorm:"type:uuid;primaryKey"`
	UserID        uuid.UUID   `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_profiles_user_kind,priority:1"`
	Kind          ProfileKind `json:"kind" gorm:"size:16;not null;uniqueIndex:idx_profiles_user_kind,priority:2;index"`
	FirstName     string      `json:"first_name" gorm:"size:64"`
	LastName      string      `json:"last_name" gorm:"size:64"`
	PhoneNumber   string      `json:"phone_number" gorm:"size:32"`
	BrandingImage string      `json:"branding_image" gorm:"size:256"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`

	User User `json:"user" gorm:"foreignKey:UserID"`
}

// BillingPlan is a priced offer published by a trainer.
type BillingPlan struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	TrainerID  uuid.UUID `json:"trainer_id" gorm:"type:uuid;not null;index"`
	Name       string    `json:"name" gorm:"size:64;not null"`
	PriceCents int64     `json:"price_cents" gorm:"not null"`
	Interval   string    `json:"interval" gorm:"size:16;not null"` // month | year
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

const (
	SubscriptionActive   = "active"
	SubscriptionCanceled = "canceled"
)

type Subscription struct {
	ID         uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	CustomerID uuid.UUID  `json:"customer_id" gorm:"type:uuid;not null;index"`
	PlanID     uuid.UUID  `json:"plan_id" gorm:"type:uuid;not null;index"`
	Status     string     `json:"status" gorm:"size:16;not null;index"`
	StartedAt  time.Time  `json:"started_at"`
	CanceledAt *time.Time `json:"canceled_at,omitempty"`

	Plan BillingPlan `json:"plan" gorm:"foreignKey:PlanID"`
}

func (Profile) TableName() string {
	return "profiles"
}

func (BillingPlan) TableName() string {
	return "billing_plans"
}

func (Subscription) TableName() string {
	return "subscriptions"
}

func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	return assignID(&p.ID)
}

func (p *BillingPlan) BeforeCreate(tx *gorm.DB) error {
	return assignID(&p.ID)
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	return assignID(&s.ID)
}
