package models

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type User struct {
	ID                  uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Username            string     `json:"username" gorm:"size:64;uniqueIndex;not null"`
	Email               string     `json:"email" gorm:"size:120;uniqueIndex;not null"`
	PasswordHash        string     `json:"-" gorm:"size:128"`
	AboutMe             string     `json:"about_me" gorm:"size:140"`
	LastSeen            time.Time  `json:"last_seen"`
	LastMessageReadTime *time.Time `json:"-"`
	Followers           int64      `json:"followers" gorm:"default:0"`
	Following           int64      `json:"following" gorm:"default:0"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Follow is a directed edge: Follower receives Followed's posts in their feed.
// The composite key indexes edges by source; FollowedID carries the
// by-target index.
type Follow struct {
	FollowerID uuid.UUID `json:"follower_id" gorm:"type:uuid;primaryKey"`
	FollowedID uuid.UUID `json:"followed_id" gorm:"type:uuid;primaryKey;index:idx_follows_followed"`
	CreatedAt  time.Time `json:"created_at"`
}

func (User) TableName() string {
	return "users"
}

func (Follow) TableName() string {
	return "follows"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	return assignID(&u.ID)
}

func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	return nil
}

func (u *User) CheckPassword(password string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// Avatar returns the user's Gravatar identicon URL at the given pixel size.
func (u *User) Avatar(size int) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(u.Email))))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%s?d=identicon&s=%d", hex.EncodeToString(sum[:]), size)
}
