package services

import "errors"

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrUserNotFound         = errors.New("user not found")
	ErrUsernameTaken        = errors.New("username already exists")
	ErrEmailTaken           = errors.New("email already exists")
	ErrInvalidCredentials   = errors.New("invalid username or password")
	ErrPostNotFound         = errors.New("post not found")
	ErrTaskNotFound         = errors.New("task not found")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrProfileNotFound      = errors.New("profile not found")
	ErrPlanNotFound         = errors.New("billing plan not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrAlreadySubscribed    = errors.New("already subscribed to plan")
	ErrTaskInProgress       = errors.New("task already in progress")
	// ErrTaskQueueUnavailable means a task request could not be queued. The
	// task is recorded as failed.
	ErrTaskQueueUnavailable = errors.New("task queue unavailable")
	// ErrStorageUnavailable wraps any failure of the backing store while
	// composing a feed. No retry is attempted.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
