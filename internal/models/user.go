package models

import "time"

const UserStatusActive = 1

type User struct {
	ID                 int
	Username           string
	FullName           string
	PasswordHash       string
	RoleID             int
	RoleName           string
	StatusID           int
	FailedAttempts     int
	LockedUntil        *time.Time
	MustChangePassword bool
	LastPasswordChange *time.Time
	LastLogin          *time.Time
}

type Session struct {
	ID        int
	UserID    int
	Token     string
	StartedAt time.Time
	ExpiresAt time.Time
	Active    bool
}

type PasswordHistoryEntry struct {
	ID           int
	UserID       int
	PasswordHash string
	ChangedAt    time.Time
}
