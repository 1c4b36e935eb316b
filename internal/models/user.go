package models

import "time"

type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleGarson  UserRole = "garson"
	RoleKasiyer UserRole = "kasiyer"
)

type User struct {
	ID           uint     `gorm:"primaryKey"`
	FullName     string   `gorm:"size:100;not null"`
	Email        string   `gorm:"size:100;uniqueIndex;not null"`
	PasswordHash string   `gorm:"size:255;not null"`
	Role         UserRole `gorm:"size:20;not null"`
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
