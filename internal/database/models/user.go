package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/chefenplace/internal/permission"
	"gorm.io/gorm"
)

// ErrPlaintextPassword guards against a caller saving a user whose Password
// was set but never hashed.
var ErrPlaintextPassword = errors.New("plaintext password must be hashed before save")

type UserStatus string

const (
	UserStatusPending  UserStatus = "pending"
	UserStatusActive   UserStatus = "active"
	UserStatusRejected UserStatus = "rejected"
)

func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusPending, UserStatusActive, UserStatusRejected:
		return true
	}
	return false
}

type User struct {
	Base
	Email        string          `gorm:"uniqueIndex;not null" json:"email"`
	FirstName    string          `gorm:"index" json:"firstName,omitempty"`
	LastName     string          `gorm:"index" json:"lastName,omitempty"`
	Name         string          `json:"name"`
	PasswordHash string          `gorm:"not null" json:"-"`
	Password     string          `gorm:"-" json:"-"`
	Role         permission.Role `gorm:"index;not null" json:"role"`

	// Organization is the tenant key (the restaurant slug).
	Organization string     `gorm:"index" json:"organization,omitempty"`
	RestaurantID *uuid.UUID `gorm:"type:uuid;index" json:"restaurant,omitempty"`
	HeadChefID   *uuid.UUID `gorm:"type:uuid;index" json:"headChef,omitempty"`

	Status   UserStatus `gorm:"index;not null" json:"status"`
	IsActive bool       `gorm:"not null" json:"isActive"`

	Permissions     permission.Set  `gorm:"embedded;embeddedPrefix:perm_" json:"permissions"`
	PermissionsRole permission.Role `json:"-"`

	LastLogin    *time.Time `json:"lastLogin,omitempty"`
	QRAccess     bool       `json:"qrAccess"`
	QRAccessDate *time.Time `json:"qrAccessDate,omitempty"`

	EmailVerified            bool       `json:"emailVerified"`
	EmailVerificationToken   string     `gorm:"index" json:"-"`
	EmailVerificationExpires *time.Time `json:"-"`
	ResetPasswordToken       string     `gorm:"index" json:"-"`
	ResetPasswordExpires     *time.Time `json:"-"`
}

func (User) TableName() string {
	return "users"
}

// BeforeSave runs on every create and full save. It canonicalizes the
// email and role and re-derives permissions whenever the role differs from
// the one they were last derived for.
func (u *User) BeforeSave(tx *gorm.DB) error {
	if u.Password != "" {
		return ErrPlaintextPassword
	}

	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.Role = u.Role.Normalize()

	if u.Name == "" {
		u.Name = strings.TrimSpace(u.FirstName + " " + u.LastName)
	}

	if u.PermissionsRole != u.Role {
		u.Permissions = permission.For(u.Role)
		u.PermissionsRole = u.Role
	}
	return nil
}

func (u *User) IsTeamMember() bool {
	return u.Role.Normalize() == permission.RoleTeamMember
}

// DisplayName prefers first and last name over the combined field.
func (u *User) DisplayName() string {
	if full := strings.TrimSpace(u.FirstName + " " + u.LastName); full != "" {
		return full
	}
	return u.Name
}
