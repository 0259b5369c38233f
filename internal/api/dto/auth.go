package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/hugh/chefenplace/internal/auth"
	"github.com/hugh/chefenplace/internal/database/models"
	"github.com/hugh/chefenplace/internal/permission"
)

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type AuthResponse struct {
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
	ExpiresIn    int64          `json:"expiresIn"`
	User         UserDTO        `json:"user"`
	Restaurant   *RestaurantDTO `json:"restaurant,omitempty"`
}

// UserDTO is the sanitized user: no hash, no one-time tokens.
type UserDTO struct {
	ID            string          `json:"id"`
	Email         string          `json:"email"`
	FirstName     string          `json:"firstName,omitempty"`
	LastName      string          `json:"lastName,omitempty"`
	Name          string          `json:"name"`
	Role          permission.Role `json:"role"`
	Organization  string          `json:"organization,omitempty"`
	RestaurantID  string          `json:"restaurantId,omitempty"`
	HeadChefID    string          `json:"headChefId,omitempty"`
	Status        string          `json:"status"`
	IsActive      bool            `json:"isActive"`
	EmailVerified bool            `json:"emailVerified"`
	Permissions   permission.Set  `json:"permissions"`
	LastLogin     *time.Time      `json:"lastLogin,omitempty"`
	QRAccess      bool            `json:"qrAccess"`
}

func optionalID(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func NewUser(u *models.User) UserDTO {
	return UserDTO{
		ID:            u.ID.String(),
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Name:          u.DisplayName(),
		Role:          u.Role,
		Organization:  u.Organization,
		RestaurantID:  optionalID(u.RestaurantID),
		HeadChefID:    optionalID(u.HeadChefID),
		Status:        string(u.Status),
		IsActive:      u.IsActive,
		EmailVerified: u.EmailVerified,
		Permissions:   u.Permissions,
		LastLogin:     u.LastLogin,
		QRAccess:      u.QRAccess,
	}
}

func NewUsers(users []models.User) []UserDTO {
	out := make([]UserDTO, 0, len(users))
	for i := range users {
		out = append(out, NewUser(&users[i]))
	}
	return out
}

func NewAuthResponse(res *auth.LoginResult) AuthResponse {
	resp := AuthResponse{
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		ExpiresIn:    res.Tokens.ExpiresIn,
		User:         NewUser(res.User),
	}
	if res.Restaurant != nil {
		r := NewRestaurant(res.Restaurant)
		resp.Restaurant = &r
	}
	return resp
}

type SignupResponse struct {
	AuthResponse
	VerificationSent bool `json:"verificationSent"`
}

type ProfileResponse struct {
	User       UserDTO        `json:"user"`
	Restaurant *RestaurantDTO `json:"restaurant,omitempty"`
}

type StatusResponse struct {
	Status string `json:"status"`
}
