package models

import (
	"time"

	"github.com/google/uuid"
)

type RestaurantStatus string

const (
	RestaurantStatusTrial     RestaurantStatus = "trial"
	RestaurantStatusActive    RestaurantStatus = "active"
	RestaurantStatusSuspended RestaurantStatus = "suspended"
	RestaurantStatusCancelled RestaurantStatus = "cancelled"
)

func (s RestaurantStatus) Valid() bool {
	switch s {
	case RestaurantStatusTrial, RestaurantStatusActive, RestaurantStatusSuspended, RestaurantStatusCancelled:
		return true
	}
	return false
}

type PlanType string

const (
	PlanTrial      PlanType = "trial"
	PlanPro        PlanType = "pro"
	PlanEnterprise PlanType = "enterprise"
)

// Unlimited marks a plan limit with no ceiling.
const Unlimited = -1

type Location struct {
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zipCode,omitempty"`
	Country string `json:"country,omitempty"`
}

// Restaurant is the tenant. Slug is the canonical key; OrganizationID is
// kept equal to it for clients that still address tenants by that name.
type Restaurant struct {
	Base
	Name           string           `gorm:"not null" json:"name"`
	Slug           string           `gorm:"uniqueIndex;not null" json:"slug"`
	OrganizationID string           `gorm:"uniqueIndex;not null" json:"organizationId"`
	Type           string           `gorm:"not null;default:'other'" json:"type"`
	Location       Location         `gorm:"embedded;embeddedPrefix:location_" json:"location"`
	HeadChefID     uuid.UUID        `gorm:"type:uuid;index;not null" json:"headChef"`
	Status         RestaurantStatus `gorm:"index;not null" json:"status"`
	TrialStartDate time.Time        `json:"trialStartDate"`
	TrialEndDate   time.Time        `gorm:"index" json:"trialEndDate"`
	PlanType       PlanType         `gorm:"not null" json:"planType"`
	MaxTeamMembers int              `json:"maxTeamMembers"`
	MaxRecipes     int              `json:"maxRecipes"`
	IsActive       bool             `gorm:"not null" json:"isActive"`

	// age ciphertext of the payment provider's customer id
	BillingCustomerRef string `json:"-"`
}

func (Restaurant) TableName() string {
	return "restaurants"
}

func (r *Restaurant) IsTrialExpired(now time.Time) bool {
	return r.Status == RestaurantStatusTrial && now.After(r.TrialEndDate)
}

// AcceptsLogins is false for suspended, cancelled and deactivated tenants.
func (r *Restaurant) AcceptsLogins() bool {
	if !r.IsActive {
		return false
	}
	return r.Status == RestaurantStatusTrial || r.Status == RestaurantStatusActive
}

// HasTeamCapacity reports whether one more member fits under the plan.
func (r *Restaurant) HasTeamCapacity(current int64) bool {
	return r.MaxTeamMembers == Unlimited || current < int64(r.MaxTeamMembers)
}
