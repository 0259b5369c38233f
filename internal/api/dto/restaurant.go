package dto

import (
	"time"

	"github.com/hugh/chefenplace/internal/database/models"
	"github.com/hugh/chefenplace/internal/tenant"
	"github.com/hugh/chefenplace/internal/validation"
)

type RestaurantDTO struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Slug           string          `json:"slug"`
	OrganizationID string          `json:"organizationId"`
	Type           string          `json:"type"`
	Location       models.Location `json:"location"`
	HeadChefID     string          `json:"headChefId"`
	Status         string          `json:"status"`
	PlanType       string          `json:"planType"`
	TrialEndDate   time.Time       `json:"trialEndDate"`
	MaxTeamMembers int             `json:"maxTeamMembers"`
	MaxRecipes     int             `json:"maxRecipes"`
	IsActive       bool            `json:"isActive"`
}

func NewRestaurant(r *models.Restaurant) RestaurantDTO {
	return RestaurantDTO{
		ID:             r.ID.String(),
		Name:           r.Name,
		Slug:           r.Slug,
		OrganizationID: r.OrganizationID,
		Type:           r.Type,
		Location:       r.Location,
		HeadChefID:     r.HeadChefID.String(),
		Status:         string(r.Status),
		PlanType:       string(r.PlanType),
		TrialEndDate:   r.TrialEndDate,
		MaxTeamMembers: r.MaxTeamMembers,
		MaxRecipes:     r.MaxRecipes,
		IsActive:       r.IsActive,
	}
}

func NewRestaurants(rs []models.Restaurant) []RestaurantDTO {
	out := make([]RestaurantDTO, 0, len(rs))
	for i := range rs {
		out = append(out, NewRestaurant(&rs[i]))
	}
	return out
}

type UpdateRestaurantRequest struct {
	Name     *string          `json:"name,omitempty" validate:"omitempty,notblank,max=100"`
	Type     *string          `json:"type,omitempty" validate:"omitempty,oneof=fast-casual fine-dining cafe bakery food-truck catering other"`
	Location *models.Location `json:"location,omitempty"`
}

func (r UpdateRestaurantRequest) Validate() map[string]string {
	return validation.Struct(r)
}

func (r UpdateRestaurantRequest) Input() tenant.UpdateInput {
	return tenant.UpdateInput{Name: r.Name, Type: r.Type, Location: r.Location}
}

type RestaurantStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=trial active suspended cancelled"`
}

func (r RestaurantStatusRequest) Validate() map[string]string {
	return validation.Struct(r)
}

type RestaurantPlanRequest struct {
	PlanType         string `json:"planType" validate:"required,oneof=trial pro enterprise"`
	BillingReference string `json:"billingReference,omitempty" validate:"omitempty,max=255"`
}

func (r RestaurantPlanRequest) Validate() map[string]string {
	return validation.Struct(r)
}

// AdminRestaurantDTO is the platform view of a tenant, billing included.
type AdminRestaurantDTO struct {
	RestaurantDTO
	BillingReference string `json:"billingReference,omitempty"`
}

func NewAdminRestaurant(r *models.Restaurant, billingRef string) AdminRestaurantDTO {
	return AdminRestaurantDTO{RestaurantDTO: NewRestaurant(r), BillingReference: billingRef}
}
