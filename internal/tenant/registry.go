package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/chefenplace/internal/database/models"
	"github.com/hugh/chefenplace/pkg/crypto"
	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("restaurant not found")
	ErrInvalidName   = errors.New("restaurant name must contain letters or digits")
	ErrInvalidPlan   = errors.New("invalid plan type")
	ErrInvalidStatus = errors.New("invalid restaurant status")
	ErrInvalidType   = errors.New("invalid restaurant type")
	ErrSlugExhausted = errors.New("could not allocate a unique slug")
)

const TrialPeriod = 14 * 24 * time.Hour

const maxSlugAttempts = 5

type Limits struct {
	MaxTeamMembers int `json:"maxTeamMembers"`
	MaxRecipes     int `json:"maxRecipes"`
}

var planLimits = map[models.PlanType]Limits{
	models.PlanTrial:      {MaxTeamMembers: 10, MaxRecipes: 10},
	models.PlanPro:        {MaxTeamMembers: 50, MaxRecipes: 200},
	models.PlanEnterprise: {MaxTeamMembers: models.Unlimited, MaxRecipes: models.Unlimited},
}

// LimitsFor returns the fixed limits of a plan.
func LimitsFor(plan models.PlanType) (Limits, bool) {
	l, ok := planLimits[plan]
	return l, ok
}

var restaurantTypes = map[string]bool{
	"fast-casual": true,
	"fine-dining": true,
	"cafe":        true,
	"bakery":      true,
	"food-truck":  true,
	"catering":    true,
	"other":       true,
}

func ValidType(t string) bool {
	return restaurantTypes[t]
}

// Registry owns restaurant records: creation with slug allocation, lookups
// by either tenant key, plan changes and status transitions.
type Registry struct {
	db        *gorm.DB
	encryptor *crypto.Encryptor
	logger    *slog.Logger
	now       func() time.Time
}

func NewRegistry(db *gorm.DB, encryptor *crypto.Encryptor, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		db:        db,
		encryptor: encryptor,
		logger:    logger,
		now:       time.Now,
	}
}

// WithTx returns a registry bound to an open transaction.
func (r *Registry) WithTx(tx *gorm.DB) *Registry {
	clone := *r
	clone.db = tx
	return &clone
}

// SetClock replaces the time source. Tests only.
func (r *Registry) SetClock(now func() time.Time) {
	r.now = now
}

type CreateInput struct {
	Name       string
	HeadChefID uuid.UUID
	Type       string
	Location   models.Location
}

func (r *Registry) Create(ctx context.Context, in CreateInput) (*models.Restaurant, error) {
	base := Slugify(in.Name)
	if base == "" {
		return nil, ErrInvalidName
	}
	if in.Type == "" {
		in.Type = "other"
	}
	if !ValidType(in.Type) {
		return nil, ErrInvalidType
	}
	if in.Location.Country == "" {
		in.Location.Country = "US"
	}

	now := r.now().UTC()
	limits := planLimits[models.PlanTrial]

	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		slug, err := r.nextSlug(ctx, base)
		if err != nil {
			return nil, err
		}

		restaurant := &models.Restaurant{
			Name:           strings.TrimSpace(in.Name),
			Slug:           slug,
			OrganizationID: slug,
			Type:           in.Type,
			Location:       in.Location,
			HeadChefID:     in.HeadChefID,
			Status:         models.RestaurantStatusTrial,
			TrialStartDate: now,
			TrialEndDate:   now.Add(TrialPeriod),
			PlanType:       models.PlanTrial,
			MaxTeamMembers: limits.MaxTeamMembers,
			MaxRecipes:     limits.MaxRecipes,
			IsActive:       true,
		}

		// The insert runs in its own savepoint so a unique violation does
		// not abort a surrounding transaction.
		err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return tx.Create(restaurant).Error
		})
		if err == nil {
			r.logger.Info("restaurant created", "slug", slug, "head_chef_id", in.HeadChefID)
			return restaurant, nil
		}

		// Lost a race for the slug: pick the next one.
		taken, checkErr := r.slugTaken(ctx, slug)
		if checkErr != nil || !taken {
			return nil, fmt.Errorf("creating restaurant: %w", err)
		}
	}

	return nil, ErrSlugExhausted
}

// nextSlug returns base, or base-N with the smallest N not yet used.
func (r *Registry) nextSlug(ctx context.Context, base string) (string, error) {
	var existing []string
	err := r.db.WithContext(ctx).Unscoped().
		Model(&models.Restaurant{}).
		Where("slug = ? OR slug LIKE ?", base, base+"-%").
		Pluck("slug", &existing).Error
	if err != nil {
		return "", fmt.Errorf("checking slug: %w", err)
	}

	used := make(map[string]bool, len(existing))
	for _, s := range existing {
		used[s] = true
	}
	if !used[base] {
		return base, nil
	}
	for n := 1; ; n++ {
		candidate := base + "-" + strconv.Itoa(n)
		if !used[candidate] {
			return candidate, nil
		}
	}
}

func (r *Registry) slugTaken(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Unscoped().
		Model(&models.Restaurant{}).
		Where("slug = ?", slug).
		Count(&count).Error
	return count > 0, err
}

func (r *Registry) first(ctx context.Context, query string, args ...interface{}) (*models.Restaurant, error) {
	var restaurant models.Restaurant
	if err := r.db.WithContext(ctx).Where(query, args...).First(&restaurant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &restaurant, nil
}

func (r *Registry) FindBySlug(ctx context.Context, slug string) (*models.Restaurant, error) {
	return r.first(ctx, "slug = ?", strings.ToLower(strings.TrimSpace(slug)))
}

func (r *Registry) FindByOrganizationID(ctx context.Context, organizationID string) (*models.Restaurant, error) {
	return r.first(ctx, "organization_id = ?", strings.TrimSpace(organizationID))
}

func (r *Registry) FindByID(ctx context.Context, id uuid.UUID) (*models.Restaurant, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *Registry) FindByHeadChef(ctx context.Context, headChefID uuid.UUID) (*models.Restaurant, error) {
	return r.first(ctx, "head_chef_id = ?", headChefID)
}

// Resolve accepts either tenant key.
func (r *Registry) Resolve(ctx context.Context, key string) (*models.Restaurant, error) {
	restaurant, err := r.FindBySlug(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return r.FindByOrganizationID(ctx, key)
	}
	return restaurant, err
}

// ApplyPlan sets the plan limits. Any paid plan also activates the
// restaurant. A non-empty billing reference is stored encrypted.
func (r *Registry) ApplyPlan(ctx context.Context, id uuid.UUID, plan models.PlanType, billingRef string) (*models.Restaurant, error) {
	limits, ok := LimitsFor(plan)
	if !ok {
		return nil, ErrInvalidPlan
	}

	restaurant, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	restaurant.PlanType = plan
	restaurant.MaxTeamMembers = limits.MaxTeamMembers
	restaurant.MaxRecipes = limits.MaxRecipes
	if plan != models.PlanTrial {
		restaurant.Status = models.RestaurantStatusActive
	}

	if billingRef != "" {
		if r.encryptor == nil {
			return nil, errors.New("billing reference given but no encryptor configured")
		}
		sealed, err := r.encryptor.EncryptString(billingRef)
		if err != nil {
			return nil, fmt.Errorf("encrypting billing reference: %w", err)
		}
		restaurant.BillingCustomerRef = sealed
	}

	if err := r.db.WithContext(ctx).Save(restaurant).Error; err != nil {
		return nil, fmt.Errorf("saving plan: %w", err)
	}

	r.logger.Info("restaurant plan changed", "slug", restaurant.Slug, "plan", plan)
	return restaurant, nil
}

// BillingReference decrypts the stored billing reference.
func (r *Registry) BillingReference(restaurant *models.Restaurant) (string, error) {
	if restaurant.BillingCustomerRef == "" {
		return "", nil
	}
	if r.encryptor == nil {
		return "", errors.New("no encryptor configured")
	}
	return r.encryptor.DecryptString(restaurant.BillingCustomerRef)
}

func (r *Registry) SetStatus(ctx context.Context, id uuid.UUID, status models.RestaurantStatus) (*models.Restaurant, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	restaurant, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	restaurant.Status = status
	if err := r.db.WithContext(ctx).Model(restaurant).Update("status", status).Error; err != nil {
		return nil, fmt.Errorf("updating status: %w", err)
	}

	r.logger.Info("restaurant status changed", "slug", restaurant.Slug, "status", status)
	return restaurant, nil
}

type UpdateInput struct {
	Name     *string
	Type     *string
	Location *models.Location
}

// Update changes descriptive fields. The slug never changes after creation.
func (r *Registry) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*models.Restaurant, error) {
	restaurant, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		if Slugify(*in.Name) == "" {
			return nil, ErrInvalidName
		}
		restaurant.Name = strings.TrimSpace(*in.Name)
	}
	if in.Type != nil {
		if !ValidType(*in.Type) {
			return nil, ErrInvalidType
		}
		restaurant.Type = *in.Type
	}
	if in.Location != nil {
		restaurant.Location = *in.Location
	}

	if err := r.db.WithContext(ctx).Save(restaurant).Error; err != nil {
		return nil, fmt.Errorf("updating restaurant: %w", err)
	}
	return restaurant, nil
}

// ExpireTrials suspends every trial whose end date has passed.
func (r *Registry) ExpireTrials(ctx context.Context) ([]string, error) {
	now := r.now().UTC()

	var expired []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Restaurant{}).
			Where("status = ? AND trial_end_date < ?", models.RestaurantStatusTrial, now).
			Pluck("slug", &expired).Error; err != nil {
			return err
		}
		if len(expired) == 0 {
			return nil
		}
		return tx.Model(&models.Restaurant{}).
			Where("slug IN ?", expired).
			Update("status", models.RestaurantStatusSuspended).Error
	})
	if err != nil {
		return nil, fmt.Errorf("expiring trials: %w", err)
	}

	for _, slug := range expired {
		r.logger.Info("trial expired", "slug", slug)
	}
	return expired, nil
}

type ListFilter struct {
	Status  models.RestaurantStatus
	Search  string
	Page    int
	PerPage int
}

func (r *Registry) List(ctx context.Context, f ListFilter) ([]models.Restaurant, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Restaurant{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(name) LIKE ? OR slug LIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > 100 {
		f.PerPage = 20
	}

	var restaurants []models.Restaurant
	err := q.Order("created_at DESC").
		Offset((f.Page - 1) * f.PerPage).
		Limit(f.PerPage).
		Find(&restaurants).Error
	return restaurants, total, err
}

type Stats struct {
	Total    int64                             `json:"total"`
	ByStatus map[models.RestaurantStatus]int64 `json:"byStatus"`
	ByPlan   map[models.PlanType]int64         `json:"byPlan"`
}

func (r *Registry) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByStatus: make(map[models.RestaurantStatus]int64),
		ByPlan:   make(map[models.PlanType]int64),
	}

	var byStatus []struct {
		Status models.RestaurantStatus
		Count  int64
	}
	if err := r.db.WithContext(ctx).Model(&models.Restaurant{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&byStatus).Error; err != nil {
		return nil, err
	}
	for _, row := range byStatus {
		stats.ByStatus[row.Status] = row.Count
		stats.Total += row.Count
	}

	var byPlan []struct {
		PlanType models.PlanType
		Count    int64
	}
	if err := r.db.WithContext(ctx).Model(&models.Restaurant{}).
		Select("plan_type, COUNT(*) AS count").
		Group("plan_type").
		Scan(&byPlan).Error; err != nil {
		return nil, err
	}
	for _, row := range byPlan {
		stats.ByPlan[row.PlanType] = row.Count
	}

	return stats, nil
}
