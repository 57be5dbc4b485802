package repository

import (
	"context"
	"errors"
	"time"

	"example.com/volunteerhub/services/signup/internal/database"
	"example.com/volunteerhub/services/signup/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository provides data access methods against the primary store
type Repository interface {
	// Transaction support
	WithTransaction(ctx context.Context, fn func(ctx context.Context, txRepo Repository) error) error

	// Opportunity operations
	CreateOpportunity(ctx context.Context, opp *models.Opportunity) error
	UpdateOpportunity(ctx context.Context, opp *models.Opportunity) error
	FindOpportunityByID(ctx context.Context, id uuid.UUID) (*models.Opportunity, error)
	FindOpportunityByLegacyID(ctx context.Context, legacyID string) (*models.Opportunity, error)
	ListOpportunities(ctx context.Context) ([]*models.Opportunity, error)
	DeleteOpportunity(ctx context.Context, id uuid.UUID) error

	// Seat counter operations. ReserveSpot is a compare-and-swap: it
	// decrements spots_available only when the stored value still equals
	// expected, and reports ErrCapacityExhausted when another caller won.
	ReserveSpot(ctx context.Context, id uuid.UUID, expected int) error
	ReleaseSpot(ctx context.Context, id uuid.UUID) error

	// Registration operations
	CreateRegistration(ctx context.Context, reg *models.Registration) error
	UpdateRegistration(ctx context.Context, reg *models.Registration) error
	DeleteRegistration(ctx context.Context, id uuid.UUID) error
	FindRegistrationByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	FindActiveRegistration(ctx context.Context, opportunityID, userID uuid.UUID) (*models.Registration, error)
	ListRegistrations(ctx context.Context) ([]*models.Registration, error)
	ListRegistrationsByOpportunity(ctx context.Context, opportunityID uuid.UUID) ([]*models.Registration, error)
	ListRegistrationsForUser(ctx context.Context, userID *uuid.UUID, email string) ([]*models.Registration, error)

	// UserProfile aggregate operations
	FindUserProfile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error)
	AdjustUserAggregates(ctx context.Context, userID uuid.UUID, activitiesDelta int, hoursDelta float64) error

	// Stats
	CollectStats(ctx context.Context) (*models.Stats, error)
}

// repo is an implementation of the Repository interface
type repo struct {
	db database.DB
}

// Helper type for transaction support
type dbWrapper struct {
	db *gorm.DB
}

func (w *dbWrapper) DB() (*gorm.DB, error) {
	return w.db, nil
}

func (w *dbWrapper) Close() error {
	return nil
}

// NewRepository creates a new repository instance
func NewRepository(db database.DB) Repository {
	return &repo{
		db: db,
	}
}

// WithTransaction executes the given function within a database transaction
func (r *repo) WithTransaction(ctx context.Context, fn func(ctx context.Context, txRepo Repository) error) error {
	gormDB, err := r.db.DB()
	if err != nil {
		return err
	}

	return gormDB.Transaction(func(tx *gorm.DB) error {
		txRepo := &repo{
			db: &dbWrapper{db: tx},
		}
		return fn(ctx, txRepo)
	})
}

// Opportunity operations implementation

func (r *repo) CreateOpportunity(ctx context.Context, opp *models.Opportunity) error {
	gormDB, err := r.db.DB()
	if err != nil {
		return err
	}

	if opp.ID == uuid.Nil {
		opp.ID = uuid.New()
	}

	return gormDB.WithContext(ctx).Create(opp).Error
}

func (r *repo) UpdateOpportunity(ctx context.Context, opp *models.Opportunity) error {
	gormDB, err := r.db.DB()
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Save(opp).Error
}

func (r *repo) FindOpportunityByID(ctx context.Context, id uuid.UUID) (*models.Opportunity, error) {
	gormDB, err := r.db.DB()
	if err != nil {
		return nil, err
	}

	var opp models.Opportunity
	if err := gormDB.WithContext(ctx).Where("id = ?", id).First(&opp).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &opp, nil
}

func (r *repo) FindOpportunityByLegacyID(ctx context.Context, legacyID string) (*models.Opportunity, error) {
	gormDB, err := r.db.DB()
	if err != nil {
		return nil, err
	}

	var opp models.Opportunity
	if err := gormDB.WithContext(ctx).Where("legacy_id = ?", legacyID).First(&opp).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &opp, nil
}

func (r *repo) ListOpportunities(ctx context.Context) ([]*models.Opportunity, error) {
	gormDB, err := r.db.DB()
	if err != nil {
		return nil, err
	}

	var opps []*models.Opportunity
	if err := gormDB.WithContext(ctx).Order("created_at DESC").Find(&opps).Error; err != nil {
		return nil, err
	}

	return opps, nil
}

// DeleteOpportunity removes the opportunity together with its registrations.
// Callers wrap this in WithTransaction when the cascade must be atomic.
func (r *repo) DeleteOpportunity(ctx context.Context, id uuid.UUID) error {
	gormDB, err := r.db.DB()
	if err != nil {
		return err
	}

	if err := gormDB.WithContext(ctx).
		Where("opportunity_id = ?", id).
		Delete(&models.Registration{}).Error; err != nil {
		return err
	}

	result := gormDB.WithContext(ctx).Where("id = ?", id).Delete(&models.Opportunity{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Seat counter operations implementation

// ReserveSpot performs the conditional decrement. Zero affected rows is the
// authoritative contention signal, not an error to retry: the losing caller
// fails fast with ErrCapacityExhausted.
func (r *repo) ReserveSpot(ctx context.Context, id uuid.UUID, expected int) error {
	if expected <= 0 {
		return ErrCapacityExhausted
	}

	gormDB, err := r.db.DB()
	if err != nil {
		return err
	}

	result := gormDB.WithContext(ctx).Model(&models.Opportunity{}).
		Where("id = ? AND spots_available = ?", id, expected).
		Update("spots_available", expected-1)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCapacityExhausted
	}

	return nil
}

// ReleaseSpot returns one seat, clamped at total_spots so a double release
// never over-credits the counter.
func (r *repo) ReleaseSpot(ctx context.Context, id uuid.UUID) error {
	gormDB, err := r.db.DB()
	if err != nil {
		return err
	}

	result := gormDB.WithContext(ctx).Model(&models.Opportunity{}).
		Where("id = ?", id).
		Update("spots_available", gorm.Expr("LEAST(spots_available + 1, total_spots)"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Registration operations implementation

func (r *repo) CreateRegistration(ctx context.Context, reg *models.Registration) error {
	gormDB, err := r.db.DB()
	if err != nil {
		return err
	}

	if reg.ID == uuid.Nil {
		reg.ID = uuid.New()
	}
	if reg.Status == "" {
		reg.Status = models.StatusPending
	}
	if reg.RegisteredAt.IsZero() {
		reg.RegisteredAt = time.Now().UTC()
	}

	if err := gormDB.WithContext(ctx).Create(reg).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

func (r *repo) UpdateRegistration(ctx context.Context, reg *models.Registration) error {
	gormDB, err := r.db.DB()
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Save(reg).Error
}

func (r *repo) DeleteRegistration(ctx context.Context, id uuid.UUID) error {
	gormDB, err := r.db.DB()
	if err != nil {
		return err
	}

	result := gormDB.WithContext(ctx).Where("id = ?", id).Delete(&models.Registration{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *repo) FindRegistrationByID(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	gormDB, err := r.db.DB()
	if err != nil {
		return nil, err
	}

	var reg models.Registration
	if err := gormDB.WithContext(ctx).Where("id = ?", id).First(&reg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &reg, nil
}

// FindActiveRegistration looks up a non-cancelled registration for the
// (opportunity, user) pair. The partial unique index is the race-proof
// backstop; this pre-check exists to give callers a friendly error without
// burning an insert.
func (r *repo) FindActiveRegistration(ctx context.Context, opportunityID, userID uuid.UUID) (*models.Registration, error) {
	gormDB, err := r.db.DB()
	if err != nil {
		return nil, err
	}

	var reg models.Registration
	err = gormDB.WithContext(ctx).
		Where("opportunity_id = ? AND user_id = ? AND status <> ?",
			opportunityID, userID, models.StatusCancelled).
		First(&reg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &reg, nil
}

func (r *repo) ListRegistrations(ctx context.Context) ([]*models.Registration, error) {
	gormDB, err := r.db.DB()
	if err != nil {
		return nil, err
	}

	var regs []*models.Registration
	if err := gormDB.WithContext(ctx).Order("registered_at DESC").Find(&regs).Error; err != nil {
		return nil, err
	}

	return regs, nil
}

func (r *repo) ListRegistrationsByOpportunity(ctx context.Context, opportunityID uuid.UUID) ([]*models.Registration, error) {
	gormDB, err := r.db.DB()
	if err != nil {
		return nil, err
	}

	var regs []*models.Registration
	err = gormDB.WithContext(ctx).
		Where("opportunity_id = ?", opportunityID).
		Order("registered_at DESC").
		Find(&regs).Error
	if err != nil {
		return nil, err
	}

	return regs, nil
}

// ListRegistrationsForUser matches by user id or, for registrations
// submitted before the user authenticated, by contact email.
func (r *repo) ListRegistrationsForUser(ctx context.Context, userID *uuid.UUID, email string) ([]*models.Registration, error) {
	gormDB, err := r.db.DB()
	if err != nil {
		return nil, err
	}

	query := gormDB.WithContext(ctx)
	switch {
	case userID != nil && email != "":
		query = query.Where("user_id = ? OR email = ?", *userID, email)
	case userID != nil:
		query = query.Where("user_id = ?", *userID)
	case email != "":
		query = query.Where("email = ?", email)
	default:
		return nil, nil
	}

	var regs []*models.Registration
	if err := query.Order("registered_at DESC").Find(&regs).Error; err != nil {
		return nil, err
	}

	return regs, nil
}

// UserProfile aggregate operations implementation

func (r *repo) FindUserProfile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	gormDB, err := r.db.DB()
	if err != nil {
		return nil, err
	}

	var profile models.UserProfile
	if err := gormDB.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &profile, nil
}

// AdjustUserAggregates applies the counter deltas in a single update so
// concurrent transitions never lose increments. The activities counter is
// floored at zero.
func (r *repo) AdjustUserAggregates(ctx context.Context, userID uuid.UUID, activitiesDelta int, hoursDelta float64) error {
	gormDB, err := r.db.DB()
	if err != nil {
		return err
	}

	result := gormDB.WithContext(ctx).Model(&models.UserProfile{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"total_activities": gorm.Expr("GREATEST(total_activities + ?, 0)", activitiesDelta),
			"total_hours":      gorm.Expr("total_hours + ?", hoursDelta),
			"updated_at":       time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// First transition for this user; seed the profile row.
		profile := &models.UserProfile{
			UserID:          userID,
			TotalHours:      hoursDelta,
			TotalActivities: activitiesDelta,
			UpdatedAt:       time.Now().UTC(),
		}
		if profile.TotalActivities < 0 {
			profile.TotalActivities = 0
		}
		if profile.TotalHours < 0 {
			profile.TotalHours = 0
		}
		return gormDB.WithContext(ctx).Create(profile).Error
	}

	return nil
}

// Stats implementation

func (r *repo) CollectStats(ctx context.Context) (*models.Stats, error) {
	gormDB, err := r.db.DB()
	if err != nil {
		return nil, err
	}

	stats := &models.Stats{}

	var oppTotals struct {
		Count     int
		Total     int
		Available int
	}
	err = gormDB.WithContext(ctx).Model(&models.Opportunity{}).
		Select("COUNT(*) AS count, COALESCE(SUM(total_spots), 0) AS total, COALESCE(SUM(spots_available), 0) AS available").
		Scan(&oppTotals).Error
	if err != nil {
		return nil, err
	}
	stats.TotalOpportunities = oppTotals.Count
	stats.TotalSpots = oppTotals.Total
	stats.AvailableSpots = oppTotals.Available
	stats.OccupiedSpots = oppTotals.Total - oppTotals.Available

	var regCount int64
	if err := gormDB.WithContext(ctx).Model(&models.Registration{}).Count(&regCount).Error; err != nil {
		return nil, err
	}
	stats.TotalRegistrations = int(regCount)

	var userTotals struct {
		Count int
		Hours float64
	}
	err = gormDB.WithContext(ctx).Model(&models.UserProfile{}).
		Select("COUNT(*) AS count, COALESCE(SUM(total_hours), 0) AS hours").
		Scan(&userTotals).Error
	if err != nil {
		return nil, err
	}
	stats.TotalUsers = userTotals.Count
	stats.TotalVolunteerHours = userTotals.Hours

	return stats, nil
}
