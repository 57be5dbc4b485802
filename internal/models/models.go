package models

import (
	"time"

	"github.com/google/uuid"
)

// RegistrationStatus is an enum for registration lifecycle states
type RegistrationStatus string

const (
	// StatusPending is the initial state of every registration
	StatusPending RegistrationStatus = "pending"
	// StatusApproved marks a registration confirmed by an administrator
	StatusApproved RegistrationStatus = "approved"
	// StatusCompleted is terminal; the volunteer showed up and hours were recorded
	StatusCompleted RegistrationStatus = "completed"
	// StatusCancelled is terminal; the seat has been released
	StatusCancelled RegistrationStatus = "cancelled"
)

// IsTerminal reports whether the status permits no further transitions.
func (s RegistrationStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo reports whether the state machine allows moving to next.
// pending may skip approval and go straight to completed or cancelled.
func (s RegistrationStatus) CanTransitionTo(next RegistrationStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusApproved || next == StatusCompleted || next == StatusCancelled
	case StatusApproved:
		return next == StatusCompleted || next == StatusCancelled
	}
	return false
}

// Opportunity model represents a volunteer activity with limited seats.
// SpotsAvailable is mutated only through the repository's conditional
// reserve/release operations.
type Opportunity struct {
	ID                uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	LegacyID          *string    `json:"legacy_id,omitempty" gorm:"Column:legacy_id;uniqueIndex"`
	Title             string     `json:"title" gorm:"Column:title"`
	Organization      string     `json:"organization" gorm:"Column:organization"`
	OrganizerUnit     string     `json:"organizer_unit" gorm:"Column:organizer_unit"`
	Category          string     `json:"category" gorm:"Column:category"`
	Location          string     `json:"location" gorm:"Column:location"`
	Date              string     `json:"date" gorm:"Column:date"`
	SignupStartTime   *time.Time `json:"signup_start_time" gorm:"Column:signup_start_time"`
	SignupEndTime     *time.Time `json:"signup_end_time" gorm:"Column:signup_end_time"`
	ActivityStartTime *time.Time `json:"activity_start_time" gorm:"Column:activity_start_time"`
	ActivityEndTime   *time.Time `json:"activity_end_time" gorm:"Column:activity_end_time"`
	LeaderName        string     `json:"leader_name" gorm:"Column:leader_name"`
	LeaderPhone       string     `json:"leader_phone" gorm:"Column:leader_phone"`
	Duration          string     `json:"duration" gorm:"Column:duration"`
	TotalSpots        int        `json:"total_spots" gorm:"Column:total_spots"`
	SpotsAvailable    int        `json:"spots_available" gorm:"Column:spots_available"`
	Description       string     `json:"description" gorm:"Column:description;type:text"`
	Requirements      string     `json:"requirements" gorm:"Column:requirements;type:text"`
	Image             string     `json:"image" gorm:"Column:image"`
	Tags              string     `json:"tags" gorm:"Column:tags"`
	CreatedAt         time.Time  `json:"created_at" gorm:"Column:created_at"`
	UpdatedAt         time.Time  `json:"updated_at" gorm:"Column:updated_at"`
}

// Registration model represents one seat claim on an opportunity.
// A partial unique index on (opportunity_id, user_id) for non-cancelled
// rows backs the duplicate-registration guard for authenticated
// submitters; anonymous registrations carry a nil UserID and are exempt.
// See database.AutoMigrate for the index definition.
type Registration struct {
	ID               uuid.UUID          `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OpportunityID    uuid.UUID          `json:"opportunity_id" gorm:"type:uuid;Column:opportunity_id;index"`
	UserID           *uuid.UUID         `json:"user_id,omitempty" gorm:"type:uuid;Column:user_id;index"`
	Name             string             `json:"name" gorm:"Column:name"`
	Email            string             `json:"email" gorm:"Column:email;index"`
	Phone            string             `json:"phone" gorm:"Column:phone"`
	Message          string             `json:"message" gorm:"Column:message"`
	Status           RegistrationStatus `json:"status" gorm:"Column:status"`
	RegisteredAt     time.Time          `json:"registered_at" gorm:"Column:registered_at"`
	CompletedAt      *time.Time         `json:"completed_at,omitempty" gorm:"Column:completed_at"`
	VolunteeredHours *float64           `json:"volunteered_hours,omitempty" gorm:"Column:volunteered_hours"`
}

// UserProfile holds per-user aggregate counters adjusted by registration
// state transitions. TotalActivities never drops below zero.
type UserProfile struct {
	UserID          uuid.UUID `json:"user_id" gorm:"type:uuid;primaryKey;Column:user_id"`
	Name            string    `json:"name" gorm:"Column:name"`
	Email           string    `json:"email" gorm:"Column:email"`
	Phone           string    `json:"phone" gorm:"Column:phone"`
	TotalHours      float64   `json:"total_hours" gorm:"Column:total_hours"`
	TotalActivities int       `json:"total_activities" gorm:"Column:total_activities"`
	UpdatedAt       time.Time `json:"updated_at" gorm:"Column:updated_at"`
}

// Stats is the aggregate snapshot served by the stats endpoint.
type Stats struct {
	TotalOpportunities  int     `json:"totalOpportunities"`
	TotalRegistrations  int     `json:"totalRegistrations"`
	TotalUsers          int     `json:"totalUsers"`
	TotalSpots          int     `json:"totalSpots"`
	AvailableSpots      int     `json:"availableSpots"`
	OccupiedSpots       int     `json:"occupiedSpots"`
	TotalVolunteerHours float64 `json:"totalVolunteerHours"`
}
