// Package store implements the schema-less fallback repository. Records are
// JSON documents keyed by prefix, holding best-effort copies of primary
// rows plus pre-migration data that never reached the primary store.
package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"example.com/volunteerhub/services/signup/internal/kvstore"
	"example.com/volunteerhub/services/signup/internal/models"

	"github.com/pkg/errors"
)

// Key prefixes, shared with the legacy data this store inherited.
const (
	OpportunityPrefix  = "opportunity:"
	RegistrationPrefix = "registration:"
	UserProfilePrefix  = "user_profile:"
)

// ErrNotFound is returned when no record exists under the requested key.
var ErrNotFound = errors.New("fallback record not found")

// Opportunity is the schema-less opportunity document. IDs are free-form
// strings here: pre-migration records used short numeric keys, mirrored
// primary rows use the canonical UUID.
type Opportunity struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Organization      string    `json:"organization"`
	OrganizerUnit     string    `json:"organizerUnit,omitempty"`
	Category          string    `json:"category,omitempty"`
	Location          string    `json:"location,omitempty"`
	Date              string    `json:"date,omitempty"`
	SignupStartTime   *string   `json:"signupStartTime,omitempty"`
	SignupEndTime     *string   `json:"signupEndTime,omitempty"`
	ActivityStartTime *string   `json:"activityStartTime,omitempty"`
	ActivityEndTime   *string   `json:"activityEndTime,omitempty"`
	LeaderName        string    `json:"leaderName,omitempty"`
	LeaderPhone       string    `json:"leaderPhone,omitempty"`
	Duration          string    `json:"duration,omitempty"`
	SpotsAvailable    int       `json:"spotsAvailable"`
	TotalSpots        int       `json:"totalSpots"`
	Description       string    `json:"description,omitempty"`
	Requirements      string    `json:"requirements,omitempty"`
	Image             string    `json:"image,omitempty"`
	Tags              string    `json:"tags,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Registration is the schema-less registration document. The fallback path
// has no uniqueness guarantee and no atomic seat counter; duplicate rows
// can occur here. That gap is inherited from the legacy store and is left
// as-is rather than papered over with dedup logic the primary already owns.
type Registration struct {
	ID               string                    `json:"id"`
	OpportunityID    string                    `json:"opportunityId"`
	UserID           string                    `json:"userId,omitempty"`
	Name             string                    `json:"name"`
	Email            string                    `json:"email"`
	Phone            string                    `json:"phone"`
	Message          string                    `json:"message,omitempty"`
	Status           models.RegistrationStatus `json:"status"`
	RegisteredAt     time.Time                 `json:"registeredAt"`
	CompletedAt      *time.Time                `json:"completedAt,omitempty"`
	VolunteeredHours *float64                  `json:"volunteeredHours,omitempty"`
}

// UserProfile is the schema-less per-user aggregate document.
type UserProfile struct {
	UserID          string    `json:"userId"`
	Name            string    `json:"name,omitempty"`
	Email           string    `json:"email,omitempty"`
	Phone           string    `json:"phone,omitempty"`
	TotalHours      float64   `json:"totalHours"`
	TotalActivities int       `json:"totalActivities"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// NewRegistrationID mints a fallback-only registration id using the legacy
// scheme the pre-migration store used.
func NewRegistrationID() string {
	return "reg_" + strconv.FormatInt(time.Now().UnixNano(), 10)
}

// OpportunityFromModel converts a primary row into its mirror document.
// The id parameter lets callers mirror the same row under its legacy key.
func OpportunityFromModel(opp *models.Opportunity, id string) *Opportunity {
	doc := &Opportunity{
		ID:             id,
		Title:          opp.Title,
		Organization:   opp.Organization,
		OrganizerUnit:  opp.OrganizerUnit,
		Category:       opp.Category,
		Location:       opp.Location,
		Date:           opp.Date,
		LeaderName:     opp.LeaderName,
		LeaderPhone:    opp.LeaderPhone,
		Duration:       opp.Duration,
		SpotsAvailable: opp.SpotsAvailable,
		TotalSpots:     opp.TotalSpots,
		Description:    opp.Description,
		Requirements:   opp.Requirements,
		Image:          opp.Image,
		Tags:           opp.Tags,
		CreatedAt:      opp.CreatedAt,
	}
	doc.SignupStartTime = formatTime(opp.SignupStartTime)
	doc.SignupEndTime = formatTime(opp.SignupEndTime)
	doc.ActivityStartTime = formatTime(opp.ActivityStartTime)
	doc.ActivityEndTime = formatTime(opp.ActivityEndTime)
	return doc
}

// RegistrationFromModel converts a primary registration into its mirror
// document.
func RegistrationFromModel(reg *models.Registration) *Registration {
	doc := &Registration{
		ID:               reg.ID.String(),
		OpportunityID:    reg.OpportunityID.String(),
		Name:             reg.Name,
		Email:            reg.Email,
		Phone:            reg.Phone,
		Message:          reg.Message,
		Status:           reg.Status,
		RegisteredAt:     reg.RegisteredAt,
		CompletedAt:      reg.CompletedAt,
		VolunteeredHours: reg.VolunteeredHours,
	}
	if reg.UserID != nil {
		doc.UserID = reg.UserID.String()
	}
	return doc
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

// FallbackRepository provides typed access to the fallback store.
type FallbackRepository struct {
	kv kvstore.Client
}

// NewFallbackRepository creates a new fallback repository instance
func NewFallbackRepository(kv kvstore.Client) *FallbackRepository {
	return &FallbackRepository{kv: kv}
}

// Opportunity records

func (f *FallbackRepository) GetOpportunity(ctx context.Context, id string) (*Opportunity, error) {
	raw, err := f.kv.Get(ctx, OpportunityPrefix+id)
	if err != nil {
		if kvstore.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to read opportunity record")
	}

	var doc Opportunity
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, errors.Wrap(err, "malformed opportunity record")
	}
	if doc.ID == "" {
		doc.ID = id
	}
	return &doc, nil
}

func (f *FallbackRepository) PutOpportunity(ctx context.Context, doc *Opportunity) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to encode opportunity record")
	}
	return f.kv.Set(ctx, OpportunityPrefix+doc.ID, string(raw))
}

func (f *FallbackRepository) DeleteOpportunity(ctx context.Context, id string) error {
	return f.kv.Delete(ctx, OpportunityPrefix+id)
}

func (f *FallbackRepository) ListOpportunities(ctx context.Context) ([]*Opportunity, error) {
	raws, err := f.kv.ScanPrefix(ctx, OpportunityPrefix)
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan opportunity records")
	}

	docs := make([]*Opportunity, 0, len(raws))
	for key, raw := range raws {
		var doc Opportunity
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			// A single corrupt record must not take down the listing.
			continue
		}
		if doc.ID == "" {
			doc.ID = key[len(OpportunityPrefix):]
		}
		docs = append(docs, &doc)
	}
	return docs, nil
}

// Registration records

func (f *FallbackRepository) GetRegistration(ctx context.Context, id string) (*Registration, error) {
	raw, err := f.kv.Get(ctx, RegistrationPrefix+id)
	if err != nil {
		if kvstore.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to read registration record")
	}

	var doc Registration
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, errors.Wrap(err, "malformed registration record")
	}
	return &doc, nil
}

func (f *FallbackRepository) PutRegistration(ctx context.Context, doc *Registration) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to encode registration record")
	}
	return f.kv.Set(ctx, RegistrationPrefix+doc.ID, string(raw))
}

func (f *FallbackRepository) DeleteRegistration(ctx context.Context, id string) error {
	return f.kv.Delete(ctx, RegistrationPrefix+id)
}

func (f *FallbackRepository) ListRegistrations(ctx context.Context) ([]*Registration, error) {
	raws, err := f.kv.ScanPrefix(ctx, RegistrationPrefix)
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan registration records")
	}

	docs := make([]*Registration, 0, len(raws))
	for _, raw := range raws {
		var doc Registration
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			continue
		}
		docs = append(docs, &doc)
	}
	return docs, nil
}

// UserProfile records

func (f *FallbackRepository) GetUserProfile(ctx context.Context, userID string) (*UserProfile, error) {
	raw, err := f.kv.Get(ctx, UserProfilePrefix+userID)
	if err != nil {
		if kvstore.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to read user profile record")
	}

	var doc UserProfile
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, errors.Wrap(err, "malformed user profile record")
	}
	return &doc, nil
}

func (f *FallbackRepository) PutUserProfile(ctx context.Context, doc *UserProfile) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to encode user profile record")
	}
	return f.kv.Set(ctx, UserProfilePrefix+doc.UserID, string(raw))
}

func (f *FallbackRepository) ListUserProfiles(ctx context.Context) ([]*UserProfile, error) {
	raws, err := f.kv.ScanPrefix(ctx, UserProfilePrefix)
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan user profile records")
	}

	docs := make([]*UserProfile, 0, len(raws))
	for key, raw := range raws {
		var doc UserProfile
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			continue
		}
		if doc.UserID == "" {
			doc.UserID = key[len(UserProfilePrefix):]
		}
		docs = append(docs, &doc)
	}
	return docs, nil
}

// DeleteByPrefix removes every record under the prefix and reports how many
// were deleted. Used by the administrative cleanup operation.
func (f *FallbackRepository) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	raws, err := f.kv.ScanPrefix(ctx, prefix)
	if err != nil {
		return 0, errors.Wrap(err, "failed to scan records for cleanup")
	}

	deleted := 0
	for key := range raws {
		if err := f.kv.Delete(ctx, key); err != nil {
			return deleted, errors.Wrapf(err, "failed to delete %s", key)
		}
		deleted++
	}
	return deleted, nil
}
