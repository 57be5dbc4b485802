package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"example.com/volunteerhub/services/signup/internal/kvstore"
	"example.com/volunteerhub/services/signup/internal/messaging"
	"example.com/volunteerhub/services/signup/internal/models"
	"example.com/volunteerhub/services/signup/internal/repository"
	"example.com/volunteerhub/services/signup/internal/search"
	"example.com/volunteerhub/services/signup/internal/store"
)

const statsSnapshotKey = "stats:snapshot"

// RegistrationInput carries a signup request. OpportunityID accepts both
// canonical UUIDs and legacy identifiers.
type RegistrationInput struct {
	OpportunityID string
	UserID        string
	Name          string
	Email         string
	Phone         string
	Message       string
}

// StatusUpdateInput carries a registration status change. VolunteeredHours is
// required when the target status is completed.
type StatusUpdateInput struct {
	Status           models.RegistrationStatus
	Message          *string
	VolunteeredHours *float64
}

// CleanupResult reports how many fallback records an admin cleanup removed.
type CleanupResult struct {
	OpportunitiesRemoved int `json:"opportunitiesRemoved"`
	RegistrationsRemoved int `json:"registrationsRemoved"`
	ProfilesRemoved      int `json:"profilesRemoved"`
}

// SignupService is the application layer behind the HTTP handlers.
type SignupService interface {
	ListOpportunities(ctx context.Context) ([]*store.Opportunity, error)
	GetOpportunity(ctx context.Context, externalID string) (*store.Opportunity, error)
	SearchOpportunities(ctx context.Context, keyword string) ([]*store.Opportunity, error)
	CreateOpportunity(ctx context.Context, opp *models.Opportunity) (*store.Opportunity, error)
	UpdateOpportunity(ctx context.Context, externalID string, input *models.Opportunity) (*store.Opportunity, error)
	DeleteOpportunity(ctx context.Context, externalID string) error

	Register(ctx context.Context, input *RegistrationInput) (*store.Registration, error)
	ListRegistrations(ctx context.Context) ([]*store.Registration, error)
	ListOpportunityRegistrations(ctx context.Context, externalID string) ([]*store.Registration, error)
	ListUserRegistrations(ctx context.Context, userID, email string) ([]*store.Registration, error)
	UpdateRegistrationStatus(ctx context.Context, id string, input *StatusUpdateInput) (*store.Registration, error)
	CancelRegistration(ctx context.Context, id string) error

	Stats(ctx context.Context) (*models.Stats, error)
	RefreshStatsSnapshot(ctx context.Context) (*models.Stats, error)
	SyncMirror(ctx context.Context) error
	CleanupFallback(ctx context.Context) (*CleanupResult, error)
}

type signupService struct {
	repo     repository.Repository
	fallback *store.FallbackRepository
	kv       kvstore.Client
	bus      messaging.ServiceBusClient
	es       *search.ElasticClient
}

// NewSignupService wires the application layer. bus and es may be nil or
// mock implementations; all side channels are best effort.
func NewSignupService(repo repository.Repository, fallback *store.FallbackRepository, kv kvstore.Client, bus messaging.ServiceBusClient, es *search.ElasticClient) SignupService {
	return &signupService{
		repo:     repo,
		fallback: fallback,
		kv:       kv,
		bus:      bus,
		es:       es,
	}
}

func (s *signupService) ListOpportunities(ctx context.Context) ([]*store.Opportunity, error) {
	return s.mergedOpportunities(ctx)
}

func (s *signupService) GetOpportunity(ctx context.Context, externalID string) (*store.Opportunity, error) {
	resolved, err := s.resolveOpportunity(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if resolved.Primary != nil {
		return store.OpportunityFromModel(resolved.Primary, resolved.Primary.ID.String()), nil
	}
	return resolved.Fallback, nil
}

func (s *signupService) SearchOpportunities(ctx context.Context, keyword string) ([]*store.Opportunity, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return s.mergedOpportunities(ctx)
	}

	if s.es != nil {
		docs, err := s.es.SearchOpportunities(ctx, keyword)
		if err == nil {
			return docs, nil
		}
		logrus.WithError(err).Warn("Search index query failed, falling back to store scan")
	}

	all, err := s.mergedOpportunities(ctx)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(keyword)
	matches := make([]*store.Opportunity, 0, len(all))
	for _, doc := range all {
		haystack := strings.ToLower(strings.Join([]string{
			doc.Title, doc.Organization, doc.Category, doc.Location, doc.Description, doc.Tags,
		}, " "))
		if strings.Contains(haystack, needle) {
			matches = append(matches, doc)
		}
	}
	return matches, nil
}

func (s *signupService) CreateOpportunity(ctx context.Context, opp *models.Opportunity) (*store.Opportunity, error) {
	if opp.Title == "" || opp.Organization == "" {
		return nil, errors.Wrap(ErrValidation, "title and organization are required")
	}
	if opp.TotalSpots < 0 {
		return nil, errors.Wrap(ErrValidation, "total spots must not be negative")
	}

	if opp.ID == uuid.Nil {
		opp.ID = uuid.New()
	}
	opp.SpotsAvailable = opp.TotalSpots
	now := time.Now().UTC()
	opp.CreatedAt = now
	opp.UpdatedAt = now

	if err := s.repo.CreateOpportunity(ctx, opp); err != nil {
		if err == repository.ErrDuplicateKey {
			return nil, errors.Wrap(ErrValidation, "legacy id already in use")
		}
		return nil, errors.Wrap(err, "failed to create opportunity")
	}

	s.mirrorOpportunity(ctx, opp)
	doc := store.OpportunityFromModel(opp, opp.ID.String())
	s.indexOpportunity(ctx, doc)
	return doc, nil
}

func (s *signupService) UpdateOpportunity(ctx context.Context, externalID string, input *models.Opportunity) (*store.Opportunity, error) {
	resolved, err := s.resolveOpportunity(ctx, externalID)
	if err != nil {
		return nil, err
	}

	if resolved.Primary != nil {
		opp := resolved.Primary
		applyOpportunityUpdate(opp, input)
		opp.UpdatedAt = time.Now().UTC()
		if err := s.repo.UpdateOpportunity(ctx, opp); err != nil {
			return nil, errors.Wrap(err, "failed to update opportunity")
		}
		s.mirrorOpportunity(ctx, opp)
		doc := store.OpportunityFromModel(opp, opp.ID.String())
		s.indexOpportunity(ctx, doc)
		return doc, nil
	}

	doc := resolved.Fallback
	applyFallbackUpdate(doc, input)
	if err := s.fallback.PutOpportunity(ctx, doc); err != nil {
		return nil, errors.Wrap(err, "failed to update fallback opportunity")
	}
	s.indexOpportunity(ctx, doc)
	return doc, nil
}

func (s *signupService) DeleteOpportunity(ctx context.Context, externalID string) error {
	resolved, err := s.resolveOpportunity(ctx, externalID)
	if err != nil {
		return err
	}

	if resolved.Primary != nil {
		opp := resolved.Primary
		// The registration cascade and the opportunity row go in one
		// transaction so a failure never leaves orphaned registrations.
		err := s.repo.WithTransaction(ctx, func(ctx context.Context, txRepo repository.Repository) error {
			return txRepo.DeleteOpportunity(ctx, opp.ID)
		})
		if err != nil && err != repository.ErrNotFound {
			return errors.Wrap(err, "failed to delete opportunity")
		}
		s.unmirrorOpportunity(ctx, opp)
		s.removeFallbackRegistrationsFor(ctx, opp.ID.String(), derefLegacy(opp.LegacyID))
		s.deindexOpportunity(ctx, opp.ID.String())
		if opp.LegacyID != nil && *opp.LegacyID != "" {
			s.deindexOpportunity(ctx, *opp.LegacyID)
		}
		return nil
	}

	doc := resolved.Fallback
	if err := s.fallback.DeleteOpportunity(ctx, doc.ID); err != nil {
		return errors.Wrap(err, "failed to delete fallback opportunity")
	}
	s.removeFallbackRegistrationsFor(ctx, doc.ID, "")
	s.deindexOpportunity(ctx, doc.ID)
	return nil
}

func (s *signupService) Register(ctx context.Context, input *RegistrationInput) (*store.Registration, error) {
	if input.OpportunityID == "" || input.Name == "" || input.Email == "" || input.Phone == "" {
		return nil, errors.Wrap(ErrValidation, "opportunity id, name, email and phone are required")
	}

	resolved, err := s.resolveOpportunity(ctx, input.OpportunityID)
	if err != nil {
		return nil, err
	}
	if resolved.Primary != nil {
		return s.registerPrimary(ctx, resolved.Primary, input)
	}
	return s.registerFallback(ctx, resolved.Fallback, input)
}

func (s *signupService) registerPrimary(ctx context.Context, opp *models.Opportunity, input *RegistrationInput) (*store.Registration, error) {
	var userID *uuid.UUID
	if input.UserID != "" {
		if uid, err := uuid.Parse(input.UserID); err == nil {
			userID = &uid
		}
	}

	if userID != nil {
		existing, err := s.repo.FindActiveRegistration(ctx, opp.ID, *userID)
		if err != nil && err != repository.ErrNotFound {
			return nil, errors.Wrap(err, "failed to check existing registration")
		}
		if existing != nil {
			return nil, ErrDuplicateRegistration
		}
	}

	if opp.SpotsAvailable <= 0 {
		return nil, ErrCapacityExhausted
	}

	reg := &models.Registration{
		ID:            uuid.New(),
		OpportunityID: opp.ID,
		UserID:        userID,
		Name:          input.Name,
		Email:         input.Email,
		Phone:         input.Phone,
		Message:       input.Message,
		Status:        models.StatusPending,
		RegisteredAt:  time.Now().UTC(),
	}
	if err := s.repo.CreateRegistration(ctx, reg); err != nil {
		if err == repository.ErrDuplicateKey {
			return nil, ErrDuplicateRegistration
		}
		return nil, errors.Wrap(err, "failed to create registration")
	}

	// Compare-and-swap on the seat counter. A lost race rolls the insert
	// back so the registration never exists without a reserved seat.
	if err := s.repo.ReserveSpot(ctx, opp.ID, opp.SpotsAvailable); err != nil {
		if delErr := s.repo.DeleteRegistration(ctx, reg.ID); delErr != nil {
			logrus.WithError(delErr).WithField("registration_id", reg.ID).
				Error("Failed to roll back registration after lost seat reservation")
		}
		if err == repository.ErrCapacityExhausted {
			return nil, ErrCapacityExhausted
		}
		return nil, errors.Wrap(err, "failed to reserve spot")
	}
	opp.SpotsAvailable--

	if userID != nil {
		if err := s.repo.AdjustUserAggregates(ctx, *userID, 1, 0); err != nil {
			logrus.WithError(err).WithField("user_id", *userID).
				Warn("Failed to update user aggregates")
		}
	}

	s.mirrorRegistration(ctx, reg)
	s.mirrorOpportunity(ctx, opp)
	s.publishRegistrationEvent(ctx, messaging.EventRegistrationCreated, reg.ID.String(), opp.ID.String(), input.UserID)
	return store.RegistrationFromModel(reg), nil
}

// registerFallback signs a volunteer up against a fallback-only opportunity.
// This path has no transactional seat counter and no duplicate guard; the
// read-decrement-write below can lose concurrent updates.
func (s *signupService) registerFallback(ctx context.Context, opp *store.Opportunity, input *RegistrationInput) (*store.Registration, error) {
	if opp.SpotsAvailable <= 0 {
		return nil, ErrCapacityExhausted
	}

	reg := &store.Registration{
		ID:            store.NewRegistrationID(),
		OpportunityID: opp.ID,
		UserID:        input.UserID,
		Name:          input.Name,
		Email:         input.Email,
		Phone:         input.Phone,
		Message:       input.Message,
		Status:        models.StatusPending,
		RegisteredAt:  time.Now().UTC(),
	}
	if err := s.fallback.PutRegistration(ctx, reg); err != nil {
		return nil, errors.Wrap(err, "failed to store fallback registration")
	}

	opp.SpotsAvailable--
	if err := s.fallback.PutOpportunity(ctx, opp); err != nil {
		logrus.WithError(err).WithField("opportunity_id", opp.ID).
			Warn("Failed to decrement fallback seat counter")
	}

	if input.UserID != "" {
		s.adjustFallbackProfile(ctx, input.UserID, 1, 0)
	}

	s.publishRegistrationEvent(ctx, messaging.EventRegistrationCreated, reg.ID, opp.ID, input.UserID)
	return reg, nil
}

func (s *signupService) ListRegistrations(ctx context.Context) ([]*store.Registration, error) {
	var (
		primary  []*models.Registration
		fallback []*store.Registration
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.repo.ListRegistrations(gctx)
		if err != nil {
			logrus.WithError(err).Warn("Primary registration listing failed, serving fallback only")
			return nil
		}
		primary = rows
		return nil
	})
	g.Go(func() error {
		docs, err := s.fallback.ListRegistrations(gctx)
		if err != nil {
			logrus.WithError(err).Warn("Fallback registration listing failed")
			return nil
		}
		fallback = docs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return s.mergedRegistrations(ctx, primary, fallback), nil
}

func (s *signupService) ListOpportunityRegistrations(ctx context.Context, externalID string) ([]*store.Registration, error) {
	resolved, err := s.resolveOpportunity(ctx, externalID)
	if err != nil {
		return nil, err
	}

	var (
		primary []*models.Registration
		ids     = map[string]struct{}{}
	)
	if resolved.Primary != nil {
		rows, err := s.repo.ListRegistrationsByOpportunity(ctx, resolved.Primary.ID)
		if err != nil {
			logrus.WithError(err).WithField("opportunity_id", resolved.Primary.ID).
				Warn("Primary registration listing failed, serving fallback only")
		} else {
			primary = rows
		}
		ids[resolved.Primary.ID.String()] = struct{}{}
		if resolved.Primary.LegacyID != nil && *resolved.Primary.LegacyID != "" {
			ids[*resolved.Primary.LegacyID] = struct{}{}
		}
	} else {
		ids[resolved.Fallback.ID] = struct{}{}
	}

	docs, err := s.fallback.ListRegistrations(ctx)
	if err != nil {
		logrus.WithError(err).Warn("Fallback registration listing failed")
		docs = nil
	}
	filtered := docs[:0]
	for _, doc := range docs {
		if _, ok := ids[doc.OpportunityID]; ok {
			filtered = append(filtered, doc)
		}
	}
	return s.mergedRegistrations(ctx, primary, filtered), nil
}

func (s *signupService) ListUserRegistrations(ctx context.Context, userID, email string) ([]*store.Registration, error) {
	if userID == "" && email == "" {
		return nil, errors.Wrap(ErrValidation, "user id or email is required")
	}

	var uid *uuid.UUID
	if userID != "" {
		if parsed, err := uuid.Parse(userID); err == nil {
			uid = &parsed
		}
	}

	var primary []*models.Registration
	if uid != nil || email != "" {
		rows, err := s.repo.ListRegistrationsForUser(ctx, uid, email)
		if err != nil {
			logrus.WithError(err).Warn("Primary registration listing failed, serving fallback only")
		} else {
			primary = rows
		}
	}

	docs, err := s.fallback.ListRegistrations(ctx)
	if err != nil {
		logrus.WithError(err).Warn("Fallback registration listing failed")
		docs = nil
	}
	filtered := docs[:0]
	for _, doc := range docs {
		if (userID != "" && doc.UserID == userID) || (email != "" && doc.Email == email) {
			filtered = append(filtered, doc)
		}
	}
	return s.mergedRegistrations(ctx, primary, filtered), nil
}

func (s *signupService) UpdateRegistrationStatus(ctx context.Context, id string, input *StatusUpdateInput) (*store.Registration, error) {
	switch input.Status {
	case models.StatusPending, models.StatusApproved, models.StatusCompleted, models.StatusCancelled:
	default:
		return nil, errors.Wrapf(ErrValidation, "unknown status %q", input.Status)
	}

	reg, doc, err := s.resolveRegistration(ctx, id)
	if err != nil {
		return nil, err
	}
	if reg != nil {
		return s.updatePrimaryStatus(ctx, reg, input)
	}
	return s.updateFallbackStatus(ctx, doc, input)
}

func (s *signupService) updatePrimaryStatus(ctx context.Context, reg *models.Registration, input *StatusUpdateInput) (*store.Registration, error) {
	if input.Status == reg.Status {
		// Repeating the current status only refreshes the message.
		if input.Message != nil {
			reg.Message = *input.Message
			if err := s.repo.UpdateRegistration(ctx, reg); err != nil {
				return nil, errors.Wrap(err, "failed to update registration")
			}
			s.mirrorRegistration(ctx, reg)
		}
		return store.RegistrationFromModel(reg), nil
	}
	if !reg.Status.CanTransitionTo(input.Status) {
		return nil, errors.Wrapf(ErrIllegalTransition, "%s -> %s", reg.Status, input.Status)
	}

	if input.Status == models.StatusCompleted {
		if input.VolunteeredHours == nil || *input.VolunteeredHours < 0 {
			return nil, errors.Wrap(ErrValidation, "volunteered hours are required to complete a registration")
		}
		now := time.Now().UTC()
		reg.CompletedAt = &now
		reg.VolunteeredHours = input.VolunteeredHours
	}
	if input.Message != nil {
		reg.Message = *input.Message
	}
	reg.Status = input.Status
	if err := s.repo.UpdateRegistration(ctx, reg); err != nil {
		return nil, errors.Wrap(err, "failed to update registration")
	}

	switch input.Status {
	case models.StatusCompleted:
		if reg.UserID != nil {
			if err := s.repo.AdjustUserAggregates(ctx, *reg.UserID, 0, *input.VolunteeredHours); err != nil {
				logrus.WithError(err).WithField("user_id", *reg.UserID).
					Warn("Failed to credit volunteer hours")
			}
		}
	case models.StatusCancelled:
		if err := s.repo.ReleaseSpot(ctx, reg.OpportunityID); err != nil {
			logrus.WithError(err).WithField("opportunity_id", reg.OpportunityID).
				Warn("Failed to release seat after cancellation")
		}
		if reg.UserID != nil {
			if err := s.repo.AdjustUserAggregates(ctx, *reg.UserID, -1, 0); err != nil {
				logrus.WithError(err).WithField("user_id", *reg.UserID).
					Warn("Failed to update user aggregates")
			}
		}
		s.remirrorOpportunity(ctx, reg.OpportunityID)
	}

	s.mirrorRegistration(ctx, reg)
	s.publishRegistrationEvent(ctx, eventTypeForStatus(input.Status), reg.ID.String(), reg.OpportunityID.String(), userIDString(reg.UserID))
	return store.RegistrationFromModel(reg), nil
}

func (s *signupService) updateFallbackStatus(ctx context.Context, doc *store.Registration, input *StatusUpdateInput) (*store.Registration, error) {
	if input.Status == doc.Status {
		if input.Message != nil {
			doc.Message = *input.Message
			if err := s.fallback.PutRegistration(ctx, doc); err != nil {
				return nil, errors.Wrap(err, "failed to update fallback registration")
			}
		}
		return doc, nil
	}
	if !doc.Status.CanTransitionTo(input.Status) {
		return nil, errors.Wrapf(ErrIllegalTransition, "%s -> %s", doc.Status, input.Status)
	}

	if input.Status == models.StatusCompleted {
		if input.VolunteeredHours == nil || *input.VolunteeredHours < 0 {
			return nil, errors.Wrap(ErrValidation, "volunteered hours are required to complete a registration")
		}
		now := time.Now().UTC()
		doc.CompletedAt = &now
		doc.VolunteeredHours = input.VolunteeredHours
	}
	if input.Message != nil {
		doc.Message = *input.Message
	}
	doc.Status = input.Status
	if err := s.fallback.PutRegistration(ctx, doc); err != nil {
		return nil, errors.Wrap(err, "failed to update fallback registration")
	}

	switch input.Status {
	case models.StatusCompleted:
		if doc.UserID != "" {
			s.adjustFallbackProfile(ctx, doc.UserID, 0, *input.VolunteeredHours)
		}
	case models.StatusCancelled:
		s.releaseFallbackSeat(ctx, doc.OpportunityID)
		if doc.UserID != "" {
			s.adjustFallbackProfile(ctx, doc.UserID, -1, 0)
		}
	}

	s.publishRegistrationEvent(ctx, eventTypeForStatus(input.Status), doc.ID, doc.OpportunityID, doc.UserID)
	return doc, nil
}

func (s *signupService) CancelRegistration(ctx context.Context, id string) error {
	reg, doc, err := s.resolveRegistration(ctx, id)
	if err != nil {
		return err
	}

	if reg != nil {
		active := !reg.Status.IsTerminal()
		if err := s.repo.DeleteRegistration(ctx, reg.ID); err != nil && err != repository.ErrNotFound {
			return errors.Wrap(err, "failed to delete registration")
		}
		s.unmirrorRegistration(ctx, reg.ID.String())
		if active {
			if err := s.repo.ReleaseSpot(ctx, reg.OpportunityID); err != nil {
				logrus.WithError(err).WithField("opportunity_id", reg.OpportunityID).
					Warn("Failed to release seat after cancellation")
			}
			if reg.UserID != nil {
				if err := s.repo.AdjustUserAggregates(ctx, *reg.UserID, -1, 0); err != nil {
					logrus.WithError(err).WithField("user_id", *reg.UserID).
						Warn("Failed to update user aggregates")
				}
			}
			s.remirrorOpportunity(ctx, reg.OpportunityID)
		}
		s.publishRegistrationEvent(ctx, messaging.EventRegistrationCancelled, reg.ID.String(), reg.OpportunityID.String(), userIDString(reg.UserID))
		return nil
	}

	active := !doc.Status.IsTerminal()
	if err := s.fallback.DeleteRegistration(ctx, doc.ID); err != nil {
		return errors.Wrap(err, "failed to delete fallback registration")
	}
	if active {
		s.releaseFallbackSeat(ctx, doc.OpportunityID)
		if doc.UserID != "" {
			s.adjustFallbackProfile(ctx, doc.UserID, -1, 0)
		}
	}
	s.publishRegistrationEvent(ctx, messaging.EventRegistrationCancelled, doc.ID, doc.OpportunityID, doc.UserID)
	return nil
}

func (s *signupService) Stats(ctx context.Context) (*models.Stats, error) {
	stats, err := s.repo.CollectStats(ctx)
	if err == nil {
		s.cacheStatsSnapshot(ctx, stats)
		return stats, nil
	}
	logrus.WithError(err).Warn("Primary stats query failed, serving snapshot")

	if raw, getErr := s.kv.Get(ctx, statsSnapshotKey); getErr == nil {
		var cached models.Stats
		if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil {
			return &cached, nil
		}
	}
	return s.fallbackStats(ctx)
}

// RefreshStatsSnapshot recomputes stats from the primary store and caches the
// snapshot for degraded-mode reads. Used by the background worker.
func (s *signupService) RefreshStatsSnapshot(ctx context.Context) (*models.Stats, error) {
	stats, err := s.repo.CollectStats(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to collect stats")
	}
	s.cacheStatsSnapshot(ctx, stats)
	return stats, nil
}

func (s *signupService) cacheStatsSnapshot(ctx context.Context, stats *models.Stats) {
	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := s.kv.Set(ctx, statsSnapshotKey, string(raw)); err != nil {
		logrus.WithError(err).Warn("Failed to cache stats snapshot")
	}
}

// fallbackStats recomputes stats from fallback documents. Legacy aliases of
// mirrored rows may be counted twice; this is a degraded-mode estimate.
func (s *signupService) fallbackStats(ctx context.Context) (*models.Stats, error) {
	opps, err := s.fallback.ListOpportunities(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list fallback opportunities")
	}
	regs, err := s.fallback.ListRegistrations(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list fallback registrations")
	}
	profiles, err := s.fallback.ListUserProfiles(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list fallback profiles")
	}

	stats := &models.Stats{
		TotalOpportunities: len(opps),
		TotalRegistrations: len(regs),
		TotalUsers:         len(profiles),
	}
	for _, doc := range opps {
		stats.TotalSpots += doc.TotalSpots
		stats.AvailableSpots += doc.SpotsAvailable
	}
	stats.OccupiedSpots = stats.TotalSpots - stats.AvailableSpots
	for _, profile := range profiles {
		stats.TotalVolunteerHours += profile.TotalHours
	}
	return stats, nil
}

// SyncMirror rewrites the fallback copies of all primary records. Run
// periodically by the worker so mirror writes lost to transient failures
// eventually converge.
func (s *signupService) SyncMirror(ctx context.Context) error {
	opps, err := s.repo.ListOpportunities(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to list opportunities for mirror sync")
	}
	for _, opp := range opps {
		s.mirrorOpportunity(ctx, opp)
	}

	regs, err := s.repo.ListRegistrations(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to list registrations for mirror sync")
	}
	for _, reg := range regs {
		s.mirrorRegistration(ctx, reg)
	}
	return nil
}

func (s *signupService) CleanupFallback(ctx context.Context) (*CleanupResult, error) {
	result := &CleanupResult{}
	var err error
	if result.OpportunitiesRemoved, err = s.fallback.DeleteByPrefix(ctx, store.OpportunityPrefix); err != nil {
		return nil, errors.Wrap(err, "failed to clean up opportunities")
	}
	if result.RegistrationsRemoved, err = s.fallback.DeleteByPrefix(ctx, store.RegistrationPrefix); err != nil {
		return nil, errors.Wrap(err, "failed to clean up registrations")
	}
	if result.ProfilesRemoved, err = s.fallback.DeleteByPrefix(ctx, store.UserProfilePrefix); err != nil {
		return nil, errors.Wrap(err, "failed to clean up profiles")
	}
	return result, nil
}

// remirrorOpportunity refreshes the fallback copy after a primary-side seat
// counter change.
func (s *signupService) remirrorOpportunity(ctx context.Context, id uuid.UUID) {
	opp, err := s.repo.FindOpportunityByID(ctx, id)
	if err != nil {
		logrus.WithError(err).WithField("opportunity_id", id).
			Warn("Failed to reload opportunity for mirroring")
		return
	}
	s.mirrorOpportunity(ctx, opp)
}

func (s *signupService) releaseFallbackSeat(ctx context.Context, opportunityID string) {
	doc, err := s.fallback.GetOpportunity(ctx, opportunityID)
	if err != nil {
		if err != store.ErrNotFound {
			logrus.WithError(err).WithField("opportunity_id", opportunityID).
				Warn("Failed to load fallback opportunity for seat release")
		}
		return
	}
	if doc.SpotsAvailable < doc.TotalSpots {
		doc.SpotsAvailable++
	}
	if err := s.fallback.PutOpportunity(ctx, doc); err != nil {
		logrus.WithError(err).WithField("opportunity_id", opportunityID).
			Warn("Failed to release fallback seat")
	}
}

func (s *signupService) adjustFallbackProfile(ctx context.Context, userID string, activitiesDelta int, hoursDelta float64) {
	profile, err := s.fallback.GetUserProfile(ctx, userID)
	if err != nil {
		if err != store.ErrNotFound {
			logrus.WithError(err).WithField("user_id", userID).
				Warn("Failed to load fallback user profile")
			return
		}
		profile = &store.UserProfile{UserID: userID}
	}
	profile.TotalActivities += activitiesDelta
	if profile.TotalActivities < 0 {
		profile.TotalActivities = 0
	}
	profile.TotalHours += hoursDelta
	if profile.TotalHours < 0 {
		profile.TotalHours = 0
	}
	profile.UpdatedAt = time.Now().UTC()
	if err := s.fallback.PutUserProfile(ctx, profile); err != nil {
		logrus.WithError(err).WithField("user_id", userID).
			Warn("Failed to update fallback user profile")
	}
}

func (s *signupService) removeFallbackRegistrationsFor(ctx context.Context, ids ...string) {
	keep := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			keep[id] = struct{}{}
		}
	}
	docs, err := s.fallback.ListRegistrations(ctx)
	if err != nil {
		logrus.WithError(err).Warn("Failed to list fallback registrations for cascade delete")
		return
	}
	for _, doc := range docs {
		if _, ok := keep[doc.OpportunityID]; !ok {
			continue
		}
		if err := s.fallback.DeleteRegistration(ctx, doc.ID); err != nil {
			logrus.WithError(err).WithField("registration_id", doc.ID).
				Warn("Failed to cascade delete fallback registration")
		}
	}
}

func (s *signupService) indexOpportunity(ctx context.Context, doc *store.Opportunity) {
	if err := s.es.IndexOpportunity(ctx, doc); err != nil {
		logrus.WithError(err).WithField("opportunity_id", doc.ID).
			Warn("Failed to index opportunity")
	}
}

func (s *signupService) deindexOpportunity(ctx context.Context, id string) {
	if err := s.es.DeleteOpportunity(ctx, id); err != nil {
		logrus.WithError(err).WithField("opportunity_id", id).
			Warn("Failed to remove opportunity from search index")
	}
}

func applyOpportunityUpdate(opp, input *models.Opportunity) {
	if input.TotalSpots != opp.TotalSpots && input.TotalSpots >= 0 {
		delta := input.TotalSpots - opp.TotalSpots
		opp.TotalSpots = input.TotalSpots
		opp.SpotsAvailable += delta
		if opp.SpotsAvailable < 0 {
			opp.SpotsAvailable = 0
		}
		if opp.SpotsAvailable > opp.TotalSpots {
			opp.SpotsAvailable = opp.TotalSpots
		}
	}
	opp.Title = coalesce(input.Title, opp.Title)
	opp.Organization = coalesce(input.Organization, opp.Organization)
	opp.OrganizerUnit = coalesce(input.OrganizerUnit, opp.OrganizerUnit)
	opp.Category = coalesce(input.Category, opp.Category)
	opp.Location = coalesce(input.Location, opp.Location)
	opp.Date = coalesce(input.Date, opp.Date)
	if input.SignupStartTime != nil {
		opp.SignupStartTime = input.SignupStartTime
	}
	if input.SignupEndTime != nil {
		opp.SignupEndTime = input.SignupEndTime
	}
	if input.ActivityStartTime != nil {
		opp.ActivityStartTime = input.ActivityStartTime
	}
	if input.ActivityEndTime != nil {
		opp.ActivityEndTime = input.ActivityEndTime
	}
	opp.LeaderName = coalesce(input.LeaderName, opp.LeaderName)
	opp.LeaderPhone = coalesce(input.LeaderPhone, opp.LeaderPhone)
	opp.Duration = coalesce(input.Duration, opp.Duration)
	opp.Description = coalesce(input.Description, opp.Description)
	opp.Requirements = coalesce(input.Requirements, opp.Requirements)
	opp.Image = coalesce(input.Image, opp.Image)
	opp.Tags = coalesce(input.Tags, opp.Tags)
}

func applyFallbackUpdate(doc *store.Opportunity, input *models.Opportunity) {
	if input.TotalSpots != doc.TotalSpots && input.TotalSpots >= 0 {
		delta := input.TotalSpots - doc.TotalSpots
		doc.TotalSpots = input.TotalSpots
		doc.SpotsAvailable += delta
		if doc.SpotsAvailable < 0 {
			doc.SpotsAvailable = 0
		}
		if doc.SpotsAvailable > doc.TotalSpots {
			doc.SpotsAvailable = doc.TotalSpots
		}
	}
	doc.Title = coalesce(input.Title, doc.Title)
	doc.Organization = coalesce(input.Organization, doc.Organization)
	doc.OrganizerUnit = coalesce(input.OrganizerUnit, doc.OrganizerUnit)
	doc.Category = coalesce(input.Category, doc.Category)
	doc.Location = coalesce(input.Location, doc.Location)
	doc.Date = coalesce(input.Date, doc.Date)
	doc.LeaderName = coalesce(input.LeaderName, doc.LeaderName)
	doc.LeaderPhone = coalesce(input.LeaderPhone, doc.LeaderPhone)
	doc.Duration = coalesce(input.Duration, doc.Duration)
	doc.Description = coalesce(input.Description, doc.Description)
	doc.Requirements = coalesce(input.Requirements, doc.Requirements)
	doc.Image = coalesce(input.Image, doc.Image)
	doc.Tags = coalesce(input.Tags, doc.Tags)
}

func coalesce(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func eventTypeForStatus(status models.RegistrationStatus) string {
	switch status {
	case models.StatusApproved:
		return messaging.EventRegistrationApproved
	case models.StatusCompleted:
		return messaging.EventRegistrationCompleted
	case models.StatusCancelled:
		return messaging.EventRegistrationCancelled
	default:
		return messaging.EventRegistrationCreated
	}
}

func userIDString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func derefLegacy(id *string) string {
	if id == nil {
		return ""
	}
	return *id
}
