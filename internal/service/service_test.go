package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"example.com/volunteerhub/services/signup/internal/kvstore"
	"example.com/volunteerhub/services/signup/internal/models"
	"example.com/volunteerhub/services/signup/internal/repository"
	"example.com/volunteerhub/services/signup/internal/store"
)

var errPrimaryDown = errors.New("connection refused")

// fakeRepo is an in-memory Repository with the same conditional-update
// semantics as the SQL implementation, so concurrency properties of the
// seat counter can be exercised without a database.
type fakeRepo struct {
	mu            sync.Mutex
	opportunities map[uuid.UUID]*models.Opportunity
	registrations map[uuid.UUID]*models.Registration
	profiles      map[uuid.UUID]*models.UserProfile
	down          bool
	transactions  int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		opportunities: make(map[uuid.UUID]*models.Opportunity),
		registrations: make(map[uuid.UUID]*models.Registration),
		profiles:      make(map[uuid.UUID]*models.UserProfile),
	}
}

func copyOpportunity(opp *models.Opportunity) *models.Opportunity {
	cp := *opp
	return &cp
}

func copyRegistration(reg *models.Registration) *models.Registration {
	cp := *reg
	return &cp
}

func (f *fakeRepo) WithTransaction(ctx context.Context, fn func(ctx context.Context, txRepo repository.Repository) error) error {
	f.mu.Lock()
	f.transactions++
	f.mu.Unlock()
	return fn(ctx, f)
}

func (f *fakeRepo) CreateOpportunity(ctx context.Context, opp *models.Opportunity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return errPrimaryDown
	}
	f.opportunities[opp.ID] = copyOpportunity(opp)
	return nil
}

func (f *fakeRepo) UpdateOpportunity(ctx context.Context, opp *models.Opportunity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return errPrimaryDown
	}
	f.opportunities[opp.ID] = copyOpportunity(opp)
	return nil
}

func (f *fakeRepo) FindOpportunityByID(ctx context.Context, id uuid.UUID) (*models.Opportunity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errPrimaryDown
	}
	opp, ok := f.opportunities[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyOpportunity(opp), nil
}

func (f *fakeRepo) FindOpportunityByLegacyID(ctx context.Context, legacyID string) (*models.Opportunity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errPrimaryDown
	}
	for _, opp := range f.opportunities {
		if opp.LegacyID != nil && *opp.LegacyID == legacyID {
			return copyOpportunity(opp), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeRepo) ListOpportunities(ctx context.Context) ([]*models.Opportunity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errPrimaryDown
	}
	out := make([]*models.Opportunity, 0, len(f.opportunities))
	for _, opp := range f.opportunities {
		out = append(out, copyOpportunity(opp))
	}
	return out, nil
}

func (f *fakeRepo) DeleteOpportunity(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return errPrimaryDown
	}
	if _, ok := f.opportunities[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.opportunities, id)
	for regID, reg := range f.registrations {
		if reg.OpportunityID == id {
			delete(f.registrations, regID)
		}
	}
	return nil
}

func (f *fakeRepo) ReserveSpot(ctx context.Context, id uuid.UUID, expected int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return errPrimaryDown
	}
	if expected <= 0 {
		return repository.ErrCapacityExhausted
	}
	opp, ok := f.opportunities[id]
	if !ok || opp.SpotsAvailable != expected {
		return repository.ErrCapacityExhausted
	}
	opp.SpotsAvailable--
	return nil
}

func (f *fakeRepo) ReleaseSpot(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return errPrimaryDown
	}
	opp, ok := f.opportunities[id]
	if !ok {
		return repository.ErrNotFound
	}
	if opp.SpotsAvailable < opp.TotalSpots {
		opp.SpotsAvailable++
	}
	return nil
}

func (f *fakeRepo) CreateRegistration(ctx context.Context, reg *models.Registration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return errPrimaryDown
	}
	if reg.UserID != nil {
		for _, existing := range f.registrations {
			if existing.OpportunityID == reg.OpportunityID &&
				existing.UserID != nil && *existing.UserID == *reg.UserID &&
				existing.Status != models.StatusCancelled {
				return repository.ErrDuplicateKey
			}
		}
	}
	f.registrations[reg.ID] = copyRegistration(reg)
	return nil
}

func (f *fakeRepo) UpdateRegistration(ctx context.Context, reg *models.Registration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return errPrimaryDown
	}
	f.registrations[reg.ID] = copyRegistration(reg)
	return nil
}

func (f *fakeRepo) DeleteRegistration(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return errPrimaryDown
	}
	if _, ok := f.registrations[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.registrations, id)
	return nil
}

func (f *fakeRepo) FindRegistrationByID(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errPrimaryDown
	}
	reg, ok := f.registrations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyRegistration(reg), nil
}

func (f *fakeRepo) FindActiveRegistration(ctx context.Context, opportunityID, userID uuid.UUID) (*models.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errPrimaryDown
	}
	for _, reg := range f.registrations {
		if reg.OpportunityID == opportunityID && reg.UserID != nil &&
			*reg.UserID == userID && reg.Status != models.StatusCancelled {
			return copyRegistration(reg), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeRepo) ListRegistrations(ctx context.Context) ([]*models.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errPrimaryDown
	}
	out := make([]*models.Registration, 0, len(f.registrations))
	for _, reg := range f.registrations {
		out = append(out, copyRegistration(reg))
	}
	return out, nil
}

func (f *fakeRepo) ListRegistrationsByOpportunity(ctx context.Context, opportunityID uuid.UUID) ([]*models.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errPrimaryDown
	}
	var out []*models.Registration
	for _, reg := range f.registrations {
		if reg.OpportunityID == opportunityID {
			out = append(out, copyRegistration(reg))
		}
	}
	return out, nil
}

func (f *fakeRepo) ListRegistrationsForUser(ctx context.Context, userID *uuid.UUID, email string) ([]*models.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errPrimaryDown
	}
	var out []*models.Registration
	for _, reg := range f.registrations {
		if (userID != nil && reg.UserID != nil && *reg.UserID == *userID) ||
			(email != "" && reg.Email == email) {
			out = append(out, copyRegistration(reg))
		}
	}
	return out, nil
}

func (f *fakeRepo) FindUserProfile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errPrimaryDown
	}
	profile, ok := f.profiles[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *profile
	return &cp, nil
}

func (f *fakeRepo) AdjustUserAggregates(ctx context.Context, userID uuid.UUID, activitiesDelta int, hoursDelta float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return errPrimaryDown
	}
	profile, ok := f.profiles[userID]
	if !ok {
		profile = &models.UserProfile{UserID: userID}
		f.profiles[userID] = profile
	}
	profile.TotalActivities += activitiesDelta
	if profile.TotalActivities < 0 {
		profile.TotalActivities = 0
	}
	profile.TotalHours += hoursDelta
	if profile.TotalHours < 0 {
		profile.TotalHours = 0
	}
	return nil
}

func (f *fakeRepo) CollectStats(ctx context.Context) (*models.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errPrimaryDown
	}
	stats := &models.Stats{
		TotalOpportunities: len(f.opportunities),
		TotalRegistrations: len(f.registrations),
		TotalUsers:         len(f.profiles),
	}
	for _, opp := range f.opportunities {
		stats.TotalSpots += opp.TotalSpots
		stats.AvailableSpots += opp.SpotsAvailable
	}
	stats.OccupiedSpots = stats.TotalSpots - stats.AvailableSpots
	for _, profile := range f.profiles {
		stats.TotalVolunteerHours += profile.TotalHours
	}
	return stats, nil
}

// fakeKV is an in-memory kvstore.Client.
type fakeKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string]string)}
}

func (f *fakeKV) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.data[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (f *fakeKV) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *fakeKV) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

func (f *fakeKV) ScanPrefix(ctx context.Context, prefix string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string)
	for key, value := range f.data {
		if strings.HasPrefix(key, prefix) {
			out[key] = value
		}
	}
	return out, nil
}

func (f *fakeKV) Close() error { return nil }

// noopBus drops registration events.
type noopBus struct{}

func (noopBus) SendMessage(ctx context.Context, body interface{}, sessionID string) error { return nil }
func (noopBus) Close() error                                                              { return nil }

var _ kvstore.Client = (*fakeKV)(nil)

func newTestService(repo *fakeRepo, kv *fakeKV) SignupService {
	return NewSignupService(repo, store.NewFallbackRepository(kv), kv, noopBus{}, nil)
}

func seedOpportunity(t *testing.T, repo *fakeRepo, total int) *models.Opportunity {
	t.Helper()
	opp := &models.Opportunity{
		ID:             uuid.New(),
		Title:          "Beach Cleanup",
		Organization:   "Green Coast",
		TotalSpots:     total,
		SpotsAvailable: total,
	}
	require.NoError(t, repo.CreateOpportunity(context.Background(), opp))
	return opp
}

func registration(oppID, userID string) *RegistrationInput {
	return &RegistrationInput{
		OpportunityID: oppID,
		UserID:        userID,
		Name:          "Alex Volunteer",
		Email:         "alex@example.com",
		Phone:         "555-0100",
	}
}

func TestRegisterReservesSeat(t *testing.T) {
	repo := newFakeRepo()
	kv := newFakeKV()
	svc := newTestService(repo, kv)
	opp := seedOpportunity(t, repo, 3)

	reg, err := svc.Register(context.Background(), registration(opp.ID.String(), uuid.NewString()))
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, reg.Status)
	require.Equal(t, opp.ID.String(), reg.OpportunityID)

	stored, err := repo.FindOpportunityByID(context.Background(), opp.ID)
	require.NoError(t, err)
	require.Equal(t, 2, stored.SpotsAvailable)

	// Mirror copy reflects the new counter.
	fallback := store.NewFallbackRepository(kv)
	doc, err := fallback.GetOpportunity(context.Background(), opp.ID.String())
	require.NoError(t, err)
	require.Equal(t, 2, doc.SpotsAvailable)
}

func TestRegisterRejectsMissingFields(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeKV())

	_, err := svc.Register(context.Background(), &RegistrationInput{OpportunityID: "x", Name: "A"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestCreateOpportunityAcceptsZeroSpots(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeKV())

	// An announcement-only listing with no capacity is allowed; only a
	// negative count is rejected. Signups against it fail immediately.
	doc, err := svc.CreateOpportunity(context.Background(), &models.Opportunity{
		Title:        "Charity Gala",
		Organization: "City Shelter",
		TotalSpots:   0,
	})
	require.NoError(t, err)
	require.Equal(t, 0, doc.TotalSpots)
	require.Equal(t, 0, doc.SpotsAvailable)

	_, err = svc.Register(context.Background(), registration(doc.ID, uuid.NewString()))
	require.ErrorIs(t, err, ErrCapacityExhausted)

	_, err = svc.CreateOpportunity(context.Background(), &models.Opportunity{
		Title:        "Bad Listing",
		Organization: "City Shelter",
		TotalSpots:   -1,
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestRegisterRejectsWhenFull(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeKV())
	opp := seedOpportunity(t, repo, 0)

	_, err := svc.Register(context.Background(), registration(opp.ID.String(), uuid.NewString()))
	require.ErrorIs(t, err, ErrCapacityExhausted)

	regs, err := repo.ListRegistrations(context.Background())
	require.NoError(t, err)
	require.Empty(t, regs)
}

func TestRegisterDuplicateLeavesCapacityUntouched(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeKV())
	opp := seedOpportunity(t, repo, 5)
	userID := uuid.NewString()

	_, err := svc.Register(context.Background(), registration(opp.ID.String(), userID))
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), registration(opp.ID.String(), userID))
	require.ErrorIs(t, err, ErrDuplicateRegistration)

	stored, err := repo.FindOpportunityByID(context.Background(), opp.ID)
	require.NoError(t, err)
	require.Equal(t, 4, stored.SpotsAvailable)
}

func TestRegisterCancelRegisterAgain(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeKV())
	opp := seedOpportunity(t, repo, 2)
	userID := uuid.NewString()

	reg, err := svc.Register(context.Background(), registration(opp.ID.String(), userID))
	require.NoError(t, err)

	require.NoError(t, svc.CancelRegistration(context.Background(), reg.ID))

	stored, err := repo.FindOpportunityByID(context.Background(), opp.ID)
	require.NoError(t, err)
	require.Equal(t, 2, stored.SpotsAvailable)

	_, err = svc.Register(context.Background(), registration(opp.ID.String(), userID))
	require.NoError(t, err)
}

func TestRegisterByLegacyID(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeKV())
	legacy := "opp-1042"
	opp := &models.Opportunity{
		ID:             uuid.New(),
		LegacyID:       &legacy,
		Title:          "Food Drive",
		Organization:   "City Shelter",
		TotalSpots:     4,
		SpotsAvailable: 4,
	}
	require.NoError(t, repo.CreateOpportunity(context.Background(), opp))

	reg, err := svc.Register(context.Background(), registration(legacy, uuid.NewString()))
	require.NoError(t, err)
	require.Equal(t, opp.ID.String(), reg.OpportunityID)

	stored, err := repo.FindOpportunityByID(context.Background(), opp.ID)
	require.NoError(t, err)
	require.Equal(t, 3, stored.SpotsAvailable)
}

func TestConcurrentRegistrationsNeverOversell(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeKV())
	const seats = 5
	const attempts = 20
	opp := seedOpportunity(t, repo, seats)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Register(context.Background(), registration(opp.ID.String(), uuid.NewString()))
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrCapacityExhausted) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	stored, err := repo.FindOpportunityByID(context.Background(), opp.ID)
	require.NoError(t, err)
	require.GreaterOrEqual(t, stored.SpotsAvailable, 0)
	require.LessOrEqual(t, successes, seats)
	require.Equal(t, seats-successes, stored.SpotsAvailable)

	// Lost races must roll their insert back.
	regs, err := repo.ListRegistrations(context.Background())
	require.NoError(t, err)
	require.Len(t, regs, successes)
}

func TestUpdateRegistrationStatusRejectsIllegalTransition(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeKV())
	opp := seedOpportunity(t, repo, 3)

	reg, err := svc.Register(context.Background(), registration(opp.ID.String(), uuid.NewString()))
	require.NoError(t, err)

	hours := 4.0
	_, err = svc.UpdateRegistrationStatus(context.Background(), reg.ID, &StatusUpdateInput{
		Status:           models.StatusCompleted,
		VolunteeredHours: &hours,
	})
	require.NoError(t, err)

	_, err = svc.UpdateRegistrationStatus(context.Background(), reg.ID, &StatusUpdateInput{
		Status: models.StatusApproved,
	})
	require.ErrorIs(t, err, ErrIllegalTransition)

	_, err = svc.UpdateRegistrationStatus(context.Background(), reg.ID, &StatusUpdateInput{
		Status: models.StatusCancelled,
	})
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestCompleteRegistrationRequiresHours(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeKV())
	opp := seedOpportunity(t, repo, 3)

	reg, err := svc.Register(context.Background(), registration(opp.ID.String(), uuid.NewString()))
	require.NoError(t, err)

	_, err = svc.UpdateRegistrationStatus(context.Background(), reg.ID, &StatusUpdateInput{
		Status: models.StatusCompleted,
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestCompleteRegistrationCreditsHours(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeKV())
	opp := seedOpportunity(t, repo, 3)
	userID := uuid.New()

	reg, err := svc.Register(context.Background(), registration(opp.ID.String(), userID.String()))
	require.NoError(t, err)

	hours := 2.5
	updated, err := svc.UpdateRegistrationStatus(context.Background(), reg.ID, &StatusUpdateInput{
		Status:           models.StatusCompleted,
		VolunteeredHours: &hours,
	})
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, updated.Status)
	require.NotNil(t, updated.CompletedAt)
	require.Equal(t, hours, *updated.VolunteeredHours)

	profile, err := repo.FindUserProfile(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, 1, profile.TotalActivities)
	require.Equal(t, hours, profile.TotalHours)

	// Completing does not touch the seat counter; only cancellation releases.
	stored, err := repo.FindOpportunityByID(context.Background(), opp.ID)
	require.NoError(t, err)
	require.Equal(t, 2, stored.SpotsAvailable)
}

func TestCancelReleasesSeatOnce(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeKV())
	opp := seedOpportunity(t, repo, 3)
	userID := uuid.New()

	reg, err := svc.Register(context.Background(), registration(opp.ID.String(), userID.String()))
	require.NoError(t, err)

	_, err = svc.UpdateRegistrationStatus(context.Background(), reg.ID, &StatusUpdateInput{
		Status: models.StatusCancelled,
	})
	require.NoError(t, err)

	stored, err := repo.FindOpportunityByID(context.Background(), opp.ID)
	require.NoError(t, err)
	require.Equal(t, 3, stored.SpotsAvailable)

	// Deleting the already-cancelled registration must not release again.
	require.NoError(t, svc.CancelRegistration(context.Background(), reg.ID))

	stored, err = repo.FindOpportunityByID(context.Background(), opp.ID)
	require.NoError(t, err)
	require.Equal(t, 3, stored.SpotsAvailable)

	profile, err := repo.FindUserProfile(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, 0, profile.TotalActivities)
}

func TestCancelMissingRegistrationReturnsNotFound(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeKV())

	err := svc.CancelRegistration(context.Background(), uuid.NewString())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRegisterFallbackOnlyOpportunity(t *testing.T) {
	repo := newFakeRepo()
	kv := newFakeKV()
	svc := newTestService(repo, kv)
	fallback := store.NewFallbackRepository(kv)

	require.NoError(t, fallback.PutOpportunity(context.Background(), &store.Opportunity{
		ID:             "legacy-77",
		Title:          "Park Patrol",
		Organization:   "Parks Dept",
		TotalSpots:     2,
		SpotsAvailable: 2,
	}))

	reg, err := svc.Register(context.Background(), registration("legacy-77", "user-abc"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(reg.ID, "reg_"))
	require.Equal(t, models.StatusPending, reg.Status)

	doc, err := fallback.GetOpportunity(context.Background(), "legacy-77")
	require.NoError(t, err)
	require.Equal(t, 1, doc.SpotsAvailable)
}

func TestFallbackRegistrationHasNoDuplicateGuard(t *testing.T) {
	repo := newFakeRepo()
	kv := newFakeKV()
	svc := newTestService(repo, kv)
	fallback := store.NewFallbackRepository(kv)

	require.NoError(t, fallback.PutOpportunity(context.Background(), &store.Opportunity{
		ID:             "legacy-88",
		Title:          "River Watch",
		Organization:   "Waterkeepers",
		TotalSpots:     5,
		SpotsAvailable: 5,
	}))

	first, err := svc.Register(context.Background(), registration("legacy-88", "user-dup"))
	require.NoError(t, err)
	second, err := svc.Register(context.Background(), registration("legacy-88", "user-dup"))
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	doc, err := fallback.GetOpportunity(context.Background(), "legacy-88")
	require.NoError(t, err)
	require.Equal(t, 3, doc.SpotsAvailable)
}

func TestGetOpportunityFallsBackWhenPrimaryDown(t *testing.T) {
	repo := newFakeRepo()
	kv := newFakeKV()
	svc := newTestService(repo, kv)
	opp := seedOpportunity(t, repo, 3)

	// Seed the mirror, then take the primary store down.
	require.NoError(t, store.NewFallbackRepository(kv).PutOpportunity(context.Background(),
		store.OpportunityFromModel(opp, opp.ID.String())))
	repo.down = true

	doc, err := svc.GetOpportunity(context.Background(), opp.ID.String())
	require.NoError(t, err)
	require.Equal(t, opp.ID.String(), doc.ID)
}

func TestStatsServesSnapshotWhenPrimaryDown(t *testing.T) {
	repo := newFakeRepo()
	kv := newFakeKV()
	svc := newTestService(repo, kv)
	seedOpportunity(t, repo, 10)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.TotalOpportunities)
	require.Equal(t, 10, stats.TotalSpots)

	repo.down = true
	cached, err := svc.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, stats.TotalOpportunities, cached.TotalOpportunities)
	require.Equal(t, stats.TotalSpots, cached.TotalSpots)
}

func TestCleanupFallbackCountsRemovals(t *testing.T) {
	repo := newFakeRepo()
	kv := newFakeKV()
	svc := newTestService(repo, kv)
	fallback := store.NewFallbackRepository(kv)

	require.NoError(t, fallback.PutOpportunity(context.Background(), &store.Opportunity{ID: "a"}))
	require.NoError(t, fallback.PutOpportunity(context.Background(), &store.Opportunity{ID: "b"}))
	require.NoError(t, fallback.PutRegistration(context.Background(), &store.Registration{ID: "reg_1"}))

	result, err := svc.CleanupFallback(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, result.OpportunitiesRemoved)
	require.Equal(t, 1, result.RegistrationsRemoved)
	require.Equal(t, 0, result.ProfilesRemoved)

	docs, err := fallback.ListOpportunities(context.Background())
	require.NoError(t, err)
	require.Empty(t, docs)
}

func TestDeleteOpportunityCascades(t *testing.T) {
	repo := newFakeRepo()
	kv := newFakeKV()
	svc := newTestService(repo, kv)
	opp := seedOpportunity(t, repo, 3)

	reg, err := svc.Register(context.Background(), registration(opp.ID.String(), uuid.NewString()))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteOpportunity(context.Background(), opp.ID.String()))

	_, err = svc.GetOpportunity(context.Background(), opp.ID.String())
	require.ErrorIs(t, err, ErrNotFound)

	regs, err := repo.ListRegistrations(context.Background())
	require.NoError(t, err)
	require.Empty(t, regs)

	// The row delete and the registration cascade run in one transaction.
	require.Equal(t, 1, repo.transactions)

	// The mirrored registration is gone too.
	_, err = store.NewFallbackRepository(kv).GetRegistration(context.Background(), reg.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}
