package service

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"example.com/volunteerhub/services/signup/internal/models"
	"example.com/volunteerhub/services/signup/internal/store"
)

// mergedOpportunities produces a single deduplicated listing across the
// primary and fallback stores. Primary rows win on conflict; fallback docs
// only fill descriptive fields the primary left blank. Seat counters always
// come from the primary row when one exists.
func (s *signupService) mergedOpportunities(ctx context.Context) ([]*store.Opportunity, error) {
	var (
		primary  []*models.Opportunity
		fallback []*store.Opportunity
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.repo.ListOpportunities(gctx)
		if err != nil {
			logrus.WithError(err).Warn("Primary opportunity listing failed, serving fallback only")
			return nil
		}
		primary = rows
		return nil
	})
	g.Go(func() error {
		docs, err := s.fallback.ListOpportunities(gctx)
		if err != nil {
			logrus.WithError(err).Warn("Fallback opportunity listing failed")
			return nil
		}
		fallback = docs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if primary == nil && fallback == nil {
		return []*store.Opportunity{}, nil
	}

	merged := make([]*store.Opportunity, 0, len(primary)+len(fallback))
	byID := make(map[string]*store.Opportunity, len(primary))
	// Legacy ids alias their canonical row so the same opportunity mirrored
	// under its old key is not listed twice.
	alias := make(map[string]string)

	for _, opp := range primary {
		doc := store.OpportunityFromModel(opp, opp.ID.String())
		merged = append(merged, doc)
		byID[doc.ID] = doc
		if opp.LegacyID != nil && *opp.LegacyID != "" {
			alias[*opp.LegacyID] = doc.ID
		}
	}

	for _, doc := range fallback {
		canonical := doc.ID
		if target, ok := alias[canonical]; ok {
			canonical = target
		}
		if existing, ok := byID[canonical]; ok {
			fillOpportunityGaps(existing, doc)
			continue
		}
		merged = append(merged, doc)
		byID[doc.ID] = doc
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})
	return merged, nil
}

// fillOpportunityGaps copies descriptive fields from the fallback doc into
// the primary-derived doc where the primary value is empty. Seat counters are
// never taken from the fallback copy.
func fillOpportunityGaps(dst, src *store.Opportunity) {
	if dst.Title == "" {
		dst.Title = src.Title
	}
	if dst.Organization == "" {
		dst.Organization = src.Organization
	}
	if dst.OrganizerUnit == "" {
		dst.OrganizerUnit = src.OrganizerUnit
	}
	if dst.Category == "" {
		dst.Category = src.Category
	}
	if dst.Location == "" {
		dst.Location = src.Location
	}
	if dst.Date == "" {
		dst.Date = src.Date
	}
	if dst.SignupStartTime == nil {
		dst.SignupStartTime = src.SignupStartTime
	}
	if dst.SignupEndTime == nil {
		dst.SignupEndTime = src.SignupEndTime
	}
	if dst.ActivityStartTime == nil {
		dst.ActivityStartTime = src.ActivityStartTime
	}
	if dst.ActivityEndTime == nil {
		dst.ActivityEndTime = src.ActivityEndTime
	}
	if dst.LeaderName == "" {
		dst.LeaderName = src.LeaderName
	}
	if dst.LeaderPhone == "" {
		dst.LeaderPhone = src.LeaderPhone
	}
	if dst.Duration == "" {
		dst.Duration = src.Duration
	}
	if dst.Description == "" {
		dst.Description = src.Description
	}
	if dst.Requirements == "" {
		dst.Requirements = src.Requirements
	}
	if dst.Image == "" {
		dst.Image = src.Image
	}
	if dst.Tags == "" {
		dst.Tags = src.Tags
	}
}

// mergedRegistrations combines registrations from both stores. Primary rows
// are mirrored to the fallback store under the same id, so fallback docs with
// an id already seen are skipped.
func (s *signupService) mergedRegistrations(ctx context.Context, primary []*models.Registration, fallback []*store.Registration) []*store.Registration {
	merged := make([]*store.Registration, 0, len(primary)+len(fallback))
	seen := make(map[string]struct{}, len(primary))

	for _, reg := range primary {
		doc := store.RegistrationFromModel(reg)
		merged = append(merged, doc)
		seen[doc.ID] = struct{}{}
	}
	for _, doc := range fallback {
		if _, ok := seen[doc.ID]; ok {
			continue
		}
		merged = append(merged, doc)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].RegisteredAt.After(merged[j].RegisteredAt)
	})
	return merged
}
