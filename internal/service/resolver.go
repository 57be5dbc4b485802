package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"example.com/volunteerhub/services/signup/internal/models"
	"example.com/volunteerhub/services/signup/internal/repository"
	"example.com/volunteerhub/services/signup/internal/store"
)

// resolvedOpportunity is the outcome of an identity lookup. Exactly one of
// Primary and Fallback is set on success; Primary wins when the record exists
// in both stores.
type resolvedOpportunity struct {
	Primary  *models.Opportunity
	Fallback *store.Opportunity
	// ExternalID is the identifier the caller used, kept for fallback-side
	// writes and mirror keys.
	ExternalID string
}

func isCanonicalID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// resolveOpportunity maps an external identifier to a record. Canonical UUIDs
// are looked up directly, anything else goes through the legacy id column.
// The fallback store is consulted when the primary row is missing or the
// primary store is unreachable.
func (s *signupService) resolveOpportunity(ctx context.Context, externalID string) (*resolvedOpportunity, error) {
	resolved := &resolvedOpportunity{ExternalID: externalID}

	var (
		opp *models.Opportunity
		err error
	)
	if isCanonicalID(externalID) {
		opp, err = s.repo.FindOpportunityByID(ctx, uuid.MustParse(externalID))
	} else {
		opp, err = s.repo.FindOpportunityByLegacyID(ctx, externalID)
	}
	if err == nil {
		resolved.Primary = opp
		return resolved, nil
	}
	if err != repository.ErrNotFound {
		logrus.WithError(err).WithField("opportunity_id", externalID).
			Warn("Primary lookup failed, trying fallback store")
	}

	doc, fbErr := s.fallback.GetOpportunity(ctx, externalID)
	if fbErr == nil {
		resolved.Fallback = doc
		return resolved, nil
	}
	if fbErr != store.ErrNotFound {
		logrus.WithError(fbErr).WithField("opportunity_id", externalID).
			Warn("Fallback lookup failed")
	}
	return nil, ErrNotFound
}

// resolveRegistration finds a registration by id in the primary store first,
// then the fallback store. Fallback-only registrations carry generated ids
// that never parse as UUIDs.
func (s *signupService) resolveRegistration(ctx context.Context, id string) (*models.Registration, *store.Registration, error) {
	if isCanonicalID(id) {
		reg, err := s.repo.FindRegistrationByID(ctx, uuid.MustParse(id))
		if err == nil {
			return reg, nil, nil
		}
		if err != repository.ErrNotFound {
			logrus.WithError(err).WithField("registration_id", id).
				Warn("Primary registration lookup failed, trying fallback store")
		}
	}

	doc, err := s.fallback.GetRegistration(ctx, id)
	if err == nil {
		return nil, doc, nil
	}
	if err != store.ErrNotFound {
		logrus.WithError(err).WithField("registration_id", id).
			Warn("Fallback registration lookup failed")
	}
	return nil, nil, ErrNotFound
}
