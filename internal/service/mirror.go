package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"example.com/volunteerhub/services/signup/internal/messaging"
	"example.com/volunteerhub/services/signup/internal/models"
	"example.com/volunteerhub/services/signup/internal/store"
)

// mirrorOpportunity writes the fallback copy of a primary opportunity row.
// The doc is stored under the canonical id and, when the row carries one,
// under its legacy id as well so old clients keep resolving. Mirror failures
// are logged and never fail the request.
func (s *signupService) mirrorOpportunity(ctx context.Context, opp *models.Opportunity) {
	doc := store.OpportunityFromModel(opp, opp.ID.String())
	if err := s.fallback.PutOpportunity(ctx, doc); err != nil {
		logrus.WithError(err).WithField("opportunity_id", doc.ID).
			Warn("Failed to mirror opportunity to fallback store")
	}
	if opp.LegacyID != nil && *opp.LegacyID != "" {
		legacy := store.OpportunityFromModel(opp, *opp.LegacyID)
		if err := s.fallback.PutOpportunity(ctx, legacy); err != nil {
			logrus.WithError(err).WithField("opportunity_id", legacy.ID).
				Warn("Failed to mirror opportunity under legacy id")
		}
	}
}

func (s *signupService) unmirrorOpportunity(ctx context.Context, opp *models.Opportunity) {
	if err := s.fallback.DeleteOpportunity(ctx, opp.ID.String()); err != nil {
		logrus.WithError(err).WithField("opportunity_id", opp.ID).
			Warn("Failed to remove opportunity mirror")
	}
	if opp.LegacyID != nil && *opp.LegacyID != "" {
		if err := s.fallback.DeleteOpportunity(ctx, *opp.LegacyID); err != nil {
			logrus.WithError(err).WithField("opportunity_id", *opp.LegacyID).
				Warn("Failed to remove legacy opportunity mirror")
		}
	}
}

func (s *signupService) mirrorRegistration(ctx context.Context, reg *models.Registration) {
	doc := store.RegistrationFromModel(reg)
	if err := s.fallback.PutRegistration(ctx, doc); err != nil {
		logrus.WithError(err).WithField("registration_id", doc.ID).
			Warn("Failed to mirror registration to fallback store")
	}
}

func (s *signupService) unmirrorRegistration(ctx context.Context, id string) {
	if err := s.fallback.DeleteRegistration(ctx, id); err != nil {
		logrus.WithError(err).WithField("registration_id", id).
			Warn("Failed to remove registration mirror")
	}
}

// publishRegistrationEvent emits a best-effort notification for downstream
// consumers. Delivery failures are logged only.
func (s *signupService) publishRegistrationEvent(ctx context.Context, eventType, registrationID, opportunityID, userID string) {
	if s.bus == nil {
		return
	}
	event := messaging.RegistrationEvent{
		Type:           eventType,
		RegistrationID: registrationID,
		OpportunityID:  opportunityID,
		UserID:         userID,
		OccurredAt:     time.Now().UTC(),
	}
	if err := s.bus.SendMessage(ctx, event, opportunityID); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"event_type":      eventType,
			"registration_id": registrationID,
		}).Warn("Failed to publish registration event")
	}
}
