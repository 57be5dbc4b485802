package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"example.com/volunteerhub/services/signup/internal/service"
)

// StatsHandler handles stats and admin maintenance requests
type StatsHandler struct {
	service service.SignupService
	log     *logrus.Logger
}

// NewStatsHandler creates a new StatsHandler instance
func NewStatsHandler(svc service.SignupService, log *logrus.Logger) *StatsHandler {
	return &StatsHandler{
		service: svc,
		log:     log,
	}
}

// GetStats handles aggregate stats requests
func (h *StatsHandler) GetStats(c *gin.Context) {
	stats, err := h.service.Stats(c)
	if err != nil {
		h.log.WithError(err).Error("Failed to collect stats")
		respondError(c, http.StatusInternalServerError, "Failed to collect stats")
		return
	}
	respondData(c, http.StatusOK, stats)
}

// Cleanup handles admin removal of fallback store records
func (h *StatsHandler) Cleanup(c *gin.Context) {
	result, err := h.service.CleanupFallback(c)
	if err != nil {
		h.log.WithError(err).Error("Failed to clean up fallback store")
		respondError(c, http.StatusInternalServerError, "Failed to clean up fallback store")
		return
	}
	h.log.WithFields(logrus.Fields{
		"opportunities": result.OpportunitiesRemoved,
		"registrations": result.RegistrationsRemoved,
		"profiles":      result.ProfilesRemoved,
	}).Info("Fallback store cleaned up")
	respondData(c, http.StatusOK, result)
}
