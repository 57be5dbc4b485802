package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"example.com/volunteerhub/services/signup/internal/models"
	"example.com/volunteerhub/services/signup/internal/service"
)

// RegistrationHandler handles registration-related requests
type RegistrationHandler struct {
	service service.SignupService
	log     *logrus.Logger
}

// NewRegistrationHandler creates a new RegistrationHandler instance
func NewRegistrationHandler(svc service.SignupService, log *logrus.Logger) *RegistrationHandler {
	return &RegistrationHandler{
		service: svc,
		log:     log,
	}
}

type registrationRequest struct {
	OpportunityID string `json:"opportunityId" binding:"required"`
	UserID        string `json:"userId"`
	Name          string `json:"name" binding:"required"`
	Email         string `json:"email" binding:"required"`
	Phone         string `json:"phone" binding:"required"`
	Message       string `json:"message"`
}

type statusUpdateRequest struct {
	Status           string   `json:"status" binding:"required"`
	Message          *string  `json:"message"`
	VolunteeredHours *float64 `json:"volunteeredHours"`
}

// Register handles volunteer signup requests
func (h *RegistrationHandler) Register(c *gin.Context) {
	var req registrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.WithError(err).Warn("Invalid registration format")
		respondError(c, http.StatusBadRequest, "Invalid registration format")
		return
	}

	registration, err := h.service.Register(c, &service.RegistrationInput{
		OpportunityID: req.OpportunityID,
		UserID:        req.UserID,
		Name:          req.Name,
		Email:         req.Email,
		Phone:         req.Phone,
		Message:       req.Message,
	})
	if err != nil {
		h.log.WithError(err).WithField("opportunity_id", req.OpportunityID).
			Warn("Registration rejected")
		respondError(c, statusForError(err), clientMessage(err, "Failed to register"))
		return
	}
	respondData(c, http.StatusCreated, registration)
}

// ListRegistrations handles listing all registrations
func (h *RegistrationHandler) ListRegistrations(c *gin.Context) {
	registrations, err := h.service.ListRegistrations(c)
	if err != nil {
		h.log.WithError(err).Error("Failed to list registrations")
		respondError(c, http.StatusInternalServerError, "Failed to list registrations")
		return
	}
	respondData(c, http.StatusOK, registrations)
}

// ListOpportunityRegistrations handles listing registrations for one opportunity
func (h *RegistrationHandler) ListOpportunityRegistrations(c *gin.Context) {
	registrations, err := h.service.ListOpportunityRegistrations(c, c.Param("id"))
	if err != nil {
		respondError(c, statusForError(err), clientMessage(err, "Failed to list registrations"))
		return
	}
	respondData(c, http.StatusOK, registrations)
}

// ListUserRegistrations handles listing the calling user's registrations
func (h *RegistrationHandler) ListUserRegistrations(c *gin.Context) {
	userID := c.Query("user_id")
	email := c.Query("email")

	registrations, err := h.service.ListUserRegistrations(c, userID, email)
	if err != nil {
		respondError(c, statusForError(err), clientMessage(err, "Failed to list registrations"))
		return
	}
	respondData(c, http.StatusOK, registrations)
}

// UpdateRegistrationStatus handles registration status transitions
func (h *RegistrationHandler) UpdateRegistrationStatus(c *gin.Context) {
	var req statusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.WithError(err).Warn("Invalid status update format")
		respondError(c, http.StatusBadRequest, "Invalid status update format")
		return
	}

	registration, err := h.service.UpdateRegistrationStatus(c, c.Param("id"), &service.StatusUpdateInput{
		Status:           models.RegistrationStatus(req.Status),
		Message:          req.Message,
		VolunteeredHours: req.VolunteeredHours,
	})
	if err != nil {
		h.log.WithError(err).WithField("registration_id", c.Param("id")).
			Warn("Status update rejected")
		respondError(c, statusForError(err), clientMessage(err, "Failed to update registration"))
		return
	}
	respondData(c, http.StatusOK, registration)
}

// CancelRegistration handles registration cancellation
func (h *RegistrationHandler) CancelRegistration(c *gin.Context) {
	if err := h.service.CancelRegistration(c, c.Param("id")); err != nil {
		respondError(c, statusForError(err), clientMessage(err, "Failed to cancel registration"))
		return
	}
	respondData(c, http.StatusOK, gin.H{"cancelled": true})
}
