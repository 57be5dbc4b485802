package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"example.com/volunteerhub/services/signup/internal/models"
	"example.com/volunteerhub/services/signup/internal/service"
)

// OpportunityHandler handles opportunity-related requests
type OpportunityHandler struct {
	service service.SignupService
	log     *logrus.Logger
}

// NewOpportunityHandler creates a new OpportunityHandler instance
func NewOpportunityHandler(svc service.SignupService, log *logrus.Logger) *OpportunityHandler {
	return &OpportunityHandler{
		service: svc,
		log:     log,
	}
}

// opportunityRequest is the JSON payload for create requests. Timestamps
// arrive as RFC 3339 strings.
type opportunityRequest struct {
	LegacyID          string  `json:"legacyId"`
	Title             string  `json:"title" binding:"required"`
	Organization      string  `json:"organization" binding:"required"`
	OrganizerUnit     string  `json:"organizerUnit"`
	Category          string  `json:"category"`
	Location          string  `json:"location"`
	Date              string  `json:"date"`
	SignupStartTime   *string `json:"signupStartTime"`
	SignupEndTime     *string `json:"signupEndTime"`
	ActivityStartTime *string `json:"activityStartTime"`
	ActivityEndTime   *string `json:"activityEndTime"`
	LeaderName        string  `json:"leaderName"`
	LeaderPhone       string  `json:"leaderPhone"`
	Duration          string  `json:"duration"`
	TotalSpots        int     `json:"totalSpots"`
	Description       string  `json:"description"`
	Requirements      string  `json:"requirements"`
	Image             string  `json:"image"`
	Tags              string  `json:"tags"`
}

func (r *opportunityRequest) toModel() *models.Opportunity {
	opp := &models.Opportunity{
		Title:             r.Title,
		Organization:      r.Organization,
		OrganizerUnit:     r.OrganizerUnit,
		Category:          r.Category,
		Location:          r.Location,
		Date:              r.Date,
		SignupStartTime:   parseTime(r.SignupStartTime),
		SignupEndTime:     parseTime(r.SignupEndTime),
		ActivityStartTime: parseTime(r.ActivityStartTime),
		ActivityEndTime:   parseTime(r.ActivityEndTime),
		LeaderName:        r.LeaderName,
		LeaderPhone:       r.LeaderPhone,
		Duration:          r.Duration,
		TotalSpots:        r.TotalSpots,
		Description:       r.Description,
		Requirements:      r.Requirements,
		Image:             r.Image,
		Tags:              r.Tags,
	}
	if r.LegacyID != "" {
		legacy := r.LegacyID
		opp.LegacyID = &legacy
	}
	return opp
}

// opportunityUpdateRequest mirrors opportunityRequest without the required
// bindings; updates are partial and empty fields keep their stored values.
type opportunityUpdateRequest struct {
	LegacyID          string  `json:"legacyId"`
	Title             string  `json:"title"`
	Organization      string  `json:"organization"`
	OrganizerUnit     string  `json:"organizerUnit"`
	Category          string  `json:"category"`
	Location          string  `json:"location"`
	Date              string  `json:"date"`
	SignupStartTime   *string `json:"signupStartTime"`
	SignupEndTime     *string `json:"signupEndTime"`
	ActivityStartTime *string `json:"activityStartTime"`
	ActivityEndTime   *string `json:"activityEndTime"`
	LeaderName        string  `json:"leaderName"`
	LeaderPhone       string  `json:"leaderPhone"`
	Duration          string  `json:"duration"`
	TotalSpots        int     `json:"totalSpots"`
	Description       string  `json:"description"`
	Requirements      string  `json:"requirements"`
	Image             string  `json:"image"`
	Tags              string  `json:"tags"`
}

func parseTime(value *string) *time.Time {
	if value == nil || *value == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, *value)
	if err != nil {
		return nil
	}
	return &t
}

// ListOpportunities handles listing all opportunities
func (h *OpportunityHandler) ListOpportunities(c *gin.Context) {
	opportunities, err := h.service.ListOpportunities(c)
	if err != nil {
		h.log.WithError(err).Error("Failed to list opportunities")
		respondError(c, http.StatusInternalServerError, "Failed to list opportunities")
		return
	}
	respondData(c, http.StatusOK, opportunities)
}

// SearchOpportunities handles keyword search over opportunities
func (h *OpportunityHandler) SearchOpportunities(c *gin.Context) {
	opportunities, err := h.service.SearchOpportunities(c, c.Query("q"))
	if err != nil {
		h.log.WithError(err).Error("Failed to search opportunities")
		respondError(c, http.StatusInternalServerError, "Failed to search opportunities")
		return
	}
	respondData(c, http.StatusOK, opportunities)
}

// GetOpportunity handles opportunity retrieval by canonical or legacy id
func (h *OpportunityHandler) GetOpportunity(c *gin.Context) {
	opportunity, err := h.service.GetOpportunity(c, c.Param("id"))
	if err != nil {
		respondError(c, statusForError(err), clientMessage(err, "Failed to get opportunity"))
		return
	}
	respondData(c, http.StatusOK, opportunity)
}

// CreateOpportunity handles opportunity creation
func (h *OpportunityHandler) CreateOpportunity(c *gin.Context) {
	var req opportunityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.WithError(err).Warn("Invalid opportunity format")
		respondError(c, http.StatusBadRequest, "Invalid opportunity format")
		return
	}

	opportunity, err := h.service.CreateOpportunity(c, req.toModel())
	if err != nil {
		h.log.WithError(err).Error("Failed to create opportunity")
		respondError(c, statusForError(err), clientMessage(err, "Failed to create opportunity"))
		return
	}
	respondData(c, http.StatusCreated, opportunity)
}

// UpdateOpportunity handles opportunity updates
func (h *OpportunityHandler) UpdateOpportunity(c *gin.Context) {
	var req opportunityUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.WithError(err).Warn("Invalid opportunity format")
		respondError(c, http.StatusBadRequest, "Invalid opportunity format")
		return
	}

	full := opportunityRequest(req)
	opportunity, err := h.service.UpdateOpportunity(c, c.Param("id"), full.toModel())
	if err != nil {
		h.log.WithError(err).Error("Failed to update opportunity")
		respondError(c, statusForError(err), clientMessage(err, "Failed to update opportunity"))
		return
	}
	respondData(c, http.StatusOK, opportunity)
}

// DeleteOpportunity handles opportunity deletion
func (h *OpportunityHandler) DeleteOpportunity(c *gin.Context) {
	if err := h.service.DeleteOpportunity(c, c.Param("id")); err != nil {
		h.log.WithError(err).Error("Failed to delete opportunity")
		respondError(c, statusForError(err), clientMessage(err, "Failed to delete opportunity"))
		return
	}
	respondData(c, http.StatusOK, gin.H{"deleted": true})
}
