package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/teamloop/teamloop-backend/internal/api/middleware"
	"github.com/teamloop/teamloop-backend/internal/repository"
	"github.com/teamloop/teamloop-backend/internal/service"
)

// InvitationHandler handles invitation endpoints
type InvitationHandler struct {
	invitationService service.InvitationService
}

type CreateInvitationRequest struct {
	ReceiverID string `json:"receiverId" binding:"required"`
	TeamID     string `json:"teamId" binding:"required"`
	Message    string `json:"message"`
}

// Create sends a team invitation. The authenticated user is the sender.
func (h *InvitationHandler) Create(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req CreateInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inv, err := h.invitationService.Send(c.Request.Context(), userID, req.ReceiverID, req.TeamID, req.Message)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toInvitationResponse(inv))
}

// List returns invitations visible to the authenticated user, filtered by
// direction ("sent" or "received", default received) and optional status.
func (h *InvitationHandler) List(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	filter := repository.InvitationFilter{
		Status:   repository.InvitationStatus(c.Query("status")),
		TeamID:   c.Query("teamId"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "pageSize", 20),
		All:      c.Query("all") == "true",
	}
	if c.Query("direction") == "sent" {
		filter.SenderID = userID
	} else {
		filter.ReceiverID = userID
	}

	invitations, err := h.invitationService.List(c.Request.Context(), filter)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	out := make([]InvitationResponse, 0, len(invitations))
	for _, inv := range invitations {
		out = append(out, toInvitationResponse(inv))
	}
	c.JSON(http.StatusOK, gin.H{"invitations": out})
}

// Get returns a single invitation by id
func (h *InvitationHandler) Get(c *gin.Context) {
	if _, ok := middleware.RequireUserID(c); !ok {
		return
	}

	inv, err := h.invitationService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toInvitationResponse(inv))
}

// Accept marks an invitation accepted and joins the receiver to the team.
// Only the receiver may accept; accepting an already-decided invitation
// returns the invitation unchanged.
func (h *InvitationHandler) Accept(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	inv, err := h.invitationService.Accept(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toInvitationResponse(inv))
}

// Reject marks an invitation rejected. Only the receiver may reject.
func (h *InvitationHandler) Reject(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	inv, err := h.invitationService.Reject(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toInvitationResponse(inv))
}

// Delete removes an invitation. Only the sender or the receiver may delete.
func (h *InvitationHandler) Delete(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	if err := h.invitationService.Delete(c.Request.Context(), c.Param("id"), userID); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Invitation deleted"})
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
