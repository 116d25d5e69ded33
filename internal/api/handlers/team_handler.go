package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/teamloop/teamloop-backend/internal/api/middleware"
	"github.com/teamloop/teamloop-backend/internal/service"
)

// TeamHandler handles team endpoints
type TeamHandler struct {
	teamService service.TeamService
}

type CreateTeamRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
}

type AddMemberRequest struct {
	UserID string `json:"userId" binding:"required"`
	Role   string `json:"role"`
}

type UpdateMemberRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// Create creates a team; the creator becomes its Owner.
func (h *TeamHandler) Create(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	var req CreateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	team, err := h.teamService.Create(c.Request.Context(), req.Name, req.Description, userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toTeamResponse(team))
}

// Get returns a team by id
func (h *TeamHandler) Get(c *gin.Context) {
	if _, ok := middleware.RequireUserID(c); !ok {
		return
	}

	team, err := h.teamService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toTeamResponse(team))
}

// List returns the teams the authenticated user belongs to
func (h *TeamHandler) List(c *gin.Context) {
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	teams, err := h.teamService.ListByUser(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	out := make([]TeamResponse, 0, len(teams))
	for _, t := range teams {
		out = append(out, toTeamResponse(t))
	}
	c.JSON(http.StatusOK, gin.H{"teams": out})
}

// AddMember adds a user to a team directly, bypassing the invitation flow.
// Duplicate membership is a conflict here, unlike invitation acceptance.
func (h *TeamHandler) AddMember(c *gin.Context) {
	if _, ok := middleware.RequireUserID(c); !ok {
		return
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Role == "" {
		req.Role = "Member"
	}

	member, err := h.teamService.AddMember(c.Request.Context(), c.Param("id"), req.UserID, req.Role)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toTeamMemberResponse(member))
}

// ListMembers returns the members of a team
func (h *TeamHandler) ListMembers(c *gin.Context) {
	if _, ok := middleware.RequireUserID(c); !ok {
		return
	}

	members, err := h.teamService.ListMembers(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	out := make([]TeamMemberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, toTeamMemberResponse(m))
	}
	c.JSON(http.StatusOK, gin.H{"members": out})
}

// UpdateMemberRole changes a member's role
func (h *TeamHandler) UpdateMemberRole(c *gin.Context) {
	if _, ok := middleware.RequireUserID(c); !ok {
		return
	}

	var req UpdateMemberRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.teamService.UpdateMemberRole(c.Request.Context(), c.Param("id"), c.Param("userId"), req.Role); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Member role updated"})
}

// RemoveMember removes a user from a team
func (h *TeamHandler) RemoveMember(c *gin.Context) {
	if _, ok := middleware.RequireUserID(c); !ok {
		return
	}

	if err := h.teamService.RemoveMember(c.Request.Context(), c.Param("id"), c.Param("userId")); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Member removed"})
}
