package handler

import (
	"context"
	"net/http"

	"civic-polls/internal/services"
	"civic-polls/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminHandler serves the /v1/admin routes. Every route sits behind
// middleware.RequireAdmin.
type AdminHandler struct {
	polls         *services.PollService
	verifications *services.VerificationService
	users         *services.UserService
	stats         *services.StatsService
}

func NewAdminHandler(polls *services.PollService, verifications *services.VerificationService, users *services.UserService, stats *services.StatsService) *AdminHandler {
	return &AdminHandler{polls: polls, verifications: verifications, users: users, stats: stats}
}

func (h *AdminHandler) Dashboard(c *gin.Context) {
	d, err := h.stats.Dashboard(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(d))
}

func (h *AdminHandler) Analytics(c *gin.Context) {
	a, err := h.stats.Analytics(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(a))
}

func (h *AdminHandler) ListVerifications(c *gin.Context) {
	profiles, err := h.verifications.ListPending(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(toProfileDTOs(profiles)))
}

func (h *AdminHandler) ApproveVerification(c *gin.Context) {
	h.reviewVerification(c, h.verifications.Approve)
}

func (h *AdminHandler) RejectVerification(c *gin.Context) {
	h.reviewVerification(c, h.verifications.Reject)
}

func (h *AdminHandler) reviewVerification(c *gin.Context, review func(ctx context.Context, adminID, profileID uuid.UUID, notes string) error) {
	adminID, ok := currentUser(c)
	if !ok {
		return
	}
	profileID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req httpdto.ReviewRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request")
			return
		}
	}

	if err := review(c.Request.Context(), adminID, profileID, req.Notes); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *AdminHandler) ListPendingPolls(c *gin.Context) {
	polls, err := h.polls.ListPending(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(polls))
}

func (h *AdminHandler) ApprovePoll(c *gin.Context) {
	h.decidePoll(c, h.polls.Approve)
}

func (h *AdminHandler) RejectPoll(c *gin.Context) {
	h.decidePoll(c, h.polls.Reject)
}

func (h *AdminHandler) decidePoll(c *gin.Context, decide func(ctx context.Context, adminID, pollID uuid.UUID) error) {
	adminID, ok := currentUser(c)
	if !ok {
		return
	}
	pollID, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := decide(c.Request.Context(), adminID, pollID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context(), c.Query("search"))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]httpdto.AdminUserDTO, 0, len(users))
	for _, u := range users {
		out = append(out, httpdto.AdminUserDTO{
			ProfileDTO: toProfileDTO(u.Profile),
			Roles:      u.Roles,
			IsAdmin:    u.IsAdmin(),
		})
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(out))
}

func (h *AdminHandler) GrantAdmin(c *gin.Context) {
	h.changeRole(c, h.users.GrantAdmin, http.StatusCreated)
}

func (h *AdminHandler) RevokeAdmin(c *gin.Context) {
	h.changeRole(c, h.users.RevokeAdmin, http.StatusOK)
}

func (h *AdminHandler) changeRole(c *gin.Context, change func(ctx context.Context, actorID, userID uuid.UUID) error, status int) {
	actorID, ok := currentUser(c)
	if !ok {
		return
	}
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := change(c.Request.Context(), actorID, userID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(status, httpdto.NewSuccessResponse[any](nil))
}
