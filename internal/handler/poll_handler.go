package handler

import (
	"net/http"

	"civic-polls/internal/services"
	"civic-polls/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type PollHandler struct {
	service *services.PollService
}

func NewPollHandler(service *services.PollService) *PollHandler {
	return &PollHandler{service: service}
}

func (h *PollHandler) List(c *gin.Context) {
	polls, err := h.service.ListPublic(c.Request.Context(), c.Query("category"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(polls))
}

// Get is public; a session, when present, adds the caller's vote and lets
// creators and admins see unapproved polls.
func (h *PollHandler) Get(c *gin.Context) {
	pollID, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	viewer := services.Viewer{IsAdmin: services.IsAdminContext(ctx)}
	viewer.UserID, _ = services.UserIDFromContext(ctx)

	view, err := h.service.Get(ctx, pollID, viewer)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(view))
}

func (h *PollHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req httpdto.CreatePollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "title and at least two options are required")
		return
	}

	view, err := h.service.Create(c.Request.Context(), userID, services.CreatePollInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Options:     req.Options,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(view))
}

func (h *PollHandler) Vote(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	pollID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req httpdto.VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "option_id is required")
		return
	}

	optionID, err := uuid.Parse(req.OptionID)
	if err != nil {
		badRequest(c, "invalid option_id")
		return
	}

	res, err := h.service.Vote(c.Request.Context(), userID, pollID, optionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(res))
}

// Withdraw deactivates the caller's own poll.
func (h *PollHandler) Withdraw(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	pollID, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Withdraw(c.Request.Context(), userID, pollID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}
