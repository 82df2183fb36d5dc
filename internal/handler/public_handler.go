package handler

import (
	"net/http"

	"civic-polls/internal/services"
	"civic-polls/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// PublicHandler serves the unauthenticated landing page endpoints.
type PublicHandler struct {
	subscribers *services.SubscriberService
	stats       *services.StatsService
}

func NewPublicHandler(subscribers *services.SubscriberService, stats *services.StatsService) *PublicHandler {
	return &PublicHandler{subscribers: subscribers, stats: stats}
}

func (h *PublicHandler) Subscribe(c *gin.Context) {
	var req httpdto.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Please enter a valid email address")
		return
	}
	msg, err := h.subscribers.Subscribe(c.Request.Context(), req.Email)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.MessageResponse{Message: msg}))
}

func (h *PublicHandler) Stats(c *gin.Context) {
	stats, err := h.stats.Public(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(stats))
}
