package httpdto

// SubscribeRequest is used for POST /v1/subscribers
type SubscribeRequest struct {
	Email string `json:"email" binding:"required"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
