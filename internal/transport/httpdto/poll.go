package httpdto

// CreatePollRequest is used for POST /v1/polls
type CreatePollRequest struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	Options     []string `json:"options" binding:"required,min=2"`
}

// VoteRequest is used for POST /v1/polls/:id/vote
type VoteRequest struct {
	OptionID string `json:"option_id" binding:"required"`
}
