package httpdto

// ReviewRequest carries optional admin notes for a verification decision
type ReviewRequest struct {
	Notes string `json:"notes,omitempty"`
}

// AdminUserDTO is a row of the admin user list
type AdminUserDTO struct {
	ProfileDTO
	Roles   []string `json:"roles"`
	IsAdmin bool     `json:"is_admin"`
}
