package httpdto

// RequestCodeRequest is used for POST /v1/auth/otp
type RequestCodeRequest struct {
	Phone    string `json:"phone" binding:"required"`
	FullName string `json:"full_name,omitempty"`
}

// CodeSentResponse is returned after a code was issued
type CodeSentResponse struct {
	Phone     string `json:"phone"`
	ExpiresIn int64  `json:"expires_in"`
}

// VerifyCodeRequest is used for POST /v1/auth/verify
type VerifyCodeRequest struct {
	Phone string `json:"phone" binding:"required"`
	Code  string `json:"code" binding:"required,len=6,numeric"`
}

// RefreshRequest is used for POST /v1/auth/refresh
type RefreshRequest struct {
	SessionID    string `json:"session_id" binding:"required"`
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type AuthResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int64       `json:"expires_in"`
	SessionID    string      `json:"session_id"`
	IsNewUser    bool        `json:"is_new_user"`
	User         AuthUserDTO `json:"user"`
}

// AuthUserDTO is the session view of the signed-in user
type AuthUserDTO struct {
	ID                 string   `json:"id"`
	Phone              string   `json:"phone"`
	Email              string   `json:"email,omitempty"`
	FullName           string   `json:"full_name"`
	VerificationStatus string   `json:"verification_status"`
	Roles              []string `json:"roles"`
}
