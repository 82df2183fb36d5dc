package httpdto

// ProfileDTO is a profile as returned to its owner and to admins
type ProfileDTO struct {
	ID                 string  `json:"id"`
	FullName           string  `json:"full_name"`
	Phone              string  `json:"phone"`
	Email              string  `json:"email,omitempty"`
	Location           string  `json:"location"`
	Occupation         string  `json:"occupation"`
	HeadshotURL        string  `json:"headshot_url,omitempty"`
	PassportURL        string  `json:"passport_url,omitempty"`
	VerificationStatus string  `json:"verification_status"`
	VerificationNotes  string  `json:"verification_notes,omitempty"`
	ReviewedAt         *string `json:"reviewed_at,omitempty"`
	CreatedAt          string  `json:"created_at"`
	UpdatedAt          string  `json:"updated_at"`
}

// RegistrationForm is the multipart body of PUT /v1/profile. Files are read
// separately from the "headshot" and "passport" parts.
type RegistrationForm struct {
	FullName   string `form:"full_name" binding:"required"`
	Email      string `form:"email"`
	Location   string `form:"location"`
	Occupation string `form:"occupation"`
}
