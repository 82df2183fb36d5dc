package handler

import (
	"time"

	"civic-polls/internal/domain/profile"
	"civic-polls/internal/services"
	"civic-polls/internal/transport/httpdto"
)

func toAuthResponse(res services.AuthResponse) httpdto.AuthResponse {
	return httpdto.AuthResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresIn:    res.ExpiresIn,
		SessionID:    res.SessionID,
		IsNewUser:    res.IsNewUser,
		User:         toAuthUser(res.User),
	}
}

func toAuthUser(u services.UserInfo) httpdto.AuthUserDTO {
	return httpdto.AuthUserDTO{
		ID:                 u.ID,
		Phone:              u.Phone,
		Email:              u.Email,
		FullName:           u.FullName,
		VerificationStatus: u.VerificationStatus,
		Roles:              u.Roles,
	}
}

func toProfileDTO(p profile.Profile) httpdto.ProfileDTO {
	dto := httpdto.ProfileDTO{
		ID:                 p.ID.String(),
		FullName:           p.FullName,
		Phone:              p.Phone,
		Email:              p.Email.String,
		Location:           p.Location,
		Occupation:         p.Occupation,
		HeadshotURL:        p.HeadshotURL.String,
		PassportURL:        p.PassportURL.String,
		VerificationStatus: string(p.VerificationStatus),
		VerificationNotes:  p.VerificationNotes.String,
		CreatedAt:          p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          p.UpdatedAt.Format(time.RFC3339),
	}
	if p.ReviewedAt.Valid {
		at := p.ReviewedAt.Time.Format(time.RFC3339)
		dto.ReviewedAt = &at
	}
	return dto
}

func toProfileDTOs(profiles []profile.Profile) []httpdto.ProfileDTO {
	out := make([]httpdto.ProfileDTO, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, toProfileDTO(p))
	}
	return out
}
