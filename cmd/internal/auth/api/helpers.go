package authapi

import (
	"authsidecar/cmd/identity"
	"authsidecar/cmd/internal/auth/session"
)

func toUserResponse(a identity.Account) userResponse {
	return userResponse{
		ID:            a.ID,
		Email:         a.Email,
		EmailVerified: a.Verified,
		Name:          a.DisplayName,
	}
}

func toUserDetailResponse(a identity.Account) userDetailResponse {
	return userDetailResponse{
		userResponse: toUserResponse(a),
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func toSessionBriefResponse(s session.Session) sessionBriefResponse {
	return sessionBriefResponse{ID: s.ID, ExpiresAt: s.ExpiresAt}
}

func toSessionDetailResponse(s session.Session) sessionDetailResponse {
	return sessionDetailResponse{
		ID:        s.ID,
		UserID:    s.AccountID,
		ExpiresAt: s.ExpiresAt,
		CreatedAt: s.CreatedAt,
	}
}
