package authapi

import "time"

type signupRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Name     *string `json:"name"`
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID            string  `json:"id"`
	Email         string  `json:"email"`
	EmailVerified bool    `json:"emailVerified"`
	Name          *string `json:"name"`
}

type userDetailResponse struct {
	userResponse
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type sessionBriefResponse struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type sessionDetailResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

type signupResponse struct {
	Success bool         `json:"success"`
	User    userResponse `json:"user"`
}

type signinResponse struct {
	Success bool                 `json:"success"`
	User    userResponse         `json:"user"`
	Session sessionBriefResponse `json:"session"`
}

type sessionResponse struct {
	Session sessionDetailResponse `json:"session"`
	User    userDetailResponse    `json:"user"`
}

type successResponse struct {
	Success bool `json:"success"`
}
