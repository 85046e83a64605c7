package client

import (
	"context"
)

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type RegisterRequest struct {
	Username    string  `json:"username"`
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	DisplayName string  `json:"displayName,omitempty"`
	Location    *string `json:"location,omitempty"`
	Occupation  *string `json:"occupation,omitempty"`
}

type Profile struct {
	ID                 string  `json:"id"`
	Username           string  `json:"username"`
	DisplayName        string  `json:"displayName"`
	Email              string  `json:"email"`
	Role               string  `json:"role"`
	Location           *string `json:"location,omitempty"`
	Occupation         *string `json:"occupation,omitempty"`
	ProfilePicturePath *string `json:"profilePicturePath,omitempty"`
}

// ProfileUpdate carries the fields to change; nil fields are left alone.
type ProfileUpdate struct {
	DisplayName        *string `json:"displayName,omitempty"`
	Location           *string `json:"location,omitempty"`
	Occupation         *string `json:"occupation,omitempty"`
	ProfilePicturePath *string `json:"profilePicturePath,omitempty"`
}

type PictureUpload struct {
	Key       string `json:"key"`
	UploadURL string `json:"uploadUrl"`
}

// Client is the accountkeeper API as seen by the CLI. Calls that need a
// bearer token take it explicitly; the caller owns the session.
type Client interface {
	Register(ctx context.Context, req RegisterRequest) (*TokenPair, error)
	Login(ctx context.Context, email, password string) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	VerifyEmail(ctx context.Context, identityID, token string) (string, error)
	GetProfile(ctx context.Context, id string) (*Profile, error)
	UpdateProfile(ctx context.Context, accessToken, id string, upd ProfileUpdate) (*Profile, error)
	PictureUpload(ctx context.Context, accessToken, id string) (*PictureUpload, error)
	DeleteUser(ctx context.Context, accessToken, id string) error
	Ping(ctx context.Context) error
}
