package models

import "time"

// Profile is the public view of an account, owned by the profile store and
// populated from identity events.
type Profile struct {
	ID                 string    `json:"id"`
	Username           string    `json:"username"`
	DisplayName        string    `json:"displayName"`
	Email              string    `json:"email"`
	Role               string    `json:"role"`
	Location           *string   `json:"location,omitempty"`
	Occupation         *string   `json:"occupation,omitempty"`
	ProfilePicturePath *string   `json:"profilePicturePath,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}
