package dto

// ProfileResponse is the caller's own account.
type ProfileResponse struct {
	ID     uint   `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Gender string `json:"gender"`
	Role   string `json:"role"`
}

// UpdateProfileRequest changes the editable profile fields. Email and role are managed elsewhere.
type UpdateProfileRequest struct {
	Name   string `json:"name" validate:"required,min=2,max=255"`
	Gender string `json:"gender" validate:"omitempty,max=32"`
}
