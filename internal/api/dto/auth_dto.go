package dto

// LoginRequest payload for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest payload for POST /auth/register. TenantID binds the
// account to an invited tenant.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	TenantID string `json:"tenant_id,omitempty"`
}

// RecoverPasswordRequest payload for POST /auth/recover-password.
type RecoverPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest payload for POST /auth/reset-password.
type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// UpdateProfileRequest payload for PATCH /profile.
type UpdateProfileRequest struct {
	FullName *string `json:"full_name"`
	Role     *string `json:"role"`
}
