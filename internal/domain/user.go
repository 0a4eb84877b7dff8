package domain

import "time"

// Profile is the persisted per-identity record holding role and display name.
type Profile struct {
	ID        string    `json:"id"`
	TenantID  *TenantID `json:"tenant_id"`
	Role      string    `json:"role"`
	FullName  string    `json:"full_name"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProfileUpdate is a partial profile change. Nil fields are left untouched.
type ProfileUpdate struct {
	FullName *string `json:"full_name,omitempty"`
	Role     *Role   `json:"role,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u ProfileUpdate) Empty() bool {
	return u.FullName == nil && u.Role == nil
}

// AuthenticatedUser is an identity augmented with its resolved role.
type AuthenticatedUser struct {
	Identity
	Role     Role   `json:"role"`
	FullName string `json:"full_name"`
}

// NewAuthenticatedUser merges an identity with a profile's role and name.
func NewAuthenticatedUser(identity Identity, role string, fullName string) *AuthenticatedUser {
	return &AuthenticatedUser{
		Identity: identity,
		Role:     ResolveRole(role),
		FullName: fullName,
	}
}

// Apply merges a confirmed profile update into a copy of the user.
func (u AuthenticatedUser) Apply(update ProfileUpdate) *AuthenticatedUser {
	if update.FullName != nil {
		u.FullName = *update.FullName
	}
	if update.Role != nil {
		u.Role = ResolveRole(string(*update.Role))
	}
	return &u
}

// HasRole reports whether the user's role is among required. A nil user or
// an empty required set never matches.
func (u *AuthenticatedUser) HasRole(required ...Role) bool {
	if u == nil || u.Role == "" {
		return false
	}
	for _, r := range required {
		if r == u.Role {
			return true
		}
	}
	return false
}
