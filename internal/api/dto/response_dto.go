package dto

import (
	"time"

	"github.com/fluxo-erp/gateway/internal/domain"
	"github.com/fluxo-erp/gateway/internal/notify"
)

// Envelope wraps every session response with the pending notifications and
// navigation.
type Envelope struct {
	Data          any                   `json:"data"`
	Error         *ErrorBody            `json:"error,omitempty"`
	Notifications []notify.Notification `json:"notifications"`
	RedirectTo    *string               `json:"redirect_to"`
}

// ErrorBody mirrors the error middleware payload.
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// UserResponse is the public shape of the authenticated user.
type UserResponse struct {
	ID       string      `json:"id"`
	Email    string      `json:"email"`
	Role     domain.Role `json:"role"`
	FullName string      `json:"full_name"`
}

// NewUserResponse returns nil for a nil user.
func NewUserResponse(user *domain.AuthenticatedUser) *UserResponse {
	if user == nil {
		return nil
	}
	return &UserResponse{ID: user.ID, Email: user.Email, Role: user.Role, FullName: user.FullName}
}

// TenantResponse is the public shape of the active tenant.
type TenantResponse struct {
	ID   domain.TenantID `json:"id"`
	Name string          `json:"name"`
}

// NewTenantResponse returns nil for a nil tenant.
func NewTenantResponse(tenant *domain.Tenant) *TenantResponse {
	if tenant == nil {
		return nil
	}
	return &TenantResponse{ID: tenant.ID, Name: tenant.Name}
}

// SessionResponse answers GET /auth/session.
type SessionResponse struct {
	User          *UserResponse   `json:"user"`
	Tenant        *TenantResponse `json:"tenant"`
	Loading       bool            `json:"loading"`
	TenantLoading bool            `json:"tenant_loading"`
	ExpiresAt     *time.Time      `json:"expires_at,omitempty"`
}

// ViewResponse is a rendered guarded view.
type ViewResponse struct {
	View          string                `json:"view"`
	User          *UserResponse         `json:"user"`
	Tenant        *TenantResponse       `json:"tenant"`
	Welcome       bool                  `json:"welcome"`
	Notifications []notify.Notification `json:"notifications"`
}

// GuardResponse answers a navigation that did not render.
type GuardResponse struct {
	Status        string                `json:"status"`
	RedirectTo    *string               `json:"redirect_to"`
	Notifications []notify.Notification `json:"notifications"`
}

// PermissionResponse answers GET /permissions/:permission.
type PermissionResponse struct {
	Permission string `json:"permission"`
	Allowed    bool   `json:"allowed"`
}
