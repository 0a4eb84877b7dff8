package domain

import "time"

// TenantID identifies a tenant. The zero value means "no tenant".
type TenantID string

// IsZero reports whether the id is empty.
func (id TenantID) IsZero() bool {
	return id == ""
}

func (id TenantID) String() string {
	return string(id)
}

// Tenant is the organisation every row of the ERP is scoped to.
type Tenant struct {
	ID        TenantID  `json:"id"`
	Name      string    `json:"name"`
	UserID    *string   `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Account links an identity to its tenant. TenantID and Tenant are nil when
// the account row exists but the relation is missing.
type Account struct {
	IdentityID string
	TenantID   *TenantID
	Tenant     *Tenant
}
