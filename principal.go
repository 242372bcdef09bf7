package session

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Principal is the authenticated identity as known to the client. Its JSON
// form is the persisted session blob.
type Principal struct {
	ID          string `json:"id,omitempty"`
	Email       string `json:"email"`
	FullName    string `json:"fullName,omitempty"`
	Roles       []Role `json:"roles"`
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType,omitempty"`
}

// RoleSet returns the principal roles as a set.
func (p *Principal) RoleSet() RoleSet {
	if p == nil {
		return RoleSet{}
	}
	return NewRoleSet(p.Roles...)
}

// HasRole checks a single role
func (p *Principal) HasRole(role Role) bool {
	return p.RoleSet().Has(role)
}

// HasAnyRole is true iff the principal holds at least one of required.
func (p *Principal) HasAnyRole(required ...Role) bool {
	if p == nil {
		return false
	}
	return p.RoleSet().Intersects(required...)
}

// IsAuthenticated reports a usable principal: a credential and at least one role.
func (p *Principal) IsAuthenticated() bool {
	return p != nil && p.AccessToken != "" && len(p.RoleSet()) > 0
}

// DisplayName falls back to the email when no full name was provided.
func (p *Principal) DisplayName() string {
	if p == nil {
		return ""
	}
	if strings.TrimSpace(p.FullName) != "" {
		return p.FullName
	}
	return p.Email
}

// Clone returns a deep copy.
func (p *Principal) Clone() *Principal {
	if p == nil {
		return nil
	}
	c := *p
	c.Roles = append([]Role(nil), p.Roles...)
	return &c
}

func (p Principal) String() string {
	return fmt.Sprintf("email=%s name=%q roles=%v", p.Email, p.FullName, p.Roles)
}

// Authorize is the single capability check used by the guard, the
// navigation filter and the CLI: true iff principal roles intersect required.
func Authorize(p *Principal, required []Role) bool {
	return p.HasAnyRole(required...)
}

// MarshalPrincipal encodes the persisted blob.
func MarshalPrincipal(p *Principal) ([]byte, error) {
	return json.Marshal(p)
}

// UnmarshalPrincipal decodes the persisted blob.
func UnmarshalPrincipal(data []byte) (*Principal, error) {
	var p Principal
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode principal: %w", err)
	}
	return &p, nil
}
