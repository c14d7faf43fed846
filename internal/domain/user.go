// Package domain contains the meeting aggregate and the pure transitions over it.
package domain

import (
	"strings"
)

const (
	MaxIdentityIDLen   = 64
	MaxDisplayNameLen  = 64
	defaultDisplayName = "guest"
)

var (
	ErrDisplayNameTooLong = Validation("display name too long")
	ErrIdentityIDEmpty    = Validation("identity id empty")
	ErrIdentityIDTooLong  = Validation("identity id too long")
)

type IdentityID string

// Identity is an authenticated principal. It is owned by the user store;
// the meeting layer only reads it.
type Identity struct {
	ID          IdentityID `json:"id"`
	DisplayName string     `json:"displayName"`
	IsActive    bool       `json:"isActive"`
}

// NewIdentity is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewIdentity(id, displayName string) (Identity, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Identity{}, ErrIdentityIDEmpty
	}
	if len(id) > MaxIdentityIDLen {
		return Identity{}, ErrIdentityIDTooLong
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = defaultDisplayName
	}
	if len(displayName) > MaxDisplayNameLen {
		return Identity{}, ErrDisplayNameTooLong
	}
	return Identity{ID: IdentityID(id), DisplayName: displayName, IsActive: true}, nil
}
