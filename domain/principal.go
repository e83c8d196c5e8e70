// Package domain contains core concepts of the hub.
// This file defines Principal identities and their roles.
// No runtime, network, or storage logic should be added here.
package domain

type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

type Status string

const (
	StatusActive  Status = "active"
	StatusBlocked Status = "blocked"
)

// Principal is the authenticated identity bound to a connection.
// The hub only reads principals; they are owned by the identity store.
type Principal struct {
	ID           string `json:"_id"`
	Name         string `json:"name"`
	MembershipID string `json:"membershipId"`
	Avatar       string `json:"profilePicture,omitempty"`
	Role         Role   `json:"role"`
	Status       Status `json:"-"`
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Profile returns the public subset sent inside call and message events.
func (p Principal) Profile() Principal {
	return Principal{
		ID:           p.ID,
		Name:         p.Name,
		MembershipID: p.MembershipID,
		Avatar:       p.Avatar,
		Role:         p.Role,
	}
}
