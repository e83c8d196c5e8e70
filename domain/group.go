// Package domain contains core concepts of the hub.
// This file defines Group visibility and the access rule shared by
// joins, sends and group calls.
package domain

import (
	"time"

	"github.com/samber/lo"
)

type GroupMember struct {
	UserID   string    `json:"user"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

// GroupInfo is the slice of a group the hub needs for authorization.
// Groups themselves are owned by the surrounding CRUD layer.
type GroupInfo struct {
	ID       string        `json:"_id"`
	Name     string        `json:"name"`
	IsPublic bool          `json:"isPublic"`
	Members  []GroupMember `json:"members"`
}

func (g GroupInfo) HasMember(userID string) bool {
	return lo.ContainsBy(g.Members, func(m GroupMember) bool {
		return m.UserID == userID
	})
}

// CanAccess is the single group authorization rule: the group is public,
// or the principal is a listed member, or an administrator.
func (g GroupInfo) CanAccess(p Principal) bool {
	return g.IsPublic || g.HasMember(p.ID) || p.IsAdmin()
}

// MemberIDs returns every member id except the given one, for push fan-out.
func (g GroupInfo) MemberIDs(except string) []string {
	ids := lo.Map(g.Members, func(m GroupMember, _ int) string { return m.UserID })
	return lo.Without(ids, except)
}
