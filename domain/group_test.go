package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_CanAccess_Rules(t *testing.T) {
	req := require.New(t)

	private := GroupInfo{
		ID:      "g1",
		Members: []GroupMember{{UserID: "u1"}, {UserID: "u2"}},
	}
	public := GroupInfo{ID: "g2", IsPublic: true}

	member := Principal{ID: "u1", Role: RoleMember}
	outsider := Principal{ID: "u9", Role: RoleMember}
	admin := Principal{ID: "mod", Role: RoleAdmin}

	req.True(private.CanAccess(member))
	req.False(private.CanAccess(outsider))
	// Administrators bypass the membership check
	req.True(private.CanAccess(admin))
	// Public groups admit anyone
	req.True(public.CanAccess(outsider))
}

func Test_MemberIDs_Excludes_Given_Ids(t *testing.T) {
	req := require.New(t)

	g := GroupInfo{
		Members: []GroupMember{{UserID: "u1"}, {UserID: "u2"}, {UserID: "u3"}},
	}

	req.ElementsMatch([]string{"u2", "u3"}, g.MemberIDs("u1"))
	req.ElementsMatch([]string{"u1", "u2", "u3"}, g.MemberIDs(""))
}
