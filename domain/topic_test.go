package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_PairID_Is_Order_Independent(t *testing.T) {
	req := require.New(t)

	req.Equal(PairID("u1", "u2"), PairID("u2", "u1"))
	req.Equal("u1:u2", PairID("u1", "u2"))
	req.Equal(Private("u2", "u1"), Private("u1", "u2"))
}

func Test_PairMembers_Roundtrip(t *testing.T) {
	req := require.New(t)

	a, b := PairMembers(PairID("zulu", "alpha"))
	req.Equal("alpha", a)
	req.Equal("zulu", b)
}

func Test_Topic_String_Is_Unique_Per_Variant(t *testing.T) {
	req := require.New(t)

	seen := map[string]struct{}{}
	for _, topic := range []Topic{
		Private("u1", "u2"),
		Group("u1:u2"),
		PrincipalTopic("u1"),
		Community(),
	} {
		_, dup := seen[topic.String()]
		req.False(dup, "topic key collision for %s", topic.String())
		seen[topic.String()] = struct{}{}
	}
}
