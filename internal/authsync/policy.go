package authsync

import (
	"slices"

	"github.com/felixgeelhaar/sessionbridge/internal/snapshot"
)

// ShouldUpdate decides whether local must be refreshed after another window
// announced incoming. It compares structure only, so the answer does not
// depend on the order events arrive in. An event without a client never
// triggers a refresh.
func ShouldUpdate(local, incoming *snapshot.Client) bool {
	if incoming == nil {
		return false
	}
	if local == nil {
		return true
	}
	if local.ID != incoming.ID {
		return true
	}
	if local.ActiveSessionID() != incoming.ActiveSessionID() {
		return true
	}
	return !sameSessionSet(local.SessionIDs(), incoming.SessionIDs())
}

func sameSessionSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	a = slices.Clone(a)
	b = slices.Clone(b)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}
