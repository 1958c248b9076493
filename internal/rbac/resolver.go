package rbac

import "strings"

// CapabilitySeparator delimits the segments of a capability path such as
// "jobs:read:all".
const CapabilitySeparator = ":"

// Resolve reports whether doc grants the capability.
//
// A top-level all: true grants everything. Otherwise the path is walked from
// the root: a missing key denies, a boolean ends the walk with its value even
// when segments remain, and a group descends. Action keys may themselves
// contain the separator ("read:all"), so at each level the longest run of
// remaining segments present as a key wins. A path that runs out on a group
// denies.
func Resolve(doc Document, capability string) bool {
	if doc.SuperGrant() {
		return true
	}
	if capability == "" {
		return false
	}
	segments := strings.Split(capability, CapabilitySeparator)
	current := Group(doc)
	for len(segments) > 0 {
		node, consumed := lookup(current, segments)
		if consumed == 0 {
			return false
		}
		segments = segments[consumed:]
		switch n := node.(type) {
		case Leaf:
			return bool(n)
		case Group:
			current = n
		default:
			return false
		}
	}
	return false
}

func lookup(g Group, segments []string) (Node, int) {
	for n := len(segments); n > 0; n-- {
		key := strings.Join(segments[:n], CapabilitySeparator)
		if node, ok := g[key]; ok {
			return node, n
		}
	}
	return nil, 0
}
