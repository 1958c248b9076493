package rbac

import "sort"

// Capabilities used by the HTTP surface.
const (
	CapJobsCreate       = "jobs:create"
	CapJobsReadAll      = "jobs:read:all"
	CapJobsReadTeam     = "jobs:read:team"
	CapJobsReadAssigned = "jobs:read:assigned"
	CapJobsUpdate       = "jobs:update"
	CapJobsDelete       = "jobs:delete"

	CapUsersCreate = "users:create"
	CapUsersRead   = "users:read"
	CapUsersUpdate = "users:update"
	CapUsersDelete = "users:delete"

	CapRolesCreate = "roles:create"
	CapRolesRead   = "roles:read"
	CapRolesUpdate = "roles:update"
	CapRolesDelete = "roles:delete"

	CapReportsRead = "reports:read"
)

// Vocabulary lists the capability groups and their actions seen in use. It is
// not enforced; documents may name anything.
var Vocabulary = map[string][]string{
	"jobs":          {"create", "read:all", "read:team", "read:assigned", "update", "delete"},
	"users":         {"create", "read", "update", "delete"},
	"roles":         {"create", "read", "update", "delete"},
	"maintenance":   {"create", "read", "update", "delete"},
	"tracking":      {"read", "start_journey", "end_journey", "log_gps", "checkin"},
	"job_types":     {"create", "read", "update", "delete"},
	"notifications": {"read", "send", "mark_read", "delete", "subscribe"},
	"reports":       {"read"},
	// Group-level flags carried by the bootstrap documents.
	"technician_tracking": nil,
	"checkin":             nil,
	"media_upload":        nil,
}

// KnownGroup reports whether group appears in Vocabulary.
func KnownGroup(group string) bool {
	_, ok := Vocabulary[group]
	return ok
}

// UnknownCapabilities lists document entries that fall outside Vocabulary,
// sorted. The super-grant key is always known.
func UnknownCapabilities(doc Document) []string {
	var unknown []string
	for group, node := range doc {
		if group == SuperGrantKey {
			continue
		}
		actions, ok := Vocabulary[group]
		if !ok {
			unknown = append(unknown, group)
			continue
		}
		nested, ok := node.(Group)
		if !ok {
			continue
		}
		known := make(map[string]struct{}, len(actions))
		for _, action := range actions {
			known[action] = struct{}{}
		}
		for action := range nested {
			if _, ok := known[action]; !ok {
				unknown = append(unknown, group+CapabilitySeparator+action)
			}
		}
	}
	sort.Strings(unknown)
	return unknown
}
