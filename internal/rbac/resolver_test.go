package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func subjectWith(doc Document) *Subject {
	return &Subject{UserID: 1, Role: &Role{Name: "test", Permissions: doc}}
}

func TestSuperGrantDominates(t *testing.T) {
	docs := []Document{
		{SuperGrantKey: Leaf(true)},
		{SuperGrantKey: Leaf(true), "jobs": Leaf(false)},
		{SuperGrantKey: Leaf(true), "jobs": Group{"read:all": Leaf(false)}},
	}
	paths := []string{"jobs:read:all", "users:delete", "anything", "a:b:c:d", ""}
	for _, doc := range docs {
		for _, p := range paths {
			assert.True(t, IsAuthorized(subjectWith(doc), p), "doc=%v path=%q", doc, p)
		}
	}
}

func TestSuperGrantFalseIsNotAGrant(t *testing.T) {
	doc := Document{SuperGrantKey: Leaf(false)}
	assert.False(t, IsAuthorized(subjectWith(doc), "jobs:read:all"))
	assert.False(t, IsAuthorized(subjectWith(Document{SuperGrantKey: Group{}}), "jobs:read:all"))
}

func TestEmptyDocumentDenies(t *testing.T) {
	for _, p := range []string{"jobs", "jobs:read:all", "all", "", ":"} {
		assert.False(t, IsAuthorized(subjectWith(Document{}), p), p)
		assert.False(t, IsAuthorized(subjectWith(nil), p), p)
	}
}

func TestGroupBooleanShortcut(t *testing.T) {
	subject := subjectWith(Document{"jobs": Leaf(true)})
	assert.True(t, IsAuthorized(subject, "jobs:read:all"))
	assert.True(t, IsAuthorized(subject, "jobs:anything:else"))
	assert.True(t, IsAuthorized(subject, "jobs"))
}

func TestGroupFalseBlocksSubActions(t *testing.T) {
	subject := subjectWith(Document{"jobs": Leaf(false)})
	assert.False(t, IsAuthorized(subject, "jobs:read:all"))
	assert.False(t, IsAuthorized(subject, "jobs"))
}

func TestNestedExactMatch(t *testing.T) {
	subject := subjectWith(Document{"jobs": Group{"read:all": Leaf(true), "read:team": Leaf(false)}})
	assert.True(t, IsAuthorized(subject, "jobs:read:all"))
	assert.False(t, IsAuthorized(subject, "jobs:read:team"))
	assert.False(t, IsAuthorized(subject, "jobs:read:assigned"))
}

func TestNestedGroupsWalkSegmentBySegment(t *testing.T) {
	subject := subjectWith(Document{"jobs": Group{"read": Group{"all": Leaf(true), "team": Leaf(false)}}})
	assert.True(t, IsAuthorized(subject, "jobs:read:all"))
	assert.False(t, IsAuthorized(subject, "jobs:read:team"))
	assert.False(t, IsAuthorized(subject, "jobs:read"))
}

func TestLongestKeyWins(t *testing.T) {
	subject := subjectWith(Document{"jobs": Group{
		"read":     Group{"all": Leaf(false)},
		"read:all": Leaf(true),
	}})
	assert.True(t, IsAuthorized(subject, "jobs:read:all"))
}

func TestUnknownSegmentDenies(t *testing.T) {
	subject := subjectWith(Document{"jobs": Group{"read:all": Leaf(true)}})
	assert.False(t, IsAuthorized(subject, "maintenance:read"))
	assert.False(t, IsAuthorized(subject, "jobs:delete"))
}

func TestPathExhaustedOnGroupDenies(t *testing.T) {
	subject := subjectWith(Document{"jobs": Group{"read:all": Leaf(true)}})
	assert.False(t, IsAuthorized(subject, "jobs"))
}

func TestNoRoleOrNoSubjectDenies(t *testing.T) {
	assert.False(t, IsAuthorized(nil, "jobs:read:all"))
	assert.False(t, IsAuthorized(&Subject{UserID: 1}, "jobs:read:all"))
}

func TestSupervisorScenario(t *testing.T) {
	supervisor := subjectWith(Document{"jobs": Leaf(true), "reports": Group{"read": Leaf(true)}})
	assert.True(t, IsAuthorized(supervisor, "jobs:create"))
	assert.True(t, IsAuthorized(supervisor, "reports:read"))
	assert.False(t, IsAuthorized(supervisor, "reports:write"))
	assert.False(t, IsAuthorized(supervisor, "users:delete"))
}

func TestResolveIsCaseSensitive(t *testing.T) {
	subject := subjectWith(Document{"jobs": Leaf(true)})
	assert.False(t, IsAuthorized(subject, "Jobs:read"))
}
