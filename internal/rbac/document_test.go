package rbac

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocument(t *testing.T) {
	doc, err := ParseDocument([]byte(`{"jobs": {"read:all": true, "read:team": false}, "reports": true}`))
	require.NoError(t, err)
	require.Equal(t, Document{
		"jobs":    Group{"read:all": Leaf(true), "read:team": Leaf(false)},
		"reports": Leaf(true),
	}, doc)
}

func TestParseDocumentEmptyInputs(t *testing.T) {
	for _, in := range []string{"", "null", "  ", "{}"} {
		doc, err := ParseDocument([]byte(in))
		require.NoError(t, err, in)
		require.Empty(t, doc, in)
	}
}

func TestParseDocumentRejectsNonBooleanLeaves(t *testing.T) {
	cases := []string{
		TechnicianLegacyDocument,
		`{"jobs": 1}`,
		`{"jobs": null}`,
		`{"jobs": ["read"]}`,
		`{"jobs": {"read": "yes"}}`,
		`{"": true}`,
		`[true]`,
		`true`,
		`{"jobs": tru}`,
	}
	for _, in := range cases {
		_, err := ParseDocument([]byte(in))
		require.ErrorIs(t, err, ErrInvalidDocument, in)
	}
}

func TestParseDocumentDepthLimit(t *testing.T) {
	nest := func(levels int) string {
		return strings.Repeat(`{"a":`, levels) + "true" + strings.Repeat("}", levels)
	}
	_, err := ParseDocument([]byte(nest(MaxDepth)))
	require.NoError(t, err)

	_, err = ParseDocument([]byte(nest(MaxDepth + 1)))
	require.ErrorIs(t, err, ErrInvalidDocument)
}

func TestLoadDocumentDropsInvalidEntries(t *testing.T) {
	doc, dropped := LoadDocument([]byte(TechnicianLegacyDocument))
	require.Equal(t, []string{"jobs"}, dropped)
	require.Equal(t, Document{"checkin": Leaf(true), "media_upload": Leaf(true)}, doc)

	subject := subjectWith(doc)
	assert.False(t, IsAuthorized(subject, "jobs:read:assigned"))
	assert.False(t, IsAuthorized(subject, "jobs"))
	assert.True(t, IsAuthorized(subject, "checkin"))

	doc, dropped = LoadDocument([]byte(`{"jobs": {"read": "x", "update": true}}`))
	require.Equal(t, []string{"jobs.read"}, dropped)
	require.Equal(t, Document{"jobs": Group{"update": Leaf(true)}}, doc)

	doc, dropped = LoadDocument([]byte(`not json`))
	require.Equal(t, []string{"$"}, dropped)
	require.Empty(t, doc)
}

func TestParseDocumentRejectsDuplicateKeys(t *testing.T) {
	cases := []string{
		`{"jobs":"assigned_only","jobs":true}`,
		`{"jobs":true,"jobs":true}`,
		`{"jobs":{"read":false,"read":true}}`,
		`{"all":false,"reports":true,"all":true}`,
	}
	for _, in := range cases {
		_, err := ParseDocument([]byte(in))
		require.ErrorIs(t, err, ErrInvalidDocument, in)
		require.ErrorContains(t, err, "duplicate key", in)
	}

	_, err := ParseDocument([]byte(`{"jobs":{"read":true},"reports":{"read":true}}`))
	require.NoError(t, err)
}

func TestLoadDocumentDropsDuplicateKeys(t *testing.T) {
	doc, dropped := LoadDocument([]byte(`{"jobs":"assigned_only","jobs":true,"checkin":true}`))
	require.Equal(t, []string{"jobs"}, dropped)
	require.Equal(t, Document{"checkin": Leaf(true)}, doc)
	assert.False(t, IsAuthorized(subjectWith(doc), "jobs:read"))

	doc, dropped = LoadDocument([]byte(`{"jobs":{"read":true,"read":false,"update":true}}`))
	require.Equal(t, []string{"jobs.read"}, dropped)
	require.Equal(t, Document{"jobs": Group{"update": Leaf(true)}}, doc)
}

func TestParseDocumentRejectsTrailingData(t *testing.T) {
	_, err := ParseDocument([]byte(`{"jobs":true} {"all":true}`))
	require.ErrorIs(t, err, ErrInvalidDocument)
}

func TestDocumentJSONRoundTrip(t *testing.T) {
	original := Document{"jobs": Group{"read:all": Leaf(true)}, SuperGrantKey: Leaf(false)}
	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Document
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, original, decoded)

	data, err = json.Marshal(Document(nil))
	require.NoError(t, err)
	require.JSONEq(t, `{}`, string(data))

	var bad Document
	require.ErrorIs(t, json.Unmarshal([]byte(`{"jobs":"assigned_only"}`), &bad), ErrInvalidDocument)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Document{"jobs": Group{"read": Leaf(true)}}.Validate())
	require.ErrorIs(t, Document{" ": Leaf(true)}.Validate(), ErrInvalidDocument)
	require.ErrorIs(t, Document{"jobs": Group(nil)}.Validate(), ErrInvalidDocument)
	require.ErrorIs(t, Document{"jobs": nil}.Validate(), ErrInvalidDocument)

	cyclic := Group{}
	cyclic["self"] = cyclic
	require.ErrorIs(t, Document{"loop": cyclic}.Validate(), ErrInvalidDocument)
}

func TestCloneIsDeep(t *testing.T) {
	original := Document{"jobs": Group{"read": Leaf(true)}}
	clone := original.Clone()
	clone["jobs"].(Group)["read"] = Leaf(false)
	require.Equal(t, Leaf(true), original["jobs"].(Group)["read"])
	require.Nil(t, Document(nil).Clone())
}

func TestPaths(t *testing.T) {
	doc := Document{
		"jobs":    Group{"read:all": Leaf(true), "delete": Leaf(false)},
		"reports": Leaf(true),
	}
	require.Equal(t, []LeafPath{
		{Path: "jobs:delete", Granted: false},
		{Path: "jobs:read:all", Granted: true},
		{Path: "reports", Granted: true},
	}, doc.Paths())
}

func TestUnknownCapabilities(t *testing.T) {
	doc := Document{
		SuperGrantKey: Leaf(true),
		"jobs":        Group{"read:all": Leaf(true), "archive": Leaf(true)},
		"payroll":     Leaf(true),
		"checkin":     Leaf(true),
	}
	require.Equal(t, []string{"jobs:archive", "payroll"}, UnknownCapabilities(doc))
	require.Empty(t, UnknownCapabilities(Document{"reports": Group{"read": Leaf(true)}}))
}
