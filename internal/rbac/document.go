package rbac

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// MaxDepth bounds the nesting of permission documents. A document deeper than
// this is rejected at write time.
const MaxDepth = 8

// SuperGrantKey is the reserved top-level key that grants every capability
// when set to true.
const SuperGrantKey = "all"

// ErrInvalidDocument indicates a permission document failed validation.
var ErrInvalidDocument = errors.New("rbac: invalid permission document")

// Node is a value inside a permission document: either a Leaf or a Group.
type Node interface {
	isNode()
}

// Leaf is a boolean grant or deny.
type Leaf bool

// Group maps capability or action names to nested nodes.
type Group map[string]Node

func (Leaf) isNode()  {}
func (Group) isNode() {}

// Document is the permission grant set owned by a role.
type Document Group

// ParseDocument decodes JSON into a Document, rejecting any value that is
// neither a boolean nor an object.
func ParseDocument(data []byte) (Document, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Document{}, nil
	}
	members, err := readObject(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	group, err := decodeGroup(members, "", 1, true, nil)
	if err != nil {
		return nil, err
	}
	doc := Document(group)
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// LoadDocument decodes a stored document without failing. Values that would
// not pass ParseDocument are dropped, so they resolve to denied, and their
// locations are returned.
func LoadDocument(data []byte) (Document, []string) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Document{}, nil
	}
	members, err := readObject(data)
	if err != nil {
		return Document{}, []string{"$"}
	}
	var dropped []string
	group, _ := decodeGroup(members, "", 1, false, &dropped)
	sort.Strings(dropped)
	return Document(group), dropped
}

// member is one key/value pair of a JSON object, in document order.
type member struct {
	key   string
	value json.RawMessage
}

// readObject splits a JSON object into its members without collapsing
// repeated keys.
func readObject(data []byte) ([]member, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("not a JSON object")
	}
	var members []member
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errors.New("object key is not a string")
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		members = append(members, member{key: key, value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after object")
	}
	return members, nil
}

// decodeGroup builds a Group from members. A key that appears more than once
// is invalid as a whole, whichever value came last.
func decodeGroup(members []member, prefix string, depth int, strict bool, dropped *[]string) (Group, error) {
	seen := make(map[string]int, len(members))
	for _, m := range members {
		seen[m.key]++
	}
	group := make(Group, len(members))
	reported := make(map[string]bool)
	for _, m := range members {
		path := joinPath(prefix, m.key)
		var (
			node Node
			err  error
		)
		switch {
		case strings.TrimSpace(m.key) == "":
			err = fmt.Errorf("%w: empty key at %q", ErrInvalidDocument, path)
		case seen[m.key] > 1:
			err = fmt.Errorf("%w: duplicate key %q", ErrInvalidDocument, path)
		default:
			node, err = decodeNode(m.value, path, depth, strict, dropped)
		}
		if err != nil {
			if strict {
				return nil, err
			}
			if !reported[path] {
				reported[path] = true
				*dropped = append(*dropped, path)
			}
			continue
		}
		group[m.key] = node
	}
	return group, nil
}

func decodeNode(value json.RawMessage, path string, depth int, strict bool, dropped *[]string) (Node, error) {
	value = bytes.TrimSpace(value)
	if len(value) == 0 {
		return nil, fmt.Errorf("%w: missing value at %q", ErrInvalidDocument, path)
	}
	switch value[0] {
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(value, &b); err != nil {
			return nil, fmt.Errorf("%w: %q is not a boolean", ErrInvalidDocument, path)
		}
		return Leaf(b), nil
	case '{':
		if depth >= MaxDepth {
			return nil, fmt.Errorf("%w: %q exceeds max depth %d", ErrInvalidDocument, path, MaxDepth)
		}
		members, err := readObject(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidDocument, path, err)
		}
		return decodeGroup(members, path, depth+1, strict, dropped)
	default:
		return nil, fmt.Errorf("%w: %q must be a boolean or an object", ErrInvalidDocument, path)
	}
}

// Validate checks keys are non-blank, nodes are non-nil and nesting stays
// within MaxDepth.
func (d Document) Validate() error {
	return validateGroup(Group(d), "", 1)
}

func validateGroup(g Group, prefix string, depth int) error {
	if depth > MaxDepth {
		return fmt.Errorf("%w: %q exceeds max depth %d", ErrInvalidDocument, prefix, MaxDepth)
	}
	for key, node := range g {
		path := joinPath(prefix, key)
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("%w: empty key at %q", ErrInvalidDocument, path)
		}
		switch n := node.(type) {
		case Leaf:
		case Group:
			if n == nil {
				return fmt.Errorf("%w: nil group at %q", ErrInvalidDocument, path)
			}
			if err := validateGroup(n, path, depth+1); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: %q must be a boolean or an object", ErrInvalidDocument, path)
		}
	}
	return nil
}

// SuperGrant reports whether the document carries all: true.
func (d Document) SuperGrant() bool {
	leaf, ok := d[SuperGrantKey].(Leaf)
	return ok && bool(leaf)
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return Document(cloneGroup(Group(d)))
}

func cloneGroup(g Group) Group {
	out := make(Group, len(g))
	for key, node := range g {
		switch n := node.(type) {
		case Leaf:
			out[key] = n
		case Group:
			out[key] = cloneGroup(n)
		}
	}
	return out
}

// MarshalJSON encodes the document as a plain JSON object.
func (d Document) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(toPlain(Group(d)))
}

// UnmarshalJSON decodes with the same rules as ParseDocument.
func (d *Document) UnmarshalJSON(data []byte) error {
	doc, err := ParseDocument(data)
	if err != nil {
		return err
	}
	*d = doc
	return nil
}

func toPlain(g Group) map[string]any {
	out := make(map[string]any, len(g))
	for key, node := range g {
		switch n := node.(type) {
		case Leaf:
			out[key] = bool(n)
		case Group:
			out[key] = toPlain(n)
		}
	}
	return out
}

// Paths lists every leaf of the document as a capability path mapped to its
// value, sorted by path.
func (d Document) Paths() []LeafPath {
	var out []LeafPath
	collectPaths(Group(d), "", &out)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// LeafPath is a flattened document entry.
type LeafPath struct {
	Path    string
	Granted bool
}

func collectPaths(g Group, prefix string, out *[]LeafPath) {
	for key, node := range g {
		path := joinCapability(prefix, key)
		switch n := node.(type) {
		case Leaf:
			*out = append(*out, LeafPath{Path: path, Granted: bool(n)})
		case Group:
			collectPaths(n, path, out)
		}
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func joinCapability(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + CapabilitySeparator + key
}
