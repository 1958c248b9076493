package rbac

import (
	"context"
	"errors"
	"strings"
)

// ErrSubjectNotFound is returned by a SubjectLoader when the user does not
// exist. The Gate treats it as a plain denial.
var ErrSubjectNotFound = errors.New("rbac: subject not found")

// IsAuthorized reports whether the subject's role grants the capability. A
// nil subject or a subject without a resolvable role is never authorized.
func IsAuthorized(subject *Subject, capability string) bool {
	if subject == nil || subject.Role == nil {
		return false
	}
	return Resolve(subject.Role.Permissions, capability)
}

// SubjectLoader resolves a user id to the user's current role.
type SubjectLoader interface {
	LoadSubject(ctx context.Context, userID int64) (*Subject, error)
}

// DecisionRecorder observes authorization outcomes.
type DecisionRecorder interface {
	RecordDecision(group string, granted bool)
}

// Gate answers "may this user do X" by resolving the user's role from the
// loader on every call. It keeps no state between calls.
type Gate struct {
	subjects SubjectLoader
	recorder DecisionRecorder
}

// NewGate constructs a Gate. recorder may be nil.
func NewGate(subjects SubjectLoader, recorder DecisionRecorder) *Gate {
	return &Gate{subjects: subjects, recorder: recorder}
}

// Subject loads the current subject for userID. A missing user yields a nil
// subject and no error.
func (g *Gate) Subject(ctx context.Context, userID int64) (*Subject, error) {
	if g == nil || g.subjects == nil {
		return nil, nil
	}
	subject, err := g.subjects.LoadSubject(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrSubjectNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return subject, nil
}

// Authorize checks a single capability for userID. The error is non-nil only
// when the loader fails for a reason other than a missing user.
func (g *Gate) Authorize(ctx context.Context, userID int64, capability string) (bool, error) {
	subject, err := g.Subject(ctx, userID)
	if err != nil {
		return false, err
	}
	return g.decide(subject, capability), nil
}

// AuthorizeAny reports whether any of the capabilities is granted. An empty
// list is granted to any known user.
func (g *Gate) AuthorizeAny(ctx context.Context, userID int64, capabilities ...string) (bool, error) {
	subject, err := g.Subject(ctx, userID)
	if err != nil {
		return false, err
	}
	if len(capabilities) == 0 {
		return subject != nil, nil
	}
	for _, capability := range capabilities {
		if g.decide(subject, capability) {
			return true, nil
		}
	}
	return false, nil
}

// AuthorizeAll reports whether every capability is granted. An empty list is
// granted to any known user.
func (g *Gate) AuthorizeAll(ctx context.Context, userID int64, capabilities ...string) (bool, error) {
	subject, err := g.Subject(ctx, userID)
	if err != nil {
		return false, err
	}
	if len(capabilities) == 0 {
		return subject != nil, nil
	}
	for _, capability := range capabilities {
		if !g.decide(subject, capability) {
			return false, nil
		}
	}
	return true, nil
}

func (g *Gate) decide(subject *Subject, capability string) bool {
	granted := IsAuthorized(subject, capability)
	if g != nil && g.recorder != nil {
		g.recorder.RecordDecision(capabilityGroup(capability), granted)
	}
	return granted
}

func capabilityGroup(capability string) string {
	group, _, _ := strings.Cut(capability, CapabilitySeparator)
	if !KnownGroup(group) {
		return "other"
	}
	return group
}
