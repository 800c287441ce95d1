// Package visibility decides which indexed chunks a caller may retrieve.
//
// Static chunks are visible to everyone. User chunks are visible to the session that
// uploaded them. Chunks with no session tag stay visible to every session: older
// ingests did not always record one and they are kept reachable on purpose.
package visibility

import (
	"strings"

	"github.com/xxxsen/ragkb/internal/model"
)

const (
	FieldCategory  = "category"
	FieldSessionID = "session_id"
)

// DefaultSessionID is substituted when a user upload arrives without a session.
const DefaultSessionID = "default"

type PolicyKind int

const (
	PolicyStatic PolicyKind = iota + 1
	PolicyTagged
	PolicyUntagged
)

func (k PolicyKind) String() string {
	switch k {
	case PolicyStatic:
		return "static"
	case PolicyTagged:
		return "tagged"
	case PolicyUntagged:
		return "untagged"
	}
	return "unknown"
}

// TagPolicy is the visibility class of a stored chunk.
type TagPolicy struct {
	Kind      PolicyKind
	SessionID string
}

func Static() TagPolicy {
	return TagPolicy{Kind: PolicyStatic}
}

func Tagged(sessionID string) TagPolicy {
	return TagPolicy{Kind: PolicyTagged, SessionID: sessionID}
}

func Untagged() TagPolicy {
	return TagPolicy{Kind: PolicyUntagged}
}

// TagFor returns the policy written at ingestion. defaulted is true when a user upload
// had no session and DefaultSessionID was used instead.
func TagFor(category model.Category, sessionID string) (policy TagPolicy, defaulted bool) {
	if category == model.CategoryStatic {
		return Static(), false
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Tagged(DefaultSessionID), true
	}
	return Tagged(sessionID), false
}

// Resolve classifies stored chunk metadata.
func Resolve(meta map[string]string) TagPolicy {
	if meta[FieldCategory] == string(model.CategoryStatic) {
		return Static()
	}
	if sid := meta[FieldSessionID]; sid != "" {
		return Tagged(sid)
	}
	return Untagged()
}

// Apply stamps the policy onto a chunk.
func (p TagPolicy) Apply(chunk *model.Chunk) {
	switch p.Kind {
	case PolicyStatic:
		chunk.Category = model.CategoryStatic
		chunk.SessionID = ""
	case PolicyTagged:
		chunk.Category = model.CategoryUser
		chunk.SessionID = p.SessionID
	default:
		chunk.Category = model.CategoryUser
		chunk.SessionID = ""
	}
}

// VisibleTo reports whether a chunk under this policy may be returned to sessionID.
func (p TagPolicy) VisibleTo(sessionID string) bool {
	switch p.Kind {
	case PolicyStatic:
		return true
	case PolicyTagged:
		return sessionID != "" && p.SessionID == sessionID
	case PolicyUntagged:
		return sessionID != ""
	}
	return false
}

// Meta renders chunk metadata the way the vector backends store it.
func Meta(chunk *model.Chunk) map[string]string {
	return map[string]string{
		FieldCategory:  string(chunk.Category),
		FieldSessionID: chunk.SessionID,
	}
}
