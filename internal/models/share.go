package models

import (
	"fmt"
	"strings"
	"time"
)

// Permission is totally ordered: a higher level implies every lower one.
type Permission int

const (
	PermissionNone      Permission = 0
	PermissionViewer    Permission = 1
	PermissionCommenter Permission = 2
	PermissionEditor    Permission = 3
	// PermissionOwner is never stored on a grant, it is derived from ownership.
	PermissionOwner Permission = 4
)

func (p Permission) String() string {
	switch p {
	case PermissionNone:
		return "none"
	case PermissionViewer:
		return "viewer"
	case PermissionCommenter:
		return "commenter"
	case PermissionEditor:
		return "editor"
	case PermissionOwner:
		return "owner"
	default:
		return fmt.Sprintf("permission(%d)", int(p))
	}
}

// Grantable reports whether p may be stored on a share grant.
func (p Permission) Grantable() bool {
	return p >= PermissionViewer && p <= PermissionEditor
}

func (p Permission) AtLeast(required Permission) bool {
	return p >= required
}

func ParsePermission(s string) (Permission, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "viewer":
		return PermissionViewer, nil
	case "commenter":
		return PermissionCommenter, nil
	case "editor":
		return PermissionEditor, nil
	default:
		return PermissionNone, fmt.Errorf("unknown permission %q", s)
	}
}

func (p Permission) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Permission) UnmarshalText(text []byte) error {
	parsed, err := ParsePermission(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ShareGrant gives a user, or anyone holding LinkToken, access to a node.
// GranteeUserID is nil for public link grants.
type ShareGrant struct {
	ID            string     `json:"id"`
	FileID        string     `json:"file_id"`
	GrantedBy     string     `json:"granted_by"`
	GranteeUserID *string    `json:"grantee_user_id,omitempty"`
	Permission    Permission `json:"permission"`
	LinkToken     *string    `json:"link_token,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (g *ShareGrant) IsLink() bool {
	return g.GranteeUserID == nil
}

// SharedItem pairs a grant addressed to a user with the node it opens.
type SharedItem struct {
	Grant ShareGrant `json:"grant"`
	Node  FileNode   `json:"node"`
}
