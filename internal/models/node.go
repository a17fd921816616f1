package models

import "time"

type NodeType int16

const (
	NodeTypeFolder NodeType = 0
	NodeTypeFile   NodeType = 1
)

func (t NodeType) String() string {
	switch t {
	case NodeTypeFolder:
		return "folder"
	case NodeTypeFile:
		return "file"
	default:
		return "unknown"
	}
}

// FileNode is a file or a folder in a user's tree.
//
// CurrentVersion is 0 while the node still holds its original upload and no
// version records exist. For N > 0 the content is version N's blob.
type FileNode struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Type           NodeType   `json:"type"`
	ContentType    *string    `json:"content_type,omitempty"`
	Size           int64      `json:"size"`
	OwnerID        string     `json:"owner_id"`
	ParentID       *string    `json:"parent_id,omitempty"`
	Starred        bool       `json:"starred"`
	Trashed        bool       `json:"trashed"`
	TrashedAt      *time.Time `json:"trashed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	LastOpenedAt   *time.Time `json:"last_opened_at,omitempty"`
	ContentHandle  *string    `json:"-"`
	CurrentVersion int        `json:"current_version"`
}

func (n *FileNode) IsFolder() bool {
	return n.Type == NodeTypeFolder
}

func (n *FileNode) IsFile() bool {
	return n.Type == NodeTypeFile
}

// Clone returns a deep copy so callers can mutate without aliasing
// the stored record.
func (n *FileNode) Clone() *FileNode {
	if n == nil {
		return nil
	}
	c := *n
	c.ContentType = cloneString(n.ContentType)
	c.ParentID = cloneString(n.ParentID)
	c.ContentHandle = cloneString(n.ContentHandle)
	c.TrashedAt = cloneTime(n.TrashedAt)
	c.LastOpenedAt = cloneTime(n.LastOpenedAt)
	return &c
}

// PathEntry is one hop of an ancestry path, root first.
type PathEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// StringPtr is a small helper for optional string fields.
func StringPtr(s string) *string {
	return &s
}
