package models

import "time"

type SortField string

const (
	SortByName     SortField = "name"
	SortByCreated  SortField = "created"
	SortByModified SortField = "modified"
	SortBySize     SortField = "size"
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ListFilter narrows a directory listing. Zero values mean "no constraint",
// except Trashed which defaults to listing only active nodes.
type ListFilter struct {
	OwnerID string

	// ParentID scopes the listing to one folder. RootOnly lists nodes with
	// no parent. Both unset lists the whole tree of the owner.
	ParentID *string
	RootOnly bool

	Trashed     bool
	Starred     *bool
	Type        *NodeType
	NameQuery   string
	ContentType string

	CreatedAfter   *time.Time
	CreatedBefore  *time.Time
	ModifiedAfter  *time.Time
	ModifiedBefore *time.Time
	MinSize        *int64
	MaxSize        *int64

	// Empty SortBy keeps the default order: folders first, then name ascending.
	SortBy    SortField
	SortOrder SortOrder

	Limit  int
	Offset int
}
