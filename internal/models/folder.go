package models

import "time"

// Folder is a node in the virtual folder tree. The hierarchy is flat in the
// metadata store: each folder carries only a reference to its parent, and the
// tree is re-derived by walking ParentID chains on demand.
type Folder struct {
	ID             string    `bson:"_id,omitempty" json:"id"`
	Name           string    `bson:"name" json:"name"`
	ParentID       string    `bson:"parentId,omitempty" json:"parentId,omitempty"` // empty = root
	CreatedBy      string    `bson:"createdBy" json:"createdBy"`
	CreatedByEmail string    `bson:"createdByEmail" json:"createdByEmail"`
	CreatedAt      time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time `bson:"updatedAt" json:"updatedAt"`
}

// IsRoot reports whether the folder sits at the top level.
func (f *Folder) IsRoot() bool {
	return f.ParentID == ""
}
