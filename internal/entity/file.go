package entity

import (
	"encoding/json"
	"time"
)

// Kind classifies a stored file. The values match the wire format used by
// clients, so they are string-typed rather than iota constants.
type Kind string

const (
	KindFolder Kind = "folder"
	KindFile   Kind = "file"
	KindImage  Kind = "image"
)

// Valid reports whether k is one of the three accepted kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindFolder, KindFile, KindImage:
		return true
	}
	return false
}

func (k Kind) IsFolder() bool {
	return k == KindFolder
}

// ParentRef points at a file's parent folder. The zero value is the root.
// The root is rendered as the string "0" everywhere it leaves the process;
// internal code compares through IsRoot and FolderID, never raw strings.
type ParentRef struct {
	id string
}

// Root returns the sentinel reference for top-level files.
func Root() ParentRef {
	return ParentRef{}
}

// FolderRef returns a reference to the folder with the given id.
func FolderRef(id string) ParentRef {
	return ParentRef{id: id}
}

// ParseParentRef interprets a client- or store-supplied parent value.
// Empty and "0" both mean root; anything else is a folder id.
func ParseParentRef(s string) ParentRef {
	if s == "" || s == "0" {
		return Root()
	}
	return ParentRef{id: s}
}

func (p ParentRef) IsRoot() bool {
	return p.id == ""
}

// FolderID returns the referenced folder id and whether the reference is
// non-root.
func (p ParentRef) FolderID() (string, bool) {
	return p.id, p.id != ""
}

func (p ParentRef) String() string {
	if p.id == "" {
		return "0"
	}
	return p.id
}

// File is a node in the storage hierarchy: a folder, a regular file or an
// image. Non-folder files carry LocalPath, the opaque location of their
// primary blob; folders never do. Kind and LocalPath are fixed at creation.
type File struct {
	ID        string
	OwnerID   string
	Name      string
	Kind      Kind
	Parent    ParentRef
	IsPublic  bool
	LocalPath string
	CreatedAt time.Time
}

type fileJSON struct {
	ID       string `json:"id"`
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	IsPublic bool   `json:"isPublic"`
	ParentID string `json:"parentId"`
}

// MarshalJSON renders the canonical client representation: references as
// strings, root parent as "0", and no local path (blob locations never
// leave the process).
func (f File) MarshalJSON() ([]byte, error) {
	return json.Marshal(fileJSON{
		ID:       f.ID,
		UserID:   f.OwnerID,
		Name:     f.Name,
		Type:     string(f.Kind),
		IsPublic: f.IsPublic,
		ParentID: f.Parent.String(),
	})
}
