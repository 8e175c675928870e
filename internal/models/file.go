package models

import (
	"net/url"
	"strings"
	"time"
)

// FileStatus tracks the transcription workflow state of a file.
type FileStatus string

const (
	StatusPending     FileStatus = "pending"
	StatusInProgress  FileStatus = "in-progress"
	StatusTranscribed FileStatus = "transcribed"
)

// Valid reports whether s is one of the known workflow states.
func (s FileStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusTranscribed:
		return true
	}
	return false
}

// Source types for uploaded files.
const (
	SourceFile = "file"
	SourceURL  = "url"
)

// MaxDescriptionLen bounds the free-text description field.
const MaxDescriptionLen = 2000

// File is the metadata record for one remote object. StoragePath is the
// authoritative remote location; SavedAs is a fallback basename for legacy
// records created before StoragePath existed.
type File struct {
	ID              string     `bson:"_id,omitempty" json:"id"`
	OriginalName    string     `bson:"originalName" json:"originalName"`
	SavedAs         string     `bson:"savedAs" json:"savedAs"`
	StoragePath     string     `bson:"storagePath" json:"storagePath"`
	Size            int64      `bson:"size" json:"size"`
	Type            string     `bson:"type" json:"type"`
	UploadedBy      string     `bson:"uploadedBy" json:"uploadedBy"`
	UploadedByEmail string     `bson:"uploadedByEmail" json:"uploadedByEmail"`
	UploadedAt      time.Time  `bson:"uploadedAt" json:"uploadedAt"`
	Status          FileStatus `bson:"status" json:"status"`
	Description     string     `bson:"description,omitempty" json:"description,omitempty"`
	ServiceCategory string     `bson:"serviceCategory,omitempty" json:"serviceCategory,omitempty"`
	SourceType      string     `bson:"sourceType" json:"sourceType"`
	SourceURL       string     `bson:"sourceUrl,omitempty" json:"sourceUrl,omitempty"`
	FolderID        string     `bson:"folderId,omitempty" json:"folderId,omitempty"` // empty = root
	URL             string     `bson:"url" json:"url"`
}

// RemotePath returns the path of the file's remote object. StoragePath wins;
// SavedAs covers legacy records that never had it recorded.
func (f *File) RemotePath() string {
	if f.StoragePath != "" {
		return f.StoragePath
	}
	return f.SavedAs
}

// RetrievalURL derives the HTTP download path for a remote path, with each
// segment percent-encoded.
func RetrievalURL(remotePath string) string {
	segs := strings.Split(remotePath, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return "/api/files/" + strings.Join(segs, "/")
}
