// Package remote wraps the FTP-backed file store. All paths are relative to a
// configured base directory on the server; every operation opens a fresh
// authenticated session and closes it on completion, so no session state can
// leak between concurrent operations.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrNotFound indicates the remote object or directory does not exist.
// Transport, auth and protocol failures surface as *TransportError instead,
// so callers can tell "retry later" apart from "this object is gone".
var ErrNotFound = errors.New("remote object not found")

// TransportError wraps a connection, authentication or protocol failure.
type TransportError struct {
	Op   string
	Path string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("remote %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StreamOptions controls a ranged download.
type StreamOptions struct {
	StartAt  int64 // byte offset to start reading from
	MaxBytes int64 // cap on bytes copied; 0 = to EOF
}

// Client is the set of primitives the rest of the system uses against the
// remote store.
type Client interface {
	// Upload writes the reader's content to remotePath, creating parent
	// directories as needed.
	Upload(ctx context.Context, r io.Reader, remotePath string) error
	// UploadBuffer is Upload for an in-memory payload.
	UploadBuffer(ctx context.Context, data []byte, remotePath string) error
	// AppendBuffer opens-or-creates remotePath and appends data at EOF.
	AppendBuffer(ctx context.Context, data []byte, remotePath string) error
	// StreamDownload copies the object's bytes into sink, honoring the range
	// options, and returns the number of bytes written.
	StreamDownload(ctx context.Context, remotePath string, sink io.Writer, opts StreamOptions) (int64, error)
	// Size returns the object's byte length, or ErrNotFound.
	Size(ctx context.Context, remotePath string) (int64, error)
	// Exists is derived from Size: the protocol has no lighter stat.
	Exists(ctx context.Context, remotePath string) (bool, error)
	// Remove deletes the object. Absence is not an error.
	Remove(ctx context.Context, remotePath string) error
	// Rename moves a file or directory, creating the destination's parent
	// directory first.
	Rename(ctx context.Context, fromPath, toPath string) error
	// Mkdir creates the directory and any missing ancestors.
	Mkdir(ctx context.Context, remotePath string) error
	// Rmdir removes a directory; it fails if the directory is non-empty.
	Rmdir(ctx context.Context, remotePath string) error
}
