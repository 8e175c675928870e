// mock_remote.go - In-memory remote store implementation for testing
package testutil

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/digiscribe/backend/internal/remote"
)

// MockRemote implements remote.Client over an in-memory object map.
type MockRemote struct {
	mu      sync.RWMutex
	objects map[string][]byte

	// FailOps makes the named operations return a transport error, to
	// exercise remote-failure paths. Keys match the Op field of the
	// TransportError the real client would produce.
	FailOps map[string]error
}

// NewMockRemote creates an empty mock remote store
func NewMockRemote() *MockRemote {
	return &MockRemote{
		objects: make(map[string][]byte),
		FailOps: make(map[string]error),
	}
}

var _ remote.Client = (*MockRemote)(nil)

func (m *MockRemote) fail(op, path string) error {
	if err, ok := m.FailOps[op]; ok {
		return &remote.TransportError{Op: op, Path: path, Err: err}
	}
	return nil
}

func (m *MockRemote) Upload(ctx context.Context, r io.Reader, remotePath string) error {
	if err := m.fail("upload", remotePath); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[remotePath] = data
	return nil
}

func (m *MockRemote) UploadBuffer(ctx context.Context, data []byte, remotePath string) error {
	return m.Upload(ctx, bytes.NewReader(data), remotePath)
}

func (m *MockRemote) AppendBuffer(ctx context.Context, data []byte, remotePath string) error {
	if err := m.fail("append", remotePath); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[remotePath] = append(m.objects[remotePath], data...)
	return nil
}

func (m *MockRemote) StreamDownload(ctx context.Context, remotePath string, sink io.Writer, opts remote.StreamOptions) (int64, error) {
	if err := m.fail("retrieve", remotePath); err != nil {
		return 0, err
	}
	m.mu.RLock()
	data, ok := m.objects[remotePath]
	m.mu.RUnlock()
	if !ok {
		return 0, remote.ErrNotFound
	}

	if opts.StartAt > int64(len(data)) {
		return 0, nil
	}
	data = data[opts.StartAt:]
	if opts.MaxBytes > 0 && opts.MaxBytes < int64(len(data)) {
		data = data[:opts.MaxBytes]
	}
	n, err := sink.Write(data)
	return int64(n), err
}

func (m *MockRemote) Size(ctx context.Context, remotePath string) (int64, error) {
	if err := m.fail("size", remotePath); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[remotePath]
	if !ok {
		return 0, remote.ErrNotFound
	}
	return int64(len(data)), nil
}

func (m *MockRemote) Exists(ctx context.Context, remotePath string) (bool, error) {
	_, err := m.Size(ctx, remotePath)
	if err == remote.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (m *MockRemote) Remove(ctx context.Context, remotePath string) error {
	if err := m.fail("delete", remotePath); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, remotePath)
	return nil
}

// Rename moves an object, or a whole directory prefix when remotePath names
// no object, mirroring how the FTP server treats RNFR on a directory.
func (m *MockRemote) Rename(ctx context.Context, fromPath, toPath string) error {
	if err := m.fail("rename", fromPath); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if data, ok := m.objects[fromPath]; ok {
		delete(m.objects, fromPath)
		m.objects[toPath] = data
		return nil
	}

	moved := false
	prefix := fromPath + "/"
	for p, data := range m.objects {
		if strings.HasPrefix(p, prefix) {
			delete(m.objects, p)
			m.objects[toPath+"/"+p[len(prefix):]] = data
			moved = true
		}
	}
	if !moved {
		return remote.ErrNotFound
	}
	return nil
}

func (m *MockRemote) Mkdir(ctx context.Context, remotePath string) error {
	return m.fail("mkdir", remotePath)
}

func (m *MockRemote) Rmdir(ctx context.Context, remotePath string) error {
	if err := m.fail("rmdir", remotePath); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	prefix := remotePath + "/"
	for p := range m.objects {
		if strings.HasPrefix(p, prefix) {
			return &remote.TransportError{Op: "rmdir", Path: remotePath, Err: errors.New("directory not empty")}
		}
	}
	return nil
}

// Test Helper Methods

// Put stores an object directly
func (m *MockRemote) Put(remotePath string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[remotePath] = data
}

// Object returns an object's bytes and whether it exists
func (m *MockRemote) Object(remotePath string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[remotePath]
	return data, ok
}

// Paths returns every stored object path, sorted
func (m *MockRemote) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	paths := make([]string, 0, len(m.objects))
	for p := range m.objects {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// ObjectCount returns the number of stored objects
func (m *MockRemote) ObjectCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
