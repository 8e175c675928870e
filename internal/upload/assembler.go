// Package upload assembles chunked uploads into whole remote objects. Two
// modes exist: local-scratch assembly (chunks land on local disk and are
// concatenated, then uploaded once) and remote-direct assembly for
// deployments with no persistent disk (each chunk is written as a durable
// remote artifact and appended to a remote scratch file in the same call).
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/digiscribe/backend/internal/remote"
)

// DefaultMaxChunkSize bounds per-request memory use.
const DefaultMaxChunkSize = 10 << 20 // 10 MiB

// remoteScratchPrefix is the remote directory holding in-flight upload
// artifacts. SanitizeName never emits a leading underscore segment from the
// resolver's namespace logic, so it cannot collide with user paths.
const remoteScratchPrefix = "_uploads"

// MissingChunkError aborts finalize when a chunk never arrived. It names the
// first missing index so the client can resubmit just that chunk and retry.
type MissingChunkError struct {
	Index int
}

func (e *MissingChunkError) Error() string {
	return fmt.Sprintf("missing chunk %d", e.Index)
}

// OutOfOrderError rejects a remote-direct chunk submitted before its
// predecessors. Appending it would corrupt the assembled byte order.
type OutOfOrderError struct {
	Expected, Got int
}

func (e *OutOfOrderError) Error() string {
	return fmt.Sprintf("chunk %d submitted out of order, expected %d", e.Got, e.Expected)
}

// ErrChunkTooLarge rejects a chunk payload over the configured cap.
var ErrChunkTooLarge = errors.New("chunk exceeds maximum size")

// Manager tracks upload sessions and assembles their chunks.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session

	scratchDir     string
	remote         remote.Client
	remoteAssembly bool
	maxChunkSize   int64
	log            zerolog.Logger
}

type session struct {
	mu        sync.Mutex
	received  map[int]bool
	next      int // remote mode: next index the assembling file can accept
	createdAt time.Time
}

// NewManager creates an assembler. remoteAssembly selects remote-direct mode;
// scratchDir is only used in local mode.
func NewManager(scratchDir string, rc remote.Client, remoteAssembly bool, log zerolog.Logger) *Manager {
	return &Manager{
		sessions:       make(map[string]*session),
		scratchDir:     scratchDir,
		remote:         rc,
		remoteAssembly: remoteAssembly,
		maxChunkSize:   DefaultMaxChunkSize,
		log:            log.With().Str("component", "upload").Logger(),
	}
}

// SetMaxChunkSize overrides the per-chunk payload cap.
func (m *Manager) SetMaxChunkSize(n int64) { m.maxChunkSize = n }

func (m *Manager) getSession(uploadID string) *session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[uploadID]
	if !ok {
		s = &session{received: make(map[int]bool), createdAt: time.Now()}
		m.sessions[uploadID] = s
	}
	return s
}

func (m *Manager) dropSession(uploadID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, uploadID)
}

func chunkFile(scratchDir, uploadID string, idx int) string {
	return filepath.Join(scratchDir, "chunks", uploadID, fmt.Sprintf("chunk_%d", idx))
}

func remoteChunkPath(uploadID string, idx int) string {
	return path.Join(remoteScratchPrefix, uploadID, fmt.Sprintf("chunk_%d", idx))
}

func remoteAssemblingPath(uploadID string) string {
	return path.Join(remoteScratchPrefix, uploadID, "assembling")
}

// ReceiveChunk stores one chunk of an upload session. Chunks may arrive in
// any order in local mode; remote-direct mode requires in-order delivery and
// rejects gaps, while duplicate resubmission of an already-durable chunk is a
// success no-op.
func (m *Manager) ReceiveChunk(ctx context.Context, uploadID string, chunkIndex int, r io.Reader) error {
	data, err := io.ReadAll(io.LimitReader(r, m.maxChunkSize+1))
	if err != nil {
		return fmt.Errorf("reading chunk %d: %w", chunkIndex, err)
	}
	if int64(len(data)) > m.maxChunkSize {
		return ErrChunkTooLarge
	}

	if m.remoteAssembly {
		return m.receiveRemote(ctx, uploadID, chunkIndex, data)
	}
	return m.receiveLocal(uploadID, chunkIndex, data)
}

func (m *Manager) receiveLocal(uploadID string, chunkIndex int, data []byte) error {
	dir := filepath.Join(m.scratchDir, "chunks", uploadID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating chunk directory: %w", err)
	}
	if err := os.WriteFile(chunkFile(m.scratchDir, uploadID, chunkIndex), data, 0o644); err != nil {
		return fmt.Errorf("writing chunk %d: %w", chunkIndex, err)
	}

	s := m.getSession(uploadID)
	s.mu.Lock()
	s.received[chunkIndex] = true
	s.mu.Unlock()
	return nil
}

func (m *Manager) receiveRemote(ctx context.Context, uploadID string, chunkIndex int, data []byte) error {
	s := m.getSession(uploadID)
	s.mu.Lock()
	defer s.mu.Unlock()

	artifact := remoteChunkPath(uploadID, chunkIndex)

	// Already appended in this session. The retry must never append a second
	// copy; it only has to make the chunk artifact durable in case the
	// earlier artifact write is what failed.
	if chunkIndex < s.next {
		if ok, err := m.remote.Exists(ctx, artifact); err == nil && ok {
			m.log.Debug().Str("upload", uploadID).Int("chunk", chunkIndex).Msg("duplicate chunk ignored")
			return nil
		}
		if err := m.remote.UploadBuffer(ctx, data, artifact); err != nil {
			return fmt.Errorf("storing chunk artifact %d: %w", chunkIndex, err)
		}
		s.received[chunkIndex] = true
		return nil
	}

	// The artifact is only ever written after a successful append, so its
	// presence proves the bytes are already in the assembling file even when
	// the in-memory session was lost to a restart.
	if ok, err := m.remote.Exists(ctx, artifact); err == nil && ok {
		m.log.Debug().Str("upload", uploadID).Int("chunk", chunkIndex).Msg("duplicate chunk ignored")
		s.received[chunkIndex] = true
		s.next = chunkIndex + 1
		return nil
	}

	if chunkIndex != s.next {
		return &OutOfOrderError{Expected: s.next, Got: chunkIndex}
	}

	assembling := remoteAssemblingPath(uploadID)
	if chunkIndex == 0 {
		if err := m.remote.UploadBuffer(ctx, data, assembling); err != nil {
			return fmt.Errorf("creating assembling file: %w", err)
		}
	} else {
		if err := m.remote.AppendBuffer(ctx, data, assembling); err != nil {
			return fmt.Errorf("appending chunk %d: %w", chunkIndex, err)
		}
	}
	s.received[chunkIndex] = true
	s.next = chunkIndex + 1

	if err := m.remote.UploadBuffer(ctx, data, artifact); err != nil {
		// The append already happened; the retry path above rewrites only
		// the artifact.
		return fmt.Errorf("storing chunk artifact %d: %w", chunkIndex, err)
	}
	return nil
}

// Finalize verifies every chunk in [0, totalChunks) arrived, assembles the
// whole file at finalRemotePath and returns its byte size. It is safely
// re-callable: a missing chunk aborts without touching metadata or removing
// artifacts, so the client can submit the gap and retry.
func (m *Manager) Finalize(ctx context.Context, uploadID string, totalChunks int, finalRemotePath string) (int64, error) {
	if totalChunks <= 0 {
		return 0, fmt.Errorf("totalChunks must be positive, got %d", totalChunks)
	}

	var size int64
	var err error
	if m.remoteAssembly {
		size, err = m.finalizeRemote(ctx, uploadID, totalChunks, finalRemotePath)
	} else {
		size, err = m.finalizeLocal(ctx, uploadID, totalChunks, finalRemotePath)
	}
	if err != nil {
		return 0, err
	}

	m.dropSession(uploadID)
	return size, nil
}

func (m *Manager) finalizeLocal(ctx context.Context, uploadID string, totalChunks int, finalRemotePath string) (int64, error) {
	for i := 0; i < totalChunks; i++ {
		if _, err := os.Stat(chunkFile(m.scratchDir, uploadID, i)); err != nil {
			return 0, &MissingChunkError{Index: i}
		}
	}

	assembled := filepath.Join(m.scratchDir, uploadID+".assembled")
	out, err := os.Create(assembled)
	if err != nil {
		return 0, fmt.Errorf("creating assembled file: %w", err)
	}

	var size int64
	for i := 0; i < totalChunks; i++ {
		in, err := os.Open(chunkFile(m.scratchDir, uploadID, i))
		if err != nil {
			out.Close()
			os.Remove(assembled)
			return 0, fmt.Errorf("opening chunk %d: %w", i, err)
		}
		n, err := io.Copy(out, in)
		in.Close()
		if err != nil {
			out.Close()
			os.Remove(assembled)
			return 0, fmt.Errorf("copying chunk %d: %w", i, err)
		}
		size += n
	}
	out.Close()

	src, err := os.Open(assembled)
	if err != nil {
		return 0, fmt.Errorf("reopening assembled file: %w", err)
	}
	err = m.remote.Upload(ctx, src, finalRemotePath)
	src.Close()
	if err != nil {
		// Keep chunk artifacts so finalize can be retried after a remote
		// hiccup; only the concatenation product is discarded.
		os.Remove(assembled)
		return 0, err
	}

	os.Remove(assembled)
	os.RemoveAll(filepath.Join(m.scratchDir, "chunks", uploadID))
	return size, nil
}

func (m *Manager) finalizeRemote(ctx context.Context, uploadID string, totalChunks int, finalRemotePath string) (int64, error) {
	var want int64
	for i := 0; i < totalChunks; i++ {
		n, err := m.remote.Size(ctx, remoteChunkPath(uploadID, i))
		if err != nil {
			if errors.Is(err, remote.ErrNotFound) {
				return 0, &MissingChunkError{Index: i}
			}
			return 0, fmt.Errorf("verifying chunk %d: %w", i, err)
		}
		want += n
	}

	assembling := remoteAssemblingPath(uploadID)
	size, err := m.remote.Size(ctx, assembling)
	if err != nil {
		return 0, fmt.Errorf("sizing assembled upload: %w", err)
	}
	// Every chunk artifact exists only because its bytes were appended, so a
	// length mismatch means the assembling file is corrupt. Refuse to publish
	// it; the session stays retryable.
	if size != want {
		return 0, fmt.Errorf("assembled upload is %d bytes, chunk artifacts total %d", size, want)
	}

	// The assembling file already holds the full content; a rename moves it
	// into place without a redundant transfer.
	if err := m.remote.Rename(ctx, assembling, finalRemotePath); err != nil {
		return 0, err
	}

	for i := 0; i < totalChunks; i++ {
		if err := m.remote.Remove(ctx, remoteChunkPath(uploadID, i)); err != nil {
			m.log.Warn().Str("upload", uploadID).Int("chunk", i).Err(err).Msg("chunk artifact cleanup failed")
		}
	}
	if err := m.remote.Rmdir(ctx, path.Join(remoteScratchPrefix, uploadID)); err != nil {
		m.log.Debug().Str("upload", uploadID).Err(err).Msg("scratch rmdir failed")
	}
	return size, nil
}

// CleanupOrphans deletes local scratch artifacts of uploads abandoned longer
// than maxAge ago (browser closed, network dropped). Best-effort; remote-mode
// artifacts are left for an operator sweep since their timestamps live on the
// FTP server.
func (m *Manager) CleanupOrphans(maxAge time.Duration) {
	if m.remoteAssembly {
		return
	}

	cutoff := time.Now().Add(-maxAge)

	chunksRoot := filepath.Join(m.scratchDir, "chunks")
	entries, err := os.ReadDir(chunksRoot)
	if err != nil && !os.IsNotExist(err) {
		m.log.Warn().Err(err).Msg("orphan sweep: reading scratch dir")
		return
	}
	for _, e := range entries {
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		dir := filepath.Join(chunksRoot, e.Name())
		if err := os.RemoveAll(dir); err != nil {
			m.log.Warn().Str("dir", dir).Err(err).Msg("orphan sweep: remove failed")
			continue
		}
		m.dropSession(e.Name())
		m.log.Info().Str("upload", e.Name()).Msg("removed orphaned upload artifacts")
	}

	// Stale assembled files from crashed finalizes.
	loose, err := filepath.Glob(filepath.Join(m.scratchDir, "*.assembled"))
	if err != nil {
		return
	}
	for _, p := range loose {
		if info, err := os.Stat(p); err == nil && info.ModTime().Before(cutoff) {
			os.Remove(p)
		}
	}
}
