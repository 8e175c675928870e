package upload

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/digiscribe/backend/internal/testutil"
)

func TestLocalAssemblyAnyOrder(t *testing.T) {
	ctx := context.Background()
	rc := testutil.NewMockRemote()
	m := NewManager(t.TempDir(), rc, false, zerolog.Nop())

	// Chunks land out of order; local mode does not care.
	require.NoError(t, m.ReceiveChunk(ctx, "up1", 2, bytes.NewReader([]byte("cc"))))
	require.NoError(t, m.ReceiveChunk(ctx, "up1", 0, bytes.NewReader([]byte("aa"))))
	require.NoError(t, m.ReceiveChunk(ctx, "up1", 1, bytes.NewReader([]byte("bb"))))

	size, err := m.Finalize(ctx, "up1", 3, "user/final.mp3")
	require.NoError(t, err)
	require.Equal(t, int64(6), size)

	data, ok := rc.Object("user/final.mp3")
	require.True(t, ok)
	require.Equal(t, []byte("aabbcc"), data)
}

func TestLocalFinalizeMissingChunk(t *testing.T) {
	ctx := context.Background()
	rc := testutil.NewMockRemote()
	m := NewManager(t.TempDir(), rc, false, zerolog.Nop())

	require.NoError(t, m.ReceiveChunk(ctx, "up1", 0, bytes.NewReader([]byte("aa"))))
	require.NoError(t, m.ReceiveChunk(ctx, "up1", 2, bytes.NewReader([]byte("cc"))))

	_, err := m.Finalize(ctx, "up1", 3, "user/final.mp3")
	var missing *MissingChunkError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, 1, missing.Index)

	// The gap arrives, the same finalize call now succeeds.
	require.NoError(t, m.ReceiveChunk(ctx, "up1", 1, bytes.NewReader([]byte("bb"))))
	size, err := m.Finalize(ctx, "up1", 3, "user/final.mp3")
	require.NoError(t, err)
	require.Equal(t, int64(6), size)
}

func TestLocalChunkResubmitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	rc := testutil.NewMockRemote()
	m := NewManager(t.TempDir(), rc, false, zerolog.Nop())

	require.NoError(t, m.ReceiveChunk(ctx, "up1", 0, bytes.NewReader([]byte("aa"))))
	require.NoError(t, m.ReceiveChunk(ctx, "up1", 0, bytes.NewReader([]byte("aa"))))
	require.NoError(t, m.ReceiveChunk(ctx, "up1", 1, bytes.NewReader([]byte("bb"))))

	size, err := m.Finalize(ctx, "up1", 2, "user/final.mp3")
	require.NoError(t, err)
	require.Equal(t, int64(4), size)

	data, _ := rc.Object("user/final.mp3")
	require.Equal(t, []byte("aabb"), data)
}

func TestChunkTooLarge(t *testing.T) {
	ctx := context.Background()
	m := NewManager(t.TempDir(), testutil.NewMockRemote(), false, zerolog.Nop())
	m.SetMaxChunkSize(4)

	err := m.ReceiveChunk(ctx, "up1", 0, bytes.NewReader([]byte("too big")))
	require.ErrorIs(t, err, ErrChunkTooLarge)
}

func TestRemoteAssemblyInOrder(t *testing.T) {
	ctx := context.Background()
	rc := testutil.NewMockRemote()
	m := NewManager("", rc, true, zerolog.Nop())

	require.NoError(t, m.ReceiveChunk(ctx, "up1", 0, bytes.NewReader([]byte("aa"))))
	require.NoError(t, m.ReceiveChunk(ctx, "up1", 1, bytes.NewReader([]byte("bb"))))

	size, err := m.Finalize(ctx, "up1", 2, "user/final.mp3")
	require.NoError(t, err)
	require.Equal(t, int64(4), size)

	data, ok := rc.Object("user/final.mp3")
	require.True(t, ok)
	require.Equal(t, []byte("aabb"), data)

	// Scratch artifacts are cleaned up after finalize.
	for _, p := range rc.Paths() {
		require.NotContains(t, p, "_uploads/")
	}
}

func TestRemoteAssemblyRejectsOutOfOrder(t *testing.T) {
	ctx := context.Background()
	rc := testutil.NewMockRemote()
	m := NewManager("", rc, true, zerolog.Nop())

	err := m.ReceiveChunk(ctx, "up1", 1, bytes.NewReader([]byte("bb")))
	var ooo *OutOfOrderError
	require.ErrorAs(t, err, &ooo)
	require.Equal(t, 0, ooo.Expected)
	require.Equal(t, 1, ooo.Got)
}

func TestRemoteAssemblyRetryAfterAppendFailure(t *testing.T) {
	ctx := context.Background()
	rc := testutil.NewMockRemote()
	m := NewManager("", rc, true, zerolog.Nop())

	require.NoError(t, m.ReceiveChunk(ctx, "up1", 0, bytes.NewReader([]byte("aa"))))

	// The connection drops mid-append. The retry of the same chunk must be
	// treated as fresh work, not deduplicated away, or the assembled file
	// silently loses the chunk's bytes.
	rc.FailOps["append"] = errors.New("connection reset")
	err := m.ReceiveChunk(ctx, "up1", 1, bytes.NewReader([]byte("bb")))
	require.Error(t, err)

	delete(rc.FailOps, "append")
	require.NoError(t, m.ReceiveChunk(ctx, "up1", 1, bytes.NewReader([]byte("bb"))))

	size, err := m.Finalize(ctx, "up1", 2, "user/final.mp3")
	require.NoError(t, err)
	require.Equal(t, int64(4), size)

	data, _ := rc.Object("user/final.mp3")
	require.Equal(t, []byte("aabb"), data)
}

func TestRemoteAssemblyRetryAfterArtifactWriteFailure(t *testing.T) {
	ctx := context.Background()
	rc := testutil.NewMockRemote()
	m := NewManager("", rc, true, zerolog.Nop())

	require.NoError(t, m.ReceiveChunk(ctx, "up1", 0, bytes.NewReader([]byte("aa"))))

	// The append lands but the durable artifact write fails. The retry must
	// only rewrite the artifact, never append the bytes a second time.
	rc.FailOps["upload"] = errors.New("connection reset")
	err := m.ReceiveChunk(ctx, "up1", 1, bytes.NewReader([]byte("bb")))
	require.Error(t, err)

	delete(rc.FailOps, "upload")
	require.NoError(t, m.ReceiveChunk(ctx, "up1", 1, bytes.NewReader([]byte("bb"))))

	size, err := m.Finalize(ctx, "up1", 2, "user/final.mp3")
	require.NoError(t, err)
	require.Equal(t, int64(4), size)

	data, _ := rc.Object("user/final.mp3")
	require.Equal(t, []byte("aabb"), data)
}

func TestRemoteFinalizeRefusesShortAssembly(t *testing.T) {
	ctx := context.Background()
	rc := testutil.NewMockRemote()
	m := NewManager("", rc, true, zerolog.Nop())

	// Artifacts from a previous process claim four bytes, but the assembling
	// file only holds two. Publishing it would record a corrupt object.
	rc.Put("_uploads/up1/chunk_0", []byte("aa"))
	rc.Put("_uploads/up1/chunk_1", []byte("bb"))
	rc.Put("_uploads/up1/assembling", []byte("aa"))

	_, err := m.Finalize(ctx, "up1", 2, "user/final.mp3")
	require.Error(t, err)
	require.Contains(t, err.Error(), "chunk artifacts total")

	_, published := rc.Object("user/final.mp3")
	require.False(t, published)
}

func TestRemoteAssemblyDuplicateChunkIgnored(t *testing.T) {
	ctx := context.Background()
	rc := testutil.NewMockRemote()
	m := NewManager("", rc, true, zerolog.Nop())

	require.NoError(t, m.ReceiveChunk(ctx, "up1", 0, bytes.NewReader([]byte("aa"))))
	// A client retry of a chunk that is already durable must not re-append.
	require.NoError(t, m.ReceiveChunk(ctx, "up1", 0, bytes.NewReader([]byte("aa"))))
	require.NoError(t, m.ReceiveChunk(ctx, "up1", 1, bytes.NewReader([]byte("bb"))))

	size, err := m.Finalize(ctx, "up1", 2, "user/final.mp3")
	require.NoError(t, err)
	require.Equal(t, int64(4), size)
}
