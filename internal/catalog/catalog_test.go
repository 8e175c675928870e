package catalog

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/digiscribe/backend/internal/metastore"
	"github.com/digiscribe/backend/internal/models"
	"github.com/digiscribe/backend/internal/paths"
	"github.com/digiscribe/backend/internal/testutil"
	"github.com/digiscribe/backend/internal/upload"
)

var (
	owner = models.Identity{UID: "user-1", Email: "user@example.com", Role: models.RoleUser}
	other = models.Identity{UID: "user-2", Email: "other@example.com", Role: models.RoleUser}
	admin = models.Identity{UID: "admin-1", Email: "admin@example.com", Role: models.RoleAdmin}
)

type fixture struct {
	store   *metastore.MemoryStore
	remote  *testutil.MockRemote
	service *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := metastore.NewMemoryStore()
	rc := testutil.NewMockRemote()
	resolver := paths.NewResolver(store)
	assembler := upload.NewManager(t.TempDir(), rc, false, zerolog.Nop())
	return &fixture{
		store:   store,
		remote:  rc,
		service: NewService(store, rc, resolver, assembler, zerolog.Nop()),
	}
}

func (f *fixture) mustCreateFolder(t *testing.T, ident models.Identity, name, parentID string) *models.Folder {
	t.Helper()
	folder, err := f.service.CreateFolder(context.Background(), ident, name, parentID)
	require.NoError(t, err)
	return folder
}

// addFile seeds a file record and its remote object in the given folder.
func (f *fixture) addFile(t *testing.T, ident models.Identity, savedAs, folderID, remotePath string) *models.File {
	t.Helper()
	file := &models.File{
		OriginalName: savedAs,
		SavedAs:      savedAs,
		StoragePath:  remotePath,
		UploadedBy:   ident.UID,
		Status:       models.StatusPending,
		SourceType:   models.SourceFile,
		FolderID:     folderID,
		URL:          models.RetrievalURL(remotePath),
	}
	_, err := f.store.AddFile(context.Background(), file)
	require.NoError(t, err)
	f.remote.Put(remotePath, []byte("payload"))
	return file
}

func TestCreateFolderAuthz(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	parent := f.mustCreateFolder(t, owner, "Projects", "")

	_, err := f.service.CreateFolder(ctx, other, "Sneaky", parent.ID)
	require.ErrorIs(t, err, ErrAccessDenied)

	// Admins may create anywhere.
	_, err = f.service.CreateFolder(ctx, admin, "Admin Notes", parent.ID)
	require.NoError(t, err)

	var invalid *ValidationError
	_, err = f.service.CreateFolder(ctx, owner, "   ", "")
	require.ErrorAs(t, err, &invalid)
}

func TestMoveFolderRejectsCycles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a := f.mustCreateFolder(t, owner, "a", "")
	b := f.mustCreateFolder(t, owner, "b", a.ID)
	c := f.mustCreateFolder(t, owner, "c", b.ID)

	_, err := f.service.MoveFolder(ctx, owner, a.ID, a.ID)
	require.ErrorIs(t, err, ErrCircularMove)

	_, err = f.service.MoveFolder(ctx, owner, a.ID, c.ID)
	require.ErrorIs(t, err, ErrCircularMove)

	// The rejected move must not have touched the hierarchy.
	got, err := f.store.GetFolder(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, "", got.ParentID)

	// A legal move still works.
	_, err = f.service.MoveFolder(ctx, owner, c.ID, a.ID)
	require.NoError(t, err)
}

func TestRenameFolderCascades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	reports := f.mustCreateFolder(t, owner, "Reports", "")
	drafts := f.mustCreateFolder(t, owner, "Drafts", reports.ID)

	direct := f.addFile(t, owner, "1-a.mp3", reports.ID, "user-1/Reports/1-a.mp3")
	nested := f.addFile(t, owner, "2-b.mp3", drafts.ID, "user-1/Reports/Drafts/2-b.mp3")

	_, err := f.service.RenameFolder(ctx, owner, reports.ID, "Q-Reports")
	require.NoError(t, err)

	// Metadata paths follow the rename, at every depth.
	got, err := f.store.GetFile(ctx, direct.ID)
	require.NoError(t, err)
	require.Equal(t, "user-1/Q-Reports/1-a.mp3", got.StoragePath)

	got, err = f.store.GetFile(ctx, nested.ID)
	require.NoError(t, err)
	require.Equal(t, "user-1/Q-Reports/Drafts/2-b.mp3", got.StoragePath)
	require.Equal(t, models.RetrievalURL(got.StoragePath), got.URL)

	// Remote objects moved with the directory.
	_, ok := f.remote.Object("user-1/Q-Reports/Drafts/2-b.mp3")
	require.True(t, ok)
	_, ok = f.remote.Object("user-1/Reports/Drafts/2-b.mp3")
	require.False(t, ok)
}

func TestRenameFolderSurvivesRemoteFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	reports := f.mustCreateFolder(t, owner, "Reports", "")
	file := f.addFile(t, owner, "1-a.mp3", reports.ID, "user-1/Reports/1-a.mp3")

	f.remote.FailOps["rename"] = errors.New("connection reset")

	_, err := f.service.RenameFolder(ctx, owner, reports.ID, "Q-Reports")
	require.NoError(t, err)

	// Metadata committed anyway; the sweep owns the drift.
	got, err := f.store.GetFolder(ctx, reports.ID)
	require.NoError(t, err)
	require.Equal(t, "Q-Reports", got.Name)

	gotFile, err := f.store.GetFile(ctx, file.ID)
	require.NoError(t, err)
	require.Equal(t, "user-1/Q-Reports/1-a.mp3", gotFile.StoragePath)
}

func TestDeleteFolderReparentsChildren(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	top := f.mustCreateFolder(t, owner, "Top", "")
	mid := f.mustCreateFolder(t, owner, "Mid", top.ID)
	sub := f.mustCreateFolder(t, owner, "Sub", mid.ID)

	directFile := f.addFile(t, owner, "1-a.mp3", mid.ID, "user-1/Top/Mid/1-a.mp3")
	deepFile := f.addFile(t, owner, "2-b.mp3", sub.ID, "user-1/Top/Mid/Sub/2-b.mp3")

	require.NoError(t, f.service.DeleteFolder(ctx, owner, mid.ID))

	_, err := f.store.GetFolder(ctx, mid.ID)
	require.ErrorIs(t, err, metastore.ErrNotFound)

	// Direct file moved up to Top, in metadata and on the remote.
	got, err := f.store.GetFile(ctx, directFile.ID)
	require.NoError(t, err)
	require.Equal(t, top.ID, got.FolderID)
	require.Equal(t, "user-1/Top/1-a.mp3", got.StoragePath)
	_, ok := f.remote.Object("user-1/Top/1-a.mp3")
	require.True(t, ok)

	// Child folder re-parented to Top; its subtree paths recomputed.
	gotSub, err := f.store.GetFolder(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, top.ID, gotSub.ParentID)

	gotDeep, err := f.store.GetFile(ctx, deepFile.ID)
	require.NoError(t, err)
	require.Equal(t, "user-1/Top/Sub/2-b.mp3", gotDeep.StoragePath)
}

func TestRenameFilePreservesPrefixAndExtension(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	file := f.addFile(t, owner, "1700000000000-old.mp3", "", "user-1/1700000000000-old.mp3")

	got, err := f.service.RenameFile(ctx, owner, file.ID, "new name")
	require.NoError(t, err)
	require.Equal(t, "new name.mp3", got.OriginalName)
	require.Equal(t, "1700000000000-new name.mp3", got.SavedAs)
	require.Equal(t, "user-1/1700000000000-new name.mp3", got.StoragePath)

	_, ok := f.remote.Object("user-1/1700000000000-new name.mp3")
	require.True(t, ok)
}

func TestUpdateStatusPrivileged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	file := f.addFile(t, owner, "1-a.mp3", "", "user-1/1-a.mp3")

	err := f.service.UpdateStatus(ctx, owner, file.ID, models.StatusTranscribed)
	require.ErrorIs(t, err, ErrAccessDenied)

	require.NoError(t, f.service.UpdateStatus(ctx, admin, file.ID, models.StatusTranscribed))
	// Stepping backward is allowed for corrections.
	require.NoError(t, f.service.UpdateStatus(ctx, admin, file.ID, models.StatusPending))

	var invalid *ValidationError
	err = f.service.UpdateStatus(ctx, admin, file.ID, "done")
	require.ErrorAs(t, err, &invalid)
}

func TestDeleteFileRemoteFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	file := f.addFile(t, owner, "1-a.mp3", "", "user-1/1-a.mp3")

	// A remote transport failure aborts the delete, record intact.
	f.remote.FailOps["delete"] = errors.New("connection reset")
	err := f.service.DeleteFile(ctx, owner, file.ID)
	require.Error(t, err)
	_, err = f.store.GetFile(ctx, file.ID)
	require.NoError(t, err)

	delete(f.remote.FailOps, "delete")
	require.NoError(t, f.service.DeleteFile(ctx, owner, file.ID))
	_, err = f.store.GetFile(ctx, file.ID)
	require.ErrorIs(t, err, metastore.ErrNotFound)
	_, ok := f.remote.Object("user-1/1-a.mp3")
	require.False(t, ok)
}

func TestCompleteUploadEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	folder := f.mustCreateFolder(t, owner, "Interviews", "")

	require.NoError(t, f.service.assembler.ReceiveChunk(ctx, "up1", 0, bytes.NewReader([]byte("hello "))))
	require.NoError(t, f.service.assembler.ReceiveChunk(ctx, "up1", 1, bytes.NewReader([]byte("world"))))

	file, err := f.service.CompleteUpload(ctx, owner, CompleteUploadRequest{
		UploadID:    "up1",
		FileName:    "interview one.mp3",
		TotalChunks: 2,
		MimeType:    "audio/mpeg",
		FolderID:    folder.ID,
	})
	require.NoError(t, err)
	require.Equal(t, int64(11), file.Size)
	require.Equal(t, models.StatusPending, file.Status)
	require.True(t, strings.HasPrefix(file.StoragePath, "user-1/Interviews/"))
	require.True(t, strings.HasSuffix(file.StoragePath, "-interview one.mp3"))

	data, ok := f.remote.Object(file.StoragePath)
	require.True(t, ok)
	require.Equal(t, []byte("hello world"), data)
}

func TestUploadMimeAllowList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var invalid *ValidationError
	_, err := f.service.CompleteUpload(ctx, owner, CompleteUploadRequest{
		UploadID:    "up1",
		FileName:    "notes.pdf",
		TotalChunks: 1,
		MimeType:    "application/pdf",
	})
	require.ErrorAs(t, err, &invalid)

	// The same document type is fine for privileged callers.
	require.NoError(t, f.service.assembler.ReceiveChunk(ctx, "up2", 0, bytes.NewReader([]byte("%PDF"))))
	_, err = f.service.CompleteUpload(ctx, admin, CompleteUploadRequest{
		UploadID:    "up2",
		FileName:    "notes.pdf",
		TotalChunks: 1,
		MimeType:    "application/pdf",
	})
	require.NoError(t, err)
}

func TestBulkMoveCountsSkips(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	target := f.mustCreateFolder(t, owner, "Target", "")

	mine := f.addFile(t, owner, "1-a.mp3", "", "user-1/1-a.mp3")
	theirs := f.addFile(t, other, "2-b.mp3", "", "user-2/2-b.mp3")

	res, err := f.service.BulkMove(ctx, owner, []string{mine.ID, theirs.ID, "no-such-id"}, target.ID)
	require.NoError(t, err)
	require.Equal(t, 1, res.Succeeded)
	require.Equal(t, 2, res.Skipped)

	got, err := f.store.GetFile(ctx, mine.ID)
	require.NoError(t, err)
	require.Equal(t, target.ID, got.FolderID)
}

func TestCreateURLRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	file, err := f.service.CreateURLRecord(ctx, owner, "https://example.com/video", "briefing", "", "")
	require.NoError(t, err)
	require.Equal(t, models.SourceURL, file.SourceType)
	require.Equal(t, "https://example.com/video", file.URL)
	require.Zero(t, f.remote.ObjectCount())

	var invalid *ValidationError
	_, err = f.service.CreateURLRecord(ctx, owner, "ftp://example.com/x", "", "", "")
	require.ErrorAs(t, err, &invalid)
}
