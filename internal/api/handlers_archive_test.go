// handlers_archive_test.go - Tests for zip download handlers
package api

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/rs/zerolog"

	"github.com/digiscribe/backend/internal/models"
)

func readZipEntries(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("opening zip: %v", err)
	}
	entries := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("opening entry %s: %v", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("reading entry %s: %v", f.Name, err)
		}
		entries[f.Name] = content
	}
	return entries
}

func TestArchiveHandler_HandleBulkDownload(t *testing.T) {
	f := newAPIFixture(t)
	handler := NewArchiveHandler(f.catalog, f.remote, zerolog.Nop())

	a := f.seedFile(t, testOwner, "1-a.mp3", "", "user-1/1-a.mp3")
	b := f.seedFile(t, testOwner, "2-b.mp3", "", "user-1/2-b.mp3")
	f.remote.Put("user-1/1-a.mp3", []byte("first"))
	f.remote.Put("user-1/2-b.mp3", []byte("second"))

	body := bulkDownloadRequest{FileIDs: []string{a.ID, b.ID}}
	c, rec := f.newContext(http.MethodPost, "/api/files/bulk/download", body, testOwner)
	if err := handler.HandleBulkDownload(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/zip" {
		t.Errorf("expected application/zip, got %s", ct)
	}

	entries := readZipEntries(t, rec.Body.Bytes())
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if string(entries["1-a.mp3"]) != "first" || string(entries["2-b.mp3"]) != "second" {
		t.Errorf("unexpected entry contents: %v", entries)
	}
}

func TestArchiveHandler_HandleDownloadFolder(t *testing.T) {
	f := newAPIFixture(t)
	handler := NewArchiveHandler(f.catalog, f.remote, zerolog.Nop())

	top := f.seedFolder(t, testOwner, "Interviews", "")
	sub, err := f.catalog.CreateFolder(context.Background(), testOwner, "Raw", top.ID)
	if err != nil {
		t.Fatalf("seeding subfolder: %v", err)
	}

	f.seedFile(t, testOwner, "1-a.mp3", top.ID, "user-1/Interviews/1-a.mp3")
	f.seedFile(t, testOwner, "2-b.mp3", sub.ID, "user-1/Interviews/Raw/2-b.mp3")

	c, rec := f.newContext(http.MethodGet, "/api/folders/"+top.ID+"/download", nil, testOwner)
	c.SetParamNames("id")
	c.SetParamValues(top.ID)
	if err := handler.HandleDownloadFolder(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries := readZipEntries(t, rec.Body.Bytes())
	if _, ok := entries["1-a.mp3"]; !ok {
		t.Error("expected top-level entry 1-a.mp3")
	}
	if _, ok := entries["Raw/2-b.mp3"]; !ok {
		t.Errorf("expected nested entry Raw/2-b.mp3, have %v", keys(entries))
	}
}

func keys(m map[string][]byte) []string {
	var out []string
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestArchiveHandler_BulkDownloadDeniedFilesSkipped(t *testing.T) {
	f := newAPIFixture(t)
	handler := NewArchiveHandler(f.catalog, f.remote, zerolog.Nop())

	theirs := f.seedFile(t, models.Identity{UID: "user-2", Role: models.RoleUser}, "1-x.mp3", "", "user-2/1-x.mp3")

	body := bulkDownloadRequest{FileIDs: []string{theirs.ID}}
	c, _ := f.newContext(http.MethodPost, "/api/files/bulk/download", body, testOwner)
	err := handler.HandleBulkDownload(c)
	apiErr, ok := err.(*APIError)
	if !ok || apiErr.Code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND when nothing is downloadable, got %v", err)
	}
}
