// handlers_files_test.go - Tests for file metadata handlers
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/digiscribe/backend/internal/catalog"
	"github.com/digiscribe/backend/internal/models"
)

func (f *apiFixture) seedFile(t *testing.T, ident models.Identity, savedAs, folderID, remotePath string) *models.File {
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
	if _, err := f.store.AddFile(context.Background(), file); err != nil {
		t.Fatalf("seeding file: %v", err)
	}
	f.remote.Put(remotePath, []byte("payload"))
	return file
}

func TestFileHandler_HandleGetFile(t *testing.T) {
	f := newAPIFixture(t)
	handler := NewFileHandler(f.catalog)
	file := f.seedFile(t, testOwner, "1-a.mp3", "", "user-1/1-a.mp3")

	tests := []struct {
		name       string
		id         string
		ident      models.Identity
		wantStatus int
		wantErr    bool
		errCode    string
	}{
		{"owner reads own file", file.ID, testOwner, http.StatusOK, false, ""},
		{"admin reads any file", file.ID, testAdmin, http.StatusOK, false, ""},
		{"stranger denied", file.ID, models.Identity{UID: "user-2", Role: models.RoleUser}, http.StatusForbidden, true, "ACCESS_DENIED"},
		{"unknown id", "nope", testOwner, http.StatusNotFound, true, "NOT_FOUND"},
		{"missing id", "", testOwner, http.StatusBadRequest, true, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := f.newContext(http.MethodGet, "/api/files/meta/"+tt.id, nil, tt.ident)
			c.SetParamNames("id")
			c.SetParamValues(tt.id)

			err := handler.HandleGetFile(c)
			if tt.wantErr {
				apiErr, ok := err.(*APIError)
				if !ok {
					t.Fatalf("expected APIError, got %T (%v)", err, err)
				}
				if apiErr.Status != tt.wantStatus || apiErr.Code != tt.errCode {
					t.Errorf("expected %d %s, got %d %s", tt.wantStatus, tt.errCode, apiErr.Status, apiErr.Code)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestFileHandler_HandleUpdateStatus(t *testing.T) {
	f := newAPIFixture(t)
	handler := NewFileHandler(f.catalog)
	file := f.seedFile(t, testOwner, "1-a.mp3", "", "user-1/1-a.mp3")

	// Owners cannot touch workflow status.
	c, _ := f.newContext(http.MethodPut, "/api/files/meta/"+file.ID+"/status", statusRequest{Status: "transcribed"}, testOwner)
	c.SetParamNames("id")
	c.SetParamValues(file.ID)
	err := handler.HandleUpdateStatus(c)
	if apiErr, ok := err.(*APIError); !ok || apiErr.Code != "ACCESS_DENIED" {
		t.Fatalf("expected ACCESS_DENIED, got %v", err)
	}

	c, rec := f.newContext(http.MethodPut, "/api/files/meta/"+file.ID+"/status", statusRequest{Status: "transcribed"}, testAdmin)
	c.SetParamNames("id")
	c.SetParamValues(file.ID)
	if err := handler.HandleUpdateStatus(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}

	got, _ := f.store.GetFile(context.Background(), file.ID)
	if got.Status != models.StatusTranscribed {
		t.Errorf("expected status transcribed, got %s", got.Status)
	}
}

func TestFileHandler_HandleDeleteFile(t *testing.T) {
	f := newAPIFixture(t)
	handler := NewFileHandler(f.catalog)
	file := f.seedFile(t, testOwner, "1-a.mp3", "", "user-1/1-a.mp3")

	c, rec := f.newContext(http.MethodDelete, "/api/files/meta/"+file.ID, nil, testOwner)
	c.SetParamNames("id")
	c.SetParamValues(file.ID)
	if err := handler.HandleDeleteFile(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if _, ok := f.remote.Object("user-1/1-a.mp3"); ok {
		t.Error("expected remote object to be removed")
	}
}

func TestFileHandler_HandleBulkStatus(t *testing.T) {
	f := newAPIFixture(t)
	handler := NewFileHandler(f.catalog)

	a := f.seedFile(t, testOwner, "1-a.mp3", "", "user-1/1-a.mp3")
	b := f.seedFile(t, testOwner, "2-b.mp3", "", "user-1/2-b.mp3")

	body := bulkStatusRequest{FileIDs: []string{a.ID, b.ID, "nope"}, Status: "in-progress"}
	c, rec := f.newContext(http.MethodPost, "/api/files/bulk/status", body, testAdmin)
	if err := handler.HandleBulkStatus(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var res catalog.BulkResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if res.Succeeded != 2 || res.Skipped != 1 {
		t.Errorf("expected 2 succeeded / 1 skipped, got %d / %d", res.Succeeded, res.Skipped)
	}
}

func TestFileHandler_BulkRequestsNeedIDs(t *testing.T) {
	f := newAPIFixture(t)
	handler := NewFileHandler(f.catalog)

	c, _ := f.newContext(http.MethodPost, "/api/files/bulk/delete", bulkDeleteRequest{}, testOwner)
	err := handler.HandleBulkDelete(c)
	if apiErr, ok := err.(*APIError); !ok || apiErr.Code != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}
