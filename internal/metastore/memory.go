package metastore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/digiscribe/backend/internal/models"
)

// MemoryStore is a mutex-guarded in-memory Store. It backs tests and local
// development without a database.
type MemoryStore struct {
	mu      sync.RWMutex
	folders map[string]*models.Folder
	files   map[string]*models.File
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		folders: make(map[string]*models.Folder),
		files:   make(map[string]*models.File),
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) GetFolder(_ context.Context, id string) (*models.Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.folders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (s *MemoryStore) AddFolder(_ context.Context, f *models.Folder) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	cp := *f
	s.folders[f.ID] = &cp
	return f.ID, nil
}

func (s *MemoryStore) UpdateFolder(_ context.Context, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.folders[id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range fields {
		switch k {
		case "name":
			f.Name = v.(string)
		case "parentId":
			f.ParentID = v.(string)
		case "updatedAt":
			f.UpdatedAt = v.(time.Time)
		}
	}
	return nil
}

func (s *MemoryStore) DeleteFolder(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.folders[id]; !ok {
		return ErrNotFound
	}
	delete(s.folders, id)
	return nil
}

func (s *MemoryStore) ListFolders(_ context.Context, ownerUID string) ([]*models.Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Folder
	for _, f := range s.folders {
		if ownerUID != "" && f.CreatedBy != ownerUID {
			continue
		}
		cp := *f
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) ChildFolders(_ context.Context, parentID string) ([]*models.Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Folder
	for _, f := range s.folders {
		if f.ParentID == parentID {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetFile(_ context.Context, id string) (*models.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.files[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (s *MemoryStore) AddFile(_ context.Context, f *models.File) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	cp := *f
	s.files[f.ID] = &cp
	return f.ID, nil
}

func (s *MemoryStore) UpdateFile(_ context.Context, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range fields {
		switch k {
		case "originalName":
			f.OriginalName = v.(string)
		case "savedAs":
			f.SavedAs = v.(string)
		case "storagePath":
			f.StoragePath = v.(string)
		case "url":
			f.URL = v.(string)
		case "folderId":
			f.FolderID = v.(string)
		case "status":
			f.Status = v.(models.FileStatus)
		case "description":
			f.Description = v.(string)
		case "size":
			f.Size = v.(int64)
		}
	}
	return nil
}

func (s *MemoryStore) DeleteFile(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return ErrNotFound
	}
	delete(s.files, id)
	return nil
}

func (s *MemoryStore) ListFiles(_ context.Context, ownerUID string) ([]*models.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.File
	for _, f := range s.files {
		if ownerUID != "" && f.UploadedBy != ownerUID {
			continue
		}
		cp := *f
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) FilesInFolder(_ context.Context, folderID string) ([]*models.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.File
	for _, f := range s.files {
		if f.FolderID == folderID {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) FileBatch(_ context.Context, afterID string, limit int) ([]*models.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.File
	for _, f := range s.files {
		if f.ID > afterID {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
