package catalog

import (
	"context"

	"github.com/digiscribe/backend/internal/models"
)

// BulkResult reports the aggregate outcome of a bulk operation. Skipped
// counts items that failed or were denied; the rest of the batch still runs.
type BulkResult struct {
	Succeeded int `json:"succeeded"`
	Skipped   int `json:"skipped"`
}

// BulkMove moves several files into targetFolderID, counting per-item
// outcomes instead of aborting on the first failure.
func (s *Service) BulkMove(ctx context.Context, ident models.Identity, fileIDs []string, targetFolderID string) (BulkResult, error) {
	if targetFolderID != "" {
		folder, err := s.store.GetFolder(ctx, targetFolderID)
		if err != nil {
			return BulkResult{}, err
		}
		if !ident.CanAccess(folder.CreatedBy) {
			return BulkResult{}, ErrAccessDenied
		}
	}

	var res BulkResult
	for _, id := range fileIDs {
		if _, err := s.MoveFile(ctx, ident, id, targetFolderID); err != nil {
			s.log.Warn().Str("file", id).Err(err).Msg("bulk move: item skipped")
			res.Skipped++
			continue
		}
		res.Succeeded++
	}
	return res, nil
}

// BulkDelete deletes several files, skipping the ones that fail.
func (s *Service) BulkDelete(ctx context.Context, ident models.Identity, fileIDs []string) (BulkResult, error) {
	var res BulkResult
	for _, id := range fileIDs {
		if err := s.DeleteFile(ctx, ident, id); err != nil {
			s.log.Warn().Str("file", id).Err(err).Msg("bulk delete: item skipped")
			res.Skipped++
			continue
		}
		res.Succeeded++
	}
	return res, nil
}

// BulkStatus sets the workflow status on several files. Privileged only,
// like UpdateStatus.
func (s *Service) BulkStatus(ctx context.Context, ident models.Identity, fileIDs []string, status models.FileStatus) (BulkResult, error) {
	if !ident.IsAdmin() {
		return BulkResult{}, ErrAccessDenied
	}
	if !status.Valid() {
		return BulkResult{}, invalidf("invalid status %q", status)
	}

	var res BulkResult
	for _, id := range fileIDs {
		if err := s.UpdateStatus(ctx, ident, id, status); err != nil {
			s.log.Warn().Str("file", id).Err(err).Msg("bulk status: item skipped")
			res.Skipped++
			continue
		}
		res.Succeeded++
	}
	return res, nil
}
