package avatars

import (
	"context"
	"fmt"
	"path/filepath"

	"courier/internal/database"
)

// CleanupOrphanedImages deletes files in the avatar image directory
// that no context's history references: a mark-and-sweep pass. Mark
// loads every context's persisted list in one read transaction and
// unions the referenced file names; sweep walks the directory and
// deletes everything else. Per-context decode failures and per-file
// delete failures are logged and skipped, never aborting the pass.
//
// The sweep holds no lock against RecordModelForImage, so it must run
// at a quiescent point (startup, explicit maintenance) where no avatar
// write is in flight; a file written between mark and sweep would be
// deleted as an orphan.
//
// Returns the number of files deleted.
func (s *HistoryStore) CleanupOrphanedImages(ctx context.Context, db *database.DB) (int, error) {
	if !s.fs.DirectoryExists(s.imageDir) {
		return 0, nil
	}

	referenced := make(map[string]bool)
	err := db.Read(ctx, func(tx *database.ReadTx) error {
		histories, err := s.kv.All(tx)
		if err != nil {
			return err
		}
		for key, raw := range histories {
			records, _, err := decodeRecords(raw)
			if err != nil {
				s.logger.Warn("skipping unreadable avatar history during cleanup", "context", key, "error", err)
				continue
			}
			for _, rec := range records {
				if rec.Kind == recordKindImage && rec.ImageFile != "" {
					referenced[rec.ImageFile] = true
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("collecting referenced avatar images: %w", err)
	}

	files, err := s.fs.ListFiles(s.imageDir)
	if err != nil {
		return 0, fmt.Errorf("listing avatar image directory: %w", err)
	}

	deleted := 0
	for _, path := range files {
		if referenced[filepath.Base(path)] {
			continue
		}
		if err := s.fs.RemoveFile(path); err != nil {
			s.logger.Warn("failed to delete orphaned avatar image", "path", path, "error", err)
			continue
		}
		deleted++
	}

	s.logger.Info("avatar image cleanup complete", "deleted", deleted, "referenced", len(referenced), "scanned", len(files))
	return deleted, nil
}
