package avatars

import (
	"fmt"
	"path/filepath"

	"courier/internal/core"
	"courier/internal/database"
)

const historyCollection = "avatar_history"

// HistoryStore persists the ordered list of recently used avatars per
// context (a group or the local profile), most-recent-first, in the
// key-value sub-store. Image-backed avatars reference files in the
// avatar image directory; files dropped from every context's history
// become orphans and are reclaimed by CleanupOrphanedImages, not
// eagerly on removal.
type HistoryStore struct {
	kv       *database.KVStore
	fs       core.Filesystem
	imageDir string
	idgen    core.IDGenerator
	logger   core.Logger
}

// NewHistoryStore creates an avatar history store writing image files
// under imageDir.
func NewHistoryStore(imageDir string, fsys core.Filesystem, idgen core.IDGenerator, logger core.Logger) *HistoryStore {
	return &HistoryStore{
		kv:       database.NewKVStore(historyCollection),
		fs:       fsys,
		imageDir: imageDir,
		idgen:    idgen,
		logger:   logger,
	}
}

// ImageDir returns the avatar image directory.
func (s *HistoryStore) ImageDir() string { return s.imageDir }

// Models returns the context's avatar history, most-recent-first.
// A malformed persisted list reads back as empty; individual entries
// that fail validation (unknown icon, missing image file, empty text)
// are dropped without affecting the rest. Only storage errors propagate.
func (s *HistoryStore) Models(tx *database.ReadTx, avCtx core.AvatarContext) ([]core.AvatarModel, error) {
	raw, ok, err := s.kv.GetRaw(tx, avCtx.Key())
	if err != nil {
		return nil, fmt.Errorf("loading avatar history: %w", err)
	}
	if !ok {
		return nil, nil
	}

	records, dropped, err := decodeRecords(raw)
	if err != nil {
		s.logger.Warn("avatar history unreadable, treating as empty", "context", avCtx.Key(), "error", err)
		return nil, nil
	}
	if dropped > 0 {
		s.logger.Debug("dropped undecodable avatar history entries", "context", avCtx.Key(), "dropped", dropped)
	}

	models := make([]core.AvatarModel, 0, len(records))
	for _, rec := range records {
		model, ok := s.modelFromRecord(rec)
		if !ok {
			s.logger.Debug("dropped invalid avatar history entry", "context", avCtx.Key(), "identifier", rec.Identifier, "kind", rec.Kind)
			continue
		}
		models = append(models, model)
	}
	return models, nil
}

// TouchedModel moves model to the front of the context's history,
// removing any existing entry with the same identifier first, and
// persists the updated list.
func (s *HistoryStore) TouchedModel(tx *database.WriteTx, model core.AvatarModel, avCtx core.AvatarContext) error {
	models, err := s.Models(&tx.ReadTx, avCtx)
	if err != nil {
		return err
	}

	updated := make([]core.AvatarModel, 0, len(models)+1)
	updated = append(updated, model)
	for _, m := range models {
		if m.Identifier == model.Identifier {
			continue
		}
		updated = append(updated, m)
	}

	return s.persist(tx, avCtx, updated)
}

// DeletedModel removes the entry matching model's identifier from the
// context's history and persists the updated list. When the removed
// entry is image-backed its file is deleted best-effort: a failed
// delete is logged and left for the next orphan sweep.
func (s *HistoryStore) DeletedModel(tx *database.WriteTx, model core.AvatarModel, avCtx core.AvatarContext) error {
	models, err := s.Models(&tx.ReadTx, avCtx)
	if err != nil {
		return err
	}

	remaining := make([]core.AvatarModel, 0, len(models))
	var removed *core.AvatarModel
	for _, m := range models {
		if m.Identifier == model.Identifier {
			removed = &m
			continue
		}
		remaining = append(remaining, m)
	}

	if removed != nil && removed.Kind == core.AvatarKindImage {
		if err := s.fs.RemoveFileIfExists(removed.ImagePath); err != nil {
			s.logger.Warn("failed to delete avatar image file", "path", removed.ImagePath, "error", err)
		}
	}

	return s.persist(tx, avCtx, remaining)
}

// RecordModelForImage encodes imageData to the standard avatar JPEG
// format, writes it under a fresh identifier in the image directory,
// and records the resulting image avatar at the front of the context's
// history. On any failure it returns a nil model and leaves both the
// history and the filesystem unchanged (a written file is removed again
// if the history update fails).
func (s *HistoryStore) RecordModelForImage(tx *database.WriteTx, imageData []byte, avCtx core.AvatarContext) (*core.AvatarModel, error) {
	if err := s.fs.EnsureDirectory(s.imageDir); err != nil {
		return nil, fmt.Errorf("ensuring avatar image directory: %w", err)
	}

	encoded, err := encodeAvatarImage(imageData)
	if err != nil {
		return nil, fmt.Errorf("encoding avatar image: %w", err)
	}

	identifier := s.idgen.New()
	path := filepath.Join(s.imageDir, identifier+avatarImageExtension)
	if err := s.fs.WriteFile(path, encoded); err != nil {
		return nil, fmt.Errorf("writing avatar image: %w", err)
	}

	model := core.NewImageAvatar(identifier, path, core.DefaultAvatarTheme)
	if err := s.TouchedModel(tx, model, avCtx); err != nil {
		// Don't leave an orphan behind on the failure path.
		if rmErr := s.fs.RemoveFileIfExists(path); rmErr != nil {
			s.logger.Warn("failed to remove avatar image after history write failure", "path", path, "error", rmErr)
		}
		return nil, err
	}

	return &model, nil
}

func (s *HistoryStore) persist(tx *database.WriteTx, avCtx core.AvatarContext, models []core.AvatarModel) error {
	records := make([]avatarRecord, len(models))
	for i, m := range models {
		records[i] = recordFromModel(m)
	}

	raw, err := encodeRecords(records)
	if err != nil {
		return err
	}
	if err := s.kv.SetRaw(tx, avCtx.Key(), raw); err != nil {
		return fmt.Errorf("persisting avatar history: %w", err)
	}
	return nil
}
