// Package avatars persists per-context avatar selection history and
// reconciles the avatar image directory against it.
package avatars

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"courier/internal/core"
)

// Record kind discriminants. Persisted as strings so future kinds can
// be added without corrupting older readers: unknown kinds are skipped
// entry-by-entry, never failing the whole list.
const (
	recordKindIcon  = "icon"
	recordKindImage = "image"
	recordKindText  = "text"
)

// avatarRecord is the persisted shape of one history entry. It is
// deliberately decoupled from core.AvatarModel: the record stores the
// image file name relative to the avatar directory and tolerates
// unknown kind and theme tags.
type avatarRecord struct {
	Kind       string `json:"kind"`
	Identifier string `json:"identifier"`
	ImageFile  string `json:"imageFile,omitempty"`
	Text       string `json:"text,omitempty"`
	Theme      string `json:"theme"`
}

// decodeRecords decodes a persisted history list. The error is non-nil
// only when the list as a whole is malformed; individual entries that
// fail to decode are dropped and counted in the second return value.
func decodeRecords(raw []byte) ([]avatarRecord, int, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, 0, fmt.Errorf("decoding avatar history list: %w", err)
	}

	records := make([]avatarRecord, 0, len(elems))
	dropped := 0
	for _, elem := range elems {
		var rec avatarRecord
		if err := json.Unmarshal(elem, &rec); err != nil {
			dropped++
			continue
		}
		switch rec.Kind {
		case recordKindIcon, recordKindImage, recordKindText:
			records = append(records, rec)
		default:
			// Possibly written by a newer version. Drop just this entry.
			dropped++
		}
	}
	return records, dropped, nil
}

func encodeRecords(records []avatarRecord) ([]byte, error) {
	raw, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encoding avatar history list: %w", err)
	}
	return raw, nil
}

// recordFromModel projects a model to its persisted shape.
func recordFromModel(model core.AvatarModel) avatarRecord {
	rec := avatarRecord{
		Identifier: model.Identifier,
		Theme:      string(model.Theme),
	}
	switch model.Kind {
	case core.AvatarKindIcon:
		rec.Kind = recordKindIcon
	case core.AvatarKindImage:
		rec.Kind = recordKindImage
		rec.ImageFile = filepath.Base(model.ImagePath)
	case core.AvatarKindText:
		rec.Kind = recordKindText
		rec.Text = model.Text
	}
	return rec
}

// modelFromRecord validates a persisted record and rebuilds its model.
// Returns false when the entry should be dropped from view: unknown
// icon names, image files no longer on disk, and empty text payloads
// all disqualify an entry without affecting its siblings. Unrecognized
// theme tags degrade to the default theme instead of dropping.
func (s *HistoryStore) modelFromRecord(rec avatarRecord) (core.AvatarModel, bool) {
	theme := core.AvatarTheme(rec.Theme)
	if !core.IsAvatarTheme(rec.Theme) {
		theme = core.DefaultAvatarTheme
	}

	switch rec.Kind {
	case recordKindIcon:
		if !core.IsAvatarIcon(rec.Identifier) {
			return core.AvatarModel{}, false
		}
		return core.AvatarModel{Identifier: rec.Identifier, Kind: core.AvatarKindIcon, Theme: theme}, true
	case recordKindImage:
		if rec.ImageFile == "" {
			return core.AvatarModel{}, false
		}
		path := filepath.Join(s.imageDir, rec.ImageFile)
		if !s.fs.FileExists(path) {
			return core.AvatarModel{}, false
		}
		return core.NewImageAvatar(rec.Identifier, path, theme), true
	case recordKindText:
		if rec.Text == "" {
			return core.AvatarModel{}, false
		}
		return core.NewTextAvatar(rec.Identifier, rec.Text, theme), true
	default:
		return core.AvatarModel{}, false
	}
}
