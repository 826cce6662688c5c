package avatars

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"strings"
	"testing"

	"courier/internal/core"
	"courier/internal/database"
	"courier/internal/testutil"
)

const testImageDir = "/avatars"

func newTestHistoryStore(t *testing.T) (*database.DB, *HistoryStore, *testutil.MockFilesystem) {
	t.Helper()
	db := testutil.NewTestDatabase(t)
	fsys := testutil.NewMockFilesystem()
	store := NewHistoryStore(testImageDir, fsys, testutil.NewStubIDGenerator(), core.NewNopLogger())
	return db, store, fsys
}

func iconAvatar(t *testing.T, name string) core.AvatarModel {
	t.Helper()
	model, err := core.NewIconAvatar(name, core.ThemeForest)
	if err != nil {
		t.Fatalf("NewIconAvatar(%q) error = %v", name, err)
	}
	return model
}

func readModels(t *testing.T, db *database.DB, store *HistoryStore, avCtx core.AvatarContext) []core.AvatarModel {
	t.Helper()
	var models []core.AvatarModel
	err := db.Read(context.Background(), func(tx *database.ReadTx) error {
		var err error
		models, err = store.Models(tx, avCtx)
		return err
	})
	if err != nil {
		t.Fatalf("Models() error = %v", err)
	}
	return models
}

func touch(t *testing.T, db *database.DB, store *HistoryStore, model core.AvatarModel, avCtx core.AvatarContext) {
	t.Helper()
	err := db.Write(context.Background(), func(tx *database.WriteTx) error {
		return store.TouchedModel(tx, model, avCtx)
	})
	if err != nil {
		t.Fatalf("TouchedModel() error = %v", err)
	}
}

// setRawHistory writes a raw payload directly into the history
// collection, bypassing the store, to exercise tolerant decoding.
func setRawHistory(t *testing.T, db *database.DB, avCtx core.AvatarContext, raw string) {
	t.Helper()
	kv := database.NewKVStore(historyCollection)
	err := db.Write(context.Background(), func(tx *database.WriteTx) error {
		return kv.SetRaw(tx, avCtx.Key(), []byte(raw))
	})
	if err != nil {
		t.Fatalf("SetRaw() error = %v", err)
	}
}

// pngBytes encodes a solid-color PNG of the given size.
func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 80, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func TestHistoryStore_Models(t *testing.T) {
	profile := core.ProfileAvatarContext()

	t.Run("empty for a fresh context", func(t *testing.T) {
		db, store, _ := newTestHistoryStore(t)
		if models := readModels(t, db, store, profile); len(models) != 0 {
			t.Errorf("Models() = %d entries for fresh context, want 0", len(models))
		}
	})

	t.Run("contexts are independent", func(t *testing.T) {
		db, store, _ := newTestHistoryStore(t)
		group := core.GroupAvatarContext([]byte{0xAB, 0xCD})

		touch(t, db, store, iconAvatar(t, "fox"), profile)
		touch(t, db, store, iconAvatar(t, "cat"), group)

		profileModels := readModels(t, db, store, profile)
		groupModels := readModels(t, db, store, group)
		if len(profileModels) != 1 || profileModels[0].Identifier != "fox" {
			t.Errorf("profile history = %v, want just fox", profileModels)
		}
		if len(groupModels) != 1 || groupModels[0].Identifier != "cat" {
			t.Errorf("group history = %v, want just cat", groupModels)
		}
	})

	t.Run("malformed list reads back empty", func(t *testing.T) {
		db, store, _ := newTestHistoryStore(t)
		setRawHistory(t, db, profile, `{"not":"a list"}`)

		if models := readModels(t, db, store, profile); len(models) != 0 {
			t.Errorf("Models() = %d entries from malformed payload, want 0", len(models))
		}
	})

	t.Run("unknown kind dropped, siblings kept", func(t *testing.T) {
		db, store, _ := newTestHistoryStore(t)
		setRawHistory(t, db, profile, `[
			{"kind":"hologram","identifier":"x","theme":"forest"},
			{"kind":"icon","identifier":"dog","theme":"teal"}
		]`)

		models := readModels(t, db, store, profile)
		if len(models) != 1 || models[0].Identifier != "dog" {
			t.Errorf("Models() = %v, want just the dog icon", models)
		}
	})

	t.Run("unknown icon name dropped", func(t *testing.T) {
		db, store, _ := newTestHistoryStore(t)
		setRawHistory(t, db, profile, `[{"kind":"icon","identifier":"unicorn","theme":"forest"}]`)

		if models := readModels(t, db, store, profile); len(models) != 0 {
			t.Errorf("Models() = %v, want unknown icon dropped", models)
		}
	})

	t.Run("image entry with missing file dropped", func(t *testing.T) {
		db, store, fsys := newTestHistoryStore(t)
		fsys.AddFile(filepath.Join(testImageDir, "present.jpg"), []byte("x"))
		setRawHistory(t, db, profile, `[
			{"kind":"image","identifier":"a","imageFile":"gone.jpg","theme":"forest"},
			{"kind":"image","identifier":"b","imageFile":"present.jpg","theme":"forest"}
		]`)

		models := readModels(t, db, store, profile)
		if len(models) != 1 || models[0].Identifier != "b" {
			t.Errorf("Models() = %v, want just the entry whose file exists", models)
		}
	})

	t.Run("empty text dropped", func(t *testing.T) {
		db, store, _ := newTestHistoryStore(t)
		setRawHistory(t, db, profile, `[{"kind":"text","identifier":"a","text":"","theme":"forest"}]`)

		if models := readModels(t, db, store, profile); len(models) != 0 {
			t.Errorf("Models() = %v, want empty-text entry dropped", models)
		}
	})

	t.Run("unknown theme degrades to default", func(t *testing.T) {
		db, store, _ := newTestHistoryStore(t)
		setRawHistory(t, db, profile, `[{"kind":"icon","identifier":"ghost","theme":"neon"}]`)

		models := readModels(t, db, store, profile)
		if len(models) != 1 {
			t.Fatalf("Models() = %d entries, want 1", len(models))
		}
		if models[0].Theme != core.DefaultAvatarTheme {
			t.Errorf("Theme = %q, want default %q", models[0].Theme, core.DefaultAvatarTheme)
		}
	})
}

func TestHistoryStore_TouchedModel(t *testing.T) {
	profile := core.ProfileAvatarContext()

	t.Run("prepends most recent", func(t *testing.T) {
		db, store, _ := newTestHistoryStore(t)

		touch(t, db, store, iconAvatar(t, "fox"), profile)
		touch(t, db, store, iconAvatar(t, "cat"), profile)

		models := readModels(t, db, store, profile)
		if len(models) != 2 || models[0].Identifier != "cat" || models[1].Identifier != "fox" {
			t.Errorf("Models() = %v, want [cat fox]", models)
		}
	})

	t.Run("re-touch moves to front without duplicating", func(t *testing.T) {
		db, store, _ := newTestHistoryStore(t)

		touch(t, db, store, iconAvatar(t, "fox"), profile)
		touch(t, db, store, core.NewTextAvatar("hi", "HI", core.ThemePlum), profile)
		touch(t, db, store, iconAvatar(t, "fox"), profile)

		models := readModels(t, db, store, profile)
		if len(models) != 2 {
			t.Fatalf("Models() = %d entries, want 2", len(models))
		}
		if models[0].Identifier != "fox" || models[1].Identifier != "hi" {
			t.Errorf("Models() order = [%s %s], want [fox hi]", models[0].Identifier, models[1].Identifier)
		}
	})
}

func TestHistoryStore_DeletedModel(t *testing.T) {
	profile := core.ProfileAvatarContext()

	t.Run("removes the matching entry", func(t *testing.T) {
		db, store, _ := newTestHistoryStore(t)

		touch(t, db, store, iconAvatar(t, "fox"), profile)
		touch(t, db, store, iconAvatar(t, "cat"), profile)

		err := db.Write(context.Background(), func(tx *database.WriteTx) error {
			return store.DeletedModel(tx, iconAvatar(t, "fox"), profile)
		})
		if err != nil {
			t.Fatalf("DeletedModel() error = %v", err)
		}

		models := readModels(t, db, store, profile)
		if len(models) != 1 || models[0].Identifier != "cat" {
			t.Errorf("Models() = %v, want just cat", models)
		}
	})

	t.Run("deletes the image file", func(t *testing.T) {
		db, store, fsys := newTestHistoryStore(t)
		path := filepath.Join(testImageDir, "pic.jpg")
		fsys.AddFile(path, []byte("x"))
		model := core.NewImageAvatar("pic", path, core.DefaultAvatarTheme)
		touch(t, db, store, model, profile)

		err := db.Write(context.Background(), func(tx *database.WriteTx) error {
			return store.DeletedModel(tx, model, profile)
		})
		if err != nil {
			t.Fatalf("DeletedModel() error = %v", err)
		}

		if fsys.HasFile(path) {
			t.Error("image file still present after DeletedModel")
		}
		if models := readModels(t, db, store, profile); len(models) != 0 {
			t.Errorf("Models() = %v, want empty", models)
		}
	})

	t.Run("file delete failure does not fail the removal", func(t *testing.T) {
		db, store, fsys := newTestHistoryStore(t)
		path := filepath.Join(testImageDir, "stuck.jpg")
		fsys.AddFile(path, []byte("x"))
		fsys.FailRemoves = "stuck"
		model := core.NewImageAvatar("stuck", path, core.DefaultAvatarTheme)
		touch(t, db, store, model, profile)

		err := db.Write(context.Background(), func(tx *database.WriteTx) error {
			return store.DeletedModel(tx, model, profile)
		})
		if err != nil {
			t.Fatalf("DeletedModel() error = %v", err)
		}
		if models := readModels(t, db, store, profile); len(models) != 0 {
			t.Errorf("entry still in history after DeletedModel: %v", models)
		}
	})

	t.Run("absent model is a no-op", func(t *testing.T) {
		db, store, _ := newTestHistoryStore(t)

		err := db.Write(context.Background(), func(tx *database.WriteTx) error {
			return store.DeletedModel(tx, iconAvatar(t, "fox"), profile)
		})
		if err != nil {
			t.Fatalf("DeletedModel() error = %v", err)
		}
	})
}

func TestHistoryStore_RecordModelForImage(t *testing.T) {
	profile := core.ProfileAvatarContext()

	t.Run("writes the file and records the entry", func(t *testing.T) {
		db, store, fsys := newTestHistoryStore(t)

		var model *core.AvatarModel
		err := db.Write(context.Background(), func(tx *database.WriteTx) error {
			var err error
			model, err = store.RecordModelForImage(tx, pngBytes(t, 8, 8), profile)
			return err
		})
		if err != nil {
			t.Fatalf("RecordModelForImage() error = %v", err)
		}
		if model == nil {
			t.Fatal("RecordModelForImage() returned nil model")
		}
		if model.Kind != core.AvatarKindImage {
			t.Errorf("Kind = %v, want image", model.Kind)
		}
		if !strings.HasSuffix(model.ImagePath, ".jpg") {
			t.Errorf("ImagePath = %q, want .jpg suffix", model.ImagePath)
		}
		if !fsys.HasFile(model.ImagePath) {
			t.Errorf("image file %q not written", model.ImagePath)
		}

		models := readModels(t, db, store, profile)
		if len(models) != 1 || models[0].Identifier != model.Identifier {
			t.Errorf("Models() = %v, want the recorded avatar", models)
		}
	})

	t.Run("rejects non-image input", func(t *testing.T) {
		db, store, fsys := newTestHistoryStore(t)

		err := db.Write(context.Background(), func(tx *database.WriteTx) error {
			_, err := store.RecordModelForImage(tx, []byte("plain text"), profile)
			return err
		})
		if err == nil {
			t.Fatal("RecordModelForImage() succeeded on non-image input")
		}
		if fsys.FileCount() != 0 {
			t.Errorf("%d files written for rejected input, want 0", fsys.FileCount())
		}
	})

	t.Run("write failure leaves no state", func(t *testing.T) {
		db, store, fsys := newTestHistoryStore(t)
		fsys.FailWrites = ".jpg"

		err := db.Write(context.Background(), func(tx *database.WriteTx) error {
			_, err := store.RecordModelForImage(tx, pngBytes(t, 8, 8), profile)
			return err
		})
		if err == nil {
			t.Fatal("RecordModelForImage() succeeded despite write failure")
		}
		if fsys.FileCount() != 0 {
			t.Errorf("%d files present after failed write, want 0", fsys.FileCount())
		}
		if models := readModels(t, db, store, profile); len(models) != 0 {
			t.Errorf("history has %d entries after failed write, want 0", len(models))
		}
	})

	t.Run("history failure removes the written file", func(t *testing.T) {
		db, store, fsys := newTestHistoryStore(t)

		ctx, cancel := context.WithCancel(context.Background())
		err := db.Write(ctx, func(tx *database.WriteTx) error {
			// Cancel after the transaction begins so the history
			// update inside RecordModelForImage fails after the
			// image file is already on disk.
			cancel()
			_, err := store.RecordModelForImage(tx, pngBytes(t, 8, 8), profile)
			return err
		})
		if err == nil {
			t.Fatal("RecordModelForImage() succeeded despite cancelled transaction")
		}
		if fsys.FileCount() != 0 {
			t.Errorf("%d files left behind after history failure, want 0", fsys.FileCount())
		}
	})
}
