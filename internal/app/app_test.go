package app

import (
	"context"
	"testing"
	"time"

	"courier/internal/config"
	"courier/internal/core"
	"courier/internal/database"
)

func newTestApp(t *testing.T, operation string) *App {
	t.Helper()

	cfg := config.NewConfig(t.TempDir())
	cfg.Database = config.DatabaseConfig{Type: "memory"}

	a, err := NewApp(cfg, operation)
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func enqueueForTest(t *testing.T, a *App, rowID int64, receivedAtMs uint64) {
	t.Helper()
	ref := core.AttachmentReference{
		AttachmentRowID:     rowID,
		Owner:               core.OwnerKindMessage,
		MessageReceivedAtMs: receivedAtMs,
	}
	err := a.db.Write(context.Background(), func(tx *database.WriteTx) error {
		_, err := a.queue.Enqueue(tx, ref)
		return err
	})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
}

func TestApp_DownloadsStatus(t *testing.T) {
	a := newTestApp(t, "DownloadsStatus")
	ctx := context.Background()

	enqueueForTest(t, a, 1, 100)
	enqueueForTest(t, a, 2, 200)
	total := uint64(4096)
	err := a.db.Write(ctx, func(tx *database.WriteTx) error {
		return a.progress.SetTotalPendingByteCount(tx, &total)
	})
	if err != nil {
		t.Fatalf("SetTotalPendingByteCount() error = %v", err)
	}

	status, err := a.DownloadsStatus(ctx)
	if err != nil {
		t.Fatalf("DownloadsStatus() error = %v", err)
	}
	if status.Count != 2 {
		t.Errorf("Count = %d, want 2", status.Count)
	}
	if status.TotalBytes == nil || *status.TotalBytes != 4096 {
		t.Errorf("TotalBytes = %v, want 4096", status.TotalBytes)
	}
	if status.RemainingBytes != nil {
		t.Errorf("RemainingBytes = %v, want nil", *status.RemainingBytes)
	}
	if status.BannerDismissed {
		t.Error("BannerDismissed = true on fresh store")
	}
}

func TestApp_ClearDownloads(t *testing.T) {
	a := newTestApp(t, "ClearDownloads")
	ctx := context.Background()

	enqueueForTest(t, a, 1, 100)
	total := uint64(4096)
	remaining := uint64(1024)
	err := a.db.Write(ctx, func(tx *database.WriteTx) error {
		if err := a.progress.SetTotalPendingByteCount(tx, &total); err != nil {
			return err
		}
		return a.progress.SetCachedRemainingByteCount(tx, &remaining)
	})
	if err != nil {
		t.Fatalf("seeding progress: %v", err)
	}

	if err := a.ClearDownloads(ctx); err != nil {
		t.Fatalf("ClearDownloads() error = %v", err)
	}

	status, err := a.DownloadsStatus(ctx)
	if err != nil {
		t.Fatalf("DownloadsStatus() error = %v", err)
	}
	if status.Count != 0 {
		t.Errorf("Count = %d after clear, want 0", status.Count)
	}
	if status.TotalBytes != nil || status.RemainingBytes != nil {
		t.Errorf("progress counters = (%v, %v) after clear, want (nil, nil)", status.TotalBytes, status.RemainingBytes)
	}

	// The mutation was recorded in the maintenance history.
	ops, err := a.History(ctx, 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(ops) != 1 || ops[0].Operation != "ClearDownloads" {
		t.Errorf("History() = %v, want one ClearDownloads record", ops)
	}
}

func TestApp_PruneDownloads(t *testing.T) {
	a := newTestApp(t, "PruneDownloads")
	ctx := context.Background()

	now := uint64(time.Now().UnixMilli())
	enqueueForTest(t, a, 1, now-48*3600*1000) // two days old
	enqueueForTest(t, a, 2, now)              // fresh

	pruned, err := a.PruneDownloads(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("PruneDownloads() error = %v", err)
	}
	if pruned != 1 {
		t.Errorf("pruned = %d, want 1", pruned)
	}

	records, err := a.PeekDownloads(ctx, 10)
	if err != nil {
		t.Fatalf("PeekDownloads() error = %v", err)
	}
	if len(records) != 1 || records[0].AttachmentRowID != 2 {
		t.Errorf("PeekDownloads() = %v, want just row 2", records)
	}
}

func TestApp_ListAvatarHistory(t *testing.T) {
	a := newTestApp(t, "ListAvatarHistory")
	ctx := context.Background()

	model, err := core.NewIconAvatar("fox", core.ThemeForest)
	if err != nil {
		t.Fatalf("NewIconAvatar() error = %v", err)
	}
	err = a.db.Write(ctx, func(tx *database.WriteTx) error {
		return a.avatars.TouchedModel(tx, model, core.ProfileAvatarContext())
	})
	if err != nil {
		t.Fatalf("TouchedModel() error = %v", err)
	}

	models, err := a.ListAvatarHistory(ctx, "profile")
	if err != nil {
		t.Fatalf("ListAvatarHistory() error = %v", err)
	}
	if len(models) != 1 || models[0].Identifier != "fox" {
		t.Errorf("ListAvatarHistory() = %v, want just fox", models)
	}

	if _, err := a.ListAvatarHistory(ctx, "bogus"); err == nil {
		t.Error("ListAvatarHistory() succeeded for a malformed context key")
	}
}
