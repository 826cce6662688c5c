package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"courier/internal/avatars"
	"courier/internal/config"
	"courier/internal/core"
	"courier/internal/database"
	"courier/internal/downloads"
	"courier/internal/fs"
)

// App is the application layer between the CLI and the persistence
// stores. It constructs all dependencies from config, exposes the
// high-level maintenance operations, and manages the DB lifecycle on
// Close.
type App struct {
	cfg      *config.Config
	db       *database.DB
	queue    *downloads.Store
	progress *downloads.Progress
	avatars  *avatars.HistoryStore
	clock    core.Clock
	logger   core.Logger
	op       *Operation
	logFile  *os.File
}

// NewApp creates a fully wired App from the given config. operation
// identifies the CLI command being run (e.g. "ClearDownloads",
// "CleanupAvatarImages"). The caller must call Close when done.
func NewApp(cfg *config.Config, operation string) (*App, error) {
	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	return &App{
		cfg:      cfg,
		db:       db,
		queue:    downloads.NewStore(),
		progress: downloads.NewProgress(),
		avatars:  avatars.NewHistoryStore(cfg.Avatars.ImageDir, fs.NewOSFilesystem(), core.UUIDGenerator{}, logger),
		clock:    core.RealClock{},
		logger:   logger,
		op:       NewOperation(operation, ""),
		logFile:  logFile,
	}, nil
}

// persistOperation saves the operation record, giving it an
// auto-increment ID. Only called for DB-mutating commands.
func (a *App) persistOperation(ctx context.Context, parameters string) error {
	if a.op.Persisted() {
		return nil
	}
	a.op.Parameters = parameters
	id, err := a.db.CreateMaintenanceOperation(ctx, a.op.Operation, parameters, a.clock.Now())
	if err != nil {
		return fmt.Errorf("persisting maintenance operation: %w", err)
	}
	a.op.ID = id
	return nil
}

// SetError marks the current operation as failed for the history record.
func (a *App) SetError() {
	a.op.Status = "error"
}

// PruneAfterDays returns the configured default age cutoff for pruning.
func (a *App) PruneAfterDays() int {
	return a.cfg.Downloads.PruneAfterDays
}

// QueueStatus is a snapshot of the download queue and its progress
// counters.
type QueueStatus struct {
	Count           int64
	TotalBytes      *uint64
	RemainingBytes  *uint64
	BannerDismissed bool
}

// DownloadsStatus returns the queue depth and progress counters.
func (a *App) DownloadsStatus(ctx context.Context) (*QueueStatus, error) {
	var status QueueStatus
	err := a.db.Read(ctx, func(tx *database.ReadTx) error {
		var err error
		if status.Count, err = a.queue.Count(tx); err != nil {
			return err
		}
		if status.TotalBytes, err = a.progress.TotalPendingByteCount(tx); err != nil {
			return err
		}
		if status.RemainingBytes, err = a.progress.CachedRemainingByteCount(tx); err != nil {
			return err
		}
		status.BannerDismissed, err = a.progress.DidDismissDownloadCompleteBanner(tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// PeekDownloads returns up to count queued downloads in service order.
func (a *App) PeekDownloads(ctx context.Context, count int) ([]core.QueuedAttachmentDownload, error) {
	var records []core.QueuedAttachmentDownload
	err := a.db.Read(ctx, func(tx *database.ReadTx) error {
		var err error
		records, err = a.queue.Peek(tx, count)
		return err
	})
	return records, err
}

// ClearDownloads empties the download queue and clears the progress
// counters in a single transaction.
func (a *App) ClearDownloads(ctx context.Context) error {
	if err := a.persistOperation(ctx, ""); err != nil {
		return err
	}
	err := a.db.Write(ctx, func(tx *database.WriteTx) error {
		if err := a.queue.RemoveAll(tx); err != nil {
			return err
		}
		if err := a.progress.SetTotalPendingByteCount(tx, nil); err != nil {
			return err
		}
		return a.progress.SetCachedRemainingByteCount(tx, nil)
	})
	if err != nil {
		return err
	}
	a.logger.Info("download queue cleared")
	return nil
}

// PruneDownloads removes queued downloads whose message timestamp is
// older than the given age. Untimed rows are never pruned. Returns the
// number of rows removed.
func (a *App) PruneDownloads(ctx context.Context, olderThan time.Duration) (int64, error) {
	if err := a.persistOperation(ctx, olderThan.String()); err != nil {
		return 0, err
	}
	cutoff := uint64(a.clock.Now().Add(-olderThan).UnixMilli())

	var pruned int64
	err := a.db.Write(ctx, func(tx *database.WriteTx) error {
		var err error
		pruned, err = a.queue.RemoveAllOlderThan(tx, cutoff)
		return err
	})
	if err != nil {
		return 0, err
	}
	a.logger.Info("download queue pruned", "removed", pruned, "older_than", olderThan.String())
	return pruned, nil
}

// CleanupAvatarImages deletes avatar image files no context references.
// Returns the number of files deleted.
func (a *App) CleanupAvatarImages(ctx context.Context) (int, error) {
	if err := a.persistOperation(ctx, ""); err != nil {
		return 0, err
	}
	return a.avatars.CleanupOrphanedImages(ctx, a.db)
}

// ListAvatarHistory returns the avatar history for a context key
// ("profile" or "group.<hex>").
func (a *App) ListAvatarHistory(ctx context.Context, contextKey string) ([]core.AvatarModel, error) {
	avCtx, err := core.ParseAvatarContext(contextKey)
	if err != nil {
		return nil, err
	}

	var models []core.AvatarModel
	err = a.db.Read(ctx, func(tx *database.ReadTx) error {
		models, err = a.avatars.Models(tx, avCtx)
		return err
	})
	return models, err
}

// History returns the most recent maintenance operations, newest first.
func (a *App) History(ctx context.Context, limit int) ([]*database.MaintenanceOperation, error) {
	return a.db.ListMaintenanceOperations(ctx, limit)
}

// Close finalizes the operation record (if persisted) and closes all
// resources.
func (a *App) Close() error {
	var firstErr error

	if a.op.Persisted() {
		if err := a.db.FinishMaintenanceOperation(context.Background(), a.op.ID, a.op.Status, a.clock.Now()); err != nil {
			firstErr = fmt.Errorf("finishing maintenance operation: %w", err)
		}
	}

	if err := a.db.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
