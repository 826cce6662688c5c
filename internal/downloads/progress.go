package downloads

import (
	"courier/internal/database"
)

// Keys within the progress KV collection.
const (
	progressCollection      = "backup_download_progress"
	keyTotalPendingBytes    = "totalPendingByteCount"
	keyCachedRemainingBytes = "cachedRemainingByteCount"
	keyDidDismissBanner     = "didDismissDownloadCompleteBanner"
)

// Progress caches derived download-queue counters: the total byte count
// of the current batch, the remaining byte count maintained by the
// download worker, and whether the user dismissed the completion
// banner. Values live in the key-value sub-store; malformed persisted
// values read back as absent.
type Progress struct {
	kv *database.KVStore
}

// NewProgress creates the progress cache.
func NewProgress() *Progress {
	return &Progress{kv: database.NewKVStore(progressCollection)}
}

// SetTotalPendingByteCount overwrites the stored total for the current
// batch, or clears it when total is nil. Scheduling a fresh batch makes
// the completion banner eligible to show again, so this always resets
// the dismissed flag in the same transaction.
func (p *Progress) SetTotalPendingByteCount(tx *database.WriteTx, total *uint64) error {
	if total == nil {
		if err := p.kv.Remove(tx, keyTotalPendingBytes); err != nil {
			return err
		}
	} else if err := p.kv.SetUint64(tx, keyTotalPendingBytes, *total); err != nil {
		return err
	}
	return p.kv.SetBool(tx, keyDidDismissBanner, false)
}

// TotalPendingByteCount returns the stored batch total, or nil when no
// total is known.
func (p *Progress) TotalPendingByteCount(tx *database.ReadTx) (*uint64, error) {
	return p.kv.GetUint64(tx, keyTotalPendingBytes)
}

// SetCachedRemainingByteCount overwrites the remaining-bytes counter,
// or clears it when remaining is nil. Independent of the banner flag.
func (p *Progress) SetCachedRemainingByteCount(tx *database.WriteTx, remaining *uint64) error {
	if remaining == nil {
		return p.kv.Remove(tx, keyCachedRemainingBytes)
	}
	return p.kv.SetUint64(tx, keyCachedRemainingBytes, *remaining)
}

// CachedRemainingByteCount returns the remaining-bytes counter, or nil
// when unknown.
func (p *Progress) CachedRemainingByteCount(tx *database.ReadTx) (*uint64, error) {
	return p.kv.GetUint64(tx, keyCachedRemainingBytes)
}

// DidDismissDownloadCompleteBanner reports whether the user dismissed
// the completion banner for the current batch. Defaults to false.
func (p *Progress) DidDismissDownloadCompleteBanner(tx *database.ReadTx) (bool, error) {
	return p.kv.GetBool(tx, keyDidDismissBanner, false)
}

// SetDidDismissDownloadCompleteBanner marks the banner dismissed. One
// way: the flag is only cleared by SetTotalPendingByteCount.
func (p *Progress) SetDidDismissDownloadCompleteBanner(tx *database.WriteTx) error {
	return p.kv.SetBool(tx, keyDidDismissBanner, true)
}
