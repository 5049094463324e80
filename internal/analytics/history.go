package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/syncwatch/internal/core/domain"
	"github.com/vietddude/syncwatch/internal/infra/storage"
	"github.com/vietddude/syncwatch/internal/metrics"
)

// History is the append-only follower snapshot log, stored per account under
// storage.FollowerHistoryKey with an index of known account IDs.
type History struct {
	mu     sync.Mutex
	store  storage.KVStore
	logger *slog.Logger
}

// NewHistory creates a history backed by store.
func NewHistory(store storage.KVStore, logger *slog.Logger) *History {
	if logger == nil {
		logger = slog.Default()
	}
	return &History{store: store, logger: logger}
}

// Record appends one snapshot. A missing ID is generated.
func (h *History) Record(ctx context.Context, snap domain.FollowerSnapshot) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.appendLocked(ctx, snap.AccountID, []domain.FollowerSnapshot{snap})
}

// RecordAccounts appends a snapshot for every account, stamped at.
func (h *History) RecordAccounts(ctx context.Context, accounts []domain.Account, at time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, acc := range accounts {
		snap := domain.FollowerSnapshot{
			AccountID:      acc.ID,
			Timestamp:      at,
			FollowersCount: acc.FollowersCount,
			FollowingCount: acc.FollowingCount,
		}
		if err := h.appendLocked(ctx, acc.ID, []domain.FollowerSnapshot{snap}); err != nil {
			return err
		}
	}
	return nil
}

// Seed appends snaps for an account that has no history yet. It reports
// whether anything was written.
func (h *History) Seed(ctx context.Context, accountID string, snaps []domain.FollowerSnapshot) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	existing, err := h.loadLocked(ctx, accountID)
	if err != nil {
		return false, err
	}
	if len(existing) > 0 {
		return false, nil
	}
	if err := h.appendLocked(ctx, accountID, snaps); err != nil {
		return false, err
	}
	return true, nil
}

// Load returns an account's snapshots, oldest first. An undecodable blob is
// logged and treated as empty.
func (h *History) Load(ctx context.Context, accountID string) ([]domain.FollowerSnapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loadLocked(ctx, accountID)
}

// Accounts lists account IDs that have history.
func (h *History) Accounts(ctx context.Context) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.indexLocked(ctx)
}

// Prune drops snapshots taken before olderThan and returns how many were
// removed.
func (h *History) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids, err := h.indexLocked(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, id := range ids {
		snaps, err := h.loadLocked(ctx, id)
		if err != nil {
			return removed, err
		}
		kept := snaps[:0]
		for _, s := range snaps {
			if !s.Timestamp.Before(olderThan) {
				kept = append(kept, s)
			}
		}
		if len(kept) == len(snaps) {
			continue
		}
		if err := storage.SaveJSON(ctx, h.store, storage.FollowerHistoryKey(id), kept); err != nil {
			return removed, err
		}
		removed += len(snaps) - len(kept)
	}

	metrics.SnapshotsPruned.Add(float64(removed))
	return removed, nil
}

func (h *History) appendLocked(ctx context.Context, accountID string, snaps []domain.FollowerSnapshot) error {
	if accountID == "" {
		return fmt.Errorf("snapshot without account id")
	}

	existing, err := h.loadLocked(ctx, accountID)
	if err != nil {
		return err
	}
	for _, s := range snaps {
		if s.ID == "" {
			s.ID = uuid.New().String()
		}
		s.AccountID = accountID
		existing = append(existing, s)
	}
	sort.SliceStable(existing, func(i, j int) bool {
		return existing[i].Timestamp.Before(existing[j].Timestamp)
	})

	if err := storage.SaveJSON(ctx, h.store, storage.FollowerHistoryKey(accountID), existing); err != nil {
		return err
	}
	if err := h.indexAddLocked(ctx, accountID); err != nil {
		return err
	}

	metrics.SnapshotsRecorded.Add(float64(len(snaps)))
	return nil
}

func (h *History) loadLocked(ctx context.Context, accountID string) ([]domain.FollowerSnapshot, error) {
	var snaps []domain.FollowerSnapshot
	_, err := storage.LoadJSON(ctx, h.store, storage.FollowerHistoryKey(accountID), &snaps)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		h.logger.Warn("Failed to load follower history, treating as empty",
			"account_id", accountID, "error", err)
		return nil, nil
	}
	return snaps, nil
}

func (h *History) indexLocked(ctx context.Context) ([]string, error) {
	var ids []string
	if _, err := storage.LoadJSON(ctx, h.store, storage.KeyFollowerIndex, &ids); err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		h.logger.Warn("Failed to load follower index, treating as empty", "error", err)
		return nil, nil
	}
	return ids, nil
}

func (h *History) indexAddLocked(ctx context.Context, accountID string) error {
	ids, err := h.indexLocked(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == accountID {
			return nil
		}
	}
	ids = append(ids, accountID)
	sort.Strings(ids)
	return storage.SaveJSON(ctx, h.store, storage.KeyFollowerIndex, ids)
}
