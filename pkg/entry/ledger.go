package entry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/neynartodes/contesthub/pkg/contest"
	"github.com/neynartodes/contesthub/pkg/kv"
	"github.com/neynartodes/contesthub/pkg/utils"
)

// ErrDenied is returned for FIDs on the deny-list.
var ErrDenied = errors.New("entry: fid is denied")

// clearScanLimit bounds the key enumeration of an unscoped clear.
const clearScanLimit = 1000

// Denylist is the curated FID exclusion set. Process-wide, loaded once at
// startup; additions require a redeploy.
type Denylist map[uint64]struct{}

// DenylistFromEnv parses ENTRY_DENYLIST, a comma-separated FID list.
func DenylistFromEnv() Denylist {
	raw := utils.Env("ENTRY_DENYLIST", "")
	out := Denylist{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fid, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			continue
		}
		out[fid] = struct{}{}
	}
	return out
}

func (d Denylist) Blocked(fid uint64) bool {
	_, ok := d[fid]
	return ok
}

// EnterResult reports one enter call. Success is true whenever a record
// exists for the pair; AlreadyEntered is true when a prior record won the
// write race, and Entry then carries that record.
type EnterResult struct {
	Success        bool           `json:"success"`
	Entry          *contest.Entry `json:"entry"`
	AlreadyEntered bool           `json:"alreadyEntered"`
}

// CheckResult is one contest's entry status for a FID.
type CheckResult struct {
	Entered    bool  `json:"entered"`
	HasReplied *bool `json:"hasReplied,omitempty"`
	Timestamp  int64 `json:"timestamp,omitempty"`
}

// Ledger records contest entries. Writes always use the canonical
// "entry:{family}-{id}:{fid}" shape; reads fall back to the legacy bare
// numeric shape that predates contest families.
type Ledger struct {
	store  kv.Store
	deny   Denylist
	logger *zap.Logger
}

func NewLedger(store kv.Store, deny Denylist, logger *zap.Logger) *Ledger {
	return &Ledger{store: store, deny: deny, logger: logger}
}

// Enter records an entry for (fid, contestKey). At most one record per pair
// ever exists: the store's set-if-absent is the atomicity point, so a
// concurrent second call observes the first record instead of overwriting.
func (l *Ledger) Enter(ctx context.Context, fid uint64, key contest.Key, addresses []string) (*EnterResult, error) {
	if l.deny.Blocked(fid) {
		return nil, ErrDenied
	}

	record := &contest.Entry{
		Fid:        fid,
		ContestKey: key.String(),
		Addresses:  utils.DedupLower(addresses),
		EnteredAt:  time.Now().Unix(),
	}

	existing, created, err := l.store.PutEntryNX(ctx, kv.EntryKey(key.String(), fid), record)
	if err != nil {
		return nil, fmt.Errorf("persist entry: %w", err)
	}
	if !created {
		return &EnterResult{Success: true, Entry: existing, AlreadyEntered: true}, nil
	}

	if err := l.store.AddContestEntrant(ctx, key.String(), fid); err != nil {
		// The record is already durable; the entrant set is derivable, so
		// log and keep going.
		l.logger.Warn("Failed to add fid to entrant set",
			zap.String("contest", key.String()), zap.Uint64("fid", fid), zap.Error(err))
	}

	l.logger.Info("Recorded contest entry",
		zap.String("contest", key.String()), zap.Uint64("fid", fid))
	return &EnterResult{Success: true, Entry: record}, nil
}

// Check reports entry status for a FID across several contests. Lookups try
// the canonical key first, then the legacy unprefixed shape.
func (l *Ledger) Check(ctx context.Context, fid uint64, keys []contest.Key) (map[string]CheckResult, error) {
	out := make(map[string]CheckResult, len(keys))
	for _, key := range keys {
		record, err := l.lookup(ctx, fid, key)
		if err != nil {
			return nil, err
		}
		if record == nil {
			out[key.String()] = CheckResult{}
			continue
		}
		out[key.String()] = CheckResult{
			Entered:    true,
			HasReplied: record.HasReplied,
			Timestamp:  record.EnteredAt,
		}
	}
	return out, nil
}

func (l *Ledger) lookup(ctx context.Context, fid uint64, key contest.Key) (*contest.Entry, error) {
	record, err := l.store.GetEntryRaw(ctx, kv.EntryKey(key.String(), fid))
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, kv.ErrNotFound) {
		return nil, fmt.Errorf("read entry %s: %w", key, err)
	}

	// Legacy records were written before family prefixes existed.
	legacy := kv.EntryKey(strconv.FormatUint(key.ID, 10), fid)
	record, err = l.store.GetEntryRaw(ctx, legacy)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read legacy entry %s: %w", legacy, err)
	}
	return record, nil
}

// Clear removes entries for a FID. With a contest key it deletes both key
// shapes for that pair; without one it enumerates a bounded slice of the
// FID's keys. Returns how many records were deleted.
func (l *Ledger) Clear(ctx context.Context, fid uint64, key *contest.Key) (int, error) {
	if key != nil {
		deleted := 0
		for _, k := range []string{
			kv.EntryKey(key.String(), fid),
			kv.EntryKey(strconv.FormatUint(key.ID, 10), fid),
		} {
			if _, err := l.store.GetEntryRaw(ctx, k); errors.Is(err, kv.ErrNotFound) {
				continue
			} else if err != nil {
				return deleted, fmt.Errorf("read entry %s: %w", k, err)
			}
			if err := l.store.DeleteEntry(ctx, k); err != nil {
				return deleted, fmt.Errorf("delete entry %s: %w", k, err)
			}
			deleted++
		}
		return deleted, nil
	}

	pattern := fmt.Sprintf("entry:*:%d", fid)
	keys, err := l.store.Keys(ctx, pattern, clearScanLimit)
	if err != nil {
		return 0, fmt.Errorf("enumerate entries for fid %d: %w", fid, err)
	}
	deleted, err := l.store.DeleteKeys(ctx, keys)
	if err != nil {
		return deleted, fmt.Errorf("delete entries for fid %d: %w", fid, err)
	}
	l.logger.Info("Cleared entries", zap.Uint64("fid", fid), zap.Int("deleted", deleted))
	return deleted, nil
}
