package watcher

import (
	"time"

	"github.com/dynamous/ragpipe/core"
)

// computeDiff compares a current listing against the known items of a
// checkpoint. An item is added if unknown, modified if its fingerprint
// differs, removed if known but absent from the listing.
//
// detectRemovals is false when the listing is known to be incomplete
// (a folder failed to list); treating unseen items as removed would
// delete their chunks wrongly, so removal detection waits for the next
// complete listing.
func computeDiff(cp *core.SyncCheckpoint, items []core.SourceItem, detectRemovals bool) core.ChangeSet {
	var changes core.ChangeSet

	known := map[string]core.ItemFingerprint{}
	if cp != nil {
		known = cp.KnownItems
	}

	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		seen[item.ID] = struct{}{}
		prev, ok := known[item.ID]
		if !ok {
			changes.Added = append(changes.Added, item)
			continue
		}
		if !prev.Equal(item.Fingerprint) {
			changes.Modified = append(changes.Modified, item)
		}
	}

	if detectRemovals {
		for id := range known {
			if _, ok := seen[id]; !ok {
				changes.Removed = append(changes.Removed, id)
			}
		}
	}

	return changes
}

// buildCandidate constructs the checkpoint to persist after the cycle:
// exactly the items seen in the current listing.
func buildCandidate(items []core.SourceItem, now time.Time) *core.SyncCheckpoint {
	candidate := core.NewSyncCheckpoint()
	candidate.LastCheck = now
	for _, item := range items {
		candidate.KnownItems[item.ID] = item.Fingerprint
	}
	return candidate
}
