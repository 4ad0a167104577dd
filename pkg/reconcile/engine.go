/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package reconcile diffs freshly collected fact snapshots against the
// stored state for a device and applies the minimal add/update/delete set.
package reconcile

import (
	"context"
	"fmt"

	"github.com/carverauto/factsync/pkg/logger"
)

// Category describes how one fact category is keyed and compared.
type Category[T any] struct {
	// Name identifies the category in logs and in the upload gate.
	Name string

	// Key extracts the natural key. Records with an empty key are dropped
	// from the snapshot before diffing.
	Key func(record T) string

	// Changed reports whether the difference between the stored record and
	// the collected one is material. Irrelevant for append-only categories.
	Changed func(existing, current T) bool

	// Merge produces the record to store for a material update. It copies
	// the collected fields over the stored ones, preserving anything the
	// store owns (creation timestamps and the like).
	Merge func(existing, current T) T

	// Refresh produces a silent write for records that are not materially
	// changed but whose fluctuating fields (available memory, free disk
	// space) should still track the latest sample. Optional.
	Refresh func(existing, current T) (T, bool)

	// AppendOnly categories only ever insert; nothing is updated or removed.
	AppendOnly bool
}

// ChangeSet is the write-set of one reconciliation pass. It is applied as a
// single logical unit: either all of it commits or none of it does.
type ChangeSet[T any] struct {
	Add     []T
	Update  []T
	Refresh []T
	Remove  []string
}

// Empty reports whether the pass produced no writes at all.
func (c *ChangeSet[T]) Empty() bool {
	return len(c.Add) == 0 && len(c.Update) == 0 && len(c.Refresh) == 0 && len(c.Remove) == 0
}

// Result carries the per-pass counts for observability.
type Result struct {
	Added     int
	Updated   int
	Removed   int
	Unchanged int
	Refreshed int
}

// LoadFunc returns the stored records for the device and category. For
// append-only categories the implementation may restrict the read to the
// snapshot's timestamp span.
type LoadFunc[T any] func(ctx context.Context) ([]T, error)

// CommitFunc atomically applies the change-set.
type CommitFunc[T any] func(ctx context.Context, changes ChangeSet[T]) error

// Run executes one reconciliation pass: load stored state, diff against the
// snapshot, commit the minimal change-set. A failed commit leaves the pass
// not-done; the caller retries it on the next scheduled collection.
func Run[T any](
	ctx context.Context,
	cat Category[T],
	snapshot []T,
	load LoadFunc[T],
	commit CommitFunc[T],
	log logger.Logger,
) (Result, error) {
	existing, err := load(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load %s: %w", cat.Name, err)
	}

	changes, result := Diff(cat, existing, snapshot)

	if changes.Empty() {
		log.Debug().Str("category", cat.Name).Int("unchanged", result.Unchanged).Msg("Nothing to reconcile")
		return result, nil
	}

	if err := commit(ctx, changes); err != nil {
		return Result{}, fmt.Errorf("commit %s: %w", cat.Name, err)
	}

	log.Info().
		Str("category", cat.Name).
		Int("added", result.Added).
		Int("updated", result.Updated).
		Int("removed", result.Removed).
		Int("unchanged", result.Unchanged).
		Msg("Reconciled category")

	return result, nil
}

// Diff partitions the snapshot against the stored records by natural key.
// The snapshot is de-duplicated first: duplicate keys collapse to the first
// occurrence, empty keys are dropped.
func Diff[T any](cat Category[T], existing, snapshot []T) (ChangeSet[T], Result) {
	var (
		changes ChangeSet[T]
		result  Result
	)

	snapshot = Dedupe(cat, snapshot)

	current := make(map[string]T, len(snapshot))
	order := make([]string, 0, len(snapshot))

	for _, rec := range snapshot {
		key := cat.Key(rec)
		current[key] = rec
		order = append(order, key)
	}

	stored := make(map[string]T, len(existing))

	for _, rec := range existing {
		stored[cat.Key(rec)] = rec
	}

	for _, key := range order {
		rec := current[key]

		old, ok := stored[key]
		if !ok {
			changes.Add = append(changes.Add, rec)
			result.Added++

			continue
		}

		if cat.AppendOnly {
			result.Unchanged++
			continue
		}

		if cat.Changed(old, rec) {
			changes.Update = append(changes.Update, cat.Merge(old, rec))
			result.Updated++

			continue
		}

		result.Unchanged++

		if cat.Refresh != nil {
			if refreshed, dirty := cat.Refresh(old, rec); dirty {
				changes.Refresh = append(changes.Refresh, refreshed)
				result.Refreshed++
			}
		}
	}

	if !cat.AppendOnly {
		for _, rec := range existing {
			key := cat.Key(rec)
			if _, ok := current[key]; !ok {
				changes.Remove = append(changes.Remove, key)
				result.Removed++
			}
		}
	}

	return changes, result
}

// Dedupe collapses duplicate natural keys within one snapshot, keeping the
// first occurrence, and drops records whose key is empty.
func Dedupe[T any](cat Category[T], snapshot []T) []T {
	seen := make(map[string]struct{}, len(snapshot))
	out := make([]T, 0, len(snapshot))

	for _, rec := range snapshot {
		key := cat.Key(rec)
		if key == "" {
			continue
		}

		if _, dup := seen[key]; dup {
			continue
		}

		seen[key] = struct{}{}

		out = append(out, rec)
	}

	return out
}
