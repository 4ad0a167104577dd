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

package reconcile

import (
	"math"
	"time"

	"github.com/carverauto/factsync/pkg/models"
)

// Category names, also used as upload-gate keys.
const (
	CategoryHardware = "hardware"
	CategoryDisks    = "disks"
	CategoryGraphics = "graphics"
	CategorySoftware = "software"
	CategoryPower    = "power"
)

const (
	// hardwareSummaryKey is the constant key of the single hardware row.
	hardwareSummaryKey = "summary"

	// Capacity comparisons tolerate rounding drift; free space fluctuates
	// constantly and gets a wider band.
	totalCapacityToleranceGB     = 0.1
	availableCapacityToleranceGB = 1.0
)

// HardwareCategory is the single-row hardware baseline. The material-change
// predicate ignores available memory; total memory is compared with a small
// tolerance.
func HardwareCategory() Category[models.HardwareSummary] {
	return Category[models.HardwareSummary]{
		Name: CategoryHardware,
		Key: func(models.HardwareSummary) string {
			return hardwareSummaryKey
		},
		Changed: func(existing, current models.HardwareSummary) bool {
			return existing.Processor != current.Processor ||
				existing.ProcessorCores != current.ProcessorCores ||
				existing.Motherboard != current.Motherboard ||
				math.Abs(existing.TotalMemoryGB-current.TotalMemoryGB) > totalCapacityToleranceGB ||
				existing.IPAddress != current.IPAddress
		},
		Merge: func(existing, current models.HardwareSummary) models.HardwareSummary {
			merged := current
			merged.CreatedAt = existing.CreatedAt
			merged.UpdatedAt = time.Now()

			return merged
		},
		Refresh: func(existing, current models.HardwareSummary) (models.HardwareSummary, bool) {
			if existing.AvailableMemoryGB == current.AvailableMemoryGB {
				return existing, false
			}

			refreshed := existing
			refreshed.AvailableMemoryGB = current.AvailableMemoryGB

			return refreshed, true
		},
	}
}

// DiskCategory keys disk slots by their mount label. The backing physical
// device is metadata, compared without tolerance.
func DiskCategory() Category[models.DiskSlot] {
	return Category[models.DiskSlot]{
		Name: CategoryDisks,
		Key: func(d models.DiskSlot) string {
			return d.SlotLabel
		},
		Changed: func(existing, current models.DiskSlot) bool {
			return math.Abs(existing.TotalGB-current.TotalGB) > totalCapacityToleranceGB ||
				math.Abs(existing.AvailableGB-current.AvailableGB) > availableCapacityToleranceGB ||
				existing.PhysicalDevice != current.PhysicalDevice
		},
		Merge: func(_, current models.DiskSlot) models.DiskSlot {
			return current
		},
		Refresh: func(existing, current models.DiskSlot) (models.DiskSlot, bool) {
			if existing.AvailableGB == current.AvailableGB {
				return existing, false
			}

			refreshed := existing
			refreshed.AvailableGB = current.AvailableGB

			return refreshed, true
		},
	}
}

// GraphicsCategory keys adapters by name; duplicate names in one snapshot
// collapse to a single record before diffing.
func GraphicsCategory() Category[models.GraphicsCard] {
	return Category[models.GraphicsCard]{
		Name: CategoryGraphics,
		Key: func(g models.GraphicsCard) string {
			return g.Name
		},
		Changed: func(existing, current models.GraphicsCard) bool {
			return existing.Dedicated != current.Dedicated ||
				math.Abs(existing.VRAMGB-current.VRAMGB) > totalCapacityToleranceGB
		},
		Merge: func(_, current models.GraphicsCard) models.GraphicsCard {
			return current
		},
	}
}

// SoftwareCategory keys installed software by name plus normalized version.
// The snapshot is expected to be pre-normalized by NormalizeSoftware.
func SoftwareCategory() Category[models.SoftwareEntry] {
	return Category[models.SoftwareEntry]{
		Name: CategorySoftware,
		Key: func(s models.SoftwareEntry) string {
			if s.Name == "" {
				return ""
			}

			return s.Name + "|" + s.Version
		},
		Changed: func(existing, current models.SoftwareEntry) bool {
			return !equalOptional(existing.Publisher, current.Publisher) ||
				!equalOptionalTime(existing.InstallDate, current.InstallDate)
		},
		Merge: func(_, current models.SoftwareEntry) models.SoftwareEntry {
			return current
		},
	}
}

// PowerCategory is append-only: events already present (by second-truncated
// timestamp plus action) are skipped, nothing is ever updated or removed.
func PowerCategory() Category[models.PowerEvent] {
	return Category[models.PowerEvent]{
		Name:       CategoryPower,
		AppendOnly: true,
		Key: func(e models.PowerEvent) string {
			if e.Timestamp.IsZero() || e.Action == "" {
				return ""
			}

			return e.Timestamp.Truncate(time.Second).UTC().Format(time.RFC3339) + "|" + string(e.Action)
		},
	}
}

// SnapshotSpan returns the inclusive timestamp range covered by a power-event
// snapshot, so the store read can be restricted to it.
func SnapshotSpan(events []models.PowerEvent) (from, to time.Time, ok bool) {
	for _, e := range events {
		if e.Timestamp.IsZero() {
			continue
		}

		if !ok || e.Timestamp.Before(from) {
			from = e.Timestamp
		}

		if !ok || e.Timestamp.After(to) {
			to = e.Timestamp
		}

		ok = true
	}

	return from, to, ok
}

func equalOptional(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	return *a == *b
}

func equalOptionalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	return a.Equal(*b)
}
