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
	"strings"
	"time"

	"github.com/carverauto/factsync/pkg/models"
)

// Placeholder values some inventory sources report instead of leaving a
// field empty. They are treated as absent.
var absentSentinels = []string{"N/A", "Unknown", "unsupported"}

var installDateLayouts = []string{"2006/01/02", "2006-01-02", "20060102"}

// NormalizeSoftware cleans a raw software snapshot: entries with a blank
// name are dropped, sentinel versions and publishers become absent, and
// install dates are parsed from the formats inventory sources emit.
func NormalizeSoftware(raw []models.SoftwareEntry) []models.SoftwareEntry {
	out := make([]models.SoftwareEntry, 0, len(raw))

	for _, entry := range raw {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			continue
		}

		normalized := models.SoftwareEntry{
			Name:        name,
			Version:     NormalizeVersion(entry.Version),
			Publisher:   normalizeOptional(entry.Publisher),
			InstallDate: entry.InstallDate,
		}

		out = append(out, normalized)
	}

	return out
}

// NormalizeVersion maps sentinel version strings to empty so that two
// reports of the same package without a usable version share one key.
func NormalizeVersion(version string) string {
	version = strings.TrimSpace(version)
	if isSentinel(version) {
		return ""
	}

	return version
}

// ParseInstallDate parses an install date in any of the formats inventory
// sources emit. Blank or sentinel input yields nil.
func ParseInstallDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" || isSentinel(raw) {
		return nil
	}

	for _, layout := range installDateLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return &parsed
		}
	}

	return nil
}

func normalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}

	trimmed := strings.TrimSpace(*value)
	if trimmed == "" || isSentinel(trimmed) {
		return nil
	}

	return &trimmed
}

func isSentinel(value string) bool {
	for _, s := range absentSentinels {
		if strings.EqualFold(value, s) {
			return true
		}
	}

	return false
}
