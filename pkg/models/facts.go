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

package models

import "time"

// HardwareSummary is the single-row hardware baseline for a device.
// AvailableMemoryGB fluctuates continuously and is refreshed on every pass
// without counting as a material change.
type HardwareSummary struct {
	Processor         string    `json:"processor"`
	ProcessorCores    int       `json:"processor_cores"`
	Motherboard       string    `json:"motherboard"`
	TotalMemoryGB     float64   `json:"total_memory_gb"`
	AvailableMemoryGB float64   `json:"available_memory_gb"`
	IPAddress         string    `json:"ip_address"`
	CreatedAt         time.Time `json:"created_at,omitempty"`
	UpdatedAt         time.Time `json:"updated_at,omitempty"`
}

// DiskSlot is one mounted volume. The slot label is the natural key; the
// backing physical device name is metadata that still participates in change
// detection.
type DiskSlot struct {
	SlotLabel      string  `json:"slot_label"`
	TotalGB        float64 `json:"total_gb"`
	AvailableGB    float64 `json:"available_gb"`
	PhysicalDevice string  `json:"physical_device"`
}

// GraphicsCard is one graphics adapter, keyed by its name.
type GraphicsCard struct {
	Name      string  `json:"name"`
	Dedicated bool    `json:"dedicated"`
	VRAMGB    float64 `json:"vram_gb,omitempty"`
}

// SoftwareEntry is one installed-software record. Name plus normalized
// version form the natural key; the remaining fields are nullable metadata.
type SoftwareEntry struct {
	Name        string     `json:"name"`
	Version     string     `json:"version"`
	Publisher   *string    `json:"publisher,omitempty"`
	InstallDate *time.Time `json:"install_date,omitempty"`
}

// PowerAction is the kind of power transition recorded in the OS event log.
type PowerAction string

const (
	PowerStartup  PowerAction = "Startup"
	PowerShutdown PowerAction = "Shutdown"
)

// PowerEvent is one startup/shutdown record. Events are append-only; the
// dedupe key is the timestamp truncated to whole seconds plus the action.
type PowerEvent struct {
	Timestamp time.Time   `json:"timestamp"`
	Action    PowerAction `json:"action"`
}

// SensorReading is one temperature or health sample. A nil value means the
// sensor is absent or unreadable; the two are not distinguished (the source
// gives callers no way to rely on the difference).
type SensorReading struct {
	Name    string   `json:"name"`
	Celsius *float64 `json:"celsius,omitempty"`
	Healthy *bool    `json:"healthy,omitempty"`
}

// ThroughputSample is one per-interface network throughput measurement.
type ThroughputSample struct {
	Interface  string    `json:"interface"`
	RxBytesSec float64   `json:"rx_bytes_sec"`
	TxBytesSec float64   `json:"tx_bytes_sec"`
	ObservedAt time.Time `json:"observed_at"`
}
