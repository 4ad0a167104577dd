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

// Package facts collects point-in-time snapshots of the host: hardware,
// disks, graphics adapters, installed software, sensors and power events.
package facts

//go:generate mockgen -destination=mock_facts.go -package=facts github.com/carverauto/factsync/pkg/facts FingerprintSource,HardwareProvider,SoftwareProvider,PowerProvider

import (
	"context"

	"github.com/carverauto/factsync/pkg/models"
)

// FingerprintSource yields the stable hardware fingerprint of this host.
type FingerprintSource interface {
	Fingerprint(ctx context.Context) (string, error)
}

// HardwareProvider captures the current hardware state. Each call observes
// the live system; providers hold no snapshot state.
type HardwareProvider interface {
	Hardware(ctx context.Context) (models.HardwareSummary, error)
	Disks(ctx context.Context) ([]models.DiskSlot, error)
	Graphics(ctx context.Context) ([]models.GraphicsCard, error)
	Sensors(ctx context.Context) ([]models.SensorReading, error)
	Throughput(ctx context.Context) ([]models.ThroughputSample, error)
}

// SoftwareProvider enumerates installed software.
type SoftwareProvider interface {
	Installed(ctx context.Context) ([]models.SoftwareEntry, error)
}

// PowerProvider reports power transitions observed on the host.
type PowerProvider interface {
	Events(ctx context.Context) ([]models.PowerEvent, error)
}
