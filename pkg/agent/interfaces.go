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

//go:generate mockgen -destination=mock_agent.go -package=agent github.com/carverauto/factsync/pkg/agent FactStore

package agent

import (
	"context"
	"time"

	"github.com/carverauto/factsync/pkg/models"
	"github.com/carverauto/factsync/pkg/reconcile"
)

// FactStore is the persistence surface the agent reconciles against. It is
// satisfied by db.FactStore.
type FactStore interface {
	LoadHardware(ctx context.Context, deviceID string) ([]models.HardwareSummary, error)
	CommitHardware(ctx context.Context, deviceID string, changes reconcile.ChangeSet[models.HardwareSummary]) error

	LoadDisks(ctx context.Context, deviceID string) ([]models.DiskSlot, error)
	CommitDisks(ctx context.Context, deviceID string, changes reconcile.ChangeSet[models.DiskSlot]) error

	LoadGraphics(ctx context.Context, deviceID string) ([]models.GraphicsCard, error)
	CommitGraphics(ctx context.Context, deviceID string, changes reconcile.ChangeSet[models.GraphicsCard]) error

	LoadSoftware(ctx context.Context, deviceID string) ([]models.SoftwareEntry, error)
	CommitSoftware(ctx context.Context, deviceID string, changes reconcile.ChangeSet[models.SoftwareEntry]) error

	LoadPowerEvents(ctx context.Context, deviceID string, from, to time.Time) ([]models.PowerEvent, error)
	CommitPowerEvents(ctx context.Context, deviceID string, changes reconcile.ChangeSet[models.PowerEvent]) error

	AppendSensorReadings(ctx context.Context, deviceID string, readings []models.SensorReading, observedAt time.Time) error
	AppendThroughputSamples(ctx context.Context, deviceID string, samples []models.ThroughputSample) error
}
