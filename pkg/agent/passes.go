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

package agent

import (
	"context"
	"errors"
	"time"

	"github.com/carverauto/factsync/pkg/models"
	"github.com/carverauto/factsync/pkg/reconcile"
)

// networkPass samples interface throughput. It runs on the fast interval
// and does nothing until a device identity exists.
func (a *Agent) networkPass(ctx context.Context) error {
	device, err := a.currentDevice()
	if err != nil {
		a.logger.Debug().Msg("No device identity yet, skipping network pass")
		return nil
	}

	samples, err := a.hardware.Throughput(ctx)
	if err != nil {
		return err
	}

	if len(samples) == 0 {
		return nil
	}

	return a.store.AppendThroughputSamples(ctx, device.DeviceID, samples)
}

// sensorPass reconciles hardware, disk and graphics state, records a sensor
// sweep and runs the once-per-process uploads. Category failures are
// collected so one flaky source never starves the others.
func (a *Agent) sensorPass(ctx context.Context) error {
	device, err := a.currentDevice()
	if err != nil {
		a.logger.Debug().Msg("No device identity yet, skipping sensor pass")
		return nil
	}

	return errors.Join(
		a.reconcileHardware(ctx, device.DeviceID),
		a.reconcileDisks(ctx, device.DeviceID),
		a.reconcileGraphics(ctx, device.DeviceID),
		a.sweepSensors(ctx, device.DeviceID),
		a.uploadSoftwareOnce(ctx, device.DeviceID),
		a.catchUpPowerOnce(ctx, device.DeviceID),
	)
}

func (a *Agent) reconcileHardware(ctx context.Context, deviceID string) error {
	current, err := a.hardware.Hardware(ctx)
	if err != nil {
		return err
	}

	_, err = reconcile.Run(ctx, reconcile.HardwareCategory(), []models.HardwareSummary{current},
		func(ctx context.Context) ([]models.HardwareSummary, error) {
			return a.store.LoadHardware(ctx, deviceID)
		},
		func(ctx context.Context, changes reconcile.ChangeSet[models.HardwareSummary]) error {
			return a.store.CommitHardware(ctx, deviceID, changes)
		},
		a.logger)

	return err
}

func (a *Agent) reconcileDisks(ctx context.Context, deviceID string) error {
	disks, err := a.hardware.Disks(ctx)
	if err != nil {
		return err
	}

	a.checkDiskUsage(disks)

	_, err = reconcile.Run(ctx, reconcile.DiskCategory(), disks,
		func(ctx context.Context) ([]models.DiskSlot, error) {
			return a.store.LoadDisks(ctx, deviceID)
		},
		func(ctx context.Context, changes reconcile.ChangeSet[models.DiskSlot]) error {
			return a.store.CommitDisks(ctx, deviceID, changes)
		},
		a.logger)

	return err
}

func (a *Agent) reconcileGraphics(ctx context.Context, deviceID string) error {
	cards, err := a.hardware.Graphics(ctx)
	if err != nil {
		return err
	}

	_, err = reconcile.Run(ctx, reconcile.GraphicsCategory(), cards,
		func(ctx context.Context) ([]models.GraphicsCard, error) {
			return a.store.LoadGraphics(ctx, deviceID)
		},
		func(ctx context.Context, changes reconcile.ChangeSet[models.GraphicsCard]) error {
			return a.store.CommitGraphics(ctx, deviceID, changes)
		},
		a.logger)

	return err
}

func (a *Agent) sweepSensors(ctx context.Context, deviceID string) error {
	readings, err := a.hardware.Sensors(ctx)
	if err != nil {
		return err
	}

	if len(readings) == 0 {
		return nil
	}

	a.checkSensorAlerts(readings)

	return a.store.AppendSensorReadings(ctx, deviceID, readings, time.Now().UTC())
}

// uploadSoftwareOnce runs the full software inventory reconciliation at
// most once per process lifetime. A failed attempt releases the gate so a
// later pass retries.
func (a *Agent) uploadSoftwareOnce(ctx context.Context, deviceID string) error {
	if !a.gate.TryEnter(reconcile.CategorySoftware) {
		return nil
	}

	installed, err := a.software.Installed(ctx)
	if err != nil {
		a.gate.Abort(reconcile.CategorySoftware)
		return err
	}

	snapshot := reconcile.NormalizeSoftware(installed)

	_, err = reconcile.Run(ctx, reconcile.SoftwareCategory(), snapshot,
		func(ctx context.Context) ([]models.SoftwareEntry, error) {
			return a.store.LoadSoftware(ctx, deviceID)
		},
		func(ctx context.Context, changes reconcile.ChangeSet[models.SoftwareEntry]) error {
			return a.store.CommitSoftware(ctx, deviceID, changes)
		},
		a.logger)
	if err != nil {
		a.gate.Abort(reconcile.CategorySoftware)
		return err
	}

	a.gate.Complete(reconcile.CategorySoftware)
	a.logger.Info().Int("packages", len(snapshot)).Msg("Software inventory uploaded")

	return nil
}

// catchUpPowerOnce appends power events observed since the last run, once
// per process lifetime. Events older than the lookback window are ignored.
func (a *Agent) catchUpPowerOnce(ctx context.Context, deviceID string) error {
	if !a.gate.TryEnter(reconcile.CategoryPower) {
		return nil
	}

	events, err := a.power.Events(ctx)
	if err != nil {
		a.gate.Abort(reconcile.CategoryPower)
		return err
	}

	cutoff := time.Now().UTC().Add(-a.config.powerLookback())
	recent := make([]models.PowerEvent, 0, len(events))

	for _, e := range events {
		if e.Timestamp.After(cutoff) {
			recent = append(recent, e)
		}
	}

	from, to, ok := reconcile.SnapshotSpan(recent)
	if !ok {
		a.gate.Complete(reconcile.CategoryPower)
		return nil
	}

	_, err = reconcile.Run(ctx, reconcile.PowerCategory(), recent,
		func(ctx context.Context) ([]models.PowerEvent, error) {
			return a.store.LoadPowerEvents(ctx, deviceID, from, to)
		},
		func(ctx context.Context, changes reconcile.ChangeSet[models.PowerEvent]) error {
			return a.store.CommitPowerEvents(ctx, deviceID, changes)
		},
		a.logger)
	if err != nil {
		a.gate.Abort(reconcile.CategoryPower)
		return err
	}

	a.gate.Complete(reconcile.CategoryPower)

	return nil
}

func (a *Agent) checkSensorAlerts(readings []models.SensorReading) {
	policy := a.policy.Load()
	if policy == nil || policy.AlertTempC == nil {
		return
	}

	limit := float64(*policy.AlertTempC)

	for _, r := range readings {
		if r.Celsius != nil && *r.Celsius >= limit {
			a.logger.Warn().
				Str("sensor", r.Name).
				Float64("celsius", *r.Celsius).
				Float64("limit", limit).
				Msg("Sensor temperature above alert threshold")
		}
	}
}

func (a *Agent) checkDiskUsage(disks []models.DiskSlot) {
	policy := a.policy.Load()
	if policy == nil || policy.AlertUsagePct == nil {
		return
	}

	limit := float64(*policy.AlertUsagePct)

	for _, d := range disks {
		if d.TotalGB <= 0 {
			continue
		}

		usedPct := (d.TotalGB - d.AvailableGB) / d.TotalGB * 100
		if usedPct >= limit {
			a.logger.Warn().
				Str("slot", d.SlotLabel).
				Float64("used_pct", usedPct).
				Float64("limit", limit).
				Msg("Disk usage above alert threshold")
		}
	}
}

func powerChangeSet(event models.PowerEvent) reconcile.ChangeSet[models.PowerEvent] {
	return reconcile.ChangeSet[models.PowerEvent]{Add: []models.PowerEvent{event}}
}
