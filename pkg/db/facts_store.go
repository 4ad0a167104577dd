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

package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carverauto/factsync/pkg/models"
	"github.com/carverauto/factsync/pkg/reconcile"
)

// FactStore persists reconciled facts for one device. Every change set is
// applied inside a single transaction so a pass either lands whole or not
// at all.
type FactStore struct {
	pool *pgxpool.Pool
}

func NewFactStore(pool *pgxpool.Pool) *FactStore {
	return &FactStore{pool: pool}
}

func (s *FactStore) applyBatch(ctx context.Context, batch *pgx.Batch, operation string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s begin: %w", operation, err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := execBatch(ctx, batch, tx.SendBatch, operation); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s commit: %w", operation, err)
	}

	return nil
}

func (s *FactStore) LoadHardware(ctx context.Context, deviceID string) ([]models.HardwareSummary, error) {
	const q = `SELECT processor, processor_cores, motherboard, total_memory_gb,
			available_memory_gb, ip_address, created_at, updated_at
		FROM hardware_summaries WHERE device_id = $1`

	var hw models.HardwareSummary

	err := s.pool.QueryRow(ctx, q, deviceID).Scan(
		&hw.Processor, &hw.ProcessorCores, &hw.Motherboard, &hw.TotalMemoryGB,
		&hw.AvailableMemoryGB, &hw.IPAddress, &hw.CreatedAt, &hw.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("db: load hardware: %w", err)
	}

	return []models.HardwareSummary{hw}, nil
}

func (s *FactStore) CommitHardware(ctx context.Context, deviceID string, changes reconcile.ChangeSet[models.HardwareSummary]) error {
	batch := &pgx.Batch{}

	const upsert = `INSERT INTO hardware_summaries
			(device_id, processor, processor_cores, motherboard, total_memory_gb,
			 available_memory_gb, ip_address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		ON CONFLICT (device_id) DO UPDATE SET
			processor = EXCLUDED.processor,
			processor_cores = EXCLUDED.processor_cores,
			motherboard = EXCLUDED.motherboard,
			total_memory_gb = EXCLUDED.total_memory_gb,
			available_memory_gb = EXCLUDED.available_memory_gb,
			ip_address = EXCLUDED.ip_address,
			updated_at = now()`

	for _, hw := range changes.Add {
		batch.Queue(upsert, deviceID, hw.Processor, hw.ProcessorCores, hw.Motherboard,
			hw.TotalMemoryGB, hw.AvailableMemoryGB, hw.IPAddress)
	}

	for _, hw := range changes.Update {
		batch.Queue(upsert, deviceID, hw.Processor, hw.ProcessorCores, hw.Motherboard,
			hw.TotalMemoryGB, hw.AvailableMemoryGB, hw.IPAddress)
	}

	for _, hw := range changes.Refresh {
		batch.Queue(`UPDATE hardware_summaries SET available_memory_gb = $2
			WHERE device_id = $1`, deviceID, hw.AvailableMemoryGB)
	}

	// The hardware summary is a single row; removals never apply.

	return s.applyBatch(ctx, batch, "hardware")
}

func (s *FactStore) LoadDisks(ctx context.Context, deviceID string) ([]models.DiskSlot, error) {
	const q = `SELECT slot_label, total_gb, available_gb, physical_device
		FROM disk_slots WHERE device_id = $1 ORDER BY slot_label`

	rows, err := s.pool.Query(ctx, q, deviceID)
	if err != nil {
		return nil, fmt.Errorf("db: load disks: %w", err)
	}
	defer rows.Close()

	var disks []models.DiskSlot

	for rows.Next() {
		var d models.DiskSlot

		if err := rows.Scan(&d.SlotLabel, &d.TotalGB, &d.AvailableGB, &d.PhysicalDevice); err != nil {
			return nil, fmt.Errorf("db: scan disk: %w", err)
		}

		disks = append(disks, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: load disks rows: %w", err)
	}

	return disks, nil
}

func (s *FactStore) CommitDisks(ctx context.Context, deviceID string, changes reconcile.ChangeSet[models.DiskSlot]) error {
	batch := &pgx.Batch{}

	const upsert = `INSERT INTO disk_slots
			(device_id, slot_label, total_gb, available_gb, physical_device, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (device_id, slot_label) DO UPDATE SET
			total_gb = EXCLUDED.total_gb,
			available_gb = EXCLUDED.available_gb,
			physical_device = EXCLUDED.physical_device,
			updated_at = now()`

	for _, d := range changes.Add {
		batch.Queue(upsert, deviceID, d.SlotLabel, d.TotalGB, d.AvailableGB, d.PhysicalDevice)
	}

	for _, d := range changes.Update {
		batch.Queue(upsert, deviceID, d.SlotLabel, d.TotalGB, d.AvailableGB, d.PhysicalDevice)
	}

	for _, d := range changes.Refresh {
		batch.Queue(`UPDATE disk_slots SET available_gb = $3
			WHERE device_id = $1 AND slot_label = $2`, deviceID, d.SlotLabel, d.AvailableGB)
	}

	for _, label := range changes.Remove {
		batch.Queue(`DELETE FROM disk_slots WHERE device_id = $1 AND slot_label = $2`, deviceID, label)
	}

	return s.applyBatch(ctx, batch, "disks")
}

func (s *FactStore) LoadGraphics(ctx context.Context, deviceID string) ([]models.GraphicsCard, error) {
	const q = `SELECT name, dedicated, vram_gb
		FROM graphics_cards WHERE device_id = $1 ORDER BY name`

	rows, err := s.pool.Query(ctx, q, deviceID)
	if err != nil {
		return nil, fmt.Errorf("db: load graphics: %w", err)
	}
	defer rows.Close()

	var cards []models.GraphicsCard

	for rows.Next() {
		var g models.GraphicsCard

		if err := rows.Scan(&g.Name, &g.Dedicated, &g.VRAMGB); err != nil {
			return nil, fmt.Errorf("db: scan graphics card: %w", err)
		}

		cards = append(cards, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: load graphics rows: %w", err)
	}

	return cards, nil
}

func (s *FactStore) CommitGraphics(ctx context.Context, deviceID string, changes reconcile.ChangeSet[models.GraphicsCard]) error {
	batch := &pgx.Batch{}

	const upsert = `INSERT INTO graphics_cards
			(device_id, name, dedicated, vram_gb, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (device_id, name) DO UPDATE SET
			dedicated = EXCLUDED.dedicated,
			vram_gb = EXCLUDED.vram_gb,
			updated_at = now()`

	for _, g := range changes.Add {
		batch.Queue(upsert, deviceID, g.Name, g.Dedicated, g.VRAMGB)
	}

	for _, g := range changes.Update {
		batch.Queue(upsert, deviceID, g.Name, g.Dedicated, g.VRAMGB)
	}

	for _, name := range changes.Remove {
		batch.Queue(`DELETE FROM graphics_cards WHERE device_id = $1 AND name = $2`, deviceID, name)
	}

	return s.applyBatch(ctx, batch, "graphics")
}

func (s *FactStore) LoadSoftware(ctx context.Context, deviceID string) ([]models.SoftwareEntry, error) {
	const q = `SELECT name, version, publisher, install_date
		FROM software_inventory WHERE device_id = $1 ORDER BY name, version`

	rows, err := s.pool.Query(ctx, q, deviceID)
	if err != nil {
		return nil, fmt.Errorf("db: load software: %w", err)
	}
	defer rows.Close()

	var entries []models.SoftwareEntry

	for rows.Next() {
		var e models.SoftwareEntry

		if err := rows.Scan(&e.Name, &e.Version, &e.Publisher, &e.InstallDate); err != nil {
			return nil, fmt.Errorf("db: scan software entry: %w", err)
		}

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: load software rows: %w", err)
	}

	return entries, nil
}

func (s *FactStore) CommitSoftware(ctx context.Context, deviceID string, changes reconcile.ChangeSet[models.SoftwareEntry]) error {
	batch := &pgx.Batch{}

	const upsert = `INSERT INTO software_inventory
			(device_id, name, version, publisher, install_date, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (device_id, name, version) DO UPDATE SET
			publisher = EXCLUDED.publisher,
			install_date = EXCLUDED.install_date,
			updated_at = now()`

	for _, e := range changes.Add {
		batch.Queue(upsert, deviceID, e.Name, e.Version, e.Publisher, e.InstallDate)
	}

	for _, e := range changes.Update {
		batch.Queue(upsert, deviceID, e.Name, e.Version, e.Publisher, e.InstallDate)
	}

	for _, key := range changes.Remove {
		name, version := splitSoftwareKey(key)
		batch.Queue(`DELETE FROM software_inventory
			WHERE device_id = $1 AND name = $2 AND version = $3`, deviceID, name, version)
	}

	return s.applyBatch(ctx, batch, "software")
}

// LoadPowerEvents returns events within [from, to], the span of the
// snapshot being reconciled.
func (s *FactStore) LoadPowerEvents(ctx context.Context, deviceID string, from, to time.Time) ([]models.PowerEvent, error) {
	const q = `SELECT occurred_at, action FROM power_events
		WHERE device_id = $1 AND occurred_at BETWEEN $2 AND $3
		ORDER BY occurred_at`

	rows, err := s.pool.Query(ctx, q, deviceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("db: load power events: %w", err)
	}
	defer rows.Close()

	var events []models.PowerEvent

	for rows.Next() {
		var e models.PowerEvent

		if err := rows.Scan(&e.Timestamp, &e.Action); err != nil {
			return nil, fmt.Errorf("db: scan power event: %w", err)
		}

		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: load power events rows: %w", err)
	}

	return events, nil
}

func (s *FactStore) CommitPowerEvents(ctx context.Context, deviceID string, changes reconcile.ChangeSet[models.PowerEvent]) error {
	batch := &pgx.Batch{}

	for _, e := range changes.Add {
		batch.Queue(`INSERT INTO power_events (device_id, occurred_at, action)
			VALUES ($1, $2, $3)
			ON CONFLICT (device_id, occurred_at, action) DO NOTHING`,
			deviceID, e.Timestamp.Truncate(time.Second), string(e.Action))
	}

	return s.applyBatch(ctx, batch, "power")
}

// AppendSensorReadings records a sensor sweep. Readings are time series,
// not reconciled state.
func (s *FactStore) AppendSensorReadings(ctx context.Context, deviceID string, readings []models.SensorReading, observedAt time.Time) error {
	batch := &pgx.Batch{}

	for _, r := range readings {
		batch.Queue(`INSERT INTO sensor_readings
				(device_id, sensor_name, celsius, healthy, observed_at)
			VALUES ($1, $2, $3, $4, $5)`,
			deviceID, r.Name, r.Celsius, r.Healthy, observedAt)
	}

	return s.applyBatch(ctx, batch, "sensors")
}

// AppendThroughputSamples records per-interface byte rates.
func (s *FactStore) AppendThroughputSamples(ctx context.Context, deviceID string, samples []models.ThroughputSample) error {
	batch := &pgx.Batch{}

	for _, sample := range samples {
		batch.Queue(`INSERT INTO throughput_samples
				(device_id, interface, rx_bytes_sec, tx_bytes_sec, observed_at)
			VALUES ($1, $2, $3, $4, $5)`,
			deviceID, sample.Interface, sample.RxBytesSec, sample.TxBytesSec, sample.ObservedAt)
	}

	return s.applyBatch(ctx, batch, "throughput")
}

func splitSoftwareKey(key string) (name, version string) {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '|' {
			return key[:i], key[i+1:]
		}
	}

	return key, ""
}
