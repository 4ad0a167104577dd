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
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS identity_slots (
		slot_id       TEXT PRIMARY KEY,
		owner_account TEXT NOT NULL,
		fingerprint   TEXT,
		claimed_at    TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS identity_slots_fingerprint_idx
		ON identity_slots (fingerprint) WHERE fingerprint IS NOT NULL AND fingerprint <> ''`,
	`CREATE TABLE IF NOT EXISTS hardware_summaries (
		device_id           TEXT PRIMARY KEY,
		processor           TEXT NOT NULL DEFAULT '',
		processor_cores     INT NOT NULL DEFAULT 0,
		motherboard         TEXT NOT NULL DEFAULT '',
		total_memory_gb     DOUBLE PRECISION NOT NULL DEFAULT 0,
		available_memory_gb DOUBLE PRECISION NOT NULL DEFAULT 0,
		ip_address          TEXT NOT NULL DEFAULT '',
		created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS disk_slots (
		device_id       TEXT NOT NULL,
		slot_label      TEXT NOT NULL,
		total_gb        DOUBLE PRECISION NOT NULL DEFAULT 0,
		available_gb    DOUBLE PRECISION NOT NULL DEFAULT 0,
		physical_device TEXT NOT NULL DEFAULT '',
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (device_id, slot_label)
	)`,
	`CREATE TABLE IF NOT EXISTS graphics_cards (
		device_id  TEXT NOT NULL,
		name       TEXT NOT NULL,
		dedicated  BOOLEAN NOT NULL DEFAULT false,
		vram_gb    DOUBLE PRECISION NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (device_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS software_inventory (
		device_id    TEXT NOT NULL,
		name         TEXT NOT NULL,
		version      TEXT NOT NULL DEFAULT '',
		publisher    TEXT,
		install_date DATE,
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (device_id, name, version)
	)`,
	`CREATE TABLE IF NOT EXISTS power_events (
		device_id   TEXT NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL,
		action      TEXT NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (device_id, occurred_at, action)
	)`,
	`CREATE TABLE IF NOT EXISTS sensor_readings (
		device_id   TEXT NOT NULL,
		sensor_name TEXT NOT NULL,
		celsius     DOUBLE PRECISION,
		healthy     BOOLEAN,
		observed_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS sensor_readings_device_idx
		ON sensor_readings (device_id, observed_at)`,
	`CREATE TABLE IF NOT EXISTS throughput_samples (
		device_id    TEXT NOT NULL,
		interface    TEXT NOT NULL,
		rx_bytes_sec DOUBLE PRECISION NOT NULL DEFAULT 0,
		tx_bytes_sec DOUBLE PRECISION NOT NULL DEFAULT 0,
		observed_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS throughput_samples_device_idx
		ON throughput_samples (device_id, observed_at)`,
	`CREATE TABLE IF NOT EXISTS interval_policies (
		tenant              TEXT NOT NULL,
		network_interval_ms BIGINT,
		sensor_interval_ms  BIGINT,
		alert_temp_c        INT,
		alert_usage_pct     INT,
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS interval_policies_tenant_idx
		ON interval_policies (tenant, updated_at DESC)`,
}

// Bootstrap creates the schema when it does not exist yet. Statements are
// idempotent so repeated starts are safe.
func Bootstrap(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("db: schema bootstrap: %w", err)
		}
	}

	return nil
}
