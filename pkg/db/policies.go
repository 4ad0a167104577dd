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
)

// PolicyStore reads interval policies. Rows missing either interval are
// not usable and are skipped in favor of older complete rows.
type PolicyStore struct {
	pool *pgxpool.Pool
}

func NewPolicyStore(pool *pgxpool.Pool) *PolicyStore {
	return &PolicyStore{pool: pool}
}

func (s *PolicyStore) LatestPolicy(ctx context.Context, tenant string) (*models.IntervalPolicy, error) {
	const q = `SELECT network_interval_ms, sensor_interval_ms, alert_temp_c, alert_usage_pct
		FROM interval_policies
		WHERE tenant = $1
			AND network_interval_ms IS NOT NULL
			AND sensor_interval_ms IS NOT NULL
		ORDER BY updated_at DESC
		LIMIT 1`

	var (
		networkMS, sensorMS int64
		policy              models.IntervalPolicy
	)

	err := s.pool.QueryRow(ctx, q, tenant).Scan(&networkMS, &sensorMS, &policy.AlertTempC, &policy.AlertUsagePct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("db: latest policy: %w", err)
	}

	policy.NetworkInterval = time.Duration(networkMS) * time.Millisecond
	policy.SensorInterval = time.Duration(sensorMS) * time.Millisecond

	return &policy, nil
}
