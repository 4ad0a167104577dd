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
	"time"

	"github.com/carverauto/factsync/pkg/logger"
	"github.com/carverauto/factsync/pkg/models"
)

// Config is the agent's service configuration.
type Config struct {
	Database *models.Database `json:"database"`
	Logging  *logger.Config   `json:"logging,omitempty"`

	// PowerLookback bounds the historical window of the one-shot power
	// event catch-up. Zero selects the 30-day default.
	PowerLookback models.Duration `json:"power_lookback,omitempty"`
}

// Validate implements config.Validator.
func (c *Config) Validate() error {
	if c.Database == nil {
		return errDatabaseRequired
	}

	if c.Database.Host == "" || c.Database.Database == "" {
		return errDatabaseIncomplete
	}

	return nil
}

func (c *Config) powerLookback() time.Duration {
	if d := time.Duration(c.PowerLookback); d > 0 {
		return d
	}

	return defaultPowerLookback
}
