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

// Package settings resolves collection interval policies with a tenant to
// platform-operator to built-in default fallback chain.
package settings

import (
	"context"

	"github.com/carverauto/factsync/pkg/logger"
	"github.com/carverauto/factsync/pkg/models"
)

// fallbackTenant is consulted when the tenant itself has no usable policy.
const fallbackTenant = "admin"

//go:generate mockgen -destination=mock_settings.go -package=settings github.com/carverauto/factsync/pkg/settings PolicyStore

// PolicyStore reads the most recent interval policy stored for a tenant.
// A tenant without any usable row returns (nil, nil).
type PolicyStore interface {
	LatestPolicy(ctx context.Context, tenant string) (*models.IntervalPolicy, error)
}

// Resolver turns a tenant name into an effective interval policy. Lookup
// failures degrade to the built-in default so collection never stalls on
// the settings store.
type Resolver struct {
	store  PolicyStore
	logger logger.Logger
}

func NewResolver(store PolicyStore, log logger.Logger) *Resolver {
	return &Resolver{store: store, logger: log}
}

// Resolve returns the policy for tenant, falling back to the platform
// operator's policy and finally to the built-in default. It never fails:
// a store error short-circuits straight to the default rather than
// walking the rest of the chain on a backend that is already misbehaving.
func (r *Resolver) Resolve(ctx context.Context, tenant string) models.IntervalPolicy {
	for _, candidate := range r.chain(tenant) {
		policy, err := r.store.LatestPolicy(ctx, candidate)
		if err != nil {
			r.logger.Warn().
				Err(err).
				Str("tenant", candidate).
				Msg("Policy lookup failed, using default intervals")

			return models.DefaultIntervalPolicy()
		}

		if policy == nil {
			continue
		}

		r.logger.Debug().
			Str("tenant", candidate).
			Dur("network_interval", policy.NetworkInterval).
			Dur("sensor_interval", policy.SensorInterval).
			Msg("Resolved interval policy")

		return *policy
	}

	return models.DefaultIntervalPolicy()
}

func (r *Resolver) chain(tenant string) []string {
	if tenant == "" || tenant == fallbackTenant {
		return []string{fallbackTenant}
	}

	return []string{tenant, fallbackTenant}
}
