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

package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/carverauto/factsync/pkg/logger"
	"github.com/carverauto/factsync/pkg/models"
)

type fakePolicyStore struct {
	policies map[string]*models.IntervalPolicy
	errs     map[string]error
	lookups  []string
}

func (f *fakePolicyStore) LatestPolicy(_ context.Context, tenant string) (*models.IntervalPolicy, error) {
	f.lookups = append(f.lookups, tenant)

	if err := f.errs[tenant]; err != nil {
		return nil, err
	}

	return f.policies[tenant], nil
}

func policy(network, sensor time.Duration) *models.IntervalPolicy {
	return &models.IntervalPolicy{NetworkInterval: network, SensorInterval: sensor}
}

func TestResolveTenantPolicyWins(t *testing.T) {
	store := &fakePolicyStore{policies: map[string]*models.IntervalPolicy{
		"acme":  policy(5*time.Second, 60*time.Second),
		"admin": policy(2*time.Second, 20*time.Second),
	}}
	r := NewResolver(store, logger.NewTestLogger())

	got := r.Resolve(context.Background(), "acme")

	assert.Equal(t, 5*time.Second, got.NetworkInterval)
	assert.Equal(t, 60*time.Second, got.SensorInterval)
	assert.Equal(t, []string{"acme"}, store.lookups)
}

func TestResolveFallsBackToOperator(t *testing.T) {
	store := &fakePolicyStore{policies: map[string]*models.IntervalPolicy{
		"admin": policy(2*time.Second, 20*time.Second),
	}}
	r := NewResolver(store, logger.NewTestLogger())

	got := r.Resolve(context.Background(), "acme")

	assert.Equal(t, 2*time.Second, got.NetworkInterval)
	assert.Equal(t, []string{"acme", "admin"}, store.lookups)
}

func TestResolveFallsBackToDefault(t *testing.T) {
	store := &fakePolicyStore{}
	r := NewResolver(store, logger.NewTestLogger())

	got := r.Resolve(context.Background(), "acme")

	assert.Equal(t, models.DefaultIntervalPolicy(), got)
}

func TestResolveStoreErrorShortCircuitsToDefault(t *testing.T) {
	store := &fakePolicyStore{
		errs: map[string]error{"acme": errors.New("timeout")},
		policies: map[string]*models.IntervalPolicy{
			"admin": policy(3*time.Second, 45*time.Second),
		},
	}
	r := NewResolver(store, logger.NewTestLogger())

	got := r.Resolve(context.Background(), "acme")

	// A failing store does not get a second chance via the operator row.
	assert.Equal(t, models.DefaultIntervalPolicy(), got)
	assert.Equal(t, []string{"acme"}, store.lookups)
}

func TestResolveEmptyTenantSkipsTenantLookup(t *testing.T) {
	store := &fakePolicyStore{}
	r := NewResolver(store, logger.NewTestLogger())

	got := r.Resolve(context.Background(), "")

	assert.Equal(t, models.DefaultIntervalPolicy(), got)
	assert.Equal(t, []string{"admin"}, store.lookups)
}
