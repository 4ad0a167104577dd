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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/factsync/pkg/identity"
	"github.com/carverauto/factsync/pkg/logger"
	"github.com/carverauto/factsync/pkg/models"
	"github.com/carverauto/factsync/pkg/reconcile"
	"github.com/carverauto/factsync/pkg/scheduler"
	"github.com/carverauto/factsync/pkg/settings"
)

type fakeSlotStore struct {
	mu    sync.Mutex
	slots []models.IdentitySlot
}

func (f *fakeSlotStore) SlotByFingerprint(_ context.Context, fingerprint string) (*models.IdentitySlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.slots {
		if f.slots[i].Fingerprint != nil && *f.slots[i].Fingerprint == fingerprint {
			slot := f.slots[i]
			return &slot, nil
		}
	}

	return nil, nil
}

func (f *fakeSlotStore) UnclaimedSlots(_ context.Context, owner string) ([]models.IdentitySlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var free []models.IdentitySlot

	for _, slot := range f.slots {
		if slot.OwnerAccount == owner && !slot.Claimed() {
			free = append(free, slot)
		}
	}

	return free, nil
}

func (f *fakeSlotStore) ClaimSlot(_ context.Context, slotID, fingerprint string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.slots {
		if f.slots[i].SlotID == slotID && !f.slots[i].Claimed() {
			f.slots[i].Fingerprint = &fingerprint
			return true, nil
		}
	}

	return false, nil
}

type fakePolicyStore struct {
	policies map[string]*models.IntervalPolicy
}

func (f *fakePolicyStore) LatestPolicy(_ context.Context, tenant string) (*models.IntervalPolicy, error) {
	return f.policies[tenant], nil
}

type fakeFactStore struct {
	mu sync.Mutex

	hardware []models.HardwareSummary
	disks    []models.DiskSlot
	graphics []models.GraphicsCard
	software []models.SoftwareEntry
	power    []models.PowerEvent

	hardwareCommits int
	diskCommits     int
	softwareCommits int
	powerCommits    int
}

func (f *fakeFactStore) LoadHardware(context.Context, string) ([]models.HardwareSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.HardwareSummary(nil), f.hardware...), nil
}

func (f *fakeFactStore) CommitHardware(_ context.Context, _ string, changes reconcile.ChangeSet[models.HardwareSummary]) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.hardwareCommits++

	if len(changes.Add) > 0 || len(changes.Update) > 0 {
		rows := append(changes.Add, changes.Update...)
		f.hardware = []models.HardwareSummary{rows[0]}
	}

	return nil
}

func (f *fakeFactStore) LoadDisks(context.Context, string) ([]models.DiskSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.DiskSlot(nil), f.disks...), nil
}

func (f *fakeFactStore) CommitDisks(_ context.Context, _ string, changes reconcile.ChangeSet[models.DiskSlot]) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.diskCommits++

	byLabel := make(map[string]models.DiskSlot, len(f.disks))
	for _, d := range f.disks {
		byLabel[d.SlotLabel] = d
	}

	for _, d := range append(changes.Add, changes.Update...) {
		byLabel[d.SlotLabel] = d
	}

	for _, label := range changes.Remove {
		delete(byLabel, label)
	}

	f.disks = f.disks[:0]
	for _, d := range byLabel {
		f.disks = append(f.disks, d)
	}

	return nil
}

func (f *fakeFactStore) LoadGraphics(context.Context, string) ([]models.GraphicsCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.GraphicsCard(nil), f.graphics...), nil
}

func (f *fakeFactStore) CommitGraphics(_ context.Context, _ string, changes reconcile.ChangeSet[models.GraphicsCard]) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.graphics = append(f.graphics, changes.Add...)

	return nil
}

func (f *fakeFactStore) LoadSoftware(context.Context, string) ([]models.SoftwareEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.SoftwareEntry(nil), f.software...), nil
}

func (f *fakeFactStore) CommitSoftware(_ context.Context, _ string, changes reconcile.ChangeSet[models.SoftwareEntry]) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.softwareCommits++
	f.software = append(f.software, changes.Add...)

	return nil
}

func (f *fakeFactStore) LoadPowerEvents(context.Context, string, time.Time, time.Time) ([]models.PowerEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.PowerEvent(nil), f.power...), nil
}

func (f *fakeFactStore) CommitPowerEvents(_ context.Context, _ string, changes reconcile.ChangeSet[models.PowerEvent]) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.powerCommits++
	f.power = append(f.power, changes.Add...)

	return nil
}

func (f *fakeFactStore) AppendSensorReadings(context.Context, string, []models.SensorReading, time.Time) error {
	return nil
}

func (f *fakeFactStore) AppendThroughputSamples(context.Context, string, []models.ThroughputSample) error {
	return nil
}

type fakeProviders struct {
	fingerprint string
	hw          models.HardwareSummary
	disks       []models.DiskSlot
	software    []models.SoftwareEntry
	events      []models.PowerEvent
}

func (p *fakeProviders) Fingerprint(context.Context) (string, error) { return p.fingerprint, nil }

func (p *fakeProviders) Hardware(context.Context) (models.HardwareSummary, error) { return p.hw, nil }

func (p *fakeProviders) Disks(context.Context) ([]models.DiskSlot, error) { return p.disks, nil }

func (p *fakeProviders) Graphics(context.Context) ([]models.GraphicsCard, error) { return nil, nil }

func (p *fakeProviders) Sensors(context.Context) ([]models.SensorReading, error) { return nil, nil }

func (p *fakeProviders) Throughput(context.Context) ([]models.ThroughputSample, error) {
	return nil, nil
}

func (p *fakeProviders) Installed(context.Context) ([]models.SoftwareEntry, error) {
	return p.software, nil
}

func (p *fakeProviders) Events(context.Context) ([]models.PowerEvent, error) { return p.events, nil }

type manualClock struct {
	mu      sync.Mutex
	tickers []*manualTicker
}

func (c *manualClock) Now() time.Time { return time.Now() }

func (c *manualClock) Ticker(d time.Duration) scheduler.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &manualTicker{interval: d, c: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, t)

	return t
}

func (c *manualClock) intervals() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]time.Duration, 0, len(c.tickers))
	for _, t := range c.tickers {
		out = append(out, t.interval)
	}

	return out
}

type manualTicker struct {
	interval time.Duration
	c        chan time.Time
}

func (t *manualTicker) Chan() <-chan time.Time { return t.c }

func (t *manualTicker) Stop() {}

func newTestAgent(t *testing.T, slots *fakeSlotStore, store *fakeFactStore, providers *fakeProviders, policies map[string]*models.IntervalPolicy) (*Agent, *manualClock) {
	t.Helper()

	log := logger.NewTestLogger()
	clock := &manualClock{}

	a, err := New(&Config{
		Database: &models.Database{Host: "localhost", Database: "factsync"},
	}, Deps{
		Identity:     identity.NewResolver(slots, log),
		Settings:     settings.NewResolver(&fakePolicyStore{policies: policies}, log),
		Store:        store,
		Fingerprints: providers,
		Hardware:     providers,
		Software:     providers,
		Power:        providers,
		Clock:        clock,
		Logger:       log,
	})
	require.NoError(t, err)

	return a, clock
}

func defaultProviders() *fakeProviders {
	return &fakeProviders{
		fingerprint: "aa:bb:cc:dd:ee:ff",
		hw: models.HardwareSummary{
			Processor:      "EPYC 7313",
			ProcessorCores: 16,
			Motherboard:    "H12SSL",
			TotalMemoryGB:  128,
			IPAddress:      "10.1.2.3",
		},
		disks: []models.DiskSlot{
			{SlotLabel: "/", TotalGB: 512, AvailableGB: 200, PhysicalDevice: "nvme0n1"},
		},
		software: []models.SoftwareEntry{
			{Name: "editor", Version: "1.2.3"},
			{Name: "driver", Version: "N/A"},
		},
		events: []models.PowerEvent{
			{Timestamp: time.Now().UTC().Add(-time.Hour), Action: models.PowerStartup},
		},
	}
}

func acmeSlots() *fakeSlotStore {
	return &fakeSlotStore{slots: []models.IdentitySlot{
		{SlotID: "dev-001", OwnerAccount: "acme"},
		{SlotID: "dev-002", OwnerAccount: "acme"},
	}}
}

func startAgent(t *testing.T, a *Agent) {
	t.Helper()

	go func() {
		_ = a.Start(context.Background())
	}()

	t.Cleanup(func() {
		require.NoError(t, a.Stop(context.Background()))
	})
}

func TestLoginAssignsIdentityAndAppliesPolicy(t *testing.T) {
	store := &fakeFactStore{}
	a, clock := newTestAgent(t, acmeSlots(), store, defaultProviders(), map[string]*models.IntervalPolicy{
		"acme": {NetworkInterval: 5 * time.Second, SensorInterval: 60 * time.Second},
	})

	startAgent(t, a)

	err := a.OnAuthEvent(context.Background(), models.AuthEvent{
		Type: models.AuthLogin, Account: "user@acme", Tenant: "acme",
	})
	require.NoError(t, err)

	summary := a.UserIdentifierSummary()
	assert.Equal(t, "dev-001", summary.DeviceID)
	assert.Equal(t, "user@acme", summary.Account)
	assert.Equal(t, "acme", summary.Tenant)
	assert.NotEmpty(t, summary.SessionID)

	// The interval reload replaces both tickers with the tenant policy.
	assert.Eventually(t, func() bool {
		intervals := clock.intervals()
		return contains(intervals, 5*time.Second) && contains(intervals, 60*time.Second)
	}, time.Second, 5*time.Millisecond)
}

func TestLoginIsIdempotentAcrossSessions(t *testing.T) {
	slots := acmeSlots()
	store := &fakeFactStore{}
	a, _ := newTestAgent(t, slots, store, defaultProviders(), nil)

	startAgent(t, a)

	login := models.AuthEvent{Type: models.AuthLogin, Account: "user@acme", Tenant: "acme"}

	require.NoError(t, a.OnAuthEvent(context.Background(), login))
	first := a.UserIdentifierSummary().DeviceID

	require.NoError(t, a.OnAuthEvent(context.Background(), models.AuthEvent{Type: models.AuthLogout}))
	require.NoError(t, a.OnAuthEvent(context.Background(), login))

	assert.Equal(t, first, a.UserIdentifierSummary().DeviceID)
}

func TestLoginFailsWhenPoolExhausted(t *testing.T) {
	slots := &fakeSlotStore{slots: []models.IdentitySlot{}}
	a, _ := newTestAgent(t, slots, &fakeFactStore{}, defaultProviders(), nil)

	startAgent(t, a)

	err := a.OnAuthEvent(context.Background(), models.AuthEvent{
		Type: models.AuthLogin, Account: "user@acme", Tenant: "acme",
	})
	require.ErrorIs(t, err, identity.ErrNoCapacity)
	assert.Empty(t, a.UserIdentifierSummary().Account, "failed login should not leave a session behind")
}

func TestStartResumesClaimedIdentityWithoutLogin(t *testing.T) {
	fingerprint := "AABBCCDDEEFF"
	slots := &fakeSlotStore{slots: []models.IdentitySlot{
		{SlotID: "dev-001", OwnerAccount: "acme", Fingerprint: &fingerprint},
	}}
	store := &fakeFactStore{}
	a, clock := newTestAgent(t, slots, store, defaultProviders(), map[string]*models.IntervalPolicy{
		"acme": {NetworkInterval: 5 * time.Second, SensorInterval: 60 * time.Second},
	})

	startAgent(t, a)

	// The claimed slot alone brings the device back; no login happens.
	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.hardware) == 1
	}, time.Second, 5*time.Millisecond)

	summary := a.UserIdentifierSummary()
	assert.Equal(t, "dev-001", summary.DeviceID)
	assert.Empty(t, summary.Account)
	assert.Contains(t, clock.intervals(), 60*time.Second, "owner's policy applies on resume")
}

func TestStartStaysDormantForUnclaimedFingerprint(t *testing.T) {
	store := &fakeFactStore{}
	a, _ := newTestAgent(t, acmeSlots(), store, defaultProviders(), nil)

	startAgent(t, a)

	time.Sleep(50 * time.Millisecond)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Zero(t, store.hardwareCommits)
	assert.Empty(t, a.UserIdentifierSummary().DeviceID)
}

func TestSecondPassIsQuiescent(t *testing.T) {
	store := &fakeFactStore{}
	a, _ := newTestAgent(t, acmeSlots(), store, defaultProviders(), nil)

	startAgent(t, a)

	require.NoError(t, a.OnAuthEvent(context.Background(), models.AuthEvent{
		Type: models.AuthLogin, Account: "user@acme", Tenant: "acme",
	}))

	// First pass lands everything.
	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.hardware) == 1 && len(store.disks) == 1 &&
			len(store.software) == 2 && len(store.power) == 1
	}, time.Second, 5*time.Millisecond)

	store.mu.Lock()
	hardwareCommits := store.hardwareCommits
	diskCommits := store.diskCommits
	store.mu.Unlock()

	// An identical snapshot produces no further commits.
	a.TriggerManualRefresh()

	time.Sleep(100 * time.Millisecond)

	store.mu.Lock()
	defer store.mu.Unlock()

	assert.Equal(t, hardwareCommits, store.hardwareCommits)
	assert.Equal(t, diskCommits, store.diskCommits)
	assert.Equal(t, 1, store.softwareCommits)
	assert.Equal(t, 1, store.powerCommits)
}

func TestSoftwareSentinelVersionNormalized(t *testing.T) {
	store := &fakeFactStore{}
	a, _ := newTestAgent(t, acmeSlots(), store, defaultProviders(), nil)

	startAgent(t, a)

	require.NoError(t, a.OnAuthEvent(context.Background(), models.AuthEvent{
		Type: models.AuthLogin, Account: "user@acme", Tenant: "acme",
	}))

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.software) == 2
	}, time.Second, 5*time.Millisecond)

	store.mu.Lock()
	defer store.mu.Unlock()

	for _, e := range store.software {
		if e.Name == "driver" {
			assert.Empty(t, e.Version)
		}
	}
}

func TestStopFlushesShutdownEvent(t *testing.T) {
	store := &fakeFactStore{}
	a, _ := newTestAgent(t, acmeSlots(), store, defaultProviders(), nil)

	go func() {
		_ = a.Start(context.Background())
	}()

	require.NoError(t, a.OnAuthEvent(context.Background(), models.AuthEvent{
		Type: models.AuthLogin, Account: "user@acme", Tenant: "acme",
	}))

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.power) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, a.Stop(context.Background()))

	store.mu.Lock()
	defer store.mu.Unlock()

	require.Len(t, store.power, 2)
	assert.Equal(t, models.PowerShutdown, store.power[1].Action)
	store.mu.Unlock()

	// A second Stop must not flush a second shutdown event.
	require.NoError(t, a.Stop(context.Background()))

	store.mu.Lock()
	assert.Len(t, store.power, 2)
}

func TestLogoutReResolvesIntervalsAndKeepsCollecting(t *testing.T) {
	store := &fakeFactStore{}
	a, clock := newTestAgent(t, acmeSlots(), store, defaultProviders(), map[string]*models.IntervalPolicy{
		"acme":  {NetworkInterval: 5 * time.Second, SensorInterval: 60 * time.Second},
		"admin": {NetworkInterval: 2 * time.Second, SensorInterval: 20 * time.Second},
	})

	startAgent(t, a)

	require.NoError(t, a.OnAuthEvent(context.Background(), models.AuthEvent{
		Type: models.AuthLogin, Account: "user@acme", Tenant: "acme",
	}))

	require.NoError(t, a.OnAuthEvent(context.Background(), models.AuthEvent{Type: models.AuthLogout}))

	// With no tenant session left, intervals fall back to the operator row.
	assert.Eventually(t, func() bool {
		return contains(clock.intervals(), 20*time.Second)
	}, time.Second, 5*time.Millisecond)

	// The device outlives the session, so reconciliation keeps running.
	summary := a.UserIdentifierSummary()
	assert.NotEmpty(t, summary.DeviceID)
	assert.Empty(t, summary.Account)
}

func TestUnknownAuthEventRejected(t *testing.T) {
	a, _ := newTestAgent(t, acmeSlots(), &fakeFactStore{}, defaultProviders(), nil)

	err := a.OnAuthEvent(context.Background(), models.AuthEvent{Type: "mystery"})
	require.ErrorIs(t, err, errUnknownAuthEvent)
}

func contains(ds []time.Duration, want time.Duration) bool {
	for _, d := range ds {
		if d == want {
			return true
		}
	}

	return false
}
