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

// Package agent wires identity resolution, fact collection and
// reconciliation into one unattended endpoint service.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/factsync/pkg/facts"
	"github.com/carverauto/factsync/pkg/identity"
	"github.com/carverauto/factsync/pkg/logger"
	"github.com/carverauto/factsync/pkg/models"
	"github.com/carverauto/factsync/pkg/scheduler"
	"github.com/carverauto/factsync/pkg/settings"
	"github.com/carverauto/factsync/pkg/uploadgate"
)

const (
	networkLoop = "network"
	sensorLoop  = "sensor"

	loginTimeout         = 30 * time.Second
	shutdownFlushTimeout = 5 * time.Second

	defaultPowerLookback = 30 * 24 * time.Hour
)

var errNotAuthenticated = errors.New("no authenticated session")

// Deps carries the collaborators the agent composes. All fields are
// required except Clock, which defaults to the real clock.
type Deps struct {
	Identity     *identity.Resolver
	Settings     *settings.Resolver
	Store        FactStore
	Fingerprints facts.FingerprintSource
	Hardware     facts.HardwareProvider
	Software     facts.SoftwareProvider
	Power        facts.PowerProvider
	Clock        scheduler.Clock
	Logger       logger.Logger
}

// Agent is the composition root. It implements lifecycle.Service.
type Agent struct {
	config    *Config
	logger    logger.Logger
	sessionID string

	identity     *identity.Resolver
	settings     *settings.Resolver
	store        FactStore
	fingerprints facts.FingerprintSource
	hardware     facts.HardwareProvider
	software     facts.SoftwareProvider
	power        facts.PowerProvider

	gate  *uploadgate.Gate
	group *scheduler.Group

	authState atomic.Pointer[models.AuthState]
	device    atomic.Pointer[models.DeviceIdentity]
	policy    atomic.Pointer[models.IntervalPolicy]

	flushOnce sync.Once
}

// New builds an agent from its dependencies. Collection stays dormant
// until the first successful login delivers a tenant.
func New(config *Config, deps Deps) (*Agent, error) {
	if config == nil {
		return nil, errConfigRequired
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	a := &Agent{
		config:       config,
		logger:       deps.Logger,
		sessionID:    uuid.NewString(),
		identity:     deps.Identity,
		settings:     deps.Settings,
		store:        deps.Store,
		fingerprints: deps.Fingerprints,
		hardware:     deps.Hardware,
		software:     deps.Software,
		power:        deps.Power,
		gate:         uploadgate.New(),
		group:        scheduler.NewGroup(),
	}

	defaults := models.DefaultIntervalPolicy()
	a.policy.Store(&defaults)

	a.group.Add(scheduler.NewLoop(networkLoop, defaults.NetworkInterval, a.networkPass, deps.Clock, deps.Logger))
	a.group.Add(scheduler.NewLoop(sensorLoop, defaults.SensorInterval, a.sensorPass, deps.Clock, deps.Logger))

	return a, nil
}

// Start implements the lifecycle.Service interface. A machine whose
// fingerprint already holds a slot resumes reporting immediately; an
// unclaimed machine stays dormant until a login delivers a tenant.
func (a *Agent) Start(ctx context.Context) error {
	a.logger.Info().Str("session_id", a.sessionID).Msg("Starting collection agent")

	a.resumeIdentity(ctx)

	return a.group.Start(ctx)
}

// resumeIdentity restores the identity of a previously assigned machine
// across restarts. It is a pure read: claiming a slot still requires a
// login to supply the owning tenant.
func (a *Agent) resumeIdentity(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()

	fingerprint, err := a.fingerprints.Fingerprint(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Fingerprint unavailable, waiting for login")
		return
	}

	device, err := a.identity.Resolve(ctx, fingerprint)
	if err != nil {
		if !errors.Is(err, identity.ErrNotFound) {
			a.logger.Warn().Err(err).Msg("Identity lookup failed, waiting for login")
		}

		return
	}

	a.device.Store(device)
	a.applyPolicy(ctx, device.OwnerAccount)

	a.logger.Info().
		Str("device_id", device.DeviceID).
		Str("owner", device.OwnerAccount).
		Msg("Resumed device identity from previous assignment")
}

// Stop implements the lifecycle.Service interface. A shutdown power event
// is flushed at most once, with a short deadline, before the loops wind
// down.
func (a *Agent) Stop(ctx context.Context) error {
	a.flushOnce.Do(func() {
		a.recordShutdown(ctx)
	})

	return a.group.Stop(ctx)
}

// OnAuthEvent reacts to a session transition from the embedding host. A
// login resolves (or assigns) the device identity, re-resolves intervals
// and kicks an immediate out-of-band pass. An identity assignment failure
// is the only error surfaced back to the caller.
func (a *Agent) OnAuthEvent(ctx context.Context, event models.AuthEvent) error {
	switch event.Type {
	case models.AuthLogin:
		a.authState.Store(&models.AuthState{Account: event.Account, Tenant: event.Tenant})

		if err := a.ensureIdentity(ctx, event.Tenant); err != nil {
			// A session without an identity cannot report anything; end it.
			a.authState.Store(nil)
			a.logger.Error().Err(err).Str("tenant", event.Tenant).Msg("Identity assignment failed, session ended")

			return err
		}

		a.applyPolicy(ctx, event.Tenant)
		a.TriggerManualRefresh()

		return nil

	case models.AuthLoginFailed:
		a.logger.Warn().Str("account", event.Account).Msg("Login attempt failed")
		a.refreshScheduling(ctx)

		return nil

	case models.AuthLogout:
		a.authState.Store(nil)
		a.logger.Info().Msg("Session ended, device collection continues unattended")
		a.refreshScheduling(ctx)

		return nil

	default:
		return fmt.Errorf("%w: %q", errUnknownAuthEvent, event.Type)
	}
}

// TriggerManualRefresh requests an immediate pass on every loop. Requests
// arriving while a pass is in flight are dropped.
func (a *Agent) TriggerManualRefresh() {
	a.group.Loop(networkLoop).Kick()
	a.group.Loop(sensorLoop).Kick()
}

// Summary describes the running session for diagnostics surfaces.
type Summary struct {
	SessionID string `json:"session_id"`
	Account   string `json:"account,omitempty"`
	Tenant    string `json:"tenant,omitempty"`
	DeviceID  string `json:"device_id,omitempty"`
}

// UserIdentifierSummary reports who the agent currently works for.
func (a *Agent) UserIdentifierSummary() Summary {
	summary := Summary{SessionID: a.sessionID}

	if state := a.authState.Load(); state.LoggedIn() {
		summary.Account = state.Account
		summary.Tenant = state.Tenant
	}

	if device := a.device.Load(); device != nil {
		summary.DeviceID = device.DeviceID
	}

	return summary
}

// ensureIdentity resolves the device identity once per process. Resolution
// is idempotent: a fingerprint that already holds a slot gets the same
// identity back on every login.
func (a *Agent) ensureIdentity(ctx context.Context, tenant string) error {
	if a.device.Load() != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()

	fingerprint, err := a.fingerprints.Fingerprint(ctx)
	if err != nil {
		return fmt.Errorf("fingerprint unavailable: %w", err)
	}

	device, err := a.identity.Resolve(ctx, fingerprint)
	if errors.Is(err, identity.ErrNotFound) {
		device, err = a.identity.Assign(ctx, tenant, fingerprint)
	}

	if err != nil {
		return err
	}

	a.device.Store(device)
	a.logger.Info().
		Str("device_id", device.DeviceID).
		Str("owner", device.OwnerAccount).
		Msg("Device identity established")

	return nil
}

// refreshScheduling re-resolves intervals for whatever session remains and
// kicks an immediate pass. Every auth transition lands here, not just login.
func (a *Agent) refreshScheduling(ctx context.Context) {
	tenant := ""
	if state := a.authState.Load(); state.LoggedIn() {
		tenant = state.Tenant
	}

	a.applyPolicy(ctx, tenant)
	a.TriggerManualRefresh()
}

func (a *Agent) applyPolicy(ctx context.Context, tenant string) {
	policy := a.settings.Resolve(ctx, tenant)
	a.policy.Store(&policy)

	a.group.Loop(networkLoop).Reload(policy.NetworkInterval)
	a.group.Loop(sensorLoop).Reload(policy.SensorInterval)
}

func (a *Agent) currentDevice() (*models.DeviceIdentity, error) {
	if device := a.device.Load(); device != nil {
		return device, nil
	}

	return nil, errNotAuthenticated
}

func (a *Agent) recordShutdown(ctx context.Context) {
	device := a.device.Load()
	if device == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, shutdownFlushTimeout)
	defer cancel()

	err := a.store.CommitPowerEvents(ctx, device.DeviceID, powerChangeSet(models.PowerEvent{
		Timestamp: time.Now().UTC(),
		Action:    models.PowerShutdown,
	}))
	if err != nil {
		a.logger.Error().Err(err).Msg("Failed to flush shutdown event")
	}
}
