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

package models

// DeviceIdentity is the stable identity of one endpoint. It is created the
// first time a hardware fingerprint claims a slot and is never reassigned.
type DeviceIdentity struct {
	DeviceID     string `json:"device_id"`
	OwnerAccount string `json:"owner_account"`
}

// IdentitySlot is one pre-provisioned row of identity capacity reserved for a
// tenant account. Fingerprint starts unset and is claimed exactly once.
type IdentitySlot struct {
	SlotID       string  `json:"slot_id"`
	OwnerAccount string  `json:"owner_account"`
	Fingerprint  *string `json:"fingerprint,omitempty"`
}

// Claimed reports whether the slot already carries a device fingerprint.
func (s *IdentitySlot) Claimed() bool {
	return s.Fingerprint != nil && *s.Fingerprint != ""
}

// AuthEventType enumerates the authentication transitions the agent reacts to.
type AuthEventType string

const (
	AuthLogin       AuthEventType = "login"
	AuthLoginFailed AuthEventType = "login_failed"
	AuthLogout      AuthEventType = "logout"
)

// AuthEvent is delivered by the external authentication surface whenever the
// session state changes. Account and Tenant are only set for AuthLogin.
type AuthEvent struct {
	Type    AuthEventType `json:"type"`
	Account string        `json:"account,omitempty"`
	Tenant  string        `json:"tenant,omitempty"`
}

// AuthState is an immutable snapshot of the current session. Components read
// it through an atomic pointer swap; a running pass never observes a partial
// state change.
type AuthState struct {
	Account string
	Tenant  string
}

// LoggedIn reports whether a session is active.
func (s *AuthState) LoggedIn() bool {
	return s != nil && s.Account != ""
}
