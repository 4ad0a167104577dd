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

//go:generate mockgen -destination=mock_identity.go -package=identity github.com/carverauto/factsync/pkg/identity SlotStore

package identity

import (
	"context"

	"github.com/carverauto/factsync/pkg/models"
)

// SlotStore is the persistence contract for the identity-slot pool.
type SlotStore interface {
	// SlotByFingerprint returns the slot already claimed by the canonical
	// fingerprint, or nil when no slot holds it.
	SlotByFingerprint(ctx context.Context, fingerprint string) (*models.IdentitySlot, error)

	// UnclaimedSlots returns the owner's unclaimed slots in provisioning order.
	UnclaimedSlots(ctx context.Context, ownerAccount string) ([]models.IdentitySlot, error)

	// ClaimSlot conditionally writes the fingerprint into the slot. It
	// returns true only when the slot was still unclaimed at the moment of
	// the write; a lost race returns false, nil.
	ClaimSlot(ctx context.Context, slotID, fingerprint string) (bool, error)
}
