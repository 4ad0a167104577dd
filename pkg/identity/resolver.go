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

package identity

import (
	"context"

	"github.com/carverauto/factsync/pkg/logger"
	"github.com/carverauto/factsync/pkg/models"
)

// Resolver resolves and assigns device identities against the slot pool.
type Resolver struct {
	store  SlotStore
	logger logger.Logger
}

// NewResolver creates a Resolver backed by the given slot store.
func NewResolver(store SlotStore, log logger.Logger) *Resolver {
	return &Resolver{
		store:  store,
		logger: log,
	}
}

// Resolve looks up the identity already assigned to the fingerprint. It is a
// pure read: store failures degrade to ErrNotFound so the caller can decide
// whether to re-authenticate or retry later.
func (r *Resolver) Resolve(ctx context.Context, fingerprint string) (*models.DeviceIdentity, error) {
	norm, err := Normalize(fingerprint)
	if err != nil {
		return nil, err
	}

	slot, err := r.store.SlotByFingerprint(ctx, norm)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Identity lookup failed, treating as not found")
		return nil, ErrNotFound
	}

	if slot == nil {
		return nil, ErrNotFound
	}

	return &models.DeviceIdentity{
		DeviceID:     slot.SlotID,
		OwnerAccount: slot.OwnerAccount,
	}, nil
}

// Assign claims the first unclaimed slot owned by ownerAccount for the
// fingerprint. The claim is a compare-and-set: when another process claims a
// candidate slot between the read and the write, Assign moves on to the next
// candidate instead of failing. Assign is idempotent: a fingerprint that
// already holds a slot gets the same identity back, never a second slot.
func (r *Resolver) Assign(ctx context.Context, ownerAccount, fingerprint string) (*models.DeviceIdentity, error) {
	norm, err := Normalize(fingerprint)
	if err != nil {
		return nil, err
	}

	if existing, err := r.Resolve(ctx, norm); err == nil {
		return existing, nil
	}

	candidates, err := r.store.UnclaimedSlots(ctx, ownerAccount)
	if err != nil {
		r.logger.Warn().Err(err).Str("owner", ownerAccount).Msg("Slot listing failed, treating as exhausted pool")
		return nil, ErrNoCapacity
	}

	for i := range candidates {
		slot := &candidates[i]

		claimed, err := r.store.ClaimSlot(ctx, slot.SlotID, norm)
		if err != nil {
			r.logger.Warn().Err(err).Str("slot_id", slot.SlotID).Msg("Slot claim failed, trying next candidate")
			continue
		}

		if !claimed {
			// Lost the race for this slot; try the next one.
			r.logger.Debug().Str("slot_id", slot.SlotID).Msg("Slot claimed by another process, retrying")
			continue
		}

		r.logger.Info().
			Str("slot_id", slot.SlotID).
			Str("owner", ownerAccount).
			Str("fingerprint", Format(norm)).
			Msg("Assigned identity slot")

		return &models.DeviceIdentity{
			DeviceID:     slot.SlotID,
			OwnerAccount: slot.OwnerAccount,
		}, nil
	}

	return nil, ErrNoCapacity
}
