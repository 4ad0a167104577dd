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

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carverauto/factsync/pkg/models"
)

// SlotStore reads and claims identity slots. Claiming is a compare-and-set
// on the fingerprint column so concurrent agents cannot take the same slot.
type SlotStore struct {
	pool *pgxpool.Pool
}

func NewSlotStore(pool *pgxpool.Pool) *SlotStore {
	return &SlotStore{pool: pool}
}

func (s *SlotStore) SlotByFingerprint(ctx context.Context, fingerprint string) (*models.IdentitySlot, error) {
	const q = `SELECT slot_id, owner_account, fingerprint
		FROM identity_slots WHERE fingerprint = $1`

	var slot models.IdentitySlot

	err := s.pool.QueryRow(ctx, q, fingerprint).Scan(&slot.SlotID, &slot.OwnerAccount, &slot.Fingerprint)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("db: slot lookup: %w", err)
	}

	return &slot, nil
}

// UnclaimedSlots returns the tenant's free slots in stable order.
func (s *SlotStore) UnclaimedSlots(ctx context.Context, ownerAccount string) ([]models.IdentitySlot, error) {
	const q = `SELECT slot_id, owner_account, fingerprint
		FROM identity_slots
		WHERE owner_account = $1 AND (fingerprint IS NULL OR fingerprint = '')
		ORDER BY slot_id`

	rows, err := s.pool.Query(ctx, q, ownerAccount)
	if err != nil {
		return nil, fmt.Errorf("db: unclaimed slots: %w", err)
	}
	defer rows.Close()

	var slots []models.IdentitySlot

	for rows.Next() {
		var slot models.IdentitySlot

		if err := rows.Scan(&slot.SlotID, &slot.OwnerAccount, &slot.Fingerprint); err != nil {
			return nil, fmt.Errorf("db: scan slot: %w", err)
		}

		slots = append(slots, slot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: unclaimed slots rows: %w", err)
	}

	return slots, nil
}

// ClaimSlot writes fingerprint into the slot only if the slot is still
// free. It reports whether this caller won the claim.
func (s *SlotStore) ClaimSlot(ctx context.Context, slotID, fingerprint string) (bool, error) {
	const q = `UPDATE identity_slots
		SET fingerprint = $2, claimed_at = now()
		WHERE slot_id = $1 AND (fingerprint IS NULL OR fingerprint = '')`

	tag, err := s.pool.Exec(ctx, q, slotID, fingerprint)
	if err != nil {
		return false, fmt.Errorf("db: claim slot: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}
