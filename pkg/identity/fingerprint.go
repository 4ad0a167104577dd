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

// Package identity resolves a stable device identity from a hardware
// fingerprint and claims identity slots from a tenant's pre-provisioned pool.
package identity

import (
	"strings"
)

const fingerprintHexDigits = 12

// Normalize converts any textual MAC representation into the canonical
// fingerprint form: uppercase hex with all separators stripped. Two spellings
// of the same address ("aa:bb:cc:dd:ee:ff", "AA-BB-CC-DD-EE-FF") normalize to
// the same value. Returns ErrMalformedFingerprint when the input does not
// denote a 48-bit address.
func Normalize(fingerprint string) (string, error) {
	var b strings.Builder

	b.Grow(fingerprintHexDigits)

	for _, r := range strings.ToUpper(strings.TrimSpace(fingerprint)) {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'F':
			b.WriteRune(r)
		case r == ':', r == '-', r == '.', r == ' ':
			// separator, skip
		default:
			return "", ErrMalformedFingerprint
		}
	}

	if b.Len() != fingerprintHexDigits {
		return "", ErrMalformedFingerprint
	}

	return b.String(), nil
}

// Format renders a canonical fingerprint for display as AA-BB-CC-DD-EE-FF.
// Inputs that do not normalize are returned uppercased and unchanged.
func Format(fingerprint string) string {
	norm, err := Normalize(fingerprint)
	if err != nil {
		return strings.ToUpper(fingerprint)
	}

	parts := make([]string, 0, fingerprintHexDigits/2)
	for i := 0; i < len(norm); i += 2 {
		parts = append(parts, norm[i:i+2])
	}

	return strings.Join(parts, "-")
}
