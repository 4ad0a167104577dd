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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "colon separated lowercase",
			input: "aa:bb:cc:dd:ee:ff",
			want:  "AABBCCDDEEFF",
		},
		{
			name:  "dash separated",
			input: "AA-BB-CC-DD-EE-FF",
			want:  "AABBCCDDEEFF",
		},
		{
			name:  "dot separated",
			input: "aabb.ccdd.eeff",
			want:  "AABBCCDDEEFF",
		},
		{
			name:  "embedded spaces",
			input: " aa bb cc dd ee ff ",
			want:  "AABBCCDDEEFF",
		},
		{
			name:  "bare hex",
			input: "aabbccddeeff",
			want:  "AABBCCDDEEFF",
		},
		{
			name:    "too short",
			input:   "aa:bb:cc",
			wantErr: true,
		},
		{
			name:    "too long",
			input:   "aa:bb:cc:dd:ee:ff:00",
			wantErr: true,
		},
		{
			name:    "non-hex character",
			input:   "aa:bb:cc:dd:ee:fg",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.input)

			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformedFingerprint)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeEquivalentFormsShareCanonicalForm(t *testing.T) {
	a, err := Normalize("aa:bb:cc:dd:ee:ff")
	require.NoError(t, err)

	b, err := Normalize("AA-BB-CC-DD-EE-FF")
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "AA-BB-CC-DD-EE-FF", Format("AABBCCDDEEFF"))
}
