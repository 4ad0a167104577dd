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

// Package uploadgate tracks one-shot work items that must run at most once
// per process lifetime, such as the initial software inventory upload.
package uploadgate

import "sync"

type state int

const (
	stateIdle state = iota
	stateRunning
	stateDone
)

// Gate guards named one-shot operations. A key passes TryEnter exactly once
// at a time; Complete seals it for the rest of the process, Abort releases
// it so a failed attempt can be retried later.
type Gate struct {
	mu     sync.Mutex
	states map[string]state
}

// New returns an empty gate. The zero value is not usable.
func New() *Gate {
	return &Gate{states: make(map[string]state)}
}

// TryEnter attempts to start the operation for key. It returns true when the
// caller owns the attempt; false while another attempt is running or after
// one has completed.
func (g *Gate) TryEnter(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.states[key] != stateIdle {
		return false
	}

	g.states[key] = stateRunning

	return true
}

// Complete seals key after a successful attempt. Further TryEnter calls for
// the same key return false for the lifetime of the process.
func (g *Gate) Complete(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.states[key] == stateRunning {
		g.states[key] = stateDone
	}
}

// Abort releases key after a failed attempt so a later TryEnter can retry.
// A completed key stays completed.
func (g *Gate) Abort(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.states[key] == stateRunning {
		g.states[key] = stateIdle
	}
}

// Done reports whether key has completed.
func (g *Gate) Done(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.states[key] == stateDone
}
