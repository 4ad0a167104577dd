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

// Package scheduler runs named collection loops on hot-reloadable intervals.
// Each loop performs at most one pass at a time: ticks and triggers that
// arrive while a pass is in flight are dropped, not queued.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/carverauto/factsync/pkg/logger"
)

// PassFunc performs one collection pass. Errors are logged and the loop
// keeps ticking.
type PassFunc func(ctx context.Context) error

// Loop drives a single PassFunc on an interval.
type Loop struct {
	name     string
	pass     PassFunc
	clock    Clock
	logger   logger.Logger
	ticker   Ticker
	done     chan struct{}
	reloadCh chan time.Duration
	kickCh   chan struct{}

	wg        sync.WaitGroup
	closeOnce sync.Once

	mu       sync.Mutex
	inFlight bool
}

// NewLoop builds a loop named name running pass. A nil clock selects the
// real one.
func NewLoop(name string, interval time.Duration, pass PassFunc, clock Clock, log logger.Logger) *Loop {
	if clock == nil {
		clock = realClock{}
	}

	l := &Loop{
		name:     name,
		pass:     pass,
		clock:    clock,
		logger:   log,
		done:     make(chan struct{}),
		reloadCh: make(chan time.Duration, 1),
		kickCh:   make(chan struct{}, 1),
	}
	l.ticker = clock.Ticker(interval)

	return l
}

// Start runs the loop until ctx is canceled or Stop is called. The first
// pass runs immediately rather than waiting out the first interval.
func (l *Loop) Start(ctx context.Context) error {
	defer l.ticker.Stop()

	l.wg.Add(1)
	defer l.wg.Done()

	l.runPass(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		case <-l.ticker.Chan():
			l.runPass(ctx)
		case <-l.kickCh:
			l.runPass(ctx)
		case newInterval := <-l.reloadCh:
			l.ticker.Stop()
			l.ticker = l.clock.Ticker(newInterval)
			l.logger.Info().Str("loop", l.name).Dur("interval", newInterval).Msg("Loop interval hot-reloaded")
		}
	}
}

// Stop shuts the loop down and waits for any in-flight pass to finish.
func (l *Loop) Stop(_ context.Context) error {
	l.closeOnce.Do(func() {
		close(l.done)
	})

	l.wg.Wait()

	return nil
}

// Reload swaps the tick interval. A pending unapplied reload is replaced.
func (l *Loop) Reload(interval time.Duration) {
	select {
	case <-l.reloadCh:
	default:
	}

	select {
	case l.reloadCh <- interval:
	default:
	}
}

// Kick requests an out-of-band pass. If one is already pending or in
// flight the request is dropped.
func (l *Loop) Kick() {
	select {
	case l.kickCh <- struct{}{}:
	default:
	}
}

func (l *Loop) runPass(ctx context.Context) {
	l.mu.Lock()
	if l.inFlight {
		l.mu.Unlock()
		l.logger.Debug().Str("loop", l.name).Msg("Pass already in flight, skipping tick")

		return
	}

	l.inFlight = true
	l.mu.Unlock()

	l.wg.Add(1)

	// A pass that already started gets to finish its commit even when the
	// loop context is canceled mid-flight; Stop waits for it via wg.
	passCtx := context.WithoutCancel(ctx)

	go func() {
		defer l.wg.Done()

		defer func() {
			l.mu.Lock()
			l.inFlight = false
			l.mu.Unlock()
		}()

		started := l.clock.Now()

		if err := l.pass(passCtx); err != nil {
			l.logger.Error().Err(err).Str("loop", l.name).Msg("Collection pass failed")
			return
		}

		l.logger.Debug().Str("loop", l.name).Dur("elapsed", l.clock.Now().Sub(started)).Msg("Collection pass complete")
	}()
}
