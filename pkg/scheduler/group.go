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

package scheduler

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// Group runs a set of loops together and stops them together.
type Group struct {
	loops map[string]*Loop
}

func NewGroup() *Group {
	return &Group{loops: make(map[string]*Loop)}
}

// Add registers a loop under its name. Adding after Start is not supported.
func (g *Group) Add(l *Loop) {
	g.loops[l.name] = l
}

// Loop returns the named loop or nil.
func (g *Group) Loop(name string) *Loop {
	return g.loops[name]
}

// Start runs all loops and blocks until every loop has exited. Context
// cancellation is the normal way down and is not reported as an error.
func (g *Group) Start(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	for _, l := range g.loops {
		l := l
		eg.Go(func() error {
			return l.Start(ctx)
		})
	}

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

// Stop stops all loops, waiting for in-flight passes.
func (g *Group) Stop(ctx context.Context) error {
	var errs []error

	for _, l := range g.loops {
		if err := l.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
