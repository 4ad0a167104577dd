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

package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/factsync/pkg/logger"
)

type widget struct {
	ID    string
	Value int
	Noise int
}

func widgetCategory() Category[widget] {
	return Category[widget]{
		Name: "widgets",
		Key: func(w widget) string {
			return w.ID
		},
		Changed: func(existing, current widget) bool {
			return existing.Value != current.Value
		},
		Merge: func(_, current widget) widget {
			return current
		},
	}
}

func TestDiffAddUpdateRemove(t *testing.T) {
	cat := widgetCategory()

	existing := []widget{
		{ID: "a", Value: 1},
		{ID: "b", Value: 2},
	}
	snapshot := []widget{
		{ID: "b", Value: 5},
		{ID: "c", Value: 3},
	}

	changes, result := Diff(cat, existing, snapshot)

	assert.Equal(t, []widget{{ID: "c", Value: 3}}, changes.Add)
	assert.Equal(t, []widget{{ID: "b", Value: 5}}, changes.Update)
	assert.Equal(t, []string{"a"}, changes.Remove)
	assert.Equal(t, Result{Added: 1, Updated: 1, Removed: 1}, result)
}

func TestDiffIdempotent(t *testing.T) {
	cat := widgetCategory()

	snapshot := []widget{
		{ID: "a", Value: 1},
		{ID: "b", Value: 2},
	}

	changes, result := Diff(cat, snapshot, snapshot)

	assert.True(t, changes.Empty())
	assert.Equal(t, Result{Unchanged: 2}, result)
}

func TestDiffAppendOnlyNeverRemoves(t *testing.T) {
	cat := widgetCategory()
	cat.AppendOnly = true
	cat.Changed = nil
	cat.Merge = nil

	existing := []widget{{ID: "a", Value: 1}}
	snapshot := []widget{{ID: "b", Value: 2}}

	changes, result := Diff(cat, existing, snapshot)

	assert.Equal(t, []widget{{ID: "b", Value: 2}}, changes.Add)
	assert.Empty(t, changes.Update)
	assert.Empty(t, changes.Remove)
	assert.Equal(t, Result{Added: 1}, result)
}

func TestDiffRefreshDoesNotCountAsChange(t *testing.T) {
	cat := widgetCategory()
	cat.Refresh = func(existing, current widget) (widget, bool) {
		if existing.Noise == current.Noise {
			return existing, false
		}

		refreshed := existing
		refreshed.Noise = current.Noise

		return refreshed, true
	}

	existing := []widget{{ID: "a", Value: 1, Noise: 10}}
	snapshot := []widget{{ID: "a", Value: 1, Noise: 20}}

	changes, result := Diff(cat, existing, snapshot)

	assert.Empty(t, changes.Add)
	assert.Empty(t, changes.Update)
	assert.Empty(t, changes.Remove)
	assert.Equal(t, []widget{{ID: "a", Value: 1, Noise: 20}}, changes.Refresh)
	assert.Equal(t, Result{Unchanged: 1, Refreshed: 1}, result)
}

func TestDedupeFirstWinsAndDropsEmptyKeys(t *testing.T) {
	cat := widgetCategory()

	snapshot := []widget{
		{ID: "a", Value: 1},
		{ID: "", Value: 9},
		{ID: "a", Value: 2},
		{ID: "b", Value: 3},
	}

	deduped := Dedupe(cat, snapshot)

	assert.Equal(t, []widget{
		{ID: "a", Value: 1},
		{ID: "b", Value: 3},
	}, deduped)
}

func TestRunSkipsCommitWhenUnchanged(t *testing.T) {
	cat := widgetCategory()
	log := logger.NewTestLogger()

	snapshot := []widget{{ID: "a", Value: 1}}

	load := func(_ context.Context) ([]widget, error) {
		return snapshot, nil
	}

	committed := false
	commit := func(_ context.Context, _ ChangeSet[widget]) error {
		committed = true
		return nil
	}

	result, err := Run(context.Background(), cat, snapshot, load, commit, log)
	require.NoError(t, err)

	assert.False(t, committed)
	assert.Equal(t, Result{Unchanged: 1}, result)
}

func TestRunPropagatesLoadError(t *testing.T) {
	cat := widgetCategory()
	log := logger.NewTestLogger()
	loadErr := errors.New("connection reset")

	load := func(_ context.Context) ([]widget, error) {
		return nil, loadErr
	}
	commit := func(_ context.Context, _ ChangeSet[widget]) error {
		t.Fatal("commit should not run when load fails")
		return nil
	}

	_, err := Run(context.Background(), cat, nil, load, commit, log)
	require.ErrorIs(t, err, loadErr)
}

func TestRunCommitsChanges(t *testing.T) {
	cat := widgetCategory()
	log := logger.NewTestLogger()

	load := func(_ context.Context) ([]widget, error) {
		return []widget{{ID: "a", Value: 1}}, nil
	}

	var got ChangeSet[widget]
	commit := func(_ context.Context, changes ChangeSet[widget]) error {
		got = changes
		return nil
	}

	result, err := Run(context.Background(), cat, []widget{{ID: "a", Value: 7}}, load, commit, log)
	require.NoError(t, err)

	assert.Equal(t, []widget{{ID: "a", Value: 7}}, got.Update)
	assert.Equal(t, Result{Updated: 1}, result)
}
