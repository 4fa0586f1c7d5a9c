/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package logger

import (
	"errors"
	"sync"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
)

// recordingSink captures every entry that passes through for assertions.
type recordingSink struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (r *recordingSink) Init(logr.RuntimeInfo) {}
func (r *recordingSink) Enabled(int) bool      { return true }

func (r *recordingSink) Info(level int, msg string, keysAndValues ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.infos = append(r.infos, msg)
}

func (r *recordingSink) Error(err error, msg string, keysAndValues ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, msg)
}

func (r *recordingSink) WithValues(keysAndValues ...any) logr.LogSink { return r }
func (r *recordingSink) WithName(name string) logr.LogSink            { return r }

var _ logr.LogSink = (*recordingSink)(nil)

func TestFilterSinkSwallowsFilteredErrorOnce(t *testing.T) {
	t.Parallel()

	inner := &recordingSink{}
	sink := newFilterSink("startup race", 10, inner)
	log := logr.New(sink)

	err := errors.New("boom")
	log.Error(err, "startup race")
	assert.Empty(t, inner.errors)

	// The filter deactivates after its first hit, so repeats pass through.
	log.Error(err, "startup race")
	assert.Equal(t, []string{"startup race"}, inner.errors)
}

func TestFilterSinkExpiresAfterMaxLife(t *testing.T) {
	t.Parallel()

	inner := &recordingSink{}
	sink := newFilterSink("never seen", 2, inner)
	log := logr.New(sink)

	err := errors.New("boom")
	log.Error(err, "unrelated one")
	log.Error(err, "unrelated two")

	// Two unrelated errors aged the filter out; the filtered message is no
	// longer swallowed.
	log.Error(err, "never seen")
	assert.Equal(t, []string{"unrelated one", "unrelated two", "never seen"}, inner.errors)
}

func TestFilterSinkPassesInfoThrough(t *testing.T) {
	t.Parallel()

	inner := &recordingSink{}
	sink := newFilterSink("filtered", 5, inner)
	log := logr.New(sink)

	log.Info("filtered")
	assert.Equal(t, []string{"filtered"}, inner.infos)
}

func TestFilterSinkSurvivesWithNameAndValues(t *testing.T) {
	t.Parallel()

	inner := &recordingSink{}
	sink := newFilterSink("quiet", 5, inner)
	log := logr.New(sink).WithName("sub").WithValues("k", "v")

	log.Error(errors.New("boom"), "quiet")
	assert.Empty(t, inner.errors)

	log.Error(errors.New("boom"), "quiet")
	assert.Equal(t, []string{"quiet"}, inner.errors)
}

func TestNewFilterSinkRejectsZeroMaxLife(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		newFilterSink("anything", 0, &recordingSink{})
	})
}
