/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package logger

import (
	"sync/atomic"

	"github.com/go-logr/logr"
)

// filterSink swallows the first error record whose message equals the
// configured text, then disarms. Unrelated error records age the filter;
// after maxLife of them it disarms without ever having matched, so a stale
// filter cannot hide errors indefinitely. Info records always pass through.
//
// WithName and WithValues derivatives share one filter state, so the match
// is swallowed at most once across the whole logger tree.
type filterSink struct {
	state *filterState
	inner logr.LogSink
}

type filterState struct {
	message string
	armed   atomic.Bool
	aged    atomic.Uint32
	maxLife uint32
}

func newFilterSink(message string, maxLife uint32, inner logr.LogSink) *filterSink {
	if maxLife == 0 {
		panic("logger: filter sink requires a nonzero lifetime")
	}

	state := &filterState{message: message, maxLife: maxLife}
	state.armed.Store(true)
	return &filterSink{state: state, inner: inner}
}

func (fs *filterSink) Init(info logr.RuntimeInfo) {
	fs.inner.Init(info)
}

func (fs *filterSink) Enabled(level int) bool {
	return fs.inner.Enabled(level)
}

func (fs *filterSink) Info(level int, msg string, keysAndValues ...any) {
	fs.inner.Info(level, msg, keysAndValues...)
}

func (fs *filterSink) Error(err error, msg string, keysAndValues ...any) {
	if fs.state.armed.Load() {
		if msg == fs.state.message {
			fs.state.armed.Store(false)
			return
		}
		if fs.state.aged.Add(1) >= fs.state.maxLife {
			fs.state.armed.Store(false)
		}
	}

	fs.inner.Error(err, msg, keysAndValues...)
}

func (fs *filterSink) WithValues(keysAndValues ...any) logr.LogSink {
	return &filterSink{state: fs.state, inner: fs.inner.WithValues(keysAndValues...)}
}

func (fs *filterSink) WithName(name string) logr.LogSink {
	return &filterSink{state: fs.state, inner: fs.inner.WithName(name)}
}

var _ logr.LogSink = (*filterSink)(nil)
