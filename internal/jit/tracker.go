// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package jit

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// ResourceTracker is a lease on the symbols of the units linked under it.
// Removing the tracker unlinks all of them.
type ResourceTracker struct {
	id      string
	removed atomic.Bool
}

// ID returns the tracker's handle name.
func (rt *ResourceTracker) ID() string { return rt.id }

// Removed reports whether the tracker has been retracted.
func (rt *ResourceTracker) Removed() bool { return rt.removed.Load() }

// trackerRegistry hands out trackers with unique handle names.
type trackerRegistry struct {
	mu      sync.Mutex
	live    map[string]*ResourceTracker
	counter atomic.Int64
}

func newTrackerRegistry() *trackerRegistry {
	return &trackerRegistry{live: make(map[string]*ResourceTracker)}
}

// register creates a new tracker and records it as live.
func (r *trackerRegistry) register() *ResourceTracker {
	rt := &ResourceTracker{id: fmt.Sprintf("_rt_%d", r.counter.Add(1))}
	r.mu.Lock()
	r.live[rt.id] = rt
	r.mu.Unlock()
	return rt
}

// release marks rt removed. It returns false if rt was not live.
func (r *trackerRegistry) release(rt *ResourceTracker) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.live[rt.id]; !ok {
		return false
	}
	delete(r.live, rt.id)
	rt.removed.Store(true)
	return true
}

func (r *trackerRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}
