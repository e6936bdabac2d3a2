/*
 *  MIT License
 *
 *  Copyright (c) 2020 Nicolas JUHEL
 *
 *  Permission is hereby granted, free of charge, to any person obtaining a copy
 *  of this software and associated documentation files (the "Software"), to deal
 *  in the Software without restriction, including without limitation the rights
 *  to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 *  copies of the Software, and to permit persons to whom the Software is
 *  furnished to do so, subject to the following conditions:
 *
 *  The above copyright notice and this permission notice shall be included in all
 *  copies or substantial portions of the Software.
 *
 *  THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 *  IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 *  FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 *  AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 *  LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 *  OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 *  SOFTWARE.
 *
 */

// Package session implements the scoped commit-deferral object every
// facade operation runs through: a Session caches the Resolution Stack
// for each path it resolves (so repeated access amortizes Load cost),
// lets callers stage overlays against those stacks, and on Commit hands
// every dirty stack to the Rebuild Engine as a single all-or-nothing
// batch — which is also exactly what the spec calls a Transaction, so
// this package implements both with one type.
package session

import (
	"sync"

	"github.com/sabouaram/archivefs/config"
	arcerr "github.com/sabouaram/archivefs/errors"
	"github.com/sabouaram/archivefs/path"
	"github.com/sabouaram/archivefs/rebuild"
)

// Session is a scoped deferral of commit: resolved stacks accumulate
// while it's open, and are rebuilt together — or entirely discarded — when
// it ends. A zero-stack Session with no dirty Nodes commits as a no-op.
type Session struct {
	resolver *path.Resolver
	cfg      *config.Config
	nodes    *path.NodeCache

	mu     sync.Mutex
	cache  map[string]*path.Result
	stacks []*path.Result
	done   bool
}

// New returns an open Session resolving paths through resolver, threading
// cfg through every Handler it opens. Every Resolve call this Session
// makes shares one path.NodeCache, so two composite paths that touch the
// same underlying archive (e.g. writing three different entries into the
// same not-yet-existing zip) descend into the same Nodes instead of each
// opening or creating an independent copy.
func New(resolver *path.Resolver, cfg *config.Config) *Session {
	return &Session{
		resolver: resolver,
		cfg:      cfg,
		nodes:    path.NewNodeCache(),
		cache:    make(map[string]*path.Result),
	}
}

// Resolve resolves composite under mode, returning the cached Result if
// this Session already resolved the same (mode, path) pair — the
// read-your-writes cache the spec's Session invariant requires, since a
// cached Result's Nodes carry whatever overlays earlier operations in
// this Session staged.
func (s *Session) Resolve(composite string, mode path.Mode) (*path.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return nil, arcerr.StateError.Errorf("session is already closed")
	}

	key := cacheKey(mode, composite)
	if cached, ok := s.cache[key]; ok {
		return cached, nil
	}

	res, err := s.resolver.ResolveCached(composite, mode, s.nodes)
	if err != nil {
		return nil, err
	}

	s.cache[key] = res
	s.stacks = append(s.stacks, res)
	return res, nil
}

// Commit rebuilds every dirty stack this Session resolved, as a single
// transaction: either every outermost file this Session touched is
// replaced, or none are. It then releases every Node's Load resources.
// Calling Commit (or Abort) a second time is a no-op returning nil.
func (s *Session) Commit() error {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return nil
	}
	s.done = true
	stacks := make([][]*path.Node, 0, len(s.stacks))
	for _, r := range s.stacks {
		if len(r.Nodes) > 0 {
			stacks = append(stacks, r.Nodes)
		}
	}
	s.mu.Unlock()

	err := rebuild.CommitTransaction(stacks, s.cfg)
	s.releaseAll()
	return err
}

// Abort discards every overlay this Session staged and releases every
// Node's Load resources without ever calling the Rebuild Engine. Safe to
// call after a partial failure; staged writes simply vanish with the
// in-memory Stores.
func (s *Session) Abort() error {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return nil
	}
	s.done = true
	s.mu.Unlock()

	s.releaseAll()
	return nil
}

func (s *Session) releaseAll() {
	s.mu.Lock()
	stacks := s.stacks
	s.stacks = nil
	s.mu.Unlock()

	for _, r := range stacks {
		for i := len(r.Nodes) - 1; i >= 0; i-- {
			_ = r.Nodes[i].Close()
		}
	}
}

func cacheKey(mode path.Mode, composite string) string {
	switch mode {
	case path.ModeRead:
		return "r:" + composite
	case path.ModeCreate:
		return "c:" + composite
	default:
		return "w:" + composite
	}
}
