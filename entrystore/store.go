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

package entrystore

import (
	"strings"
	"sync"

	arcerr "github.com/sabouaram/archivefs/errors"
)

// Store is the ordered, concurrency-safe index of every entry known to one
// archive layer: what it had on Load, what's been staged since, and what's
// been tombstoned.
type Store struct {
	mu          sync.RWMutex
	entries     map[string]*Entry
	order       []string        // insertion order, for stable IterLive()/rebuild iteration
	hadOriginal map[string]bool // paths that existed in the original container
}

// New returns an empty Store.
func New() *Store {
	return &Store{entries: make(map[string]*Entry)}
}

// CleanPath normalizes p into the slash-separated, ".."-stripped form
// every Store key and Entry.Path uses. Parent-escape segments are
// stripped rather than erroring, matching the teacher's CleanPath.
func CleanPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	for {
		switch {
		case strings.HasPrefix(p, "../"):
			p = strings.TrimPrefix(p, "../")
		case strings.HasPrefix(p, "/../"):
			p = strings.TrimPrefix(p, "/../")
		case p == "..":
			p = "."
		default:
			c := cleanSlash(p)
			if c == ".." || strings.HasPrefix(c, "../") {
				p = c
				continue
			}
			return c
		}
	}
}

// cleanSlash is a slash-only analogue of filepath.Clean, kept independent
// of the OS path separator so archive entry names stay portable between
// platforms that built the container.
func cleanSlash(p string) string {
	if p == "" {
		return "."
	}
	rooted := strings.HasPrefix(p, "/")
	segs := strings.Split(p, "/")
	out := make([]string, 0, len(segs))
	for _, s := range segs {
		switch s {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 && out[len(out)-1] != ".." {
				out = out[:len(out)-1]
			} else if !rooted {
				out = append(out, "..")
			}
		default:
			out = append(out, s)
		}
	}
	res := strings.Join(out, "/")
	if rooted {
		res = "/" + res
	}
	if res == "" {
		return "."
	}
	return res
}

// Get returns the entry at path, if any.
func (s *Store) Get(path string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[CleanPath(path)]
	return e, ok
}

// Put inserts or replaces the entry at e.Path, appending to the insertion
// order only the first time a path is seen.
func (s *Store) Put(e *Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.Path = CleanPath(e.Path)
	if _, exists := s.entries[e.Path]; !exists {
		s.order = append(s.order, e.Path)
	}
	s.entries[e.Path] = e

	if e.Source == InOriginal {
		if s.hadOriginal == nil {
			s.hadOriginal = make(map[string]bool)
		}
		s.hadOriginal[e.Path] = true
	}
}

// Delete tombstones the entry at path. An entry that only ever existed in
// the overlay (never part of the original container) is evicted outright
// instead, since there is nothing for rebuild to omit.
func (s *Store) Delete(path string) arcerr.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path = CleanPath(path)
	e, ok := s.entries[path]
	if !ok {
		return arcerr.NotFound.Error()
	}

	if e.Source == InOverlay && !s.wasOriginal(path) {
		delete(s.entries, path)
		s.removeFromOrder(path)
		return nil
	}

	e.Source = Deleted
	e.Open = nil
	return nil
}

// wasOriginal is kept distinct from e.Source so a staged edit of an
// original file can still be told apart from a brand new file when
// deciding whether deletion needs a tombstone. Put records provenance for
// every entry stored with Source InOriginal; MarkWasOriginal records it
// explicitly for any other path.
func (s *Store) wasOriginal(path string) bool {
	return s.hadOriginal[path]
}

// MarkWasOriginal records that path existed in the original container
// before being overwritten, so a later Delete tombstones it instead of
// evicting it outright.
func (s *Store) MarkWasOriginal(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hadOriginal == nil {
		s.hadOriginal = make(map[string]bool)
	}
	s.hadOriginal[CleanPath(path)] = true
}

func (s *Store) removeFromOrder(path string) {
	for i, p := range s.order {
		if p == path {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

// IterLive calls fn for every non-tombstoned entry, in insertion order.
// fn returning false stops iteration early.
func (s *Store) IterLive(fn func(*Entry) bool) {
	s.mu.RLock()
	order := make([]string, len(s.order))
	copy(order, s.order)
	s.mu.RUnlock()

	for _, p := range order {
		s.mu.RLock()
		e := s.entries[p]
		s.mu.RUnlock()
		if e == nil || !e.IsLive() {
			continue
		}
		if !fn(e) {
			return
		}
	}
}

// Stat returns the live entry at path, the way Get does, but falls back to
// a synthesized Kind: Dir Entry when path has no explicit entry of its own
// yet is the implicit parent of at least one live descendant — the same
// implicit-directory inference Children performs, exposed per-path so
// callers like GetInfo/Rmdir can target a directory that exists only
// because deeper entries were staged under it.
func (s *Store) Stat(path string) (*Entry, bool) {
	if e, ok := s.Get(path); ok && e.IsLive() {
		return e, true
	}
	path = CleanPath(path)
	prefix := path + "/"
	if path == "." {
		prefix = ""
	}
	found := false
	s.IterLive(func(e *Entry) bool {
		if prefix == "" {
			if e.Path != "" {
				found = true
				return false
			}
			return true
		}
		if strings.HasPrefix(e.Path, prefix) {
			found = true
			return false
		}
		return true
	})
	if !found {
		return nil, false
	}
	return &Entry{Path: path, Kind: KindDir, Source: InOriginal}, true
}

// Children returns the live direct children of dir (dir itself cleaned;
// use "." for the root), in first-seen order. A descendant nested more
// than one level below dir (e.g. "dir/sub/b.txt" when dir is "dir")
// contributes an implicit directory child ("dir/sub") rather than being
// omitted, synthesized as a plain Kind: Dir Entry unless an explicit live
// entry already occupies that path.
func (s *Store) Children(dir string) []*Entry {
	dir = CleanPath(dir)
	prefix := dir + "/"
	if dir == "." {
		prefix = ""
	}

	seen := make(map[string]*Entry)
	var order []string

	s.IterLive(func(e *Entry) bool {
		if e.Path == dir {
			return true
		}
		if prefix != "" && !strings.HasPrefix(e.Path, prefix) {
			return true
		}
		rest := strings.TrimPrefix(e.Path, prefix)
		if rest == "" {
			return true
		}

		name := rest
		nested := false
		if idx := strings.Index(rest, "/"); idx >= 0 {
			name = rest[:idx]
			nested = true
		}
		childPath := prefix + name

		if _, ok := seen[childPath]; ok {
			return true
		}
		order = append(order, childPath)

		if !nested {
			seen[childPath] = e
			return true
		}

		if explicit, ok := s.Get(childPath); ok && explicit.IsLive() {
			seen[childPath] = explicit
		} else {
			seen[childPath] = &Entry{Path: childPath, Kind: KindDir, Source: InOriginal}
		}
		return true
	})

	out := make([]*Entry, 0, len(order))
	for _, p := range order {
		out = append(out, seen[p])
	}
	return out
}
