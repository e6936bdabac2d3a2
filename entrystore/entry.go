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

// Package entrystore holds the per-archive index of entries that the path
// resolver and rebuild engine operate on: what's in the original
// container, what's been staged on top of it, and what's been marked for
// deletion, all addressed by a normalized slash-separated path.
package entrystore

import (
	"io"
	"io/fs"
	"time"
)

// Kind classifies what an Entry represents.
type Kind uint8

const (
	KindFile Kind = iota
	KindDir
	KindSymlink
)

// Source tags where an Entry's content currently lives.
type Source uint8

const (
	// InOriginal means the content is still only in the container as it
	// was loaded; Open reads through to the original handle.
	InOriginal Source = iota
	// InOverlay means the content was staged by a write operation and
	// lives in the overlay (typically a stream.Stream); Open reads the
	// overlay, not the original.
	InOverlay
	// Deleted is a tombstone: the entry existed in the original but has
	// been removed. It stays in the Store (rather than being evicted) so
	// rebuild knows to omit it, and so a recreate-after-delete inside the
	// same session can tell the two apart.
	Deleted
)

// OpenFunc lazily opens an Entry's content. For InOriginal entries it
// reads through the owning handler; for InOverlay entries it reads the
// staged stream.
type OpenFunc func() (io.ReadCloser, error)

// Entry is one file, directory or symlink inside an archive's namespace.
type Entry struct {
	Path    string // normalized, slash-separated, relative to the archive root
	Kind    Kind
	Source  Source
	Size    int64
	Mode    fs.FileMode
	ModTime time.Time
	// LinkTarget holds the symlink target for Kind == KindSymlink. It is
	// carried through verbatim and never followed, matching the teacher
	// tar reader/writer's Linkname passthrough.
	LinkTarget string
	// Open returns the current readable content. Nil for directories and
	// for deleted entries.
	Open OpenFunc
}

// IsLive reports whether e should be visible to namespace operations —
// everything except a tombstone.
func (e *Entry) IsLive() bool {
	return e != nil && e.Source != Deleted
}
