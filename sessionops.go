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

package archivefs

import (
	"os"
	"path/filepath"
	"time"

	"github.com/sabouaram/archivefs/entrystore"
	arcerr "github.com/sabouaram/archivefs/errors"
	arcpath "github.com/sabouaram/archivefs/path"
	"github.com/sabouaram/archivefs/session"
)

// The *In methods stage or read through a caller-supplied Session instead
// of opening a private one-shot Session the way Read/Write/etc. do. Every
// operation performed against the same Session shares its Resolution
// Stack cache and rebuilds together on s.Commit, which is what lets a
// BatchSession batch N writes into a single rebuild per archive instead
// of N.

// WriteIn stages data at path within s, without committing.
func (fs *ArchiveFS) WriteIn(s *session.Session, path string, data []byte) error {
	res, err := s.Resolve(path, arcpath.ModeWrite)
	if err != nil {
		return err
	}
	return fs.stageWrite(res, data, time.Now())
}

// ReadIn reads path's current content within s, seeing any of s's own
// not-yet-committed writes (read-your-writes).
func (fs *ArchiveFS) ReadIn(s *session.Session, path string) ([]byte, error) {
	res, err := s.Resolve(path, arcpath.ModeRead)
	if err != nil {
		return nil, err
	}
	return fs.readResolved(res)
}

// AppendIn reads path within s, appends data, and re-stages it, all
// through s's overlay.
func (fs *ArchiveFS) AppendIn(s *session.Session, path string, data []byte) error {
	res, err := s.Resolve(path, arcpath.ModeWrite)
	if err != nil {
		return err
	}

	var existing []byte
	if fs.targetExists(res) && !res.IsDir() {
		existing, _ = fs.readResolved(res)
	}
	combined := make([]byte, 0, len(existing)+len(data))
	combined = append(combined, existing...)
	combined = append(combined, data...)
	return fs.stageWrite(res, combined, time.Now())
}

// MkdirIn stages a directory entry at path within s, without committing.
// Like Mkdir, it is a no-op if path already resolves to a live directory.
func (fs *ArchiveFS) MkdirIn(s *session.Session, path string) error {
	res, err := s.Resolve(path, arcpath.ModeWrite)
	if err != nil {
		return err
	}

	if res.OSPath != "" {
		return os.MkdirAll(res.OSPath, 0o755)
	}
	if res.Leaf == "" {
		return nil // already an archive root
	}

	existing, ok := res.LeafNode.Store.Get(res.Leaf)
	if ok && existing.IsLive() {
		if existing.Kind == entrystore.KindDir {
			return nil
		}
		return arcerr.NotADirectory.Error()
	}

	res.LeafNode.Store.Put(&entrystore.Entry{Path: res.Leaf, Kind: entrystore.KindDir, ModTime: time.Now(), Mode: 0o755, Source: entrystore.InOverlay})
	res.LeafNode.Dirty = true
	return nil
}

// SymlinkIn stages a symlink entry at path within s, pointing at target,
// without committing. On a plain OS path it recreates the link directly
// with os.Symlink, overwriting anything already there — the same
// recreate-don't-follow policy teacher's extract.go writeSymLink applies.
func (fs *ArchiveFS) SymlinkIn(s *session.Session, path string, target string) error {
	res, err := s.Resolve(path, arcpath.ModeWrite)
	if err != nil {
		return err
	}

	if res.OSPath != "" {
		_ = os.Remove(res.OSPath)
		if err := os.MkdirAll(filepath.Dir(res.OSPath), 0o755); err != nil {
			return arcerr.IOError.Error(err)
		}
		if err := os.Symlink(target, res.OSPath); err != nil {
			return arcerr.IOError.Error(err)
		}
		return nil
	}
	if res.Leaf == "" {
		return arcerr.IsADirectory.Error()
	}

	res.LeafNode.Store.Put(&entrystore.Entry{
		Path:       res.Leaf,
		Kind:       entrystore.KindSymlink,
		LinkTarget: target,
		ModTime:    time.Now(),
		Mode:       0o777,
		Source:     entrystore.InOverlay,
	})
	res.LeafNode.Dirty = true
	return nil
}

// RemoveIn tombstones the file entry at path within s, without committing.
func (fs *ArchiveFS) RemoveIn(s *session.Session, path string) error {
	res, err := s.Resolve(path, arcpath.ModeWrite)
	if err != nil {
		return err
	}
	if res.OSPath != "" {
		return arcerr.InvalidPath.Errorf("RemoveIn only stages archive-entry removal, %q is a plain filesystem path", path)
	}
	if res.Leaf == "" {
		return arcerr.IsADirectory.Error()
	}
	e, ok := res.LeafNode.Store.Get(res.Leaf)
	if !ok || !e.IsLive() {
		return arcerr.NotFound.Error()
	}
	if e.Kind == entrystore.KindDir {
		return arcerr.IsADirectory.Error()
	}
	if derr := res.LeafNode.Store.Delete(res.Leaf); derr != nil {
		return derr
	}
	res.LeafNode.Dirty = true
	return nil
}
