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
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sabouaram/archivefs/config"
	"github.com/sabouaram/archivefs/entrystore"
	arcerr "github.com/sabouaram/archivefs/errors"
	"github.com/sabouaram/archivefs/handler"
	"github.com/sabouaram/archivefs/handler/registry"
	arcpath "github.com/sabouaram/archivefs/path"
	"github.com/sabouaram/archivefs/session"
)

// ArchiveFS is the composite archive filesystem. The zero value is not
// usable; construct one with New.
type ArchiveFS struct {
	reg      *registry.Registry
	cfg      *config.Config
	resolver *arcpath.Resolver
}

// New returns an ArchiveFS with the default Handler Registry (ZIP, TAR,
// the compound codec+TAR extensions, and the bare codec-single
// extensions) and opts applied over config's teacher-style defaults.
func New(opts ...config.Option) *ArchiveFS {
	cfg := config.New(opts...)
	reg := registry.Default()
	return &ArchiveFS{reg: reg, cfg: cfg, resolver: arcpath.New(reg, cfg)}
}

// SetArchiveHandler registers h for extension, shadowing any default or
// previously registered handler for it. Per-instance: other ArchiveFS
// values built from the same starting Registry are unaffected, matching
// the Handler Registry's copy-on-write invariant.
func (fs *ArchiveFS) SetArchiveHandler(extension string, h handler.Handler) {
	fs.reg = fs.reg.SetHandler(extension, h)
	fs.resolver = arcpath.New(fs.reg, fs.cfg)
}

// Kind classifies a resolved path's target, spanning both plain
// filesystem entries and archive entries uniformly.
type Kind uint8

const (
	KindFile Kind = iota
	KindDir
	KindSymlink
)

// Info describes one resolved path's metadata.
type Info struct {
	Size       int64
	ModTime    time.Time
	Kind       Kind
	Mode       os.FileMode
	LinkTarget string
}

func fromEntryKind(k entrystore.Kind) Kind {
	switch k {
	case entrystore.KindDir:
		return KindDir
	case entrystore.KindSymlink:
		return KindSymlink
	default:
		return KindFile
	}
}

// newSession opens a one-shot session.Session against fs's resolver.
func (fs *ArchiveFS) newSession() *session.Session {
	return session.New(fs.resolver, fs.cfg)
}

// Exists reports whether path resolves to something — file, directory or
// archive boundary. It never returns an error; a resolution failure is
// simply "does not exist".
func (fs *ArchiveFS) Exists(path string) bool {
	s := fs.newSession()
	defer func() { _ = s.Abort() }()

	res, err := s.Resolve(path, arcpath.ModeRead)
	if err != nil {
		return false
	}
	return fs.targetExists(res)
}

func (fs *ArchiveFS) targetExists(res *arcpath.Result) bool {
	if res.OSPath != "" {
		_, err := os.Stat(res.OSPath)
		return err == nil
	}
	if res.Leaf == "" {
		return true
	}
	e, ok := res.LeafNode.Store.Stat(res.Leaf)
	return ok && e.IsLive()
}

// GetInfo returns path's size, modification time, kind and permissions.
func (fs *ArchiveFS) GetInfo(path string) (Info, error) {
	s := fs.newSession()
	defer func() { _ = s.Abort() }()

	res, err := s.Resolve(path, arcpath.ModeRead)
	if err != nil {
		return Info{}, err
	}

	if res.OSPath != "" {
		st, serr := os.Stat(res.OSPath)
		if serr != nil {
			return Info{}, arcerr.NotFound.Error(serr)
		}
		k := KindFile
		if st.IsDir() {
			k = KindDir
		} else if st.Mode()&os.ModeSymlink != 0 {
			k = KindSymlink
		}
		return Info{Size: st.Size(), ModTime: st.ModTime(), Kind: k, Mode: st.Mode()}, nil
	}

	if res.Leaf == "" {
		return Info{Kind: KindDir}, nil
	}
	e, ok := res.LeafNode.Store.Stat(res.Leaf)
	if !ok || !e.IsLive() {
		return Info{}, arcerr.NotFound.Error()
	}
	return Info{
		Size:       e.Size,
		ModTime:    e.ModTime,
		Kind:       fromEntryKind(e.Kind),
		Mode:       e.Mode,
		LinkTarget: e.LinkTarget,
	}, nil
}

// Read returns path's full content in one shot.
func (fs *ArchiveFS) Read(path string) ([]byte, error) {
	s := fs.newSession()
	defer func() { _ = s.Abort() }()

	res, err := s.Resolve(path, arcpath.ModeRead)
	if err != nil {
		return nil, err
	}
	return fs.readResolved(res)
}

// ReadText is Read decoded as UTF-8 text.
func (fs *ArchiveFS) ReadText(path string) (string, error) {
	b, err := fs.Read(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (fs *ArchiveFS) readResolved(res *arcpath.Result) ([]byte, error) {
	rc, err := fs.openReadStream(res)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, arcerr.IOError.Error(err)
	}
	return data, nil
}

func (fs *ArchiveFS) openReadStream(res *arcpath.Result) (io.ReadCloser, error) {
	if res.OSPath != "" {
		f, err := os.Open(res.OSPath)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, arcerr.NotFound.Error(err)
			}
			return nil, arcerr.IOError.Error(err)
		}
		return f, nil
	}
	if res.Leaf == "" {
		return nil, arcerr.IsADirectory.Error()
	}
	e, ok := res.LeafNode.Store.Stat(res.Leaf)
	if !ok || !e.IsLive() {
		return nil, arcerr.NotFound.Error()
	}
	if e.Kind == entrystore.KindDir {
		return nil, arcerr.IsADirectory.Error()
	}
	if e.Open == nil {
		return nil, arcerr.FormatError.Errorf("entry %q has no content", res.Leaf)
	}
	rc, err := e.Open()
	if err != nil {
		return nil, arcerr.IOError.Error(err)
	}
	return rc, nil
}

// Write overwrites path with data, creating intermediate archives and
// directories as needed.
func (fs *ArchiveFS) Write(path string, data []byte) error {
	return fs.writeWithModTime(path, data, time.Now())
}

// WriteText is Write taking UTF-8 text.
func (fs *ArchiveFS) WriteText(path string, text string) error {
	return fs.Write(path, []byte(text))
}

// Append reads path's current content (treating a missing path as empty),
// appends data, and writes the combined content back — a read-modify-write
// through the staged overlay, all inside one session so the read sees any
// not-yet-committed state from earlier in the same call.
func (fs *ArchiveFS) Append(path string, data []byte) error {
	s := fs.newSession()

	res, err := s.Resolve(path, arcpath.ModeWrite)
	if err != nil {
		_ = s.Abort()
		return err
	}

	var existing []byte
	if fs.targetExists(res) && !res.IsDir() {
		existing, _ = fs.readResolved(res)
	}

	combined := make([]byte, 0, len(existing)+len(data))
	combined = append(combined, existing...)
	combined = append(combined, data...)

	if err := fs.stageWrite(res, combined, time.Now()); err != nil {
		_ = s.Abort()
		return err
	}
	return s.Commit()
}

func (fs *ArchiveFS) writeWithModTime(path string, data []byte, mt time.Time) error {
	s := fs.newSession()

	res, err := s.Resolve(path, arcpath.ModeWrite)
	if err != nil {
		_ = s.Abort()
		return err
	}
	if err := fs.stageWrite(res, data, mt); err != nil {
		_ = s.Abort()
		return err
	}
	if err := s.Commit(); err != nil {
		return err
	}
	if res.OSPath != "" {
		_ = os.Chtimes(res.OSPath, mt, mt)
	}
	return nil
}

func (fs *ArchiveFS) stageWrite(res *arcpath.Result, data []byte, mt time.Time) error {
	if res.OSPath != "" {
		if err := os.MkdirAll(filepath.Dir(res.OSPath), 0o755); err != nil {
			return arcerr.IOError.Error(err)
		}
		if err := os.WriteFile(res.OSPath, data, 0o644); err != nil {
			return arcerr.IOError.Error(err)
		}
		return nil
	}

	if res.Leaf == "" {
		return arcerr.IsADirectory.Error()
	}

	if existing, ok := res.LeafNode.Store.Get(res.Leaf); ok && existing.IsLive() && existing.Kind == entrystore.KindDir {
		return arcerr.IsADirectory.Error()
	}

	content := append([]byte(nil), data...)
	res.LeafNode.Store.Put(&entrystore.Entry{
		Path:    res.Leaf,
		Kind:    entrystore.KindFile,
		Size:    int64(len(content)),
		ModTime: mt,
		Mode:    0o644,
		Source:  entrystore.InOverlay,
		Open:    func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(content)), nil },
	})
	res.LeafNode.Dirty = true
	return nil
}

// Remove tombstones the file entry at path. It errors on a directory —
// use Rmdir for those.
func (fs *ArchiveFS) Remove(path string) error {
	s := fs.newSession()

	res, err := s.Resolve(path, arcpath.ModeWrite)
	if err != nil {
		_ = s.Abort()
		return err
	}

	if res.OSPath != "" {
		info, serr := os.Stat(res.OSPath)
		if serr != nil {
			_ = s.Abort()
			return arcerr.NotFound.Error(serr)
		}
		if info.IsDir() {
			_ = s.Abort()
			return arcerr.IsADirectory.Error()
		}
		if err := os.Remove(res.OSPath); err != nil {
			_ = s.Abort()
			return arcerr.IOError.Error(err)
		}
		return s.Commit()
	}

	if res.Leaf == "" {
		_ = s.Abort()
		return arcerr.IsADirectory.Error()
	}
	e, ok := res.LeafNode.Store.Get(res.Leaf)
	if !ok || !e.IsLive() {
		_ = s.Abort()
		return arcerr.NotFound.Error()
	}
	if e.Kind == entrystore.KindDir {
		_ = s.Abort()
		return arcerr.IsADirectory.Error()
	}
	if derr := res.LeafNode.Store.Delete(res.Leaf); derr != nil {
		_ = s.Abort()
		return derr
	}
	res.LeafNode.Dirty = true
	return s.Commit()
}

// Mkdir stages a directory entry at path. If createParents is false, a
// missing parent directory is a NotFound error; if true, every missing
// parent (including interior archives named along the way) is created.
// Calling Mkdir twice with createParents == true is idempotent.
func (fs *ArchiveFS) Mkdir(path string, createParents bool) error {
	mode := arcpath.ModeRead
	if createParents {
		mode = arcpath.ModeWrite
	}

	s := fs.newSession()
	res, err := s.Resolve(path, mode)
	if err != nil {
		_ = s.Abort()
		return err
	}

	if res.OSPath != "" {
		if createParents {
			err = os.MkdirAll(res.OSPath, 0o755)
		} else {
			err = os.Mkdir(res.OSPath, 0o755)
		}
		if err != nil {
			_ = s.Abort()
			return arcerr.IOError.Error(err)
		}
		return s.Commit()
	}

	if res.Leaf == "" {
		return s.Commit() // already resolves to a directory (archive root) — idempotent
	}

	existing, ok := res.LeafNode.Store.Get(res.Leaf)
	if ok && existing.IsLive() {
		if existing.Kind == entrystore.KindDir {
			return s.Commit() // idempotent
		}
		_ = s.Abort()
		return arcerr.NotADirectory.Error()
	}

	res.LeafNode.Store.Put(&entrystore.Entry{Path: res.Leaf, Kind: entrystore.KindDir, ModTime: time.Now(), Mode: 0o755, Source: entrystore.InOverlay})
	res.LeafNode.Dirty = true
	return s.Commit()
}

// Rmdir removes the directory entry at path. It refuses a non-empty
// directory unless recursive is true.
func (fs *ArchiveFS) Rmdir(path string, recursive bool) error {
	s := fs.newSession()
	res, err := s.Resolve(path, arcpath.ModeWrite)
	if err != nil {
		_ = s.Abort()
		return err
	}

	if res.OSPath != "" {
		if recursive {
			err = os.RemoveAll(res.OSPath)
		} else {
			err = os.Remove(res.OSPath)
		}
		if err != nil {
			_ = s.Abort()
			return arcerr.IOError.Error(err)
		}
		return s.Commit()
	}

	if res.Leaf == "" {
		_ = s.Abort()
		return arcerr.InvalidPath.Errorf("cannot rmdir an archive's own root, remove the archive file itself")
	}

	e, ok := res.LeafNode.Store.Stat(res.Leaf)
	if !ok || !e.IsLive() || e.Kind != entrystore.KindDir {
		_ = s.Abort()
		return arcerr.NotADirectory.Error()
	}

	children := res.LeafNode.Store.Children(res.Leaf)
	if len(children) > 0 && !recursive {
		_ = s.Abort()
		return arcerr.StateError.Errorf("directory %q is not empty", res.Leaf)
	}

	if recursive {
		var toDelete []string
		res.LeafNode.Store.IterLive(func(ent *entrystore.Entry) bool {
			if ent.Path == res.Leaf || strings.HasPrefix(ent.Path, res.Leaf+"/") {
				toDelete = append(toDelete, ent.Path)
			}
			return true
		})
		for _, d := range toDelete {
			_ = res.LeafNode.Store.Delete(d)
		}
	} else {
		_ = res.LeafNode.Store.Delete(res.Leaf)
	}
	res.LeafNode.Dirty = true
	return s.Commit()
}

// ListDir returns the immediate children of path, directories and files
// alike, excluding tombstones.
func (fs *ArchiveFS) ListDir(path string) ([]string, error) {
	s := fs.newSession()
	defer func() { _ = s.Abort() }()

	res, err := s.Resolve(path, arcpath.ModeRead)
	if err != nil {
		return nil, err
	}

	if res.OSPath != "" {
		entries, rerr := os.ReadDir(res.OSPath)
		if rerr != nil {
			return nil, arcerr.IOError.Error(rerr)
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		return names, nil
	}

	dir := res.Leaf
	if dir == "" {
		dir = "."
	}
	children := res.LeafNode.Store.Children(dir)
	names := make([]string, 0, len(children))
	for _, c := range children {
		names = append(names, leafName(c.Path))
	}
	return names, nil
}

// CreateArchive stages a new, empty archive at path, whose format is
// chosen by the Registry from path's extension. It errors with
// UnsupportedFormat if no registered extension matches, and AlreadyExists
// if path already names a live archive or file.
func (fs *ArchiveFS) CreateArchive(path string) error {
	s := fs.newSession()
	res, err := s.Resolve(path, arcpath.ModeCreate)
	if err != nil {
		_ = s.Abort()
		return err
	}
	if len(res.Nodes) == 0 {
		_ = s.Abort()
		return arcerr.UnsupportedFormat.Errorf("no registered archive format for %q", path)
	}
	last := res.Nodes[len(res.Nodes)-1]
	if !last.Created {
		_ = s.Abort()
		return arcerr.AlreadyExists.Error()
	}
	return s.Commit()
}

func leafName(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}
