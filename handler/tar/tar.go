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

// Package tar implements the handler.Handler contract over archive/tar.
// TAR carries no central index, so Load must walk every header
// sequentially and buffer each regular file's content through a
// stream.Stream to make it independently re-readable afterward.
package tar

import (
	"archive/tar"
	"io"
	"time"

	"github.com/sabouaram/archivefs/config"
	"github.com/sabouaram/archivefs/entrystore"
	"github.com/sabouaram/archivefs/handler"
	"github.com/sabouaram/archivefs/stream"
)

type tarHandler struct{}

// New returns the handler.Handler for TAR containers.
func New() handler.Handler {
	return tarHandler{}
}

func (tarHandler) Name() string { return "tar" }

func (tarHandler) Capabilities() handler.Capabilities {
	return handler.Capabilities{RandomAccess: false, Symlinks: true, Directories: true}
}

type closers []*stream.Stream

func (c closers) Close() error {
	var first error
	for _, s := range c {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (tarHandler) Load(r io.Reader, _ string, cfg *config.Config) (*entrystore.Store, io.Closer, error) {
	store := entrystore.New()
	var opened closers

	tr := tar.NewReader(r)
	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			_ = opened.Close()
			return nil, nil, err
		}

		e := &entrystore.Entry{
			Path:       h.Name,
			Size:       h.Size,
			Mode:       h.FileInfo().Mode(),
			ModTime:    h.ModTime,
			Source:     entrystore.InOriginal,
			LinkTarget: h.Linkname,
		}

		switch h.Typeflag {
		case tar.TypeDir:
			e.Kind = entrystore.KindDir
		case tar.TypeSymlink, tar.TypeLink:
			e.Kind = entrystore.KindSymlink
		default:
			e.Kind = entrystore.KindFile
			s := stream.New(cfg.GlobalBufferSize(), cfg.TempDir())
			if _, err = io.Copy(s, tr); err != nil {
				_ = opened.Close()
				return nil, nil, err
			}
			opened = append(opened, s)
			e.Open = s.Reader
		}

		store.Put(e)
	}

	return store, opened, nil
}

func (tarHandler) Serialize(w io.Writer, store *entrystore.Store, cfg *config.Config) error {
	tw := tar.NewWriter(w)
	buf := make([]byte, cfg.BufferSize(config.HandlerTar))

	var serErr error
	store.IterLive(func(e *entrystore.Entry) bool {
		h := &tar.Header{
			Name:     e.Path,
			ModTime:  e.ModTime,
			Mode:     int64(e.Mode.Perm()),
			Linkname: e.LinkTarget,
		}

		switch e.Kind {
		case entrystore.KindDir:
			h.Typeflag = tar.TypeDir
		case entrystore.KindSymlink:
			h.Typeflag = tar.TypeSymlink
		default:
			h.Typeflag = tar.TypeReg
			h.Size = e.Size
		}

		if trunc := h.ModTime.Truncate(time.Second); !trunc.Equal(h.ModTime) {
			cfg.Logger().Debugf("tar: %q mtime truncated to whole-second resolution (%s -> %s)", e.Path, e.ModTime, trunc)
			h.ModTime = trunc
		}

		if serErr = tw.WriteHeader(h); serErr != nil {
			return false
		}

		if e.Kind == entrystore.KindFile && e.Open != nil {
			rc, err := e.Open()
			if err != nil {
				serErr = err
				return false
			}
			_, serErr = io.CopyBuffer(tw, rc, buf)
			_ = rc.Close()
			if serErr != nil {
				return false
			}
		}

		return true
	})
	if serErr != nil {
		return serErr
	}

	return tw.Close()
}
