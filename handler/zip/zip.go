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

// Package zip implements the handler.Handler contract over archive/zip.
// Unlike TAR, ZIP's central directory gives random access to entries, so
// Load only needs to materialize the stream once (spilling to temp above
// the configured threshold) and let each Entry reopen straight from the
// zip.Reader's own index.
package zip

import (
	"archive/zip"
	"io"
	"io/fs"
	"time"

	"github.com/klauspost/compress/flate"

	"github.com/sabouaram/archivefs/config"
	"github.com/sabouaram/archivefs/entrystore"
	"github.com/sabouaram/archivefs/handler"
)

// dosEpochTruncate mirrors the 2-second resolution ZIP's DOS-format
// timestamp imposes, so Serialize can tell a caller-visible loss of
// precision apart from a value that round-trips exactly.
func dosEpochTruncate(t time.Time) time.Time {
	return t.Truncate(2 * time.Second)
}

// klauspost/compress's flate is a drop-in faster encoder/decoder for the
// DEFLATE method ZIP entries normally use. It is registered on each
// zip.Reader and zip.Writer this package creates: archive/zip already
// registers DEFLATE package-wide, and a second package-wide registration
// panics.
func flateCompressor(w io.Writer) (io.WriteCloser, error) {
	return flate.NewWriter(w, flate.DefaultCompression)
}

func flateDecompressor(r io.Reader) io.ReadCloser {
	return flate.NewReader(r)
}

type zipHandler struct{}

// New returns the handler.Handler for ZIP containers.
func New() handler.Handler {
	return zipHandler{}
}

func (zipHandler) Name() string { return "zip" }

func (zipHandler) Capabilities() handler.Capabilities {
	return handler.Capabilities{RandomAccess: true, Symlinks: true, Directories: true}
}

func (zipHandler) Load(r io.Reader, _ string, cfg *config.Config) (*entrystore.Store, io.Closer, error) {
	ra, size, closer, err := handler.Materialize(r, cfg)
	if err != nil {
		return nil, nil, err
	}

	zr, err := zip.NewReader(ra, size)
	if err != nil {
		_ = closer.Close()
		return nil, nil, err
	}
	zr.RegisterDecompressor(zip.Deflate, flateDecompressor)

	store := entrystore.New()
	for _, f := range zr.File {
		zf := f
		e := &entrystore.Entry{
			Path:    zf.Name,
			Size:    int64(zf.UncompressedSize64),
			Mode:    zf.Mode(),
			ModTime: zf.Modified,
			Source:  entrystore.InOriginal,
		}

		switch {
		case zf.Mode().IsDir():
			e.Kind = entrystore.KindDir
		case zf.Mode()&fs.ModeSymlink != 0:
			e.Kind = entrystore.KindSymlink
			if rc, lerr := zf.Open(); lerr == nil {
				target, _ := io.ReadAll(rc)
				_ = rc.Close()
				e.LinkTarget = string(target)
			}
		default:
			e.Kind = entrystore.KindFile
			e.Open = func() (io.ReadCloser, error) { return zf.Open() }
		}

		store.Put(e)
	}

	return store, closer, nil
}

func (zipHandler) Serialize(w io.Writer, store *entrystore.Store, cfg *config.Config) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, flateCompressor)
	buf := make([]byte, cfg.BufferSize(config.HandlerZip))

	var serErr error
	store.IterLive(func(e *entrystore.Entry) bool {
		if trunc := dosEpochTruncate(e.ModTime); !trunc.Equal(e.ModTime) {
			cfg.Logger().Debugf("zip: %q mtime truncated to 2-second DOS resolution (%s -> %s)", e.Path, e.ModTime, trunc)
		}

		h := &zip.FileHeader{
			Name:     e.Path,
			Modified: e.ModTime,
		}
		h.SetMode(e.Mode)

		switch e.Kind {
		case entrystore.KindDir:
			if h.Name == "" || h.Name[len(h.Name)-1] != '/' {
				h.Name += "/"
			}
			if _, serErr = zw.CreateHeader(h); serErr != nil {
				return false
			}
			return true
		case entrystore.KindSymlink:
			h.SetMode(fs.ModeSymlink | 0777)
			var fw io.Writer
			if fw, serErr = zw.CreateHeader(h); serErr != nil {
				return false
			}
			_, serErr = fw.Write([]byte(e.LinkTarget))
			return serErr == nil
		default:
			h.Method = zip.Deflate
			var fw io.Writer
			if fw, serErr = zw.CreateHeader(h); serErr != nil {
				return false
			}
			if e.Open == nil {
				return true
			}
			rc, err := e.Open()
			if err != nil {
				serErr = err
				return false
			}
			_, serErr = io.CopyBuffer(fw, rc, buf)
			_ = rc.Close()
			return serErr == nil
		}
	})
	if serErr != nil {
		return serErr
	}

	return zw.Close()
}
