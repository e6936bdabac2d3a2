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

// Package handler defines the uniform contract every container format
// (ZIP, TAR, a bare codec-wrapped leaf) implements so the path resolver
// and rebuild engine never need to know which one they're talking to.
package handler

import (
	"bytes"
	"io"
	"os"

	"github.com/sabouaram/archivefs/config"
	"github.com/sabouaram/archivefs/entrystore"
	"github.com/sabouaram/archivefs/stream"
)

// Capabilities describes what a container format can represent natively.
type Capabilities struct {
	// RandomAccess is true when the format's own index (e.g. ZIP's
	// central directory) lets entries be reopened independently, false
	// when the format must be read or rebuilt sequentially (TAR).
	RandomAccess bool
	// Symlinks is true when the format carries a dedicated link-target
	// field in its entry metadata.
	Symlinks bool
	// Directories is true when the format stores explicit directory
	// entries rather than inferring them from path prefixes.
	Directories bool
}

// Handler is the uniform abstraction over one archive container format.
type Handler interface {
	// Name identifies the handler for logging and registry lookups.
	Name() string
	// Load parses r into an entry store. name is the archive's own leaf
	// name (ignored by multi-entry formats, used by codecsingle to derive
	// the one entry's name). The returned io.Closer releases any
	// resources (spooled temp files) Load allocated to make entries
	// re-readable; callers must Close it once the store is no longer
	// needed.
	Load(r io.Reader, name string, cfg *config.Config) (*entrystore.Store, io.Closer, error)
	// Serialize writes every live entry of store into w in this
	// handler's container format.
	Serialize(w io.Writer, store *entrystore.Store, cfg *config.Config) error
	// Capabilities reports this handler's structural properties.
	Capabilities() Capabilities
}

// Materialize fully reads r into something addressable by random access,
// spilling to a temp file once cfg's global buffer threshold is crossed.
// ZIP's central-directory format requires io.ReaderAt, so handlers that
// need it call this instead of streaming sequentially the way TAR does.
func Materialize(r io.Reader, cfg *config.Config) (io.ReaderAt, int64, io.Closer, error) {
	s := stream.New(cfg.GlobalBufferSize(), cfg.TempDir())
	if _, err := io.Copy(s, r); err != nil {
		return nil, 0, nil, err
	}

	if s.Spilled() {
		rc, err := s.Reader()
		if err != nil {
			return nil, 0, nil, err
		}
		f := rc.(*os.File)
		return f, s.Size(), closerFunc(func() error {
			name := f.Name()
			err := f.Close()
			if e2 := os.Remove(name); e2 != nil && err == nil {
				err = e2
			}
			return err
		}), nil
	}

	rc, err := s.Reader()
	if err != nil {
		return nil, 0, nil, err
	}
	buf, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		return nil, 0, nil, err
	}
	return bytes.NewReader(buf), int64(len(buf)), closerFunc(func() error { return nil }), nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
