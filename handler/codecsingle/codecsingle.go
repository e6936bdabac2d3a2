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

// Package codecsingle implements the handler.Handler contract for a leaf
// that is itself nothing but a compressed stream — "report.csv.gz" is a
// one-entry container whose sole child is "report.csv". It exists so the
// composite namespace treats a bare-codec file the same way it treats a
// ZIP or TAR: a boundary that, once descended into, exposes exactly one
// entry.
package codecsingle

import (
	"io"
	"strings"

	"github.com/sabouaram/archivefs/codec"
	"github.com/sabouaram/archivefs/config"
	"github.com/sabouaram/archivefs/entrystore"
	"github.com/sabouaram/archivefs/handler"
	"github.com/sabouaram/archivefs/stream"
)

type codecHandler struct {
	algo codec.Algorithm
}

// New returns the handler.Handler that decodes a single stream under
// algo. If algo is codec.None, Load falls back to magic-number detection
// (codec.DetectHeader) before giving up and treating the content as
// already-plain.
func New(algo codec.Algorithm) handler.Handler {
	return codecHandler{algo: algo}
}

func (h codecHandler) Name() string { return "codecsingle:" + h.algo.String() }

func (codecHandler) Capabilities() handler.Capabilities {
	return handler.Capabilities{RandomAccess: false, Symlinks: false, Directories: false}
}

func (h codecHandler) Load(r io.Reader, name string, cfg *config.Config) (*entrystore.Store, io.Closer, error) {
	algo := h.algo
	if algo.IsNone() {
		detected, br, err := codec.DetectHeader(r)
		if err != nil {
			return nil, nil, err
		}
		algo, r = detected, br
	}

	dr, err := algo.DecodeStream(r)
	if err != nil {
		return nil, nil, err
	}
	defer dr.Close()

	s := stream.New(cfg.GlobalBufferSize(), cfg.TempDir())
	if _, err = io.Copy(s, dr); err != nil {
		return nil, nil, err
	}

	store := entrystore.New()
	store.Put(&entrystore.Entry{
		Path:   strings.TrimSuffix(name, algo.Extension()),
		Kind:   entrystore.KindFile,
		Size:   s.Size(),
		Source: entrystore.InOriginal,
		Open:   s.Reader,
	})

	return store, s, nil
}

func (h codecHandler) Serialize(w io.Writer, store *entrystore.Store, cfg *config.Config) error {
	algo := h.algo
	if algo.IsNone() {
		algo = codec.Gzip
	}

	ew, err := algo.EncodeStream(w)
	if err != nil {
		return err
	}

	// codec.Algorithm names ("gzip", "bzip2", "xz", "lz4") match the
	// config.Handler names, so each codec picks up its own buffer override.
	buf := make([]byte, cfg.BufferSize(config.Handler(algo.String())))
	var serErr error
	store.IterLive(func(e *entrystore.Entry) bool {
		if e.Open == nil {
			return true
		}
		rc, oerr := e.Open()
		if oerr != nil {
			serErr = oerr
			return false
		}
		_, serErr = io.CopyBuffer(ew, rc, buf)
		_ = rc.Close()
		return serErr == nil
	})
	if serErr != nil {
		return serErr
	}

	return ew.Close()
}
