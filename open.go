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
	"io"
	"time"

	arcerr "github.com/sabouaram/archivefs/errors"
	arcpath "github.com/sabouaram/archivefs/path"
	"github.com/sabouaram/archivefs/session"
	"github.com/sabouaram/archivefs/stream"
)

// OpenMode selects Open's read/write/append behavior, mirroring the
// Python-flavored mode strings the facade's spec table enumerates; the
// 'b' suffix is accepted but makes no difference here since every stream
// this package hands back is already binary — callers wanting text
// decoding use ReadText/WriteText instead.
type OpenMode string

const (
	OpenRead         OpenMode = "r"
	OpenReadBinary   OpenMode = "rb"
	OpenWrite        OpenMode = "w"
	OpenWriteBinary  OpenMode = "wb"
	OpenAppend       OpenMode = "a"
	OpenAppendBinary OpenMode = "ab"
)

func (m OpenMode) isRead() bool {
	return m == OpenRead || m == OpenReadBinary
}

func (m OpenMode) isAppend() bool {
	return m == OpenAppend || m == OpenAppendBinary
}

// ReadStream is a sequential, closeable byte source over an archive entry
// or plain file.
type ReadStream interface {
	io.Reader
	io.Closer
}

// WriteStream is a sequential, closeable byte sink. Close is where the
// write actually lands: it stages the accumulated bytes into the Entry
// Store and runs the Rebuild Engine, exactly like a one-shot Write.
type WriteStream interface {
	io.Writer
	io.Closer
}

// Open returns a Stream over path under mode. Write and append streams
// commit (via the Rebuild Engine) on Close; read streams simply release
// their Session's Node resources on Close.
func (fs *ArchiveFS) Open(path string, mode OpenMode) (io.ReadWriteCloser, error) {
	if mode.isRead() {
		rs, err := fs.openRead(path)
		if err != nil {
			return nil, err
		}
		return readOnlyRWC{rs}, nil
	}

	ws, err := fs.openWrite(path, mode.isAppend())
	if err != nil {
		return nil, err
	}
	return writeOnlyRWC{ws}, nil
}

// OpenRead returns a ReadStream over path.
func (fs *ArchiveFS) OpenRead(path string) (ReadStream, error) {
	return fs.openRead(path)
}

// OpenWrite returns a WriteStream over path; if appendExisting is true,
// the stream starts pre-loaded with path's current content.
func (fs *ArchiveFS) OpenWrite(path string, appendExisting bool) (WriteStream, error) {
	return fs.openWrite(path, appendExisting)
}

func (fs *ArchiveFS) openRead(path string) (ReadStream, error) {
	s := fs.newSession()
	res, err := s.Resolve(path, arcpath.ModeRead)
	if err != nil {
		_ = s.Abort()
		return nil, err
	}
	rc, err := fs.openReadStream(res)
	if err != nil {
		_ = s.Abort()
		return nil, err
	}
	return &readStream{rc: rc, s: s}, nil
}

func (fs *ArchiveFS) openWrite(path string, appendExisting bool) (WriteStream, error) {
	s := fs.newSession()
	res, err := s.Resolve(path, arcpath.ModeWrite)
	if err != nil {
		_ = s.Abort()
		return nil, err
	}

	buf := stream.New(fs.cfg.GlobalBufferSize(), fs.cfg.TempDir())
	if appendExisting && fs.targetExists(res) && !res.IsDir() {
		if existing, rerr := fs.readResolved(res); rerr == nil {
			_, _ = buf.Write(existing)
		}
	}

	return &writeStream{fs: fs, s: s, res: res, buf: buf}, nil
}

type readStream struct {
	rc     io.ReadCloser
	s      *session.Session
	closed bool
}

func (r *readStream) Read(p []byte) (int, error) { return r.rc.Read(p) }

func (r *readStream) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.rc.Close()
	_ = r.s.Abort()
	return err
}

type writeStream struct {
	fs     *ArchiveFS
	s      *session.Session
	res    *arcpath.Result
	buf    *stream.Stream
	closed bool
}

func (w *writeStream) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *writeStream) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	rc, err := w.buf.Reader()
	if err != nil {
		_ = w.buf.Close()
		_ = w.s.Abort()
		return arcerr.IOError.Error(err)
	}
	data, err := io.ReadAll(rc)
	_ = rc.Close()
	_ = w.buf.Close()
	if err != nil {
		_ = w.s.Abort()
		return arcerr.IOError.Error(err)
	}

	if err := w.fs.stageWrite(w.res, data, time.Now()); err != nil {
		_ = w.s.Abort()
		return err
	}
	return w.s.Commit()
}

// readOnlyRWC/writeOnlyRWC adapt ReadStream/WriteStream to the
// io.ReadWriteCloser shape Open's unnamed interface return type demands,
// returning a StateError from the unsupported half the way a file opened
// purely for reading or writing rejects the other direction at the OS level.
type readOnlyRWC struct{ ReadStream }

func (readOnlyRWC) Write([]byte) (int, error) {
	return 0, arcerr.StateError.Errorf("stream opened for read only")
}

type writeOnlyRWC struct{ WriteStream }

func (writeOnlyRWC) Read([]byte) (int, error) {
	return 0, arcerr.StateError.Errorf("stream opened for write only")
}
