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

import "time"

// Copy streams src into dst, creating dst's intermediate archives and
// directories as needed, and preserves src's modification time on dst on
// a best-effort basis (ZIP truncates to 2-second resolution, TAR to
// whole-second — both lossy, neither escalated to an error here, per the
// mtime policy decision recorded in DESIGN.md).
func (fs *ArchiveFS) Copy(src, dst string) error {
	data, err := fs.Read(src)
	if err != nil {
		return err
	}

	mt := modTimeOrZero(fs, src)
	return fs.writeWithModTime(dst, data, mt)
}

func modTimeOrZero(fs *ArchiveFS, path string) (mt time.Time) {
	if info, err := fs.GetInfo(path); err == nil {
		mt = info.ModTime
	}
	if mt.IsZero() {
		mt = time.Now()
	}
	return mt
}

// Move copies src to dst and then removes src. The two sides commit as
// independent sessions — a crash between them can leave both a copy and
// the original on disk, but never a partially written dst.
func (fs *ArchiveFS) Move(src, dst string) error {
	if err := fs.Copy(src, dst); err != nil {
		return err
	}
	return fs.Remove(src)
}
