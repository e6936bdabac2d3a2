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

// Package codec implements the single-stream compression algorithms that
// sit underneath a container (gzip/bzip2/xz/lz4 on a tar entry, or a bare
// codec-only leaf like "report.csv.gz"), independent of any archive
// container format.
package codec

import "bytes"

// Algorithm identifies a single-stream compression codec.
type Algorithm uint8

const (
	None Algorithm = iota
	Gzip
	Bzip2
	XZ
	LZ4
)

// List returns every recognized algorithm, None included.
func List() []Algorithm {
	return []Algorithm{None, Gzip, Bzip2, XZ, LZ4}
}

// IsNone reports whether a is the identity (no compression) algorithm.
func (a Algorithm) IsNone() bool {
	return a == None
}

// String returns the lowercase canonical name of a.
func (a Algorithm) String() string {
	switch a {
	case Gzip:
		return "gzip"
	case Bzip2:
		return "bzip2"
	case XZ:
		return "xz"
	case LZ4:
		return "lz4"
	default:
		return "none"
	}
}

// Extension returns the conventional file extension for a, including the
// leading dot, or "" for None.
func (a Algorithm) Extension() string {
	switch a {
	case Gzip:
		return ".gz"
	case Bzip2:
		return ".bz2"
	case XZ:
		return ".xz"
	case LZ4:
		return ".lz4"
	default:
		return ""
	}
}

// DetectHeader reports whether h — the first bytes of a stream — carries
// a's magic number.
func (a Algorithm) DetectHeader(h []byte) bool {
	if len(h) < 6 {
		return false
	}
	switch a {
	case Gzip:
		return bytes.Equal(h[0:2], []byte{0x1f, 0x8b})
	case Bzip2:
		return bytes.Equal(h[0:3], []byte{'B', 'Z', 'h'}) && h[3] >= '0' && h[3] <= '9'
	case XZ:
		return bytes.Equal(h[0:6], []byte{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00})
	case LZ4:
		return bytes.Equal(h[0:4], []byte{0x04, 0x22, 0x4D, 0x18})
	default:
		return false
	}
}
