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

package codec

import (
	"bufio"
	"io"
)

// DetectHeader inspects the magic number of r without consuming it beyond
// what bufio buffers internally, returning the detected Algorithm (None
// if unrecognized) and a reader positioned at the start of the stream.
//
// This is a best-effort fallback used by the codec-single handler when a
// leaf's extension doesn't name a known codec; extension-based dispatch
// always takes priority where available.
func DetectHeader(r io.Reader) (Algorithm, io.Reader, error) {
	br := bufio.NewReader(r)
	buf, err := br.Peek(6)
	if err != nil && err != io.EOF {
		return None, br, err
	}

	for _, a := range []Algorithm{Gzip, Bzip2, XZ, LZ4} {
		if a.DetectHeader(buf) {
			return a, br, nil
		}
	}
	return None, br, nil
}

// Detect is DetectHeader followed by DecodeStream: it returns the
// detected algorithm and a reader that yields the decompressed content.
func Detect(r io.Reader) (Algorithm, io.ReadCloser, error) {
	a, br, err := DetectHeader(r)
	if err != nil {
		return None, nil, err
	}
	rc, err := a.DecodeStream(br)
	if err != nil {
		return None, nil, err
	}
	return a, rc, nil
}
