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

package registry

import (
	"io"

	"github.com/sabouaram/archivefs/config"
	"github.com/sabouaram/archivefs/entrystore"
)

func (c codecTarHandler) Load(r io.Reader, name string, cfg *config.Config) (*entrystore.Store, io.Closer, error) {
	dr, err := c.algo.DecodeStream(r)
	if err != nil {
		return nil, nil, err
	}
	defer dr.Close()

	return c.inner.Load(dr, name, cfg)
}

func (c codecTarHandler) Serialize(w io.Writer, store *entrystore.Store, cfg *config.Config) error {
	ew, err := c.algo.EncodeStream(w)
	if err != nil {
		return err
	}

	if err = c.inner.Serialize(ew, store, cfg); err != nil {
		_ = ew.Close()
		return err
	}

	return ew.Close()
}
