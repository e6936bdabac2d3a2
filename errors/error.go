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

package errors

import (
	"fmt"
	"strings"
)

// Error is a CodeError-classified error with an optional parent chain.
type Error interface {
	error
	// Code returns the numeric classification.
	Code() CodeError
	// IsCode reports whether this error (or any of its parents) carries c.
	IsCode(c CodeError) bool
	// Add appends further parent errors to the chain.
	Add(parents ...error) Error
	// Unwrap exposes the immediate parent chain to errors.Is/errors.As.
	Unwrap() []error
}

type codeErr struct {
	code    CodeError
	message string
	parents []error
}

func newError(code CodeError, message string, parents ...error) Error {
	filtered := make([]error, 0, len(parents))
	for _, p := range parents {
		if p != nil {
			filtered = append(filtered, p)
		}
	}
	return &codeErr{code: code, message: message, parents: filtered}
}

func (e *codeErr) Code() CodeError {
	return e.code
}

func (e *codeErr) IsCode(c CodeError) bool {
	if e.code == c {
		return true
	}
	for _, p := range e.parents {
		if ce, ok := p.(Error); ok && ce.IsCode(c) {
			return true
		}
	}
	return false
}

func (e *codeErr) Add(parents ...error) Error {
	for _, p := range parents {
		if p != nil {
			e.parents = append(e.parents, p)
		}
	}
	return e
}

func (e *codeErr) Unwrap() []error {
	return e.parents
}

func (e *codeErr) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%d] %s", e.code.Uint16(), e.message))
	for _, p := range e.parents {
		sb.WriteString(": ")
		sb.WriteString(p.Error())
	}
	return sb.String()
}
