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

// Package errors provides the CodeError taxonomy shared by every subpackage
// of the composite archive filesystem: a small numeric code, a registered
// message, and an optional parent error chain.
package errors

import "fmt"

// idMsgFct maps a registered CodeError to the function producing its
// human-readable message. This package's init() fills it with the nine
// shared kinds; RegisterIDFuncMessage panics on collision, the same guard
// the teacher archive package uses for its own error codes.
var idMsgFct = make(map[CodeError]Message)

// Message generates the text for a CodeError.
type Message func(code CodeError) string

// CodeError is a small numeric error classification. Every subpackage of
// this module reports errors with the shared kinds declared below.
type CodeError uint16

const (
	// UnknownError is the zero value, used when no specific code applies.
	UnknownError CodeError = 0
	// UnknownMessage is returned for codes with no registered message.
	UnknownMessage = "unknown error"
	// NullMessage is an explicitly empty message.
	NullMessage = ""
)

// Base taxonomy kinds from the error handling design (spec §7). They are
// the only codes this module declares; no subpackage adds a block of its
// own.
const (
	NotFound CodeError = iota + 1
	AlreadyExists
	IsADirectory
	NotADirectory
	InvalidPath
	UnsupportedFormat
	FormatError
	IOError
	StateError

	// MinPkgShared marks the end of the shared taxonomy block; codes from
	// MinPkgShared upward are not used by any package of this module.
	MinPkgShared = 64
)

func init() {
	RegisterIDFuncMessage(NotFound, func(CodeError) string { return "path or archive entry not found" })
	idMsgFct[AlreadyExists] = func(CodeError) string { return "path already exists" }
	idMsgFct[IsADirectory] = func(CodeError) string { return "expected a file but found a directory" }
	idMsgFct[NotADirectory] = func(CodeError) string { return "expected a directory but found a file" }
	idMsgFct[InvalidPath] = func(CodeError) string { return "malformed composite path" }
	idMsgFct[UnsupportedFormat] = func(CodeError) string { return "extension or codec not recognized" }
	idMsgFct[FormatError] = func(CodeError) string { return "corrupt or truncated archive structure" }
	idMsgFct[IOError] = func(CodeError) string { return "underlying filesystem failure" }
	idMsgFct[StateError] = func(CodeError) string { return "operation attempted on a closed session or handle" }
}

// ExistInMapMessage reports whether code already has a registered message
// function. RegisterIDFuncMessage calls it to panic loudly on collision
// instead of silently overwriting an existing code's message.
func ExistInMapMessage(code CodeError) bool {
	_, ok := idMsgFct[code]
	return ok
}

// RegisterIDFuncMessage registers the message function for code. It panics
// if code is already registered, matching the teacher's fail-fast init()
// guard (`panic(fmt.Errorf("error code collision golib/archive"))`).
func RegisterIDFuncMessage(code CodeError, fct Message) {
	if ExistInMapMessage(code) {
		panic(fmt.Errorf("errors: code collision registering %d", code))
	}
	idMsgFct[code] = fct
}

// Uint16 returns the CodeError as a uint16.
func (c CodeError) Uint16() uint16 {
	return uint16(c)
}

// Message returns the registered text for c, or UnknownMessage.
func (c CodeError) Message() string {
	if c == UnknownError {
		return UnknownMessage
	}
	if f, ok := idMsgFct[c]; ok {
		if m := f(c); m != "" {
			return m
		}
	}
	return UnknownMessage
}

// Error builds an Error value from c, optionally wrapping parent errors.
func (c CodeError) Error(parents ...error) Error {
	return newError(c, c.Message(), parents...)
}

// Errorf builds an Error value from c with a printf-style message. It
// carries no parent error chain; use Add on the result (or Error/IfError)
// when a cause needs to be wrapped alongside the formatted message.
func (c CodeError) Errorf(format string, args ...interface{}) Error {
	return newError(c, fmt.Sprintf(format, args...))
}

// IfError returns an Error wrapping the non-nil entries of errs, or nil if
// none are set — used at I/O boundaries where an error may legitimately be
// absent (e.g. `ErrorIOFileTempClose.IfError(f.Close())` in the teacher).
func (c CodeError) IfError(errs ...error) Error {
	var any bool
	for _, e := range errs {
		if e != nil {
			any = true
			break
		}
	}
	if !any {
		return nil
	}
	return newError(c, c.Message(), errs...)
}

// IsCodeError reports whether err is an Error carrying code c.
func (c CodeError) IsCodeError(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(Error); ok {
		return e.IsCode(c)
	}
	return false
}
