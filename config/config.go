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

// Package config holds the tunables shared across the composite archive
// filesystem: the spill-to-temp threshold, the scratch directory, and the
// per-container-format buffer sizes used when streaming entries in and out.
package config

import (
	"os"

	"github.com/sabouaram/archivefs/logger"
)

const (
	// DefaultGlobalBufferSize is the in-memory threshold above which a
	// stream spills to a temp file instead of growing an in-memory buffer.
	DefaultGlobalBufferSize int64 = 64 << 20 // 64 MiB

	// DefaultHandlerBufferSize is the per-handler copy buffer size used
	// when no override is supplied for a given container format.
	DefaultHandlerBufferSize = 32 << 10 // 32 KiB
)

// Handler identifies a container or codec format for the purpose of
// per-handler buffer size overrides.
type Handler string

const (
	HandlerZip    Handler = "zip"
	HandlerTar    Handler = "tar"
	HandlerGzip   Handler = "gzip"
	HandlerBzip2  Handler = "bzip2"
	HandlerXZ     Handler = "xz"
	HandlerLZ4    Handler = "lz4"
)

// Config gathers the options a Config consumer threads through the path
// resolver, handlers and stream layer.
type Config struct {
	globalBufferSize int64
	tempDir          string
	handlerBuffers   map[Handler]int
	log              logger.Logger
}

// Option mutates a Config at construction time.
type Option func(*Config)

// New builds a Config with teacher-style defaults: a 64 MiB spill
// threshold, the OS temp directory, and 32 KiB handler buffers.
func New(opts ...Option) *Config {
	c := &Config{
		globalBufferSize: DefaultGlobalBufferSize,
		tempDir:          os.TempDir(),
		handlerBuffers:   make(map[Handler]int),
		log:              logger.Discard(),
	}
	for _, o := range opts {
		if o != nil {
			o(c)
		}
	}
	return c
}

// GlobalBufferSize overrides the in-memory spill threshold.
func GlobalBufferSize(n int64) Option {
	return func(c *Config) {
		if n > 0 {
			c.globalBufferSize = n
		}
	}
}

// TempDir overrides the directory used for spilled streams and rebuild
// scratch files.
func TempDir(dir string) Option {
	return func(c *Config) {
		if dir != "" {
			c.tempDir = dir
		}
	}
}

// BufferSize overrides the copy buffer size used by a specific handler.
func BufferSize(h Handler, n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.handlerBuffers[h] = n
		}
	}
}

// WithLogger attaches a logger.Logger, defaulting to logger.Discard().
func WithLogger(l logger.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.log = l
		}
	}
}

// GlobalBufferSize returns the configured spill threshold.
func (c *Config) GlobalBufferSize() int64 {
	return c.globalBufferSize
}

// TempDir returns the configured scratch directory.
func (c *Config) TempDir() string {
	return c.tempDir
}

// BufferSize returns the configured buffer size for h, or
// DefaultHandlerBufferSize if no override was set.
func (c *Config) BufferSize(h Handler) int {
	if n, ok := c.handlerBuffers[h]; ok {
		return n
	}
	return DefaultHandlerBufferSize
}

// Logger returns the configured logger, never nil.
func (c *Config) Logger() logger.Logger {
	return c.log
}
