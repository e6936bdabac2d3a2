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

// Package rebuild implements the commit side of a mutation: given one or
// more Resolution Stacks with dirty Nodes, it serializes every dirty
// interior Node into its parent's overlay slot, innermost first, and
// finally replaces each outermost physical file atomically (temp file in
// the same directory, then rename) the way mutagen-io/mutagen's
// WriteFileAtomic does for its sync staging.
package rebuild

import (
	"os"
	"path/filepath"

	"github.com/sabouaram/archivefs/config"
	"github.com/sabouaram/archivefs/entrystore"
	arcerr "github.com/sabouaram/archivefs/errors"
	"github.com/sabouaram/archivefs/path"
	"github.com/sabouaram/archivefs/stream"
)

// Commit rebuilds every dirty Node in stack, innermost first, and
// replaces the outermost physical file if it is dirty. It is the
// single-stack special case of CommitTransaction.
func Commit(stack []*path.Node, cfg *config.Config) error {
	return CommitTransaction([][]*path.Node{stack}, cfg)
}

// CommitTransaction rebuilds every dirty Node across every stack, then
// renames every outermost temp file into place only once all of them
// serialized successfully — if any stack fails to serialize, no outer
// file on any stack is touched. Rename ordering across stacks is
// unspecified; a crash between renames can leave some targets updated and
// others not, but never a torn single file.
func CommitTransaction(stacks [][]*path.Node, cfg *config.Config) error {
	type pendingOuter struct {
		node *path.Node
		temp string
	}
	var pending []pendingOuter

	// Every serializeInner call below spills a staging stream.Stream whose
	// Open func an ancestor's own Serialize reads during a later iteration
	// of this same walk; nothing after this function returns ever touches
	// them again, so they're tracked here and closed in one place instead
	// of leaking their temp files for the Session's whole lifetime.
	var staged []*stream.Stream
	closeStaged := func() {
		for _, s := range staged {
			_ = s.Close()
		}
	}

	cleanup := func() {
		for _, p := range pending {
			_ = os.Remove(p.temp)
		}
		closeStaged()
	}

	for _, stack := range stacks {
		for i := len(stack) - 1; i >= 0; i-- {
			n := stack[i]
			if !n.Dirty {
				continue
			}

			if n.Parent == nil {
				temp, err := serializeOuterToTemp(n, cfg)
				if err != nil {
					cleanup()
					return err
				}
				// Cleared immediately (not deferred to the rename pass
				// below) so a Node shared across several stacks in the
				// same batch — the common case when a Session stages
				// several writes into one not-yet-existing archive —
				// serializes exactly once instead of once per stack.
				n.Dirty = false
				pending = append(pending, pendingOuter{node: n, temp: temp})
				continue
			}

			s, err := serializeInner(n, cfg)
			if err != nil {
				cleanup()
				return err
			}
			staged = append(staged, s)
			n.Parent.Dirty = true
		}
	}

	for _, p := range pending {
		if err := os.Rename(p.temp, p.node.OSPath); err != nil {
			closeStaged()
			return arcerr.IOError.Error(err)
		}
		p.node.Dirty = false
	}
	closeStaged()
	return nil
}

// serializeInner rebuilds n into a staging Stream and installs the result
// as an InOverlay entry in n.Parent's Store, so the parent's own
// Serialize (run later in the same pass, since parents sit earlier in the
// stack) picks up the freshly rebuilt bytes. The returned Stream must be
// closed by the caller once every ancestor has finished reading it.
func serializeInner(n *path.Node, cfg *config.Config) (*stream.Stream, error) {
	s := stream.New(cfg.GlobalBufferSize(), cfg.TempDir())
	if err := n.Handler.Serialize(s, n.Store, cfg); err != nil {
		_ = s.Close()
		return nil, arcerr.FormatError.Error(err)
	}

	n.Parent.Store.Put(&entrystore.Entry{
		Path:   n.EntryPath,
		Kind:   entrystore.KindFile,
		Size:   s.Size(),
		Source: entrystore.InOverlay,
		Open:   s.Reader,
	})
	n.Dirty = false
	return s, nil
}

// serializeOuterToTemp rebuilds n into a sibling temp file named per the
// `arcfs-<random>-<outer-basename>` convention, returning its path for a
// caller-controlled rename once every stack in the batch has succeeded.
func serializeOuterToTemp(n *path.Node, cfg *config.Config) (string, error) {
	dir := filepath.Dir(n.OSPath)
	base := filepath.Base(n.OSPath)

	f, err := os.CreateTemp(dir, "arcfs-*-"+base)
	if err != nil {
		return "", arcerr.IOError.Error(err)
	}

	if serr := n.Handler.Serialize(f, n.Store, cfg); serr != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", arcerr.FormatError.Error(serr)
	}
	if cerr := f.Close(); cerr != nil {
		_ = os.Remove(f.Name())
		return "", arcerr.IOError.Error(cerr)
	}
	return f.Name(), nil
}
