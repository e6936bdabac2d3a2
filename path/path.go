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

// Package path implements the composite-path resolver: it walks a
// slash-separated path one segment at a time, descending into a fresh
// Archive Handle (a Node) every time a segment names a file the Handler
// Registry recognizes, and otherwise treats the segment as an ordinary
// directory or file of whichever container it's currently inside (the real
// filesystem, or the Entry Store of the last-opened Node).
package path

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sabouaram/archivefs/config"
	"github.com/sabouaram/archivefs/entrystore"
	arcerr "github.com/sabouaram/archivefs/errors"
	"github.com/sabouaram/archivefs/handler"
	"github.com/sabouaram/archivefs/handler/registry"
)

// Mode selects how a Resolve call should react to a missing segment.
type Mode uint8

const (
	// ModeRead never creates anything; a missing intermediate segment is
	// NotFound, while a missing final segment still resolves so the caller
	// can report or act on its absence.
	ModeRead Mode = iota
	// ModeWrite auto-creates intermediate directories and interior
	// archives as it descends, matching write/append/mkdir semantics.
	ModeWrite
	// ModeCreate behaves like ModeWrite but is used by operations whose
	// whole purpose is to synthesize the final segment itself
	// (create_archive), so callers can tell "created new" from "found
	// existing" via Node.Created.
	ModeCreate
)

func (m Mode) canCreate() bool { return m != ModeRead }

// SegmentKind classifies one path segment after resolution.
type SegmentKind uint8

const (
	KindDirectory SegmentKind = iota
	KindArchiveBoundary
	KindLeaf
)

// Segment records how one path element was classified, kept mainly so a
// glob layer built on top of this resolver can decide for itself whether
// "**" should cross archive boundaries (spec's open question — this
// package only exposes the information, it never decides).
type Segment struct {
	Name string
	Kind SegmentKind
}

// Node is one entry in a Resolution Stack: one open Archive Handle.
type Node struct {
	// EntryPath is the normalized path, inside Parent's Store, at which
	// this node's serialized bytes live as a file entry. Empty when
	// Parent is nil.
	EntryPath string
	// OSPath is the real filesystem path backing this node. Only set
	// when Parent is nil (the outermost archive in the stack).
	OSPath string

	Handler handler.Handler
	Store   *entrystore.Store
	Dirty   bool
	// Created reports whether this node was synthesized as a brand new,
	// empty archive during resolution rather than loaded from existing
	// content.
	Created bool

	Parent *Node

	closer io.Closer
}

// Close releases any resource Load allocated to make this node's entries
// independently re-readable (spooled temp files, materialized readers).
// It is idempotent.
func (n *Node) Close() error {
	if n.closer == nil {
		return nil
	}
	c := n.closer
	n.closer = nil
	return c.Close()
}

// Result is the outcome of resolving one composite path: the stack of
// Nodes descended into, outermost first, plus exactly one description of
// the final target — either a plain OS path (Nodes empty) or an entry
// path inside the innermost Node's Store (LeafNode set). Leaf == "" means
// the target is the root of LeafNode itself (i.e. an archive/directory).
type Result struct {
	Nodes    []*Node
	Segments []Segment

	OSPath string

	LeafNode *Node
	Leaf     string
}

// IsDir reports whether the resolved target is a directory (a plain OS
// directory, an archive boundary's own root, or a staged directory entry
// inside an archive).
func (r *Result) IsDir() bool {
	if r.OSPath != "" {
		info, err := os.Stat(r.OSPath)
		return err == nil && info.IsDir()
	}
	if r.Leaf == "" {
		return true
	}
	e, ok := r.LeafNode.Store.Stat(r.Leaf)
	return ok && e.IsLive() && e.Kind == entrystore.KindDir
}

// Resolver turns composite paths into Results against one Registry/Config
// pair.
type Resolver struct {
	registry *registry.Registry
	cfg      *config.Config
}

// New returns a Resolver that looks up formats in reg and threads cfg
// through every Handler it opens.
func New(reg *registry.Registry, cfg *config.Config) *Resolver {
	return &Resolver{registry: reg, cfg: cfg}
}

// Registry returns the Registry this Resolver dispatches through.
func (r *Resolver) Registry() *registry.Registry { return r.registry }

// NodeCache lets a series of Resolve calls against the same underlying
// archive reuse one already-open Node instead of each opening (or, for a
// not-yet-existing archive under ModeWrite, freshly creating) its own.
// Without this, two Resolve calls in the same Session that both
// auto-create the same missing outer archive would end up with two
// independent empty Stores — and whichever one serialized last on
// Commit would silently discard the other's staged entries. A Session
// owns one NodeCache for its whole lifetime; a bare Resolver.Resolve
// call (no cache) never shares Nodes across calls.
type NodeCache struct {
	mu    sync.Mutex
	byOS  map[string]*Node
	byKey map[string]*Node
}

// NewNodeCache returns an empty NodeCache.
func NewNodeCache() *NodeCache {
	return &NodeCache{byOS: make(map[string]*Node), byKey: make(map[string]*Node)}
}

func (c *NodeCache) getOS(osPath string) (*Node, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.byOS[osPath]
	return n, ok
}

func (c *NodeCache) putOS(osPath string, n *Node) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byOS[osPath] = n
}

func entryCacheKey(parent *Node, entryPath string) string {
	return fmt.Sprintf("%p:%s", parent, entryPath)
}

func (c *NodeCache) getEntry(parent *Node, entryPath string) (*Node, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.byKey[entryCacheKey(parent, entryPath)]
	return n, ok
}

func (c *NodeCache) putEntry(parent *Node, entryPath string, n *Node) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byKey[entryCacheKey(parent, entryPath)] = n
}

// Resolve splits composite, walks it segment by segment, and returns the
// Resolution Stack plus final target description. Equivalent to
// ResolveCached with a nil NodeCache: every Node it touches is freshly
// opened or created, never shared with another Resolve call.
func (r *Resolver) Resolve(composite string, mode Mode) (*Result, error) {
	return r.ResolveCached(composite, mode, nil)
}

// ResolveCached is Resolve, but consults cache before opening or creating
// any Node, and records every Node it does open or create back into
// cache — so a second Resolve call sharing a path prefix with a first
// (same Session, same NodeCache) descends into the very same Nodes
// instead of independent copies.
func (r *Resolver) ResolveCached(composite string, mode Mode, cache *NodeCache) (*Result, error) {
	segs, absolute, verr := splitSegments(composite)
	if verr != nil {
		return nil, verr
	}

	res := &Result{}

	var curDir string
	if absolute {
		curDir = string(filepath.Separator)
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, arcerr.IOError.Error(err)
		}
		curDir = cwd
	}

	var curNode *Node
	within := ""

	for i, seg := range segs {
		last := i == len(segs)-1
		h, _, hasHandler := r.registry.Lookup(seg)

		if curNode == nil {
			candidate := filepath.Join(curDir, seg)

			if cached, ok := cache.getOS(candidate); ok {
				res.Segments = append(res.Segments, Segment{Name: seg, Kind: KindArchiveBoundary})
				res.Nodes = append(res.Nodes, cached)
				curNode = cached
				within = ""
				continue
			}

			info, statErr := os.Stat(candidate)
			exists := statErr == nil
			if statErr != nil && !os.IsNotExist(statErr) {
				return nil, arcerr.IOError.Error(statErr)
			}

			switch {
			case exists && !info.IsDir() && hasHandler:
				res.Segments = append(res.Segments, Segment{Name: seg, Kind: KindArchiveBoundary})
				node, err := r.openOSNode(candidate, h, mode, true)
				if err != nil {
					return nil, err
				}
				cache.putOS(candidate, node)
				res.Nodes = append(res.Nodes, node)
				curNode = node
				within = ""

			case !exists && hasHandler && mode.canCreate():
				res.Segments = append(res.Segments, Segment{Name: seg, Kind: KindArchiveBoundary})
				node, err := r.openOSNode(candidate, h, mode, false)
				if err != nil {
					return nil, err
				}
				cache.putOS(candidate, node)
				res.Nodes = append(res.Nodes, node)
				curNode = node
				within = ""

			case exists && info.IsDir():
				res.Segments = append(res.Segments, Segment{Name: seg, Kind: KindDirectory})
				curDir = candidate

			case !exists:
				if !last {
					if !mode.canCreate() {
						return nil, arcerr.NotFound.Error()
					}
					if err := os.MkdirAll(candidate, 0o755); err != nil {
						return nil, arcerr.IOError.Error(err)
					}
					res.Segments = append(res.Segments, Segment{Name: seg, Kind: KindDirectory})
					curDir = candidate
					continue
				}
				res.Segments = append(res.Segments, Segment{Name: seg, Kind: KindLeaf})
				res.OSPath = candidate
				return res, nil

			default: // exists, is a file, registry doesn't recognize its extension
				if !last {
					node, sniffed, err := r.openOSNodeSniffed(candidate, mode)
					if err != nil {
						return nil, err
					}
					if !sniffed {
						return nil, arcerr.NotADirectory.Error()
					}
					res.Segments = append(res.Segments, Segment{Name: seg, Kind: KindArchiveBoundary})
					cache.putOS(candidate, node)
					res.Nodes = append(res.Nodes, node)
					curNode = node
					within = ""
					continue
				}
				res.Segments = append(res.Segments, Segment{Name: seg, Kind: KindLeaf})
				res.OSPath = candidate
				return res, nil
			}
			continue
		}

		// Inside an already-open Node: resolve seg against its Store. Stat
		// (not Get) so a segment that only exists implicitly — because a
		// deeper entry like "dir/sub/b.txt" was staged without "dir/sub"
		// itself ever being an explicit entry — still resolves as a
		// directory instead of NotFound.
		nextWithin := joinWithin(within, seg)

		if cached, ok := cache.getEntry(curNode, nextWithin); ok {
			res.Segments = append(res.Segments, Segment{Name: seg, Kind: KindArchiveBoundary})
			res.Nodes = append(res.Nodes, cached)
			curNode = cached
			within = ""
			continue
		}

		entry, found := curNode.Store.Stat(nextWithin)
		parentForCache := curNode

		switch {
		case found && entry.IsLive() && entry.Kind == entrystore.KindFile && hasHandler:
			res.Segments = append(res.Segments, Segment{Name: seg, Kind: KindArchiveBoundary})
			node, err := r.openEntryNode(curNode, nextWithin, h, mode, entry)
			if err != nil {
				return nil, err
			}
			cache.putEntry(parentForCache, nextWithin, node)
			res.Nodes = append(res.Nodes, node)
			curNode = node
			within = ""

		case (!found || !entry.IsLive()) && hasHandler && mode.canCreate():
			res.Segments = append(res.Segments, Segment{Name: seg, Kind: KindArchiveBoundary})
			node := r.createEntryNode(curNode, nextWithin, h)
			cache.putEntry(parentForCache, nextWithin, node)
			res.Nodes = append(res.Nodes, node)
			curNode = node
			within = ""

		case found && entry.IsLive() && entry.Kind == entrystore.KindDir:
			res.Segments = append(res.Segments, Segment{Name: seg, Kind: KindDirectory})
			within = nextWithin

		case !found || !entry.IsLive():
			if !last {
				if !mode.canCreate() {
					return nil, arcerr.NotFound.Error()
				}
				curNode.Store.Put(&entrystore.Entry{Path: nextWithin, Kind: entrystore.KindDir, Source: entrystore.InOverlay})
				curNode.Dirty = true
				res.Segments = append(res.Segments, Segment{Name: seg, Kind: KindDirectory})
				within = nextWithin
				continue
			}
			res.Segments = append(res.Segments, Segment{Name: seg, Kind: KindLeaf})
			res.Leaf = nextWithin
			res.LeafNode = curNode
			return res, nil

		default: // found, live, file or symlink, but not a recognized archive extension
			if !last {
				node, sniffed, err := r.openEntrySniffed(curNode, nextWithin, entry)
				if err != nil {
					return nil, err
				}
				if !sniffed {
					return nil, arcerr.NotADirectory.Error()
				}
				res.Segments = append(res.Segments, Segment{Name: seg, Kind: KindArchiveBoundary})
				cache.putEntry(parentForCache, nextWithin, node)
				res.Nodes = append(res.Nodes, node)
				curNode = node
				within = ""
				continue
			}
			res.Segments = append(res.Segments, Segment{Name: seg, Kind: KindLeaf})
			res.Leaf = nextWithin
			res.LeafNode = curNode
			return res, nil
		}
	}

	if curNode != nil {
		res.Leaf = within
		res.LeafNode = curNode
		return res, nil
	}
	res.OSPath = curDir
	return res, nil
}

func (r *Resolver) openOSNode(osPath string, h handler.Handler, mode Mode, exists bool) (*Node, error) {
	n := &Node{OSPath: osPath, Handler: h}
	if !exists {
		n.Store = entrystore.New()
		n.Dirty = true
		n.Created = true
		return n, nil
	}

	f, err := os.Open(osPath)
	if err != nil {
		return nil, arcerr.IOError.Error(err)
	}
	defer func() { _ = f.Close() }()

	store, closer, lerr := h.Load(f, filepath.Base(osPath), r.cfg)
	if lerr != nil {
		return nil, arcerr.FormatError.Error(lerr)
	}
	n.Store = store
	n.closer = closer
	return n, nil
}

func (r *Resolver) openEntryNode(parent *Node, entryPath string, h handler.Handler, mode Mode, entry *entrystore.Entry) (*Node, error) {
	if entry.Open == nil {
		return nil, arcerr.FormatError.Errorf("entry %q has no readable content", entryPath)
	}
	rc, err := entry.Open()
	if err != nil {
		return nil, arcerr.IOError.Error(err)
	}
	defer func() { _ = rc.Close() }()

	store, closer, lerr := h.Load(rc, pathBase(entryPath), r.cfg)
	if lerr != nil {
		return nil, arcerr.FormatError.Error(lerr)
	}
	return &Node{EntryPath: entryPath, Handler: h, Store: store, closer: closer, Parent: parent}, nil
}

// openOSNodeSniffed is openOSNode's fallback for a file whose extension
// the Registry doesn't recognize: it sniffs the file's magic bytes for a
// bare codec (registry.DetectByHeader) before giving up, so something
// like a hand-renamed "data.bin" that is actually gzip-compressed still
// descends as a codec-single boundary instead of erroring NotADirectory.
// ok is false when nothing was sniffed and the caller should fall back to
// its own NotADirectory.
func (r *Resolver) openOSNodeSniffed(osPath string, mode Mode) (n *Node, ok bool, err error) {
	f, oerr := os.Open(osPath)
	if oerr != nil {
		return nil, false, arcerr.IOError.Error(oerr)
	}
	defer func() { _ = f.Close() }()

	h, peeked, sniffed := registry.DetectByHeader(f)
	if !sniffed {
		return nil, false, nil
	}

	store, closer, lerr := h.Load(peeked, filepath.Base(osPath), r.cfg)
	if lerr != nil {
		return nil, false, arcerr.FormatError.Error(lerr)
	}
	return &Node{OSPath: osPath, Handler: h, Store: store, closer: closer}, true, nil
}

// openEntrySniffed is openOSNodeSniffed's counterpart for an entry inside
// an already-open Node.
func (r *Resolver) openEntrySniffed(parent *Node, entryPath string, entry *entrystore.Entry) (n *Node, ok bool, err error) {
	if entry.Open == nil {
		return nil, false, nil
	}
	rc, oerr := entry.Open()
	if oerr != nil {
		return nil, false, arcerr.IOError.Error(oerr)
	}
	defer func() { _ = rc.Close() }()

	h, peeked, sniffed := registry.DetectByHeader(rc)
	if !sniffed {
		return nil, false, nil
	}

	store, closer, lerr := h.Load(peeked, pathBase(entryPath), r.cfg)
	if lerr != nil {
		return nil, false, arcerr.FormatError.Error(lerr)
	}
	return &Node{EntryPath: entryPath, Handler: h, Store: store, closer: closer, Parent: parent}, true, nil
}

func (r *Resolver) createEntryNode(parent *Node, entryPath string, h handler.Handler) *Node {
	n := &Node{EntryPath: entryPath, Handler: h, Store: entrystore.New(), Parent: parent, Dirty: true, Created: true}
	parent.Store.Put(&entrystore.Entry{Path: entryPath, Kind: entrystore.KindFile, Source: entrystore.InOverlay})
	parent.Dirty = true
	return n
}

// splitSegments normalizes composite the way entrystore.CleanPath does for
// entry names, additionally rejecting ".." (a composite path escaping its
// root is always an error, unlike an in-archive entry name which is
// merely clamped) and embedded null bytes.
func splitSegments(composite string) (segs []string, absolute bool, err arcerr.Error) {
	if strings.IndexByte(composite, 0) >= 0 {
		return nil, false, arcerr.InvalidPath.Errorf("path contains a null byte")
	}
	normalized := strings.ReplaceAll(composite, "\\", "/")
	absolute = strings.HasPrefix(normalized, "/")

	for _, s := range strings.Split(normalized, "/") {
		switch s {
		case "", ".":
			continue
		case "..":
			return nil, false, arcerr.InvalidPath.Errorf("path segment %q escapes its root", s)
		default:
			segs = append(segs, s)
		}
	}
	if len(segs) == 0 {
		return nil, false, arcerr.InvalidPath.Errorf("empty composite path")
	}
	return segs, absolute, nil
}

func joinWithin(base, seg string) string {
	if base == "" {
		return seg
	}
	return base + "/" + seg
}

func pathBase(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}
