package session_test

import (
	stdzip "archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/sabouaram/archivefs/config"
	"github.com/sabouaram/archivefs/entrystore"
	"github.com/sabouaram/archivefs/handler/registry"
	arcpath "github.com/sabouaram/archivefs/path"
	"github.com/sabouaram/archivefs/session"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func buildZipFile(t string, files map[string]string) {
	var buf bytes.Buffer
	zw := stdzip.NewWriter(&buf)
	for name, content := range files {
		w, _ := zw.Create(name)
		_, _ = w.Write([]byte(content))
	}
	_ = zw.Close()
	Expect(os.WriteFile(t, buf.Bytes(), 0o644)).To(Succeed())
}

func readZipEntry(t string, name string) (string, bool) {
	zr, err := stdzip.OpenReader(t)
	if err != nil {
		return "", false
	}
	defer zr.Close()
	for _, f := range zr.File {
		if f.Name == name {
			rc, _ := f.Open()
			defer rc.Close()
			b, _ := io.ReadAll(rc)
			return string(b), true
		}
	}
	return "", false
}

var _ = Describe("Session", func() {
	var dir string
	var cfg *config.Config
	var r *arcpath.Resolver

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "archivefs-session-*")
		Expect(err).NotTo(HaveOccurred())
		cfg = config.New()
		r = arcpath.New(registry.Default(), cfg)
	})

	AfterEach(func() {
		_ = os.RemoveAll(dir)
	})

	It("caches a Result across repeated Resolve calls with the same mode and path", func() {
		zipPath := filepath.Join(dir, "bundle.zip")
		buildZipFile(zipPath, map[string]string{"a.txt": "a"})

		s := session.New(r, cfg)
		defer func() { _ = s.Abort() }()

		composite := filepath.Join(zipPath, "a.txt")
		first, err := s.Resolve(composite, arcpath.ModeRead)
		Expect(err).NotTo(HaveOccurred())
		second, err := s.Resolve(composite, arcpath.ModeRead)
		Expect(err).NotTo(HaveOccurred())
		Expect(second).To(BeIdenticalTo(first))
	})

	It("sees its own uncommitted writes when reading back the same path (read-your-writes)", func() {
		zipPath := filepath.Join(dir, "bundle.zip")
		buildZipFile(zipPath, map[string]string{"a.txt": "a"})

		s := session.New(r, cfg)
		defer func() { _ = s.Abort() }()

		composite := filepath.Join(zipPath, "new.txt")
		res, err := s.Resolve(composite, arcpath.ModeWrite)
		Expect(err).NotTo(HaveOccurred())

		content := []byte("staged")
		res.LeafNode.Store.Put(&entrystore.Entry{
			Path:   "new.txt",
			Kind:   entrystore.KindFile,
			Source: entrystore.InOverlay,
			Open:   func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(content)), nil },
		})
		res.LeafNode.Dirty = true

		again, err := s.Resolve(composite, arcpath.ModeWrite)
		Expect(err).NotTo(HaveOccurred())
		e, ok := again.LeafNode.Store.Get("new.txt")
		Expect(ok).To(BeTrue())
		rc, rerr := e.Open()
		Expect(rerr).NotTo(HaveOccurred())
		got, _ := io.ReadAll(rc)
		_ = rc.Close()
		Expect(string(got)).To(Equal("staged"))
	})

	It("rebuilds every dirty stack it resolved on Commit", func() {
		zipPath := filepath.Join(dir, "bundle.zip")
		buildZipFile(zipPath, map[string]string{"a.txt": "a"})

		s := session.New(r, cfg)
		res, err := s.Resolve(filepath.Join(zipPath, "new.txt"), arcpath.ModeWrite)
		Expect(err).NotTo(HaveOccurred())

		content := []byte("committed")
		res.LeafNode.Store.Put(&entrystore.Entry{
			Path:   "new.txt",
			Kind:   entrystore.KindFile,
			Source: entrystore.InOverlay,
			Open:   func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(content)), nil },
		})
		res.LeafNode.Dirty = true

		Expect(s.Commit()).To(Succeed())

		got, ok := readZipEntry(zipPath, "new.txt")
		Expect(ok).To(BeTrue())
		Expect(got).To(Equal("committed"))
	})

	It("discards every staged overlay on Abort without touching the original file", func() {
		zipPath := filepath.Join(dir, "bundle.zip")
		buildZipFile(zipPath, map[string]string{"a.txt": "a"})
		before, err := os.ReadFile(zipPath)
		Expect(err).NotTo(HaveOccurred())

		s := session.New(r, cfg)
		res, err := s.Resolve(filepath.Join(zipPath, "new.txt"), arcpath.ModeWrite)
		Expect(err).NotTo(HaveOccurred())

		res.LeafNode.Store.Put(&entrystore.Entry{
			Path:   "new.txt",
			Kind:   entrystore.KindFile,
			Source: entrystore.InOverlay,
			Open:   func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader([]byte("x"))), nil },
		})
		res.LeafNode.Dirty = true

		Expect(s.Abort()).To(Succeed())

		after, err := os.ReadFile(zipPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(after).To(Equal(before))
	})

	It("treats a second Commit or Abort after the first as a no-op", func() {
		zipPath := filepath.Join(dir, "bundle.zip")
		buildZipFile(zipPath, map[string]string{"a.txt": "a"})

		s := session.New(r, cfg)
		_, err := s.Resolve(filepath.Join(zipPath, "a.txt"), arcpath.ModeRead)
		Expect(err).NotTo(HaveOccurred())

		Expect(s.Commit()).To(Succeed())
		Expect(s.Commit()).To(Succeed())
		Expect(s.Abort()).To(Succeed())
	})

	It("rejects Resolve after the session has been closed", func() {
		zipPath := filepath.Join(dir, "bundle.zip")
		buildZipFile(zipPath, map[string]string{"a.txt": "a"})

		s := session.New(r, cfg)
		Expect(s.Commit()).To(Succeed())

		_, err := s.Resolve(filepath.Join(zipPath, "a.txt"), arcpath.ModeRead)
		Expect(err).To(HaveOccurred())
	})
})
