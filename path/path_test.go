package path_test

import (
	stdzip "archive/zip"
	"bytes"
	"os"
	"path/filepath"

	"github.com/sabouaram/archivefs/config"
	arcerr "github.com/sabouaram/archivefs/errors"
	"github.com/sabouaram/archivefs/handler/registry"
	arcpath "github.com/sabouaram/archivefs/path"

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

var _ = Describe("Resolver", func() {
	var dir string
	var reg *registry.Registry
	var cfg *config.Config
	var r *arcpath.Resolver

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "archivefs-path-*")
		Expect(err).NotTo(HaveOccurred())
		reg = registry.Default()
		cfg = config.New()
		r = arcpath.New(reg, cfg)
	})

	AfterEach(func() {
		_ = os.RemoveAll(dir)
	})

	It("resolves a plain file to an OS path with no Nodes", func() {
		target := filepath.Join(dir, "plain.txt")
		Expect(os.WriteFile(target, []byte("hi"), 0o644)).To(Succeed())

		res, err := r.Resolve(target, arcpath.ModeRead)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Nodes).To(BeEmpty())
		Expect(res.OSPath).To(Equal(target))
	})

	It("rejects a parent-escape segment", func() {
		_, err := r.Resolve(dir+"/../x", arcpath.ModeRead)
		Expect(err).To(HaveOccurred())
		Expect(arcerr.InvalidPath.IsCodeError(err)).To(BeTrue())
	})

	It("descends into a zip archive and resolves an interior entry", func() {
		zipPath := filepath.Join(dir, "bundle.zip")
		buildZipFile(zipPath, map[string]string{"inner.txt": "zip content"})

		res, err := r.Resolve(filepath.Join(zipPath, "inner.txt"), arcpath.ModeRead)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Nodes).To(HaveLen(1))
		Expect(res.Leaf).To(Equal("inner.txt"))
		Expect(res.LeafNode).To(Equal(res.Nodes[0]))

		for _, n := range res.Nodes {
			Expect(n.Close()).To(Succeed())
		}
	})

	It("resolves a file nested under an implicit directory inside a zip", func() {
		zipPath := filepath.Join(dir, "bundle.zip")
		buildZipFile(zipPath, map[string]string{"a/b/c.txt": "deep"})

		res, err := r.Resolve(filepath.Join(zipPath, "a", "b", "c.txt"), arcpath.ModeRead)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Leaf).To(Equal("a/b/c.txt"))

		for _, n := range res.Nodes {
			Expect(n.Close()).To(Succeed())
		}
	})

	It("errors NotFound in ModeRead when an intermediate archive does not exist", func() {
		zipPath := filepath.Join(dir, "missing.zip")
		_, err := r.Resolve(filepath.Join(zipPath, "inner.txt"), arcpath.ModeRead)
		Expect(err).To(HaveOccurred())
		Expect(arcerr.NotFound.IsCodeError(err)).To(BeTrue())
	})

	It("creates a brand new archive and marks its Node Created under ModeCreate", func() {
		zipPath := filepath.Join(dir, "fresh.zip")

		res, err := r.Resolve(zipPath, arcpath.ModeCreate)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Nodes).To(HaveLen(1))
		Expect(res.Nodes[0].Created).To(BeTrue())
		Expect(res.Nodes[0].Dirty).To(BeTrue())
	})

	It("auto-creates intermediate directories and a nested archive under ModeWrite", func() {
		zipPath := filepath.Join(dir, "sub1", "sub2", "bundle.zip")

		res, err := r.Resolve(filepath.Join(zipPath, "a.txt"), arcpath.ModeWrite)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Nodes).To(HaveLen(1))
		Expect(res.Nodes[0].Created).To(BeTrue())
		Expect(res.Leaf).To(Equal("a.txt"))
	})

	It("shares the same freshly created Node across two ResolveCached calls for the same outer archive", func() {
		zipPath := filepath.Join(dir, "shared.zip")
		cache := arcpath.NewNodeCache()

		first, err := r.ResolveCached(filepath.Join(zipPath, "a.txt"), arcpath.ModeWrite, cache)
		Expect(err).NotTo(HaveOccurred())
		second, err := r.ResolveCached(filepath.Join(zipPath, "b.txt"), arcpath.ModeWrite, cache)
		Expect(err).NotTo(HaveOccurred())

		Expect(first.Nodes).To(HaveLen(1))
		Expect(second.Nodes).To(HaveLen(1))
		Expect(second.Nodes[0]).To(BeIdenticalTo(first.Nodes[0]))
	})

	It("does not share Nodes across independent Resolve calls without a cache", func() {
		zipPath := filepath.Join(dir, "unshared.zip")

		first, err := r.Resolve(filepath.Join(zipPath, "a.txt"), arcpath.ModeWrite)
		Expect(err).NotTo(HaveOccurred())
		second, err := r.Resolve(filepath.Join(zipPath, "b.txt"), arcpath.ModeWrite)
		Expect(err).NotTo(HaveOccurred())

		Expect(second.Nodes[0]).NotTo(BeIdenticalTo(first.Nodes[0]))
	})

	It("descends through a zip entry into a nested inner archive", func() {
		innerZip := filepath.Join(dir, "inner.zip")
		buildZipFile(innerZip, map[string]string{"leaf.txt": "nested"})
		innerBytes, rerr := os.ReadFile(innerZip)
		Expect(rerr).NotTo(HaveOccurred())

		outerZip := filepath.Join(dir, "outer.zip")
		var buf bytes.Buffer
		zw := stdzip.NewWriter(&buf)
		w, _ := zw.Create("nested.zip")
		_, _ = w.Write(innerBytes)
		_ = zw.Close()
		Expect(os.WriteFile(outerZip, buf.Bytes(), 0o644)).To(Succeed())

		res, err := r.Resolve(filepath.Join(outerZip, "nested.zip", "leaf.txt"), arcpath.ModeRead)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Nodes).To(HaveLen(2))
		Expect(res.Leaf).To(Equal("leaf.txt"))

		for i := len(res.Nodes) - 1; i >= 0; i-- {
			Expect(res.Nodes[i].Close()).To(Succeed())
		}
	})
})
