package registry_test

import (
	"bytes"
	"compress/gzip"
	"io"

	"github.com/sabouaram/archivefs/handler/registry"
	"github.com/sabouaram/archivefs/handler/zip"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Registry", func() {
	It("matches the longest extension, not the shortest", func() {
		r := registry.Default()

		h, ext, ok := r.Lookup("archive.tar.gz")
		Expect(ok).To(BeTrue())
		Expect(ext).To(Equal(".tar.gz"))
		Expect(h.Name()).To(Equal("tar+gzip"))
	})

	It("falls back to the bare codec extension when no compound match exists", func() {
		r := registry.Default()

		h, ext, ok := r.Lookup("report.csv.gz")
		Expect(ok).To(BeTrue())
		Expect(ext).To(Equal(".gz"))
		Expect(h.Name()).To(Equal("codecsingle:gzip"))
	})

	It("resolves plain .zip and .tar", func() {
		r := registry.Default()

		h, _, ok := r.Lookup("payload.zip")
		Expect(ok).To(BeTrue())
		Expect(h.Name()).To(Equal("zip"))

		h, _, ok = r.Lookup("payload.tar")
		Expect(ok).To(BeTrue())
		Expect(h.Name()).To(Equal("tar"))
	})

	It("reports no match for an unrecognized extension", func() {
		r := registry.Default()
		_, _, ok := r.Lookup("notes.txt")
		Expect(ok).To(BeFalse())
	})

	It("SetHandler on a clone never mutates the original registry", func() {
		base := registry.Default()
		_, _, okBefore := base.Lookup("x.rar")
		Expect(okBefore).To(BeFalse())

		overridden := base.SetHandler(".rar", zip.New())
		_, _, okBaseAfter := base.Lookup("x.rar")
		Expect(okBaseAfter).To(BeFalse())
		_, _, okOverridden := overridden.Lookup("x.rar")
		Expect(okOverridden).To(BeTrue())
	})

	It("sniffs a bare codec by magic number when the extension doesn't name one", func() {
		var gz bytes.Buffer
		gw := gzip.NewWriter(&gz)
		_, err := gw.Write([]byte("payload"))
		Expect(err).NotTo(HaveOccurred())
		Expect(gw.Close()).To(Succeed())

		h, peeked, ok := registry.DetectByHeader(bytes.NewReader(gz.Bytes()))
		Expect(ok).To(BeTrue())
		Expect(h.Name()).To(Equal("codecsingle:gzip"))

		rest, err := io.ReadAll(peeked)
		Expect(err).NotTo(HaveOccurred())
		Expect(rest).To(Equal(gz.Bytes()))
	})

	It("reports no sniffed match for plain, uncompressed content", func() {
		_, _, ok := registry.DetectByHeader(bytes.NewReader([]byte("just some text, not compressed")))
		Expect(ok).To(BeFalse())
	})
})
