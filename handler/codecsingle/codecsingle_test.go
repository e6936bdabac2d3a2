package codecsingle_test

import (
	"bytes"
	"compress/gzip"
	"io"

	"github.com/sabouaram/archivefs/codec"
	"github.com/sabouaram/archivefs/config"
	"github.com/sabouaram/archivefs/handler/codecsingle"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("codecsingle handler", func() {
	cfg := config.New()

	It("decodes report.csv.gz into a single report.csv entry", func() {
		var raw bytes.Buffer
		gw := gzip.NewWriter(&raw)
		_, _ = gw.Write([]byte("a,b,c\n1,2,3\n"))
		_ = gw.Close()

		h := codecsingle.New(codec.Gzip)
		store, closer, err := h.Load(bytes.NewReader(raw.Bytes()), "report.csv.gz", cfg)
		Expect(err).NotTo(HaveOccurred())
		defer closer.Close()

		e, ok := store.Get("report.csv")
		Expect(ok).To(BeTrue())

		rc, err := e.Open()
		Expect(err).NotTo(HaveOccurred())
		got, _ := io.ReadAll(rc)
		_ = rc.Close()
		Expect(string(got)).To(Equal("a,b,c\n1,2,3\n"))
	})

	It("round-trips through Serialize back to a valid gzip stream", func() {
		var raw bytes.Buffer
		gw := gzip.NewWriter(&raw)
		_, _ = gw.Write([]byte("payload"))
		_ = gw.Close()

		h := codecsingle.New(codec.Gzip)
		store, closer, err := h.Load(bytes.NewReader(raw.Bytes()), "x.gz", cfg)
		Expect(err).NotTo(HaveOccurred())
		defer closer.Close()

		var out bytes.Buffer
		Expect(h.Serialize(&out, store, cfg)).To(Succeed())

		gr, err := gzip.NewReader(&out)
		Expect(err).NotTo(HaveOccurred())
		got, _ := io.ReadAll(gr)
		Expect(string(got)).To(Equal("payload"))
	})

	It("falls back to magic-number detection when constructed with codec.None", func() {
		var raw bytes.Buffer
		gw := gzip.NewWriter(&raw)
		_, _ = gw.Write([]byte("sniffed"))
		_ = gw.Close()

		h := codecsingle.New(codec.None)
		store, closer, err := h.Load(bytes.NewReader(raw.Bytes()), "mystery.bin", cfg)
		Expect(err).NotTo(HaveOccurred())
		defer closer.Close()

		e, ok := store.Get("mystery.bin")
		Expect(ok).To(BeTrue())
		rc, _ := e.Open()
		got, _ := io.ReadAll(rc)
		_ = rc.Close()
		Expect(string(got)).To(Equal("sniffed"))
	})
})
