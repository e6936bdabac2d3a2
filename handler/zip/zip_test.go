package zip_test

import (
	stdzip "archive/zip"
	"bytes"
	"io"

	"github.com/sabouaram/archivefs/config"
	ziphandler "github.com/sabouaram/archivefs/handler/zip"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func buildZip(files map[string]string) []byte {
	var buf bytes.Buffer
	zw := stdzip.NewWriter(&buf)
	for name, content := range files {
		w, _ := zw.Create(name)
		_, _ = w.Write([]byte(content))
	}
	_ = zw.Close()
	return buf.Bytes()
}

var _ = Describe("zip handler", func() {
	cfg := config.New()

	It("loads a single entry and reopens it independently", func() {
		raw := buildZip(map[string]string{"only.txt": "hello zip"})

		h := ziphandler.New()
		store, closer, err := h.Load(bytes.NewReader(raw), "x.zip", cfg)
		Expect(err).NotTo(HaveOccurred())
		defer closer.Close()

		e, ok := store.Get("only.txt")
		Expect(ok).To(BeTrue())

		for i := 0; i < 2; i++ {
			rc, err := e.Open()
			Expect(err).NotTo(HaveOccurred())
			got, _ := io.ReadAll(rc)
			_ = rc.Close()
			Expect(string(got)).To(Equal("hello zip"))
		}
	})

	It("round-trips through Serialize", func() {
		raw := buildZip(map[string]string{"a.txt": "one", "b.txt": "two"})

		h := ziphandler.New()
		store, closer, err := h.Load(bytes.NewReader(raw), "x.zip", cfg)
		Expect(err).NotTo(HaveOccurred())
		defer closer.Close()

		var out bytes.Buffer
		Expect(h.Serialize(&out, store, cfg)).To(Succeed())

		store2, closer2, err := h.Load(bytes.NewReader(out.Bytes()), "x.zip", cfg)
		Expect(err).NotTo(HaveOccurred())
		defer closer2.Close()

		e, ok := store2.Get("b.txt")
		Expect(ok).To(BeTrue())
		rc, _ := e.Open()
		got, _ := io.ReadAll(rc)
		_ = rc.Close()
		Expect(string(got)).To(Equal("two"))
	})
})
