package codec_test

import (
	"bytes"
	"io"

	"github.com/sabouaram/archivefs/codec"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Stream round-trips", func() {
	payload := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog\n"), 64)

	for _, a := range []codec.Algorithm{codec.None, codec.Gzip, codec.Bzip2, codec.XZ, codec.LZ4} {
		a := a
		Context(a.String(), func() {
			It("encodes then decodes back to the original bytes", func() {
				var buf bytes.Buffer
				w, err := a.EncodeStream(&buf)
				Expect(err).NotTo(HaveOccurred())
				_, err = w.Write(payload)
				Expect(err).NotTo(HaveOccurred())
				Expect(w.Close()).To(Succeed())

				r, err := a.DecodeStream(&buf)
				Expect(err).NotTo(HaveOccurred())
				defer r.Close()

				got, err := io.ReadAll(r)
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(Equal(payload))
			})
		})
	}
})

var _ = Describe("DetectHeader", func() {
	It("recognizes a gzip-compressed stream by magic number", func() {
		var buf bytes.Buffer
		w, _ := codec.Gzip.EncodeStream(&buf)
		_, _ = w.Write([]byte("hello"))
		_ = w.Close()

		a, _, err := codec.DetectHeader(bytes.NewReader(buf.Bytes()))
		Expect(err).NotTo(HaveOccurred())
		Expect(a).To(Equal(codec.Gzip))
	})

	It("returns None for plain uncompressed content", func() {
		a, _, err := codec.DetectHeader(bytes.NewReader([]byte("just plain text, nothing to see")))
		Expect(err).NotTo(HaveOccurred())
		Expect(a).To(Equal(codec.None))
	})

	It("Detect decodes through the detected algorithm transparently", func() {
		var buf bytes.Buffer
		w, _ := codec.XZ.EncodeStream(&buf)
		_, _ = w.Write([]byte("payload under xz"))
		_ = w.Close()

		a, rc, err := codec.Detect(bytes.NewReader(buf.Bytes()))
		Expect(err).NotTo(HaveOccurred())
		Expect(a).To(Equal(codec.XZ))
		defer rc.Close()

		got, err := io.ReadAll(rc)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal([]byte("payload under xz")))
	})
})
