package stream_test

import (
	"bytes"
	"io"
	"os"

	"github.com/sabouaram/archivefs/stream"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Stream", func() {
	It("stays in memory below the threshold", func() {
		s := stream.New(1<<20, os.TempDir())
		_, err := s.Write([]byte("small payload"))
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Spilled()).To(BeFalse())

		r, err := s.Reader()
		Expect(err).NotTo(HaveOccurred())
		defer r.Close()
		got, _ := io.ReadAll(r)
		Expect(got).To(Equal([]byte("small payload")))
	})

	It("spills to a temp file once the threshold is crossed", func() {
		s := stream.New(8, os.TempDir())
		payload := bytes.Repeat([]byte("x"), 64)
		_, err := s.Write(payload)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Spilled()).To(BeTrue())
		Expect(s.Size()).To(Equal(int64(len(payload))))

		r, err := s.Reader()
		Expect(err).NotTo(HaveOccurred())
		defer r.Close()
		got, _ := io.ReadAll(r)
		Expect(got).To(Equal(payload))

		Expect(s.Close()).To(Succeed())
	})

	It("allows re-reading the content multiple times", func() {
		s := stream.New(4, os.TempDir())
		_, _ = s.Write(bytes.Repeat([]byte("y"), 32))

		for i := 0; i < 2; i++ {
			r, err := s.Reader()
			Expect(err).NotTo(HaveOccurred())
			got, _ := io.ReadAll(r)
			Expect(got).To(HaveLen(32))
			_ = r.Close()
		}
		_ = s.Close()
	})

	It("never spills when threshold is non-positive", func() {
		s := stream.New(0, os.TempDir())
		_, _ = s.Write(bytes.Repeat([]byte("z"), 1<<16))
		Expect(s.Spilled()).To(BeFalse())
	})
})
