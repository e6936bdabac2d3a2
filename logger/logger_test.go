package logger_test

import (
	"bytes"

	"github.com/sabouaram/archivefs/logger"
	"github.com/sirupsen/logrus"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Logger", func() {
	It("writes through to the wrapped logrus entry", func() {
		var buf bytes.Buffer
		base := logrus.New()
		base.SetOutput(&buf)
		base.SetLevel(logrus.DebugLevel)

		l := logger.New(logrus.NewEntry(base))
		l.Debugf("descending into %s", "x.zip")

		Expect(buf.String()).To(ContainSubstring("descending into x.zip"))
	})

	It("WithField scopes subsequent entries without mutating the parent", func() {
		var buf bytes.Buffer
		base := logrus.New()
		base.SetOutput(&buf)
		base.SetLevel(logrus.DebugLevel)

		l := logger.New(logrus.NewEntry(base))
		scoped := l.WithField("archive", "x.zip")
		scoped.Infof("rebuilt")

		Expect(buf.String()).To(ContainSubstring("archive=x.zip"))
	})

	It("discard drops everything silently", func() {
		Expect(func() {
			logger.Discard().Errorf("should not panic: %v", nil)
		}).NotTo(Panic())
	})
})
