package reader_test

import (
	"io"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/kerry883/webperformancescanner/pkg/reader"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func writeCSV(content string) string {
	path := filepath.Join(GinkgoT().TempDir(), "urls.csv")
	Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
	return path
}

var _ = Describe("ReadURLs", func() {
	It("separates full URLs from route paths, skipping the header and blanks", func() {
		path := writeCSV("url\nhttps://example.com/about\n/pricing\n\nabout-us\n")
		fullURLs, routes, err := reader.ReadURLs(path, quietLogger())
		Expect(err).NotTo(HaveOccurred())
		Expect(fullURLs).To(Equal([]string{"https://example.com/about"}))
		Expect(routes).To(Equal([]string{"/pricing", "/about-us"}))
	})

	It("errors when the file has no usable entries", func() {
		path := writeCSV("url\n\n")
		_, _, err := reader.ReadURLs(path, quietLogger())
		Expect(err).To(HaveOccurred())
	})

	It("errors when the file does not exist", func() {
		_, _, err := reader.ReadURLs(filepath.Join(GinkgoT().TempDir(), "missing.csv"), quietLogger())
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("BuildFullURLs", func() {
	It("joins routes to the base without double slashes", func() {
		urls := reader.BuildFullURLs("https://example.com/", []string{"/", "/about"})
		Expect(urls).To(Equal([]string{"https://example.com/", "https://example.com/about"}))
	})
})

var _ = Describe("Dedupe", func() {
	It("removes duplicates preserving first-seen order", func() {
		urls := reader.Dedupe([]string{"a", "b", "a", "c", "b"})
		Expect(urls).To(Equal([]string{"a", "b", "c"}))
	})
})
