package artifacts_test

import (
	"context"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/opdev/registry-push/artifacts"
)

var _ = Describe("Artifact writer context plumbing", func() {
	Context("When a writer is stored in the context", func() {
		It("should be retrievable through the helper", func() {
			aw, err := artifacts.NewMapWriter()
			Expect(err).ToNot(HaveOccurred())

			ctx := artifacts.ContextWithWriter(context.Background(), aw)
			Expect(artifacts.WriterFromContext(ctx)).To(BeEquivalentTo(aw))
		})
	})

	It("should yield nil when no writer was stored", func() {
		Expect(artifacts.WriterFromContext(context.Background())).To(BeNil())
	})
})

var _ = Describe("The in-memory artifact writer", func() {
	It("should store contents and refuse rewrites", func() {
		aw, err := artifacts.NewMapWriter()
		Expect(err).ToNot(HaveOccurred())

		path, err := aw.WriteFile("outputs.json", strings.NewReader(`{"digest":""}`))
		Expect(err).ToNot(HaveOccurred())
		Expect(path).To(Equal("outputs.json"))
		Expect(string(aw.Contents("outputs.json"))).To(Equal(`{"digest":""}`))

		_, err = aw.WriteFile("outputs.json", strings.NewReader("again"))
		Expect(err).To(MatchError(artifacts.ErrFileAlreadyExists))
	})
})
