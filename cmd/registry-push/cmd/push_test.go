package cmd

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/opdev/registry-push/internal/errors"
)

var _ = Describe("Push Command", func() {
	BeforeEach(createAndCleanupDirForArtifactsAndLogs)

	Context("When validating push arguments and flags", func() {
		Context("and no image or registry is provided for short tags", func() {
			It("should fail to run before invoking podman", func() {
				_, err := executeCommand(rootCmd(), "push")
				Expect(err).To(HaveOccurred())
				Expect(err).To(MatchError(errors.ErrValidation))
			})
		})

		Context("and the tags mix short tags with full image names", func() {
			It("should fail to run", func() {
				_, err := executeCommand(rootCmd(), "push",
					"--image", "app",
					"--registry", "quay.io/org",
					"--tags", "v1 quay.io/org/app:v2")
				Expect(err).To(HaveOccurred())
				Expect(err).To(MatchError(errors.ErrValidation))
			})
		})
	})

	Context("When requesting usage information", func() {
		It("should describe the push flags", func() {
			out, err := executeCommand(rootCmd(), "push", "--help")
			Expect(err).ToNot(HaveOccurred())
			Expect(out).To(ContainSubstring("--compression-formats"))
			Expect(out).To(ContainSubstring("--digestfile"))
		})
	})
})
