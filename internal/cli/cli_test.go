package cli

import (
	ginkgo "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = ginkgo.Describe("Command construction", func() {
	ginkgo.Context("When assembling an argument vector", func() {
		ginkgo.It("should keep subcommands, flags, and arguments in insertion order", func() {
			executable, args := NewCommand("podman", "--root", "/tmp/scratch").
				Arg("push").
				Arg("app:v1", "reg.io/app:v1").
				Flag("--digestfile", "digest.txt").
				Arg("--tls-verify=true").
				Argv()

			Expect(executable).To(Equal("podman"))
			Expect(args).To(Equal([]string{
				"--root", "/tmp/scratch",
				"push",
				"app:v1", "reg.io/app:v1",
				"--digestfile", "digest.txt",
				"--tls-verify=true",
			}))
		})
		ginkgo.It("should allow flags without values", func() {
			_, args := NewCommand("podman", "manifest", "push").Flag("--all").Argv()
			Expect(args).To(Equal([]string{"manifest", "push", "--all"}))
		})
	})
})

var _ = ginkgo.Describe("Captured output handling", func() {
	ginkgo.DescribeTable("Splitting captured output into lines",
		func(input string, expected []string) {
			Expect(splitLines(input)).To(Equal(expected))
		},
		ginkgo.Entry("empty output", "", nil),
		ginkgo.Entry("a single line", "sha256:abc\n", []string{"sha256:abc"}),
		ginkgo.Entry("multiple lines", "one\ntwo\n", []string{"one", "two"}),
		ginkgo.Entry("windows line endings", "one\r\ntwo\r\n", []string{"one", "two"}),
	)
})
