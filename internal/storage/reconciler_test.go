package storage

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/afero"

	"github.com/opdev/registry-push/internal/cli"
	"github.com/opdev/registry-push/internal/errors"
	"github.com/opdev/registry-push/internal/image"
)

var _ = Describe("Storage reconciliation", func() {
	var runner *fakeRunner
	var reconciler Reconciler
	var sources []image.Reference

	newReconciler := func() Reconciler {
		scratch, err := NewScratch(context.Background(), runner, afero.NewMemMapFs())
		Expect(err).ToNot(HaveOccurred())
		return Reconciler{Runner: runner, Scratch: scratch}
	}

	BeforeEach(func() {
		runner = &fakeRunner{}
		sources = []image.Reference{image.NewReference("app", "v1")}
	})

	Context("When the sources are manifest lists", func() {
		It("should short-circuit without probing either store", func() {
			runner.runFunc = scriptedRunner(
				map[string]bool{"app:v1": true},
				storeBehavior{},
				storeBehavior{},
			)
			reconciler = newReconciler()

			result, err := reconciler.Reconcile(context.Background(), sources)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.SourceIsManifest).To(BeTrue())
			Expect(result.AuthoritativeStoreIsForeign).To(BeFalse())
			Expect(runner.callsContaining("image exists")).To(BeEmpty())
			Expect(runner.callsContaining("pull docker-daemon:")).To(BeEmpty())
		})

		It("should fail when only some sources are manifest lists", func() {
			sources = append(sources, image.NewReference("app", "v2"))
			runner.runFunc = scriptedRunner(
				map[string]bool{"app:v1": true, "app:v2": false},
				storeBehavior{},
				storeBehavior{},
			)
			reconciler = newReconciler()

			_, err := reconciler.Reconcile(context.Background(), sources)
			Expect(err).To(MatchError(errors.ErrInconsistentManifestSet))
			Expect(err.Error()).To(ContainSubstring("app:v1"))
		})
	})

	Context("When a tag is missing from both stores", func() {
		It("should fail naming the missing tag per store", func() {
			runner.runFunc = scriptedRunner(
				map[string]bool{},
				storeBehavior{present: map[string]bool{}},
				storeBehavior{present: map[string]bool{}},
			)
			reconciler = newReconciler()

			_, err := reconciler.Reconcile(context.Background(), sources)
			Expect(err).To(MatchError(errors.ErrImageNotFound))
			Expect(err.Error()).To(ContainSubstring("container storage: app:v1"))
			Expect(err.Error()).To(ContainSubstring("docker daemon: app:v1"))
		})
	})

	Context("When only the container storage holds the full set", func() {
		It("should select the container storage without comparing timestamps", func() {
			runner.runFunc = scriptedRunner(
				map[string]bool{},
				storeBehavior{present: map[string]bool{"app:v1": true}},
				storeBehavior{present: map[string]bool{}},
			)
			reconciler = newReconciler()

			result, err := reconciler.Reconcile(context.Background(), sources)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.AuthoritativeStoreIsForeign).To(BeFalse())
			Expect(runner.callsContaining("image inspect")).To(BeEmpty())
		})
	})

	Context("When only the docker daemon holds the full set", func() {
		It("should select the docker daemon without comparing timestamps", func() {
			runner.runFunc = scriptedRunner(
				map[string]bool{},
				storeBehavior{present: map[string]bool{}},
				storeBehavior{present: map[string]bool{"docker.io/library/app:v1": true}},
			)
			reconciler = newReconciler()

			result, err := reconciler.Reconcile(context.Background(), sources)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.AuthoritativeStoreIsForeign).To(BeTrue())
			Expect(runner.callsContaining("image inspect")).To(BeEmpty())
		})
	})

	Context("When both stores hold the full set", func() {
		both := func(localCreated, foreignCreated string) {
			runner.runFunc = scriptedRunner(
				map[string]bool{},
				storeBehavior{present: map[string]bool{"app:v1": true}, created: localCreated},
				storeBehavior{present: map[string]bool{"docker.io/library/app:v1": true}, created: foreignCreated},
			)
			reconciler = newReconciler()
		}

		It("should select the docker daemon when its copy is strictly newer", func() {
			both("2024-05-01T10:00:00Z", "2024-05-01T11:00:00Z")

			result, err := reconciler.Reconcile(context.Background(), sources)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.AuthoritativeStoreIsForeign).To(BeTrue())
		})

		It("should select the container storage when timestamps are equal", func() {
			both("2024-05-01T10:00:00Z", "2024-05-01T10:00:00Z")

			result, err := reconciler.Reconcile(context.Background(), sources)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.AuthoritativeStoreIsForeign).To(BeFalse())
		})

		It("should select the container storage when its copy is newer", func() {
			both("2024-05-01T12:00:00Z", "2024-05-01T10:00:00Z")

			result, err := reconciler.Reconcile(context.Background(), sources)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.AuthoritativeStoreIsForeign).To(BeFalse())
		})

		It("should accept podman's default time format", func() {
			both("2024-05-01 10:00:00.123456789 +0000 UTC", "2024-05-01 11:00:00.123456789 +0000 UTC")

			result, err := reconciler.Reconcile(context.Background(), sources)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.AuthoritativeStoreIsForeign).To(BeTrue())
		})

		It("should fail when a timestamp cannot be parsed", func() {
			both("not-a-timestamp", "2024-05-01T10:00:00Z")

			_, err := reconciler.Reconcile(context.Background(), sources)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("creation time"))
		})
	})
})

var _ = Describe("Scratch storage", func() {
	It("should scope podman invocations to its root", func() {
		runner := &fakeRunner{runFunc: func(context.Context, string, []string, cli.Options) (*cli.Report, error) {
			return &cli.Report{}, nil
		}}
		scratch, err := NewScratch(context.Background(), runner, afero.NewMemMapFs())
		Expect(err).ToNot(HaveOccurred())
		Expect(scratch.StorageArgs()[0]).To(Equal("--root"))
		Expect(scratch.StorageArgs()[1]).To(Equal(scratch.Root()))
	})

	It("should force-remove images and the directory on cleanup", func() {
		runner := &fakeRunner{runFunc: func(context.Context, string, []string, cli.Options) (*cli.Report, error) {
			return &cli.Report{}, nil
		}}
		fs := afero.NewMemMapFs()
		scratch, err := NewScratch(context.Background(), runner, fs)
		Expect(err).ToNot(HaveOccurred())

		scratch.Cleanup(context.Background())

		Expect(runner.callsContaining("rmi --all --force")).To(HaveLen(1))
		exists, err := afero.DirExists(fs, scratch.Root())
		Expect(err).ToNot(HaveOccurred())
		Expect(exists).To(BeFalse())
	})
})
