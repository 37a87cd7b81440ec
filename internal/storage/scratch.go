package storage

import (
	"context"
	"os/exec"

	"github.com/go-logr/logr"
	"github.com/spf13/afero"

	"github.com/opdev/registry-push/internal/cli"
)

// overlayHelper is the userspace overlay mount helper podman needs to
// use an overlay-backed storage root without privileges.
const overlayHelper = "fuse-overlayfs"

// Scratch is a throwaway podman storage root. Images pulled from the
// Docker daemon are materialized here so they can be pushed with the
// same tooling as images in the regular container storage.
type Scratch struct {
	root        string
	fs          afero.Fs
	runner      cli.CommandRunner
	storageArgs []string
}

// NewScratch creates the scratch storage directory. The caller owns the
// store for the duration of the run and must call Cleanup on every exit
// path.
func NewScratch(ctx context.Context, runner cli.CommandRunner, fs afero.Fs) (*Scratch, error) {
	logger := logr.FromContextOrDiscard(ctx)

	root, err := afero.TempDir(fs, "", "registry-push-storage-")
	if err != nil {
		return nil, err
	}

	args := []string{"--root", root}
	if helper, err := exec.LookPath(overlayHelper); err == nil {
		args = append(args, "--storage-opt", "overlay.mount_program="+helper)
	} else {
		logger.Info(overlayHelper + " was not found on the PATH; using podman storage defaults for the scratch store")
	}

	return &Scratch{
		root:        root,
		fs:          fs,
		runner:      runner,
		storageArgs: args,
	}, nil
}

// Root is the scratch storage directory.
func (s *Scratch) Root() string {
	return s.root
}

// StorageArgs returns the global podman arguments that scope a command
// to the scratch storage root.
func (s *Scratch) StorageArgs() []string {
	return s.storageArgs
}

// Cleanup force-removes any images placed into the scratch storage and
// then removes the directory itself. Cleanup is best-effort: failures
// are logged and never fatal.
func (s *Scratch) Cleanup(ctx context.Context) {
	logger := logr.FromContextOrDiscard(ctx)

	executable, args := cli.NewCommand("podman").
		Arg(s.storageArgs...).
		Arg("rmi", "--all", "--force").
		Argv()
	if _, err := s.runner.Run(ctx, executable, args, cli.Options{GroupLabel: "scratch cleanup"}); err != nil {
		logger.Info("could not remove images from the scratch storage", "error", err.Error())
	}

	if err := s.fs.RemoveAll(s.root); err != nil {
		logger.Info("could not remove the scratch storage directory", "root", s.root, "error", err.Error())
	}
}
