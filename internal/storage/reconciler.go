// Package storage decides which of the two local image stores holds the
// authoritative copy of the requested images: the podman container
// storage ("local") or the Docker daemon storage ("foreign").
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/opdev/registry-push/internal/cli"
	"github.com/opdev/registry-push/internal/errors"
	"github.com/opdev/registry-push/internal/image"
)

// createdTimeFormats are the timestamp layouts podman is known to print
// for an image's Created field.
var createdTimeFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999 -0700 MST",
}

// CheckResult partitions the requested references by presence in one
// store. Entries keep the requested order.
type CheckResult struct {
	FoundTags   []string
	MissingTags []string
}

func (r CheckResult) allFound() bool {
	return len(r.MissingTags) == 0
}

// Result is the reconciliation outcome consumed by the push sequencing.
type Result struct {
	// SourceIsManifest is true when the requested images are manifest
	// lists in the container storage. Freshness is not evaluated in
	// that case.
	SourceIsManifest bool
	// AuthoritativeStoreIsForeign selects the Docker daemon copy for
	// the push when true.
	AuthoritativeStoreIsForeign bool
}

// Reconciler probes both stores through the command runner. Foreign
// probes pull matching images into the scratch storage, so a found
// foreign image is already materialized for a later push.
type Reconciler struct {
	Runner  cli.CommandRunner
	Scratch *Scratch
}

// Reconcile decides the authoritative store for the given sources.
func (r *Reconciler) Reconcile(ctx context.Context, sources []image.Reference) (*Result, error) {
	logger := logr.FromContextOrDiscard(ctx)

	manifests, err := r.checkManifests(ctx, sources)
	if err != nil {
		return nil, err
	}
	if manifests {
		logger.Info("the requested images are manifest lists; pushing from the container storage")
		return &Result{SourceIsManifest: true}, nil
	}

	local, err := r.probeLocal(ctx, sources)
	if err != nil {
		return nil, err
	}
	foreign, err := r.probeForeign(ctx, sources)
	if err != nil {
		return nil, err
	}

	switch {
	case !local.allFound() && !foreign.allFound():
		return nil, fmt.Errorf("%w: missing from the container storage: %s; missing from the docker daemon: %s",
			errors.ErrImageNotFound,
			strings.Join(local.MissingTags, ", "),
			strings.Join(foreign.MissingTags, ", "))
	case local.allFound() && foreign.allFound():
		// All tags of one image push share a creation time, so the
		// first reference stands in for the whole set.
		foreignNewer, err := r.foreignIsNewer(ctx, sources[0])
		if err != nil {
			return nil, err
		}
		if foreignNewer {
			logger.Info("the docker daemon holds the newer copy; pushing from the docker daemon")
		} else {
			logger.Info("the container storage holds the newest copy; pushing from the container storage")
		}
		return &Result{AuthoritativeStoreIsForeign: foreignNewer}, nil
	default:
		// Exactly one store has the complete set.
		return &Result{AuthoritativeStoreIsForeign: foreign.allFound()}, nil
	}
}

// checkManifests reports whether the sources are manifest lists. A set
// that mixes manifest lists and plain images cannot be reconciled.
func (r *Reconciler) checkManifests(ctx context.Context, sources []image.Reference) (bool, error) {
	manifests := make([]string, 0, len(sources))
	for _, source := range sources {
		executable, args := cli.NewCommand("podman", "manifest", "exists").
			Arg(source.String()).
			Argv()
		report, err := r.Runner.Run(ctx, executable, args, cli.Options{GroupLabel: "manifest check"})
		if err != nil {
			return false, err
		}
		if report.ExitCode == 0 {
			manifests = append(manifests, source.String())
		}
	}

	if len(manifests) != 0 && len(manifests) != len(sources) {
		return false, fmt.Errorf("%w: manifest lists: %s",
			errors.ErrInconsistentManifestSet, strings.Join(manifests, ", "))
	}
	return len(manifests) == len(sources), nil
}

// probeLocal checks each source against the container storage.
func (r *Reconciler) probeLocal(ctx context.Context, sources []image.Reference) (*CheckResult, error) {
	result := CheckResult{}
	for _, source := range sources {
		executable, args := cli.NewCommand("podman", "image", "exists").
			Arg(source.String()).
			Argv()
		report, err := r.Runner.Run(ctx, executable, args, cli.Options{GroupLabel: "container storage check"})
		if err != nil {
			return nil, err
		}
		if report.ExitCode == 0 {
			result.FoundTags = append(result.FoundTags, source.String())
		} else {
			result.MissingTags = append(result.MissingTags, source.String())
		}
	}
	return &result, nil
}

// probeForeign checks each source against the Docker daemon by pulling
// it into the scratch storage. A successful pull is presence.
func (r *Reconciler) probeForeign(ctx context.Context, sources []image.Reference) (*CheckResult, error) {
	result := CheckResult{}
	for _, source := range sources {
		executable, args := cli.NewCommand("podman").
			Arg(r.Scratch.StorageArgs()...).
			Arg("pull", "docker-daemon:"+source.Canonical().String()).
			Argv()
		report, err := r.Runner.Run(ctx, executable, args, cli.Options{GroupLabel: "docker daemon check"})
		if err != nil {
			return nil, err
		}
		if report.ExitCode == 0 {
			result.FoundTags = append(result.FoundTags, source.String())
		} else {
			result.MissingTags = append(result.MissingTags, source.String())
		}
	}
	return &result, nil
}

// foreignIsNewer compares the creation time of source in both stores.
// The foreign copy wins only when strictly newer.
func (r *Reconciler) foreignIsNewer(ctx context.Context, source image.Reference) (bool, error) {
	localCreated, err := r.createdTime(ctx, nil, source.String())
	if err != nil {
		return false, err
	}
	foreignCreated, err := r.createdTime(ctx, r.Scratch.StorageArgs(), source.Canonical().String())
	if err != nil {
		return false, err
	}
	return foreignCreated.After(localCreated), nil
}

func (r *Reconciler) createdTime(ctx context.Context, storageArgs []string, reference string) (time.Time, error) {
	executable, args := cli.NewCommand("podman").
		Arg(storageArgs...).
		Arg("image", "inspect", reference).
		Flag("--format", "{{.Created}}").
		Argv()
	report, err := r.Runner.Run(ctx, executable, args, cli.Options{
		GroupLabel:    "image inspect",
		FailOnNonZero: true,
	})
	if err != nil {
		return time.Time{}, err
	}
	if len(report.Stdout) == 0 {
		return time.Time{}, fmt.Errorf("%w: no creation time reported for %s", errors.ErrCommandFailed, reference)
	}
	return parseCreatedTime(strings.TrimSpace(report.Stdout[0]))
}

func parseCreatedTime(value string) (time.Time, error) {
	for _, layout := range createdTimeFormats {
		if created, err := time.Parse(layout, value); err == nil {
			return created, nil
		}
	}
	return time.Time{}, fmt.Errorf("could not parse image creation time %q", value)
}
