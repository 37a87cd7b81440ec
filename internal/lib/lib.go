// Package lib wires the push pipeline together: input validation,
// storage reconciliation, manifest planning, and push execution.
package lib

import (
	"context"
	"io"
	"strings"

	"github.com/docker/cli/cli/config"
	"github.com/go-logr/logr"
	"github.com/spf13/afero"

	"github.com/opdev/registry-push/internal/cli"
	"github.com/opdev/registry-push/internal/image"
	"github.com/opdev/registry-push/internal/manifest"
	"github.com/opdev/registry-push/internal/push"
	"github.com/opdev/registry-push/internal/runtime"
	"github.com/opdev/registry-push/internal/storage"
)

// RunPush executes the full pipeline for cfg: validate and normalize
// inputs, reconcile the two stores, plan manifest assembly, and push.
// The scratch storage is cleaned up on every exit path.
func RunPush(ctx context.Context, cfg *runtime.Config, runner cli.CommandRunner, fs afero.Fs) (*push.Summary, error) {
	logger := logr.FromContextOrDiscard(ctx)

	tags := image.ParseTags(cfg.Tags, image.DefaultTag)
	if err := image.ValidateHomogeneous(tags); err != nil {
		return nil, err
	}

	normalizedTags, tagsChanged := image.NormalizeTags(tags)
	img := strings.ToLower(cfg.Image)
	registry := strings.ToLower(cfg.Registry)
	if tagsChanged || img != cfg.Image || registry != cfg.Registry {
		logger.Info("image, registry, and tags were lowercased to comply with registry naming requirements")
	}

	if image.IsFullImageName(normalizedTags[0]) {
		if img != "" || registry != "" {
			logger.Info("tags are full image names; the image and registry inputs are ignored")
		}
	} else if err := image.ValidateInputs(img, registry, normalizedTags); err != nil {
		return nil, err
	}

	if cfg.Username == "" && cfg.Password == "" {
		hintAmbientCredentials(ctx, registry)
	}

	refs := image.BuildReferences(ctx, img, registry, normalizedTags)

	scratch, err := storage.NewScratch(ctx, runner, fs)
	if err != nil {
		return nil, err
	}
	defer scratch.Cleanup(ctx)

	reconciler := storage.Reconciler{Runner: runner, Scratch: scratch}
	result, err := reconciler.Reconcile(ctx, refs.Sources)
	if err != nil {
		return nil, err
	}

	orchestrator := push.Orchestrator{
		Runner:      runner,
		Fs:          fs,
		Credentials: push.Credentials{Username: cfg.Username, Password: cfg.Password},
		TLSVerify:   cfg.TLSVerify,
		DigestFile:  cfg.DigestFile,
		ExtraArgs:   cfg.ParsedExtraArgs(),
	}

	req := push.Request{
		References:       refs,
		SourceIsManifest: result.SourceIsManifest,
		Plan:             manifest.New(cfg.ParsedCompressionFormats(), refs.Sources[0]),
	}
	if result.AuthoritativeStoreIsForeign {
		req.ForeignStorageArgs = scratch.StorageArgs()
	}

	summary, err := orchestrator.Run(ctx, req)
	if err != nil {
		return summary, err
	}

	logger.Info("push complete", "images", len(summary.RegistryPaths), "digest", summary.Digest)
	return summary, nil
}

// hintAmbientCredentials reports whether the Docker CLI configuration
// already holds credentials for the destination registry. Informational
// only; nothing from the config is forwarded to podman.
func hintAmbientCredentials(ctx context.Context, registry string) {
	logger := logr.FromContextOrDiscard(ctx)

	host := registry
	if i := strings.Index(host, "/"); i > 0 {
		host = host[:i]
	}
	if host == "" {
		return
	}

	configFile := config.LoadDefaultConfigFile(io.Discard)
	auth, err := configFile.GetAuthConfig(host)
	if err == nil && (auth.Username != "" || auth.IdentityToken != "") {
		logger.Info("no credentials were provided, but the docker config holds a login for the registry; "+
			"podman applies its own authentication, not the docker config", "registry", host)
		return
	}
	logger.Info("no credentials were provided; the push is unauthenticated unless podman holds an existing login",
		"registry", host)
}
