// Package push sequences the podman commands that move images to the
// destination registry and captures the resulting digests.
package push

import (
	"context"
	"strings"

	"github.com/go-logr/logr"
	"github.com/spf13/afero"

	"github.com/opdev/registry-push/internal/cli"
	"github.com/opdev/registry-push/internal/image"
	"github.com/opdev/registry-push/internal/log"
	"github.com/opdev/registry-push/internal/manifest"
)

const digestFileSuffix = "_digest.txt"

// forbiddenPathCharacters cannot appear in a synthesized digest file
// name and are replaced with dashes.
const forbiddenPathCharacters = `/\?%*:|"<>`

// Credentials is the username/password pair forwarded to podman.
type Credentials struct {
	Username string
	Password string
}

// Orchestrator issues the push commands for a run. Pushes are strictly
// sequential and fail fast: a failed command aborts everything after it.
type Orchestrator struct {
	Runner      cli.CommandRunner
	Fs          afero.Fs
	Credentials Credentials
	// TLSVerify is forwarded as --tls-verify when non-empty.
	TLSVerify string
	// DigestFile overrides the synthesized digest file path.
	DigestFile string
	// ExtraArgs are appended last so callers can override generated flags.
	ExtraArgs []string
}

// Request carries the reconciliation outcome into the push sequencing.
type Request struct {
	References       image.References
	SourceIsManifest bool
	// ForeignStorageArgs scope podman to the scratch storage when the
	// Docker daemon copy is authoritative. Nil means the container
	// storage is authoritative.
	ForeignStorageArgs []string
	// Plan, when non-nil, assembles a manifest list from per-format
	// pushes before the destination tags are pushed.
	Plan *manifest.Plan
}

// Record describes one completed push. Records are never mutated after
// aggregation.
type Record struct {
	Source      image.Reference
	Destination image.Reference
	// Digest is empty when the digest file could not be read.
	Digest string
}

// Summary aggregates a completed run: every destination pushed, in
// order, and the last captured digest.
type Summary struct {
	Records       []Record
	RegistryPaths []string
	Digest        string
}

func (s *Summary) append(record Record) {
	s.Records = append(s.Records, record)
	s.RegistryPaths = append(s.RegistryPaths, record.Destination.String())
	if record.Digest != "" {
		s.Digest = record.Digest
	}
}

// Run pushes every destination reference in order and returns the
// aggregated summary.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Summary, error) {
	logger := logr.FromContextOrDiscard(ctx)

	digestFile := o.DigestFile
	if digestFile == "" {
		digestFile = DefaultDigestFileName(req.References.Sources[0])
		logger.V(log.DBG).Info("no digest file was specified", "using", digestFile)
	}

	credentialArgs := o.credentialArgs(ctx)

	summary := &Summary{}

	manifestPush := req.SourceIsManifest
	if req.Plan != nil {
		if err := o.assembleManifestList(ctx, req, credentialArgs, digestFile, summary); err != nil {
			return summary, err
		}
		// The assembled list is itself a manifest from here on.
		manifestPush = true
	}

	for i, source := range req.References.Sources {
		destination := req.References.Destinations[i]

		// An assembled list is created in the active store under its
		// plan name; only sources pulled from the daemon carry the
		// canonical name.
		pushSource := source
		if req.Plan != nil {
			pushSource = req.Plan.List
		} else if req.ForeignStorageArgs != nil {
			pushSource = pushSource.Canonical()
		}

		digest, err := o.push(ctx, pushSpec{
			source:       pushSource.String(),
			destination:  destination.String(),
			storageArgs:  req.ForeignStorageArgs,
			manifestPush: manifestPush,
		}, credentialArgs, digestFile)
		if err != nil {
			return summary, err
		}

		summary.append(Record{Source: source, Destination: destination, Digest: digest})
		logger.Info("pushed image", "source", pushSource.String(), "destination", destination.String())
	}

	return summary, nil
}

// assembleManifestList pushes each per-format image, creates the empty
// manifest list, and attaches every pushed member. List creation must
// precede all member additions; any failure aborts the plan.
func (o *Orchestrator) assembleManifestList(ctx context.Context, req Request, credentialArgs []string, digestFile string, summary *Summary) error {
	logger := logr.FromContextOrDiscard(ctx)

	base := req.References.Sources[0]
	destinationRepo := req.References.Destinations[0].Repository

	pushSource := base
	if req.ForeignStorageArgs != nil {
		pushSource = pushSource.Canonical()
	}

	memberDestinations := make([]image.Reference, 0, len(req.Plan.Members))
	for _, member := range req.Plan.Members {
		memberDestination := image.Reference{Repository: destinationRepo, Tag: member.Image.Tag}

		digest, err := o.push(ctx, pushSpec{
			source:            pushSource.String(),
			destination:       memberDestination.String(),
			storageArgs:       req.ForeignStorageArgs,
			compressionFormat: member.Format,
		}, credentialArgs, digestFile)
		if err != nil {
			return err
		}

		summary.append(Record{Source: base, Destination: memberDestination, Digest: digest})
		logger.Info("pushed manifest list member", "destination", memberDestination.String(), "format", member.Format)
		memberDestinations = append(memberDestinations, memberDestination)
	}

	executable, args := cli.NewCommand("podman").
		Arg(req.ForeignStorageArgs...).
		Arg("manifest", "create", req.Plan.List.String()).
		Argv()
	if _, err := o.Runner.Run(ctx, executable, args, cli.Options{GroupLabel: "manifest create", FailOnNonZero: true}); err != nil {
		return err
	}

	for i, member := range req.Plan.Members {
		add := cli.NewCommand("podman").
			Arg(req.ForeignStorageArgs...).
			Arg("manifest", "add")
		if member.Annotation != "" {
			add.Flag("--annotation", member.Annotation)
		}
		add.Arg(req.Plan.List.String(), "docker://"+memberDestinations[i].String())

		executable, args := add.Argv()
		if _, err := o.Runner.Run(ctx, executable, args, cli.Options{GroupLabel: "manifest add", FailOnNonZero: true}); err != nil {
			return err
		}
	}

	return nil
}

type pushSpec struct {
	source            string
	destination       string
	storageArgs       []string
	manifestPush      bool
	compressionFormat string
}

// push runs a single podman push and returns the digest captured from
// the digest file. A failed digest read is advisory: the push already
// succeeded, so an empty digest is returned instead of an error.
func (o *Orchestrator) push(ctx context.Context, spec pushSpec, credentialArgs []string, digestFile string) (string, error) {
	logger := logr.FromContextOrDiscard(ctx)

	command := cli.NewCommand("podman").Arg(spec.storageArgs...)
	if spec.manifestPush {
		command.Arg("manifest", "push", "--all")
	} else {
		command.Arg("push")
	}
	command.Arg(spec.source, spec.destination)
	if spec.compressionFormat != "" {
		command.Flag("--compression-format", spec.compressionFormat)
	}
	command.Flag("--digestfile", digestFile)
	if o.TLSVerify != "" {
		command.Arg("--tls-verify=" + o.TLSVerify)
	}
	command.Arg(credentialArgs...)
	command.Arg(o.ExtraArgs...)

	executable, args := command.Argv()
	if _, err := o.Runner.Run(ctx, executable, args, cli.Options{GroupLabel: "push", FailOnNonZero: true}); err != nil {
		return "", err
	}

	digest, err := o.readDigest(digestFile)
	if err != nil {
		logger.Info("could not read the digest file; omitting the digest",
			"digestfile", digestFile, "destination", spec.destination, "error", err.Error())
		return "", nil
	}
	return digest, nil
}

func (o *Orchestrator) readDigest(digestFile string) (string, error) {
	contents, err := afero.ReadFile(o.Fs, digestFile)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(contents)), nil
}

// credentialArgs builds the --creds flag. A half-supplied credential
// pair is advisory: the push proceeds unauthenticated.
func (o *Orchestrator) credentialArgs(ctx context.Context) []string {
	logger := logr.FromContextOrDiscard(ctx)

	switch {
	case o.Credentials.Username != "" && o.Credentials.Password != "":
		return []string{"--creds", o.Credentials.Username + ":" + o.Credentials.Password}
	case o.Credentials.Username != "" || o.Credentials.Password != "":
		logger.Info("only one of username and password was provided; pushing unauthenticated")
	}
	return nil
}

// DefaultDigestFileName synthesizes a digest file name from the first
// source reference, replacing characters that cannot appear in a path.
func DefaultDigestFileName(first image.Reference) string {
	sanitized := strings.Map(func(r rune) rune {
		if strings.ContainsRune(forbiddenPathCharacters, r) {
			return '-'
		}
		return r
	}, first.String())
	return sanitized + digestFileSuffix
}
