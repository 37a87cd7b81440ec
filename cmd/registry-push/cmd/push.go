package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/opdev/registry-push/artifacts"
	"github.com/opdev/registry-push/internal/cli"
	"github.com/opdev/registry-push/internal/lib"
	"github.com/opdev/registry-push/internal/runtime"
	"github.com/opdev/registry-push/internal/viper"
	"github.com/opdev/registry-push/version"
)

// outputsFilename is the artifact holding the final digest and pushed
// registry paths.
const outputsFilename = "outputs.json"

func pushCmd() *cobra.Command {
	pushCmd := &cobra.Command{
		Use:   "push",
		Short: "Push images to a remote registry",
		Long: "This command reconciles the requested tags against the podman container storage and the Docker daemon, " +
			"then pushes the authoritative copy of each image to the destination registry.",
		// this fmt.Sprintf is in place to keep spacing consistent with cobras two spaces that's used in: Usage, Flags, etc
		Example: fmt.Sprintf("  %s", `registry-push push --image my-app --tags "latest v1" --registry quay.io/myorg`),
		RunE:    pushRunE,
	}

	bindPushFlags(pushCmd.Flags())

	return pushCmd
}

func bindPushFlags(flags *pflag.FlagSet) {
	viper := viper.Instance()

	flags.String("image", "", "Name of the image to push. (env: PUSH_IMAGE)")
	_ = viper.BindPFlag("image", flags.Lookup("image"))

	flags.String("tags", "", "Whitespace-delimited tags of the image to push. Defaults to \"latest\".\n"+
		"Tags may instead be full image names, in which case the image and registry inputs are ignored. (env: PUSH_TAGS)")
	_ = viper.BindPFlag("tags", flags.Lookup("tags"))

	flags.String("registry", "", "Registry host, with an optional namespace, to push to. Ex. quay.io/myorg (env: PUSH_REGISTRY)")
	_ = viper.BindPFlag("registry", flags.Lookup("registry"))

	flags.String("username", "", "Username for registry authentication. (env: PUSH_USERNAME)")
	_ = viper.BindPFlag("username", flags.Lookup("username"))

	flags.String("password", "", "Password or token for registry authentication. (env: PUSH_PASSWORD)")
	_ = viper.BindPFlag("password", flags.Lookup("password"))

	flags.String("tls-verify", "", "Require HTTPS and verify certificates when talking to the registry. Forwarded to podman as-is. (env: PUSH_TLS_VERIFY)")
	_ = viper.BindPFlag("tls_verify", flags.Lookup("tls-verify"))

	flags.String("digestfile", "", "Path to which the pushed image digest is written.\n"+
		"Defaults to a name derived from the first source image, in the current directory. (env: PUSH_DIGESTFILE)")
	_ = viper.BindPFlag("digestfile", flags.Lookup("digestfile"))

	flags.String("compression-formats", "", "Newline-delimited compression formats. Ex. gzip, zstd, zstd:chunked.\n"+
		"Two or more formats push per-format images and assemble them into a manifest list. (env: PUSH_COMPRESSION_FORMATS)")
	_ = viper.BindPFlag("compression_formats", flags.Lookup("compression-formats"))

	flags.String("extra-args", "", "Newline-delimited extra arguments appended to every podman push invocation. (env: PUSH_EXTRA_ARGS)")
	_ = viper.BindPFlag("extra_args", flags.Lookup("extra-args"))
}

// pushRunE executes the push using the user args to inform the execution.
func pushRunE(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger, err := logr.FromContext(ctx)
	if err != nil {
		return fmt.Errorf("invalid logging configuration")
	}
	logger.Info("registry-push version", "version", version.Version.String())

	// Render the Viper configuration as a runtime.Config
	cfg, err := runtime.NewConfigFrom(*viper.Instance())
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	artifactsWriter, err := artifacts.NewFilesystemWriter(artifacts.WithDirectory(cfg.Artifacts))
	if err != nil {
		return err
	}
	ctx = artifacts.ContextWithWriter(ctx, artifactsWriter)

	summary, err := lib.RunPush(ctx, cfg, cli.NewCommandRunner(), afero.NewOsFs())
	if err != nil {
		return err
	}

	outputs := runOutputs{
		Digest:        summary.Digest,
		RegistryPaths: summary.RegistryPaths,
	}
	outputsJSON, err := json.Marshal(outputs)
	if err != nil {
		return err
	}

	if path, err := artifactsWriter.WriteFile(outputsFilename, bytes.NewReader(outputsJSON)); err != nil {
		logger.Info("could not write the outputs artifact", "error", err.Error())
	} else {
		logger.V(1).Info("wrote outputs artifact", "path", path)
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(outputsJSON))

	return nil
}

// runOutputs is the externally consumed result of a run: the digest of
// the last pushed image and every destination registry path, in push
// order.
type runOutputs struct {
	Digest        string   `json:"digest"`
	RegistryPaths []string `json:"registry-paths"`
}
