// Package cmd implements the command-line interface for registry-push.
package cmd

import (
	"context"
	"io"
	"os"

	"github.com/opdev/registry-push/internal/viper"
	"github.com/opdev/registry-push/version"

	"github.com/bombsimon/logrusr/v4"
	"github.com/go-logr/logr"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	spfviper "github.com/spf13/viper"
)

var configFileUsed bool

func init() {
	cobra.OnInitialize(func() { initConfig(viper.Instance()) })
}

func rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:              "registry-push",
		Short:            "Push locally stored container images to a registry.",
		Long:             "A utility that pushes container images from the podman container storage or the Docker daemon to a remote registry, assembling manifest lists when multiple compression formats are requested.",
		Version:          version.Version.String(),
		Args:             cobra.MinimumNArgs(1),
		PersistentPreRun: preRunConfig,
	}

	viper := viper.Instance()
	rootCmd.PersistentFlags().String("logfile", "", "Where the execution logfile will be written. (env: PUSH_LOGFILE)")
	_ = viper.BindPFlag("logfile", rootCmd.PersistentFlags().Lookup("logfile"))

	rootCmd.PersistentFlags().String("loglevel", "", "The verbosity of the tool itself. Ex. warn, debug, trace, info, error. (env: PUSH_LOGLEVEL)")
	_ = viper.BindPFlag("loglevel", rootCmd.PersistentFlags().Lookup("loglevel"))

	rootCmd.AddCommand(pushCmd())

	return rootCmd
}

func Execute() error {
	return rootCmd().ExecuteContext(context.Background())
}

func initConfig(viper *spfviper.Viper) {
	// set up ENV var support
	viper.SetEnvPrefix("push")
	viper.AutomaticEnv()

	// set up optional config file support
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	configFileUsed = true
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(spfviper.ConfigFileNotFoundError); ok {
			configFileUsed = false
		}
	}

	// Set up logging config defaults
	viper.SetDefault("logfile", DefaultLogFile)
	viper.SetDefault("loglevel", DefaultLogLevel)
	viper.SetDefault("artifacts", DefaultArtifactsDir)

	// Set up push defaults
	viper.SetDefault("tags", DefaultTag)
}

// preRunConfig is used by cobra.PreRun in all non-root commands to load all necessary configurations
func preRunConfig(cmd *cobra.Command, args []string) {
	viper := viper.Instance()
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{DisableColors: true})

	// set up logging
	logname := viper.GetString("logfile")
	logFile, err := os.OpenFile(logname, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err == nil {
		mw := io.MultiWriter(os.Stderr, logFile)
		l.SetOutput(mw)
	} else {
		l.Infof("Failed to log to file, using default stderr")
	}
	if ll, err := logrus.ParseLevel(viper.GetString("loglevel")); err == nil {
		l.SetLevel(ll)
	}

	if !configFileUsed {
		l.Debug("config file not found, proceeding without it")
	}

	logger := logrusr.New(l)
	ctx := logr.NewContext(cmd.Context(), logger)
	cmd.SetContext(ctx)
}
