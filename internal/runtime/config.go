// Package runtime holds the run-scoped configuration for a push.
package runtime

import (
	"strings"

	"github.com/spf13/viper"
)

// Config contains configuration details for a single push run. It is
// rendered once from viper and passed to every component; nothing in
// the run mutates it afterward.
type Config struct {
	Image    string
	Tags     string
	Registry string
	// Credential fields are forwarded to podman, never interpreted.
	Username  string
	Password  string
	TLSVerify string
	// DigestFile overrides the synthesized digest file path.
	DigestFile string
	// CompressionFormats is the raw newline-delimited format list.
	CompressionFormats string
	// ExtraArgs is the raw newline-delimited passthrough argument list.
	ExtraArgs string
	LogFile   string
	LogLevel  string
	Artifacts string
}

// NewConfigFrom will return a runtime.Config based on the stored inputs
// in the provided viper.Viper.
func NewConfigFrom(vcfg viper.Viper) (*Config, error) {
	cfg := Config{}
	cfg.Image = vcfg.GetString("image")
	cfg.Tags = vcfg.GetString("tags")
	cfg.Registry = vcfg.GetString("registry")
	cfg.Username = vcfg.GetString("username")
	cfg.Password = vcfg.GetString("password")
	cfg.TLSVerify = vcfg.GetString("tls_verify")
	cfg.DigestFile = vcfg.GetString("digestfile")
	cfg.CompressionFormats = vcfg.GetString("compression_formats")
	cfg.ExtraArgs = vcfg.GetString("extra_args")
	cfg.LogFile = vcfg.GetString("logfile")
	cfg.LogLevel = vcfg.GetString("loglevel")
	cfg.Artifacts = vcfg.GetString("artifacts")
	return &cfg, nil
}

// ParsedCompressionFormats splits the newline-delimited compression
// format list, then each line on whitespace.
func (c *Config) ParsedCompressionFormats() []string {
	return splitList(c.CompressionFormats)
}

// ParsedExtraArgs splits the newline-delimited passthrough arguments,
// then each line on whitespace.
func (c *Config) ParsedExtraArgs() []string {
	return splitList(c.ExtraArgs)
}

func splitList(raw string) []string {
	var values []string
	for _, line := range strings.Split(raw, "\n") {
		values = append(values, strings.Fields(line)...)
	}
	return values
}
