package cmd

import "github.com/opdev/registry-push/artifacts"

const (
	DefaultLogFile      = "registry-push.log"
	DefaultLogLevel     = "info"
	DefaultTag          = "latest"
	DefaultArtifactsDir = artifacts.DefaultArtifactsDir
)
