// Package viper carries the process-wide configuration instance.
// Commands bind their flags against this instance instead of Viper's
// package-level singleton so tests can inspect and reset it.
package viper

import (
	"sync"

	spfviper "github.com/spf13/viper"
)

var (
	mu  sync.Mutex
	cfg *spfviper.Viper
)

// Instance returns the shared configuration, creating it on first use.
func Instance() *spfviper.Viper {
	mu.Lock()
	defer mu.Unlock()
	if cfg == nil {
		cfg = spfviper.New()
	}
	return cfg
}
