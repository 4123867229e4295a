package configuration

import (
	"github.com/spf13/viper"

	"github.com/talos-perf/talos/internal/talos/transport"
)

const DefaultFallbackFile = "results.out"

// SetDefaults registers the defaults of every TalosConfig key that has one.
func SetDefaults(v *viper.Viper) {
	transportConfig := transport.DefaultConfig()
	v.SetDefault("title", "qm-pxp01")
	v.SetDefault("filters", []string{"ignore_max", "mean"})
	v.SetDefault("transport.retryAttempts", transportConfig.RetryAttempts)
	v.SetDefault("transport.retryBackoff", transportConfig.RetryBackoff)
	v.SetDefault("transport.timeout", transportConfig.Timeout)
	v.SetDefault("fallbackFile", DefaultFallbackFile)
	v.SetDefault("summaryFormat", "yaml")
}
