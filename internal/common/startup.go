package common

import (
	"os"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/talos-perf/talos/internal/common/config"
	"github.com/talos-perf/talos/internal/common/logging"
	"github.com/talos-perf/talos/internal/common/taloserrors"
)

// LoadConfig unmarshals the settings known to v into config and validates the result.
// If path is non-empty, the file it names is read first; values already bound to v (e.g., flags) take precedence.
func LoadConfig(v *viper.Viper, cfg interface{}, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "error reading config file %s", path)
		}
		log.Debugf("Read config from %s", v.ConfigFileUsed())
	}
	if err := v.Unmarshal(cfg, config.CustomHooks...); err != nil {
		// Decode hook errors are flattened into strings by mapstructure.
		keys := []string{err.Error()}
		var decodeErr *mapstructure.Error
		if errors.As(err, &decodeErr) {
			keys = decodeErr.Errors
		}
		return errors.WithStack(&taloserrors.ErrConfiguration{
			Subsystem: "config",
			Reason:    "invalid values",
			Keys:      keys,
		})
	}
	return config.Validate(cfg)
}

func ConfigureLogging(debug bool) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stderr)
	if debug {
		log.SetLevel(log.DebugLevel)
	}
}

// ConfigureCommandLineLogging logs bare messages, for output read by people rather than log collectors.
func ConfigureCommandLineLogging() {
	log.SetFormatter(new(logging.CommandLineFormatter))
	log.SetOutput(os.Stderr)
}
