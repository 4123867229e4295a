package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/talos-perf/talos/internal/common/taloserrors"
)

// Validate checks config against its validate struct tags.
// Every invalid field is logged and named in the returned ErrConfiguration.
func Validate(config interface{}) error {
	err := validator.New().Struct(config)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return errors.WithStack(err)
	}
	LogValidationErrors(validationErrors)
	fields := make([]string, len(validationErrors))
	for i, e := range validationErrors {
		fields[i] = stripPrefix(e.Namespace())
	}
	return errors.WithStack(&taloserrors.ErrConfiguration{
		Subsystem: "config",
		Reason:    "invalid fields",
		Keys:      fields,
	})
}

func LogValidationErrors(err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, err := range validationErrors {
			fieldName := stripPrefix(err.Namespace())
			tag := err.Tag()
			switch tag {
			case "required":
				log.Errorf("ConfigError: Field %s is required but was not found", fieldName)
			default:
				log.Errorf("ConfigError: Field %s has invalid value %v: %s", fieldName, err.Value(), tag)
			}
		}
	}
}

func stripPrefix(s string) string {
	if idx := strings.Index(s, "."); idx != -1 {
		return s[idx+1:]
	}
	return s
}
