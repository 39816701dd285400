package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags and the cross-field rules of s.
func Validate(s *Settings) error {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (%s)", fe.Namespace(), fe.Tag(), fe.Param()))
			}
			return fmt.Errorf("invalid settings: %s", strings.Join(msgs, "; "))
		}
		return err
	}

	if s.Telemetry.Enabled && s.Telemetry.Endpoint == "" {
		return errors.New("invalid settings: telemetry.endpoint is required when telemetry is enabled")
	}
	if s.Telemetry.Profiling.Enabled && s.Telemetry.Profiling.Endpoint == "" {
		return errors.New("invalid settings: telemetry.profiling.endpoint is required when profiling is enabled")
	}
	return nil
}
