package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/tiercache/pkg/pipeline"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags and the cross-field rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if _, err := pipeline.ParseMemoryClass(cfg.Engine.Pipeline.MemoryClass); err != nil {
		return fmt.Errorf("pipeline.memory_class: %w", err)
	}
	for name, b := range map[string]interface{ Validate() error }{
		"pipeline.budgets.generous":    cfg.Engine.Pipeline.Budgets.Generous,
		"pipeline.budgets.constrained": cfg.Engine.Pipeline.Budgets.Constrained,
		"pipeline.budgets.texture":     cfg.Engine.Pipeline.Budgets.Texture,
	} {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry.endpoint is required when telemetry is enabled")
	}

	if err := cfg.Repository.Validate(); err != nil {
		return fmt.Errorf("repository: %w", err)
	}

	return nil
}

// formatValidationError flattens validator errors into one line per field.
func formatValidationError(err error) error {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		msg := fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag())
		if fe.Param() != "" {
			msg += fmt.Sprintf(" (%s=%s)", fe.Tag(), fe.Param())
		}
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}
