package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate checks the configuration with struct tags plus the rules
// that cannot be expressed in tags.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	if cfg.Naming.ServicePort == cfg.Naming.RegistrationPort {
		return fmt.Errorf("naming: service_port and registration_port must differ (both %d)",
			cfg.Naming.ServicePort)
	}

	if cfg.Storage.DataPort != 0 && cfg.Storage.DataPort == cfg.Storage.CommandPort {
		return fmt.Errorf("storage: data_port and command_port must differ (both %d)",
			cfg.Storage.DataPort)
	}

	switch cfg.Storage.Content.Type {
	case "fs":
		root, ok := cfg.Storage.Content.Fs["root"].(string)
		if !ok || root == "" {
			return fmt.Errorf("storage.content.fs: root is required")
		}
	case "memory":
		// nothing to check
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly
// messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
