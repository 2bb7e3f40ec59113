// Package config provides YAML-based configuration loading with environment variable expansion.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Validator is an interface for configuration validation.
type Validator interface {
	Validate() error
}

// ErrNotFound is returned by Load when the config file does not exist.
var ErrNotFound = errors.New("config file not found")

// Load decodes a YAML file over target, expanding ${VAR} references from the
// environment first. Fields absent from the file keep the values target
// already holds, so callers pass a populated default. Targets implementing
// Validator are validated after decoding.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, filename)
		}
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}
	if err := Decode(data, target); err != nil {
		return fmt.Errorf("config file %s: %w", filename, err)
	}
	return nil
}

// LoadOptional is Load, except that a missing file leaves target at its
// defaults (still validated).
func LoadOptional[T any](filename string, target *T) (found bool, err error) {
	err = Load(filename, target)
	if errors.Is(err, ErrNotFound) {
		return false, validate(target)
	}
	return err == nil, err
}

// Decode expands environment references in data, unmarshals it over target
// and validates the result.
func Decode[T any](data []byte, target *T) error {
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), target); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return validate(target)
}

func validate[T any](target *T) error {
	if validator, ok := any(target).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}
