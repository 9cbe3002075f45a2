package cmd

import (
	"fmt"

	sharedErrors "github.com/khanhnv2901/idprecon/internal/shared/errors"
)

// ConfigFileError indicates that an explicitly requested config file could
// not be read or parsed.
type ConfigFileError struct {
	Path string
	Err  error
}

func (e *ConfigFileError) Error() string {
	return fmt.Sprintf("failed to read config file %s: %v", e.Path, e.Err)
}

func (e *ConfigFileError) Unwrap() []error {
	return []error{sharedErrors.ErrConfiguration, e.Err}
}

// InvalidSettingError signals a flag or config value that cannot be parsed.
type InvalidSettingError struct {
	Name  string
	Value string
	Err   error
}

func (e *InvalidSettingError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("invalid %s %q: %v", e.Name, e.Value, e.Err)
}

func (e *InvalidSettingError) Unwrap() []error {
	return []error{sharedErrors.ErrConfiguration, e.Err}
}
