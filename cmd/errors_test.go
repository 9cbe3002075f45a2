package cmd

import (
	"errors"
	"io/fs"
	"testing"

	sharedErrors "github.com/khanhnv2901/idprecon/internal/shared/errors"
)

func TestConfigFileError(t *testing.T) {
	err := &ConfigFileError{Path: "/tmp/idprecon.yaml", Err: fs.ErrNotExist}
	want := "failed to read config file /tmp/idprecon.yaml: file does not exist"
	if err.Error() != want {
		t.Fatalf("expected %s, got %s", want, err.Error())
	}
	if !errors.Is(err, sharedErrors.ErrConfiguration) {
		t.Fatalf("expected ConfigFileError to match ErrConfiguration")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected ConfigFileError to match the underlying error")
	}
}

func TestInvalidSettingError(t *testing.T) {
	cause := errors.New("unrecognized level")

	err := &InvalidSettingError{Name: "log_level", Value: "loud", Err: cause}
	want := `invalid log_level "loud": unrecognized level`
	if err.Error() != want {
		t.Fatalf("expected %s, got %s", want, err.Error())
	}

	err = &InvalidSettingError{Name: "keyword", Err: cause}
	want = "invalid keyword: unrecognized level"
	if err.Error() != want {
		t.Fatalf("expected %s, got %s", want, err.Error())
	}

	if !errors.Is(err, sharedErrors.ErrConfiguration) || !errors.Is(err, cause) {
		t.Fatalf("expected InvalidSettingError to match ErrConfiguration and its cause")
	}
}
