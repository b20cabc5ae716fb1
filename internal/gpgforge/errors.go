package gpgforge

import (
	"errors"
	"fmt"
)

// Pipeline stages, used to classify failures. None of these are recovered
// locally: a partially built static chain is unsafe to link against, so the
// first failure aborts everything after it.
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageConfigure Stage = "configure"
	StageCompile   Stage = "compile"
	StageInstall   Stage = "install"
)

// FetchError: the remote artifact is unavailable or the archive is corrupt.
type FetchError struct {
	Library string
	URL     string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s (%s): %v", e.Library, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ConfigureError: configure rejected the flag set or the cross toolchain
// is missing a capability.
type ConfigureError struct {
	Library string
	Err     error
}

func (e *ConfigureError) Error() string {
	return fmt.Sprintf("configure %s: %v", e.Library, e.Err)
}

func (e *ConfigureError) Unwrap() error { return e.Err }

// CompileError: the source fails to build for the target.
type CompileError struct {
	Library string
	Err     error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile %s: %v", e.Library, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// InstallError: filesystem write failure while populating the prefix.
type InstallError struct {
	Library string
	Err     error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("install %s: %v", e.Library, e.Err)
}

func (e *InstallError) Unwrap() error { return e.Err }

// LinkResolutionError: a downstream consumer probed for link environment
// state that is missing or empty. This is fatal rather than a fallback to
// dynamic linking.
type LinkResolutionError struct {
	Variable string
}

func (e *LinkResolutionError) Error() string {
	return fmt.Sprintf("link environment variable %s is missing or empty", e.Variable)
}

var errUnknownLibrary = errors.New("unknown library")

// stageError wraps err into the typed error for the given stage.
func stageError(stage Stage, library string, err error) error {
	switch stage {
	case StageFetch:
		return &FetchError{Library: library, Err: err}
	case StageConfigure:
		return &ConfigureError{Library: library, Err: err}
	case StageCompile:
		return &CompileError{Library: library, Err: err}
	case StageInstall:
		return &InstallError{Library: library, Err: err}
	default:
		return fmt.Errorf("%s %s: %w", stage, library, err)
	}
}
