package gpgforge

import (
	"errors"
	"testing"
)

func TestStageErrorTypes(t *testing.T) {
	cause := errors.New("exit status 2")

	var fe *FetchError
	if err := stageError(StageFetch, "libgcrypt", cause); !errors.As(err, &fe) {
		t.Errorf("fetch stage produced %T", err)
	}

	var ce *ConfigureError
	if err := stageError(StageConfigure, "libgcrypt", cause); !errors.As(err, &ce) {
		t.Errorf("configure stage produced %T", err)
	}

	var me *CompileError
	if err := stageError(StageCompile, "libgcrypt", cause); !errors.As(err, &me) {
		t.Errorf("compile stage produced %T", err)
	}

	var ie *InstallError
	if err := stageError(StageInstall, "libgcrypt", cause); !errors.As(err, &ie) {
		t.Errorf("install stage produced %T", err)
	}
}

func TestTypedErrorsPreserveCause(t *testing.T) {
	cause := errors.New("connection refused")
	wrapped := []error{
		&FetchError{Library: "libgpg-error", URL: "https://example.org/x", Err: cause},
		&ConfigureError{Library: "libgpg-error", Err: cause},
		&CompileError{Library: "libgpg-error", Err: cause},
		&InstallError{Library: "libgpg-error", Err: cause},
	}
	for _, err := range wrapped {
		if !errors.Is(err, cause) {
			t.Errorf("%T does not unwrap to its cause", err)
		}
	}
}
