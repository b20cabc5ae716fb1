package gpgforge

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLinkDescriptorEnvVars(t *testing.T) {
	dep := Dependency{Name: "libgcrypt", LinkName: "gcrypt"}
	desc := newLinkDescriptor(&dep, "/opt/forge/prefix")

	want := map[string]string{
		"LIBGCRYPT_INCLUDE": "/opt/forge/prefix/include",
		"LIBGCRYPT_LIB_DIR": "/opt/forge/prefix/lib",
		"LIBGCRYPT_LIBS":    "gcrypt",
		"LIBGCRYPT_STATIC":  "yes",
	}
	if diff := cmp.Diff(want, desc.EnvVars()); diff != "" {
		t.Errorf("EnvVars mismatch (-want +got):\n%s", diff)
	}

	if got := desc.ArchivePath(); got != "/opt/forge/prefix/lib/libgcrypt.a" {
		t.Errorf("ArchivePath = %q", got)
	}
}

func TestPublishLinkEnvSorted(t *testing.T) {
	prefix := "/opt/forge/prefix"
	results := []*BuildResult{
		{Link: newLinkDescriptor(&Dependency{Name: "libgpg-error", LinkName: "gpg-error"}, prefix)},
		{Link: newLinkDescriptor(&Dependency{Name: "libassuan", LinkName: "assuan"}, prefix)},
	}

	env := publishLinkEnv(results)
	want := []string{
		"LIBASSUAN_INCLUDE=/opt/forge/prefix/include",
		"LIBASSUAN_LIBS=assuan",
		"LIBASSUAN_LIB_DIR=/opt/forge/prefix/lib",
		"LIBASSUAN_STATIC=yes",
		"LIBGPG_ERROR_INCLUDE=/opt/forge/prefix/include",
		"LIBGPG_ERROR_LIBS=gpg-error",
		"LIBGPG_ERROR_LIB_DIR=/opt/forge/prefix/lib",
		"LIBGPG_ERROR_STATIC=yes",
	}
	if diff := cmp.Diff(want, env); diff != "" {
		t.Errorf("published env mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveLinkEnvComplete(t *testing.T) {
	deps := []Dependency{{Name: "libgpg-error", LinkName: "gpg-error"}}
	results := []*BuildResult{
		{Link: newLinkDescriptor(&deps[0], "/p")},
	}
	if err := resolveLinkEnv(publishLinkEnv(results), deps); err != nil {
		t.Errorf("resolveLinkEnv on complete env: %v", err)
	}
}

func TestResolveLinkEnvMissingVariable(t *testing.T) {
	deps := []Dependency{{Name: "libgcrypt", LinkName: "gcrypt"}}
	env := []string{
		"LIBGCRYPT_INCLUDE=/p/include",
		"LIBGCRYPT_LIB_DIR=/p/lib",
		"LIBGCRYPT_STATIC=yes",
		// LIBGCRYPT_LIBS absent
	}

	err := resolveLinkEnv(env, deps)
	if err == nil {
		t.Fatal("expected LinkResolutionError, got nil")
	}
	var lre *LinkResolutionError
	if !errors.As(err, &lre) {
		t.Fatalf("expected LinkResolutionError, got %T: %v", err, err)
	}
	if lre.Variable != "LIBGCRYPT_LIBS" {
		t.Errorf("Variable = %q, want LIBGCRYPT_LIBS", lre.Variable)
	}
}

func TestResolveLinkEnvEmptyValue(t *testing.T) {
	deps := []Dependency{{Name: "libassuan", LinkName: "assuan"}}
	env := []string{
		"LIBASSUAN_INCLUDE=",
		"LIBASSUAN_LIB_DIR=/p/lib",
		"LIBASSUAN_LIBS=assuan",
		"LIBASSUAN_STATIC=yes",
	}
	var lre *LinkResolutionError
	if err := resolveLinkEnv(env, deps); !errors.As(err, &lre) {
		t.Fatalf("expected LinkResolutionError for empty value, got %v", err)
	}
}
