package gpgforge

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestFinalAssemblyRunsTestCommandWithLinkEnv(t *testing.T) {
	setTestDirs(t)
	projectDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(projectDir, "Cargo.toml"), []byte("[package]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{Values: map[string]string{
		"GPGFORGE_PROJECT_DIR": projectDir,
	}}

	deps := []Dependency{{Name: "libgpg-error", LinkName: "gpg-error"}}
	linkEnv := publishLinkEnv([]*BuildResult{
		{Link: newLinkDescriptor(&deps[0], Prefix)},
	})

	var calls [][]string
	var testEnv []string
	execCtx := NewExecutor(context.Background())
	execCtx.RunFunc = func(cmd *exec.Cmd) error {
		calls = append(calls, cmd.Args)
		if cmd.Args[0] == "sh" {
			testEnv = cmd.Env
		}
		return nil
	}

	if err := finalAssembly(cfg, execCtx, linkEnv, deps); err != nil {
		t.Fatalf("finalAssembly: %v", err)
	}

	if len(calls) != 2 {
		t.Fatalf("expected copy then test command, got %v", calls)
	}
	if filepath.Base(calls[0][0]) != "cp" {
		t.Errorf("first call should copy the project tree: %v", calls[0])
	}
	if got := strings.Join(calls[1], " "); got != "sh -c cargo test" {
		t.Errorf("default test command = %q", got)
	}

	found := false
	for _, kv := range testEnv {
		if kv == "LIBGPG_ERROR_STATIC=yes" {
			found = true
		}
	}
	if !found {
		t.Error("link environment not merged into the test command environment")
	}
}

func TestFinalAssemblyCustomTestCommand(t *testing.T) {
	setTestDirs(t)
	projectDir := t.TempDir()
	cfg := &Config{Values: map[string]string{
		"GPGFORGE_PROJECT_DIR": projectDir,
		"GPGFORGE_TEST_CMD":    "make check",
	}}

	deps := []Dependency{{Name: "libassuan", LinkName: "assuan"}}
	linkEnv := publishLinkEnv([]*BuildResult{
		{Link: newLinkDescriptor(&deps[0], Prefix)},
	})

	var gotCmd string
	execCtx := NewExecutor(context.Background())
	execCtx.RunFunc = func(cmd *exec.Cmd) error {
		if cmd.Args[0] == "sh" {
			gotCmd = cmd.Args[2]
		}
		return nil
	}

	if err := finalAssembly(cfg, execCtx, linkEnv, deps); err != nil {
		t.Fatalf("finalAssembly: %v", err)
	}
	if gotCmd != "make check" {
		t.Errorf("test command = %q, want make check", gotCmd)
	}
}

func TestFinalAssemblyPropagatesTestExitCode(t *testing.T) {
	setTestDirs(t)
	projectDir := t.TempDir()
	cfg := &Config{Values: map[string]string{
		"GPGFORGE_PROJECT_DIR": projectDir,
	}}

	deps := []Dependency{{Name: "libgpg-error", LinkName: "gpg-error"}}
	linkEnv := publishLinkEnv([]*BuildResult{
		{Link: newLinkDescriptor(&deps[0], Prefix)},
	})

	exitErr := realExitError(t, 5)
	execCtx := NewExecutor(context.Background())
	execCtx.RunFunc = func(cmd *exec.Cmd) error {
		if cmd.Args[0] == "sh" {
			return exitErr
		}
		return nil
	}

	err := finalAssembly(cfg, execCtx, linkEnv, deps)
	if err == nil {
		t.Fatal("expected test command failure")
	}
	if got := exitCodeForError(err); got != 5 {
		t.Errorf("exit code %d, want the test command's 5", got)
	}
}

func TestFinalAssemblyRefusesIncompleteEnv(t *testing.T) {
	setTestDirs(t)
	cfg := &Config{Values: map[string]string{
		"GPGFORGE_PROJECT_DIR": t.TempDir(),
	}}
	deps := []Dependency{{Name: "libgcrypt", LinkName: "gcrypt"}}

	execCtx := NewExecutor(context.Background())
	execCtx.RunFunc = func(cmd *exec.Cmd) error {
		t.Fatal("nothing may run with an incomplete link environment")
		return nil
	}

	err := finalAssembly(cfg, execCtx, nil, deps)
	var lre *LinkResolutionError
	if !errors.As(err, &lre) {
		t.Fatalf("expected LinkResolutionError, got %v", err)
	}
}

func TestFinalAssemblyRequiresProjectDir(t *testing.T) {
	setTestDirs(t)
	cfg := &Config{Values: map[string]string{}}
	deps := []Dependency{{Name: "libgpg-error", LinkName: "gpg-error"}}
	linkEnv := publishLinkEnv([]*BuildResult{
		{Link: newLinkDescriptor(&deps[0], Prefix)},
	})

	execCtx := NewExecutor(context.Background())
	execCtx.RunFunc = func(cmd *exec.Cmd) error { return nil }

	if err := finalAssembly(cfg, execCtx, linkEnv, deps); err == nil {
		t.Error("expected error when GPGFORGE_PROJECT_DIR is unset")
	}
}
