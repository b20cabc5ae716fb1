package gpgforge

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestEnsureCacheDirWritable(t *testing.T) {
	setTestDirs(t)

	// A writable location must never trigger elevation.
	oldRoot := RootExec
	RootExec = NewExecutor(context.Background())
	RootExec.RunFunc = func(cmd *exec.Cmd) error {
		t.Fatal("elevation must not run for a writable cache dir")
		return nil
	}
	t.Cleanup(func() { RootExec = oldRoot })

	if err := ensureCacheDir(); err != nil {
		t.Fatalf("ensureCacheDir: %v", err)
	}
	if fi, err := os.Stat(CacheStore); err != nil || !fi.IsDir() {
		t.Errorf("cache dir not created: %v", err)
	}
}

func TestCreateCacheDirElevated(t *testing.T) {
	setTestDirs(t)
	CacheStore = filepath.Join(t.TempDir(), "var", "cache", "sources")

	var calls [][]string
	oldRoot := RootExec
	RootExec = NewExecutor(context.Background())
	RootExec.ShouldRunAsRoot = true
	RootExec.RunFunc = func(cmd *exec.Cmd) error {
		calls = append(calls, cmd.Args)
		return nil
	}
	t.Cleanup(func() { RootExec = oldRoot })

	if err := createCacheDirElevated(); err != nil {
		t.Fatalf("createCacheDirElevated: %v", err)
	}

	if len(calls) != 2 {
		t.Fatalf("expected mkdir then chown, got %v", calls)
	}
	if got := strings.Join(calls[0], " "); got != "mkdir -p "+CacheStore {
		t.Errorf("first elevated call = %q", got)
	}
	wantOwner := fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid())
	if calls[1][0] != "chown" || calls[1][1] != wantOwner || calls[1][2] != CacheStore {
		t.Errorf("second elevated call = %v, want chown %s %s", calls[1], wantOwner, CacheStore)
	}
}

func TestCreateCacheDirElevatedFailure(t *testing.T) {
	setTestDirs(t)

	oldRoot := RootExec
	RootExec = NewExecutor(context.Background())
	RootExec.RunFunc = func(cmd *exec.Cmd) error {
		return fmt.Errorf("sudo: a password is required")
	}
	t.Cleanup(func() { RootExec = oldRoot })

	if err := createCacheDirElevated(); err == nil {
		t.Error("expected error when elevation fails")
	}
}
