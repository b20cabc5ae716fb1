package gpgforge

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestRemoveTreeDirect(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	if err := os.MkdirAll(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}

	oldRoot := RootExec
	RootExec = NewExecutor(context.Background())
	RootExec.RunFunc = func(cmd *exec.Cmd) error {
		t.Fatal("removable tree must not trigger elevation")
		return nil
	}
	t.Cleanup(func() { RootExec = oldRoot })

	if err := removeTree(dir); err != nil {
		t.Fatalf("removeTree: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("tree still present after removeTree")
	}
}

func TestRemoveTreeMissingPathIsNoop(t *testing.T) {
	if err := removeTree(filepath.Join(t.TempDir(), "never-created")); err != nil {
		t.Errorf("removing a missing tree should be a no-op: %v", err)
	}
}
