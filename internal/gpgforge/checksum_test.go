package gpgforge

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestRecordAndVerifyChecksum(t *testing.T) {
	setTestDirs(t)
	if err := os.MkdirAll(CacheStore, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{Values: map[string]string{}}
	dep := Dependency{Name: "libgpg-error", Version: "1.39", LinkName: "gpg-error"}
	path := filepath.Join(CacheStore, dep.tarballName(cfg))
	if err := os.WriteFile(path, []byte("tarball contents"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := recordChecksum(dep.tarballName(cfg), path); err != nil {
		t.Fatalf("recordChecksum: %v", err)
	}
	if err := verifyChecksum(&dep, cfg, path); err != nil {
		t.Errorf("verify of freshly pinned tarball failed: %v", err)
	}
}

func TestVerifyChecksumMismatch(t *testing.T) {
	setTestDirs(t)
	if err := os.MkdirAll(CacheStore, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{Values: map[string]string{}}
	dep := Dependency{Name: "libassuan", Version: "2.5.4", LinkName: "assuan"}
	path := filepath.Join(CacheStore, dep.tarballName(cfg))
	if err := os.WriteFile(path, []byte("original"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := recordChecksum(dep.tarballName(cfg), path); err != nil {
		t.Fatal(err)
	}

	// Corrupt the cached archive after pinning.
	if err := os.WriteFile(path, []byte("tampered"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := verifyChecksum(&dep, cfg, path)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError on mismatch, got %v", err)
	}
	if fe.Library != "libassuan" {
		t.Errorf("Library = %q", fe.Library)
	}
}

func TestVerifyChecksumUnpinnedSkips(t *testing.T) {
	setTestDirs(t)
	cfg := &Config{Values: map[string]string{}}
	dep := Dependency{Name: "libgcrypt", Version: "1.9.0", LinkName: "gcrypt"}

	path := filepath.Join(t.TempDir(), "libgcrypt-1.9.0.tar.bz2")
	if err := os.WriteFile(path, []byte("whatever"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := verifyChecksum(&dep, cfg, path); err != nil {
		t.Errorf("unpinned tarball must not fail verification: %v", err)
	}
}

func TestChecksumManifestRoundtrip(t *testing.T) {
	setTestDirs(t)
	if err := os.MkdirAll(CacheStore, 0o755); err != nil {
		t.Fatal(err)
	}

	want := map[string]string{
		"libgpg-error-1.39.tar.bz2": hashString("a"),
		"libgcrypt-1.9.0.tar.bz2":   hashString("b"),
	}
	if err := saveChecksums(want); err != nil {
		t.Fatal(err)
	}
	got, err := loadChecksums()
	if err != nil {
		t.Fatal(err)
	}
	for name, sum := range want {
		if got[name] != sum {
			t.Errorf("manifest entry %s = %q, want %q", name, got[name], sum)
		}
	}
}
