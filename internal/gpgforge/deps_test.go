package gpgforge

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func depNames(deps []Dependency) []string {
	names := make([]string, 0, len(deps))
	for _, d := range deps {
		names = append(names, d.Name)
	}
	return names
}

func TestTopoSortChainOrder(t *testing.T) {
	ordered, err := topoSort(dependencyChain())
	if err != nil {
		t.Fatalf("topoSort: %v", err)
	}
	want := []string{"libgpg-error", "libgcrypt", "libassuan"}
	if diff := cmp.Diff(want, depNames(ordered)); diff != "" {
		t.Errorf("chain order mismatch (-want +got):\n%s", diff)
	}
}

func TestTopoSortDeterministicTieBreak(t *testing.T) {
	deps := []Dependency{
		{Name: "zeta"},
		{Name: "alpha"},
		{Name: "mid", DependsOn: []string{"alpha"}},
	}
	ordered, err := topoSort(deps)
	if err != nil {
		t.Fatalf("topoSort: %v", err)
	}
	want := []string{"alpha", "mid", "zeta"}
	if diff := cmp.Diff(want, depNames(ordered)); diff != "" {
		t.Errorf("tie break mismatch (-want +got):\n%s", diff)
	}
}

func TestTopoSortCycle(t *testing.T) {
	deps := []Dependency{
		{Name: "a", DependsOn: []string{"b"}},
		{Name: "b", DependsOn: []string{"a"}},
	}
	if _, err := topoSort(deps); err == nil {
		t.Fatal("expected cycle error, got nil")
	}
}

func TestTopoSortUnknownDependency(t *testing.T) {
	deps := []Dependency{
		{Name: "a", DependsOn: []string{"ghost"}},
	}
	_, err := topoSort(deps)
	if err == nil {
		t.Fatal("expected error for unknown dependency, got nil")
	}
	if !errors.Is(err, errUnknownLibrary) {
		t.Errorf("expected errUnknownLibrary, got %v", err)
	}
}

func TestSelectDepsClosure(t *testing.T) {
	selected, err := selectDeps([]string{"libgcrypt"})
	if err != nil {
		t.Fatalf("selectDeps: %v", err)
	}
	want := []string{"libgpg-error", "libgcrypt"}
	if diff := cmp.Diff(want, depNames(selected)); diff != "" {
		t.Errorf("closure mismatch (-want +got):\n%s", diff)
	}
}

func TestSelectDepsWholeChain(t *testing.T) {
	selected, err := selectDeps(nil)
	if err != nil {
		t.Fatalf("selectDeps: %v", err)
	}
	if len(selected) != 3 {
		t.Errorf("expected full chain of 3 libraries, got %v", depNames(selected))
	}
}

func TestSelectDepsUnknownName(t *testing.T) {
	_, err := selectDeps([]string{"libnotreal"})
	if !errors.Is(err, errUnknownLibrary) {
		t.Errorf("expected errUnknownLibrary, got %v", err)
	}
}

func TestEnvName(t *testing.T) {
	cases := map[string]string{
		"libgpg-error": "LIBGPG_ERROR",
		"libgcrypt":    "LIBGCRYPT",
		"libassuan":    "LIBASSUAN",
	}
	for lib, want := range cases {
		if got := envName(lib); got != want {
			t.Errorf("envName(%q) = %q, want %q", lib, got, want)
		}
	}
}

func TestSourceURLAndVersionOverride(t *testing.T) {
	cfg := &Config{Values: map[string]string{}}
	dep := Dependency{Name: "libgcrypt", Version: "1.9.0", LinkName: "gcrypt"}

	want := "https://gnupg.org/ftp/gcrypt/libgcrypt/libgcrypt-1.9.0.tar.bz2"
	if got := dep.sourceURL(cfg); got != want {
		t.Errorf("sourceURL = %q, want %q", got, want)
	}

	cfg.Values["LIBGCRYPT_VERSION"] = "1.10.3"
	if got := dep.resolvedVersion(cfg); got != "1.10.3" {
		t.Errorf("resolvedVersion with override = %q, want 1.10.3", got)
	}
	if got := dep.tarballName(cfg); got != "libgcrypt-1.10.3.tar.bz2" {
		t.Errorf("tarballName with override = %q", got)
	}
}
