package gpgforge

import (
	"fmt"
	"os/exec"
	"strings"
)

// Toolchain is the provisioned cross-compilation environment for one
// target triple: compilers, binutils and the host-side decompressor needed
// to unpack fetched sources.
type Toolchain struct {
	Triple string
	CC     string
	CXX    string
	AR     string
	RANLIB string
	Make   string
}

// muslToolPrefix collapses a vendor-qualified triple to the prefix cross
// toolchains are usually installed under: x86_64-unknown-linux-musl ->
// x86_64-linux-musl.
func muslToolPrefix(triple string) string {
	parts := strings.Split(triple, "-")
	if len(parts) == 4 {
		return strings.Join([]string{parts[0], parts[2], parts[3]}, "-")
	}
	return triple
}

// provisionToolchain locates every tool the pipeline needs and fails fast
// when one is missing. There is no partial-toolchain state: the first
// missing piece aborts the run.
func provisionToolchain(cfg *Config) (*Toolchain, error) {
	tc := &Toolchain{Triple: Triple}

	ccCandidates := []string{
		Triple + "-gcc",
		muslToolPrefix(Triple) + "-gcc",
		"musl-gcc",
	}
	if cc := cfg.Values["GPGFORGE_CC"]; cc != "" {
		ccCandidates = []string{cc}
	}
	for _, cand := range ccCandidates {
		if _, err := exec.LookPath(cand); err == nil {
			tc.CC = cand
			break
		}
	}
	if tc.CC == "" {
		return nil, fmt.Errorf("no C cross compiler for %s (tried %s)",
			Triple, strings.Join(ccCandidates, ", "))
	}

	// C++ is optional for the current chain; pick the sibling g++ when the
	// compiler follows the <prefix>-gcc convention.
	if cxx := cfg.Values["GPGFORGE_CXX"]; cxx != "" {
		tc.CXX = cxx
	} else if strings.HasSuffix(tc.CC, "-gcc") {
		cand := strings.TrimSuffix(tc.CC, "-gcc") + "-g++"
		if _, err := exec.LookPath(cand); err == nil {
			tc.CXX = cand
		}
	}

	// binutils: prefer the triple-prefixed tools, fall back to host ones
	// (musl-gcc setups reuse the host binutils).
	tc.AR = lookFirst(muslToolPrefix(Triple)+"-ar", "ar")
	tc.RANLIB = lookFirst(muslToolPrefix(Triple)+"-ranlib", "ranlib")
	if tc.AR == "" || tc.RANLIB == "" {
		return nil, fmt.Errorf("binutils (ar/ranlib) not found for %s", Triple)
	}

	if _, err := exec.LookPath("make"); err != nil {
		return nil, fmt.Errorf("make not found: %w", err)
	}
	tc.Make = "make"

	// Host-side decompressor for the fetched tarballs. Extraction falls
	// back to the in-process readers, but system tar needs this to handle
	// .tar.bz2 directly.
	if _, err := exec.LookPath("bzip2"); err != nil {
		return nil, fmt.Errorf("bzip2 not found: %w", err)
	}

	debugf("Toolchain for %s: CC=%s CXX=%s AR=%s RANLIB=%s\n",
		Triple, tc.CC, tc.CXX, tc.AR, tc.RANLIB)
	return tc, nil
}

func lookFirst(candidates ...string) string {
	for _, cand := range candidates {
		if _, err := exec.LookPath(cand); err == nil {
			return cand
		}
	}
	return ""
}
