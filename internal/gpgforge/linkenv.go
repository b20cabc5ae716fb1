package gpgforge

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// LinkDescriptor is the per-library discovery state the downstream build
// consumes: where the headers and the static archive live, the linker
// name, and the flag forcing the static archive over any dynamic
// counterpart. Created once the library finishes installing, consumed by
// the final assembly stage, never mutated in between.
type LinkDescriptor struct {
	Library    string
	IncludeDir string
	LibDir     string
	LinkName   string
	Static     string // "yes": the downstream linker must prefer the .a
}

func newLinkDescriptor(dep *Dependency, prefix string) LinkDescriptor {
	return LinkDescriptor{
		Library:    dep.Name,
		IncludeDir: filepath.Join(prefix, "include"),
		LibDir:     filepath.Join(prefix, "lib"),
		LinkName:   dep.LinkName,
		Static:     "yes",
	}
}

// EnvVars returns the descriptor as the four documented environment
// variables, e.g. LIBGCRYPT_INCLUDE, LIBGCRYPT_LIB_DIR, LIBGCRYPT_LIBS,
// LIBGCRYPT_STATIC.
func (d LinkDescriptor) EnvVars() map[string]string {
	stem := envName(d.Library)
	return map[string]string{
		stem + "_INCLUDE": d.IncludeDir,
		stem + "_LIB_DIR": d.LibDir,
		stem + "_LIBS":    d.LinkName,
		stem + "_STATIC":  d.Static,
	}
}

// ArchivePath is where the installed static archive must be after a
// successful build, e.g. <prefix>/lib/libgpg-error.a.
func (d LinkDescriptor) ArchivePath() string {
	return filepath.Join(d.LibDir, "lib"+d.LinkName+".a")
}

// publishLinkEnv flattens the finished builds' descriptors into a sorted
// KEY=VALUE list ready to merge into the test invocation's environment.
// This is the one write of the link environment; nothing mutates it after.
func publishLinkEnv(results []*BuildResult) []string {
	vars := make(map[string]string)
	for _, res := range results {
		for k, v := range res.Link.EnvVars() {
			vars[k] = v
		}
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%s", k, vars[k]))
	}
	return env
}

// resolveLinkEnv checks that the published environment carries all four
// variables, non-empty, for each library. A gap is a LinkResolutionError:
// the downstream build must fail loudly instead of silently falling back
// to dynamic linking.
func resolveLinkEnv(env []string, deps []Dependency) error {
	have := make(map[string]string, len(env))
	for _, kv := range env {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 {
			have[parts[0]] = parts[1]
		}
	}

	for _, dep := range deps {
		stem := envName(dep.Name)
		for _, suffix := range []string{"_INCLUDE", "_LIB_DIR", "_LIBS", "_STATIC"} {
			if have[stem+suffix] == "" {
				return &LinkResolutionError{Variable: stem + suffix}
			}
		}
	}
	return nil
}
