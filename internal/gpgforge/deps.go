package gpgforge

import (
	"fmt"
	"sort"
	"strings"
)

// Dependency describes one native library in the build chain: pinned
// version, where its tarball lives, the library-specific configure flags,
// and which earlier libraries must be installed before its configure step
// may run.
type Dependency struct {
	Name      string   // package name, e.g. "libgpg-error"
	Version   string   // pinned default, overridable via <LIB>_VERSION
	LinkName  string   // name passed to the linker, e.g. "gpg-error"
	DependsOn []string // libraries whose install must complete first

	// ExtraConfigure holds flags beyond the fixed static-link set,
	// typically the discovery pointer at a dependency's prefix.
	// Occurrences of {prefix} are substituted with the install prefix.
	ExtraConfigure []string
}

// dependencyChain returns the build chain in declaration order. The actual
// execution order always goes through topoSort, so appending a fourth
// library here only needs a correct DependsOn set.
func dependencyChain() []Dependency {
	return []Dependency{
		{
			Name:     "libgpg-error",
			Version:  "1.39",
			LinkName: "gpg-error",
		},
		{
			Name:      "libgcrypt",
			Version:   "1.9.0",
			LinkName:  "gcrypt",
			DependsOn: []string{"libgpg-error"},
			ExtraConfigure: []string{
				"--with-libgpg-error-prefix={prefix}",
			},
		},
		{
			Name:      "libassuan",
			Version:   "2.5.4",
			LinkName:  "assuan",
			DependsOn: []string{"libgpg-error", "libgcrypt"},
			ExtraConfigure: []string{
				"--with-libgpg-error-prefix={prefix}",
			},
		},
	}
}

// envName maps a library name to its environment variable stem:
// libgpg-error -> LIBGPG_ERROR
func envName(lib string) string {
	return strings.ToUpper(strings.ReplaceAll(lib, "-", "_"))
}

// resolvedVersion returns the pinned version, honoring a <LIB>_VERSION
// override from config or environment.
func (d *Dependency) resolvedVersion(cfg *Config) string {
	if v := cfg.Values[envName(d.Name)+"_VERSION"]; v != "" {
		return v
	}
	return d.Version
}

// sourceURL builds the upstream tarball URL for the pinned version.
func (d *Dependency) sourceURL(cfg *Config) string {
	version := d.resolvedVersion(cfg)
	return fmt.Sprintf("%s/%s/%s-%s.tar.bz2", SourceBase, d.Name, d.Name, version)
}

// tarballName is the file name the source archive is cached under.
func (d *Dependency) tarballName(cfg *Config) string {
	return fmt.Sprintf("%s-%s.tar.bz2", d.Name, d.resolvedVersion(cfg))
}

// topoSort orders deps so every library comes after everything it depends
// on. Ties are broken by name so the order is deterministic. Returns an
// error for unknown dependencies or cycles.
func topoSort(deps []Dependency) ([]Dependency, error) {
	byName := make(map[string]Dependency, len(deps))
	indegree := make(map[string]int, len(deps))
	dependents := make(map[string][]string)

	for _, d := range deps {
		if _, dup := byName[d.Name]; dup {
			return nil, fmt.Errorf("duplicate dependency record: %s", d.Name)
		}
		byName[d.Name] = d
		indegree[d.Name] = 0
	}
	for _, d := range deps {
		for _, on := range d.DependsOn {
			if _, ok := byName[on]; !ok {
				return nil, fmt.Errorf("%s depends on %w: %s", d.Name, errUnknownLibrary, on)
			}
			indegree[d.Name]++
			dependents[on] = append(dependents[on], d.Name)
		}
	}

	var ready []string
	for name, in := range indegree {
		if in == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	ordered := make([]Dependency, 0, len(deps))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		ordered = append(ordered, byName[name])
		for _, dep := range dependents[name] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
		sort.Strings(ready)
	}

	if len(ordered) != len(deps) {
		var stuck []string
		for name, in := range indegree {
			if in > 0 {
				stuck = append(stuck, name)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("dependency cycle involving: %s", strings.Join(stuck, ", "))
	}
	return ordered, nil
}

// selectDeps returns the dependency closure of the named libraries in
// topological order. An empty name list selects the whole chain.
func selectDeps(names []string) ([]Dependency, error) {
	all, err := topoSort(dependencyChain())
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return all, nil
	}

	byName := make(map[string]Dependency, len(all))
	for _, d := range all {
		byName[d.Name] = d
	}

	wanted := make(map[string]bool)
	var mark func(name string) error
	mark = func(name string) error {
		d, ok := byName[name]
		if !ok {
			return fmt.Errorf("%w: %s", errUnknownLibrary, name)
		}
		if wanted[name] {
			return nil
		}
		wanted[name] = true
		for _, on := range d.DependsOn {
			if err := mark(on); err != nil {
				return err
			}
		}
		return nil
	}
	for _, name := range names {
		if err := mark(name); err != nil {
			return nil, err
		}
	}

	selected := make([]Dependency, 0, len(wanted))
	for _, d := range all {
		if wanted[d.Name] {
			selected = append(selected, d)
		}
	}
	return selected, nil
}
