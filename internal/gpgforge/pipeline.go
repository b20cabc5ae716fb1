package gpgforge

import (
	"fmt"
	"os"
	"path/filepath"
)

// runChain builds the selected libraries in dependency order, strictly
// sequentially. The first failure aborts everything after it; no later
// library's configure step runs past a failed fetch or build.
func runChain(deps []Dependency, cfg *Config, tc *Toolchain, execCtx *Executor, quiet bool) ([]*BuildResult, error) {
	results := make([]*BuildResult, 0, len(deps))
	for i := range deps {
		res, err := buildLibrary(&deps[i], cfg, tc, execCtx, results, BuildOptions{
			CurrentIndex: i + 1,
			TotalCount:   len(deps),
			Quiet:        quiet,
		})
		if err != nil {
			return nil, err
		}
		if err := verifyInstalled(res); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// verifyInstalled checks the invariants a finished static build must
// satisfy: the archive and headers exist under the prefix, and no shared
// object sneaked in beside the archive.
func verifyInstalled(res *BuildResult) error {
	if _, err := os.Stat(res.Link.ArchivePath()); err != nil {
		return &InstallError{
			Library: res.Library,
			Err:     fmt.Errorf("static archive missing after install: %w", err),
		}
	}
	if fi, err := os.Stat(res.Link.IncludeDir); err != nil || !fi.IsDir() {
		return &InstallError{
			Library: res.Library,
			Err:     fmt.Errorf("header directory missing after install: %s", res.Link.IncludeDir),
		}
	}

	shared := filepath.Join(res.Link.LibDir, "lib"+res.Link.LinkName+".so")
	if matches, _ := filepath.Glob(shared + "*"); len(matches) > 0 {
		return &InstallError{
			Library: res.Library,
			Err:     fmt.Errorf("shared object produced despite --disable-shared: %s", matches[0]),
		}
	}
	return nil
}

// runPipeline is the whole flow behind `gpgforge run`: toolchain check,
// dependency chain build, link environment publication, final assembly.
func runPipeline(cfg *Config, execCtx *Executor) error {
	tc, err := provisionToolchain(cfg)
	if err != nil {
		return err
	}

	deps, err := selectDeps(nil)
	if err != nil {
		return err
	}

	results, err := runChain(deps, cfg, tc, execCtx, false)
	if err != nil {
		return err
	}

	linkEnv := publishLinkEnv(results)
	debugf("Published link environment:\n")
	for _, kv := range linkEnv {
		debugf("  %s\n", kv)
	}

	return finalAssembly(cfg, execCtx, linkEnv, deps)
}
