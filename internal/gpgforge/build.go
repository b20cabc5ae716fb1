package gpgforge

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"
)

// BuildResult is the typed record a finished library build hands to its
// dependents: where it installed and how to link against it. Results are
// created once per build and never mutated afterward.
type BuildResult struct {
	Library string
	Version string
	Prefix  string
	Link    LinkDescriptor
	Elapsed time.Duration
}

// BuildOptions encapsulates parameters for one library build.
type BuildOptions struct {
	CurrentIndex int
	TotalCount   int
	Quiet        bool      // If true, suppress standard output logging (except errors/warnings)
	LogWriter    io.Writer // Optional: redirect output to this writer
}

// buildJobs returns the make parallelism: host CPU count unless capped in
// config.
func buildJobs(cfg *Config) int {
	if v := cfg.Values["GPGFORGE_JOBS"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return runtime.NumCPU()
}

// configureArgs assembles the configure invocation for one library. The
// flag set is fixed for the whole chain: position-independent code, static
// output only, docs/tests off, localization governed by the
// GPGFORGE_ENABLE_NLS capability flag. {prefix} in the library's extra
// flags resolves to the shared install prefix, which is how the discovery
// pointer at an earlier library's install lands on the command line.
func configureArgs(dep *Dependency, cfg *Config, prefix string) []string {
	args := []string{
		"--host", Triple,
		"--prefix", prefix,
		"--with-pic",
		"--enable-fast-install",
		"--disable-dependency-tracking",
		"--enable-static",
		"--disable-shared",
		"--disable-doc",
		"--disable-tests",
	}
	if cfg.Values["GPGFORGE_ENABLE_NLS"] == "1" {
		args = append(args, "--enable-nls")
	} else {
		args = append(args, "--disable-nls")
	}
	for _, extra := range dep.ExtraConfigure {
		args = append(args, strings.ReplaceAll(extra, "{prefix}", prefix))
	}
	return args
}

// buildEnv assembles the environment for the configure/make steps. Host
// CFLAGS/CXXFLAGS/LDFLAGS are filtered out so the pipeline's own flags
// always win, and the toolchain variables point every step at the same
// cross compilers.
func buildEnv(cfg *Config, tc *Toolchain) []string {
	env := []string{}
	for _, e := range os.Environ() {
		if strings.HasPrefix(e, "CFLAGS=") || strings.HasPrefix(e, "CXXFLAGS=") || strings.HasPrefix(e, "LDFLAGS=") {
			continue
		}
		env = append(env, e)
	}

	cflags := cfg.Values["GPGFORGE_CFLAGS"]
	if cflags == "" {
		cflags = "-O2 -pipe -fPIC"
	}

	defaults := map[string]string{
		"CC":        tc.CC,
		"AR":        tc.AR,
		"RANLIB":    tc.RANLIB,
		"CFLAGS":    cflags,
		"CXXFLAGS":  cflags,
		"LDFLAGS":   cfg.Values["GPGFORGE_LDFLAGS"],
		"MAKEFLAGS": fmt.Sprintf("-j%d", buildJobs(cfg)),
	}
	if tc.CXX != "" {
		defaults["CXX"] = tc.CXX
	}

	// Sort keys for deterministic order
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%s", k, defaults[k]))
	}
	return env
}

// runStep executes one build step inside srcDir, appending its output to
// the library's build log. Any non-zero exit is wrapped into the stage's
// typed error; the caller aborts the pipeline on it.
func runStep(execCtx *Executor, stage Stage, dep *Dependency, srcDir string, env []string, logW io.Writer, name string, args ...string) error {
	debugf("[%s] %s: %s %s\n", dep.Name, stage, name, strings.Join(args, " "))

	cmd := exec.Command(name, args...)
	cmd.Dir = srcDir
	cmd.Env = env
	if logW != nil {
		if Verbose {
			cmd.Stdout = io.MultiWriter(os.Stdout, logW)
			cmd.Stderr = io.MultiWriter(os.Stderr, logW)
		} else {
			cmd.Stdout = logW
			cmd.Stderr = logW
		}
	}

	if err := execCtx.Run(cmd); err != nil {
		return stageError(stage, dep.Name, err)
	}
	return nil
}

// buildLibrary fetches, configures, compiles and installs one library into
// the shared prefix. prior holds the results of every dependency that
// already finished; their presence is the ordering invariant, enforced by
// the caller going through topoSort.
func buildLibrary(dep *Dependency, cfg *Config, tc *Toolchain, execCtx *Executor, prior []*BuildResult, opts BuildOptions) (*BuildResult, error) {
	startTime := time.Now()
	version := dep.resolvedVersion(cfg)

	for _, need := range dep.DependsOn {
		found := false
		for _, res := range prior {
			if res.Library == need {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%s configured before its dependency %s was installed", dep.Name, need)
		}
	}

	if !opts.Quiet {
		colArrow.Print("-> ")
		colSuccess.Printf("Building %s %s (%d/%d) for %s\n",
			dep.Name, version, opts.CurrentIndex, opts.TotalCount, Triple)
	}

	// Fetch and verify the pinned tarball before touching the workspace.
	cachePath, err := fetchSource(dep, cfg)
	if err != nil {
		return nil, err
	}
	if err := verifyChecksum(dep, cfg, cachePath); err != nil {
		return nil, err
	}

	// Clean workspace precondition: the per-library scratch directory is
	// recreated from nothing every run. Stale state from an interrupted
	// build must never leak into a static chain.
	srcDir := filepath.Join(WorkDir, "build", dep.Name)
	if err := os.RemoveAll(srcDir); err != nil {
		return nil, fmt.Errorf("failed to clean scratch dir %s: %w", srcDir, err)
	}
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scratch dir %s: %w", srcDir, err)
	}
	if err := os.MkdirAll(Prefix, 0o755); err != nil {
		return nil, &InstallError{Library: dep.Name, Err: err}
	}
	if err := os.MkdirAll(LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log dir %s: %w", LogDir, err)
	}

	if err := extractTar(cachePath, srcDir); err != nil {
		return nil, &FetchError{Library: dep.Name, URL: cachePath, Err: err}
	}

	logPath := filepath.Join(LogDir, dep.Name+"-build.log")
	logW := opts.LogWriter
	var logFile *os.File
	if logW == nil {
		logFile, err = os.Create(logPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create log file: %w", err)
		}
		defer logFile.Close()
		logW = logFile
	}

	env := buildEnv(cfg, tc)
	jobs := buildJobs(cfg)

	steps := []struct {
		stage Stage
		name  string
		args  []string
	}{
		{StageConfigure, "./configure", configureArgs(dep, cfg, Prefix)},
		{StageCompile, tc.Make, []string{fmt.Sprintf("-j%d", jobs)}},
		{StageInstall, tc.Make, []string{"install"}},
	}
	for _, step := range steps {
		if err := runStep(execCtx, step.stage, dep, srcDir, env, logW, step.name, step.args...); err != nil {
			colArrow.Print("-> ")
			colError.Printf("Build failed for %s: %v (log: %s)\n", dep.Name, err, logPath)
			return nil, err
		}
	}

	elapsed := time.Since(startTime).Truncate(time.Second)
	if !opts.Quiet {
		colArrow.Print("-> ")
		colSuccess.Printf("%s %s installed into %s in %s\n", dep.Name, version, Prefix, elapsed)
	}

	return &BuildResult{
		Library: dep.Name,
		Version: version,
		Prefix:  Prefix,
		Link:    newLinkDescriptor(dep, Prefix),
		Elapsed: elapsed,
	}, nil
}
