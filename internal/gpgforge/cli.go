package gpgforge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gookit/color"
)

// exitCodeForError maps a pipeline failure to the process exit code. The
// downstream test command's own exit status passes through unchanged;
// everything else is a plain failure.
func exitCodeForError(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code > 0 {
			return code
		}
	}
	return 1
}

// printHelp prints the commands table
func printHelp() {
	colSuccess.Println("Usage: gpgforge <command> [arguments]")
	fmt.Println()
	cPrintln(colInfo, "Available Commands:")

	type cmdInfo struct {
		Cmd  string
		Args string
		Desc string
	}
	cmds := []cmdInfo{
		{"run", "", "Full pipeline: toolchain, chain build, link env, project tests"},
		{"toolchain", "", "Verify the cross toolchain for the configured triple"},
		{"fetch", "[lib...]", "Download pinned source tarballs into the cache"},
		{"checksum, c", "[lib...]", "Fetch sources and pin their checksums"},
		{"build, b", "[lib...]", "Build the static library chain (dependency closure)"},
		{"env", "", "Print the published link environment for the prefix"},
		{"test", "", "Final assembly only: copy project tree and run its tests"},
		{"mirror", "<setup|upload|fetch>", "Configure, push or pull the S3 source mirror"},
		{"log", "[lib]", "TUI viewer for per-library build logs"},
		{"clean", "[options]", "Remove workspace, prefix and/or source cache"},
		{"version, --version", "", "Version information"},
	}

	// Find the longest usage string for the first column width.
	maxLen := 0
	for _, c := range cmds {
		length := len(c.Cmd) + len(c.Args)
		if c.Args != "" {
			length++
		}
		if length > maxLen {
			maxLen = length
		}
	}
	columnWidth := maxLen + 4

	for _, c := range cmds {
		var usageString string
		if c.Args != "" {
			usageString = fmt.Sprintf("  %s %s", c.Cmd, c.Args)
		} else {
			usageString = fmt.Sprintf("  %s", c.Cmd)
		}

		fmt.Print("  ")
		color.Bold.Print(c.Cmd)
		if c.Args != "" {
			fmt.Print(" ")
			color.Cyan.Print(c.Args)
		}

		pad := columnWidth - len(usageString)
		if pad < 1 {
			pad = 1
		}
		fmt.Print(strings.Repeat(" ", pad))
		cPrintln(colInfo, c.Desc)
	}
	fmt.Println()
}

// Main is the CLI entrypoint for gpgforge.
func Main() {
	// 1. CONTEXT AND SIGNAL SETUP
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	// A build interrupted mid-install leaves a partial prefix behind; the
	// whole prefix is discarded on the next run, so graceful cancellation
	// is enough here. Second interrupt forces an immediate exit.
	go func() {
		for {
			select {
			case sig := <-sigs:
				colArrow.Print("\n-> ")
				color.Danger.Printf("Received %v. Cancelling process gracefully\n", sig)
				cancel()
				time.Sleep(100 * time.Millisecond)

				select {
				case <-sigs:
					colArrow.Print("\n-> ")
					color.Danger.Printf("Second interrupt received. Forcing immediate exit.")
					os.Exit(130)
				case <-time.After(2 * time.Second):
					colArrow.Print("\n-> ")
					color.Danger.Printf("Graceful shutdown timeout. Exiting.")
					os.Exit(0)
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	if ctx.Err() != nil {
		return
	}

	if len(os.Args) < 2 {
		printHelp()
		return
	}

	configPath := ConfigFile
	if root := os.Getenv("GPGFORGE_ROOT"); root != "" {
		configPath = filepath.Join(root, "etc", "gpgforge.conf")
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to read config %s: %v\n", configPath, err)
	}
	initConfig(cfg)

	// Executors
	UserExec = &Executor{Context: ctx}
	RootExec = &Executor{Context: ctx, ShouldRunAsRoot: true}

	var exitCode int

	switch os.Args[1] {
	case "run":
		if err := runPipeline(cfg, UserExec); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			exitCode = exitCodeForError(err)
		}

	case "toolchain":
		tc, err := provisionToolchain(cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			exitCode = 1
			break
		}
		colArrow.Print("-> ")
		colSuccess.Printf("Toolchain ready for %s\n", tc.Triple)
		fmt.Printf("  CC=%s\n  CXX=%s\n  AR=%s\n  RANLIB=%s\n", tc.CC, tc.CXX, tc.AR, tc.RANLIB)

	case "fetch":
		if err := handleFetchCommand(os.Args[2:], cfg, false); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			exitCode = 1
		}

	case "checksum", "c":
		if err := handleFetchCommand(os.Args[2:], cfg, true); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			exitCode = 1
		}

	case "build", "b":
		deps, err := selectDeps(os.Args[2:])
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			exitCode = 1
			break
		}
		tc, err := provisionToolchain(cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			exitCode = 1
			break
		}
		if _, err := runChain(deps, cfg, tc, UserExec, false); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			exitCode = 1
		}

	case "env":
		if err := handleEnvCommand(cfg); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			exitCode = 1
		}

	case "test":
		deps, err := selectDeps(nil)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			exitCode = 1
			break
		}
		if err := finalAssembly(cfg, UserExec, prefixLinkEnv(deps), deps); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			exitCode = exitCodeForError(err)
		}

	case "mirror":
		if err := handleMirrorCommand(os.Args[2:], cfg); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			exitCode = 1
		}

	case "log":
		exitCode = runLogViewer(os.Args[2:])

	case "clean":
		if err := handleCleanCommand(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			exitCode = 1
		}

	case "version", "--version":
		colSuccess.Printf("gpgforge %s (%s) built %s\n", version, arch, buildDate)

	case "help", "-h", "--help":
		printHelp()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printHelp()
		exitCode = 1
	}

	cancel()
	os.Exit(exitCode)
}

// handleFetchCommand downloads the selected tarballs, optionally pinning
// their checksums (`checksum`) instead of verifying against existing pins
// (`fetch`).
func handleFetchCommand(names []string, cfg *Config, pin bool) error {
	deps, err := selectDeps(names)
	if err != nil {
		return err
	}
	for i := range deps {
		path, err := fetchSource(&deps[i], cfg)
		if err != nil {
			return err
		}
		if pin {
			if err := recordChecksum(deps[i].tarballName(cfg), path); err != nil {
				return err
			}
			continue
		}
		if err := verifyChecksum(&deps[i], cfg, path); err != nil {
			return err
		}
	}
	return nil
}

// prefixLinkEnv reconstructs the link environment from an existing install
// prefix, for `env` and `test` runs that skip the build.
func prefixLinkEnv(deps []Dependency) []string {
	results := make([]*BuildResult, 0, len(deps))
	for i := range deps {
		results = append(results, &BuildResult{
			Library: deps[i].Name,
			Prefix:  Prefix,
			Link:    newLinkDescriptor(&deps[i], Prefix),
		})
	}
	return publishLinkEnv(results)
}

// handleEnvCommand prints the link environment, checking both that the
// variables resolve and that the installed artifacts they point at exist.
func handleEnvCommand(cfg *Config) error {
	deps, err := selectDeps(nil)
	if err != nil {
		return err
	}

	for i := range deps {
		desc := newLinkDescriptor(&deps[i], Prefix)
		if _, err := os.Stat(desc.ArchivePath()); err != nil {
			return fmt.Errorf("%s not built under %s: %w", deps[i].Name, Prefix, err)
		}
	}

	env := prefixLinkEnv(deps)
	if err := resolveLinkEnv(env, deps); err != nil {
		return err
	}
	for _, kv := range env {
		fmt.Println(kv)
	}
	return nil
}
