package gpgforge

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// finalAssembly copies the dependent project's source tree into the
// workspace and runs its test command with the published link environment
// merged in. Intentionally thin: copy, then run a fixed command. The
// command's exit status is the pipeline's exit status.
func finalAssembly(cfg *Config, execCtx *Executor, linkEnv []string, deps []Dependency) error {
	// Refuse to launch the downstream build with an incomplete link
	// environment; a gap here must never degrade into dynamic linking.
	if err := resolveLinkEnv(linkEnv, deps); err != nil {
		return err
	}

	projectDir := cfg.Values["GPGFORGE_PROJECT_DIR"]
	if projectDir == "" {
		return fmt.Errorf("GPGFORGE_PROJECT_DIR is not set")
	}
	if fi, err := os.Stat(projectDir); err != nil || !fi.IsDir() {
		return fmt.Errorf("project dir %s is not a directory", projectDir)
	}

	stageDir := filepath.Join(WorkDir, "project")
	if err := os.RemoveAll(stageDir); err != nil {
		return fmt.Errorf("failed to clean project stage %s: %w", stageDir, err)
	}
	if err := os.MkdirAll(stageDir, 0o755); err != nil {
		return fmt.Errorf("failed to create project stage %s: %w", stageDir, err)
	}

	colArrow.Print("-> ")
	colSuccess.Printf("Copying project tree %s -> %s\n", projectDir, stageDir)
	cpCmd := exec.Command("cp", "-aT", projectDir, stageDir)
	if err := execCtx.Run(cpCmd); err != nil {
		return fmt.Errorf("failed to copy project tree: %w", err)
	}

	testCmd := cfg.Values["GPGFORGE_TEST_CMD"]
	if testCmd == "" {
		testCmd = "cargo test"
	}

	colArrow.Print("-> ")
	colSuccess.Printf("Running test command: %s\n", testCmd)
	cmd := exec.Command("sh", "-c", testCmd)
	cmd.Dir = stageDir
	cmd.Env = append(os.Environ(), linkEnv...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := execCtx.Run(cmd); err != nil {
		return fmt.Errorf("test command failed: %w", err)
	}

	colArrow.Print("-> ")
	colSuccess.Printf("Tests passed with %s\n", strings.Join(staticFlags(deps), " "))
	return nil
}

// staticFlags lists the <LIB>_STATIC variables, for the success summary.
func staticFlags(deps []Dependency) []string {
	flags := make([]string, 0, len(deps))
	for _, dep := range deps {
		flags = append(flags, envName(dep.Name)+"_STATIC=yes")
	}
	return flags
}
