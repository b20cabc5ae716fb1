package gpgforge

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
)

// removeTree removes a tree, elevating when the caller cannot delete it
// directly (the default source cache lives under /var).
func removeTree(path string) error {
	err := os.RemoveAll(path)
	if err == nil || !os.IsPermission(err) {
		return err
	}
	return RootExec.Run(exec.Command("rm", "-rf", path))
}

// handleCleanCommand removes pipeline state. Re-running against a partial
// workspace is never resumed; discarding the whole thing is the supported
// path.
func handleCleanCommand(args []string) error {
	cleanCmd := flag.NewFlagSet("clean", flag.ExitOnError)
	cleanWork := cleanCmd.Bool("workspace", false, "Remove the scratch workspace (build dirs, logs, staged project).")
	cleanPrefix := cleanCmd.Bool("prefix", false, "Remove the shared install prefix.")
	cleanSources := cleanCmd.Bool("sources", false, "Remove all cached source tarballs.")
	cleanAll := cleanCmd.Bool("all", false, "workspace, prefix and sources.")

	if err := cleanCmd.Parse(args); err != nil {
		return err // Should not happen with flag.ExitOnError
	}

	if !*cleanWork && !*cleanPrefix && !*cleanSources && !*cleanAll {
		fmt.Println("Usage: gpgforge clean [flag]")
		fmt.Println("You must specify what to clean up. Use one of the following flags:")
		cleanCmd.PrintDefaults()
		return nil
	}

	if *cleanAll {
		*cleanWork = true
		*cleanPrefix = true
		*cleanSources = true
	}

	targets := []struct {
		enabled bool
		label   string
		path    string
	}{
		{*cleanWork, "scratch workspace", WorkDir},
		{*cleanPrefix, "install prefix", Prefix},
		{*cleanSources, "source cache", CacheStore},
	}

	for _, t := range targets {
		if !t.enabled {
			continue
		}
		colArrow.Print("-> ")
		cPrintf(colWarn, "Deleting %s at %s.\n", t.label, t.path)
		if !askForConfirmation(colArrow, "Are you sure you want to proceed?") {
			colArrow.Print("-> ")
			colSuccess.Printf("Cleanup of %s canceled.\n", t.label)
			continue
		}
		if err := removeTree(t.path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", t.label, err)
		}
		colArrow.Print("-> ")
		colSuccess.Printf("Removed %s.\n", t.label)
	}

	return nil
}
