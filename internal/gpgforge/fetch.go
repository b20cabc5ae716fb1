package gpgforge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

func newHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	// gnupg.org can be slow to complete the handshake; default 10s is tight.
	transport.TLSHandshakeTimeout = 30 * time.Second
	return &http.Client{
		Transport: transport,
		Timeout:   300 * time.Second, // 5 min total timeout for large downloads
	}
}

type downloadOptions struct {
	Quiet bool // Quiet suppresses all stdout/stderr/progress output
}

// ensureCacheDir creates the source cache, elevating when the default
// location under /var is not writable by the caller.
func ensureCacheDir() error {
	err := os.MkdirAll(CacheStore, 0o755)
	if err == nil || !os.IsPermission(err) {
		return err
	}
	return createCacheDirElevated()
}

// createCacheDirElevated creates the cache directory as root and hands it
// to the invoking user, so downloads themselves never need elevation.
func createCacheDirElevated() error {
	mkdir := exec.Command("mkdir", "-p", CacheStore)
	if err := RootExec.Run(mkdir); err != nil {
		return fmt.Errorf("failed to create cache dir %s: %w", CacheStore, err)
	}
	chown := exec.Command("chown", fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid()), CacheStore)
	if err := RootExec.Run(chown); err != nil {
		return fmt.Errorf("failed to take ownership of %s: %w", CacheStore, err)
	}
	return nil
}

// fetchSource downloads a library's pinned tarball into the cache, trying
// the configured S3 mirror first and the upstream URL after it. A failure
// at this stage is a FetchError and aborts the pipeline before any later
// library is touched.
func fetchSource(dep *Dependency, cfg *Config) (string, error) {
	if err := ensureCacheDir(); err != nil {
		return "", stageError(StageFetch, dep.Name, err)
	}

	cachePath := filepath.Join(CacheStore, dep.tarballName(cfg))
	if _, err := os.Stat(cachePath); err == nil {
		debugf("Already in cache: %s\n", cachePath)
		return cachePath, nil
	}

	url := dep.sourceURL(cfg)
	colArrow.Print("-> ")
	colSuccess.Printf("Fetching source: %s\n", filepath.Base(cachePath))

	// Mirror first: a private bucket of pinned tarballs keeps the pipeline
	// reproducible when upstream is flaky.
	if mirrorConfigured(cfg) {
		if err := mirrorFetch(context.Background(), cfg, dep.tarballName(cfg), cachePath); err == nil {
			return cachePath, nil
		} else {
			debugf("Mirror miss for %s: %v\n", dep.tarballName(cfg), err)
		}
	}

	if err := downloadFile(url, cachePath, downloadOptions{Quiet: false}); err != nil {
		os.Remove(cachePath)
		return "", &FetchError{Library: dep.Name, URL: url, Err: err}
	}
	return cachePath, nil
}

// downloadFile downloads a URL into destFile, preferring curl, then wget,
// then the native HTTP client. An flock on destFile.lock keeps a
// concurrent prefetch and the main builder from clobbering each other.
func downloadFile(url, destFile string, opt downloadOptions) error {
	if err := os.MkdirAll(filepath.Dir(destFile), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory for %s: %w", destFile, err)
	}
	lockPath := destFile + ".lock"

	lFile, err := os.Create(lockPath)
	if err != nil {
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	defer lFile.Close()

	if err := unix.Flock(int(lFile.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock for download: %w", err)
	}
	defer unix.Flock(int(lFile.Fd()), unix.LOCK_UN)

	// Now that we hold the lock, the file may have appeared.
	if _, err := os.Stat(destFile); err == nil {
		debugf("File %s appeared after acquiring lock, skipping download.\n", destFile)
		_ = os.Remove(lockPath)
		return nil
	}
	defer func() {
		if _, err := os.Stat(destFile); err == nil {
			_ = os.Remove(lockPath)
		}
	}()

	debugf("Downloading %s -> %s\n", url, destFile)

	// --- Primary choice: curl ---
	if _, err := exec.LookPath("curl"); err == nil {
		curlArgs := []string{"-L", "--fail", "-o", destFile}
		if opt.Quiet {
			curlArgs = append(curlArgs, "-sS")
		} else {
			curlArgs = append(curlArgs, "-#")
		}
		curlArgs = append(curlArgs, url)
		cmd := exec.Command("curl", curlArgs...)
		if opt.Quiet {
			cmd.Stdout = io.Discard
			cmd.Stderr = io.Discard
		} else {
			cmd.Stdout = os.Stdout
			cmd.Stderr = os.Stderr
		}
		if err := cmd.Run(); err == nil {
			return nil
		}
		debugf("curl failed, falling back to wget\n")
	} else {
		debugf("curl not found, trying wget\n")
	}

	// --- Fallback 1: wget ---
	if _, err := exec.LookPath("wget"); err == nil {
		args := []string{"-O", destFile, url}
		if opt.Quiet {
			args = append([]string{"-q"}, args...)
		} else {
			args = append([]string{"-nv"}, args...)
		}
		cmd := exec.Command("wget", args...)
		if opt.Quiet {
			cmd.Stdout = io.Discard
			cmd.Stderr = io.Discard
		} else {
			cmd.Stdout = os.Stdout
			cmd.Stderr = os.Stderr
		}
		if err := cmd.Run(); err == nil {
			debugf("Download successful with wget.\n")
			return nil
		}
		debugf("wget failed, falling back to native Go HTTP client\n")
	} else {
		debugf("wget not found, using native Go HTTP client\n")
	}

	// --- Fallback 2: native HTTP client with a progress bar ---
	out, err := os.Create(destFile)
	if err != nil {
		return fmt.Errorf("failed to create destination file %s: %w", destFile, err)
	}
	defer out.Close()

	resp, err := newHTTPClient().Get(url)
	if err != nil {
		return fmt.Errorf("native http get failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status: %s", resp.Status)
	}

	var dst io.Writer = out
	if !opt.Quiet && term.IsTerminal(int(os.Stderr.Fd())) {
		bar := progressbar.DefaultBytes(resp.ContentLength, filepath.Base(destFile))
		dst = io.MultiWriter(out, bar)
	}

	if _, err := io.Copy(dst, resp.Body); err != nil {
		return fmt.Errorf("failed to write to destination file: %w", err)
	}

	debugf("Download successful with native Go HTTP client.\n")
	return nil
}
