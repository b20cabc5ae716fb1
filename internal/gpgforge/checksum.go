package gpgforge

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"lukechampine.com/blake3"
)

// checksumFile returns the path of the pinned-source checksum manifest.
func checksumFile() string {
	return filepath.Join(CacheStore, "checksums")
}

func hashString(s string) string {
	h := blake3.New(32, nil)
	h.Write([]byte(s))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// hashFile computes the BLAKE3 digest of a file, using the system b3sum
// when available (considerably faster on large tarballs).
func hashFile(path string) (string, error) {
	if _, err := exec.LookPath("b3sum"); err == nil {
		cmd := exec.Command("b3sum", "--no-names", path)
		var out bytes.Buffer
		cmd.Stdout = &out
		if err := cmd.Run(); err == nil {
			sum := strings.TrimSpace(out.String())
			if sum != "" {
				return sum, nil
			}
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// loadChecksums reads the manifest into a name -> digest map. A missing
// manifest is not an error; verification then depends on recordChecksum
// having been run.
func loadChecksums() (map[string]string, error) {
	sums := make(map[string]string)
	f, err := os.Open(checksumFile())
	if err != nil {
		if os.IsNotExist(err) {
			return sums, nil
		}
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			continue
		}
		sums[fields[0]] = fields[1]
	}
	return sums, scanner.Err()
}

func saveChecksums(sums map[string]string) error {
	var b strings.Builder
	names := make([]string, 0, len(sums))
	for name := range sums {
		names = append(names, name)
	}
	// Stable manifest order keeps diffs readable.
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "%s  %s\n", name, sums[name])
	}
	return os.WriteFile(checksumFile(), []byte(b.String()), 0o644)
}

// recordChecksum hashes a cached tarball and pins the digest in the
// manifest.
func recordChecksum(name, path string) error {
	sum, err := hashFile(path)
	if err != nil {
		return fmt.Errorf("failed to hash %s: %w", path, err)
	}
	sums, err := loadChecksums()
	if err != nil {
		return err
	}
	sums[name] = sum
	if err := saveChecksums(sums); err != nil {
		return err
	}
	colArrow.Print("-> ")
	colSuccess.Printf("Pinned %s  %s\n", name, sum)
	return nil
}

// verifyChecksum compares a cached tarball against its pinned digest.
// A corrupt archive is a fetch failure: the pipeline must stop before the
// library's configure step ever runs.
func verifyChecksum(dep *Dependency, cfg *Config, path string) error {
	sums, err := loadChecksums()
	if err != nil {
		return stageError(StageFetch, dep.Name, err)
	}

	name := dep.tarballName(cfg)
	pinned, ok := sums[name]
	if !ok {
		debugf("No pinned checksum for %s, skipping verification\n", name)
		return nil
	}

	sum, err := hashFile(path)
	if err != nil {
		return stageError(StageFetch, dep.Name, err)
	}
	if sum != pinned {
		return stageError(StageFetch, dep.Name,
			fmt.Errorf("checksum mismatch for %s: got %s, pinned %s", name, sum, pinned))
	}
	debugf("Checksum OK: %s\n", name)
	return nil
}
