package gpgforge

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config struct
type Config struct {
	Values map[string]string
}

// Load /etc/gpgforge.conf and apply defaults
func loadConfig(path string) (*Config, error) {
	cfg := &Config{Values: make(map[string]string)}

	// Attempt to read the file
	file, err := os.Open(path)
	if err == nil {
		defer file.Close()
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			val := strings.TrimSpace(parts[1])
			val = strings.Trim(val, `"'`)
			cfg.Values[key] = val
		}
		if err := scanner.Err(); err != nil {
			return cfg, err
		}
	}

	// Merge GPGFORGE_* env overrides
	mergeEnvOverrides(cfg)

	return cfg, nil
}

// Merge GPGFORGE_* env overrides.
// Pinned library versions are also accepted bare (LIBGCRYPT_VERSION=...)
// so CI parameter blocks can pass them through unchanged.
func mergeEnvOverrides(cfg *Config) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "GPGFORGE_") || strings.HasSuffix(strings.SplitN(env, "=", 2)[0], "_VERSION") {
			parts := strings.SplitN(env, "=", 2)
			if len(parts) == 2 {
				cfg.Values[parts[0]] = parts[1]
			}
		}
	}
}

func initConfig(cfg *Config) {
	WorkDir = cfg.Values["GPGFORGE_WORKDIR"]
	if WorkDir == "" {
		WorkDir = "/tmp/gpgforge"
	}

	Prefix = cfg.Values["GPGFORGE_PREFIX"]
	if Prefix == "" {
		Prefix = filepath.Join(WorkDir, "prefix")
	}

	CacheStore = cfg.Values["GPGFORGE_CACHE_DIR"]
	if CacheStore == "" {
		CacheStore = "/var/cache/gpgforge/sources"
	}

	LogDir = cfg.Values["GPGFORGE_LOG_DIR"]
	if LogDir == "" {
		LogDir = filepath.Join(WorkDir, "log")
	}

	// One triple for the whole pipeline; every configure run uses it.
	Triple = cfg.Values["GPGFORGE_TRIPLE"]
	if Triple == "" {
		Triple = "x86_64-unknown-linux-musl"
	}

	Debug = cfg.Values["GPGFORGE_DEBUG"] == "1"
	Verbose = cfg.Values["GPGFORGE_VERBOSE"] == "1"

	if base, exists := cfg.Values["GPGFORGE_SOURCE_BASE"]; exists && base != "" {
		SourceBase = strings.TrimRight(base, "/")
		debugf("=> Using source base from config: %s\n", SourceBase)
	}
}

// setConfigValue persists a key=value pair into the config file,
// replacing an existing assignment when one is present.
func setConfigValue(cfg *Config, key, value string) error {
	lines := []string{}
	replaced := false

	if data, err := os.ReadFile(ConfigFile); err == nil {
		for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, key+"=") {
				lines = append(lines, fmt.Sprintf("%s=%s", key, value))
				replaced = true
				continue
			}
			lines = append(lines, line)
		}
	}
	if !replaced {
		lines = append(lines, fmt.Sprintf("%s=%s", key, value))
	}

	if err := os.WriteFile(ConfigFile, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", ConfigFile, err)
	}
	cfg.Values[key] = value
	return nil
}
